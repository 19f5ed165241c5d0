package chat

import (
	"testing"

	"github.com/google/uuid"
)

func TestContentValidate(t *testing.T) {
	cases := []struct {
		name    string
		typ     string
		content Content
		wantErr bool
	}{
		{
			name:    "text matches",
			typ:     TypeText,
			content: Content{Text: &TextContent{Text: "hi"}},
		},
		{
			name:    "proposal matches",
			typ:     TypeFilterProposal,
			content: Content{FilterProposal: &FilterProposal{Explanation: "no filters"}},
		},
		{
			name:    "empty content rejected",
			typ:     TypeText,
			content: Content{},
			wantErr: true,
		},
		{
			name: "two variants rejected",
			typ:  TypeText,
			content: Content{
				Text:       &TextContent{Text: "hi"},
				EmailDraft: &EmailDraft{Subject: "s"},
			},
			wantErr: true,
		},
		{
			name:    "variant type mismatch rejected",
			typ:     TypeFilterProposal,
			content: Content{Text: &TextContent{Text: "hi"}},
			wantErr: true,
		},
		{
			name: "multi clarification matches",
			typ:  TypeMultiClarification,
			content: Content{MultiClarification: &MultiClarification{
				Questions: []ClarificationQuestion{{Question: "q", FieldName: "f"}},
				Answers:   map[string]string{},
			}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.content.Validate(tc.typ)
			if tc.wantErr && err == nil {
				t.Fatalf("expected error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestNewMessageRejectsInvalidContent(t *testing.T) {
	if _, err := NewMessage(uuid.New(), RoleAssistant, TypeFilterProposal, Content{}); err == nil {
		t.Fatalf("expected error for empty content")
	}

	msg, err := NewTextMessage(uuid.New(), RoleUser, "hello")
	if err != nil {
		t.Fatalf("NewTextMessage: %v", err)
	}
	c, err := msg.DecodeContent()
	if err != nil {
		t.Fatalf("DecodeContent: %v", err)
	}
	if c.Text == nil || c.Text.Text != "hello" {
		t.Fatalf("unexpected decoded content: %+v", c)
	}
}

func TestMultiClarificationAllAnswered(t *testing.T) {
	mc := &MultiClarification{
		Questions: []ClarificationQuestion{
			{Question: "a", FieldName: "location"},
			{Question: "b", FieldName: "followers_min"},
		},
	}

	mc.MergeAnswers(map[string]string{"location": "Berlin"})
	if mc.AllAnswered {
		t.Fatalf("expected all_answered=false with one missing answer")
	}

	mc.MergeAnswers(map[string]string{"followers_min": "  "})
	if mc.AllAnswered {
		t.Fatalf("blank answers must not count")
	}

	mc.MergeAnswers(map[string]string{"followers_min": "100"})
	if !mc.AllAnswered {
		t.Fatalf("expected all_answered=true once every field has a value")
	}
}

func TestEstimateTokens(t *testing.T) {
	if got := EstimateTokens("abcdefgh"); got != 2 {
		t.Fatalf("expected 2 tokens, got %d", got)
	}
	if got := EstimateTokens(""); got != 0 {
		t.Fatalf("expected 0 tokens, got %d", got)
	}
}
