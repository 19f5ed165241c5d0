package services

import (
	"context"
	"testing"

	"github.com/gitscout/gitscout-backend/internal/domain/chat"
	"github.com/gitscout/gitscout-backend/internal/domain/search"
)

func strptr(s string) *string { return &s }
func intptr(n int) *int       { return &n }
func boolptr(b bool) *bool    { return &b }

func TestClassifyIntentRouting(t *testing.T) {
	c := NewRuleClassifier()

	tests := []struct {
		name      string
		utterance string
		previous  *string
		want      string
	}{
		{"email draft", "draft an email to the top candidate", nil, chat.IntentDraftEmail},
		{"outreach phrasing", "help me reach out to octocat", nil, chat.IntentDraftEmail},
		{"compare", "compare octocat and hubot", nil, chat.IntentCompareCandidates},
		{"candidate info", "tell me about the first candidate", nil, chat.IntentCandidateInfo},
		{"filter verb", "show me developers in Berlin", nil, chat.IntentFilterCandidates},
		{"filter find", "find someone really passionate", nil, chat.IntentFilterCandidates},
		{"off topic", "what's the weather like today", nil, chat.IntentOutOfScope},
		{"off topic during filter topic", "what's the weather like today", strptr(chat.IntentFilterCandidates), chat.IntentOutOfScope},
		{"short follow-up on filter topic", "only people in Berlin", strptr(chat.IntentFilterCandidates), chat.IntentFilterCandidates},
		{"follow-up threshold", "over 200 followers", strptr(chat.IntentFilterCandidates), chat.IntentFilterCandidates},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Classify(context.Background(), ClassifyInput{
				Utterance:      tt.utterance,
				PreviousIntent: tt.previous,
			})
			if err != nil {
				t.Fatalf("Classify: %v", err)
			}
			if got.Intent != tt.want {
				t.Fatalf("intent = %q, want %q", got.Intent, tt.want)
			}
		})
	}
}

func TestClassifyFilterExtraction(t *testing.T) {
	c := NewRuleClassifier()

	tests := []struct {
		name      string
		utterance string
		check     func(t *testing.T, r ClassifyResult)
	}{
		{
			name:      "location and followers minimum",
			utterance: "show me developers in Berlin with more than 100 followers",
			check: func(t *testing.T, r ClassifyResult) {
				if r.Resolved.Location == nil || *r.Resolved.Location != "Berlin" {
					t.Fatalf("location = %v, want Berlin", r.Resolved.Location)
				}
				if r.Resolved.FollowersMin == nil || *r.Resolved.FollowersMin != 100 {
					t.Fatalf("followers min = %v, want 100", r.Resolved.FollowersMin)
				}
				if len(r.Questions) != 0 {
					t.Fatalf("expected no questions, got %d", len(r.Questions))
				}
			},
		},
		{
			name:      "plus notation",
			utterance: "filter to people with 500+ followers",
			check: func(t *testing.T, r ClassifyResult) {
				if r.Resolved.FollowersMin == nil || *r.Resolved.FollowersMin != 500 {
					t.Fatalf("followers min = %v, want 500", r.Resolved.FollowersMin)
				}
			},
		},
		{
			name:      "followers maximum",
			utterance: "show only candidates with less than 50 followers",
			check: func(t *testing.T, r ClassifyResult) {
				if r.Resolved.FollowersMax == nil || *r.Resolved.FollowersMax != 50 {
					t.Fatalf("followers max = %v, want 50", r.Resolved.FollowersMax)
				}
			},
		},
		{
			name:      "email and contact",
			utterance: "show me candidates with email addresses and any contact info",
			check: func(t *testing.T, r ClassifyResult) {
				if r.Resolved.HasEmail == nil || !*r.Resolved.HasEmail {
					t.Fatal("expected has_email to be set")
				}
				if r.Resolved.HasAnyContact == nil || !*r.Resolved.HasAnyContact {
					t.Fatal("expected has_any_contact to be set")
				}
			},
		},
		{
			name:      "activity bucket",
			utterance: "show me candidates active in the past month",
			check: func(t *testing.T, r ClassifyResult) {
				if r.Resolved.LastContribution == nil || *r.Resolved.LastContribution != search.ActivityLastMonth {
					t.Fatalf("last contribution = %v, want %s", r.Resolved.LastContribution, search.ActivityLastMonth)
				}
			},
		},
		{
			name:      "multi word location",
			utterance: "show me developers based in San Francisco",
			check: func(t *testing.T, r ClassifyResult) {
				if r.Resolved.Location == nil || *r.Resolved.Location != "San Francisco" {
					t.Fatalf("location = %v, want San Francisco", r.Resolved.Location)
				}
			},
		},
		{
			name:      "vague quality yields proxy question",
			utterance: "find someone really passionate about machine learning",
			check: func(t *testing.T, r ClassifyResult) {
				if len(r.Questions) == 0 {
					t.Fatal("expected a clarification question")
				}
				if r.Questions[0].FieldName != "followers_min" {
					t.Fatalf("question field = %q, want followers_min", r.Questions[0].FieldName)
				}
				if len(r.Unsupported) == 0 {
					t.Fatal("expected unsupported fragments to be reported")
				}
			},
		},
		{
			name:      "bare active yields timeframe question",
			utterance: "show me active contributors",
			check: func(t *testing.T, r ClassifyResult) {
				if len(r.Questions) != 1 {
					t.Fatalf("expected 1 question, got %d", len(r.Questions))
				}
				if r.Questions[0].FieldName != "last_contribution" {
					t.Fatalf("question field = %q, want last_contribution", r.Questions[0].FieldName)
				}
			},
		},
		{
			name:      "nothing resolvable asks for criteria",
			utterance: "narrow this down please",
			check: func(t *testing.T, r ClassifyResult) {
				if len(r.Questions) != 1 || r.Questions[0].FieldName != "criteria" {
					t.Fatalf("expected criteria question, got %+v", r.Questions)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Classify(context.Background(), ClassifyInput{Utterance: tt.utterance})
			if err != nil {
				t.Fatalf("Classify: %v", err)
			}
			if got.Intent != chat.IntentFilterCandidates {
				t.Fatalf("intent = %q, want %q", got.Intent, chat.IntentFilterCandidates)
			}
			tt.check(t, got)
		})
	}
}

func TestClassifyAppliesAnswers(t *testing.T) {
	c := NewRuleClassifier()

	got, err := c.Classify(context.Background(), ClassifyInput{
		Utterance:      "find passionate and active developers",
		PreviousIntent: strptr(chat.IntentFilterCandidates),
		Answers: map[string]string{
			"followers_min":     "100",
			"last_contribution": search.ActivityLast3Months,
			"location":          "berlin",
		},
	})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if got.Resolved.FollowersMin == nil || *got.Resolved.FollowersMin != 100 {
		t.Fatalf("followers min = %v, want 100", got.Resolved.FollowersMin)
	}
	if got.Resolved.LastContribution == nil || *got.Resolved.LastContribution != search.ActivityLast3Months {
		t.Fatalf("last contribution = %v, want %s", got.Resolved.LastContribution, search.ActivityLast3Months)
	}
	if got.Resolved.Location == nil || *got.Resolved.Location != "Berlin" {
		t.Fatalf("location = %v, want Berlin", got.Resolved.Location)
	}
	if len(got.Questions) != 0 {
		t.Fatalf("expected no further questions, got %d", len(got.Questions))
	}
}

func TestClassifyAnswerAnywhereSkipsLocation(t *testing.T) {
	c := NewRuleClassifier()

	got, err := c.Classify(context.Background(), ClassifyInput{
		Utterance:      "find passionate developers",
		PreviousIntent: strptr(chat.IntentFilterCandidates),
		Answers: map[string]string{
			"followers_min": "50+",
			"location":      "anywhere",
		},
	})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if got.Resolved.Location != nil {
		t.Fatalf("location = %v, want nil for anywhere", got.Resolved.Location)
	}
	if got.Resolved.FollowersMin == nil || *got.Resolved.FollowersMin != 50 {
		t.Fatalf("followers min = %v, want 50", got.Resolved.FollowersMin)
	}
}
