package chat

import (
	"fmt"
	"strings"

	"github.com/gitscout/gitscout-backend/internal/domain/search"
)

// Content is the tagged variant payload of a ChatMessage. Exactly one
// field may be set, and it must match the message type.
type Content struct {
	Text               *TextContent           `json:"text,omitempty"`
	FilterProposal     *FilterProposal        `json:"filter_proposal,omitempty"`
	Clarification      *ClarificationQuestion `json:"clarification,omitempty"`
	MultiClarification *MultiClarification    `json:"multi_clarification,omitempty"`
	EmailDraft         *EmailDraft            `json:"email_draft,omitempty"`
	Step               *StepContent           `json:"step,omitempty"`
}

type TextContent struct {
	Text string `json:"text"`
}

// FilterProposal is a partial set of optional predicates plus the
// human-readable framing shown to the user. An all-nil predicate set
// is valid and means "no filtering". EstimatedCount is advisory and
// computed before confirmation.
type FilterProposal struct {
	search.CandidateFilters
	Explanation    string `json:"explanation"`
	EstimatedCount *int   `json:"estimated_count,omitempty"`
}

type Option struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

type ClarificationQuestion struct {
	Question    string   `json:"question"`
	FieldName   string   `json:"field_name"`
	Options     []Option `json:"options"`
	AllowCustom bool     `json:"allow_custom"`
}

type MultiClarification struct {
	Questions   []ClarificationQuestion `json:"questions"`
	Answers     map[string]string       `json:"answers"`
	AllAnswered bool                    `json:"all_answered"`
}

type EmailDraft struct {
	Subject        string `json:"subject"`
	Body           string `json:"body"`
	CandidateLogin string `json:"candidate_login,omitempty"`
}

type StepContent struct {
	Step     string `json:"step"`
	Message  string `json:"message"`
	Progress int    `json:"progress"`
}

// Validate enforces the exactly-one-variant rule against typ.
func (c Content) Validate(typ string) error {
	populated := 0
	var match bool
	check := func(set bool, variantType string) {
		if set {
			populated++
			if variantType == typ {
				match = true
			}
		}
	}
	check(c.Text != nil, TypeText)
	check(c.FilterProposal != nil, TypeFilterProposal)
	check(c.Clarification != nil, TypeClarification)
	check(c.MultiClarification != nil, TypeMultiClarification)
	check(c.EmailDraft != nil, TypeEmailDraft)
	check(c.Step != nil, TypeStep)

	if populated != 1 {
		return fmt.Errorf("message content must populate exactly one variant, got %d", populated)
	}
	if !match {
		return fmt.Errorf("message content variant does not match type %q", typ)
	}
	return nil
}

// ComputeAllAnswered reports whether every question has a non-empty
// answer under its field name.
func (mc *MultiClarification) ComputeAllAnswered() bool {
	for _, q := range mc.Questions {
		if strings.TrimSpace(mc.Answers[q.FieldName]) == "" {
			return false
		}
	}
	return true
}

// MergeAnswers folds new answers in and refreshes AllAnswered.
func (mc *MultiClarification) MergeAnswers(answers map[string]string) {
	if mc.Answers == nil {
		mc.Answers = make(map[string]string, len(answers))
	}
	for k, v := range answers {
		if strings.TrimSpace(v) != "" {
			mc.Answers[k] = v
		}
	}
	mc.AllAnswered = mc.ComputeAllAnswered()
}
