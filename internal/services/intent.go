package services

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	types "github.com/gitscout/gitscout-backend/internal/domain"
	"github.com/gitscout/gitscout-backend/internal/domain/chat"
	"github.com/gitscout/gitscout-backend/internal/domain/search"
)

// ClassifyInput carries the conversation context a classifier may
// use. Answers holds clarification answers collected so far for the
// current topic, keyed by field name.
type ClassifyInput struct {
	History        []*types.ChatMessage
	Utterance      string
	CurrentFilters *types.CandidateFilters
	PreviousIntent *string
	Answers        map[string]string
}

// ClassifyResult is the classifier's verdict. Resolved carries the
// predicates extracted so far even when clarification is still
// needed, so the engine can force a proposal at the question cap.
type ClassifyResult struct {
	Intent    string
	Resolved  types.CandidateFilters
	Questions []types.ClarificationQuestion
	// Unsupported names request fragments that have no matching
	// candidate attribute; they end up in explanation text only.
	Unsupported []string
	FreeText    string
}

// Classifier is the pluggable intent and extraction boundary. The
// engine treats it as a black box behind a timeout and never trusts
// it with state.
type Classifier interface {
	Classify(ctx context.Context, in ClassifyInput) (ClassifyResult, error)
}

// RuleClassifier is the default keyword and regex implementation.
type RuleClassifier struct{}

func NewRuleClassifier() *RuleClassifier { return &RuleClassifier{} }

var (
	reFollowersMin     = regexp.MustCompile(`(?i)(?:more than|over|above|at least|minimum(?: of)?|>\s*)\s*(\d+)\s*\+?\s*followers?`)
	reFollowersMinPlus = regexp.MustCompile(`(?i)(\d+)\s*\+\s*followers?`)
	reFollowersMax     = regexp.MustCompile(`(?i)(?:less than|under|below|at most|fewer than|maximum(?: of)?|<\s*)\s*(\d+)\s*followers?`)
	reLocation         = regexp.MustCompile(`(?i)\b(?:located in|based in|living in|from|in)\s+([A-Za-z][A-Za-z .'-]*?)(?:\s+(?:with|who|and|that|having|or)\b|[,.!?]|$)`)
)

// timeNow is swapped in tests.
var timeNow = time.Now

var topicChangeWords = []string{"instead", "actually", "forget", "never mind", "nevermind", "start over", "new search", "scratch that"}

var vagueQualityWords = []string{"passionate", "experienced", "senior", "talented", "rockstar", "really good", "great", "strong", "skilled", "expert"}

func (c *RuleClassifier) Classify(_ context.Context, in ClassifyInput) (ClassifyResult, error) {
	text := strings.ToLower(strings.TrimSpace(in.Utterance))

	intent := detectIntent(text, in.PreviousIntent)

	// Short follow-ups on an active filter topic ("only in Berlin",
	// "over 200") carry no intent keywords but do carry predicates;
	// keep them on the previous topic.
	if intent == chat.IntentOutOfScope && in.PreviousIntent != nil &&
		*in.PreviousIntent == chat.IntentFilterCandidates &&
		!containsAny(text, topicChangeWords...) {
		if resolved, _ := extractFilters(text); !resolved.IsEmpty() {
			intent = chat.IntentFilterCandidates
		}
	}

	if intent != chat.IntentFilterCandidates {
		return ClassifyResult{Intent: intent}, nil
	}

	resolved, unsupported := extractFilters(text)
	applyAnswers(&resolved, in.Answers)

	questions := clarificationQuestions(text, resolved, in.Answers)

	return ClassifyResult{
		Intent:      chat.IntentFilterCandidates,
		Resolved:    resolved,
		Questions:   questions,
		Unsupported: unsupported,
	}, nil
}

func detectIntent(text string, previous *string) string {
	switch {
	case containsAny(text, "draft an email", "draft email", "write an email", "write email", "reach out", "outreach", "send an email", "email them", "email him", "email her", "compose"):
		return chat.IntentDraftEmail
	case containsAny(text, "compare", " versus ", " vs ", " vs."):
		return chat.IntentCompareCandidates
	case containsAny(text, "tell me about", "who is", "more about", "more info on", "details on", "details about"):
		return chat.IntentCandidateInfo
	case containsAny(text, "filter", "show me", "show only", "only show", "narrow", "refine", "candidates", "find", "looking for", "followers", "located", "based in", "with email", "active"):
		return chat.IntentFilterCandidates
	}
	return chat.IntentOutOfScope
}

func extractFilters(text string) (types.CandidateFilters, []string) {
	var f types.CandidateFilters
	var unsupported []string

	if m := reFollowersMin.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			f.FollowersMin = &n
		}
	} else if m := reFollowersMinPlus.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			f.FollowersMin = &n
		}
	}
	if m := reFollowersMax.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			f.FollowersMax = &n
		}
	}

	if m := reLocation.FindStringSubmatch(text); m != nil {
		loc := strings.TrimSpace(m[1])
		if loc != "" && !startsWithStopword(loc) {
			loc = titleCase(loc)
			f.Location = &loc
		}
	}

	if containsAny(text, "with email", "has email", "have email", "public email", "email address", "an email") {
		t := true
		f.HasEmail = &t
	}
	if containsAny(text, "contact info", "contact method", "any contact", "reachable", "contactable") {
		t := true
		f.HasAnyContact = &t
	}

	if bucket, ok := activityBucket(text); ok {
		f.LastContribution = &bucket
	}

	for _, w := range vagueQualityWords {
		if strings.Contains(text, w) {
			unsupported = append(unsupported, w)
		}
	}

	return f, unsupported
}

func activityBucket(text string) (string, bool) {
	switch {
	case containsAny(text, "last month", "past month", "30 days", "this month"):
		return search.ActivityLastMonth, true
	case containsAny(text, "3 months", "three months", "past quarter", "last quarter"):
		return search.ActivityLast3Months, true
	case containsAny(text, "6 months", "six months", "half a year", "half year"):
		return search.ActivityLast6Months, true
	case containsAny(text, "last year", "past year", "12 months", "twelve months", "a year"):
		return search.ActivityLastYear, true
	default:
		return "", false
	}
}

// applyAnswers folds clarification answers into the resolved filter
// set. Option values arrive in canonical form; custom answers are
// parsed leniently.
func applyAnswers(f *types.CandidateFilters, answers map[string]string) {
	for field, raw := range answers {
		val := strings.TrimSpace(raw)
		if val == "" {
			continue
		}
		switch field {
		case "location":
			if !strings.EqualFold(val, "anywhere") {
				loc := titleCase(val)
				f.Location = &loc
			}
		case "followers_min":
			if n, err := strconv.Atoi(strings.TrimSuffix(val, "+")); err == nil {
				f.FollowersMin = &n
			}
		case "followers_max":
			if n, err := strconv.Atoi(val); err == nil {
				f.FollowersMax = &n
			}
		case "last_contribution":
			if _, ok := search.ActivityCutoff(val, timeNow()); ok {
				v := val
				f.LastContribution = &v
			} else if bucket, ok := activityBucket(strings.ToLower(val)); ok {
				f.LastContribution = &bucket
			}
		case "has_email":
			b := strings.EqualFold(val, "yes") || strings.EqualFold(val, "true")
			if b {
				f.HasEmail = &b
			}
		case "has_any_contact":
			b := strings.EqualFold(val, "yes") || strings.EqualFold(val, "true")
			if b {
				f.HasAnyContact = &b
			}
		}
	}
}

// clarificationQuestions decides whether the utterance needs a round
// of questions before a proposal can be made.
func clarificationQuestions(text string, resolved types.CandidateFilters, answers map[string]string) []types.ClarificationQuestion {
	var qs []types.ClarificationQuestion

	answered := func(field string) bool {
		_, ok := answers[field]
		return ok
	}

	// Vague seniority or quality words have no candidate attribute;
	// offer a follower threshold as the closest proxy.
	if containsAny(text, vagueQualityWords...) && resolved.FollowersMin == nil && !answered("followers_min") {
		qs = append(qs, types.ClarificationQuestion{
			Question:  "There is no direct signal for that, but follower count is a rough proxy for visibility. What minimum would you like?",
			FieldName: "followers_min",
			Options: []types.Option{
				{Label: "50+", Value: "50"},
				{Label: "100+", Value: "100"},
				{Label: "500+", Value: "500"},
			},
			AllowCustom: true,
		})
	}

	// "Active" with no timeframe is ambiguous.
	if strings.Contains(text, "active") && resolved.LastContribution == nil && !answered("last_contribution") {
		qs = append(qs, types.ClarificationQuestion{
			Question:  "How recently should they have contributed?",
			FieldName: "last_contribution",
			Options: []types.Option{
				{Label: "Last month", Value: search.ActivityLastMonth},
				{Label: "Last 3 months", Value: search.ActivityLast3Months},
				{Label: "Last 6 months", Value: search.ActivityLast6Months},
				{Label: "Last year", Value: search.ActivityLastYear},
			},
			AllowCustom: false,
		})
	}

	// Nothing resolvable at all: ask what to filter on.
	if len(qs) == 0 && resolved.IsEmpty() && len(answers) == 0 {
		qs = append(qs, types.ClarificationQuestion{
			Question:  "Which criteria matter most for narrowing this down?",
			FieldName: "criteria",
			Options: []types.Option{
				{Label: "Location", Value: "location"},
				{Label: "Follower count", Value: "followers"},
				{Label: "Recent activity", Value: "activity"},
				{Label: "Contact info available", Value: "contact"},
			},
			AllowCustom: true,
		})
	}

	if len(qs) > chat.MaxClarifications {
		qs = qs[:chat.MaxClarifications]
	}
	return qs
}

func containsAny(text string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

// startsWithStopword rejects captures like "the past month" that the
// location pattern picks up from temporal or idiomatic phrases.
func startsWithStopword(loc string) bool {
	fields := strings.Fields(strings.ToLower(loc))
	if len(fields) == 0 {
		return true
	}
	switch fields[0] {
	case "the", "general", "touch", "a", "an", "my", "our", "this", "that", "contact", "common", "last", "past":
		return true
	default:
		return false
	}
}

func titleCase(s string) string {
	fields := strings.Fields(s)
	for i, f := range fields {
		if len(f) > 0 {
			fields[i] = strings.ToUpper(f[:1]) + f[1:]
		}
	}
	return strings.Join(fields, " ")
}
