package services

import (
	"strings"
	"testing"

	"gorm.io/datatypes"

	types "github.com/gitscout/gitscout-backend/internal/domain"
)

func TestSniffRole(t *testing.T) {
	tests := []struct {
		jd   string
		want string
	}{
		{"We need a Backend engineer for our payments team", "backend engineer"},
		{"Looking for a machine learning specialist", "machine learning engineer"},
		{"Senior DevOps position, remote", "DevOps engineer"},
		{"Generalist who ships product", "software engineer"},
	}
	for _, tt := range tests {
		if got := sniffRole(tt.jd); got != tt.want {
			t.Fatalf("sniffRole(%q) = %q, want %q", tt.jd, got, tt.want)
		}
	}
}

func TestBuildEmailDraft(t *testing.T) {
	cand := &types.Candidate{
		Login:    "octocat",
		Name:     "Mona Lisa",
		TopRepos: datatypes.JSON(`[{"name_with_owner":"octocat/hello-world","stars":1200}]`),
	}

	draft := BuildEmailDraft("Hiring a backend engineer for our infra team", cand)

	if draft.Subject != "Opportunity: backend engineer role" {
		t.Fatalf("subject = %q", draft.Subject)
	}
	if draft.CandidateLogin != "octocat" {
		t.Fatalf("candidate login = %q", draft.CandidateLogin)
	}
	if !strings.Contains(draft.Body, "Hi Mona Lisa,") {
		t.Fatalf("body missing greeting: %q", draft.Body)
	}
	if !strings.Contains(draft.Body, "octocat/hello-world") {
		t.Fatalf("body missing top repo mention: %q", draft.Body)
	}
}

func TestBuildEmailDraftFallsBackToLogin(t *testing.T) {
	cand := &types.Candidate{Login: "hubot"}

	draft := BuildEmailDraft("frontend role", cand)

	if !strings.Contains(draft.Body, "Hi hubot,") {
		t.Fatalf("body should greet by login: %q", draft.Body)
	}
	if strings.Contains(draft.Body, "stood out to us") {
		t.Fatal("body should not mention a repo when none is known")
	}
}
