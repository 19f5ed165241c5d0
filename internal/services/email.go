package services

import (
	"encoding/json"
	"fmt"
	"strings"

	types "github.com/gitscout/gitscout-backend/internal/domain"
)

var roleKeywords = []struct {
	keyword string
	role    string
}{
	{"machine learning", "machine learning engineer"},
	{"data engineer", "data engineer"},
	{"full-stack", "full-stack engineer"},
	{"full stack", "full-stack engineer"},
	{"frontend", "frontend engineer"},
	{"front-end", "frontend engineer"},
	{"backend", "backend engineer"},
	{"back-end", "backend engineer"},
	{"devops", "DevOps engineer"},
	{"mobile", "mobile engineer"},
	{"ios", "iOS engineer"},
	{"android", "Android engineer"},
	{"security", "security engineer"},
	{"data scien", "data scientist"},
}

// sniffRole pulls a role title out of the job description for email
// personalization; falls back to a generic title.
func sniffRole(jobDescription string) string {
	jd := strings.ToLower(jobDescription)
	for _, rk := range roleKeywords {
		if strings.Contains(jd, rk.keyword) {
			return rk.role
		}
	}
	return "software engineer"
}

// BuildEmailDraft produces a personalized outreach draft for one
// candidate, referencing their strongest repository when known.
func BuildEmailDraft(jobDescription string, cand *types.Candidate) types.EmailDraft {
	role := sniffRole(jobDescription)

	name := cand.Name
	if name == "" {
		name = cand.Login
	}

	var repoLine string
	if len(cand.TopRepos) > 0 {
		var repos []types.RepoSummary
		if err := json.Unmarshal(cand.TopRepos, &repos); err == nil && len(repos) > 0 {
			repoLine = fmt.Sprintf(" Your work on %s stood out to us.", repos[0].NameWithOwner)
		}
	}

	subject := fmt.Sprintf("Opportunity: %s role", role)
	body := fmt.Sprintf(
		"Hi %s,\n\nI came across your GitHub profile and was impressed by your open source work.%s\n\n"+
			"We're hiring a %s and your background looks like a strong match. "+
			"Would you be open to a short conversation?\n\nBest regards",
		name, repoLine, role,
	)

	return types.EmailDraft{
		Subject:        subject,
		Body:           body,
		CandidateLogin: cand.Login,
	}
}
