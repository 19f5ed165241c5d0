package services

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	searchrepo "github.com/gitscout/gitscout-backend/internal/data/repos/search"
	types "github.com/gitscout/gitscout-backend/internal/domain"
	"github.com/gitscout/gitscout-backend/internal/domain/search"
)

// CompileScopes translates candidate filters into query scopes. Only
// predicates the store can express ever reach this point; anything
// else was dropped upstream and survives only in explanation text.
func CompileScopes(f types.CandidateFilters, now time.Time) []searchrepo.Scope {
	var scopes []searchrepo.Scope

	if f.Location != nil && strings.TrimSpace(*f.Location) != "" {
		loc := "%" + strings.TrimSpace(*f.Location) + "%"
		scopes = append(scopes, func(q *gorm.DB) *gorm.DB {
			return q.Where("location ILIKE ?", loc)
		})
	}
	if f.FollowersMin != nil {
		min := *f.FollowersMin
		scopes = append(scopes, func(q *gorm.DB) *gorm.DB {
			return q.Where("followers >= ?", min)
		})
	}
	if f.FollowersMax != nil {
		max := *f.FollowersMax
		scopes = append(scopes, func(q *gorm.DB) *gorm.DB {
			return q.Where("followers <= ?", max)
		})
	}
	if f.HasEmail != nil && *f.HasEmail {
		scopes = append(scopes, func(q *gorm.DB) *gorm.DB {
			return q.Where("email <> ''")
		})
	}
	if f.HasAnyContact != nil && *f.HasAnyContact {
		scopes = append(scopes, func(q *gorm.DB) *gorm.DB {
			return q.Where("email <> '' OR twitter_username <> '' OR website_url <> ''")
		})
	}
	if f.LastContribution != nil {
		if cutoff, ok := search.ActivityCutoff(*f.LastContribution, now); ok {
			scopes = append(scopes, func(q *gorm.DB) *gorm.DB {
				return q.Where("last_contribution_at IS NOT NULL AND last_contribution_at >= ?", cutoff)
			})
		}
	}
	return scopes
}

// MergeFilters overlays non-nil fields of override onto base. Used
// when a proposal is confirmed "with edits".
func MergeFilters(base, override types.CandidateFilters) types.CandidateFilters {
	out := base
	if override.Location != nil {
		out.Location = override.Location
	}
	if override.FollowersMin != nil {
		out.FollowersMin = override.FollowersMin
	}
	if override.FollowersMax != nil {
		out.FollowersMax = override.FollowersMax
	}
	if override.HasEmail != nil {
		out.HasEmail = override.HasEmail
	}
	if override.HasAnyContact != nil {
		out.HasAnyContact = override.HasAnyContact
	}
	if override.LastContribution != nil {
		out.LastContribution = override.LastContribution
	}
	return out
}

// DescribeFilters renders the human-readable summary used in
// proposal explanations and confirmation messages.
func DescribeFilters(f types.CandidateFilters) string {
	var parts []string
	if f.Location != nil && *f.Location != "" {
		parts = append(parts, fmt.Sprintf("located in %s", *f.Location))
	}
	if f.FollowersMin != nil && f.FollowersMax != nil {
		parts = append(parts, fmt.Sprintf("between %d and %d followers", *f.FollowersMin, *f.FollowersMax))
	} else if f.FollowersMin != nil {
		parts = append(parts, fmt.Sprintf("at least %d followers", *f.FollowersMin))
	} else if f.FollowersMax != nil {
		parts = append(parts, fmt.Sprintf("at most %d followers", *f.FollowersMax))
	}
	if f.HasEmail != nil && *f.HasEmail {
		parts = append(parts, "with a public email")
	}
	if f.HasAnyContact != nil && *f.HasAnyContact {
		parts = append(parts, "with at least one contact method")
	}
	if f.LastContribution != nil {
		switch *f.LastContribution {
		case search.ActivityLastMonth:
			parts = append(parts, "active in the last month")
		case search.ActivityLast3Months:
			parts = append(parts, "active in the last 3 months")
		case search.ActivityLast6Months:
			parts = append(parts, "active in the last 6 months")
		case search.ActivityLastYear:
			parts = append(parts, "active in the last year")
		}
	}
	if len(parts) == 0 {
		return "no filters (showing all candidates)"
	}
	return strings.Join(parts, ", ")
}
