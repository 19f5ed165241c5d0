package search

import "time"

// Last-contribution activity buckets.
const (
	ActivityLastMonth   = "30d"
	ActivityLast3Months = "3m"
	ActivityLast6Months = "6m"
	ActivityLastYear    = "1y"
)

// CandidateFilters is the set of predicates the result store can
// express. Every predicate is optional; nil means "do not filter on
// this attribute".
type CandidateFilters struct {
	Location         *string `json:"location,omitempty"`
	FollowersMin     *int    `json:"followers_min,omitempty"`
	FollowersMax     *int    `json:"followers_max,omitempty"`
	HasEmail         *bool   `json:"has_email,omitempty"`
	HasAnyContact    *bool   `json:"has_any_contact,omitempty"`
	LastContribution *string `json:"last_contribution,omitempty"`
}

func (f CandidateFilters) IsEmpty() bool {
	return f.Location == nil &&
		f.FollowersMin == nil &&
		f.FollowersMax == nil &&
		f.HasEmail == nil &&
		f.HasAnyContact == nil &&
		f.LastContribution == nil
}

// ActivityCutoff translates a bucket into the earliest acceptable
// contribution time relative to now. Unknown buckets return false.
func ActivityCutoff(bucket string, now time.Time) (time.Time, bool) {
	switch bucket {
	case ActivityLastMonth:
		return now.AddDate(0, 0, -30), true
	case ActivityLast3Months:
		return now.AddDate(0, -3, 0), true
	case ActivityLast6Months:
		return now.AddDate(0, -6, 0), true
	case ActivityLastYear:
		return now.AddDate(-1, 0, 0), true
	default:
		return time.Time{}, false
	}
}
