package services

import (
	"testing"
	"time"

	types "github.com/gitscout/gitscout-backend/internal/domain"
	"github.com/gitscout/gitscout-backend/internal/domain/search"
)

func TestMergeFilters(t *testing.T) {
	base := types.CandidateFilters{
		Location:     strptr("Berlin"),
		FollowersMin: intptr(100),
		HasEmail:     boolptr(true),
	}
	override := types.CandidateFilters{
		FollowersMin:     intptr(200),
		LastContribution: strptr(search.ActivityLast6Months),
	}

	got := MergeFilters(base, override)

	if got.Location == nil || *got.Location != "Berlin" {
		t.Fatalf("location = %v, want Berlin retained", got.Location)
	}
	if got.FollowersMin == nil || *got.FollowersMin != 200 {
		t.Fatalf("followers min = %v, want 200 overridden", got.FollowersMin)
	}
	if got.HasEmail == nil || !*got.HasEmail {
		t.Fatal("has_email lost in merge")
	}
	if got.LastContribution == nil || *got.LastContribution != search.ActivityLast6Months {
		t.Fatalf("last contribution = %v, want %s", got.LastContribution, search.ActivityLast6Months)
	}

	// Merging an empty override changes nothing.
	same := MergeFilters(base, types.CandidateFilters{})
	if same.FollowersMin == nil || *same.FollowersMin != 100 {
		t.Fatalf("empty override mutated base: %v", same.FollowersMin)
	}
}

func TestDescribeFilters(t *testing.T) {
	tests := []struct {
		name    string
		filters types.CandidateFilters
		want    string
	}{
		{
			name:    "empty",
			filters: types.CandidateFilters{},
			want:    "no filters (showing all candidates)",
		},
		{
			name: "location and minimum",
			filters: types.CandidateFilters{
				Location:     strptr("Berlin"),
				FollowersMin: intptr(100),
			},
			want: "located in Berlin, at least 100 followers",
		},
		{
			name: "bounded range",
			filters: types.CandidateFilters{
				FollowersMin: intptr(50),
				FollowersMax: intptr(500),
			},
			want: "between 50 and 500 followers",
		},
		{
			name: "contact and activity",
			filters: types.CandidateFilters{
				HasEmail:         boolptr(true),
				LastContribution: strptr(search.ActivityLastMonth),
			},
			want: "with a public email, active in the last month",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DescribeFilters(tt.filters); got != tt.want {
				t.Fatalf("DescribeFilters = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCompileScopesCount(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name    string
		filters types.CandidateFilters
		want    int
	}{
		{"empty", types.CandidateFilters{}, 0},
		{
			"all predicates",
			types.CandidateFilters{
				Location:         strptr("Berlin"),
				FollowersMin:     intptr(10),
				FollowersMax:     intptr(100),
				HasEmail:         boolptr(true),
				HasAnyContact:    boolptr(true),
				LastContribution: strptr(search.ActivityLastYear),
			},
			6,
		},
		{"false booleans compile to nothing", types.CandidateFilters{HasEmail: boolptr(false), HasAnyContact: boolptr(false)}, 0},
		{"blank location compiles to nothing", types.CandidateFilters{Location: strptr("   ")}, 0},
		{"unknown activity bucket compiles to nothing", types.CandidateFilters{LastContribution: strptr("eventually")}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(CompileScopes(tt.filters, now)); got != tt.want {
				t.Fatalf("scope count = %d, want %d", got, tt.want)
			}
		})
	}
}
