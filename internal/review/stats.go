package review

import (
	"math"
	"sort"
	"time"

	"github.com/rualca/librarian-agent/internal/vault"
)

const maxStandings = 5

// Standing is an item listed among the strongest or weakest.
type Standing struct {
	Title string         `json:"title"`
	Type  vault.ItemType `json:"type"`
	Ease  float64        `json:"ease"`
}

// Stats summarizes retention across the tracker.
type Stats struct {
	TotalTracked     int        `json:"total_tracked"`
	TotalReviewable  int        `json:"total_reviewable"`
	NeverReviewed    int        `json:"never_reviewed"`
	ReviewedToday    int        `json:"reviewed_today"`
	DueCount         int        `json:"due_count"`
	AvgRetention     float64    `json:"avg_retention"` // percent of the maximum score, one decimal
	Strengths        []Standing `json:"strengths"`
	NeedsWork        []Standing `json:"needs_work"`
	UpcomingTomorrow int        `json:"upcoming_tomorrow"`
	UpcomingWeek     int        `json:"upcoming_week"`
}

// ComputeStats summarizes s as of now. reviewable is the number of items
// currently extractable from the vault.
func ComputeStats(s *State, reviewable int, now time.Time) Stats {
	today := now.Format(dateLayout)
	tomorrow := now.AddDate(0, 0, 1).Format(dateLayout)
	weekEnd := now.AddDate(0, 0, 7).Format(dateLayout)

	st := Stats{TotalReviewable: reviewable, Strengths: []Standing{}, NeedsWork: []Standing{}}
	sum, n := 0, 0

	tables := []struct {
		t vault.ItemType
		m map[string]*Record
	}{{vault.ItemCard, s.Cards}, {vault.ItemEncounter, s.Encounters}}

	for _, tb := range tables {
		for title, r := range tb.m {
			if r == nil {
				continue
			}
			st.TotalTracked++
			if r.LastReviewed == today {
				st.ReviewedToday++
			}

			next := r.NextReview
			if next == "" {
				next = noNextReview
			}
			switch {
			case next <= today:
				st.DueCount++
			case next <= tomorrow:
				st.UpcomingTomorrow++
			case next <= weekEnd:
				st.UpcomingWeek++
			}

			for _, h := range r.History {
				sum += h.Score
				n++
			}

			entry := Standing{Title: title, Type: tb.t, Ease: r.EaseFactor}
			switch {
			case r.EaseFactor >= DefaultEase:
				st.Strengths = append(st.Strengths, entry)
			case r.EaseFactor < 2.0:
				st.NeedsWork = append(st.NeedsWork, entry)
			}
		}
	}

	sort.Slice(st.Strengths, func(i, j int) bool {
		if st.Strengths[i].Ease == st.Strengths[j].Ease {
			return st.Strengths[i].Title < st.Strengths[j].Title
		}
		return st.Strengths[i].Ease > st.Strengths[j].Ease
	})
	sort.Slice(st.NeedsWork, func(i, j int) bool {
		if st.NeedsWork[i].Ease == st.NeedsWork[j].Ease {
			return st.NeedsWork[i].Title < st.NeedsWork[j].Title
		}
		return st.NeedsWork[i].Ease < st.NeedsWork[j].Ease
	})
	if len(st.Strengths) > maxStandings {
		st.Strengths = st.Strengths[:maxStandings]
	}
	if len(st.NeedsWork) > maxStandings {
		st.NeedsWork = st.NeedsWork[:maxStandings]
	}

	if n > 0 {
		st.AvgRetention = math.Round(float64(sum)/float64(n)/MaxScore*100*10) / 10
	}
	st.NeverReviewed = max(0, reviewable-st.TotalTracked)
	return st
}
