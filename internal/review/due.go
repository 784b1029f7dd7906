package review

import (
	"sort"

	"github.com/rualca/librarian-agent/internal/vault"
)

// Due priorities; lower sorts first.
const (
	PriorityNew     = 0
	PriorityOverdue = 1
)

// noNextReview sorts after any real date, so records without one are never due.
const noNextReview = "9999-99-99"

// DueItem is a reviewable item selected for review.
type DueItem struct {
	vault.ReviewableItem
	Priority      int     `json:"priority"`
	NeverReviewed bool    `json:"never_reviewed"`
	EaseFactor    float64 `json:"ease_factor"`
}

// SelectDue returns the items that are due on today (YYYY-MM-DD): items never
// reviewed first, then items whose next review has passed, each group ordered
// by ease factor so harder items come first.
func SelectDue(items []vault.ReviewableItem, s *State, today string) []DueItem {
	var due []DueItem
	for _, it := range items {
		r, ok := s.Lookup(it.Type, it.Title)
		if !ok {
			due = append(due, DueItem{ReviewableItem: it, Priority: PriorityNew, NeverReviewed: true, EaseFactor: DefaultEase})
			continue
		}
		next := r.NextReview
		if next == "" {
			next = noNextReview
		}
		if next <= today {
			due = append(due, DueItem{ReviewableItem: it, Priority: PriorityOverdue, EaseFactor: r.EaseFactor})
		}
	}

	sort.SliceStable(due, func(i, j int) bool {
		if due[i].Priority != due[j].Priority {
			return due[i].Priority < due[j].Priority
		}
		return due[i].EaseFactor < due[j].EaseFactor
	})
	return due
}
