package review

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rualca/librarian-agent/internal/vault"
)

func TestSelectDue(t *testing.T) {
	items := []vault.ReviewableItem{
		{Type: vault.ItemCard, Title: "future"},
		{Type: vault.ItemCard, Title: "overdue"},
		{Type: vault.ItemEncounter, Title: "new"},
	}
	s := NewState()
	s.Cards["future"] = &Record{NextReview: "2025-06-11", EaseFactor: 2.5}
	s.Cards["overdue"] = &Record{NextReview: "2025-05-31", EaseFactor: 2.1}

	due := SelectDue(items, s, "2025-06-01")
	require.Len(t, due, 2)
	assert.Equal(t, "new", due[0].Title)
	assert.True(t, due[0].NeverReviewed)
	assert.Equal(t, PriorityNew, due[0].Priority)
	assert.Equal(t, "overdue", due[1].Title)
	assert.Equal(t, PriorityOverdue, due[1].Priority)
	assert.Equal(t, 2.1, due[1].EaseFactor)
}

func TestSelectDue_OrdersByEaseWithinPriority(t *testing.T) {
	items := []vault.ReviewableItem{
		{Type: vault.ItemCard, Title: "easy"},
		{Type: vault.ItemCard, Title: "hard"},
		{Type: vault.ItemCard, Title: "today"},
		{Type: vault.ItemCard, Title: "no-date"},
	}
	s := NewState()
	s.Cards["easy"] = &Record{NextReview: "2025-01-01", EaseFactor: 2.9}
	s.Cards["hard"] = &Record{NextReview: "2025-01-01", EaseFactor: 1.4}
	s.Cards["today"] = &Record{NextReview: "2025-06-01", EaseFactor: 2.0}
	s.Cards["no-date"] = &Record{EaseFactor: 1.3}

	due := SelectDue(items, s, "2025-06-01")
	var titles []string
	for _, d := range due {
		titles = append(titles, d.Title)
	}
	assert.Equal(t, []string{"hard", "today", "easy"}, titles)
}

func TestSelectDue_SameTitleDifferentType(t *testing.T) {
	items := []vault.ReviewableItem{{Type: vault.ItemEncounter, Title: "X"}}
	s := NewState()
	s.Cards["X"] = &Record{NextReview: "2099-01-01", EaseFactor: 2.5}

	due := SelectDue(items, s, "2025-06-01")
	require.Len(t, due, 1)
	assert.True(t, due[0].NeverReviewed)
}
