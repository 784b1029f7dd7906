package review

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rualca/librarian-agent/internal/vault"
)

func TestComputeStats(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.Local)
	s := NewState()
	s.Cards["strong"] = &Record{LastReviewed: "2025-06-01", NextReview: "2025-06-02", EaseFactor: 2.7,
		History: []HistoryEntry{{Date: "2025-06-01", Score: 5}}}
	s.Cards["weak"] = &Record{LastReviewed: "2025-05-30", NextReview: "2025-05-31", EaseFactor: 1.5,
		History: []HistoryEntry{{Date: "2025-05-30", Score: 1}, {Date: "2025-05-29", Score: 2}}}
	s.Encounters["book"] = &Record{LastReviewed: "2025-05-28", NextReview: "2025-06-05", EaseFactor: 2.2,
		History: []HistoryEntry{{Date: "2025-05-28", Score: 4}}}
	s.Encounters["later"] = &Record{NextReview: "2025-07-01", EaseFactor: 2.5}

	st := ComputeStats(s, 6, now)
	assert.Equal(t, 4, st.TotalTracked)
	assert.Equal(t, 6, st.TotalReviewable)
	assert.Equal(t, 2, st.NeverReviewed)
	assert.Equal(t, 1, st.ReviewedToday)
	assert.Equal(t, 1, st.DueCount)
	assert.Equal(t, 1, st.UpcomingTomorrow)
	assert.Equal(t, 1, st.UpcomingWeek)
	assert.Equal(t, 60.0, st.AvgRetention)

	require.Len(t, st.Strengths, 2)
	assert.Equal(t, "strong", st.Strengths[0].Title)
	assert.Equal(t, Standing{Title: "later", Type: vault.ItemEncounter, Ease: 2.5}, st.Strengths[1])
	require.Len(t, st.NeedsWork, 1)
	assert.Equal(t, "weak", st.NeedsWork[0].Title)
}

func TestComputeStats_Empty(t *testing.T) {
	st := ComputeStats(NewState(), 0, time.Now())
	assert.Zero(t, st.TotalTracked)
	assert.Zero(t, st.AvgRetention)
	assert.Empty(t, st.Strengths)
}
