package vault

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchTitle(t *testing.T) {
	titles := []string{"Hábitos Atómicos", "Deep Work", "Thinking, Fast and Slow", "The Pragmatic Programmer"}

	cases := []struct {
		name  string
		query string
		want  string
	}{
		{"exact ignoring accents and case", "habitos atomicos", "Hábitos Atómicos"},
		{"extra whitespace", "  deep   work ", "Deep Work"},
		{"substring", "pragmatic", "The Pragmatic Programmer"},
		{"query contains title", "notes on deep work", "Deep Work"},
		{"misspelling", "Thinkng, Fast and Slwo", "Thinking, Fast and Slow"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := MatchTitle(tc.query, titles)
			assert.True(t, m.Found())
			assert.Equal(t, tc.want, m.Title)
			assert.Empty(t, m.Suggestions)
		})
	}
}

func TestMatchTitle_Unrelated(t *testing.T) {
	m := MatchTitle("quantum chromodynamics", []string{"Deep Work", "Atomic Habits"})
	assert.False(t, m.Found())
	assert.Empty(t, m.Suggestions)
}

func TestMatchTitle_WordOverlapSuggestions(t *testing.T) {
	m := MatchTitle("work habits productivity", []string{"Deep Work", "Atomic Habits", "Cooking"})
	assert.False(t, m.Found())
	assert.Equal(t, []string{"Atomic Habits", "Deep Work"}, m.Suggestions)
}

func TestMatchTitle_Empty(t *testing.T) {
	assert.False(t, MatchTitle("", []string{"A"}).Found())
	assert.False(t, MatchTitle("a", nil).Found())
}
