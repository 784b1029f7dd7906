package vault

import (
	"sort"
	"strings"
	"unicode"

	"github.com/agext/levenshtein"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MinSimilarity is the lowest similarity accepted as a direct title match.
const MinSimilarity = 0.6

const maxSuggestions = 5

// Match is the outcome of resolving a user-typed title against known titles.
// Title is empty when nothing matched; Suggestions may then hold near misses.
type Match struct {
	Title       string
	Suggestions []string
}

// Found reports whether the query resolved to a single title.
func (m Match) Found() bool { return m.Title != "" }

// MatchTitle resolves query against candidates: exact match after
// normalization, then substring in either direction, then the most similar
// candidate scoring at least MinSimilarity. When all fail it returns up to
// five suggestions ranked by shared words.
func MatchTitle(query string, candidates []string) Match {
	q := normalizeTitle(query)
	if q == "" || len(candidates) == 0 {
		return Match{}
	}

	normed := make([]string, len(candidates))
	for i, c := range candidates {
		normed[i] = normalizeTitle(c)
		if normed[i] == q {
			return Match{Title: c}
		}
	}

	for i, c := range candidates {
		n := normed[i]
		if n == "" {
			continue
		}
		if strings.Contains(n, q) || strings.Contains(q, n) {
			return Match{Title: c}
		}
	}

	best, bestScore := -1, 0.0
	for i := range candidates {
		if s := levenshtein.Similarity(q, normed[i], nil); s > bestScore {
			best, bestScore = i, s
		}
	}
	if best >= 0 && bestScore >= MinSimilarity {
		return Match{Title: candidates[best]}
	}

	return Match{Suggestions: suggest(q, candidates, normed)}
}

type overlap struct {
	title string
	n     int
}

func suggest(q string, candidates, normed []string) []string {
	words := make(map[string]bool)
	for _, w := range strings.Fields(q) {
		words[w] = true
	}

	var scored []overlap
	for i, c := range candidates {
		n := 0
		seen := make(map[string]bool)
		for _, w := range strings.Fields(normed[i]) {
			if words[w] && !seen[w] {
				seen[w] = true
				n++
			}
		}
		if n > 0 {
			scored = append(scored, overlap{title: c, n: n})
		}
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].n == scored[j].n {
			return scored[i].title < scored[j].title
		}
		return scored[i].n > scored[j].n
	})
	if len(scored) > maxSuggestions {
		scored = scored[:maxSuggestions]
	}
	out := make([]string, len(scored))
	for i, s := range scored {
		out[i] = s.title
	}
	return out
}

// normalizeTitle folds case, strips accents and collapses whitespace.
func normalizeTitle(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	return strings.Join(strings.Fields(cases.Fold().String(stripped)), " ")
}
