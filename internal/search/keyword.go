package search

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/rualca/librarian-agent/internal/vault"
)

const (
	snippetLead   = 50
	snippetLength = 150
	titleWeight   = 5
)

var (
	pageRe  = regexp.MustCompile(`(?i)p\.(\d+|[a-z]+)`)
	spaceRe = regexp.MustCompile(`\s+`)
)

// KeywordSearch matches documents by case-insensitive keywords over title and
// content. All query tokens must match (AND semantics). Results are ranked by
// token occurrences, with title hits weighted higher.
func KeywordSearch(docs []vault.Document, query string, limit int) []Result {
	tokens := tokenize(query)
	if len(tokens) == 0 {
		return []Result{}
	}
	phrase := strings.Join(tokens, " ")

	var out []Result
	for _, d := range docs {
		title := strings.ToLower(d.Title)
		body := vault.StripFrontmatter(d.Content)
		lower := strings.ToLower(body)

		score := 0
		ok := true
		for _, tok := range tokens {
			inTitle := strings.Contains(title, tok)
			n := strings.Count(lower, tok)
			if !inTitle && n == 0 {
				ok = false
				break
			}
			score += n
			if inTitle {
				score += titleWeight
			}
		}
		if !ok {
			continue
		}

		r := Result{
			Kind:    d.Kind,
			Title:   d.Title,
			Snippet: extractSnippet(body, phrase),
			Score:   float64(score),
			Why:     "keyword",
		}
		if d.Kind == vault.KindEncounters {
			r.Pages = findPageReferences(body, phrase)
		}
		out = append(out, r)
	}

	SortResults(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func tokenize(q string) []string {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil
	}
	parts := strings.Fields(q)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

// extractSnippet returns the text around the first occurrence of phrase, or
// the first non-heading line when the phrase does not occur verbatim.
func extractSnippet(body, phrase string) string {
	rs := []rune(body)
	i := foldIndex(rs, []rune(phrase))
	if i < 0 {
		for _, line := range strings.Split(body, "\n") {
			line = strings.TrimSpace(line)
			if line != "" && !strings.HasPrefix(line, "#") {
				return vault.Truncate(line, snippetLength)
			}
		}
		return vault.Truncate(strings.TrimSpace(body), snippetLength)
	}

	start := max(0, i-snippetLead)
	end := min(len(rs), i+snippetLength)
	s := spaceRe.ReplaceAllString(strings.TrimSpace(string(rs[start:end])), " ")
	if start > 0 {
		s = "..." + s
	}
	if end < len(rs) {
		s += "..."
	}
	return s
}

// foldIndex returns the rune offset of the first case-insensitive match of
// q in s, or -1.
func foldIndex(s, q []rune) int {
	if len(q) == 0 || len(q) > len(s) {
		return -1
	}
	needle := string(q)
	for i := 0; i+len(q) <= len(s); i++ {
		if strings.EqualFold(string(s[i:i+len(q)]), needle) {
			return i
		}
	}
	return -1
}

// findPageReferences collects distinct page markers such as "p.47" from the
// lines containing phrase, numeric pages in ascending order first.
func findPageReferences(body, phrase string) []string {
	seen := map[string]bool{}
	var pages []string
	for _, line := range strings.Split(body, "\n") {
		if !strings.Contains(strings.ToLower(line), phrase) {
			continue
		}
		for _, m := range pageRe.FindAllStringSubmatch(line, -1) {
			if !seen[m[1]] {
				seen[m[1]] = true
				pages = append(pages, m[1])
			}
		}
	}
	sort.SliceStable(pages, func(i, j int) bool {
		a, errA := strconv.Atoi(pages[i])
		b, errB := strconv.Atoi(pages[j])
		switch {
		case errA == nil && errB == nil:
			return a < b
		case errA != nil && errB != nil:
			return pages[i] < pages[j]
		default:
			return errA == nil
		}
	})
	return pages
}
