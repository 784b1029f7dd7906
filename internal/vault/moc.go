package vault

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"
)

const (
	mocPrefix      = "MOC - "
	contextHeading = "## Context"
	relatedPrefix  = "- Related to:"
)

// mocKeywords maps words found in a card to the maps of content it likely
// belongs to. English and Spanish forms are both listed.
var mocKeywords = map[string][]string{
	"productividad": {"Productivity"},
	"productivity":  {"Productivity"},
	"trabajo":       {"Productivity", "Development"},
	"work":          {"Productivity"},
	"liderazgo":     {"Leadership"},
	"leadership":    {"Leadership"},
	"gestión":       {"Leadership", "Business"},
	"management":    {"Leadership", "Business"},
	"negocio":       {"Business"},
	"business":      {"Business"},
	"desarrollo":    {"Development"},
	"development":   {"Development"},
	"programming":   {"Development"},
	"código":        {"Development"},
	"code":          {"Development"},
	"finanzas":      {"Finance"},
	"finance":       {"Finance"},
	"money":         {"Finance"},
	"salud":         {"Health"},
	"health":        {"Health"},
	"bienestar":     {"Health"},
	"tecnología":    {"Development"},
	"technology":    {"Development"},
	"tech":          {"Development"},
	"equipo":        {"Leadership"},
	"team":          {"Leadership"},
	"personas":      {"People"},
	"people":        {"People"},
	"arquitectura":  {"Development"},
	"architecture":  {"Development"},
	"estrategia":    {"Business", "Leadership"},
	"strategy":      {"Business", "Leadership"},
}

// Orphan is a card that links to no map of content.
type Orphan struct {
	Title   string
	Snippet string
	Path    string
}

// MOCs returns the names of the maps of content in Atlas/, without the
// "MOC - " prefix, sorted.
func (v *Vault) MOCs() ([]string, error) {
	titles, err := v.List(KindAtlas)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, t := range titles {
		if name, ok := strings.CutPrefix(t, mocPrefix); ok {
			out = append(out, name)
		}
	}
	return out, nil
}

// MOCLink returns the wiki link to the map of content name.
func MOCLink(name string) string {
	return "[[" + mocPrefix + name + "]]"
}

// OrphanCards returns the cards that link to none of the existing maps of
// content. With no maps of content every card is an orphan.
func (v *Vault) OrphanCards() ([]Orphan, error) {
	mocs, err := v.MOCs()
	if err != nil {
		return nil, err
	}
	docs, err := v.Documents(KindCards)
	if err != nil {
		return nil, err
	}

	var out []Orphan
	for _, d := range docs {
		if linksAnyMOC(d.Content, mocs) {
			continue
		}
		out = append(out, Orphan{
			Title:   d.Title,
			Snippet: firstTextLine(StripFrontmatter(d.Content), 100),
			Path:    v.Path(KindCards, d.Title),
		})
	}
	return out, nil
}

func linksAnyMOC(content string, mocs []string) bool {
	for _, m := range mocs {
		if strings.Contains(content, "[["+mocPrefix+m) {
			return true
		}
	}
	return false
}

// firstTextLine returns the first line that is not blank, a heading or a
// front-matter fence, cut to n characters.
func firstTextLine(content string, n int) string {
	for _, l := range strings.Split(content, "\n") {
		if strings.TrimSpace(l) == "" || strings.HasPrefix(l, "#") || strings.HasPrefix(l, "---") {
			continue
		}
		return Truncate(strings.TrimSpace(l), n)
	}
	return ""
}

// SuggestMOCs returns the existing maps of content whose keywords appear in
// the card title or content, sorted.
func (v *Vault) SuggestMOCs(title, content string) ([]string, error) {
	existing, err := v.MOCs()
	if err != nil {
		return nil, err
	}
	have := make(map[string]bool, len(existing))
	for _, m := range existing {
		have[m] = true
	}

	text := strings.ToLower(title + " " + content)
	seen := map[string]bool{}
	var out []string
	for kw, mocs := range mocKeywords {
		if !strings.Contains(text, kw) {
			continue
		}
		for _, m := range mocs {
			if have[m] && !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

// LinkToMOC records links to mocs on the card's "- Related to:" line under
// "## Context". Links already present are not repeated; the line and the
// section are created when missing. It reports whether the card changed.
func (v *Vault) LinkToMOC(title string, mocs []string, now time.Time) (bool, error) {
	path := v.Path(KindCards, title)
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, fmt.Errorf("%s %q: %w", KindCards, title, ErrNotFound)
		}
		return false, fmt.Errorf("cannot read %s: %w", path, err)
	}

	lines := strings.Split(string(b), "\n")
	start, end := sectionRange(lines, contextHeading)
	related := -1
	for i := start + 1; start != -1 && i < end; i++ {
		if strings.HasPrefix(strings.TrimSpace(lines[i]), relatedPrefix) {
			related = i
			break
		}
	}

	existing := ""
	if related != -1 {
		existing = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(lines[related]), relatedPrefix))
	}
	var links []string
	for _, m := range mocs {
		if l := MOCLink(m); !strings.Contains(existing, l) {
			links = append(links, l)
		}
	}
	if len(links) == 0 {
		return false, nil
	}

	if related == -1 {
		line := relatedPrefix + " " + strings.Join(links, ", ")
		if err := v.AppendSection(KindCards, title, contextHeading, line, now); err != nil {
			return false, err
		}
		return true, nil
	}
	if existing != "" {
		links = append([]string{existing}, links...)
	}
	lines[related] = relatedPrefix + " " + strings.Join(links, ", ")
	if err := writeStamped(path, lines, now); err != nil {
		return false, err
	}
	return true, nil
}
