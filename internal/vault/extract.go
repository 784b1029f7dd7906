package vault

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// MaxEncounterContent caps the combined entry text of one encounter item, in characters.
const MaxEncounterContent = 3000

const illegible = "[illegible]"

// EntryType is the shape of a captured encounter entry.
type EntryType string

const (
	EntryQuote          EntryType = "quote"
	EntryBullet         EntryType = "entry"
	EntryChapterSummary EntryType = "chapter_summary"
)

// Entry is one reviewable unit captured inside an encounter note.
type Entry struct {
	Content string    `json:"content"`
	Section string    `json:"section"`
	Type    EntryType `json:"type"`
}

// Sections whose lines are never reviewable.
var skippedSections = []string{"## Metadata", "## Action Items", "## Atomic Notes Extracted"}

// ExtractEncounterEntries scans an encounter note line by line and returns its
// quotes, bullet entries and chapter summaries, in document order.
func ExtractEncounterEntries(content string) []Entry {
	lines := strings.Split(content, "\n")
	var entries []Entry
	section := ""

	for i := 0; i < len(lines); {
		line := strings.TrimSpace(lines[i])

		if strings.HasPrefix(line, "### ") || strings.HasPrefix(line, "## ") {
			section = line
			i++
			continue
		}
		if inSkippedSection(section) || isPlaceholder(line) {
			i++
			continue
		}

		switch {
		case strings.HasPrefix(line, "> "):
			quote := []string{line}
			j := i + 1
			for j < len(lines) && strings.HasPrefix(strings.TrimSpace(lines[j]), ">") {
				quote = append(quote, strings.TrimSpace(lines[j]))
				j++
			}
			text := strings.Join(quote, "\n")
			if !strings.Contains(text, illegible) && !strings.Contains(text, "One-paragraph summary") {
				entries = append(entries, Entry{Content: text, Section: section, Type: EntryQuote})
			}
			i = j

		case strings.HasPrefix(line, "- "):
			if !strings.Contains(line, illegible) && utf8.RuneCountInString(line) > 10 {
				entries = append(entries, Entry{Content: line, Section: section, Type: EntryBullet})
			}
			i++

		case strings.HasPrefix(line, "#### "):
			summary := []string{line}
			j := i + 1
			for j < len(lines) {
				next := strings.TrimSpace(lines[j])
				if next == "" || strings.HasPrefix(next, "#") {
					break
				}
				if !strings.HasPrefix(next, "<!--") {
					summary = append(summary, next)
				}
				j++
			}
			text := strings.Join(summary, "\n")
			if !strings.Contains(text, illegible) && utf8.RuneCountInString(text) > 20 {
				entries = append(entries, Entry{Content: text, Section: section, Type: EntryChapterSummary})
			}
			i = j

		default:
			i++
		}
	}
	return entries
}

func inSkippedSection(section string) bool {
	for _, s := range skippedSections {
		if strings.HasPrefix(section, s) {
			return true
		}
	}
	return false
}

// isPlaceholder reports lines that are empty, comments, template prompts or illegible.
func isPlaceholder(line string) bool {
	switch {
	case line == "", line == "1.", line == "2.", line == "3.":
		return true
	case strings.HasPrefix(line, "<!--"):
		return true
	case strings.HasPrefix(line, ">") && strings.Contains(line, "One-paragraph summary"):
		return true
	}
	return strings.Contains(line, illegible)
}

// Card status values.
const (
	StatusSeed      = "seed"
	StatusEvergreen = "evergreen"
)

// Card is the reviewable content of an atomic note.
type Card struct {
	Title       string
	Idea        string
	Connections []string
	Origin      string
	Status      string
}

// ExtractCard pulls the "## Idea" section, connections, origin and status out
// of a card. It reports false when the idea is empty or illegible.
func ExtractCard(title, content string) (Card, bool) {
	lines := strings.Split(content, "\n")

	var idea []string
	for _, l := range sectionLines(lines, "## Idea") {
		if l != "" && !strings.HasPrefix(l, "<!--") {
			idea = append(idea, l)
		}
	}
	text := strings.TrimSpace(strings.Join(idea, " "))
	if text == "" || strings.Contains(text, illegible) {
		return Card{}, false
	}

	card := Card{Title: title, Idea: text, Status: StatusSeed}
	for _, l := range sectionLines(lines, "## Connections") {
		if strings.HasPrefix(l, "- [[") {
			card.Connections = append(card.Connections, strings.TrimSpace(strings.ReplaceAll(l, "- ", "")))
		}
	}
	for _, l := range lines {
		if strings.Contains(l, "Origin:") {
			parts := strings.Split(l, "Origin:")
			card.Origin = strings.TrimSpace(parts[len(parts)-1])
			break
		}
	}
	for _, l := range lines {
		if strings.Contains(l, "status/evergreen") {
			card.Status = StatusEvergreen
			break
		}
	}
	return card, true
}

// sectionLines returns the trimmed lines after the exact heading line up to the next "## " heading.
func sectionLines(lines []string, heading string) []string {
	var out []string
	in := false
	for _, l := range lines {
		s := strings.TrimSpace(l)
		if !in {
			in = s == heading
			continue
		}
		if strings.HasPrefix(s, "## ") {
			break
		}
		out = append(out, s)
	}
	return out
}

// ItemType identifies which tracker table an item belongs to.
type ItemType string

const (
	ItemCard      ItemType = "card"
	ItemEncounter ItemType = "encounter"
)

// Kind returns the vault folder holding items of this type.
func (t ItemType) Kind() Kind {
	if t == ItemEncounter {
		return KindEncounters
	}
	return KindCards
}

// ReviewableItem is a quizzable unit derived from one vault document.
// It is recomputed on demand and never persisted.
type ReviewableItem struct {
	Type        ItemType `json:"type"`
	Title       string   `json:"title"`
	Content     string   `json:"content"`
	Connections []string `json:"connections,omitempty"`
	Origin      string   `json:"origin,omitempty"`
	Entries     []Entry  `json:"entries,omitempty"`
	Status      string   `json:"status,omitempty"`
}

// ReviewableItems returns every card with a usable idea followed by every
// encounter with at least one entry.
func (v *Vault) ReviewableItems() ([]ReviewableItem, error) {
	var items []ReviewableItem

	cards, err := v.List(KindCards)
	if err != nil {
		return nil, err
	}
	for _, title := range cards {
		content, err := v.Read(KindCards, title)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		card, ok := ExtractCard(title, content)
		if !ok {
			continue
		}
		items = append(items, ReviewableItem{
			Type:        ItemCard,
			Title:       title,
			Content:     card.Idea,
			Connections: card.Connections,
			Origin:      card.Origin,
			Status:      card.Status,
		})
	}

	encounters, err := v.List(KindEncounters)
	if err != nil {
		return nil, err
	}
	for _, title := range encounters {
		content, err := v.Read(KindEncounters, title)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		entries := ExtractEncounterEntries(content)
		if len(entries) == 0 {
			continue
		}
		parts := make([]string, len(entries))
		for i, e := range entries {
			parts[i] = e.Content
		}
		items = append(items, ReviewableItem{
			Type:    ItemEncounter,
			Title:   title,
			Content: Truncate(strings.Join(parts, "\n"), MaxEncounterContent),
			Entries: entries,
			Status:  encounterStatus(content),
		})
	}
	return items, nil
}

func encounterStatus(content string) string {
	meta, _ := SplitFrontmatter(content)
	if meta["status"] == "done" || strings.Contains(content, "status: done") {
		return "done"
	}
	return "in-progress"
}

// Truncate returns at most n characters of s.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
