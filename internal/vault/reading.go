package vault

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

const bookmarksHeading = "## Bookmarks"

var (
	finishedRe = regexp.MustCompile(`\*\*Finished\*\*:\s*(.+)`)
	authorRe   = regexp.MustCompile(`\*\*Author\*\*:\s*(.+)`)
)

// Book is one encounter as shown on the reading dashboard.
type Book struct {
	Title    string `json:"title"`
	Author   string `json:"author,omitempty"`
	Status   string `json:"status"`
	Rating   int    `json:"rating,omitempty"`
	Entries  int    `json:"entries"`
	Updated  string `json:"updated,omitempty"`
	Finished string `json:"finished,omitempty"`
}

// ReadingDashboard lists every encounter with its reading status, most
// recently updated first.
func (v *Vault) ReadingDashboard() ([]Book, error) {
	docs, err := v.Documents(KindEncounters)
	if err != nil {
		return nil, err
	}

	books := make([]Book, 0, len(docs))
	for _, d := range docs {
		books = append(books, parseBook(d.Title, d.Content))
	}
	sort.SliceStable(books, func(i, j int) bool { return books[i].Updated > books[j].Updated })
	return books, nil
}

func parseBook(title, content string) Book {
	meta, _ := SplitFrontmatter(content)
	b := Book{
		Title:   title,
		Author:  strings.Trim(strings.TrimSpace(meta["author"]), `"`),
		Status:  meta["status"],
		Updated: meta["updated"],
		Entries: CountBookmarks(content),
	}
	if b.Status == "" {
		b.Status = "in-progress"
	}
	b.Rating, _ = strconv.Atoi(meta["rating"])
	if m := finishedRe.FindStringSubmatch(content); m != nil {
		b.Finished = strings.TrimSpace(m[1])
	}
	if b.Author == "" {
		if m := authorRe.FindStringSubmatch(content); m != nil {
			b.Author = strings.TrimSpace(m[1])
		}
	}
	return b
}

// CountBookmarks counts the non-empty lines filed under a level-3 heading
// inside the "## Bookmarks" section of an encounter.
func CountBookmarks(content string) int {
	lines := strings.Split(content, "\n")
	start, end := sectionRange(lines, bookmarksHeading)
	if start == -1 {
		return 0
	}
	n := 0
	inSub := false
	for _, l := range lines[start+1 : end] {
		l = strings.TrimSpace(l)
		switch {
		case l == "":
		case strings.HasPrefix(l, "#"):
			inSub = strings.HasPrefix(l, "###")
		case inSub:
			n++
		}
	}
	return n
}
