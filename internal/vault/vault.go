// Package vault reads and patches the plaintext note vault that is the
// system of record for cards, encounters and maps of content.
package vault

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

// ErrNotFound is returned when a document does not exist in the vault.
var ErrNotFound = errors.New("document not found")

// Kind is a top-level vault folder holding one kind of document.
type Kind string

const (
	KindCards      Kind = "Cards"
	KindEncounters Kind = "Encounters"
	KindAtlas      Kind = "Atlas"
)

// Vault is a folder of markdown notes.
type Vault struct {
	Root string
}

// New returns a Vault rooted at root.
func New(root string) *Vault {
	return &Vault{Root: root}
}

// File is one markdown file found by Files.
type File struct {
	RelPath string // "Folder/name.md", always slash separated
	Path    string
	ModTime time.Time
	Size    int64
}

// Document is a fully read note.
type Document struct {
	Kind    Kind
	Title   string
	Content string
}

// Dir returns the folder holding documents of kind.
func (v *Vault) Dir(kind Kind) string {
	return filepath.Join(v.Root, string(kind))
}

// Path returns the file path for the document title of kind.
func (v *Vault) Path(kind Kind, title string) string {
	return filepath.Join(v.Dir(kind), title+".md")
}

// EnsureLayout creates the vault folders the assistant writes into.
func (v *Vault) EnsureLayout() error {
	for _, d := range []string{string(KindCards), string(KindEncounters), string(KindAtlas), "copilot"} {
		p := filepath.Join(v.Root, d)
		if err := os.MkdirAll(p, 0o755); err != nil {
			return fmt.Errorf("cannot create %s: %w", p, err)
		}
	}
	return nil
}

// List returns the titles of every document of kind, sorted. A missing folder yields no titles.
func (v *Vault) List(kind Kind) ([]string, error) {
	files, err := v.Files(string(kind))
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, strings.TrimSuffix(filepath.Base(f.Path), ".md"))
	}
	return out, nil
}

// Files lists the *.md files directly inside folder (non-recursive), sorted by name.
func (v *Vault) Files(folder string) ([]File, error) {
	dir := filepath.Join(v.Root, folder)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("cannot read %s: %w", dir, err)
	}

	var out []File
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}
		out = append(out, File{
			RelPath: folder + "/" + e.Name(),
			Path:    filepath.Join(dir, e.Name()),
			ModTime: info.ModTime(),
			Size:    info.Size(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RelPath < out[j].RelPath })
	return out, nil
}

// Read returns the content of the document title of kind.
func (v *Vault) Read(kind Kind, title string) (string, error) {
	b, err := os.ReadFile(v.Path(kind, title))
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%s %q: %w", kind, title, ErrNotFound)
		}
		return "", fmt.Errorf("cannot read %s %q: %w", kind, title, err)
	}
	return string(b), nil
}

// Documents reads every document of the given kinds.
func (v *Vault) Documents(kinds ...Kind) ([]Document, error) {
	var out []Document
	for _, k := range kinds {
		titles, err := v.List(k)
		if err != nil {
			return nil, err
		}
		for _, t := range titles {
			content, err := v.Read(k, t)
			if err != nil {
				if errors.Is(err, ErrNotFound) {
					continue
				}
				return nil, err
			}
			out = append(out, Document{Kind: k, Title: t, Content: content})
		}
	}
	return out, nil
}

var updatedRe = regexp.MustCompile(`updated: .+`)

// AppendSection inserts markdown at the end of the section named heading
// (e.g. "## Connections"), creating the section at the end of the document
// when it is missing, and bumps the first "updated:" field to now.
func (v *Vault) AppendSection(kind Kind, title, heading, markdown string, now time.Time) error {
	path := v.Path(kind, title)
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s %q: %w", kind, title, ErrNotFound)
		}
		return fmt.Errorf("cannot read %s: %w", path, err)
	}

	lines := strings.Split(string(b), "\n")
	start, end := sectionRange(lines, heading)
	if start == -1 {
		for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
			lines = lines[:len(lines)-1]
		}
		lines = append(lines, "", heading)
		start, end = len(lines)-1, len(lines)
	}

	insertAt := start + 1
	for i := end - 1; i > start; i-- {
		if strings.TrimSpace(lines[i]) != "" {
			insertAt = i + 1
			break
		}
	}

	block := append([]string{""}, strings.Split(strings.TrimRight(markdown, "\n"), "\n")...)
	block = append(block, "")
	out := make([]string, 0, len(lines)+len(block))
	out = append(out, lines[:insertAt]...)
	out = append(out, block...)
	out = append(out, lines[insertAt:]...)

	return writeStamped(path, out, now)
}

// writeStamped joins lines, sets the first "updated:" field to now and
// writes the result to path.
func writeStamped(path string, lines []string, now time.Time) error {
	content := strings.Join(lines, "\n")
	stamp := "updated: " + now.Format("2006-01-02 15:04")
	replaced := false
	content = updatedRe.ReplaceAllStringFunc(content, func(s string) string {
		if replaced {
			return s
		}
		replaced = true
		return stamp
	})

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("cannot write %s: %w", path, err)
	}
	return nil
}

// sectionRange returns [start, end) of the section whose heading line equals
// heading (case-insensitive). The section ends at the next heading of the same
// or a higher level.
func sectionRange(lines []string, heading string) (int, int) {
	want := strings.ToLower(strings.TrimSpace(heading))
	level := headingLevel(want)
	start := -1
	for i, l := range lines {
		if strings.ToLower(strings.TrimSpace(l)) == want {
			start = i
			break
		}
	}
	if start == -1 {
		return -1, -1
	}
	for i := start + 1; i < len(lines); i++ {
		if lv := headingLevel(strings.TrimSpace(lines[i])); lv > 0 && lv <= level {
			return start, i
		}
	}
	return start, len(lines)
}

func headingLevel(line string) int {
	n := 0
	for n < len(line) && line[n] == '#' {
		n++
	}
	if n == 0 || n > 6 || n == len(line) || line[n] != ' ' {
		return 0
	}
	return n
}
