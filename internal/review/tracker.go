package review

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/rualca/librarian-agent/internal/fsutil"
	"github.com/rualca/librarian-agent/internal/logger"
	"github.com/rualca/librarian-agent/internal/vault"
)

// ErrInvalidScore is returned for review scores outside [0,5].
var ErrInvalidScore = errors.New("score must be between 0 and 5")

const (
	// CurrentVersion is the tracker document schema version written by Save.
	CurrentVersion = 1
	// MaxHistory bounds the per-item history; the oldest entries are evicted.
	MaxHistory = 50

	dateLayout  = "2006-01-02"
	lockTimeout = 10 * time.Second
)

// HistoryEntry is one recorded review.
type HistoryEntry struct {
	Date  string `json:"date"`
	Score int    `json:"score"`
}

// Record is the persisted review state of one item. Dates are YYYY-MM-DD.
type Record struct {
	LastReviewed string         `json:"last_reviewed,omitempty"`
	NextReview   string         `json:"next_review,omitempty"`
	EaseFactor   float64        `json:"ease_factor"`
	IntervalDays int            `json:"interval_days"`
	Repetitions  int            `json:"repetitions"`
	History      []HistoryEntry `json:"history"`
}

func newRecord() *Record {
	return &Record{EaseFactor: DefaultEase, History: []HistoryEntry{}}
}

// State is the whole tracker document.
type State struct {
	Version    int                `json:"version"`
	Cards      map[string]*Record `json:"cards"`
	Encounters map[string]*Record `json:"encounters"`
}

// NewState returns an empty document at the current schema version.
func NewState() *State {
	return &State{
		Version:    CurrentVersion,
		Cards:      map[string]*Record{},
		Encounters: map[string]*Record{},
	}
}

// Table returns the records for items of type t.
func (s *State) Table(t vault.ItemType) map[string]*Record {
	if t == vault.ItemEncounter {
		return s.Encounters
	}
	return s.Cards
}

// Lookup returns the record for (t, title), if any.
func (s *State) Lookup(t vault.ItemType, title string) (*Record, bool) {
	r, ok := s.Table(t)[title]
	return r, ok && r != nil
}

// Tracker persists review state as one JSON document. Reads never fail:
// a missing or corrupt document is treated as empty.
//
// RecordReview rewrites the whole document, so writers are serialized by an
// in-process mutex and a lock file next to the document.
type Tracker struct {
	path string
	log  *slog.Logger
	now  func() time.Time
	mu   sync.Mutex
}

// NewTracker returns a tracker backed by the JSON document at path.
func NewTracker(path string, log *slog.Logger) *Tracker {
	return &Tracker{path: path, log: logger.OrNop(log), now: time.Now}
}

// Path returns the tracker document location.
func (t *Tracker) Path() string { return t.path }

// Today returns the tracker's current date as YYYY-MM-DD.
func (t *Tracker) Today() string { return t.now().Format(dateLayout) }

// Load reads the tracker document, migrating older schema versions.
func (t *Tracker) Load() *State {
	b, err := os.ReadFile(t.path)
	if err != nil {
		if !os.IsNotExist(err) {
			t.log.Warn("review tracker unreadable, starting fresh", "path", t.path, "error", err)
		}
		return NewState()
	}

	var s State
	if err := json.Unmarshal(b, &s); err != nil {
		t.log.Warn("review tracker corrupted, starting fresh", "path", t.path, "error", err)
		return NewState()
	}
	if s.Version > CurrentVersion {
		t.log.Warn("review tracker written by a newer version", "path", t.path, "version", s.Version)
	}
	if s.Version < CurrentVersion {
		t.log.Info("migrating review tracker", "path", t.path, "from", s.Version, "to", CurrentVersion)
	}
	migrate(&s)
	return &s
}

// migrate upgrades a decoded document in place to CurrentVersion.
// v0 documents have no version field and may carry unrounded or missing ease factors.
func migrate(s *State) {
	if s.Cards == nil {
		s.Cards = map[string]*Record{}
	}
	if s.Encounters == nil {
		s.Encounters = map[string]*Record{}
	}
	for _, table := range []map[string]*Record{s.Cards, s.Encounters} {
		for title, r := range table {
			if r == nil {
				delete(table, title)
				continue
			}
			if r.EaseFactor == 0 {
				r.EaseFactor = DefaultEase
			}
			r.EaseFactor = roundEase(max(MinEase, r.EaseFactor))
			if r.History == nil {
				r.History = []HistoryEntry{}
			}
			if len(r.History) > MaxHistory {
				r.History = r.History[len(r.History)-MaxHistory:]
			}
		}
	}
	if s.Version < CurrentVersion {
		s.Version = CurrentVersion
	}
}

// Save writes s to disk through a temp file and rename.
func (t *Tracker) Save(s *State) error {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot encode review tracker: %w", err)
	}
	if err := fsutil.WriteFileAtomic(t.path, b, 0o644); err != nil {
		return fmt.Errorf("cannot save review tracker: %w", err)
	}
	return nil
}

// RecordReview applies one SM-2 step for the item and persists it. The item is
// created with default values on its first review.
func (t *Tracker) RecordReview(ctx context.Context, itemType vault.ItemType, title string, score int) (Record, error) {
	if score < 0 || score > MaxScore {
		return Record{}, fmt.Errorf("%w: got %d", ErrInvalidScore, score)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	release, err := fsutil.AcquireLock(ctx, t.path+".lock", lockTimeout)
	if err != nil {
		return Record{}, err
	}
	defer release()

	s := t.Load()
	table := s.Table(itemType)
	r, ok := table[title]
	if !ok || r == nil {
		r = newRecord()
	}

	reps, ease, interval := SM2(score, r.Repetitions, r.EaseFactor, r.IntervalDays)

	now := t.now()
	today := now.Format(dateLayout)
	r.LastReviewed = today
	r.NextReview = now.AddDate(0, 0, interval).Format(dateLayout)
	r.EaseFactor = roundEase(ease)
	r.IntervalDays = interval
	r.Repetitions = reps
	r.History = append(r.History, HistoryEntry{Date: today, Score: score})
	if len(r.History) > MaxHistory {
		r.History = r.History[len(r.History)-MaxHistory:]
	}
	table[title] = r

	if err := t.Save(s); err != nil {
		return Record{}, err
	}
	t.log.Debug("review recorded", "type", itemType, "title", title, "score", score, "next_review", r.NextReview)
	return *r, nil
}
