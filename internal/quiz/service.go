package quiz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rualca/librarian-agent/internal/logger"
	"github.com/rualca/librarian-agent/internal/review"
	"github.com/rualca/librarian-agent/internal/vault"
)

// Mode selects how a quiz picks its questions.
type Mode string

const (
	// ModeDue asks one question about each of the most urgent due items.
	ModeDue Mode = "due"
	// ModeExam asks a deep set of questions about a single item.
	ModeExam Mode = "exam"
	// ModeConnections asks how randomly paired items relate.
	ModeConnections Mode = "connections"
)

// Default question counts.
const (
	DefaultCount = 3
	DeepCount    = 8
)

var examHints = []QuestionType{TypeRecall, TypeApplication, TypeSynthesis, TypeContrast, TypeTrueFalse}

// NotFoundError reports a title that matched no reviewable item.
type NotFoundError struct {
	Query       string
	Suggestions []string
}

func (e *NotFoundError) Error() string {
	if len(e.Suggestions) == 0 {
		return fmt.Sprintf("%q not found", e.Query)
	}
	return fmt.Sprintf("%q not found, did you mean: %s", e.Query, strings.Join(e.Suggestions, ", "))
}

// Unwrap lets errors.Is match vault.ErrNotFound.
func (e *NotFoundError) Unwrap() error { return vault.ErrNotFound }

// StartOptions selects the quiz to start. Title is optional in ModeDue and
// ModeExam; an empty Title picks the most urgent due item.
type StartOptions struct {
	Mode  Mode
	Title string
	Count int
}

// ServiceOptions sets the question counts used when StartOptions.Count is zero.
type ServiceOptions struct {
	DefaultCount int
	DeepCount    int
}

// AnswerResult is the outcome of answering or skipping one question.
type AnswerResult struct {
	Question   Question
	Evaluation Evaluation
	Skipped    bool
	// Record is the updated tracker record, nil when nothing was recorded.
	Record *review.Record
	// Next is the following question, nil when the session finished.
	Next    *Question
	Summary *Summary
}

// Service runs quizzes: it picks items, generates questions, holds sessions
// and records real answers in the review tracker.
type Service struct {
	vault   *vault.Vault
	tracker *review.Tracker
	gen     *Generator
	store   SessionStore
	opts    ServiceOptions
	log     *slog.Logger
	now     func() time.Time
}

// NewService wires a quiz service.
func NewService(v *vault.Vault, tr *review.Tracker, gen *Generator, store SessionStore, opts ServiceOptions, log *slog.Logger) *Service {
	if opts.DefaultCount <= 0 {
		opts.DefaultCount = DefaultCount
	}
	if opts.DeepCount <= 0 {
		opts.DeepCount = DeepCount
	}
	return &Service{
		vault:   v,
		tracker: tr,
		gen:     gen,
		store:   store,
		opts:    opts,
		log:     logger.OrNop(log),
		now:     time.Now,
	}
}

// Start generates questions and replaces the user's session with a new one.
// When generation yields nothing, the existing session is left untouched and
// ErrNoQuestions is returned.
func (s *Service) Start(ctx context.Context, userID int64, opts StartOptions) (*Session, error) {
	if opts.Mode == "" {
		opts.Mode = ModeDue
	}
	items, err := s.vault.ReviewableItems()
	if err != nil {
		return nil, err
	}

	var qs []Question
	switch opts.Mode {
	case ModeConnections:
		qs = s.gen.GenerateConnections(ctx, items, s.count(opts, s.opts.DefaultCount))
	case ModeExam:
		item, err := s.pick(items, opts.Title)
		if err != nil {
			return nil, err
		}
		qs = s.gen.Generate(ctx, item.Content, item.Title, string(item.Type), s.count(opts, s.opts.DeepCount), examHints...)
	case ModeDue:
		if opts.Title != "" {
			item, err := s.pick(items, opts.Title)
			if err != nil {
				return nil, err
			}
			qs = s.gen.Generate(ctx, item.Content, item.Title, string(item.Type), s.count(opts, s.opts.DefaultCount))
			break
		}
		qs, err = s.dueQuestions(ctx, items, s.count(opts, s.opts.DefaultCount))
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown quiz mode %q", opts.Mode)
	}

	sess, err := NewSession(userID, opts.Mode, qs, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.store.Put(ctx, sess); err != nil {
		return nil, err
	}
	s.log.Info("quiz started", "user", userID, "mode", opts.Mode, "questions", sess.Len(), "session", sess.ID)
	return sess, nil
}

func (s *Service) count(opts StartOptions, def int) int {
	if opts.Count > 0 {
		return opts.Count
	}
	return def
}

// pick resolves title among items, or returns the most urgent due item when
// title is empty.
func (s *Service) pick(items []vault.ReviewableItem, title string) (vault.ReviewableItem, error) {
	if title == "" {
		due := review.SelectDue(items, s.tracker.Load(), s.tracker.Today())
		if len(due) == 0 {
			return vault.ReviewableItem{}, ErrNothingDue
		}
		return due[0].ReviewableItem, nil
	}

	titles := make([]string, len(items))
	for i, it := range items {
		titles[i] = it.Title
	}
	m := vault.MatchTitle(title, titles)
	if !m.Found() {
		return vault.ReviewableItem{}, &NotFoundError{Query: title, Suggestions: m.Suggestions}
	}
	for _, it := range items {
		if it.Title == m.Title {
			return it, nil
		}
	}
	return vault.ReviewableItem{}, &NotFoundError{Query: title}
}

// dueQuestions asks one question per due item, most urgent first. Items
// whose generation fails are skipped.
func (s *Service) dueQuestions(ctx context.Context, items []vault.ReviewableItem, count int) ([]Question, error) {
	due := review.SelectDue(items, s.tracker.Load(), s.tracker.Today())
	if len(due) == 0 {
		return nil, ErrNothingDue
	}
	var qs []Question
	for _, d := range due {
		if len(qs) >= count {
			break
		}
		qs = append(qs, s.gen.Generate(ctx, d.Content, d.Title, string(d.Type), 1)...)
	}
	return qs, nil
}

// Current returns the question the user has to answer next.
func (s *Service) Current(ctx context.Context, userID int64) (*Session, Question, error) {
	sess, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, Question{}, err
	}
	q, ok := sess.Current()
	if !ok {
		return sess, Question{}, ErrSessionComplete
	}
	return sess, q, nil
}

// Answer grades text against the user's current question and records the
// score in the tracker. A failed evaluation is recorded as a real 0.
func (s *Service) Answer(ctx context.Context, userID int64, text string) (AnswerResult, error) {
	sess, err := s.store.Get(ctx, userID)
	if err != nil {
		return AnswerResult{}, err
	}
	q, ev, err := sess.Answer(ctx, s.gen, text, s.now())
	if err != nil {
		return AnswerResult{}, err
	}
	if err := s.stillCurrent(ctx, sess); err != nil {
		return AnswerResult{}, err
	}

	res := AnswerResult{Question: q, Evaluation: ev}
	if q.Tracked() {
		rec, err := s.tracker.RecordReview(ctx, vault.ItemType(q.SourceType), q.SourceTitle, ev.Score)
		if err != nil {
			s.log.Error("failed to record review", "title", q.SourceTitle, "score", ev.Score, "error", err)
		} else {
			res.Record = &rec
		}
	}
	return s.finish(ctx, sess, res), nil
}

// Skip moves past the current question without grading or recording it.
func (s *Service) Skip(ctx context.Context, userID int64) (AnswerResult, error) {
	sess, err := s.store.Get(ctx, userID)
	if err != nil {
		return AnswerResult{}, err
	}
	q, err := sess.Skip(s.now())
	if err != nil {
		return AnswerResult{}, err
	}
	if err := s.stillCurrent(ctx, sess); err != nil {
		return AnswerResult{}, err
	}
	return s.finish(ctx, sess, AnswerResult{Question: q, Skipped: true}), nil
}

// stillCurrent fails with ErrSessionReplaced when the user started another
// quiz after sess was loaded.
func (s *Service) stillCurrent(ctx context.Context, sess *Session) error {
	cur, err := s.store.Get(ctx, sess.UserID)
	if errors.Is(err, ErrNoActiveSession) || (err == nil && cur.ID != sess.ID) {
		s.log.Info("dropping answer for replaced quiz session", "user", sess.UserID, "session", sess.ID)
		return ErrSessionReplaced
	}
	return err
}

func (s *Service) finish(ctx context.Context, sess *Session, res AnswerResult) AnswerResult {
	if next, ok := sess.Current(); ok {
		res.Next = &next
		return res
	}
	sum := sess.Summary()
	res.Summary = &sum
	if err := s.store.Evict(ctx, sess.UserID, sess.ID); err != nil {
		s.log.Warn("failed to evict finished quiz session", "user", sess.UserID, "error", err)
	}
	s.log.Info("quiz finished", "user", sess.UserID, "score", sum.Score, "max", sum.MaxScore, "skipped", sum.Skipped)
	return res
}

// Stop ends the user's session early and returns what was answered so far.
func (s *Service) Stop(ctx context.Context, userID int64) (Summary, error) {
	sess, err := s.store.Get(ctx, userID)
	if err != nil {
		return Summary{}, err
	}
	if err := s.store.Evict(ctx, userID, sess.ID); err != nil {
		return Summary{}, err
	}
	return sess.Summary(), nil
}

// IsNotFound reports whether err is a title lookup failure.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
