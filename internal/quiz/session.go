package quiz

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SkippedScore marks a skipped question in Session.Scores.
const SkippedScore = -1

// SkippedAnswer is the answer text stored for a skipped question.
const SkippedAnswer = "[skipped]"

// State is the lifecycle position of a Session.
type State int

const (
	StateEmpty State = iota
	StateActive
	StateComplete
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateComplete:
		return "complete"
	default:
		return "empty"
	}
}

// Evaluator grades an answer to a question.
type Evaluator interface {
	Evaluate(ctx context.Context, q Question, answer string) Evaluation
}

// Session is one user's quiz: an ordered list of questions and a cursor that
// only moves forward. It is complete once every question has been answered
// or skipped.
type Session struct {
	ID        string
	UserID    int64
	Mode      Mode
	CreatedAt time.Time

	mu        sync.Mutex
	questions []Question
	cursor    int
	scores    []int
	answers   []string
	evals     []Evaluation
	touched   time.Time
}

// NewSession starts an active session over questions. It fails with
// ErrNoQuestions when there is nothing to ask.
func NewSession(userID int64, mode Mode, questions []Question, now time.Time) (*Session, error) {
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}
	return &Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Mode:      mode,
		CreatedAt: now,
		questions: append([]Question(nil), questions...),
		touched:   now,
	}, nil
}

// State reports the lifecycle state.
func (s *Session) State() State {
	if s == nil {
		return StateEmpty
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state()
}

func (s *Session) state() State {
	if len(s.questions) == 0 {
		return StateEmpty
	}
	if s.cursor >= len(s.questions) {
		return StateComplete
	}
	return StateActive
}

// Len returns the number of questions.
func (s *Session) Len() int { return len(s.questions) }

// Position returns the zero-based index of the current question.
func (s *Session) Position() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// Current returns the question awaiting an answer.
func (s *Session) Current() (Question, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state() != StateActive {
		return Question{}, false
	}
	return s.questions[s.cursor], true
}

// LastActivity returns when the session was created or last advanced.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touched
}

// Answer grades text against the current question through ev, records the
// score and advances. The graded question is returned with its evaluation.
func (s *Session) Answer(ctx context.Context, ev Evaluator, text string, now time.Time) (Question, Evaluation, error) {
	s.mu.Lock()
	if s.state() != StateActive {
		s.mu.Unlock()
		return Question{}, Evaluation{}, ErrSessionComplete
	}
	q := s.questions[s.cursor]
	s.mu.Unlock()

	// Evaluation calls the model; keep the session unlocked meanwhile.
	e := ev.Evaluate(ctx, q, text)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state() != StateActive || s.questions[s.cursor] != q {
		return Question{}, Evaluation{}, ErrSessionComplete
	}
	s.advance(e.Score, text, e, now)
	return q, e, nil
}

// Skip records the current question as skipped and advances.
func (s *Session) Skip(now time.Time) (Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state() != StateActive {
		return Question{}, ErrSessionComplete
	}
	q := s.questions[s.cursor]
	s.advance(SkippedScore, SkippedAnswer, Evaluation{}, now)
	return q, nil
}

func (s *Session) advance(score int, answer string, e Evaluation, now time.Time) {
	s.scores = append(s.scores, score)
	s.answers = append(s.answers, answer)
	s.evals = append(s.evals, e)
	s.cursor++
	s.touched = now
}

// Outcome classifies one answered question.
type Outcome string

const (
	OutcomePass    Outcome = "pass"
	OutcomePartial Outcome = "partial"
	OutcomeFail    Outcome = "fail"
	OutcomeSkipped Outcome = "skipped"
)

// ClassifyScore maps a 0-5 score to an outcome: 4 and 5 pass, 3 is partial.
func ClassifyScore(score int) Outcome {
	switch {
	case score == SkippedScore:
		return OutcomeSkipped
	case score >= 4:
		return OutcomePass
	case score == 3:
		return OutcomePartial
	default:
		return OutcomeFail
	}
}

// QuestionResult is one line of a Summary.
type QuestionResult struct {
	Question   Question
	Answer     string
	Score      int
	Outcome    Outcome
	Evaluation Evaluation
}

// Summary totals a session. Skipped questions count in Total but not in
// Answered, Score or MaxScore.
type Summary struct {
	Total    int
	Answered int
	Skipped  int
	Score    int
	MaxScore int
	Passed   int
	Partial  int
	Failed   int
	Results  []QuestionResult
}

// Percent returns Score as a share of MaxScore, 0 when nothing was answered.
func (s Summary) Percent() float64 {
	if s.MaxScore == 0 {
		return 0
	}
	return float64(s.Score) * 100 / float64(s.MaxScore)
}

// Summary reports the answers recorded so far.
func (s *Session) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	sum := Summary{Total: len(s.questions)}
	for i, score := range s.scores {
		o := ClassifyScore(score)
		sum.Results = append(sum.Results, QuestionResult{
			Question:   s.questions[i],
			Answer:     s.answers[i],
			Score:      score,
			Outcome:    o,
			Evaluation: s.evals[i],
		})
		switch o {
		case OutcomeSkipped:
			sum.Skipped++
			continue
		case OutcomePass:
			sum.Passed++
		case OutcomePartial:
			sum.Partial++
		case OutcomeFail:
			sum.Failed++
		}
		sum.Answered++
		sum.Score += score
		sum.MaxScore += 5
	}
	return sum
}
