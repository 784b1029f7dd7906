// Package quiz generates review questions from vault items, evaluates answers
// and runs per-user quiz sessions that feed scores back into the tracker.
package quiz

import "errors"

var (
	// ErrNoQuestions is returned when generation yields nothing to ask.
	ErrNoQuestions = errors.New("could not generate questions")
	// ErrNoActiveSession is returned when the user has no quiz in progress.
	ErrNoActiveSession = errors.New("no active quiz session")
	// ErrSessionComplete is returned when answering a finished session.
	ErrSessionComplete = errors.New("quiz session already complete")
	// ErrNothingDue is returned when no item is due for review.
	ErrNothingDue = errors.New("nothing due for review")
	// ErrSessionReplaced is returned when a new quiz started while an answer
	// to the previous one was being graded.
	ErrSessionReplaced = errors.New("quiz session was replaced by a newer one")
)

// QuestionType classifies what a question asks of the user.
type QuestionType string

const (
	TypeRecall      QuestionType = "recall"
	TypeApplication QuestionType = "application"
	TypeSynthesis   QuestionType = "synthesis"
	TypeConnection  QuestionType = "connection"
	TypeContrast    QuestionType = "contrast"
	TypeTrueFalse   QuestionType = "truefalse"
)

// Valid reports whether t is a known question type.
func (t QuestionType) Valid() bool {
	switch t {
	case TypeRecall, TypeApplication, TypeSynthesis, TypeConnection, TypeContrast, TypeTrueFalse:
		return true
	}
	return false
}

// SourceConnection marks questions spanning several items. They are not
// tracked by the review scheduler.
const SourceConnection = "connection"

// Question is one generated quiz question. It never changes once generated.
type Question struct {
	Text           string       `json:"question"`
	SourceTitle    string       `json:"source_title"`
	SourceType     string       `json:"source_type"`
	Type           QuestionType `json:"type"`
	Reference      string       `json:"reference,omitempty"`
	ExpectedAnswer string       `json:"expected_answer"`
}

// Tracked reports whether answers to q update the review tracker.
func (q Question) Tracked() bool {
	return q.SourceType != SourceConnection && q.SourceTitle != ""
}

// Evaluation is the graded outcome of one answer.
type Evaluation struct {
	Score         int    `json:"score"`
	Emoji         string `json:"emoji"`
	Feedback      string `json:"feedback"`
	CorrectAnswer string `json:"correct_answer,omitempty"`
	Tip           string `json:"tip,omitempty"`
	// Failed is set when the evaluator could not grade the answer. Score is
	// then 0 and is still recorded as a real review.
	Failed bool `json:"failed,omitempty"`
}
