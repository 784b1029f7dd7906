package cmd

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rualca/librarian-agent/internal/quiz"
)

type fakeQuiz struct {
	questions []quiz.Question
	startErr  error
	pos       int
	answers   []string
	skips     int
	stopped   bool
}

func (f *fakeQuiz) Start(_ context.Context, userID int64, _ quiz.StartOptions) (*quiz.Session, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	return quiz.NewSession(userID, quiz.ModeDue, f.questions, time.Now())
}

func (f *fakeQuiz) advance(res quiz.AnswerResult) quiz.AnswerResult {
	f.pos++
	if f.pos < len(f.questions) {
		next := f.questions[f.pos]
		res.Next = &next
		return res
	}
	res.Summary = &quiz.Summary{Total: len(f.questions), Answered: len(f.answers), Skipped: f.skips, Score: 4 * len(f.answers), MaxScore: 5 * len(f.answers), Passed: len(f.answers)}
	return res
}

func (f *fakeQuiz) Answer(_ context.Context, _ int64, text string) (quiz.AnswerResult, error) {
	f.answers = append(f.answers, text)
	return f.advance(quiz.AnswerResult{Question: f.questions[f.pos], Evaluation: quiz.Evaluation{Score: 4, Emoji: "✅", Feedback: "good"}}), nil
}

func (f *fakeQuiz) Skip(context.Context, int64) (quiz.AnswerResult, error) {
	f.skips++
	return f.advance(quiz.AnswerResult{Question: f.questions[f.pos], Skipped: true}), nil
}

func (f *fakeQuiz) Stop(context.Context, int64) (quiz.Summary, error) {
	f.stopped = true
	return quiz.Summary{Total: len(f.questions), Answered: len(f.answers), Score: 4 * len(f.answers), MaxScore: 5 * len(f.answers)}, nil
}

func threeQuestions() []quiz.Question {
	return []quiz.Question{
		{Text: "Q1?", SourceTitle: "Stoicism", SourceType: "card", Type: quiz.TypeRecall},
		{Text: "Q2?", SourceTitle: "Deep Work", SourceType: "card", Type: quiz.TypeRecall},
		{Text: "Q3?", SourceTitle: "Meditations", SourceType: "encounter", Type: quiz.TypeRecall},
	}
}

func TestQuizLoop_AnswerSkipFinish(t *testing.T) {
	f := &fakeQuiz{questions: threeQuestions()}
	var out bytes.Buffer

	err := quizLoop(context.Background(), f, quiz.StartOptions{}, strings.NewReader("virtue\n\n/skip\nfocus\n"), &out)
	if err != nil {
		t.Fatalf("quizLoop: %v", err)
	}
	if got := strings.Join(f.answers, "|"); got != "virtue|focus" {
		t.Fatalf("answers = %q", got)
	}
	if f.skips != 1 || f.stopped {
		t.Fatalf("skips=%d stopped=%v", f.skips, f.stopped)
	}
	for _, want := range []string{"Question 1/3", "Question 3/3", "✅ 4/5  good", "skipped", "Score: 8/10 (80%)"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestQuizLoop_StopEarly(t *testing.T) {
	f := &fakeQuiz{questions: threeQuestions()}
	var out bytes.Buffer

	if err := quizLoop(context.Background(), f, quiz.StartOptions{}, strings.NewReader("virtue\n/STOP\n"), &out); err != nil {
		t.Fatalf("quizLoop: %v", err)
	}
	if !f.stopped {
		t.Fatal("expected Stop to be called")
	}
	if !strings.Contains(out.String(), "Score: 4/5") {
		t.Errorf("unexpected output:\n%s", out.String())
	}
}

func TestQuizLoop_InputClosedStops(t *testing.T) {
	f := &fakeQuiz{questions: threeQuestions()}
	var out bytes.Buffer

	if err := quizLoop(context.Background(), f, quiz.StartOptions{}, strings.NewReader(""), &out); err != nil {
		t.Fatalf("quizLoop: %v", err)
	}
	if !f.stopped {
		t.Fatal("expected Stop on EOF")
	}
	if !strings.Contains(out.String(), "No answers recorded") {
		t.Errorf("unexpected output:\n%s", out.String())
	}
}

func TestQuizLoop_NothingDue(t *testing.T) {
	f := &fakeQuiz{startErr: quiz.ErrNothingDue}
	var out bytes.Buffer

	if err := quizLoop(context.Background(), f, quiz.StartOptions{}, strings.NewReader(""), &out); err != nil {
		t.Fatalf("quizLoop: %v", err)
	}
	if !strings.Contains(out.String(), "Nothing due today") {
		t.Errorf("unexpected output:\n%s", out.String())
	}
}

func TestQuizLoop_UnknownTitleSuggests(t *testing.T) {
	f := &fakeQuiz{startErr: &quiz.NotFoundError{Query: "stoa", Suggestions: []string{"Stoicism"}}}
	var out bytes.Buffer

	if err := quizLoop(context.Background(), f, quiz.StartOptions{Title: "stoa"}, strings.NewReader(""), &out); err != nil {
		t.Fatalf("quizLoop: %v", err)
	}
	if !strings.Contains(out.String(), `"stoa" not found, did you mean: Stoicism`) {
		t.Errorf("unexpected output:\n%s", out.String())
	}
}
