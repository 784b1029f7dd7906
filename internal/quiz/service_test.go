package quiz

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rualca/librarian-agent/internal/logger"
	"github.com/rualca/librarian-agent/internal/review"
	"github.com/rualca/librarian-agent/internal/vault"
)

const oneQuestion = `{"questions":[{"question":"Explain it","type":"synthesis","reference":"Idea","expected_answer":"the idea"}]}`

type serviceFixture struct {
	llm     *fakeLLM
	tracker *review.Tracker
	store   *MemoryStore
	svc     *Service
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	root := t.TempDir()
	v := vault.New(root)
	require.NoError(t, v.EnsureLayout())
	write := func(rel, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(root, filepath.FromSlash(rel)), []byte(body), 0o644))
	}
	write("Cards/Stoicism.md", "## Idea\nVirtue is the only good.\n")
	write("Cards/Deep Work.md", "## Idea\nFocus is a superpower.\n")
	write("Encounters/Meditations.md", "## Notes\n> You have power over your mind, not outside events.\n")

	f := &fakeLLM{questions: oneQuestion, evaluation: `{"score": 4, "emoji": "✅", "feedback": "ok"}`}
	tr := review.NewTracker(filepath.Join(root, "copilot", "exam-tracker.json"), logger.Nop())
	store := NewMemoryStore(0, logger.Nop())
	gen := NewGenerator(f, "es", logger.Nop())
	return &serviceFixture{
		llm:     f,
		tracker: tr,
		store:   store,
		svc:     NewService(v, tr, gen, store, ServiceOptions{}, logger.Nop()),
	}
}

func TestService_DueQuizRecordsRealAnswersOnly(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()

	sess, err := fx.svc.Start(ctx, 42, StartOptions{})
	require.NoError(t, err)
	require.Equal(t, 3, sess.Len())
	// Cards are listed by title, then encounters.
	q, ok := sess.Current()
	require.True(t, ok)
	assert.Equal(t, "Deep Work", q.SourceTitle)

	res, err := fx.svc.Answer(ctx, 42, "focus matters")
	require.NoError(t, err)
	require.NotNil(t, res.Record)
	assert.Equal(t, 4, res.Evaluation.Score)
	assert.Equal(t, fx.tracker.Today(), res.Record.LastReviewed)
	require.NotNil(t, res.Next)
	assert.Equal(t, "Stoicism", res.Next.SourceTitle)

	res, err = fx.svc.Skip(ctx, 42)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Nil(t, res.Record)

	// Evaluation failure still records a real score of 0.
	fx.llm.err = errors.New("timeout")
	res, err = fx.svc.Answer(ctx, 42, "no idea")
	require.NoError(t, err)
	assert.True(t, res.Evaluation.Failed)
	require.NotNil(t, res.Record)
	assert.Equal(t, 0, res.Record.Repetitions)
	require.NotNil(t, res.Summary)
	assert.Nil(t, res.Next)
	assert.Equal(t, 4, res.Summary.Score)
	assert.Equal(t, 10, res.Summary.MaxScore)
	assert.Equal(t, 1, res.Summary.Skipped)

	_, err = fx.svc.Answer(ctx, 42, "again")
	assert.ErrorIs(t, err, ErrNoActiveSession)

	st := fx.tracker.Load()
	_, ok = st.Lookup(vault.ItemCard, "Deep Work")
	assert.True(t, ok)
	_, ok = st.Lookup(vault.ItemCard, "Stoicism")
	assert.False(t, ok, "skipped answers are not recorded")
	rec, ok := st.Lookup(vault.ItemEncounter, "Meditations")
	require.True(t, ok)
	require.Len(t, rec.History, 1)
	assert.Equal(t, 0, rec.History[0].Score)
}

func TestService_AnswerToReplacedSessionIsDropped(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()

	old, err := fx.svc.Start(ctx, 7, StartOptions{Title: "Stoicism", Count: 1})
	require.NoError(t, err)
	require.Equal(t, 1, old.Len())

	fx.llm.grading = make(chan struct{})
	fx.llm.gate = make(chan struct{})
	type answered struct {
		res AnswerResult
		err error
	}
	done := make(chan answered, 1)
	go func() {
		res, err := fx.svc.Answer(ctx, 7, "virtue")
		done <- answered{res, err}
	}()
	<-fx.llm.grading

	fresh, err := fx.svc.Start(ctx, 7, StartOptions{Title: "Deep Work", Count: 1})
	require.NoError(t, err)
	close(fx.llm.gate)

	got := <-done
	assert.ErrorIs(t, got.err, ErrSessionReplaced)
	assert.Nil(t, got.res.Summary)

	cur, err := fx.store.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, fresh.ID, cur.ID)

	_, ok := fx.tracker.Load().Lookup(vault.ItemCard, "Stoicism")
	assert.False(t, ok, "answers to a discarded quiz are not recorded")
}

func TestService_ExamByFuzzyTitle(t *testing.T) {
	fx := newServiceFixture(t)
	fx.llm.questions = threeQuestions

	sess, err := fx.svc.Start(context.Background(), 1, StartOptions{Mode: ModeExam, Title: "stoicism"})
	require.NoError(t, err)
	assert.Equal(t, 3, sess.Len())
	q, _ := sess.Current()
	assert.Equal(t, "Stoicism", q.SourceTitle)
	assert.Contains(t, fx.llm.last().User, "Write 8 questions")
	assert.Contains(t, fx.llm.last().User, "Focus on these question types")
}

func TestService_UnknownTitleSuggests(t *testing.T) {
	fx := newServiceFixture(t)

	_, err := fx.svc.Start(context.Background(), 1, StartOptions{Mode: ModeExam, Title: "deep thoughts"})
	require.Error(t, err)
	assert.ErrorIs(t, err, vault.ErrNotFound)
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, []string{"Deep Work"}, nf.Suggestions)
	assert.Zero(t, fx.store.Len())
}

func TestService_NoQuestionsKeepsExistingSession(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()
	first, err := fx.svc.Start(ctx, 1, StartOptions{})
	require.NoError(t, err)

	fx.llm.err = errors.New("down")
	_, err = fx.svc.Start(ctx, 1, StartOptions{Mode: ModeConnections})
	assert.ErrorIs(t, err, ErrNoQuestions)

	got, err := fx.store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
}

func TestService_StopReturnsPartialSummary(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()
	_, err := fx.svc.Start(ctx, 1, StartOptions{Count: 2})
	require.NoError(t, err)
	_, err = fx.svc.Answer(ctx, 1, "x")
	require.NoError(t, err)

	sum, err := fx.svc.Stop(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Total)
	assert.Equal(t, 1, sum.Answered)
	assert.Zero(t, fx.store.Len())
}
