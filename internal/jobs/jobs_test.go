package jobs

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rualca/librarian-agent/internal/fsutil"
)

func TestScheduleNext(t *testing.T) {
	// 2026-10-19 is a Monday.
	mon := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

	s := Weekly(time.Monday, 10)
	assert.Equal(t, time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC), s.Next(mon))
	assert.Equal(t, time.Date(2026, 10, 26, 10, 0, 0, 0, time.UTC), s.Next(mon.Add(2*time.Hour)), "strictly after")

	d := Daily(9)
	assert.Equal(t, time.Date(2026, 10, 20, 9, 0, 0, 0, time.UTC), d.Next(mon.Add(time.Hour)))

	local := time.FixedZone("UTC+2", 2*3600)
	assert.Equal(t, time.Date(2026, 10, 21, 10, 0, 0, 0, time.UTC),
		Weekly(time.Wednesday, 10).Next(time.Date(2026, 10, 19, 12, 0, 0, 0, local)))

	assert.True(t, Schedule{}.Next(mon).IsZero())
}

func TestScheduleString(t *testing.T) {
	assert.Equal(t, "daily 09:00 UTC", Daily(9).String())
	assert.Equal(t, "Friday 10:00 UTC", Weekly(time.Friday, 10).String())
	assert.Equal(t, "unscheduled", Schedule{}.String())
}

func TestRegistryFind(t *testing.T) {
	reg := NewRegistry(DefaultJobs())

	j, err := reg.Find("daily_quiz")
	require.NoError(t, err)
	assert.Equal(t, "examiner", j.Agent)

	_, err = reg.Find("weekly_orphan")
	require.ErrorIs(t, err, ErrUnknownJob)
	var uerr *UnknownJobError
	require.True(t, errors.As(err, &uerr))
	assert.Equal(t, []string{"weekly_orphan_check"}, uerr.Suggestions)
	assert.Contains(t, err.Error(), "did you mean")
}

func TestSplitMessage(t *testing.T) {
	assert.Equal(t, []string{"short"}, SplitMessage("short", 10))

	chunks := SplitMessage("aaaa\nbbbb\ncccc", 10)
	assert.Equal(t, []string{"aaaa\nbbbb\n", "cccc\n"}, chunks)

	long := strings.Repeat("é", 25)
	chunks = SplitMessage("x\n"+long, 10)
	require.Len(t, chunks, 4)
	assert.Equal(t, "x\n", chunks[0])
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 10)
	}
	assert.Equal(t, long+"\n", strings.Join(chunks[1:], ""))
}

type fakeExecutor struct {
	out     string
	err     error
	block   chan struct{}
	started chan struct{}
}

func (f *fakeExecutor) ExecuteTask(ctx context.Context, prompt, agent, title string) (string, error) {
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	return f.out, f.err
}

type recorder struct {
	mu   sync.Mutex
	msgs []string
}

func (r *recorder) Notify(_ context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, text)
	return nil
}

func testJob() Job {
	return Job{Name: "daily_quiz", Agent: "examiner", Prompt: "p", Description: "Daily", Enabled: true, Schedule: Daily(9)}
}

func TestRunner_Success(t *testing.T) {
	rec := &recorder{}
	r := NewRunner(&fakeExecutor{out: "all good"}, rec, t.TempDir(), nil)

	out, err := r.Run(context.Background(), testJob())
	require.NoError(t, err)
	assert.Equal(t, "all good", out)
	assert.Equal(t, []string{"📋 *Daily*\n\nall good"}, rec.msgs)
}

func TestRunner_FailureNotifiesTail(t *testing.T) {
	rec := &recorder{}
	r := NewRunner(&fakeExecutor{err: errors.New(strings.Repeat("x", 600) + "END")}, rec, "", nil)

	_, err := r.Run(context.Background(), testJob())
	require.Error(t, err)
	require.Len(t, rec.msgs, 1)
	assert.True(t, strings.HasPrefix(rec.msgs[0], "❌ Scheduled job failed: Daily"))
	assert.True(t, strings.HasSuffix(rec.msgs[0], "END"))
	assert.Less(t, utf8.RuneCountInString(rec.msgs[0]), 600)
}

func TestRunner_SkipsWhenRunningInProcess(t *testing.T) {
	exec := &fakeExecutor{out: "ok", block: make(chan struct{}), started: make(chan struct{}, 1)}
	r := NewRunner(exec, nil, t.TempDir(), nil)

	done := make(chan error, 1)
	go func() {
		_, err := r.Run(context.Background(), testJob())
		done <- err
	}()
	<-exec.started

	_, err := r.Run(context.Background(), testJob())
	assert.ErrorIs(t, err, ErrJobRunning)

	close(exec.block)
	require.NoError(t, <-done)
}

func TestRunner_SkipsWhenLockedElsewhere(t *testing.T) {
	dir := t.TempDir()
	release, ok, err := fsutil.TryLock(filepath.Join(dir, "daily_quiz.lock"))
	require.NoError(t, err)
	require.True(t, ok)
	defer release()

	r := NewRunner(&fakeExecutor{out: "ok"}, nil, dir, nil)
	_, err = r.Run(context.Background(), testJob())
	assert.ErrorIs(t, err, ErrJobRunning)
}

func TestSchedulerNextRun(t *testing.T) {
	jobs := DefaultJobs()
	jobs[3].Enabled = false
	s := NewScheduler(NewRegistry(jobs), nil, nil)

	// Monday 08:00: the orphan check at 10:00 comes first.
	next, due := s.NextRun(time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC), next)
	require.Len(t, due, 1)
	assert.Equal(t, "weekly_orphan_check", due[0].Name)

	none := NewScheduler(NewRegistry(nil), nil, nil)
	next, due = none.NextRun(time.Now())
	assert.True(t, next.IsZero())
	assert.Empty(t, due)
}

func TestSchedulerStart_RunsDueJobs(t *testing.T) {
	rec := &recorder{}
	runner := NewRunner(&fakeExecutor{out: "done"}, rec, t.TempDir(), nil)
	s := NewScheduler(NewRegistry([]Job{testJob()}), runner, nil)

	ctx, cancel := context.WithCancel(context.Background())
	fired := make(chan time.Time)
	calls := 0
	s.after = func(time.Duration) <-chan time.Time {
		calls++
		if calls > 1 {
			cancel()
			return make(chan time.Time)
		}
		return fired
	}
	go func() { fired <- time.Now() }()

	err := s.Start(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"📋 *Daily*\n\ndone"}, rec.msgs)
}
