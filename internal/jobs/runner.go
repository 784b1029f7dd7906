package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/rualca/librarian-agent/internal/fsutil"
	"github.com/rualca/librarian-agent/internal/logger"
)

const errorTail = 500

// Executor runs a prompt with one agent.
type Executor interface {
	ExecuteTask(ctx context.Context, prompt, agent, title string) (string, error)
}

// Notifier delivers one message to the user.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// NotifyFunc adapts a function to Notifier.
type NotifyFunc func(ctx context.Context, text string) error

func (f NotifyFunc) Notify(ctx context.Context, text string) error { return f(ctx, text) }

// Runner executes jobs one at a time per job name. A job that is already
// running, in this process or another one sharing lockDir, is skipped.
type Runner struct {
	exec    Executor
	notify  Notifier
	lockDir string
	log     *slog.Logger

	mu      sync.Mutex
	running map[string]bool
}

// NewRunner returns a Runner. notify may be nil.
func NewRunner(exec Executor, notify Notifier, lockDir string, log *slog.Logger) *Runner {
	return &Runner{
		exec:    exec,
		notify:  notify,
		lockDir: lockDir,
		log:     logger.OrNop(log),
		running: map[string]bool{},
	}
}

// Run executes job and sends its output, split into message-sized chunks, to
// the notifier. Failures are also reported through the notifier.
func (r *Runner) Run(ctx context.Context, job Job) (string, error) {
	release, ok, err := r.acquire(job.Name)
	if err != nil {
		return "", err
	}
	if !ok {
		r.log.Warn("job already running, skipping", "job", job.Name)
		return "", fmt.Errorf("%w: %s", ErrJobRunning, job.Name)
	}
	defer release()

	start := time.Now()
	r.log.Info("job started", "job", job.Name, "agent", job.Agent)
	out, err := r.exec.ExecuteTask(ctx, job.Prompt, job.Agent, "job: "+job.Name)
	if err != nil {
		r.log.Error("job failed", "job", job.Name, "error", err)
		msg := err.Error()
		if rs := []rune(msg); len(rs) > errorTail {
			msg = string(rs[len(rs)-errorTail:])
		}
		r.send(ctx, fmt.Sprintf("❌ Scheduled job failed: %s\n\n%s", job.Description, msg))
		return "", fmt.Errorf("job %s: %w", job.Name, err)
	}
	r.log.Info("job finished", "job", job.Name, "duration", time.Since(start).Round(time.Millisecond))

	for _, chunk := range SplitMessage(fmt.Sprintf("📋 *%s*\n\n%s", job.Description, out), MaxMessageChars) {
		r.send(ctx, chunk)
	}
	return out, nil
}

func (r *Runner) send(ctx context.Context, text string) {
	if r.notify == nil {
		return
	}
	if err := r.notify.Notify(ctx, text); err != nil {
		r.log.Error("failed to deliver job message", "error", err)
	}
}

func (r *Runner) acquire(name string) (func(), bool, error) {
	r.mu.Lock()
	if r.running[name] {
		r.mu.Unlock()
		return nil, false, nil
	}
	r.running[name] = true
	r.mu.Unlock()

	done := func() {
		r.mu.Lock()
		delete(r.running, name)
		r.mu.Unlock()
	}
	if r.lockDir == "" {
		return done, true, nil
	}

	unlock, ok, err := fsutil.TryLock(filepath.Join(r.lockDir, name+".lock"))
	if err != nil || !ok {
		done()
		return nil, false, err
	}
	return func() {
		unlock()
		done()
	}, true, nil
}
