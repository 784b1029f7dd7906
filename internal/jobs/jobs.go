// Package jobs runs the scheduled vault maintenance tasks, each delegated to
// one agent on the agent server.
package jobs

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rualca/librarian-agent/internal/vault"
)

var (
	// ErrUnknownJob is returned for a job name that is not registered.
	ErrUnknownJob = errors.New("unknown job")
	// ErrJobRunning is returned when the job is already running.
	ErrJobRunning = errors.New("job already running")
)

// Schedule fires a job at Hour:00 UTC on each of Weekdays.
type Schedule struct {
	Weekdays []time.Weekday
	Hour     int
}

// Daily returns a schedule that fires every day at hour.
func Daily(hour int) Schedule {
	return Schedule{
		Weekdays: []time.Weekday{time.Sunday, time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday},
		Hour:     hour,
	}
}

// Weekly returns a schedule that fires once a week on day at hour.
func Weekly(day time.Weekday, hour int) Schedule {
	return Schedule{Weekdays: []time.Weekday{day}, Hour: hour}
}

// Next returns the first firing time strictly after t, in UTC. A schedule
// without weekdays never fires and returns the zero time.
func (s Schedule) Next(t time.Time) time.Time {
	if len(s.Weekdays) == 0 {
		return time.Time{}
	}
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), s.Hour, 0, 0, 0, time.UTC)
	for i := 0; i < 8; i++ {
		cand := day.AddDate(0, 0, i)
		if cand.After(t) && s.on(cand.Weekday()) {
			return cand
		}
	}
	return time.Time{}
}

func (s Schedule) on(d time.Weekday) bool {
	for _, w := range s.Weekdays {
		if w == d {
			return true
		}
	}
	return false
}

// String describes the schedule, e.g. "Monday 10:00 UTC" or "daily 09:00 UTC".
func (s Schedule) String() string {
	switch len(s.Weekdays) {
	case 0:
		return "unscheduled"
	case 7:
		return fmt.Sprintf("daily %02d:00 UTC", s.Hour)
	}
	days := make([]string, len(s.Weekdays))
	for i, d := range s.Weekdays {
		days[i] = d.String()
	}
	return fmt.Sprintf("%s %02d:00 UTC", strings.Join(days, ", "), s.Hour)
}

// Job is one maintenance task.
type Job struct {
	Name        string
	Agent       string
	Prompt      string
	Description string
	Enabled     bool
	Schedule    Schedule
}

// DefaultJobs returns the built-in maintenance jobs.
func DefaultJobs() []Job {
	return []Job{
		{
			Name:        "weekly_orphan_check",
			Agent:       "reviewer",
			Prompt:      "Find all orphan Cards that are not linked to any MOC. Report a summary of orphans found and suggest connections.",
			Description: "🔍 Weekly orphan Cards review",
			Enabled:     true,
			Schedule:    Weekly(time.Monday, 10),
		},
		{
			Name:        "weekly_stale_check",
			Agent:       "archivist",
			Prompt:      "Find stale content: Encounters with status 'in-progress' not updated in 60+ days, seed Cards older than 90 days never developed, and empty Inbox items. Report a health summary.",
			Description: "⏰ Weekly stale content check",
			Enabled:     true,
			Schedule:    Weekly(time.Wednesday, 10),
		},
		{
			Name:        "weekly_connections",
			Agent:       "connector",
			Prompt:      "Analyze the vault and find 5 strong missing connections between existing Cards. For each, explain why they should be linked. Focus on cross-domain connections.",
			Description: "🕸️ Weekly connection suggestions",
			Enabled:     true,
			Schedule:    Weekly(time.Friday, 10),
		},
		{
			Name:        "daily_quiz",
			Agent:       "examiner",
			Prompt:      "Select 1 Card or Encounter entry due for spaced repetition review. Generate a single question about it. Prefer items that haven't been reviewed or are overdue. Format: state the question clearly and include the source reference.",
			Description: "🧪 Daily retention question",
			Enabled:     true,
			Schedule:    Daily(9),
		},
	}
}

// Registry is an ordered set of jobs.
type Registry struct {
	jobs []Job
}

// NewRegistry returns a registry holding jobs in the given order.
func NewRegistry(jobs []Job) *Registry {
	return &Registry{jobs: append([]Job(nil), jobs...)}
}

// Jobs returns every registered job.
func (r *Registry) Jobs() []Job {
	return append([]Job(nil), r.jobs...)
}

// Find returns the job called name. Unknown names fail with an error
// wrapping ErrUnknownJob that carries suggestions.
func (r *Registry) Find(name string) (Job, error) {
	for _, j := range r.jobs {
		if j.Name == name {
			return j, nil
		}
	}

	spaced := make([]string, len(r.jobs))
	for i, j := range r.jobs {
		spaced[i] = strings.ReplaceAll(j.Name, "_", " ")
	}
	m := vault.MatchTitle(strings.ReplaceAll(name, "_", " "), spaced)
	var suggestions []string
	if m.Found() {
		suggestions = []string{m.Title}
	} else {
		suggestions = m.Suggestions
	}
	for i := range suggestions {
		suggestions[i] = strings.ReplaceAll(suggestions[i], " ", "_")
	}
	return Job{}, &UnknownJobError{Name: name, Suggestions: suggestions}
}

// UnknownJobError is returned by Find.
type UnknownJobError struct {
	Name        string
	Suggestions []string
}

func (e *UnknownJobError) Error() string {
	if len(e.Suggestions) == 0 {
		return fmt.Sprintf("unknown job %q", e.Name)
	}
	return fmt.Sprintf("unknown job %q, did you mean: %s", e.Name, strings.Join(e.Suggestions, ", "))
}

func (e *UnknownJobError) Unwrap() error { return ErrUnknownJob }
