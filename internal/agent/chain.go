package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/rualca/librarian-agent/internal/logger"
	"github.com/rualca/librarian-agent/internal/vault"
)

// ErrUnknownChain is returned for a chain name that is not registered.
var ErrUnknownChain = errors.New("unknown chain")

// Output caps, in characters.
const (
	MaxStepOutputChars  = 12000
	MaxFinalOutputChars = 20000
	truncatedMarker     = "\n\n…[truncated]"
)

// Step is one agent invocation in a chain.
type Step struct {
	Agent       string
	Instruction string
}

var builtinChains = map[string][]Step{
	"ingest_and_connect": {
		{Agent: "librarian", Instruction: "Process the user's input and create/update the appropriate Encounter note."},
		{Agent: "connector", Instruction: "Based on what was just captured, find connections to existing Cards and MOCs."},
	},
	"full_review": {
		{Agent: "reviewer", Instruction: "Audit the vault for structural issues, broken links, and inconsistent tags."},
		{Agent: "archivist", Instruction: "Based on the review above, identify stale content and suggest archival actions."},
	},
	"capture_and_write": {
		{Agent: "librarian", Instruction: "Process the user's input into the vault."},
		{Agent: "writer", Instruction: "Based on what was just captured, draft a short synthesis connecting it to existing knowledge."},
	},
	"capture_and_quiz": {
		{Agent: "librarian", Instruction: "Process the user's input and create/update the appropriate Encounter note."},
		{Agent: "examiner", Instruction: "Based on what was just captured, generate 2-3 quick recall questions to reinforce the new knowledge immediately."},
	},
}

// ChainInfo describes a registered chain.
type ChainInfo struct {
	Name        string
	Agents      []string
	Description string
}

// Chains lists the built-in chains sorted by name.
func Chains() []ChainInfo {
	names := make([]string, 0, len(builtinChains))
	for n := range builtinChains {
		names = append(names, n)
	}
	sort.Strings(names)

	out := make([]ChainInfo, 0, len(names))
	for _, n := range names {
		agents := stepAgents(builtinChains[n])
		out = append(out, ChainInfo{Name: n, Agents: agents, Description: strings.Join(agents, " → ")})
	}
	return out
}

// LookupChain returns the steps of chain name. Unknown names fail with an
// error wrapping ErrUnknownChain that lists close names.
func LookupChain(name string) ([]Step, error) {
	if steps, ok := builtinChains[name]; ok {
		return steps, nil
	}
	names := make([]string, 0, len(builtinChains))
	for n := range builtinChains {
		names = append(names, n)
	}
	sort.Strings(names)
	m := vault.MatchTitle(strings.ReplaceAll(name, "_", " "), spaced(names))
	if m.Found() {
		return nil, fmt.Errorf("%w: %s (did you mean %s?)", ErrUnknownChain, name, strings.ReplaceAll(m.Title, " ", "_"))
	}
	return nil, fmt.Errorf("%w: %s (available: %s)", ErrUnknownChain, name, strings.Join(names, ", "))
}

func spaced(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = strings.ReplaceAll(n, "_", " ")
	}
	return out
}

func stepAgents(steps []Step) []string {
	out := make([]string, len(steps))
	for i, s := range steps {
		out[i] = s.Agent
	}
	return out
}

// StepOutput is the reply of one completed step.
type StepOutput struct {
	Agent  string
	Output string
}

// ChainResult is the outcome of ExecuteChain. On failure Output holds the
// combined output of the steps that completed.
type ChainResult struct {
	Success        bool
	Output         string
	StepsCompleted int
	StepsTotal     int
	FailedStep     string
	Err            error
	Steps          []StepOutput
}

// Messenger is the part of Client used by chains.
type Messenger interface {
	CreateSession(ctx context.Context, title string) (Session, error)
	SendMessage(ctx context.Context, sessionID, prompt, agent string) (string, error)
}

// ExecuteChain runs steps in order within one session. Each step sees the
// user's request, the previous step's output and the agents still to come.
// The first failing step stops the chain.
func ExecuteChain(ctx context.Context, m Messenger, prompt string, steps []Step, log *slog.Logger) ChainResult {
	log = logger.OrNop(log)
	res := ChainResult{StepsTotal: len(steps)}

	title := "chain: " + strings.Join(stepAgents(steps), " → ")
	sess, err := m.CreateSession(ctx, title)
	if err != nil {
		res.FailedStep = "create_session"
		res.Err = err
		return res
	}

	var prev string
	for i, step := range steps {
		out, err := m.SendMessage(ctx, sess.ID, stepPrompt(prompt, steps, i, prev), step.Agent)
		if err != nil {
			log.Error("chain step failed", "step", i, "agent", step.Agent, "error", err)
			res.FailedStep = step.Agent
			res.Err = err
			if len(res.Steps) > 0 {
				res.Output = truncate(joinOutputs(res.Steps), MaxFinalOutputChars)
			}
			return res
		}
		res.Steps = append(res.Steps, StepOutput{Agent: step.Agent, Output: out})
		res.StepsCompleted = i + 1
		prev = out
		log.Info("chain step completed", "step", i+1, "total", len(steps), "agent", step.Agent)
	}

	var final string
	if len(res.Steps) == 1 {
		final = res.Steps[0].Output
	} else {
		final = joinOutputs(res.Steps)
	}
	res.Success = true
	res.Output = truncate(final, MaxFinalOutputChars)
	return res
}

func stepPrompt(prompt string, steps []Step, i int, prev string) string {
	parts := []string{"## User request\n" + prompt}
	if prev != "" {
		parts = append(parts, fmt.Sprintf("\n## Previous step (%s) output\n%s", steps[i-1].Agent, truncate(prev, MaxStepOutputChars)))
	}
	if steps[i].Instruction != "" {
		parts = append(parts, "\n## Your task\n"+steps[i].Instruction)
	}
	if remaining := stepAgents(steps[i+1:]); len(remaining) > 0 {
		parts = append(parts, fmt.Sprintf(
			"\n*(Note: after you, the following agents will process this: %s. Keep your output structured for them.)*",
			strings.Join(remaining, ", ")))
	}
	return strings.Join(parts, "\n")
}

func joinOutputs(steps []StepOutput) string {
	sections := make([]string, len(steps))
	for i, s := range steps {
		sections[i] = fmt.Sprintf("**[%s]**\n%s", s.Agent, s.Output)
	}
	return strings.Join(sections, "\n\n---\n\n")
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit]) + truncatedMarker
}
