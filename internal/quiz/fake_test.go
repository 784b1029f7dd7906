package quiz

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rualca/librarian-agent/internal/llm"
)

// fakeLLM replies with canned JSON: question requests get questions, grading
// requests get evaluation.
type fakeLLM struct {
	mu         sync.Mutex
	questions  string
	evaluation string
	err        error
	requests   []llm.Request

	// When gate is set, grading requests signal grading and then wait for
	// gate to close.
	grading chan struct{}
	gate    chan struct{}
}

func (f *fakeLLM) GenerateJSON(_ context.Context, req llm.Request) (json.RawMessage, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	gate, grading := f.gate, f.grading
	f.mu.Unlock()

	if req.MaxTokens == 512 && gate != nil {
		grading <- struct{}{}
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if req.MaxTokens == 512 {
		return json.RawMessage(f.evaluation), nil
	}
	return json.RawMessage(f.questions), nil
}

func (f *fakeLLM) last() llm.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

type fixedEvaluator struct{ score int }

func (e fixedEvaluator) Evaluate(context.Context, Question, string) Evaluation {
	return Evaluation{Score: e.score, Emoji: "✅"}
}
