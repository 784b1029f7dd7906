package quiz

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"strings"

	"github.com/rualca/librarian-agent/internal/llm"
	"github.com/rualca/librarian-agent/internal/logger"
	"github.com/rualca/librarian-agent/internal/vault"
)

const (
	maxContentChars = 4000
	maxPairExcerpt  = 500
	// EvaluationFailedFeedback is the feedback of an answer that could not be graded.
	EvaluationFailedFeedback = "evaluation failed"
	failedEmoji              = "❓"
)

var languageNames = map[string]string{
	"es": "Spanish",
	"en": "English",
	"fr": "French",
	"de": "German",
	"it": "Italian",
	"pt": "Portuguese",
}

const questionSystemPrompt = `You are the Examiner, an active-recall agent for a personal knowledge vault.
Your task is to write questions that help the user retain what they captured.

RULES:
1. Questions must be based EXCLUSIVELY on the supplied content.
2. NEVER invent information that is not in the content.
3. Include an expected answer for every question, used later for grading.
4. Vary the question types: recall, application, synthesis, connection.
5. Write the questions and expected answers in %[1]s.
6. Quotations stay in their original language.
7. Be concise; the user may be on a phone.
8. For books still in progress, assume nothing beyond the given content.

QUESTION TYPES:
- "recall": remember a specific fact or concept
- "application": apply a concept to a real situation
- "synthesis": explain a concept in your own words
- "connection": relate two or more concepts
- "contrast": compare or tell concepts apart
- "truefalse": true or false (include the correct answer)

RESPONSE JSON SCHEMA:
{
  "questions": [
    {
      "question": "The question in %[1]s",
      "type": "recall|application|synthesis|connection|contrast|truefalse",
      "reference": "p.47 or section name",
      "expected_answer": "The correct answer, summarized"
    }
  ]
}`

const evaluateSystemPrompt = `You are the Examiner grading a user's answer to a review question.

RULES:
1. Grade on a 0-5 scale (SM-2 compatible):
   - 5: perfect, complete and precise, shows deep understanding
   - 4: good, correct with minor details missing
   - 3: acceptable, core idea right but important details missing
   - 2: partial, some correct elements but significant gaps
   - 1: incorrect, shows confusion about the concept
   - 0: no recall, completely wrong or "I don't know"
2. Accept answers in ANY language.
3. Accept paraphrase; never demand verbatim repetition.
4. Be generous with synonyms and equivalent concepts.
5. When the answer is partial, acknowledge what is right before explaining what is missing.
6. Write the feedback in %[1]s.
7. Cite the source reference in the feedback.

RESPONSE JSON SCHEMA:
{
  "score": 0-5,
  "emoji": "✅|🟡|❌",
  "feedback": "Concise feedback in %[1]s",
  "correct_answer": "The correct answer, summarized (only if score < 4)",
  "tip": "A tip or mnemonic (optional, only if score < 3)"
}`

// Generator turns vault content into questions and grades answers through a
// chat model. A nil model makes every call degrade: no questions, failed
// evaluations.
type Generator struct {
	llm      llm.Client
	language string
	log      *slog.Logger
	perm     func(n int) []int
}

// NewGenerator returns a Generator writing questions in language (an ISO
// 639-1 code such as "es", or a language name).
func NewGenerator(c llm.Client, language string, log *slog.Logger) *Generator {
	return &Generator{llm: c, language: language, log: logger.OrNop(log), perm: rand.Perm}
}

func (g *Generator) languageName() string {
	if n, ok := languageNames[strings.ToLower(g.language)]; ok {
		return n
	}
	if g.language == "" {
		return languageNames["es"]
	}
	return g.language
}

type questionsResponse struct {
	Questions []struct {
		Question       string `json:"question"`
		Type           string `json:"type"`
		Reference      string `json:"reference"`
		ExpectedAnswer string `json:"expected_answer"`
	} `json:"questions"`
}

// Generate asks for up to count questions about content. Model failures and
// malformed answers yield no questions; the caller decides whether to abort.
func (g *Generator) Generate(ctx context.Context, content, sourceTitle, sourceType string, count int, hints ...QuestionType) []Question {
	if count <= 0 {
		return nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Write %d questions about the following content.\n", count)
	fmt.Fprintf(&b, "Source: %s (%s)\n", sourceTitle, sourceType)
	if len(hints) > 0 {
		names := make([]string, len(hints))
		for i, h := range hints {
			names[i] = string(h)
		}
		fmt.Fprintf(&b, "Focus on these question types: %s\n", strings.Join(names, ", "))
	}
	fmt.Fprintf(&b, "\n--- CONTENT ---\n%s", vault.Truncate(content, maxContentChars))

	qs, err := g.ask(ctx, b.String())
	if err != nil {
		g.log.Error("failed to generate quiz questions", "source", sourceTitle, "error", err)
		return nil
	}
	for i := range qs {
		qs[i].SourceTitle = sourceTitle
		qs[i].SourceType = sourceType
	}
	return capQuestions(qs, count)
}

// GenerateConnections samples pairs of items and asks how they relate or
// differ. It needs at least two items.
func (g *Generator) GenerateConnections(ctx context.Context, items []vault.ReviewableItem, count int) []Question {
	if len(items) < 2 || count <= 0 {
		return nil
	}

	n := min(len(items), count*2)
	idx := g.perm(len(items))[:n]
	var pairs []string
	for i := 0; i+1 < len(idx); i += 2 {
		a, b := items[idx[i]], items[idx[i+1]]
		pairs = append(pairs, fmt.Sprintf(
			"--- Item A: %s (%s) ---\n%s\n\n--- Item B: %s (%s) ---\n%s",
			a.Title, a.Type, vault.Truncate(a.Content, maxPairExcerpt),
			b.Title, b.Type, vault.Truncate(b.Content, maxPairExcerpt),
		))
	}

	prompt := fmt.Sprintf("Write %d CONNECTION questions between the following pairs of notes.\n", count) +
		"Ask how they relate, how they differ, or how one concept complements the other.\n\n" +
		strings.Join(pairs, "\n\n")

	qs, err := g.ask(ctx, prompt)
	if err != nil {
		g.log.Error("failed to generate connection questions", "error", err)
		return nil
	}
	for i := range qs {
		qs[i].SourceTitle = "Connections"
		qs[i].SourceType = SourceConnection
		qs[i].Type = TypeConnection
	}
	return capQuestions(qs, count)
}

func (g *Generator) ask(ctx context.Context, prompt string) ([]Question, error) {
	if g.llm == nil {
		return nil, llm.ErrNoAPIKey
	}
	raw, err := g.llm.GenerateJSON(ctx, llm.Request{
		System:      fmt.Sprintf(questionSystemPrompt, g.languageName()),
		User:        prompt,
		MaxTokens:   2048,
		Temperature: 0.7,
	})
	if err != nil {
		return nil, err
	}
	var resp questionsResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("%w: malformed questions: %w", llm.ErrLLM, err)
	}

	var out []Question
	for _, q := range resp.Questions {
		text := strings.TrimSpace(q.Question)
		if text == "" {
			continue
		}
		t := QuestionType(strings.ToLower(strings.TrimSpace(q.Type)))
		if !t.Valid() {
			t = TypeRecall
		}
		out = append(out, Question{
			Text:           text,
			Type:           t,
			Reference:      strings.TrimSpace(q.Reference),
			ExpectedAnswer: strings.TrimSpace(q.ExpectedAnswer),
		})
	}
	return out, nil
}

func capQuestions(qs []Question, count int) []Question {
	if len(qs) > count {
		return qs[:count]
	}
	return qs
}

type evaluationResponse struct {
	Score         *float64 `json:"score"`
	Emoji         string   `json:"emoji"`
	Feedback      string   `json:"feedback"`
	CorrectAnswer string   `json:"correct_answer"`
	Tip           string   `json:"tip"`
}

// Evaluate grades answer against q on the 0-5 scale. When the model fails the
// result has score 0, Failed set and the expected answer as correction.
func (g *Generator) Evaluate(ctx context.Context, q Question, answer string) Evaluation {
	ev, err := g.evaluate(ctx, q, answer)
	if err != nil {
		g.log.Error("failed to evaluate answer", "source", q.SourceTitle, "error", err)
		return Evaluation{
			Score:         0,
			Emoji:         failedEmoji,
			Feedback:      EvaluationFailedFeedback,
			CorrectAnswer: q.ExpectedAnswer,
			Failed:        true,
		}
	}
	return ev
}

func (g *Generator) evaluate(ctx context.Context, q Question, answer string) (Evaluation, error) {
	if g.llm == nil {
		return Evaluation{}, llm.ErrNoAPIKey
	}
	prompt := fmt.Sprintf("QUESTION: %s\nEXPECTED ANSWER: %s\nSOURCE: %s (%s)\n\nUSER ANSWER: %s",
		q.Text, q.ExpectedAnswer, q.SourceTitle, q.Reference, answer)

	raw, err := g.llm.GenerateJSON(ctx, llm.Request{
		System:      fmt.Sprintf(evaluateSystemPrompt, g.languageName()),
		User:        prompt,
		MaxTokens:   512,
		Temperature: 0.3,
	})
	if err != nil {
		return Evaluation{}, err
	}
	var resp evaluationResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Evaluation{}, fmt.Errorf("%w: malformed evaluation: %w", llm.ErrLLM, err)
	}

	score := 0
	if resp.Score != nil {
		score = int(math.Round(*resp.Score))
	}
	emoji := resp.Emoji
	if emoji == "" {
		emoji = "🟡"
	}
	return Evaluation{
		Score:         min(5, max(0, score)),
		Emoji:         emoji,
		Feedback:      resp.Feedback,
		CorrectAnswer: resp.CorrectAnswer,
		Tip:           resp.Tip,
	}, nil
}
