package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/rualca/librarian-agent/internal/logger"
	"github.com/rualca/librarian-agent/internal/quiz"
)

// QuizService is the part of quiz.Service the quiz tools drive.
type QuizService interface {
	Start(ctx context.Context, userID int64, opts quiz.StartOptions) (*quiz.Session, error)
	Current(ctx context.Context, userID int64) (*quiz.Session, quiz.Question, error)
	Answer(ctx context.Context, userID int64, text string) (quiz.AnswerResult, error)
	Skip(ctx context.Context, userID int64) (quiz.AnswerResult, error)
}

const errQuizDisabled = "quiz is not available: configure an LLM provider and API key (see 'librarian doctor')"

func userArg(req mcp.CallToolRequest) int64 {
	return int64(intArg(req, "user", 0))
}

func withUser() mcp.ToolOption {
	return mcp.WithNumber("user",
		mcp.Description("Quiz owner id when several people share the server (default: 0)"),
	)
}

// QuizStartTool handles the quiz_start MCP tool.
type QuizStartTool struct {
	svc QuizService
	log *slog.Logger
}

// NewQuizStartTool creates a QuizStartTool.
func NewQuizStartTool(svc QuizService, log *slog.Logger) *QuizStartTool {
	return &QuizStartTool{svc: svc, log: logger.OrNop(log)}
}

// Definition returns the MCP tool definition for quiz_start.
func (t *QuizStartTool) Definition() mcp.Tool {
	return mcp.NewTool("quiz_start",
		mcp.WithDescription("Start a quiz and return its first question. Starting a quiz discards "+
			"any quiz the user had in progress. Answers are graded with quiz_answer."),
		mcp.WithString("mode",
			mcp.Enum(string(quiz.ModeDue), string(quiz.ModeExam), string(quiz.ModeConnections)),
			mcp.Description("due (default): most urgent items; exam: deep quiz on one item; connections: how items relate"),
		),
		mcp.WithString("title",
			mcp.Description("Card or Encounter to quiz on; fuzzy matched"),
		),
		mcp.WithNumber("count",
			mcp.Description("Number of questions (default from config)"),
		),
		withUser(),
	)
}

// Handle processes the quiz_start tool call.
func (t *QuizStartTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if t.svc == nil {
		return mcp.NewToolResultError(errQuizDisabled), nil
	}
	opts := quiz.StartOptions{
		Mode:  quiz.Mode(req.GetString("mode", string(quiz.ModeDue))),
		Title: strings.TrimSpace(req.GetString("title", "")),
		Count: max(intArg(req, "count", 0), 0),
	}

	sess, err := t.svc.Start(ctx, userArg(req), opts)
	switch {
	case errors.Is(err, quiz.ErrNothingDue):
		return mcp.NewToolResultText("Nothing is due for review today."), nil
	case quiz.IsNotFound(err):
		return mcp.NewToolResultError(err.Error()), nil
	case errors.Is(err, quiz.ErrNoQuestions):
		return mcp.NewToolResultError("Could not generate questions. Try again or pick another item."), nil
	case err != nil:
		t.log.Error("cannot start quiz", "mode", opts.Mode, "title", opts.Title, "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("cannot start quiz: %v", err)), nil
	}

	q, _ := sess.Current()
	var b strings.Builder
	fmt.Fprintf(&b, "Quiz started (%s, %d questions).\n\n", sess.Mode, sess.Len())
	writeQuestion(&b, sess, q)
	return mcp.NewToolResultText(b.String()), nil
}

// QuizAnswerTool handles the quiz_answer MCP tool.
type QuizAnswerTool struct {
	svc QuizService
	log *slog.Logger
}

// NewQuizAnswerTool creates a QuizAnswerTool.
func NewQuizAnswerTool(svc QuizService, log *slog.Logger) *QuizAnswerTool {
	return &QuizAnswerTool{svc: svc, log: logger.OrNop(log)}
}

// Definition returns the MCP tool definition for quiz_answer.
func (t *QuizAnswerTool) Definition() mcp.Tool {
	return mcp.NewTool("quiz_answer",
		mcp.WithDescription("Grade the user's answer to the current quiz question, record the score "+
			"for spaced repetition and return the next question or the final summary."),
		mcp.WithString("answer",
			mcp.Required(),
			mcp.Description("The user's answer, in their own words"),
		),
		withUser(),
	)
}

// Handle processes the quiz_answer tool call.
func (t *QuizAnswerTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if t.svc == nil {
		return mcp.NewToolResultError(errQuizDisabled), nil
	}
	answer := strings.TrimSpace(req.GetString("answer", ""))
	if answer == "" {
		return mcp.NewToolResultError("'answer' is required"), nil
	}
	user := userArg(req)
	res, err := t.svc.Answer(ctx, user, answer)
	if err != nil {
		return quizError(t.log, err), nil
	}

	var b strings.Builder
	e := res.Evaluation
	fmt.Fprintf(&b, "%s %d/5 %s\n", e.Emoji, e.Score, e.Feedback)
	if e.CorrectAnswer != "" && e.Score < 5 {
		fmt.Fprintf(&b, "Expected: %s\n", e.CorrectAnswer)
	}
	if e.Tip != "" {
		fmt.Fprintf(&b, "Tip: %s\n", e.Tip)
	}
	if res.Record != nil {
		fmt.Fprintf(&b, "Next review of %q: %s\n", res.Question.SourceTitle, res.Record.NextReview)
	}
	writeProgress(ctx, &b, t.svc, user, res)
	return mcp.NewToolResultText(b.String()), nil
}

// QuizSkipTool handles the quiz_skip MCP tool.
type QuizSkipTool struct {
	svc QuizService
	log *slog.Logger
}

// NewQuizSkipTool creates a QuizSkipTool.
func NewQuizSkipTool(svc QuizService, log *slog.Logger) *QuizSkipTool {
	return &QuizSkipTool{svc: svc, log: logger.OrNop(log)}
}

// Definition returns the MCP tool definition for quiz_skip.
func (t *QuizSkipTool) Definition() mcp.Tool {
	return mcp.NewTool("quiz_skip",
		mcp.WithDescription("Skip the current quiz question. Skipped questions are not scored or recorded."),
		withUser(),
	)
}

// Handle processes the quiz_skip tool call.
func (t *QuizSkipTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if t.svc == nil {
		return mcp.NewToolResultError(errQuizDisabled), nil
	}
	user := userArg(req)
	res, err := t.svc.Skip(ctx, user)
	if err != nil {
		return quizError(t.log, err), nil
	}
	var b strings.Builder
	b.WriteString("Skipped.\n")
	writeProgress(ctx, &b, t.svc, user, res)
	return mcp.NewToolResultText(b.String()), nil
}

func quizError(log *slog.Logger, err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, quiz.ErrNoActiveSession), errors.Is(err, quiz.ErrSessionComplete):
		return mcp.NewToolResultError("No quiz in progress. Start one with quiz_start.")
	case errors.Is(err, quiz.ErrSessionReplaced):
		return mcp.NewToolResultError("That quiz was replaced by a newer one; answer its current question instead.")
	}
	log.Error("quiz call failed", "error", err)
	return mcp.NewToolResultError(fmt.Sprintf("quiz failed: %v", err))
}

// writeProgress appends the next question, or the summary once the quiz ended.
func writeProgress(ctx context.Context, b *strings.Builder, svc QuizService, user int64, res quiz.AnswerResult) {
	if res.Summary != nil {
		writeSummary(b, *res.Summary)
		return
	}
	sess, q, err := svc.Current(ctx, user)
	if err != nil {
		return
	}
	b.WriteString("\n")
	writeQuestion(b, sess, q)
}

func writeQuestion(b *strings.Builder, sess *quiz.Session, q quiz.Question) {
	fmt.Fprintf(b, "Question %d/%d [%s, %s]\n%s\n", sess.Position()+1, sess.Len(), q.SourceTitle, q.Type, q.Text)
	if q.Reference != "" {
		fmt.Fprintf(b, "(%s)\n", q.Reference)
	}
}

func writeSummary(b *strings.Builder, s quiz.Summary) {
	b.WriteString("\n## Quiz finished\n\n")
	if s.Answered == 0 {
		fmt.Fprintf(b, "No answers recorded (%d skipped).\n", s.Skipped)
		return
	}
	fmt.Fprintf(b, "Score: %d/%d (%.0f%%)\n", s.Score, s.MaxScore, s.Percent())
	fmt.Fprintf(b, "Passed %d, partial %d, failed %d, skipped %d\n", s.Passed, s.Partial, s.Failed, s.Skipped)
}
