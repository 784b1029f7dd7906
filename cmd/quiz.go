package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/rualca/librarian-agent/internal/quiz"
	"github.com/spf13/cobra"
)

// localUser identifies the terminal user in the session store.
const localUser int64 = 0

var (
	flagQuizExam        bool
	flagQuizConnections bool
	flagQuizCount       int
)

var quizCmd = &cobra.Command{
	Use:   "quiz [title]",
	Short: "Start an interactive spaced-repetition quiz",
	Long: `Quiz yourself on due items, or on a single Card or Encounter by title.

Type your answer and press Enter. Commands:
  /skip   skip the current question (not recorded)
  /stop   end the quiz and show the summary`,
	Args: cobra.ArbitraryArgs,
	RunE: runQuiz,
}

func init() {
	quizCmd.Flags().BoolVar(&flagQuizExam, "exam", false, "Deep exam on one item (more, harder questions)")
	quizCmd.Flags().BoolVar(&flagQuizConnections, "connections", false, "Ask how random pairs of items relate")
	quizCmd.Flags().IntVarP(&flagQuizCount, "count", "n", 0, "Number of questions (default from config)")
	quizCmd.MarkFlagsMutuallyExclusive("exam", "connections")
	rootCmd.AddCommand(quizCmd)
}

// quizRunner is the part of quiz.Service the terminal loop drives.
type quizRunner interface {
	Start(ctx context.Context, userID int64, opts quiz.StartOptions) (*quiz.Session, error)
	Answer(ctx context.Context, userID int64, text string) (quiz.AnswerResult, error)
	Skip(ctx context.Context, userID int64) (quiz.AnswerResult, error)
	Stop(ctx context.Context, userID int64) (quiz.Summary, error)
}

func runQuiz(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	svc, err := a.quizService(quiz.NewMemoryStore(a.cfg.Quiz.SessionTTL, a.log))
	if err != nil {
		return err
	}

	opts := quiz.StartOptions{Mode: quiz.ModeDue, Title: strings.Join(args, " "), Count: flagQuizCount}
	switch {
	case flagQuizExam:
		opts.Mode = quiz.ModeExam
	case flagQuizConnections:
		opts.Mode = quiz.ModeConnections
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return quizLoop(ctx, svc, opts, cmd.InOrStdin(), cmd.OutOrStdout())
}

func quizLoop(ctx context.Context, svc quizRunner, opts quiz.StartOptions, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, "⏳ Generating questions...")
	sess, err := svc.Start(ctx, localUser, opts)
	switch {
	case errors.Is(err, quiz.ErrNothingDue):
		fmt.Fprintln(out, "✓  Nothing due today. 🎉")
		return nil
	case quiz.IsNotFound(err):
		printStatus(out, iconMiss, "", err.Error())
		return nil
	case errors.Is(err, quiz.ErrNoQuestions):
		return fmt.Errorf("could not generate questions; check your LLM settings with 'librarian doctor'")
	case err != nil:
		return err
	}

	q, _ := sess.Current()
	total := sess.Len()
	pos := 1
	printQuestion(out, q, pos, total)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "\n> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var res quiz.AnswerResult
		switch strings.ToLower(line) {
		case "/stop":
			sum, err := svc.Stop(ctx, localUser)
			if err != nil {
				return err
			}
			printSummary(out, sum)
			return nil
		case "/skip":
			res, err = svc.Skip(ctx, localUser)
			if err == nil {
				fmt.Fprintln(out, "  ○  skipped")
			}
		default:
			fmt.Fprintln(out, "⏳ Evaluating...")
			res, err = svc.Answer(ctx, localUser, line)
			if err == nil {
				printEvaluation(out, res.Evaluation)
			}
		}
		if err != nil {
			return err
		}

		if res.Summary != nil {
			printSummary(out, *res.Summary)
			return nil
		}
		pos++
		printQuestion(out, *res.Next, pos, total)
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	// Input closed mid-quiz.
	sum, err := svc.Stop(ctx, localUser)
	if err != nil {
		return err
	}
	printSummary(out, sum)
	return nil
}

func printQuestion(out io.Writer, q quiz.Question, pos, total int) {
	fmt.Fprintf(out, "\n❓ Question %d/%d  [%s · %s]\n\n%s\n", pos, total, q.SourceTitle, q.Type, q.Text)
	if q.Reference != "" {
		fmt.Fprintf(out, "   (%s)\n", q.Reference)
	}
}

func printEvaluation(out io.Writer, e quiz.Evaluation) {
	fmt.Fprintf(out, "\n%s %d/5  %s\n", e.Emoji, e.Score, e.Feedback)
	if e.CorrectAnswer != "" && e.Score < 5 {
		fmt.Fprintf(out, "   ✏️  %s\n", e.CorrectAnswer)
	}
	if e.Tip != "" {
		fmt.Fprintf(out, "   💡 %s\n", e.Tip)
	}
}

func printSummary(out io.Writer, s quiz.Summary) {
	fmt.Fprintln(out, "\n=== Quiz summary ===")
	if s.Answered == 0 {
		fmt.Fprintf(out, "\n  No answers recorded (%d skipped).\n", s.Skipped)
		return
	}
	fmt.Fprintf(out, "\n  Score: %d/%d (%.0f%%)\n", s.Score, s.MaxScore, s.Percent())
	fmt.Fprintf(out, "  ✅ %d  ⚠️ %d  ❌ %d  ○ %d skipped\n", s.Passed, s.Partial, s.Failed, s.Skipped)
	for i, r := range s.Results {
		icon := "○"
		switch r.Outcome {
		case quiz.OutcomePass:
			icon = "✅"
		case quiz.OutcomePartial:
			icon = "⚠️"
		case quiz.OutcomeFail:
			icon = "❌"
		}
		fmt.Fprintf(out, "  %d. %s %s\n", i+1, icon, r.Question.SourceTitle)
	}
}
