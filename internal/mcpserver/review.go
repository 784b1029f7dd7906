package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/rualca/librarian-agent/internal/logger"
	"github.com/rualca/librarian-agent/internal/review"
	"github.com/rualca/librarian-agent/internal/vault"
)

const maxDueItems = 50

// DueItemsTool handles the due_items MCP tool.
type DueItemsTool struct {
	vault   *vault.Vault
	tracker *review.Tracker
}

// NewDueItemsTool creates a DueItemsTool.
func NewDueItemsTool(v *vault.Vault, tr *review.Tracker) *DueItemsTool {
	return &DueItemsTool{vault: v, tracker: tr}
}

// Definition returns the MCP tool definition for due_items.
func (t *DueItemsTool) Definition() mcp.Tool {
	return mcp.NewTool("due_items",
		mcp.WithDescription("List vault items due for spaced-repetition review today. "+
			"Items never reviewed come first, then overdue items with the hardest first."),
		mcp.WithNumber("limit",
			mcp.Description("Max items (default: 10, max: 50)"),
		),
	)
}

// Handle processes the due_items tool call.
func (t *DueItemsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := min(max(intArg(req, "limit", 10), 1), maxDueItems)

	items, err := t.vault.ReviewableItems()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("cannot read vault: %v", err)), nil
	}
	due := review.SelectDue(items, t.tracker.Load(), t.tracker.Today())
	if len(due) == 0 {
		return mcp.NewToolResultText("Nothing is due for review today."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d items due (showing %d):\n\n", len(due), min(limit, len(due)))
	for i, d := range due {
		if i == limit {
			break
		}
		state := "overdue"
		if d.NeverReviewed {
			state = "new"
		}
		fmt.Fprintf(&b, "[%d] %s (%s, %s, ease %.2f)\n    %s\n\n",
			i+1, d.Title, d.Type, state, d.EaseFactor, vault.Truncate(d.Content, 200))
	}
	return mcp.NewToolResultText(b.String()), nil
}

// RecordReviewTool handles the record_review MCP tool.
type RecordReviewTool struct {
	tracker *review.Tracker
	log     *slog.Logger
}

// NewRecordReviewTool creates a RecordReviewTool.
func NewRecordReviewTool(tr *review.Tracker, log *slog.Logger) *RecordReviewTool {
	return &RecordReviewTool{tracker: tr, log: logger.OrNop(log)}
}

// Definition returns the MCP tool definition for record_review.
func (t *RecordReviewTool) Definition() mcp.Tool {
	return mcp.NewTool("record_review",
		mcp.WithDescription("Record a recall score for a card or encounter and schedule its next review."),
		mcp.WithString("type",
			mcp.Required(),
			mcp.Enum(string(vault.ItemCard), string(vault.ItemEncounter)),
			mcp.Description("Item type: card or encounter"),
		),
		mcp.WithString("title",
			mcp.Required(),
			mcp.Description("Exact item title"),
		),
		mcp.WithNumber("score",
			mcp.Required(),
			mcp.Description("Recall quality from 0 (blackout) to 5 (perfect)"),
		),
	)
}

// Handle processes the record_review tool call.
func (t *RecordReviewTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	typ := vault.ItemType(req.GetString("type", ""))
	if typ != vault.ItemCard && typ != vault.ItemEncounter {
		return mcp.NewToolResultError("'type' must be card or encounter"), nil
	}
	title := strings.TrimSpace(req.GetString("title", ""))
	if title == "" {
		return mcp.NewToolResultError("'title' is required"), nil
	}
	score := intArg(req, "score", -1)

	rec, err := t.tracker.RecordReview(ctx, typ, title, score)
	if err != nil {
		if errors.Is(err, review.ErrInvalidScore) {
			return mcp.NewToolResultError(err.Error()), nil
		}
		t.log.Error("cannot record review", "title", title, "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("cannot record review: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf(
		"Recorded %d/5 for %q. Next review: %s (interval %d days, ease %.2f).",
		score, title, rec.NextReview, rec.IntervalDays, rec.EaseFactor,
	)), nil
}

// StatsTool handles the review_stats MCP tool.
type StatsTool struct {
	vault   *vault.Vault
	tracker *review.Tracker
	now     func() time.Time
}

// NewStatsTool creates a StatsTool.
func NewStatsTool(v *vault.Vault, tr *review.Tracker) *StatsTool {
	return &StatsTool{vault: v, tracker: tr, now: time.Now}
}

// Definition returns the MCP tool definition for review_stats.
func (t *StatsTool) Definition() mcp.Tool {
	return mcp.NewTool("review_stats",
		mcp.WithDescription("Show spaced-repetition statistics: items tracked, due, retention, strengths and weak spots."),
	)
}

// Handle processes the review_stats tool call.
func (t *StatsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, err := t.vault.ReviewableItems()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("cannot read vault: %v", err)), nil
	}
	st := review.ComputeStats(t.tracker.Load(), len(items), t.now())

	var sb strings.Builder
	sb.WriteString("## Review Statistics\n\n")
	fmt.Fprintf(&sb, "- **Tracked**: %d of %d reviewable\n", st.TotalTracked, st.TotalReviewable)
	fmt.Fprintf(&sb, "- **Never reviewed**: %d\n", st.NeverReviewed)
	fmt.Fprintf(&sb, "- **Reviewed today**: %d\n", st.ReviewedToday)
	fmt.Fprintf(&sb, "- **Due**: %d\n", st.DueCount)
	fmt.Fprintf(&sb, "- **Average retention**: %.1f%%\n", st.AvgRetention)
	fmt.Fprintf(&sb, "- **Upcoming**: %d tomorrow, %d this week\n", st.UpcomingTomorrow, st.UpcomingWeek)
	writeStandings(&sb, "Strengths", st.Strengths)
	writeStandings(&sb, "Needs work", st.NeedsWork)
	return mcp.NewToolResultText(sb.String()), nil
}

func writeStandings(sb *strings.Builder, label string, s []review.Standing) {
	if len(s) == 0 {
		return
	}
	fmt.Fprintf(sb, "\n### %s\n", label)
	for _, x := range s {
		fmt.Fprintf(sb, "- %s (%s, ease %.2f)\n", x.Title, x.Type, x.Ease)
	}
}
