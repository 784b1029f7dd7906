package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rualca/librarian-agent/internal/vault"
	"github.com/spf13/cobra"
)

var reviewCmd = &cobra.Command{
	Use:   "review <card|encounter> <title> <score>",
	Short: "Record a 0-5 recall score for an item",
	Long: `Record how well you recalled an item and schedule its next review (SM-2).

Scores: 0 blackout, 1-2 wrong, 3 recalled with effort, 4 good, 5 perfect.
The title is matched fuzzily against the vault.`,
	Args: cobra.ExactArgs(3),
	RunE: runReview,
}

func init() {
	rootCmd.AddCommand(reviewCmd)
}

func runReview(_ *cobra.Command, args []string) error {
	itemType := vault.ItemType(args[0])
	if itemType != vault.ItemCard && itemType != vault.ItemEncounter {
		return fmt.Errorf("unknown item type %q: expected card or encounter", args[0])
	}
	score, err := strconv.Atoi(args[2])
	if err != nil {
		return fmt.Errorf("score must be an integer between 0 and 5: %w", err)
	}

	a, err := loadApp()
	if err != nil {
		return err
	}
	titles, err := a.vault.List(itemType.Kind())
	if err != nil {
		return err
	}
	m := vault.MatchTitle(args[1], titles)
	if !m.Found() {
		if len(m.Suggestions) > 0 {
			return fmt.Errorf("%s %q not found, did you mean: %v", itemType, args[1], m.Suggestions)
		}
		return fmt.Errorf("%s %q not found", itemType, args[1])
	}

	rec, err := a.tracker.RecordReview(context.Background(), itemType, m.Title, score)
	if err != nil {
		return err
	}
	printOK(m.Title, fmt.Sprintf("scored %d/5 — next review %s (in %d day(s), ease %.2f)",
		score, rec.NextReview, rec.IntervalDays, rec.EaseFactor))
	return nil
}
