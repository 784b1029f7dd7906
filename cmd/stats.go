package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rualca/librarian-agent/internal/review"
	"github.com/spf13/cobra"
)

var flagStatsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show spaced-repetition statistics",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().BoolVar(&flagStatsJSON, "json", false, "Print statistics as JSON")
	rootCmd.AddCommand(statsCmd)
}

func runStats(_ *cobra.Command, _ []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	items, err := a.vault.ReviewableItems()
	if err != nil {
		return err
	}
	st := review.ComputeStats(a.tracker.Load(), len(items), time.Now())

	if flagStatsJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}

	printSection("Review statistics")
	fmt.Printf("\n  Tracked:          %d of %d reviewable\n", st.TotalTracked, st.TotalReviewable)
	fmt.Printf("  Never reviewed:   %d\n", st.NeverReviewed)
	fmt.Printf("  Reviewed today:   %d\n", st.ReviewedToday)
	fmt.Printf("  Due:              %d\n", st.DueCount)
	fmt.Printf("  Avg retention:    %.1f%%\n", st.AvgRetention)
	fmt.Printf("  Upcoming:         %d tomorrow, %d within 7 days\n", st.UpcomingTomorrow, st.UpcomingWeek)

	if len(st.Strengths) > 0 {
		printBullet("Strengths:")
		for _, s := range st.Strengths {
			printOK(string(s.Type), fmt.Sprintf("%s (ease %.2f)", s.Title, s.Ease))
		}
	}
	if len(st.NeedsWork) > 0 {
		printBullet("Needs work:")
		for _, s := range st.NeedsWork {
			printWarn(string(s.Type), fmt.Sprintf("%s (ease %.2f)", s.Title, s.Ease))
		}
	}
	return nil
}
