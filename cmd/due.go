package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rualca/librarian-agent/internal/review"
	"github.com/spf13/cobra"
)

var (
	flagDueLimit int
	flagDueJSON  bool
)

var dueCmd = &cobra.Command{
	Use:   "due",
	Short: "List Cards and Encounters due for review today",
	Args:  cobra.NoArgs,
	RunE:  runDue,
}

func init() {
	dueCmd.Flags().IntVarP(&flagDueLimit, "limit", "n", 20, "Maximum number of items to show (0 = all)")
	dueCmd.Flags().BoolVar(&flagDueJSON, "json", false, "Print due items as JSON")
	rootCmd.AddCommand(dueCmd)
}

func runDue(_ *cobra.Command, _ []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	items, err := a.vault.ReviewableItems()
	if err != nil {
		return err
	}
	due := review.SelectDue(items, a.tracker.Load(), a.tracker.Today())
	total := len(due)
	if flagDueLimit > 0 && len(due) > flagDueLimit {
		due = due[:flagDueLimit]
	}

	if flagDueJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(due)
	}

	if total == 0 {
		printOK("", "Nothing due today. 🎉")
		return nil
	}
	fmt.Printf("%d item(s) due for review (showing %d):\n\n", total, len(due))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  #\tTYPE\tSTATE\tEASE\tTITLE")
	for i, d := range due {
		state := "overdue"
		if d.NeverReviewed {
			state = "new"
		}
		fmt.Fprintf(w, "  %d\t%s\t%s\t%.2f\t%s\n", i+1, d.Type, state, d.EaseFactor, d.Title)
	}
	return w.Flush()
}
