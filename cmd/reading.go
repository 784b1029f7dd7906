package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var flagReadingJSON bool

var readingCmd = &cobra.Command{
	Use:   "reading",
	Short: "Show the reading dashboard of every Encounter",
	Args:  cobra.NoArgs,
	RunE:  runReading,
}

func init() {
	readingCmd.Flags().BoolVar(&flagReadingJSON, "json", false, "Print the dashboard as JSON")
	rootCmd.AddCommand(readingCmd)
}

func runReading(_ *cobra.Command, _ []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	books, err := a.vault.ReadingDashboard()
	if err != nil {
		return err
	}

	if flagReadingJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(books)
	}
	if len(books) == 0 {
		printMiss("", "No Encounters in the vault yet.")
		return nil
	}

	done := 0
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  STATUS\tRATING\tENTRIES\tUPDATED\tTITLE")
	for _, b := range books {
		if b.Status == "done" {
			done++
		}
		title := b.Title
		if b.Author != "" {
			title += " (" + b.Author + ")"
		}
		rating := "-"
		if b.Rating > 0 {
			rating = strings.Repeat("★", min(b.Rating, 5))
		}
		fmt.Fprintf(w, "  %s\t%s\t%d\t%s\t%s\n", b.Status, rating, b.Entries, b.Updated, title)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\n%d book(s), %d finished, %d in progress.\n", len(books), done, len(books)-done)
	return nil
}
