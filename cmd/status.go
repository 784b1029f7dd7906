package cmd

import (
	"fmt"

	"github.com/rualca/librarian-agent/internal/review"
	"github.com/rualca/librarian-agent/internal/search/index"
	"github.com/rualca/librarian-agent/internal/vault"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show vault, review and semantic index status",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(_ *cobra.Command, _ []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}

	fmt.Println("=== Vault ===")
	fmt.Printf("\n  %s\n", a.cfg.VaultPath)
	for _, k := range []vault.Kind{vault.KindCards, vault.KindEncounters, vault.KindAtlas} {
		titles, err := a.vault.List(k)
		if err != nil {
			return err
		}
		fmt.Printf("  %-12s %d\n", k, len(titles))
	}

	items, err := a.vault.ReviewableItems()
	if err != nil {
		return err
	}
	due := review.SelectDue(items, a.tracker.Load(), a.tracker.Today())

	fmt.Println("\n=== Review ===")
	fmt.Printf("\n  %d reviewable / %d due today\n", len(items), len(due))

	fmt.Println("\n=== Semantic Index ===")
	b, err := a.indexBackend()
	if err != nil {
		return err
	}
	st := index.NewManager(a.vault, nil, b, index.Options{Dir: a.cfg.IndexDir()}, a.log).Stats()
	if st.TotalChunks == 0 && st.Model == "" {
		fmt.Println("\n  -  no index yet (run 'librarian index')")
		return nil
	}
	fmt.Printf("\n  %d chunks from %d files  (%s, dim %d, %s backend)\n",
		st.TotalChunks, st.TotalFiles, st.Model, st.Dim, a.cfg.Index.Backend)
	if st.LastUpdated != "" {
		fmt.Printf("  last updated %s\n", st.LastUpdated)
	}
	return nil
}
