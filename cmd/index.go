package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/rualca/librarian-agent/internal/search/index"
	"github.com/spf13/cobra"
)

var flagIndexForce bool

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Bring the semantic index up to date with the vault",
	Long: `Chunk and embed new or changed Cards and Encounters, and drop deleted ones.
Only files whose modification time or size changed are re-embedded.`,
	Args: cobra.NoArgs,
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&flagIndexForce, "force", false, "Discard the index and rebuild it from scratch")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(_ *cobra.Command, _ []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	m, err := a.indexManager()
	if err != nil {
		return err
	}
	if !m.Available() {
		return fmt.Errorf("%w: set an embeddings API key in ~/.librarian/.env", index.ErrUnavailable)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	printInfo("", fmt.Sprintf("updating semantic index in %s", a.cfg.IndexDir()))
	rep, err := m.EnsureIndex(ctx, flagIndexForce)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			printWarn("", "interrupted; index left unchanged")
			return nil
		}
		return fmt.Errorf("index update failed: %w", err)
	}
	st := m.Stats()
	if rep.Changed() {
		printOK("", fmt.Sprintf("%d added, %d updated, %d removed", rep.Added, rep.Updated, rep.Removed))
	} else {
		printSkip("", "already up to date")
	}
	printInfo("", fmt.Sprintf("%d chunks from %d files (%s)", st.TotalChunks, st.TotalFiles, st.Model))
	return nil
}
