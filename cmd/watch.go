package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rualca/librarian-agent/internal/search/index"
	"github.com/spf13/cobra"
)

var flagWatchDebounce time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keep the semantic index in sync while you edit the vault",
	Args:  cobra.NoArgs,
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&flagWatchDebounce, "debounce", index.DefaultDebounce, "Quiet period after the last edit before re-indexing")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(_ *cobra.Command, _ []string) error {
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	update := func(ctx context.Context) error {
		rep, err := m.EnsureIndex(ctx, false)
		if err != nil {
			return err
		}
		if rep.Changed() {
			printOK("", fmt.Sprintf("%d added, %d updated, %d removed", rep.Added, rep.Updated, rep.Removed))
		}
		return nil
	}
	if err := update(ctx); err != nil {
		return fmt.Errorf("initial index update failed: %w", err)
	}

	folders := a.cfg.Index.Folders
	if len(folders) == 0 {
		folders = index.DefaultFolders
	}
	dirs := make([]string, len(folders))
	for i, f := range folders {
		dirs[i] = filepath.Join(a.cfg.VaultPath, f)
	}

	printInfo("", fmt.Sprintf("watching %d folder(s) in %s (Ctrl+C to stop)", len(dirs), a.cfg.VaultPath))
	err = index.Watch(ctx, dirs, flagWatchDebounce, update, a.log)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
