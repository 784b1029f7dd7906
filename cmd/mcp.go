package cmd

import (
	"context"
	"time"

	"github.com/rualca/librarian-agent/internal/mcpserver"
	"github.com/rualca/librarian-agent/internal/quiz"
	"github.com/spf13/cobra"
)

// sessionSweepInterval is how often idle quiz sessions are expired while serving.
const sessionSweepInterval = 5 * time.Minute

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve review, quiz and search tools over MCP (stdio)",
	Long: `Start an MCP server on stdin/stdout exposing due_items, record_review,
semantic_search, review_stats, ensure_index, quiz_start, quiz_answer and
quiz_skip. Idle quizzes expire after quiz.session_ttl. Logs go to stderr.

Example client config:
  {"mcpServers": {"librarian": {"command": "librarian", "args": ["mcp"]}}}`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(_ *cobra.Command, _ []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	deps := mcpserver.Deps{Vault: a.vault, Tracker: a.tracker, Log: a.log}
	m, err := a.indexManager()
	if err != nil {
		a.log.Warn("semantic index disabled", "error", err)
	} else {
		deps.Index = m
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store := quiz.NewMemoryStore(a.cfg.Quiz.SessionTTL, a.log)
	if svc, err := a.quizService(store); err != nil {
		a.log.Warn("quiz tools disabled", "error", err)
	} else {
		deps.Quiz = svc
		go quiz.RunSweeper(ctx, store, sessionSweepInterval, a.log)
	}

	a.log.Info("mcp server starting", "vault", a.cfg.VaultPath)
	err = mcpserver.ServeStdio(mcpserver.New(deps, version))
	a.log.Info("mcp server stopped")
	return err
}
