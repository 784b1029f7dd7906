package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rualca/librarian-agent/internal/config"
	"github.com/rualca/librarian-agent/internal/search/index"
	"github.com/rualca/librarian-agent/internal/vault"
	"github.com/spf13/cobra"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run pre-flight environment checks",
	Long: `Check that Librarian's config, vault, API keys and services are correctly set up.
Run this command when something seems wrong, or before filing a bug report.`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(_ *cobra.Command, _ []string) error {
	allOK := true
	failD := func(format string, args ...any) {
		printErr("", fmt.Sprintf(format, args...))
		allOK = false
	}

	printSection("librarian doctor")
	fmt.Println()

	// ── Check 1: librarian.yaml is valid ──────────────────────────────────────
	fmt.Println("[ librarian.yaml ]")
	cfgPath, _ := config.ConfigPath()
	cfg, loadErr := config.Load()
	if loadErr != nil {
		failD("cannot load %s: %v — run 'librarian init' first", cfgPath, loadErr)
	} else {
		printOK("", fmt.Sprintf("valid YAML: %s", cfgPath))
	}
	fmt.Println()

	// ── Check 2: vault folders ────────────────────────────────────────────────
	fmt.Println("[ Vault ]")
	if loadErr == nil {
		v := vault.New(cfg.VaultPath)
		if _, err := os.Stat(cfg.VaultPath); err != nil {
			failD("vault not found at %s", cfg.VaultPath)
		} else {
			for _, k := range []vault.Kind{vault.KindCards, vault.KindEncounters, vault.KindAtlas} {
				titles, err := v.List(k)
				switch {
				case err != nil:
					failD("[%s] cannot list: %v", k, err)
				case len(titles) == 0:
					if _, statErr := os.Stat(v.Dir(k)); os.IsNotExist(statErr) {
						printWarn(string(k), "folder missing (run 'librarian init')")
					} else {
						printSkip(string(k), "empty")
					}
				default:
					printOK(string(k), fmt.Sprintf("%d notes", len(titles)))
				}
			}
		}
	} else {
		printWarn("", "skipped (librarian.yaml not loaded)")
	}
	fmt.Println()

	// ── Check 3: API keys ─────────────────────────────────────────────────────
	fmt.Println("[ API keys ]")
	for _, k := range []struct{ env, feature string }{
		{config.LLMAPIKeyEnv, "quizzes"},
		{config.EmbeddingsAPIKeyEnv, "semantic search"},
	} {
		val, err := config.GetConfigValue(k.env)
		switch {
		case err != nil:
			failD("cannot read %s: %v", k.env, err)
		case val == "":
			printWarn("", fmt.Sprintf("%s not set — %s disabled", k.env, k.feature))
		default:
			printOK("", fmt.Sprintf("%s set", k.env))
		}
	}
	fmt.Println()

	// ── Check 4: semantic index ───────────────────────────────────────────────
	fmt.Println("[ Semantic index ]")
	if loadErr == nil {
		manifest := filepath.Join(cfg.IndexDir(), index.ManifestFile)
		if _, err := os.Stat(manifest); os.IsNotExist(err) {
			printMiss("", "no index yet (run 'librarian index')")
		} else {
			printOK("", fmt.Sprintf("%s backend, manifest at %s", cfg.Index.Backend, manifest))
		}
	} else {
		printWarn("", "skipped (librarian.yaml not loaded)")
	}
	fmt.Println()

	// ── Check 5: agent server (optional) ──────────────────────────────────────
	fmt.Println("[ Agent server ]")
	if loadErr == nil {
		a := &app{cfg: cfg}
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err := a.agentClient().Health(ctx)
		cancel()
		if err != nil {
			printWarn("", fmt.Sprintf("not reachable at %s — jobs and chains unavailable", cfg.Agent.BaseURL))
		} else {
			printOK("", fmt.Sprintf("healthy: %s", cfg.Agent.BaseURL))
		}
	} else {
		printWarn("", "skipped (librarian.yaml not loaded)")
	}
	fmt.Println()

	// ── Summary ───────────────────────────────────────────────────────────────
	fmt.Println("===================")
	if allOK {
		fmt.Println("✓  All checks passed. Librarian is ready to use.")
	} else {
		fmt.Fprintln(os.Stderr, "✗  One or more checks failed. See details above.")
		return fmt.Errorf("doctor found issues")
	}
	return nil
}
