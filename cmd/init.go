package cmd

import (
	"fmt"
	"os"

	"github.com/rualca/librarian-agent/internal/config"
	"github.com/rualca/librarian-agent/internal/vault"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init [vault-path]",
	Short: "Write the default config and create the vault folders",
	Long: `Initialize Librarian.

Creates ~/.librarian/librarian.yaml (if missing), a ~/.librarian/.env template
for API keys, and the Cards/, Encounters/, Atlas/ and copilot/ folders in the vault.

  librarian init                 use the default vault at ~/vault
  librarian init ~/notes         use an existing vault`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(_ *cobra.Command, args []string) error {
	// ── 1. Resolve ~/.librarian directory ─────────────────────────────────────
	dir, err := config.Dir()
	if err != nil {
		return err
	}
	cfgPath, err := config.ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create %s: %w", dir, err)
	}
	printOK("", fmt.Sprintf("Librarian directory ready: %s", dir))

	// ── 2. Write librarian.yaml if missing ────────────────────────────────────
	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		cfg, err := config.DefaultConfig()
		if err != nil {
			return err
		}
		if len(args) == 1 {
			if cfg.VaultPath, err = config.ExpandPath(args[0]); err != nil {
				return err
			}
		}
		if err := config.Save(cfg); err != nil {
			return err
		}
		printOK("", fmt.Sprintf("Config written: %s", cfgPath))
	} else {
		printSkip("", fmt.Sprintf("Config already exists: %s", cfgPath))
		if len(args) == 1 {
			printWarn("", "vault path argument ignored; edit vault_path in the config to change it")
		}
	}

	// ── 3. Dotenv template for API keys ───────────────────────────────────────
	envPath, err := config.DotEnvPath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(envPath); os.IsNotExist(err) {
		if err := config.EnsureDotEnvTemplate(); err != nil {
			return err
		}
		printOK("", fmt.Sprintf("API key template written: %s", envPath))
	} else {
		printSkip("", fmt.Sprintf("API key file already exists: %s", envPath))
	}

	// ── 4. Vault layout ───────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := vault.New(cfg.VaultPath).EnsureLayout(); err != nil {
		return err
	}
	printOK("", fmt.Sprintf("Vault ready: %s", cfg.VaultPath))

	fmt.Println("\n✓  librarian init complete. Add your API keys, then run 'librarian doctor'.")
	return nil
}
