package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rualca/librarian-agent/internal/search"
	"github.com/rualca/librarian-agent/internal/vault"
	"github.com/spf13/cobra"
)

var (
	flagSearchKeyword  bool
	flagSearchSemantic bool
	flagSearchK        int
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search Cards and Encounters by meaning or keyword",
	Long: `Search the vault. By default the semantic index is tried first and keyword
search is used when it is unavailable or finds nothing.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().BoolVar(&flagSearchKeyword, "keyword", false, "Force keyword search only")
	searchCmd.Flags().BoolVar(&flagSearchSemantic, "semantic", false, "Force semantic search only (error if unavailable)")
	searchCmd.Flags().IntVarP(&flagSearchK, "limit", "k", 5, "Number of results to show")
	searchCmd.MarkFlagsMutuallyExclusive("keyword", "semantic")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(_ *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	query := strings.Join(args, " ")

	if flagSearchKeyword {
		return runSearchKeyword(a, query)
	}

	results, err := semanticSearch(a, query)
	if err != nil && flagSearchSemantic {
		return err
	}
	if len(results) > 0 || flagSearchSemantic {
		printSearchResults(query, results)
		return nil
	}
	if err != nil {
		a.log.Debug("semantic search unavailable, falling back to keyword", "error", err)
	}
	return runSearchKeyword(a, query)
}

func runSearchKeyword(a *app, query string) error {
	docs, err := a.vault.Documents(vault.KindCards, vault.KindEncounters)
	if err != nil {
		return err
	}
	printSearchResults(query, search.KeywordSearch(docs, query, flagSearchK))
	return nil
}

func semanticSearch(a *app, query string) ([]search.Result, error) {
	m, err := a.indexManager()
	if err != nil {
		return nil, err
	}
	if !m.Available() {
		return nil, errors.New("semantic search unavailable: embeddings API key not configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	hits, err := m.Search(ctx, query, flagSearchK)
	if err != nil {
		return nil, err
	}

	results := make([]search.Result, 0, len(hits))
	for _, h := range hits {
		kind := vault.KindCards
		if strings.HasPrefix(h.RelPath, string(vault.KindEncounters)+"/") {
			kind = vault.KindEncounters
		}
		title := h.Title
		if h.Section != "" {
			title += " > " + h.Section
		}
		results = append(results, search.Result{
			Kind:    kind,
			Title:   title,
			Snippet: vault.Truncate(strings.Join(strings.Fields(h.Text), " "), 200),
			Score:   h.Score,
			Why:     "semantic",
		})
	}
	return results, nil
}

func printSearchResults(query string, results []search.Result) {
	fmt.Printf("\nlibrarian search %q\n\n", query)
	fmt.Printf("Results (%d found):\n", len(results))
	if len(results) == 0 {
		return
	}

	grouped := make(map[vault.Kind][]search.Result)
	for _, r := range results {
		grouped[r.Kind] = append(grouped[r.Kind], r)
	}

	for _, k := range []vault.Kind{vault.KindCards, vault.KindEncounters} {
		items := grouped[k]
		if len(items) == 0 {
			continue
		}
		fmt.Printf("\n%s (%d):\n", k, len(items))

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		for i, r := range items {
			score := ""
			if r.Why == "semantic" {
				score = fmt.Sprintf("[%.3f]", r.Score)
			}
			pages := ""
			if len(r.Pages) > 0 {
				pages = "  (" + strings.Join(r.Pages, ", ") + ")"
			}
			fmt.Fprintf(w, "  %d.\t%s\t%s%s\n", i+1, score, r.Title, pages)
			fmt.Fprintf(w, "  - %s\n", strings.TrimSpace(r.Snippet))
		}
		_ = w.Flush()
	}
}
