// Package search implements keyword search over vault documents, the
// fallback used when semantic search is unavailable or finds nothing.
package search

import "github.com/rualca/librarian-agent/internal/vault"

// Result is one matched vault document.
type Result struct {
	Kind    vault.Kind
	Title   string
	Snippet string
	// Pages lists page references ("p.47") on lines mentioning the query.
	// Only encounters carry them.
	Pages []string
	Score float64
	Why   string
}
