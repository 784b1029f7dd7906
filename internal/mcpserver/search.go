package mcpserver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/rualca/librarian-agent/internal/logger"
	"github.com/rualca/librarian-agent/internal/search"
	"github.com/rualca/librarian-agent/internal/vault"
)

const maxSearchResults = 20

// SearchTool handles the semantic_search MCP tool. It falls back to keyword
// search when the semantic index yields nothing.
type SearchTool struct {
	vault *vault.Vault
	index SemanticIndex
	log   *slog.Logger
}

// NewSearchTool creates a SearchTool. idx may be nil.
func NewSearchTool(v *vault.Vault, idx SemanticIndex, log *slog.Logger) *SearchTool {
	return &SearchTool{vault: v, index: idx, log: logger.OrNop(log)}
}

// Definition returns the MCP tool definition for semantic_search.
func (t *SearchTool) Definition() mcp.Tool {
	return mcp.NewTool("semantic_search",
		mcp.WithDescription("Search the vault's Cards and Encounters by meaning. "+
			"Falls back to keyword search when the semantic index is unavailable or finds nothing."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Natural language query"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Max results (default: 5, max: 20)"),
		),
	)
}

// Handle processes the semantic_search tool call.
func (t *SearchTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := strings.TrimSpace(req.GetString("query", ""))
	if query == "" {
		return mcp.NewToolResultError("'query' is required"), nil
	}
	limit := min(max(intArg(req, "limit", 5), 1), maxSearchResults)

	if t.index != nil {
		hits, err := t.index.Search(ctx, query, limit)
		if err != nil {
			t.log.Warn("semantic search failed, using keyword search", "error", err)
		}
		if len(hits) > 0 {
			var b strings.Builder
			fmt.Fprintf(&b, "Found %d notes:\n\n", len(hits))
			for i, h := range hits {
				section := ""
				if h.Section != "" {
					section = " > " + h.Section
				}
				fmt.Fprintf(&b, "[%d] %s%s (%.2f)\n    %s\n    %s\n\n",
					i+1, h.Title, section, h.Score, vault.Truncate(h.Text, 300), h.RelPath)
			}
			return mcp.NewToolResultText(b.String()), nil
		}
	}

	docs, err := t.vault.Documents(vault.KindCards, vault.KindEncounters)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("cannot read vault: %v", err)), nil
	}
	results := search.KeywordSearch(docs, query, limit)
	if len(results) == 0 {
		return mcp.NewToolResultText("No notes found matching your query."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d notes (keyword match):\n\n", len(results))
	for i, r := range results {
		pages := ""
		if len(r.Pages) > 0 {
			pages = " | pages: " + strings.Join(r.Pages, ", ")
		}
		fmt.Fprintf(&b, "[%d] %s (%s)%s\n    %s\n\n", i+1, r.Title, r.Kind, pages, r.Snippet)
	}
	return mcp.NewToolResultText(b.String()), nil
}

// EnsureIndexTool handles the ensure_index MCP tool.
type EnsureIndexTool struct {
	index SemanticIndex
}

// NewEnsureIndexTool creates an EnsureIndexTool. idx may be nil.
func NewEnsureIndexTool(idx SemanticIndex) *EnsureIndexTool {
	return &EnsureIndexTool{index: idx}
}

// Definition returns the MCP tool definition for ensure_index.
func (t *EnsureIndexTool) Definition() mcp.Tool {
	return mcp.NewTool("ensure_index",
		mcp.WithDescription("Bring the semantic index up to date with the vault, re-embedding only changed notes."),
		mcp.WithBoolean("force",
			mcp.Description("Discard the index and rebuild it from scratch"),
		),
	)
}

// Handle processes the ensure_index tool call.
func (t *EnsureIndexTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if t.index == nil || !t.index.Available() {
		return mcp.NewToolResultError("semantic index is not configured (missing embeddings API key)"), nil
	}
	rep, err := t.index.EnsureIndex(ctx, boolArg(req, "force", false))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("index update failed: %v", err)), nil
	}
	st := t.index.Stats()
	if !rep.Changed() {
		return mcp.NewToolResultText(fmt.Sprintf("Index is up to date: %d chunks from %d files.", st.TotalChunks, st.TotalFiles)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf(
		"Index updated: %d added, %d updated, %d removed. Now %d chunks from %d files.",
		rep.Added, rep.Updated, rep.Removed, st.TotalChunks, st.TotalFiles,
	)), nil
}
