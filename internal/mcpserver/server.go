// Package mcpserver exposes review tracking, quizzes and vault search as MCP tools
// over stdio.
//
// Each tool is a struct holding its dependencies, with Definition returning
// the mcp.Tool schema and Handle processing a call. Tool failures are
// reported as tool errors, never as protocol errors.
package mcpserver

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rualca/librarian-agent/internal/review"
	"github.com/rualca/librarian-agent/internal/search/index"
	"github.com/rualca/librarian-agent/internal/vault"
)

// SemanticIndex is the part of index.Manager the tools use.
type SemanticIndex interface {
	Available() bool
	EnsureIndex(ctx context.Context, force bool) (index.Report, error)
	Search(ctx context.Context, query string, k int) ([]index.Result, error)
	Stats() index.Stats
}

// Deps are the collaborators shared by the tools. Index may be nil when
// semantic search is not configured, Quiz when no LLM is.
type Deps struct {
	Vault   *vault.Vault
	Tracker *review.Tracker
	Index   SemanticIndex
	Quiz    QuizService
	Log     *slog.Logger
}

type tool interface {
	Definition() mcp.Tool
	Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
}

// New returns an MCP server with every tool registered.
func New(d Deps, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"librarian",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)
	for _, t := range tools(d) {
		s.AddTool(t.Definition(), t.Handle)
	}
	return s
}

// tools returns the tool handlers in registration order.
func tools(d Deps) []tool {
	return []tool{
		NewDueItemsTool(d.Vault, d.Tracker),
		NewRecordReviewTool(d.Tracker, d.Log),
		NewSearchTool(d.Vault, d.Index, d.Log),
		NewStatsTool(d.Vault, d.Tracker),
		NewEnsureIndexTool(d.Index),
		NewQuizStartTool(d.Quiz, d.Log),
		NewQuizAnswerTool(d.Quiz, d.Log),
		NewQuizSkipTool(d.Quiz, d.Log),
	}
}

// ServeStdio serves s on stdin/stdout until the client disconnects.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

const instructions = `Librarian gives access to a markdown knowledge vault of Cards and Encounters.
Use due_items to see what is due for spaced-repetition review, record_review to store
a 0-5 recall score after quizzing the user, and semantic_search to find notes by meaning.
To let librarian run the quiz itself, call quiz_start, then pass each user reply to
quiz_answer (or quiz_skip) until the summary is returned.`

func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

func boolArg(req mcp.CallToolRequest, key string, defaultVal bool) bool {
	v, ok := req.GetArguments()[key].(bool)
	if !ok {
		return defaultVal
	}
	return v
}
