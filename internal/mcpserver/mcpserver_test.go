package mcpserver

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rualca/librarian-agent/internal/logger"
	"github.com/rualca/librarian-agent/internal/review"
	"github.com/rualca/librarian-agent/internal/search/index"
	"github.com/rualca/librarian-agent/internal/vault"
)

func makeReq(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func resultText(r *mcp.CallToolResult) string {
	if r == nil {
		return ""
	}
	for _, c := range r.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func newDeps(t *testing.T) Deps {
	t.Helper()
	root := t.TempDir()
	v := vault.New(root)
	require.NoError(t, v.EnsureLayout())
	write := func(rel, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(root, filepath.FromSlash(rel)), []byte(body), 0o644))
	}
	write("Cards/Stoicism.md", "## Idea\nVirtue is the only good.\n")
	write("Cards/Deep Work.md", "## Idea\nFocus is a superpower.\n")
	return Deps{
		Vault:   v,
		Tracker: review.NewTracker(filepath.Join(root, "copilot", "exam-tracker.json"), logger.Nop()),
		Log:     logger.Nop(),
	}
}

type fakeIndex struct {
	available bool
	hits      []index.Result
	err       error
	report    index.Report
	forced    bool
}

func (f *fakeIndex) Available() bool { return f.available }

func (f *fakeIndex) EnsureIndex(_ context.Context, force bool) (index.Report, error) {
	f.forced = force
	return f.report, f.err
}

func (f *fakeIndex) Search(context.Context, string, int) ([]index.Result, error) {
	return f.hits, nil
}

func (f *fakeIndex) Stats() index.Stats { return index.Stats{TotalChunks: 7, TotalFiles: 2} }

func TestNew_RegistersTools(t *testing.T) {
	d := newDeps(t)
	names := map[string]bool{}
	for _, tl := range tools(d) {
		names[tl.Definition().Name] = true
	}
	for _, want := range []string{"due_items", "record_review", "semantic_search", "review_stats", "ensure_index",
		"quiz_start", "quiz_answer", "quiz_skip"} {
		assert.True(t, names[want], want)
	}
	assert.NotNil(t, New(d, "test"))
}

func TestRecordReviewTool_Definition(t *testing.T) {
	def := NewRecordReviewTool(nil, nil).Definition()
	assert.ElementsMatch(t, []string{"type", "title", "score"}, def.InputSchema.Required)
}

func TestDueItemsAndRecordReview(t *testing.T) {
	d := newDeps(t)
	ctx := context.Background()

	res, err := NewDueItemsTool(d.Vault, d.Tracker).Handle(ctx, makeReq(nil))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Contains(t, resultText(res), "2 items due")
	assert.Contains(t, resultText(res), "Stoicism (card, new")

	rec := NewRecordReviewTool(d.Tracker, d.Log)
	res, err = rec.Handle(ctx, makeReq(map[string]any{"type": "card", "title": "Stoicism", "score": float64(5)}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Contains(t, resultText(res), "interval 1 days")

	res, err = NewDueItemsTool(d.Vault, d.Tracker).Handle(ctx, makeReq(nil))
	require.NoError(t, err)
	assert.Contains(t, resultText(res), "1 items due")
	assert.NotContains(t, resultText(res), "Stoicism")
}

func TestRecordReviewTool_Invalid(t *testing.T) {
	d := newDeps(t)
	rec := NewRecordReviewTool(d.Tracker, d.Log)
	ctx := context.Background()

	res, err := rec.Handle(ctx, makeReq(map[string]any{"type": "moc", "title": "X", "score": float64(3)}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, err = rec.Handle(ctx, makeReq(map[string]any{"type": "card", "title": "X", "score": float64(9)}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(res), "between 0 and 5")

	res, err = rec.Handle(ctx, makeReq(map[string]any{"type": "card", "title": "X"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestSearchTool_SemanticHits(t *testing.T) {
	d := newDeps(t)
	idx := &fakeIndex{available: true, hits: []index.Result{{Title: "Stoicism", Section: "Idea", Text: "Virtue", Score: 0.8, RelPath: "Cards/Stoicism.md"}}}

	res, err := NewSearchTool(d.Vault, idx, nil).Handle(context.Background(), makeReq(map[string]any{"query": "ethics"}))
	require.NoError(t, err)
	assert.Contains(t, resultText(res), "Stoicism > Idea (0.80)")
	assert.NotContains(t, resultText(res), "keyword")
}

func TestSearchTool_KeywordFallback(t *testing.T) {
	d := newDeps(t)

	for _, idx := range []SemanticIndex{nil, &fakeIndex{}} {
		res, err := NewSearchTool(d.Vault, idx, nil).Handle(context.Background(), makeReq(map[string]any{"query": "virtue"}))
		require.NoError(t, err)
		assert.Contains(t, resultText(res), "keyword match")
		assert.Contains(t, resultText(res), "Stoicism")
	}

	res, err := NewSearchTool(d.Vault, nil, nil).Handle(context.Background(), makeReq(map[string]any{"query": "zebra"}))
	require.NoError(t, err)
	assert.Contains(t, resultText(res), "No notes found")

	res, err = NewSearchTool(d.Vault, nil, nil).Handle(context.Background(), makeReq(nil))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestEnsureIndexTool(t *testing.T) {
	ctx := context.Background()

	res, err := NewEnsureIndexTool(nil).Handle(ctx, makeReq(nil))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	idx := &fakeIndex{available: true, report: index.Report{Added: 2}}
	res, err = NewEnsureIndexTool(idx).Handle(ctx, makeReq(map[string]any{"force": true}))
	require.NoError(t, err)
	assert.True(t, idx.forced)
	assert.Contains(t, resultText(res), "2 added")

	idx = &fakeIndex{available: true}
	res, err = NewEnsureIndexTool(idx).Handle(ctx, makeReq(nil))
	require.NoError(t, err)
	assert.Contains(t, resultText(res), "up to date: 7 chunks from 2 files")

	idx = &fakeIndex{available: true, err: errors.New("boom")}
	res, err = NewEnsureIndexTool(idx).Handle(ctx, makeReq(nil))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestStatsTool(t *testing.T) {
	d := newDeps(t)
	_, err := d.Tracker.RecordReview(context.Background(), vault.ItemCard, "Stoicism", 5)
	require.NoError(t, err)

	res, err := NewStatsTool(d.Vault, d.Tracker).Handle(context.Background(), makeReq(nil))
	require.NoError(t, err)
	assert.Contains(t, resultText(res), "**Tracked**: 1 of 2 reviewable")
	assert.Contains(t, resultText(res), "**Reviewed today**: 1")
}
