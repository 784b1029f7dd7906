package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMessenger struct {
	replies  map[string]string
	failOn   string
	prompts  []string
	titles   []string
	noCreate bool
}

func (f *fakeMessenger) CreateSession(_ context.Context, title string) (Session, error) {
	if f.noCreate {
		return Session{}, errors.New("server down")
	}
	f.titles = append(f.titles, title)
	return Session{ID: "s1"}, nil
}

func (f *fakeMessenger) SendMessage(_ context.Context, _ string, prompt, agent string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if agent == f.failOn {
		return "", errors.New("agent crashed")
	}
	return f.replies[agent], nil
}

func TestExecuteChain_PassesOutputForward(t *testing.T) {
	steps, err := LookupChain("ingest_and_connect")
	require.NoError(t, err)
	m := &fakeMessenger{replies: map[string]string{"librarian": "captured note", "connector": "linked 3 cards"}}

	res := ExecuteChain(context.Background(), m, "I read Meditations", steps, nil)
	require.True(t, res.Success)
	assert.Equal(t, 2, res.StepsCompleted)
	assert.Equal(t, "**[librarian]**\ncaptured note\n\n---\n\n**[connector]**\nlinked 3 cards", res.Output)
	assert.Equal(t, []string{"chain: librarian → connector"}, m.titles)

	require.Len(t, m.prompts, 2)
	assert.True(t, strings.HasPrefix(m.prompts[0], "## User request\nI read Meditations"))
	assert.Contains(t, m.prompts[0], "following agents will process this: connector.")
	assert.NotContains(t, m.prompts[0], "Previous step")
	assert.Contains(t, m.prompts[1], "## Previous step (librarian) output\ncaptured note")
	assert.Contains(t, m.prompts[1], "## Your task\nBased on what was just captured")
	assert.NotContains(t, m.prompts[1], "following agents")
}

func TestExecuteChain_StopsAtFirstFailure(t *testing.T) {
	steps, err := LookupChain("full_review")
	require.NoError(t, err)
	m := &fakeMessenger{replies: map[string]string{"reviewer": "3 broken links"}, failOn: "archivist"}

	res := ExecuteChain(context.Background(), m, "review", steps, nil)
	assert.False(t, res.Success)
	assert.Equal(t, 1, res.StepsCompleted)
	assert.Equal(t, 2, res.StepsTotal)
	assert.Equal(t, "archivist", res.FailedStep)
	assert.EqualError(t, res.Err, "agent crashed")
	assert.Equal(t, "**[reviewer]**\n3 broken links", res.Output)
}

func TestExecuteChain_SessionFailure(t *testing.T) {
	res := ExecuteChain(context.Background(), &fakeMessenger{noCreate: true}, "x", []Step{{Agent: "a"}}, nil)
	assert.False(t, res.Success)
	assert.Equal(t, "create_session", res.FailedStep)
	assert.Empty(t, res.Output)
}

func TestExecuteChain_SingleStepOutputIsRaw(t *testing.T) {
	m := &fakeMessenger{replies: map[string]string{"writer": "draft"}}
	res := ExecuteChain(context.Background(), m, "x", []Step{{Agent: "writer"}}, nil)
	require.True(t, res.Success)
	assert.Equal(t, "draft", res.Output)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 3))
	assert.Equal(t, "ñá"+truncatedMarker, truncate("ñáé", 2))
}

func TestLookupChain_Unknown(t *testing.T) {
	_, err := LookupChain("full_reveiw")
	assert.ErrorIs(t, err, ErrUnknownChain)
	assert.Contains(t, err.Error(), "full_review")

	_, err = LookupChain("zzz")
	assert.ErrorIs(t, err, ErrUnknownChain)
	assert.Contains(t, err.Error(), "available: capture_and_quiz")
}

func TestChains(t *testing.T) {
	cs := Chains()
	require.Len(t, cs, 4)
	assert.Equal(t, "capture_and_quiz", cs[0].Name)
	assert.Equal(t, "librarian → examiner", cs[0].Description)
}
