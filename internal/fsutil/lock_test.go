package fsutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireLock(t *testing.T) {
	p := filepath.Join(t.TempDir(), "x", "state.lock")

	release, err := AcquireLock(context.Background(), p, time.Second)
	require.NoError(t, err)

	_, ok, err := TryLock(p)
	require.NoError(t, err)
	assert.False(t, ok, "second holder must not get the lock")

	_, err = AcquireLock(context.Background(), p, 120*time.Millisecond)
	assert.ErrorIs(t, err, ErrLocked)

	release()

	release2, ok, err := TryLock(p)
	require.NoError(t, err)
	assert.True(t, ok)
	release2()
}

func TestAcquireLock_ContextCancelled(t *testing.T) {
	p := filepath.Join(t.TempDir(), "state.lock")
	release, err := AcquireLock(context.Background(), p, time.Second)
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = AcquireLock(ctx, p, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}
