package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunLock_Exclusive(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	a := NewRunLock(c, "expasy", time.Minute, nil)
	b := NewRunLock(c, "expasy", time.Minute, nil)

	ok, err := a.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, b.Unlock(ctx), ErrLockNotHeld)
	require.NoError(t, a.Unlock(ctx))

	ok, err = b.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRunLock_StoresToken(t *testing.T) {
	c, mr := newTestClient(t)
	l := NewRunLock(c, "rhea", time.Minute, nil)

	ok, err := l.TryLock(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	got, err := mr.Get("rxn:lock:rhea")
	require.NoError(t, err)
	assert.Equal(t, l.token, got)
	assert.Equal(t, time.Minute, mr.TTL("rxn:lock:rhea"))
}

func TestRunLock_Extend(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()
	l := NewRunLock(c, "rhea", time.Minute, nil)

	ok, err := l.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(50 * time.Second)
	require.NoError(t, l.Extend(ctx))
	assert.Equal(t, time.Minute, mr.TTL("rxn:lock:rhea"))
}

func TestRunLock_ExtendAfterExpiry(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()
	l := NewRunLock(c, "rhea", time.Minute, nil)

	ok, err := l.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Minute)
	assert.ErrorIs(t, l.Extend(ctx), ErrLockNotHeld)
}

func TestRunLock_HoldStopsOnCancel(t *testing.T) {
	c, _ := newTestClient(t)
	l := NewRunLock(c, "rhea", 30*time.Millisecond, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		l.Hold(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Hold did not return after cancel")
	}
}
