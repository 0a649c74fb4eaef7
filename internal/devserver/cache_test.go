package devserver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ChatFront/internal/session"
)

func TestCachingResponder(t *testing.T) {
	inner := &recordingResponder{reply: "cached"}
	c := NewCachingResponder(inner, time.Minute)
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	ctx := context.Background()
	history := []session.Message{{Role: session.RoleUser, Content: "Hello"}}

	for i := 0; i < 2; i++ {
		reply, err := c.Reply(ctx, history, "", 0.2)
		require.NoError(t, err)
		require.Equal(t, "cached", reply)
	}
	require.Len(t, inner.history, 1, "second identical call is served from cache")

	_, err := c.Reply(ctx, history, "other-model", 0.2)
	require.NoError(t, err)
	require.Len(t, inner.history, 2, "model is part of the key")

	now = now.Add(2 * time.Minute)
	_, err = c.Reply(ctx, history, "", 0.2)
	require.NoError(t, err)
	require.Len(t, inner.history, 3, "expired entries are refetched")
}

func TestCachingResponder_ErrorsAreNotCached(t *testing.T) {
	inner := &recordingResponder{err: errors.New("quota")}
	c := NewCachingResponder(inner, time.Minute)
	history := []session.Message{{Role: session.RoleUser, Content: "Hello"}}

	_, err := c.Reply(context.Background(), history, "", 0.2)
	require.Error(t, err)
	_, err = c.Reply(context.Background(), history, "", 0.2)
	require.Error(t, err)
	require.Len(t, inner.history, 2)
}

func TestCacheKey_RoleBoundaries(t *testing.T) {
	a := cacheKey([]session.Message{{Role: session.RoleUser, Content: "ab"}}, "", 0.2)
	b := cacheKey([]session.Message{{Role: "usera", Content: "b"}}, "", 0.2)
	require.NotEqual(t, a, b)
}
