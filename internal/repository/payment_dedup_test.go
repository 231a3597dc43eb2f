package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryPaymentDedup(t *testing.T) {
	ctx := context.Background()
	dedup := NewMemoryPaymentDedup(0)

	seen, err := dedup.Seen(ctx, "5077125051")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, dedup.MarkSeen(ctx, "5077125051"))

	seen, err = dedup.Seen(ctx, "5077125051")
	require.NoError(t, err)
	assert.True(t, seen)

	seen, _ = dedup.Seen(ctx, "other")
	assert.False(t, seen)
}

func TestMemoryPaymentDedup_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	dedup := NewMemoryPaymentDedup(time.Hour)
	dedup.now = func() time.Time { return now }

	require.NoError(t, dedup.MarkSeen(ctx, "p1"))

	now = now.Add(59 * time.Minute)
	seen, err := dedup.Seen(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, seen)

	now = now.Add(time.Minute)
	seen, err = dedup.Seen(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestMemoryPaymentDedup_SweepsExpired(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	dedup := NewMemoryPaymentDedup(time.Hour)
	dedup.now = func() time.Time { return now }

	require.NoError(t, dedup.MarkSeen(ctx, "p1"))
	require.NoError(t, dedup.MarkSeen(ctx, "p2"))
	assert.Equal(t, 2, dedup.size())

	now = now.Add(2 * time.Hour)
	require.NoError(t, dedup.MarkSeen(ctx, "p3"))
	assert.Equal(t, 1, dedup.size())
}

func TestRedisPaymentDedup(t *testing.T) {
	// TODO(TEAM-PLATFORM): Run against a disposable Redis in CI
	t.Skip("Integration test - requires redis")
}
