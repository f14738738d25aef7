package dedupe_test

import (
	"testing"
	"time"

	"github.com/DeafMist/agentic-voice/backend/internal/dedupe"
	"github.com/stretchr/testify/require"
)

func TestCacheSeenDuplicate(t *testing.T) {
	cache := dedupe.NewCache(10, time.Minute)
	require.False(t, cache.IsSeen("https://example.com/a"))
	cache.MarkSeen("https://example.com/a")
	require.True(t, cache.IsSeen("https://example.com/a"))
}

func TestCacheTTLExpiry(t *testing.T) {
	cache := dedupe.NewCache(10, 20*time.Millisecond)
	cache.MarkSeen("beta")
	time.Sleep(25 * time.Millisecond)
	require.False(t, cache.IsSeen("beta"))
}

func TestCacheCapacityEvictsOldest(t *testing.T) {
	cache := dedupe.NewCache(1, time.Minute)
	cache.MarkSeen("first")
	cache.MarkSeen("second")

	require.False(t, cache.IsSeen("first"))
	require.True(t, cache.IsSeen("second"))
	require.Equal(t, 1, cache.Len())
}
