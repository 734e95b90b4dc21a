package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type view struct {
	ID     string   `json:"id"`
	Status string   `json:"status"`
	Tags   []string `json:"tags"`
}

func TestJSONRoundTripDoesNotShareState(t *testing.T) {
	ctx := context.Background()
	store := NewStore(Options{DefaultTTL: time.Minute})

	original := view{ID: "o-1", Status: "pending", Tags: []string{"a"}}
	require.NoError(t, store.SetJSON(ctx, "o-1", original, 0))
	original.Tags[0] = "mutated"

	var got view
	ok, err := store.GetJSON(ctx, "o-1", &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"a"}, got.Tags)

	ttl, ok := store.TTL(ctx, "o-1")
	require.True(t, ok)
	assert.LessOrEqual(t, ttl, time.Minute)
}

func TestNamespacesAreIsolated(t *testing.T) {
	ctx := context.Background()
	root := NewStore(Options{Prefix: "orderdesk"})
	orders := root.Namespace("orders")
	other := root.Namespace("watch")

	require.NoError(t, orders.SetJSON(ctx, "o-1", view{ID: "o-1"}, time.Minute))

	ok, err := other.GetJSON(ctx, "o-1", nil)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = root.GetJSON(ctx, "orders:o-1", nil)
	require.NoError(t, err)
	assert.True(t, ok)

	orders.Delete(ctx, "o-1")
	ok, err = orders.GetJSON(ctx, "o-1", nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestExpiredEntryIsMissing(t *testing.T) {
	ctx := context.Background()
	store := NewStore(Options{DefaultTTL: time.Minute})
	require.NoError(t, store.SetJSON(ctx, "short", view{ID: "x"}, 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)

	ok, err := store.GetJSON(ctx, "short", nil)
	require.NoError(t, err)
	assert.False(t, ok)
}
