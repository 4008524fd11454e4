package redis

import (
	"context"
	"testing"

	"github.com/erain9/lob/pkg/core"
	"github.com/erain9/lob/pkg/testutil"
	"github.com/nikolaydubina/fpdecimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// setupTestStore connects to the test Redis and clears the keys under prefix
func setupTestStore(t *testing.T, prefix string) *SnapshotStore {
	addr := testutil.RedisAddr()
	testutil.SkipIfRedisUnavailable(t, addr)

	store := NewSnapshotStore(NewClient(RedisOptions{Addr: addr}), prefix, zaptest.NewLogger(t))
	require.NoError(t, store.Ping(context.Background()))

	t.Cleanup(func() {
		store.client.Del(context.Background(), store.bidsKey, store.asksKey, store.bidsQty, store.asksQty, store.metaKey)
		_ = store.Close()
	})
	return store
}

func TestNewSnapshotStoreKeys(t *testing.T) {
	store := NewSnapshotStore(NewClient(RedisOptions{Addr: "localhost:0"}), "lob", nil)
	defer store.Close()

	assert.Equal(t, "lob:bids", store.bidsKey)
	assert.Equal(t, "lob:asks", store.asksKey)
	assert.Equal(t, "lob:bids:qty", store.bidsQty)
	assert.Equal(t, "lob:asks:qty", store.asksQty)
	assert.Equal(t, "lob:meta", store.metaKey)
}

func TestSnapshotStorePublishAndLoad(t *testing.T) {
	store := setupTestStore(t, "test:lob:snapshot")
	ctx := context.Background()

	book := core.NewOrderBook()
	for i, o := range []struct {
		side  core.Side
		qty   int64
		price float64
	}{
		{core.Buy, 5, 99},
		{core.Buy, 2, 98.5},
		{core.Buy, 3, 99},
		{core.Sell, 4, 101},
		{core.Sell, 1, 100.5},
	} {
		order, err := core.NewLimitOrder(int64(i+1), int64(i+1), o.side, o.qty, fpdecimal.FromFloat(o.price))
		require.NoError(t, err)
		_, err = book.Submit(ctx, order)
		require.NoError(t, err)
	}
	stop, err := core.NewStopOrder(10, 10, core.Sell, 1, fpdecimal.FromInt(90))
	require.NoError(t, err)
	_, err = book.Submit(ctx, stop)
	require.NoError(t, err)

	want := book.Snapshot(10)
	require.NoError(t, store.PublishSnapshot(ctx, want))

	got, stops, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stops)
	assert.Equal(t, want.Bids, got.Bids)
	assert.Equal(t, want.Asks, got.Asks)
	assert.True(t, got.HasBid)
	assert.True(t, got.BestBid.Equal(fpdecimal.FromInt(99)))
	assert.True(t, got.BestAsk.Equal(fpdecimal.FromFloat(100.5)))
	assert.False(t, got.HasLastTrade)

	// an empty book clears the previous levels
	require.NoError(t, store.PublishSnapshot(ctx, core.NewOrderBook().Snapshot(10)))
	got, stops, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, got.Bids)
	assert.Empty(t, got.Asks)
	assert.False(t, got.HasBid)
	assert.Equal(t, 0, stops)
}
