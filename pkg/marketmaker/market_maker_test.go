package marketmaker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/erain9/lob/pkg/backend/memory"
	"github.com/erain9/lob/pkg/core"
	"github.com/erain9/lob/pkg/engine"
	"github.com/nikolaydubina/fpdecimal"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPlacer struct {
	mu       sync.Mutex
	placed   []*core.Order
	canceled []int64
}

func (p *recordingPlacer) SubmitOrder(order *core.Order) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.placed = append(p.placed, order)
	return nil
}

func (p *recordingPlacer) CancelOrder(orderID int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.canceled = append(p.canceled, orderID)
	return nil
}

type fixedPrice float64

func (f fixedPrice) FetchPrice(context.Context) (float64, error) { return float64(f), nil }
func (f fixedPrice) Close() error                                { return nil }

func TestMarketMakerRequotesAndCancels(t *testing.T) {
	cfg := DefaultConfig()
	cfg.UpdateInterval = time.Hour

	placer := &recordingPlacer{}
	mm, err := NewMarketMaker(cfg, testLogger(), placer, fixedPrice(100), NewLayeredSymmetricQuoting(cfg, testLogger()), core.NewIDAllocator(0))
	require.NoError(t, err)

	require.NoError(t, mm.Start(context.Background()))
	assert.Equal(t, 6, mm.ActiveOrders())

	require.NoError(t, mm.updateOrders(context.Background()))
	assert.Equal(t, 6, mm.ActiveOrders())

	require.NoError(t, mm.Stop(context.Background()))
	assert.Equal(t, 0, mm.ActiveOrders())

	placer.mu.Lock()
	defer placer.mu.Unlock()
	require.Len(t, placer.placed, 12)
	assert.Len(t, placer.canceled, 12)

	// every placed quote got a fresh id and was eventually canceled
	canceled := make(map[int64]bool)
	for _, id := range placer.canceled {
		canceled[id] = true
	}
	seen := make(map[int64]bool)
	for _, o := range placer.placed {
		assert.False(t, seen[o.ID()], "id %d reused", o.ID())
		seen[o.ID()] = true
		assert.True(t, canceled[o.ID()], "quote %d never canceled", o.ID())
	}
}

func TestNewMarketMakerValidatesConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NumLevels = 0
	_, err := NewMarketMaker(cfg, testLogger(), &recordingPlacer{}, fixedPrice(1), nil, core.NewIDAllocator(0))
	assert.Error(t, err)
}

type failingFetcher struct{}

func (failingFetcher) FetchPrice(context.Context) (float64, error) { return 0, ErrNoPrice }
func (failingFetcher) Close() error                                { return nil }

func TestMarketMakerSurvivesPriceErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.UpdateInterval = time.Millisecond

	placer := &recordingPlacer{}
	mm, err := NewMarketMaker(cfg, testLogger(), placer, failingFetcher{}, NewLayeredSymmetricQuoting(cfg, testLogger()), core.NewIDAllocator(0))
	require.NoError(t, err)

	require.NoError(t, mm.Start(context.Background()))
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, mm.Stop(context.Background()))

	err = mm.updateOrders(context.Background())
	assert.True(t, errors.Is(err, ErrNoPrice))
	assert.Empty(t, placer.placed)
}

func TestSnapshotPriceFetcher(t *testing.T) {
	store := memory.NewSnapshotStore()

	_, err := NewSnapshotPriceFetcher(store, 0, testLogger()).FetchPrice(context.Background())
	assert.ErrorIs(t, err, ErrNoPrice)

	fetcher := NewSnapshotPriceFetcher(store, 50, testLogger())
	defer fetcher.Close()

	price, err := fetcher.FetchPrice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 50.0, price)

	require.NoError(t, store.PublishSnapshot(context.Background(), core.Snapshot{
		BestBid: fpdecimal.FromInt(99),
		BestAsk: fpdecimal.FromInt(101),
		HasBid:  true,
		HasAsk:  true,
	}))
	price, err = fetcher.FetchPrice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 100.0, price)
}

func TestMarketMakerQuotesIntoEngine(t *testing.T) {
	book := core.NewOrderBook()
	store := memory.NewSnapshotStore()
	e := engine.New(book, engine.WithLogger(zerolog.Nop()), engine.WithSnapshotPublishers(store))
	require.NoError(t, e.Start(context.Background()))

	cfg := DefaultConfig()
	cfg.UpdateInterval = time.Hour
	mm, err := NewMarketMaker(cfg, testLogger(), e, NewSnapshotPriceFetcher(store, 100, testLogger()), NewLayeredSymmetricQuoting(cfg, testLogger()), core.NewIDAllocator(0))
	require.NoError(t, err)
	require.NoError(t, mm.Start(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.Eventually(t, func() bool { return book.Len() == 6 }, 5*time.Second, time.Millisecond)
	snap := book.Snapshot(10)
	assert.Len(t, snap.Bids, 3)
	assert.Len(t, snap.Asks, 3)
	require.NoError(t, book.CheckInvariants())

	require.NoError(t, mm.Stop(ctx))
	require.NoError(t, e.Shutdown(ctx))
	assert.Equal(t, 0, book.Len())
}
