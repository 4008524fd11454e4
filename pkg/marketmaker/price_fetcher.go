package marketmaker

import (
	"context"
	"errors"
	"log/slog"

	"github.com/erain9/lob/pkg/core"
)

// ErrNoPrice is returned when neither the book nor the fallback has a price
var ErrNoPrice = errors.New("no reference price available")

// SnapshotSource provides the latest published book snapshot
type SnapshotSource interface {
	Latest() (core.Snapshot, bool)
}

// snapshotPriceFetcher implements PriceFetcher from published snapshots
type snapshotPriceFetcher struct {
	source   SnapshotSource
	fallback float64
	logger   *slog.Logger
}

// NewSnapshotPriceFetcher creates a PriceFetcher that quotes around the
// book mid, falling back to the last trade and then to fallback.
func NewSnapshotPriceFetcher(source SnapshotSource, fallback float64, logger *slog.Logger) PriceFetcher {
	return &snapshotPriceFetcher{
		source:   source,
		fallback: fallback,
		logger:   logger.With("component", "snapshotPriceFetcher"),
	}
}

// FetchPrice implements PriceFetcher
func (f *snapshotPriceFetcher) FetchPrice(_ context.Context) (float64, error) {
	if snap, ok := f.source.Latest(); ok {
		if mid, ok := snap.Mid(); ok {
			f.logger.Debug("Fetched price from snapshot", "price", mid.Float64(), "sequence", snap.Sequence)
			return mid.Float64(), nil
		}
	}

	if f.fallback > 0 {
		f.logger.Debug("Book has no price, using fallback", "price", f.fallback)
		return f.fallback, nil
	}
	return 0, ErrNoPrice
}

// Close implements PriceFetcher
func (f *snapshotPriceFetcher) Close() error {
	return nil
}
