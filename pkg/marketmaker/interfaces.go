package marketmaker

import (
	"context"

	"github.com/erain9/lob/pkg/core"
	"github.com/nikolaydubina/fpdecimal"
)

// PriceFetcher defines the interface for fetching the current market price
type PriceFetcher interface {
	// FetchPrice returns the price quotes are centered on
	FetchPrice(ctx context.Context) (float64, error)
	// Close releases any resources held by the price fetcher
	Close() error
}

// OrderPlacer defines the interface for placing and canceling orders.
// The engine implements it.
type OrderPlacer interface {
	SubmitOrder(order *core.Order) error
	CancelOrder(orderID int64) error
}

// Quote is one resting order the strategy wants in the book
type Quote struct {
	Side     core.Side
	Price    fpdecimal.Decimal
	Quantity int64
}

// MarketMakerStrategy defines the interface for market making strategies
type MarketMakerStrategy interface {
	// CalculateOrders calculates the quotes to place around currentPrice
	CalculateOrders(ctx context.Context, currentPrice float64) ([]Quote, error)
}
