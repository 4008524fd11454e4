package marketmaker

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/erain9/lob/pkg/core"
	"github.com/nikolaydubina/fpdecimal"
)

// LayeredSymmetricQuoting implements a symmetric market making strategy with multiple price levels
type LayeredSymmetricQuoting struct {
	cfg    *Config
	logger *slog.Logger
}

// NewLayeredSymmetricQuoting creates a new LayeredSymmetricQuoting strategy
func NewLayeredSymmetricQuoting(cfg *Config, logger *slog.Logger) MarketMakerStrategy {
	return &LayeredSymmetricQuoting{
		cfg:    cfg,
		logger: logger.With("component", "LayeredSymmetricQuoting"),
	}
}

// CalculateOrders implements MarketMakerStrategy. Bids are rounded down and
// asks up to the tick, so no pair of quotes crosses.
func (s *LayeredSymmetricQuoting) CalculateOrders(_ context.Context, currentPrice float64) ([]Quote, error) {
	if currentPrice <= 0 {
		return nil, fmt.Errorf("cannot quote around price %v", currentPrice)
	}

	baseHalfSpread := currentPrice * (s.cfg.BaseSpreadPercent / 2 / 100)
	priceStep := currentPrice * (s.cfg.PriceStepPercent / 100)

	orders := make([]Quote, 0, s.cfg.NumLevels*2)

	for i := 1; i <= s.cfg.NumLevels; i++ {
		bidPrice := s.roundDown(currentPrice - baseHalfSpread - float64(i-1)*priceStep)
		askPrice := s.roundUp(currentPrice + baseHalfSpread + float64(i-1)*priceStep)

		if bidPrice > 0 {
			orders = append(orders, Quote{
				Side:     core.Buy,
				Price:    fpdecimal.FromFloat(bidPrice),
				Quantity: s.cfg.OrderSize,
			})
		}
		orders = append(orders, Quote{
			Side:     core.Sell,
			Price:    fpdecimal.FromFloat(askPrice),
			Quantity: s.cfg.OrderSize,
		})

		s.logger.Debug("Calculated order pair",
			"level", i,
			"bid_price", bidPrice,
			"ask_price", askPrice,
			"quantity", s.cfg.OrderSize)
	}

	return orders, nil
}

func (s *LayeredSymmetricQuoting) roundDown(p float64) float64 {
	return math.Floor(p/s.cfg.Tick+1e-9) * s.cfg.Tick
}

func (s *LayeredSymmetricQuoting) roundUp(p float64) float64 {
	return math.Ceil(p/s.cfg.Tick-1e-9) * s.cfg.Tick
}
