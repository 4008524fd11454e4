package core

import (
	"context"

	"github.com/erain9/lob/pkg/otel"
	"github.com/nikolaydubina/fpdecimal"
	"go.opentelemetry.io/otel/attribute"
)

// match executes taker against the opposite side, best level first and in
// time priority within a level, until the taker is exhausted, the opposite
// side is empty, or (for LIMIT takers) the best opposite price no longer
// crosses. Every trade executes at the resting order's price.
func (ob *OrderBook) match(ctx context.Context, taker *Order, done *Done) {
	_, span := otel.StartOrderSpan(ctx, otel.SpanMatchOrder,
		attribute.Int64(otel.AttributeOrderID, taker.ID()),
		attribute.String(otel.AttributeOrderSide, taker.Side().String()),
		attribute.String(otel.AttributeOrderType, string(taker.OrderType())),
		attribute.Int64(otel.AttributeOrderQuantity, taker.Remaining()),
	)
	defer span.End()

	opposite := ob.side(taker.Side().Opposite())
	trades := len(done.Trades)

	for taker.Remaining() > 0 {
		level, ok := opposite.Best()
		if !ok {
			break
		}
		if taker.IsLimitOrder() && !crosses(taker, level.price) {
			break
		}

		for taker.Remaining() > 0 {
			elem, maker := level.head()
			if maker == nil {
				break
			}

			quantity := min(taker.Remaining(), maker.Remaining())
			taker.fill(quantity)
			maker.fill(quantity)
			opposite.fill(level, quantity)
			ob.recordTrade(taker, maker, level.price, quantity, done)

			if maker.Remaining() == 0 {
				opposite.remove(level.price, elem)
				delete(ob.orders, maker.ID())
			}
		}
	}

	otel.AddAttributes(span,
		attribute.Int64(otel.AttributeExecutedQuantity, taker.Filled()),
		attribute.Int64(otel.AttributeRemainingQuantity, taker.Remaining()),
		attribute.Int(otel.AttributeTradeCount, len(done.Trades)-trades),
	)
}

// crosses reports whether a LIMIT order accepts the opposite price
func crosses(order *Order, price fpdecimal.Decimal) bool {
	if order.Side() == Buy {
		return order.Price().GreaterThanOrEqual(price)
	}
	return order.Price().LessThanOrEqual(price)
}

func (ob *OrderBook) recordTrade(taker, maker *Order, price fpdecimal.Decimal, quantity int64, done *Done) {
	ob.sequence++
	ob.lastTrade = price
	ob.hasLastTrade = true

	done.appendTrade(Trade{
		Seq:          ob.sequence,
		TakerOrderID: taker.ID(),
		MakerOrderID: maker.ID(),
		TakerSide:    taker.Side(),
		Price:        price,
		Quantity:     quantity,
	})
}
