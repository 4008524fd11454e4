package core

import (
	"container/list"
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/erain9/lob/pkg/otel"
	"github.com/nikolaydubina/fpdecimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// location is where a resting order sits in the book
type location struct {
	side  Side
	price fpdecimal.Decimal
	elem  *list.Element
}

// quote is the top of the book, compared before and after every mutation
// to decide whether pending stops must be evaluated.
type quote struct {
	bid, ask       fpdecimal.Decimal
	hasBid, hasAsk bool
}

// OrderBook implements price-time priority matching for one instrument.
// Every mutating call holds the write lock for the whole operation,
// including the stop cascade it causes.
type OrderBook struct {
	mu sync.RWMutex

	bids   *BookSide
	asks   *BookSide
	orders map[int64]location
	stops  *StopBook

	lastTrade    fpdecimal.Decimal
	hasLastTrade bool
	sequence     uint64
}

// NewOrderBook creates an empty OrderBook
func NewOrderBook() *OrderBook {
	return &OrderBook{
		bids:   newBookSide(Buy),
		asks:   newBookSide(Sell),
		orders: make(map[int64]location),
		stops:  NewStopBook(),
	}
}

// Submit validates order and routes it by type. STOP and STOP_LIMIT orders
// wait in the stop book. MARKET orders match until exhausted or the opposite
// side is empty and any remainder is canceled. LIMIT orders match while they
// cross and the residual rests at its own price.
func (ob *OrderBook) Submit(ctx context.Context, order *Order) (*Done, error) {
	ctx, span := otel.StartOrderSpan(ctx, otel.SpanSubmitOrder,
		attribute.Int64(otel.AttributeOrderID, order.ID()),
		attribute.String(otel.AttributeOrderSide, order.Side().String()),
		attribute.String(otel.AttributeOrderType, string(order.OrderType())),
		attribute.Int64(otel.AttributeOrderQuantity, order.Quantity()),
		attribute.String(otel.AttributeOrderPrice, order.Price().String()),
	)
	defer span.End()

	metrics := otel.GetOrderBookMetrics()

	if err := order.Validate(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		metrics.RecordRejection(ctx, string(order.OrderType()))
		return nil, err
	}

	ob.mu.Lock()
	defer ob.mu.Unlock()

	if ob.live(order.ID()) != nil {
		span.SetStatus(codes.Error, ErrOrderExists.Error())
		metrics.RecordRejection(ctx, string(order.OrderType()))
		return nil, ErrOrderExists
	}

	done := newDone(order)
	ob.run(ctx, []*Order{order}, done)
	done.seal(ob.live(order.ID()) == order)

	otel.AddAttributes(span,
		attribute.Int64(otel.AttributeExecutedQuantity, done.Processed),
		attribute.Int64(otel.AttributeRemainingQuantity, done.Left),
		attribute.Int(otel.AttributeTradeCount, len(done.Trades)),
	)
	span.SetStatus(codes.Ok, "order processed")
	metrics.RecordDone(ctx, string(order.OrderType()), len(done.Trades), done.TradedQuantity(), len(done.Activated))

	return done, nil
}

// Cancel removes a resting or pending order. Unknown ids are a no-op and
// return an empty Done.
func (ob *OrderBook) Cancel(ctx context.Context, orderID int64) *Done {
	ctx, span := otel.StartOrderSpan(ctx, otel.SpanCancelOrder,
		attribute.Int64(otel.AttributeOrderID, orderID),
	)
	defer span.End()

	ob.mu.Lock()
	defer ob.mu.Unlock()

	order := ob.live(orderID)
	if order == nil {
		return &Done{}
	}

	done := newDone(order)
	ob.cancel(ctx, order, done)
	done.seal(false)

	otel.AddAttributes(span, attribute.String(otel.AttributeOrderStatus, string(done.Order.Status())))
	otel.GetOrderBookMetrics().RecordDone(ctx, "CANCEL", len(done.Trades), done.TradedQuantity(), len(done.Activated))

	return done
}

// Modify replaces a live order with a new one carrying the same id, side,
// classification, timestamp and stop price, at price with quantity. The
// replacement loses time priority. Unknown ids are a no-op.
func (ob *OrderBook) Modify(ctx context.Context, orderID int64, price fpdecimal.Decimal, quantity int64) (*Done, error) {
	ctx, span := otel.StartOrderSpan(ctx, otel.SpanModifyOrder,
		attribute.Int64(otel.AttributeOrderID, orderID),
		attribute.Int64(otel.AttributeOrderQuantity, quantity),
		attribute.String(otel.AttributeOrderPrice, price.String()),
	)
	defer span.End()

	metrics := otel.GetOrderBookMetrics()

	if quantity <= 0 {
		span.SetStatus(codes.Error, ErrInvalidQuantity.Error())
		metrics.RecordRejection(ctx, "MODIFY")
		return nil, ErrInvalidQuantity
	}

	ob.mu.Lock()
	defer ob.mu.Unlock()

	order := ob.live(orderID)
	if order == nil {
		return &Done{}, nil
	}

	replacement := order.replacement(price, quantity)
	if err := replacement.Validate(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		metrics.RecordRejection(ctx, "MODIFY")
		return nil, err
	}

	done := newDone(replacement)
	ob.cancel(ctx, order, done)
	ob.run(ctx, []*Order{replacement}, done)
	done.seal(ob.live(orderID) == replacement)

	span.SetStatus(codes.Ok, "order modified")
	metrics.RecordDone(ctx, "MODIFY", len(done.Trades), done.TradedQuantity(), len(done.Activated))

	return done, nil
}

// run drains the work list. Each item goes through the submit path and
// every item that moves the top of the book re-evaluates pending stops,
// appending activated ones to the work list.
func (ob *OrderBook) run(ctx context.Context, work []*Order, done *Done) {
	for len(work) > 0 {
		order := work[0]
		work = work[1:]

		before := ob.quote()
		ob.execute(ctx, order, done)
		if ob.quote() != before {
			work = append(work, ob.trigger(done)...)
		}
	}
}

func (ob *OrderBook) execute(ctx context.Context, order *Order, done *Done) {
	switch order.OrderType() {
	case TypeStop, TypeStopLimit:
		ob.stops.Append(order)

	case TypeMarket:
		ob.match(ctx, order, done)
		if order.Remaining() > 0 {
			if order.Filled() == 0 {
				order.cancel()
			}
			done.appendCanceled(order)
		}

	case TypeLimit:
		ob.match(ctx, order, done)
		if order.Remaining() > 0 {
			ob.rest(order)
		}

	default:
		panic(fmt.Sprintf("order %d: unroutable type %q", order.ID(), order.OrderType()))
	}
}

func (ob *OrderBook) rest(order *Order) {
	elem := ob.side(order.Side()).append(order)
	ob.orders[order.ID()] = location{
		side:  order.Side(),
		price: order.Price(),
		elem:  elem,
	}
}

// cancel takes order out of the book or the stop book and runs the cascade
// if the top of the book moved.
func (ob *OrderBook) cancel(ctx context.Context, order *Order, done *Done) {
	before := ob.quote()

	if loc, ok := ob.orders[order.ID()]; ok {
		removed := ob.side(loc.side).remove(loc.price, loc.elem)
		if removed != order {
			panic(fmt.Sprintf("order %d: index points at order %d", order.ID(), removed.ID()))
		}
		delete(ob.orders, order.ID())
	} else if ob.stops.Remove(order.ID()) == nil {
		panic(fmt.Sprintf("order %d is neither resting nor pending", order.ID()))
	}

	order.cancel()
	done.appendCanceled(order)

	if ob.quote() != before {
		ob.run(ctx, ob.trigger(done), done)
	}
}

// trigger activates every pending stop whose condition holds at the current
// top of the book, in arrival order.
func (ob *OrderBook) trigger(done *Done) []*Order {
	q := ob.quote()
	activated := ob.stops.TakeTriggered(func(o *Order) bool {
		return o.triggers(q.bid, q.ask, q.hasBid, q.hasAsk)
	})
	for _, o := range activated {
		o.activate()
		done.appendActivated(o)
	}
	return activated
}

func (ob *OrderBook) quote() quote {
	var q quote
	q.bid, q.hasBid = ob.bids.BestPrice()
	q.ask, q.hasAsk = ob.asks.BestPrice()
	return q
}

func (ob *OrderBook) side(side Side) *BookSide {
	if side == Buy {
		return ob.bids
	}
	return ob.asks
}

// live returns the resting or pending order with id
func (ob *OrderBook) live(orderID int64) *Order {
	if loc, ok := ob.orders[orderID]; ok {
		order, ok := loc.elem.Value.(*Order)
		if !ok {
			panic(fmt.Sprintf("order %d: index holds no order", orderID))
		}
		return order
	}
	return ob.stops.Get(orderID)
}

// Snapshot copies up to depth levels per side plus the pending stops
func (ob *OrderBook) Snapshot(depth int) Snapshot {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	q := ob.quote()
	s := Snapshot{
		Bids:         ob.bids.Levels(depth),
		Asks:         ob.asks.Levels(depth),
		Stops:        make([]StopView, 0, ob.stops.Len()),
		BestBid:      q.bid,
		BestAsk:      q.ask,
		HasBid:       q.hasBid,
		HasAsk:       q.hasAsk,
		LastTrade:    ob.lastTrade,
		HasLastTrade: ob.hasLastTrade,
		Sequence:     ob.sequence,
	}
	for _, o := range ob.stops.Orders() {
		s.Stops = append(s.Stops, StopView{
			ID:        o.ID(),
			Side:      o.Side(),
			Type:      o.OrderType(),
			Price:     o.Price(),
			StopPrice: o.StopPrice(),
			Quantity:  o.Remaining(),
		})
	}
	return s
}

// GetOrder returns a copy of the live order with id, or nil
func (ob *OrderBook) GetOrder(orderID int64) *Order {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	order := ob.live(orderID)
	if order == nil {
		return nil
	}
	return order.Clone()
}

// BestBid returns the highest bid price
func (ob *OrderBook) BestBid() (fpdecimal.Decimal, bool) {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.bids.BestPrice()
}

// BestAsk returns the lowest ask price
func (ob *OrderBook) BestAsk() (fpdecimal.Decimal, bool) {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.asks.BestPrice()
}

// LastTradePrice returns the price of the most recent trade
func (ob *OrderBook) LastTradePrice() (fpdecimal.Decimal, bool) {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.lastTrade, ob.hasLastTrade
}

// PendingStops returns copies of the pending stop orders in arrival order
func (ob *OrderBook) PendingStops() []*Order {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	orders := ob.stops.Orders()
	for i, o := range orders {
		orders[i] = o.Clone()
	}
	return orders
}

// Len returns the number of resting and pending orders
func (ob *OrderBook) Len() int {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return len(ob.orders) + ob.stops.Len()
}

// CalculateMarketPrice returns total market Price for requested quantity
func (ob *OrderBook) CalculateMarketPrice(side Side, quantity int64) (fpdecimal.Decimal, error) {
	if quantity <= 0 {
		return fpdecimal.Zero, ErrInvalidQuantity
	}

	ob.mu.RLock()
	defer ob.mu.RUnlock()

	price := fpdecimal.Zero
	remaining := quantity

	ob.side(side.Opposite()).Scan(func(pl *PriceLevel) bool {
		take := min(remaining, pl.volume)
		price = price.Add(pl.price.Mul(fpdecimal.FromInt(take)))
		remaining -= take
		return remaining > 0
	})

	if remaining > 0 {
		return fpdecimal.Zero, ErrInsufficientQuantity
	}
	return price, nil
}

// CheckInvariants verifies the index, the levels and the stop book agree.
func (ob *OrderBook) CheckInvariants() error {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	seen := 0
	for _, bs := range []*BookSide{ob.bids, ob.asks} {
		var (
			err    error
			prev   *PriceLevel
			orders int
			volume int64
		)
		bs.Scan(func(pl *PriceLevel) bool {
			if pl.Len() == 0 {
				err = fmt.Errorf("%s side: empty level at %s", bs.side, pl.price)
				return false
			}
			if prev != nil && !bs.better(prev.price, pl.price) {
				err = fmt.Errorf("%s side: level %s out of order after %s", bs.side, pl.price, prev.price)
				return false
			}
			prev = pl

			var levelVolume int64
			for e := pl.orders.Front(); e != nil; e = e.Next() {
				o := e.Value.(*Order)
				loc, ok := ob.orders[o.ID()]
				switch {
				case !ok:
					err = fmt.Errorf("order %d rests without index entry", o.ID())
				case loc.elem != e || loc.side != bs.side || !loc.price.Equal(pl.price):
					err = fmt.Errorf("order %d index entry disagrees with its level", o.ID())
				case o.Remaining() <= 0:
					err = fmt.Errorf("order %d rests with nothing remaining", o.ID())
				case ob.stops.Has(o.ID()):
					err = fmt.Errorf("order %d is both resting and pending", o.ID())
				}
				if err != nil {
					return false
				}
				levelVolume += o.Remaining()
				orders++
			}
			if levelVolume != pl.volume {
				err = fmt.Errorf("%s side: level %s volume %d, orders sum to %d", bs.side, pl.price, pl.volume, levelVolume)
				return false
			}
			volume += levelVolume
			return true
		})
		if err != nil {
			return err
		}
		if orders != bs.numOrders || volume != bs.volume {
			return fmt.Errorf("%s side: counters %d/%d, levels hold %d/%d", bs.side, bs.numOrders, bs.volume, orders, volume)
		}
		seen += orders
	}

	if seen != len(ob.orders) {
		return fmt.Errorf("index holds %d orders, levels hold %d", len(ob.orders), seen)
	}

	bid, hasBid := ob.bids.BestPrice()
	ask, hasAsk := ob.asks.BestPrice()
	if hasBid && hasAsk && bid.GreaterThanOrEqual(ask) {
		return fmt.Errorf("crossed book: bid %s ask %s", bid, ask)
	}
	return nil
}

// String implements fmt.Stringer interface
func (ob *OrderBook) String() string {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	builder := strings.Builder{}

	builder.WriteString("Ask:")
	builder.WriteString(ob.asks.String())
	builder.WriteString("\n")

	builder.WriteString("Bid:")
	builder.WriteString(ob.bids.String())
	builder.WriteString("\n")

	builder.WriteString(fmt.Sprintf("Stops: %d pending\n", ob.stops.Len()))

	return builder.String()
}
