package core

import (
	"encoding/json"

	"github.com/nikolaydubina/fpdecimal"
)

// Trade is one execution between an incoming (taker) order and a resting
// (maker) order. Price is always the maker's price.
type Trade struct {
	Seq          uint64
	TakerOrderID int64
	MakerOrderID int64
	TakerSide    Side
	Price        fpdecimal.Decimal
	Quantity     int64
}

// MarshalJSON implements Marshaler interface
func (t Trade) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Seq          uint64 `json:"seq"`
		TakerOrderID int64  `json:"takerOrderID"`
		MakerOrderID int64  `json:"makerOrderID"`
		TakerSide    string `json:"takerSide"`
		Price        string `json:"price"`
		Quantity     int64  `json:"quantity"`
	}{
		Seq:          t.Seq,
		TakerOrderID: t.TakerOrderID,
		MakerOrderID: t.MakerOrderID,
		TakerSide:    t.TakerSide.String(),
		Price:        t.Price.String(),
		Quantity:     t.Quantity,
	})
}

// Done contains information about the result of one book operation,
// including every stop order the operation activated.
type Done struct {
	// Initial order processed. Nil when the operation was a no-op.
	Order *Order
	// Original quantity of the order
	Quantity int64
	// Trades executed in execution order
	Trades []Trade
	// Orders canceled, including unfilled MARKET remainders
	Canceled []*Order
	// Stop orders converted to MARKET or LIMIT
	Activated []*Order
	// Quantity executed for the initial order
	Processed int64
	// Quantity not executed for the initial order
	Left int64
	// Whether the initial order rests in the book or waits as a pending stop
	Stored bool
}

func newDone(order *Order) *Done {
	return &Done{
		Order:     order,
		Quantity:  order.Quantity(),
		Trades:    make([]Trade, 0),
		Canceled:  make([]*Order, 0),
		Activated: make([]*Order, 0),
	}
}

// IsEmpty reports whether the operation touched nothing
func (d *Done) IsEmpty() bool {
	return d == nil || d.Order == nil
}

// TradedQuantity returns the total quantity of all trades
func (d *Done) TradedQuantity() int64 {
	var total int64
	for _, t := range d.Trades {
		total += t.Quantity
	}
	return total
}

func (d *Done) appendTrade(t Trade) {
	d.Trades = append(d.Trades, t)
}

func (d *Done) appendCanceled(order *Order) {
	d.Canceled = append(d.Canceled, order)
}

func (d *Done) appendActivated(order *Order) {
	d.Activated = append(d.Activated, order)
}

// seal fills the summary quantities and detaches every order from the book
// so the result can leave the book lock.
func (d *Done) seal(stored bool) {
	d.Processed = d.Order.Filled()
	d.Left = d.Order.Remaining()
	d.Stored = stored

	d.Order = d.Order.Clone()
	for i, o := range d.Canceled {
		d.Canceled[i] = o.Clone()
	}
	for i, o := range d.Activated {
		d.Activated[i] = o.Clone()
	}
}

// MarshalJSON implements json.Marshaler interface for Done
func (d *Done) MarshalJSON() ([]byte, error) {
	canceledIDs := make([]int64, len(d.Canceled))
	for i, order := range d.Canceled {
		canceledIDs[i] = order.ID()
	}

	activatedIDs := make([]int64, len(d.Activated))
	for i, order := range d.Activated {
		activatedIDs[i] = order.ID()
	}

	return json.Marshal(struct {
		Order     *Order  `json:"order"`
		Trades    []Trade `json:"trades"`
		Canceled  []int64 `json:"canceled"`
		Activated []int64 `json:"activated"`
		Processed int64   `json:"processed"`
		Left      int64   `json:"left"`
		Stored    bool    `json:"stored"`
	}{
		Order:     d.Order,
		Trades:    d.Trades,
		Canceled:  canceledIDs,
		Activated: activatedIDs,
		Processed: d.Processed,
		Left:      d.Left,
		Stored:    d.Stored,
	})
}

// Level is an aggregated price level
type Level struct {
	Price    fpdecimal.Decimal
	Quantity int64
	Orders   int
}

// StopView is a read-only view of a pending stop order
type StopView struct {
	ID        int64
	Side      Side
	Type      OrderType
	Price     fpdecimal.Decimal
	StopPrice fpdecimal.Decimal
	Quantity  int64
}

// Snapshot is a point-in-time copy of the top of the book
type Snapshot struct {
	Bids  []Level
	Asks  []Level
	Stops []StopView

	BestBid fpdecimal.Decimal
	BestAsk fpdecimal.Decimal
	HasBid  bool
	HasAsk  bool

	LastTrade    fpdecimal.Decimal
	HasLastTrade bool

	// Sequence of the last trade executed by the book
	Sequence uint64
}

// Mid returns the midpoint between best bid and best ask, rounded toward
// zero at the last fixed point digit. With one side missing it returns the
// other side, with both missing the last trade.
func (s Snapshot) Mid() (fpdecimal.Decimal, bool) {
	switch {
	case s.HasBid && s.HasAsk:
		return fpdecimal.FromIntScaled((s.BestBid.Scaled() + s.BestAsk.Scaled()) / 2), true
	case s.HasBid:
		return s.BestBid, true
	case s.HasAsk:
		return s.BestAsk, true
	case s.HasLastTrade:
		return s.LastTrade, true
	default:
		return fpdecimal.Zero, false
	}
}

// Spread returns best ask minus best bid when both sides exist
func (s Snapshot) Spread() (fpdecimal.Decimal, bool) {
	if !s.HasBid || !s.HasAsk {
		return fpdecimal.Zero, false
	}
	return s.BestAsk.Sub(s.BestBid), true
}
