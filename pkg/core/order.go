package core

import (
	"encoding/json"
	"fmt"

	"github.com/nikolaydubina/fpdecimal"
)

// Side represents buy or sell side of the order
type Side int

// Order sides
const (
	Sell Side = iota
	Buy
)

// String returns side as string
func (s Side) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// Opposite returns the other side of the book
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// ParseSide converts BUY/SELL into a Side
func ParseSide(s string) (Side, error) {
	switch s {
	case "BUY", "buy":
		return Buy, nil
	case "SELL", "sell":
		return Sell, nil
	default:
		return 0, ErrInvalidSide
	}
}

// OrderType represents type of the order
type OrderType string

// Order types
const (
	TypeLimit     OrderType = "LIMIT"
	TypeMarket    OrderType = "MARKET"
	TypeStop      OrderType = "STOP"
	TypeStopLimit OrderType = "STOP_LIMIT"
)

// Status represents the lifecycle state of an order
type Status string

// Order statuses
const (
	StatusOpen            Status = "OPEN"
	StatusPartiallyFilled Status = "PARTIALLY_FILLED"
	StatusFilled          Status = "FILLED"
	StatusCanceled        Status = "CANCELED"
)

// Order stores information about order
type Order struct {
	id        int64
	timestamp int64
	side      Side
	orderType OrderType
	price     fpdecimal.Decimal
	stop      fpdecimal.Decimal
	quantity  int64
	filled    int64
	status    Status
	triggered bool
}

type orderJSON struct {
	ID        int64     `json:"id"`
	Timestamp int64     `json:"timestamp"`
	Side      string    `json:"side"`
	OrderType OrderType `json:"orderType"`
	Price     string    `json:"price"`
	Stop      string    `json:"stop"`
	Quantity  int64     `json:"quantity"`
	Filled    int64     `json:"filled"`
	Status    Status    `json:"status"`
	Triggered bool      `json:"triggered"`
}

// MarshalJSON implements custom JSON marshaling for Order
func (o *Order) MarshalJSON() ([]byte, error) {
	return json.Marshal(orderJSON{
		ID:        o.id,
		Timestamp: o.timestamp,
		Side:      o.side.String(),
		OrderType: o.orderType,
		Price:     o.price.String(),
		Stop:      o.stop.String(),
		Quantity:  o.quantity,
		Filled:    o.filled,
		Status:    o.status,
		Triggered: o.triggered,
	})
}

// UnmarshalJSON implements custom JSON unmarshaling for Order
func (o *Order) UnmarshalJSON(data []byte) error {
	var j orderJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}

	side, err := ParseSide(j.Side)
	if err != nil {
		return err
	}

	price := fpdecimal.Zero
	if j.Price != "" {
		if price, err = fpdecimal.FromString(j.Price); err != nil {
			return fmt.Errorf("price: %w", err)
		}
	}

	stop := fpdecimal.Zero
	if j.Stop != "" {
		if stop, err = fpdecimal.FromString(j.Stop); err != nil {
			return fmt.Errorf("stop: %w", err)
		}
	}

	*o = Order{
		id:        j.ID,
		timestamp: j.Timestamp,
		side:      side,
		orderType: j.OrderType,
		price:     price,
		stop:      stop,
		quantity:  j.Quantity,
		filled:    j.Filled,
		status:    j.Status,
		triggered: j.Triggered,
	}
	if o.status == "" {
		o.status = StatusOpen
	}
	return nil
}

// NewOrder creates an order of any type and validates it. Price is ignored
// for MARKET and STOP orders, stop is ignored for LIMIT and MARKET orders.
func NewOrder(orderID, timestamp int64, side Side, orderType OrderType, price, stop fpdecimal.Decimal, quantity int64) (*Order, error) {
	o := &Order{
		id:        orderID,
		timestamp: timestamp,
		side:      side,
		orderType: orderType,
		quantity:  quantity,
		status:    StatusOpen,
	}

	switch orderType {
	case TypeLimit:
		o.price = price
	case TypeStopLimit:
		o.price = price
		o.stop = stop
	case TypeStop:
		o.stop = stop
	}

	if err := o.Validate(); err != nil {
		return nil, err
	}
	return o, nil
}

// NewMarketOrder creates new constant object Order
func NewMarketOrder(orderID, timestamp int64, side Side, quantity int64) (*Order, error) {
	return NewOrder(orderID, timestamp, side, TypeMarket, fpdecimal.Zero, fpdecimal.Zero, quantity)
}

// NewLimitOrder creates new constant object Order
func NewLimitOrder(orderID, timestamp int64, side Side, quantity int64, price fpdecimal.Decimal) (*Order, error) {
	return NewOrder(orderID, timestamp, side, TypeLimit, price, fpdecimal.Zero, quantity)
}

// NewStopOrder creates a stop order that becomes a MARKET order once triggered
func NewStopOrder(orderID, timestamp int64, side Side, quantity int64, stop fpdecimal.Decimal) (*Order, error) {
	return NewOrder(orderID, timestamp, side, TypeStop, fpdecimal.Zero, stop, quantity)
}

// NewStopLimitOrder creates a stop order that becomes a LIMIT order at price once triggered
func NewStopLimitOrder(orderID, timestamp int64, side Side, quantity int64, price, stop fpdecimal.Decimal) (*Order, error) {
	return NewOrder(orderID, timestamp, side, TypeStopLimit, price, stop, quantity)
}

// Validate checks the order intent. Every failure wraps ErrInvalidOrder.
func (o *Order) Validate() error {
	if o.id == SentinelOrderID {
		return ErrReservedOrderID
	}
	if o.side != Buy && o.side != Sell {
		return ErrInvalidSide
	}
	if o.status == StatusCanceled || o.status == StatusFilled {
		return ErrOrderClosed
	}
	if o.quantity <= 0 || o.filled < 0 || o.filled >= o.quantity {
		return ErrInvalidQuantity
	}

	switch o.orderType {
	case TypeMarket:
	case TypeLimit:
		if o.price.LessThanOrEqual(fpdecimal.Zero) {
			return ErrInvalidPrice
		}
	case TypeStop:
		if o.stop.LessThanOrEqual(fpdecimal.Zero) {
			return ErrInvalidStopPrice
		}
	case TypeStopLimit:
		if o.price.LessThanOrEqual(fpdecimal.Zero) {
			return ErrInvalidPrice
		}
		if o.stop.LessThanOrEqual(fpdecimal.Zero) {
			return ErrInvalidStopPrice
		}
	default:
		return ErrInvalidType
	}
	return nil
}

// ID returns OrderID field copy
func (o *Order) ID() int64 {
	return o.id
}

// Timestamp returns the submission timestamp
func (o *Order) Timestamp() int64 {
	return o.timestamp
}

// Side returns side of the Order
func (o *Order) Side() Side {
	return o.side
}

// OrderType returns the current classification of the order
func (o *Order) OrderType() OrderType {
	return o.orderType
}

// Price returns Price field copy
func (o *Order) Price() fpdecimal.Decimal {
	return o.price
}

// StopPrice returns Stop field copy
func (o *Order) StopPrice() fpdecimal.Decimal {
	return o.stop
}

// Quantity returns the original quantity
func (o *Order) Quantity() int64 {
	return o.quantity
}

// Filled returns the cumulative executed quantity
func (o *Order) Filled() int64 {
	return o.filled
}

// Remaining returns quantity not yet executed
func (o *Order) Remaining() int64 {
	return o.quantity - o.filled
}

// Status returns Status field copy
func (o *Order) Status() Status {
	return o.status
}

// IsTriggered reports whether a stop order has been activated
func (o *Order) IsTriggered() bool {
	return o.triggered
}

// IsMarketOrder returns true if Order is MARKET
func (o *Order) IsMarketOrder() bool {
	return o.orderType == TypeMarket
}

// IsLimitOrder returns true if Order is LIMIT
func (o *Order) IsLimitOrder() bool {
	return o.orderType == TypeLimit
}

// IsStopOrder returns true if Order is STOP or STOP_LIMIT
func (o *Order) IsStopOrder() bool {
	return o.orderType == TypeStop || o.orderType == TypeStopLimit
}

// IsCanceled returns Canceled status
func (o *Order) IsCanceled() bool {
	return o.status == StatusCanceled
}

// IsFilled returns true once the whole quantity executed
func (o *Order) IsFilled() bool {
	return o.status == StatusFilled
}

// fill records an execution of quantity against this order.
func (o *Order) fill(quantity int64) {
	if quantity <= 0 || quantity > o.Remaining() {
		panic(fmt.Sprintf("order %d: fill %d exceeds remaining %d", o.id, quantity, o.Remaining()))
	}
	o.filled += quantity
	if o.filled == o.quantity {
		o.status = StatusFilled
	} else {
		o.status = StatusPartiallyFilled
	}
}

func (o *Order) cancel() {
	o.status = StatusCanceled
}

// activate converts a pending stop order into the order it stands for:
// STOP becomes MARKET, STOP_LIMIT becomes LIMIT at its stored limit price.
func (o *Order) activate() {
	switch o.orderType {
	case TypeStop:
		o.orderType = TypeMarket
	case TypeStopLimit:
		o.orderType = TypeLimit
	default:
		panic(fmt.Sprintf("order %d isn't a stop order", o.id))
	}
	o.triggered = true
}

// triggers reports whether the stop condition holds for the given best
// prices. A missing side never triggers.
func (o *Order) triggers(bestBid, bestAsk fpdecimal.Decimal, hasBid, hasAsk bool) bool {
	if o.side == Buy {
		return hasAsk && bestAsk.GreaterThanOrEqual(o.stop)
	}
	return hasBid && bestBid.LessThanOrEqual(o.stop)
}

// replacement builds the order that a modify resubmits: same identity,
// side, classification, timestamp and stop price, new price and quantity.
func (o *Order) replacement(price fpdecimal.Decimal, quantity int64) *Order {
	r := &Order{
		id:        o.id,
		timestamp: o.timestamp,
		side:      o.side,
		orderType: o.orderType,
		stop:      o.stop,
		quantity:  quantity,
		status:    StatusOpen,
		triggered: o.triggered,
	}
	if o.orderType == TypeLimit || o.orderType == TypeStopLimit {
		r.price = price
	}
	return r
}

// Clone returns a detached copy safe to hand to readers outside the book lock
func (o *Order) Clone() *Order {
	c := *o
	return &c
}

// String implements Stringer interface
func (o *Order) String() string {
	j, _ := o.MarshalJSON()
	return string(j)
}
