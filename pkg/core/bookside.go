package core

import (
	"container/list"
	"fmt"
	"strings"

	"github.com/nikolaydubina/fpdecimal"
	"github.com/tidwall/btree"
)

// PriceLevel is a FIFO queue of resting orders sharing one price
type PriceLevel struct {
	price  fpdecimal.Decimal
	orders *list.List
	volume int64
}

func newPriceLevel(price fpdecimal.Decimal) *PriceLevel {
	return &PriceLevel{
		price:  price,
		orders: list.New(),
	}
}

// Price returns level price
func (pl *PriceLevel) Price() fpdecimal.Decimal {
	return pl.price
}

// Volume returns the aggregate remaining quantity of the level
func (pl *PriceLevel) Volume() int64 {
	return pl.volume
}

// Len returns the number of orders in the level
func (pl *PriceLevel) Len() int {
	return pl.orders.Len()
}

// Orders returns the orders in time priority
func (pl *PriceLevel) Orders() []*Order {
	orders := make([]*Order, 0, pl.orders.Len())
	for e := pl.orders.Front(); e != nil; e = e.Next() {
		orders = append(orders, e.Value.(*Order))
	}
	return orders
}

func (pl *PriceLevel) head() (*list.Element, *Order) {
	e := pl.orders.Front()
	if e == nil {
		return nil, nil
	}
	return e, e.Value.(*Order)
}

// BookSide keeps the price levels of one side ordered best first. Bids are
// ordered by descending price, asks by ascending price.
type BookSide struct {
	side      Side
	levels    *btree.BTreeG[*PriceLevel]
	numOrders int
	volume    int64
}

func newBookSide(side Side) *BookSide {
	bs := &BookSide{side: side}
	bs.levels = btree.NewBTreeGOptions(func(a, b *PriceLevel) bool {
		return bs.better(a.price, b.price)
	}, btree.Options{NoLocks: true})
	return bs
}

// Side returns the side this collection holds
func (bs *BookSide) Side() Side {
	return bs.side
}

// Len returns the number of resting orders
func (bs *BookSide) Len() int {
	return bs.numOrders
}

// Depth returns the number of price levels
func (bs *BookSide) Depth() int {
	return bs.levels.Len()
}

// Volume returns the total remaining quantity on the side
func (bs *BookSide) Volume() int64 {
	return bs.volume
}

// Best returns the best price level
func (bs *BookSide) Best() (*PriceLevel, bool) {
	return bs.levels.Min()
}

// BestPrice returns the best price on the side
func (bs *BookSide) BestPrice() (fpdecimal.Decimal, bool) {
	level, ok := bs.levels.Min()
	if !ok {
		return fpdecimal.Zero, false
	}
	return level.price, true
}

// better reports whether price a has strictly higher priority than b
func (bs *BookSide) better(a, b fpdecimal.Decimal) bool {
	if bs.side == Buy {
		return a.GreaterThan(b)
	}
	return a.LessThan(b)
}

// Level returns the level at price
func (bs *BookSide) Level(price fpdecimal.Decimal) (*PriceLevel, bool) {
	return bs.levels.Get(&PriceLevel{price: price})
}

// Levels returns up to depth aggregated levels, best first. A depth of
// zero or less yields an empty slice.
func (bs *BookSide) Levels(depth int) []Level {
	if depth <= 0 {
		return []Level{}
	}

	levels := make([]Level, 0, min(depth, bs.levels.Len()))
	bs.levels.Scan(func(pl *PriceLevel) bool {
		levels = append(levels, Level{
			Price:    pl.price,
			Quantity: pl.volume,
			Orders:   pl.orders.Len(),
		})
		return len(levels) < depth
	})
	return levels
}

// Scan iterates levels best first until fn returns false
func (bs *BookSide) Scan(fn func(*PriceLevel) bool) {
	bs.levels.Scan(fn)
}

// append puts order at the back of the level at its price and returns its
// queue position.
func (bs *BookSide) append(order *Order) *list.Element {
	level, ok := bs.Level(order.price)
	if !ok {
		level = newPriceLevel(order.price)
		bs.levels.Set(level)
	}

	remaining := order.Remaining()
	level.volume += remaining
	bs.volume += remaining
	bs.numOrders++
	return level.orders.PushBack(order)
}

// remove takes the order at elem out of the level at price. The level is
// dropped as soon as it is empty.
func (bs *BookSide) remove(price fpdecimal.Decimal, elem *list.Element) *Order {
	level, ok := bs.Level(price)
	if !ok {
		panic(fmt.Sprintf("%s side: no level at %s", bs.side, price))
	}

	order, ok := elem.Value.(*Order)
	if !ok || !order.price.Equal(price) {
		panic(fmt.Sprintf("%s side: level %s doesn't hold element", bs.side, price))
	}

	level.orders.Remove(elem)
	remaining := order.Remaining()
	level.volume -= remaining
	bs.volume -= remaining
	bs.numOrders--

	if level.orders.Len() == 0 {
		bs.levels.Delete(level)
	}
	return order
}

// fill accounts for quantity executed against a resting order of level.
func (bs *BookSide) fill(level *PriceLevel, quantity int64) {
	level.volume -= quantity
	bs.volume -= quantity
}

// String implements fmt.Stringer interface
func (bs *BookSide) String() string {
	sb := strings.Builder{}
	bs.levels.Scan(func(pl *PriceLevel) bool {
		sb.WriteString(fmt.Sprintf("\n%s -> %d (%d orders)", pl.price, pl.volume, pl.orders.Len()))
		return true
	})
	return sb.String()
}
