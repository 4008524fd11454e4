package core

import "container/list"

// StopBook holds pending stop orders in arrival order, outside the priced
// sides of the book.
type StopBook struct {
	orders *list.List
	index  map[int64]*list.Element
}

// NewStopBook creates an empty StopBook
func NewStopBook() *StopBook {
	return &StopBook{
		orders: list.New(),
		index:  make(map[int64]*list.Element),
	}
}

// Len returns the number of pending stop orders
func (sb *StopBook) Len() int {
	return sb.orders.Len()
}

// Has reports whether a pending stop with id exists
func (sb *StopBook) Has(id int64) bool {
	_, ok := sb.index[id]
	return ok
}

// Get returns the pending stop with id
func (sb *StopBook) Get(id int64) *Order {
	e, ok := sb.index[id]
	if !ok {
		return nil
	}
	return e.Value.(*Order)
}

// Append adds a stop order at the back of the arrival order
func (sb *StopBook) Append(order *Order) {
	sb.index[order.ID()] = sb.orders.PushBack(order)
}

// Remove deletes the pending stop with id and returns it
func (sb *StopBook) Remove(id int64) *Order {
	e, ok := sb.index[id]
	if !ok {
		return nil
	}
	delete(sb.index, id)
	return sb.orders.Remove(e).(*Order)
}

// TakeTriggered removes and returns, in arrival order, every pending stop
// for which triggered returns true.
func (sb *StopBook) TakeTriggered(triggered func(*Order) bool) []*Order {
	var taken []*Order
	for e := sb.orders.Front(); e != nil; {
		next := e.Next()
		order := e.Value.(*Order)
		if triggered(order) {
			sb.orders.Remove(e)
			delete(sb.index, order.ID())
			taken = append(taken, order)
		}
		e = next
	}
	return taken
}

// Orders returns pending stops in arrival order
func (sb *StopBook) Orders() []*Order {
	orders := make([]*Order, 0, sb.orders.Len())
	for e := sb.orders.Front(); e != nil; e = e.Next() {
		orders = append(orders, e.Value.(*Order))
	}
	return orders
}
