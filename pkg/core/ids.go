package core

import "sync/atomic"

// IDAllocator hands out unique positive order ids and timestamps to
// concurrent producers.
type IDAllocator struct {
	next  atomic.Int64
	clock atomic.Int64
}

// NewIDAllocator creates an allocator whose first id is start+1
func NewIDAllocator(start int64) *IDAllocator {
	a := &IDAllocator{}
	if start < 0 {
		start = 0
	}
	a.next.Store(start)
	return a
}

// Next returns a fresh order id
func (a *IDAllocator) Next() int64 {
	return a.next.Add(1)
}

// Timestamp returns a strictly increasing logical timestamp
func (a *IDAllocator) Timestamp() int64 {
	return a.clock.Add(1)
}
