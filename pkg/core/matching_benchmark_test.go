package core

import (
	"context"
	"testing"

	"github.com/nikolaydubina/fpdecimal"
)

// seedLadder fills the book with n levels per side around 100
func seedLadder(b *testing.B, book *OrderBook, ids *IDAllocator, n int) {
	b.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		sell, _ := NewLimitOrder(ids.Next(), ids.Timestamp(), Sell, int64(1+i%5), fpdecimal.FromFloat(100.0+float64(i)*0.1))
		buy, _ := NewLimitOrder(ids.Next(), ids.Timestamp(), Buy, int64(1+i%5), fpdecimal.FromFloat(99.9-float64(i)*0.1))
		if _, err := book.Submit(ctx, sell); err != nil {
			b.Fatal(err)
		}
		if _, err := book.Submit(ctx, buy); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkMarketOrderMatching tests the performance of market order matching
func BenchmarkMarketOrderMatching(b *testing.B) {
	ctx := context.Background()
	book := NewOrderBook()
	ids := NewIDAllocator(0)
	seedLadder(b, book, ids, 100)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		side := Buy
		if i%2 == 1 {
			side = Sell
		}
		order, _ := NewMarketOrder(ids.Next(), ids.Timestamp(), side, 1)
		_, _ = book.Submit(ctx, order)

		// put the consumed lot back at the top of the book
		b.StopTimer()
		price := fpdecimal.FromFloat(100.0)
		if side == Sell {
			price = fpdecimal.FromFloat(99.9)
		}
		restore, _ := NewLimitOrder(ids.Next(), ids.Timestamp(), side.Opposite(), 1, price)
		_, _ = book.Submit(ctx, restore)
		b.StartTimer()
	}
}

// BenchmarkLimitOrderInsert measures resting limit orders that don't cross
func BenchmarkLimitOrderInsert(b *testing.B) {
	ctx := context.Background()
	book := NewOrderBook()
	ids := NewIDAllocator(0)
	seedLadder(b, book, ids, 100)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		price := fpdecimal.FromFloat(90.0 - float64(i%200)*0.1)
		order, _ := NewLimitOrder(ids.Next(), ids.Timestamp(), Buy, 1, price)
		_, _ = book.Submit(ctx, order)
	}
}

// BenchmarkCancel measures cancels of resting orders deep in a level
func BenchmarkCancel(b *testing.B) {
	ctx := context.Background()
	book := NewOrderBook()
	ids := NewIDAllocator(0)

	orders := make([]int64, b.N)
	for i := range orders {
		order, _ := NewLimitOrder(ids.Next(), ids.Timestamp(), Sell, 1, fpdecimal.FromFloat(100.0+float64(i%50)*0.1))
		_, _ = book.Submit(ctx, order)
		orders[i] = order.ID()
	}

	b.ResetTimer()
	for _, id := range orders {
		book.Cancel(ctx, id)
	}
}

// BenchmarkStopCascade measures a sweep that activates a chain of stops
func BenchmarkStopCascade(b *testing.B) {
	ctx := context.Background()

	for i := 0; i < b.N; i++ {
		b.StopTimer()
		book := NewOrderBook()
		ids := NewIDAllocator(0)
		seedLadder(b, book, ids, 50)
		for j := 0; j < 20; j++ {
			stop, _ := NewStopOrder(ids.Next(), ids.Timestamp(), Sell, 2, fpdecimal.FromFloat(99.8-float64(j)*0.1))
			_, _ = book.Submit(ctx, stop)
		}
		sweep, _ := NewMarketOrder(ids.Next(), ids.Timestamp(), Sell, 5)
		b.StartTimer()

		_, _ = book.Submit(ctx, sweep)
	}
}
