package main

import (
	"context"
	"fmt"

	"github.com/erain9/lob/pkg/core"
	"github.com/nikolaydubina/fpdecimal"
)

// A walk through a stop cascade: one market sell triggers a sell stop,
// whose fill triggers a second one.
func main() {
	ctx := context.Background()
	book := core.NewOrderBook()
	ids := core.NewIDAllocator(0)

	fmt.Println("===== STOP CASCADE DEMONSTRATION =====")
	fmt.Println()

	fmt.Println("STEP 1: Resting bids on three levels")
	fmt.Println("------------------------------------")
	for _, level := range []struct {
		price float64
		qty   int64
	}{{100, 5}, {99, 5}, {98, 10}} {
		submit(ctx, book, limit(ids, core.Buy, level.qty, level.price))
	}
	fmt.Println(book)

	fmt.Println("STEP 2: Two sell stops below the market")
	fmt.Println("---------------------------------------")
	submit(ctx, book, stop(ids, core.Sell, 5, 99))
	stopLimit, err := core.NewStopLimitOrder(ids.Next(), ids.Timestamp(), core.Sell, 4, fpdecimal.FromInt(97), fpdecimal.FromInt(98))
	if err != nil {
		panic(err)
	}
	submit(ctx, book, stopLimit)
	fmt.Printf("Pending stops: %d\n\n", len(book.PendingStops()))

	fmt.Println("STEP 3: A market sell takes the best bid")
	fmt.Println("----------------------------------------")
	sweep, err := core.NewMarketOrder(ids.Next(), ids.Timestamp(), core.Sell, 5)
	if err != nil {
		panic(err)
	}
	done := submit(ctx, book, sweep)

	fmt.Printf("Activated stops (in order): %v\n", orderIDs(done.Activated))
	fmt.Printf("Pending stops: %d\n", len(book.PendingStops()))
	fmt.Println(book)

	if err := book.CheckInvariants(); err != nil {
		panic(err)
	}
}

func limit(ids *core.IDAllocator, side core.Side, qty int64, price float64) *core.Order {
	o, err := core.NewLimitOrder(ids.Next(), ids.Timestamp(), side, qty, fpdecimal.FromFloat(price))
	if err != nil {
		panic(err)
	}
	return o
}

func stop(ids *core.IDAllocator, side core.Side, qty int64, stopPrice float64) *core.Order {
	o, err := core.NewStopOrder(ids.Next(), ids.Timestamp(), side, qty, fpdecimal.FromFloat(stopPrice))
	if err != nil {
		panic(err)
	}
	return o
}

func submit(ctx context.Context, book *core.OrderBook, order *core.Order) *core.Done {
	done, err := book.Submit(ctx, order)
	if err != nil {
		fmt.Printf("Error processing %d: %v\n", order.ID(), err)
		return done
	}
	fmt.Printf("%s -> processed=%d left=%d stored=%t\n", order, done.Processed, done.Left, done.Stored)
	for _, trade := range done.Trades {
		fmt.Printf("  trade #%d maker=%d taker=%d %d @ %s\n",
			trade.Seq, trade.MakerOrderID, trade.TakerOrderID, trade.Quantity, trade.Price)
	}
	return done
}

func orderIDs(orders []*core.Order) []int64 {
	out := make([]int64, 0, len(orders))
	for _, o := range orders {
		out = append(out, o.ID())
	}
	return out
}
