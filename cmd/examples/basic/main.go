package main

import (
	"context"
	"fmt"

	"github.com/erain9/lob/pkg/core"
	"github.com/nikolaydubina/fpdecimal"
)

func main() {
	ctx := context.Background()
	book := core.NewOrderBook()
	ids := core.NewIDAllocator(0)

	// Create a sell limit order
	sellOrder, err := core.NewLimitOrder(ids.Next(), ids.Timestamp(), core.Sell, 10, fpdecimal.FromFloat(10.0))
	if err != nil {
		panic(err)
	}
	if _, err := book.Submit(ctx, sellOrder); err != nil {
		panic(err)
	}
	fmt.Printf("Created sell order: %d\n", sellOrder.ID())

	// Create a buy limit order that takes half of it
	buyOrder, err := core.NewLimitOrder(ids.Next(), ids.Timestamp(), core.Buy, 5, fpdecimal.FromFloat(10.0))
	if err != nil {
		panic(err)
	}
	buyDone, err := book.Submit(ctx, buyOrder)
	if err != nil {
		panic(err)
	}

	fmt.Printf("Processing buy order: %d\n", buyOrder.ID())
	for _, trade := range buyDone.Trades {
		fmt.Printf("Trade #%d: maker=%d taker=%d %d @ %s\n",
			trade.Seq, trade.MakerOrderID, trade.TakerOrderID, trade.Quantity, trade.Price)
	}
	fmt.Printf("Sell order remaining quantity: %d\n", book.GetOrder(sellOrder.ID()).Remaining())
	fmt.Printf("Buy order processed quantity: %d\n", buyDone.Processed)

	// Move the rest of the sell order up a tick; it loses time priority
	if _, err := book.Modify(ctx, sellOrder.ID(), fpdecimal.FromFloat(10.5), 5); err != nil {
		panic(err)
	}
	fmt.Printf("\nAfter modify:\n%s\n", book)

	canceled := book.Cancel(ctx, sellOrder.ID())
	fmt.Printf("Canceled %d order(s), book holds %d live order(s)\n", len(canceled.Canceled), book.Len())
}
