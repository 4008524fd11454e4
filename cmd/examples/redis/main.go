package main

import (
	"context"
	"fmt"

	redisbackend "github.com/erain9/lob/pkg/backend/redis"
	"github.com/erain9/lob/pkg/core"
	"github.com/nikolaydubina/fpdecimal"
	"go.uber.org/zap"
)

const (
	redisAddr = "localhost:6379"
	redisDB   = 0
	prefix    = "lob-example"
)

func main() {
	ctx := context.Background()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	client := redisbackend.NewClient(redisbackend.RedisOptions{Addr: redisAddr, DB: redisDB})
	store := redisbackend.NewSnapshotStore(client, prefix, logger)
	defer store.Close()

	if err := store.Ping(ctx); err != nil {
		panic(fmt.Sprintf("Failed to connect to Redis: %v", err))
	}
	fmt.Println("Redis connection established")

	book := core.NewOrderBook()
	ids := core.NewIDAllocator(0)
	for _, o := range []struct {
		side  core.Side
		qty   int64
		price float64
	}{
		{core.Sell, 10, 10.5},
		{core.Sell, 4, 11},
		{core.Buy, 6, 10},
		{core.Buy, 3, 10.5},
	} {
		order, err := core.NewLimitOrder(ids.Next(), ids.Timestamp(), o.side, o.qty, fpdecimal.FromFloat(o.price))
		if err != nil {
			panic(err)
		}
		if _, err := book.Submit(ctx, order); err != nil {
			panic(err)
		}
	}

	if err := store.PublishSnapshot(ctx, book.Snapshot(10)); err != nil {
		panic(err)
	}

	// Read the published read model back
	snap, stops, err := store.Load(ctx)
	if err != nil {
		panic(err)
	}

	fmt.Println("\nSnapshot stored in Redis:")
	for _, level := range snap.Asks {
		fmt.Printf("- ASK %s x %d (%d orders)\n", level.Price, level.Quantity, level.Orders)
	}
	for _, level := range snap.Bids {
		fmt.Printf("- BID %s x %d (%d orders)\n", level.Price, level.Quantity, level.Orders)
	}
	if snap.HasLastTrade {
		fmt.Printf("Last trade: %s (seq %d)\n", snap.LastTrade, snap.Sequence)
	}
	fmt.Printf("Pending stops: %d\n", stops)
}
