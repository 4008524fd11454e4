package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/erain9/lob/pkg/backend/memory"
	"github.com/erain9/lob/pkg/core"
	"github.com/erain9/lob/pkg/dashboard"
	"github.com/erain9/lob/pkg/engine"
	"github.com/erain9/lob/pkg/latency"
	"github.com/erain9/lob/pkg/logging"
	"github.com/erain9/lob/pkg/traffic"
)

func main() {
	producers := flag.Int("producers", 8, "number of producer goroutines")
	ordersPerProducer := flag.Int("orders", 50000, "requests per producer")
	ratePerSecond := flag.Float64("rate", 0, "total requests per second, 0 for unlimited")
	referencePrice := flag.Float64("price", 100, "reference price orders are generated around")
	tick := flag.Float64("tick", 0.5, "price grid")
	maxQuantity := flag.Int64("max-qty", 20, "largest order quantity")
	seed := flag.Int64("seed", 1, "random seed")
	depth := flag.Int("depth", 10, "levels per side in the final book")
	latencyPath := flag.String("latency-csv", "", "write the latency summary to this file")
	logLevel := flag.String("log-level", "warn", "log level")
	flag.Parse()

	logging.Setup(logging.Config{Level: *logLevel, Pretty: true, Output: os.Stderr})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	go func() {
		<-sigChan
		log.Println("Received interrupt signal, cleaning up...")
		cancel()
	}()

	recorder := latency.NewRecorder()
	store := memory.NewSnapshotStore()
	eng := engine.New(core.NewOrderBook(),
		engine.WithLatencyRecorder(recorder),
		engine.WithSnapshotPublishers(store),
		engine.WithSnapshotDepth(*depth),
		// only the final snapshot is wanted
		engine.WithSnapshotInterval(0),
	)
	if err := eng.Start(ctx); err != nil {
		log.Fatalf("Failed to start engine: %v", err)
	}

	gen, err := traffic.New(traffic.Config{
		Producers:         *producers,
		OrdersPerProducer: *ordersPerProducer,
		Rate:              *ratePerSecond,
		ReferencePrice:    *referencePrice,
		Tick:              *tick,
		MaxQuantity:       *maxQuantity,
		Seed:              *seed,
	}, eng, core.NewIDAllocator(0), logging.Component("traffic"))
	if err != nil {
		log.Fatalf("Invalid traffic settings: %v", err)
	}

	log.Printf("Starting %d producers, %d requests per producer...", *producers, *ordersPerProducer)
	start := time.Now()

	if err := gen.Run(ctx); err != nil {
		log.Printf("Traffic interrupted: %v", err)
	}
	produced := time.Since(start)

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), time.Minute)
	defer cancelShutdown()
	if err := eng.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Engine shutdown failed: %v", err)
	}
	drained := time.Since(start)

	processed := eng.Processed()
	log.Printf("Producers finished in %v, book drained in %v", produced, drained)
	log.Printf("Requests sent: %d, failed: %d, processed: %d, rejected: %d",
		gen.Sent(), gen.Failed(), processed, eng.Rejected())
	if drained > 0 {
		log.Printf("Throughput: %.0f requests/s", float64(processed)/drained.Seconds())
	}

	for _, kind := range latency.Kinds {
		if s := recorder.Stats(kind); s.Count > 0 {
			log.Print(s)
		}
	}

	renderer := dashboard.NewRenderer(os.Stdout, store, nil, *depth)
	if err := renderer.Render(); err != nil {
		log.Printf("Failed to render book: %v", err)
	}

	if err := eng.Book().CheckInvariants(); err != nil {
		log.Printf("Book invariant violated: %v", err)
		os.Exit(1)
	}

	if *latencyPath != "" {
		f, err := os.Create(*latencyPath)
		if err != nil {
			log.Fatalf("Failed to create latency report: %v", err)
		}
		defer f.Close()
		if err := recorder.WriteCSV(f); err != nil {
			log.Fatalf("Failed to write latency report: %v", err)
		}
	}
}
