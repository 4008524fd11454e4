package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/erain9/lob/config"
	"github.com/erain9/lob/pkg/core"
	"github.com/erain9/lob/pkg/dashboard"
	"github.com/erain9/lob/pkg/engine"
	"github.com/erain9/lob/pkg/latency"
	"github.com/erain9/lob/pkg/logging"
	"github.com/erain9/lob/pkg/marketmaker"
	"github.com/erain9/lob/pkg/messaging/kafka"
	"github.com/erain9/lob/pkg/otel"
	"github.com/erain9/lob/pkg/traffic"
	"github.com/rs/zerolog"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// the dashboard owns stdout
	logging.Setup(logging.Config{
		Level:  cfg.Server.LogLevel,
		Pretty: cfg.Server.LogFormat == "pretty",
		Output: os.Stderr,
	})
	logger := logging.Component("server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cleanup, err := otel.Init(otel.Config{
		Endpoint:         cfg.Telemetry.Endpoint,
		CollectorEnabled: cfg.Telemetry.Enabled,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize OpenTelemetry")
	}
	defer cleanup()

	if cfg.Telemetry.Enabled && cfg.Telemetry.Runtime {
		if err := otel.StartRuntimeMetrics(0); err != nil {
			logger.Warn().Err(err).Msg("Failed to start runtime metrics")
		}
	}

	if err := run(ctx, cfg, os.Stdout, logger); err != nil {
		logger.Error().Err(err).Msg("Server exited with error")
		cleanup()
		os.Exit(1)
	}
}

// run wires the engine to its producers and sinks and blocks until traffic
// is exhausted or ctx is canceled, then shuts everything down in order:
// producers, engine (drain, final snapshot, sinks), dashboard.
func run(ctx context.Context, cfg *config.Config, out io.Writer, logger zerolog.Logger) error {
	recorder := latency.NewRecorder()

	senders, err := buildSenders(cfg, logger)
	if err != nil {
		return err
	}

	store, redisStore, publishers, err := buildPublishers(ctx, cfg, logger)
	if err != nil {
		_ = senders.Close()
		return err
	}
	if redisStore != nil {
		defer func() {
			if err := redisStore.Close(); err != nil {
				logger.Error().Err(err).Msg("Failed to close redis client")
			}
		}()
	}

	opts := []engine.Option{
		engine.WithLatencyRecorder(recorder),
		engine.WithSnapshotPublishers(publishers...),
		engine.WithSnapshotDepth(cfg.Engine.SnapshotDepth),
		engine.WithSnapshotInterval(cfg.Engine.SnapshotInterval),
	}
	if len(senders) > 0 {
		opts = append(opts,
			engine.WithMessageSender(senders),
			engine.WithDispatchBuffer(cfg.Engine.DispatchBuffer))
	}

	eng := engine.New(core.NewOrderBook(), opts...)
	if err := eng.Start(ctx); err != nil {
		return err
	}

	if cfg.Kafka.Enabled && cfg.Kafka.Driver == config.DriverKafkaGo && cfg.Server.LogLevel == "debug" {
		consumer := kafka.SetupConsumer(ctx, cfg.Brokers(), cfg.Kafka.Topic, logging.Component("kafka-tail"))
		defer consumer.Close()
	}

	ids := core.NewIDAllocator(0)
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	// dashboard outlives the engine so its last frame shows the final book
	dashCtx, cancelDash := context.WithCancel(context.Background())
	defer cancelDash()
	dashDone := make(chan struct{})
	if cfg.Dashboard.Enabled {
		renderer := dashboard.NewRenderer(out, store, recorder, cfg.Dashboard.Depth)
		go func() {
			defer close(dashDone)
			if err := renderer.Run(dashCtx, cfg.Dashboard.Interval); err != nil {
				logger.Error().Err(err).Msg("Dashboard stopped")
			}
		}()
	} else {
		close(dashDone)
	}

	var mm *marketmaker.MarketMaker
	if cfg.MarketMaker.Enabled {
		mm, err = newMarketMaker(cfg, eng, store, ids)
		if err != nil {
			return errors.Join(err, eng.Shutdown(context.Background()))
		}
		if err := mm.Start(runCtx); err != nil {
			return errors.Join(err, eng.Shutdown(context.Background()))
		}
	}

	trafficDone := make(chan struct{})
	var gen *traffic.Generator
	if cfg.Traffic.Enabled {
		gen, err = traffic.New(traffic.Config{
			Producers:         cfg.Traffic.Producers,
			OrdersPerProducer: cfg.Traffic.OrdersPerProducer,
			Rate:              cfg.Traffic.Rate,
			ReferencePrice:    cfg.Traffic.ReferencePrice,
			Tick:              cfg.Traffic.Tick,
			MaxQuantity:       cfg.Traffic.MaxQuantity,
			Seed:              cfg.Traffic.Seed,
		}, eng, ids, logging.Component("traffic"))
		if err != nil {
			return errors.Join(err, eng.Shutdown(context.Background()))
		}
		go func() {
			defer close(trafficDone)
			if err := gen.Run(runCtx); err != nil && runCtx.Err() == nil {
				logger.Warn().Err(err).Msg("Traffic stopped early")
			}
		}()
	}

	logger.Info().
		Bool("traffic", cfg.Traffic.Enabled).
		Bool("market_maker", cfg.MarketMaker.Enabled).
		Bool("dashboard", cfg.Dashboard.Enabled).
		Msg("Server running")

	select {
	case <-ctx.Done():
		logger.Info().Msg("Received signal, shutting down")
	case <-trafficDone:
		logger.Info().Msg("Traffic finished, shutting down")
	}

	cancelRun()
	if gen != nil {
		<-trafficDone
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if mm != nil {
		if err := mm.Stop(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := eng.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, err)
	}

	cancelDash()
	<-dashDone

	if cfg.TradeLog.Enabled && cfg.TradeLog.LatencyPath != "" {
		if err := writeLatency(cfg.TradeLog.LatencyPath, recorder); err != nil {
			errs = append(errs, err)
		}
	}

	for _, kind := range latency.Kinds {
		stats := recorder.Stats(kind)
		logger.Info().
			Str("kind", string(kind)).
			Int64("count", stats.Count).
			Dur("p50", stats.P50).
			Dur("p99", stats.P99).
			Dur("max", stats.Max).
			Msg("Latency")
	}

	book := eng.Book()
	logger.Info().
		Uint64("processed", eng.Processed()).
		Uint64("rejected", eng.Rejected()).
		Int("live_orders", book.Len()).
		Int("pending_stops", len(book.PendingStops())).
		Msg("Shutdown complete")

	return errors.Join(errs...)
}

func newMarketMaker(cfg *config.Config, eng *engine.Engine, store marketmaker.SnapshotSource, ids *core.IDAllocator) (*marketmaker.MarketMaker, error) {
	mmCfg := marketmaker.DefaultConfig()
	mmCfg.NumLevels = cfg.MarketMaker.Levels
	mmCfg.BaseSpreadPercent = cfg.MarketMaker.SpreadPercent
	mmCfg.PriceStepPercent = cfg.MarketMaker.StepPercent
	mmCfg.OrderSize = cfg.MarketMaker.OrderSize
	mmCfg.UpdateInterval = cfg.MarketMaker.Interval
	mmCfg.FallbackPrice = cfg.Traffic.ReferencePrice
	if cfg.Traffic.Tick > 0 {
		mmCfg.Tick = cfg.Traffic.Tick
	}

	slogger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slogLevel(cfg.Server.LogLevel)}))
	fetcher := marketmaker.NewSnapshotPriceFetcher(store, mmCfg.FallbackPrice, slogger)
	strategy := marketmaker.NewLayeredSymmetricQuoting(mmCfg, slogger)

	mm, err := marketmaker.NewMarketMaker(mmCfg, slogger, eng, fetcher, strategy, ids)
	if err != nil {
		return nil, fmt.Errorf("market maker: %w", err)
	}
	return mm, nil
}

func slogLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

func writeLatency(path string, recorder *latency.Recorder) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating latency report: %w", err)
	}
	if err := recorder.WriteCSV(f); err != nil {
		f.Close()
		return fmt.Errorf("writing latency report: %w", err)
	}
	return f.Close()
}
