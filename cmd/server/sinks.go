package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/erain9/lob/config"
	"github.com/erain9/lob/pkg/backend/memory"
	"github.com/erain9/lob/pkg/backend/redis"
	"github.com/erain9/lob/pkg/engine"
	"github.com/erain9/lob/pkg/messaging"
	"github.com/erain9/lob/pkg/messaging/csvlog"
	"github.com/erain9/lob/pkg/messaging/journal"
	"github.com/erain9/lob/pkg/messaging/kafka"
	"github.com/rs/zerolog"
	"go.uber.org/zap"
)

// buildSenders opens every enabled trade sink. On error the sinks opened so
// far are closed.
func buildSenders(cfg *config.Config, logger zerolog.Logger) (messaging.MultiSender, error) {
	var senders messaging.MultiSender
	fail := func(err error) (messaging.MultiSender, error) {
		if cerr := senders.Close(); cerr != nil {
			logger.Error().Err(cerr).Msg("Failed to close sinks")
		}
		return nil, err
	}

	if cfg.Kafka.Enabled {
		var (
			sender messaging.MessageSender
			err    error
		)
		switch cfg.Kafka.Driver {
		case config.DriverSarama:
			sender, err = kafka.NewSyncProducerSender(cfg.Brokers(), cfg.Kafka.Topic)
		default:
			sender, err = kafka.NewKafkaMessageSender(cfg.Brokers(), cfg.Kafka.Topic)
		}
		if err != nil {
			return fail(fmt.Errorf("kafka sink: %w", err))
		}
		senders = append(senders, sender)
		logger.Info().
			Str("driver", cfg.Kafka.Driver).
			Strs("brokers", cfg.Brokers()).
			Str("topic", cfg.Kafka.Topic).
			Msg("Kafka sink enabled")
	}

	if cfg.TradeLog.Enabled {
		if err := ensureDir(cfg.TradeLog.Path); err != nil {
			return fail(err)
		}
		sender, err := csvlog.Open(cfg.TradeLog.Path)
		if err != nil {
			return fail(fmt.Errorf("trade log: %w", err))
		}
		senders = append(senders, sender)
		logger.Info().Str("path", cfg.TradeLog.Path).Msg("Trade log enabled")
	}

	if cfg.Journal.Enabled {
		j, err := journal.Open(cfg.Journal.Dir, journal.WithLogger(logger))
		if err != nil {
			return fail(fmt.Errorf("journal: %w", err))
		}
		senders = append(senders, j)

		if j.Base() > 0 {
			logger.Info().Str("dir", cfg.Journal.Dir).Uint64("base", j.Base()).Msg("Journal holds trades from a previous run, appending after them")
		}
		logger.Info().Str("dir", cfg.Journal.Dir).Msg("Journal enabled")
	}

	return senders, nil
}

// buildPublishers returns the snapshot read models. The memory store is
// always present; it feeds the dashboard and the market maker.
func buildPublishers(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*memory.SnapshotStore, *redis.SnapshotStore, []engine.SnapshotPublisher, error) {
	store := memory.NewSnapshotStore()
	publishers := []engine.SnapshotPublisher{store}

	if !cfg.Redis.Enabled {
		return store, nil, publishers, nil
	}

	zl, err := zap.NewProduction()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("redis logger: %w", err)
	}

	client := redis.NewClient(redis.RedisOptions{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	redisStore := redis.NewSnapshotStore(client, cfg.Redis.Prefix, zl)
	if err := redisStore.Ping(ctx); err != nil {
		_ = redisStore.Close()
		return nil, nil, nil, fmt.Errorf("redis %s: %w", cfg.Redis.Addr, err)
	}

	logger.Info().Str("addr", cfg.Redis.Addr).Str("prefix", cfg.Redis.Prefix).Msg("Redis read model enabled")
	return store, redisStore, append(publishers, redisStore), nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	return nil
}
