// Package redis publishes book snapshots to Redis as a read model for
// processes outside the engine.
package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/erain9/lob/pkg/core"
	"github.com/nikolaydubina/fpdecimal"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisOptions represents configuration options for Redis connection
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// NewClient creates a Redis client from options
func NewClient(options RedisOptions) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     options.Addr,
		Password: options.Password,
		DB:       options.DB,
	})
}

// SnapshotStore writes each snapshot as two sorted sets of price levels,
// their quantities, and a meta hash, replaced atomically.
//
// Layout under prefix:
//
//	<prefix>:bids       ZSET member=price score=price
//	<prefix>:asks       ZSET member=price score=price
//	<prefix>:bids:qty   HASH price -> "quantity:orders"
//	<prefix>:asks:qty   HASH price -> "quantity:orders"
//	<prefix>:meta       HASH best_bid, best_ask, last_trade, sequence, stops
type SnapshotStore struct {
	client  *redis.Client
	bidsKey string
	asksKey string
	bidsQty string
	asksQty string
	metaKey string
	logger  *zap.Logger
}

// NewSnapshotStore creates a new instance of SnapshotStore
func NewSnapshotStore(client *redis.Client, prefix string, logger *zap.Logger) *SnapshotStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SnapshotStore{
		client:  client,
		bidsKey: fmt.Sprintf("%s:bids", prefix),
		asksKey: fmt.Sprintf("%s:asks", prefix),
		bidsQty: fmt.Sprintf("%s:bids:qty", prefix),
		asksQty: fmt.Sprintf("%s:asks:qty", prefix),
		metaKey: fmt.Sprintf("%s:meta", prefix),
		logger:  logger,
	}
}

// Ping checks the connection
func (s *SnapshotStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// PublishSnapshot replaces the stored read model with snap
func (s *SnapshotStore) PublishSnapshot(ctx context.Context, snap core.Snapshot) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.bidsKey, s.asksKey, s.bidsQty, s.asksQty, s.metaKey)

		writeLevels(ctx, pipe, s.bidsKey, s.bidsQty, snap.Bids)
		writeLevels(ctx, pipe, s.asksKey, s.asksQty, snap.Asks)

		meta := map[string]interface{}{
			"sequence": snap.Sequence,
			"stops":    len(snap.Stops),
		}
		if snap.HasBid {
			meta["best_bid"] = snap.BestBid.String()
		}
		if snap.HasAsk {
			meta["best_ask"] = snap.BestAsk.String()
		}
		if snap.HasLastTrade {
			meta["last_trade"] = snap.LastTrade.String()
		}
		pipe.HSet(ctx, s.metaKey, meta)
		return nil
	})
	if err != nil {
		s.logger.Error("failed to publish snapshot",
			zap.Uint64("sequence", snap.Sequence),
			zap.Error(err))
		return fmt.Errorf("failed to publish snapshot: %w", err)
	}
	return nil
}

func writeLevels(ctx context.Context, pipe redis.Pipeliner, setKey, qtyKey string, levels []core.Level) {
	if len(levels) == 0 {
		return
	}

	members := make([]redis.Z, 0, len(levels))
	quantities := make(map[string]interface{}, len(levels))
	for _, l := range levels {
		price := l.Price.String()
		members = append(members, redis.Z{Score: l.Price.Float64(), Member: price})
		quantities[price] = fmt.Sprintf("%d:%d", l.Quantity, l.Orders)
	}
	pipe.ZAdd(ctx, setKey, members...)
	pipe.HSet(ctx, qtyKey, quantities)
}

// Load reads the read model back into a snapshot. Pending stops are only
// counted, so Stops is always empty.
func (s *SnapshotStore) Load(ctx context.Context) (core.Snapshot, int, error) {
	var snap core.Snapshot

	bids, err := s.loadLevels(ctx, s.bidsKey, s.bidsQty, true)
	if err != nil {
		return snap, 0, err
	}
	asks, err := s.loadLevels(ctx, s.asksKey, s.asksQty, false)
	if err != nil {
		return snap, 0, err
	}
	snap.Bids, snap.Asks = bids, asks

	meta, err := s.client.HGetAll(ctx, s.metaKey).Result()
	if err != nil {
		return snap, 0, fmt.Errorf("failed to read snapshot meta: %w", err)
	}

	if v, ok := meta["best_bid"]; ok {
		if snap.BestBid, err = fpdecimal.FromString(v); err != nil {
			return snap, 0, fmt.Errorf("invalid best_bid %q: %w", v, err)
		}
		snap.HasBid = true
	}
	if v, ok := meta["best_ask"]; ok {
		if snap.BestAsk, err = fpdecimal.FromString(v); err != nil {
			return snap, 0, fmt.Errorf("invalid best_ask %q: %w", v, err)
		}
		snap.HasAsk = true
	}
	if v, ok := meta["last_trade"]; ok {
		if snap.LastTrade, err = fpdecimal.FromString(v); err != nil {
			return snap, 0, fmt.Errorf("invalid last_trade %q: %w", v, err)
		}
		snap.HasLastTrade = true
	}
	if v, ok := meta["sequence"]; ok {
		if snap.Sequence, err = strconv.ParseUint(v, 10, 64); err != nil {
			return snap, 0, fmt.Errorf("invalid sequence %q: %w", v, err)
		}
	}

	stops := 0
	if v, ok := meta["stops"]; ok {
		if stops, err = strconv.Atoi(v); err != nil {
			return snap, 0, fmt.Errorf("invalid stops %q: %w", v, err)
		}
	}

	return snap, stops, nil
}

func (s *SnapshotStore) loadLevels(ctx context.Context, setKey, qtyKey string, descending bool) ([]core.Level, error) {
	var (
		prices []string
		err    error
	)
	if descending {
		prices, err = s.client.ZRevRange(ctx, setKey, 0, -1).Result()
	} else {
		prices, err = s.client.ZRange(ctx, setKey, 0, -1).Result()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", setKey, err)
	}

	quantities, err := s.client.HGetAll(ctx, qtyKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", qtyKey, err)
	}

	levels := make([]core.Level, 0, len(prices))
	for _, p := range prices {
		price, err := fpdecimal.FromString(p)
		if err != nil {
			s.logger.Warn("skipping level with invalid price", zap.String("key", setKey), zap.String("price", p))
			continue
		}

		level := core.Level{Price: price}
		qty, orders, found := strings.Cut(quantities[p], ":")
		if found {
			level.Quantity, _ = strconv.ParseInt(qty, 10, 64)
			level.Orders, _ = strconv.Atoi(orders)
		}
		levels = append(levels, level)
	}
	return levels, nil
}

// Close closes the client
func (s *SnapshotStore) Close() error {
	return s.client.Close()
}
