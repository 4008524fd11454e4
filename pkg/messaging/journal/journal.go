// Package journal keeps an append-only record of executed trades in pebble.
//
// Entries are keyed by journal position, not by trade sequence. The engine
// numbers trades from 1 on every start, so Open reads the highest position
// already stored and later trades are written at that base plus their
// sequence. The stored value keeps the run-local sequence.
package journal

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/erain9/lob/pkg/logging"
	"github.com/erain9/lob/pkg/messaging"
	"github.com/rs/zerolog"
)

const keyLen = 8

// Journal implements MessageSender by writing one key per trade
type Journal struct {
	db   *pebble.DB
	sync bool
	base uint64
}

// Option configures a Journal
type Option func(*options)

type options struct {
	pebble *pebble.Options
	sync   bool
	logger *zerolog.Logger
}

// WithPebbleOptions replaces the pebble options used to open the store
func WithPebbleOptions(o *pebble.Options) Option {
	return func(opts *options) { opts.pebble = o }
}

// WithSync makes every batch wait for the WAL fsync
func WithSync(sync bool) Option {
	return func(opts *options) { opts.sync = sync }
}

// WithLogger sets the logger pebble writes its own messages to. It is
// ignored when the pebble options already carry a Logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(opts *options) { opts.logger = &logger }
}

// pebbleLogger adapts zerolog to pebble.Logger
type pebbleLogger struct {
	logger zerolog.Logger
}

func (l pebbleLogger) Infof(format string, args ...interface{}) {
	l.logger.Info().Msgf(format, args...)
}

func (l pebbleLogger) Fatalf(format string, args ...interface{}) {
	l.logger.Fatal().Msgf(format, args...)
}

// Open opens or creates the journal in dir and positions new entries after
// the last one already stored.
func Open(dir string, opts ...Option) (*Journal, error) {
	o := options{pebble: &pebble.Options{}}
	for _, opt := range opts {
		opt(&o)
	}

	if o.pebble.Logger == nil {
		logger := logging.Component("journal")
		if o.logger != nil {
			logger = *o.logger
		}
		o.pebble.Logger = pebbleLogger{logger: logger.With().Str("store", "pebble").Logger()}
	}

	db, err := pebble.Open(dir, o.pebble)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal at %s: %w", dir, err)
	}

	j := &Journal{db: db, sync: o.sync}
	last, _, err := j.LastPosition()
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to read journal position at %s: %w", dir, err)
	}
	j.base = last
	return j, nil
}

// Base returns the position that trade sequence 0 maps to in this run
func (j *Journal) Base() uint64 {
	return j.base
}

// big-endian keys sort in position order
func keyFor(pos uint64) []byte {
	key := make([]byte, keyLen)
	binary.BigEndian.PutUint64(key, pos)
	return key
}

func positionOf(key []byte) (uint64, error) {
	if len(key) != keyLen {
		return 0, fmt.Errorf("invalid journal key length %d", len(key))
	}
	return binary.BigEndian.Uint64(key), nil
}

// SendDoneMessage writes every trade of done in one batch, each at Base
// plus its sequence
func (j *Journal) SendDoneMessage(_ context.Context, done *messaging.DoneMessage) error {
	if len(done.Trades) == 0 {
		return nil
	}

	batch := j.db.NewBatch()
	defer batch.Close()

	for _, t := range done.Trades {
		value, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("failed to marshal trade %d: %w", t.Seq, err)
		}
		if err := batch.Set(keyFor(j.base+t.Seq), value, nil); err != nil {
			return fmt.Errorf("failed to stage trade %d: %w", t.Seq, err)
		}
	}

	writeOpts := pebble.NoSync
	if j.sync {
		writeOpts = pebble.Sync
	}
	if err := batch.Commit(writeOpts); err != nil {
		return fmt.Errorf("failed to commit trades: %w", err)
	}
	return nil
}

// Get returns the trade stored at journal position pos
func (j *Journal) Get(pos uint64) (messaging.Trade, bool, error) {
	value, closer, err := j.db.Get(keyFor(pos))
	if errors.Is(err, pebble.ErrNotFound) {
		return messaging.Trade{}, false, nil
	}
	if err != nil {
		return messaging.Trade{}, false, fmt.Errorf("failed to read journal position %d: %w", pos, err)
	}
	defer closer.Close()

	var t messaging.Trade
	if err := json.Unmarshal(value, &t); err != nil {
		return messaging.Trade{}, false, fmt.Errorf("failed to unmarshal journal position %d: %w", pos, err)
	}
	return t, true, nil
}

// Replay calls fn for every trade at position >= from, in order, until fn
// returns false.
func (j *Journal) Replay(from uint64, fn func(messaging.Trade) bool) error {
	iter, err := j.db.NewIter(&pebble.IterOptions{LowerBound: keyFor(from)})
	if err != nil {
		return fmt.Errorf("failed to open journal iterator: %w", err)
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		if _, err := positionOf(iter.Key()); err != nil {
			return err
		}
		var t messaging.Trade
		if err := json.Unmarshal(iter.Value(), &t); err != nil {
			return fmt.Errorf("failed to unmarshal journal entry: %w", err)
		}
		if !fn(t) {
			break
		}
	}
	return iter.Error()
}

// LastPosition returns the highest journal position, or false when empty
func (j *Journal) LastPosition() (uint64, bool, error) {
	iter, err := j.db.NewIter(nil)
	if err != nil {
		return 0, false, fmt.Errorf("failed to open journal iterator: %w", err)
	}
	defer iter.Close()

	if !iter.Last() {
		return 0, false, iter.Error()
	}
	pos, err := positionOf(iter.Key())
	if err != nil {
		return 0, false, err
	}
	return pos, true, nil
}

// Close flushes and closes the store
func (j *Journal) Close() error {
	return j.db.Close()
}

// Ensure Journal implements MessageSender
var _ messaging.MessageSender = (*Journal)(nil)
