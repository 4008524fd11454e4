package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/erain9/lob/config"
	"github.com/erain9/lob/pkg/messaging/journal"
	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Engine.SnapshotInterval = 10 * time.Millisecond

	cfg.TradeLog.Enabled = true
	cfg.TradeLog.Path = filepath.Join(dir, "out", "trades.csv")
	cfg.TradeLog.LatencyPath = filepath.Join(dir, "out", "latency.csv")
	cfg.Journal.Enabled = true
	cfg.Journal.Dir = filepath.Join(dir, "journal")

	cfg.Traffic.Producers = 2
	cfg.Traffic.OrdersPerProducer = 300
	cfg.Traffic.Rate = 0

	cfg.MarketMaker.Interval = 20 * time.Millisecond
	cfg.Dashboard.Interval = 20 * time.Millisecond

	require.NoError(t, cfg.Validate())
	return cfg
}

func TestRunDrainsTrafficAndWritesSinks(t *testing.T) {
	color.NoColor = true
	cfg := testConfig(t)

	var out bytes.Buffer
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	require.NoError(t, run(ctx, cfg, &out, zerolog.Nop()))

	assert.Contains(t, out.String(), "pending stops")

	f, err := os.Open(cfg.TradeLog.Path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.NotEmpty(t, rows)
	assert.Equal(t, "seq", rows[0][0])

	lf, err := os.Open(cfg.TradeLog.LatencyPath)
	require.NoError(t, err)
	defer lf.Close()
	latencyRows, err := csv.NewReader(lf).ReadAll()
	require.NoError(t, err)
	assert.Len(t, latencyRows, 5)

	// every logged trade is also journaled
	j, err := journal.Open(cfg.Journal.Dir)
	require.NoError(t, err)
	defer j.Close()
	last, ok, err := j.LastPosition()
	require.NoError(t, err)
	if len(rows) > 1 {
		require.True(t, ok)
		assert.Equal(t, uint64(len(rows)-1), last)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Traffic.OrdersPerProducer = 1_000_000
	cfg.Traffic.Rate = 500
	cfg.Dashboard.Enabled = false

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg, &bytes.Buffer{}, zerolog.Nop()) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}

func TestBuildSendersRejectsBadPath(t *testing.T) {
	cfg := config.Default()
	cfg.TradeLog.Enabled = true
	cfg.TradeLog.Path = filepath.Join(t.TempDir(), "missing-dir-file", "trades.csv")

	// a file where the directory should be
	require.NoError(t, os.WriteFile(filepath.Dir(cfg.TradeLog.Path), nil, 0o644))

	_, err := buildSenders(cfg, zerolog.Nop())
	assert.Error(t, err)
}

func TestSlogLevel(t *testing.T) {
	assert.Equal(t, "DEBUG", slogLevel("debug").String())
	assert.Equal(t, "INFO", slogLevel("nonsense").String())
}
