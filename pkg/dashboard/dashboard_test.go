package dashboard

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/erain9/lob/pkg/backend/memory"
	"github.com/erain9/lob/pkg/core"
	"github.com/erain9/lob/pkg/latency"
	"github.com/fatih/color"
	"github.com/nikolaydubina/fpdecimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	m.Run()
}

func seededStore(t *testing.T) *memory.SnapshotStore {
	t.Helper()
	ctx := context.Background()
	book := core.NewOrderBook()

	orders := []struct {
		side  core.Side
		qty   int64
		price float64
	}{
		{core.Sell, 5, 101},
		{core.Sell, 3, 102},
		{core.Buy, 4, 99},
		{core.Buy, 6, 98},
		{core.Buy, 2, 101},
	}
	for i, o := range orders {
		order, err := core.NewLimitOrder(int64(i+1), int64(i+1), o.side, o.qty, fpdecimal.FromFloat(o.price))
		require.NoError(t, err)
		_, err = book.Submit(ctx, order)
		require.NoError(t, err)
	}
	stop, err := core.NewStopOrder(10, 10, core.Sell, 1, fpdecimal.FromInt(95))
	require.NoError(t, err)
	_, err = book.Submit(ctx, stop)
	require.NoError(t, err)

	store := memory.NewSnapshotStore()
	require.NoError(t, store.PublishSnapshot(ctx, book.Snapshot(10)))
	return store
}

func TestRenderWaitsForSnapshot(t *testing.T) {
	var out bytes.Buffer
	r := NewRenderer(&out, memory.NewSnapshotStore(), nil, 5)

	require.NoError(t, r.Render())
	assert.Contains(t, out.String(), "waiting for first snapshot")
}

func TestRenderFrame(t *testing.T) {
	var out bytes.Buffer
	rec := latency.NewRecorder()
	rec.Record(latency.Match, time.Microsecond)

	r := NewRenderer(&out, seededStore(t), rec, 5)
	require.NoError(t, r.Render())

	frame := out.String()
	lines := strings.Split(frame, "\n")

	askIdx, bidIdx := -1, -1
	for i, line := range lines {
		if strings.Contains(line, "102") && strings.Contains(line, "ASK") {
			askIdx = i
		}
		if strings.Contains(line, "98") && strings.Contains(line, "BID") {
			bidIdx = i
		}
	}
	require.NotEqual(t, -1, askIdx, frame)
	require.NotEqual(t, -1, bidIdx, frame)
	assert.Less(t, askIdx, bidIdx)

	assert.Contains(t, frame, "last trade 101")
	assert.Contains(t, frame, "seq 1")
	assert.Contains(t, frame, "pending stops 1")
	assert.Contains(t, frame, "#10 SELL STOP 1 @ stop 95")
	assert.Contains(t, frame, "match")
	assert.Contains(t, frame, "spread 2")

	// the frame itself was timed
	assert.Equal(t, int64(1), rec.Stats(latency.Frame).Count)
}

func TestRenderRespectsDepth(t *testing.T) {
	var out bytes.Buffer
	r := NewRenderer(&out, seededStore(t), nil, 1)
	require.NoError(t, r.Render())

	assert.Equal(t, 1, strings.Count(out.String(), "ASK"))
	assert.Equal(t, 1, strings.Count(out.String(), "BID"))
}

func TestRenderClearScreen(t *testing.T) {
	var out bytes.Buffer
	r := NewRenderer(&out, seededStore(t), nil, 5, WithClearScreen())
	require.NoError(t, r.Render())
	assert.True(t, strings.HasPrefix(out.String(), clearScreen))
}

func TestRunRendersUntilCanceled(t *testing.T) {
	var out bytes.Buffer
	rec := latency.NewRecorder()
	r := NewRenderer(&out, seededStore(t), rec, 5)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	require.NoError(t, r.Run(ctx, 10*time.Millisecond))
	assert.GreaterOrEqual(t, rec.Stats(latency.Frame).Count, int64(2))
}
