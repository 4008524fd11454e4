package latency

import (
	"bytes"
	"encoding/csv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderStats(t *testing.T) {
	r := NewRecorder()
	for i := 1; i <= 100; i++ {
		r.Record(Match, time.Duration(i)*time.Microsecond)
	}

	s := r.Stats(Match)
	assert.Equal(t, int64(100), s.Count)
	assert.InDelta(t, float64(time.Microsecond), float64(s.Min), float64(time.Microsecond)/100)
	assert.InDelta(t, float64(100*time.Microsecond), float64(s.Max), float64(100*time.Microsecond)/100)
	assert.InDelta(t, float64(50*time.Microsecond), float64(s.P50), float64(time.Microsecond))
	assert.InDelta(t, float64(99*time.Microsecond), float64(s.P99), float64(time.Microsecond))
	assert.InDelta(t, float64(50500*time.Nanosecond), float64(s.Mean), float64(time.Microsecond))
}

func TestRecorderEmptyAndNil(t *testing.T) {
	r := NewRecorder()
	assert.Equal(t, int64(0), r.Stats(Wait).Count)

	var nilRecorder *Recorder
	nilRecorder.Record(Push, time.Millisecond)
	assert.Equal(t, int64(0), nilRecorder.Stats(Push).Count)
}

func TestRecorderClampsOutOfRange(t *testing.T) {
	r := NewRecorder()
	r.Record(Push, 0)
	r.Record(Push, time.Hour)

	s := r.Stats(Push)
	assert.Equal(t, int64(2), s.Count)
	assert.LessOrEqual(t, s.Min, time.Duration(lowestTrackable))
	assert.GreaterOrEqual(t, s.Max, time.Duration(float64(highestTrackable)*0.99))
}

func TestRecorderConcurrent(t *testing.T) {
	r := NewRecorder()
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				r.Record(Wait, time.Duration(i+1)*time.Nanosecond)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(4000), r.Stats(Wait).Count)

	r.Reset()
	assert.Equal(t, int64(0), r.Stats(Wait).Count)
}

func TestWriteCSV(t *testing.T) {
	r := NewRecorder()
	r.Record(Match, 2*time.Microsecond)

	var buf bytes.Buffer
	require.NoError(t, r.WriteCSV(&buf))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, len(Kinds)+1)
	assert.Equal(t, "kind", rows[0][0])
	assert.Equal(t, "push", rows[1][0])
	assert.Equal(t, "0", rows[1][1])
	assert.Equal(t, "match", rows[3][0])
	assert.Equal(t, "1", rows[3][1])
}
