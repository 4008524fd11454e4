package core

import (
	"encoding/json"
	"testing"

	"github.com/nikolaydubina/fpdecimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrade_MarshalJSON(t *testing.T) {
	trade := Trade{
		Seq:          3,
		TakerOrderID: 10,
		MakerOrderID: 4,
		TakerSide:    Sell,
		Price:        fpdecimal.FromFloat(99.5),
		Quantity:     7,
	}

	data, err := json.Marshal(trade)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, float64(3), decoded["seq"])
	assert.Equal(t, float64(10), decoded["takerOrderID"])
	assert.Equal(t, float64(4), decoded["makerOrderID"])
	assert.Equal(t, "SELL", decoded["takerSide"])
	assert.Equal(t, fpdecimal.FromFloat(99.5).String(), decoded["price"])
	assert.Equal(t, float64(7), decoded["quantity"])
}

func TestDone_SealDetachesOrders(t *testing.T) {
	order, err := NewLimitOrder(1, 1, Buy, 10, fpdecimal.FromInt(100))
	require.NoError(t, err)
	stop, err := NewStopOrder(2, 2, Buy, 3, fpdecimal.FromInt(101))
	require.NoError(t, err)

	done := newDone(order)
	order.fill(4)
	done.appendTrade(Trade{Seq: 1, TakerOrderID: 1, MakerOrderID: 9, Quantity: 4})
	done.appendActivated(stop)
	done.seal(true)

	assert.Equal(t, int64(10), done.Quantity)
	assert.Equal(t, int64(4), done.Processed)
	assert.Equal(t, int64(6), done.Left)
	assert.True(t, done.Stored)
	assert.Equal(t, int64(4), done.TradedQuantity())

	order.fill(6)
	stop.activate()
	assert.Equal(t, int64(4), done.Order.Filled())
	assert.Equal(t, TypeStop, done.Activated[0].OrderType())
}

func TestDone_IsEmpty(t *testing.T) {
	var nilDone *Done
	assert.True(t, nilDone.IsEmpty())
	assert.True(t, (&Done{}).IsEmpty())

	order, _ := NewMarketOrder(1, 1, Sell, 1)
	assert.False(t, newDone(order).IsEmpty())
}

func TestDone_MarshalJSON(t *testing.T) {
	order, _ := NewMarketOrder(1, 1, Sell, 5)
	canceled, _ := NewLimitOrder(2, 2, Buy, 1, fpdecimal.FromInt(90))

	done := newDone(order)
	done.appendCanceled(canceled)
	done.seal(false)

	data, err := json.Marshal(done)
	require.NoError(t, err)

	var decoded struct {
		Order struct {
			ID int64 `json:"id"`
		} `json:"order"`
		Canceled  []int64 `json:"canceled"`
		Activated []int64 `json:"activated"`
		Left      int64   `json:"left"`
		Stored    bool    `json:"stored"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, int64(1), decoded.Order.ID)
	assert.Equal(t, []int64{2}, decoded.Canceled)
	assert.Empty(t, decoded.Activated)
	assert.Equal(t, int64(5), decoded.Left)
	assert.False(t, decoded.Stored)
}

func TestSnapshotMidIsExact(t *testing.T) {
	dec := func(v string) fpdecimal.Decimal {
		d, err := fpdecimal.FromString(v)
		require.NoError(t, err)
		return d
	}

	tests := []struct {
		bid, ask, want string
	}{
		{"99.5", "100", "99.75"},
		{"1.005", "1.005", "1.005"},
		{"0.001", "0.002", "0.001"},
	}
	for _, tt := range tests {
		mid, ok := Snapshot{BestBid: dec(tt.bid), HasBid: true, BestAsk: dec(tt.ask), HasAsk: true}.Mid()
		require.True(t, ok)
		assert.True(t, mid.Equal(dec(tt.want)), "mid of %s and %s: got %s", tt.bid, tt.ask, mid)
	}
}

func TestSnapshotMidFallbacks(t *testing.T) {
	_, ok := Snapshot{}.Mid()
	assert.False(t, ok)

	mid, ok := Snapshot{BestBid: fpdecimal.FromInt(99), HasBid: true}.Mid()
	require.True(t, ok)
	assert.True(t, mid.Equal(fpdecimal.FromInt(99)))

	mid, ok = Snapshot{LastTrade: fpdecimal.FromInt(42), HasLastTrade: true}.Mid()
	require.True(t, ok)
	assert.True(t, mid.Equal(fpdecimal.FromInt(42)))

	_, ok = Snapshot{BestAsk: fpdecimal.FromInt(1), HasAsk: true}.Spread()
	assert.False(t, ok)
}
