package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erain9/lob/pkg/messaging"
	"github.com/erain9/lob/pkg/testutil"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDone() *messaging.DoneMessage {
	return &messaging.DoneMessage{
		OrderID:   42,
		Side:      "BUY",
		OrderType: "LIMIT",
		Status:    "PARTIALLY_FILLED",
		Quantity:  10,
		Processed: 4,
		Left:      6,
		Stored:    true,
		Trades: []messaging.Trade{{
			Seq:          7,
			TakerOrderID: 42,
			MakerOrderID: 3,
			TakerSide:    "BUY",
			Price:        "100.5",
			Quantity:     4,
		}},
		Canceled:  []int64{},
		Activated: []int64{9},
	}
}

func TestSyncProducerSenderEncodesProto(t *testing.T) {
	producer := &mockProducer{}
	sender := NewSyncProducerSenderWithProducer(producer, "trades")

	require.NoError(t, sender.SendDoneMessage(context.Background(), sampleDone()))
	require.Len(t, producer.sentMessages, 1)

	sent := producer.sentMessages[0]
	assert.Equal(t, "trades", sent.Topic)

	key, err := sent.Key.Encode()
	require.NoError(t, err)
	assert.Equal(t, "42", string(key))

	payload, err := sent.Value.Encode()
	require.NoError(t, err)

	decoded, err := DecodeProto(payload)
	require.NoError(t, err)
	assert.Equal(t, sampleDone(), decoded)

	require.NoError(t, sender.Close())
	assert.True(t, producer.closed)
}

func TestSyncProducerSenderError(t *testing.T) {
	producer := &mockProducer{err: errors.New("leader not available")}
	sender := NewSyncProducerSenderWithProducer(producer, "trades")

	err := sender.SendDoneMessage(context.Background(), sampleDone())
	assert.ErrorContains(t, err, "leader not available")
}

func TestJSONEncodingRoundTrip(t *testing.T) {
	msg, err := encodeDone(sampleDone())
	require.NoError(t, err)
	assert.Equal(t, "42", string(msg.Key))

	decoded, err := decodeDone(msg.Value)
	require.NoError(t, err)
	assert.Equal(t, sampleDone(), decoded)

	_, err = decodeDone([]byte("{"))
	assert.Error(t, err)
}

func TestNewKafkaMessageSenderValidation(t *testing.T) {
	_, err := NewKafkaMessageSender(nil, "trades")
	assert.Error(t, err)
	_, err = NewKafkaMessageSender([]string{"localhost:9092"}, "")
	assert.Error(t, err)
}

func TestKafkaRoundTrip(t *testing.T) {
	brokers := []string{testutil.KafkaAddr()}
	testutil.SkipIfKafkaUnavailable(t, brokers[0])

	topic := "lob-test-" + time.Now().Format("150405.000000")
	sender, err := NewKafkaMessageSender(brokers, topic)
	require.NoError(t, err)
	defer sender.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := sender.SendDoneMessage(ctx, sampleDone()); err != nil {
		t.Skipf("broker rejected write: %v", err)
	}

	consumer := NewConsumer(brokers, topic, "", kafka.FirstOffset)
	defer consumer.Close()

	received := make(chan *messaging.DoneMessage, 1)
	go func() {
		_ = consumer.ConsumeDoneMessages(ctx, zerolog.Nop(), func(msg *messaging.DoneMessage) error {
			received <- msg
			cancel()
			return nil
		})
	}()

	select {
	case msg := <-received:
		assert.Equal(t, sampleDone(), msg)
	case <-time.After(15 * time.Second):
		t.Skip("no message consumed before timeout")
	}
}
