package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/erain9/lob/pkg/messaging"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// Consumer reads done messages published by KafkaMessageSender
type Consumer struct {
	reader *kafka.Reader
}

// NewConsumer creates a consumer reading topic from startOffset, either
// kafka.FirstOffset or kafka.LastOffset
func NewConsumer(brokers []string, topic, groupID string, startOffset int64) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:     brokers,
			Topic:       topic,
			GroupID:     groupID,
			StartOffset: startOffset,
			MinBytes:    1,
			MaxBytes:    10e6,
		}),
	}
}

// decodeDone parses one message value
func decodeDone(value []byte) (*messaging.DoneMessage, error) {
	var msg messaging.DoneMessage
	if err := json.Unmarshal(value, &msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal done message: %w", err)
	}
	return &msg, nil
}

// ConsumeDoneMessages calls handler for every message until ctx is done.
// Malformed messages are skipped.
func (c *Consumer) ConsumeDoneMessages(ctx context.Context, logger zerolog.Logger, handler func(*messaging.DoneMessage) error) error {
	for {
		m, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return fmt.Errorf("failed to read message: %w", err)
		}

		msg, err := decodeDone(m.Value)
		if err != nil {
			logger.Warn().Err(err).Int64("offset", m.Offset).Msg("Skipping malformed message")
			continue
		}

		if err := handler(msg); err != nil {
			return err
		}
	}
}

// Close closes the reader
func (c *Consumer) Close() error {
	return c.reader.Close()
}

// SetupConsumer starts a goroutine that logs every done message on topic
func SetupConsumer(ctx context.Context, brokers []string, topic string, logger zerolog.Logger) *Consumer {
	consumer := NewConsumer(brokers, topic, "lob-tail", kafka.LastOffset)

	go func() {
		logger.Info().Str("topic", topic).Msg("Starting Kafka consumer")
		err := consumer.ConsumeDoneMessages(ctx, logger, func(msg *messaging.DoneMessage) error {
			logger.Info().
				Int64("order_id", msg.OrderID).
				Str("status", msg.Status).
				Int64("processed", msg.Processed).
				Int64("left", msg.Left).
				Ints64("canceled", msg.Canceled).
				Ints64("activated", msg.Activated).
				Bool("stored", msg.Stored).
				Int("trades", len(msg.Trades)).
				Msg("Received done message")
			return nil
		})
		if err != nil {
			logger.Error().Err(err).Msg("Kafka consumer error")
		}
	}()

	return consumer
}
