package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/erain9/lob/pkg/messaging"
	"github.com/segmentio/kafka-go"
)

// KafkaMessageSender implements MessageSender using kafka-go. Messages are
// JSON and keyed by order id so one order's results stay on one partition.
type KafkaMessageSender struct {
	writer *kafka.Writer
	topic  string
}

// NewKafkaMessageSender creates a new Kafka message sender
func NewKafkaMessageSender(brokers []string, topic string) (*KafkaMessageSender, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("no kafka brokers configured")
	}
	if topic == "" {
		return nil, fmt.Errorf("no kafka topic configured")
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}

	return &KafkaMessageSender{
		writer: writer,
		topic:  topic,
	}, nil
}

// encodeDone builds the kafka-go message for done
func encodeDone(done *messaging.DoneMessage) (kafka.Message, error) {
	data, err := json.Marshal(done)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal done message: %w", err)
	}

	return kafka.Message{
		Key:   []byte(strconv.FormatInt(done.OrderID, 10)),
		Value: data,
		Time:  time.Now(),
	}, nil
}

// SendDoneMessage sends a done message to Kafka
func (k *KafkaMessageSender) SendDoneMessage(ctx context.Context, done *messaging.DoneMessage) error {
	msg, err := encodeDone(done)
	if err != nil {
		return err
	}

	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to send message to Kafka topic %s: %w", k.topic, err)
	}

	return nil
}

// Close closes the Kafka writer
func (k *KafkaMessageSender) Close() error {
	return k.writer.Close()
}

// Ensure KafkaMessageSender implements MessageSender
var _ messaging.MessageSender = (*KafkaMessageSender)(nil)
