package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/IBM/sarama"
	"github.com/erain9/lob/pkg/messaging"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

const maxRetry = 5

// SyncProducerSender implements MessageSender on a sarama SyncProducer.
// Payloads are protobuf-encoded google.protobuf.Struct values.
type SyncProducerSender struct {
	producer sarama.SyncProducer
	topic    string
}

// NewSyncProducerSender dials brokers and returns a sender for topic
func NewSyncProducerSender(brokers []string, topic string) (*SyncProducerSender, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = maxRetry
	config.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	return NewSyncProducerSenderWithProducer(producer, topic), nil
}

// NewSyncProducerSenderWithProducer wraps an existing producer
func NewSyncProducerSenderWithProducer(producer sarama.SyncProducer, topic string) *SyncProducerSender {
	return &SyncProducerSender{
		producer: producer,
		topic:    topic,
	}
}

// encodeProto converts done to a protobuf Struct via its JSON form
func encodeProto(done *messaging.DoneMessage) ([]byte, error) {
	data, err := json.Marshal(done)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal done message: %w", err)
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("failed to decode done message: %w", err)
	}

	st, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to build proto struct: %w", err)
	}

	return proto.Marshal(st)
}

// DecodeProto is the inverse of the payload encoding
func DecodeProto(payload []byte) (*messaging.DoneMessage, error) {
	var st structpb.Struct
	if err := proto.Unmarshal(payload, &st); err != nil {
		return nil, fmt.Errorf("failed to unmarshal proto struct: %w", err)
	}

	data, err := st.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to convert proto struct: %w", err)
	}

	var done messaging.DoneMessage
	if err := json.Unmarshal(data, &done); err != nil {
		return nil, fmt.Errorf("failed to unmarshal done message: %w", err)
	}
	return &done, nil
}

// SendDoneMessage sends the DoneMessage to the Kafka topic
func (s *SyncProducerSender) SendDoneMessage(_ context.Context, done *messaging.DoneMessage) error {
	payload, err := encodeProto(done)
	if err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: s.topic,
		Key:   sarama.StringEncoder(strconv.FormatInt(done.OrderID, 10)),
		Value: sarama.ByteEncoder(payload),
	}

	if _, _, err := s.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("failed to send message to Kafka: %w", err)
	}
	return nil
}

// Close closes the producer
func (s *SyncProducerSender) Close() error {
	return s.producer.Close()
}

// Ensure SyncProducerSender implements MessageSender
var _ messaging.MessageSender = (*SyncProducerSender)(nil)
