package messaging

import (
	"context"
	"errors"

	"github.com/erain9/lob/pkg/core"
)

// MessageSender delivers the result of one book operation to a sink.
// Implementations run outside the book lock.
type MessageSender interface {
	SendDoneMessage(ctx context.Context, done *DoneMessage) error
	Close() error
}

// DoneMessage represents the result of one book operation as published to
// trade sinks
type DoneMessage struct {
	OrderID   int64   `json:"orderID"`
	Side      string  `json:"side"`
	OrderType string  `json:"orderType"`
	Status    string  `json:"status"`
	Quantity  int64   `json:"quantity"`
	Processed int64   `json:"processed"`
	Left      int64   `json:"left"`
	Stored    bool    `json:"stored"`
	Trades    []Trade `json:"trades"`
	Canceled  []int64 `json:"canceled"`
	Activated []int64 `json:"activated"`
}

// Trade represents a single trade execution
type Trade struct {
	Seq          uint64 `json:"seq"`
	TakerOrderID int64  `json:"takerOrderID"`
	MakerOrderID int64  `json:"makerOrderID"`
	TakerSide    string `json:"takerSide"`
	Price        string `json:"price"`
	Quantity     int64  `json:"quantity"`
}

// FromDone converts a book result. It returns nil for an empty result.
func FromDone(done *core.Done) *DoneMessage {
	if done.IsEmpty() {
		return nil
	}

	msg := &DoneMessage{
		OrderID:   done.Order.ID(),
		Side:      done.Order.Side().String(),
		OrderType: string(done.Order.OrderType()),
		Status:    string(done.Order.Status()),
		Quantity:  done.Quantity,
		Processed: done.Processed,
		Left:      done.Left,
		Stored:    done.Stored,
		Trades:    make([]Trade, 0, len(done.Trades)),
		Canceled:  make([]int64, 0, len(done.Canceled)),
		Activated: make([]int64, 0, len(done.Activated)),
	}

	for _, t := range done.Trades {
		msg.Trades = append(msg.Trades, Trade{
			Seq:          t.Seq,
			TakerOrderID: t.TakerOrderID,
			MakerOrderID: t.MakerOrderID,
			TakerSide:    t.TakerSide.String(),
			Price:        t.Price.String(),
			Quantity:     t.Quantity,
		})
	}
	for _, o := range done.Canceled {
		msg.Canceled = append(msg.Canceled, o.ID())
	}
	for _, o := range done.Activated {
		msg.Activated = append(msg.Activated, o.ID())
	}

	return msg
}

// MultiSender fans one message out to several senders
type MultiSender []MessageSender

// SendDoneMessage sends to every sender and joins their errors
func (m MultiSender) SendDoneMessage(ctx context.Context, done *DoneMessage) error {
	var errs []error
	for _, s := range m {
		if err := s.SendDoneMessage(ctx, done); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sender and joins their errors
func (m MultiSender) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Ensure MultiSender implements MessageSender
var _ MessageSender = MultiSender(nil)
