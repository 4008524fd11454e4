package engine

import (
	"time"

	"github.com/erain9/lob/pkg/core"
	"github.com/nikolaydubina/fpdecimal"
)

// Kind identifies what a request asks the book to do
type Kind uint8

const (
	KindSubmit Kind = iota + 1
	KindCancel
	KindModify

	// kindStop marks the sentinel that ends the consumer
	kindStop
)

// String implements fmt.Stringer interface
func (k Kind) String() string {
	switch k {
	case KindSubmit:
		return "submit"
	case KindCancel:
		return "cancel"
	case KindModify:
		return "modify"
	case kindStop:
		return "stop"
	default:
		return "unknown"
	}
}

// Request is one order-intent event travelling through the ingestion queue
type Request struct {
	Kind    Kind
	OrderID int64

	// Order is set for KindSubmit
	Order *core.Order

	// Price and Quantity are set for KindModify
	Price    fpdecimal.Decimal
	Quantity int64

	enqueued time.Time
}

// SubmitRequest asks the book to accept order
func SubmitRequest(order *core.Order) Request {
	r := Request{Kind: KindSubmit, Order: order}
	if order != nil {
		r.OrderID = order.ID()
	}
	return r
}

// CancelRequest asks the book to cancel orderID
func CancelRequest(orderID int64) Request {
	return Request{Kind: KindCancel, OrderID: orderID}
}

// ModifyRequest asks the book to replace orderID with price and quantity
func ModifyRequest(orderID int64, price fpdecimal.Decimal, quantity int64) Request {
	return Request{Kind: KindModify, OrderID: orderID, Price: price, Quantity: quantity}
}

func stopRequest() Request {
	return Request{Kind: kindStop, OrderID: core.SentinelOrderID}
}

func (r Request) isSentinel() bool {
	return r.OrderID == core.SentinelOrderID
}
