package core

import (
	"errors"
	"fmt"
)

// SentinelOrderID is reserved for the ingestion queue shutdown signal and is
// never accepted from real traffic.
const SentinelOrderID int64 = -1

// Errors
var (
	ErrInvalidOrder = errors.New("invalid order")

	ErrInvalidQuantity  = fmt.Errorf("%w: quantity must be positive", ErrInvalidOrder)
	ErrInvalidPrice     = fmt.Errorf("%w: price must be positive", ErrInvalidOrder)
	ErrInvalidStopPrice = fmt.Errorf("%w: stop price must be positive", ErrInvalidOrder)
	ErrInvalidSide      = fmt.Errorf("%w: unknown side", ErrInvalidOrder)
	ErrInvalidType      = fmt.Errorf("%w: unknown order type", ErrInvalidOrder)
	ErrOrderExists      = fmt.Errorf("%w: order exists", ErrInvalidOrder)
	ErrReservedOrderID  = fmt.Errorf("%w: order id is reserved", ErrInvalidOrder)
	ErrOrderClosed      = fmt.Errorf("%w: order is canceled or filled", ErrInvalidOrder)

	ErrInsufficientQuantity = errors.New("insufficient quantity to calculate price")
)
