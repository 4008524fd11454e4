package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorsWrapInvalidOrder(t *testing.T) {
	for _, err := range []error{
		ErrInvalidQuantity,
		ErrInvalidPrice,
		ErrInvalidStopPrice,
		ErrInvalidSide,
		ErrInvalidType,
		ErrOrderExists,
		ErrReservedOrderID,
		ErrOrderClosed,
	} {
		assert.True(t, errors.Is(err, ErrInvalidOrder), "%v should be an invalid order error", err)
	}
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "invalid order", ErrInvalidOrder.Error())
	assert.Equal(t, "invalid order: quantity must be positive", ErrInvalidQuantity.Error())
	assert.Equal(t, "invalid order: order exists", ErrOrderExists.Error())
}

func TestInsufficientQuantityIsNotInvalidOrder(t *testing.T) {
	assert.False(t, errors.Is(ErrInsufficientQuantity, ErrInvalidOrder))
}
