package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	// Span names
	SpanSubmitOrder  = "submit_order"
	SpanCancelOrder  = "cancel_order"
	SpanModifyOrder  = "modify_order"
	SpanMatchOrder   = "match_order"
	SpanProcessOrder = "process_request"
	SpanDispatch     = "dispatch_done"

	// Attribute keys
	AttributeOrderID           = "order.id"
	AttributeOrderSide         = "order.side"
	AttributeOrderType         = "order.type"
	AttributeOrderQuantity     = "order.quantity"
	AttributeOrderPrice        = "order.price"
	AttributeOrderStatus       = "order.status"
	AttributeExecutedQuantity  = "order.executed_quantity"
	AttributeRemainingQuantity = "order.remaining_quantity"
	AttributeTradeCount        = "trade.count"
	AttributeRequestKind       = "request.kind"
)

// StartOrderSpan starts a new span for order processing. The returned span
// is never nil.
func StartOrderSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	var tracer trace.Tracer

	switch name {
	case SpanProcessOrder, SpanDispatch:
		tracer = GetMatchingEngineTracer()
	default:
		tracer = GetOrderBookTracer()
	}

	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// AddAttributes adds attributes to a span
func AddAttributes(span trace.Span, attrs ...attribute.KeyValue) {
	if span == nil {
		return
	}
	span.SetAttributes(attrs...)
}
