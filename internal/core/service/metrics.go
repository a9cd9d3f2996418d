package service

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/rl1809/order-placement/internal/core/domain"
)

type orderMetrics struct {
	created          metric.Int64Counter
	failed           metric.Int64Counter
	rollbackFailures metric.Int64Counter
}

func newOrderMetrics(meter metric.Meter) *orderMetrics {
	return &orderMetrics{
		created:          counter(meter, "orders.created", "Orders committed"),
		failed:           counter(meter, "orders.failed", "Order attempts that were rolled back or rejected"),
		rollbackFailures: counter(meter, "orders.rollback_failures", "Rollbacks that returned an error"),
	}
}

func counter(meter metric.Meter, name, description string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		return noop.Int64Counter{}
	}
	return c
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrEmptyOrder), errors.Is(err, domain.ErrInvalidQuantity):
		return "invalid_order"
	case errors.Is(err, domain.ErrConnectionFailure):
		return "connection"
	case errors.Is(err, domain.ErrAllocationFailure):
		return "allocation"
	case errors.Is(err, domain.ErrProductNotFound):
		return "product_not_found"
	case errors.Is(err, domain.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, domain.ErrDeductionFailure):
		return "deduction"
	case errors.Is(err, domain.ErrInsertFailure):
		return "insert"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "storage"
	}
}
