package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/rl1809/order-placement/internal/core/domain"
	"github.com/rl1809/order-placement/internal/port"
)

const (
	instrumentationName  = "github.com/rl1809/order-placement/internal/core/service"
	idempotencyKeyPrefix = "order:request:"
)

type Option func(*OrderService)

// WithCache enables request-id deduplication in PlaceOrder.
func WithCache(cache port.CacheRepository) Option {
	return func(s *OrderService) {
		s.cache = cache
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *OrderService) {
		s.logger = logger
	}
}

// WithMeterProvider records order counters on mp instead of the global provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *OrderService) {
		s.meterProvider = mp
	}
}

type OrderService struct {
	db            port.DatabaseRepository
	cache         port.CacheRepository
	logger        *slog.Logger
	tracer        trace.Tracer
	meterProvider metric.MeterProvider
	metrics       *orderMetrics
}

func NewOrderService(db port.DatabaseRepository, opts ...Option) *OrderService {
	s := &OrderService{
		db:            db,
		logger:        slog.Default(),
		tracer:        otel.Tracer(instrumentationName),
		meterProvider: otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.metrics = newOrderMetrics(s.meterProvider.Meter(instrumentationName))
	return s
}

// CreateOrder allocates an order, verifies and deducts stock for every item and
// inserts the line items, all inside one transaction. Any failure rolls the
// whole attempt back and is returned unchanged.
func (s *OrderService) CreateOrder(ctx context.Context, order *domain.Order) (orderID int64, err error) {
	attemptID := uuid.NewString()
	ctx, span := s.tracer.Start(ctx, "OrderService.CreateOrder", trace.WithAttributes(
		attribute.String("order.attempt_id", attemptID),
		attribute.Int("order.items", order.TotalItems()),
		attribute.Int("order.quantity", order.TotalQuantity()),
	))
	defer span.End()
	logger := s.logger.With("attempt_id", attemptID)

	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			s.metrics.failed.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", failureReason(err))))
			return
		}
		span.SetAttributes(attribute.Int64("order.id", orderID))
		s.metrics.created.Add(ctx, 1)
	}()

	if err = order.Validate(); err != nil {
		return 0, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		logger.Error("begin transaction failed", "error", err)
		return 0, err
	}
	defer func() {
		if closeErr := tx.Close(); closeErr != nil {
			logger.Warn("release transaction resources failed", "error", closeErr)
		}
	}()
	defer func() {
		if err != nil {
			s.rollback(ctx, logger, tx, err)
		}
	}()
	logger.Info("transaction started", "items", order.TotalItems(), "quantity", order.TotalQuantity())

	id, createdAt, err := tx.AllocateOrder(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrAllocationFailure, err)
	}
	if id <= 0 {
		return 0, fmt.Errorf("%w: storage returned id %d", domain.ErrAllocationFailure, id)
	}
	span.AddEvent("order allocated", trace.WithAttributes(attribute.Int64("order.id", id)))

	if err = s.verifyStock(ctx, logger, tx, order.Items); err != nil {
		return 0, err
	}
	span.AddEvent("stock verified")

	if err = s.deductStock(ctx, logger, tx, order.Items); err != nil {
		return 0, err
	}
	span.AddEvent("stock deducted")

	if err = s.insertItems(ctx, logger, tx, id, order.Items); err != nil {
		return 0, err
	}
	span.AddEvent("items inserted")

	if err = tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit order %d: %w", id, err)
	}

	order.AssignID(id, createdAt)
	logger.Info("order committed", "order_id", id)
	return id, nil
}

// verifyStock reads every product before anything is mutated. Quantities for a
// product listed more than once are summed.
func (s *OrderService) verifyStock(ctx context.Context, logger *slog.Logger, tx port.OrderTx, items []domain.OrderItem) error {
	requested := make(map[int64]int, len(items))
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return err
		}

		product, err := tx.GetProduct(ctx, item.ProductID)
		if err != nil {
			return fmt.Errorf("check stock for product %d: %w", item.ProductID, err)
		}
		if product == nil {
			return &domain.ProductNotFoundError{ProductID: item.ProductID}
		}

		want := requested[item.ProductID] + item.Quantity
		if want < item.Quantity {
			want = math.MaxInt
		}
		requested[item.ProductID] = want
		logger.Debug("stock checked",
			"product_id", product.ID, "name", product.Name,
			"stock", product.Stock, "requested", want)

		if !product.CanFulfil(want) {
			return &domain.InsufficientStockError{
				ProductID: item.ProductID,
				Available: product.Stock,
				Requested: want,
			}
		}
	}
	return nil
}

func (s *OrderService) deductStock(ctx context.Context, logger *slog.Logger, tx port.OrderTx, items []domain.OrderItem) error {
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return err
		}

		ok, err := tx.DeductStock(ctx, item.ProductID, item.Quantity)
		if err != nil {
			return fmt.Errorf("deduct stock for product %d: %w", item.ProductID, err)
		}
		if !ok {
			return &domain.DeductionError{ProductID: item.ProductID}
		}
		logger.Debug("stock deducted", "product_id", item.ProductID, "quantity", item.Quantity)
	}
	return nil
}

func (s *OrderService) insertItems(ctx context.Context, logger *slog.Logger, tx port.OrderTx, orderID int64, items []domain.OrderItem) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	batch := make([]domain.OrderItem, len(items))
	for i, item := range items {
		item.OrderID = orderID
		batch[i] = item
	}

	inserted, err := tx.InsertItems(ctx, batch)
	if err != nil {
		return fmt.Errorf("insert items for order %d: %w", orderID, err)
	}
	if inserted != len(batch) {
		return &domain.InsertError{Expected: len(batch), Inserted: inserted}
	}
	logger.Debug("items inserted", "order_id", orderID, "count", inserted)
	return nil
}

// rollback never replaces cause; its own failure is only logged and counted.
func (s *OrderService) rollback(ctx context.Context, logger *slog.Logger, tx port.OrderTx, cause error) {
	ctx = context.WithoutCancel(ctx)
	if err := tx.Rollback(ctx); err != nil {
		rbErr := &domain.RollbackError{Cause: cause, Err: err}
		s.metrics.rollbackFailures.Add(ctx, 1)
		trace.SpanFromContext(ctx).RecordError(rbErr)
		logger.Error("rollback failed", "error", rbErr)
		return
	}
	logger.Warn("transaction rolled back", "reason", cause.Error())
}

// PlaceOrder is CreateOrder guarded by a request id. A request id that is
// already held fails with ErrDuplicateRequest; the id is released again when
// the order could not be created.
func (s *OrderService) PlaceOrder(ctx context.Context, requestID string, order *domain.Order) (int64, error) {
	if s.cache == nil || requestID == "" {
		return s.CreateOrder(ctx, order)
	}

	key := idempotencyKeyPrefix + requestID
	ok, err := s.cache.SetIdempotency(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("idempotency check failed: %w", err)
	}
	if !ok {
		return 0, domain.ErrDuplicateRequest
	}

	id, err := s.CreateOrder(ctx, order)
	if err != nil {
		if relErr := s.cache.ReleaseIdempotency(context.WithoutCancel(ctx), key); relErr != nil {
			s.logger.Warn("release idempotency key failed", "request_id", requestID, "error", relErr)
		}
		return 0, err
	}
	return id, nil
}

func (s *OrderService) GetProduct(ctx context.Context, productID int64) (*domain.Product, error) {
	product, err := s.db.GetProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("get product %d: %w", productID, err)
	}
	if product == nil {
		return nil, &domain.ProductNotFoundError{ProductID: productID}
	}
	return product, nil
}

func (s *OrderService) ListStock(ctx context.Context) ([]domain.Product, error) {
	products, err := s.db.ListStock(ctx)
	if err != nil {
		return nil, fmt.Errorf("list stock: %w", err)
	}
	return products, nil
}

// Ping reports whether the store is reachable.
func (s *OrderService) Ping(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrConnectionFailure, err)
	}
	return nil
}
