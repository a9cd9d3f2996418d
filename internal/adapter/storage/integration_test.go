package storage

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"

	"github.com/rl1809/order-placement/internal/core/domain"
	"github.com/rl1809/order-placement/internal/core/service"
	"github.com/rl1809/order-placement/internal/testutil"
)

const requestKeyPrefix = "order:request:"

func TestIntegration_FullOrderFlow(t *testing.T) {
	pool := testutil.NewTestPool(t)
	rdb := testutil.NewTestRedis(t)
	ctx := context.Background()

	initialStock := 10
	testutil.ResetPostgres(t, ctx, pool, domain.Product{ID: 1, Name: "Laptop", Stock: initialStock})

	svc := service.NewOrderService(NewPostgresAdapter(pool), service.WithCache(NewRedisAdapter(rdb)))

	var successCount atomic.Int32
	var wg sync.WaitGroup
	totalRequests := 20

	requestIDs := make([]string, totalRequests)
	keys := make([]string, totalRequests)
	for i := range requestIDs {
		requestIDs[i] = uuid.New().String()
		keys[i] = requestKeyPrefix + requestIDs[i]
	}
	defer rdb.Del(ctx, keys...)

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(requestID string) {
			defer wg.Done()

			order := domain.NewOrder()
			order.AddItem(1, 1)
			if _, err := svc.PlaceOrder(ctx, requestID, order); err == nil {
				successCount.Add(1)
			}
		}(requestIDs[i])
	}
	wg.Wait()

	if successCount.Load() != int32(initialStock) {
		t.Errorf("expected %d successful orders, got %d", initialStock, successCount.Load())
	}
	if stock := pgStock(t, pool, 1); stock != 0 {
		t.Errorf("expected stock 0, got %d", stock)
	}
	if n := pgCount(t, pool, `SELECT COUNT(*) FROM orders`); n != initialStock {
		t.Errorf("expected %d orders, got %d", initialStock, n)
	}
}

func TestIntegration_FailedOrderReleasesRequestID(t *testing.T) {
	pool := testutil.NewTestPool(t)
	rdb := testutil.NewTestRedis(t)
	ctx := context.Background()
	testutil.ResetPostgres(t, ctx, pool, demoProducts...)

	svc := service.NewOrderService(NewPostgresAdapter(pool), service.WithCache(NewRedisAdapter(rdb)))

	requestID := uuid.New().String()
	defer rdb.Del(ctx, requestKeyPrefix+requestID)

	order := domain.NewOrder()
	order.AddItem(3, 5)
	order.AddItem(5, 20)

	for attempt := 0; attempt < 2; attempt++ {
		_, err := svc.PlaceOrder(ctx, requestID, order)
		if !errors.Is(err, domain.ErrInsufficientStock) {
			t.Fatalf("attempt %d: expected insufficient stock, got: %v", attempt, err)
		}
	}

	if stock := pgStock(t, pool, 3); stock != 15 {
		t.Errorf("expected stock 15 after rollback, got %d", stock)
	}
	if n, _ := rdb.Exists(ctx, requestKeyPrefix+requestID).Result(); n != 0 {
		t.Errorf("expected request id to be released")
	}
}

func TestIntegration_IdempotencyPreventsDoubleOrder(t *testing.T) {
	pool := testutil.NewTestPool(t)
	rdb := testutil.NewTestRedis(t)
	ctx := context.Background()
	testutil.ResetPostgres(t, ctx, pool, demoProducts...)

	svc := service.NewOrderService(NewPostgresAdapter(pool), service.WithCache(NewRedisAdapter(rdb)))

	requestID := "same-request-id-" + uuid.New().String()
	defer rdb.Del(ctx, requestKeyPrefix+requestID)

	newOrder := func() *domain.Order {
		order := domain.NewOrder()
		order.AddItem(1, 1)
		return order
	}

	if _, err := svc.PlaceOrder(ctx, requestID, newOrder()); err != nil {
		t.Fatalf("first order failed: %v", err)
	}

	_, err := svc.PlaceOrder(ctx, requestID, newOrder())
	if !errors.Is(err, domain.ErrDuplicateRequest) {
		t.Errorf("expected ErrDuplicateRequest, got: %v", err)
	}

	if stock := pgStock(t, pool, 1); stock != 9 {
		t.Errorf("expected stock 9, got %d", stock)
	}
}
