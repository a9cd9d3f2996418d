package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/rl1809/order-placement/internal/adapter/handler"
	"github.com/rl1809/order-placement/internal/adapter/storage"
	"github.com/rl1809/order-placement/internal/clock"
	"github.com/rl1809/order-placement/internal/core/domain"
	"github.com/rl1809/order-placement/internal/core/service"
)

const productID = 1

func main() {
	target := flag.String("target", "", "base URL of a running server; empty runs against an in-memory store")
	initialStock := flag.Int("stock", 20, "stock for the in-memory product")
	totalRequests := flag.Int("requests", 50, "concurrent single-unit orders to send")
	flag.Parse()

	ctx := context.Background()

	var place func(ctx context.Context) error
	var stock func(ctx context.Context) (int, error)

	if *target == "" {
		store := storage.NewMemoryAdapter(clock.NewSystem(), domain.Product{ID: productID, Name: "Laptop", Stock: *initialStock})
		svc := service.NewOrderService(store)
		place = func(ctx context.Context) error {
			order := domain.NewOrder()
			order.AddItem(productID, 1)
			_, err := svc.PlaceOrder(ctx, uuid.NewString(), order)
			return err
		}
		stock = func(ctx context.Context) (int, error) {
			p, err := svc.GetProduct(ctx, productID)
			if err != nil {
				return 0, err
			}
			return p.Stock, nil
		}
	} else {
		client := resty.New().SetBaseURL(*target).SetTimeout(10 * time.Second)
		place = func(ctx context.Context) error {
			resp, err := client.R().
				SetContext(ctx).
				SetBody(handler.CreateOrderHTTPRequest{
					RequestID: uuid.NewString(),
					Items:     []handler.OrderItemRequest{{ProductID: productID, Quantity: 1}},
				}).
				Post("/api/orders")
			if err != nil {
				return err
			}
			if resp.StatusCode() != http.StatusCreated {
				return fmt.Errorf("status %d: %s", resp.StatusCode(), resp.String())
			}
			return nil
		}
		stock = func(ctx context.Context) (int, error) {
			var product handler.ProductResponse
			resp, err := client.R().
				SetContext(ctx).
				SetResult(&product).
				Get(fmt.Sprintf("/api/products/%d", productID))
			if err != nil {
				return 0, err
			}
			if resp.StatusCode() != http.StatusOK {
				return 0, fmt.Errorf("status %d: %s", resp.StatusCode(), resp.String())
			}
			return product.Stock, nil
		}
	}

	before, err := stock(ctx)
	if err != nil {
		log.Fatalf("failed to read initial stock: %v", err)
	}

	// Counters
	var successCount atomic.Int32
	var failCount atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < *totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := place(ctx); err == nil {
				successCount.Add(1)
			} else {
				failCount.Add(1)
			}
		}()
	}

	wg.Wait()
	elapsed := time.Since(start)

	after, err := stock(ctx)
	if err != nil {
		log.Fatalf("failed to read final stock: %v", err)
	}

	success := int(successCount.Load())
	fail := int(failCount.Load())

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", before)
	fmt.Printf("Total Requests:   %d\n", *totalRequests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Failed:           %d\n", fail)
	fmt.Printf("Final Stock:      %d\n", after)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	expected := min(before, *totalRequests)
	if success == expected {
		fmt.Printf("PASS: Exactly %d orders succeeded, %d failed\n", expected, *totalRequests-expected)
	} else {
		fmt.Printf("FAIL: Expected %d successful orders, got %d\n", expected, success)
	}

	if after == before-success && after >= 0 {
		fmt.Println("PASS: Stock matches successful orders")
	} else {
		fmt.Printf("FAIL: Expected stock %d, got %d\n", before-success, after)
	}
}
