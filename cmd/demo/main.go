package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"text/tabwriter"

	"github.com/rl1809/order-placement/internal/bootstrap"
	"github.com/rl1809/order-placement/internal/config"
	"github.com/rl1809/order-placement/internal/core/domain"
	"github.com/rl1809/order-placement/internal/core/service"
	"github.com/rl1809/order-placement/internal/telemetry"
)

type scenario struct {
	title string
	items [][2]int
}

var scenarios = []scenario{
	{title: "CASE 1: order within stock", items: [][2]int{{1, 2}, {2, 5}, {4, 10}}},
	{title: "CASE 2: order exceeding stock (rolled back)", items: [][2]int{{3, 5}, {5, 20}, {7, 10}}},
}

func main() {
	driver := flag.String("driver", config.DriverMemory, "store to run against: memory, postgres or mysql")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg.Driver = *driver
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger := telemetry.NewLogger(os.Stderr, cfg.LogLevel)
	ctx := context.Background()

	db, closeDB, err := bootstrap.OpenStore(ctx, cfg, logger, true)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer closeDB()

	svc := service.NewOrderService(db, service.WithLogger(logger))

	printStock(ctx, svc)
	for _, sc := range scenarios {
		fmt.Printf("\n========== %s ==========\n", sc.title)
		runScenario(ctx, svc, sc)
		printStock(ctx, svc)
	}
}

func runScenario(ctx context.Context, svc *service.OrderService, sc scenario) {
	order := domain.NewOrder()
	for _, item := range sc.items {
		order.AddItem(int64(item[0]), item[1])
		fmt.Printf("  - product %d: %d unit(s)\n", item[0], item[1])
	}

	orderID, err := svc.CreateOrder(ctx, order)
	if err == nil {
		fmt.Printf("SUCCESS: order %d created with %d item(s), %d unit(s) in total\n",
			orderID, order.TotalItems(), order.TotalQuantity())
		return
	}

	var stockErr *domain.InsufficientStockError
	switch {
	case errors.As(err, &stockErr):
		fmt.Printf("FAILED: product %d has %d in stock, %d requested; nothing was written\n",
			stockErr.ProductID, stockErr.Available, stockErr.Requested)
	default:
		fmt.Printf("FAILED: %v\n", err)
	}
}

func printStock(ctx context.Context, svc *service.OrderService) {
	products, err := svc.ListStock(ctx)
	if err != nil {
		fmt.Printf("failed to list stock: %v\n", err)
		return
	}

	fmt.Println("\nCurrent stock:")
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTOCK")
	for _, p := range products {
		fmt.Fprintf(w, "%d\t%s\t%d\n", p.ID, p.Name, p.Stock)
	}
	w.Flush()
}
