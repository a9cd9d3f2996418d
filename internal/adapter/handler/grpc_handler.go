package handler

import (
	"context"
	"errors"
	"strconv"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rl1809/order-placement/internal/adapter/handler/rpc"
	"github.com/rl1809/order-placement/internal/core/domain"
	"github.com/rl1809/order-placement/internal/core/service"
)

type GRPCHandler struct {
	rpc.UnimplementedOrderServiceServer
	orderService *service.OrderService
}

func NewGRPCHandler(orderService *service.OrderService) *GRPCHandler {
	return &GRPCHandler{orderService: orderService}
}

func (h *GRPCHandler) CreateOrder(ctx context.Context, req *rpc.CreateOrderRequest) (*rpc.CreateOrderResponse, error) {
	order := domain.NewOrder()
	for _, item := range req.GetItems() {
		order.AddItem(item.ProductID, int(item.Quantity))
	}

	orderID, err := h.orderService.PlaceOrder(ctx, req.GetRequestID(), order)
	if err != nil {
		return nil, grpcError(err)
	}
	return &rpc.CreateOrderResponse{OrderID: orderID}, nil
}

func (h *GRPCHandler) ListStock(ctx context.Context, _ *rpc.ListStockRequest) (*rpc.ListStockResponse, error) {
	products, err := h.orderService.ListStock(ctx)
	if err != nil {
		return nil, grpcError(err)
	}

	resp := &rpc.ListStockResponse{Products: make([]rpc.Product, 0, len(products))}
	for _, p := range products {
		resp.Products = append(resp.Products, rpc.Product{ID: p.ID, Name: p.Name, Stock: int64(p.Stock)})
	}
	return resp, nil
}

const (
	errorDomain             = "orderplacement"
	reasonInsufficientStock = "INSUFFICIENT_STOCK"
)

func grpcError(err error) error {
	var stockErr *domain.InsufficientStockError
	if errors.As(err, &stockErr) {
		return insufficientStockStatus(stockErr)
	}

	switch {
	case errors.Is(err, domain.ErrEmptyOrder), errors.Is(err, domain.ErrInvalidQuantity):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrProductNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrInsufficientStock):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, domain.ErrDuplicateRequest):
		return status.Error(codes.AlreadyExists, "duplicate request")
	case errors.Is(err, domain.ErrConnectionFailure):
		return status.Error(codes.Unavailable, "database unavailable")
	default:
		return status.Error(codes.Internal, "internal error")
	}
}

// insufficientStockStatus attaches the failing product and its quantities as
// an ErrorInfo detail so clients need not parse the message.
func insufficientStockStatus(e *domain.InsufficientStockError) error {
	st := status.New(codes.FailedPrecondition, e.Error())
	detailed, err := st.WithDetails(&errdetails.ErrorInfo{
		Reason: reasonInsufficientStock,
		Domain: errorDomain,
		Metadata: map[string]string{
			"product_id": strconv.FormatInt(e.ProductID, 10),
			"available":  strconv.Itoa(e.Available),
			"requested":  strconv.Itoa(e.Requested),
		},
	})
	if err != nil {
		return st.Err()
	}
	return detailed.Err()
}
