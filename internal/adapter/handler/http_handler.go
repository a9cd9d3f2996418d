package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/rl1809/order-placement/internal/core/domain"
	"github.com/rl1809/order-placement/internal/core/service"
)

type HTTPHandler struct {
	orderService *service.OrderService
}

type OrderItemRequest struct {
	ProductID int64 `json:"product_id" binding:"required"`
	Quantity  int   `json:"quantity"`
}

type CreateOrderHTTPRequest struct {
	RequestID string             `json:"request_id"`
	Items     []OrderItemRequest `json:"items" binding:"required,dive"`
}

type CreateOrderHTTPResponse struct {
	OrderID int64 `json:"order_id"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	ProductID int64  `json:"product_id,omitempty"`
	Available *int   `json:"available,omitempty"`
	Requested *int   `json:"requested,omitempty"`
}

type ProductResponse struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Stock int    `json:"stock"`
}

func NewHTTPHandler(orderService *service.OrderService) *HTTPHandler {
	return &HTTPHandler{orderService: orderService}
}

// NewRouter builds the gin engine serving the order API.
func NewRouter(h *HTTPHandler, serviceName string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), otelgin.Middleware(serviceName))

	r.GET("/health", h.HealthCheck)

	api := r.Group("/api")
	api.POST("/orders", h.CreateOrder)
	api.GET("/products", h.ListProducts)
	api.GET("/products/:id", h.GetProduct)
	return r
}

func (h *HTTPHandler) CreateOrder(c *gin.Context) {
	var req CreateOrderHTTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	order := domain.NewOrder()
	for _, item := range req.Items {
		order.AddItem(item.ProductID, item.Quantity)
	}

	orderID, err := h.orderService.PlaceOrder(c.Request.Context(), req.RequestID, order)
	if err != nil {
		status, body := httpError(err)
		c.JSON(status, body)
		return
	}

	c.JSON(http.StatusCreated, CreateOrderHTTPResponse{OrderID: orderID})
}

func (h *HTTPHandler) ListProducts(c *gin.Context) {
	products, err := h.orderService.ListStock(c.Request.Context())
	if err != nil {
		status, body := httpError(err)
		c.JSON(status, body)
		return
	}

	resp := make([]ProductResponse, 0, len(products))
	for _, p := range products {
		resp = append(resp, toProductResponse(p))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *HTTPHandler) GetProduct(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid product id"})
		return
	}

	product, err := h.orderService.GetProduct(c.Request.Context(), id)
	if err != nil {
		status, body := httpError(err)
		c.JSON(status, body)
		return
	}
	c.JSON(http.StatusOK, toProductResponse(*product))
}

func (h *HTTPHandler) HealthCheck(c *gin.Context) {
	if err := h.orderService.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func toProductResponse(p domain.Product) ProductResponse {
	return ProductResponse{ID: p.ID, Name: p.Name, Stock: p.Stock}
}

func httpError(err error) (int, ErrorResponse) {
	var notFound *domain.ProductNotFoundError
	var stockErr *domain.InsufficientStockError

	switch {
	case errors.Is(err, domain.ErrEmptyOrder), errors.Is(err, domain.ErrInvalidQuantity):
		return http.StatusBadRequest, ErrorResponse{Error: err.Error()}
	case errors.As(err, &notFound):
		return http.StatusNotFound, ErrorResponse{Error: err.Error(), ProductID: notFound.ProductID}
	case errors.Is(err, domain.ErrProductNotFound):
		return http.StatusNotFound, ErrorResponse{Error: err.Error()}
	case errors.As(err, &stockErr):
		return http.StatusConflict, ErrorResponse{
			Error:     err.Error(),
			ProductID: stockErr.ProductID,
			Available: &stockErr.Available,
			Requested: &stockErr.Requested,
		}
	case errors.Is(err, domain.ErrDuplicateRequest):
		return http.StatusConflict, ErrorResponse{Error: "duplicate request"}
	case errors.Is(err, domain.ErrConnectionFailure):
		return http.StatusServiceUnavailable, ErrorResponse{Error: "database unavailable"}
	default:
		return http.StatusInternalServerError, ErrorResponse{Error: "internal error"}
	}
}
