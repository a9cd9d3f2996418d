package rpc

type OrderItem struct {
	ProductID int64 `json:"product_id"`
	Quantity  int32 `json:"quantity"`
}

type CreateOrderRequest struct {
	RequestID string      `json:"request_id,omitempty"`
	Items     []OrderItem `json:"items"`
}

func (r *CreateOrderRequest) GetRequestID() string {
	if r == nil {
		return ""
	}
	return r.RequestID
}

func (r *CreateOrderRequest) GetItems() []OrderItem {
	if r == nil {
		return nil
	}
	return r.Items
}

type CreateOrderResponse struct {
	OrderID int64 `json:"order_id"`
}

type ListStockRequest struct{}

type Product struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Stock int64  `json:"stock"`
}

type ListStockResponse struct {
	Products []Product `json:"products"`
}
