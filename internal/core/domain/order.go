package domain

import "time"

// Order is a customer request for one or more products. ID stays zero until
// the order has been committed by storage.
type Order struct {
	ID        int64
	CreatedAt time.Time
	Items     []OrderItem
}

// OrderItem is one line of an order. OrderID is filled in while the order is
// being persisted, never by the caller.
type OrderItem struct {
	OrderID   int64
	ProductID int64
	Quantity  int
}

func NewOrder() *Order {
	return &Order{}
}

func (o *Order) AddItem(productID int64, quantity int) {
	o.Items = append(o.Items, OrderItem{
		OrderID:   o.ID,
		ProductID: productID,
		Quantity:  quantity,
	})
}

func (o *Order) TotalItems() int {
	return len(o.Items)
}

func (o *Order) TotalQuantity() int {
	total := 0
	for _, item := range o.Items {
		total += item.Quantity
	}
	return total
}

// Validate checks the request shape before any storage is touched.
func (o *Order) Validate() error {
	if len(o.Items) == 0 {
		return ErrEmptyOrder
	}
	for _, item := range o.Items {
		if item.Quantity <= 0 {
			return ErrInvalidQuantity
		}
	}
	return nil
}

// AssignID stamps the committed identifier onto the order and its items.
func (o *Order) AssignID(id int64, createdAt time.Time) {
	o.ID = id
	o.CreatedAt = createdAt
	for i := range o.Items {
		o.Items[i].OrderID = id
	}
}
