package domain

import "time"

type Product struct {
	ID        int64
	Name      string
	Stock     int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CanFulfil reports whether the current stock covers quantity.
func (p Product) CanFulfil(quantity int) bool {
	return p.Stock >= quantity
}
