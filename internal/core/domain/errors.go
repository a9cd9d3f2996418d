package domain

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyOrder        = errors.New("order has no items")
	ErrInvalidQuantity   = errors.New("invalid quantity")
	ErrConnectionFailure = errors.New("storage connection failure")
	ErrAllocationFailure = errors.New("order allocation failed")
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrDeductionFailure  = errors.New("stock deduction failed")
	ErrInsertFailure     = errors.New("order item insert failed")
	ErrRollbackFailure   = errors.New("rollback failed")
	ErrDuplicateRequest  = errors.New("duplicate request")
)

type ProductNotFoundError struct {
	ProductID int64
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %d not found", e.ProductID)
}

func (e *ProductNotFoundError) Is(target error) bool {
	return target == ErrProductNotFound
}

type InsufficientStockError struct {
	ProductID int64
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: available %d, requested %d",
		e.ProductID, e.Available, e.Requested)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// DeductionError means a verified product no longer matched the conditional
// decrement. It points at a concurrent writer or a storage defect.
type DeductionError struct {
	ProductID int64
}

func (e *DeductionError) Error() string {
	return fmt.Sprintf("stock deduction for product %d matched no rows", e.ProductID)
}

func (e *DeductionError) Is(target error) bool {
	return target == ErrDeductionFailure
}

type InsertError struct {
	Expected int
	Inserted int
}

func (e *InsertError) Error() string {
	return fmt.Sprintf("inserted %d of %d order items", e.Inserted, e.Expected)
}

func (e *InsertError) Is(target error) bool {
	return target == ErrInsertFailure
}

// RollbackError wraps a failed rollback together with the error that caused it.
type RollbackError struct {
	Cause error
	Err   error
}

func (e *RollbackError) Error() string {
	return fmt.Sprintf("rollback after %v: %v", e.Cause, e.Err)
}

func (e *RollbackError) Is(target error) bool {
	return target == ErrRollbackFailure
}

func (e *RollbackError) Unwrap() error {
	return e.Err
}
