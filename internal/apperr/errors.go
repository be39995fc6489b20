package apperr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrOutOfStock         = errors.New("out of stock")
	ErrProductInactive    = errors.New("product inactive")
	ErrEmptyCart          = errors.New("cart is empty")
	ErrCartInactivePruned = errors.New("inactive items were removed from cart")
	ErrNotFound           = errors.New("not found")
	ErrInvalidStatus      = errors.New("invalid status")
	ErrInvalidQuantity    = errors.New("quantity must be greater than zero")
	ErrIllegalTransition  = errors.New("illegal status transition")
	ErrInvalidInput       = errors.New("invalid input")
	// ErrTransient marks lock/transaction failures that are safe to retry.
	ErrTransient = errors.New("transient failure")
)

// StockDetail describes one product that could not satisfy a stock request.
type StockDetail struct {
	ProductID int64 `json:"product_id"`
	Required  int   `json:"required"`
	Available int   `json:"available"`
}

// StockError carries per-product detail for ErrInsufficientStock / ErrOutOfStock.
type StockError struct {
	Kind    error
	Details []StockDetail
}

func (e *StockError) Error() string {
	if len(e.Details) == 0 {
		return e.Kind.Error()
	}
	parts := make([]string, 0, len(e.Details))
	for _, d := range e.Details {
		parts = append(parts, fmt.Sprintf("product %d: required %d, available %d", d.ProductID, d.Required, d.Available))
	}
	return e.Kind.Error() + " (" + strings.Join(parts, "; ") + ")"
}

func (e *StockError) Unwrap() error { return e.Kind }

func Insufficient(details ...StockDetail) error {
	return &StockError{Kind: ErrInsufficientStock, Details: details}
}

func OutOfStock(details ...StockDetail) error {
	return &StockError{Kind: ErrOutOfStock, Details: details}
}

// Code is the stable, machine readable name of an error kind.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInsufficientStock):
		return "INSUFFICIENT_STOCK"
	case errors.Is(err, ErrOutOfStock):
		return "OUT_OF_STOCK"
	case errors.Is(err, ErrProductInactive):
		return "PRODUCT_INACTIVE"
	case errors.Is(err, ErrEmptyCart):
		return "EMPTY_CART"
	case errors.Is(err, ErrCartInactivePruned):
		return "CART_INACTIVE_PRUNED"
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrInvalidStatus):
		return "INVALID_STATUS"
	case errors.Is(err, ErrInvalidQuantity):
		return "INVALID_QUANTITY"
	case errors.Is(err, ErrIllegalTransition):
		return "ILLEGAL_TRANSITION"
	case errors.Is(err, ErrInvalidInput):
		return "INVALID_INPUT"
	case errors.Is(err, ErrTransient):
		return "TRANSIENT"
	default:
		return "INTERNAL"
	}
}
