/*
errors.go - Centralized error types for the stock-and-sale core

PURPOSE:
  All error types in one place for consistency and discoverability.
  The pos package and the HTTP layer classify failures with the helpers
  at the bottom of this file.

ERROR CATEGORIES:
  1. Stock errors - Insufficient stock, invalid quantities
  2. Catalog errors - Unknown products
  3. Sequence errors - Daily sale numbers exhausted
  4. Store errors - Persistence failures

USAGE:

    var short *ledger.InsufficientStockError
    if errors.As(err, &short) {
        log.Warn("short", zap.Int64("product", int64(short.ProductID)))
    }

SEE ALSO:
  - ledger.go: Raises stock errors
  - pos/service.go: Maps errors to sale failure kinds
*/
package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInsufficientStock is returned when the on-hand quantity of a product
	// cannot cover a requested quantity.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrUnknownProduct is returned when a referenced product doesn't exist.
	ErrUnknownProduct = errors.New("unknown product")

	// ErrInvalidQuantity is returned when a relative stock movement carries a
	// negative quantity.
	ErrInvalidQuantity = errors.New("invalid quantity")

	// ErrInvalidRequest is returned when a sale request is malformed.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrSequenceExhausted is returned when a day already holds 9999 sales.
	ErrSequenceExhausted = errors.New("daily sale sequence exhausted")

	// ErrSaleNotFound is returned when a sale id has no record.
	ErrSaleNotFound = errors.New("sale not found")

	// ErrPersistence is returned when the backing store fails.
	ErrPersistence = errors.New("persistence failure")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientStockError names the product that could not be covered.
type InsufficientStockError struct {
	ProductID   ProductID
	ProductName string
	Available   decimal.Decimal
	Requested   decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	name := e.ProductName
	if name == "" {
		name = fmt.Sprintf("product %d", e.ProductID)
	}
	return fmt.Sprintf("insufficient stock for %s: available %s, requested %s",
		name, e.Available.String(), e.Requested.String())
}

func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}

// PersistenceError wraps a store failure with the operation that failed.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure in %s: %v", e.Op, e.Err)
}

// Is lets callers match both ErrPersistence and the wrapped cause.
func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Persist wraps err as a PersistenceError unless it is nil or already
// classified by this package.
func Persist(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsClientError(err) || IsNotFound(err) || errors.Is(err, ErrPersistence) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrPersistence)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrInvalidQuantity) ||
		errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrSequenceExhausted)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrUnknownProduct) ||
		errors.Is(err, ErrSaleNotFound)
}
