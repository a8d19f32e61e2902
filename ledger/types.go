/*
Package ledger provides the transactional stock-and-sale core.

PURPOSE:
  This package owns the authoritative on-hand quantity of every stocked
  product, the append-only movement log that explains every change, the
  recipe lookup used to decompose composite products, and the sale records
  that trigger stock debits. Orchestration of a whole sale lives in the pos
  package; this package provides the pieces it composes.

KEY CONCEPTS IN THIS FILE (types.go):
  - Product: catalog entry (price/cost snapshot source, recipe flag)
  - StockLevel: current quantity + threshold for one product
  - StockMovement: immutable record of one quantity change and its cause
  - Recipe: composite product -> ingredient edge with per-unit quantity
  - Sale / SaleItem: immutable sale history

DESIGN PRINCIPLES:
  1. Immutability: movements and sales are written once, never updated
  2. Precision: quantities and money use decimal.Decimal
  3. Single writer: StockLevel.Quantity changes only through Ledger.Apply
  4. Snapshots: sale lines copy name and unit price at sale time

SEE ALSO:
  - ledger.go: Stock mutation and read operations
  - recipe.go: Ingredient resolution
  - store.go: Persistence interfaces
*/
package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ProductID int64
type SaleID int64
type MovementID string

// =============================================================================
// PRODUCT - Catalog entry
// =============================================================================

// Product is a catalog entry. Once a sale references it, the sale line keeps
// its own copy of Name and Price.
type Product struct {
	ID            ProductID
	Name          string
	Barcode       string
	Unit          string
	Price         decimal.Decimal
	Cost          decimal.Decimal
	IsRecipeBased bool
	HasExpiry     bool
	IsActive      bool
}

// =============================================================================
// STOCK LEVEL - Current on-hand quantity for one product
// =============================================================================

// StockLevel is the single tracked row for a product. Absence of a row means
// zero stock and no threshold.
type StockLevel struct {
	ProductID  ProductID
	Quantity   decimal.Decimal // signed; only Ledger.Apply changes it
	MinStock   decimal.Decimal
	ExpiryDate *time.Time
	BatchNo    string
	UpdatedAt  time.Time
}

// IsLow reports whether the level is at or below its threshold.
func (l StockLevel) IsLow() bool { return l.Quantity.LessThanOrEqual(l.MinStock) }

// =============================================================================
// STOCK MOVEMENT - Append-only audit record
// =============================================================================

type MovementKind string

const (
	MovementIn         MovementKind = "in"         // goods received
	MovementOut        MovementKind = "out"        // direct sale debit
	MovementAdjustment MovementKind = "adjustment" // absolute correction
	MovementRecipeUse  MovementKind = "recipe_use" // ingredient consumed by a composite sale
)

// Valid reports whether k is one of the known movement kinds.
func (k MovementKind) Valid() bool {
	switch k {
	case MovementIn, MovementOut, MovementAdjustment, MovementRecipeUse:
		return true
	}
	return false
}

// StockMovement records one applied change. Delta is the signed change that
// was actually applied, so summing a product's deltas reproduces its level.
type StockMovement struct {
	ID            MovementID
	ProductID     ProductID
	Kind          MovementKind
	Delta         decimal.Decimal
	QuantityAfter decimal.Decimal
	Reference     string
	CreatedAt     time.Time
}

// =============================================================================
// RECIPE - Composite product decomposition
// =============================================================================

// Recipe links a composite product to one ingredient. QuantityNeeded is per
// one unit of the composite.
type Recipe struct {
	ProductID      ProductID
	IngredientID   ProductID
	QuantityNeeded decimal.Decimal
	Unit           string
}

// Ingredient is a resolved recipe line.
type Ingredient struct {
	ProductID ProductID
	PerUnit   decimal.Decimal
}

// =============================================================================
// PAYMENT METHOD
// =============================================================================

type PaymentMethod int

const (
	PaymentCash PaymentMethod = iota
	PaymentCard
	PaymentDigitalWallet
	PaymentBankTransfer
	PaymentCredit
)

var paymentMethodNames = [...]string{"cash", "card", "digital_wallet", "bank_transfer", "credit"}

func (p PaymentMethod) String() string {
	if !p.Valid() {
		return fmt.Sprintf("payment_method(%d)", int(p))
	}
	return paymentMethodNames[p]
}

func (p PaymentMethod) Valid() bool { return p >= PaymentCash && p <= PaymentCredit }

// ParsePaymentMethod accepts the wire name ("digital_wallet") or the
// CamelCase form ("DigitalWallet"), case-insensitively.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	norm := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "_", ""))
	for i, name := range paymentMethodNames {
		if strings.ReplaceAll(name, "_", "") == norm {
			return PaymentMethod(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown payment method %q", ErrInvalidRequest, s)
}

func (p PaymentMethod) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("%w: payment method %d", ErrInvalidRequest, int(p))
	}
	return []byte(p.String()), nil
}

func (p *PaymentMethod) UnmarshalText(b []byte) error {
	m, err := ParsePaymentMethod(string(b))
	if err != nil {
		return err
	}
	*p = m
	return nil
}

// =============================================================================
// SALE - Immutable sale history
// =============================================================================

type Sale struct {
	ID             SaleID
	SaleNo         string
	CustomerID     *int64
	Items          []SaleItem
	TotalAmount    decimal.Decimal
	DiscountAmount decimal.Decimal
	NetAmount      decimal.Decimal
	PaymentMethod  PaymentMethod
	SaleDate       time.Time
	CashierName    string
}

// SaleItem is one priced line. ProductName and UnitPrice are snapshots.
type SaleItem struct {
	ProductID   ProductID
	ProductName string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	TotalAmount decimal.Decimal
}
