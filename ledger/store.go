/*
store.go - Persistence interfaces for stock, catalog and sales

PURPOSE:
  Defines the interface between the domain logic and the database.
  Different implementations can use SQLite or in-memory storage.

KEY INTERFACES:
  StockStore:   Stock levels + append-only movement log
  CatalogStore: Products and recipes
  SaleStore:    Sales and the per-day sale counter
  Store:        All of the above
  TxStore:      Store + atomic multi-table writes

APPEND-ONLY CONTRACT:
  Movements and sales have no Update or Delete. Stock levels are the only
  mutable rows, and only the Ledger writes their quantity.

ATOMICITY:
  A sale writes one sale row, one or more movements, the matching level
  updates and a counter bump. WithTx makes all of it visible together or
  none of it.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite
  - ledger/store/memory.go: In-memory for testing

SEE ALSO:
  - ledger.go: Higher-level interface using StockStore
  - pos/service.go: Runs a whole sale inside WithTx
*/
package ledger

import (
	"context"
	"time"
)

// =============================================================================
// STOCK STORE - Levels and movements
// =============================================================================

type StockStore interface {
	// GetLevel returns nil, nil when the product has no stock row yet.
	GetLevel(ctx context.Context, productID ProductID) (*StockLevel, error)

	// PutLevel inserts or replaces the level row.
	PutLevel(ctx context.Context, level StockLevel) error

	// ListLevels returns every level ordered by product id.
	ListLevels(ctx context.Context) ([]StockLevel, error)

	// AppendMovement persists a movement. This is the ONLY write to the log.
	AppendMovement(ctx context.Context, m StockMovement) error

	// Movements returns a product's movements in application order.
	Movements(ctx context.Context, productID ProductID) ([]StockMovement, error)
}

// =============================================================================
// CATALOG STORE - Products and recipes
// =============================================================================

type CatalogStore interface {
	// GetProduct returns ErrUnknownProduct when the id is not in the catalog.
	GetProduct(ctx context.Context, id ProductID) (*Product, error)
	GetProductByBarcode(ctx context.Context, barcode string) (*Product, error)

	// SaveProduct inserts or replaces. A zero ID asks the store to assign one,
	// which is written back into p.
	SaveProduct(ctx context.Context, p *Product) error
	ListProducts(ctx context.Context) ([]Product, error)

	SaveRecipe(ctx context.Context, r Recipe) error
	RecipesFor(ctx context.Context, productID ProductID) ([]Recipe, error)
}

// =============================================================================
// SALE STORE - Sales and daily counter
// =============================================================================

type SaleStore interface {
	// NextSaleSeq increments and returns the counter for day (YYYYMMDD).
	// The bump is part of the surrounding transaction.
	NextSaleSeq(ctx context.Context, day string) (int, error)

	// InsertSale assigns s.ID and persists the sale with its items.
	InsertSale(ctx context.Context, s *Sale) error

	// GetSale returns ErrSaleNotFound when the id has no record.
	GetSale(ctx context.Context, id SaleID) (*Sale, error)

	// SalesBetween returns sales with from <= SaleDate < to, newest first.
	SalesBetween(ctx context.Context, from, to time.Time) ([]Sale, error)
}

// =============================================================================
// COMBINED + TRANSACTIONAL STORE
// =============================================================================

type Store interface {
	StockStore
	CatalogStore
	SaleStore
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// Resetter is implemented by stores that can wipe all data. Used by demo
// scenario loading.
type Resetter interface {
	Reset(ctx context.Context) error
}
