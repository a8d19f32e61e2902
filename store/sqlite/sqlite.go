/*
Package sqlite provides a SQLite-backed implementation of ledger.TxStore.

PURPOSE:
  Persists the catalog, stock levels, the movement log, sales and the
  per-day sale counter. In production, the same patterns apply to
  PostgreSQL - only minor SQL dialect differences.

APPEND-ONLY ENFORCEMENT:
  - No UPDATE or DELETE statements on stock_movements, sales, sale_items
  - stock_levels rows are replaced only through the ledger
  - Reset() is the single exception (demo/testing)

KEY TABLES:
  products:         Catalog entries (price/cost as decimal TEXT)
  recipes:          Composite -> ingredient edges
  stock_levels:     One row per tracked product
  stock_movements:  Immutable audit log, ordered by rowid
  sales/sale_items: Immutable sale history
  sale_counters:    Last issued sequence per day (YYYYMMDD)

SALE NUMBERS:
  NextSaleSeq bumps sale_counters with a single upsert ... RETURNING inside
  the caller's transaction. A rolled-back sale rolls its counter back too, so
  the counter always equals the number of committed sales for that day.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety; WithTx holds the write lock for the
  whole unit. The pool is capped at one connection, which also keeps a
  ":memory:" database alive and shared. Operations inside a transaction run
  on the *sql.Tx only and never touch the mutex or the pool.

USAGE:
  store, err := sqlite.New("./data/shop.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := pos.NewService(store, pos.Options{})

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - ledger/store.go: Interface definitions
  - ledger/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/copyskillman/shopledger/ledger"
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store implements ledger.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS products (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		barcode TEXT,
		unit TEXT NOT NULL DEFAULT '',
		price TEXT NOT NULL DEFAULT '0',
		cost TEXT NOT NULL DEFAULT '0',
		is_recipe_based INTEGER NOT NULL DEFAULT 0,
		has_expiry INTEGER NOT NULL DEFAULT 0,
		is_active INTEGER NOT NULL DEFAULT 1
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_products_barcode
		ON products(barcode) WHERE barcode IS NOT NULL;

	CREATE TABLE IF NOT EXISTS recipes (
		product_id INTEGER NOT NULL,
		ingredient_id INTEGER NOT NULL,
		quantity_needed TEXT NOT NULL,
		unit TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (product_id, ingredient_id)
	);

	CREATE TABLE IF NOT EXISTS stock_levels (
		product_id INTEGER PRIMARY KEY,
		quantity TEXT NOT NULL,
		min_stock TEXT NOT NULL DEFAULT '0',
		expiry_date TEXT,
		batch_no TEXT,
		updated_at TEXT NOT NULL
	);

	-- Movements (append-only audit log)
	CREATE TABLE IF NOT EXISTS stock_movements (
		id TEXT PRIMARY KEY,
		product_id INTEGER NOT NULL,
		kind TEXT NOT NULL,
		delta TEXT NOT NULL,
		quantity_after TEXT NOT NULL,
		reference TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_stock_movements_product
		ON stock_movements(product_id);

	CREATE TABLE IF NOT EXISTS sales (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		sale_no TEXT NOT NULL UNIQUE,
		customer_id INTEGER,
		total_amount TEXT NOT NULL,
		discount_amount TEXT NOT NULL,
		net_amount TEXT NOT NULL,
		payment_method TEXT NOT NULL,
		sale_date TEXT NOT NULL,
		cashier_name TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_sales_sale_date ON sales(sale_date);

	CREATE TABLE IF NOT EXISTS sale_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		sale_id INTEGER NOT NULL REFERENCES sales(id),
		product_id INTEGER NOT NULL,
		product_name TEXT NOT NULL,
		quantity TEXT NOT NULL,
		unit_price TEXT NOT NULL,
		total_amount TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sale_items_sale ON sale_items(sale_id);

	-- One row per business day; last_value is the last issued sequence
	CREATE TABLE IF NOT EXISTS sale_counters (
		day TEXT PRIMARY KEY,
		last_value INTEGER NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// QUERIES - Shared by Store and txStore
// =============================================================================

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries implements ledger.Store on a querier without any locking.
type queries struct {
	q querier
}

// --- stock ---

func (qs queries) GetLevel(ctx context.Context, id ledger.ProductID) (*ledger.StockLevel, error) {
	row := qs.q.QueryRowContext(ctx, `
		SELECT product_id, quantity, min_stock, expiry_date, batch_no, updated_at
		FROM stock_levels WHERE product_id = ?
	`, id)
	level, err := scanLevel(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stock level: %w", err)
	}
	return &level, nil
}

func (qs queries) PutLevel(ctx context.Context, level ledger.StockLevel) error {
	var expiry sql.NullString
	if level.ExpiryDate != nil {
		expiry = sql.NullString{String: formatTime(*level.ExpiryDate), Valid: true}
	}
	_, err := qs.q.ExecContext(ctx, `
		INSERT INTO stock_levels (product_id, quantity, min_stock, expiry_date, batch_no, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(product_id) DO UPDATE SET
			quantity = excluded.quantity,
			min_stock = excluded.min_stock,
			expiry_date = excluded.expiry_date,
			batch_no = excluded.batch_no,
			updated_at = excluded.updated_at
	`,
		level.ProductID,
		level.Quantity.String(),
		level.MinStock.String(),
		expiry,
		nullString(level.BatchNo),
		formatTime(level.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to put stock level: %w", err)
	}
	return nil
}

func (qs queries) ListLevels(ctx context.Context) ([]ledger.StockLevel, error) {
	rows, err := qs.q.QueryContext(ctx, `
		SELECT product_id, quantity, min_stock, expiry_date, batch_no, updated_at
		FROM stock_levels ORDER BY product_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list stock levels: %w", err)
	}
	defer rows.Close()

	var levels []ledger.StockLevel
	for rows.Next() {
		level, err := scanLevel(rows)
		if err != nil {
			return nil, err
		}
		levels = append(levels, level)
	}
	return levels, rows.Err()
}

func (qs queries) AppendMovement(ctx context.Context, m ledger.StockMovement) error {
	_, err := qs.q.ExecContext(ctx, `
		INSERT INTO stock_movements (id, product_id, kind, delta, quantity_after, reference, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		string(m.ID),
		m.ProductID,
		string(m.Kind),
		m.Delta.String(),
		m.QuantityAfter.String(),
		nullString(m.Reference),
		formatTime(m.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to append movement: %w", err)
	}
	return nil
}

func (qs queries) Movements(ctx context.Context, id ledger.ProductID) ([]ledger.StockMovement, error) {
	rows, err := qs.q.QueryContext(ctx, `
		SELECT id, product_id, kind, delta, quantity_after, reference, created_at
		FROM stock_movements WHERE product_id = ? ORDER BY rowid
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load movements: %w", err)
	}
	defer rows.Close()

	var result []ledger.StockMovement
	for rows.Next() {
		var (
			m                       ledger.StockMovement
			mid, kind, delta, after string
			reference               sql.NullString
			createdAt               string
		)
		if err := rows.Scan(&mid, &m.ProductID, &kind, &delta, &after, &reference, &createdAt); err != nil {
			return nil, err
		}
		m.ID = ledger.MovementID(mid)
		m.Kind = ledger.MovementKind(kind)
		var dec decimals
		m.Delta = dec.parse("stock_movements.delta", delta)
		m.QuantityAfter = dec.parse("stock_movements.quantity_after", after)
		if dec.err != nil {
			return nil, dec.err
		}
		m.Reference = reference.String
		m.CreatedAt = parseTime(createdAt)
		result = append(result, m)
	}
	return result, rows.Err()
}

// --- catalog ---

const productColumns = `id, name, barcode, unit, price, cost, is_recipe_based, has_expiry, is_active`

func (qs queries) GetProduct(ctx context.Context, id ledger.ProductID) (*ledger.Product, error) {
	row := qs.q.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ?`, id)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ledger.ErrUnknownProduct, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return &p, nil
}

func (qs queries) GetProductByBarcode(ctx context.Context, barcode string) (*ledger.Product, error) {
	row := qs.q.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE barcode = ?`, barcode)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: barcode %q", ledger.ErrUnknownProduct, barcode)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return &p, nil
}

func (qs queries) SaveProduct(ctx context.Context, p *ledger.Product) error {
	args := []any{
		p.Name,
		nullString(p.Barcode),
		p.Unit,
		p.Price.String(),
		p.Cost.String(),
		p.IsRecipeBased,
		p.HasExpiry,
		p.IsActive,
	}

	if p.ID == 0 {
		res, err := qs.q.ExecContext(ctx, `
			INSERT INTO products (name, barcode, unit, price, cost, is_recipe_based, has_expiry, is_active)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, args...)
		if err != nil {
			return fmt.Errorf("failed to save product: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to save product: %w", err)
		}
		p.ID = ledger.ProductID(id)
		return nil
	}

	_, err := qs.q.ExecContext(ctx, `
		INSERT INTO products (id, name, barcode, unit, price, cost, is_recipe_based, has_expiry, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			barcode = excluded.barcode,
			unit = excluded.unit,
			price = excluded.price,
			cost = excluded.cost,
			is_recipe_based = excluded.is_recipe_based,
			has_expiry = excluded.has_expiry,
			is_active = excluded.is_active
	`, append([]any{p.ID}, args...)...)
	if err != nil {
		return fmt.Errorf("failed to save product: %w", err)
	}
	return nil
}

func (qs queries) ListProducts(ctx context.Context) ([]ledger.Product, error) {
	rows, err := qs.q.QueryContext(ctx, `SELECT `+productColumns+` FROM products ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var products []ledger.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (qs queries) SaveRecipe(ctx context.Context, r ledger.Recipe) error {
	_, err := qs.q.ExecContext(ctx, `
		INSERT INTO recipes (product_id, ingredient_id, quantity_needed, unit)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(product_id, ingredient_id) DO UPDATE SET
			quantity_needed = excluded.quantity_needed,
			unit = excluded.unit
	`, r.ProductID, r.IngredientID, r.QuantityNeeded.String(), r.Unit)
	if err != nil {
		return fmt.Errorf("failed to save recipe: %w", err)
	}
	return nil
}

func (qs queries) RecipesFor(ctx context.Context, id ledger.ProductID) ([]ledger.Recipe, error) {
	rows, err := qs.q.QueryContext(ctx, `
		SELECT product_id, ingredient_id, quantity_needed, unit
		FROM recipes WHERE product_id = ? ORDER BY ingredient_id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load recipes: %w", err)
	}
	defer rows.Close()

	var recipes []ledger.Recipe
	for rows.Next() {
		var (
			r   ledger.Recipe
			qty string
		)
		if err := rows.Scan(&r.ProductID, &r.IngredientID, &qty, &r.Unit); err != nil {
			return nil, err
		}
		var dec decimals
		r.QuantityNeeded = dec.parse("recipes.quantity_needed", qty)
		if dec.err != nil {
			return nil, dec.err
		}
		recipes = append(recipes, r)
	}
	return recipes, rows.Err()
}

// --- sales ---

func (qs queries) NextSaleSeq(ctx context.Context, day string) (int, error) {
	var next int
	err := qs.q.QueryRowContext(ctx, `
		INSERT INTO sale_counters (day, last_value) VALUES (?, 1)
		ON CONFLICT(day) DO UPDATE SET last_value = last_value + 1
		RETURNING last_value
	`, day).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("failed to bump sale counter: %w", err)
	}
	return next, nil
}

// InsertSale writes the sale and its items. Callers outside a transaction go
// through Store.InsertSale, which opens one.
func (qs queries) InsertSale(ctx context.Context, sale *ledger.Sale) error {
	var customer sql.NullInt64
	if sale.CustomerID != nil {
		customer = sql.NullInt64{Int64: *sale.CustomerID, Valid: true}
	}

	res, err := qs.q.ExecContext(ctx, `
		INSERT INTO sales (sale_no, customer_id, total_amount, discount_amount, net_amount,
			payment_method, sale_date, cashier_name)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		sale.SaleNo,
		customer,
		sale.TotalAmount.String(),
		sale.DiscountAmount.String(),
		sale.NetAmount.String(),
		sale.PaymentMethod.String(),
		formatTime(sale.SaleDate),
		nullString(sale.CashierName),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("sale number %s already used: %w", sale.SaleNo, err)
		}
		return fmt.Errorf("failed to insert sale: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to insert sale: %w", err)
	}

	for _, item := range sale.Items {
		_, err := qs.q.ExecContext(ctx, `
			INSERT INTO sale_items (sale_id, product_id, product_name, quantity, unit_price, total_amount)
			VALUES (?, ?, ?, ?, ?, ?)
		`,
			id,
			item.ProductID,
			item.ProductName,
			item.Quantity.String(),
			item.UnitPrice.String(),
			item.TotalAmount.String(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert sale item: %w", err)
		}
	}

	sale.ID = ledger.SaleID(id)
	return nil
}

const saleColumns = `id, sale_no, customer_id, total_amount, discount_amount, net_amount, payment_method, sale_date, cashier_name`

func (qs queries) GetSale(ctx context.Context, id ledger.SaleID) (*ledger.Sale, error) {
	row := qs.q.QueryRowContext(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = ?`, id)
	sale, err := scanSale(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ledger.ErrSaleNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sale: %w", err)
	}
	if sale.Items, err = qs.saleItems(ctx, sale.ID); err != nil {
		return nil, err
	}
	return &sale, nil
}

func (qs queries) SalesBetween(ctx context.Context, from, to time.Time) ([]ledger.Sale, error) {
	rows, err := qs.q.QueryContext(ctx, `
		SELECT `+saleColumns+` FROM sales
		WHERE sale_date >= ? AND sale_date < ?
		ORDER BY sale_date DESC, id DESC
	`, formatTime(from), formatTime(to))
	if err != nil {
		return nil, fmt.Errorf("failed to list sales: %w", err)
	}

	var sales []ledger.Sale
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		sales = append(sales, sale)
	}
	err = rows.Err()
	// The single pooled connection must be released before loading items.
	rows.Close()
	if err != nil {
		return nil, err
	}

	for i := range sales {
		if sales[i].Items, err = qs.saleItems(ctx, sales[i].ID); err != nil {
			return nil, err
		}
	}
	return sales, nil
}

func (qs queries) saleItems(ctx context.Context, id ledger.SaleID) ([]ledger.SaleItem, error) {
	rows, err := qs.q.QueryContext(ctx, `
		SELECT product_id, product_name, quantity, unit_price, total_amount
		FROM sale_items WHERE sale_id = ? ORDER BY id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load sale items: %w", err)
	}
	defer rows.Close()

	var items []ledger.SaleItem
	for rows.Next() {
		var (
			item               ledger.SaleItem
			qty, price, amount string
		)
		if err := rows.Scan(&item.ProductID, &item.ProductName, &qty, &price, &amount); err != nil {
			return nil, err
		}
		var dec decimals
		item.Quantity = dec.parse("sale_items.quantity", qty)
		item.UnitPrice = dec.parse("sale_items.unit_price", price)
		item.TotalAmount = dec.parse("sale_items.total_amount", amount)
		if dec.err != nil {
			return nil, dec.err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// =============================================================================
// STORE - Locked access through the pool
// =============================================================================

func (s *Store) reader() queries { return queries{q: s.db} }

func (s *Store) GetLevel(ctx context.Context, id ledger.ProductID) (*ledger.StockLevel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reader().GetLevel(ctx, id)
}

func (s *Store) PutLevel(ctx context.Context, level ledger.StockLevel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reader().PutLevel(ctx, level)
}

func (s *Store) ListLevels(ctx context.Context) ([]ledger.StockLevel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reader().ListLevels(ctx)
}

func (s *Store) AppendMovement(ctx context.Context, m ledger.StockMovement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reader().AppendMovement(ctx, m)
}

func (s *Store) Movements(ctx context.Context, id ledger.ProductID) ([]ledger.StockMovement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reader().Movements(ctx, id)
}

func (s *Store) GetProduct(ctx context.Context, id ledger.ProductID) (*ledger.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reader().GetProduct(ctx, id)
}

func (s *Store) GetProductByBarcode(ctx context.Context, barcode string) (*ledger.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reader().GetProductByBarcode(ctx, barcode)
}

func (s *Store) SaveProduct(ctx context.Context, p *ledger.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reader().SaveProduct(ctx, p)
}

func (s *Store) ListProducts(ctx context.Context) ([]ledger.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reader().ListProducts(ctx)
}

func (s *Store) SaveRecipe(ctx context.Context, r ledger.Recipe) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reader().SaveRecipe(ctx, r)
}

func (s *Store) RecipesFor(ctx context.Context, id ledger.ProductID) ([]ledger.Recipe, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reader().RecipesFor(ctx, id)
}

func (s *Store) NextSaleSeq(ctx context.Context, day string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reader().NextSaleSeq(ctx, day)
}

// InsertSale adds a sale and its items atomically.
func (s *Store) InsertSale(ctx context.Context, sale *ledger.Sale) error {
	return s.WithTx(ctx, func(tx ledger.Store) error {
		return tx.InsertSale(ctx, sale)
	})
}

func (s *Store) GetSale(ctx context.Context, id ledger.SaleID) (*ledger.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reader().GetSale(ctx, id)
}

func (s *Store) SalesBetween(ctx context.Context, from, to time.Time) ([]ledger.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reader().SalesBetween(ctx, from, to)
}

// =============================================================================
// TRANSACTIONAL STORE (ledger.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store ledger.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	txStore := &txStore{queries: queries{q: sqlTx}}
	if err := fn(txStore); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// txStore is the Store handed to WithTx callbacks. Every call runs on the
// open *sql.Tx.
type txStore struct {
	queries
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"sale_items", "sales", "sale_counters", "stock_movements", "stock_levels", "recipes", "products", "sqlite_sequence"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// Helper functions

// decimals parses TEXT decimal columns and keeps the first failure.
type decimals struct {
	err error
}

func (d *decimals) parse(column, s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil && d.err == nil {
		d.err = fmt.Errorf("corrupt decimal in %s: %w", column, err)
	}
	return v
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLevel(row scanner) (ledger.StockLevel, error) {
	var (
		level         ledger.StockLevel
		qty, minStock string
		expiry, batch sql.NullString
		updatedAt     string
	)
	if err := row.Scan(&level.ProductID, &qty, &minStock, &expiry, &batch, &updatedAt); err != nil {
		return ledger.StockLevel{}, err
	}
	var dec decimals
	level.Quantity = dec.parse("stock_levels.quantity", qty)
	level.MinStock = dec.parse("stock_levels.min_stock", minStock)
	if dec.err != nil {
		return ledger.StockLevel{}, dec.err
	}
	if expiry.Valid {
		t := parseTime(expiry.String)
		level.ExpiryDate = &t
	}
	level.BatchNo = batch.String
	level.UpdatedAt = parseTime(updatedAt)
	return level, nil
}

func scanProduct(row scanner) (ledger.Product, error) {
	var (
		p           ledger.Product
		barcode     sql.NullString
		price, cost string
	)
	if err := row.Scan(&p.ID, &p.Name, &barcode, &p.Unit, &price, &cost, &p.IsRecipeBased, &p.HasExpiry, &p.IsActive); err != nil {
		return ledger.Product{}, err
	}
	p.Barcode = barcode.String
	var dec decimals
	p.Price = dec.parse("products.price", price)
	p.Cost = dec.parse("products.cost", cost)
	if dec.err != nil {
		return ledger.Product{}, dec.err
	}
	return p, nil
}

func scanSale(row scanner) (ledger.Sale, error) {
	var (
		sale                 ledger.Sale
		customer             sql.NullInt64
		total, discount, net string
		method, saleDate     string
		cashier              sql.NullString
	)
	if err := row.Scan(&sale.ID, &sale.SaleNo, &customer, &total, &discount, &net, &method, &saleDate, &cashier); err != nil {
		return ledger.Sale{}, err
	}
	if customer.Valid {
		c := customer.Int64
		sale.CustomerID = &c
	}
	var dec decimals
	sale.TotalAmount = dec.parse("sales.total_amount", total)
	sale.DiscountAmount = dec.parse("sales.discount_amount", discount)
	sale.NetAmount = dec.parse("sales.net_amount", net)
	if dec.err != nil {
		return ledger.Sale{}, dec.err
	}
	pm, err := ledger.ParsePaymentMethod(method)
	if err != nil {
		return ledger.Sale{}, err
	}
	sale.PaymentMethod = pm
	sale.SaleDate = parseTime(saleDate)
	sale.CashierName = cashier.String
	return sale, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339, s)
	}
	return t
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}

var (
	_ ledger.TxStore  = (*Store)(nil)
	_ ledger.Resetter = (*Store)(nil)
	_ ledger.Store    = (*txStore)(nil)
)
