// Package store provides an in-memory ledger.TxStore.
package store

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/copyskillman/shopledger/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps all data in maps guarded by one mutex. Every public method
// locks; the unlocked versions live on memoryData so the transaction view can
// reuse them while WithTx holds the lock.
type Memory struct {
	mu sync.RWMutex
	memoryData
}

type memoryData struct {
	products      map[ledger.ProductID]ledger.Product
	recipes       map[ledger.ProductID][]ledger.Recipe
	levels        map[ledger.ProductID]ledger.StockLevel
	movements     map[ledger.ProductID][]ledger.StockMovement
	sales         []ledger.Sale
	counters      map[string]int
	nextProductID ledger.ProductID
	nextSaleID    ledger.SaleID
}

func newMemoryData() memoryData {
	return memoryData{
		products:      make(map[ledger.ProductID]ledger.Product),
		recipes:       make(map[ledger.ProductID][]ledger.Recipe),
		levels:        make(map[ledger.ProductID]ledger.StockLevel),
		movements:     make(map[ledger.ProductID][]ledger.StockMovement),
		counters:      make(map[string]int),
		nextProductID: 1,
		nextSaleID:    1,
	}
}

func NewMemory() *Memory {
	return &Memory{memoryData: newMemoryData()}
}

// Reset drops all data.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.memoryData = newMemoryData()
	return nil
}

// --- stock ---

func (m *Memory) GetLevel(_ context.Context, id ledger.ProductID) (*ledger.StockLevel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getLevel(id), nil
}

func (m *Memory) PutLevel(_ context.Context, level ledger.StockLevel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putLevel(level)
	return nil
}

func (m *Memory) ListLevels(_ context.Context) ([]ledger.StockLevel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listLevels(), nil
}

func (m *Memory) AppendMovement(_ context.Context, mv ledger.StockMovement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendMovement(mv)
	return nil
}

func (m *Memory) Movements(_ context.Context, id ledger.ProductID) ([]ledger.StockMovement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.movements[id]), nil
}

// --- catalog ---

func (m *Memory) GetProduct(_ context.Context, id ledger.ProductID) (*ledger.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getProduct(id)
}

func (m *Memory) GetProductByBarcode(_ context.Context, barcode string) (*ledger.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getProductByBarcode(barcode)
}

func (m *Memory) SaveProduct(_ context.Context, p *ledger.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveProduct(p)
}

func (m *Memory) ListProducts(_ context.Context) ([]ledger.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listProducts(), nil
}

func (m *Memory) SaveRecipe(_ context.Context, r ledger.Recipe) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveRecipe(r)
	return nil
}

func (m *Memory) RecipesFor(_ context.Context, id ledger.ProductID) ([]ledger.Recipe, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.recipes[id]), nil
}

// --- sales ---

func (m *Memory) NextSaleSeq(_ context.Context, day string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nextSaleSeq(day), nil
}

func (m *Memory) InsertSale(_ context.Context, s *ledger.Sale) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertSale(s)
}

func (m *Memory) GetSale(_ context.Context, id ledger.SaleID) (*ledger.Sale, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getSale(id)
}

func (m *Memory) SalesBetween(_ context.Context, from, to time.Time) ([]ledger.Sale, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.salesBetween(from, to), nil
}

// =============================================================================
// UNLOCKED OPERATIONS
// =============================================================================

func (d *memoryData) getLevel(id ledger.ProductID) *ledger.StockLevel {
	lv, ok := d.levels[id]
	if !ok {
		return nil
	}
	lv.ExpiryDate = copyTime(lv.ExpiryDate)
	return &lv
}

func (d *memoryData) putLevel(level ledger.StockLevel) {
	level.ExpiryDate = copyTime(level.ExpiryDate)
	d.levels[level.ProductID] = level
}

func (d *memoryData) listLevels() []ledger.StockLevel {
	out := make([]ledger.StockLevel, 0, len(d.levels))
	for _, lv := range d.levels {
		lv.ExpiryDate = copyTime(lv.ExpiryDate)
		out = append(out, lv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out
}

func (d *memoryData) appendMovement(mv ledger.StockMovement) {
	d.movements[mv.ProductID] = append(d.movements[mv.ProductID], mv)
}

func (d *memoryData) getProduct(id ledger.ProductID) (*ledger.Product, error) {
	p, ok := d.products[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ledger.ErrUnknownProduct, id)
	}
	return &p, nil
}

func (d *memoryData) getProductByBarcode(barcode string) (*ledger.Product, error) {
	for _, p := range d.products {
		if p.Barcode != "" && p.Barcode == barcode {
			return &p, nil
		}
	}
	return nil, fmt.Errorf("%w: barcode %q", ledger.ErrUnknownProduct, barcode)
}

func (d *memoryData) saveProduct(p *ledger.Product) error {
	if p.Barcode != "" {
		for _, other := range d.products {
			if other.ID != p.ID && other.Barcode == p.Barcode {
				return fmt.Errorf("barcode %q already used by product %d", p.Barcode, other.ID)
			}
		}
	}
	if p.ID == 0 {
		p.ID = d.nextProductID
	}
	if p.ID >= d.nextProductID {
		d.nextProductID = p.ID + 1
	}
	d.products[p.ID] = *p
	return nil
}

func (d *memoryData) listProducts() []ledger.Product {
	out := make([]ledger.Product, 0, len(d.products))
	for _, p := range d.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// saveRecipe replaces an existing (product, ingredient) edge.
func (d *memoryData) saveRecipe(r ledger.Recipe) {
	rs := d.recipes[r.ProductID]
	for i := range rs {
		if rs[i].IngredientID == r.IngredientID {
			rs[i] = r
			return
		}
	}
	d.recipes[r.ProductID] = append(rs, r)
}

func (d *memoryData) nextSaleSeq(day string) int {
	d.counters[day]++
	return d.counters[day]
}

func (d *memoryData) insertSale(s *ledger.Sale) error {
	for _, existing := range d.sales {
		if existing.SaleNo == s.SaleNo {
			return fmt.Errorf("duplicate sale number %s", s.SaleNo)
		}
	}
	s.ID = d.nextSaleID
	d.nextSaleID++
	cp := *s
	cp.Items = slices.Clone(s.Items)
	d.sales = append(d.sales, cp)
	return nil
}

func (d *memoryData) getSale(id ledger.SaleID) (*ledger.Sale, error) {
	for _, s := range d.sales {
		if s.ID == id {
			s.Items = slices.Clone(s.Items)
			return &s, nil
		}
	}
	return nil, fmt.Errorf("%w: %d", ledger.ErrSaleNotFound, id)
}

func (d *memoryData) salesBetween(from, to time.Time) []ledger.Sale {
	var out []ledger.Sale
	for i := len(d.sales) - 1; i >= 0; i-- {
		s := d.sales[i]
		if !s.SaleDate.Before(from) && s.SaleDate.Before(to) {
			s.Items = slices.Clone(s.Items)
			out = append(out, s)
		}
	}
	return out
}

func (d *memoryData) clone() memoryData {
	cp := memoryData{
		products:      maps.Clone(d.products),
		recipes:       make(map[ledger.ProductID][]ledger.Recipe, len(d.recipes)),
		levels:        maps.Clone(d.levels),
		movements:     make(map[ledger.ProductID][]ledger.StockMovement, len(d.movements)),
		sales:         slices.Clone(d.sales),
		counters:      maps.Clone(d.counters),
		nextProductID: d.nextProductID,
		nextSaleID:    d.nextSaleID,
	}
	for k, v := range d.recipes {
		cp.recipes[k] = slices.Clone(v)
	}
	for k, v := range d.movements {
		cp.movements[k] = slices.Clone(v)
	}
	return cp
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot that is restored when
// fn returns an error or panics.
// Units are serialized on the store mutex.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.memoryData.clone()
	view := &txMemoryView{data: &tm.memoryData}

	committed := false
	defer func() {
		if !committed {
			tm.memoryData = snapshot
		}
	}()

	if err := fn(view); err != nil {
		return err
	}
	committed = true
	return nil
}

// txMemoryView is the Store handed to a WithTx callback. The parent lock is
// already held, so it calls the unlocked operations.
type txMemoryView struct {
	data *memoryData
}

func (tv *txMemoryView) GetLevel(_ context.Context, id ledger.ProductID) (*ledger.StockLevel, error) {
	return tv.data.getLevel(id), nil
}

func (tv *txMemoryView) PutLevel(_ context.Context, level ledger.StockLevel) error {
	tv.data.putLevel(level)
	return nil
}

func (tv *txMemoryView) ListLevels(_ context.Context) ([]ledger.StockLevel, error) {
	return tv.data.listLevels(), nil
}

func (tv *txMemoryView) AppendMovement(_ context.Context, mv ledger.StockMovement) error {
	tv.data.appendMovement(mv)
	return nil
}

func (tv *txMemoryView) Movements(_ context.Context, id ledger.ProductID) ([]ledger.StockMovement, error) {
	return slices.Clone(tv.data.movements[id]), nil
}

func (tv *txMemoryView) GetProduct(_ context.Context, id ledger.ProductID) (*ledger.Product, error) {
	return tv.data.getProduct(id)
}

func (tv *txMemoryView) GetProductByBarcode(_ context.Context, barcode string) (*ledger.Product, error) {
	return tv.data.getProductByBarcode(barcode)
}

func (tv *txMemoryView) SaveProduct(_ context.Context, p *ledger.Product) error {
	return tv.data.saveProduct(p)
}

func (tv *txMemoryView) ListProducts(_ context.Context) ([]ledger.Product, error) {
	return tv.data.listProducts(), nil
}

func (tv *txMemoryView) SaveRecipe(_ context.Context, r ledger.Recipe) error {
	tv.data.saveRecipe(r)
	return nil
}

func (tv *txMemoryView) RecipesFor(_ context.Context, id ledger.ProductID) ([]ledger.Recipe, error) {
	return slices.Clone(tv.data.recipes[id]), nil
}

func (tv *txMemoryView) NextSaleSeq(_ context.Context, day string) (int, error) {
	return tv.data.nextSaleSeq(day), nil
}

func (tv *txMemoryView) InsertSale(_ context.Context, s *ledger.Sale) error {
	return tv.data.insertSale(s)
}

func (tv *txMemoryView) GetSale(_ context.Context, id ledger.SaleID) (*ledger.Sale, error) {
	return tv.data.getSale(id)
}

func (tv *txMemoryView) SalesBetween(_ context.Context, from, to time.Time) ([]ledger.Sale, error) {
	return tv.data.salesBetween(from, to), nil
}

var (
	_ ledger.TxStore  = (*TxMemory)(nil)
	_ ledger.Resetter = (*TxMemory)(nil)
	_ ledger.Store    = (*txMemoryView)(nil)
)
