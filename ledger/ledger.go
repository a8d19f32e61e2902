/*
ledger.go - Stock quantities and the movement log that explains them

PURPOSE:
  The Ledger is the only writer of StockLevel.Quantity. Every change goes
  through Apply, which records exactly one StockMovement alongside the new
  level in the same atomic unit. Replaying a product's movement deltas from
  zero reproduces its current quantity.

MUTATIONS:
  A Mutation is an explicit tagged operation. Relative kinds add or subtract
  a non-negative quantity; the adjustment kind sets an absolute quantity.

    Receive(id, 10, "PO-17")        in          quantity += 10
    Consume(id, 2, "Sale: RC...")   out         quantity -= 2
    UseInRecipe(id, 200, "...")     recipe_use  quantity -= 200
    SetTo(id, 3, "Stock count")     adjustment  quantity  = 3

  The movement always stores the applied signed delta, so an adjustment
  from 10 to 3 is logged as -7.

FLOOR:
  Quantities may go negative. Sufficiency is checked by the sale
  orchestrator before debiting. Set ForbidNegative to make the ledger refuse
  out/recipe_use debits that would cross zero.

TRANSACTIONS:
  Over a TxStore the Ledger opens its own WithTx per Apply. Over the Store
  handed to a WithTx callback it writes straight into that unit, so the
  caller decides what commits together.

SEE ALSO:
  - store.go: StockStore interface
  - pos/service.go: Sale debits
*/
package ledger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// MUTATION - Tagged stock change
// =============================================================================

// Mutation describes one stock change. Build it with Receive, Consume,
// UseInRecipe or SetTo.
type Mutation struct {
	ProductID ProductID
	Kind      MovementKind
	Quantity  decimal.Decimal // relative amount, or the absolute target for adjustment
	Reference string
}

func Receive(id ProductID, qty decimal.Decimal, ref string) Mutation {
	return Mutation{ProductID: id, Kind: MovementIn, Quantity: qty, Reference: ref}
}

func Consume(id ProductID, qty decimal.Decimal, ref string) Mutation {
	return Mutation{ProductID: id, Kind: MovementOut, Quantity: qty, Reference: ref}
}

func UseInRecipe(id ProductID, qty decimal.Decimal, ref string) Mutation {
	return Mutation{ProductID: id, Kind: MovementRecipeUse, Quantity: qty, Reference: ref}
}

// SetTo builds an absolute adjustment. Any sign is accepted.
func SetTo(id ProductID, qty decimal.Decimal, ref string) Mutation {
	return Mutation{ProductID: id, Kind: MovementAdjustment, Quantity: qty, Reference: ref}
}

// IsDebit reports whether the mutation removes stock.
func (m Mutation) IsDebit() bool {
	return m.Kind == MovementOut || m.Kind == MovementRecipeUse
}

// resolve returns the new quantity for a level currently at current.
func (m Mutation) resolve(current decimal.Decimal) (decimal.Decimal, error) {
	if !m.Kind.Valid() {
		return decimal.Zero, fmt.Errorf("%w: unknown movement kind %q", ErrInvalidQuantity, m.Kind)
	}
	if m.Kind == MovementAdjustment {
		return m.Quantity, nil
	}
	if m.Quantity.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: %s quantity %s is negative", ErrInvalidQuantity, m.Kind, m.Quantity)
	}
	if m.Kind == MovementIn {
		return current.Add(m.Quantity), nil
	}
	return current.Sub(m.Quantity), nil
}

// =============================================================================
// LEDGER
// =============================================================================

type Ledger struct {
	Store StockStore

	// ForbidNegative refuses debits that would leave quantity below zero.
	ForbidNegative bool

	// Now and NewID are replaceable for tests.
	Now   func() time.Time
	NewID func() MovementID
}

func NewLedger(store StockStore) *Ledger {
	return &Ledger{
		Store: store,
		Now:   time.Now,
		NewID: func() MovementID { return MovementID(uuid.NewString()) },
	}
}

// Within returns a copy of the ledger writing into store, typically the
// transaction-scoped Store passed to a WithTx callback.
func (l *Ledger) Within(store StockStore) *Ledger {
	cp := *l
	cp.Store = store
	return &cp
}

func (l *Ledger) now() time.Time {
	if l.Now == nil {
		return time.Now()
	}
	return l.Now()
}

func (l *Ledger) newID() MovementID {
	if l.NewID == nil {
		return MovementID(uuid.NewString())
	}
	return l.NewID()
}

// Apply performs m and returns the resulting quantity.
func (l *Ledger) Apply(ctx context.Context, m Mutation) (decimal.Decimal, error) {
	var result decimal.Decimal
	err := l.atomically(ctx, func(s StockStore) error {
		q, err := l.apply(ctx, s, m)
		result = q
		return err
	})
	if err != nil {
		return decimal.Zero, err
	}
	return result, nil
}

func (l *Ledger) apply(ctx context.Context, s StockStore, m Mutation) (decimal.Decimal, error) {
	level, err := s.GetLevel(ctx, m.ProductID)
	if err != nil {
		return decimal.Zero, Persist("get level", err)
	}
	now := l.now()
	if level == nil {
		level = &StockLevel{ProductID: m.ProductID, Quantity: decimal.Zero, MinStock: decimal.Zero}
	}

	next, err := m.resolve(level.Quantity)
	if err != nil {
		return decimal.Zero, err
	}
	if l.ForbidNegative && m.IsDebit() && next.IsNegative() {
		return decimal.Zero, &InsufficientStockError{
			ProductID: m.ProductID,
			Available: level.Quantity,
			Requested: m.Quantity,
		}
	}

	movement := StockMovement{
		ID:            l.newID(),
		ProductID:     m.ProductID,
		Kind:          m.Kind,
		Delta:         next.Sub(level.Quantity),
		QuantityAfter: next,
		Reference:     m.Reference,
		CreatedAt:     now,
	}

	level.Quantity = next
	level.UpdatedAt = now
	if err := s.PutLevel(ctx, *level); err != nil {
		return decimal.Zero, Persist("put level", err)
	}
	if err := s.AppendMovement(ctx, movement); err != nil {
		return decimal.Zero, Persist("append movement", err)
	}
	return next, nil
}

// atomically runs fn in a fresh WithTx when the store supports it,
// otherwise against the store directly.
func (l *Ledger) atomically(ctx context.Context, fn func(StockStore) error) error {
	if txs, ok := l.Store.(TxStore); ok {
		return txs.WithTx(ctx, func(s Store) error { return fn(s) })
	}
	return fn(l.Store)
}

// =============================================================================
// SETTINGS - Threshold, expiry and batch (no quantity change)
// =============================================================================

// Settings holds the non-quantity fields of a StockLevel.
type Settings struct {
	MinStock   decimal.Decimal
	ExpiryDate *time.Time
	BatchNo    string
}

// Configure updates threshold, expiry and batch. The quantity is untouched
// and no movement is recorded. A missing level is provisioned at zero.
func (l *Ledger) Configure(ctx context.Context, id ProductID, st Settings) (*StockLevel, error) {
	var out *StockLevel
	err := l.atomically(ctx, func(s StockStore) error {
		level, err := s.GetLevel(ctx, id)
		if err != nil {
			return Persist("get level", err)
		}
		if level == nil {
			level = &StockLevel{ProductID: id, Quantity: decimal.Zero}
		}
		level.MinStock = st.MinStock
		level.ExpiryDate = st.ExpiryDate
		level.BatchNo = st.BatchNo
		level.UpdatedAt = l.now()
		if err := s.PutLevel(ctx, *level); err != nil {
			return Persist("put level", err)
		}
		out = level
		return nil
	})
	return out, err
}

// =============================================================================
// READS
// =============================================================================

// Get returns the level for id, or nil if the product is untracked.
func (l *Ledger) Get(ctx context.Context, id ProductID) (*StockLevel, error) {
	level, err := l.Store.GetLevel(ctx, id)
	if err != nil {
		return nil, Persist("get level", err)
	}
	return level, nil
}

// Available returns the on-hand quantity, zero when untracked.
func (l *Ledger) Available(ctx context.Context, id ProductID) (decimal.Decimal, error) {
	level, err := l.Get(ctx, id)
	if err != nil || level == nil {
		return decimal.Zero, err
	}
	return level.Quantity, nil
}

// List returns every tracked level ordered by product id.
func (l *Ledger) List(ctx context.Context) ([]StockLevel, error) {
	levels, err := l.Store.ListLevels(ctx)
	if err != nil {
		return nil, Persist("list levels", err)
	}
	return levels, nil
}

// ListLow returns levels with quantity <= minStock.
func (l *Ledger) ListLow(ctx context.Context) ([]StockLevel, error) {
	levels, err := l.List(ctx)
	if err != nil {
		return nil, err
	}
	var low []StockLevel
	for _, lv := range levels {
		if lv.IsLow() {
			low = append(low, lv)
		}
	}
	return low, nil
}

// ListExpiringBy returns levels whose expiry date falls on or before
// now + days, soonest first. Levels without an expiry date are ignored.
func (l *Ledger) ListExpiringBy(ctx context.Context, days int) ([]StockLevel, error) {
	levels, err := l.List(ctx)
	if err != nil {
		return nil, err
	}
	cutoff := l.now().AddDate(0, 0, days)
	var out []StockLevel
	for _, lv := range levels {
		if lv.ExpiryDate != nil && !lv.ExpiryDate.After(cutoff) {
			out = append(out, lv)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ExpiryDate.Before(*out[j].ExpiryDate)
	})
	return out, nil
}

// Movements returns the movement history of a product in application order.
func (l *Ledger) Movements(ctx context.Context, id ProductID) ([]StockMovement, error) {
	ms, err := l.Store.Movements(ctx, id)
	if err != nil {
		return nil, Persist("load movements", err)
	}
	return ms, nil
}

// Replay sums movement deltas from zero. For a consistent log it equals the
// level's current quantity.
func Replay(movements []StockMovement) decimal.Decimal {
	total := decimal.Zero
	for _, m := range movements {
		total = total.Add(m.Delta)
	}
	return total
}
