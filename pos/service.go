/*
Package pos orchestrates point-of-sale operations over the ledger.

PURPOSE:
  A sale touches the catalog (pricing), the stock ledger (validation and
  debits), the recipe resolver (ingredient consumption) and the sale
  sequencer (numbering). Service composes them inside a single WithTx so a
  sale either lands completely or leaves no trace.

SALE FLOW (one atomic unit):
  1. Validate availability per product (requested quantities aggregated)
  2. Price lines from the live catalog, skipping unknown/inactive products
  3. Allocate the sale number and insert Sale + SaleItems
  4. Debit: one `out` per line, plus one `recipe_use` per ingredient for
     recipe-based products, in ascending product id order
  5. Return id, number, totals and timestamp

  Any failure rolls back everything, including the sale counter.

FAILURES:
  Business failures are reported in SaleResult (Success=false, Failure set)
  and never as Go errors, so transports can answer 400 with the result body.

SEE ALSO:
  - sequence.go: Sale numbers
  - inventory.go: Stock maintenance and alert reads
  - ledger/ledger.go: Stock mutations
*/
package pos

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/copyskillman/shopledger/ledger"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// =============================================================================
// REQUEST / RESULT
// =============================================================================

type SaleLine struct {
	ProductID ledger.ProductID
	Quantity  decimal.Decimal
}

type SaleRequest struct {
	CustomerID     *int64
	Items          []SaleLine
	DiscountAmount decimal.Decimal
	PaymentMethod  ledger.PaymentMethod
	CashierName    string
}

type FailureKind string

const (
	FailureNone               FailureKind = ""
	FailureInsufficientStock  FailureKind = "insufficient_stock"
	FailureInvalidRequest     FailureKind = "invalid_request"
	FailurePersistenceFailure FailureKind = "persistence_failure"
)

type SaleResult struct {
	Success     bool            `json:"success"`
	Message     string          `json:"message"`
	Failure     FailureKind     `json:"failure,omitempty"`
	Err         error           `json:"-"`
	SaleID      ledger.SaleID   `json:"sale_id,omitempty"`
	SaleNo      string          `json:"sale_no,omitempty"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	NetAmount   decimal.Decimal `json:"net_amount"`
	SaleDate    time.Time       `json:"sale_date"`
}

// Totals is the priced outcome of a set of lines.
type Totals struct {
	Total    decimal.Decimal
	Discount decimal.Decimal
	Net      decimal.Decimal
}

// =============================================================================
// SERVICE
// =============================================================================

type Options struct {
	// Location fixes the business day for sale numbers and daily summaries.
	Location *time.Location

	// ForbidNegative makes the ledger refuse debits that cross zero. Sales
	// already pre-check their own lines; this additionally guards ingredients.
	ForbidNegative bool

	Now    func() time.Time
	Logger *zap.Logger
}

type Service struct {
	store     ledger.TxStore
	ledger    *ledger.Ledger
	recipes   *ledger.RecipeResolver
	sequencer *Sequencer
	now       func() time.Time
	log       *zap.Logger
}

func NewService(store ledger.TxStore, opts Options) *Service {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	lg := ledger.NewLedger(store)
	lg.ForbidNegative = opts.ForbidNegative
	lg.Now = now

	return &Service{
		store:     store,
		ledger:    lg,
		recipes:   ledger.NewRecipeResolver(store),
		sequencer: NewSequencer(opts.Location),
		now:       now,
		log:       log,
	}
}

// Ledger exposes the stock ledger bound to the service's store.
func (s *Service) Ledger() *ledger.Ledger { return s.ledger }

// Store exposes the underlying store.
func (s *Service) Store() ledger.TxStore { return s.store }

// =============================================================================
// PROCESS SALE - The critical transactional operation
// =============================================================================

// ProcessSale records a sale and debits stock for it.
// This is TRANSACTIONAL: if ANY step fails, ALL changes are rolled back.
func (s *Service) ProcessSale(ctx context.Context, req SaleRequest) SaleResult {
	if err := validateRequest(req); err != nil {
		return failed(err)
	}

	var sale ledger.Sale
	err := s.store.WithTx(ctx, func(tx ledger.Store) error {
		txLedger := s.ledger.Within(tx)

		// 1. Availability check inside the unit so concurrent sales serialize
		if err := checkAvailability(ctx, txLedger, tx, req.Items); err != nil {
			return err
		}

		// 2. Price lines from the live catalog
		items, products, err := s.priceLines(ctx, tx, req.Items)
		if err != nil {
			return err
		}

		// 3. Number and persist
		now := s.now()
		saleNo, err := s.sequencer.Next(ctx, tx, now)
		if err != nil {
			return err
		}
		totals := sumTotals(items, req.DiscountAmount)
		sale = ledger.Sale{
			SaleNo:         saleNo,
			CustomerID:     req.CustomerID,
			Items:          items,
			TotalAmount:    totals.Total,
			DiscountAmount: totals.Discount,
			NetAmount:      totals.Net,
			PaymentMethod:  req.PaymentMethod,
			SaleDate:       now,
			CashierName:    req.CashierName,
		}
		if err := tx.InsertSale(ctx, &sale); err != nil {
			return ledger.Persist("insert sale", err)
		}

		// 4. Debit stock
		return s.debit(ctx, txLedger, s.recipes.Within(tx), saleNo, items, products)
	})
	if err != nil {
		s.log.Warn("sale rejected",
			zap.String("payment_method", req.PaymentMethod.String()),
			zap.Int("lines", len(req.Items)),
			zap.Error(err),
		)
		return failed(err)
	}

	s.log.Info("sale recorded",
		zap.Int64("sale_id", int64(sale.ID)),
		zap.String("sale_no", sale.SaleNo),
		zap.String("net_amount", sale.NetAmount.String()),
		zap.Int("items", len(sale.Items)),
	)
	return SaleResult{
		Success:     true,
		Message:     "Sale completed successfully",
		SaleID:      sale.ID,
		SaleNo:      sale.SaleNo,
		TotalAmount: sale.TotalAmount,
		NetAmount:   sale.NetAmount,
		SaleDate:    sale.SaleDate,
	}
}

func validateRequest(req SaleRequest) error {
	if len(req.Items) == 0 {
		return fmt.Errorf("%w: sale has no items", ledger.ErrInvalidRequest)
	}
	for i, line := range req.Items {
		if !line.Quantity.IsPositive() {
			return fmt.Errorf("%w: line %d quantity must be positive, got %s",
				ledger.ErrInvalidRequest, i+1, line.Quantity)
		}
	}
	if !req.PaymentMethod.Valid() {
		return fmt.Errorf("%w: unknown payment method %d", ledger.ErrInvalidRequest, int(req.PaymentMethod))
	}
	return nil
}

// checkAvailability compares the aggregated requested quantity of every
// product against its current level. Products are checked in id order.
func checkAvailability(ctx context.Context, lg *ledger.Ledger, catalog ledger.CatalogStore, lines []SaleLine) error {
	requested, ids := aggregate(lines)
	for _, id := range ids {
		available, err := lg.Available(ctx, id)
		if err != nil {
			return err
		}
		if requested[id].GreaterThan(available) {
			short := &ledger.InsufficientStockError{
				ProductID: id,
				Available: available,
				Requested: requested[id],
			}
			if p, err := catalog.GetProduct(ctx, id); err == nil {
				short.ProductName = p.Name
			}
			return short
		}
	}
	return nil
}

func aggregate(lines []SaleLine) (map[ledger.ProductID]decimal.Decimal, []ledger.ProductID) {
	requested := make(map[ledger.ProductID]decimal.Decimal, len(lines))
	var ids []ledger.ProductID
	for _, line := range lines {
		q, seen := requested[line.ProductID]
		if !seen {
			ids = append(ids, line.ProductID)
		}
		requested[line.ProductID] = q.Add(line.Quantity)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return requested, ids
}

// priceLines snapshots name and price for every line. Lines whose product
// is unknown or inactive are dropped and logged.
func (s *Service) priceLines(ctx context.Context, catalog ledger.CatalogStore, lines []SaleLine) ([]ledger.SaleItem, map[ledger.ProductID]*ledger.Product, error) {
	products := make(map[ledger.ProductID]*ledger.Product, len(lines))
	items := make([]ledger.SaleItem, 0, len(lines))

	for _, line := range lines {
		p, ok := products[line.ProductID]
		if !ok {
			var err error
			p, err = catalog.GetProduct(ctx, line.ProductID)
			if errors.Is(err, ledger.ErrUnknownProduct) {
				s.log.Warn("skipping unknown product", zap.Int64("product_id", int64(line.ProductID)))
				continue
			}
			if err != nil {
				return nil, nil, ledger.Persist("get product", err)
			}
			products[line.ProductID] = p
		}
		if !p.IsActive {
			s.log.Warn("skipping inactive product", zap.Int64("product_id", int64(p.ID)))
			continue
		}
		items = append(items, ledger.SaleItem{
			ProductID:   p.ID,
			ProductName: p.Name,
			Quantity:    line.Quantity,
			UnitPrice:   p.Price,
			TotalAmount: line.Quantity.Mul(p.Price),
		})
	}
	return items, products, nil
}

// debit applies the stock movements of a sale. Lines are processed in
// ascending product id order (stable for duplicates).
func (s *Service) debit(ctx context.Context, lg *ledger.Ledger, rr *ledger.RecipeResolver, saleNo string, items []ledger.SaleItem, products map[ledger.ProductID]*ledger.Product) error {
	ordered := make([]ledger.SaleItem, len(items))
	copy(ordered, items)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].ProductID < ordered[j].ProductID })

	ref := "Sale: " + saleNo
	for _, item := range ordered {
		if _, err := lg.Apply(ctx, ledger.Consume(item.ProductID, item.Quantity, ref)); err != nil {
			return err
		}

		if !products[item.ProductID].IsRecipeBased {
			continue
		}
		ingredients, err := rr.IngredientsFor(ctx, item.ProductID)
		if err != nil {
			return err
		}
		recipeRef := fmt.Sprintf("%s recipe %d x%s", ref, item.ProductID, item.Quantity)
		for _, ing := range ingredients {
			use := ledger.UseInRecipe(ing.ProductID, ing.PerUnit.Mul(item.Quantity), recipeRef)
			if _, err := lg.Apply(ctx, use); err != nil {
				return err
			}
		}
	}
	return nil
}

func failed(err error) SaleResult {
	return SaleResult{
		Success: false,
		Message: err.Error(),
		Failure: classify(err),
		Err:     err,
	}
}

func classify(err error) FailureKind {
	switch {
	case errors.Is(err, ledger.ErrInsufficientStock):
		return FailureInsufficientStock
	case ledger.IsClientError(err):
		return FailureInvalidRequest
	default:
		return FailurePersistenceFailure
	}
}

// =============================================================================
// PRE-SALE HELPERS - No side effects
// =============================================================================

// ValidateStockAvailability reports whether every line can be covered by
// current stock.
func (s *Service) ValidateStockAvailability(ctx context.Context, lines []SaleLine) (bool, error) {
	err := checkAvailability(ctx, s.ledger, s.store, lines)
	if errors.Is(err, ledger.ErrInsufficientStock) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CalculateTotal prices lines against the catalog without recording
// anything. Unknown and inactive products contribute nothing.
func (s *Service) CalculateTotal(ctx context.Context, lines []SaleLine, discount decimal.Decimal) (Totals, error) {
	items, _, err := s.priceLines(ctx, s.store, lines)
	if err != nil {
		return Totals{}, err
	}
	return sumTotals(items, discount), nil
}

func sumTotals(items []ledger.SaleItem, discount decimal.Decimal) Totals {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.TotalAmount)
	}
	return Totals{Total: total, Discount: discount, Net: total.Sub(discount)}
}
