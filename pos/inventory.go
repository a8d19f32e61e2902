package pos

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/copyskillman/shopledger/ledger"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// =============================================================================
// STOCK MAINTENANCE
// =============================================================================

const DefaultAdjustmentReason = "Manual adjustment"

// AdjustStock sets the on-hand quantity of a product to qty. The movement
// records the applied difference.
func (s *Service) AdjustStock(ctx context.Context, id ledger.ProductID, qty decimal.Decimal, reason string) (decimal.Decimal, error) {
	if reason == "" {
		reason = DefaultAdjustmentReason
	}
	if _, err := s.store.GetProduct(ctx, id); err != nil {
		return decimal.Zero, err
	}
	next, err := s.ledger.Apply(ctx, ledger.SetTo(id, qty, reason))
	if err != nil {
		return decimal.Zero, err
	}
	s.log.Info("stock adjusted",
		zap.Int64("product_id", int64(id)),
		zap.String("quantity", next.String()),
		zap.String("reason", reason),
	)
	return next, nil
}

// ReceiveStock adds qty to a product's stock.
func (s *Service) ReceiveStock(ctx context.Context, id ledger.ProductID, qty decimal.Decimal, reference string) (decimal.Decimal, error) {
	if _, err := s.store.GetProduct(ctx, id); err != nil {
		return decimal.Zero, err
	}
	if reference == "" {
		reference = "Stock received"
	}
	next, err := s.ledger.Apply(ctx, ledger.Receive(id, qty, reference))
	if err != nil {
		return decimal.Zero, err
	}
	s.log.Info("stock received",
		zap.Int64("product_id", int64(id)),
		zap.String("received", qty.String()),
		zap.String("quantity", next.String()),
	)
	return next, nil
}

// ConfigureStock updates threshold, expiry and batch without touching the
// quantity.
func (s *Service) ConfigureStock(ctx context.Context, id ledger.ProductID, st ledger.Settings) (*ledger.StockLevel, error) {
	if _, err := s.store.GetProduct(ctx, id); err != nil {
		return nil, err
	}
	if st.MinStock.IsNegative() {
		return nil, fmt.Errorf("%w: min stock %s is negative", ledger.ErrInvalidQuantity, st.MinStock)
	}
	return s.ledger.Configure(ctx, id, st)
}

// MovementHistory returns the movement log of a product.
func (s *Service) MovementHistory(ctx context.Context, id ledger.ProductID) ([]ledger.StockMovement, error) {
	return s.ledger.Movements(ctx, id)
}

// =============================================================================
// PRODUCT LOOKUP
// =============================================================================

type ProductInfo struct {
	ID             ledger.ProductID
	Name           string
	Price          decimal.Decimal
	Unit           string
	AvailableStock decimal.Decimal
	IsRecipeBased  bool
}

// GetProductInfo looks up an active product by barcode with its stock.
func (s *Service) GetProductInfo(ctx context.Context, barcode string) (*ProductInfo, error) {
	p, err := s.store.GetProductByBarcode(ctx, barcode)
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, fmt.Errorf("%w: barcode %q is inactive", ledger.ErrUnknownProduct, barcode)
	}
	available, err := s.ledger.Available(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	return &ProductInfo{
		ID:             p.ID,
		Name:           p.Name,
		Price:          p.Price,
		Unit:           p.Unit,
		AvailableStock: available,
		IsRecipeBased:  p.IsRecipeBased,
	}, nil
}

// =============================================================================
// INVENTORY STATUS & ALERTS
// =============================================================================

type InventoryStatus struct {
	ProductID    ledger.ProductID
	ProductName  string
	Unit         string
	CurrentStock decimal.Decimal
	MinStock     decimal.Decimal
	IsLowStock   bool
	ExpiryDate   *time.Time
	BatchNo      string
}

type AlertLevel string

const (
	AlertOutOfStock   AlertLevel = "out_of_stock"
	AlertLowStock     AlertLevel = "low_stock"
	AlertExpired      AlertLevel = "expired"
	AlertExpiringSoon AlertLevel = "expiring_soon"
	AlertEarlyWarning AlertLevel = "early_warning"
)

type LowStockAlert struct {
	ProductID    ledger.ProductID
	ProductName  string
	Unit         string
	CurrentStock decimal.Decimal
	MinStock     decimal.Decimal
	Level        AlertLevel
}

type ExpiryAlert struct {
	ProductID       ledger.ProductID
	ProductName     string
	ExpiryDate      time.Time
	DaysUntilExpiry int
	Quantity        decimal.Decimal
	BatchNo         string
	Level           AlertLevel
}

const DefaultExpiryWindowDays = 7

// InventoryStatus lists every tracked level that belongs to a catalog product.
func (s *Service) InventoryStatus(ctx context.Context) ([]InventoryStatus, error) {
	levels, err := s.ledger.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]InventoryStatus, 0, len(levels))
	for _, lv := range levels {
		p, ok, err := s.lookup(ctx, lv.ProductID)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		out = append(out, InventoryStatus{
			ProductID:    lv.ProductID,
			ProductName:  p.Name,
			Unit:         p.Unit,
			CurrentStock: lv.Quantity,
			MinStock:     lv.MinStock,
			IsLowStock:   lv.IsLow(),
			ExpiryDate:   lv.ExpiryDate,
			BatchNo:      lv.BatchNo,
		})
	}
	return out, nil
}

// LowStockAlerts lists levels at or below their threshold.
func (s *Service) LowStockAlerts(ctx context.Context) ([]LowStockAlert, error) {
	levels, err := s.ledger.ListLow(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]LowStockAlert, 0, len(levels))
	for _, lv := range levels {
		p, ok, err := s.lookup(ctx, lv.ProductID)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		level := AlertLowStock
		if !lv.Quantity.IsPositive() {
			level = AlertOutOfStock
		}
		out = append(out, LowStockAlert{
			ProductID:    lv.ProductID,
			ProductName:  p.Name,
			Unit:         p.Unit,
			CurrentStock: lv.Quantity,
			MinStock:     lv.MinStock,
			Level:        level,
		})
	}
	return out, nil
}

// ExpiryAlerts lists levels expiring within days (already expired included).
// A non-positive window falls back to DefaultExpiryWindowDays.
func (s *Service) ExpiryAlerts(ctx context.Context, days int) ([]ExpiryAlert, error) {
	if days <= 0 {
		days = DefaultExpiryWindowDays
	}
	levels, err := s.ledger.ListExpiringBy(ctx, days)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]ExpiryAlert, 0, len(levels))
	for _, lv := range levels {
		p, ok, err := s.lookup(ctx, lv.ProductID)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		remaining := daysUntil(now, *lv.ExpiryDate)
		out = append(out, ExpiryAlert{
			ProductID:       lv.ProductID,
			ProductName:     p.Name,
			ExpiryDate:      *lv.ExpiryDate,
			DaysUntilExpiry: remaining,
			Quantity:        lv.Quantity,
			BatchNo:         lv.BatchNo,
			Level:           expiryLevel(remaining),
		})
	}
	return out, nil
}

// daysUntil counts whole days from now to t, truncated toward zero.
func daysUntil(now, t time.Time) int {
	return int(t.Sub(now).Hours() / 24)
}

func expiryLevel(days int) AlertLevel {
	switch {
	case days <= 0:
		return AlertExpired
	case days <= 2:
		return AlertExpiringSoon
	default:
		return AlertEarlyWarning
	}
}

// lookup returns the product for id; ok is false when it is not in the
// catalog.
func (s *Service) lookup(ctx context.Context, id ledger.ProductID) (*ledger.Product, bool, error) {
	p, err := s.store.GetProduct(ctx, id)
	if errors.Is(err, ledger.ErrUnknownProduct) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, ledger.Persist("get product", err)
	}
	return p, true, nil
}

// =============================================================================
// SALES READS
// =============================================================================

type DailySummary struct {
	Day         string
	TotalSales  decimal.Decimal
	SalesCount  int
	RecentSales []ledger.Sale
}

const recentSalesLimit = 10

// TodaySales summarizes sales of the current business day.
func (s *Service) TodaySales(ctx context.Context) (*DailySummary, error) {
	now := s.now().In(s.sequencer.location())
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	end := start.AddDate(0, 0, 1)

	sales, err := s.store.SalesBetween(ctx, start, end)
	if err != nil {
		return nil, ledger.Persist("list sales", err)
	}

	total := decimal.Zero
	for _, sale := range sales {
		total = total.Add(sale.NetAmount)
	}
	recent := sales
	if len(recent) > recentSalesLimit {
		recent = recent[:recentSalesLimit]
	}
	return &DailySummary{
		Day:         s.sequencer.Day(now),
		TotalSales:  total,
		SalesCount:  len(sales),
		RecentSales: recent,
	}, nil
}

// GetSale returns a recorded sale with its items.
func (s *Service) GetSale(ctx context.Context, id ledger.SaleID) (*ledger.Sale, error) {
	return s.store.GetSale(ctx, id)
}
