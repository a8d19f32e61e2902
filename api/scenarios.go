/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	shop data for testing and demos. Each scenario is a JSON catalog fed
	through the catalog factory, so opening stock shows up in the movement
	log like any other receipt.

AVAILABLE SCENARIOS:

	corner-shop:  Packaged goods, one item already below threshold,
	              perishables close to expiry
	smoothie-bar: Recipe-based drinks consuming fruit, milk and syrup
	busy-day:     Smoothie bar plus a handful of sales already rung up

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Build a catalog JSON (expiry dates relative to today)
 3. Import products, recipes and opening stock via factory
 4. Optionally record sales through the pos service

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "smoothie-bar"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: ImportCatalog shares the same factory
  - factory/catalog.go: Catalog JSON definitions
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/copyskillman/shopledger/factory"
	"github.com/copyskillman/shopledger/ledger"
	"github.com/copyskillman/shopledger/pos"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "corner-shop",
		Name:        "Corner Shop",
		Description: "Packaged goods with a low-stock item and perishables near expiry",
	},
	{
		ID:          "smoothie-bar",
		Name:        "Smoothie Bar",
		Description: "Recipe-based drinks that consume fruit, milk and syrup per cup",
	},
	{
		ID:          "busy-day",
		Name:        "Busy Day",
		Description: "Smoothie bar with several sales already recorded today",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: current, Name: current})
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScenarioID string `json:"scenario_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var loader func(context.Context) error
	switch req.ScenarioID {
	case "corner-shop":
		loader = h.loadCornerShopScenario
	case "smoothie-bar":
		loader = h.loadSmoothieBarScenario
	case "busy-day":
		loader = h.loadBusyDayScenario
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ctx := r.Context()

	// Reset first
	resetter, ok := h.Service.Store().(ledger.Resetter)
	if !ok {
		writeError(w, http.StatusInternalServerError, "Store does not support reset", nil)
		return
	}
	if err := resetter.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""

	if err := loader(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	h.currentScenario = req.ScenarioID
	h.log.Info("scenario loaded", zap.String("scenario", req.ScenarioID))

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadCornerShopScenario(ctx context.Context) error {
	_, err := h.importCatalog(ctx, cornerShopJSON(time.Now()))
	return err
}

func (h *Handler) loadSmoothieBarScenario(ctx context.Context) error {
	_, err := h.importCatalog(ctx, smoothieBarJSON(time.Now()))
	return err
}

func (h *Handler) loadBusyDayScenario(ctx context.Context) error {
	result, err := h.importCatalog(ctx, smoothieBarJSON(time.Now()))
	if err != nil {
		return err
	}

	// A morning's worth of orders
	orders := []struct {
		lines    map[string]string
		discount string
		method   ledger.PaymentMethod
	}{
		{map[string]string{"strawberry-smoothie": "2"}, "0", ledger.PaymentCash},
		{map[string]string{"mango-smoothie": "1", "bottled-water": "1"}, "5", ledger.PaymentCard},
		{map[string]string{"strawberry-smoothie": "1", "mango-smoothie": "1"}, "0", ledger.PaymentDigitalWallet},
		{map[string]string{"bottled-water": "3"}, "0", ledger.PaymentCash},
	}

	for i, o := range orders {
		req := pos.SaleRequest{
			DiscountAmount: decimal.RequireFromString(o.discount),
			PaymentMethod:  o.method,
			CashierName:    "Demo Cashier",
		}
		for key, qty := range o.lines {
			req.Items = append(req.Items, pos.SaleLine{
				ProductID: result.IDs[key],
				Quantity:  decimal.RequireFromString(qty),
			})
		}
		res := h.Service.ProcessSale(ctx, req)
		if !res.Success {
			return fmt.Errorf("order %d: %w", i+1, res.Err)
		}
	}
	return nil
}

func (h *Handler) importCatalog(ctx context.Context, jsonStr string) (*factory.ImportResult, error) {
	catalog, err := h.Catalog.ParseCatalog(jsonStr)
	if err != nil {
		return nil, err
	}
	return h.Catalog.Import(ctx, h.Service.Store(), h.Service.Ledger(), catalog)
}

// =============================================================================
// CATALOGS
// =============================================================================

func day(now time.Time, offset int) string {
	return now.AddDate(0, 0, offset).Format("2006-01-02")
}

func cornerShopJSON(now time.Time) string {
	return fmt.Sprintf(`{
  "products": [
    {"key": "cola", "name": "Cola 330ml", "barcode": "8850001000011", "unit": "can",
     "price": "15.00", "cost": "9.50",
     "stock": {"quantity": "48", "min_stock": "12"}},
    {"key": "chips", "name": "Potato Chips", "barcode": "8850001000028", "unit": "bag",
     "price": "20.00", "cost": "12.00",
     "stock": {"quantity": "4", "min_stock": "10"}},
    {"key": "milk", "name": "Fresh Milk 1L", "barcode": "8850001000035", "unit": "bottle",
     "price": "42.00", "cost": "33.00", "has_expiry": true,
     "stock": {"quantity": "10", "min_stock": "5", "expiry_date": %q, "batch_no": "MLK-0917"}},
    {"key": "bread", "name": "Sandwich Bread", "barcode": "8850001000042", "unit": "loaf",
     "price": "38.00", "cost": "25.00", "has_expiry": true,
     "stock": {"quantity": "6", "min_stock": "3", "expiry_date": %q, "batch_no": "BRD-0301"}},
    {"key": "yogurt", "name": "Plain Yogurt", "barcode": "8850001000059", "unit": "cup",
     "price": "18.00", "cost": "11.00", "has_expiry": true,
     "stock": {"quantity": "0", "min_stock": "6", "expiry_date": %q, "batch_no": "YGT-1102"}}
  ]
}`, day(now, 2), day(now, 5), day(now, -1))
}

func smoothieBarJSON(now time.Time) string {
	return fmt.Sprintf(`{
  "products": [
    {"key": "strawberry", "name": "Strawberries", "barcode": "2000000000015", "unit": "g",
     "price": "0", "cost": "0.12", "has_expiry": true,
     "stock": {"quantity": "3000", "min_stock": "800", "expiry_date": %q, "batch_no": "STR-A"}},
    {"key": "mango", "name": "Mango Pulp", "barcode": "2000000000022", "unit": "g",
     "price": "0", "cost": "0.09", "has_expiry": true,
     "stock": {"quantity": "2500", "min_stock": "600", "expiry_date": %q, "batch_no": "MNG-B"}},
    {"key": "milk", "name": "Milk", "barcode": "2000000000039", "unit": "ml",
     "price": "0", "cost": "0.03",
     "stock": {"quantity": "5000", "min_stock": "1000"}},
    {"key": "syrup", "name": "Simple Syrup", "barcode": "2000000000046", "unit": "ml",
     "price": "0", "cost": "0.02",
     "stock": {"quantity": "1000", "min_stock": "200"}},
    {"key": "strawberry-smoothie", "name": "Strawberry Smoothie", "barcode": "9900000000017", "unit": "cup",
     "price": "65.00", "cost": "31.00", "is_recipe_based": true,
     "stock": {"quantity": "100"}},
    {"key": "mango-smoothie", "name": "Mango Smoothie", "barcode": "9900000000024", "unit": "cup",
     "price": "60.00", "cost": "26.00", "is_recipe_based": true,
     "stock": {"quantity": "100"}},
    {"key": "bottled-water", "name": "Bottled Water", "barcode": "8850002000010", "unit": "bottle",
     "price": "10.00", "cost": "4.00",
     "stock": {"quantity": "60", "min_stock": "24"}}
  ],
  "recipes": [
    {"product": "strawberry-smoothie", "ingredient": "strawberry", "quantity_needed": "200", "unit": "g"},
    {"product": "strawberry-smoothie", "ingredient": "milk", "quantity_needed": "150", "unit": "ml"},
    {"product": "strawberry-smoothie", "ingredient": "syrup", "quantity_needed": "20", "unit": "ml"},
    {"product": "mango-smoothie", "ingredient": "mango", "quantity_needed": "180", "unit": "g"},
    {"product": "mango-smoothie", "ingredient": "milk", "quantity_needed": "150", "unit": "ml"}
  ]
}`, day(now, 3), day(now, 6))
}
