/*
handlers.go - HTTP API handlers for the point-of-sale ledger

PURPOSE:
  Exposes the pos service via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  POS:
    POST   /api/pos/sale               Record a sale
    POST   /api/pos/validate-stock     Check lines against stock
    POST   /api/pos/calculate-total    Price lines without recording
    GET    /api/pos/product/{barcode}  Barcode lookup with stock
    GET    /api/pos/today-sales        Today's summary

  Sales:
    GET    /api/sales/{id}             Sale with items

  Inventory:
    GET    /api/inventory/status             All tracked levels
    GET    /api/inventory/low-stock-alerts   Levels at or below threshold
    GET    /api/inventory/expiry-alerts      ?days=7
    POST   /api/inventory/adjust-stock       Absolute adjustment
    POST   /api/inventory/receive            Goods received
    PUT    /api/inventory/{id}/settings      Threshold/expiry/batch
    GET    /api/inventory/{id}/movements     Movement history

  Catalog:
    POST   /api/catalog/import         JSON catalog import

  Scenarios:
    GET    /api/scenarios              List demo scenarios
    POST   /api/scenarios/load         Load a demo scenario

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Service: pos orchestration over the store
  - Catalog: JSON catalog conversion

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, rejected sales
  - 404: Resource not found
  - 500: Internal errors

  A rejected sale answers 400 with the SaleResult body, not ErrorResponse.

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/copyskillman/shopledger/factory"
	"github.com/copyskillman/shopledger/ledger"
	"github.com/copyskillman/shopledger/pos"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *pos.Service
	Catalog *factory.CatalogFactory

	log *zap.Logger

	// Track currently loaded scenario
	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler over the given service.
func NewHandler(svc *pos.Service, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		Service: svc,
		Catalog: factory.NewCatalogFactory(),
		log:     log,
	}
}

// =============================================================================
// POS ENDPOINTS
// =============================================================================

// ProcessSale records a sale.
// POST /api/pos/sale
func (h *Handler) ProcessSale(w http.ResponseWriter, r *http.Request) {
	var req SaleRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	method, err := ledger.ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, SaleResultDTO{
			Success: false,
			Message: err.Error(),
			Failure: string(pos.FailureInvalidRequest),
		})
		return
	}

	result := h.Service.ProcessSale(r.Context(), pos.SaleRequest{
		CustomerID:     req.CustomerID,
		Items:          toSaleLines(req.Items),
		DiscountAmount: req.DiscountAmount,
		PaymentMethod:  method,
		CashierName:    req.CashierName,
	})

	status := http.StatusCreated
	if !result.Success {
		status = http.StatusBadRequest
		if result.Failure == pos.FailurePersistenceFailure {
			status = http.StatusInternalServerError
			h.log.Error("sale failed", zap.Error(result.Err))
		}
	}
	writeJSON(w, status, toSaleResultDTO(result))
}

// ValidateStock checks lines against current stock.
// POST /api/pos/validate-stock
func (h *Handler) ValidateStock(w http.ResponseWriter, r *http.Request) {
	var req StockCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ok, err := h.Service.ValidateStockAvailability(r.Context(), toSaleLines(req.Items))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to validate stock", err)
		return
	}
	writeJSON(w, http.StatusOK, StockAvailabilityDTO{Available: ok})
}

// CalculateTotal prices lines without recording a sale.
// POST /api/pos/calculate-total
func (h *Handler) CalculateTotal(w http.ResponseWriter, r *http.Request) {
	var req StockCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	totals, err := h.Service.CalculateTotal(r.Context(), toSaleLines(req.Items), req.DiscountAmount)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to calculate total", err)
		return
	}
	writeJSON(w, http.StatusOK, TotalsDTO{Total: totals.Total, Discount: totals.Discount, Net: totals.Net})
}

// GetProductByBarcode returns product info with available stock.
// GET /api/pos/product/{barcode}
func (h *Handler) GetProductByBarcode(w http.ResponseWriter, r *http.Request) {
	barcode := chi.URLParam(r, "barcode")

	info, err := h.Service.GetProductInfo(r.Context(), barcode)
	if err != nil {
		writeDomainError(w, "Product not found", err)
		return
	}
	writeJSON(w, http.StatusOK, ProductInfoDTO{
		ID:             int64(info.ID),
		Name:           info.Name,
		Price:          info.Price,
		Unit:           info.Unit,
		AvailableStock: info.AvailableStock,
		IsRecipeBased:  info.IsRecipeBased,
	})
}

// GetTodaySales returns today's sales summary.
// GET /api/pos/today-sales
func (h *Handler) GetTodaySales(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Service.TodaySales(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load today's sales", err)
		return
	}

	dto := TodaySalesDTO{
		Day:         summary.Day,
		TotalSales:  summary.TotalSales,
		SalesCount:  summary.SalesCount,
		RecentSales: make([]SaleDTO, 0, len(summary.RecentSales)),
	}
	for _, s := range summary.RecentSales {
		dto.RecentSales = append(dto.RecentSales, toSaleDTO(s))
	}
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// SALES ENDPOINTS
// =============================================================================

// GetSale returns a sale with its items.
// GET /api/sales/{id}
func (h *Handler) GetSale(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid sale id", err)
		return
	}

	sale, err := h.Service.GetSale(r.Context(), ledger.SaleID(id))
	if err != nil {
		writeDomainError(w, "Sale not found", err)
		return
	}
	writeJSON(w, http.StatusOK, toSaleDTO(*sale))
}

// =============================================================================
// INVENTORY ENDPOINTS
// =============================================================================

// GetInventoryStatus lists every tracked level.
// GET /api/inventory/status
func (h *Handler) GetInventoryStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.Service.InventoryStatus(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load inventory", err)
		return
	}

	dtos := make([]InventoryStatusDTO, 0, len(status))
	for _, s := range status {
		dtos = append(dtos, InventoryStatusDTO{
			ProductID:    int64(s.ProductID),
			ProductName:  s.ProductName,
			Unit:         s.Unit,
			CurrentStock: s.CurrentStock,
			MinStock:     s.MinStock,
			IsLowStock:   s.IsLowStock,
			ExpiryDate:   s.ExpiryDate,
			BatchNo:      s.BatchNo,
		})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetLowStockAlerts lists levels at or below their threshold.
// GET /api/inventory/low-stock-alerts
func (h *Handler) GetLowStockAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.Service.LowStockAlerts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load alerts", err)
		return
	}

	dtos := make([]LowStockAlertDTO, 0, len(alerts))
	for _, a := range alerts {
		dtos = append(dtos, LowStockAlertDTO{
			ProductID:    int64(a.ProductID),
			ProductName:  a.ProductName,
			Unit:         a.Unit,
			CurrentStock: a.CurrentStock,
			MinStock:     a.MinStock,
			AlertLevel:   string(a.Level),
		})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetExpiryAlerts lists levels expiring within ?days (default 7).
// GET /api/inventory/expiry-alerts
func (h *Handler) GetExpiryAlerts(w http.ResponseWriter, r *http.Request) {
	days := pos.DefaultExpiryWindowDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "days must be a positive integer", err)
			return
		}
		days = n
	}

	alerts, err := h.Service.ExpiryAlerts(r.Context(), days)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load alerts", err)
		return
	}

	dtos := make([]ExpiryAlertDTO, 0, len(alerts))
	for _, a := range alerts {
		dtos = append(dtos, ExpiryAlertDTO{
			ProductID:       int64(a.ProductID),
			ProductName:     a.ProductName,
			ExpiryDate:      a.ExpiryDate,
			DaysUntilExpiry: a.DaysUntilExpiry,
			Quantity:        a.Quantity,
			BatchNo:         a.BatchNo,
			AlertLevel:      string(a.Level),
		})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// AdjustStock sets a product's stock to an absolute quantity.
// POST /api/inventory/adjust-stock
func (h *Handler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	var req AdjustStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	qty, err := h.Service.AdjustStock(r.Context(), ledger.ProductID(req.ProductID), req.Quantity, req.Reason)
	if err != nil {
		writeDomainError(w, "Failed to adjust stock", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"product_id":   req.ProductID,
		"new_quantity": qty,
	})
}

// ReceiveStock books goods received.
// POST /api/inventory/receive
func (h *Handler) ReceiveStock(w http.ResponseWriter, r *http.Request) {
	var req ReceiveStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	qty, err := h.Service.ReceiveStock(r.Context(), ledger.ProductID(req.ProductID), req.Quantity, req.Reference)
	if err != nil {
		writeDomainError(w, "Failed to receive stock", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"product_id":   req.ProductID,
		"new_quantity": qty,
	})
}

// UpdateStockSettings sets threshold, expiry and batch for a product.
// PUT /api/inventory/{id}/settings
func (h *Handler) UpdateStockSettings(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid product id", err)
		return
	}

	var req StockSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	level, err := h.Service.ConfigureStock(r.Context(), ledger.ProductID(id), ledger.Settings{
		MinStock:   req.MinStock,
		ExpiryDate: req.ExpiryDate,
		BatchNo:    req.BatchNo,
	})
	if err != nil {
		writeDomainError(w, "Failed to update stock settings", err)
		return
	}
	writeJSON(w, http.StatusOK, toStockLevelDTO(*level))
}

// GetMovements returns the movement log of a product.
// GET /api/inventory/{id}/movements
func (h *Handler) GetMovements(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid product id", err)
		return
	}

	movements, err := h.Service.MovementHistory(r.Context(), ledger.ProductID(id))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load movements", err)
		return
	}

	dtos := make([]MovementDTO, 0, len(movements))
	for _, m := range movements {
		dtos = append(dtos, toMovementDTO(m))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// CATALOG ENDPOINTS
// =============================================================================

// ImportCatalog seeds products, recipes and opening stock from JSON.
// POST /api/catalog/import
func (h *Handler) ImportCatalog(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read body", err)
		return
	}

	catalog, err := h.Catalog.ParseCatalog(string(body))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid catalog", err)
		return
	}

	result, err := h.Catalog.Import(r.Context(), h.Service.Store(), h.Service.Ledger(), catalog)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to import catalog", err)
		return
	}

	h.log.Info("catalog imported",
		zap.Int("products", result.Products),
		zap.Int("recipes", result.Recipes),
		zap.Int("stocked", result.Stocked),
	)
	writeJSON(w, http.StatusCreated, result)
}

// Healthz reports liveness.
// GET /healthz
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError picks the status from the ledger error helpers.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	var short *ledger.InsufficientStockError
	switch {
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.As(err, &short), ledger.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
