/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  POS:
    SaleRequestDTO, SaleItemDTO, SaleResultDTO, TotalsDTO, ProductInfoDTO,
    TodaySalesDTO

  Sales:
    SaleDTO, SaleLineDTO

  Inventory:
    InventoryStatusDTO, LowStockAlertDTO, ExpiryAlertDTO, MovementDTO,
    AdjustStockRequest, ReceiveStockRequest, StockSettingsRequest

  Scenarios:
    ScenarioDTO

DECIMALS:
  Quantities and amounts are decimal.Decimal. They marshal as JSON strings
  and accept either strings or numbers on input.

VALIDATION:
  Validation is done in handlers and the pos service, not in DTOs.

SEE ALSO:
  - handlers.go: Uses these types
  - pos/service.go: Domain request/result types
*/
package api

import (
	"time"

	"github.com/copyskillman/shopledger/ledger"
	"github.com/copyskillman/shopledger/pos"
	"github.com/shopspring/decimal"
)

// =============================================================================
// POS
// =============================================================================

// SaleItemDTO is one requested line.
type SaleItemDTO struct {
	ProductID int64           `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
}

// SaleRequestDTO is the body of POST /api/pos/sale.
type SaleRequestDTO struct {
	CustomerID     *int64          `json:"customer_id,omitempty"`
	Items          []SaleItemDTO   `json:"items"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	PaymentMethod  string          `json:"payment_method"`
	CashierName    string          `json:"cashier_name,omitempty"`
}

// StockCheckRequest is the body of validate-stock and calculate-total.
type StockCheckRequest struct {
	Items          []SaleItemDTO   `json:"items"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
}

// SaleResultDTO mirrors pos.SaleResult.
type SaleResultDTO struct {
	Success     bool            `json:"success"`
	Message     string          `json:"message"`
	Failure     string          `json:"failure,omitempty"`
	SaleID      int64           `json:"sale_id,omitempty"`
	SaleNo      string          `json:"sale_no,omitempty"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	NetAmount   decimal.Decimal `json:"net_amount"`
	SaleDate    *time.Time      `json:"sale_date,omitempty"`
}

type StockAvailabilityDTO struct {
	Available bool `json:"available"`
}

type TotalsDTO struct {
	Total    decimal.Decimal `json:"total"`
	Discount decimal.Decimal `json:"discount"`
	Net      decimal.Decimal `json:"net"`
}

type ProductInfoDTO struct {
	ID             int64           `json:"id"`
	Name           string          `json:"name"`
	Price          decimal.Decimal `json:"price"`
	Unit           string          `json:"unit"`
	AvailableStock decimal.Decimal `json:"available_stock"`
	IsRecipeBased  bool            `json:"is_recipe_based"`
}

type TodaySalesDTO struct {
	Day         string          `json:"day"`
	TotalSales  decimal.Decimal `json:"total_sales"`
	SalesCount  int             `json:"sales_count"`
	RecentSales []SaleDTO       `json:"recent_sales"`
}

// =============================================================================
// SALES
// =============================================================================

type SaleLineDTO struct {
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

type SaleDTO struct {
	ID             int64           `json:"id"`
	SaleNo         string          `json:"sale_no"`
	CustomerID     *int64          `json:"customer_id,omitempty"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	NetAmount      decimal.Decimal `json:"net_amount"`
	PaymentMethod  string          `json:"payment_method"`
	SaleDate       time.Time       `json:"sale_date"`
	CashierName    string          `json:"cashier_name,omitempty"`
	Items          []SaleLineDTO   `json:"items"`
}

// =============================================================================
// INVENTORY
// =============================================================================

type InventoryStatusDTO struct {
	ProductID    int64           `json:"product_id"`
	ProductName  string          `json:"product_name"`
	Unit         string          `json:"unit"`
	CurrentStock decimal.Decimal `json:"current_stock"`
	MinStock     decimal.Decimal `json:"min_stock"`
	IsLowStock   bool            `json:"is_low_stock"`
	ExpiryDate   *time.Time      `json:"expiry_date,omitempty"`
	BatchNo      string          `json:"batch_no,omitempty"`
}

type LowStockAlertDTO struct {
	ProductID    int64           `json:"product_id"`
	ProductName  string          `json:"product_name"`
	Unit         string          `json:"unit"`
	CurrentStock decimal.Decimal `json:"current_stock"`
	MinStock     decimal.Decimal `json:"min_stock"`
	AlertLevel   string          `json:"alert_level"`
}

type ExpiryAlertDTO struct {
	ProductID       int64           `json:"product_id"`
	ProductName     string          `json:"product_name"`
	ExpiryDate      time.Time       `json:"expiry_date"`
	DaysUntilExpiry int             `json:"days_until_expiry"`
	Quantity        decimal.Decimal `json:"quantity"`
	BatchNo         string          `json:"batch_no,omitempty"`
	AlertLevel      string          `json:"alert_level"`
}

type MovementDTO struct {
	ID            string          `json:"id"`
	ProductID     int64           `json:"product_id"`
	Kind          string          `json:"kind"`
	Delta         decimal.Decimal `json:"delta"`
	QuantityAfter decimal.Decimal `json:"quantity_after"`
	Reference     string          `json:"reference"`
	CreatedAt     time.Time       `json:"created_at"`
}

// AdjustStockRequest sets a product's stock to Quantity.
type AdjustStockRequest struct {
	ProductID int64           `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	Reason    string          `json:"reason,omitempty"`
}

// ReceiveStockRequest adds Quantity to a product's stock.
type ReceiveStockRequest struct {
	ProductID int64           `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	Reference string          `json:"reference,omitempty"`
}

// StockSettingsRequest updates threshold, expiry and batch.
type StockSettingsRequest struct {
	MinStock   decimal.Decimal `json:"min_stock"`
	ExpiryDate *time.Time      `json:"expiry_date,omitempty"`
	BatchNo    string          `json:"batch_no,omitempty"`
}

type StockLevelDTO struct {
	ProductID  int64           `json:"product_id"`
	Quantity   decimal.Decimal `json:"quantity"`
	MinStock   decimal.Decimal `json:"min_stock"`
	ExpiryDate *time.Time      `json:"expiry_date,omitempty"`
	BatchNo    string          `json:"batch_no,omitempty"`
}

// =============================================================================
// SCENARIOS / MISC
// =============================================================================

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toSaleLines(items []SaleItemDTO) []pos.SaleLine {
	lines := make([]pos.SaleLine, 0, len(items))
	for _, it := range items {
		lines = append(lines, pos.SaleLine{ProductID: ledger.ProductID(it.ProductID), Quantity: it.Quantity})
	}
	return lines
}

func toSaleResultDTO(r pos.SaleResult) SaleResultDTO {
	dto := SaleResultDTO{
		Success:     r.Success,
		Message:     r.Message,
		Failure:     string(r.Failure),
		SaleID:      int64(r.SaleID),
		SaleNo:      r.SaleNo,
		TotalAmount: r.TotalAmount,
		NetAmount:   r.NetAmount,
	}
	if !r.SaleDate.IsZero() {
		t := r.SaleDate
		dto.SaleDate = &t
	}
	return dto
}

func toSaleDTO(s ledger.Sale) SaleDTO {
	dto := SaleDTO{
		ID:             int64(s.ID),
		SaleNo:         s.SaleNo,
		CustomerID:     s.CustomerID,
		TotalAmount:    s.TotalAmount,
		DiscountAmount: s.DiscountAmount,
		NetAmount:      s.NetAmount,
		PaymentMethod:  s.PaymentMethod.String(),
		SaleDate:       s.SaleDate,
		CashierName:    s.CashierName,
		Items:          make([]SaleLineDTO, 0, len(s.Items)),
	}
	for _, it := range s.Items {
		dto.Items = append(dto.Items, SaleLineDTO{
			ProductID:   int64(it.ProductID),
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			TotalAmount: it.TotalAmount,
		})
	}
	return dto
}

func toMovementDTO(m ledger.StockMovement) MovementDTO {
	return MovementDTO{
		ID:            string(m.ID),
		ProductID:     int64(m.ProductID),
		Kind:          string(m.Kind),
		Delta:         m.Delta,
		QuantityAfter: m.QuantityAfter,
		Reference:     m.Reference,
		CreatedAt:     m.CreatedAt,
	}
}

func toStockLevelDTO(l ledger.StockLevel) StockLevelDTO {
	return StockLevelDTO{
		ProductID:  int64(l.ProductID),
		Quantity:   l.Quantity,
		MinStock:   l.MinStock,
		ExpiryDate: l.ExpiryDate,
		BatchNo:    l.BatchNo,
	}
}
