/*
Package factory provides JSON to Go catalog conversion.

PURPOSE:
  Converts a JSON catalog (products, recipes, opening stock) into ledger
  types and seeds a store with it. Opening stock is booked through the
  ledger as `in` movements, so the movement log explains every quantity
  from the first unit.

JSON SCHEMA:
  {
    "products": [
      {
        "key": "strawberry",
        "name": "Strawberry",
        "barcode": "880100",
        "unit": "g",
        "price": "0.00",
        "cost": "0.12",
        "has_expiry": true,
        "stock": {"quantity": "2000", "min_stock": "500",
                  "expiry_date": "2026-10-20", "batch_no": "B-17"}
      },
      {
        "key": "smoothie",
        "name": "Strawberry Smoothie",
        "barcode": "990001",
        "unit": "cup",
        "price": "65.00",
        "is_recipe_based": true,
        "stock": {"quantity": "100"}
      }
    ],
    "recipes": [
      {"product": "smoothie", "ingredient": "strawberry",
       "quantity_needed": "200", "unit": "g"}
    ]
  }

  - key defaults to barcode, then name; recipes reference keys
  - id is optional; omitted ids are assigned by the store
  - is_active defaults to true
  - decimals may be JSON numbers or strings

USAGE:
  f := factory.NewCatalogFactory()
  catalog, err := f.ParseCatalog(jsonString)
  result, err := f.Import(ctx, store, lg, catalog)

SEE ALSO:
  - ledger/types.go: Product, Recipe, StockLevel
  - api/scenarios.go: Demo catalogs
*/
package factory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/copyskillman/shopledger/ledger"
	"github.com/shopspring/decimal"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// CatalogJSON is the JSON representation of a catalog.
type CatalogJSON struct {
	Products []ProductJSON `json:"products"`
	Recipes  []RecipeJSON  `json:"recipes,omitempty"`
}

// ProductJSON represents one product and its optional opening stock.
type ProductJSON struct {
	Key           string          `json:"key,omitempty"`
	ID            int64           `json:"id,omitempty"`
	Name          string          `json:"name"`
	Barcode       string          `json:"barcode,omitempty"`
	Unit          string          `json:"unit,omitempty"`
	Price         decimal.Decimal `json:"price"`
	Cost          decimal.Decimal `json:"cost"`
	IsRecipeBased bool            `json:"is_recipe_based,omitempty"`
	HasExpiry     bool            `json:"has_expiry,omitempty"`
	IsActive      *bool           `json:"is_active,omitempty"`
	Stock         *StockJSON      `json:"stock,omitempty"`
}

// StockJSON represents opening stock and level settings.
type StockJSON struct {
	Quantity   decimal.Decimal `json:"quantity"`
	MinStock   decimal.Decimal `json:"min_stock"`
	ExpiryDate string          `json:"expiry_date,omitempty"` // 2006-01-02 or RFC3339
	BatchNo    string          `json:"batch_no,omitempty"`
}

// RecipeJSON links a composite product to one ingredient by key.
type RecipeJSON struct {
	Product        string          `json:"product"`
	Ingredient     string          `json:"ingredient"`
	QuantityNeeded decimal.Decimal `json:"quantity_needed"`
	Unit           string          `json:"unit,omitempty"`
}

// =============================================================================
// CATALOG FACTORY
// =============================================================================

// CatalogFactory converts JSON catalogs to ledger types.
type CatalogFactory struct {
	// OpeningReference is the movement reference used for opening stock.
	OpeningReference string
}

// NewCatalogFactory creates a new catalog factory.
func NewCatalogFactory() *CatalogFactory {
	return &CatalogFactory{OpeningReference: "Opening stock"}
}

// ParseCatalog parses and validates a JSON catalog.
func (f *CatalogFactory) ParseCatalog(jsonStr string) (*CatalogJSON, error) {
	var c CatalogJSON
	if err := json.Unmarshal([]byte(jsonStr), &c); err != nil {
		return nil, fmt.Errorf("invalid catalog JSON: %w", err)
	}
	if err := f.Validate(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks keys, references and quantities, and fills default keys.
func (f *CatalogFactory) Validate(c *CatalogJSON) error {
	if len(c.Products) == 0 {
		return fmt.Errorf("catalog has no products")
	}

	keys := make(map[string]*ProductJSON, len(c.Products))
	for i := range c.Products {
		p := &c.Products[i]
		if p.Name == "" {
			return fmt.Errorf("product %d: name is required", i+1)
		}
		if p.Key == "" {
			p.Key = p.Barcode
		}
		if p.Key == "" {
			p.Key = p.Name
		}
		if _, dup := keys[p.Key]; dup {
			return fmt.Errorf("product %q: duplicate key", p.Key)
		}
		keys[p.Key] = p
		if p.Price.IsNegative() || p.Cost.IsNegative() {
			return fmt.Errorf("product %q: price and cost must not be negative", p.Key)
		}
		if p.Stock != nil {
			if p.Stock.Quantity.IsNegative() || p.Stock.MinStock.IsNegative() {
				return fmt.Errorf("product %q: stock quantities must not be negative", p.Key)
			}
			if _, err := parseDate(p.Stock.ExpiryDate); err != nil {
				return fmt.Errorf("product %q: %w", p.Key, err)
			}
		}
	}

	for i, r := range c.Recipes {
		composite, ok := keys[r.Product]
		if !ok {
			return fmt.Errorf("recipe %d: unknown product %q", i+1, r.Product)
		}
		if !composite.IsRecipeBased {
			return fmt.Errorf("recipe %d: product %q is not recipe based", i+1, r.Product)
		}
		if _, ok := keys[r.Ingredient]; !ok {
			return fmt.Errorf("recipe %d: unknown ingredient %q", i+1, r.Ingredient)
		}
		if r.Product == r.Ingredient {
			return fmt.Errorf("recipe %d: product %q cannot be its own ingredient", i+1, r.Product)
		}
		if !r.QuantityNeeded.IsPositive() {
			return fmt.Errorf("recipe %d: quantity_needed must be positive", i+1)
		}
	}
	return nil
}

// ToProduct converts a JSON product to a ledger.Product.
func (f *CatalogFactory) ToProduct(p ProductJSON) ledger.Product {
	active := true
	if p.IsActive != nil {
		active = *p.IsActive
	}
	return ledger.Product{
		ID:            ledger.ProductID(p.ID),
		Name:          p.Name,
		Barcode:       p.Barcode,
		Unit:          p.Unit,
		Price:         p.Price,
		Cost:          p.Cost,
		IsRecipeBased: p.IsRecipeBased,
		HasExpiry:     p.HasExpiry,
		IsActive:      active,
	}
}

// =============================================================================
// IMPORT
// =============================================================================

// ImportResult reports what an import wrote.
type ImportResult struct {
	Products int                         `json:"products"`
	Recipes  int                         `json:"recipes"`
	Stocked  int                         `json:"stocked"`
	IDs      map[string]ledger.ProductID `json:"ids"`
}

// Import writes a validated catalog in one transaction. lg supplies the
// ledger settings (clock, floor) used to book opening stock.
func (f *CatalogFactory) Import(ctx context.Context, store ledger.TxStore, lg *ledger.Ledger, c *CatalogJSON) (*ImportResult, error) {
	result := &ImportResult{IDs: make(map[string]ledger.ProductID, len(c.Products))}

	err := store.WithTx(ctx, func(tx ledger.Store) error {
		txLedger := lg.Within(tx)

		for _, pj := range c.Products {
			p := f.ToProduct(pj)
			if err := tx.SaveProduct(ctx, &p); err != nil {
				return fmt.Errorf("save product %q: %w", pj.Key, err)
			}
			result.IDs[pj.Key] = p.ID
			result.Products++
		}

		for _, rj := range c.Recipes {
			r := ledger.Recipe{
				ProductID:      result.IDs[rj.Product],
				IngredientID:   result.IDs[rj.Ingredient],
				QuantityNeeded: rj.QuantityNeeded,
				Unit:           rj.Unit,
			}
			if err := tx.SaveRecipe(ctx, r); err != nil {
				return fmt.Errorf("save recipe %q -> %q: %w", rj.Product, rj.Ingredient, err)
			}
			result.Recipes++
		}

		for _, pj := range c.Products {
			if pj.Stock == nil {
				continue
			}
			id := result.IDs[pj.Key]
			expiry, _ := parseDate(pj.Stock.ExpiryDate)
			if _, err := txLedger.Configure(ctx, id, ledger.Settings{
				MinStock:   pj.Stock.MinStock,
				ExpiryDate: expiry,
				BatchNo:    pj.Stock.BatchNo,
			}); err != nil {
				return err
			}
			if pj.Stock.Quantity.IsPositive() {
				if _, err := txLedger.Apply(ctx, ledger.Receive(id, pj.Stock.Quantity, f.OpeningReference)); err != nil {
					return err
				}
			}
			result.Stocked++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid expiry_date %q (want YYYY-MM-DD or RFC3339)", s)
}
