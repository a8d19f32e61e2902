package factory_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyskillman/shopledger/factory"
	"github.com/copyskillman/shopledger/ledger"
	"github.com/copyskillman/shopledger/ledger/store"
	"github.com/copyskillman/shopledger/store/sqlite"
)

const smoothieCatalog = `{
  "products": [
    {"key": "strawberry", "name": "Strawberries", "unit": "g", "price": "0", "cost": 0.12,
     "has_expiry": true,
     "stock": {"quantity": "2000", "min_stock": "500", "expiry_date": "2026-10-20", "batch_no": "B-17"}},
    {"name": "Milk", "barcode": "2000000000039", "unit": "ml", "price": "0", "cost": "0.03",
     "stock": {"quantity": 5000}},
    {"key": "smoothie", "name": "Strawberry Smoothie", "barcode": "990001", "unit": "cup",
     "price": "65.00", "is_recipe_based": true, "stock": {"quantity": "0"}},
    {"name": "Old Stock", "price": "1", "is_active": false}
  ],
  "recipes": [
    {"product": "smoothie", "ingredient": "strawberry", "quantity_needed": "200", "unit": "g"},
    {"product": "smoothie", "ingredient": "2000000000039", "quantity_needed": "150", "unit": "ml"}
  ]
}`

func TestParseCatalog_DefaultsKeys(t *testing.T) {
	f := factory.NewCatalogFactory()

	c, err := f.ParseCatalog(smoothieCatalog)
	require.NoError(t, err)
	require.Len(t, c.Products, 4)
	assert.Equal(t, "strawberry", c.Products[0].Key)
	assert.Equal(t, "2000000000039", c.Products[1].Key, "barcode is the fallback key")
	assert.Equal(t, "Old Stock", c.Products[3].Key, "then name")
	assert.True(t, c.Products[0].Cost.Equal(decimal.RequireFromString("0.12")), "numbers are accepted")

	assert.True(t, f.ToProduct(c.Products[0]).IsActive)
	assert.False(t, f.ToProduct(c.Products[3]).IsActive)
}

func TestParseCatalog_Rejects(t *testing.T) {
	f := factory.NewCatalogFactory()

	cases := map[string]string{
		"malformed":       `{"products": [`,
		"empty":           `{"products": []}`,
		"no name":         `{"products": [{"price": "1"}]}`,
		"duplicate key":   `{"products": [{"name": "A"}, {"name": "A"}]}`,
		"negative price":  `{"products": [{"name": "A", "price": "-1"}]}`,
		"negative stock":  `{"products": [{"name": "A", "stock": {"quantity": "-3"}}]}`,
		"bad expiry":      `{"products": [{"name": "A", "stock": {"quantity": "1", "expiry_date": "tomorrow"}}]}`,
		"unknown product": `{"products": [{"name": "A"}], "recipes": [{"product": "B", "ingredient": "A", "quantity_needed": "1"}]}`,
		"unknown ingredient": `{"products": [{"name": "A", "is_recipe_based": true}],
			"recipes": [{"product": "A", "ingredient": "B", "quantity_needed": "1"}]}`,
		"not recipe based": `{"products": [{"name": "A"}, {"name": "B"}],
			"recipes": [{"product": "A", "ingredient": "B", "quantity_needed": "1"}]}`,
		"self ingredient": `{"products": [{"name": "A", "is_recipe_based": true}],
			"recipes": [{"product": "A", "ingredient": "A", "quantity_needed": "1"}]}`,
		"zero quantity": `{"products": [{"name": "A", "is_recipe_based": true}, {"name": "B"}],
			"recipes": [{"product": "A", "ingredient": "B", "quantity_needed": "0"}]}`,
	}
	for name, js := range cases {
		_, err := f.ParseCatalog(js)
		assert.Error(t, err, name)
	}
}

func TestImport(t *testing.T) {
	backends := map[string]func(t *testing.T) ledger.TxStore{
		"memory": func(t *testing.T) ledger.TxStore { return store.NewTxMemory() },
		"sqlite": func(t *testing.T) ledger.TxStore {
			st, err := sqlite.New(":memory:")
			require.NoError(t, err)
			t.Cleanup(func() { st.Close() })
			return st
		},
	}

	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			// GIVEN: A parsed smoothie catalog
			ctx := context.Background()
			st := open(t)
			lg := ledger.NewLedger(st)
			f := factory.NewCatalogFactory()
			c, err := f.ParseCatalog(smoothieCatalog)
			require.NoError(t, err)

			// WHEN: Importing it
			result, err := f.Import(ctx, st, lg, c)

			// THEN: Products, recipes and opening stock are written
			require.NoError(t, err)
			assert.Equal(t, 4, result.Products)
			assert.Equal(t, 2, result.Recipes)
			assert.Equal(t, 3, result.Stocked)

			strawberry := result.IDs["strawberry"]
			smoothie := result.IDs["smoothie"]
			require.NotZero(t, strawberry)

			level, err := lg.Get(ctx, strawberry)
			require.NoError(t, err)
			require.NotNil(t, level)
			assert.True(t, level.Quantity.Equal(decimal.NewFromInt(2000)))
			assert.True(t, level.MinStock.Equal(decimal.NewFromInt(500)))
			assert.Equal(t, "B-17", level.BatchNo)
			require.NotNil(t, level.ExpiryDate)
			assert.True(t, level.ExpiryDate.Equal(time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC)))

			movements, err := lg.Movements(ctx, strawberry)
			require.NoError(t, err)
			require.Len(t, movements, 1)
			assert.Equal(t, ledger.MovementIn, movements[0].Kind)
			assert.Equal(t, "Opening stock", movements[0].Reference)

			// Zero opening stock provisions a level without a movement
			level, err = lg.Get(ctx, smoothie)
			require.NoError(t, err)
			require.NotNil(t, level)
			assert.True(t, level.Quantity.IsZero())
			movements, err = lg.Movements(ctx, smoothie)
			require.NoError(t, err)
			assert.Empty(t, movements)

			ingredients, err := ledger.NewRecipeResolver(st).IngredientsFor(ctx, smoothie)
			require.NoError(t, err)
			require.Len(t, ingredients, 2)
			assert.Equal(t, strawberry, ingredients[0].ProductID)
		})
	}
}

func TestImport_IsAtomic(t *testing.T) {
	// GIVEN: A catalog whose barcode clashes with an existing product
	ctx := context.Background()
	st, err := sqlite.New(":memory:")
	require.NoError(t, err)
	defer st.Close()
	require.NoError(t, st.SaveProduct(ctx, &ledger.Product{Name: "Existing", Barcode: "990001", IsActive: true}))

	f := factory.NewCatalogFactory()
	c, err := f.ParseCatalog(smoothieCatalog)
	require.NoError(t, err)

	// WHEN: Importing
	_, err = f.Import(ctx, st, ledger.NewLedger(st), c)

	// THEN: Nothing from the catalog is kept
	require.Error(t, err)
	products, err := st.ListProducts(ctx)
	require.NoError(t, err)
	assert.Len(t, products, 1)
	levels, err := st.ListLevels(ctx)
	require.NoError(t, err)
	assert.Empty(t, levels)
}
