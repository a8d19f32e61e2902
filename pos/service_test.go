package pos_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyskillman/shopledger/ledger"
	"github.com/copyskillman/shopledger/ledger/store"
	"github.com/copyskillman/shopledger/pos"
	"github.com/copyskillman/shopledger/store/sqlite"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var saleTime = time.Date(2026, time.March, 10, 9, 30, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertDec(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), append([]any{"want %s, got %s", want, got.String()}, msgAndArgs...)...)
}

// forEachStore runs fn against the in-memory and the SQLite backends.
func forEachStore(t *testing.T, fn func(t *testing.T, st ledger.TxStore)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, store.NewTxMemory())
	})
	t.Run("sqlite", func(t *testing.T) {
		st, err := sqlite.New(":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { st.Close() })
		fn(t, st)
	})
}

func newService(st ledger.TxStore, opts pos.Options) *pos.Service {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return saleTime }
	}
	return pos.NewService(st, opts)
}

// addProduct saves p and gives it qty on hand with the given threshold.
func addProduct(t *testing.T, svc *pos.Service, p ledger.Product, qty, minStock string) ledger.ProductID {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, svc.Store().SaveProduct(ctx, &p))
	if q := dec(qty); q.IsPositive() {
		_, err := svc.ReceiveStock(ctx, p.ID, q, "opening")
		require.NoError(t, err)
	}
	_, err := svc.ConfigureStock(ctx, p.ID, ledger.Settings{MinStock: dec(minStock)})
	require.NoError(t, err)
	return p.ID
}

func product(name, price string) ledger.Product {
	return ledger.Product{Name: name, Price: dec(price), Unit: "pcs", IsActive: true}
}

func sale(lines ...pos.SaleLine) pos.SaleRequest {
	return pos.SaleRequest{Items: lines, DiscountAmount: decimal.Zero, PaymentMethod: ledger.PaymentCash, CashierName: "Pim"}
}

func line(id ledger.ProductID, qty string) pos.SaleLine {
	return pos.SaleLine{ProductID: id, Quantity: dec(qty)}
}

func available(t *testing.T, svc *pos.Service, id ledger.ProductID) decimal.Decimal {
	t.Helper()
	q, err := svc.Ledger().Available(context.Background(), id)
	require.NoError(t, err)
	return q
}

func movementCount(t *testing.T, svc *pos.Service, id ledger.ProductID) int {
	t.Helper()
	ms, err := svc.MovementHistory(context.Background(), id)
	require.NoError(t, err)
	return len(ms)
}

func todaysSales(t *testing.T, svc *pos.Service) *pos.DailySummary {
	t.Helper()
	summary, err := svc.TodaySales(context.Background())
	require.NoError(t, err)
	return summary
}

// =============================================================================
// PROCESS SALE - HAPPY PATH
// =============================================================================

func TestProcessSale_PricesAndDebits(t *testing.T) {
	forEachStore(t, func(t *testing.T, st ledger.TxStore) {
		// GIVEN: Product B at 50.00 with 10 on hand
		svc := newService(st, pos.Options{})
		ctx := context.Background()
		b := addProduct(t, svc, product("Product B", "50.00"), "10", "0")

		// WHEN: Selling 2 with a 10.00 discount by card
		req := sale(line(b, "2"))
		req.DiscountAmount = dec("10")
		req.PaymentMethod = ledger.PaymentCard
		res := svc.ProcessSale(ctx, req)

		// THEN: Totals, number and stock line up
		require.True(t, res.Success, res.Message)
		assert.Equal(t, "Sale completed successfully", res.Message)
		assert.Equal(t, pos.FailureNone, res.Failure)
		assert.Equal(t, "RC202603100001", res.SaleNo)
		assertDec(t, "100", res.TotalAmount)
		assertDec(t, "90", res.NetAmount)
		assert.True(t, res.SaleDate.Equal(saleTime))
		assertDec(t, "8", available(t, svc, b))

		movements, err := svc.MovementHistory(ctx, b)
		require.NoError(t, err)
		require.Len(t, movements, 2)
		out := movements[1]
		assert.Equal(t, ledger.MovementOut, out.Kind)
		assertDec(t, "-2", out.Delta)
		assert.Equal(t, "Sale: RC202603100001", out.Reference)

		recorded, err := svc.GetSale(ctx, res.SaleID)
		require.NoError(t, err)
		assert.Equal(t, res.SaleNo, recorded.SaleNo)
		assert.Equal(t, ledger.PaymentCard, recorded.PaymentMethod)
		assert.Equal(t, "Pim", recorded.CashierName)
		assertDec(t, "10", recorded.DiscountAmount)
		require.Len(t, recorded.Items, 1)
		assert.Equal(t, "Product B", recorded.Items[0].ProductName)
		assertDec(t, "50", recorded.Items[0].UnitPrice)
		assertDec(t, "100", recorded.Items[0].TotalAmount)
	})
}

func TestProcessSale_ItemsKeepPriceSnapshot(t *testing.T) {
	forEachStore(t, func(t *testing.T, st ledger.TxStore) {
		svc := newService(st, pos.Options{})
		ctx := context.Background()
		p := product("Cola", "15.00")
		id := addProduct(t, svc, p, "10", "0")

		res := svc.ProcessSale(ctx, sale(line(id, "1")))
		require.True(t, res.Success, res.Message)

		// Reprice and rename after the sale
		p.ID = id
		p.Name = "Cola Zero"
		p.Price = dec("18.00")
		require.NoError(t, svc.Store().SaveProduct(ctx, &p))

		recorded, err := svc.GetSale(ctx, res.SaleID)
		require.NoError(t, err)
		require.Len(t, recorded.Items, 1)
		assert.Equal(t, "Cola", recorded.Items[0].ProductName)
		assertDec(t, "15", recorded.Items[0].UnitPrice)
	})
}

func TestProcessSale_RecipeDebitsIngredients(t *testing.T) {
	forEachStore(t, func(t *testing.T, st ledger.TxStore) {
		// GIVEN: A smoothie needing 200g of strawberries, 500g on hand
		svc := newService(st, pos.Options{})
		ctx := context.Background()
		strawberry := addProduct(t, svc, product("Strawberries", "0"), "500", "100")
		milk := addProduct(t, svc, product("Milk", "0"), "1000", "0")
		sm := product("Strawberry Smoothie", "65.00")
		sm.IsRecipeBased = true
		smoothie := addProduct(t, svc, sm, "20", "0")
		require.NoError(t, st.SaveRecipe(ctx, ledger.Recipe{ProductID: smoothie, IngredientID: strawberry, QuantityNeeded: dec("200"), Unit: "g"}))
		require.NoError(t, st.SaveRecipe(ctx, ledger.Recipe{ProductID: smoothie, IngredientID: milk, QuantityNeeded: dec("150"), Unit: "ml"}))

		// WHEN: Selling one smoothie
		res := svc.ProcessSale(ctx, sale(line(smoothie, "1")))

		// THEN: Smoothie and both ingredients are debited
		require.True(t, res.Success, res.Message)
		assertDec(t, "19", available(t, svc, smoothie))
		assertDec(t, "300", available(t, svc, strawberry))
		assertDec(t, "850", available(t, svc, milk))

		movements, err := svc.MovementHistory(ctx, strawberry)
		require.NoError(t, err)
		require.Len(t, movements, 2)
		use := movements[1]
		assert.Equal(t, ledger.MovementRecipeUse, use.Kind)
		assertDec(t, "-200", use.Delta)
		assertDec(t, "300", use.QuantityAfter)
		assert.Contains(t, use.Reference, res.SaleNo)

		// Two smoothies scale the ingredients
		res = svc.ProcessSale(ctx, sale(line(smoothie, "2")))
		require.True(t, res.Success, res.Message)
		assertDec(t, "-100", available(t, svc, strawberry), "ingredients are not pre-validated")
		assertDec(t, "550", available(t, svc, milk))
	})
}

func TestProcessSale_DebitsEveryLine(t *testing.T) {
	forEachStore(t, func(t *testing.T, st ledger.TxStore) {
		svc := newService(st, pos.Options{})
		ctx := context.Background()
		cola := addProduct(t, svc, product("Cola", "15"), "10", "0")
		chips := addProduct(t, svc, product("Chips", "20"), "10", "0")

		// Duplicate lines are separate sale items but share one stock check
		res := svc.ProcessSale(ctx, sale(line(chips, "1"), line(cola, "2"), line(chips, "3")))
		require.True(t, res.Success, res.Message)
		// 1x20 + 2x15 + 3x20
		assertDec(t, "110", res.TotalAmount)
		assertDec(t, "8", available(t, svc, cola))
		assertDec(t, "6", available(t, svc, chips))

		recorded, err := svc.GetSale(ctx, res.SaleID)
		require.NoError(t, err)
		require.Len(t, recorded.Items, 3)
		assertDec(t, "20", recorded.Items[0].TotalAmount)
		assertDec(t, "30", recorded.Items[1].TotalAmount)
		assertDec(t, "60", recorded.Items[2].TotalAmount)
		assert.Equal(t, chips, recorded.Items[2].ProductID)
		assert.Equal(t, 3, movementCount(t, svc, chips), "opening plus one out per line")
	})
}

// =============================================================================
// PROCESS SALE - FAILURES ROLL BACK
// =============================================================================

func TestProcessSale_InsufficientStockRollsBack(t *testing.T) {
	forEachStore(t, func(t *testing.T, st ledger.TxStore) {
		// GIVEN: A with 5, B with 1
		svc := newService(st, pos.Options{})
		ctx := context.Background()
		a := addProduct(t, svc, product("Product A", "10"), "5", "0")
		b := addProduct(t, svc, product("Product B", "20"), "1", "0")

		// WHEN: Asking for 2 A and 3 B
		res := svc.ProcessSale(ctx, sale(line(a, "2"), line(b, "3")))

		// THEN: Rejected naming B, nothing recorded
		require.False(t, res.Success)
		assert.Equal(t, pos.FailureInsufficientStock, res.Failure)
		assert.Contains(t, res.Message, "Product B")

		var short *ledger.InsufficientStockError
		require.ErrorAs(t, res.Err, &short)
		assert.Equal(t, b, short.ProductID)
		assertDec(t, "1", short.Available)
		assertDec(t, "3", short.Requested)

		assertDec(t, "5", available(t, svc, a))
		assertDec(t, "1", available(t, svc, b))
		assert.Equal(t, 1, movementCount(t, svc, a))
		assert.Equal(t, 1, movementCount(t, svc, b))
		assert.Equal(t, 0, todaysSales(t, svc).SalesCount)

		// The next good sale still gets the first number of the day
		ok := svc.ProcessSale(ctx, sale(line(a, "1")))
		require.True(t, ok.Success, ok.Message)
		assert.Equal(t, "RC202603100001", ok.SaleNo)
	})
}

func TestProcessSale_DuplicateLinesCheckedTogether(t *testing.T) {
	forEachStore(t, func(t *testing.T, st ledger.TxStore) {
		svc := newService(st, pos.Options{})
		ctx := context.Background()
		cola := addProduct(t, svc, product("Cola", "15"), "3", "0")

		res := svc.ProcessSale(ctx, sale(line(cola, "2"), line(cola, "2")))
		require.False(t, res.Success)
		assert.Equal(t, pos.FailureInsufficientStock, res.Failure)
		assertDec(t, "3", available(t, svc, cola))
	})
}

func TestProcessSale_IngredientShortfallRollsBack(t *testing.T) {
	forEachStore(t, func(t *testing.T, st ledger.TxStore) {
		// GIVEN: A floor on stock and too few strawberries for one smoothie
		svc := newService(st, pos.Options{ForbidNegative: true})
		ctx := context.Background()
		strawberry := addProduct(t, svc, product("Strawberries", "0"), "100", "0")
		sm := product("Strawberry Smoothie", "65.00")
		sm.IsRecipeBased = true
		smoothie := addProduct(t, svc, sm, "5", "0")
		require.NoError(t, st.SaveRecipe(ctx, ledger.Recipe{ProductID: smoothie, IngredientID: strawberry, QuantityNeeded: dec("200")}))

		// WHEN: Selling one
		res := svc.ProcessSale(ctx, sale(line(smoothie, "1")))

		// THEN: The smoothie debit already applied is undone too
		require.False(t, res.Success)
		assert.Equal(t, pos.FailureInsufficientStock, res.Failure)
		assertDec(t, "5", available(t, svc, smoothie))
		assertDec(t, "100", available(t, svc, strawberry))
		assert.Equal(t, 1, movementCount(t, svc, smoothie))
		assert.Equal(t, 0, todaysSales(t, svc).SalesCount)
	})
}

func TestProcessSale_InvalidRequest(t *testing.T) {
	forEachStore(t, func(t *testing.T, st ledger.TxStore) {
		svc := newService(st, pos.Options{})
		ctx := context.Background()
		cola := addProduct(t, svc, product("Cola", "15"), "10", "0")

		badMethod := sale(line(cola, "1"))
		badMethod.PaymentMethod = ledger.PaymentMethod(42)

		cases := map[string]pos.SaleRequest{
			"no items":          sale(),
			"zero quantity":     sale(line(cola, "0")),
			"negative quantity": sale(line(cola, "1"), line(cola, "-1")),
			"payment method":    badMethod,
		}
		for name, req := range cases {
			res := svc.ProcessSale(ctx, req)
			assert.False(t, res.Success, name)
			assert.Equal(t, pos.FailureInvalidRequest, res.Failure, name)
			assert.ErrorIs(t, res.Err, ledger.ErrInvalidRequest, name)
		}

		assertDec(t, "10", available(t, svc, cola))
		assert.Equal(t, 0, todaysSales(t, svc).SalesCount)
	})
}

func TestProcessSale_SkipsUnknownAndInactiveProducts(t *testing.T) {
	forEachStore(t, func(t *testing.T, st ledger.TxStore) {
		// GIVEN: Stock rows for a product missing from the catalog and an inactive one
		svc := newService(st, pos.Options{})
		ctx := context.Background()
		cola := addProduct(t, svc, product("Cola", "15"), "10", "0")
		retired := product("Retired", "99")
		retired.IsActive = false
		old := addProduct(t, svc, retired, "10", "0")
		_, err := svc.Ledger().Apply(ctx, ledger.Receive(999, dec("10"), "orphan"))
		require.NoError(t, err)

		// WHEN: All three are on the ticket
		res := svc.ProcessSale(ctx, sale(line(cola, "1"), line(999, "1"), line(old, "1")))

		// THEN: Only the active catalog product is sold and debited
		require.True(t, res.Success, res.Message)
		assertDec(t, "15", res.TotalAmount)
		assertDec(t, "9", available(t, svc, cola))
		assertDec(t, "10", available(t, svc, 999))
		assertDec(t, "10", available(t, svc, old))

		recorded, err := svc.GetSale(ctx, res.SaleID)
		require.NoError(t, err)
		require.Len(t, recorded.Items, 1)
		assert.Equal(t, cola, recorded.Items[0].ProductID)
	})
}

func TestProcessSale_OnlyInactiveLinesRecordsEmptySale(t *testing.T) {
	forEachStore(t, func(t *testing.T, st ledger.TxStore) {
		// GIVEN: An inactive product that is still in stock
		svc := newService(st, pos.Options{})
		ctx := context.Background()
		retired := product("Retired", "99")
		retired.IsActive = false
		old := addProduct(t, svc, retired, "5", "0")

		// WHEN: It is the only line on the ticket
		res := svc.ProcessSale(ctx, sale(line(old, "2")))

		// THEN: An empty sale is recorded and takes a number
		require.True(t, res.Success, res.Message)
		assert.Equal(t, "RC202603100001", res.SaleNo)
		assertDec(t, "0", res.TotalAmount)
		assertDec(t, "5", available(t, svc, old))

		recorded, err := svc.GetSale(ctx, res.SaleID)
		require.NoError(t, err)
		assert.Empty(t, recorded.Items)

		next := svc.ProcessSale(ctx, sale(line(old, "1")))
		require.True(t, next.Success, next.Message)
		assert.Equal(t, "RC202603100002", next.SaleNo)
	})
}

// brokenInserts fails every sale insert inside a unit.
type brokenInserts struct {
	*store.TxMemory
}

func (b brokenInserts) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	return b.TxMemory.WithTx(ctx, func(tx ledger.Store) error {
		return fn(brokenInsertView{tx})
	})
}

type brokenInsertView struct {
	ledger.Store
}

func (brokenInsertView) InsertSale(context.Context, *ledger.Sale) error {
	return errors.New("disk I/O error")
}

func TestProcessSale_PersistenceFailure(t *testing.T) {
	st := brokenInserts{store.NewTxMemory()}
	svc := newService(st, pos.Options{})
	ctx := context.Background()
	cola := addProduct(t, svc, product("Cola", "15"), "10", "0")

	res := svc.ProcessSale(ctx, sale(line(cola, "2")))

	require.False(t, res.Success)
	assert.Equal(t, pos.FailurePersistenceFailure, res.Failure)
	assert.ErrorIs(t, res.Err, ledger.ErrPersistence)
	assert.True(t, ledger.IsRetryable(res.Err))
	assertDec(t, "10", available(t, svc, cola))
	assert.Equal(t, 1, movementCount(t, svc, cola))
}

// =============================================================================
// PROCESS SALE - CONCURRENCY
// =============================================================================

func TestProcessSale_ConcurrentBuyersOfLastStock(t *testing.T) {
	forEachStore(t, func(t *testing.T, st ledger.TxStore) {
		// GIVEN: 5 units and 8 tills each wanting all 5
		svc := newService(st, pos.Options{})
		ctx := context.Background()
		cola := addProduct(t, svc, product("Cola", "15"), "5", "0")

		const tills = 8
		results := make([]pos.SaleResult, tills)
		var wg sync.WaitGroup
		for i := 0; i < tills; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i] = svc.ProcessSale(ctx, sale(line(cola, "5")))
			}(i)
		}
		wg.Wait()

		// THEN: Exactly one wins, the rest see insufficient stock
		wins := 0
		for _, res := range results {
			if res.Success {
				wins++
				continue
			}
			assert.Equal(t, pos.FailureInsufficientStock, res.Failure, res.Message)
		}
		assert.Equal(t, 1, wins)
		assertDec(t, "0", available(t, svc, cola))
		assert.Equal(t, 1, todaysSales(t, svc).SalesCount)
	})
}

func TestProcessSale_ConcurrentSaleNumbersAreUniqueAndGapFree(t *testing.T) {
	forEachStore(t, func(t *testing.T, st ledger.TxStore) {
		svc := newService(st, pos.Options{})
		ctx := context.Background()
		cola := addProduct(t, svc, product("Cola", "15"), "100", "0")

		const tills = 20
		numbers := make([]string, tills)
		var wg sync.WaitGroup
		for i := 0; i < tills; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				res := svc.ProcessSale(ctx, sale(line(cola, "1")))
				if res.Success {
					numbers[i] = res.SaleNo
				}
			}(i)
		}
		wg.Wait()

		sort.Strings(numbers)
		for i, n := range numbers {
			assert.Equal(t, pos.FormatSaleNo("20260310", i+1), n)
		}
		assertDec(t, "80", available(t, svc, cola))
	})
}

// =============================================================================
// PRE-SALE HELPERS
// =============================================================================

func TestValidateStockAvailability(t *testing.T) {
	forEachStore(t, func(t *testing.T, st ledger.TxStore) {
		svc := newService(st, pos.Options{})
		ctx := context.Background()
		cola := addProduct(t, svc, product("Cola", "15"), "3", "0")

		ok, err := svc.ValidateStockAvailability(ctx, []pos.SaleLine{line(cola, "3")})
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = svc.ValidateStockAvailability(ctx, []pos.SaleLine{line(cola, "2"), line(cola, "2")})
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = svc.ValidateStockAvailability(ctx, []pos.SaleLine{line(12345, "1")})
		require.NoError(t, err)
		assert.False(t, ok, "untracked products have nothing on hand")

		assert.Equal(t, 1, movementCount(t, svc, cola), "validation is read-only")
	})
}

func TestCalculateTotal(t *testing.T) {
	forEachStore(t, func(t *testing.T, st ledger.TxStore) {
		svc := newService(st, pos.Options{})
		ctx := context.Background()
		b := addProduct(t, svc, product("Product B", "50.00"), "10", "0")
		water := addProduct(t, svc, product("Water", "10.50"), "10", "0")

		totals, err := svc.CalculateTotal(ctx, []pos.SaleLine{line(b, "2"), line(water, "1"), line(777, "4")}, dec("10"))
		require.NoError(t, err)
		assertDec(t, "110.5", totals.Total)
		assertDec(t, "10", totals.Discount)
		assertDec(t, "100.5", totals.Net)

		assertDec(t, "10", available(t, svc, b), "pricing records nothing")
		assert.Equal(t, 0, todaysSales(t, svc).SalesCount)
	})
}
