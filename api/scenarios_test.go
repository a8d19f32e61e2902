package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyskillman/shopledger/factory"
)

func TestListScenarios(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := do(t, router, http.MethodGet, "/api/scenarios/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]ScenarioDTO](t, rec)
	require.Len(t, list, 3)
	assert.Equal(t, "corner-shop", list[0].ID)
}

func TestScenarioCatalogsAreValid(t *testing.T) {
	f := factory.NewCatalogFactory()
	now := time.Now()

	for name, js := range map[string]string{
		"corner-shop":  cornerShopJSON(now),
		"smoothie-bar": smoothieBarJSON(now),
	} {
		_, err := f.ParseCatalog(js)
		assert.NoError(t, err, name)
	}
}

func TestLoadScenario_CornerShop(t *testing.T) {
	// GIVEN: A fresh server
	router, _ := newTestRouter(t)

	// WHEN: Loading the corner shop
	rec := do(t, router, http.MethodPost, "/api/scenarios/load", map[string]string{"scenario_id": "corner-shop"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// THEN: Chips are low, yogurt is out and expired
	rec = do(t, router, http.MethodGet, "/api/inventory/low-stock-alerts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	low := decode[[]LowStockAlertDTO](t, rec)
	require.Len(t, low, 2)
	levels := map[string]string{}
	for _, a := range low {
		levels[a.ProductName] = a.AlertLevel
	}
	assert.Equal(t, "low_stock", levels["Potato Chips"])
	assert.Equal(t, "out_of_stock", levels["Plain Yogurt"])

	rec = do(t, router, http.MethodGet, "/api/inventory/expiry-alerts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	expiring := decode[[]ExpiryAlertDTO](t, rec)
	require.Len(t, expiring, 3)
	assert.Equal(t, "Plain Yogurt", expiring[0].ProductName)
	assert.Equal(t, "expired", expiring[0].AlertLevel)

	rec = do(t, router, http.MethodGet, "/api/scenarios/current", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "corner-shop", decode[ScenarioDTO](t, rec).ID)
}

func TestLoadScenario_BusyDay(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := do(t, router, http.MethodPost, "/api/scenarios/load", map[string]string{"scenario_id": "busy-day"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, router, http.MethodGet, "/api/pos/today-sales", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	today := decode[TodaySalesDTO](t, rec)
	assert.Equal(t, 4, today.SalesCount)
	// 130 + (60 + 10 - 5) + (65 + 60) + 30
	assertDec(t, "350", today.TotalSales)

	// Reloading resets the data first
	rec = do(t, router, http.MethodPost, "/api/scenarios/load", map[string]string{"scenario_id": "smoothie-bar"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = do(t, router, http.MethodGet, "/api/pos/today-sales", nil)
	assert.Equal(t, 0, decode[TodaySalesDTO](t, rec).SalesCount)

	rec = do(t, router, http.MethodGet, "/api/inventory/status", nil)
	assert.Len(t, decode[[]InventoryStatusDTO](t, rec), 7)
}

func TestLoadScenario_Unknown(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := do(t, router, http.MethodPost, "/api/scenarios/load", map[string]string{"scenario_id": "moon-base"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/scenarios/current", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "null\n", rec.Body.String())
}
