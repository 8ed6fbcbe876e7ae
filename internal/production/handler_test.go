package production_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"kooperatif-backend/internal/auth"
	"kooperatif-backend/internal/config"
	"kooperatif-backend/internal/database"
	"kooperatif-backend/internal/models"
	"kooperatif-backend/internal/production"
	"kooperatif-backend/internal/router"
	"kooperatif-backend/internal/stock"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var testCfg = &config.Config{
	HTTPPort:    "8080",
	JWTSecret:   "test-secret-test-secret-test-secret!",
	CORSOrigins: "http://localhost:5173",
}

func setupApp(t *testing.T) *fiber.App {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	database.DB = db
	return router.New(testCfg)
}

type fixtures struct {
	token   string
	member  models.User
	product models.Product
	season  models.Season
}

func seedBase(t *testing.T) fixtures {
	t.Helper()
	manager := models.User{Name: "Yönetici", Email: "yonetici@koop.local", PasswordHash: "x", Role: models.RoleManager}
	require.NoError(t, database.DB.Create(&manager).Error)
	member := models.User{Name: "Ahmet Üye", Email: "ahmet@koop.local", PasswordHash: "x", Role: models.RoleMember}
	require.NoError(t, database.DB.Create(&member).Error)
	product := models.Product{Name: "Süt", Unit: "litre"}
	require.NoError(t, database.DB.Create(&product).Error)
	season := models.Season{Name: "2026 Yaz", StartDate: time.Now(), EndDate: time.Now().AddDate(0, 6, 0)}
	require.NoError(t, database.DB.Create(&season).Error)

	token, err := auth.GenerateToken(testCfg.JWTSecret, &manager)
	require.NoError(t, err)

	return fixtures{token: token, member: member, product: product, season: season}
}

func doReq(t *testing.T, app *fiber.App, method, path, token string, body interface{}) *http.Response {
	t.Helper()
	var req *http.Request
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		req = httptest.NewRequest(method, path, bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestCreateProductionAddsInventory(t *testing.T) {
	app := setupApp(t)
	fx := seedBase(t)

	body := map[string]interface{}{
		"user_id":    fx.member.ID,
		"product_id": fx.product.ID,
		"season_id":  fx.season.ID,
		"quantity":   100,
		"unit_price": 20,
		"date":       "2026-07-15",
	}
	resp := doReq(t, app, "POST", "/api/productions", fx.token, body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created production.ProductionResponse
	decode(t, resp, &created)
	require.Equal(t, 2000.0, created.TotalPrice)
	require.Equal(t, "2026-07-15", created.Date)

	// Kova tembel oluşur, envanter artar, nakit değişmez
	s, err := stock.Get(database.DB, fx.product.ID, fx.season.ID)
	require.NoError(t, err)
	require.True(t, s.Quantity.Equal(decimal.NewFromInt(100)), "quantity = %s", s.Quantity)
	require.True(t, s.TotalPrice.Equal(decimal.NewFromInt(2000)))
	require.True(t, s.Cash.IsZero())
}

func TestCreateProductionValidation(t *testing.T) {
	app := setupApp(t)
	fx := seedBase(t)

	base := func() map[string]interface{} {
		return map[string]interface{}{
			"user_id":    fx.member.ID,
			"product_id": fx.product.ID,
			"season_id":  fx.season.ID,
			"quantity":   100,
			"unit_price": 20,
			"date":       "2026-07-15",
		}
	}

	b := base()
	b["quantity"] = -1
	resp := doReq(t, app, "POST", "/api/productions", fx.token, b)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	b = base()
	b["date"] = "15.07.2026"
	resp = doReq(t, app, "POST", "/api/productions", fx.token, b)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	b = base()
	b["season_id"] = 9999
	resp = doReq(t, app, "POST", "/api/productions", fx.token, b)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUpdateProductionAppliesInventoryDelta(t *testing.T) {
	app := setupApp(t)
	fx := seedBase(t)

	body := map[string]interface{}{
		"user_id":    fx.member.ID,
		"product_id": fx.product.ID,
		"season_id":  fx.season.ID,
		"quantity":   100,
		"unit_price": 20,
		"date":       "2026-07-15",
	}
	resp := doReq(t, app, "POST", "/api/productions", fx.token, body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created production.ProductionResponse
	decode(t, resp, &created)

	// 100 -> 80: envanterden yalnızca fark düşer
	resp = doReq(t, app, "PUT", fmt.Sprintf("/api/productions/%d", created.ID), fx.token,
		map[string]interface{}{"quantity": 80})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var updated production.ProductionResponse
	decode(t, resp, &updated)
	require.Equal(t, 1600.0, updated.TotalPrice)

	s, err := stock.Get(database.DB, fx.product.ID, fx.season.ID)
	require.NoError(t, err)
	require.True(t, s.Quantity.Equal(decimal.NewFromInt(80)), "quantity = %s", s.Quantity)
	require.True(t, s.TotalPrice.Equal(decimal.NewFromInt(1600)))
}

func TestDeleteProductionBlockedWhenPaymentExists(t *testing.T) {
	app := setupApp(t)
	fx := seedBase(t)

	body := map[string]interface{}{
		"user_id":    fx.member.ID,
		"product_id": fx.product.ID,
		"season_id":  fx.season.ID,
		"quantity":   100,
		"unit_price": 20,
		"date":       "2026-07-15",
	}
	resp := doReq(t, app, "POST", "/api/productions", fx.token, body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created production.ProductionResponse
	decode(t, resp, &created)

	// Kovaya nakit koy ve ödeme yap
	require.NoError(t, database.DB.Model(&models.Stock{}).
		Where("product_id = ? AND season_id = ?", fx.product.ID, fx.season.ID).
		Update("cash", decimal.NewFromInt(5000)).Error)
	resp = doReq(t, app, "POST", "/api/payments", fx.token,
		map[string]interface{}{"production_id": created.ID, "amount_paid": 500})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doReq(t, app, "DELETE", fmt.Sprintf("/api/productions/%d", created.ID), fx.token, nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	resp = doReq(t, app, "PUT", fmt.Sprintf("/api/productions/%d", created.ID), fx.token,
		map[string]interface{}{"quantity": 50})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestDeleteProductionReversesInventory(t *testing.T) {
	app := setupApp(t)
	fx := seedBase(t)

	body := map[string]interface{}{
		"user_id":    fx.member.ID,
		"product_id": fx.product.ID,
		"season_id":  fx.season.ID,
		"quantity":   100,
		"unit_price": 20,
		"date":       "2026-07-15",
	}
	resp := doReq(t, app, "POST", "/api/productions", fx.token, body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created production.ProductionResponse
	decode(t, resp, &created)

	resp = doReq(t, app, "DELETE", fmt.Sprintf("/api/productions/%d", created.ID), fx.token, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	s, err := stock.Get(database.DB, fx.product.ID, fx.season.ID)
	require.NoError(t, err)
	require.True(t, s.Quantity.IsZero(), "quantity = %s", s.Quantity)
	require.True(t, s.TotalPrice.IsZero())

	var count int64
	require.NoError(t, database.DB.Model(&models.Production{}).Count(&count).Error)
	require.Equal(t, int64(0), count)
}
