package settlement_test

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
	"kooperatif-backend/internal/reconcile"
	"kooperatif-backend/internal/router"
	"kooperatif-backend/internal/settlement"

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

// seedBase - Yönetici + üye + ürün + sezon ve kasasında nakit olan bir kova kurar.
func seedBase(t *testing.T, cash int64) fixtures {
	t.Helper()
	manager := models.User{Name: "Yönetici", Email: "yonetici@koop.local", PasswordHash: "x", Role: models.RoleManager}
	require.NoError(t, database.DB.Create(&manager).Error)
	member := models.User{Name: "Ahmet Üye", Email: "ahmet@koop.local", PasswordHash: "x", Role: models.RoleMember}
	require.NoError(t, database.DB.Create(&member).Error)
	product := models.Product{Name: "Fındık", Unit: "kg"}
	require.NoError(t, database.DB.Create(&product).Error)
	season := models.Season{Name: "2026 Yaz", StartDate: time.Now(), EndDate: time.Now().AddDate(0, 6, 0)}
	require.NoError(t, database.DB.Create(&season).Error)

	bucket := models.Stock{
		ProductID:  product.ID,
		SeasonID:   season.ID,
		Cash:       decimal.NewFromInt(cash),
		Quantity:   decimal.Zero,
		TotalPrice: decimal.Zero,
	}
	require.NoError(t, database.DB.Create(&bucket).Error)

	token, err := auth.GenerateToken(testCfg.JWTSecret, &manager)
	require.NoError(t, err)

	return fixtures{token: token, member: member, product: product, season: season}
}

func createProduction(t *testing.T, fx fixtures, quantity, unitPrice int64) models.Production {
	t.Helper()
	q := decimal.NewFromInt(quantity)
	u := decimal.NewFromInt(unitPrice)
	p := models.Production{
		UserID:     fx.member.ID,
		ProductID:  fx.product.ID,
		SeasonID:   fx.season.ID,
		Quantity:   q,
		UnitPrice:  u,
		TotalPrice: q.Mul(u),
		Date:       time.Now(),
	}
	require.NoError(t, database.DB.Create(&p).Error)
	return p
}

func createFee(t *testing.T, fx fixtures, owed int64) {
	t.Helper()
	f := models.Fee{
		UserID:     fx.member.ID,
		Name:       "Yıllık aidat",
		AmountOwed: decimal.NewFromInt(owed),
		AmountPaid: decimal.Zero,
	}
	require.NoError(t, database.DB.Create(&f).Error)
}

// createLoan - Tutarlı bir alım + açık borç çifti kurar (faizsiz).
func createLoan(t *testing.T, fx fixtures, owed int64) {
	t.Helper()
	owedDec := decimal.NewFromInt(owed)
	p := models.Purchase{
		UserID:          fx.member.ID,
		ProductID:       fx.product.ID,
		SeasonID:        fx.season.ID,
		Quantity:        decimal.NewFromInt(1),
		UnitPrice:       owedDec,
		TotalPrice:      owedDec,
		AmountPaid:      decimal.Zero,
		AmountRemaining: owedDec,
		Status:          models.PurchaseStatusLoan,
		Interest:        decimal.Zero,
	}
	require.NoError(t, database.DB.Create(&p).Error)
	l := models.Loan{
		PurchaseID: p.ID,
		UserID:     fx.member.ID,
		ProductID:  fx.product.ID,
		SeasonID:   fx.season.ID,
		Quantity:   p.Quantity,
		AmountOwed: owedDec,
		Interest:   decimal.Zero,
		Status:     models.LoanStatusPending,
	}
	require.NoError(t, database.DB.Create(&l).Error)
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

func bucketCash(t *testing.T, fx fixtures) decimal.Decimal {
	t.Helper()
	var s models.Stock
	require.NoError(t, database.DB.First(&s, "product_id = ? AND season_id = ?", fx.product.ID, fx.season.ID).Error)
	return s.Cash
}

func summaryPath(fx fixtures, productionID uint) string {
	return fmt.Sprintf("/api/payments/summary?user_id=%d&season_id=%d&production_id=%d",
		fx.member.ID, fx.season.ID, productionID)
}

func TestSummaryDeductsFeesLoansAndPreviousRemaining(t *testing.T) {
	app := setupApp(t)
	fx := seedBase(t, 2000)

	prod := createProduction(t, fx, 100, 10) // brüt 1000
	createFee(t, fx, 100)
	createLoan(t, fx, 150)

	resp := doReq(t, app, "GET", summaryPath(fx, prod.ID), fx.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sum settlement.SummaryResponse
	decode(t, resp, &sum)

	require.Equal(t, 1000.0, sum.ProductionTotal)
	require.Equal(t, 100.0, sum.FeesDue)
	require.Equal(t, 150.0, sum.LoansDue)
	require.Equal(t, 0.0, sum.PreviousRemaining)
	require.Equal(t, 750.0, sum.AmountDue)

	// Özet salt hesaptır: tekrar istemek sonucu değiştirmez
	resp = doReq(t, app, "GET", summaryPath(fx, prod.ID), fx.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var again settlement.SummaryResponse
	decode(t, resp, &again)
	require.Equal(t, sum, again)
	require.True(t, bucketCash(t, fx).Equal(decimal.NewFromInt(2000)))
}

func TestSummaryCanGoNegative(t *testing.T) {
	app := setupApp(t)
	fx := seedBase(t, 2000)

	prod := createProduction(t, fx, 10, 10) // brüt 100
	createFee(t, fx, 300)

	resp := doReq(t, app, "GET", summaryPath(fx, prod.ID), fx.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sum settlement.SummaryResponse
	decode(t, resp, &sum)

	// Borçlar üretim değerini aşıyor; sıfıra yuvarlanmaz
	require.Equal(t, -200.0, sum.AmountDue)
}

func TestSummaryValidation(t *testing.T) {
	app := setupApp(t)
	fx := seedBase(t, 0)
	prod := createProduction(t, fx, 10, 10)

	// Olmayan üretim
	resp := doReq(t, app, "GET",
		fmt.Sprintf("/api/payments/summary?user_id=%d&season_id=%d&production_id=9999", fx.member.ID, fx.season.ID),
		fx.token, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Üye uyuşmazlığı
	resp = doReq(t, app, "GET",
		fmt.Sprintf("/api/payments/summary?user_id=9999&season_id=%d&production_id=%d", fx.season.ID, prod.ID),
		fx.token, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreatePaymentSettlesAndDebitsBucket(t *testing.T) {
	app := setupApp(t)
	fx := seedBase(t, 2000)

	prod := createProduction(t, fx, 100, 10)
	createFee(t, fx, 100)
	createLoan(t, fx, 150)

	body := map[string]interface{}{"production_id": prod.ID, "amount_paid": 750}
	resp := doReq(t, app, "POST", "/api/payments", fx.token, body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created settlement.PaymentResponse
	decode(t, resp, &created)
	require.Equal(t, 750.0, created.AmountPaid)
	require.Equal(t, 0.0, created.RemainingToPay)

	require.True(t, bucketCash(t, fx).Equal(decimal.NewFromInt(1250)), "cash = %s", bucketCash(t, fx))

	var ptx models.PaymentTransaction
	require.NoError(t, database.DB.First(&ptx, "payment_id = ?", created.ID).Error)
	require.Equal(t, fx.member.ID, ptx.UserID)
	require.True(t, ptx.RemainingToPay.IsZero())

	issues, err := reconcile.Check(database.DB)
	require.NoError(t, err)
	require.Empty(t, issues)
}

func TestCreatePaymentRejectsOverpay(t *testing.T) {
	app := setupApp(t)
	fx := seedBase(t, 2000)

	prod := createProduction(t, fx, 100, 10)
	createFee(t, fx, 100)

	// Vadesi gelen 900, 1000 ödenemez
	body := map[string]interface{}{"production_id": prod.ID, "amount_paid": 1000}
	resp := doReq(t, app, "POST", "/api/payments", fx.token, body)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var count int64
	require.NoError(t, database.DB.Model(&models.Payment{}).Count(&count).Error)
	require.Equal(t, int64(0), count)
	require.True(t, bucketCash(t, fx).Equal(decimal.NewFromInt(2000)))
}

func TestCreatePaymentInsufficientFundsRollsBack(t *testing.T) {
	app := setupApp(t)
	fx := seedBase(t, 100) // kasada yalnızca 100 var

	prod := createProduction(t, fx, 100, 10) // vadesi gelen 1000

	body := map[string]interface{}{"production_id": prod.ID, "amount_paid": 200}
	resp := doReq(t, app, "POST", "/api/payments", fx.token, body)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	// Ne ödeme ne dağıtım kaydı oluşmalı, kasa değişmemeli
	var payCount, ptxCount int64
	require.NoError(t, database.DB.Model(&models.Payment{}).Count(&payCount).Error)
	require.NoError(t, database.DB.Model(&models.PaymentTransaction{}).Count(&ptxCount).Error)
	require.Equal(t, int64(0), payCount)
	require.Equal(t, int64(0), ptxCount)
	require.True(t, bucketCash(t, fx).Equal(decimal.NewFromInt(100)))
}

func TestPartialPaymentCarriesRemainingToNextSummary(t *testing.T) {
	app := setupApp(t)
	fx := seedBase(t, 2000)

	prod := createProduction(t, fx, 100, 10) // vadesi gelen 1000

	body := map[string]interface{}{"production_id": prod.ID, "amount_paid": 750}
	resp := doReq(t, app, "POST", "/api/payments", fx.token, body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created settlement.PaymentResponse
	decode(t, resp, &created)
	require.Equal(t, 250.0, created.RemainingToPay)

	// Aynı sezondaki bir sonraki teslimin özetinde açık kalan görünür
	next := createProduction(t, fx, 50, 10) // brüt 500
	resp = doReq(t, app, "GET", summaryPath(fx, next.ID), fx.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sum settlement.SummaryResponse
	decode(t, resp, &sum)
	require.Equal(t, 250.0, sum.PreviousRemaining)
	require.Equal(t, 250.0, sum.AmountDue)
}

func TestUpdatePaymentReconcilesDiffOnly(t *testing.T) {
	app := setupApp(t)
	fx := seedBase(t, 2000)

	prod := createProduction(t, fx, 100, 10)
	createFee(t, fx, 100)
	createLoan(t, fx, 150)

	body := map[string]interface{}{"production_id": prod.ID, "amount_paid": 500}
	resp := doReq(t, app, "POST", "/api/payments", fx.token, body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created settlement.PaymentResponse
	decode(t, resp, &created)
	require.True(t, bucketCash(t, fx).Equal(decimal.NewFromInt(1500)))

	// 500 -> 700: kasadan yalnızca 200 fark düşer
	resp = doReq(t, app, "PUT", fmt.Sprintf("/api/payments/%d", created.ID), fx.token,
		map[string]interface{}{"amount_paid": 700})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var updated settlement.PaymentResponse
	decode(t, resp, &updated)
	require.Equal(t, 700.0, updated.AmountPaid)
	require.Equal(t, 50.0, updated.RemainingToPay)
	require.True(t, bucketCash(t, fx).Equal(decimal.NewFromInt(1300)), "cash = %s", bucketCash(t, fx))

	// Ödeme anındaki vadesi gelen tutar (750) aşılamaz
	resp = doReq(t, app, "PUT", fmt.Sprintf("/api/payments/%d", created.ID), fx.token,
		map[string]interface{}{"amount_paid": 800})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// 700 -> 600: fark kasaya iade edilir
	resp = doReq(t, app, "PUT", fmt.Sprintf("/api/payments/%d", created.ID), fx.token,
		map[string]interface{}{"amount_paid": 600})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, bucketCash(t, fx).Equal(decimal.NewFromInt(1400)), "cash = %s", bucketCash(t, fx))
}

func TestDeletePaymentRefundsBucket(t *testing.T) {
	app := setupApp(t)
	fx := seedBase(t, 2000)

	prod := createProduction(t, fx, 100, 10)

	body := map[string]interface{}{"production_id": prod.ID, "amount_paid": 600}
	resp := doReq(t, app, "POST", "/api/payments", fx.token, body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created settlement.PaymentResponse
	decode(t, resp, &created)
	require.True(t, bucketCash(t, fx).Equal(decimal.NewFromInt(1400)))

	resp = doReq(t, app, "DELETE", fmt.Sprintf("/api/payments/%d", created.ID), fx.token, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	require.True(t, bucketCash(t, fx).Equal(decimal.NewFromInt(2000)))
	var payCount, ptxCount int64
	require.NoError(t, database.DB.Model(&models.Payment{}).Count(&payCount).Error)
	require.NoError(t, database.DB.Model(&models.PaymentTransaction{}).Count(&ptxCount).Error)
	require.Equal(t, int64(0), payCount)
	require.Equal(t, int64(0), ptxCount)
}
