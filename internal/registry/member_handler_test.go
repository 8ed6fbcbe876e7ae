package registry_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"kooperatif-backend/internal/auth"
	"kooperatif-backend/internal/config"
	"kooperatif-backend/internal/database"
	"kooperatif-backend/internal/models"
	"kooperatif-backend/internal/registry"
	"kooperatif-backend/internal/router"

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

func setupApp(t *testing.T) (*fiber.App, string) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	database.DB = db

	manager := models.User{Name: "Yönetici", Email: "yonetici@koop.local", PasswordHash: "x", Role: models.RoleManager}
	require.NoError(t, database.DB.Create(&manager).Error)
	token, err := auth.GenerateToken(testCfg.JWTSecret, &manager)
	require.NoError(t, err)

	return router.New(testCfg), token
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

func TestMemberCRUD(t *testing.T) {
	app, token := setupApp(t)

	body := map[string]string{"name": "Ahmet Üye", "email": "Ahmet@Koop.Local", "phone": "05551112233", "password": "sifre123"}
	resp := doReq(t, app, "POST", "/api/members", token, body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created registry.MemberResponse
	decode(t, resp, &created)
	require.Equal(t, "member", created.Role)
	require.Equal(t, "ahmet@koop.local", created.Email)

	// Aynı email ile ikinci kayıt reddedilir
	resp = doReq(t, app, "POST", "/api/members", token, body)
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	// Listede yalnızca üyeler döner, yönetici dönmez
	resp = doReq(t, app, "GET", "/api/members", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []registry.MemberResponse
	decode(t, resp, &list)
	require.Len(t, list, 1)

	resp = doReq(t, app, "GET", fmt.Sprintf("/api/members/%d", created.ID), token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doReq(t, app, "PUT", fmt.Sprintf("/api/members/%d", created.ID), token,
		map[string]string{"name": "Ahmet Güncel"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var updated registry.MemberResponse
	decode(t, resp, &updated)
	require.Equal(t, "Ahmet Güncel", updated.Name)

	resp = doReq(t, app, "DELETE", fmt.Sprintf("/api/members/%d", created.ID), token, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doReq(t, app, "GET", fmt.Sprintf("/api/members/%d", created.ID), token, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteMemberBlockedWhenReferenced(t *testing.T) {
	app, token := setupApp(t)

	resp := doReq(t, app, "POST", "/api/members", token,
		map[string]string{"name": "Ahmet Üye", "email": "ahmet@koop.local", "password": "sifre123"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created registry.MemberResponse
	decode(t, resp, &created)

	// Üyeye bağlı bir aidat kaydı oluştu mu, silme reddedilir
	fee := models.Fee{UserID: created.ID, Name: "Aidat", AmountOwed: decimal.NewFromInt(100), AmountPaid: decimal.Zero}
	require.NoError(t, database.DB.Create(&fee).Error)

	resp = doReq(t, app, "DELETE", fmt.Sprintf("/api/members/%d", created.ID), token, nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	var count int64
	require.NoError(t, database.DB.Model(&models.User{}).Where("role = ?", models.RoleMember).Count(&count).Error)
	require.Equal(t, int64(1), count)
}
