package auth_test

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
	"kooperatif-backend/internal/router"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
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

type authResponse struct {
	Token string `json:"token"`
	User  struct {
		ID    uint   `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
		Role  string `json:"role"`
	} `json:"user"`
}

func TestRegisterManagerOnlyOnce(t *testing.T) {
	app := setupApp(t)

	body := map[string]string{"name": "Yönetici", "email": "Yonetici@Koop.Local", "password": "sifre123"}
	resp := doReq(t, app, "POST", "/api/auth/register-manager", "", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var reg authResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&reg))
	resp.Body.Close()
	require.NotEmpty(t, reg.Token)
	require.Equal(t, "manager", reg.User.Role)
	// Email normalize edilir
	require.Equal(t, "yonetici@koop.local", reg.User.Email)

	// İkinci yönetici bu endpoint'ten kaydolamaz
	body2 := map[string]string{"name": "İkinci", "email": "ikinci@koop.local", "password": "sifre123"}
	resp = doReq(t, app, "POST", "/api/auth/register-manager", "", body2)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()
}

func TestLoginAndMe(t *testing.T) {
	app := setupApp(t)

	hash, err := bcrypt.GenerateFromPassword([]byte("sifre123"), bcrypt.DefaultCost)
	require.NoError(t, err)
	user := models.User{Name: "Yönetici", Email: "yonetici@koop.local", PasswordHash: string(hash), Role: models.RoleManager}
	require.NoError(t, database.DB.Create(&user).Error)

	resp := doReq(t, app, "POST", "/api/auth/login", "", map[string]string{
		"email":    "yonetici@koop.local",
		"password": "sifre123",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var login authResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&login))
	resp.Body.Close()
	require.NotEmpty(t, login.Token)

	// Token ile korumalı endpoint'e erişim
	resp = doReq(t, app, "GET", "/api/auth/me", login.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var me map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&me))
	resp.Body.Close()
	require.Equal(t, "yonetici@koop.local", me["email"])
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	app := setupApp(t)

	hash, err := bcrypt.GenerateFromPassword([]byte("sifre123"), bcrypt.DefaultCost)
	require.NoError(t, err)
	user := models.User{Name: "Yönetici", Email: "yonetici@koop.local", PasswordHash: string(hash), Role: models.RoleManager}
	require.NoError(t, database.DB.Create(&user).Error)

	resp := doReq(t, app, "POST", "/api/auth/login", "", map[string]string{
		"email":    "yonetici@koop.local",
		"password": "yanlis",
	})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	resp = doReq(t, app, "POST", "/api/auth/login", "", map[string]string{
		"email":    "yok@koop.local",
		"password": "sifre123",
	})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestProtectedRoutesRejectBadTokens(t *testing.T) {
	app := setupApp(t)

	// Header yok
	resp := doReq(t, app, "GET", "/api/auth/me", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	// Bozuk token
	resp = doReq(t, app, "GET", "/api/auth/me", "bozuk.token.degeri", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	// Yanlış secret ile imzalanmış token
	other := models.User{Name: "X", Email: "x@koop.local", PasswordHash: "x", Role: models.RoleManager}
	require.NoError(t, database.DB.Create(&other).Error)
	badToken, err := auth.GenerateToken("baska-secret-baska-secret-baska-sec!", &other)
	require.NoError(t, err)
	resp = doReq(t, app, "GET", "/api/auth/me", badToken, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}
