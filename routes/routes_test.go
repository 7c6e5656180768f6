package routes

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"bom-analytics-helper/config"
	"bom-analytics-helper/controllers"
	"bom-analytics-helper/middleware"
	"bom-analytics-helper/models"
	"bom-analytics-helper/services"
	"bom-analytics-helper/testutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	jwtSecret     = "route-test-secret"
	webhookSecret = "wc-hook-secret"
	managerID     = 9
)

type envelope struct {
	Success bool                   `json:"success"`
	Data    map[string]interface{} `json:"data"`
}

type testServer struct {
	router *gin.Engine
	db     *gorm.DB
	nonces *middleware.Nonces
	token  string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	prevApp, prevDB := config.App, config.DB
	cfg := *config.Defaults()
	cfg.JWTSecret = jwtSecret
	cfg.WebhookSecret = webhookSecret
	config.App = &cfg

	db := testutil.SetupTestDB(t)
	config.DB = db
	t.Cleanup(func() { config.App, config.DB = prevApp, prevDB })

	hooks := services.NewHooks()
	sync := services.NewSyncService(db, hooks)
	backfill := services.NewBackfillService(db, sync)
	nonces := middleware.NewNonces(jwtSecret, time.Hour)

	router := gin.New()
	SetupRoutes(router, &controllers.Deps{
		Sync:          sync,
		Backfill:      backfill,
		Status:        services.NewStatusService(db, sync, backfill),
		Hooks:         hooks,
		Nonces:        nonces,
		WebhookSecret: webhookSecret,
	})

	token, err := middleware.GenerateToken(jwtSecret, managerID, "manager@shop.example", []string{middleware.CapabilityManageShop}, time.Hour)
	require.NoError(t, err)

	return &testServer{router: router, db: db, nonces: nonces, token: token}
}

func (s *testServer) do(t *testing.T, method, path string, form url.Values) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	if form == nil {
		form = url.Values{}
	}
	if form.Get("nonce") == "" {
		form.Set("nonce", s.nonces.Create(middleware.NonceAction, managerID))
	}
	req := httptest.NewRequest(method, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+s.token)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func seedBOMOrder(t *testing.T, db *gorm.DB, orderID, itemID uint64, created time.Time) {
	t.Helper()
	testutil.SeedOrder(t, db, orderID, 0, created,
		testutil.Line{ItemID: itemID, Components: []testutil.Component{{BOMID: 55, Qty: 2}}},
	)
}

var created = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

func TestActionsRequireCapability(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analytics/progress", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.JSONEq(t, `{"success":false,"data":{"message":"Permission denied."}}`, w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/admin/bom-analytics", nil)
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestActionsRequireNonce(t *testing.T) {
	s := newTestServer(t)
	w, env := s.do(t, http.MethodPost, "/api/v1/analytics/progress", url.Values{"nonce": {"badbadbad0"}})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.False(t, env.Success)
}

func TestProgressAndBackfill(t *testing.T) {
	s := newTestServer(t)
	testutil.SeedProduct(t, s.db, 55, "Steel bolt", true, "product-part")
	seedBOMOrder(t, s.db, 10, 100, created)
	seedBOMOrder(t, s.db, 11, 110, created.Add(time.Hour))

	w, env := s.do(t, http.MethodPost, "/api/v1/analytics/progress", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, env.Success)
	progress := env.Data["progress"].(map[string]interface{})
	assert.Equal(t, "idle", progress["status"])
	assert.Equal(t, 2.0, progress["total"])
	sync := env.Data["sync"].(map[string]interface{})
	assert.Equal(t, 2.0, sync["total_boms"])
	assert.Equal(t, true, sync["hooks_active"])

	w, env = s.do(t, http.MethodPost, "/api/v1/analytics/backfill", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, env.Success)
	assert.Equal(t, "Backfill completed. Processed 2 orders with 0 errors.", env.Data["message"])
	counts := env.Data["data"].(map[string]interface{})
	assert.Equal(t, 2.0, counts["processed"])
	assert.Equal(t, 0.0, counts["errors"])

	_, env = s.do(t, http.MethodPost, "/api/v1/analytics/progress", nil)
	progress = env.Data["progress"].(map[string]interface{})
	assert.Equal(t, "completed", progress["status"])
	assert.Equal(t, 100.0, progress["percent"])
	assert.Equal(t, 100.0, env.Data["sync"].(map[string]interface{})["sync_percent"])
}

func TestBackfillAlreadyRunning(t *testing.T) {
	s := newTestServer(t)
	started := "2024-06-01 09:00:00"
	require.NoError(t, services.NewProgressStore(s.db).Save(context.Background(), &models.BackfillProgress{
		Processed: 5, Total: 10, Status: models.BackfillStatusRunning, Started: &started,
	}))

	w, env := s.do(t, http.MethodPost, "/api/v1/analytics/backfill", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, env.Success)
	assert.Equal(t, "Backfill is already in progress.", env.Data["message"])
	current := env.Data["data"].(map[string]interface{})
	assert.Equal(t, 5.0, current["processed"])
	assert.Equal(t, 50.0, current["percent"])
}

func TestClearAnalytics(t *testing.T) {
	s := newTestServer(t)
	testutil.SeedProduct(t, s.db, 55, "Steel bolt", true, "product-part")
	seedBOMOrder(t, s.db, 10, 100, created)

	_, env := s.do(t, http.MethodPost, "/api/v1/analytics/test-sync", nil)
	require.True(t, env.Success)

	w, env := s.do(t, http.MethodPost, "/api/v1/analytics/clear", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, env.Success)
	assert.Equal(t, "Cleared 1 BOM analytics records.", env.Data["message"])
	assert.Equal(t, 1.0, env.Data["data"].(map[string]interface{})["deleted"])
	assert.Empty(t, testutil.LookupRows(t, s.db, 10))
}

func TestTestSyncMessages(t *testing.T) {
	s := newTestServer(t)

	_, env := s.do(t, http.MethodPost, "/api/v1/analytics/test-sync", nil)
	assert.False(t, env.Success)
	assert.Equal(t, "No orders found.", env.Data["message"])

	testutil.SeedOrder(t, s.db, 20, 0, created)
	_, env = s.do(t, http.MethodPost, "/api/v1/analytics/test-sync", nil)
	assert.False(t, env.Success)
	assert.Equal(t, "No BOMs found in order #20", env.Data["message"])

	testutil.SeedProduct(t, s.db, 55, "Steel bolt", true, "product-part")
	seedBOMOrder(t, s.db, 21, 210, created.Add(time.Hour))
	_, env = s.do(t, http.MethodPost, "/api/v1/analytics/test-sync", nil)
	assert.True(t, env.Success)
	assert.Equal(t, "Test sync completed for order #21", env.Data["message"])
	assert.Len(t, testutil.LookupRows(t, s.db, 21), 1)
}

func TestDedupeAndRemoveOrder(t *testing.T) {
	s := newTestServer(t)
	testutil.SeedProduct(t, s.db, 55, "Steel bolt", true, "product-part")
	seedBOMOrder(t, s.db, 10, 100, created)
	testutil.InsertLookup(t, s.db, models.ProductLookup{OrderItemID: 1, OrderID: 10, ProductID: 55, ProductQty: 1, DateCreated: created})
	testutil.InsertLookup(t, s.db, models.ProductLookup{OrderItemID: 2, OrderID: 10, ProductID: 55, ProductQty: 1, DateCreated: created})

	_, env := s.do(t, http.MethodPost, "/api/v1/analytics/dedupe", nil)
	require.True(t, env.Success)
	assert.Equal(t, "Removed 1 duplicate BOM records.", env.Data["message"])

	w, env := s.do(t, http.MethodDelete, "/api/v1/analytics/orders/10", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
	assert.Empty(t, testutil.LookupRows(t, s.db, 10))

	w, _ = s.do(t, http.MethodDelete, "/api/v1/analytics/orders/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatusPageAndScript(t *testing.T) {
	s := newTestServer(t)
	testutil.SeedProduct(t, s.db, 55, "Steel bolt", true, "product-part")
	seedBOMOrder(t, s.db, 10, 100, created)

	req := httptest.NewRequest(http.MethodGet, "/admin/bom-analytics", nil)
	req.AddCookie(&http.Cookie{Name: middleware.TokenCookie, Value: s.token})
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "BOM Analytics Integration Status")
	assert.Contains(t, body, "Sync Coverage")
	assert.Contains(t, body, "Not Started")
	assert.Contains(t, body, s.nonces.Create(middleware.NonceAction, managerID))

	req = httptest.NewRequest(http.MethodGet, "/assets/js/analytics-status.js", nil)
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "javascript")
	assert.Contains(t, w.Body.String(), "setInterval(updateProgress, 2000)")
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func signedWebhook(body, topic, secret string) *http.Request {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	req := httptest.NewRequest(http.MethodPost, "/webhooks/woocommerce", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-WC-Webhook-Topic", topic)
	req.Header.Set("X-WC-Webhook-Signature", base64.StdEncoding.EncodeToString(mac.Sum(nil)))
	return req
}

func TestWooCommerceWebhook(t *testing.T) {
	s := newTestServer(t)
	testutil.SeedProduct(t, s.db, 55, "Steel bolt", true, "product-part")
	seedBOMOrder(t, s.db, 10, 100, created)

	body := fmt.Sprintf(`{"id":%d,"status":"processing"}`, 10)

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, signedWebhook(body, "order.updated", "wrong-secret"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, testutil.LookupRows(t, s.db, 10))

	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, signedWebhook(body, "order.deleted", webhookSecret))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, testutil.LookupRows(t, s.db, 10))

	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, signedWebhook(body, "order.updated", webhookSecret))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, testutil.LookupRows(t, s.db, 10), 1)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/woocommerce", strings.NewReader("webhook_id=3"))
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
