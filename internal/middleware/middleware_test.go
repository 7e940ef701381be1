package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/javajoker/storefront-backend/internal/config"
	"github.com/javajoker/storefront-backend/internal/i18n"
	"github.com/javajoker/storefront-backend/internal/models"
	"github.com/javajoker/storefront-backend/internal/services"
	"github.com/javajoker/storefront-backend/internal/testutil"
	"github.com/javajoker/storefront-backend/internal/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
	i18n.Initialize()
}

func serve(r *gin.Engine, method, path string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func bearer(t *testing.T, isAdmin bool) http.Header {
	t.Helper()
	token, err := utils.GenerateJWT(uuid.New(), "someone@example.com", isAdmin, time.Hour)
	require.NoError(t, err)
	return http.Header{"Authorization": {"Bearer " + token}}
}

func TestAuthMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(I18nMiddleware())
	r.GET("/admin", AuthRequired(), AdminRequired(), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("email"))
	})

	tests := []struct {
		name   string
		header http.Header
		want   int
	}{
		{"no header", nil, http.StatusUnauthorized},
		{"not bearer", http.Header{"Authorization": {"Basic abc"}}, http.StatusUnauthorized},
		{"bad token", http.Header{"Authorization": {"Bearer nope"}}, http.StatusUnauthorized},
		{"customer", bearer(t, false), http.StatusForbidden},
		{"admin", bearer(t, true), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(r, http.MethodGet, "/admin", tt.header)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestNegotiateLanguage(t *testing.T) {
	assert.Equal(t, "en", negotiateLanguage(""))
	assert.Equal(t, "zh_TW", negotiateLanguage("zh-TW,zh;q=0.9,en;q=0.8"))
	assert.Equal(t, "en", negotiateLanguage("en-GB"))
	assert.Equal(t, "en", negotiateLanguage("fr-FR"))
	assert.Equal(t, "en", negotiateLanguage(";;;"))
}

func TestCacheView(t *testing.T) {
	cache, err := services.NewViewCache(config.CacheConfig{
		Enabled: true, MaxCost: 1 << 20, NumCounters: 1000, TTL: time.Minute,
	}, testutil.NewLogger())
	require.NoError(t, err)
	defer cache.Close()

	calls := 0
	r := gin.New()
	r.GET("/products", CacheView(cache, StaticView(services.ViewProducts)), func(c *gin.Context) {
		calls++
		c.JSON(http.StatusOK, gin.H{"calls": calls})
	})
	r.GET("/missing", CacheView(cache, StaticView("/missing")), func(c *gin.Context) {
		calls++
		c.JSON(http.StatusNotFound, gin.H{})
	})

	first := serve(r, http.MethodGet, "/products", nil)
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))
	second := serve(r, http.MethodGet, "/products", nil)
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 1, calls)

	// A different query string is a different variant.
	serve(r, http.MethodGet, "/products?page=2", nil)
	assert.Equal(t, 2, calls)

	cache.Revalidate(services.ViewProducts)
	third := serve(r, http.MethodGet, "/products", nil)
	assert.Equal(t, "MISS", third.Header().Get("X-Cache"))
	assert.Equal(t, 3, calls)

	serve(r, http.MethodGet, "/missing", nil)
	serve(r, http.MethodGet, "/missing", nil)
	assert.Equal(t, 5, calls)
}

func TestCacheViewSkipsBodyStaleAfterRevalidate(t *testing.T) {
	cache, err := services.NewViewCache(config.CacheConfig{
		Enabled: true, MaxCost: 1 << 20, NumCounters: 1000, TTL: time.Minute,
	}, testutil.NewLogger())
	require.NoError(t, err)
	defer cache.Close()

	calls := 0
	r := gin.New()
	r.GET("/products", CacheView(cache, StaticView(services.ViewProducts)), func(c *gin.Context) {
		calls++
		if calls == 1 {
			// A product write commits while this response is being rendered.
			cache.Revalidate(services.ViewProducts)
		}
		c.JSON(http.StatusOK, gin.H{"calls": calls})
	})

	assert.Equal(t, "MISS", serve(r, http.MethodGet, "/products", nil).Header().Get("X-Cache"))
	assert.Equal(t, "MISS", serve(r, http.MethodGet, "/products", nil).Header().Get("X-Cache"))
	assert.Equal(t, "HIT", serve(r, http.MethodGet, "/products", nil).Header().Get("X-Cache"))
	assert.Equal(t, 2, calls)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(rate.Every(time.Hour), 2)
	defer rl.Stop()

	r := gin.New()
	r.Use(rl.Middleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/", nil).Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/", nil).Code)
	w := serve(r, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "RATE_LIMITED")
}

func TestAuditLogMiddleware(t *testing.T) {
	db := testutil.NewDB(t)
	r := gin.New()
	r.Use(AuditLogMiddleware(db, testutil.NewLogger()))
	r.POST("/v1/auth/login", func(c *gin.Context) { c.Status(http.StatusUnauthorized) })
	r.DELETE("/v1/admin/products/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/v1/products", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login",
		strings.NewReader(`{"email":"a@example.com","password":"secret"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(httptest.NewRecorder(), req)

	id := uuid.New()
	serve(r, http.MethodDelete, "/v1/admin/products/"+id.String(), nil)
	serve(r, http.MethodGet, "/v1/products", nil)

	var logs []models.AuditLog
	require.NoError(t, db.Order("action DESC").Find(&logs).Error)
	require.Len(t, logs, 2)

	assert.Equal(t, "POST /v1/auth/login", logs[0].Action)
	assert.Equal(t, "auth", logs[0].ResourceType)
	assert.Equal(t, http.StatusUnauthorized, logs[0].Status)
	assert.Equal(t, "a@example.com", logs[0].NewValues["email"])
	assert.NotContains(t, logs[0].NewValues, "password")

	assert.Equal(t, "DELETE /v1/admin/products/:id", logs[1].Action)
	assert.Equal(t, "products", logs[1].ResourceType)
	require.NotNil(t, logs[1].ResourceID)
	assert.Equal(t, id, *logs[1].ResourceID)
}
