package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/flight-seat-reservation/internal/config"
)

const secret = "s3cret"

func sign(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func validClaims(role string) jwt.MapClaims {
	return jwt.MapClaims{"sub": "ops@example.com", "role": role, "exp": time.Now().Add(time.Hour).Unix()}
}

// serve runs one request through mw and reports the status and the actor
// the final handler saw.
func serve(mw []echo.MiddlewareFunc, req *http.Request) (*httptest.ResponseRecorder, string) {
	e := echo.New()
	var actor string
	h := func(c echo.Context) error {
		actor = Actor(c)
		return c.NoContent(http.StatusNoContent)
	}
	e.POST("/x", h, mw...)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec, actor
}

func request(token string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/x", nil)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	return req
}

func TestJWTAuth(t *testing.T) {
	mw := []echo.MiddlewareFunc{JWTAuth(secret)}

	rec, _ := serve(mw, request(""))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"UNAUTHORIZED"`)

	rec, _ = serve(mw, request(sign(t, jwt.SigningMethodHS256, []byte("other"), validClaims("ADMIN"))))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	expired := validClaims("ADMIN")
	expired["exp"] = time.Now().Add(-time.Minute).Unix()
	rec, _ = serve(mw, request(sign(t, jwt.SigningMethodHS256, []byte(secret), expired)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = serve(mw, request(sign(t, jwt.SigningMethodHS512, []byte(secret), validClaims("ADMIN"))))
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "only HS256 is accepted")

	rec, actor := serve(mw, request(sign(t, jwt.SigningMethodHS256, []byte(secret), validClaims("ADMIN"))))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "ops@example.com", actor)
}

func TestOptionalJWT(t *testing.T) {
	mw := []echo.MiddlewareFunc{OptionalJWT(secret)}

	rec, actor := serve(mw, request(""))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, actor)

	rec, _ = serve(mw, request("not-a-jwt"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, actor = serve(mw, request(sign(t, jwt.SigningMethodHS256, []byte(secret), validClaims("AGENT"))))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "ops@example.com", actor)
}

func TestRequireRole(t *testing.T) {
	mw := []echo.MiddlewareFunc{JWTAuth(secret), RequireRole(RoleAdmin)}

	rec, _ := serve(mw, request(sign(t, jwt.SigningMethodHS256, []byte(secret), validClaims("AGENT"))))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"FORBIDDEN"`)

	rec, _ = serve(mw, request(sign(t, jwt.SigningMethodHS256, []byte(secret), validClaims(RoleAdmin))))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, _ = serve([]echo.MiddlewareFunc{RequireRole(RoleAdmin)}, request(""))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func limiterConfig() config.RateLimitConfig {
	return config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Hour,
		TTL:            5 * time.Hour,
		KeyStrategy:    "ip",
		Prefix:         "rl",
	}
}

func fromIP(ip string) *http.Request {
	req := request("")
	req.RemoteAddr = ip + ":5000"
	return req
}

func TestTokenBucketLocal(t *testing.T) {
	quiet := logrus.New()
	mw := []echo.MiddlewareFunc{NewTokenBucket(limiterConfig(), nil, quiet)}

	// serve builds a fresh echo per call, so the middleware value is what
	// carries the bucket state across requests.
	for i := 0; i < 2; i++ {
		rec, _ := serve(mw, fromIP("10.0.0.1"))
		require.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	}

	rec, _ := serve(mw, fromIP("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"RATE_LIMITED"`)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	rec, _ = serve(mw, fromIP("10.0.0.2"))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestTokenBucketFallsBackWhenRedisIsDown(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = rdb.Close() })
	mw := []echo.MiddlewareFunc{NewTokenBucket(limiterConfig(), rdb, logrus.New())}

	for i := 0; i < 2; i++ {
		rec, _ := serve(mw, fromIP("10.0.0.3"))
		require.Equal(t, http.StatusNoContent, rec.Code)
	}
	rec, _ := serve(mw, fromIP("10.0.0.3"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestTokenBucketDisabled(t *testing.T) {
	cfg := limiterConfig()
	cfg.Enabled = false
	mw := []echo.MiddlewareFunc{NewTokenBucket(cfg, nil, logrus.New())}
	for i := 0; i < 5; i++ {
		rec, _ := serve(mw, fromIP("10.0.0.4"))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	}
}

func TestLocalLimiterRefillsAndSweeps(t *testing.T) {
	cfg := limiterConfig()
	cfg.RefillInterval = time.Second
	cfg.TTL = 5 * time.Second
	l := newLocalLimiter(cfg)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.True(t, l.take("a", start).allowed)
	assert.True(t, l.take("a", start).allowed)
	d := l.take("a", start)
	assert.False(t, d.allowed)
	assert.Equal(t, time.Second, d.retry)
	assert.True(t, l.take("a", start.Add(time.Second)).allowed)

	l.take("b", start.Add(10*time.Second))
	assert.NotContains(t, l.buckets, "a")
	assert.Contains(t, l.buckets, "b")
}

func TestBuildRateKey(t *testing.T) {
	e := echo.New()
	req := fromIP("10.1.1.1")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/api/payments/process")

	cfg := limiterConfig()
	assert.Equal(t, "rl:ip:10.1.1.1", buildRateKey(cfg, c))

	cfg.KeyStrategy = "ip_route"
	assert.Equal(t, "rl:ip:10.1.1.1:route:POST /api/payments/process", buildRateKey(cfg, c))

	cfg.KeyStrategy = "ip_user_route"
	assert.Equal(t, "rl:ip:10.1.1.1:user:anon:route:POST /api/payments/process", buildRateKey(cfg, c))
	c.Set(ctxUserID, "ops@example.com")
	assert.Equal(t, "rl:ip:10.1.1.1:user:ops@example.com:route:POST /api/payments/process", buildRateKey(cfg, c))
}

func TestAsInt64(t *testing.T) {
	assert.Equal(t, int64(3), asInt64(int64(3)))
	assert.Equal(t, int64(4), asInt64(4))
	assert.Equal(t, int64(5), asInt64(5.9))
	assert.Equal(t, int64(6), asInt64("6"))
	assert.Zero(t, asInt64("x"))
	assert.Zero(t, asInt64(nil))
}

func cacheConfig() config.CacheConfig {
	return config.CacheConfig{
		Enabled:      true,
		Methods:      map[string]bool{"GET": true},
		TTL:          time.Second,
		Prefix:       "cache",
		MaxBodyBytes: 8,
	}
}

// getThrough serves one GET through the listing cache and one POST
// through the invalidation hook.
func getThrough(cc *CatalogueCache, method string) *httptest.ResponseRecorder {
	e := echo.New()
	h := func(c echo.Context) error { return c.JSON(http.StatusOK, []string{"LHR"}) }
	e.GET("/api/flights/origins", h, cc.Listings())
	e.POST("/api/flights", h, cc.InvalidateOnWrite())
	path := "/api/flights/origins"
	if method == http.MethodPost {
		path = "/api/flights"
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestCatalogueCacheWithoutRedisIsPassThrough(t *testing.T) {
	cc := NewCatalogueCache(cacheConfig(), nil)
	for _, method := range []string{http.MethodGet, http.MethodPost} {
		rec := getThrough(cc, method)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("X-Cache"))
	}
}

func TestCatalogueCacheDisabledIgnoresClient(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	cfg := cacheConfig()
	cfg.Enabled = false

	cc := NewCatalogueCache(cfg, rdb)
	assert.Nil(t, cc.rdb)
	assert.Empty(t, getThrough(cc, http.MethodGet).Header().Get("X-Cache"))
}

func TestCatalogueCacheServesFromHandlerWhenRedisIsDown(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	cc := NewCatalogueCache(cacheConfig(), rdb)

	rec := getThrough(cc, http.MethodGet)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `["LHR"]`, rec.Body.String())
	assert.Empty(t, rec.Header().Get("X-Cache"), "no generation, no caching")

	rec = getThrough(cc, http.MethodPost)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListingKeyVariesWithQueryAndGeneration(t *testing.T) {
	e := echo.New()
	cfg := cacheConfig()
	key := func(gen int64, target string) string {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, target, nil), httptest.NewRecorder())
		c.SetPath("/api/flights/search")
		return listingKey(cfg, gen, c)
	}
	a := key(0, "/api/flights/search?origin=LHR")
	assert.Equal(t, a, key(0, "/api/flights/search?origin=LHR"))
	assert.NotEqual(t, a, key(0, "/api/flights/search?origin=JFK"))
	assert.NotEqual(t, a, key(1, "/api/flights/search?origin=LHR"))
	assert.Regexp(t, `^cache:catalogue:0:[0-9a-f]{40}$`, a)
}

func TestListingRecorderStopsAtLimit(t *testing.T) {
	rec := &listingRecorder{ResponseWriter: httptest.NewRecorder(), status: http.StatusOK, limit: 8}
	_, err := rec.Write([]byte("[1,2,3"))
	require.NoError(t, err)
	assert.False(t, rec.overflown)
	_, _ = rec.Write([]byte(",4,5]"))
	assert.True(t, rec.overflown)
	assert.Equal(t, "[1,2,3", rec.body.String())
}
