package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/chaisthra/vibetrack/internal/model"
	"github.com/chaisthra/vibetrack/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type verifierFunc func(ctx context.Context, token string) (model.Identity, error)

func (f verifierFunc) Verify(ctx context.Context, token string) (model.Identity, error) {
	return f(ctx, token)
}

type limiterFunc func(key string) (bool, time.Duration)

func (f limiterFunc) Allow(key string) (bool, time.Duration) { return f(key) }

type concurrencyFunc func(ctx context.Context, key string) (func(), error)

func (f concurrencyFunc) Acquire(ctx context.Context, key string) (func(), error) { return f(ctx, key) }

func serve(engine *gin.Engine, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func TestAuthenticate_Handle(t *testing.T) {
	t.Parallel()

	alice := model.Identity{UserID: "alice", TokenID: "jti-1"}

	tests := []struct {
		name       string
		header     string
		verifyErr  error
		wantStatus int
		wantBody   string
	}{
		{name: "missing header", wantStatus: http.StatusUnauthorized, wantBody: `"code":"Unauthorized"`},
		{name: "wrong scheme", header: "Token abc", wantStatus: http.StatusUnauthorized, wantBody: `"code":"Unauthorized"`},
		{name: "malformed", header: "Bearer abc", verifyErr: model.ErrTokenMalformed, wantStatus: http.StatusUnauthorized, wantBody: `"code":"Unauthorized"`},
		{name: "expired", header: "Bearer abc", verifyErr: model.ErrTokenExpired, wantStatus: http.StatusUnauthorized, wantBody: `"code":"Expired"`},
		{name: "revoked", header: "Bearer abc", verifyErr: model.ErrTokenRevoked, wantStatus: http.StatusUnauthorized, wantBody: `"code":"Revoked"`},
		{name: "backend failure", header: "Bearer abc", verifyErr: errors.New("redis down"), wantStatus: http.StatusInternalServerError, wantBody: `"code":"Internal"`},
		{name: "valid", header: "bearer abc", wantStatus: http.StatusOK, wantBody: "alice"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			verifier := verifierFunc(func(_ context.Context, token string) (model.Identity, error) {
				assert.Equal(t, "abc", token)
				if tt.verifyErr != nil {
					return model.Identity{}, tt.verifyErr
				}
				return alice, nil
			})

			engine := gin.New()
			engine.GET("/", NewAuthenticate(verifier, testutil.MakeNoopLogger()).Handle, func(c *gin.Context) {
				id, ok := IdentityFrom(c.Request.Context())
				assert.True(t, ok)
				c.String(http.StatusOK, id.UserID)
			})

			rec := serve(engine, tt.header)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
			assert.NotContains(t, rec.Body.String(), "redis")
		})
	}
}

func TestIdentityFrom(t *testing.T) {
	_, ok := IdentityFrom(context.Background())
	assert.False(t, ok)

	_, ok = IdentityFrom(WithIdentity(context.Background(), model.Identity{}))
	assert.False(t, ok)

	id, ok := IdentityFrom(WithIdentity(context.Background(), model.Identity{UserID: "bob"}))
	assert.True(t, ok)
	assert.Equal(t, "bob", id.UserID)
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{header: "Bearer abc", want: "abc", ok: true},
		{header: "  BEARER   abc  ", want: "abc", ok: true},
		{header: "Bearer", ok: false},
		{header: "Basic abc", ok: false},
		{header: "", ok: false},
	}
	for _, tt := range tests {
		got, ok := BearerToken(tt.header)
		assert.Equal(t, tt.ok, ok, tt.header)
		assert.Equal(t, tt.want, got, tt.header)
	}
}

func TestRateLimit(t *testing.T) {
	t.Parallel()

	var seen []string
	limiter := limiterFunc(func(key string) (bool, time.Duration) {
		seen = append(seen, key)
		return len(seen) == 1, 1500 * time.Millisecond
	})

	engine := gin.New()
	engine.GET("/", RateLimitByClientIP(limiter), func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := serve(engine, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(engine, "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), `"code":"RateLimited"`)

	assert.Equal(t, []string{"ip:192.0.2.1", "ip:192.0.2.1"}, seen)
}

func TestRateLimitByUser(t *testing.T) {
	t.Parallel()

	var key string
	limiter := limiterFunc(func(k string) (bool, time.Duration) {
		key = k
		return true, 0
	})

	engine := gin.New()
	engine.GET("/", func(c *gin.Context) {
		c.Request = c.Request.WithContext(WithIdentity(c.Request.Context(), model.Identity{UserID: "alice"}))
	}, RateLimitByUser(limiter), func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := serve(engine, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user:alice", key)
}

func TestLimitConcurrency(t *testing.T) {
	t.Parallel()

	released := 0
	full := false
	guard := concurrencyFunc(func(_ context.Context, key string) (func(), error) {
		if full {
			return nil, model.ErrTooManyConcurrent
		}
		return func() { released++ }, nil
	})

	engine := gin.New()
	engine.GET("/", LimitConcurrency(guard), func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := serve(engine, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, released)

	full = true
	rec = serve(engine, "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"TooManyConcurrentRequests"`)
	assert.Equal(t, 1, released)
}
