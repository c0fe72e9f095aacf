package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"provably-fair-backend/internal/middleware"
	"provably-fair-backend/internal/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	handlers = append(handlers, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"trusted": middleware.IsTrusted(c)})
	})
	r.GET("/x", handlers...)
	return r
}

func do(r http.Handler, target, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	jwtService := services.NewJWTService("secret")
	operator, err := jwtService.GenerateToken("op", services.RoleOperator, time.Hour)
	require.NoError(t, err)
	player, err := jwtService.GenerateToken("p", services.RolePlayer, time.Hour)
	require.NoError(t, err)

	r := newRouter(middleware.AuthMiddleware(jwtService), middleware.RequireOperator())

	assert.Equal(t, http.StatusUnauthorized, do(r, "/x", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "/x", "Basic abc").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "/x", "Bearer garbage").Code)
	assert.Equal(t, http.StatusForbidden, do(r, "/x", "Bearer "+player).Code)
	assert.Equal(t, http.StatusOK, do(r, "/x", "Bearer "+operator).Code)
	assert.Equal(t, http.StatusOK, do(r, "/x?token="+operator, "").Code)
}

func TestOptionalAuth(t *testing.T) {
	jwtService := services.NewJWTService("secret")
	operator, err := jwtService.GenerateToken("op", services.RoleOperator, time.Hour)
	require.NoError(t, err)

	r := newRouter(middleware.OptionalAuth(jwtService))

	w := do(r, "/x", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"trusted":false}`, w.Body.String())

	w = do(r, "/x", "Bearer "+operator)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"trusted":true}`, w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, do(r, "/x", "Bearer garbage").Code)
}

type countingLimiter struct{ hits map[string]int }

func (l *countingLimiter) CheckRateLimit(_ context.Context, subject, action string, limit int, _ time.Duration) (bool, error) {
	l.hits[subject+action]++
	return l.hits[subject+action] <= limit, nil
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter := &countingLimiter{hits: map[string]int{}}
	r := newRouter(middleware.RateLimitMiddleware(limiter, 2, time.Minute))

	assert.Equal(t, http.StatusOK, do(r, "/x", "").Code)
	assert.Equal(t, http.StatusOK, do(r, "/x", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, do(r, "/x", "").Code)

	open := newRouter(middleware.RateLimitMiddleware(nil, 2, time.Minute))
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, do(open, "/x", "").Code)
	}
}
