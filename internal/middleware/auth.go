package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"provably-fair-backend/internal/services"
)

const (
	ContextOperatorID = "operator_id"
	ContextRole       = "role"
)

type TokenValidator interface {
	ValidateToken(tokenString string) (*services.Claims, error)
}

type RateLimiter interface {
	CheckRateLimit(ctx context.Context, subject, action string, limit int, window time.Duration) (bool, error)
}

// AuthMiddleware requires a valid bearer token, read from the Authorization
// header or the token query parameter (browsers cannot set headers on
// websocket upgrades).
func AuthMiddleware(jwtService TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization format"})
			c.Abort()
			return
		}
		if tokenString == "" {
			tokenString = c.Query("token")
		}
		if tokenString == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		if !authenticate(c, jwtService, tokenString) {
			return
		}
		c.Next()
	}
}

// OptionalAuth accepts anonymous callers but rejects a token that is
// present and invalid.
func OptionalAuth(jwtService TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization format"})
			c.Abort()
			return
		}
		if tokenString != "" && !authenticate(c, jwtService, tokenString) {
			return
		}
		c.Next()
	}
}

func RequireOperator() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IsTrusted(c) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Operator role required"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// IsTrusted reports whether the request carries an operator token.
func IsTrusted(c *gin.Context) bool {
	return c.GetString(ContextRole) == services.RoleOperator
}

func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", true
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", false
	}
	return parts[1], true
}

func authenticate(c *gin.Context, jwtService TokenValidator, tokenString string) bool {
	claims, err := jwtService.ValidateToken(tokenString)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
		c.Abort()
		return false
	}

	c.Set(ContextOperatorID, claims.OperatorID)
	c.Set(ContextRole, claims.Role)
	return true
}

// RateLimitMiddleware caps requests per client IP and route. A nil limiter
// disables it.
func RateLimitMiddleware(limiter RateLimiter, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil || limit <= 0 {
			c.Next()
			return
		}

		allowed, err := limiter.CheckRateLimit(c.Request.Context(), c.ClientIP(), c.FullPath(), limit, window)
		if err != nil || !allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"retry_after": window.Seconds(),
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
