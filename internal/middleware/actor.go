// Package middleware provides Gin HTTP middleware for actor authentication, tenant
// resolution, rate limiting, security headers, request logging and audit logging.
//
// Middleware ordering matters and is enforced in router.go:
//
//	RequestID → Metrics → Logger → Security → RateLimit → Tenant → Actor → Audit → Handler
//
// Tenant and actor resolution run before any handler so the scoped query manager
// always receives both explicitly. Audit runs last so it sees the final status.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/fiee/dorsale/internal/auth"
	"github.com/fiee/dorsale/internal/db/models"
)

// Context keys set by ActorMiddleware.
const (
	UserKey   = "user"
	UserIDKey = "user_id"
)

// TokenCookie carries the actor token for browser clients.
const TokenCookie = "dorsale_token"

// TokenValidator verifies actor tokens; *auth.TokenIssuer implements it.
type TokenValidator interface {
	Validate(token string) (*auth.Claims, error)
}

// UserLoader loads users by id; *repositories.UserRepository implements it.
type UserLoader interface {
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
}

// ActorMiddleware resolves the acting user from a Bearer token or the token cookie.
// Requests without credentials continue anonymously. A malformed Authorization
// header or an invalid Bearer token is rejected; a stale cookie is ignored.
func ActorMiddleware(tokens TokenValidator, users UserLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, fromHeader := "", false
		if header := c.GetHeader("Authorization"); header != "" {
			if !strings.HasPrefix(header, "Bearer ") {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error": "Authorization header must start with 'Bearer '",
				})
				return
			}
			token, fromHeader = strings.TrimSpace(strings.TrimPrefix(header, "Bearer ")), true
		} else if cookie, err := c.Cookie(TokenCookie); err == nil {
			token = cookie
		}
		if token == "" {
			if fromHeader {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization token is empty"})
				return
			}
			c.Next()
			return
		}

		claims, err := tokens.Validate(token)
		if err != nil {
			if fromHeader {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
				return
			}
			c.Next()
			return
		}

		user, err := users.GetUserByID(c.Request.Context(), claims.UserID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to load user"})
			return
		}
		if !user.CanAct() {
			if fromHeader {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "User not found or inactive"})
				return
			}
			c.Next()
			return
		}

		c.Set(UserKey, user)
		c.Set(UserIDKey, user.ID)
		c.Next()
	}
}

// RequireActor rejects anonymous requests with 401.
func RequireActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		if Actor(c) == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}
		c.Next()
	}
}

// RequireSuperuser rejects everyone but active superusers.
func RequireSuperuser() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := Actor(c)
		if user == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}
		if !user.IsSuperuser {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Superuser access required"})
			return
		}
		c.Next()
	}
}

// Actor returns the acting user, or nil for anonymous requests.
func Actor(c *gin.Context) *models.User {
	v, ok := c.Get(UserKey)
	if !ok {
		return nil
	}
	user, _ := v.(*models.User)
	return user
}

// ActorID returns the id of the acting user, or 0 when anonymous.
func ActorID(c *gin.Context) int64 {
	if user := Actor(c); user != nil {
		return user.ID
	}
	return 0
}
