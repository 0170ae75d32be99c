// auth.go implements password login, logout and the current-user endpoint.
package admin

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/fiee/dorsale/internal/auth"
	"github.com/fiee/dorsale/internal/db/repositories"
	"github.com/fiee/dorsale/internal/middleware"
)

// AuthHandlers handles authentication endpoints
type AuthHandlers struct {
	userRepo     *repositories.UserRepository
	tokens       *auth.TokenIssuer
	secureCookie bool
}

// NewAuthHandlers creates a new AuthHandlers instance
func NewAuthHandlers(db *sqlx.DB, tokens *auth.TokenIssuer, secureCookie bool) *AuthHandlers {
	return &AuthHandlers{
		userRepo:     repositories.NewUserRepository(db),
		tokens:       tokens,
		secureCookie: secureCookie,
	}
}

type loginRequest struct {
	Username string `json:"username" form:"username" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
}

// @Summary      Log in
// @Description  Check username and password and issue an actor token. The token is also set as a cookie for browser clients.
// @Tags         Authentication
// @Accept       json
// @Produce      json
// @Param        body  body  loginRequest  true  "username, password"
// @Success      200  {object}  map[string]interface{}  "token, expires_in, user"
// @Failure      400  {object}  map[string]interface{}  "Invalid request"
// @Failure      401  {object}  map[string]interface{}  "Invalid credentials"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /auth/login [post]
// LoginHandler exchanges credentials for an actor token
// POST /auth/login
func (h *AuthHandlers) LoginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBind(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
			return
		}

		user, err := h.userRepo.GetUserByUsername(c.Request.Context(), req.Username)
		if err != nil {
			slog.Error("failed to look up user", "username", req.Username, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to log in"})
			return
		}
		if user == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid username or password"})
			return
		}

		ok, err := auth.CheckPassword(user.PasswordHash, req.Password)
		if err != nil {
			slog.Error("stored password hash is unusable", "user_id", user.ID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to log in"})
			return
		}
		if !ok || !user.CanAct() {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid username or password"})
			return
		}

		token, err := h.tokens.Generate(user)
		if err != nil {
			slog.Error("failed to issue token", "user_id", user.ID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to log in"})
			return
		}

		maxAge := int(h.tokens.TTL().Seconds())
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(middleware.TokenCookie, token, maxAge, "/", "", h.secureCookie, true)
		slog.Info("user logged in", "user_id", user.ID, "request_id", middleware.RequestID(c))

		c.JSON(http.StatusOK, gin.H{
			"token":      token,
			"expires_in": maxAge,
			"user":       user,
		})
	}
}

// LogoutHandler clears the token cookie
// POST /auth/logout
func (h *AuthHandlers) LogoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(middleware.TokenCookie, "", -1, "/", "", h.secureCookie, true)
		c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
	}
}

// @Summary      Current user
// @Description  Returns the acting user and the groups they belong to.
// @Tags         Authentication
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "user, groups"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Router       /auth/me [get]
// MeHandler returns the acting user
// GET /auth/me
func (h *AuthHandlers) MeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := middleware.Actor(c)
		if user == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		groups, err := h.userRepo.Groups(c.Request.Context(), user.ID)
		if err != nil {
			// groups are informational here
			slog.Warn("failed to load groups", "user_id", user.ID, "error", err)
		}

		c.JSON(http.StatusOK, gin.H{
			"user":   user,
			"groups": groups,
		})
	}
}
