package generic

import (
	"crypto/rand"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"

	"github.com/fiee/dorsale/internal/config"
)

// Flashes keeps one-time messages in a signed session cookie until the next
// rendered page shows them.
type Flashes struct {
	store sessions.Store
	name  string
}

// NewFlashes creates a cookie-backed flash store. Without a secret a random
// one is generated, so messages do not survive a restart.
func NewFlashes(cfg config.SessionsConfig) (*Flashes, error) {
	secret := []byte(cfg.Secret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("failed to generate session secret: %w", err)
		}
		slog.Warn("sessions.secret is not set, using a random one")
	}
	store := sessions.NewCookieStore(secret)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	name := cfg.CookieName
	if name == "" {
		name = "dorsale_session"
	}
	return &Flashes{store: store, name: name}, nil
}

// Add queues msg for the next page.
func (f *Flashes) Add(c *gin.Context, msg string) {
	if f == nil {
		return
	}
	// Get returns a fresh session when the cookie does not decode
	s, err := f.store.Get(c.Request, f.name)
	if err != nil {
		slog.Warn("discarding unreadable session", "error", err)
	}
	s.AddFlash(msg)
	if err := s.Save(c.Request, c.Writer); err != nil {
		slog.Error("failed to save flash message", "error", err)
	}
}

// Pop returns and clears the queued messages.
func (f *Flashes) Pop(c *gin.Context) []string {
	if f == nil {
		return nil
	}
	s, err := f.store.Get(c.Request, f.name)
	if err != nil {
		return nil
	}
	raw := s.Flashes()
	if len(raw) == 0 {
		return nil
	}
	if err := s.Save(c.Request, c.Writer); err != nil {
		slog.Error("failed to clear flash messages", "error", err)
	}
	out := make([]string, 0, len(raw))
	for _, m := range raw {
		if msg, ok := m.(string); ok {
			out = append(out, msg)
		}
	}
	return out
}
