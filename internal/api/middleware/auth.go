package middleware

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"aq-panel/internal/models"
)

const (
	TokenCookie = "token"
	identityKey = "identity"
	tokenKey    = "token"

	refreshTimeout = 5 * time.Second

	// AccessDenied is the body of every 403 answer.
	AccessDenied = "Akses ditolak"
)

type TokenParser interface {
	ParseToken(raw string) (*models.Identity, error)
}

// SessionTracker is what the auth gate needs to keep last_activity fresh.
type SessionTracker interface {
	GetSessionByToken(ctx context.Context, token string) (*models.Session, error)
	UpdateLastActivity(ctx context.Context, id string) error
}

// AuthRequired verifies the token from the "token" cookie or a Bearer
// header and attaches the identity. Anything else redirects to /login.
//
// The session's last_activity is refreshed on a detached goroutine that
// outlives the request. The session record is not consulted for the
// decision itself: a valid token passes even when its session has been
// invalidated or has expired.
func AuthRequired(tokens TokenParser, sessions SessionTracker) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			redirectToLogin(c)
			return
		}

		identity, err := tokens.ParseToken(token)
		if err != nil {
			slog.Debug("token rejected", "path", c.Request.URL.Path, "error", err)
			redirectToLogin(c)
			return
		}

		c.Set(identityKey, identity)
		c.Set(tokenKey, token)

		if sessions != nil {
			go refreshSession(sessions, token)
		}

		c.Next()
	}
}

func refreshSession(sessions SessionTracker, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	session, err := sessions.GetSessionByToken(ctx, token)
	if err != nil {
		return
	}
	if session.ExpiresAt <= time.Now().UnixMilli() {
		return
	}
	if err := sessions.UpdateLastActivity(ctx, session.SessionID); err != nil {
		slog.Debug("session refresh failed", "session_id", session.SessionID, "error", err)
	}
}

// RequireRole admits identities whose role is listed. An empty list admits
// every authenticated identity.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := CurrentIdentity(c)
		if identity == nil {
			redirectToLogin(c)
			return
		}

		if len(roles) == 0 {
			c.Next()
			return
		}

		for _, role := range roles {
			if identity.Role == role {
				c.Next()
				return
			}
		}

		c.String(403, AccessDenied)
		c.Abort()
	}
}

// CurrentIdentity returns the identity attached by AuthRequired, or nil.
func CurrentIdentity(c *gin.Context) *models.Identity {
	v, exists := c.Get(identityKey)
	if !exists {
		return nil
	}
	identity, _ := v.(*models.Identity)
	return identity
}

// CurrentToken returns the raw token the request was authenticated with.
func CurrentToken(c *gin.Context) string {
	return c.GetString(tokenKey)
}

func extractToken(c *gin.Context) string {
	if cookie, err := c.Cookie(TokenCookie); err == nil && cookie != "" {
		return cookie
	}
	authHeader := c.GetHeader("Authorization")
	if token, ok := strings.CutPrefix(authHeader, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

func redirectToLogin(c *gin.Context) {
	c.Redirect(302, "/login")
	c.Abort()
}
