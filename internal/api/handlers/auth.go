package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"aq-panel/internal/api/middleware"
	"aq-panel/internal/config"
	"aq-panel/internal/models"
	"aq-panel/internal/services"
)

const loginFailedMessage = "Email/username atau password salah"

// LoginRecorder counts login outcomes.
type LoginRecorder interface {
	RecordLogin(status string)
}

type AuthHandler struct {
	authService *services.AuthService
	users       *services.UserService
	sessions    *services.SessionService
	logs        *services.ActivityLogService
	cfg         *config.Config
	metrics     LoginRecorder
}

func NewAuthHandler(authService *services.AuthService, users *services.UserService, sessions *services.SessionService, logs *services.ActivityLogService, cfg *config.Config, metrics LoginRecorder) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		users:       users,
		sessions:    sessions,
		logs:        logs,
		cfg:         cfg,
		metrics:     metrics,
	}
}

// LoginPage renders the login form
func (h *AuthHandler) LoginPage(c *gin.Context) {
	c.HTML(200, "login.html", gin.H{"Title": "Login"})
}

// Login checks the credentials, issues the token cookie and opens a session
func (h *AuthHandler) Login(c *gin.Context) {
	identifier := c.PostForm("identifier")
	password := c.PostForm("password")
	ctx := c.Request.Context()

	user, err := h.users.Authenticate(ctx, identifier, password)
	if err != nil {
		if !errors.Is(err, services.ErrInvalidCredentials) {
			slog.Error("login failed", "error", err)
			h.loginPage(c, 500, identifier, "Terjadi kesalahan server")
			return
		}

		entry := services.LogEntry{
			ActionType:  "LOGIN",
			Module:      "AUTH",
			Description: "Login gagal untuk " + identifier,
			Status:      models.LogStatusFailed,
		}
		if user != nil {
			id := user.ID
			entry.UserID = &id
			entry.Description = "Password salah"
		}
		logEvent(c, h.logs, entry)
		h.record(models.LogStatusFailed)
		h.loginPage(c, 401, identifier, loginFailedMessage)
		return
	}

	token, expiresAt, err := h.authService.IssueToken(user)
	if err != nil {
		slog.Error("token signing failed", "user_id", user.ID, "error", err)
		h.loginPage(c, 500, identifier, "Terjadi kesalahan server")
		return
	}

	_, err = h.sessions.CreateSession(ctx, services.CreateSessionInput{
		UserID:    user.ID,
		Token:     token,
		IPAddress: c.ClientIP(),
		UserAgent: c.GetHeader("User-Agent"),
		ExpiresAt: expiresAt.UnixMilli(),
	})
	if err != nil {
		slog.Error("session create failed", "user_id", user.ID, "error", err)
		h.loginPage(c, 500, identifier, "Terjadi kesalahan server")
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.TokenCookie, token, int(h.authService.TokenTTL().Seconds()), "/", "", h.cfg.Security.CookieSecure, true)

	id := user.ID
	logEvent(c, h.logs, services.LogEntry{
		UserID:      &id,
		ActionType:  "LOGIN",
		Module:      "AUTH",
		Description: "Login berhasil",
		Status:      models.LogStatusSuccess,
	})
	h.record(models.LogStatusSuccess)

	c.Redirect(302, "/dashboard")
}

// Logout invalidates the session and clears the cookie
func (h *AuthHandler) Logout(c *gin.Context) {
	if token := middleware.CurrentToken(c); token != "" {
		if _, err := h.sessions.InvalidateSession(c.Request.Context(), token); err != nil {
			slog.Warn("session invalidate failed", "error", err)
		}
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.TokenCookie, "", -1, "/", "", h.cfg.Security.CookieSecure, true)

	if userID := userIDPtr(c); userID != nil {
		logEvent(c, h.logs, services.LogEntry{
			UserID:      userID,
			ActionType:  "LOGOUT",
			Module:      "AUTH",
			Description: "Logout",
			Status:      models.LogStatusSuccess,
		})
	}

	c.Redirect(302, "/login")
}

func (h *AuthHandler) loginPage(c *gin.Context, status int, identifier, message string) {
	c.HTML(status, "login.html", gin.H{
		"Title":      "Login",
		"Identifier": identifier,
		"Error":      message,
	})
}

func (h *AuthHandler) record(status string) {
	if h.metrics != nil {
		h.metrics.RecordLogin(status)
	}
}
