package handlers

import (
	"errors"
	"log/slog"
	"sort"

	"github.com/gin-gonic/gin"

	"aq-panel/internal/models"
	"aq-panel/internal/services"
)

type SessionHandler struct {
	sessions *services.SessionService
	users    *services.UserService
}

func NewSessionHandler(sessions *services.SessionService, users *services.UserService) *SessionHandler {
	return &SessionHandler{sessions: sessions, users: users}
}

type sessionRow struct {
	models.Session
	UserName string
}

// GetSessions lists every session, most recently active first
func (h *SessionHandler) GetSessions(c *gin.Context) {
	ctx := c.Request.Context()

	sessions, err := h.sessions.ListSessions(ctx)
	if err != nil {
		slog.Error("list sessions failed", "error", err)
		render(c, 500, "sessions.html", "Manajemen Sesi", gin.H{
			"Sessions": []sessionRow{},
			"Error":    "Gagal memuat data sesi",
		})
		return
	}

	names := map[string]string{}
	if users, err := h.users.GetUsers(ctx); err != nil {
		slog.Warn("list users for sessions failed", "error", err)
	} else {
		for _, u := range users {
			names[u.ID] = u.DisplayName()
		}
	}

	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].LastActivity > sessions[j].LastActivity
	})

	rows := make([]sessionRow, 0, len(sessions))
	for _, s := range sessions {
		name, ok := names[s.UserID]
		if !ok {
			name = shortID(s.UserID)
		}
		rows = append(rows, sessionRow{Session: s, UserName: name})
	}

	render(c, 200, "sessions.html", "Manajemen Sesi", gin.H{"Sessions": rows})
}

// InvalidateSession forces the session's owner out
func (h *SessionHandler) InvalidateSession(c *gin.Context) {
	ctx := c.Request.Context()

	session, err := h.sessions.GetSession(ctx, c.Param("id"))
	if err != nil && !errors.Is(err, services.ErrSessionNotFound) {
		slog.Error("get session failed", "error", err)
		c.String(500, "Gagal menginvalidasi sesi")
		return
	}
	if session != nil && session.Token != "" {
		if _, err := h.sessions.InvalidateSession(ctx, session.Token); err != nil {
			slog.Error("invalidate session failed", "session_id", session.SessionID, "error", err)
			c.String(500, "Gagal menginvalidasi sesi")
			return
		}
	}
	c.Redirect(302, "/sessions")
}

func (h *SessionHandler) DeleteSession(c *gin.Context) {
	if _, err := h.sessions.DeleteSession(c.Request.Context(), c.Param("id")); err != nil {
		slog.Error("delete session failed", "error", err)
		c.String(500, "Gagal menghapus sesi")
		return
	}
	c.Redirect(302, "/sessions")
}

func (h *SessionHandler) CleanExpired(c *gin.Context) {
	cleaned, err := h.sessions.CleanExpiredSessions(c.Request.Context())
	if err != nil {
		slog.Error("clean expired sessions failed", "error", err)
		c.String(500, "Gagal membersihkan sesi expired")
		return
	}
	slog.Info("expired sessions cleaned", "count", cleaned)
	c.Redirect(302, "/sessions")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8] + "..."
	}
	return id
}
