package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"aq-panel/internal/models"
	"aq-panel/internal/store"
)

const (
	sessionsRoot      = "sessions"
	sessionTokenIndex = "indexes/session_tokens"
)

type CreateSessionInput struct {
	UserID    string
	Token     string
	IPAddress string
	UserAgent string
	ExpiresAt int64 // epoch ms
}

// SessionService tracks login sessions. Read-modify-write sequences here are
// not transactional; concurrent writers to one session resolve last write wins.
type SessionService struct {
	store store.Store
	now   func() time.Time
}

func NewSessionService(st store.Store) *SessionService {
	return &SessionService{store: st, now: time.Now}
}

// CreateSession stores a new active session. Token collisions are not
// checked.
func (s *SessionService) CreateSession(ctx context.Context, in CreateSessionInput) (*models.Session, error) {
	ip := in.IPAddress
	if ip == "" {
		ip = "unknown"
	}

	now := nowMillis(s.now)
	session := models.Session{
		SessionID:    uuid.NewString(),
		UserID:       in.UserID,
		Token:        in.Token,
		IPAddress:    ip,
		UserAgent:    in.UserAgent,
		IsActive:     true,
		ExpiresAt:    in.ExpiresAt,
		CreatedAt:    now,
		LastActivity: now,
	}

	if err := s.store.Set(ctx, store.Join(sessionsRoot, session.SessionID), session); err != nil {
		return nil, err
	}
	if err := s.store.Set(ctx, s.tokenPath(in.Token), indexEntry{ID: session.SessionID}); err != nil {
		return nil, err
	}
	return &session, nil
}

// GetSessionByToken returns the active session holding token, or
// ErrSessionNotFound when there is none.
func (s *SessionService) GetSessionByToken(ctx context.Context, token string) (*models.Session, error) {
	if token == "" {
		return nil, ErrSessionNotFound
	}

	var entry indexEntry
	err := s.store.Get(ctx, s.tokenPath(token), &entry)
	switch {
	case err == nil:
		session, err := s.GetSession(ctx, entry.ID)
		if err == nil && session.Token == token && session.IsActive {
			return session, nil
		}
		if err != nil && !errors.Is(err, ErrSessionNotFound) {
			return nil, err
		}
	case !errors.Is(err, store.ErrNotFound):
		return nil, err
	}

	// The index is written after the session itself, so a crash in between
	// leaves a session only a scan can find.
	sessions, err := s.ListSessions(ctx)
	if err != nil {
		return nil, err
	}
	for i := range sessions {
		if sessions[i].Token == token && sessions[i].IsActive {
			_ = s.store.Set(ctx, s.tokenPath(token), indexEntry{ID: sessions[i].SessionID})
			return &sessions[i], nil
		}
	}
	return nil, ErrSessionNotFound
}

func (s *SessionService) GetSession(ctx context.Context, id string) (*models.Session, error) {
	if id == "" || strings.Contains(id, "/") {
		return nil, ErrSessionNotFound
	}
	var session models.Session
	if err := s.store.Get(ctx, store.Join(sessionsRoot, id), &session); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	session.SessionID = id
	return &session, nil
}

// UpdateLastActivity stamps last_activity. A missing session is ignored.
func (s *SessionService) UpdateLastActivity(ctx context.Context, id string) error {
	if id == "" || strings.Contains(id, "/") {
		return nil
	}
	err := s.store.Update(ctx, store.Join(sessionsRoot, id), map[string]any{
		"last_activity": nowMillis(s.now),
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	return err
}

// InvalidateSession deactivates the active session holding token and
// reports whether one was found.
func (s *SessionService) InvalidateSession(ctx context.Context, token string) (bool, error) {
	session, err := s.GetSessionByToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return false, nil
		}
		return false, err
	}

	err = s.store.Update(ctx, store.Join(sessionsRoot, session.SessionID), map[string]any{
		"is_active":     false,
		"last_activity": nowMillis(s.now),
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// InvalidateUserSessions deactivates every active session of userID and
// returns how many were changed.
func (s *SessionService) InvalidateUserSessions(ctx context.Context, userID string) (int, error) {
	sessions, err := s.ListSessions(ctx)
	if err != nil {
		return 0, err
	}

	changed := 0
	for _, session := range sessions {
		if session.UserID != userID || !session.IsActive {
			continue
		}
		err := s.store.Update(ctx, store.Join(sessionsRoot, session.SessionID), map[string]any{
			"is_active":     false,
			"last_activity": nowMillis(s.now),
		})
		if err != nil {
			return changed, fmt.Errorf("invalidate session %s: %w", session.SessionID, err)
		}
		changed++
	}
	return changed, nil
}

// ListSessions returns every session in key order; display code sorts.
func (s *SessionService) ListSessions(ctx context.Context) ([]models.Session, error) {
	children, err := s.store.Children(ctx, sessionsRoot, 0)
	if err != nil {
		return nil, err
	}

	sessions := make([]models.Session, 0, len(children))
	for _, c := range children {
		var session models.Session
		if err := c.Decode(&session); err != nil {
			return nil, fmt.Errorf("decode session %s: %w", c.Key, err)
		}
		session.SessionID = c.Key
		sessions = append(sessions, session)
	}
	return sessions, nil
}

// ListUserSessions returns the active sessions of userID.
func (s *SessionService) ListUserSessions(ctx context.Context, userID string) ([]models.Session, error) {
	sessions, err := s.ListSessions(ctx)
	if err != nil {
		return nil, err
	}
	var out []models.Session
	for _, session := range sessions {
		if session.UserID == userID && session.IsActive {
			out = append(out, session)
		}
	}
	return out, nil
}

// DeleteSession removes a session permanently and reports whether it existed.
func (s *SessionService) DeleteSession(ctx context.Context, id string) (bool, error) {
	session, err := s.GetSession(ctx, id)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return false, nil
		}
		return false, err
	}

	existed, err := s.store.Remove(ctx, store.Join(sessionsRoot, id))
	if err != nil {
		return false, err
	}
	if session.Token != "" {
		if _, err := s.store.Remove(ctx, s.tokenPath(session.Token)); err != nil {
			return existed, err
		}
	}
	return existed, nil
}

// CleanExpiredSessions deactivates every active session whose expires_at
// has passed and returns how many changed. Nothing calls it on a timer.
func (s *SessionService) CleanExpiredSessions(ctx context.Context) (int, error) {
	sessions, err := s.ListSessions(ctx)
	if err != nil {
		return 0, err
	}

	now := nowMillis(s.now)
	cleaned := 0
	for _, session := range sessions {
		if !session.IsActive || !session.Expired(now) {
			continue
		}
		err := s.store.Update(ctx, store.Join(sessionsRoot, session.SessionID), map[string]any{
			"is_active": false,
		})
		if err != nil {
			return cleaned, fmt.Errorf("expire session %s: %w", session.SessionID, err)
		}
		cleaned++
	}
	return cleaned, nil
}

func (s *SessionService) tokenPath(token string) string {
	return store.Join(sessionTokenIndex, hashKey(token))
}
