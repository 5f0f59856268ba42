package services

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"aq-panel/internal/config"
	"aq-panel/internal/models"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrRoleNotFound       = errors.New("role not found")
	ErrSessionNotFound    = errors.New("session not found")
	ErrMissingFields      = errors.New("missing required fields")
)

// DefaultTokenTTL is used when jwt.expires_in does not parse.
const DefaultTokenTTL = 8 * time.Hour

type AuthService struct {
	cfg *config.Config
	now func() time.Time
}

func NewAuthService(cfg *config.Config) *AuthService {
	return &AuthService{cfg: cfg, now: time.Now}
}

// HashPassword hashes a password using bcrypt
func (s *AuthService) HashPassword(password string) (string, error) {
	cost := s.cfg.Security.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	return string(bytes), err
}

// VerifyPassword verifies a password against a hash
func (s *AuthService) VerifyPassword(hashedPassword, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
	return err == nil
}

// TokenTTL is the lifetime of issued tokens, cookies and session records.
func (s *AuthService) TokenTTL() time.Duration {
	ttl, err := time.ParseDuration(s.cfg.JWT.ExpiresIn)
	if err != nil || ttl <= 0 {
		return DefaultTokenTTL
	}
	return ttl
}

// IssueToken signs an HS256 token carrying the user's identity.
func (s *AuthService) IssueToken(user *models.User) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.TokenTTL())

	claims := jwt.MapClaims{
		"id":        user.ID,
		"email":     user.Email,
		"role":      user.Role,
		"full_name": user.FullName,
		"exp":       expiresAt.Unix(),
		"iat":       now.Unix(),
		"iss":       s.cfg.JWT.Issuer,
		// two logins in the same second must still get distinct tokens
		"jti": uuid.NewString(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWT.Secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ParseToken checks the signature and exp claim and returns the identity.
func (s *AuthService) ParseToken(raw string) (*models.Identity, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWT.Secret), nil
	}, jwt.WithExpirationRequired(), jwt.WithTimeFunc(s.now))
	if err != nil || !tok.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	id, _ := claims["id"].(string)
	if id == "" {
		return nil, ErrInvalidToken
	}
	email, _ := claims["email"].(string)
	role, _ := claims["role"].(string)
	fullName, _ := claims["full_name"].(string)

	return &models.Identity{ID: id, Email: email, Role: role, FullName: fullName}, nil
}

// hashKey turns an arbitrary string into a path-safe index key.
func hashKey(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func nowMillis(now func() time.Time) int64 {
	return now().UnixMilli()
}
