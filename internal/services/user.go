package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"aq-panel/internal/config"
	"aq-panel/internal/models"
	"aq-panel/internal/store"
)

const (
	usersRoot      = "users"
	userEmailIndex = "indexes/user_emails"
	userNameIndex  = "indexes/user_names"

	DefaultUserRole = "OPERATOR"
)

// userDoc is the persisted form of a user, hash included.
type userDoc struct {
	models.User
	PasswordHash string `json:"password_hash"`
}

type indexEntry struct {
	ID string `json:"id"`
}

type CreateUserInput struct {
	Email        string
	Username     string
	Password     string
	FullName     string
	Role         string
	PhoneNumber  string
	Organization string
}

// UpdateUserInput holds the fields to change; nil pointers are left alone.
// Password is rehashed only when non-empty.
type UpdateUserInput struct {
	Email         *string
	Username      *string
	FullName      *string
	Role          *string
	PhoneNumber   *string
	Organization  *string
	IsActive      *bool
	EmailVerified *bool
	Password      string
}

type UserService struct {
	store       store.Store
	authService *AuthService
	now         func() time.Time
}

func NewUserService(st store.Store, authService *AuthService) *UserService {
	return &UserService{store: st, authService: authService, now: time.Now}
}

// GetUsers returns all users ordered by creation time.
func (s *UserService) GetUsers(ctx context.Context) ([]models.User, error) {
	children, err := s.store.Children(ctx, usersRoot, 0)
	if err != nil {
		return nil, err
	}

	users := make([]models.User, 0, len(children))
	for _, c := range children {
		var doc userDoc
		if err := c.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode user %s: %w", c.Key, err)
		}
		doc.ID = c.Key
		users = append(users, doc.User)
	}

	sort.SliceStable(users, func(i, j int) bool {
		return users[i].CreatedAt < users[j].CreatedAt
	})
	return users, nil
}

// GetUser returns a specific user by ID
func (s *UserService) GetUser(ctx context.Context, id string) (*models.User, error) {
	doc, err := s.getDoc(ctx, id)
	if err != nil {
		return nil, err
	}
	return &doc.User, nil
}

// FindByIdentifier looks a user up by email first, then by username.
func (s *UserService) FindByIdentifier(ctx context.Context, identifier string) (*models.User, error) {
	doc, err := s.findDoc(ctx, identifier)
	if err != nil {
		return nil, err
	}
	return &doc.User, nil
}

// CreateUser creates a new user
func (s *UserService) CreateUser(ctx context.Context, in CreateUserInput) (*models.User, error) {
	in.Email = strings.TrimSpace(in.Email)
	in.Username = strings.TrimSpace(in.Username)
	if in.Email == "" || in.Username == "" || in.Password == "" {
		return nil, fmt.Errorf("%w: email, username, password", ErrMissingFields)
	}

	if taken, err := s.indexTaken(ctx, userEmailIndex, in.Email, ""); err != nil {
		return nil, err
	} else if taken {
		return nil, ErrUserExists
	}
	if taken, err := s.indexTaken(ctx, userNameIndex, in.Username, ""); err != nil {
		return nil, err
	} else if taken {
		return nil, ErrUserExists
	}

	hashedPassword, err := s.authService.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	role := in.Role
	if role == "" {
		role = DefaultUserRole
	}

	now := nowMillis(s.now)
	doc := userDoc{
		User: models.User{
			ID:           uuid.NewString(),
			Email:        in.Email,
			Username:     in.Username,
			FullName:     in.FullName,
			Role:         role,
			PhoneNumber:  in.PhoneNumber,
			Organization: in.Organization,
			IsActive:     true,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
		PasswordHash: hashedPassword,
	}

	if err := s.store.Set(ctx, store.Join(usersRoot, doc.ID), doc); err != nil {
		return nil, err
	}
	if err := s.setIndexes(ctx, doc.ID, doc.Email, doc.Username); err != nil {
		return nil, err
	}

	return &doc.User, nil
}

// UpdateUser merges the given fields into the stored user.
func (s *UserService) UpdateUser(ctx context.Context, id string, in UpdateUserInput) (*models.User, error) {
	doc, err := s.getDoc(ctx, id)
	if err != nil {
		return nil, err
	}
	oldEmail, oldUsername := doc.Email, doc.Username

	if in.Email != nil {
		email := strings.TrimSpace(*in.Email)
		if email != "" && email != doc.Email {
			if taken, err := s.indexTaken(ctx, userEmailIndex, email, id); err != nil {
				return nil, err
			} else if taken {
				return nil, ErrUserExists
			}
			doc.Email = email
		}
	}
	if in.Username != nil {
		username := strings.TrimSpace(*in.Username)
		if username != "" && username != doc.Username {
			if taken, err := s.indexTaken(ctx, userNameIndex, username, id); err != nil {
				return nil, err
			} else if taken {
				return nil, ErrUserExists
			}
			doc.Username = username
		}
	}
	if in.FullName != nil {
		doc.FullName = *in.FullName
	}
	if in.Role != nil && *in.Role != "" {
		doc.Role = *in.Role
	}
	if in.PhoneNumber != nil {
		doc.PhoneNumber = *in.PhoneNumber
	}
	if in.Organization != nil {
		doc.Organization = *in.Organization
	}
	if in.IsActive != nil {
		doc.IsActive = *in.IsActive
	}
	if in.EmailVerified != nil {
		doc.EmailVerified = *in.EmailVerified
	}
	if in.Password != "" {
		hashedPassword, err := s.authService.HashPassword(in.Password)
		if err != nil {
			return nil, err
		}
		doc.PasswordHash = hashedPassword
	}
	doc.UpdatedAt = nowMillis(s.now)

	if err := s.store.Set(ctx, store.Join(usersRoot, id), doc); err != nil {
		return nil, err
	}

	if doc.Email != oldEmail {
		if _, err := s.store.Remove(ctx, store.Join(userEmailIndex, hashKey(oldEmail))); err != nil {
			return nil, err
		}
	}
	if doc.Username != oldUsername {
		if _, err := s.store.Remove(ctx, store.Join(userNameIndex, hashKey(oldUsername))); err != nil {
			return nil, err
		}
	}
	if err := s.setIndexes(ctx, id, doc.Email, doc.Username); err != nil {
		return nil, err
	}

	return &doc.User, nil
}

// DeleteUser removes the user and its lookup entries.
func (s *UserService) DeleteUser(ctx context.Context, id string) error {
	doc, err := s.getDoc(ctx, id)
	if err != nil {
		return err
	}

	if _, err := s.store.Remove(ctx, store.Join(usersRoot, id)); err != nil {
		return err
	}
	if _, err := s.store.Remove(ctx, store.Join(userEmailIndex, hashKey(doc.Email))); err != nil {
		return err
	}
	_, err = s.store.Remove(ctx, store.Join(userNameIndex, hashKey(doc.Username)))
	return err
}

// Authenticate verifies credentials for an email or username. On a password
// mismatch the matched user is returned together with ErrInvalidCredentials
// so the failed attempt can be attributed to it.
func (s *UserService) Authenticate(ctx context.Context, identifier, password string) (*models.User, error) {
	doc, err := s.findDoc(ctx, identifier)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !doc.IsActive {
		return nil, ErrInvalidCredentials
	}

	if !s.authService.VerifyPassword(doc.PasswordHash, password) {
		return &doc.User, ErrInvalidCredentials
	}
	return &doc.User, nil
}

// EnsureDefaultUser creates the configured account when no user exists yet.
func (s *UserService) EnsureDefaultUser(ctx context.Context, def config.DefaultUserConfig) (bool, error) {
	children, err := s.store.Children(ctx, usersRoot, 1)
	if err != nil {
		return false, err
	}
	if len(children) > 0 || def.Username == "" || def.Password == "" {
		return false, nil
	}

	email := def.Email
	if email == "" {
		email = def.Username + "@localhost"
	}
	_, err = s.CreateUser(ctx, CreateUserInput{
		Email:    email,
		Username: def.Username,
		Password: def.Password,
		FullName: def.FullName,
		Role:     def.Role,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *UserService) getDoc(ctx context.Context, id string) (*userDoc, error) {
	if id == "" || strings.Contains(id, "/") {
		return nil, ErrUserNotFound
	}
	var doc userDoc
	if err := s.store.Get(ctx, store.Join(usersRoot, id), &doc); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	doc.ID = id
	return &doc, nil
}

func (s *UserService) findDoc(ctx context.Context, identifier string) (*userDoc, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, ErrUserNotFound
	}

	for _, index := range []string{userEmailIndex, userNameIndex} {
		var entry indexEntry
		err := s.store.Get(ctx, store.Join(index, hashKey(identifier)), &entry)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}

		doc, err := s.getDoc(ctx, entry.ID)
		if errors.Is(err, ErrUserNotFound) {
			// stale entry left by an interrupted write
			continue
		}
		return doc, err
	}
	return nil, ErrUserNotFound
}

// indexTaken reports whether value is claimed in index by a user other than
// exceptID.
func (s *UserService) indexTaken(ctx context.Context, index, value, exceptID string) (bool, error) {
	var entry indexEntry
	err := s.store.Get(ctx, store.Join(index, hashKey(value)), &entry)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if entry.ID == exceptID {
		return false, nil
	}
	// only count entries whose user still exists
	if _, err := s.getDoc(ctx, entry.ID); errors.Is(err, ErrUserNotFound) {
		return false, nil
	} else if err != nil {
		return false, err
	}
	return true, nil
}

func (s *UserService) setIndexes(ctx context.Context, id, email, username string) error {
	if err := s.store.Set(ctx, store.Join(userEmailIndex, hashKey(email)), indexEntry{ID: id}); err != nil {
		return err
	}
	return s.store.Set(ctx, store.Join(userNameIndex, hashKey(username)), indexEntry{ID: id})
}
