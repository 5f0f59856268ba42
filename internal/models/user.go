package models

// User is a console account. The password hash never leaves the services
// package.
type User struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	Username      string `json:"username"`
	FullName      string `json:"full_name"`
	Role          string `json:"role"` // references Role.RoleName
	PhoneNumber   string `json:"phone_number,omitempty"`
	Organization  string `json:"organization,omitempty"`
	IsActive      bool   `json:"is_active"`
	EmailVerified bool   `json:"email_verified"`
	CreatedAt     int64  `json:"created_at"`
	UpdatedAt     int64  `json:"updated_at,omitempty"`
}

// DisplayName is the full name, or the username when no name is set.
func (u User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Username
}

// Identity is what the credential token carries and what the auth
// middleware attaches to a request.
type Identity struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	FullName string `json:"full_name"`
}

type Role struct {
	RoleID      string `json:"role_id"`
	RoleName    string `json:"role_name"`
	Description string `json:"description,omitempty"`
	Permissions string `json:"permissions"` // serialized capability map
	CreatedAt   int64  `json:"created_at"`
	UpdatedAt   int64  `json:"updated_at"`
}

// Session timestamps are epoch milliseconds.
type Session struct {
	SessionID    string `json:"session_id"`
	UserID       string `json:"user_id"`
	Token        string `json:"token"`
	IPAddress    string `json:"ip_address"`
	UserAgent    string `json:"user_agent,omitempty"`
	IsActive     bool   `json:"is_active"`
	ExpiresAt    int64  `json:"expires_at"`
	CreatedAt    int64  `json:"created_at"`
	LastActivity int64  `json:"last_activity"`
}

// Expired reports whether the stored expiry lies before nowMillis. The
// IsActive flag is only reconciled with it by an explicit sweep.
func (s Session) Expired(nowMillis int64) bool {
	return s.ExpiresAt != 0 && s.ExpiresAt < nowMillis
}

const (
	LogStatusSuccess = "SUCCESS"
	LogStatusFailed  = "FAILED"
)

type ActivityLog struct {
	ID          string         `json:"id"`
	UserID      *string        `json:"user_id"` // nil for unauthenticated or system actors
	ActionType  string         `json:"action_type"`
	Module      string         `json:"module"`
	Description string         `json:"description"`
	Status      string         `json:"status"`
	IPAddress   string         `json:"ip_address"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   int64          `json:"created_at"`
}
