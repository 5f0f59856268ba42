package services

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"aq-panel/internal/config"
	"aq-panel/internal/models"
	"aq-panel/internal/store"
)

func setupTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.OpenGorm(config.StoreConfig{
		Type:   "sqlite",
		SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "services_test.db")},
	}, false)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func testConfig() *config.Config {
	cfg := config.Defaults()
	cfg.JWT.Secret = "test-secret"
	cfg.Security.BcryptCost = bcrypt.MinCost
	return cfg
}

func ptr[T any](v T) *T { return &v }

// fixedClock returns a clock starting at start that can be moved forward.
type fixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func TestStatusFromPM25(t *testing.T) {
	tests := []struct {
		name string
		pm25 *float64
		want string
	}{
		{"missing", nil, models.StatusUnknown},
		{"zero", ptr(0.0), models.StatusGood},
		{"good boundary", ptr(55.0), models.StatusGood},
		{"just above good", ptr(55.1), models.StatusModerate},
		{"moderate boundary", ptr(150.0), models.StatusModerate},
		{"unhealthy", ptr(150.01), models.StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFromPM25(tt.pm25))
		})
	}
}

type recordingNotifier struct {
	mu      sync.Mutex
	got     []models.Measurement
	sources []string
	err     error
}

func (n *recordingNotifier) MeasurementRecorded(_ context.Context, m *models.Measurement, source string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.got = append(n.got, *m)
	n.sources = append(n.sources, source)
	return n.err
}

func TestMeasurementService(t *testing.T) {
	ctx := context.Background()
	st := setupTestStore(t)
	svc := NewMeasurementService(st, config.MonitoringConfig{})
	notifier := &recordingNotifier{}
	svc.SetNotifier(notifier)

	t.Run("save and read back", func(t *testing.T) {
		m, err := svc.SaveMeasurement(ctx, "dev-1", MeasurementInput{
			PM25:      ptr(12.0),
			PM10:      ptr(20.0),
			Timestamp: 1700000000000,
		}, "api")
		require.NoError(t, err)
		assert.Equal(t, models.StatusGood, m.Status)
		assert.Equal(t, DefaultLocation, m.Location)
		assert.Equal(t, int64(1700000000000), m.CreatedAt)

		recent, err := svc.GetRecentMeasurements(ctx, "dev-1", 10)
		require.NoError(t, err)
		require.Len(t, recent, 1)
		assert.Equal(t, 12.0, *recent[0].PM25)
		assert.Equal(t, "dev-1", recent[0].DeviceID)
	})

	t.Run("same key overwrites", func(t *testing.T) {
		_, err := svc.SaveMeasurement(ctx, "dev-1", MeasurementInput{
			PM25:      ptr(160.0),
			PM10:      ptr(200.0),
			Timestamp: 1700000000000,
		}, "api")
		require.NoError(t, err)

		recent, err := svc.GetRecentMeasurements(ctx, "dev-1", 10)
		require.NoError(t, err)
		require.Len(t, recent, 1)
		assert.Equal(t, models.StatusUnhealthy, recent[0].Status)
	})

	t.Run("recent is newest first and limited", func(t *testing.T) {
		for i := int64(1); i <= 5; i++ {
			_, err := svc.SaveMeasurement(ctx, "dev-2", MeasurementInput{
				PM25:      ptr(float64(i)),
				PM10:      ptr(float64(i)),
				Timestamp: 1700000000000 + i*600000,
			}, "api")
			require.NoError(t, err)
		}

		recent, err := svc.GetRecentMeasurements(ctx, "dev-2", 3)
		require.NoError(t, err)
		require.Len(t, recent, 3)
		assert.Equal(t, 5.0, *recent[0].PM25)
		assert.Equal(t, 4.0, *recent[1].PM25)
		assert.Equal(t, 3.0, *recent[2].PM25)

		agg, err := svc.GetAggregatedData(ctx, "dev-2", 2, 2)
		require.NoError(t, err)
		assert.Len(t, agg, 4)
	})

	t.Run("explicit status and location are kept", func(t *testing.T) {
		m, err := svc.SaveMeasurement(ctx, "dev-3", MeasurementInput{
			PM25:     ptr(10.0),
			PM10:     ptr(10.0),
			Location: "Tarakan",
			Status:   "CUSTOM",
		}, "api")
		require.NoError(t, err)
		assert.Equal(t, "CUSTOM", m.Status)
		assert.Equal(t, "Tarakan", m.Location)
		assert.NotZero(t, m.Timestamp)
	})

	t.Run("unknown device is empty", func(t *testing.T) {
		recent, err := svc.GetRecentMeasurements(ctx, "nope", 10)
		require.NoError(t, err)
		assert.Empty(t, recent)
	})

	t.Run("invalid device id", func(t *testing.T) {
		_, err := svc.SaveMeasurement(ctx, "a/b", MeasurementInput{PM25: ptr(1.0)}, "api")
		assert.ErrorIs(t, err, ErrInvalidMeasurement)
	})

	t.Run("notifier failure does not fail save", func(t *testing.T) {
		notifier.err = errors.New("broker down")
		defer func() { notifier.err = nil }()

		_, err := svc.SaveMeasurement(ctx, "dev-4", MeasurementInput{PM25: ptr(1.0), PM10: ptr(2.0)}, "mqtt")
		require.NoError(t, err)
		assert.Equal(t, "mqtt", notifier.sources[len(notifier.sources)-1])
	})
}

func TestAuthService_Tokens(t *testing.T) {
	cfg := testConfig()
	auth := NewAuthService(cfg)
	clock := &fixedClock{t: time.Now()}
	auth.now = clock.Now

	user := &models.User{ID: "u1", Email: "a@x.io", Role: RoleSuperAdmin, FullName: "Ana"}
	token, expiresAt, err := auth.IssueToken(user)
	require.NoError(t, err)
	assert.WithinDuration(t, clock.Now().Add(8*time.Hour), expiresAt, time.Second)

	identity, err := auth.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, &models.Identity{ID: "u1", Email: "a@x.io", Role: RoleSuperAdmin, FullName: "Ana"}, identity)

	other, _, err := auth.IssueToken(user)
	require.NoError(t, err)
	assert.NotEqual(t, token, other)

	_, err = auth.ParseToken(token + "x")
	assert.ErrorIs(t, err, ErrInvalidToken)

	wrongKey := NewAuthService(&config.Config{JWT: config.JWTConfig{Secret: "other"}})
	_, err = wrongKey.ParseToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	clock.Advance(9 * time.Hour)
	_, err = auth.ParseToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestUserService(t *testing.T) {
	ctx := context.Background()
	st := setupTestStore(t)
	auth := NewAuthService(testConfig())
	users := NewUserService(st, auth)

	created, err := users.CreateUser(ctx, CreateUserInput{
		Email:    "ana@example.com",
		Username: "ana",
		Password: "secret1",
		FullName: "Ana",
	})
	require.NoError(t, err)
	assert.Equal(t, DefaultUserRole, created.Role)
	assert.True(t, created.IsActive)
	assert.NotEmpty(t, created.ID)

	t.Run("duplicate email or username", func(t *testing.T) {
		_, err := users.CreateUser(ctx, CreateUserInput{Email: "ana@example.com", Username: "other", Password: "x"})
		assert.ErrorIs(t, err, ErrUserExists)
		_, err = users.CreateUser(ctx, CreateUserInput{Email: "other@example.com", Username: "ana", Password: "x"})
		assert.ErrorIs(t, err, ErrUserExists)
	})

	t.Run("missing fields", func(t *testing.T) {
		_, err := users.CreateUser(ctx, CreateUserInput{Email: "x@example.com"})
		assert.ErrorIs(t, err, ErrMissingFields)
	})

	t.Run("authenticate by email and username", func(t *testing.T) {
		u, err := users.Authenticate(ctx, "ana@example.com", "secret1")
		require.NoError(t, err)
		assert.Equal(t, created.ID, u.ID)

		u, err = users.Authenticate(ctx, "ana", "secret1")
		require.NoError(t, err)
		assert.Equal(t, created.ID, u.ID)
	})

	t.Run("wrong password returns the user", func(t *testing.T) {
		u, err := users.Authenticate(ctx, "ana", "nope")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
		require.NotNil(t, u)
		assert.Equal(t, created.ID, u.ID)
	})

	t.Run("unknown user", func(t *testing.T) {
		u, err := users.Authenticate(ctx, "ghost", "x")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
		assert.Nil(t, u)
	})

	t.Run("update without password keeps hash", func(t *testing.T) {
		updated, err := users.UpdateUser(ctx, created.ID, UpdateUserInput{
			FullName:     ptr("Ana Maria"),
			Organization: ptr("Dinas LH"),
		})
		require.NoError(t, err)
		assert.Equal(t, "Ana Maria", updated.FullName)
		assert.Equal(t, "ana@example.com", updated.Email)

		_, err = users.Authenticate(ctx, "ana", "secret1")
		assert.NoError(t, err)
	})

	t.Run("update password rehashes", func(t *testing.T) {
		_, err := users.UpdateUser(ctx, created.ID, UpdateUserInput{Password: "secret2"})
		require.NoError(t, err)

		_, err = users.Authenticate(ctx, "ana", "secret1")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
		_, err = users.Authenticate(ctx, "ana", "secret2")
		assert.NoError(t, err)
	})

	t.Run("update username moves the index", func(t *testing.T) {
		_, err := users.UpdateUser(ctx, created.ID, UpdateUserInput{Username: ptr("ana2")})
		require.NoError(t, err)

		_, err = users.FindByIdentifier(ctx, "ana")
		assert.ErrorIs(t, err, ErrUserNotFound)
		u, err := users.FindByIdentifier(ctx, "ana2")
		require.NoError(t, err)
		assert.Equal(t, created.ID, u.ID)

		_, err = users.CreateUser(ctx, CreateUserInput{Email: "new@example.com", Username: "ana", Password: "x"})
		assert.NoError(t, err)
	})

	t.Run("update to taken email", func(t *testing.T) {
		_, err := users.UpdateUser(ctx, created.ID, UpdateUserInput{Email: ptr("new@example.com")})
		assert.ErrorIs(t, err, ErrUserExists)
	})

	t.Run("inactive user cannot log in", func(t *testing.T) {
		_, err := users.UpdateUser(ctx, created.ID, UpdateUserInput{IsActive: ptr(false)})
		require.NoError(t, err)
		_, err = users.Authenticate(ctx, "ana2", "secret2")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("list ordered by creation", func(t *testing.T) {
		list, err := users.GetUsers(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.LessOrEqual(t, list[0].CreatedAt, list[1].CreatedAt)
	})

	t.Run("delete drops indexes", func(t *testing.T) {
		require.NoError(t, users.DeleteUser(ctx, created.ID))
		_, err := users.GetUser(ctx, created.ID)
		assert.ErrorIs(t, err, ErrUserNotFound)
		_, err = users.FindByIdentifier(ctx, "ana@example.com")
		assert.ErrorIs(t, err, ErrUserNotFound)
		assert.ErrorIs(t, users.DeleteUser(ctx, created.ID), ErrUserNotFound)
	})
}

func TestUserService_EnsureDefaultUser(t *testing.T) {
	ctx := context.Background()
	users := NewUserService(setupTestStore(t), NewAuthService(testConfig()))
	def := config.DefaultUserConfig{
		Email:    "admin@aq-panel.local",
		Username: "admin",
		Password: "admin123",
		FullName: "Administrator",
		Role:     RoleSuperAdmin,
	}

	created, err := users.EnsureDefaultUser(ctx, def)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = users.EnsureDefaultUser(ctx, def)
	require.NoError(t, err)
	assert.False(t, created)

	u, err := users.Authenticate(ctx, "admin", "admin123")
	require.NoError(t, err)
	assert.Equal(t, RoleSuperAdmin, u.Role)
}

func TestRoleService(t *testing.T) {
	ctx := context.Background()
	roles := NewRoleService(setupTestStore(t))

	n, err := roles.SeedDefaultRoles(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(DefaultRoles), n)

	n, err = roles.SeedDefaultRoles(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	list, err := roles.ListRoles(ctx)
	require.NoError(t, err)
	assert.Len(t, list, len(DefaultRoles))

	admin, err := roles.GetRoleByName(ctx, RoleAdminTambang)
	require.NoError(t, err)
	assert.Contains(t, admin.Permissions, `"delete":false`)

	t.Run("seed refreshes edited defaults", func(t *testing.T) {
		_, err := roles.UpdateRole(ctx, admin.RoleID, RoleInput{Description: "changed", Permissions: "{}"})
		require.NoError(t, err)

		_, err = roles.SeedDefaultRoles(ctx)
		require.NoError(t, err)

		got, err := roles.GetRole(ctx, admin.RoleID)
		require.NoError(t, err)
		assert.Equal(t, DefaultRoles[1].Description, got.Description)
		assert.Equal(t, DefaultRoles[1].Permissions, got.Permissions)
	})

	t.Run("create update delete", func(t *testing.T) {
		r, err := roles.CreateRole(ctx, RoleInput{RoleName: "AUDITOR", Description: "read only"})
		require.NoError(t, err)
		assert.Equal(t, "{}", r.Permissions)

		r, err = roles.UpdateRole(ctx, r.RoleID, RoleInput{Description: "updated"})
		require.NoError(t, err)
		assert.Equal(t, "AUDITOR", r.RoleName)
		assert.Equal(t, "updated", r.Description)

		require.NoError(t, roles.DeleteRole(ctx, r.RoleID))
		assert.ErrorIs(t, roles.DeleteRole(ctx, r.RoleID), ErrRoleNotFound)
		_, err = roles.GetRole(ctx, r.RoleID)
		assert.ErrorIs(t, err, ErrRoleNotFound)
	})

	t.Run("create requires name", func(t *testing.T) {
		_, err := roles.CreateRole(ctx, RoleInput{})
		assert.ErrorIs(t, err, ErrMissingFields)
	})
}

func TestSessionService(t *testing.T) {
	ctx := context.Background()
	sessions := NewSessionService(setupTestStore(t))
	clock := &fixedClock{t: time.UnixMilli(1700000000000)}
	sessions.now = clock.Now

	expires := clock.Now().Add(8 * time.Hour).UnixMilli()
	s1, err := sessions.CreateSession(ctx, CreateSessionInput{UserID: "u1", Token: "tok-1", ExpiresAt: expires})
	require.NoError(t, err)
	assert.Equal(t, "unknown", s1.IPAddress)
	assert.True(t, s1.IsActive)
	assert.Equal(t, s1.CreatedAt, s1.LastActivity)

	_, err = sessions.CreateSession(ctx, CreateSessionInput{UserID: "u1", Token: "tok-2", IPAddress: "10.0.0.1", ExpiresAt: expires})
	require.NoError(t, err)
	_, err = sessions.CreateSession(ctx, CreateSessionInput{UserID: "u2", Token: "tok-3", ExpiresAt: clock.Now().Add(time.Hour).UnixMilli()})
	require.NoError(t, err)

	t.Run("lookup by token", func(t *testing.T) {
		got, err := sessions.GetSessionByToken(ctx, "tok-1")
		require.NoError(t, err)
		assert.Equal(t, s1.SessionID, got.SessionID)

		_, err = sessions.GetSessionByToken(ctx, "missing")
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})

	t.Run("update activity", func(t *testing.T) {
		clock.Advance(time.Minute)
		require.NoError(t, sessions.UpdateLastActivity(ctx, s1.SessionID))
		got, err := sessions.GetSession(ctx, s1.SessionID)
		require.NoError(t, err)
		assert.Greater(t, got.LastActivity, s1.LastActivity)

		assert.NoError(t, sessions.UpdateLastActivity(ctx, "missing"))
	})

	t.Run("invalidate", func(t *testing.T) {
		ok, err := sessions.InvalidateSession(ctx, "tok-1")
		require.NoError(t, err)
		assert.True(t, ok)

		_, err = sessions.GetSessionByToken(ctx, "tok-1")
		assert.ErrorIs(t, err, ErrSessionNotFound)

		kept, err := sessions.GetSession(ctx, s1.SessionID)
		require.NoError(t, err)
		assert.False(t, kept.IsActive)
		assert.Equal(t, "tok-1", kept.Token)

		ok, err = sessions.InvalidateSession(ctx, "tok-1")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("list for user is active only", func(t *testing.T) {
		list, err := sessions.ListUserSessions(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "tok-2", list[0].Token)
	})

	t.Run("invalidate all for user", func(t *testing.T) {
		n, err := sessions.InvalidateUserSessions(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("sweep expired", func(t *testing.T) {
		clock.Advance(2 * time.Hour)
		n, err := sessions.CleanExpiredSessions(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		n, err = sessions.CleanExpiredSessions(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("delete", func(t *testing.T) {
		ok, err := sessions.DeleteSession(ctx, s1.SessionID)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = sessions.DeleteSession(ctx, s1.SessionID)
		require.NoError(t, err)
		assert.False(t, ok)

		all, err := sessions.ListSessions(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})
}

func TestSessionService_SweepExpired(t *testing.T) {
	ctx := context.Background()
	sessions := NewSessionService(setupTestStore(t))
	clock := &fixedClock{t: time.UnixMilli(1700000000000)}
	sessions.now = clock.Now

	create := func(token string, ttl time.Duration) *models.Session {
		s, err := sessions.CreateSession(ctx, CreateSessionInput{
			UserID: "u-" + token, Token: token, ExpiresAt: clock.Now().Add(ttl).UnixMilli(),
		})
		require.NoError(t, err)
		return s
	}
	expiredA := create("old-a", time.Minute)
	expiredB := create("old-b", 30*time.Minute)
	live := create("live", 8*time.Hour)

	clock.Advance(time.Hour)
	n, err := sessions.CleanExpiredSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for _, id := range []string{expiredA.SessionID, expiredB.SessionID} {
		got, err := sessions.GetSession(ctx, id)
		require.NoError(t, err)
		assert.False(t, got.IsActive, id)
	}

	got, err := sessions.GetSession(ctx, live.SessionID)
	require.NoError(t, err)
	assert.True(t, got.IsActive)
	assert.Equal(t, live.ExpiresAt, got.ExpiresAt)
	assert.Equal(t, live.LastActivity, got.LastActivity)

	_, err = sessions.GetSessionByToken(ctx, "live")
	assert.NoError(t, err)
}

func TestSessionService_IndexFallback(t *testing.T) {
	ctx := context.Background()
	st := setupTestStore(t)
	sessions := NewSessionService(st)

	s, err := sessions.CreateSession(ctx, CreateSessionInput{UserID: "u1", Token: "tok"})
	require.NoError(t, err)

	_, err = st.Remove(ctx, store.Join(sessionTokenIndex, hashKey("tok")))
	require.NoError(t, err)

	got, err := sessions.GetSessionByToken(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, s.SessionID, got.SessionID)
}

func TestActivityLogService(t *testing.T) {
	ctx := context.Background()
	logs := NewActivityLogService(setupTestStore(t))
	clock := &fixedClock{t: time.UnixMilli(1700000000000)}
	logs.now = clock.Now

	uid := "u1"
	for i := 0; i < 5; i++ {
		_, err := logs.Log(ctx, LogEntry{
			UserID:      &uid,
			ActionType:  "GET",
			Module:      "DASHBOARD",
			Description: "GET /dashboard",
		})
		require.NoError(t, err)
		clock.Advance(time.Second)
	}
	failed, err := logs.Log(ctx, LogEntry{ActionType: "LOGIN", Module: "AUTH", Status: models.LogStatusFailed})
	require.NoError(t, err)

	list, err := logs.ListLogs(ctx, 3)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, failed.ID, list[0].ID)
	assert.Nil(t, list[0].UserID)
	assert.Equal(t, models.LogStatusFailed, list[0].Status)
	assert.Equal(t, models.LogStatusSuccess, list[1].Status)
	assert.GreaterOrEqual(t, list[1].CreatedAt, list[2].CreatedAt)

	all, err := logs.ListLogs(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 6)
}

func TestExportService(t *testing.T) {
	exp := NewExportService("Asia/Makassar")
	exp.now = func() time.Time { return time.Date(2024, 3, 5, 1, 0, 0, 0, time.UTC) }

	// 2024-03-04 23:30:15 UTC is 2024-03-05 07:30:15 in Makassar (UTC+8).
	ts := time.Date(2024, 3, 4, 23, 30, 15, 0, time.UTC).UnixMilli()

	t.Run("measurements", func(t *testing.T) {
		var buf bytes.Buffer
		err := exp.WriteMeasurementsCSV(&buf, []models.Measurement{
			{Timestamp: ts, PM25: ptr(12.5), PM10: ptr(30.0), Location: "Tanjung Selor", Status: models.StatusGood},
			{Timestamp: ts, Status: models.StatusUnknown},
		})
		require.NoError(t, err)

		out := buf.String()
		require.True(t, strings.HasPrefix(out, "\uFEFF"))
		lines := strings.Split(strings.TrimRight(strings.TrimPrefix(out, "\uFEFF"), "\n"), "\n")
		require.Len(t, lines, 3)
		assert.Equal(t, "Timestamp,Tanggal,Waktu,Lokasi,PM2.5,PM10,Status", lines[0])
		assert.Equal(t, "1709595015000,5/3/2024,07.30.15,Tanjung Selor,12.5,30,BAIK", lines[1])
		assert.Equal(t, "1709595015000,5/3/2024,07.30.15,Tanjung Selor,,,UNKNOWN", lines[2])

		assert.Equal(t, "monitoring_dev-1_2024-03-05.csv", exp.MeasurementsFilename("dev-1"))
	})

	t.Run("users", func(t *testing.T) {
		var buf bytes.Buffer
		err := exp.WriteUsersCSV(&buf, []models.User{
			{ID: "u1", FullName: "Ana, M", Email: "a@x.io", Username: "ana", Role: RoleViewer, IsActive: true, CreatedAt: ts},
			{ID: "u2", Email: "b@x.io", Username: "bo", Role: RoleOperator, EmailVerified: true},
		})
		require.NoError(t, err)

		lines := strings.Split(strings.TrimRight(strings.TrimPrefix(buf.String(), "\uFEFF"), "\n"), "\n")
		require.Len(t, lines, 3)
		assert.Equal(t, "ID,Nama Lengkap,Email,Username,Phone,Organisasi,Role,Status,Email Verified,Dibuat", lines[0])
		assert.Equal(t, `u1,"Ana, M",a@x.io,ana,,,VIEWER,Aktif,Belum,5/3/2024`, lines[1])
		assert.Equal(t, "u2,,b@x.io,bo,,,OPERATOR,Nonaktif,Verified,", lines[2])

		assert.Equal(t, "users_2024-03-05.csv", exp.UsersFilename())
	})

	t.Run("unknown timezone falls back to utc", func(t *testing.T) {
		assert.Equal(t, time.UTC, NewExportService("Nowhere/Land").Location())
	})
}
