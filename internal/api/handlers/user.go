package handlers

import (
	"errors"
	"log/slog"

	"github.com/gin-gonic/gin"

	"aq-panel/internal/api/middleware"
	"aq-panel/internal/models"
	"aq-panel/internal/services"
)

type UserHandler struct {
	users    *services.UserService
	roles    *services.RoleService
	sessions *services.SessionService
}

func NewUserHandler(users *services.UserService, roles *services.RoleService, sessions *services.SessionService) *UserHandler {
	return &UserHandler{users: users, roles: roles, sessions: sessions}
}

// GetUsers lists all users
func (h *UserHandler) GetUsers(c *gin.Context) {
	h.renderIndex(c, 200, "")
}

// CreateUser creates a user from the form and returns to the list
func (h *UserHandler) CreateUser(c *gin.Context) {
	if !isSuperAdmin(c) && c.PostForm("role") == services.RoleSuperAdmin {
		c.String(403, middleware.AccessDenied)
		return
	}

	_, err := h.users.CreateUser(c.Request.Context(), services.CreateUserInput{
		Email:        c.PostForm("email"),
		Username:     c.PostForm("username"),
		Password:     c.PostForm("password"),
		FullName:     c.PostForm("full_name"),
		Role:         c.PostForm("role"),
		PhoneNumber:  c.PostForm("phone_number"),
		Organization: c.PostForm("organization"),
	})
	switch {
	case err == nil:
		c.Redirect(302, "/users")
	case errors.Is(err, services.ErrMissingFields):
		h.renderIndex(c, 400, "Email, username, dan password wajib diisi")
	case errors.Is(err, services.ErrUserExists):
		h.renderIndex(c, 400, "Email atau username sudah digunakan")
	default:
		slog.Error("create user failed", "error", err)
		c.String(500, "Gagal membuat pengguna")
	}
}

// EditUser shows the edit form
func (h *UserHandler) EditUser(c *gin.Context) {
	user, err := h.users.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			c.String(404, "Pengguna tidak ditemukan")
			return
		}
		slog.Error("get user failed", "error", err)
		c.String(500, "Gagal memuat pengguna")
		return
	}
	h.renderEdit(c, 200, user, "")
}

// UpdateUser applies the edit form. The password is changed only when a new
// one is given.
func (h *UserHandler) UpdateUser(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	target, err := h.users.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			c.String(404, "Pengguna tidak ditemukan")
			return
		}
		slog.Error("get user failed", "user_id", id, "error", err)
		c.String(500, "Gagal memperbarui pengguna")
		return
	}

	in := services.UpdateUserInput{
		FullName:      formValue(c, "full_name"),
		PhoneNumber:   formValue(c, "phone_number"),
		Organization:  formValue(c, "organization"),
		Email:         formValue(c, "email"),
		Username:      formValue(c, "username"),
		Role:          formValue(c, "role"),
		IsActive:      formBool(c, "is_active"),
		EmailVerified: formBool(c, "email_verified"),
		Password:      c.PostForm("password"),
	}

	// Only SUPER_ADMIN may touch SUPER_ADMIN accounts or change its own role.
	if !isSuperAdmin(c) {
		if target.Role == services.RoleSuperAdmin || (in.Role != nil && *in.Role == services.RoleSuperAdmin) {
			c.String(403, middleware.AccessDenied)
			return
		}
		if identity := middleware.CurrentIdentity(c); identity != nil && identity.ID == id {
			in.Role = nil
		}
	}

	user, err := h.users.UpdateUser(ctx, id, in)
	switch {
	case err == nil:
	case errors.Is(err, services.ErrUserNotFound):
		c.String(404, "Pengguna tidak ditemukan")
		return
	case errors.Is(err, services.ErrUserExists):
		current, getErr := h.users.GetUser(ctx, id)
		if getErr != nil {
			c.String(500, "Gagal memperbarui pengguna")
			return
		}
		h.renderEdit(c, 400, current, "Email atau username sudah digunakan")
		return
	default:
		slog.Error("update user failed", "user_id", id, "error", err)
		c.String(500, "Gagal memperbarui pengguna")
		return
	}

	if !user.IsActive {
		if _, err := h.sessions.InvalidateUserSessions(ctx, user.ID); err != nil {
			slog.Warn("invalidate sessions of deactivated user failed", "user_id", user.ID, "error", err)
		}
	}

	c.Redirect(302, "/users")
}

// DeleteUser removes a user and ends its sessions
func (h *UserHandler) DeleteUser(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	if identity := middleware.CurrentIdentity(c); identity != nil && identity.ID == id {
		h.renderIndex(c, 400, "Tidak dapat menghapus akun sendiri")
		return
	}

	if err := h.users.DeleteUser(ctx, id); err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			c.String(404, "Pengguna tidak ditemukan")
			return
		}
		slog.Error("delete user failed", "user_id", id, "error", err)
		c.String(500, "Gagal menghapus pengguna")
		return
	}

	if _, err := h.sessions.InvalidateUserSessions(ctx, id); err != nil {
		slog.Warn("invalidate sessions of deleted user failed", "user_id", id, "error", err)
	}

	c.Redirect(302, "/users")
}

func (h *UserHandler) renderIndex(c *gin.Context, status int, message string) {
	ctx := c.Request.Context()
	data := gin.H{}

	users, err := h.users.GetUsers(ctx)
	if err != nil {
		slog.Error("list users failed", "error", err)
		status, message = 500, "Gagal memuat pengguna"
		users = []models.User{}
	}
	data["Users"] = users
	data["Roles"] = h.roleOptions(c)
	if message != "" {
		data["Error"] = message
	}

	render(c, status, "users_index.html", "Manajemen Pengguna", data)
}

func (h *UserHandler) renderEdit(c *gin.Context, status int, user *models.User, message string) {
	data := gin.H{
		"Edit":  user,
		"Roles": h.roleOptions(c),
	}
	if message != "" {
		data["Error"] = message
	}
	render(c, status, "users_edit.html", "Edit Pengguna", data)
}

func (h *UserHandler) roleOptions(c *gin.Context) []models.Role {
	roles, err := h.roles.ListRoles(c.Request.Context())
	if err != nil {
		slog.Warn("list roles failed", "error", err)
		return nil
	}
	if isSuperAdmin(c) {
		return roles
	}
	assignable := make([]models.Role, 0, len(roles))
	for _, r := range roles {
		if r.RoleName != services.RoleSuperAdmin {
			assignable = append(assignable, r)
		}
	}
	return assignable
}

func isSuperAdmin(c *gin.Context) bool {
	identity := middleware.CurrentIdentity(c)
	return identity != nil && identity.Role == services.RoleSuperAdmin
}

// formValue returns a pointer to the posted value, or nil when the field was
// not posted at all.
func formValue(c *gin.Context, key string) *string {
	v, ok := c.GetPostForm(key)
	if !ok {
		return nil
	}
	return &v
}

// formBool reads a checkbox paired with a hidden "false" input. It returns
// nil when the field was not posted, so the stored value is kept.
func formBool(c *gin.Context, key string) *bool {
	values, ok := c.GetPostFormArray(key)
	if !ok {
		return nil
	}
	b := false
	for _, v := range values {
		if v == "true" || v == "on" || v == "1" {
			b = true
		}
	}
	return &b
}
