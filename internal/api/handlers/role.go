package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/gin-gonic/gin"

	"aq-panel/internal/models"
	"aq-panel/internal/services"
)

type RoleHandler struct {
	roles *services.RoleService
}

func NewRoleHandler(roles *services.RoleService) *RoleHandler {
	return &RoleHandler{roles: roles}
}

func (h *RoleHandler) GetRoles(c *gin.Context) {
	h.renderIndex(c, 200, "")
}

func (h *RoleHandler) CreateRole(c *gin.Context) {
	in, ok := roleInputFromForm(c)
	if !ok {
		h.renderIndex(c, 400, "Permissions harus berupa JSON yang valid")
		return
	}

	_, err := h.roles.CreateRole(c.Request.Context(), in)
	switch {
	case err == nil:
		c.Redirect(302, "/roles")
	case errors.Is(err, services.ErrMissingFields):
		h.renderIndex(c, 400, "Nama role wajib diisi")
	default:
		slog.Error("create role failed", "error", err)
		c.String(500, "Gagal membuat role")
	}
}

func (h *RoleHandler) EditRole(c *gin.Context) {
	role, err := h.roles.GetRole(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.roleError(c, err)
		return
	}
	render(c, 200, "roles_edit.html", "Edit Role", gin.H{"Role": role})
}

func (h *RoleHandler) UpdateRole(c *gin.Context) {
	ctx := c.Request.Context()
	in, ok := roleInputFromForm(c)
	if !ok {
		role, err := h.roles.GetRole(ctx, c.Param("id"))
		if err != nil {
			h.roleError(c, err)
			return
		}
		render(c, 400, "roles_edit.html", "Edit Role", gin.H{
			"Role":  role,
			"Error": "Permissions harus berupa JSON yang valid",
		})
		return
	}

	if _, err := h.roles.UpdateRole(ctx, c.Param("id"), in); err != nil {
		h.roleError(c, err)
		return
	}
	c.Redirect(302, "/roles")
}

func (h *RoleHandler) DeleteRole(c *gin.Context) {
	if err := h.roles.DeleteRole(c.Request.Context(), c.Param("id")); err != nil {
		h.roleError(c, err)
		return
	}
	c.Redirect(302, "/roles")
}

func (h *RoleHandler) renderIndex(c *gin.Context, status int, message string) {
	roles, err := h.roles.ListRoles(c.Request.Context())
	if err != nil {
		slog.Error("list roles failed", "error", err)
		status, message = 500, "Gagal memuat data role"
		roles = []models.Role{}
	}
	data := gin.H{"Roles": roles}
	if message != "" {
		data["Error"] = message
	}
	render(c, status, "roles_index.html", "Manajemen Role", data)
}

func (h *RoleHandler) roleError(c *gin.Context, err error) {
	if errors.Is(err, services.ErrRoleNotFound) {
		c.String(404, "Role tidak ditemukan")
		return
	}
	slog.Error("role operation failed", "role_id", c.Param("id"), "error", err)
	c.String(500, "Gagal memproses role")
}

// roleInputFromForm reads the role form and rejects permissions that are
// not JSON.
func roleInputFromForm(c *gin.Context) (services.RoleInput, bool) {
	in := services.RoleInput{
		RoleName:    c.PostForm("role_name"),
		Description: c.PostForm("description"),
		Permissions: strings.TrimSpace(c.PostForm("permissions")),
	}
	if in.Permissions != "" && !json.Valid([]byte(in.Permissions)) {
		return in, false
	}
	return in, true
}
