package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"aq-panel/internal/models"
	"aq-panel/internal/store"
)

const rolesRoot = "roles"

const (
	RoleSuperAdmin   = "SUPER_ADMIN"
	RoleAdminTambang = "ADMIN_TAMBANG"
	RoleOperator     = "OPERATOR"
	RoleViewer       = "VIEWER"
)

type RoleInput struct {
	RoleName    string
	Description string
	Permissions string
}

// DefaultRoles are seeded at startup.
var DefaultRoles = []RoleInput{
	{
		RoleName:    RoleSuperAdmin,
		Description: "Administrator utama dengan akses penuh ke semua fitur sistem",
		Permissions: `{"dashboard":true,"monitoring":true,"users":{"read":true,"create":true,"update":true,"delete":true},"roles":{"read":true,"create":true,"update":true,"delete":true},"logs":true,"settings":true}`,
	},
	{
		RoleName:    RoleAdminTambang,
		Description: "Administrator tambang dengan akses manajemen pengguna dan monitoring",
		Permissions: `{"dashboard":true,"monitoring":true,"users":{"read":true,"create":true,"update":true,"delete":false},"roles":{"read":true,"create":false,"update":false,"delete":false},"logs":true,"settings":false}`,
	},
	{
		RoleName:    RoleOperator,
		Description: "Operator lapangan yang mengelola perangkat sensor dan data monitoring",
		Permissions: `{"dashboard":true,"monitoring":true,"users":{"read":false,"create":false,"update":false,"delete":false},"roles":{"read":false,"create":false,"update":false,"delete":false},"logs":false,"settings":false}`,
	},
	{
		RoleName:    RoleViewer,
		Description: "Pengguna yang hanya dapat melihat data dashboard dan monitoring",
		Permissions: `{"dashboard":true,"monitoring":true,"users":{"read":false,"create":false,"update":false,"delete":false},"roles":{"read":false,"create":false,"update":false,"delete":false},"logs":false,"settings":false}`,
	},
}

type RoleService struct {
	store store.Store
	now   func() time.Time
}

func NewRoleService(st store.Store) *RoleService {
	return &RoleService{store: st, now: time.Now}
}

func (s *RoleService) ListRoles(ctx context.Context) ([]models.Role, error) {
	children, err := s.store.Children(ctx, rolesRoot, 0)
	if err != nil {
		return nil, err
	}

	roles := make([]models.Role, 0, len(children))
	for _, c := range children {
		var role models.Role
		if err := c.Decode(&role); err != nil {
			return nil, fmt.Errorf("decode role %s: %w", c.Key, err)
		}
		role.RoleID = c.Key
		roles = append(roles, role)
	}

	sort.SliceStable(roles, func(i, j int) bool {
		return roles[i].CreatedAt < roles[j].CreatedAt
	})
	return roles, nil
}

func (s *RoleService) GetRole(ctx context.Context, id string) (*models.Role, error) {
	if id == "" || strings.Contains(id, "/") {
		return nil, ErrRoleNotFound
	}
	var role models.Role
	if err := s.store.Get(ctx, store.Join(rolesRoot, id), &role); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrRoleNotFound
		}
		return nil, err
	}
	role.RoleID = id
	return &role, nil
}

// GetRoleByName returns the first role with the given name. Names are
// unique by convention only.
func (s *RoleService) GetRoleByName(ctx context.Context, name string) (*models.Role, error) {
	roles, err := s.ListRoles(ctx)
	if err != nil {
		return nil, err
	}
	for i := range roles {
		if roles[i].RoleName == name {
			return &roles[i], nil
		}
	}
	return nil, ErrRoleNotFound
}

func (s *RoleService) CreateRole(ctx context.Context, in RoleInput) (*models.Role, error) {
	name := strings.TrimSpace(in.RoleName)
	if name == "" {
		return nil, fmt.Errorf("%w: role_name", ErrMissingFields)
	}
	permissions := in.Permissions
	if strings.TrimSpace(permissions) == "" {
		permissions = "{}"
	}

	now := nowMillis(s.now)
	role := models.Role{
		RoleID:      uuid.NewString(),
		RoleName:    name,
		Description: in.Description,
		Permissions: permissions,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Set(ctx, store.Join(rolesRoot, role.RoleID), role); err != nil {
		return nil, err
	}
	return &role, nil
}

// UpdateRole overwrites name, description and permissions. An empty name
// or permission string keeps the stored value.
func (s *RoleService) UpdateRole(ctx context.Context, id string, in RoleInput) (*models.Role, error) {
	role, err := s.GetRole(ctx, id)
	if err != nil {
		return nil, err
	}

	if name := strings.TrimSpace(in.RoleName); name != "" {
		role.RoleName = name
	}
	role.Description = in.Description
	if strings.TrimSpace(in.Permissions) != "" {
		role.Permissions = in.Permissions
	}
	role.UpdatedAt = nowMillis(s.now)

	if err := s.store.Set(ctx, store.Join(rolesRoot, id), role); err != nil {
		return nil, err
	}
	return role, nil
}

func (s *RoleService) DeleteRole(ctx context.Context, id string) error {
	if id == "" || strings.Contains(id, "/") {
		return ErrRoleNotFound
	}
	existed, err := s.store.Remove(ctx, store.Join(rolesRoot, id))
	if err != nil {
		return err
	}
	if !existed {
		return ErrRoleNotFound
	}
	return nil
}

// SeedDefaultRoles creates every default role that is missing and refreshes
// the description and permissions of the ones already present. It returns
// the number of roles created.
func (s *RoleService) SeedDefaultRoles(ctx context.Context) (int, error) {
	roles, err := s.ListRoles(ctx)
	if err != nil {
		return 0, err
	}
	byName := make(map[string]models.Role, len(roles))
	for _, r := range roles {
		if _, seen := byName[r.RoleName]; !seen {
			byName[r.RoleName] = r
		}
	}

	created := 0
	for _, def := range DefaultRoles {
		existing, ok := byName[def.RoleName]
		if !ok {
			if _, err := s.CreateRole(ctx, def); err != nil {
				return created, fmt.Errorf("seed role %s: %w", def.RoleName, err)
			}
			created++
			continue
		}

		err := s.store.Update(ctx, store.Join(rolesRoot, existing.RoleID), map[string]any{
			"description": def.Description,
			"permissions": def.Permissions,
			"updated_at":  nowMillis(s.now),
		})
		if err != nil {
			return created, fmt.Errorf("refresh role %s: %w", def.RoleName, err)
		}
	}
	return created, nil
}
