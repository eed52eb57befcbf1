package roles

import (
	"time"

	"github.com/backoffice/backoffice/internal/permissions"
)

// Role is an organization-scoped named set of permissions.
type Role struct {
	ID             int64                `json:"id"`
	OrganizationID int64                `json:"organizationId"`
	Name           string               `json:"name"`
	Slug           string               `json:"slug"`
	Permissions    []permissions.Config `json:"permissions"`
	CreatedAt      time.Time            `json:"createdAt"`
	UpdatedAt      time.Time            `json:"updatedAt"`
}

// CreateRoleInput is the payload for creating a role.
type CreateRoleInput struct {
	Name              string               `json:"name" validate:"required,max=120"`
	Slug              string               `json:"slug" validate:"required,max=120"`
	PermissionConfigs []permissions.Config `json:"permissionConfigs" validate:"dive"`
}

// UpdateRoleInput is the payload for a partial role update. A nil
// PermissionConfigs leaves the permission set alone; an empty slice clears it.
type UpdateRoleInput struct {
	Name              *string              `json:"name,omitempty" validate:"omitempty,min=1,max=120"`
	Slug              *string              `json:"slug,omitempty" validate:"omitempty,min=1,max=120"`
	PermissionConfigs []permissions.Config `json:"permissionConfigs,omitempty" validate:"omitempty,dive"`
}

// SearchFilters narrows ListRoles. Name matches case-insensitively as a
// substring; Slug matches exactly.
type SearchFilters struct {
	Name string `json:"name,omitempty"`
	Slug string `json:"slug,omitempty"`
}

// Metadata describes a role listing.
type Metadata struct {
	Total  int           `json:"total"`
	Params SearchFilters `json:"params"`
}

// RoleList is the ListRoles result.
type RoleList struct {
	Roles    []Role   `json:"roles"`
	Metadata Metadata `json:"metadata"`
}
