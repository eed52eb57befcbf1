// Package organizations manages tenants and bootstraps their owner role.
package organizations

import "time"

// Organization is a tenant.
type Organization struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	OwnerID   int64     `json:"ownerId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CreateInput is the payload for creating an organization. An empty slug is
// derived from the name.
type CreateInput struct {
	Name string `json:"name" validate:"required,max=160"`
	Slug string `json:"slug,omitempty" validate:"omitempty,max=160"`
}

// UpdateInput is a partial update.
type UpdateInput struct {
	Name *string `json:"name,omitempty" validate:"omitempty,min=1,max=160"`
	Slug *string `json:"slug,omitempty" validate:"omitempty,min=1,max=160"`
}

// OwnerRoleSlug names the role every new organization starts with.
const OwnerRoleSlug = "owner"
