package auth

import "time"

// User represents a user account.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	Avatar       string    `json:"avatar,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Membership is one organization the user belongs to, with the role held.
type Membership struct {
	OrganizationID   int64  `json:"organizationId"`
	OrganizationName string `json:"organizationName"`
	OrganizationSlug string `json:"organizationSlug"`
	RoleID           int64  `json:"roleId"`
	RoleName         string `json:"roleName"`
	RoleSlug         string `json:"roleSlug"`
}

// Profile is the user together with their memberships.
type Profile struct {
	User
	Organizations []Membership `json:"organizations"`
}

// LoginResult is returned by the login flows.
type LoginResult struct {
	AccessToken string  `json:"accessToken"`
	UserData    Profile `json:"userData"`
}

// RegisterInput is the self-registration payload.
type RegisterInput struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required,max=120"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// LoginInput is the email/password login payload.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ExternalLoginInput carries the raw ID token minted by the configured
// OpenID Connect provider.
type ExternalLoginInput struct {
	IDToken string `json:"idToken"`
}

// UpdateProfileInput is a partial profile update.
type UpdateProfileInput struct {
	Name   *string `json:"name,omitempty" validate:"omitempty,min=1,max=120"`
	Avatar *string `json:"avatar,omitempty" validate:"omitempty,url"`
}
