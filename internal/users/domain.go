package users

import "time"

// Member is a user's membership in one organization.
type Member struct {
	UserID   int64     `json:"userId"`
	Email    string    `json:"email"`
	Name     string    `json:"name"`
	Avatar   string    `json:"avatar,omitempty"`
	RoleID   int64     `json:"roleId"`
	RoleName string    `json:"roleName"`
	RoleSlug string    `json:"roleSlug"`
	JoinedAt time.Time `json:"joinedAt"`
}

// AddMemberInput invites an existing user by email.
type AddMemberInput struct {
	Email  string `json:"email" validate:"required,email"`
	RoleID int64  `json:"roleId" validate:"required,gt=0"`
}

// UpdateMemberInput changes the member's role.
type UpdateMemberInput struct {
	RoleID int64 `json:"roleId" validate:"required,gt=0"`
}
