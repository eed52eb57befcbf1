package rbac

import (
	"context"

	"github.com/backoffice/backoffice/internal/permissions"
)

// Role is a user's role within one organization, with its permission set
// resolved.
type Role struct {
	ID             int64
	OrganizationID int64
	Name           string
	Slug           string
	Permissions    []permissions.Config
}

// MembershipResolver answers membership questions for (user, organization)
// pairs.
type MembershipResolver interface {
	IsMember(ctx context.Context, userID, organizationID int64) (bool, error)
	// GetRole returns nil without error when the user is not a member.
	GetRole(ctx context.Context, userID, organizationID int64) (*Role, error)
}

// TokenVerifier turns a bearer credential into a user id.
type TokenVerifier interface {
	UserIDFromToken(token string) (int64, error)
}

// DecisionRecorder observes authorization outcomes.
type DecisionRecorder interface {
	ObserveDecision(action permissions.Action, subject permissions.Subject, allowed bool)
}
