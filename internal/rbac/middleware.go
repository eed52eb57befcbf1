package rbac

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/backoffice/backoffice/internal/permissions"
	"github.com/backoffice/backoffice/internal/shared"
)

// Middleware wires RBAC authorization helpers for HTTP handlers.
type Middleware struct {
	Service  *Service
	Verifier TokenVerifier
	Logger   *slog.Logger
}

// Authenticated requires a valid bearer token.
func (m Middleware) Authenticated() Stage {
	return func(r *http.Request, rc *RequestContext) error {
		if rc.UserID > 0 {
			return nil
		}
		token, ok := BearerToken(r)
		if !ok {
			return fmt.Errorf("missing bearer token: %w", shared.ErrUnauthorized)
		}
		userID, err := m.Verifier.UserIDFromToken(token)
		if err != nil {
			return fmt.Errorf("invalid bearer token: %w", shared.ErrUnauthorized)
		}
		rc.UserID = userID
		return nil
	}
}

// OrganizationMember requires the caller to hold a role in the organization
// named by the route. Without a decision cache it loads that role for the
// Permission stage; with one it checks the cached membership instead.
func (m Middleware) OrganizationMember() Stage {
	return func(r *http.Request, rc *RequestContext) error {
		if err := requireUser(rc); err != nil {
			return err
		}
		if err := organizationID(r, rc); err != nil {
			return err
		}
		if rc.Member || (rc.Role != nil && rc.Role.OrganizationID == rc.OrganizationID) {
			return nil
		}
		if m.Service.Cached() {
			ok, err := m.Service.IsMember(r.Context(), rc.UserID, rc.OrganizationID)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("not a member of organization %d: %w", rc.OrganizationID, shared.ErrForbidden)
			}
			rc.Member = true
			return nil
		}
		role, err := m.Service.GetRole(r.Context(), rc.UserID, rc.OrganizationID)
		if err != nil {
			return err
		}
		if role == nil {
			return fmt.Errorf("not a member of organization %d: %w", rc.OrganizationID, shared.ErrForbidden)
		}
		rc.Role = role
		rc.Member = true
		return nil
	}
}

// Permission requires the caller's role to grant (action, subject).
func (m Middleware) Permission(action permissions.Action, subject permissions.Subject) Stage {
	return func(r *http.Request, rc *RequestContext) error {
		if err := requireUser(rc); err != nil {
			return err
		}
		if err := organizationID(r, rc); err != nil {
			return err
		}
		var allowed bool
		if rc.Role != nil && rc.Role.OrganizationID == rc.OrganizationID {
			allowed = m.Service.Authorize(rc.Role, action, subject)
		} else {
			ok, err := m.Service.IsAllowed(r.Context(), rc.UserID, rc.OrganizationID, action, subject)
			if err != nil {
				return err
			}
			allowed = ok
		}
		if !allowed {
			return fmt.Errorf("%s on %s not permitted: %w", action, subject, shared.ErrForbidden)
		}
		return nil
	}
}

// RequireAuth authenticates the request.
func (m Middleware) RequireAuth() func(http.Handler) http.Handler {
	return Guard(m.Logger, m.Authenticated())
}

// RequireMember authenticates and checks organization membership.
func (m Middleware) RequireMember() func(http.Handler) http.Handler {
	return Guard(m.Logger, m.Authenticated(), m.OrganizationMember())
}

// RequirePermission authenticates, checks membership and then checks
// (action, subject) within the route's organization.
func (m Middleware) RequirePermission(action permissions.Action, subject permissions.Subject) func(http.Handler) http.Handler {
	return Guard(m.Logger, m.Authenticated(), m.OrganizationMember(), m.Permission(action, subject))
}
