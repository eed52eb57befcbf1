package users

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/backoffice/backoffice/internal/audit"
	"github.com/backoffice/backoffice/internal/shared"
)

// RepositoryPort defines data access methods for organization members.
type RepositoryPort interface {
	ListMembers(ctx context.Context, organizationID int64) ([]Member, error)
	GetMember(ctx context.Context, organizationID, userID int64) (*Member, error)
	FindUserIDByEmail(ctx context.Context, email string) (int64, error)
	RoleBelongs(ctx context.Context, organizationID, roleID int64) (bool, error)
	OwnerID(ctx context.Context, organizationID int64) (int64, error)
	InsertMember(ctx context.Context, organizationID, userID, roleID int64) error
	UpdateMemberRole(ctx context.Context, organizationID, userID, roleID int64) error
	DeleteMember(ctx context.Context, organizationID, userID int64) error
}

// Invalidator drops cached authorization decisions for an organization.
type Invalidator interface {
	Invalidate(ctx context.Context, organizationID int64) error
}

// AuditTrail records authorization changes.
type AuditTrail interface {
	Record(ctx context.Context, e audit.Entry) error
}

// Service handles membership business logic.
type Service struct {
	repo        RepositoryPort
	invalidator Invalidator
	trail       AuditTrail
	logger      *slog.Logger
}

// NewService builds Service instance. invalidator may be nil.
func NewService(repo RepositoryPort, invalidator Invalidator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, invalidator: invalidator, logger: logger}
}

// WithAuditTrail records every committed membership change to trail.
func (s *Service) WithAuditTrail(trail AuditTrail) *Service {
	s.trail = trail
	return s
}

// List returns the organization's members with their role.
func (s *Service) List(ctx context.Context, organizationID int64) ([]Member, error) {
	members, err := s.repo.ListMembers(ctx, organizationID)
	if err != nil {
		return nil, err
	}
	if members == nil {
		members = []Member{}
	}
	return members, nil
}

// AddMember grants an existing user a role in the organization.
func (s *Service) AddMember(ctx context.Context, organizationID int64, in AddMemberInput) (*Member, error) {
	userID, err := s.repo.FindUserIDByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if err := s.checkRole(ctx, organizationID, in.RoleID); err != nil {
		return nil, err
	}
	if err := s.repo.InsertMember(ctx, organizationID, userID, in.RoleID); err != nil {
		return nil, err
	}
	s.changed(ctx, organizationID, userID, "membership.added", map[string]any{"roleId": in.RoleID})
	return s.repo.GetMember(ctx, organizationID, userID)
}

// UpdateMemberRole moves the member to another role of the same organization.
// The owner's role cannot be changed.
func (s *Service) UpdateMemberRole(ctx context.Context, organizationID, userID int64, in UpdateMemberInput) (*Member, error) {
	if err := s.checkRole(ctx, organizationID, in.RoleID); err != nil {
		return nil, err
	}
	owner, err := s.repo.OwnerID(ctx, organizationID)
	if err != nil {
		return nil, err
	}
	if owner == userID {
		return nil, fmt.Errorf("the organization owner's role cannot be changed: %w", shared.ErrConflict)
	}
	if err := s.repo.UpdateMemberRole(ctx, organizationID, userID, in.RoleID); err != nil {
		return nil, err
	}
	s.changed(ctx, organizationID, userID, "membership.updated", map[string]any{"roleId": in.RoleID})
	return s.repo.GetMember(ctx, organizationID, userID)
}

// RemoveMember revokes the membership. The organization owner cannot be
// removed.
func (s *Service) RemoveMember(ctx context.Context, organizationID, userID int64) error {
	owner, err := s.repo.OwnerID(ctx, organizationID)
	if err != nil {
		return err
	}
	if owner == userID {
		return fmt.Errorf("the organization owner cannot be removed: %w", shared.ErrConflict)
	}
	if err := s.repo.DeleteMember(ctx, organizationID, userID); err != nil {
		return err
	}
	s.changed(ctx, organizationID, userID, "membership.removed", nil)
	return nil
}

func (s *Service) checkRole(ctx context.Context, organizationID, roleID int64) error {
	ok, err := s.repo.RoleBelongs(ctx, organizationID, roleID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("role %d does not belong to organization %d: %w", roleID, organizationID, shared.ErrNotFound)
	}
	return nil
}

func (s *Service) changed(ctx context.Context, organizationID, userID int64, action string, meta map[string]any) {
	if s.invalidator != nil {
		if err := s.invalidator.Invalidate(ctx, organizationID); err != nil {
			s.logger.Error("invalidate authz cache", slog.Int64("organization_id", organizationID), slog.Any("error", err))
		}
	}
	if s.trail == nil {
		return
	}
	err := s.trail.Record(ctx, audit.Entry{
		OrganizationID: organizationID,
		Action:         action,
		Entity:         audit.EntityMembership,
		EntityID:       strconv.FormatInt(userID, 10),
		Meta:           meta,
	})
	if err != nil {
		s.logger.Warn("record audit entry", slog.String("action", action), slog.Any("error", err))
	}
}
