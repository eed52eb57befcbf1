package roles

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/backoffice/backoffice/internal/audit"
	"github.com/backoffice/backoffice/internal/permissions"
	"github.com/backoffice/backoffice/internal/shared"
)

// PermissionResolver maps configs to catalog rows.
type PermissionResolver interface {
	Resolve(ctx context.Context, configs []permissions.Config) ([]permissions.Permission, error)
}

// Invalidator drops cached authorization decisions for an organization.
type Invalidator interface {
	Invalidate(ctx context.Context, organizationID int64) error
}

// AuditTrail records authorization changes.
type AuditTrail interface {
	Record(ctx context.Context, e audit.Entry) error
}

// Service handles role business logic.
type Service struct {
	repo        Repository
	catalog     PermissionResolver
	invalidator Invalidator
	trail       AuditTrail
	logger      *slog.Logger
}

// NewService builds Service instance. invalidator may be nil.
func NewService(repo Repository, catalog PermissionResolver, invalidator Invalidator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, catalog: catalog, invalidator: invalidator, logger: logger}
}

// WithAuditTrail records every committed role change to trail.
func (s *Service) WithAuditTrail(trail AuditTrail) *Service {
	s.trail = trail
	return s
}

// CreateRole creates a role and its permission set in one transaction.
func (s *Service) CreateRole(ctx context.Context, organizationID int64, in CreateRoleInput) (*Role, error) {
	name := strings.TrimSpace(in.Name)
	slug := strings.TrimSpace(in.Slug)
	if name == "" || slug == "" {
		return nil, fmt.Errorf("role name and slug are required: %w", shared.ErrValidation)
	}
	ids, err := s.resolve(ctx, in.PermissionConfigs)
	if err != nil {
		return nil, err
	}

	var roleID int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		taken, err := tx.SlugTaken(ctx, organizationID, slug, 0)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("a role with slug %q already exists: %w", slug, shared.ErrConflict)
		}
		roleID, err = tx.Insert(ctx, organizationID, name, slug)
		if err != nil {
			return err
		}
		return tx.ReplacePermissions(ctx, roleID, ids)
	})
	if err != nil {
		return nil, err
	}
	s.changed(ctx, organizationID, roleID, "role.created", map[string]any{
		"slug": slug, "permissions": configStrings(in.PermissionConfigs),
	})
	return s.repo.Get(ctx, organizationID, roleID)
}

// UpdateRole applies a partial update. Supplied permission configs replace
// the whole set.
func (s *Service) UpdateRole(ctx context.Context, organizationID, roleID int64, in UpdateRoleInput) (*Role, error) {
	current, err := s.repo.Get(ctx, organizationID, roleID)
	if err != nil {
		return nil, err
	}
	name, slug := current.Name, current.Slug
	if in.Name != nil && strings.TrimSpace(*in.Name) != "" {
		name = strings.TrimSpace(*in.Name)
	}
	if in.Slug != nil && strings.TrimSpace(*in.Slug) != "" {
		slug = strings.TrimSpace(*in.Slug)
	}

	var ids []int64
	replace := in.PermissionConfigs != nil
	if replace {
		if ids, err = s.resolve(ctx, in.PermissionConfigs); err != nil {
			return nil, err
		}
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		if slug != current.Slug {
			taken, err := tx.SlugTaken(ctx, organizationID, slug, roleID)
			if err != nil {
				return err
			}
			if taken {
				return fmt.Errorf("a role with slug %q already exists: %w", slug, shared.ErrConflict)
			}
		}
		if err := tx.UpdateFields(ctx, organizationID, roleID, name, slug); err != nil {
			return err
		}
		if !replace {
			return nil
		}
		if !grantsManageAll(in.PermissionConfigs) {
			held, err := tx.HeldByOwner(ctx, organizationID, roleID)
			if err != nil {
				return err
			}
			if held {
				return fmt.Errorf("the owner's role must keep %s: %w", manageAll, shared.ErrConflict)
			}
		}
		return tx.ReplacePermissions(ctx, roleID, ids)
	})
	if err != nil {
		return nil, err
	}
	meta := map[string]any{"slug": slug}
	if replace {
		meta["permissions"] = configStrings(in.PermissionConfigs)
	}
	s.changed(ctx, organizationID, roleID, "role.updated", meta)
	return s.repo.Get(ctx, organizationID, roleID)
}

// DeleteRole removes the role, its permission rows and its memberships.
func (s *Service) DeleteRole(ctx context.Context, organizationID, roleID int64) error {
	var slug string
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		role, err := tx.Get(ctx, organizationID, roleID)
		if err != nil {
			return err
		}
		slug = role.Slug
		held, err := tx.HeldByOwner(ctx, organizationID, roleID)
		if err != nil {
			return err
		}
		if held {
			return fmt.Errorf("role %q is held by the organization owner: %w", slug, shared.ErrConflict)
		}
		return tx.Delete(ctx, organizationID, roleID)
	})
	if err != nil {
		return err
	}
	s.changed(ctx, organizationID, roleID, "role.deleted", map[string]any{"slug": slug})
	return nil
}

// GetRole returns one role of the organization.
func (s *Service) GetRole(ctx context.Context, organizationID, roleID int64) (*Role, error) {
	return s.repo.Get(ctx, organizationID, roleID)
}

// ListRoles returns the organization's roles with permissions resolved.
func (s *Service) ListRoles(ctx context.Context, organizationID int64, filters SearchFilters) (RoleList, error) {
	filters.Name = strings.TrimSpace(filters.Name)
	filters.Slug = strings.TrimSpace(filters.Slug)
	list, err := s.repo.List(ctx, organizationID, filters)
	if err != nil {
		return RoleList{}, err
	}
	if list == nil {
		list = []Role{}
	}
	return RoleList{Roles: list, Metadata: Metadata{Total: len(list), Params: filters}}, nil
}

func (s *Service) resolve(ctx context.Context, configs []permissions.Config) ([]int64, error) {
	if len(configs) == 0 {
		return nil, nil
	}
	perms, err := s.catalog.Resolve(ctx, configs)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(perms))
	for i, p := range perms {
		ids[i] = p.ID
	}
	return ids, nil
}

// changed runs after commit. Failures are logged; stale cache entries still
// expire with the cache TTL.
func (s *Service) changed(ctx context.Context, organizationID, roleID int64, action string, meta map[string]any) {
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
		Entity:         audit.EntityRole,
		EntityID:       strconv.FormatInt(roleID, 10),
		Meta:           meta,
	})
	if err != nil {
		s.logger.Warn("record audit entry", slog.String("action", action), slog.Any("error", err))
	}
}

var manageAll = permissions.Config{Action: permissions.ActionManage, Subject: permissions.SubjectAll}

func grantsManageAll(configs []permissions.Config) bool {
	for _, c := range configs {
		if c == manageAll {
			return true
		}
	}
	return false
}

func configStrings(configs []permissions.Config) []string {
	out := make([]string, 0, len(configs))
	for _, c := range permissions.Dedupe(configs) {
		out = append(out, c.String())
	}
	return out
}
