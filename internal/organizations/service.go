package organizations

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

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

// Service handles organization business logic.
type Service struct {
	repo        Repository
	catalog     PermissionResolver
	invalidator Invalidator
	logger      *slog.Logger
}

// NewService builds Service instance. invalidator may be nil.
func NewService(repo Repository, catalog PermissionResolver, invalidator Invalidator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, catalog: catalog, invalidator: invalidator, logger: logger}
}

// Create makes a new organization owned by ownerID. The owner role (manage,
// all) and the creator's membership are written in the same transaction.
func (s *Service) Create(ctx context.Context, ownerID int64, in CreateInput) (*Organization, error) {
	name := strings.TrimSpace(in.Name)
	slug := Slugify(in.Slug)
	if slug == "" {
		slug = Slugify(name)
	}
	if name == "" || slug == "" {
		return nil, fmt.Errorf("organization name and slug are required: %w", shared.ErrValidation)
	}

	ownerPerms, err := s.catalog.Resolve(ctx, []permissions.Config{{Action: permissions.ActionManage, Subject: permissions.SubjectAll}})
	if err != nil {
		return nil, fmt.Errorf("resolve owner permissions: %w", err)
	}
	ids := make([]int64, len(ownerPerms))
	for i, p := range ownerPerms {
		ids[i] = p.ID
	}

	var created *Organization
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		taken, err := tx.NameOrSlugTaken(ctx, name, slug, 0)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("an organization named %q or with slug %q already exists: %w", name, slug, shared.ErrConflict)
		}
		created, err = tx.Insert(ctx, name, slug, ownerID)
		if err != nil {
			return err
		}
		roleID, err := tx.InsertRole(ctx, created.ID, "Owner", OwnerRoleSlug, ids)
		if err != nil {
			return err
		}
		return tx.InsertMembership(ctx, ownerID, created.ID, roleID)
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Get returns one organization.
func (s *Service) Get(ctx context.Context, id int64) (*Organization, error) {
	return s.repo.Get(ctx, id)
}

// ListForUser returns the organizations the user belongs to.
func (s *Service) ListForUser(ctx context.Context, userID int64) ([]Organization, error) {
	orgs, err := s.repo.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if orgs == nil {
		orgs = []Organization{}
	}
	return orgs, nil
}

// Update renames an organization or changes its slug.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (*Organization, error) {
	var updated *Organization
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		current, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		name, slug := current.Name, current.Slug
		if in.Name != nil && strings.TrimSpace(*in.Name) != "" {
			name = strings.TrimSpace(*in.Name)
		}
		if in.Slug != nil {
			if slug = Slugify(*in.Slug); slug == "" {
				return fmt.Errorf("slug %q has no usable characters: %w", *in.Slug, shared.ErrValidation)
			}
		}
		taken, err := tx.NameOrSlugTaken(ctx, name, slug, id)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("an organization named %q or with slug %q already exists: %w", name, slug, shared.ErrConflict)
		}
		updated, err = tx.Update(ctx, id, name, slug)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes the organization with its roles and memberships.
func (s *Service) Delete(ctx context.Context, id int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		return tx.Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	if s.invalidator != nil {
		if err := s.invalidator.Invalidate(ctx, id); err != nil {
			s.logger.Error("invalidate authz cache", slog.Int64("organization_id", id), slog.Any("error", err))
		}
	}
	return nil
}
