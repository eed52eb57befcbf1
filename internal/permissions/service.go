package permissions

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

const resolveConcurrency = 8

// RepositoryPort defines data access methods for the catalog.
type RepositoryPort interface {
	FindByConfig(ctx context.Context, cfg Config) (Permission, error)
	List(ctx context.Context) ([]Permission, error)
	Upsert(ctx context.Context, configs []Config) (int, error)
}

// Service exposes catalog lookups.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// FindByPermissionConfig returns the permission matching (action, subject).
func (s *Service) FindByPermissionConfig(ctx context.Context, action Action, subject Subject) (Permission, error) {
	cfg := Config{Action: action, Subject: subject}
	if err := cfg.Validate(); err != nil {
		return Permission{}, err
	}
	return s.repo.FindByConfig(ctx, cfg)
}

// List returns every catalog row.
func (s *Service) List(ctx context.Context) ([]Permission, error) {
	perms, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if perms == nil {
		perms = []Permission{}
	}
	return perms, nil
}

// Resolve looks up every config concurrently and returns the matching rows
// in input order with duplicates removed. Any miss fails the whole call.
func (s *Service) Resolve(ctx context.Context, configs []Config) ([]Permission, error) {
	unique := Dedupe(configs)
	for _, cfg := range unique {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	out := make([]Permission, len(unique))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(resolveConcurrency)
	for i, cfg := range unique {
		g.Go(func() error {
			p, err := s.repo.FindByConfig(gctx, cfg)
			if err != nil {
				return err
			}
			out[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Seed makes sure every (action, subject) pair exists. It reports how many
// rows were newly inserted.
func (s *Service) Seed(ctx context.Context) (int, error) {
	n, err := s.repo.Upsert(ctx, Catalog())
	if err != nil {
		return 0, fmt.Errorf("seed permissions: %w", err)
	}
	return n, nil
}
