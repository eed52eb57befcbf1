package rbac

import (
	"context"
	"log/slog"

	"github.com/backoffice/backoffice/internal/permissions"
)

// Options carries the optional collaborators of Service.
type Options struct {
	Cache    *DecisionCache
	Recorder DecisionRecorder
	Logger   *slog.Logger
}

// Service evaluates authorization decisions.
type Service struct {
	resolver MembershipResolver
	cache    *DecisionCache
	recorder DecisionRecorder
	logger   *slog.Logger
}

// NewService constructs a Service backed by the provided resolver.
func NewService(resolver MembershipResolver, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{resolver: resolver, cache: opts.Cache, recorder: opts.Recorder, logger: logger}
}

// IsMember reports whether the user belongs to the organization. The answer
// is cached alongside decisions when a cache is configured.
func (s *Service) IsMember(ctx context.Context, userID, organizationID int64) (bool, error) {
	return s.memoize(ctx, organizationID, func(version int64) string {
		return s.cache.memberKey(organizationID, version, userID)
	}, func() (bool, error) {
		return s.resolver.IsMember(ctx, userID, organizationID)
	})
}

// GetRole returns the user's role in the organization, or nil.
func (s *Service) GetRole(ctx context.Context, userID, organizationID int64) (*Role, error) {
	return s.resolver.GetRole(ctx, userID, organizationID)
}

// Cached reports whether decisions are memoized.
func (s *Service) Cached() bool {
	return s.cache != nil
}

// IsAllowed resolves the user's role and evaluates it. Users without a role
// are denied without error.
func (s *Service) IsAllowed(ctx context.Context, userID, organizationID int64, action permissions.Action, subject permissions.Subject) (bool, error) {
	evaluated := false
	allowed, err := s.memoize(ctx, organizationID, func(version int64) string {
		return s.cache.decisionKey(organizationID, version, userID, action, subject)
	}, func() (bool, error) {
		role, err := s.resolver.GetRole(ctx, userID, organizationID)
		if err != nil {
			return false, err
		}
		evaluated = true
		return s.Authorize(role, action, subject), nil
	})
	if err != nil {
		return false, err
	}
	if !evaluated {
		s.observe(action, subject, allowed)
	}
	return allowed, nil
}

// memoize serves compute through the cache under the organization's current
// version. Cache failures fall back to compute.
func (s *Service) memoize(ctx context.Context, organizationID int64, key func(version int64) string, compute func() (bool, error)) (bool, error) {
	if s.cache == nil {
		return compute()
	}
	version, err := s.cache.Version(ctx, organizationID)
	if err != nil {
		s.logger.Warn("authz cache version", slog.Int64("organization_id", organizationID), slog.Any("error", err))
		return compute()
	}
	k := key(version)
	value, hit, err := s.cache.lookup(ctx, k)
	if err != nil {
		s.logger.Warn("authz cache lookup", slog.Any("error", err))
	} else if hit {
		return value, nil
	}
	value, err = compute()
	if err != nil {
		return false, err
	}
	if err := s.cache.store(ctx, k, value); err != nil {
		s.logger.Warn("authz cache store", slog.Any("error", err))
	}
	return value, nil
}

// Authorize evaluates an already resolved role.
func (s *Service) Authorize(role *Role, action permissions.Action, subject permissions.Subject) bool {
	allowed := role != nil && Allows(role.Permissions, action, subject)
	s.observe(action, subject, allowed)
	return allowed
}

// Invalidate drops cached decisions for the organization.
func (s *Service) Invalidate(ctx context.Context, organizationID int64) error {
	return s.cache.Invalidate(ctx, organizationID)
}

func (s *Service) observe(action permissions.Action, subject permissions.Subject, allowed bool) {
	if s.recorder != nil {
		s.recorder.ObserveDecision(action, subject, allowed)
	}
}
