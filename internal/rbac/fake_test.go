package rbac

import (
	"context"
	"errors"
	"sync"

	"github.com/backoffice/backoffice/internal/permissions"
)

type membershipKey struct{ user, org int64 }

type fakeResolver struct {
	mu      sync.Mutex
	roles   map[membershipKey]*Role
	err     error
	lookups int
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{roles: make(map[membershipKey]*Role)}
}

func (f *fakeResolver) grant(userID, orgID int64, perms ...permissions.Config) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roles[membershipKey{userID, orgID}] = &Role{ID: orgID*100 + userID, OrganizationID: orgID, Name: "member", Slug: "member", Permissions: perms}
}

func (f *fakeResolver) revoke(userID, orgID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.roles, membershipKey{userID, orgID})
}

func (f *fakeResolver) IsMember(ctx context.Context, userID, orgID int64) (bool, error) {
	role, err := f.GetRole(ctx, userID, orgID)
	return role != nil, err
}

func (f *fakeResolver) GetRole(_ context.Context, userID, orgID int64) (*Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	if f.err != nil {
		return nil, f.err
	}
	role, ok := f.roles[membershipKey{userID, orgID}]
	if !ok {
		return nil, nil
	}
	clone := *role
	clone.Permissions = append([]permissions.Config(nil), role.Permissions...)
	return &clone, nil
}

type decision struct {
	action  permissions.Action
	subject permissions.Subject
	allowed bool
}

type fakeRecorder struct {
	mu        sync.Mutex
	decisions []decision
}

func (f *fakeRecorder) ObserveDecision(action permissions.Action, subject permissions.Subject, allowed bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.decisions = append(f.decisions, decision{action, subject, allowed})
}

type fakeVerifier map[string]int64

func (f fakeVerifier) UserIDFromToken(token string) (int64, error) {
	id, ok := f[token]
	if !ok {
		return 0, errors.New("bad token")
	}
	return id, nil
}
