package roles

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/backoffice/backoffice/internal/permissions"
	"github.com/backoffice/backoffice/internal/shared"
)

type fakeCatalog struct {
	byConfig map[permissions.Config]int64
	byID     map[int64]permissions.Config
	missing  map[permissions.Config]bool
}

func newFakeCatalog() *fakeCatalog {
	c := &fakeCatalog{
		byConfig: map[permissions.Config]int64{},
		byID:     map[int64]permissions.Config{},
		missing:  map[permissions.Config]bool{},
	}
	for i, cfg := range permissions.Catalog() {
		c.byConfig[cfg] = int64(i + 1)
		c.byID[int64(i+1)] = cfg
	}
	return c
}

func (c *fakeCatalog) Resolve(_ context.Context, configs []permissions.Config) ([]permissions.Permission, error) {
	var out []permissions.Permission
	for _, cfg := range permissions.Dedupe(configs) {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		id, ok := c.byConfig[cfg]
		if !ok || c.missing[cfg] {
			return nil, fmt.Errorf("permission %s: %w", cfg, shared.ErrNotFound)
		}
		out = append(out, permissions.Permission{ID: id, Action: cfg.Action, Subject: cfg.Subject})
	}
	return out, nil
}

type storedRole struct {
	role    Role
	permIDs []int64
}

type membership struct {
	userID, orgID, roleID int64
}

type repoState struct {
	nextID      int64
	roles       map[int64]storedRole
	memberships []membership
}

func (s repoState) clone() repoState {
	out := repoState{nextID: s.nextID, roles: make(map[int64]storedRole, len(s.roles))}
	for id, r := range s.roles {
		r.permIDs = append([]int64(nil), r.permIDs...)
		out.roles[id] = r
	}
	out.memberships = append([]membership(nil), s.memberships...)
	return out
}

type mockRepository struct {
	mu         sync.Mutex
	state      repoState
	catalog    *fakeCatalog
	owners     map[int64]int64
	replaceErr error
	txCount    int
}

func newMockRepository(catalog *fakeCatalog) *mockRepository {
	return &mockRepository{state: repoState{roles: map[int64]storedRole{}}, catalog: catalog, owners: map[int64]int64{}}
}

type mockTx struct {
	parent *mockRepository
	state  *repoState
}

func (m *mockRepository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	m.mu.Lock()
	staged := m.state.clone()
	m.txCount++
	m.mu.Unlock()

	if err := fn(ctx, &mockTx{parent: m, state: &staged}); err != nil {
		return err
	}

	m.mu.Lock()
	m.state = staged
	m.mu.Unlock()
	return nil
}

func (m *mockRepository) view() *mockTx {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := m.state.clone()
	return &mockTx{parent: m, state: &snapshot}
}

func (m *mockRepository) Get(ctx context.Context, orgID, roleID int64) (*Role, error) {
	return m.view().Get(ctx, orgID, roleID)
}

func (m *mockRepository) List(ctx context.Context, orgID int64, filters SearchFilters) ([]Role, error) {
	return m.view().List(ctx, orgID, filters)
}

func (m *mockRepository) SlugTaken(ctx context.Context, orgID int64, slug string, except int64) (bool, error) {
	return m.view().SlugTaken(ctx, orgID, slug, except)
}

func (m *mockRepository) Insert(context.Context, int64, string, string) (int64, error) {
	return 0, fmt.Errorf("insert outside transaction")
}

func (m *mockRepository) UpdateFields(context.Context, int64, int64, string, string) error {
	return fmt.Errorf("update outside transaction")
}

func (m *mockRepository) ReplacePermissions(context.Context, int64, []int64) error {
	return fmt.Errorf("replace outside transaction")
}

func (m *mockRepository) Delete(context.Context, int64, int64) error {
	return fmt.Errorf("delete outside transaction")
}

func (m *mockRepository) HeldByOwner(ctx context.Context, orgID, roleID int64) (bool, error) {
	return m.view().HeldByOwner(ctx, orgID, roleID)
}

func (m *mockRepository) setOwner(orgID, userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.owners[orgID] = userID
}

func (m *mockRepository) addMember(userID, orgID, roleID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.memberships = append(m.state.memberships, membership{userID, orgID, roleID})
}

func (m *mockRepository) membershipsFor(roleID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, ms := range m.state.memberships {
		if ms.roleID == roleID {
			n++
		}
	}
	return n
}

func (m *mockRepository) roleCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.state.roles)
}

func (t *mockTx) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, t)
}

func (t *mockTx) Get(_ context.Context, orgID, roleID int64) (*Role, error) {
	stored, ok := t.state.roles[roleID]
	if !ok || stored.role.OrganizationID != orgID {
		return nil, fmt.Errorf("role %d: %w", roleID, shared.ErrNotFound)
	}
	role := t.materialize(stored)
	return &role, nil
}

func (t *mockTx) List(_ context.Context, orgID int64, filters SearchFilters) ([]Role, error) {
	var out []Role
	for _, stored := range t.state.roles {
		if stored.role.OrganizationID != orgID {
			continue
		}
		if filters.Name != "" && !strings.Contains(strings.ToLower(stored.role.Name), strings.ToLower(filters.Name)) {
			continue
		}
		if filters.Slug != "" && stored.role.Slug != filters.Slug {
			continue
		}
		out = append(out, t.materialize(stored))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *mockTx) SlugTaken(_ context.Context, orgID int64, slug string, except int64) (bool, error) {
	for id, stored := range t.state.roles {
		if id != except && stored.role.OrganizationID == orgID && stored.role.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

func (t *mockTx) Insert(_ context.Context, orgID int64, name, slug string) (int64, error) {
	t.state.nextID++
	id := t.state.nextID
	t.state.roles[id] = storedRole{role: Role{ID: id, OrganizationID: orgID, Name: name, Slug: slug}}
	return id, nil
}

func (t *mockTx) UpdateFields(_ context.Context, orgID, roleID int64, name, slug string) error {
	stored, ok := t.state.roles[roleID]
	if !ok || stored.role.OrganizationID != orgID {
		return fmt.Errorf("role %d: %w", roleID, shared.ErrNotFound)
	}
	stored.role.Name, stored.role.Slug = name, slug
	t.state.roles[roleID] = stored
	return nil
}

func (t *mockTx) ReplacePermissions(_ context.Context, roleID int64, ids []int64) error {
	if t.parent.replaceErr != nil {
		return t.parent.replaceErr
	}
	stored := t.state.roles[roleID]
	stored.permIDs = nil
	seen := map[int64]bool{}
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			stored.permIDs = append(stored.permIDs, id)
		}
	}
	t.state.roles[roleID] = stored
	return nil
}

func (t *mockTx) Delete(_ context.Context, orgID, roleID int64) error {
	stored, ok := t.state.roles[roleID]
	if !ok || stored.role.OrganizationID != orgID {
		return fmt.Errorf("role %d: %w", roleID, shared.ErrNotFound)
	}
	delete(t.state.roles, roleID)
	kept := t.state.memberships[:0]
	for _, ms := range t.state.memberships {
		if !(ms.orgID == orgID && ms.roleID == roleID) {
			kept = append(kept, ms)
		}
	}
	t.state.memberships = kept
	return nil
}

func (t *mockTx) HeldByOwner(_ context.Context, orgID, roleID int64) (bool, error) {
	t.parent.mu.Lock()
	owner, ok := t.parent.owners[orgID]
	t.parent.mu.Unlock()
	if !ok {
		return false, nil
	}
	for _, ms := range t.state.memberships {
		if ms.orgID == orgID && ms.userID == owner && ms.roleID == roleID {
			return true, nil
		}
	}
	return false, nil
}

func (t *mockTx) materialize(stored storedRole) Role {
	role := stored.role
	role.Permissions = []permissions.Config{}
	for _, id := range stored.permIDs {
		role.Permissions = append(role.Permissions, t.parent.catalog.byID[id])
	}
	return role
}

type fakeInvalidator struct {
	mu    sync.Mutex
	calls map[int64]int
}

func (f *fakeInvalidator) Invalidate(_ context.Context, orgID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[int64]int{}
	}
	f.calls[orgID]++
	return nil
}
