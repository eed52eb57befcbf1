package organizations

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/backoffice/backoffice/internal/permissions"
	"github.com/backoffice/backoffice/internal/shared"
)

type fakeCatalog struct{}

func (fakeCatalog) Resolve(_ context.Context, configs []permissions.Config) ([]permissions.Permission, error) {
	out := make([]permissions.Permission, 0, len(configs))
	for i, cfg := range configs {
		out = append(out, permissions.Permission{ID: int64(i + 1), Action: cfg.Action, Subject: cfg.Subject})
	}
	return out, nil
}

type fakeRole struct {
	id, orgID int64
	slug      string
	permIDs   []int64
}

type fakeMembership struct{ userID, orgID, roleID int64 }

type state struct {
	nextOrg, nextRole int64
	orgs              map[int64]Organization
	roles             []fakeRole
	memberships       []fakeMembership
}

func (s state) clone() state {
	out := s
	out.orgs = make(map[int64]Organization, len(s.orgs))
	for k, v := range s.orgs {
		out.orgs[k] = v
	}
	out.roles = append([]fakeRole(nil), s.roles...)
	out.memberships = append([]fakeMembership(nil), s.memberships...)
	return out
}

type mockRepository struct {
	mu            sync.Mutex
	st            state
	membershipErr error
}

func newMockRepository() *mockRepository {
	return &mockRepository{st: state{orgs: map[int64]Organization{}}}
}

type mockTx struct {
	parent *mockRepository
	st     *state
}

func (m *mockRepository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	m.mu.Lock()
	staged := m.st.clone()
	m.mu.Unlock()
	if err := fn(ctx, &mockTx{parent: m, st: &staged}); err != nil {
		return err
	}
	m.mu.Lock()
	m.st = staged
	m.mu.Unlock()
	return nil
}

func (m *mockRepository) read() *mockTx {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := m.st.clone()
	return &mockTx{parent: m, st: &snap}
}

func (m *mockRepository) Get(ctx context.Context, id int64) (*Organization, error) {
	return m.read().Get(ctx, id)
}

func (m *mockRepository) ListForUser(ctx context.Context, userID int64) ([]Organization, error) {
	return m.read().ListForUser(ctx, userID)
}

func (m *mockRepository) NameOrSlugTaken(ctx context.Context, name, slug string, except int64) (bool, error) {
	return m.read().NameOrSlugTaken(ctx, name, slug, except)
}

var errOutsideTx = errors.New("write outside transaction")

func (m *mockRepository) Insert(context.Context, string, string, int64) (*Organization, error) {
	return nil, errOutsideTx
}

func (m *mockRepository) Update(context.Context, int64, string, string) (*Organization, error) {
	return nil, errOutsideTx
}

func (m *mockRepository) Delete(context.Context, int64) error { return errOutsideTx }

func (m *mockRepository) InsertRole(context.Context, int64, string, string, []int64) (int64, error) {
	return 0, errOutsideTx
}

func (m *mockRepository) InsertMembership(context.Context, int64, int64, int64) error {
	return errOutsideTx
}

func (t *mockTx) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, t)
}

func (t *mockTx) Get(_ context.Context, id int64) (*Organization, error) {
	org, ok := t.st.orgs[id]
	if !ok {
		return nil, fmt.Errorf("organization %d: %w", id, shared.ErrNotFound)
	}
	return &org, nil
}

func (t *mockTx) ListForUser(_ context.Context, userID int64) ([]Organization, error) {
	var out []Organization
	for _, ms := range t.st.memberships {
		if ms.userID == userID {
			out = append(out, t.st.orgs[ms.orgID])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (t *mockTx) NameOrSlugTaken(_ context.Context, name, slug string, except int64) (bool, error) {
	for id, org := range t.st.orgs {
		if id != except && (strings.EqualFold(org.Name, name) || org.Slug == slug) {
			return true, nil
		}
	}
	return false, nil
}

func (t *mockTx) Insert(_ context.Context, name, slug string, ownerID int64) (*Organization, error) {
	t.st.nextOrg++
	org := Organization{ID: t.st.nextOrg, Name: name, Slug: slug, OwnerID: ownerID}
	t.st.orgs[org.ID] = org
	return &org, nil
}

func (t *mockTx) Update(_ context.Context, id int64, name, slug string) (*Organization, error) {
	org := t.st.orgs[id]
	org.Name, org.Slug = name, slug
	t.st.orgs[id] = org
	return &org, nil
}

func (t *mockTx) Delete(_ context.Context, id int64) error {
	if _, ok := t.st.orgs[id]; !ok {
		return fmt.Errorf("organization %d: %w", id, shared.ErrNotFound)
	}
	delete(t.st.orgs, id)
	var roles []fakeRole
	for _, r := range t.st.roles {
		if r.orgID != id {
			roles = append(roles, r)
		}
	}
	t.st.roles = roles
	var ms []fakeMembership
	for _, m := range t.st.memberships {
		if m.orgID != id {
			ms = append(ms, m)
		}
	}
	t.st.memberships = ms
	return nil
}

func (t *mockTx) InsertRole(_ context.Context, orgID int64, _ string, slug string, permIDs []int64) (int64, error) {
	t.st.nextRole++
	t.st.roles = append(t.st.roles, fakeRole{id: t.st.nextRole, orgID: orgID, slug: slug, permIDs: permIDs})
	return t.st.nextRole, nil
}

func (t *mockTx) InsertMembership(_ context.Context, userID, orgID, roleID int64) error {
	if t.parent.membershipErr != nil {
		return t.parent.membershipErr
	}
	t.st.memberships = append(t.st.memberships, fakeMembership{userID, orgID, roleID})
	return nil
}

type countingInvalidator struct{ calls []int64 }

func (c *countingInvalidator) Invalidate(_ context.Context, orgID int64) error {
	c.calls = append(c.calls, orgID)
	return nil
}
