package users

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/backoffice/backoffice/internal/shared"
)

type memberKey struct{ org, user int64 }

type fakeUser struct {
	id    int64
	email string
	name  string
}

type fakeRole struct {
	id   int64
	org  int64
	name string
	slug string
}

type mockRepository struct {
	users   map[int64]fakeUser
	roles   map[int64]fakeRole
	owners  map[int64]int64
	members map[memberKey]int64
	listErr error
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		users: map[int64]fakeUser{
			1: {id: 1, email: "owner@example.com", name: "Olivia Owner"},
			2: {id: 2, email: "ana@example.com", name: "Ana"},
			3: {id: 3, email: "ben@example.com", name: "Ben"},
		},
		roles: map[int64]fakeRole{
			10: {id: 10, org: 5, name: "Owner", slug: "owner"},
			11: {id: 11, org: 5, name: "Viewer", slug: "viewer"},
			20: {id: 20, org: 6, name: "Owner", slug: "owner"},
		},
		owners:  map[int64]int64{5: 1, 6: 3},
		members: map[memberKey]int64{{5, 1}: 10, {6, 3}: 20},
	}
}

func (m *mockRepository) member(org, user int64) Member {
	u := m.users[user]
	r := m.roles[m.members[memberKey{org, user}]]
	return Member{UserID: u.id, Email: u.email, Name: u.name, RoleID: r.id, RoleName: r.name, RoleSlug: r.slug,
		JoinedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (m *mockRepository) ListMembers(_ context.Context, org int64) ([]Member, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []Member
	for k := range m.members {
		if k.org == org {
			out = append(out, m.member(org, k.user))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *mockRepository) GetMember(_ context.Context, org, user int64) (*Member, error) {
	if _, ok := m.members[memberKey{org, user}]; !ok {
		return nil, fmt.Errorf("member %d: %w", user, shared.ErrNotFound)
	}
	member := m.member(org, user)
	return &member, nil
}

func (m *mockRepository) FindUserIDByEmail(_ context.Context, email string) (int64, error) {
	for _, u := range m.users {
		if strings.EqualFold(u.email, strings.TrimSpace(email)) {
			return u.id, nil
		}
	}
	return 0, fmt.Errorf("no user with email %s: %w", email, shared.ErrNotFound)
}

func (m *mockRepository) RoleBelongs(_ context.Context, org, roleID int64) (bool, error) {
	r, ok := m.roles[roleID]
	return ok && r.org == org, nil
}

func (m *mockRepository) OwnerID(_ context.Context, org int64) (int64, error) {
	owner, ok := m.owners[org]
	if !ok {
		return 0, fmt.Errorf("organization %d: %w", org, shared.ErrNotFound)
	}
	return owner, nil
}

func (m *mockRepository) InsertMember(_ context.Context, org, user, roleID int64) error {
	key := memberKey{org, user}
	if _, ok := m.members[key]; ok {
		return fmt.Errorf("membership: %w", shared.ErrConflict)
	}
	m.members[key] = roleID
	return nil
}

func (m *mockRepository) UpdateMemberRole(_ context.Context, org, user, roleID int64) error {
	key := memberKey{org, user}
	if _, ok := m.members[key]; !ok {
		return fmt.Errorf("member %d: %w", user, shared.ErrNotFound)
	}
	m.members[key] = roleID
	return nil
}

func (m *mockRepository) DeleteMember(_ context.Context, org, user int64) error {
	key := memberKey{org, user}
	if _, ok := m.members[key]; !ok {
		return fmt.Errorf("member %d: %w", user, shared.ErrNotFound)
	}
	delete(m.members, key)
	return nil
}

type countingInvalidator struct {
	calls []int64
	err   error
}

func (c *countingInvalidator) Invalidate(_ context.Context, org int64) error {
	c.calls = append(c.calls, org)
	return c.err
}
