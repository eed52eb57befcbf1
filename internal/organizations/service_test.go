package organizations

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backoffice/backoffice/internal/shared"
)

func TestSlugify(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Example Org", "example-org"},
		{"  Café Zürich  ", "cafe-zurich"},
		{"Crème---brûlée!!", "creme-brulee"},
		{"ACME, Inc. (2024)", "acme-inc-2024"},
		{"already-slugged", "already-slugged"},
		{"§§§", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Slugify(tt.in), tt.in)
	}
}

func TestCreateBootstrapsOwner(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo, fakeCatalog{}, nil, nil)

	org, err := svc.Create(context.Background(), 7, CreateInput{Name: "Café Zürich"})
	require.NoError(t, err)
	assert.Equal(t, "cafe-zurich", org.Slug)
	assert.Equal(t, int64(7), org.OwnerID)

	require.Len(t, repo.st.roles, 1)
	assert.Equal(t, OwnerRoleSlug, repo.st.roles[0].slug)
	assert.Equal(t, []int64{1}, repo.st.roles[0].permIDs)
	require.Len(t, repo.st.memberships, 1)
	assert.Equal(t, fakeMembership{userID: 7, orgID: org.ID, roleID: repo.st.roles[0].id}, repo.st.memberships[0])

	orgs, err := svc.ListForUser(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, orgs, 1)
	assert.Equal(t, org.ID, orgs[0].ID)
}

func TestCreateConflicts(t *testing.T) {
	svc := NewService(newMockRepository(), fakeCatalog{}, nil, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, 1, CreateInput{Name: "Acme", Slug: "acme"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, 2, CreateInput{Name: "ACME", Slug: "acme-two"})
	assert.ErrorIs(t, err, shared.ErrConflict)
	_, err = svc.Create(ctx, 2, CreateInput{Name: "Other", Slug: "Acme"})
	assert.ErrorIs(t, err, shared.ErrConflict)
}

func TestCreateIsAtomic(t *testing.T) {
	repo := newMockRepository()
	repo.membershipErr = errors.New("boom")
	svc := NewService(repo, fakeCatalog{}, nil, nil)

	_, err := svc.Create(context.Background(), 1, CreateInput{Name: "Acme"})
	assert.Error(t, err)
	assert.Empty(t, repo.st.orgs)
	assert.Empty(t, repo.st.roles)
}

func TestCreateRejectsUnsluggableName(t *testing.T) {
	svc := NewService(newMockRepository(), fakeCatalog{}, nil, nil)

	_, err := svc.Create(context.Background(), 1, CreateInput{Name: "§§§"})
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestUpdate(t *testing.T) {
	svc := NewService(newMockRepository(), fakeCatalog{}, nil, nil)
	ctx := context.Background()
	a, err := svc.Create(ctx, 1, CreateInput{Name: "Alpha"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, 1, CreateInput{Name: "Beta"})
	require.NoError(t, err)

	name := "Alpha Prime"
	updated, err := svc.Update(ctx, a.ID, UpdateInput{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Alpha Prime", updated.Name)
	assert.Equal(t, "alpha", updated.Slug)

	slug := "beta"
	_, err = svc.Update(ctx, a.ID, UpdateInput{Slug: &slug})
	assert.ErrorIs(t, err, shared.ErrConflict)

	_, err = svc.Update(ctx, 999, UpdateInput{Name: &name})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestDeleteCascadesAndInvalidates(t *testing.T) {
	repo := newMockRepository()
	inv := &countingInvalidator{}
	svc := NewService(repo, fakeCatalog{}, inv, nil)
	ctx := context.Background()
	keep, err := svc.Create(ctx, 1, CreateInput{Name: "Keep"})
	require.NoError(t, err)
	gone, err := svc.Create(ctx, 1, CreateInput{Name: "Gone"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, gone.ID))
	assert.Equal(t, []int64{gone.ID}, inv.calls)
	require.Len(t, repo.st.roles, 1)
	assert.Equal(t, keep.ID, repo.st.roles[0].orgID)
	require.Len(t, repo.st.memberships, 1)

	assert.ErrorIs(t, svc.Delete(ctx, gone.ID), shared.ErrNotFound)
}
