package audit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backoffice/backoffice/internal/shared"
)

type memoryRepo struct {
	entries  []Entry
	lastCall WindowParams
}

func (m *memoryRepo) Insert(_ context.Context, e Entry) error {
	m.entries = append(m.entries, e)
	return nil
}

func (m *memoryRepo) Window(_ context.Context, arg WindowParams) ([]Entry, error) {
	m.lastCall = arg
	var matched []Entry
	for i := len(m.entries) - 1; i >= 0; i-- {
		e := m.entries[i]
		if e.OrganizationID != arg.OrganizationID {
			continue
		}
		if arg.Entity.Valid && e.Entity != arg.Entity.String {
			continue
		}
		if arg.Action.Valid && e.Action != arg.Action.String {
			continue
		}
		matched = append(matched, e)
	}
	start := int(arg.OffsetRows)
	if start > len(matched) {
		return nil, nil
	}
	end := start + int(arg.LimitRows)
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], nil
}

func seeded(t *testing.T, n int) (*Service, *memoryRepo) {
	t.Helper()
	repo := &memoryRepo{}
	svc := NewService(repo)
	for i := 0; i < n; i++ {
		require.NoError(t, svc.Record(context.Background(), Entry{
			OrganizationID: 5,
			Action:         "role.updated",
			Entity:         EntityRole,
			EntityID:       fmt.Sprint(i),
		}))
	}
	return svc, repo
}

func TestRecordFillsDefaults(t *testing.T) {
	repo := &memoryRepo{}
	svc := NewService(repo)
	fixed := time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	ctx := shared.ContextWithUserID(context.Background(), 42)
	require.NoError(t, svc.Record(ctx, Entry{OrganizationID: 5, Action: "membership.added", Entity: EntityMembership, EntityID: "7"}))

	require.Len(t, repo.entries, 1)
	e := repo.entries[0]
	assert.NotEqual(t, uuid.Nil, e.ID)
	assert.Equal(t, int64(42), e.ActorID)
	assert.Equal(t, fixed, e.At)
}

func TestRecordRejectsIncompleteEntry(t *testing.T) {
	svc := NewService(&memoryRepo{})
	err := svc.Record(context.Background(), Entry{OrganizationID: 5, Action: "role.created"})
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestTimelinePaging(t *testing.T) {
	svc, repo := seeded(t, 3)

	result, err := svc.Timeline(context.Background(), 5, TimelineFilters{Page: 1, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, result.Entries, 2)
	assert.True(t, result.Paging.HasNext)
	assert.Equal(t, 2, result.Paging.NextPage)
	assert.Equal(t, int32(3), repo.lastCall.LimitRows)
	assert.Equal(t, int32(0), repo.lastCall.OffsetRows)
	assert.Equal(t, "2", result.Entries[0].EntityID)

	result, err = svc.Timeline(context.Background(), 5, TimelineFilters{Page: 2, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, result.Entries, 1)
	assert.False(t, result.Paging.HasNext)
	assert.Equal(t, 1, result.Paging.PrevPage)
	assert.Equal(t, int32(2), repo.lastCall.OffsetRows)
}

func TestTimelineDefaultsAndFilters(t *testing.T) {
	svc, repo := seeded(t, 1)

	result, err := svc.Timeline(context.Background(), 5, TimelineFilters{PageSize: 500, Entity: "  membership "})
	require.NoError(t, err)
	assert.NotNil(t, result.Entries)
	assert.Empty(t, result.Entries)
	assert.Equal(t, 50, result.Paging.PageSize)
	assert.Equal(t, 1, result.Paging.Page)
	assert.True(t, repo.lastCall.Entity.Valid)
	assert.Equal(t, "membership", repo.lastCall.Entity.String)
	assert.False(t, repo.lastCall.FromAt.Valid)

	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	_, err = svc.Timeline(context.Background(), 5, TimelineFilters{From: from, To: from})
	assert.ErrorIs(t, err, shared.ErrValidation)
}
