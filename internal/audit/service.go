package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/backoffice/backoffice/internal/shared"
)

// Service records and pages audit entries.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates the audit service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Record stores a change. The actor is taken from the request context when
// the entry does not carry one.
func (s *Service) Record(ctx context.Context, e Entry) error {
	if s == nil || s.repo == nil {
		return fmt.Errorf("audit: repository not configured")
	}
	if e.OrganizationID <= 0 || e.Action == "" || e.Entity == "" || e.EntityID == "" {
		return fmt.Errorf("audit entry requires organization, action, entity and entity id: %w", shared.ErrValidation)
	}
	if e.ActorID == 0 {
		if id, ok := shared.UserIDFromContext(ctx); ok {
			e.ActorID = id
		}
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.At.IsZero() {
		e.At = s.now().UTC()
	}
	return s.repo.Insert(ctx, e)
}

// Timeline returns one page of the organization's trail, newest first.
func (s *Service) Timeline(ctx context.Context, organizationID int64, filters TimelineFilters) (Result, error) {
	if s.repo == nil {
		return Result{}, fmt.Errorf("audit: repository not configured")
	}
	if !filters.From.IsZero() && !filters.To.IsZero() && !filters.From.Before(filters.To) {
		return Result{}, fmt.Errorf("from must be before to: %w", shared.ErrValidation)
	}
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 50 {
		pageSize = 50
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * pageSize
	rows, err := s.repo.Window(ctx, WindowParams{
		OrganizationID: organizationID,
		FromAt:         toPgTime(filters.From),
		ToAt:           toPgTime(filters.To),
		Entity:         optionalText(filters.Entity),
		Action:         optionalText(filters.Action),
		OffsetRows:     int32(offset),
		LimitRows:      int32(pageSize + 1),
	})
	if err != nil {
		return Result{}, err
	}
	hasNext := len(rows) > pageSize
	if hasNext {
		rows = rows[:pageSize]
	}
	if rows == nil {
		rows = []Entry{}
	}
	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	return Result{Entries: rows, Paging: paging}, nil
}
