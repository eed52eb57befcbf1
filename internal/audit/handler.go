package audit

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/backoffice/backoffice/internal/permissions"
	"github.com/backoffice/backoffice/internal/platform/httpx"
	"github.com/backoffice/backoffice/internal/rbac"
	"github.com/backoffice/backoffice/internal/shared"
)

// Handler serves the audit timeline.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds the audit handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers routes under /organizations/{organizationId}/audit.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.RequirePermission(permissions.ActionManage, permissions.SubjectOrganization)).Get("/", h.timeline)
}

func (h *Handler) timeline(w http.ResponseWriter, r *http.Request) {
	filters, err := parseFilters(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var orgID int64
	if rc := rbac.FromContext(r.Context()); rc != nil {
		orgID = rc.OrganizationID
	}
	result, err := h.service.Timeline(r.Context(), orgID, filters)
	if err != nil {
		if status, _ := httpx.StatusFor(err); status == http.StatusInternalServerError {
			h.logger.Error("audit timeline", slog.Int64("organization_id", orgID), slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func parseFilters(r *http.Request) (TimelineFilters, error) {
	q := r.URL.Query()
	filters := TimelineFilters{Entity: q.Get("entity"), Action: q.Get("action")}
	var err error
	if filters.From, err = parseTime(q.Get("from")); err != nil {
		return filters, err
	}
	if filters.To, err = parseTime(q.Get("to")); err != nil {
		return filters, err
	}
	if filters.Page, err = parseInt(q.Get("page")); err != nil {
		return filters, err
	}
	if filters.PageSize, err = parseInt(q.Get("pageSize")); err != nil {
		return filters, err
	}
	return filters, nil
}

func parseTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: %w", raw, shared.ErrValidation)
	}
	return t, nil
}

func parseInt(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid number %q: %w", raw, shared.ErrValidation)
	}
	return n, nil
}
