package rbac

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/backoffice/backoffice/internal/platform/httpx"
	"github.com/backoffice/backoffice/internal/shared"
)

// OrganizationParam is the chi URL parameter that scopes a request.
const OrganizationParam = "organizationId"

// RequestContext is the per-request authorization state built up by stages.
type RequestContext struct {
	UserID         int64
	OrganizationID int64
	Member         bool
	Role           *Role
}

// Stage is one step of the guard pipeline. A non-nil error stops the
// pipeline and becomes the response.
type Stage func(r *http.Request, rc *RequestContext) error

type requestContextKey struct{}

// FromContext returns the RequestContext stored by Guard, or nil.
func FromContext(ctx context.Context) *RequestContext {
	rc, _ := ctx.Value(requestContextKey{}).(*RequestContext)
	return rc
}

// Guard runs stages in order. State from an enclosing guard is carried
// over so nested groups do not repeat work.
func Guard(logger *slog.Logger, stages ...Stage) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rc := &RequestContext{}
			if parent := FromContext(r.Context()); parent != nil {
				*rc = *parent
			}
			for _, stage := range stages {
				if err := stage(r, rc); err != nil {
					if status, _ := httpx.StatusFor(err); status == http.StatusInternalServerError {
						logger.Error("rbac guard", slog.String("path", r.URL.Path), slog.Any("error", err))
					}
					httpx.RespondError(w, err)
					return
				}
			}
			ctx := context.WithValue(r.Context(), requestContextKey{}, rc)
			if rc.UserID > 0 {
				ctx = shared.ContextWithUserID(ctx, rc.UserID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts the credential from an Authorization header.
func BearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", false
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func organizationID(r *http.Request, rc *RequestContext) error {
	if rc.OrganizationID > 0 {
		return nil
	}
	raw := chi.URLParam(r, OrganizationParam)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return fmt.Errorf("invalid organization id %q: %w", raw, shared.ErrValidation)
	}
	rc.OrganizationID = id
	return nil
}

func requireUser(rc *RequestContext) error {
	if rc.UserID <= 0 {
		return errors.New("rbac: organization stage before authentication")
	}
	return nil
}
