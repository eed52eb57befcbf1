package users

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backoffice/backoffice/internal/permissions"
	"github.com/backoffice/backoffice/internal/rbac"
)

type stubResolver map[int64]*rbac.Role

func (s stubResolver) IsMember(_ context.Context, userID, orgID int64) (bool, error) {
	role := s[userID]
	return role != nil && role.OrganizationID == orgID, nil
}

func (s stubResolver) GetRole(_ context.Context, userID, orgID int64) (*rbac.Role, error) {
	role := s[userID]
	if role == nil || role.OrganizationID != orgID {
		return nil, nil
	}
	return role, nil
}

type stubVerifier map[string]int64

func (s stubVerifier) UserIDFromToken(token string) (int64, error) {
	if id, ok := s[token]; ok {
		return id, nil
	}
	return 0, errors.New("unknown token")
}

func newUsersRouter(t *testing.T) (http.Handler, *mockRepository) {
	t.Helper()
	svc, repo, _ := newTestService()
	resolver := stubResolver{
		1: {ID: 10, OrganizationID: 5, Slug: "owner", Permissions: []permissions.Config{
			{Action: permissions.ActionManage, Subject: permissions.SubjectAll},
		}},
		2: {ID: 11, OrganizationID: 5, Slug: "viewer", Permissions: []permissions.Config{
			{Action: permissions.ActionRead, Subject: permissions.SubjectUser},
		}},
	}
	mw := rbac.Middleware{
		Service:  rbac.NewService(resolver, rbac.Options{}),
		Verifier: stubVerifier{"owner": 1, "viewer": 2},
	}
	r := chi.NewRouter()
	r.Route("/organizations/{organizationId}/users", NewHandler(nil, svc, mw).MountRoutes)
	return r, repo
}

func do(h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)
	return res
}

func TestListMembersRoute(t *testing.T) {
	h, _ := newUsersRouter(t)
	res := do(h, http.MethodGet, "/organizations/5/users/", "viewer", "")
	require.Equal(t, http.StatusOK, res.Code)

	var body struct {
		Users []Member `json:"users"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	require.Len(t, body.Users, 1)
	assert.Equal(t, "owner@example.com", body.Users[0].Email)
}

func TestMemberMutationRoutes(t *testing.T) {
	h, repo := newUsersRouter(t)

	res := do(h, http.MethodPost, "/organizations/5/users/", "viewer", `{"email":"ana@example.com","roleId":11}`)
	assert.Equal(t, http.StatusForbidden, res.Code)

	res = do(h, http.MethodPost, "/organizations/5/users/", "owner", `{"email":"ana@example.com","roleId":11}`)
	require.Equal(t, http.StatusCreated, res.Code)
	assert.Contains(t, repo.members, memberKey{5, 2})

	res = do(h, http.MethodPost, "/organizations/5/users/", "owner", `{"email":"not-an-email","roleId":11}`)
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = do(h, http.MethodPatch, "/organizations/5/users/2", "owner", `{"roleId":10}`)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, int64(10), repo.members[memberKey{5, 2}])

	res = do(h, http.MethodPatch, "/organizations/5/users/abc", "owner", `{"roleId":10}`)
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = do(h, http.MethodDelete, "/organizations/5/users/2", "owner", "")
	assert.Equal(t, http.StatusNoContent, res.Code)

	res = do(h, http.MethodDelete, "/organizations/5/users/1", "owner", "")
	assert.Equal(t, http.StatusConflict, res.Code)
}

func TestMembersRouteRequiresToken(t *testing.T) {
	h, _ := newUsersRouter(t)
	res := do(h, http.MethodGet, "/organizations/5/users/", "", "")
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}
