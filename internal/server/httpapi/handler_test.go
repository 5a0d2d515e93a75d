package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dbateam/secretvault/internal/common"
	"github.com/dbateam/secretvault/internal/logging"
	"github.com/dbateam/secretvault/internal/server/auth"
	"github.com/dbateam/secretvault/internal/server/models"
	"github.com/dbateam/secretvault/internal/server/policy"
	"github.com/dbateam/secretvault/internal/server/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testJWTSecret = "test-secret"

// Stub operations return canned values; the tests here cover routing, auth
// and status mapping, not business rules.

type stubSecrets struct {
	createErr error
	view      *services.SecretView
	viewErr   error
	updateErr error
	deleteErr error
	summaries []*models.SecretSummary
	gotFilter models.SecretListFilter
}

func (s *stubSecrets) Create(ctx context.Context, actor *models.User, in services.SecretInput) (*models.Secret, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	return &models.Secret{ID: "s1", OwnerID: actor.ID, Host: in.Host, Username: in.Username}, nil
}

func (s *stubSecrets) Update(ctx context.Context, actor *models.User, secretID string, in services.SecretInput) (*models.Secret, error) {
	if s.updateErr != nil {
		return nil, s.updateErr
	}
	return &models.Secret{ID: secretID, OwnerID: actor.ID, Host: in.Host}, nil
}

func (s *stubSecrets) GetView(ctx context.Context, actor *models.User, secretID string) (*services.SecretView, error) {
	if s.viewErr != nil {
		return nil, s.viewErr
	}
	return s.view, nil
}

func (s *stubSecrets) Delete(ctx context.Context, actor *models.User, secretID string) error {
	return s.deleteErr
}

func (s *stubSecrets) List(ctx context.Context, actor *models.User, filter models.SecretListFilter) ([]*models.SecretSummary, error) {
	s.gotFilter = filter
	return s.summaries, nil
}

type stubPermissions struct {
	perm       *models.Permission
	requestErr error
	approveErr error
	bulkResult *services.BulkApproveResult
	getErr     error
	summaries  []*models.PermissionSummary
}

func (s *stubPermissions) Request(ctx context.Context, actor *models.User, secretID string, reason string) (*models.Permission, error) {
	if s.requestErr != nil {
		return nil, s.requestErr
	}
	return &models.Permission{ID: "p1", SecretID: secretID, ApplicantID: actor.ID, Reason: reason}, nil
}

func (s *stubPermissions) BulkRequest(ctx context.Context, actor *models.User, secretIDs []string) ([]*models.Permission, error) {
	var out []*models.Permission
	for _, id := range secretIDs {
		out = append(out, &models.Permission{ID: "p-" + id, SecretID: id, ApplicantID: actor.ID})
	}
	return out, nil
}

func (s *stubPermissions) Approve(ctx context.Context, actor *models.User, permissionID string) (*models.Permission, error) {
	if s.approveErr != nil {
		return nil, s.approveErr
	}
	now := time.Now()
	return &models.Permission{ID: permissionID, Agree: true, DecidedAt: &now}, nil
}

func (s *stubPermissions) BulkApprove(ctx context.Context, actor *models.User, permissionIDs []string) (*services.BulkApproveResult, error) {
	return s.bulkResult, nil
}

func (s *stubPermissions) Get(ctx context.Context, actor *models.User, permissionID string) (*models.Permission, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.perm, nil
}

func (s *stubPermissions) List(ctx context.Context, actor *models.User) ([]*models.PermissionSummary, error) {
	return s.summaries, nil
}

type stubTags struct {
	createErr error
	deleteErr error
	tags      []*models.Tag
	listErr   error
}

func (s *stubTags) Create(ctx context.Context, actor *models.User, name string) (*models.Tag, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	return &models.Tag{ID: "t1", Name: name}, nil
}

func (s *stubTags) Update(ctx context.Context, actor *models.User, tagID string, name string) (*models.Tag, error) {
	return &models.Tag{ID: tagID, Name: name}, nil
}

func (s *stubTags) Delete(ctx context.Context, actor *models.User, tagID string) error {
	return s.deleteErr
}

func (s *stubTags) List(ctx context.Context, actor *models.User) ([]*models.Tag, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.tags, nil
}

type stubUsers struct {
	byID map[string]*models.User
}

func (s *stubUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := s.byID[id]; ok {
		return u, nil
	}
	return nil, common.ErrorNotFound
}

func (s *stubUsers) GetByUserName(ctx context.Context, userName string) (*models.User, error) {
	return nil, common.ErrorNotFound
}

type testServer struct {
	srv         *Server
	handler     http.Handler
	secrets     *stubSecrets
	permissions *stubPermissions
	tags        *stubTags
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	ss := &stubSecrets{}
	ps := &stubPermissions{}
	ts := &stubTags{}
	ur := &stubUsers{byID: map[string]*models.User{
		"u1": {ID: "u1", UserName: "alice", Name: "Alice"},
	}}

	srv := NewServer(":0", logger, ss, ps, ts, ur, testJWTSecret)
	return &testServer{
		srv:         srv,
		handler:     srv.routes(),
		secrets:     ss,
		permissions: ps,
		tags:        ts,
	}
}

func (ts *testServer) request(t *testing.T, method, target, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, target, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func validToken(t *testing.T, userID string) string {
	t.Helper()
	token, err := auth.GenerateToken(userID, []byte(testJWTSecret), time.Minute)
	require.NoError(t, err)
	return token
}

func TestPingNeedsNoAuth(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.request(t, http.MethodGet, "/ping", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthMiddleware(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{name: "missing token", token: "", want: http.StatusUnauthorized},
		{name: "garbage token", token: "not-a-jwt", want: http.StatusUnauthorized},
		{name: "unknown user", token: validToken(t, "ghost"), want: http.StatusUnauthorized},
		{name: "valid", token: validToken(t, "u1"), want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.request(t, http.MethodGet, "/api/secrets/", tt.token, nil)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestCreateSecret(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, http.MethodPost, "/api/secrets/", validToken(t, "u1"),
		map[string]string{"host": "db1", "username": "admin", "secret": "p@ss"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		ID      string `json:"id"`
		OwnerID string `json:"owner_id"`
		Host    string `json:"host"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "u1", resp.OwnerID)
	assert.Equal(t, "db1", resp.Host)
}

func TestCreateSecretBadBody(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/secrets/", bytes.NewReader([]byte("{broken")))
	req.Header.Set("Authorization", "Bearer "+validToken(t, "u1"))
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetSecretViewPayload(t *testing.T) {
	ts := newTestServer(t)
	ts.secrets.view = &services.SecretView{
		ID: "s1",
		Fields: map[policy.Field]string{
			policy.FieldHost:   "db1",
			policy.FieldSecret: "p@ss",
		},
		Readonly: []policy.Field{policy.FieldOwner},
	}

	rec := ts.request(t, http.MethodGet, "/api/secrets/s1/", validToken(t, "u1"), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		ID       string            `json:"id"`
		Fields   map[string]string `json:"fields"`
		Readonly []string          `json:"readonly"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "s1", resp.ID)
	assert.Equal(t, "p@ss", resp.Fields["secret"])
	assert.Equal(t, []string{"owner"}, resp.Readonly)
}

func TestServiceErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "not found", err: common.ErrorNotFound, want: http.StatusNotFound},
		{name: "denied", err: common.ErrorPermissionDenied, want: http.StatusForbidden},
		{name: "internal", err: assert.AnError, want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.secrets.viewErr = tt.err
			rec := ts.request(t, http.MethodGet, "/api/secrets/s1/", validToken(t, "u1"), nil)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestRequestAccessSelfRequestIsBadRequest(t *testing.T) {
	ts := newTestServer(t)
	ts.permissions.requestErr = common.ErrorSelfRequest

	rec := ts.request(t, http.MethodPost, "/api/secrets/s1/permissions", validToken(t, "u1"),
		map[string]string{"reason": "oncall"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequestAccess(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, http.MethodPost, "/api/secrets/s1/permissions", validToken(t, "u1"),
		map[string]string{"reason": "oncall"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp permissionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "s1", resp.SecretID)
	assert.Equal(t, "oncall", resp.Reason)
	assert.False(t, resp.Agree)
}

func TestBulkApprovePayload(t *testing.T) {
	ts := newTestServer(t)
	now := time.Now()
	ts.permissions.bulkResult = &services.BulkApproveResult{
		Approved:      []*models.Permission{{ID: "p1", Agree: true, DecidedAt: &now}},
		Denied:        []*models.Permission{{ID: "p2"}},
		ApprovedHosts: []string{"db1"},
		DeniedHosts:   []string{"db2"},
	}

	rec := ts.request(t, http.MethodPost, "/api/permissions/bulk-approve", validToken(t, "u1"),
		map[string][]string{"permission_ids": {"p1", "p2"}})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Approved      []permissionResponse `json:"approved"`
		Denied        []permissionResponse `json:"denied"`
		ApprovedHosts []string             `json:"approved_hosts"`
		DeniedHosts   []string             `json:"denied_hosts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Approved, 1)
	assert.Len(t, resp.Denied, 1)
	assert.Equal(t, []string{"db1"}, resp.ApprovedHosts)
	assert.Equal(t, []string{"db2"}, resp.DeniedHosts)
}

func TestListSecretsPassesFilter(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, http.MethodGet, "/api/secrets/?tag_id=t1&search=db", validToken(t, "u1"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "t1", ts.secrets.gotFilter.TagID)
	assert.Equal(t, "db", ts.secrets.gotFilter.Search)
}

func TestDeleteTagConflict(t *testing.T) {
	ts := newTestServer(t)
	ts.tags.deleteErr = common.ErrorTagInUse

	rec := ts.request(t, http.MethodDelete, "/api/tags/t1", validToken(t, "u1"), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestDeleteSecretNoContent(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, http.MethodDelete, "/api/secrets/s1/", validToken(t, "u1"), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
