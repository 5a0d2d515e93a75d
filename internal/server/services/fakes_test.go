package services

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dbateam/secretvault/internal/cipherx"
	"github.com/dbateam/secretvault/internal/common"
	"github.com/dbateam/secretvault/internal/dbx"
	"github.com/dbateam/secretvault/internal/logging"
	"github.com/dbateam/secretvault/internal/server/models"
	"github.com/dbateam/secretvault/internal/server/repositories/permissions"
	"github.com/dbateam/secretvault/internal/server/repositories/secrets"
	"github.com/dbateam/secretvault/internal/server/repositories/tags"
	"github.com/dbateam/secretvault/internal/server/repositories/users"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

type testEnv struct {
	store       *memStore
	secrets     *SecretService
	permissions *PermissionService
	tags        *TagService
	cipher      *cipherx.Cipher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := newTestDB(t)
	store := newMemStore()
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))

	cipher, err := cipherx.New([]byte("0123456789abcdef"))
	require.NoError(t, err)

	return &testEnv{
		store:       store,
		secrets:     NewSecretService(db, store, cipher, logger),
		permissions: NewPermissionService(db, store, logger),
		tags:        NewTagService(db, store, logger),
		cipher:      cipher,
	}
}

func (e *testEnv) addUser(id, name string, admin bool) *models.User {
	u := &models.User{ID: id, UserName: name, Name: name, IsAdmin: admin}
	e.store.users[id] = u
	return u
}

// The fakes below hold entities in maps and ignore transactionality; the
// *sql.DB handed to services only backs dbx.WithTx begin/commit calls.

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", "file:services_tests?mode=memory&cache=shared")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

type memStore struct {
	users       map[string]*models.User
	tags        map[string]*models.Tag
	secrets     map[string]*models.Secret
	permissions map[string]*models.Permission
}

func newMemStore() *memStore {
	return &memStore{
		users:       map[string]*models.User{},
		tags:        map[string]*models.Tag{},
		secrets:     map[string]*models.Secret{},
		permissions: map[string]*models.Permission{},
	}
}

// memStore implements repomanager.RepositoryManager; every repo accessor
// returns a view over the same maps regardless of the DBTX handle.

func (m *memStore) RunMigrations(ctx context.Context, db *sql.DB) error { return nil }

func (m *memStore) Users(db dbx.DBTX) users.Repository             { return (*memUsers)(m) }
func (m *memStore) Tags(db dbx.DBTX) tags.Repository               { return (*memTags)(m) }
func (m *memStore) Secrets(db dbx.DBTX) secrets.Repository         { return (*memSecrets)(m) }
func (m *memStore) Permissions(db dbx.DBTX) permissions.Repository { return (*memPermissions)(m) }

type memUsers memStore

func (m *memUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, common.ErrorNotFound
}

func (m *memUsers) GetByUserName(ctx context.Context, userName string) (*models.User, error) {
	for _, u := range m.users {
		if u.UserName == userName {
			return u, nil
		}
	}
	return nil, common.ErrorNotFound
}

type memTags memStore

func (m *memTags) Create(ctx context.Context, tag *models.Tag) error {
	m.tags[tag.ID] = tag
	return nil
}

func (m *memTags) Update(ctx context.Context, tag *models.Tag) error {
	if _, ok := m.tags[tag.ID]; !ok {
		return common.ErrorNotFound
	}
	m.tags[tag.ID] = tag
	return nil
}

func (m *memTags) Delete(ctx context.Context, id string) error {
	if _, ok := m.tags[id]; !ok {
		return common.ErrorNotFound
	}
	delete(m.tags, id)
	return nil
}

func (m *memTags) GetByID(ctx context.Context, id string) (*models.Tag, error) {
	if tag, ok := m.tags[id]; ok {
		return tag, nil
	}
	return nil, common.ErrorNotFound
}

func (m *memTags) List(ctx context.Context) ([]*models.Tag, error) {
	var result []*models.Tag
	for _, tag := range m.tags {
		result = append(result, tag)
	}
	return result, nil
}

type memSecrets memStore

func (m *memSecrets) Create(ctx context.Context, secret *models.Secret) error {
	m.secrets[secret.ID] = secret
	return nil
}

func (m *memSecrets) Update(ctx context.Context, secret *models.Secret) error {
	if _, ok := m.secrets[secret.ID]; !ok {
		return common.ErrorNotFound
	}
	m.secrets[secret.ID] = secret
	return nil
}

func (m *memSecrets) Delete(ctx context.Context, id string) error {
	if _, ok := m.secrets[id]; !ok {
		return common.ErrorNotFound
	}
	delete(m.secrets, id)
	return nil
}

func (m *memSecrets) GetByID(ctx context.Context, id string) (*models.Secret, error) {
	if s, ok := m.secrets[id]; ok {
		return s, nil
	}
	return nil, common.ErrorNotFound
}

func (m *memSecrets) List(ctx context.Context, filter models.SecretListFilter) ([]*models.SecretSummary, error) {
	var result []*models.SecretSummary
	for _, s := range m.secrets {
		if filter.TagID != "" && s.TagID != filter.TagID {
			continue
		}
		if filter.OwnerID != "" && s.OwnerID != filter.OwnerID {
			continue
		}
		summary := &models.SecretSummary{ID: s.ID, Host: s.Host, Note: s.Note,
			CreatedAt: s.CreatedAt, UpdatedAt: s.UpdatedAt}
		if owner, ok := m.users[s.OwnerID]; ok {
			summary.OwnerName = owner.Name
		}
		if tag, ok := m.tags[s.TagID]; ok {
			summary.TagName = tag.Name
		}
		result = append(result, summary)
	}
	return result, nil
}

func (m *memSecrets) CountByTag(ctx context.Context, tagID string) (int64, error) {
	var n int64
	for _, s := range m.secrets {
		if s.TagID == tagID {
			n++
		}
	}
	return n, nil
}

type memPermissions memStore

func (m *memPermissions) Create(ctx context.Context, perm *models.Permission) error {
	m.permissions[perm.ID] = perm
	return nil
}

func (m *memPermissions) CreateBatch(ctx context.Context, perms []*models.Permission) error {
	for _, p := range perms {
		m.permissions[p.ID] = p
	}
	return nil
}

func (m *memPermissions) GetByID(ctx context.Context, id string) (*models.Permission, error) {
	if p, ok := m.permissions[id]; ok {
		return p, nil
	}
	return nil, common.ErrorNotFound
}

func (m *memPermissions) Approve(ctx context.Context, id string) (*models.Permission, error) {
	p, ok := m.permissions[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	p.Agree = true
	if p.DecidedAt == nil {
		now := time.Now()
		p.DecidedAt = &now
	}
	return p, nil
}

func (m *memPermissions) ListBySecret(ctx context.Context, secretID string) ([]*models.Permission, error) {
	var result []*models.Permission
	for _, p := range m.permissions {
		if p.SecretID == secretID {
			result = append(result, p)
		}
	}
	return result, nil
}

func (m *memPermissions) ListSummariesForUser(ctx context.Context, userID string) ([]*models.PermissionSummary, error) {
	var result []*models.PermissionSummary
	for _, p := range m.permissions {
		s, ok := m.secrets[p.SecretID]
		if !ok {
			continue
		}
		if p.ApplicantID != userID && s.OwnerID != userID {
			continue
		}
		summary := &models.PermissionSummary{ID: p.ID, Host: s.Host, Agree: p.Agree,
			CreatedAt: p.CreatedAt, DecidedAt: p.DecidedAt}
		if a, ok := m.users[p.ApplicantID]; ok {
			summary.ApplicantName = a.Name
		}
		if o, ok := m.users[s.OwnerID]; ok {
			summary.OwnerName = o.Name
		}
		result = append(result, summary)
	}
	return result, nil
}

func (m *memPermissions) DeleteBySecret(ctx context.Context, secretID string) error {
	for id, p := range m.permissions {
		if p.SecretID == secretID {
			delete(m.permissions, id)
		}
	}
	return nil
}
