// Package services contains the server-side business logic: the operations the
// transport adapter calls on behalf of an authenticated actor. Access rules
// are decided by the policy package before any mutation; no partial writes
// occur on denial.
package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dbateam/secretvault/internal/cipherx"
	"github.com/dbateam/secretvault/internal/common"
	"github.com/dbateam/secretvault/internal/dbx"
	"github.com/dbateam/secretvault/internal/logging"
	"github.com/dbateam/secretvault/internal/server/models"
	"github.com/dbateam/secretvault/internal/server/policy"
	"github.com/dbateam/secretvault/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// SecretInput carries the writable fields of a secret. Secret is plaintext;
// encryption happens here, never in callers or repositories.
type SecretInput struct {
	Host     string
	Username string
	Secret   string
	TagID    string
	Note     string
}

// SecretView is the field map disclosed to an actor, shaped by
// policy.VisibleFields. Fields is empty when the record is hidden from the
// actor; Readonly lists fields frozen on the edit form.
type SecretView struct {
	ID       string
	Fields   map[policy.Field]string
	Readonly []policy.Field
}

type SecretService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	cipher      *cipherx.Cipher
	logger      logging.Logger
}

func NewSecretService(db *sql.DB, rm repomanager.RepositoryManager, cipher *cipherx.Cipher, logger logging.Logger) *SecretService {
	return &SecretService{
		db:          db,
		repomanager: rm,
		cipher:      cipher,
		logger:      logger.With("module", "secret_service"),
	}
}

// checkTag verifies that a referenced tag exists. An empty id means no tag.
func (s *SecretService) checkTag(ctx context.Context, tagID string) error {
	if tagID == "" {
		return nil
	}
	_, err := s.repomanager.Tags(s.db).GetByID(ctx, tagID)
	return err
}

// Create encrypts the submitted credential and stores a new secret owned by
// the actor.
func (s *SecretService) Create(ctx context.Context, actor *models.User, in SecretInput) (*models.Secret, error) {

	if err := s.checkTag(ctx, in.TagID); err != nil {
		return nil, err
	}

	encrypted, err := s.cipher.Encrypt(in.Secret)
	if err != nil {
		return nil, fmt.Errorf("error encrypting secret: %w", err)
	}

	secret := &models.Secret{
		ID:              uuid.NewString(),
		OwnerID:         actor.ID,
		Host:            in.Host,
		Username:        in.Username,
		EncryptedSecret: encrypted,
		TagID:           in.TagID,
		Note:            in.Note,
	}

	if err := s.repomanager.Secrets(s.db).Create(ctx, secret); err != nil {
		return nil, fmt.Errorf("error creating secret: %w", err)
	}

	s.logger.Info(ctx, "secret created", "secret_id", secret.ID, "host", secret.Host)
	return secret, nil
}

// Update rewrites a secret's fields. Only the owner may update; ownership
// itself never changes. An empty Secret leaves the stored credential as is,
// any other value is re-encrypted.
func (s *SecretService) Update(ctx context.Context, actor *models.User, secretID string, in SecretInput) (*models.Secret, error) {

	repo := s.repomanager.Secrets(s.db)

	secret, err := repo.GetByID(ctx, secretID)
	if err != nil {
		return nil, err
	}

	if !policy.CanEdit(actor, secret) {
		return nil, common.ErrorPermissionDenied
	}

	if err := s.checkTag(ctx, in.TagID); err != nil {
		return nil, err
	}

	secret.Host = in.Host
	secret.Username = in.Username
	secret.TagID = in.TagID
	secret.Note = in.Note
	if in.Secret != "" {
		encrypted, err := s.cipher.Encrypt(in.Secret)
		if err != nil {
			return nil, fmt.Errorf("error encrypting secret: %w", err)
		}
		secret.EncryptedSecret = encrypted
	}

	if err := repo.Update(ctx, secret); err != nil {
		return nil, fmt.Errorf("error updating secret: %w", err)
	}

	s.logger.Info(ctx, "secret updated", "secret_id", secret.ID)
	return secret, nil
}

// GetView resolves the detail view of a secret for the actor. Fields the
// actor may not see are absent; an actor with no access gets an empty field
// map, not an error. The credential is decrypted only when a secret field is
// actually disclosed.
func (s *SecretService) GetView(ctx context.Context, actor *models.User, secretID string) (*SecretView, error) {

	secret, err := s.repomanager.Secrets(s.db).GetByID(ctx, secretID)
	if err != nil {
		return nil, err
	}

	perms, err := s.repomanager.Permissions(s.db).ListBySecret(ctx, secretID)
	if err != nil {
		return nil, err
	}

	view := &SecretView{ID: secret.ID, Fields: map[policy.Field]string{}}

	for _, field := range policy.VisibleFields(actor, secret, perms) {
		switch field {
		case policy.FieldOwner:
			owner, err := s.repomanager.Users(s.db).GetByID(ctx, secret.OwnerID)
			if err != nil {
				return nil, err
			}
			view.Fields[field] = owner.Name
		case policy.FieldHost:
			view.Fields[field] = secret.Host
		case policy.FieldUsername:
			view.Fields[field] = secret.Username
		case policy.FieldNote:
			view.Fields[field] = secret.Note
		case policy.FieldTag:
			if secret.TagID == "" {
				view.Fields[field] = ""
				continue
			}
			tag, err := s.repomanager.Tags(s.db).GetByID(ctx, secret.TagID)
			if err != nil {
				return nil, err
			}
			view.Fields[field] = tag.Name
		case policy.FieldSecret, policy.FieldSecretReadonly:
			plaintext, err := s.cipher.Decrypt(secret.EncryptedSecret)
			if err != nil {
				return nil, err
			}
			view.Fields[field] = plaintext
		}
	}

	view.Readonly = policy.ReadonlyFields(actor, secret)
	return view, nil
}

// Delete removes a secret and every permission request referencing it in one
// transaction, so no request ever survives its secret.
func (s *SecretService) Delete(ctx context.Context, actor *models.User, secretID string) error {

	secret, err := s.repomanager.Secrets(s.db).GetByID(ctx, secretID)
	if err != nil {
		return err
	}

	if !policy.CanDelete(actor, secret) {
		return common.ErrorPermissionDenied
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Permissions(tx).DeleteBySecret(ctx, secretID); err != nil {
			return err
		}
		return s.repomanager.Secrets(tx).Delete(ctx, secretID)
	})
	if err != nil {
		return fmt.Errorf("error deleting secret: %w", err)
	}

	s.logger.Info(ctx, "secret deleted", "secret_id", secretID)
	return nil
}

// List returns summaries of every secret matching the filter. Summaries carry
// display values only; credentials are never decrypted here.
func (s *SecretService) List(ctx context.Context, actor *models.User, filter models.SecretListFilter) ([]*models.SecretSummary, error) {
	return s.repomanager.Secrets(s.db).List(ctx, filter)
}
