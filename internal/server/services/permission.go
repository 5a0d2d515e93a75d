package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dbateam/secretvault/internal/common"
	"github.com/dbateam/secretvault/internal/dbx"
	"github.com/dbateam/secretvault/internal/logging"
	"github.com/dbateam/secretvault/internal/server/models"
	"github.com/dbateam/secretvault/internal/server/policy"
	"github.com/dbateam/secretvault/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// BulkApproveResult partitions a bulk approval selection: Approved holds the
// requests whose secrets the actor owns (now approved), Denied the rest,
// untouched. The host lists let the adapter render a per-item outcome
// message.
type BulkApproveResult struct {
	Approved      []*models.Permission
	Denied        []*models.Permission
	ApprovedHosts []string
	DeniedHosts   []string
}

// PermissionService runs the access-request workflow. The only state
// transition is pending to approved; there is no rejection and no revocation.
type PermissionService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
}

func NewPermissionService(db *sql.DB, rm repomanager.RepositoryManager, logger logging.Logger) *PermissionService {
	return &PermissionService{
		db:          db,
		repomanager: rm,
		logger:      logger.With("module", "permission_service"),
	}
}

// Request creates a pending access request by the actor for someone else's
// secret. Requesting access to one's own secret fails with ErrorSelfRequest.
func (s *PermissionService) Request(ctx context.Context, actor *models.User, secretID string, reason string) (*models.Permission, error) {

	secret, err := s.repomanager.Secrets(s.db).GetByID(ctx, secretID)
	if err != nil {
		return nil, err
	}

	if secret.OwnerID == actor.ID {
		return nil, common.ErrorSelfRequest
	}

	perm := &models.Permission{
		ID:          uuid.NewString(),
		SecretID:    secretID,
		ApplicantID: actor.ID,
		Reason:      reason,
	}

	if err := s.repomanager.Permissions(s.db).Create(ctx, perm); err != nil {
		return nil, fmt.Errorf("error creating permission: %w", err)
	}

	s.logger.Info(ctx, "access requested", "secret_id", secretID, "applicant_id", actor.ID)
	return perm, nil
}

// BulkRequest creates a pending request for every selected secret the actor
// does not own. Secrets owned by the actor are skipped silently; this matches
// the "apply for selected" bulk action, where the selection routinely mixes
// owned and foreign rows.
func (s *PermissionService) BulkRequest(ctx context.Context, actor *models.User, secretIDs []string) ([]*models.Permission, error) {

	secretRepo := s.repomanager.Secrets(s.db)

	var perms []*models.Permission
	for _, id := range secretIDs {
		secret, err := secretRepo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if secret.OwnerID == actor.ID {
			continue
		}
		perms = append(perms, &models.Permission{
			ID:          uuid.NewString(),
			SecretID:    secret.ID,
			ApplicantID: actor.ID,
		})
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repomanager.Permissions(tx).CreateBatch(ctx, perms)
	})
	if err != nil {
		return nil, fmt.Errorf("error creating permissions: %w", err)
	}

	s.logger.Info(ctx, "bulk access requested", "applicant_id", actor.ID, "count", len(perms))
	return perms, nil
}

// Approve grants a single request. Only the owner of the referenced secret
// may approve; approving an already approved request is a no-op.
func (s *PermissionService) Approve(ctx context.Context, actor *models.User, permissionID string) (*models.Permission, error) {

	perm, err := s.repomanager.Permissions(s.db).GetByID(ctx, permissionID)
	if err != nil {
		return nil, err
	}

	secret, err := s.repomanager.Secrets(s.db).GetByID(ctx, perm.SecretID)
	if err != nil {
		return nil, err
	}

	if !policy.CanApprovePermission(actor, secret.OwnerID) {
		return nil, common.ErrorPermissionDenied
	}

	approved, err := s.repomanager.Permissions(s.db).Approve(ctx, permissionID)
	if err != nil {
		return nil, fmt.Errorf("error approving permission: %w", err)
	}

	s.logger.Info(ctx, "access approved", "permission_id", permissionID, "secret_id", perm.SecretID)
	return approved, nil
}

// BulkApprove partitions the selection by ownership, approves the owned
// subset in one transaction, and reports both partitions. The call never
// fails as a whole because of denied items; ids that no longer resolve are
// dropped from the result.
func (s *PermissionService) BulkApprove(ctx context.Context, actor *models.User, permissionIDs []string) (*BulkApproveResult, error) {

	permRepo := s.repomanager.Permissions(s.db)
	secretRepo := s.repomanager.Secrets(s.db)

	result := &BulkApproveResult{}
	var ownedIDs []string

	for _, id := range permissionIDs {
		perm, err := permRepo.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				s.logger.Warn(ctx, "skipping vanished permission", "permission_id", id)
				continue
			}
			return nil, err
		}
		secret, err := secretRepo.GetByID(ctx, perm.SecretID)
		if err != nil {
			return nil, err
		}
		if policy.CanApprovePermission(actor, secret.OwnerID) {
			ownedIDs = append(ownedIDs, id)
			result.ApprovedHosts = append(result.ApprovedHosts, secret.Host)
		} else {
			result.Denied = append(result.Denied, perm)
			result.DeniedHosts = append(result.DeniedHosts, secret.Host)
		}
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		txRepo := s.repomanager.Permissions(tx)
		for _, id := range ownedIDs {
			approved, err := txRepo.Approve(ctx, id)
			if err != nil {
				return err
			}
			result.Approved = append(result.Approved, approved)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error approving permissions: %w", err)
	}

	s.logger.Info(ctx, "bulk approval", "approved", len(result.Approved), "denied", len(result.Denied))
	return result, nil
}

// Get returns a single request, visible only to the applicant and the owner
// of the referenced secret.
func (s *PermissionService) Get(ctx context.Context, actor *models.User, permissionID string) (*models.Permission, error) {

	perm, err := s.repomanager.Permissions(s.db).GetByID(ctx, permissionID)
	if err != nil {
		return nil, err
	}

	secret, err := s.repomanager.Secrets(s.db).GetByID(ctx, perm.SecretID)
	if err != nil {
		return nil, err
	}

	if !policy.CanViewPermission(actor, perm, secret.OwnerID) {
		return nil, common.ErrorPermissionDenied
	}

	return perm, nil
}

// List returns the requests visible to the actor: their own applications and
// requests against their secrets.
func (s *PermissionService) List(ctx context.Context, actor *models.User) ([]*models.PermissionSummary, error) {
	return s.repomanager.Permissions(s.db).ListSummariesForUser(ctx, actor.ID)
}
