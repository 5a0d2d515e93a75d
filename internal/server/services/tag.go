package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dbateam/secretvault/internal/common"
	"github.com/dbateam/secretvault/internal/dbx"
	"github.com/dbateam/secretvault/internal/logging"
	"github.com/dbateam/secretvault/internal/server/models"
	"github.com/dbateam/secretvault/internal/server/policy"
	"github.com/dbateam/secretvault/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// TagService manages tags. Every operation is administrator-gated.
type TagService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
}

func NewTagService(db *sql.DB, rm repomanager.RepositoryManager, logger logging.Logger) *TagService {
	return &TagService{
		db:          db,
		repomanager: rm,
		logger:      logger.With("module", "tag_service"),
	}
}

func (s *TagService) Create(ctx context.Context, actor *models.User, name string) (*models.Tag, error) {

	if !policy.CanManageTags(actor) {
		return nil, common.ErrorPermissionDenied
	}

	tag := &models.Tag{ID: uuid.NewString(), Name: name}
	if err := s.repomanager.Tags(s.db).Create(ctx, tag); err != nil {
		return nil, fmt.Errorf("error creating tag: %w", err)
	}

	s.logger.Info(ctx, "tag created", "tag_id", tag.ID, "name", tag.Name)
	return tag, nil
}

func (s *TagService) Update(ctx context.Context, actor *models.User, tagID string, name string) (*models.Tag, error) {

	if !policy.CanManageTags(actor) {
		return nil, common.ErrorPermissionDenied
	}

	repo := s.repomanager.Tags(s.db)

	tag, err := repo.GetByID(ctx, tagID)
	if err != nil {
		return nil, err
	}

	tag.Name = name
	if err := repo.Update(ctx, tag); err != nil {
		return nil, fmt.Errorf("error updating tag: %w", err)
	}

	s.logger.Info(ctx, "tag updated", "tag_id", tag.ID)
	return tag, nil
}

// Delete removes a tag unless any secret still references it, in which case
// it fails with ErrorTagInUse. The check and the delete share a transaction.
func (s *TagService) Delete(ctx context.Context, actor *models.User, tagID string) error {

	if !policy.CanManageTags(actor) {
		return common.ErrorPermissionDenied
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		n, err := s.repomanager.Secrets(tx).CountByTag(ctx, tagID)
		if err != nil {
			return err
		}
		if n > 0 {
			return common.ErrorTagInUse
		}
		return s.repomanager.Tags(tx).Delete(ctx, tagID)
	})
	if err != nil {
		return err
	}

	s.logger.Info(ctx, "tag deleted", "tag_id", tagID)
	return nil
}

func (s *TagService) List(ctx context.Context, actor *models.User) ([]*models.Tag, error) {

	if !policy.CanManageTags(actor) {
		return nil, common.ErrorPermissionDenied
	}

	return s.repomanager.Tags(s.db).List(ctx)
}
