package secrets

import (
	"context"

	"github.com/dbateam/secretvault/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, secret *models.Secret) error
	Update(ctx context.Context, secret *models.Secret) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*models.Secret, error)
	List(ctx context.Context, filter models.SecretListFilter) ([]*models.SecretSummary, error)
	CountByTag(ctx context.Context, tagID string) (int64, error)
}
