package permissions

import (
	"context"

	"github.com/dbateam/secretvault/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, perm *models.Permission) error
	CreateBatch(ctx context.Context, perms []*models.Permission) error
	GetByID(ctx context.Context, id string) (*models.Permission, error)
	Approve(ctx context.Context, id string) (*models.Permission, error)
	ListBySecret(ctx context.Context, secretID string) ([]*models.Permission, error)
	ListSummariesForUser(ctx context.Context, userID string) ([]*models.PermissionSummary, error)
	DeleteBySecret(ctx context.Context, secretID string) error
}
