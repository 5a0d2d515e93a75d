// Package permissions provides the PostgreSQL-backed repository for access
// requests.
package permissions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dbateam/secretvault/internal/common"
	"github.com/dbateam/secretvault/internal/dbx"
	"github.com/dbateam/secretvault/internal/server/models"
)

// PostgresRepository implements permission storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, perm *models.Permission) error {
	query :=
		`INSERT INTO permissions (id, secret_id, applicant_id, agree, reason)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		perm.ID, perm.SecretID, perm.ApplicantID, perm.Agree, perm.Reason).
		Scan(&perm.CreatedAt)

	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

// CreateBatch inserts the given pending requests one by one. Callers that
// need all-or-nothing semantics run it inside dbx.WithTx.
func (r *PostgresRepository) CreateBatch(ctx context.Context, perms []*models.Permission) error {
	for _, p := range perms {
		if err := r.Create(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func scanPermission(row interface{ Scan(...any) error }) (*models.Permission, error) {
	perm := &models.Permission{}
	var decided sql.NullTime
	err := row.Scan(&perm.ID, &perm.SecretID, &perm.ApplicantID,
		&perm.Agree, &perm.Reason, &perm.CreatedAt, &decided)
	if err != nil {
		return nil, err
	}
	if decided.Valid {
		t := decided.Time
		perm.DecidedAt = &t
	}
	return perm, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Permission, error) {
	query :=
		`SELECT id, secret_id, applicant_id, agree, reason, created_at, decided_at
		 FROM permissions
		 WHERE id = $1
		 `

	perm, err := scanPermission(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return perm, nil
}

// Approve sets agree in a single UPDATE, stamping decided_at on the first
// approval only. The transition is idempotent: approving an already approved
// request changes nothing.
func (r *PostgresRepository) Approve(ctx context.Context, id string) (*models.Permission, error) {
	query :=
		`UPDATE permissions
		 SET agree = TRUE, decided_at = COALESCE(decided_at, now())
		 WHERE id = $1
		 RETURNING id, secret_id, applicant_id, agree, reason, created_at, decided_at
		 `

	perm, err := scanPermission(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return perm, nil
}

func (r *PostgresRepository) ListBySecret(ctx context.Context, secretID string) ([]*models.Permission, error) {
	query :=
		`SELECT id, secret_id, applicant_id, agree, reason, created_at, decided_at
		 FROM permissions
		 WHERE secret_id = $1
		 `

	return r.list(ctx, query, secretID)
}

// ListSummariesForUser returns the requests visible to userID, decorated for
// display: those they applied for and those against secrets they own.
func (r *PostgresRepository) ListSummariesForUser(ctx context.Context, userID string) ([]*models.PermissionSummary, error) {
	query :=
		`SELECT p.id, s.host, a.name, o.name, p.agree, p.created_at, p.decided_at
		 FROM permissions p
		 JOIN secrets s ON s.id = p.secret_id
		 JOIN users a ON a.id = p.applicant_id
		 JOIN users o ON o.id = s.owner_id
		 WHERE p.applicant_id = $1 OR s.owner_id = $1
		 ORDER BY p.created_at DESC
		 `

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to select permissions: %w", err)
	}
	defer rows.Close()

	var result []*models.PermissionSummary
	for rows.Next() {
		var item models.PermissionSummary
		var decided sql.NullTime
		if err := rows.Scan(&item.ID, &item.Host, &item.ApplicantName, &item.OwnerName,
			&item.Agree, &item.CreatedAt, &decided); err != nil {
			return nil, err
		}
		if decided.Valid {
			t := decided.Time
			item.DecidedAt = &t
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]*models.Permission, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select permissions: %w", err)
	}
	defer rows.Close()

	var result []*models.Permission
	for rows.Next() {
		perm, err := scanPermission(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, perm)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// DeleteBySecret removes every request referencing the secret; runs inside
// the same transaction as the secret's own deletion.
func (r *PostgresRepository) DeleteBySecret(ctx context.Context, secretID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM permissions WHERE secret_id = $1`, secretID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
