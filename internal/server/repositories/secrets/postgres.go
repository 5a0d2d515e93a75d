// Package secrets provides the PostgreSQL-backed repository for stored
// credential rows. Secret values arrive here already encrypted.
package secrets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dbateam/secretvault/internal/common"
	"github.com/dbateam/secretvault/internal/dbx"
	"github.com/dbateam/secretvault/internal/server/models"
)

// PostgresRepository implements secret storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// tagID maps the model's empty-string "no tag" to SQL NULL.
func tagID(s *models.Secret) any {
	if s.TagID == "" {
		return nil
	}
	return s.TagID
}

func (r *PostgresRepository) Create(ctx context.Context, secret *models.Secret) error {
	query :=
		`INSERT INTO secrets (id, owner_id, host, username, encrypted_secret, tag_id, note)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING created_at, updated_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		secret.ID, secret.OwnerID, secret.Host, secret.Username,
		secret.EncryptedSecret, tagID(secret), secret.Note).
		Scan(&secret.CreatedAt, &secret.UpdatedAt)

	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

// Update rewrites the mutable columns. owner_id is never updated; ownership
// is frozen at creation.
func (r *PostgresRepository) Update(ctx context.Context, secret *models.Secret) error {
	query :=
		`UPDATE secrets
		 SET host = $2, username = $3, encrypted_secret = $4, tag_id = $5, note = $6, updated_at = now()
		 WHERE id = $1
		 RETURNING updated_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		secret.ID, secret.Host, secret.Username,
		secret.EncryptedSecret, tagID(secret), secret.Note).
		Scan(&secret.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM secrets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}

	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Secret, error) {
	query :=
		`SELECT id, owner_id, host, username, encrypted_secret, tag_id, note, created_at, updated_at
		 FROM secrets
		 WHERE id = $1
		 `

	secret := &models.Secret{}
	var tag sql.NullString
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&secret.ID, &secret.OwnerID, &secret.Host, &secret.Username,
		&secret.EncryptedSecret, &tag, &secret.Note,
		&secret.CreatedAt, &secret.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	secret.TagID = tag.String
	return secret, nil
}

// List returns the list-page projection of every secret matching the filter.
// The credential column is never selected here.
func (r *PostgresRepository) List(ctx context.Context, filter models.SecretListFilter) ([]*models.SecretSummary, error) {
	query :=
		`SELECT s.id, s.host, COALESCE(t.name, ''), u.name, s.note, s.created_at, s.updated_at
		 FROM secrets s
		 JOIN users u ON u.id = s.owner_id
		 LEFT JOIN tags t ON t.id = s.tag_id
		 `

	var conds []string
	var args []any
	if filter.TagID != "" {
		args = append(args, filter.TagID)
		conds = append(conds, "s.tag_id = $"+strconv.Itoa(len(args)))
	}
	if filter.OwnerID != "" {
		args = append(args, filter.OwnerID)
		conds = append(conds, "s.owner_id = $"+strconv.Itoa(len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := strconv.Itoa(len(args))
		conds = append(conds, "(s.host ILIKE $"+n+" OR s.note ILIKE $"+n+")")
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY s.created_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select secrets: %w", err)
	}
	defer rows.Close()

	var result []*models.SecretSummary
	for rows.Next() {
		var item models.SecretSummary
		if err := rows.Scan(
			&item.ID, &item.Host, &item.TagName, &item.OwnerName, &item.Note,
			&item.CreatedAt, &item.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// CountByTag reports how many secrets reference the given tag; used for the
// protect-on-delete check.
func (r *PostgresRepository) CountByTag(ctx context.Context, tagID string) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM secrets WHERE tag_id = $1`, tagID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
