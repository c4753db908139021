package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/authcore/internal/apperrors"
	"github.com/nkiryanov/authcore/internal/models"
)

type RefreshTokenRepo struct {
	DB DBTX
}

const tokenColumns = `id, user_id, device_id, login_method, client_type, issued_at, expires_at, rotated_at, revoked_at, replaced_by`

const saveToken = `-- name: SaveRefreshToken
INSERT INTO refresh_tokens (` + tokenColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING ` + tokenColumns

func (r *RefreshTokenRepo) Save(ctx context.Context, t models.RefreshToken) (models.RefreshToken, error) {
	rows, _ := r.DB.Query(ctx, saveToken,
		t.ID, t.UserID, t.DeviceID, t.LoginMethod, t.ClientType,
		t.IssuedAt, t.ExpiresAt, t.RotatedAt, t.RevokedAt, t.ReplacedBy,
	)
	token, err := pgx.CollectOneRow(rows, rowToToken)
	if err != nil {
		return token, fmt.Errorf("db error: %w", err)
	}
	return token, nil
}

const getToken = `-- name: GetRefreshToken
SELECT ` + tokenColumns + `
FROM refresh_tokens
WHERE id = $1
`

// Get token
// It should return result even it expired or used already
func (r *RefreshTokenRepo) Get(ctx context.Context, tokenID uuid.UUID) (models.RefreshToken, error) {
	rows, _ := r.DB.Query(ctx, getToken, tokenID)
	return collectToken(pgx.CollectOneRow(rows, rowToToken))
}

const markRotated = `-- name: MarkRefreshTokenRotated
UPDATE refresh_tokens
SET rotated_at = $3, replaced_by = $2
WHERE id = $1
  AND rotated_at IS NULL
  AND revoked_at IS NULL
  AND expires_at > $3
RETURNING ` + tokenColumns

// Compare-and-set: the WHERE clause is evaluated under the row lock,
// so only one of concurrent callers can see the token active
func (r *RefreshTokenRepo) MarkRotated(ctx context.Context, tokenID uuid.UUID, successorID uuid.UUID, now time.Time) (models.RefreshToken, error) {
	rows, _ := r.DB.Query(ctx, markRotated, tokenID, successorID, now)
	return collectToken(pgx.CollectOneRow(rows, rowToToken))
}

const deleteActive = `-- name: DeleteActiveRefreshToken
DELETE FROM refresh_tokens
WHERE id = $1
  AND rotated_at IS NULL
  AND revoked_at IS NULL
  AND expires_at > $2
RETURNING ` + tokenColumns

func (r *RefreshTokenRepo) DeleteActive(ctx context.Context, tokenID uuid.UUID, now time.Time) (models.RefreshToken, error) {
	rows, _ := r.DB.Query(ctx, deleteActive, tokenID, now)
	return collectToken(pgx.CollectOneRow(rows, rowToToken))
}

const revokeAll = `-- name: RevokeAllUserRefreshTokens
UPDATE refresh_tokens
SET revoked_at = $2
WHERE user_id = $1
  AND rotated_at IS NULL
  AND revoked_at IS NULL
`

func (r *RefreshTokenRepo) RevokeAll(ctx context.Context, userID uuid.UUID, now time.Time) (int, error) {
	tag, err := r.DB.Exec(ctx, revokeAll, userID, now)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

const deleteExpired = `-- name: DeleteExpiredRefreshTokens
DELETE FROM refresh_tokens
WHERE expires_at < $1
`

func (r *RefreshTokenRepo) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	tag, err := r.DB.Exec(ctx, deleteExpired, before)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func collectToken(token models.RefreshToken, err error) (models.RefreshToken, error) {
	switch {
	case err == nil:
		return token, nil
	case errors.Is(err, pgx.ErrNoRows):
		return token, fmt.Errorf("repo error: %w", apperrors.ErrRefreshTokenNotFound)
	default:
		return token, fmt.Errorf("db error: %w", err)
	}
}

func rowToToken(row pgx.CollectableRow) (models.RefreshToken, error) {
	var t models.RefreshToken
	err := row.Scan(
		&t.ID, &t.UserID, &t.DeviceID, &t.LoginMethod, &t.ClientType,
		&t.IssuedAt, &t.ExpiresAt, &t.RotatedAt, &t.RevokedAt, &t.ReplacedBy,
	)
	return t, err
}
