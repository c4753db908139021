package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/authcore/internal/models"
)

type AuditRepo struct {
	DB DBTX
}

const appendAudit = `-- name: AppendAuditEntry
INSERT INTO audit_log (id, user_id, action, severity, detail, created_at, ip_address, user_agent, client_type, device_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
`

func (r *AuditRepo) Append(ctx context.Context, e models.AuditEntry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}

	_, err := r.DB.Exec(ctx, appendAudit,
		e.ID, e.UserID, e.Action, e.Severity, e.Detail, e.Timestamp,
		e.IPAddress, e.UserAgent, e.ClientType, e.DeviceID,
	)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

const listAuditByUser = `-- name: ListAuditByUser
SELECT id, user_id, action, severity, detail, created_at, ip_address, user_agent, client_type, device_id
FROM audit_log
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2
`

// Newest entries first
func (r *AuditRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.AuditEntry, error) {
	rows, _ := r.DB.Query(ctx, listAuditByUser, userID, limit)
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.AuditEntry, error) {
		var e models.AuditEntry
		err := row.Scan(
			&e.ID, &e.UserID, &e.Action, &e.Severity, &e.Detail, &e.Timestamp,
			&e.IPAddress, &e.UserAgent, &e.ClientType, &e.DeviceID,
		)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return entries, nil
}
