package memory

import (
	"context"
	"slices"

	"github.com/google/uuid"

	"github.com/nkiryanov/authcore/internal/models"
)

type AuditRepo struct {
	s *Storage
}

func (r *AuditRepo) Append(ctx context.Context, entry models.AuditEntry) error {
	defer r.s.lock()()

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	r.s.data.audit = append(r.s.data.audit, entry)

	return nil
}

// Newest entries first
func (r *AuditRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.AuditEntry, error) {
	defer r.s.lock()()

	var entries []models.AuditEntry
	for _, e := range slices.Backward(r.s.data.audit) {
		if len(entries) == limit {
			break
		}
		if e.UserID != nil && *e.UserID == userID {
			entries = append(entries, e)
		}
	}

	return entries, nil
}
