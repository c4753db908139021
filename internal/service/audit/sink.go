package audit

import (
	"context"
	"errors"
	"fmt"

	"github.com/nkiryanov/authcore/internal/logger"
	"github.com/nkiryanov/authcore/internal/models"
	"github.com/nkiryanov/authcore/internal/repository"
)

// Sink persists audit entries
type Sink interface {
	Write(ctx context.Context, entry models.AuditEntry) error
}

// RepoSink appends entries to the audit log table
type RepoSink struct {
	repo repository.AuditRepo
}

func NewRepoSink(repo repository.AuditRepo) *RepoSink {
	return &RepoSink{repo: repo}
}

func (s *RepoSink) Write(ctx context.Context, entry models.AuditEntry) error {
	if err := s.repo.Append(ctx, entry); err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

// LoggerSink writes entries to the log, level follows severity
type LoggerSink struct {
	logger logger.Logger
}

func NewLoggerSink(l logger.Logger) *LoggerSink {
	return &LoggerSink{logger: l.WithGroup("audit")}
}

func (s *LoggerSink) Write(ctx context.Context, entry models.AuditEntry) error {
	args := []any{
		"action", entry.Action,
		"severity", entry.Severity,
		"ip", entry.IPAddress,
		"client", entry.ClientType,
		"device", entry.DeviceID,
	}
	if entry.UserID != nil {
		args = append(args, "user_id", entry.UserID.String())
	}
	if entry.Detail != "" {
		args = append(args, "detail", entry.Detail)
	}

	switch entry.Severity {
	case models.SeverityCritical:
		s.logger.Error("security event", args...)
	case models.SeverityWarning:
		s.logger.Warn("security event", args...)
	default:
		s.logger.Info("security event", args...)
	}
	return nil
}

// MultiSink writes to every sink, failure of one does not stop the others
type MultiSink []Sink

func (m MultiSink) Write(ctx context.Context, entry models.AuditEntry) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(ctx, entry); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
