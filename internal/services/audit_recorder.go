package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/SAP-F-2025/learner-service/internal/metrics"
	"github.com/SAP-F-2025/learner-service/internal/models"
	"github.com/SAP-F-2025/learner-service/internal/repositories"
)

type auditRecorder struct {
	docs    repositories.DocumentRepository
	metrics *metrics.Metrics
	config  ServiceConfig
	logger  *slog.Logger
}

func NewAuditRecorder(docs repositories.DocumentRepository, m *metrics.Metrics, config ServiceConfig, logger *slog.Logger) AuditRecorder {
	if m == nil {
		m = metrics.NewNopMetrics()
	}
	return &auditRecorder{
		docs:    docs,
		metrics: m,
		config:  config,
		logger:  logger,
	}
}

// Record appends an audit entry. The entry keeps the ID it was given, so a
// journaled copy replays as a duplicate once the original write has landed.
// The error is returned for journaling only; callers never abort on it.
func (r *auditRecorder) Record(ctx context.Context, entry *models.AuditLog) error {
	storeCtx, cancel := r.config.storeCtx(ctx)
	defer cancel()

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	if err := r.docs.Activity().AppendAudit(storeCtx, entry); err != nil {
		r.metrics.SideEffectFailed(entry.Action, "audit")
		r.logger.Error("Failed to record audit log",
			"audit_id", entry.ID,
			"user_id", entry.UserID,
			"action", entry.Action,
			"entity", entry.Entity,
			"entity_id", entry.EntityID,
			"error", err)
		return fmt.Errorf("failed to record audit log: %w", err)
	}

	return nil
}
