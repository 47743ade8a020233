package services

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/SAP-F-2025/learner-service/internal/metrics"
	"github.com/SAP-F-2025/learner-service/internal/models"
	"github.com/SAP-F-2025/learner-service/internal/repositories"
)

type sagaJournal struct {
	repo    repositories.Repository
	metrics *metrics.Metrics
	config  ServiceConfig
	logger  *slog.Logger
}

func NewSagaJournal(repo repositories.Repository, m *metrics.Metrics, config ServiceConfig, logger *slog.Logger) SagaJournal {
	if m == nil {
		m = metrics.NewNopMetrics()
	}
	return &sagaJournal{
		repo:    repo,
		metrics: m,
		config:  config,
		logger:  logger,
	}
}

func (j *sagaJournal) Fail(ctx context.Context, saga models.SagaName, sagaID, step, userID, entityID string, payload interface{}, cause error) bool {
	raw, err := json.Marshal(payload)
	if err != nil {
		j.logger.Error("Failed to encode saga payload", "saga", saga, "step", step, "error", err)
		raw = []byte("null")
	}

	lastErr := ""
	if cause != nil {
		lastErr = cause.Error()
	}

	entry := &models.SagaStep{
		ID:        uuid.New().String(),
		SagaID:    sagaID,
		Saga:      saga,
		Step:      step,
		UserID:    userID,
		EntityID:  entityID,
		Status:    models.SagaStepFailed,
		LastError: lastErr,
		Payload:   datatypes.JSON(raw),
	}

	// The caller's context may be the one that just expired
	storeCtx, cancel := j.config.storeCtx(context.WithoutCancel(ctx))
	defer cancel()

	if err := j.repo.Saga().Record(storeCtx, nil, entry); err != nil {
		j.metrics.SideEffectFailed(string(saga), "journal")
		j.logger.Error("Failed to journal saga step",
			"saga", saga,
			"saga_id", sagaID,
			"step", step,
			"user_id", userID,
			"cause", lastErr,
			"error", err)
		return false
	}

	j.metrics.StepJournaled(string(saga), step)
	j.logger.Warn("Saga step journaled for reconciliation",
		"saga", saga,
		"saga_id", sagaID,
		"step", step,
		"user_id", userID,
		"entity_id", entityID,
		"cause", lastErr)
	return true
}

// sagaRun tracks the non-fatal step failures of one orchestrated operation
type sagaRun struct {
	saga    models.SagaName
	id      string
	userID  string
	journal SagaJournal
	metrics *metrics.Metrics
	logger  *slog.Logger
	issues  []StepIssue
}

func newSagaRun(saga models.SagaName, userID string, journal SagaJournal, m *metrics.Metrics, logger *slog.Logger) *sagaRun {
	return &sagaRun{
		saga:    saga,
		id:      uuid.New().String(),
		userID:  userID,
		journal: journal,
		metrics: m,
		logger:  logger,
	}
}

// fail records a step failure. The primary write stays committed.
func (r *sagaRun) fail(ctx context.Context, step, entityID string, payload interface{}, err error) {
	r.metrics.SideEffectFailed(string(r.saga), step)
	r.journalFailure(ctx, step, entityID, payload, err)
}

// journalFailure is fail for steps whose failure was already counted by the
// component that ran them
func (r *sagaRun) journalFailure(ctx context.Context, step, entityID string, payload interface{}, err error) {
	r.logger.Error("Saga step failed",
		"saga", r.saga,
		"saga_id", r.id,
		"step", step,
		"user_id", r.userID,
		"error", err)

	journaled := false
	if r.journal != nil {
		journaled = r.journal.Fail(ctx, r.saga, r.id, step, r.userID, entityID, payload, err)
	}

	r.issues = append(r.issues, StepIssue{
		Step:      step,
		Error:     err.Error(),
		Journaled: journaled,
	})
}
