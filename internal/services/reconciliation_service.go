package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/SAP-F-2025/learner-service/internal/cache"
	"github.com/SAP-F-2025/learner-service/internal/metrics"
	"github.com/SAP-F-2025/learner-service/internal/models"
	"github.com/SAP-F-2025/learner-service/internal/repositories"
)

const reconcileLockKey = "reconcile:saga_steps"

// errAbandon marks a journaled step that can never succeed
var errAbandon = errors.New("step cannot be retried")

type reconciliationService struct {
	repo     repositories.Repository
	docs     repositories.DocumentRepository
	identity IdentityService
	progress ProgressService
	locker   cache.Locker
	metrics  *metrics.Metrics
	config   ServiceConfig
	logger   *slog.Logger
}

func NewReconciliationService(deps Dependencies, identity IdentityService, progress ProgressService) ReconciliationService {
	deps = deps.withDefaults()
	return &reconciliationService{
		repo:     deps.Repo,
		docs:     deps.Docs,
		identity: identity,
		progress: progress,
		locker:   deps.Locker,
		metrics:  deps.Metrics,
		config:   deps.Config,
		logger:   deps.Logger,
	}
}

// RunPending retries one batch of journaled steps. Only one pass runs at a
// time; a concurrent call fails with ErrInvalidState.
func (s *reconciliationService) RunPending(ctx context.Context) (*ReconcileReport, error) {
	lockCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	release, err := s.locker.Acquire(lockCtx, reconcileLockKey)
	cancel()
	if err != nil {
		if errors.Is(err, cache.ErrLockTimeout) {
			return nil, fmt.Errorf("reconciliation already running: %w", ErrInvalidState)
		}
		return nil, fmt.Errorf("failed to lock reconciliation: %w: %v", ErrStoreUnavailable, err)
	}
	defer release()

	report := &ReconcileReport{StartedAt: time.Now().UTC()}

	storeCtx, cancel := s.config.storeCtx(ctx)
	steps, err := s.repo.Saga().ListPending(storeCtx, nil, s.batchSize(), s.maxAttempts())
	cancel()
	if err != nil {
		return nil, fmt.Errorf("failed to list pending saga steps: %w", err)
	}

	for _, step := range steps {
		if ctx.Err() != nil {
			break
		}
		report.Scanned++

		if err := s.retry(ctx, step); err != nil {
			report.Failed++
			s.markFailed(ctx, step, err)
			continue
		}

		report.Resolved++
		s.markResolved(ctx, step)
	}

	report.Duration = time.Since(report.StartedAt).String()
	s.logger.Info("Reconciliation pass finished",
		"scanned", report.Scanned,
		"resolved", report.Resolved,
		"failed", report.Failed,
		"duration", report.Duration)

	return report, nil
}

func (s *reconciliationService) retry(ctx context.Context, step *models.SagaStep) error {
	switch step.Step {
	case models.StepAssignDefaultRole, models.StepCreateProfile, models.StepCreateSettings:
		_, err := s.identity.RepairUser(ctx, step.UserID)
		return terminalIfNotFound(err)

	case models.StepRecomputeEnrollment, models.StepAwardAchievement:
		enrollmentID, err := enrollmentFromPayload(step)
		if err != nil {
			return err
		}
		result, err := s.progress.RecomputeEnrollment(ctx, step.UserID, enrollmentID)
		if err != nil {
			return terminalIfNotFound(err)
		}
		if len(result.Issues) > 0 {
			// New failures were journaled as their own steps
			s.logger.Warn("Recompute left issues", "saga_step_id", step.ID, "issues", len(result.Issues))
		}
		return nil

	case models.StepAppendActivity:
		var activity models.UserActivity
		if err := decodePayload(step, &activity); err != nil {
			return err
		}
		return s.replay(ctx, func(ctx context.Context) error {
			return s.docs.Activity().AppendActivity(ctx, &activity)
		})

	case models.StepAppendNotification:
		var notification models.Notification
		if err := decodePayload(step, &notification); err != nil {
			return err
		}
		return s.replay(ctx, func(ctx context.Context) error {
			return s.docs.Notifications().AppendNotification(ctx, &notification)
		})

	case models.StepAppendAudit:
		var entry models.AuditLog
		if err := decodePayload(step, &entry); err != nil {
			return err
		}
		return s.replay(ctx, func(ctx context.Context) error {
			return s.docs.Activity().AppendAudit(ctx, &entry)
		})
	}

	return fmt.Errorf("unknown step %q: %w", step.Step, errAbandon)
}

// replay re-inserts a journaled record. A duplicate means the original write
// landed after all.
func (s *reconciliationService) replay(ctx context.Context, insert func(context.Context) error) error {
	storeCtx, cancel := s.config.storeCtx(ctx)
	defer cancel()

	if err := insert(storeCtx); err != nil && !errors.Is(err, ErrDuplicate) {
		return err
	}
	return nil
}

func (s *reconciliationService) markResolved(ctx context.Context, step *models.SagaStep) {
	storeCtx, cancel := s.config.storeCtx(ctx)
	defer cancel()

	s.metrics.StepReconciled(step.Step, "resolved")
	if err := s.repo.Saga().MarkResolved(storeCtx, nil, step.ID); err != nil {
		s.logger.Error("Failed to mark saga step resolved", "saga_step_id", step.ID, "error", err)
	}
}

func (s *reconciliationService) markFailed(ctx context.Context, step *models.SagaStep, cause error) {
	storeCtx, cancel := s.config.storeCtx(ctx)
	defer cancel()

	maxAttempts := s.maxAttempts()
	result := "failed"
	if errors.Is(cause, errAbandon) || step.Attempts+1 >= maxAttempts {
		result = "abandoned"
	}
	if errors.Is(cause, errAbandon) {
		maxAttempts = 0
	}

	s.metrics.StepReconciled(step.Step, result)
	s.logger.Warn("Saga step retry failed",
		"saga_step_id", step.ID,
		"step", step.Step,
		"user_id", step.UserID,
		"attempts", step.Attempts+1,
		"result", result,
		"error", cause)

	if err := s.repo.Saga().MarkAttemptFailed(storeCtx, nil, step.ID, cause.Error(), maxAttempts); err != nil {
		s.logger.Error("Failed to record saga step attempt", "saga_step_id", step.ID, "error", err)
	}
}

func (s *reconciliationService) batchSize() int {
	if s.config.ReconcileBatchSize > 0 {
		return s.config.ReconcileBatchSize
	}
	return 50
}

func (s *reconciliationService) maxAttempts() int {
	if s.config.ReconcileMaxAttempts > 0 {
		return s.config.ReconcileMaxAttempts
	}
	return 5
}

func terminalIfNotFound(err error) error {
	if err != nil && errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%w: %v", errAbandon, err)
	}
	return err
}

func decodePayload(step *models.SagaStep, dest interface{}) error {
	if len(step.Payload) == 0 || string(step.Payload) == "null" {
		return fmt.Errorf("step %s has no payload: %w", step.ID, errAbandon)
	}
	if err := json.Unmarshal(step.Payload, dest); err != nil {
		return fmt.Errorf("failed to decode payload of step %s: %w: %v", step.ID, errAbandon, err)
	}
	return nil
}

func enrollmentFromPayload(step *models.SagaStep) (string, error) {
	var payload struct {
		EnrollmentID string `json:"enrollment_id"`
	}
	if len(step.Payload) > 0 {
		_ = json.Unmarshal(step.Payload, &payload)
	}
	if payload.EnrollmentID != "" {
		return payload.EnrollmentID, nil
	}
	if step.EntityID != "" {
		return step.EntityID, nil
	}
	return "", fmt.Errorf("step %s has no enrollment: %w", step.ID, errAbandon)
}

// ReconcileScheduler runs RunPending on a cron schedule
type ReconcileScheduler struct {
	cron    *cron.Cron
	service ReconciliationService
	timeout time.Duration
	logger  *slog.Logger
}

func NewReconcileScheduler(service ReconciliationService, schedule string, timeout time.Duration, logger *slog.Logger) (*ReconcileScheduler, error) {
	s := &ReconcileScheduler{
		cron:    cron.New(),
		service: service,
		timeout: timeout,
		logger:  logger,
	}

	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		return nil, fmt.Errorf("failed to schedule reconciliation %q: %w", schedule, err)
	}

	return s, nil
}

func (s *ReconcileScheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if _, err := s.service.RunPending(ctx); err != nil {
		if errors.Is(err, ErrInvalidState) {
			s.logger.Info("Skipping scheduled reconciliation", "reason", err)
			return
		}
		s.logger.Error("Scheduled reconciliation failed", "error", err)
	}
}

func (s *ReconcileScheduler) Start() {
	s.cron.Start()
	s.logger.Info("Reconciliation scheduler started", "entries", len(s.cron.Entries()))
}

// Stop halts the schedule; the returned context is done once a running pass
// has finished
func (s *ReconcileScheduler) Stop() context.Context {
	return s.cron.Stop()
}
