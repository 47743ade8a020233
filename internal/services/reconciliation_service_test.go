package services

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/learner-service/internal/models"
)

func (e *testEnv) reconciler() ReconciliationService {
	return NewReconciliationService(e.deps, e.identity(), e.progress())
}

func TestReconciliationService_RepairsIdentitySteps(t *testing.T) {
	env := newTestEnv()
	env.store.addRole(models.RoleStudent)
	env.store.fail("Profiles.EnsureProfile", ErrStoreUnavailable)
	env.store.fail("Role.AssignToUser", ErrStoreUnavailable)

	resp, err := env.identity().CreateCompleteUser(context.Background(), newLearnerRequest())
	require.NoError(t, err)
	require.Len(t, env.store.steps(), 2)

	env.store.fail("Profiles.EnsureProfile", nil)
	env.store.fail("Role.AssignToUser", nil)

	report, err := env.reconciler().RunPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Scanned)
	assert.Equal(t, 2, report.Resolved)
	assert.Equal(t, 0, report.Failed)

	for _, step := range env.store.steps() {
		assert.Equal(t, models.SagaStepResolved, step.Status)
	}
	assert.Contains(t, env.store.profiles, resp.User.ID)
	assert.Equal(t, []string{models.RoleStudent}, env.store.userRoles[resp.User.ID])

	// Nothing left to do
	report, err = env.reconciler().RunPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Scanned)
}

func TestReconciliationService_ReplaysAppendSteps(t *testing.T) {
	env := newTestEnv()
	seedCourse(env)
	env.store.fail("Activity.AppendActivity", ErrStoreUnavailable)

	_, err := env.progress().CompleteLesson(context.Background(), "u1", "l1", "e1", nil)
	require.NoError(t, err)
	assert.Empty(t, env.store.activities)

	env.store.fail("Activity.AppendActivity", nil)

	report, err := env.reconciler().RunPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Resolved)

	replayed := env.store.activitiesOf(models.ActivityLessonCompleted)
	require.Len(t, replayed, 1)
	assert.Equal(t, "u1", replayed[0].UserID)
	assert.Equal(t, "l1", replayed[0].ResourceID)

	assert.Equal(t, float64(1), testutil.ToFloat64(env.metrics.ReconciledStepsTotal.WithLabelValues(models.StepAppendActivity, "resolved")))
}

func TestReconciliationService_AuditReplayAfterLostAck(t *testing.T) {
	env := newTestEnv()
	env.store.addRole(models.RoleStudent)
	env.store.loseAck("Activity.AppendAudit", ErrStoreUnavailable)

	resp, err := env.identity().CreateCompleteUser(context.Background(), newLearnerRequest())
	require.NoError(t, err)
	require.Len(t, env.store.audits, 1)

	steps := env.store.steps()
	require.Len(t, steps, 1)
	require.Equal(t, models.StepAppendAudit, steps[0].Step)

	var journaled models.AuditLog
	require.NoError(t, decodePayload(steps[0], &journaled))
	assert.NotEmpty(t, journaled.ID)
	assert.Equal(t, env.store.audits[0].ID, journaled.ID)
	assert.Equal(t, resp.User.ID, journaled.EntityID)

	env.store.loseAck("Activity.AppendAudit", nil)

	report, err := env.reconciler().RunPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Resolved)
	assert.Equal(t, 0, report.Failed)

	// The replay hit the landed entry instead of writing a second one
	assert.Len(t, env.store.audits, 1)
	assert.Equal(t, 2, env.store.callCount("Activity.AppendAudit"))
	assert.Equal(t, models.SagaStepResolved, env.store.steps()[0].Status)
}

func TestReconciliationService_RecomputesEnrollment(t *testing.T) {
	env := newTestEnv()
	env.store.addUser("u1", "Uma", "Diaz", "uma@example.com")
	env.store.addCourse("c1", "English A1", 0)
	env.store.addEnrollment("e1", "u1", "c1")

	_, err := env.progress().CompleteLesson(context.Background(), "u1", "l1", "e1", nil)
	require.NoError(t, err)
	require.Len(t, env.store.steps(), 1)

	// Lessons were published after the completion
	env.store.addCourse("c1", "English A1", 2)

	report, err := env.reconciler().RunPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Resolved)
	assert.Equal(t, float64(50), env.store.enrollment("e1").Progress)
}

func TestReconciliationService_RetriesThenAbandons(t *testing.T) {
	env := newTestEnv()
	env.deps.Config.ReconcileMaxAttempts = 2
	env.store.fail("Notifications.AppendNotification", ErrStoreUnavailable)

	_, err := env.identity().CreateCompleteUser(context.Background(), newLearnerRequest())
	require.NoError(t, err)

	reconciler := env.reconciler()
	ctx := context.Background()

	report, err := reconciler.RunPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)

	steps := env.store.steps()
	require.Len(t, steps, 1)
	assert.Equal(t, models.SagaStepFailed, steps[0].Status)
	assert.Equal(t, 1, steps[0].Attempts)
	assert.Equal(t, "store unavailable", steps[0].LastError)

	_, err = reconciler.RunPending(ctx)
	require.NoError(t, err)
	steps = env.store.steps()
	assert.Equal(t, models.SagaStepAbandoned, steps[0].Status)
	assert.Equal(t, 2, steps[0].Attempts)

	report, err = reconciler.RunPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Scanned)

	assert.Equal(t, float64(1), testutil.ToFloat64(env.metrics.ReconciledStepsTotal.WithLabelValues(models.StepAppendNotification, "failed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(env.metrics.ReconciledStepsTotal.WithLabelValues(models.StepAppendNotification, "abandoned")))
}

func TestReconciliationService_AbandonsUnrecoverableSteps(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	require.NoError(t, env.deps.Repo.Saga().Record(ctx, nil, &models.SagaStep{
		ID: "unknown", SagaID: "s1", Saga: models.SagaCreateUser, Step: "send_postcard", UserID: "u1", Status: models.SagaStepFailed,
	}))
	require.NoError(t, env.deps.Repo.Saga().Record(ctx, nil, &models.SagaStep{
		ID: "no-payload", SagaID: "s2", Saga: models.SagaCompleteLesson, Step: models.StepAppendActivity, UserID: "u1", Status: models.SagaStepFailed,
	}))
	require.NoError(t, env.deps.Repo.Saga().Record(ctx, nil, &models.SagaStep{
		ID: "gone", SagaID: "s3", Saga: models.SagaCreateUser, Step: models.StepCreateProfile, UserID: "deleted-user", Status: models.SagaStepFailed,
	}))

	report, err := env.reconciler().RunPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Failed)

	for _, step := range env.store.steps() {
		assert.Equal(t, models.SagaStepAbandoned, step.Status, step.ID)
		assert.Equal(t, 1, step.Attempts, step.ID)
	}
}

func TestReconciliationService_SinglePass(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	release, err := env.deps.Locker.Acquire(ctx, reconcileLockKey)
	require.NoError(t, err)

	_, err = env.reconciler().RunPending(ctx)
	assert.ErrorIs(t, err, ErrInvalidState)

	release()
	_, err = env.reconciler().RunPending(ctx)
	assert.NoError(t, err)
}

func TestReconcileScheduler(t *testing.T) {
	env := newTestEnv()

	_, err := NewReconcileScheduler(env.reconciler(), "not a schedule", time.Second, testLogger())
	assert.Error(t, err)

	scheduler, err := NewReconcileScheduler(env.reconciler(), "@every 1h", time.Second, testLogger())
	require.NoError(t, err)
	scheduler.Start()

	select {
	case <-scheduler.Stop().Done():
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}
