package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/SAP-F-2025/learner-service/internal/cache"
	"github.com/SAP-F-2025/learner-service/internal/events"
	"github.com/SAP-F-2025/learner-service/internal/metrics"
	"github.com/SAP-F-2025/learner-service/internal/models"
	"github.com/SAP-F-2025/learner-service/internal/repositories"
	"github.com/SAP-F-2025/learner-service/internal/validator"
)

type progressService struct {
	repo      repositories.Repository
	docs      repositories.DocumentRepository
	cache     *cache.CacheManager
	locker    cache.Locker
	journal   SagaJournal
	publisher events.EventPublisher
	validator *validator.Validator
	metrics   *metrics.Metrics
	config    ServiceConfig
	logger    *slog.Logger
}

func NewProgressService(deps Dependencies, journal SagaJournal) ProgressService {
	deps = deps.withDefaults()
	return &progressService{
		repo:      deps.Repo,
		docs:      deps.Docs,
		cache:     deps.Cache,
		locker:    deps.Locker,
		journal:   journal,
		publisher: deps.Publisher,
		validator: deps.Validator,
		metrics:   deps.Metrics,
		config:    deps.Config,
		logger:    deps.Logger,
	}
}

// CompleteLesson records the completion and then brings the enrollment
// aggregate and its side effects up to date. Only the lesson upsert and the
// enrollment load are fatal.
func (s *progressService) CompleteLesson(ctx context.Context, userID, lessonID, enrollmentID string, req *CompleteLessonRequest) (*CompleteLessonResult, error) {
	if err := s.validateLessonRef(lessonID, enrollmentID); err != nil {
		return nil, err
	}

	completion := repositories.LessonCompletion{
		UserID:       userID,
		LessonID:     lessonID,
		EnrollmentID: enrollmentID,
		CompletedAt:  time.Now().UTC(),
	}
	if req != nil {
		completion.TimeSpent = req.TimeSpent
		completion.QuizResults = req.QuizResults
		completion.Notes = req.Notes
	}

	// Step 1
	storeCtx, cancel := s.config.storeCtx(ctx)
	progress, err := s.docs.Progress().MarkCompleted(storeCtx, completion)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("failed to record lesson completion: %w", err)
	}
	defer cache.InvalidateStudentProgress(context.WithoutCancel(ctx), s.cache, userID)

	result := &CompleteLessonResult{Progress: progress}

	// Step 2
	enrollment, total, err := s.loadEnrollment(ctx, userID, enrollmentID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.logger.Info("Lesson completed without enrollment context",
				"user_id", userID, "lesson_id", lessonID, "enrollment_id", enrollmentID)
			s.publishLessonCompleted(ctx, userID, lessonID, enrollmentID, nil)
			return result, nil
		}
		return nil, err
	}
	result.Enrollment = enrollment
	result.TotalLessons = total

	run := newSagaRun(models.SagaCompleteLesson, userID, s.journal, s.metrics, s.logger)

	// Steps 3 to 5
	completed, recomputeErr := s.recompute(ctx, userID, enrollment, total)
	if recomputeErr != nil {
		run.fail(ctx, models.StepRecomputeEnrollment, enrollment.ID, map[string]string{"enrollment_id": enrollment.ID}, recomputeErr)
	} else {
		result.CompletedLessons = completed
	}

	// Step 6
	activity := &models.UserActivity{
		UserID:     userID,
		Action:     models.ActivityLessonCompleted,
		Resource:   "lesson",
		ResourceID: lessonID,
		Metadata: map[string]interface{}{
			"enrollmentId": enrollmentID,
			"timeSpent":    completion.TimeSpent,
		},
	}
	if err := s.appendActivity(ctx, activity); err != nil {
		run.fail(ctx, models.StepAppendActivity, enrollment.ID, activity, err)
	}

	// Step 7
	if recomputeErr == nil && total > 0 && completed >= total {
		result.AchievementAwarded = s.awardCompletion(ctx, run, userID, enrollment)
	}

	result.Issues = run.issues

	var progressValue *float64
	if recomputeErr == nil {
		progressValue = &enrollment.Progress
	}
	s.publishLessonCompleted(ctx, userID, lessonID, enrollmentID, progressValue)

	return result, nil
}

// RecordLessonAttempt moves a lesson to in-progress. A completed lesson stays
// completed.
func (s *progressService) RecordLessonAttempt(ctx context.Context, userID, lessonID, enrollmentID string, timeSpent int) (*models.LessonProgress, error) {
	if err := s.validateLessonRef(lessonID, enrollmentID); err != nil {
		return nil, err
	}
	if timeSpent < 0 {
		return nil, fmt.Errorf("time spent must not be negative: %w", ErrInvalidState)
	}

	storeCtx, cancel := s.config.storeCtx(ctx)
	defer cancel()

	progress, err := s.docs.Progress().RecordAttempt(storeCtx, userID, lessonID, enrollmentID, timeSpent, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to record lesson attempt: %w", err)
	}

	cache.InvalidateStudentProgress(context.WithoutCancel(ctx), s.cache, userID)
	return progress, nil
}

// RecomputeEnrollment re-derives the enrollment progress and awards a missing
// completion achievement. It is the retry path for failed completions.
func (s *progressService) RecomputeEnrollment(ctx context.Context, userID, enrollmentID string) (*RecomputeResult, error) {
	enrollment, total, err := s.loadEnrollment(ctx, userID, enrollmentID)
	if err != nil {
		return nil, err
	}

	completed, err := s.recompute(ctx, userID, enrollment, total)
	if err != nil {
		return nil, err
	}
	defer cache.InvalidateStudentProgress(context.WithoutCancel(ctx), s.cache, userID)

	result := &RecomputeResult{
		Enrollment:       enrollment,
		CompletedLessons: completed,
		TotalLessons:     total,
	}

	if total > 0 && completed >= total {
		run := newSagaRun(models.SagaCompleteLesson, userID, s.journal, s.metrics, s.logger)
		result.AchievementAwarded = s.awardCompletion(ctx, run, userID, enrollment)
		result.Issues = run.issues
	}

	return result, nil
}

func (s *progressService) GetStudentProgress(ctx context.Context, userID string) (*StudentProgress, error) {
	if s.cache == nil {
		return s.fetchStudentProgress(ctx, userID)
	}

	var result StudentProgress
	err := s.cache.Progress.VersionedCacheOrExecute(ctx, cache.StudentProgressKey(userID), &result, cache.ProgressCacheConfig.TTL, func() (interface{}, error) {
		return s.fetchStudentProgress(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *progressService) fetchStudentProgress(ctx context.Context, userID string) (*StudentProgress, error) {
	storeCtx, cancel := s.config.storeCtx(ctx)
	enrollments, err := s.repo.Enrollment().ListActiveByUser(storeCtx, nil, userID)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("failed to list enrollments: %w", err)
	}

	items := make([]*EnrollmentProgress, len(enrollments))
	g, gctx := errgroup.WithContext(ctx)
	for i, enrollment := range enrollments {
		g.Go(func() error {
			storeCtx, cancel := s.config.storeCtx(gctx)
			defer cancel()

			lessons, err := s.docs.Progress().ListByEnrollment(storeCtx, userID, enrollment.ID)
			if err != nil {
				return fmt.Errorf("failed to list lesson progress for enrollment %s: %w", enrollment.ID, err)
			}
			total, err := s.repo.Course().CountLessons(storeCtx, nil, enrollment.CourseID)
			if err != nil {
				return fmt.Errorf("failed to count lessons of course %s: %w", enrollment.CourseID, err)
			}

			var completed int64
			for _, lp := range lessons {
				if lp.IsCompleted {
					completed++
				}
			}
			items[i] = &EnrollmentProgress{
				Enrollment:       enrollment,
				Lessons:          lessons,
				CompletedLessons: completed,
				TotalLessons:     total,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &StudentProgress{
		UserID:      userID,
		Enrollments: items,
		GeneratedAt: time.Now().UTC(),
	}, nil
}

// loadEnrollment returns the enrollment and its course's lesson count. An
// enrollment owned by another user is reported as not found.
func (s *progressService) loadEnrollment(ctx context.Context, userID, enrollmentID string) (*models.Enrollment, int64, error) {
	storeCtx, cancel := s.config.storeCtx(ctx)
	defer cancel()

	enrollment, err := s.repo.Enrollment().GetByID(storeCtx, nil, enrollmentID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load enrollment: %w", err)
	}
	if enrollment.UserID != userID {
		s.logger.Warn("Enrollment belongs to another user", "user_id", userID, "enrollment_id", enrollmentID)
		return nil, 0, fmt.Errorf("enrollment %s of user %s: %w", enrollmentID, userID, ErrNotFound)
	}

	total, err := s.repo.Course().CountLessons(storeCtx, nil, enrollment.CourseID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count lessons: %w", err)
	}

	return enrollment, total, nil
}

// recompute runs the count-then-write steps under the per-enrollment lock.
// A course without lessons leaves the stored progress untouched.
func (s *progressService) recompute(ctx context.Context, userID string, enrollment *models.Enrollment, total int64) (int64, error) {
	lockCtx, cancel := s.config.storeCtx(ctx)
	release, err := s.locker.Acquire(lockCtx, enrollmentLockKey(userID, enrollment.ID))
	cancel()
	if err != nil {
		s.metrics.ProgressRecomputed("lock_timeout")
		return 0, fmt.Errorf("failed to lock enrollment %s: %w: %v", enrollment.ID, ErrStoreUnavailable, err)
	}
	defer release()

	storeCtx, cancel := s.config.storeCtx(ctx)
	defer cancel()

	completed, err := s.docs.Progress().CountCompleted(storeCtx, userID, enrollment.ID)
	if err != nil {
		s.metrics.ProgressRecomputed("error")
		return 0, fmt.Errorf("failed to count completed lessons: %w", err)
	}

	if total == 0 {
		s.metrics.ProgressRecomputed("invalid")
		return completed, fmt.Errorf("course %s has no lessons: %w", enrollment.CourseID, ErrInvalidState)
	}

	progress := computeProgress(completed, total)
	var completedAt *time.Time
	if progress >= 100 {
		now := time.Now().UTC()
		completedAt = &now
	}

	if err := s.repo.Enrollment().UpdateProgress(storeCtx, nil, enrollment.ID, progress, completedAt); err != nil {
		s.metrics.ProgressRecomputed("error")
		return completed, fmt.Errorf("failed to update enrollment progress: %w", err)
	}

	enrollment.Progress = progress
	enrollment.CompletedAt = completedAt
	s.metrics.ProgressRecomputed("ok")

	s.logger.Debug("Enrollment progress updated",
		"user_id", userID,
		"enrollment_id", enrollment.ID,
		"completed", completed,
		"total", total,
		"progress", progress)

	return completed, nil
}

// awardCompletion inserts the course_completion achievement unless one
// already exists, and notifies the user only when it was newly inserted
func (s *progressService) awardCompletion(ctx context.Context, run *sagaRun, userID string, enrollment *models.Enrollment) bool {
	storeCtx, cancel := s.config.storeCtx(ctx)
	defer cancel()

	payload := map[string]string{"enrollment_id": enrollment.ID}

	exists, err := s.docs.Notifications().HasAchievement(storeCtx, userID, models.AchievementCourseCompletion, enrollment.CourseID)
	if err != nil {
		run.fail(ctx, models.StepAwardAchievement, enrollment.ID, payload, err)
		return false
	}
	if exists {
		return false
	}

	title := enrollment.Course.Title
	achievement := &models.Achievement{
		UserID:      userID,
		Type:        models.AchievementCourseCompletion,
		Title:       "Course Completed",
		Description: fmt.Sprintf("You completed %q", title),
		Points:      s.config.CourseCompletionPoints,
		CourseID:    enrollment.CourseID,
		Metadata: map[string]interface{}{
			"courseId":   enrollment.CourseID,
			"courseName": title,
		},
		EarnedAt: time.Now().UTC(),
	}
	if err := s.docs.Notifications().InsertAchievement(storeCtx, achievement); err != nil {
		if errors.Is(err, ErrDuplicate) {
			// A concurrent call won the race
			return false
		}
		run.fail(ctx, models.StepAwardAchievement, enrollment.ID, payload, err)
		return false
	}

	s.logger.Info("Course completion achievement awarded",
		"user_id", userID,
		"course_id", enrollment.CourseID,
		"points", achievement.Points)

	notification := &models.Notification{
		UserID:  userID,
		Type:    models.NotificationAchievement,
		Title:   "Course Completed!",
		Message: fmt.Sprintf("You have completed the course %q", title),
		Data:    map[string]interface{}{"courseId": enrollment.CourseID},
	}
	if err := s.docs.Notifications().AppendNotification(storeCtx, notification); err != nil {
		run.fail(ctx, models.StepAppendNotification, enrollment.ID, notification, err)
	}

	publish(ctx, s.publisher, s.logger, events.NewEvent(events.EventCourseCompleted, events.CourseCompletedData{
		UserID:      userID,
		CourseID:    enrollment.CourseID,
		CourseTitle: title,
		Points:      achievement.Points,
	}))

	return true
}

func (s *progressService) appendActivity(ctx context.Context, activity *models.UserActivity) error {
	storeCtx, cancel := s.config.storeCtx(ctx)
	defer cancel()
	return s.docs.Activity().AppendActivity(storeCtx, activity)
}

func (s *progressService) publishLessonCompleted(ctx context.Context, userID, lessonID, enrollmentID string, progress *float64) {
	publish(ctx, s.publisher, s.logger, events.NewEvent(events.EventLessonCompleted, events.LessonCompletedData{
		UserID:       userID,
		LessonID:     lessonID,
		EnrollmentID: enrollmentID,
		Progress:     progress,
	}))
}

func (s *progressService) validateLessonRef(lessonID, enrollmentID string) error {
	if err := s.validator.ValidateID("lesson_id", lessonID); err != nil {
		return err
	}
	return s.validator.ValidateID("enrollment_id", enrollmentID)
}

func enrollmentLockKey(userID, enrollmentID string) string {
	return fmt.Sprintf("enrollment:%s:%s", userID, enrollmentID)
}

// computeProgress is 100*completed/total clamped to [0, 100]
func computeProgress(completed, total int64) float64 {
	if total <= 0 {
		return 0
	}
	progress := float64(completed) * 100 / float64(total)
	if progress > 100 {
		progress = 100
	}
	return progress
}
