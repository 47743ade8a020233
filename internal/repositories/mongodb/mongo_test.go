package mongodb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/SAP-F-2025/learner-service/internal/models"
	"github.com/SAP-F-2025/learner-service/internal/repositories"
)

func intPtr(i int) *int { return &i }

func TestHandleMongoError(t *testing.T) {
	assert.NoError(t, handleMongoError(nil, "noop"))
	assert.ErrorIs(t, handleMongoError(mongo.ErrNoDocuments, "get"), repositories.ErrNotFound)
	assert.ErrorIs(t, handleMongoError(context.DeadlineExceeded, "get"), repositories.ErrStoreUnavailable)
	assert.ErrorIs(t, handleMongoError(mongo.ErrClientDisconnected, "get"), repositories.ErrStoreUnavailable)

	dup := mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000, Message: "E11000 duplicate key"}}}
	assert.ErrorIs(t, handleMongoError(dup, "insert"), repositories.ErrDuplicate)

	other := handleMongoError(errors.New("cannot encode"), "insert")
	assert.False(t, errors.Is(other, repositories.ErrStoreUnavailable))
}

func TestProgressMongo(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	now := time.Now().UTC().Truncate(time.Millisecond)

	mt.Run("mark completed returns the stored record", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: bson.D{
			{Key: "_id", Value: "p1"},
			{Key: "userId", Value: "u1"},
			{Key: "lessonId", Value: "l1"},
			{Key: "enrollmentId", Value: "e1"},
			{Key: "timeSpent", Value: int32(300)},
			{Key: "attempts", Value: int32(2)},
			{Key: "isCompleted", Value: true},
			{Key: "completedAt", Value: now},
		}}))

		repo := NewProgressMongo(mt.DB)
		progress, err := repo.MarkCompleted(context.Background(), repositories.LessonCompletion{
			UserID:       "u1",
			LessonID:     "l1",
			EnrollmentID: "e1",
			TimeSpent:    intPtr(300),
			CompletedAt:  now,
		})
		require.NoError(mt, err)
		assert.True(mt, progress.IsCompleted)
		assert.Equal(mt, 2, progress.Attempts)
		assert.Equal(mt, 300, progress.TimeSpent)
		require.NotNil(mt, progress.CompletedAt)
		assert.True(mt, now.Equal(*progress.CompletedAt))
	})

	mt.Run("count completed", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "learner.lesson_progress", mtest.FirstBatch,
			bson.D{{Key: "n", Value: int32(3)}}))

		repo := NewProgressMongo(mt.DB)
		count, err := repo.CountCompleted(context.Background(), "u1", "e1")
		require.NoError(mt, err)
		assert.Equal(mt, int64(3), count)
	})

	mt.Run("list by enrollment", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "learner.lesson_progress", mtest.FirstBatch,
			bson.D{{Key: "_id", Value: "p1"}, {Key: "lessonId", Value: "l1"}, {Key: "isCompleted", Value: true}},
			bson.D{{Key: "_id", Value: "p2"}, {Key: "lessonId", Value: "l2"}, {Key: "isCompleted", Value: false}},
		))

		repo := NewProgressMongo(mt.DB)
		rows, err := repo.ListByEnrollment(context.Background(), "u1", "e1")
		require.NoError(mt, err)
		require.Len(mt, rows, 2)
		assert.Equal(mt, "l2", rows[1].LessonID)
		assert.False(mt, rows[1].IsCompleted)
	})

	mt.Run("server error surfaces", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    2,
			Message: "bad value",
		}))

		repo := NewProgressMongo(mt.DB)
		_, err := repo.RecordAttempt(context.Background(), "u1", "l1", "e1", 60, now)
		assert.Error(mt, err)
	})
}

func TestProfileMongo(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("missing profile is not found", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "learner.user_profiles", mtest.FirstBatch))

		repo := NewProfileMongo(mt.DB)
		_, err := repo.GetProfile(context.Background(), "u1")
		assert.ErrorIs(mt, err, repositories.ErrNotFound)
	})

	mt.Run("ensure profile tolerates a concurrent insert", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "E11000 duplicate key error",
		}))

		repo := NewProfileMongo(mt.DB)
		err := repo.EnsureProfile(context.Background(), &models.UserProfile{UserID: "u1"})
		assert.NoError(mt, err)
	})

	mt.Run("settings are decoded", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "learner.user_settings", mtest.FirstBatch,
			bson.D{
				{Key: "_id", Value: "s1"},
				{Key: "userId", Value: "u1"},
				{Key: "settings", Value: bson.D{{Key: "theme", Value: "light"}, {Key: "weeklyReport", Value: false}}},
			}))

		repo := NewProfileMongo(mt.DB)
		setting, err := repo.GetSettings(context.Background(), "u1")
		require.NoError(mt, err)
		assert.Equal(mt, "light", setting.Settings["theme"])
		assert.Equal(mt, false, setting.Settings["weeklyReport"])
	})
}

func TestNotificationMongo(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("duplicate achievement", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "E11000 duplicate key error collection: achievements",
		}))

		repo := NewNotificationMongo(mt.DB)
		err := repo.InsertAchievement(context.Background(), &models.Achievement{
			UserID:   "u1",
			Type:     models.AchievementCourseCompletion,
			CourseID: "c1",
			Points:   100,
		})
		assert.ErrorIs(mt, err, repositories.ErrDuplicate)
	})

	mt.Run("has achievement", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "learner.achievements", mtest.FirstBatch,
			bson.D{{Key: "n", Value: int32(1)}}))

		repo := NewNotificationMongo(mt.DB)
		ok, err := repo.HasAchievement(context.Background(), "u1", models.AchievementCourseCompletion, "c1")
		require.NoError(mt, err)
		assert.True(mt, ok)
	})

	mt.Run("append assigns id and timestamp", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		repo := NewNotificationMongo(mt.DB)
		n := &models.Notification{UserID: "u1", Type: models.NotificationWelcome}
		require.NoError(mt, repo.AppendNotification(context.Background(), n))
		assert.NotEmpty(mt, n.ID)
		assert.False(mt, n.CreatedAt.IsZero())
	})
}

func TestActivityMongo_RecentActivity(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("decodes in server order", func(mt *mtest.T) {
		later := time.Now().UTC().Truncate(time.Millisecond)
		earlier := later.Add(-time.Hour)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "learner.user_activities", mtest.FirstBatch,
			bson.D{{Key: "_id", Value: "a2"}, {Key: "action", Value: "lesson_completed"}, {Key: "timestamp", Value: later}},
			bson.D{{Key: "_id", Value: "a1"}, {Key: "action", Value: "user_created"}, {Key: "timestamp", Value: earlier}},
		))

		repo := NewActivityMongo(mt.DB)
		activities, err := repo.RecentActivity(context.Background(), "u1", 10)
		require.NoError(mt, err)
		require.Len(mt, activities, 2)
		assert.Equal(mt, models.ActivityLessonCompleted, activities[0].Action)
		assert.Equal(mt, models.ActivityUserCreated, activities[1].Action)
	})
}
