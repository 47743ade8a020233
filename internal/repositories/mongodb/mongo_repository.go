package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/SAP-F-2025/learner-service/internal/models"
	"github.com/SAP-F-2025/learner-service/internal/repositories"
)

// MongoRepository implements repositories.DocumentRepository
type MongoRepository struct {
	client *mongo.Client
	db     *mongo.Database

	profiles      repositories.ProfileRepository
	progress      repositories.LessonProgressRepository
	activity      repositories.ActivityRepository
	notifications repositories.NotificationRepository
}

func NewMongoRepository(client *mongo.Client, database string) repositories.DocumentRepository {
	db := client.Database(database)
	return &MongoRepository{
		client:        client,
		db:            db,
		profiles:      NewProfileMongo(db),
		progress:      NewProgressMongo(db),
		activity:      NewActivityMongo(db),
		notifications: NewNotificationMongo(db),
	}
}

func (r *MongoRepository) Profiles() repositories.ProfileRepository {
	return r.profiles
}

func (r *MongoRepository) Progress() repositories.LessonProgressRepository {
	return r.progress
}

func (r *MongoRepository) Activity() repositories.ActivityRepository {
	return r.activity
}

func (r *MongoRepository) Notifications() repositories.NotificationRepository {
	return r.notifications
}

// indexSpecs lists the indexes per collection. The unique ones back the
// upsert keys and the one-award-per-course rule.
func indexSpecs() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		CollectionProgress: {
			{
				Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "lessonId", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("user_lesson_unique"),
			},
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "enrollmentId", Value: 1}, {Key: "isCompleted", Value: 1}}},
		},
		CollectionProfiles: {
			{Keys: bson.D{{Key: "userId", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		CollectionSettings: {
			{Keys: bson.D{{Key: "userId", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		CollectionActivities: {
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "timestamp", Value: -1}}},
		},
		CollectionAuditLogs: {
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "timestamp", Value: -1}}},
		},
		CollectionNotifications: {
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "isRead", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
		CollectionAchievements: {
			{
				Keys: bson.D{{Key: "userId", Value: 1}, {Key: "type", Value: 1}, {Key: "courseId", Value: 1}},
				Options: options.Index().
					SetUnique(true).
					SetName("course_completion_unique").
					SetPartialFilterExpression(bson.M{"type": models.AchievementCourseCompletion}),
			},
		},
	}
}

func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	for collection, specs := range indexSpecs() {
		if _, err := r.db.Collection(collection).Indexes().CreateMany(ctx, specs); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", collection, err)
		}
	}
	return nil
}

func (r *MongoRepository) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("mongo ping failed: %w", err)
	}
	return nil
}

func (r *MongoRepository) Close(ctx context.Context) error {
	if err := r.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect mongo: %w", err)
	}
	return nil
}
