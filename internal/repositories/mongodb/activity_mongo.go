package mongodb

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/SAP-F-2025/learner-service/internal/models"
	"github.com/SAP-F-2025/learner-service/internal/repositories"
)

type ActivityMongo struct {
	activities *mongo.Collection
	audit      *mongo.Collection
}

func NewActivityMongo(db *mongo.Database) repositories.ActivityRepository {
	return &ActivityMongo{
		activities: db.Collection(CollectionActivities),
		audit:      db.Collection(CollectionAuditLogs),
	}
}

func (a *ActivityMongo) AppendActivity(ctx context.Context, activity *models.UserActivity) error {
	if activity.ID == "" {
		activity.ID = newID()
	}
	if activity.Timestamp.IsZero() {
		activity.Timestamp = time.Now()
	}

	if _, err := a.activities.InsertOne(ctx, activity); err != nil {
		return handleMongoError(err, "append activity")
	}
	return nil
}

func (a *ActivityMongo) RecentActivity(ctx context.Context, userID string, limit int64) ([]*models.UserActivity, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(limit)

	cursor, err := a.activities.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, handleMongoError(err, "list recent activity")
	}

	activities := []*models.UserActivity{}
	if err := cursor.All(ctx, &activities); err != nil {
		return nil, handleMongoError(err, "decode recent activity")
	}
	return activities, nil
}

func (a *ActivityMongo) AppendAudit(ctx context.Context, entry *models.AuditLog) error {
	if entry.ID == "" {
		entry.ID = newID()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	if _, err := a.audit.InsertOne(ctx, entry); err != nil {
		return handleMongoError(err, "append audit log")
	}
	return nil
}
