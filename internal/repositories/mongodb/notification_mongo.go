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

type NotificationMongo struct {
	notifications *mongo.Collection
	achievements  *mongo.Collection
}

func NewNotificationMongo(db *mongo.Database) repositories.NotificationRepository {
	return &NotificationMongo{
		notifications: db.Collection(CollectionNotifications),
		achievements:  db.Collection(CollectionAchievements),
	}
}

func (n *NotificationMongo) AppendNotification(ctx context.Context, notification *models.Notification) error {
	if notification.ID == "" {
		notification.ID = newID()
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now()
	}

	if _, err := n.notifications.InsertOne(ctx, notification); err != nil {
		return handleMongoError(err, "append notification")
	}
	return nil
}

func (n *NotificationMongo) UnreadNotifications(ctx context.Context, userID string) ([]*models.Notification, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})

	cursor, err := n.notifications.Find(ctx, bson.M{"userId": userID, "isRead": false}, opts)
	if err != nil {
		return nil, handleMongoError(err, "list unread notifications")
	}

	notifications := []*models.Notification{}
	if err := cursor.All(ctx, &notifications); err != nil {
		return nil, handleMongoError(err, "decode notifications")
	}
	return notifications, nil
}

func (n *NotificationMongo) InsertAchievement(ctx context.Context, achievement *models.Achievement) error {
	if achievement.ID == "" {
		achievement.ID = newID()
	}
	if achievement.EarnedAt.IsZero() {
		achievement.EarnedAt = time.Now()
	}

	if _, err := n.achievements.InsertOne(ctx, achievement); err != nil {
		return handleMongoError(err, "insert achievement")
	}
	return nil
}

func (n *NotificationMongo) HasAchievement(ctx context.Context, userID string, achievementType models.AchievementType, courseID string) (bool, error) {
	count, err := n.achievements.CountDocuments(ctx,
		bson.M{"userId": userID, "type": achievementType, "courseId": courseID},
		options.Count().SetLimit(1),
	)
	if err != nil {
		return false, handleMongoError(err, "check achievement")
	}
	return count > 0, nil
}
