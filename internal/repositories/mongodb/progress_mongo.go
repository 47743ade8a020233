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

type ProgressMongo struct {
	coll *mongo.Collection
}

func NewProgressMongo(db *mongo.Database) repositories.LessonProgressRepository {
	return &ProgressMongo{coll: db.Collection(CollectionProgress)}
}

func (p *ProgressMongo) MarkCompleted(ctx context.Context, c repositories.LessonCompletion) (*models.LessonProgress, error) {
	set := bson.M{
		"enrollmentId": c.EnrollmentID,
		"isCompleted":  true,
		"completedAt":  c.CompletedAt,
		"updatedAt":    c.CompletedAt,
	}
	if c.TimeSpent != nil {
		set["timeSpent"] = *c.TimeSpent
	}
	if c.QuizResults != nil {
		set["quizResults"] = c.QuizResults
	}
	if c.Notes != nil {
		set["notes"] = *c.Notes
	}

	update := bson.M{
		"$set":         set,
		"$inc":         bson.M{"attempts": 1},
		"$setOnInsert": bson.M{"_id": newID(), "createdAt": c.CompletedAt},
	}

	return p.upsert(ctx, c.UserID, c.LessonID, update, "complete lesson progress")
}

func (p *ProgressMongo) RecordAttempt(ctx context.Context, userID, lessonID, enrollmentID string, timeSpent int, at time.Time) (*models.LessonProgress, error) {
	update := bson.M{
		"$set": bson.M{
			"enrollmentId": enrollmentID,
			"updatedAt":    at,
		},
		"$inc": bson.M{"attempts": 1, "timeSpent": timeSpent},
		// isCompleted is only initialised so a completed lesson stays completed
		"$setOnInsert": bson.M{"_id": newID(), "createdAt": at, "isCompleted": false},
	}

	return p.upsert(ctx, userID, lessonID, update, "record lesson attempt")
}

func (p *ProgressMongo) upsert(ctx context.Context, userID, lessonID string, update bson.M, operation string) (*models.LessonProgress, error) {
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var progress models.LessonProgress
	err := p.coll.FindOneAndUpdate(ctx, bson.M{"userId": userID, "lessonId": lessonID}, update, opts).Decode(&progress)
	if err != nil {
		return nil, handleMongoError(err, operation)
	}
	return &progress, nil
}

func (p *ProgressMongo) CountCompleted(ctx context.Context, userID, enrollmentID string) (int64, error) {
	count, err := p.coll.CountDocuments(ctx, bson.M{
		"userId":       userID,
		"enrollmentId": enrollmentID,
		"isCompleted":  true,
	})
	if err != nil {
		return 0, handleMongoError(err, "count completed lessons")
	}
	return count, nil
}

func (p *ProgressMongo) ListByEnrollment(ctx context.Context, userID, enrollmentID string) ([]*models.LessonProgress, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cursor, err := p.coll.Find(ctx, bson.M{"userId": userID, "enrollmentId": enrollmentID}, opts)
	if err != nil {
		return nil, handleMongoError(err, "list lesson progress")
	}

	progress := []*models.LessonProgress{}
	if err := cursor.All(ctx, &progress); err != nil {
		return nil, handleMongoError(err, "decode lesson progress")
	}
	return progress, nil
}
