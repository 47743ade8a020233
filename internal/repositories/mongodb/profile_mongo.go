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

type ProfileMongo struct {
	profiles *mongo.Collection
	settings *mongo.Collection
}

func NewProfileMongo(db *mongo.Database) repositories.ProfileRepository {
	return &ProfileMongo{
		profiles: db.Collection(CollectionProfiles),
		settings: db.Collection(CollectionSettings),
	}
}

func (p *ProfileMongo) GetProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	var profile models.UserProfile
	err := p.profiles.FindOne(ctx, bson.M{"userId": userID}).Decode(&profile)
	if err != nil {
		return nil, handleMongoError(err, "get profile")
	}
	return &profile, nil
}

func (p *ProfileMongo) EnsureProfile(ctx context.Context, profile *models.UserProfile) error {
	now := time.Now()
	if profile.ID == "" {
		profile.ID = newID()
	}
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}
	profile.UpdatedAt = profile.CreatedAt

	onInsert := bson.M{
		"_id":       profile.ID,
		"bio":       profile.Bio,
		"createdAt": profile.CreatedAt,
		"updatedAt": profile.UpdatedAt,
	}
	if profile.City != nil {
		onInsert["city"] = *profile.City
	}
	if profile.Country != nil {
		onInsert["country"] = *profile.Country
	}
	if len(profile.SocialLinks) > 0 {
		onInsert["socialLinks"] = profile.SocialLinks
	}
	if len(profile.Preferences) > 0 {
		onInsert["preferences"] = profile.Preferences
	}

	return ensureOne(ctx, p.profiles, profile.UserID, onInsert, "ensure profile")
}

func (p *ProfileMongo) UpsertProfile(ctx context.Context, userID string, fields repositories.ProfileFields) (*models.UserProfile, error) {
	now := time.Now()

	set := bson.M{"updatedAt": now}
	if fields.Bio != nil {
		set["bio"] = *fields.Bio
	}
	if fields.City != nil {
		set["city"] = *fields.City
	}
	if fields.Country != nil {
		set["country"] = *fields.Country
	}
	if fields.SocialLinks != nil {
		set["socialLinks"] = fields.SocialLinks
	}
	if fields.Preferences != nil {
		set["preferences"] = fields.Preferences
	}

	update := bson.M{
		"$set":         set,
		"$setOnInsert": bson.M{"_id": newID(), "createdAt": now},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var profile models.UserProfile
	err := p.profiles.FindOneAndUpdate(ctx, bson.M{"userId": userID}, update, opts).Decode(&profile)
	if err != nil {
		return nil, handleMongoError(err, "upsert profile")
	}
	return &profile, nil
}

func (p *ProfileMongo) GetSettings(ctx context.Context, userID string) (*models.UserSetting, error) {
	var setting models.UserSetting
	err := p.settings.FindOne(ctx, bson.M{"userId": userID}).Decode(&setting)
	if err != nil {
		return nil, handleMongoError(err, "get settings")
	}
	return &setting, nil
}

func (p *ProfileMongo) EnsureSettings(ctx context.Context, setting *models.UserSetting) error {
	now := time.Now()
	if setting.ID == "" {
		setting.ID = newID()
	}
	if setting.CreatedAt.IsZero() {
		setting.CreatedAt = now
	}
	setting.UpdatedAt = setting.CreatedAt

	onInsert := bson.M{
		"_id":       setting.ID,
		"settings":  setting.Settings,
		"createdAt": setting.CreatedAt,
		"updatedAt": setting.UpdatedAt,
	}

	return ensureOne(ctx, p.settings, setting.UserID, onInsert, "ensure settings")
}

// ensureOne inserts the per-user document only when none exists. A duplicate
// key means a concurrent writer created it first.
func ensureOne(ctx context.Context, coll *mongo.Collection, userID string, onInsert bson.M, operation string) error {
	_, err := coll.UpdateOne(ctx,
		bson.M{"userId": userID},
		bson.M{"$setOnInsert": onInsert},
		options.Update().SetUpsert(true),
	)
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return handleMongoError(err, operation)
	}
	return nil
}
