package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fidelya/notification-service/internal/models"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// SettingsRepository manages per-user notification preference records.
type SettingsRepository struct {
	collection *mongo.Collection
}

// NewSettingsRepository creates a new instance of SettingsRepository.
func NewSettingsRepository(db *mongo.Database) *SettingsRepository {
	return &SettingsRepository{
		collection: db.Collection("notification_settings"),
	}
}

// GetOrCreateSettings returns the settings record for a user, creating the
// default record on first access. The create is idempotent from the caller's
// point of view: a concurrent race may insert two default documents, which
// is tolerated (last write visible), but both callers get identical default
// values back. Dispatch never blocks on missing settings.
func (r *SettingsRepository) GetOrCreateSettings(ctx context.Context, userID primitive.ObjectID) (*models.NotificationSettings, error) {
	var settings models.NotificationSettings
	err := r.collection.FindOne(ctx, bson.M{"user_id": userID}).Decode(&settings)
	if err == nil {
		return &settings, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, wrapLookupErr("find notification settings", err)
	}

	defaults := models.DefaultSettings(userID)
	result, insertErr := r.collection.InsertOne(ctx, defaults)
	if insertErr != nil {
		return nil, fmt.Errorf("create default settings: %v: %w", insertErr, ErrStoreUnavailable)
	}
	if id, ok := result.InsertedID.(primitive.ObjectID); ok {
		defaults.ID = id
	}

	logrus.WithField("userID", userID.Hex()).Info("Created default notification settings")
	return defaults, nil
}

// UpdateSettings replaces the mutable preference fields of a user's record.
func (r *SettingsRepository) UpdateSettings(ctx context.Context, userID primitive.ObjectID, settings *models.NotificationSettings) error {
	settings.UserID = userID
	settings.UpdatedAt = time.Now()

	update := bson.M{"$set": bson.M{
		"email_enabled": settings.EmailEnabled,
		"push_enabled":  settings.PushEnabled,
		"sms_enabled":   settings.SMSEnabled,
		"categories":    settings.Categories,
		"priorities":    settings.Priorities,
		"quiet_hours":   settings.QuietHours,
		"frequency":     settings.Frequency,
		"updated_at":    settings.UpdatedAt,
	}}

	opts := options.Update().SetUpsert(true)
	_, err := r.collection.UpdateOne(ctx, bson.M{"user_id": userID}, update, opts)
	if err != nil {
		logrus.WithError(err).Error("Failed to update notification settings")
		return fmt.Errorf("failed to update settings: %v", err)
	}
	return nil
}
