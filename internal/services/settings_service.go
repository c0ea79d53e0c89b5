package services

import (
	"context"
	"fmt"

	"github.com/fidelya/notification-service/internal/models"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SettingsStore is the persistence contract for preference records.
type SettingsStore interface {
	GetOrCreateSettings(ctx context.Context, userID primitive.ObjectID) (*models.NotificationSettings, error)
	UpdateSettings(ctx context.Context, userID primitive.ObjectID, settings *models.NotificationSettings) error
}

// SettingsService exposes read and update access to per-user notification
// preferences. The dispatch path only ever reads.
type SettingsService struct {
	store SettingsStore
}

// NewSettingsService creates a new instance of SettingsService.
func NewSettingsService(store SettingsStore) *SettingsService {
	return &SettingsService{store: store}
}

// GetOrCreateSettings returns the user's preferences, creating the default
// record on first access.
func (s *SettingsService) GetOrCreateSettings(ctx context.Context, userID primitive.ObjectID) (*models.NotificationSettings, error) {
	return s.store.GetOrCreateSettings(ctx, userID)
}

// UpdateSettings applies a user preference update.
func (s *SettingsService) UpdateSettings(ctx context.Context, userID primitive.ObjectID, settings *models.NotificationSettings) error {
	if settings.Frequency != "immediate" && settings.Frequency != "batched" {
		return fmt.Errorf("invalid frequency %q", settings.Frequency)
	}
	if err := s.store.UpdateSettings(ctx, userID, settings); err != nil {
		return err
	}
	logrus.WithField("userID", userID.Hex()).Info("Notification settings updated")
	return nil
}
