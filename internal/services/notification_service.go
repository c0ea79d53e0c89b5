package services

import (
	"context"

	"github.com/fidelya/notification-service/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// InAppStore is the persistence contract for in-app notification records.
// Mutations are scoped to the recipient.
type InAppStore interface {
	GetUserNotifications(ctx context.Context, userID primitive.ObjectID) ([]models.InAppNotification, error)
	CountUnread(ctx context.Context, userID primitive.ObjectID) (int64, error)
	MarkAsRead(ctx context.Context, id, recipientID primitive.ObjectID) error
	MarkAllAsRead(ctx context.Context, userID primitive.ObjectID) error
	DeleteNotification(ctx context.Context, id, recipientID primitive.ObjectID) error
	DeleteExpiredNotifications(ctx context.Context) error
}

// NotificationService manages the in-app notification records a user sees
// in the dashboard bell menu.
type NotificationService struct {
	store InAppStore
}

// NewNotificationService creates a new instance of NotificationService.
func NewNotificationService(store InAppStore) *NotificationService {
	return &NotificationService{store: store}
}

// GetUserNotifications returns all unexpired notifications for a user.
func (s *NotificationService) GetUserNotifications(ctx context.Context, userID primitive.ObjectID) ([]models.InAppNotification, error) {
	return s.store.GetUserNotifications(ctx, userID)
}

// CountUnread counts a user's unread notifications.
func (s *NotificationService) CountUnread(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	return s.store.CountUnread(ctx, userID)
}

// MarkNotificationAsRead sets the "read" status of one of the recipient's
// notifications to true.
func (s *NotificationService) MarkNotificationAsRead(ctx context.Context, notifID, recipientID primitive.ObjectID) error {
	return s.store.MarkAsRead(ctx, notifID, recipientID)
}

// MarkAllAsRead marks every notification of a user as read.
func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID primitive.ObjectID) error {
	return s.store.MarkAllAsRead(ctx, userID)
}

// DeleteNotification deletes one of the recipient's notifications.
func (s *NotificationService) DeleteNotification(ctx context.Context, notifID, recipientID primitive.ObjectID) error {
	return s.store.DeleteNotification(ctx, notifID, recipientID)
}

// DeleteExpiredNotifications is called periodically by cron to drop records
// past their TTL.
func (s *NotificationService) DeleteExpiredNotifications(ctx context.Context) error {
	return s.store.DeleteExpiredNotifications(ctx)
}
