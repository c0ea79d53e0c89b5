package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NotificationType is the category tag of a notification.
type NotificationType string

const (
	TypeSystem     NotificationType = "system"
	TypeMembership NotificationType = "membership"
	TypePayment    NotificationType = "payment"
	TypeEvent      NotificationType = "event"
	TypeGeneral    NotificationType = "general"
)

// Priority levels, from low to urgent.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Notification is the logical message handed to the dispatcher. It is
// constructed once per dispatch and never mutated afterwards.
type Notification struct {
	ID          string           `json:"id"`
	Title       string           `json:"title"`
	Message     string           `json:"message"`
	Type        NotificationType `json:"type"`
	Priority    Priority         `json:"priority"`
	ActionURL   string           `json:"action_url,omitempty"`
	ActionLabel string           `json:"action_label,omitempty"`
}

// InAppNotification is the persisted in-app record, one per recipient.
// Expired records are removed by the cleanup cron.
type InAppNotification struct {
	ID             primitive.ObjectID     `bson:"_id,omitempty" json:"id"`
	NotificationID string                 `bson:"notification_id" json:"notification_id"`
	RecipientID    primitive.ObjectID     `bson:"recipient_id" json:"recipient_id"`
	Title          string                 `bson:"title" json:"title"`
	Message        string                 `bson:"message" json:"message"`
	Type           NotificationType       `bson:"type" json:"type"`
	Priority       Priority               `bson:"priority" json:"priority"`
	ActionURL      string                 `bson:"action_url,omitempty" json:"action_url,omitempty"`
	ActionLabel    string                 `bson:"action_label,omitempty" json:"action_label,omitempty"`
	Read           bool                   `bson:"read" json:"read"`
	Metadata       map[string]interface{} `bson:"metadata,omitempty" json:"metadata,omitempty"`
	CreatedAt      time.Time              `bson:"created_at" json:"created_at"`
	ExpiresAt      time.Time              `bson:"expires_at" json:"expires_at"`
}
