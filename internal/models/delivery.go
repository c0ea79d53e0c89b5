package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Channel is one delivery mechanism for a notification.
type Channel string

const (
	ChannelApp     Channel = "app"
	ChannelEmail   Channel = "email"
	ChannelPush    Channel = "push"
	ChannelBrowser Channel = "browser"
)

// DeliveryStatus is the lifecycle state of a delivery record. A record is
// created pending and moves to exactly one terminal state.
type DeliveryStatus string

const (
	DeliveryPending DeliveryStatus = "pending"
	DeliverySent    DeliveryStatus = "sent"
	DeliveryFailed  DeliveryStatus = "failed"
)

// DeliveryRecord is the audit row for one channel attempt for one recipient
// of one notification. Records are never deleted or reused.
type DeliveryRecord struct {
	ID             primitive.ObjectID     `bson:"_id,omitempty" json:"id"`
	NotificationID string                 `bson:"notification_id" json:"notification_id"`
	RecipientID    primitive.ObjectID     `bson:"recipient_id" json:"recipient_id"`
	Channel        Channel                `bson:"channel" json:"channel"`
	Status         DeliveryStatus         `bson:"status" json:"status"`
	RetryCount     int                    `bson:"retry_count" json:"retry_count"` // schema extension point, never incremented
	SentAt         *time.Time             `bson:"sent_at,omitempty" json:"sent_at,omitempty"`
	FailureReason  string                 `bson:"failure_reason,omitempty" json:"failure_reason,omitempty"`
	Metadata       map[string]interface{} `bson:"metadata,omitempty" json:"metadata,omitempty"`
	CreatedAt      time.Time              `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time              `bson:"updated_at" json:"updated_at"`
}
