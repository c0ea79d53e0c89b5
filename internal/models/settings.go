package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// QuietHours is a user-configured window during which non-urgent
// notifications should be suppressed. Only the schema is carried here;
// dispatch-time enforcement is not implemented.
type QuietHours struct {
	Enabled bool   `bson:"enabled" json:"enabled"`
	Start   string `bson:"start" json:"start"` // "22:00"
	End     string `bson:"end" json:"end"`     // "08:00"
}

// NotificationSettings holds the per-user delivery preferences. Created
// lazily with permissive defaults on first access.
type NotificationSettings struct {
	ID           primitive.ObjectID        `bson:"_id,omitempty" json:"id"`
	UserID       primitive.ObjectID        `bson:"user_id" json:"user_id"`
	EmailEnabled bool                      `bson:"email_enabled" json:"email_enabled"`
	PushEnabled  bool                      `bson:"push_enabled" json:"push_enabled"`
	SMSEnabled   bool                      `bson:"sms_enabled" json:"sms_enabled"`
	Categories   map[NotificationType]bool `bson:"categories" json:"categories"`
	Priorities   map[Priority]bool         `bson:"priorities" json:"priorities"`
	QuietHours   QuietHours                `bson:"quiet_hours" json:"quiet_hours"`
	Frequency    string                    `bson:"frequency" json:"frequency"` // "immediate" or "batched"
	CreatedAt    time.Time                 `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time                 `bson:"updated_at" json:"updated_at"`
}

// DefaultSettings returns the record created on first access: every channel
// and filter enabled except SMS, which is not wired to any sender.
func DefaultSettings(userID primitive.ObjectID) *NotificationSettings {
	now := time.Now()
	return &NotificationSettings{
		UserID:       userID,
		EmailEnabled: true,
		PushEnabled:  true,
		SMSEnabled:   false,
		Categories: map[NotificationType]bool{
			TypeSystem:     true,
			TypeMembership: true,
			TypePayment:    true,
			TypeEvent:      true,
			TypeGeneral:    true,
		},
		Priorities: map[Priority]bool{
			PriorityLow:    true,
			PriorityMedium: true,
			PriorityHigh:   true,
			PriorityUrgent: true,
		},
		QuietHours: QuietHours{Enabled: false, Start: "22:00", End: "08:00"},
		Frequency:  "immediate",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Allows reports whether the notification's category and priority are both
// enabled. A nil map means the filter was never configured and everything
// passes. Quiet hours are not evaluated here.
func (s *NotificationSettings) Allows(t NotificationType, p Priority) bool {
	if s.Categories != nil && !s.Categories[t] {
		return false
	}
	if s.Priorities != nil && !s.Priorities[p] {
		return false
	}
	return true
}
