package channels

import (
	"context"

	"github.com/fidelya/notification-service/internal/models"
)

// Result is the outcome of one channel attempt.
type Result struct {
	Success   bool   `json:"success"`
	MessageID string `json:"message_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Message is the channel-agnostic envelope handed to a sender. Each sender
// reads only the destination fields it understands.
type Message struct {
	NotificationID string
	RecipientID    string
	TrackingID     string

	// Destinations.
	Email string // email channel
	Token string // push channel, one device token per Send call
	// RecipientID doubles as the browser channel destination.

	Title         string
	Body          string
	Type          models.NotificationType
	Priority      models.Priority
	ActionURL     string
	ActionLabel   string
	RecipientName string
	Data          map[string]string
}

// Sender attempts delivery of one message to one destination via one
// transport. Implementations are stateless with respect to recipients and
// know nothing about settings or other channels.
type Sender interface {
	Channel() models.Channel
	// IsAvailable reports whether the transport is configured and usable.
	// Unavailable channels are skipped by the dispatcher, not failed.
	IsAvailable() bool
	Send(ctx context.Context, msg Message) Result
}
