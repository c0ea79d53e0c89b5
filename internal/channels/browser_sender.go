package channels

import (
	"context"
	"sync"
	"time"

	"github.com/fidelya/notification-service/internal/models"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const browserAutoDismiss = 8 * time.Second

// session wraps a dashboard socket with its write lock. gorilla/websocket
// supports at most one concurrent writer per connection, so every write to
// the socket must hold mu.
type session struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// BrowserSender is the same-session fallback channel. Dashboard sessions
// keep a websocket open; a browser notification is pushed over that socket
// and rendered by the connected page as a native OS notification. A user
// with no live session cannot be reached on this channel.
type BrowserSender struct {
	mu       sync.RWMutex
	sessions map[string][]*session
}

// NewBrowserSender builds the browser channel hub.
func NewBrowserSender() *BrowserSender {
	return &BrowserSender{sessions: make(map[string][]*session)}
}

func (s *BrowserSender) Channel() models.Channel { return models.ChannelBrowser }

// IsAvailable reports whether any dashboard session is currently connected.
func (s *BrowserSender) IsAvailable() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions) > 0
}

// Register attaches a session socket for a user.
func (s *BrowserSender) Register(userID string, conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[userID] = append(s.sessions[userID], &session{conn: conn})
	logrus.WithField("userID", userID).Info("Browser session connected")
}

// Unregister detaches a session socket.
func (s *BrowserSender) Unregister(userID string, conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sessions := s.sessions[userID]
	for i, sess := range sessions {
		if sess.conn == conn {
			s.sessions[userID] = append(sessions[:i], sessions[i+1:]...)
			break
		}
	}
	if len(s.sessions[userID]) == 0 {
		delete(s.sessions, userID)
	}
}

type browserPayload struct {
	Kind               string `json:"kind"`
	NotificationID     string `json:"notification_id"`
	Title              string `json:"title"`
	Body               string `json:"body"`
	Type               string `json:"type"`
	Priority           string `json:"priority"`
	ActionURL          string `json:"action_url,omitempty"`
	ActionLabel        string `json:"action_label,omitempty"`
	Tag                string `json:"tag"`
	RequireInteraction bool   `json:"require_interaction"`
	AutoDismissMs      int64  `json:"auto_dismiss_ms"`
}

// Send pushes the notification to every live session of the recipient.
// Urgent notifications require explicit dismissal; everything else carries
// an auto-dismiss hint. Succeeds if at least one session accepted the write.
func (s *BrowserSender) Send(ctx context.Context, msg Message) Result {
	payload := browserPayload{
		Kind:               "notification",
		NotificationID:     msg.NotificationID,
		Title:              msg.Title,
		Body:               msg.Body,
		Type:               string(msg.Type),
		Priority:           string(msg.Priority),
		ActionURL:          msg.ActionURL,
		ActionLabel:        msg.ActionLabel,
		Tag:                msg.TrackingID,
		RequireInteraction: msg.Priority == models.PriorityUrgent,
	}
	if !payload.RequireInteraction {
		payload.AutoDismissMs = browserAutoDismiss.Milliseconds()
	}

	s.mu.RLock()
	sessions := append([]*session(nil), s.sessions[msg.RecipientID]...)
	s.mu.RUnlock()

	if len(sessions) == 0 {
		return Result{Success: false, Error: "no active session"}
	}

	deadline := time.Now().Add(5 * time.Second)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	delivered := 0
	for _, sess := range sessions {
		sess.mu.Lock()
		sess.conn.SetWriteDeadline(deadline)
		err := sess.conn.WriteJSON(payload)
		sess.mu.Unlock()
		if err != nil {
			logrus.WithError(err).Warn("Browser session write failed")
			continue
		}
		delivered++
	}

	if delivered == 0 {
		return Result{Success: false, Error: "all session writes failed"}
	}
	return Result{Success: true}
}
