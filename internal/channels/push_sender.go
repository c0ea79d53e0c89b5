package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/fidelya/notification-service/internal/models"
	"github.com/sirupsen/logrus"
)

// PushSender delivers push notifications by delegating to a server-side
// relay endpoint. Device tokens are acquired out of band and stored on the
// user record; this sender just forwards one token per call.
type PushSender struct {
	relayURL string
	client   *http.Client
}

// NewPushSender builds the push channel sender. An empty relay URL makes the
// channel unavailable.
func NewPushSender(relayURL string) *PushSender {
	if relayURL == "" {
		logrus.Warn("Push relay not configured, channel disabled")
	}
	return &PushSender{
		relayURL: relayURL,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

func (s *PushSender) Channel() models.Channel { return models.ChannelPush }

func (s *PushSender) IsAvailable() bool { return s.relayURL != "" }

type pushRelayRequest struct {
	Token string            `json:"token"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// Send posts one device token to the relay. A non-2xx response is a failure.
func (s *PushSender) Send(ctx context.Context, msg Message) Result {
	data := map[string]string{
		"notificationId": msg.NotificationID,
		"type":           string(msg.Type),
		"actionUrl":      msg.ActionURL,
		"userId":         msg.RecipientID,
	}
	for k, v := range msg.Data {
		data[k] = v
	}

	body, err := json.Marshal(pushRelayRequest{
		Token: msg.Token,
		Title: msg.Title,
		Body:  msg.Body,
		Data:  data,
	})
	if err != nil {
		return Result{Success: false, Error: fmt.Sprintf("encode request: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.relayURL, bytes.NewReader(body))
	if err != nil {
		return Result{Success: false, Error: fmt.Sprintf("build request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		logrus.WithError(err).Error("Push send failed")
		return Result{Success: false, Error: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{Success: false, Error: fmt.Sprintf("relay error: %d", resp.StatusCode)}
	}
	return Result{Success: true}
}
