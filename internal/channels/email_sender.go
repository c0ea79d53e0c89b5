package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fidelya/notification-service/internal/models"
	"github.com/sirupsen/logrus"
)

// EmailConfig holds the EmailJS transport credentials.
type EmailConfig struct {
	ServiceID  string
	TemplateID string
	PublicKey  string
	BaseURL    string // defaults to the public EmailJS endpoint
	FromName   string
	ReplyTo    string
}

// EmailSender delivers transactional email through the EmailJS REST API.
// It is constructed once at process start; when credentials are missing it
// reports itself unavailable and Send is never invoked.
type EmailSender struct {
	cfg       EmailConfig
	client    *http.Client
	available bool
}

// NewEmailSender builds the email channel sender.
func NewEmailSender(cfg EmailConfig) *EmailSender {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.emailjs.com"
	}
	if cfg.FromName == "" {
		cfg.FromName = "Fidelya"
	}
	available := cfg.ServiceID != "" && cfg.TemplateID != "" && cfg.PublicKey != ""
	if !available {
		logrus.Warn("Email sender not configured, channel disabled")
	}
	return &EmailSender{
		cfg:       cfg,
		client:    &http.Client{Timeout: 15 * time.Second},
		available: available,
	}
}

func (s *EmailSender) Channel() models.Channel { return models.ChannelEmail }

func (s *EmailSender) IsAvailable() bool { return s.available }

type emailJSRequest struct {
	ServiceID      string            `json:"service_id"`
	TemplateID     string            `json:"template_id"`
	UserID         string            `json:"user_id"`
	TemplateParams map[string]string `json:"template_params"`
}

// Send maps the message into the transport's template fields and posts it.
// Any non-200 response is a failure carrying the status as detail.
func (s *EmailSender) Send(ctx context.Context, msg Message) Result {
	actionLabel := msg.ActionLabel
	if actionLabel == "" {
		actionLabel = "View more"
	}
	toName := msg.RecipientName
	if toName == "" {
		toName = "User"
	}

	payload := emailJSRequest{
		ServiceID:  s.cfg.ServiceID,
		TemplateID: s.cfg.TemplateID,
		UserID:     s.cfg.PublicKey,
		TemplateParams: map[string]string{
			"to_email":     msg.Email,
			"to_name":      toName,
			"subject":      msg.Title,
			"message":      msg.Body,
			"action_url":   msg.ActionURL,
			"action_label": actionLabel,
			"from_name":    s.cfg.FromName,
			"reply_to":     s.cfg.ReplyTo,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Result{Success: false, Error: fmt.Sprintf("encode request: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL+"/api/v1.0/email/send", bytes.NewReader(body))
	if err != nil {
		return Result{Success: false, Error: fmt.Sprintf("build request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		logrus.WithError(err).Error("Email send failed")
		return Result{Success: false, Error: err.Error()}
	}
	defer resp.Body.Close()

	text, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if resp.StatusCode != http.StatusOK {
		logrus.WithFields(logrus.Fields{
			"status": resp.StatusCode,
			"email":  msg.Email,
		}).Warn("Email transport rejected message")
		return Result{Success: false, Error: fmt.Sprintf("emailjs error: %d", resp.StatusCode)}
	}

	logrus.WithField("email", msg.Email).Info("Email sent successfully")
	return Result{Success: true, MessageID: string(text)}
}
