package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fidelya/notification-service/internal/channels"
	"github.com/fidelya/notification-service/internal/models"
	"github.com/fidelya/notification-service/internal/repository"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const notAttempted = "Not attempted"

// SettingsResolver loads or lazily creates a user's preference record.
type SettingsResolver interface {
	GetOrCreateSettings(ctx context.Context, userID primitive.ObjectID) (*models.NotificationSettings, error)
}

// ContactResolver loads a user's delivery addresses.
type ContactResolver interface {
	ResolveContact(ctx context.Context, userID primitive.ObjectID) (*models.ContactInfo, error)
}

// DeliveryTracker persists the per-attempt audit trail.
type DeliveryTracker interface {
	CreatePending(ctx context.Context, record *models.DeliveryRecord) (primitive.ObjectID, error)
	MarkTerminal(ctx context.Context, id primitive.ObjectID, status models.DeliveryStatus, upd repository.TerminalUpdate) error
	GetByNotification(ctx context.Context, notificationID string) ([]models.DeliveryRecord, error)
}

// InAppWriter creates the in-app notification document.
type InAppWriter interface {
	CreateInApp(ctx context.Context, notif *models.InAppNotification) error
}

// InAppResult reports the unconditional baseline channel.
type InAppResult struct {
	Success bool `json:"success"`
}

// DispatchResult is the per-recipient outcome bag, one Result per channel.
type DispatchResult struct {
	Email   channels.Result `json:"email"`
	Push    channels.Result `json:"push"`
	Browser channels.Result `json:"browser"`
	InApp   InAppResult     `json:"inApp"`
}

// FanoutSummary aggregates per-channel successes over a batch of recipients.
type FanoutSummary struct {
	TotalUsers  int `json:"totalUsers"`
	EmailSent   int `json:"emailSent"`
	PushSent    int `json:"pushSent"`
	BrowserSent int `json:"browserSent"`
	InAppSent   int `json:"inAppSent"`
}

// ChannelStats is the per-channel slice of delivery statistics.
type ChannelStats struct {
	Sent   int     `json:"sent"`
	Failed int     `json:"failed"`
	Rate   float64 `json:"rate"`
}

// DeliveryStats summarizes the persisted delivery records of a notification.
type DeliveryStats struct {
	Total     int                             `json:"total"`
	Sent      int                             `json:"sent"`
	Failed    int                             `json:"failed"`
	ByChannel map[models.Channel]ChannelStats `json:"byChannel"`
}

// Availability reports which channel transports are currently usable.
type Availability struct {
	Email   bool `json:"email"`
	Push    bool `json:"push"`
	Browser bool `json:"browser"`
}

// DispatchService orchestrates multi-channel notification delivery: it
// resolves per-user preferences and contact info, attempts channels in
// priority order with the browser fallback cascade, audits every attempt,
// and fans a notification out across many recipients in paced batches.
type DispatchService struct {
	settings SettingsResolver
	contacts ContactResolver
	tracker  DeliveryTracker
	inApp    InAppWriter

	email   channels.Sender
	push    channels.Sender
	browser channels.Sender

	batchSize  int
	batchPause time.Duration
	sleep      func(time.Duration)
}

// NewDispatchService wires the dispatcher. Senders may be nil when a channel
// is not deployed at all; a nil sender is treated as unavailable.
func NewDispatchService(
	settings SettingsResolver,
	contacts ContactResolver,
	tracker DeliveryTracker,
	inApp InAppWriter,
	email, push, browser channels.Sender,
) *DispatchService {
	return &DispatchService{
		settings:   settings,
		contacts:   contacts,
		tracker:    tracker,
		inApp:      inApp,
		email:      email,
		push:       push,
		browser:    browser,
		batchSize:  5,
		batchPause: 500 * time.Millisecond,
		sleep:      time.Sleep,
	}
}

// SetBatchPacing overrides the fan-out group size and inter-group pause.
func (s *DispatchService) SetBatchPacing(size int, pause time.Duration) {
	if size > 0 {
		s.batchSize = size
	}
	if pause >= 0 {
		s.batchPause = pause
	}
}

func senderAvailable(sender channels.Sender) bool {
	return sender != nil && sender.IsAvailable()
}

// DispatchToUser delivers one notification to one recipient across all
// eligible channels. No channel failure aborts the dispatch; each outcome is
// isolated in its own Result and delivery record. The only early exit is a
// missing user record.
func (s *DispatchService) DispatchToUser(ctx context.Context, notificationID string, userID primitive.ObjectID, notif *models.Notification) DispatchResult {
	results := DispatchResult{
		Email:   channels.Result{Success: false, Error: notAttempted},
		Push:    channels.Result{Success: false, Error: notAttempted},
		Browser: channels.Result{Success: false, Error: notAttempted},
		InApp:   InAppResult{Success: false},
	}

	log := logrus.WithFields(logrus.Fields{
		"notificationID": notificationID,
		"userID":         userID.Hex(),
	})
	log.Info("Starting notification dispatch")

	contact, err := s.contacts.ResolveContact(ctx, userID)
	if err != nil {
		// A recipient without a user record is a hard stop: nothing is
		// attempted and no delivery record is written.
		if errors.Is(err, repository.ErrNotFound) {
			log.Warn("Recipient has no user record, skipping all channels")
		} else {
			log.WithError(err).Error("Contact resolution failed, skipping all channels")
		}
		return results
	}

	settings, err := s.settings.GetOrCreateSettings(ctx, userID)
	settingsKnown := err == nil
	if !settingsKnown {
		// Settings unknown: addressable channels are skipped, the in-app
		// record still proceeds.
		log.WithError(err).Warn("Settings unavailable, degrading to in-app only")
	}

	trackingID := notificationID + "_" + userID.Hex() + "_" + uuid.NewString()

	// 1. In-app record, the unconditional baseline channel.
	results.InApp.Success = s.attemptInApp(ctx, notificationID, userID, notif, trackingID)

	// 2. Email.
	emailOn := settingsKnown && settings.EmailEnabled && settings.Allows(notif.Type, notif.Priority)
	if emailOn && contact.Email != "" && senderAvailable(s.email) {
		results.Email = s.attemptEmail(ctx, notificationID, userID, notif, contact, trackingID)
	}

	// 3. Push, fanned over every registered device token.
	pushOn := settingsKnown && settings.PushEnabled && settings.Allows(notif.Type, notif.Priority)
	if pushOn && len(contact.PushTokens) > 0 && senderAvailable(s.push) {
		results.Push = s.attemptPush(ctx, notificationID, userID, notif, contact, trackingID)
	}

	// 4. Browser fallback: only when push did not succeed, so the same
	// device is never alerted twice. Skipped entirely when settings are
	// unknown.
	if settingsKnown && !results.Push.Success && senderAvailable(s.browser) {
		results.Browser = s.attemptBrowser(ctx, notificationID, userID, notif, trackingID)
	}

	log.WithFields(logrus.Fields{
		"email":   results.Email.Success,
		"push":    results.Push.Success,
		"browser": results.Browser.Success,
		"inApp":   results.InApp.Success,
	}).Info("Notification dispatch completed")
	return results
}

func (s *DispatchService) attemptInApp(ctx context.Context, notificationID string, userID primitive.ObjectID, notif *models.Notification, trackingID string) bool {
	recordID, err := s.tracker.CreatePending(ctx, &models.DeliveryRecord{
		NotificationID: notificationID,
		RecipientID:    userID,
		Channel:        models.ChannelApp,
		Metadata:       map[string]interface{}{"trackingId": trackingID},
	})
	if err != nil {
		logrus.WithError(err).Error("Failed to create in-app delivery record")
		return false
	}

	err = s.inApp.CreateInApp(ctx, &models.InAppNotification{
		NotificationID: notificationID,
		RecipientID:    userID,
		Title:          notif.Title,
		Message:        notif.Message,
		Type:           notif.Type,
		Priority:       notif.Priority,
		ActionURL:      notif.ActionURL,
		ActionLabel:    notif.ActionLabel,
		Metadata:       map[string]interface{}{"trackingId": trackingID},
	})
	if err != nil {
		logrus.WithError(err).Error("Failed to create in-app notification")
		s.markTerminal(ctx, recordID, models.DeliveryFailed, repository.TerminalUpdate{FailureReason: err.Error()})
		return false
	}

	now := time.Now()
	s.markTerminal(ctx, recordID, models.DeliverySent, repository.TerminalUpdate{SentAt: &now})
	return true
}

func (s *DispatchService) attemptEmail(ctx context.Context, notificationID string, userID primitive.ObjectID, notif *models.Notification, contact *models.ContactInfo, trackingID string) channels.Result {
	recordID, err := s.tracker.CreatePending(ctx, &models.DeliveryRecord{
		NotificationID: notificationID,
		RecipientID:    userID,
		Channel:        models.ChannelEmail,
		Metadata:       map[string]interface{}{"email": contact.Email, "trackingId": trackingID},
	})
	if err != nil {
		logrus.WithError(err).Error("Failed to create email delivery record")
		return channels.Result{Success: false, Error: err.Error()}
	}

	result := s.email.Send(ctx, channels.Message{
		NotificationID: notificationID,
		RecipientID:    userID.Hex(),
		TrackingID:     trackingID,
		Email:          contact.Email,
		Title:          notif.Title,
		Body:           notif.Message,
		Type:           notif.Type,
		Priority:       notif.Priority,
		ActionURL:      notif.ActionURL,
		ActionLabel:    notif.ActionLabel,
		RecipientName:  contact.Name,
	})

	if result.Success {
		now := time.Now()
		s.markTerminal(ctx, recordID, models.DeliverySent, repository.TerminalUpdate{
			SentAt:        &now,
			MetadataPatch: map[string]interface{}{"messageId": result.MessageID},
		})
	} else {
		s.markTerminal(ctx, recordID, models.DeliveryFailed, repository.TerminalUpdate{FailureReason: result.Error})
	}
	return result
}

// attemptPush sends to every token independently. One delivery record covers
// the whole token batch; the channel succeeds if at least one token does.
func (s *DispatchService) attemptPush(ctx context.Context, notificationID string, userID primitive.ObjectID, notif *models.Notification, contact *models.ContactInfo, trackingID string) channels.Result {
	recordID, err := s.tracker.CreatePending(ctx, &models.DeliveryRecord{
		NotificationID: notificationID,
		RecipientID:    userID,
		Channel:        models.ChannelPush,
		Metadata:       map[string]interface{}{"pushTokens": contact.PushTokens, "trackingId": trackingID},
	})
	if err != nil {
		logrus.WithError(err).Error("Failed to create push delivery record")
		return channels.Result{Success: false, Error: err.Error()}
	}

	successCount := 0
	for _, token := range contact.PushTokens {
		res := s.push.Send(ctx, channels.Message{
			NotificationID: notificationID,
			RecipientID:    userID.Hex(),
			TrackingID:     trackingID,
			Token:          token,
			Title:          notif.Title,
			Body:           notif.Message,
			Type:           notif.Type,
			Priority:       notif.Priority,
			ActionURL:      notif.ActionURL,
			ActionLabel:    notif.ActionLabel,
		})
		if res.Success {
			successCount++
		}
	}
	failureCount := len(contact.PushTokens) - successCount

	result := channels.Result{Success: successCount > 0}
	if successCount == 0 {
		result.Error = "All push notifications failed"
	}

	patch := map[string]interface{}{
		"successCount": successCount,
		"failureCount": failureCount,
	}
	if result.Success {
		now := time.Now()
		s.markTerminal(ctx, recordID, models.DeliverySent, repository.TerminalUpdate{SentAt: &now, MetadataPatch: patch})
	} else {
		s.markTerminal(ctx, recordID, models.DeliveryFailed, repository.TerminalUpdate{
			FailureReason: result.Error,
			MetadataPatch: patch,
		})
	}
	return result
}

func (s *DispatchService) attemptBrowser(ctx context.Context, notificationID string, userID primitive.ObjectID, notif *models.Notification, trackingID string) channels.Result {
	recordID, err := s.tracker.CreatePending(ctx, &models.DeliveryRecord{
		NotificationID: notificationID,
		RecipientID:    userID,
		Channel:        models.ChannelBrowser,
		Metadata:       map[string]interface{}{"trackingId": trackingID},
	})
	if err != nil {
		logrus.WithError(err).Error("Failed to create browser delivery record")
		return channels.Result{Success: false, Error: err.Error()}
	}

	result := s.browser.Send(ctx, channels.Message{
		NotificationID: notificationID,
		RecipientID:    userID.Hex(),
		TrackingID:     trackingID,
		Title:          notif.Title,
		Body:           notif.Message,
		Type:           notif.Type,
		Priority:       notif.Priority,
		ActionURL:      notif.ActionURL,
		ActionLabel:    notif.ActionLabel,
	})

	if result.Success {
		now := time.Now()
		s.markTerminal(ctx, recordID, models.DeliverySent, repository.TerminalUpdate{SentAt: &now})
	} else {
		s.markTerminal(ctx, recordID, models.DeliveryFailed, repository.TerminalUpdate{FailureReason: result.Error})
	}
	return result
}

func (s *DispatchService) markTerminal(ctx context.Context, id primitive.ObjectID, status models.DeliveryStatus, upd repository.TerminalUpdate) {
	if err := s.tracker.MarkTerminal(ctx, id, status, upd); err != nil {
		logrus.WithError(err).Error("Failed to finalize delivery record")
	}
}

// DispatchToMany fans a notification out to many recipients in fixed-size
// groups. Dispatches within a group run concurrently; group N+1 never starts
// before every dispatch in group N has settled, and a fixed pause separates
// groups to pace outbound transport calls. Partial failure never raises;
// the summary only counts successes.
func (s *DispatchService) DispatchToMany(ctx context.Context, notificationID string, userIDs []primitive.ObjectID, notif *models.Notification) FanoutSummary {
	summary := FanoutSummary{TotalUsers: len(userIDs)}

	logrus.WithFields(logrus.Fields{
		"notificationID": notificationID,
		"recipients":     len(userIDs),
	}).Info("Starting batch notification fan-out")

	for i := 0; i < len(userIDs); i += s.batchSize {
		end := i + s.batchSize
		if end > len(userIDs) {
			end = len(userIDs)
		}
		group := userIDs[i:end]

		var wg sync.WaitGroup
		var mu sync.Mutex
		for _, userID := range group {
			wg.Add(1)
			go func(id primitive.ObjectID) {
				defer wg.Done()
				result := s.DispatchToUser(ctx, notificationID, id, notif)

				mu.Lock()
				defer mu.Unlock()
				if result.Email.Success {
					summary.EmailSent++
				}
				if result.Push.Success {
					summary.PushSent++
				}
				if result.Browser.Success {
					summary.BrowserSent++
				}
				if result.InApp.Success {
					summary.InAppSent++
				}
			}(userID)
		}
		wg.Wait()

		if end < len(userIDs) {
			s.sleep(s.batchPause)
		}
	}

	logrus.WithFields(logrus.Fields{
		"notificationID": notificationID,
		"inAppSent":      summary.InAppSent,
		"emailSent":      summary.EmailSent,
		"pushSent":       summary.PushSent,
		"browserSent":    summary.BrowserSent,
	}).Info("Batch notification fan-out completed")
	return summary
}

// GetDeliveryStats computes per-channel delivery statistics for one
// notification from its persisted delivery records.
func (s *DispatchService) GetDeliveryStats(ctx context.Context, notificationID string) (*DeliveryStats, error) {
	records, err := s.tracker.GetByNotification(ctx, notificationID)
	if err != nil {
		return nil, err
	}

	stats := &DeliveryStats{
		Total:     len(records),
		ByChannel: make(map[models.Channel]ChannelStats),
	}
	for _, rec := range records {
		switch rec.Status {
		case models.DeliverySent:
			stats.Sent++
		case models.DeliveryFailed:
			stats.Failed++
		}
	}

	for _, channel := range []models.Channel{models.ChannelEmail, models.ChannelPush, models.ChannelBrowser, models.ChannelApp} {
		var sent, failed, total int
		for _, rec := range records {
			if rec.Channel != channel {
				continue
			}
			total++
			switch rec.Status {
			case models.DeliverySent:
				sent++
			case models.DeliveryFailed:
				failed++
			}
		}
		cs := ChannelStats{Sent: sent, Failed: failed}
		if total > 0 {
			cs.Rate = float64(sent) / float64(total) * 100
		}
		stats.ByChannel[channel] = cs
	}
	return stats, nil
}

// CheckServiceAvailability probes each channel transport. No side effects.
func (s *DispatchService) CheckServiceAvailability() Availability {
	return Availability{
		Email:   senderAvailable(s.email),
		Push:    senderAvailable(s.push),
		Browser: senderAvailable(s.browser),
	}
}
