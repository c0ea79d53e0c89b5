package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fidelya/notification-service/internal/channels"
	"github.com/fidelya/notification-service/internal/models"
	"github.com/fidelya/notification-service/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- Fakes ---

type fakeSettings struct {
	settings *models.NotificationSettings
	err      error
}

func (f *fakeSettings) GetOrCreateSettings(ctx context.Context, userID primitive.ObjectID) (*models.NotificationSettings, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.settings != nil {
		return f.settings, nil
	}
	return models.DefaultSettings(userID), nil
}

type fakeContacts struct {
	contact *models.ContactInfo
	err     error
}

func (f *fakeContacts) ResolveContact(ctx context.Context, userID primitive.ObjectID) (*models.ContactInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.contact, nil
}

type trackedRecord struct {
	record models.DeliveryRecord
	update repository.TerminalUpdate
}

type fakeTracker struct {
	mu      sync.Mutex
	records map[primitive.ObjectID]*trackedRecord
	order   []primitive.ObjectID
}

func newFakeTracker() *fakeTracker {
	return &fakeTracker{records: make(map[primitive.ObjectID]*trackedRecord)}
}

func (f *fakeTracker) CreatePending(ctx context.Context, record *models.DeliveryRecord) (primitive.ObjectID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := primitive.NewObjectID()
	rec := *record
	rec.ID = id
	rec.Status = models.DeliveryPending
	f.records[id] = &trackedRecord{record: rec}
	f.order = append(f.order, id)
	return id, nil
}

func (f *fakeTracker) MarkTerminal(ctx context.Context, id primitive.ObjectID, status models.DeliveryStatus, upd repository.TerminalUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	tr := f.records[id]
	tr.record.Status = status
	tr.update = upd
	return nil
}

func (f *fakeTracker) GetByNotification(ctx context.Context, notificationID string) ([]models.DeliveryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.DeliveryRecord
	for _, id := range f.order {
		if f.records[id].record.NotificationID == notificationID {
			out = append(out, f.records[id].record)
		}
	}
	return out, nil
}

func (f *fakeTracker) byChannel(ch models.Channel) []*trackedRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*trackedRecord
	for _, id := range f.order {
		if f.records[id].record.Channel == ch {
			out = append(out, f.records[id])
		}
	}
	return out
}

func (f *fakeTracker) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

func (f *fakeTracker) countTerminal() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, tr := range f.records {
		if tr.record.Status != models.DeliveryPending {
			n++
		}
	}
	return n
}

type fakeInApp struct {
	mu      sync.Mutex
	created []models.InAppNotification
	err     error
}

func (f *fakeInApp) CreateInApp(ctx context.Context, notif *models.InAppNotification) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, *notif)
	return nil
}

type fakeSender struct {
	channel   models.Channel
	available bool
	sendFn    func(msg channels.Message) channels.Result

	mu   sync.Mutex
	sent []channels.Message
}

func (f *fakeSender) Channel() models.Channel { return f.channel }
func (f *fakeSender) IsAvailable() bool       { return f.available }

func (f *fakeSender) Send(ctx context.Context, msg channels.Message) channels.Result {
	f.mu.Lock()
	f.sent = append(f.sent, msg)
	f.mu.Unlock()
	if f.sendFn != nil {
		return f.sendFn(msg)
	}
	return channels.Result{Success: true, MessageID: "msg-1"}
}

func okSender(ch models.Channel) *fakeSender {
	return &fakeSender{channel: ch, available: true}
}

func downSender(ch models.Channel) *fakeSender {
	return &fakeSender{channel: ch, available: false}
}

func testNotification() *models.Notification {
	return &models.Notification{
		Title:    "Membership expiring",
		Message:  "Your membership expires in 3 days",
		Type:     models.TypeMembership,
		Priority: models.PriorityHigh,
	}
}

// --- Single-recipient dispatch ---

func TestDispatchToUser_InAppAndEmail(t *testing.T) {
	tracker := newFakeTracker()
	inApp := &fakeInApp{}
	email := okSender(models.ChannelEmail)
	userID := primitive.NewObjectID()

	svc := NewDispatchService(
		&fakeSettings{},
		&fakeContacts{contact: &models.ContactInfo{Email: "member@example.com", Name: "Dana"}},
		tracker,
		inApp,
		email,
		downSender(models.ChannelPush),
		downSender(models.ChannelBrowser),
	)

	result := svc.DispatchToUser(context.Background(), "notif-1", userID, testNotification())

	assert.True(t, result.InApp.Success)
	assert.True(t, result.Email.Success)
	assert.Equal(t, "msg-1", result.Email.MessageID)
	assert.False(t, result.Push.Success)
	assert.Equal(t, "Not attempted", result.Push.Error)
	assert.False(t, result.Browser.Success)
	assert.Equal(t, "Not attempted", result.Browser.Error)

	// Exactly two records: the in-app baseline and the email attempt.
	require.Equal(t, 2, tracker.count())
	appRecs := tracker.byChannel(models.ChannelApp)
	require.Len(t, appRecs, 1)
	assert.Equal(t, models.DeliverySent, appRecs[0].record.Status)
	require.NotNil(t, appRecs[0].update.SentAt)

	emailRecs := tracker.byChannel(models.ChannelEmail)
	require.Len(t, emailRecs, 1)
	assert.Equal(t, models.DeliverySent, emailRecs[0].record.Status)
	assert.Equal(t, "member@example.com", emailRecs[0].record.Metadata["email"])
	assert.Equal(t, "msg-1", emailRecs[0].update.MetadataPatch["messageId"])

	require.Len(t, inApp.created, 1)
	assert.Equal(t, "Membership expiring", inApp.created[0].Title)

	require.Len(t, email.sent, 1)
	assert.Equal(t, "member@example.com", email.sent[0].Email)
	assert.Equal(t, "Dana", email.sent[0].RecipientName)
	assert.True(t, strings.HasPrefix(email.sent[0].TrackingID, "notif-1_"+userID.Hex()+"_"))
}

func TestDispatchToUser_UnknownRecipient(t *testing.T) {
	tracker := newFakeTracker()
	inApp := &fakeInApp{}

	svc := NewDispatchService(
		&fakeSettings{},
		&fakeContacts{err: repository.ErrNotFound},
		tracker,
		inApp,
		okSender(models.ChannelEmail),
		okSender(models.ChannelPush),
		okSender(models.ChannelBrowser),
	)

	result := svc.DispatchToUser(context.Background(), "notif-1", primitive.NewObjectID(), testNotification())

	assert.False(t, result.InApp.Success)
	assert.Equal(t, "Not attempted", result.Email.Error)
	assert.Equal(t, "Not attempted", result.Push.Error)
	assert.Equal(t, "Not attempted", result.Browser.Error)
	assert.Equal(t, 0, tracker.count())
	assert.Empty(t, inApp.created)
}

func TestDispatchToUser_SettingsUnavailableDegradesToInApp(t *testing.T) {
	tracker := newFakeTracker()
	inApp := &fakeInApp{}
	email := okSender(models.ChannelEmail)
	browser := okSender(models.ChannelBrowser)

	svc := NewDispatchService(
		&fakeSettings{err: repository.ErrStoreUnavailable},
		&fakeContacts{contact: &models.ContactInfo{Email: "member@example.com", PushTokens: []string{"tok-1"}}},
		tracker,
		inApp,
		email,
		okSender(models.ChannelPush),
		browser,
	)

	result := svc.DispatchToUser(context.Background(), "notif-1", primitive.NewObjectID(), testNotification())

	assert.True(t, result.InApp.Success)
	assert.Equal(t, "Not attempted", result.Email.Error)
	assert.Equal(t, "Not attempted", result.Push.Error)
	assert.Equal(t, "Not attempted", result.Browser.Error)

	require.Equal(t, 1, tracker.count())
	require.Len(t, tracker.byChannel(models.ChannelApp), 1)
	assert.Empty(t, email.sent)
	assert.Empty(t, browser.sent)
}

func TestDispatchToUser_PushFansOverTokens(t *testing.T) {
	tracker := newFakeTracker()
	push := &fakeSender{channel: models.ChannelPush, available: true, sendFn: func(msg channels.Message) channels.Result {
		if msg.Token == "tok-bad" {
			return channels.Result{Success: false, Error: "relay error: 500"}
		}
		return channels.Result{Success: true}
	}}
	browser := okSender(models.ChannelBrowser)

	svc := NewDispatchService(
		&fakeSettings{},
		&fakeContacts{contact: &models.ContactInfo{PushTokens: []string{"tok-good", "tok-bad"}}},
		tracker,
		&fakeInApp{},
		downSender(models.ChannelEmail),
		push,
		browser,
	)

	result := svc.DispatchToUser(context.Background(), "notif-1", primitive.NewObjectID(), testNotification())

	// One token out of two succeeded: the channel counts as delivered and
	// the browser fallback stays quiet.
	assert.True(t, result.Push.Success)
	assert.Equal(t, "Not attempted", result.Browser.Error)
	assert.Len(t, push.sent, 2)
	assert.Empty(t, browser.sent)

	pushRecs := tracker.byChannel(models.ChannelPush)
	require.Len(t, pushRecs, 1)
	assert.Equal(t, models.DeliverySent, pushRecs[0].record.Status)
	assert.Equal(t, 1, pushRecs[0].update.MetadataPatch["successCount"])
	assert.Equal(t, 1, pushRecs[0].update.MetadataPatch["failureCount"])
}

func TestDispatchToUser_BrowserFallbackAfterPushFailure(t *testing.T) {
	tracker := newFakeTracker()
	push := &fakeSender{channel: models.ChannelPush, available: true, sendFn: func(msg channels.Message) channels.Result {
		return channels.Result{Success: false, Error: "relay error: 502"}
	}}
	browser := okSender(models.ChannelBrowser)

	svc := NewDispatchService(
		&fakeSettings{},
		&fakeContacts{contact: &models.ContactInfo{PushTokens: []string{"tok-1", "tok-2"}}},
		tracker,
		&fakeInApp{},
		downSender(models.ChannelEmail),
		push,
		browser,
	)

	result := svc.DispatchToUser(context.Background(), "notif-1", primitive.NewObjectID(), testNotification())

	assert.False(t, result.Push.Success)
	assert.Equal(t, "All push notifications failed", result.Push.Error)
	assert.True(t, result.Browser.Success)
	assert.Len(t, browser.sent, 1)

	pushRecs := tracker.byChannel(models.ChannelPush)
	require.Len(t, pushRecs, 1)
	assert.Equal(t, models.DeliveryFailed, pushRecs[0].record.Status)
	assert.Equal(t, "All push notifications failed", pushRecs[0].update.FailureReason)
	assert.Equal(t, 0, pushRecs[0].update.MetadataPatch["successCount"])
	assert.Equal(t, 2, pushRecs[0].update.MetadataPatch["failureCount"])

	browserRecs := tracker.byChannel(models.ChannelBrowser)
	require.Len(t, browserRecs, 1)
	assert.Equal(t, models.DeliverySent, browserRecs[0].record.Status)
}

func TestDispatchToUser_CategoryDisabledSkipsAddressableChannels(t *testing.T) {
	userID := primitive.NewObjectID()
	settings := models.DefaultSettings(userID)
	settings.Categories[models.TypeMembership] = false

	tracker := newFakeTracker()
	email := okSender(models.ChannelEmail)
	push := okSender(models.ChannelPush)

	svc := NewDispatchService(
		&fakeSettings{settings: settings},
		&fakeContacts{contact: &models.ContactInfo{Email: "member@example.com", PushTokens: []string{"tok-1"}}},
		tracker,
		&fakeInApp{},
		email,
		push,
		downSender(models.ChannelBrowser),
	)

	result := svc.DispatchToUser(context.Background(), "notif-1", userID, testNotification())

	// The category filter silences email and push but never the in-app feed.
	assert.True(t, result.InApp.Success)
	assert.Equal(t, "Not attempted", result.Email.Error)
	assert.Equal(t, "Not attempted", result.Push.Error)
	assert.Empty(t, email.sent)
	assert.Empty(t, push.sent)
	assert.Equal(t, 1, tracker.count())
}

func TestDispatchToUser_ChannelToggleOff(t *testing.T) {
	userID := primitive.NewObjectID()
	settings := models.DefaultSettings(userID)
	settings.EmailEnabled = false

	email := okSender(models.ChannelEmail)

	svc := NewDispatchService(
		&fakeSettings{settings: settings},
		&fakeContacts{contact: &models.ContactInfo{Email: "member@example.com"}},
		newFakeTracker(),
		&fakeInApp{},
		email,
		downSender(models.ChannelPush),
		downSender(models.ChannelBrowser),
	)

	result := svc.DispatchToUser(context.Background(), "notif-1", userID, testNotification())

	assert.Equal(t, "Not attempted", result.Email.Error)
	assert.Empty(t, email.sent)
}

func TestDispatchToUser_EmailFailureIsIsolated(t *testing.T) {
	tracker := newFakeTracker()
	email := &fakeSender{channel: models.ChannelEmail, available: true, sendFn: func(msg channels.Message) channels.Result {
		return channels.Result{Success: false, Error: "emailjs error: 422"}
	}}

	svc := NewDispatchService(
		&fakeSettings{},
		&fakeContacts{contact: &models.ContactInfo{Email: "member@example.com"}},
		tracker,
		&fakeInApp{},
		email,
		downSender(models.ChannelPush),
		downSender(models.ChannelBrowser),
	)

	result := svc.DispatchToUser(context.Background(), "notif-1", primitive.NewObjectID(), testNotification())

	assert.True(t, result.InApp.Success)
	assert.False(t, result.Email.Success)
	assert.Equal(t, "emailjs error: 422", result.Email.Error)

	emailRecs := tracker.byChannel(models.ChannelEmail)
	require.Len(t, emailRecs, 1)
	assert.Equal(t, models.DeliveryFailed, emailRecs[0].record.Status)
	assert.Equal(t, "emailjs error: 422", emailRecs[0].update.FailureReason)
}

// --- Batch fan-out ---

func TestDispatchToMany_PacedGroups(t *testing.T) {
	tracker := newFakeTracker()

	svc := NewDispatchService(
		&fakeSettings{},
		&fakeContacts{contact: &models.ContactInfo{}},
		tracker,
		&fakeInApp{},
		downSender(models.ChannelEmail),
		downSender(models.ChannelPush),
		downSender(models.ChannelBrowser),
	)

	var pauses []time.Duration
	var recordsAtPause []int
	var terminalAtPause []int
	svc.sleep = func(d time.Duration) {
		pauses = append(pauses, d)
		recordsAtPause = append(recordsAtPause, tracker.count())
		terminalAtPause = append(terminalAtPause, tracker.countTerminal())
	}

	userIDs := make([]primitive.ObjectID, 12)
	for i := range userIDs {
		userIDs[i] = primitive.NewObjectID()
	}

	summary := svc.DispatchToMany(context.Background(), "notif-1", userIDs, testNotification())

	assert.Equal(t, 12, summary.TotalUsers)
	assert.Equal(t, 12, summary.InAppSent)
	assert.Equal(t, 0, summary.EmailSent)

	// Three groups of 5/5/2 means exactly two inter-group pauses, and every
	// dispatch of a group has settled before its pause runs.
	require.Equal(t, []time.Duration{500 * time.Millisecond, 500 * time.Millisecond}, pauses)
	assert.Equal(t, []int{5, 10}, recordsAtPause)
	assert.Equal(t, []int{5, 10}, terminalAtPause)
	assert.Equal(t, 12, tracker.count())
}

func TestDispatchToMany_NoPauseAfterFinalGroup(t *testing.T) {
	svc := NewDispatchService(
		&fakeSettings{},
		&fakeContacts{contact: &models.ContactInfo{}},
		newFakeTracker(),
		&fakeInApp{},
		downSender(models.ChannelEmail),
		downSender(models.ChannelPush),
		downSender(models.ChannelBrowser),
	)

	slept := 0
	svc.sleep = func(time.Duration) { slept++ }

	userIDs := []primitive.ObjectID{primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID()}
	summary := svc.DispatchToMany(context.Background(), "notif-1", userIDs, testNotification())

	assert.Equal(t, 3, summary.TotalUsers)
	assert.Equal(t, 0, slept)
}

func TestDispatchToMany_PartialFailuresCountedNotRaised(t *testing.T) {
	svc := NewDispatchService(
		&fakeSettings{},
		&fakeContacts{err: repository.ErrNotFound},
		newFakeTracker(),
		&fakeInApp{},
		downSender(models.ChannelEmail),
		downSender(models.ChannelPush),
		downSender(models.ChannelBrowser),
	)
	svc.SetBatchPacing(2, 0)
	svc.sleep = func(time.Duration) {}

	userIDs := []primitive.ObjectID{primitive.NewObjectID(), primitive.NewObjectID()}
	summary := svc.DispatchToMany(context.Background(), "notif-1", userIDs, testNotification())

	assert.Equal(t, 2, summary.TotalUsers)
	assert.Equal(t, 0, summary.InAppSent)
	assert.Equal(t, 0, summary.EmailSent)
	assert.Equal(t, 0, summary.PushSent)
	assert.Equal(t, 0, summary.BrowserSent)
}

func TestSetBatchPacing_IgnoresInvalidSize(t *testing.T) {
	svc := NewDispatchService(nil, nil, nil, nil, nil, nil, nil)
	svc.SetBatchPacing(0, time.Second)
	assert.Equal(t, 5, svc.batchSize)
	assert.Equal(t, time.Second, svc.batchPause)

	svc.SetBatchPacing(10, -1)
	assert.Equal(t, 10, svc.batchSize)
	assert.Equal(t, time.Second, svc.batchPause)
}

// --- Stats and availability ---

func TestGetDeliveryStats(t *testing.T) {
	tracker := newFakeTracker()
	ctx := context.Background()

	seed := func(ch models.Channel, status models.DeliveryStatus) {
		id, err := tracker.CreatePending(ctx, &models.DeliveryRecord{
			NotificationID: "notif-1",
			RecipientID:    primitive.NewObjectID(),
			Channel:        ch,
		})
		require.NoError(t, err)
		require.NoError(t, tracker.MarkTerminal(ctx, id, status, repository.TerminalUpdate{}))
	}
	seed(models.ChannelApp, models.DeliverySent)
	seed(models.ChannelApp, models.DeliverySent)
	seed(models.ChannelEmail, models.DeliverySent)
	seed(models.ChannelEmail, models.DeliveryFailed)
	seed(models.ChannelPush, models.DeliveryFailed)

	svc := NewDispatchService(nil, nil, tracker, nil, nil, nil, nil)
	stats, err := svc.GetDeliveryStats(ctx, "notif-1")
	require.NoError(t, err)

	assert.Equal(t, 5, stats.Total)
	assert.Equal(t, 3, stats.Sent)
	assert.Equal(t, 2, stats.Failed)

	assert.Equal(t, ChannelStats{Sent: 2, Failed: 0, Rate: 100}, stats.ByChannel[models.ChannelApp])
	assert.Equal(t, ChannelStats{Sent: 1, Failed: 1, Rate: 50}, stats.ByChannel[models.ChannelEmail])
	assert.Equal(t, ChannelStats{Sent: 0, Failed: 1, Rate: 0}, stats.ByChannel[models.ChannelPush])
	assert.Equal(t, ChannelStats{}, stats.ByChannel[models.ChannelBrowser])
}

func TestGetDeliveryStats_NoRecords(t *testing.T) {
	svc := NewDispatchService(nil, nil, newFakeTracker(), nil, nil, nil, nil)
	stats, err := svc.GetDeliveryStats(context.Background(), "missing")
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Total)
	assert.Equal(t, ChannelStats{}, stats.ByChannel[models.ChannelEmail])
}

func TestCheckServiceAvailability(t *testing.T) {
	svc := NewDispatchService(nil, nil, nil, nil,
		okSender(models.ChannelEmail),
		downSender(models.ChannelPush),
		nil,
	)
	av := svc.CheckServiceAvailability()
	assert.True(t, av.Email)
	assert.False(t, av.Push)
	assert.False(t, av.Browser)
}
