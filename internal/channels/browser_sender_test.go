package channels

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/fidelya/notification-service/internal/models"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// dialSession connects a client socket to the hub for the given user.
func dialSession(t *testing.T, hub *BrowserSender, userID string) *websocket.Conn {
	t.Helper()

	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		hub.Register(userID, conn)
	}))
	t.Cleanup(server.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestBrowserSender_Send(t *testing.T) {
	hub := NewBrowserSender()
	assert.Equal(t, models.ChannelBrowser, hub.Channel())
	assert.False(t, hub.IsAvailable())

	client := dialSession(t, hub, "user-1")
	require.True(t, hub.IsAvailable())

	result := hub.Send(context.Background(), Message{
		NotificationID: "notif-1",
		RecipientID:    "user-1",
		TrackingID:     "notif-1_user-1_abc",
		Title:          "Membership expiring",
		Body:           "Renew before Friday",
		Type:           models.TypeMembership,
		Priority:       models.PriorityMedium,
	})
	assert.True(t, result.Success)

	var payload browserPayload
	require.NoError(t, client.ReadJSON(&payload))
	assert.Equal(t, "notification", payload.Kind)
	assert.Equal(t, "notif-1", payload.NotificationID)
	assert.Equal(t, "notif-1_user-1_abc", payload.Tag)
	assert.False(t, payload.RequireInteraction)
	assert.Equal(t, int64(8000), payload.AutoDismissMs)
}

func TestBrowserSender_UrgentRequiresInteraction(t *testing.T) {
	hub := NewBrowserSender()
	client := dialSession(t, hub, "user-1")

	result := hub.Send(context.Background(), Message{
		RecipientID: "user-1",
		Title:       "Payment failed",
		Priority:    models.PriorityUrgent,
	})
	assert.True(t, result.Success)

	var payload browserPayload
	require.NoError(t, client.ReadJSON(&payload))
	assert.True(t, payload.RequireInteraction)
	assert.Equal(t, int64(0), payload.AutoDismissMs)
}

func TestBrowserSender_ConcurrentSendsSameRecipient(t *testing.T) {
	hub := NewBrowserSender()
	client := dialSession(t, hub, "user-1")

	// Drain frames so the server-side writes never block on a full buffer.
	go func() {
		for {
			if _, _, err := client.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// Two dispatches can reach the same user at the same time; every write
	// to the shared socket must be serialized.
	var wg sync.WaitGroup
	results := make([]Result, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = hub.Send(context.Background(), Message{
				RecipientID: "user-1",
				Title:       "Membership expiring",
				Body:        "Renew before Friday",
			})
		}(i)
	}
	wg.Wait()

	for i, result := range results {
		assert.True(t, result.Success, "send %d", i)
	}
}

func TestBrowserSender_NoSessionForRecipient(t *testing.T) {
	hub := NewBrowserSender()
	dialSession(t, hub, "user-1")

	result := hub.Send(context.Background(), Message{RecipientID: "user-2", Title: "x"})
	assert.False(t, result.Success)
	assert.Equal(t, "no active session", result.Error)
}

func TestBrowserSender_Unregister(t *testing.T) {
	hub := NewBrowserSender()
	conn := &websocket.Conn{}
	hub.Register("user-1", conn)
	require.True(t, hub.IsAvailable())

	hub.Unregister("user-1", conn)
	assert.False(t, hub.IsAvailable())

	result := hub.Send(context.Background(), Message{RecipientID: "user-1"})
	assert.False(t, result.Success)
}
