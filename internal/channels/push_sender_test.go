package channels

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fidelya/notification-service/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushSender_Send(t *testing.T) {
	var got pushRelayRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	sender := NewPushSender(server.URL)
	require.True(t, sender.IsAvailable())
	assert.Equal(t, models.ChannelPush, sender.Channel())

	result := sender.Send(context.Background(), Message{
		NotificationID: "notif-1",
		RecipientID:    "user-1",
		Token:          "tok-1",
		Title:          "Class starts soon",
		Body:           "Yoga begins in 30 minutes",
		Type:           models.TypeEvent,
		ActionURL:      "https://app.fidelya.com/classes/7",
	})

	assert.True(t, result.Success)
	assert.Equal(t, "tok-1", got.Token)
	assert.Equal(t, "Class starts soon", got.Title)
	assert.Equal(t, "notif-1", got.Data["notificationId"])
	assert.Equal(t, "event", got.Data["type"])
	assert.Equal(t, "user-1", got.Data["userId"])
	assert.Equal(t, "https://app.fidelya.com/classes/7", got.Data["actionUrl"])
}

func TestPushSender_RelayError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	sender := NewPushSender(server.URL)
	result := sender.Send(context.Background(), Message{Token: "tok-1"})

	assert.False(t, result.Success)
	assert.Equal(t, "relay error: 502", result.Error)
}

func TestPushSender_UnavailableWithoutRelay(t *testing.T) {
	sender := NewPushSender("")
	assert.False(t, sender.IsAvailable())
}
