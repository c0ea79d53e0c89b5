package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/fidelya/notification-service/internal/models"
	"github.com/fidelya/notification-service/internal/services"
	"github.com/fidelya/notification-service/pkg/logger"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DispatchHandler exposes the delivery engine to the dashboards.
type DispatchHandler struct {
	Service *services.DispatchService
}

// NewDispatchHandler creates a new instance of DispatchHandler.
func NewDispatchHandler(service *services.DispatchService) *DispatchHandler {
	return &DispatchHandler{Service: service}
}

type dispatchRequest struct {
	NotificationID string              `json:"notification_id"`
	UserID         string              `json:"user_id"`
	Notification   models.Notification `json:"notification"`
}

type broadcastRequest struct {
	NotificationID string              `json:"notification_id"`
	UserIDs        []string            `json:"user_ids"`
	Notification   models.Notification `json:"notification"`
}

func normalizeNotification(n *models.Notification) {
	if n.Type == "" {
		n.Type = models.TypeGeneral
	}
	if n.Priority == "" {
		n.Priority = models.PriorityMedium
	}
}

// POST /notifications/dispatch
func (h *DispatchHandler) DispatchToUserHandler(w http.ResponseWriter, r *http.Request) {
	var req dispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Notification.Title == "" || req.Notification.Message == "" {
		http.Error(w, "Missing notification title or message", http.StatusBadRequest)
		return
	}

	userID, err := primitive.ObjectIDFromHex(req.UserID)
	if err != nil {
		http.Error(w, "Invalid user ID", http.StatusBadRequest)
		return
	}

	if req.NotificationID == "" {
		req.NotificationID = uuid.NewString()
	}
	normalizeNotification(&req.Notification)

	result := h.Service.DispatchToUser(r.Context(), req.NotificationID, userID, &req.Notification)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"notification_id": req.NotificationID,
		"result":          result,
	})
}

// POST /notifications/broadcast
func (h *DispatchHandler) BroadcastHandler(w http.ResponseWriter, r *http.Request) {
	var req broadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Notification.Title == "" || req.Notification.Message == "" {
		http.Error(w, "Missing notification title or message", http.StatusBadRequest)
		return
	}
	if len(req.UserIDs) == 0 {
		http.Error(w, "No recipients provided", http.StatusBadRequest)
		return
	}

	userIDs := make([]primitive.ObjectID, 0, len(req.UserIDs))
	for _, raw := range req.UserIDs {
		id, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			http.Error(w, "Invalid user ID: "+raw, http.StatusBadRequest)
			return
		}
		userIDs = append(userIDs, id)
	}

	if req.NotificationID == "" {
		req.NotificationID = uuid.NewString()
	}
	normalizeNotification(&req.Notification)

	summary := h.Service.DispatchToMany(r.Context(), req.NotificationID, userIDs, &req.Notification)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"notification_id": req.NotificationID,
		"summary":         summary,
	})
}

// GET /notifications/{id}/deliveries
func (h *DispatchHandler) DeliveryStatsHandler(w http.ResponseWriter, r *http.Request) {
	notificationID := mux.Vars(r)["id"]
	if notificationID == "" {
		http.Error(w, "Missing notification ID", http.StatusBadRequest)
		return
	}

	stats, err := h.Service.GetDeliveryStats(r.Context(), notificationID)
	if err != nil {
		logger.Log.Errorf("Failed to compute delivery stats: %v", err)
		http.Error(w, "Failed to get delivery stats", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

// GET /notifications/availability
func (h *DispatchHandler) AvailabilityHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.Service.CheckServiceAvailability())
}
