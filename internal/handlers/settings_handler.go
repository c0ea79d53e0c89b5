package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/fidelya/notification-service/internal/models"
	"github.com/fidelya/notification-service/internal/services"
	"github.com/fidelya/notification-service/pkg/logger"
	"github.com/fidelya/notification-service/pkg/middleware"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SettingsHandler serves per-user notification preferences.
type SettingsHandler struct {
	Service *services.SettingsService
}

// NewSettingsHandler creates a new instance of SettingsHandler.
func NewSettingsHandler(service *services.SettingsService) *SettingsHandler {
	return &SettingsHandler{Service: service}
}

// GET /notifications/settings
func (h *SettingsHandler) GetSettingsHandler(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r.Context())
	if claims == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	userID, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		http.Error(w, "Invalid user ID", http.StatusBadRequest)
		return
	}

	settings, err := h.Service.GetOrCreateSettings(r.Context(), userID)
	if err != nil {
		logger.Log.Errorf("Failed to fetch settings: %v", err)
		http.Error(w, "Failed to get settings", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(settings)
}

// PUT /notifications/settings
func (h *SettingsHandler) UpdateSettingsHandler(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r.Context())
	if claims == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	userID, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		http.Error(w, "Invalid user ID", http.StatusBadRequest)
		return
	}

	var settings models.NotificationSettings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if settings.Frequency == "" {
		settings.Frequency = "immediate"
	}

	if err := h.Service.UpdateSettings(r.Context(), userID, &settings); err != nil {
		logger.Log.Errorf("Failed to update settings: %v", err)
		http.Error(w, "Failed to update settings", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Settings updated"})
}
