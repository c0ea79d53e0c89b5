package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/fidelya/notification-service/internal/channels"
	"github.com/fidelya/notification-service/internal/config"
	"github.com/fidelya/notification-service/internal/database"
	"github.com/fidelya/notification-service/internal/handlers"
	"github.com/fidelya/notification-service/internal/repository"
	cronjobs "github.com/fidelya/notification-service/internal/scheduler"
	"github.com/fidelya/notification-service/internal/services"
	"github.com/fidelya/notification-service/pkg/logger"
	"github.com/fidelya/notification-service/pkg/middleware"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

func main() {
	// Load configuration from .env file
	cfg := config.LoadConfig()

	logger.InitLogger()
	logger.Log.Info("Logger initialized")

	// Connect to MongoDB
	db, err := database.ConnectDB(cfg)
	if err != nil {
		log.Fatalf("Database connection error: %v", err)
	}

	// --- Repositories ---
	userRepo := repository.NewUserRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	deliveryRepo := repository.NewDeliveryRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	// --- Channel senders ---
	emailSender := channels.NewEmailSender(channels.EmailConfig{
		ServiceID:  cfg.EmailJSServiceID,
		TemplateID: cfg.EmailJSTemplateID,
		PublicKey:  cfg.EmailJSPublicKey,
		BaseURL:    cfg.EmailJSBaseURL,
		FromName:   cfg.EmailFromName,
		ReplyTo:    cfg.EmailReplyTo,
	})
	pushSender := channels.NewPushSender(cfg.PushRelayURL)
	browserSender := channels.NewBrowserSender()

	// --- Services ---
	userService := services.NewUserService(userRepo)
	contactService := services.NewContactService(userRepo)
	settingsService := services.NewSettingsService(settingsRepo)
	notificationService := services.NewNotificationService(notificationRepo)
	dispatchService := services.NewDispatchService(
		settingsService,
		contactService,
		deliveryRepo,
		notificationRepo,
		emailSender,
		pushSender,
		browserSender,
	)
	dispatchService.SetBatchPacing(cfg.BatchSize, cfg.BatchPause)

	// --- Handlers ---
	userHandler := handlers.NewUserHandler(userService, cfg)
	notificationHandler := handlers.NewNotificationHandler(notificationService)
	settingsHandler := handlers.NewSettingsHandler(settingsService)
	dispatchHandler := handlers.NewDispatchHandler(dispatchService)
	sessionHandler := handlers.NewSessionHandler(browserSender, cfg.JWTSecret)

	// Initialize Gorilla Mux router
	router := mux.NewRouter()

	// Public user routes
	router.HandleFunc("/users/register", userHandler.RegisterUserHandler).Methods("POST")
	router.HandleFunc("/users/login", userHandler.LoginUserHandler).Methods("POST")

	// Browser-channel session socket (token passed as query parameter)
	router.HandleFunc("/ws", sessionHandler.SessionWebSocketHandler)

	// Protected user routes
	protectedUserRoutes := router.PathPrefix("/users").Subrouter()
	protectedUserRoutes.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	protectedUserRoutes.HandleFunc("/push-token", userHandler.RegisterPushTokenHandler).Methods("POST")
	protectedUserRoutes.HandleFunc("/push-token", userHandler.RemovePushTokenHandler).Methods("DELETE")

	// Notification routes
	protectedRoutes := router.PathPrefix("/notifications").Subrouter()
	protectedRoutes.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	protectedRoutes.HandleFunc("", notificationHandler.GetUserNotificationsHandler).Methods("GET")
	protectedRoutes.HandleFunc("/unread-count", notificationHandler.UnreadCountHandler).Methods("GET")
	protectedRoutes.HandleFunc("/read-all", notificationHandler.MarkAllAsReadHandler).Methods("POST")
	protectedRoutes.HandleFunc("/settings", settingsHandler.GetSettingsHandler).Methods("GET")
	protectedRoutes.HandleFunc("/settings", settingsHandler.UpdateSettingsHandler).Methods("PUT")
	protectedRoutes.HandleFunc("/availability", dispatchHandler.AvailabilityHandler).Methods("GET")
	protectedRoutes.HandleFunc("/dispatch", dispatchHandler.DispatchToUserHandler).Methods("POST")
	protectedRoutes.Handle("/broadcast", middleware.RequireRole("admin")(http.HandlerFunc(dispatchHandler.BroadcastHandler))).Methods("POST")
	protectedRoutes.HandleFunc("/{id}/deliveries", dispatchHandler.DeliveryStatsHandler).Methods("GET")
	protectedRoutes.HandleFunc("/{id}/read", notificationHandler.MarkAsReadHandler).Methods("POST")
	protectedRoutes.HandleFunc("/{id}", notificationHandler.DeleteNotificationHandler).Methods("DELETE")

	// Apply middleware for logging
	router.Use(middleware.LoggingMiddleware)

	// Periodic cleanup of expired in-app notifications
	cronjobs.StartNotificationCronJobs(notificationService)

	// Start the HTTP server
	port := cfg.Port
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000"}, // adjust to frontend origin
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	handler := c.Handler(router)

	fmt.Printf("Server running on port %s\n", port)
	log.Fatal(http.ListenAndServe(":"+port, handler))
}
