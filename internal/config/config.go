package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds all runtime configuration for the notification service.
type Config struct {
	Port      string
	MongoURI  string
	MongoDB   string
	JWTSecret string

	// EmailJS transport credentials. The email channel reports itself as
	// unavailable when any of the three ids is missing.
	EmailJSServiceID  string
	EmailJSTemplateID string
	EmailJSPublicKey  string
	EmailJSBaseURL    string
	EmailFromName     string
	EmailReplyTo      string

	// Push relay endpoint, e.g. https://functions.fidelya.app/notifications/send-push
	PushRelayURL string

	// Fan-out pacing.
	BatchSize  int
	BatchPause time.Duration
}

// LoadConfig reads configuration from a .env file (if present) and the
// process environment.
func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		logrus.Warn("No .env file found, relying on environment variables")
	}

	return &Config{
		Port:              getEnv("PORT", "8080"),
		MongoURI:          getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:           getEnv("MONGO_DB", "fidelya"),
		JWTSecret:         getEnv("JWT_SECRET", ""),
		EmailJSServiceID:  getEnv("EMAILJS_SERVICE_ID", ""),
		EmailJSTemplateID: getEnv("EMAILJS_TEMPLATE_ID", ""),
		EmailJSPublicKey:  getEnv("EMAILJS_PUBLIC_KEY", ""),
		EmailJSBaseURL:    getEnv("EMAILJS_BASE_URL", "https://api.emailjs.com"),
		EmailFromName:     getEnv("EMAIL_FROM_NAME", "Fidelya"),
		EmailReplyTo:      getEnv("EMAIL_REPLY_TO", "noreply@fidelya.com"),
		PushRelayURL:      getEnv("PUSH_RELAY_URL", ""),
		BatchSize:         getEnvInt("DISPATCH_BATCH_SIZE", 5),
		BatchPause:        time.Duration(getEnvInt("DISPATCH_BATCH_PAUSE_MS", 500)) * time.Millisecond,
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logrus.WithField("key", key).Warnf("Invalid integer %q, using default %d", v, fallback)
		return fallback
	}
	return n
}
