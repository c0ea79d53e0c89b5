package services

import (
	"context"
	"regexp"

	"github.com/fidelya/notification-service/internal/models"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// UserGetter is the user lookup the contact resolver needs.
type UserGetter interface {
	GetUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
}

// ContactService resolves a user's delivery addresses. Contact info is read
// fresh on every dispatch; tokens can change between notifications.
type ContactService struct {
	users UserGetter
}

// NewContactService creates a new instance of ContactService.
func NewContactService(users UserGetter) *ContactService {
	return &ContactService{users: users}
}

// ResolveContact performs a single point lookup and validates the stored
// email syntactically. A malformed address is treated as absent so it never
// reaches a channel sender. Returns repository.ErrNotFound when no user
// record exists.
func (s *ContactService) ResolveContact(ctx context.Context, userID primitive.ObjectID) (*models.ContactInfo, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	email := user.Email
	if email != "" && !emailRegex.MatchString(email) {
		logrus.WithField("userID", userID.Hex()).Warn("Stored email failed validation, treating as absent")
		email = ""
	}

	name := user.Name
	if name == "" {
		name = "User"
	}

	return &models.ContactInfo{
		Email:      email,
		PushTokens: user.PushTokens,
		Name:       name,
	}, nil
}
