package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User represents a dashboard user account.
type User struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name           string             `bson:"name" json:"name"`
	Email          string             `bson:"email" json:"email"`
	HashedPassword string             `bson:"hashed_password" json:"-"`
	Role           string             `bson:"role" json:"role"`
	PushTokens     []string           `bson:"push_tokens,omitempty" json:"push_tokens,omitempty"`
	CreatedAt      time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time          `bson:"updated_at" json:"updated_at"`
}

// ContactInfo is the delivery address view of a user, read fresh on every
// dispatch. The email is only populated if it passed syntactic validation.
type ContactInfo struct {
	Email      string   `json:"email,omitempty"`
	PushTokens []string `json:"push_tokens,omitempty"`
	Name       string   `json:"name"`
}
