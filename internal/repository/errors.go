package repository

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
)

// ErrNotFound is returned when a point lookup matches no document.
var ErrNotFound = errors.New("record not found")

// ErrStoreUnavailable is returned when the document store cannot be reached.
var ErrStoreUnavailable = errors.New("store unavailable")

// wrapLookupErr maps driver errors onto the two sentinel conditions the
// dispatch path distinguishes.
func wrapLookupErr(op string, err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("%s: %v: %w", op, err, ErrStoreUnavailable)
}
