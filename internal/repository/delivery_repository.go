package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/fidelya/notification-service/internal/models"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// TerminalUpdate carries the fields applied when a delivery record moves to
// its terminal state.
type TerminalUpdate struct {
	SentAt        *time.Time
	FailureReason string
	MetadataPatch map[string]interface{}
}

// DeliveryRepository is the append-only audit trail of channel attempts.
// One record per (notification, recipient, channel) attempt; records are
// keyed by their own generated id, so concurrent creates for different
// recipients never contend.
type DeliveryRepository struct {
	collection *mongo.Collection
}

// NewDeliveryRepository creates a new instance of DeliveryRepository.
func NewDeliveryRepository(db *mongo.Database) *DeliveryRepository {
	return &DeliveryRepository{
		collection: db.Collection("notification_deliveries"),
	}
}

// CreatePending inserts a delivery record in the pending state. Every channel
// attempt must go through here before the send executes, so that a crash
// mid-send still leaves an auditable trace.
func (r *DeliveryRepository) CreatePending(ctx context.Context, record *models.DeliveryRecord) (primitive.ObjectID, error) {
	record.Status = models.DeliveryPending
	record.RetryCount = 0
	record.CreatedAt = time.Now()
	record.UpdatedAt = record.CreatedAt
	if record.Metadata == nil {
		record.Metadata = map[string]interface{}{}
	}
	record.Metadata["service"] = "notification-service"

	result, err := r.collection.InsertOne(ctx, record)
	if err != nil {
		logrus.WithError(err).Error("Failed to insert delivery record")
		return primitive.NilObjectID, fmt.Errorf("failed to create delivery record: %v", err)
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, fmt.Errorf("failed to cast inserted ID")
	}
	record.ID = insertedID
	return insertedID, nil
}

// MarkTerminal moves a pending record to sent or failed. Called at most once
// per record.
func (r *DeliveryRepository) MarkTerminal(ctx context.Context, id primitive.ObjectID, status models.DeliveryStatus, upd TerminalUpdate) error {
	set := bson.M{
		"status":     status,
		"updated_at": time.Now(),
	}
	if upd.SentAt != nil {
		set["sent_at"] = *upd.SentAt
	}
	if upd.FailureReason != "" {
		set["failure_reason"] = upd.FailureReason
	}
	for k, v := range upd.MetadataPatch {
		set["metadata."+k] = v
	}

	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"deliveryID": id.Hex(),
			"status":     status,
			"error":      err,
		}).Error("Failed to update delivery record")
		return fmt.Errorf("failed to update delivery record: %v", err)
	}
	return nil
}

// GetByNotification returns every delivery record for a notification.
func (r *DeliveryRepository) GetByNotification(ctx context.Context, notificationID string) ([]models.DeliveryRecord, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"notification_id": notificationID})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch delivery records: %v", err)
	}
	defer cursor.Close(ctx)

	var records []models.DeliveryRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode delivery records: %v", err)
	}
	return records, nil
}
