// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file records processed webhook deliveries so that
// redelivered events (same provider delivery id) can be acknowledged without
// being reapplied.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-user-sync-backend/internal/domain"
)

// DeliverySeen reports whether the delivery identified by eventID has already
// been processed. On DB error, it returns the error.
func DeliverySeen(ctx context.Context, db *gorm.DB, eventID string) (bool, error) {
	var d domain.WebhookDelivery
	err := db.WithContext(ctx).
		Where("event_id = ?", eventID).
		First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// RecordDelivery marks eventID as processed. A concurrent duplicate insert is
// swallowed: the record existing is the outcome we wanted.
func RecordDelivery(ctx context.Context, db *gorm.DB, eventID, eventType string) error {
	d := &domain.WebhookDelivery{
		EventID:     eventID,
		EventType:   eventType,
		ProcessedAt: time.Now().UTC(),
	}
	err := db.WithContext(ctx).Create(d).Error
	if IsDuplicate(err) {
		return nil
	}
	return err
}
