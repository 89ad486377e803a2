// internal/model/delivery_record.go
package model

import "time"

// Provider-side delivery statuses as last reported. Terminal once the owning
// ScheduledMessage has reached a terminal status.
const (
	DeliveryStatusQueued      = "queued"
	DeliveryStatusSent        = "sent"
	DeliveryStatusDelivered   = "delivered"
	DeliveryStatusRead        = "read"
	DeliveryStatusFailed      = "failed"
	DeliveryStatusUndelivered = "undelivered"
	DeliveryStatusUnknown     = "unknown"
)

// DeliveryRecord tracks the provider-side outcome of one dispatched
// ScheduledMessage.
type DeliveryRecord struct {
	ID                 int        `db:"id" json:"id"`
	ScheduledMessageID int        `db:"scheduled_message_id" json:"scheduled_message_id"`
	ProviderMessageID  string     `db:"provider_message_id" json:"provider_message_id"`
	Status             string     `db:"status" json:"status"`
	CheckAttempts      int        `db:"check_attempts" json:"check_attempts"`
	LastCheckedAt      *time.Time `db:"last_checked_at" json:"last_checked_at,omitempty"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}
