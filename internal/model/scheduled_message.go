// internal/model/scheduled_message.go
package model

import "time"

// ScheduledMessage statuses. delivered, failed and unknown are terminal;
// cancelled is reachable only from pending.
const (
	ScheduledStatusPending    = "pending"
	ScheduledStatusDispatched = "dispatched"
	ScheduledStatusDelivered  = "delivered"
	ScheduledStatusFailed     = "failed"
	ScheduledStatusUnknown    = "unknown"
	ScheduledStatusCancelled  = "cancelled"
)

// TerminalScheduledStatus reports whether no further transition is allowed.
func TerminalScheduledStatus(status string) bool {
	switch status {
	case ScheduledStatusDelivered, ScheduledStatusFailed, ScheduledStatusUnknown, ScheduledStatusCancelled:
		return true
	}
	return false
}

// ScheduledMessage is an outbound job. FeedbackMessageID is nil for
// batch-import sends.
type ScheduledMessage struct {
	ID                int        `db:"id" json:"id"`
	AccountID         int        `db:"account_id" json:"account_id"`
	CustomerID        int        `db:"customer_id" json:"customer_id"`
	Channel           Channel    `db:"channel" json:"channel"`
	Body              string     `db:"body" json:"body"`
	ScheduledAt       time.Time  `db:"scheduled_at" json:"scheduled_at"`
	Status            string     `db:"status" json:"status"`
	FeedbackMessageID *int       `db:"feedback_message_id" json:"feedback_message_id,omitempty"`
	DispatchedAt      *time.Time `db:"dispatched_at" json:"dispatched_at,omitempty"`
	LastError         string     `db:"last_error" json:"last_error,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}
