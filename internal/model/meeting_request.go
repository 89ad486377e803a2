// internal/model/meeting_request.go
package model

import "time"

const (
	MeetingStatusProposed  = "proposed"
	MeetingStatusConfirmed = "confirmed"
	MeetingStatusDeclined  = "declined"
)

// MeetingRequest is created when negative email feedback implies scheduling
// intent. Email-channel only.
type MeetingRequest struct {
	ID            int       `db:"id" json:"id"`
	CustomerID    int       `db:"customer_id" json:"customer_id"`
	SuggestedTime time.Time `db:"suggested_time" json:"suggested_time"`
	Title         string    `db:"title" json:"title"`
	Status        string    `db:"status" json:"status"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}
