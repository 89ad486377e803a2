// internal/model/feedback_message.go
package model

import "time"

// Sentiment labels produced by the classification gateway.
const (
	SentimentPositive = "positive"
	SentimentNeutral  = "neutral"
	SentimentNegative = "negative"
	SentimentUnclear  = "unclear"
)

// FeedbackMessage statuses.
const (
	FeedbackStatusReceived  = "received"
	FeedbackStatusProcessed = "processed"
)

// FeedbackMessage is one inbound unit of customer feedback. CustomerID and
// ThreadID are nil until correlated; Sentiment, Confidence and Language are
// nil until classified. ResponseID back-references the ScheduledMessage the
// message triggered, if any.
type FeedbackMessage struct {
	ID              int        `db:"id" json:"id"`
	Channel         Channel    `db:"channel" json:"channel"`
	Sender          string     `db:"sender" json:"sender"`
	Body            string     `db:"body" json:"body"`
	ProviderEventID string     `db:"provider_event_id" json:"provider_event_id"`
	ThreadHint      string     `db:"thread_hint" json:"thread_hint,omitempty"`
	ReceivedAt      time.Time  `db:"received_at" json:"received_at"`
	Status          string     `db:"status" json:"status"`
	CustomerID      *int       `db:"customer_id" json:"customer_id,omitempty"`
	ThreadID        *int       `db:"thread_id" json:"thread_id,omitempty"`
	Sentiment       *string    `db:"sentiment" json:"sentiment,omitempty"`
	Confidence      *float64   `db:"confidence" json:"confidence,omitempty"`
	Language        *string    `db:"language" json:"language,omitempty"`
	ResponseID      *int       `db:"response_id" json:"response_id,omitempty"`
	ClassifiedAt    *time.Time `db:"classified_at" json:"classified_at,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
}
