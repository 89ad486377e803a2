// internal/model/conversation_thread.go
package model

import "time"

// ConversationThread groups feedback exchanged with one customer over one
// channel. For email the ProviderThreadID holds the provider-side thread id.
type ConversationThread struct {
	ID               int       `db:"id" json:"id"`
	CustomerID       int       `db:"customer_id" json:"customer_id"`
	Channel          Channel   `db:"channel" json:"channel"`
	ProviderThreadID string    `db:"provider_thread_id" json:"provider_thread_id,omitempty"`
	MessageCount     int       `db:"message_count" json:"message_count"`
	LastActivityAt   time.Time `db:"last_activity_at" json:"last_activity_at"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}
