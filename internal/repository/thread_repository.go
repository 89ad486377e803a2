// internal/repository/thread_repository.go
package repository

import (
	"database/sql"

	"github.com/telinga/telinga-backend/internal/model"
)

type ThreadRepositoryInterface interface {
	GetByCustomerAndChannel(customerID int, channel model.Channel) (*model.ConversationThread, error)
	GetByProviderThreadID(providerThreadID string) (*model.ConversationThread, error)
	Create(t *model.ConversationThread) error
	Touch(id int) error
}

type ThreadRepository struct {
	DB *sql.DB
}

const threadColumns = `id, customer_id, channel, provider_thread_id, message_count, last_activity_at, created_at`

func scanThread(row *sql.Row) (*model.ConversationThread, error) {
	var t model.ConversationThread
	err := row.Scan(&t.ID, &t.CustomerID, &t.Channel, &t.ProviderThreadID, &t.MessageCount, &t.LastActivityAt, &t.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

func (r *ThreadRepository) GetByCustomerAndChannel(customerID int, channel model.Channel) (*model.ConversationThread, error) {
	query := `SELECT ` + threadColumns + ` FROM conversation_threads WHERE customer_id=$1 AND channel=$2`
	return scanThread(r.DB.QueryRow(query, customerID, channel))
}

func (r *ThreadRepository) GetByProviderThreadID(providerThreadID string) (*model.ConversationThread, error) {
	query := `SELECT ` + threadColumns + ` FROM conversation_threads WHERE provider_thread_id=$1`
	return scanThread(r.DB.QueryRow(query, providerThreadID))
}

func (r *ThreadRepository) Create(t *model.ConversationThread) error {
	query := `
        INSERT INTO conversation_threads (customer_id, channel, provider_thread_id, message_count, last_activity_at, created_at)
        VALUES ($1, $2, $3, 1, NOW(), NOW())
        RETURNING id, message_count, last_activity_at, created_at
    `
	return r.DB.QueryRow(query, t.CustomerID, t.Channel, t.ProviderThreadID).
		Scan(&t.ID, &t.MessageCount, &t.LastActivityAt, &t.CreatedAt)
}

// Touch bumps the message count and last-activity timestamp.
func (r *ThreadRepository) Touch(id int) error {
	query := `UPDATE conversation_threads SET message_count=message_count+1, last_activity_at=NOW() WHERE id=$1`
	_, err := r.DB.Exec(query, id)
	return err
}

var _ ThreadRepositoryInterface = (*ThreadRepository)(nil)
