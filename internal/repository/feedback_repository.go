// internal/repository/feedback_repository.go
package repository

import (
	"database/sql"

	appErrors "github.com/telinga/telinga-backend/internal/errors"
	"github.com/telinga/telinga-backend/internal/model"
)

type FeedbackRepositoryInterface interface {
	CreateDedup(m *model.FeedbackMessage) error
	GetByID(id int) (*model.FeedbackMessage, error)
	AttachCorrelation(id, customerID, threadID int) error
	RecordClassification(id int, sentiment string, confidence float64, language string) error
	SetResponseID(id, responseID int) error
}

type FeedbackRepository struct {
	DB *sql.DB
}

const feedbackColumns = `id, channel, sender, body, provider_event_id, thread_hint, received_at, status,
        customer_id, thread_id, sentiment, confidence, language, response_id, classified_at, created_at`

// CreateDedup inserts the message unless its provider event id was already
// processed. The dedupe check and the insert are a single statement, so two
// concurrent deliveries of the same webhook cannot both succeed.
func (r *FeedbackRepository) CreateDedup(m *model.FeedbackMessage) error {
	query := `
        INSERT INTO feedback_messages (channel, sender, body, provider_event_id, thread_hint, received_at, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
        ON CONFLICT (provider_event_id) DO NOTHING
        RETURNING id, created_at
    `
	err := r.DB.QueryRow(query, m.Channel, m.Sender, m.Body, m.ProviderEventID, m.ThreadHint, m.ReceivedAt, model.FeedbackStatusReceived).
		Scan(&m.ID, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return appErrors.NewDuplicateEvent(m.ProviderEventID)
	}
	if err != nil {
		return err
	}
	m.Status = model.FeedbackStatusReceived
	return nil
}

func (r *FeedbackRepository) GetByID(id int) (*model.FeedbackMessage, error) {
	query := `SELECT ` + feedbackColumns + ` FROM feedback_messages WHERE id=$1`
	var m model.FeedbackMessage
	err := r.DB.QueryRow(query, id).Scan(
		&m.ID, &m.Channel, &m.Sender, &m.Body, &m.ProviderEventID, &m.ThreadHint, &m.ReceivedAt, &m.Status,
		&m.CustomerID, &m.ThreadID, &m.Sentiment, &m.Confidence, &m.Language, &m.ResponseID, &m.ClassifiedAt, &m.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

func (r *FeedbackRepository) AttachCorrelation(id, customerID, threadID int) error {
	query := `UPDATE feedback_messages SET customer_id=$1, thread_id=$2 WHERE id=$3`
	_, err := r.DB.Exec(query, customerID, threadID, id)
	return err
}

// RecordClassification attaches the classification result exactly once. A
// message that already carries a sentiment is left untouched.
func (r *FeedbackRepository) RecordClassification(id int, sentiment string, confidence float64, language string) error {
	query := `
        UPDATE feedback_messages
        SET sentiment=$1, confidence=$2, language=$3, status=$4, classified_at=NOW()
        WHERE id=$5 AND sentiment IS NULL
    `
	_, err := r.DB.Exec(query, sentiment, confidence, language, model.FeedbackStatusProcessed, id)
	return err
}

func (r *FeedbackRepository) SetResponseID(id, responseID int) error {
	query := `UPDATE feedback_messages SET response_id=$1 WHERE id=$2 AND response_id IS NULL`
	_, err := r.DB.Exec(query, responseID, id)
	return err
}

var _ FeedbackRepositoryInterface = (*FeedbackRepository)(nil)
