// internal/repository/scheduled_message_repository.go
package repository

import (
	"database/sql"
	"time"

	"github.com/telinga/telinga-backend/internal/model"
)

type ScheduledMessageRepositoryInterface interface {
	Create(m *model.ScheduledMessage) error
	GetByID(id int) (*model.ScheduledMessage, error)
	ListDueIDs(now time.Time, limit int) ([]int, error)
	ListStrandedDispatched(before time.Time, limit int) ([]int, error)
	ClaimForDispatch(id int, now time.Time) (bool, error)
	TransitionStatus(id int, from, to, lastError string) (bool, error)
	Cancel(id int) (bool, error)
}

type ScheduledMessageRepository struct {
	DB *sql.DB
}

const scheduledColumns = `id, account_id, customer_id, channel, body, scheduled_at, status,
        feedback_message_id, dispatched_at, last_error, created_at, updated_at`

func (r *ScheduledMessageRepository) Create(m *model.ScheduledMessage) error {
	query := `
        INSERT INTO scheduled_messages (account_id, customer_id, channel, body, scheduled_at, status, feedback_message_id, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
        RETURNING id, created_at, updated_at
    `
	if m.Status == "" {
		m.Status = model.ScheduledStatusPending
	}
	return r.DB.QueryRow(query, m.AccountID, m.CustomerID, m.Channel, m.Body, m.ScheduledAt, m.Status, m.FeedbackMessageID).
		Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
}

func (r *ScheduledMessageRepository) GetByID(id int) (*model.ScheduledMessage, error) {
	query := `SELECT ` + scheduledColumns + ` FROM scheduled_messages WHERE id=$1`
	var m model.ScheduledMessage
	err := r.DB.QueryRow(query, id).Scan(
		&m.ID, &m.AccountID, &m.CustomerID, &m.Channel, &m.Body, &m.ScheduledAt, &m.Status,
		&m.FeedbackMessageID, &m.DispatchedAt, &m.LastError, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

func (r *ScheduledMessageRepository) ListDueIDs(now time.Time, limit int) ([]int, error) {
	query := `
        SELECT id FROM scheduled_messages
        WHERE status=$1 AND scheduled_at <= $2
        ORDER BY scheduled_at
        LIMIT $3
    `
	rows, err := r.DB.Query(query, model.ScheduledStatusPending, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []int{}
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListStrandedDispatched returns dispatched messages claimed before the
// cutoff that never got a delivery record, i.e. the worker died between the
// claim and the send. These escape the status-poll sweep, which only walks
// delivery records.
func (r *ScheduledMessageRepository) ListStrandedDispatched(before time.Time, limit int) ([]int, error) {
	query := `
        SELECT m.id FROM scheduled_messages m
        LEFT JOIN delivery_records d ON d.scheduled_message_id = m.id
        WHERE m.status=$1 AND m.dispatched_at <= $2 AND d.id IS NULL
        ORDER BY m.dispatched_at
        LIMIT $3
    `
	rows, err := r.DB.Query(query, model.ScheduledStatusDispatched, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []int{}
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ClaimForDispatch atomically moves the message from pending to dispatched,
// but only once its send time has arrived. Exactly one of any number of
// concurrent workers gets true back.
func (r *ScheduledMessageRepository) ClaimForDispatch(id int, now time.Time) (bool, error) {
	query := `
        UPDATE scheduled_messages
        SET status=$1, dispatched_at=$2, updated_at=NOW()
        WHERE id=$3 AND status=$4 AND scheduled_at <= $2
    `
	res, err := r.DB.Exec(query, model.ScheduledStatusDispatched, now, id, model.ScheduledStatusPending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// TransitionStatus performs a compare-and-swap on the message status. A
// transition out of a terminal state never matches.
func (r *ScheduledMessageRepository) TransitionStatus(id int, from, to, lastError string) (bool, error) {
	query := `
        UPDATE scheduled_messages
        SET status=$1, last_error=$2, updated_at=NOW()
        WHERE id=$3 AND status=$4
    `
	res, err := r.DB.Exec(query, to, lastError, id, from)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// Cancel withdraws a pending message. Once a dispatch worker has claimed the
// row the cancel no longer matches and returns false.
func (r *ScheduledMessageRepository) Cancel(id int) (bool, error) {
	return r.TransitionStatus(id, model.ScheduledStatusPending, model.ScheduledStatusCancelled, "")
}

var _ ScheduledMessageRepositoryInterface = (*ScheduledMessageRepository)(nil)
