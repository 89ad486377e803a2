// internal/repository/delivery_record_repository.go
package repository

import (
	"database/sql"

	"github.com/telinga/telinga-backend/internal/model"
)

type DeliveryRecordRepositoryInterface interface {
	Create(rec *model.DeliveryRecord) error
	GetByProviderMessageID(providerMessageID string) (*model.DeliveryRecord, error)
	ListNonTerminal(limit int) ([]*model.DeliveryRecord, error)
	RecordCheck(id int) error
	TransitionStatus(id int, status string) (bool, error)
}

type DeliveryRecordRepository struct {
	DB *sql.DB
}

const deliveryColumns = `d.id, d.scheduled_message_id, d.provider_message_id, d.status,
        d.check_attempts, d.last_checked_at, d.created_at, d.updated_at`

func (r *DeliveryRecordRepository) Create(rec *model.DeliveryRecord) error {
	query := `
        INSERT INTO delivery_records (scheduled_message_id, provider_message_id, status, check_attempts, created_at, updated_at)
        VALUES ($1, $2, $3, 0, NOW(), NOW())
        RETURNING id, check_attempts, created_at, updated_at
    `
	if rec.Status == "" {
		rec.Status = model.DeliveryStatusQueued
	}
	return r.DB.QueryRow(query, rec.ScheduledMessageID, rec.ProviderMessageID, rec.Status).
		Scan(&rec.ID, &rec.CheckAttempts, &rec.CreatedAt, &rec.UpdatedAt)
}

func (r *DeliveryRecordRepository) GetByProviderMessageID(providerMessageID string) (*model.DeliveryRecord, error) {
	query := `SELECT ` + deliveryColumns + ` FROM delivery_records d WHERE d.provider_message_id=$1`
	var rec model.DeliveryRecord
	err := r.DB.QueryRow(query, providerMessageID).Scan(
		&rec.ID, &rec.ScheduledMessageID, &rec.ProviderMessageID, &rec.Status,
		&rec.CheckAttempts, &rec.LastCheckedAt, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// ListNonTerminal returns records whose owning scheduled message is still in
// the dispatched state, i.e. awaiting a delivery outcome.
func (r *DeliveryRecordRepository) ListNonTerminal(limit int) ([]*model.DeliveryRecord, error) {
	query := `
        SELECT ` + deliveryColumns + `
        FROM delivery_records d
        JOIN scheduled_messages m ON m.id = d.scheduled_message_id
        WHERE m.status = $1
        ORDER BY d.id
        LIMIT $2
    `
	rows, err := r.DB.Query(query, model.ScheduledStatusDispatched, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []*model.DeliveryRecord{}
	for rows.Next() {
		rec := &model.DeliveryRecord{}
		if err := rows.Scan(
			&rec.ID, &rec.ScheduledMessageID, &rec.ProviderMessageID, &rec.Status,
			&rec.CheckAttempts, &rec.LastCheckedAt, &rec.CreatedAt, &rec.UpdatedAt,
		); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// RecordCheck counts one status-check attempt. Status writes go through
// TransitionStatus only, so a racing check can never clobber a terminal
// status.
func (r *DeliveryRecordRepository) RecordCheck(id int) error {
	query := `
        UPDATE delivery_records
        SET check_attempts=check_attempts+1, last_checked_at=NOW(), updated_at=NOW()
        WHERE id=$1
    `
	_, err := r.DB.Exec(query, id)
	return err
}

// TransitionStatus sets the provider status unless a terminal status was
// already recorded by a racing poll or callback. Both paths funnel through
// this single conditional update, so near-simultaneous updates cannot be
// lost and a terminal status is never overwritten.
func (r *DeliveryRecordRepository) TransitionStatus(id int, status string) (bool, error) {
	query := `
        UPDATE delivery_records
        SET status=$1, updated_at=NOW()
        WHERE id=$2 AND status NOT IN ($3, $4, $5, $6, $7)
    `
	res, err := r.DB.Exec(query, status, id,
		model.DeliveryStatusDelivered, model.DeliveryStatusRead,
		model.DeliveryStatusFailed, model.DeliveryStatusUndelivered,
		model.DeliveryStatusUnknown)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

var _ DeliveryRecordRepositoryInterface = (*DeliveryRecordRepository)(nil)
