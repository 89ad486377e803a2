// internal/repository/meeting_request_repository.go
package repository

import (
	"database/sql"

	"github.com/telinga/telinga-backend/internal/model"
)

type MeetingRequestRepositoryInterface interface {
	Create(m *model.MeetingRequest) error
	ListByCustomer(customerID int) ([]*model.MeetingRequest, error)
	UpdateStatus(id int, status string) error
}

type MeetingRequestRepository struct {
	DB *sql.DB
}

func (r *MeetingRequestRepository) Create(m *model.MeetingRequest) error {
	query := `
        INSERT INTO meeting_requests (customer_id, suggested_time, title, status, created_at)
        VALUES ($1, $2, $3, $4, NOW())
        RETURNING id, created_at
    `
	if m.Status == "" {
		m.Status = model.MeetingStatusProposed
	}
	return r.DB.QueryRow(query, m.CustomerID, m.SuggestedTime, m.Title, m.Status).Scan(&m.ID, &m.CreatedAt)
}

func (r *MeetingRequestRepository) ListByCustomer(customerID int) ([]*model.MeetingRequest, error) {
	query := `
        SELECT id, customer_id, suggested_time, title, status, created_at
        FROM meeting_requests WHERE customer_id=$1 ORDER BY id DESC
    `
	rows, err := r.DB.Query(query, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	requests := []*model.MeetingRequest{}
	for rows.Next() {
		m := &model.MeetingRequest{}
		if err := rows.Scan(&m.ID, &m.CustomerID, &m.SuggestedTime, &m.Title, &m.Status, &m.CreatedAt); err != nil {
			return nil, err
		}
		requests = append(requests, m)
	}
	return requests, rows.Err()
}

func (r *MeetingRequestRepository) UpdateStatus(id int, status string) error {
	query := `UPDATE meeting_requests SET status=$1 WHERE id=$2`
	_, err := r.DB.Exec(query, status, id)
	return err
}

var _ MeetingRequestRepositoryInterface = (*MeetingRequestRepository)(nil)
