// internal/repository/customer_repository.go
package repository

import (
	"database/sql"

	"github.com/telinga/telinga-backend/internal/model"
)

// CustomerRepositoryInterface defines the customer lookups the pipeline needs.
type CustomerRepositoryInterface interface {
	GetByID(id int) (*model.Customer, error)
	GetByPhone(phone string) (*model.Customer, error)
	GetByEmail(email string) (*model.Customer, error)
	Create(c *model.Customer) error
	Upsert(c *model.Customer) error
	Deactivate(id int) error
}

type CustomerRepository struct {
	DB *sql.DB
}

const customerColumns = `id, account_id, phone, email, first_name, last_name, active, created_at, updated_at`

func scanCustomer(row *sql.Row) (*model.Customer, error) {
	var c model.Customer
	err := row.Scan(&c.ID, &c.AccountID, &c.Phone, &c.Email, &c.FirstName, &c.LastName, &c.Active, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // not found
		}
		return nil, err
	}
	return &c, nil
}

func (r *CustomerRepository) GetByID(id int) (*model.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE id = $1`
	return scanCustomer(r.DB.QueryRow(query, id))
}

func (r *CustomerRepository) GetByPhone(phone string) (*model.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE phone = $1`
	return scanCustomer(r.DB.QueryRow(query, phone))
}

func (r *CustomerRepository) GetByEmail(email string) (*model.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE email = $1`
	return scanCustomer(r.DB.QueryRow(query, email))
}

func (r *CustomerRepository) Create(c *model.Customer) error {
	query := `
        INSERT INTO customers (account_id, phone, email, first_name, last_name, active, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, TRUE, NOW(), NOW())
        RETURNING id, active, created_at, updated_at
    `
	return r.DB.QueryRow(query, c.AccountID, c.Phone, c.Email, c.FirstName, c.LastName).
		Scan(&c.ID, &c.Active, &c.CreatedAt, &c.UpdatedAt)
}

// Upsert inserts the customer or, when the phone or email collides with an
// existing record, updates that record in place. Batch import relies on this.
func (r *CustomerRepository) Upsert(c *model.Customer) error {
	var existing *model.Customer
	var err error
	if c.Phone != "" {
		existing, err = r.GetByPhone(c.Phone)
	} else {
		existing, err = r.GetByEmail(c.Email)
	}
	if err != nil {
		return err
	}
	if existing == nil {
		return r.Create(c)
	}

	query := `
        UPDATE customers
        SET phone=$1, email=$2, first_name=$3, last_name=$4, updated_at=NOW()
        WHERE id=$5
        RETURNING updated_at
    `
	c.ID = existing.ID
	c.AccountID = existing.AccountID
	c.Active = existing.Active
	c.CreatedAt = existing.CreatedAt
	return r.DB.QueryRow(query, c.Phone, c.Email, c.FirstName, c.LastName, c.ID).Scan(&c.UpdatedAt)
}

// Deactivate marks the customer inactive. The pipeline never deletes.
func (r *CustomerRepository) Deactivate(id int) error {
	query := `UPDATE customers SET active=FALSE, updated_at=NOW() WHERE id=$1`
	_, err := r.DB.Exec(query, id)
	return err
}

var _ CustomerRepositoryInterface = (*CustomerRepository)(nil)
