package repository

import (
	"context"

	"github.com/lib/pq"
	"github.com/wareflow/wareflow-backend/pkg/database"
)

// CustomerRepository reads customers referenced by picklists
type CustomerRepository struct{}

// NewCustomerRepository creates a new customer repository
func NewCustomerRepository() *CustomerRepository {
	return &CustomerRepository{}
}

// ListByNames returns the live customers with the given names
func (r *CustomerRepository) ListByNames(ctx context.Context, q database.Querier, names []string) ([]Customer, error) {
	var customers []Customer
	err := q.SelectContext(ctx, &customers, `
		SELECT id, site_id, name, created_at, updated_at, created_by, updated_by, deleted_by, deleted_at
		FROM customers
		WHERE name = ANY($1) AND deleted_at IS NULL
		ORDER BY id`,
		pq.Array(names))
	return customers, err
}
