package repository

import (
	"context"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/wareflow/wareflow-backend/pkg/database"
)

const shelfColumns = `id, site_id, rack_id, name, barcode, capacity, loaded_capacity,
	created_at, updated_at, created_by, updated_by, deleted_by, deleted_at`

// ShelfRepository persists shelves and their loaded capacity
type ShelfRepository struct{}

// NewShelfRepository creates a new shelf repository
func NewShelfRepository() *ShelfRepository {
	return &ShelfRepository{}
}

// GetByID returns a live shelf
func (r *ShelfRepository) GetByID(ctx context.Context, q database.Querier, id int64) (*Shelf, error) {
	var s Shelf
	err := q.GetContext(ctx, &s, `SELECT `+shelfColumns+` FROM shelves WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return nil, notFound(err, "shelf")
	}
	return &s, nil
}

// LockByIDs locks the shelf rows in ascending id order
func (r *ShelfRepository) LockByIDs(ctx context.Context, q database.Querier, ids []int64) ([]Shelf, error) {
	var shelves []Shelf
	err := q.SelectContext(ctx, &shelves,
		`SELECT `+shelfColumns+` FROM shelves WHERE id = ANY($1) ORDER BY id FOR NO KEY UPDATE`,
		pq.Array(ids))
	return shelves, err
}

// AddLoad applies a relative change to the loaded capacity, floored at
// zero. The load_within_capacity constraint rejects overfilling.
func (r *ShelfRepository) AddLoad(ctx context.Context, q database.Querier, id int64, delta decimal.Decimal) error {
	res, err := q.ExecContext(ctx, `
		UPDATE shelves
		SET loaded_capacity = GREATEST(loaded_capacity + $2, 0), updated_by = $3, updated_at = NOW()
		WHERE id = $1`,
		id, delta, by(ctx))
	if err != nil {
		return err
	}
	return expectOne(res, "shelf")
}
