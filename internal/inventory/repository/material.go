package repository

import (
	"context"

	"github.com/lib/pq"
	"github.com/wareflow/wareflow-backend/pkg/database"
)

const materialColumns = `id, site_id, name, description, customer_name, uom, net_weight, net_volume, quantity,
	created_at, updated_at, created_by, updated_by, deleted_by, deleted_at`

// MaterialRepository persists materials and their derived stock quantity
type MaterialRepository struct{}

// NewMaterialRepository creates a new material repository
func NewMaterialRepository() *MaterialRepository {
	return &MaterialRepository{}
}

// GetByID returns a live material
func (r *MaterialRepository) GetByID(ctx context.Context, q database.Querier, id int64) (*Material, error) {
	var m Material
	err := q.GetContext(ctx, &m, `SELECT `+materialColumns+` FROM materials WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return nil, notFound(err, "material")
	}
	return &m, nil
}

// ListByIDs returns the live materials with the given ids
func (r *MaterialRepository) ListByIDs(ctx context.Context, q database.Querier, ids []int64) ([]Material, error) {
	var materials []Material
	err := q.SelectContext(ctx, &materials,
		`SELECT `+materialColumns+` FROM materials WHERE id = ANY($1) AND deleted_at IS NULL ORDER BY id`,
		pq.Array(ids))
	return materials, err
}

// ListByNames returns the live materials with the given names
func (r *MaterialRepository) ListByNames(ctx context.Context, q database.Querier, names []string) ([]Material, error) {
	var materials []Material
	err := q.SelectContext(ctx, &materials,
		`SELECT `+materialColumns+` FROM materials WHERE name = ANY($1) AND deleted_at IS NULL ORDER BY id`,
		pq.Array(names))
	return materials, err
}

// LockByIDs locks the material rows in ascending id order
func (r *MaterialRepository) LockByIDs(ctx context.Context, q database.Querier, ids []int64) ([]Material, error) {
	var materials []Material
	err := q.SelectContext(ctx, &materials,
		`SELECT `+materialColumns+` FROM materials WHERE id = ANY($1) ORDER BY id FOR NO KEY UPDATE`,
		pq.Array(ids))
	return materials, err
}

// AdjustQuantity applies a relative change to the stock quantity, floored
// at zero.
func (r *MaterialRepository) AdjustQuantity(ctx context.Context, q database.Querier, id, delta int64) error {
	res, err := q.ExecContext(ctx, `
		UPDATE materials
		SET quantity = GREATEST(quantity + $2, 0), updated_by = $3, updated_at = NOW()
		WHERE id = $1`,
		id, delta, by(ctx))
	if err != nil {
		return err
	}
	return expectOne(res, "material")
}

// ListInStock returns the site's live materials with stock on hand,
// optionally narrowed to one material.
func (r *MaterialRepository) ListInStock(ctx context.Context, q database.Querier, siteID int64, materialID *int64) ([]Material, error) {
	var materials []Material
	err := q.SelectContext(ctx, &materials, `
		SELECT `+materialColumns+` FROM materials
		WHERE site_id = $1 AND quantity > 0 AND deleted_at IS NULL
		  AND ($2::BIGINT IS NULL OR id = $2)
		ORDER BY id`,
		siteID, materialID)
	return materials, err
}
