package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"github.com/wareflow/wareflow-backend/pkg/database"
)

const picklistColumns = `id, site_id, customer_id, user_id, name, picklist_status, started_by, started_at,
	completed_by, completed_at, is_issued, issue_date, issue_by, is_partial, invoice, vehicle_no,
	created_at, updated_at, created_by, updated_by, deleted_by, deleted_at`

const picklistItemColumns = `id, picklist_id, material_id, material_name, material_description,
	material_quantity, picked_quantity, created_at, updated_at, created_by, updated_by, deleted_by, deleted_at`

const pickColumns = `id, picklist_item_id, inward_id, barcode, quantity, shelf,
	created_at, updated_at, created_by, updated_by, deleted_by, deleted_at`

// PicklistRepository persists picklists, their items and the unit links
type PicklistRepository struct{}

// NewPicklistRepository creates a new picklist repository
func NewPicklistRepository() *PicklistRepository {
	return &PicklistRepository{}
}

// Create inserts a picklist. The insert runs under a savepoint so a name
// collision leaves the surrounding transaction usable for a retry.
func (r *PicklistRepository) Create(ctx context.Context, q database.Querier, p *Picklist) error {
	stamp := by(ctx)
	return database.Savepoint(ctx, q, "picklist_create", func() error {
		return q.QueryRowxContext(ctx, `
			INSERT INTO picklists (site_id, customer_id, user_id, name, picklist_status, invoice, created_by, updated_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
			RETURNING id, created_at, updated_at`,
			p.SiteID, p.CustomerID, p.UserID, p.Name, p.PicklistStatus, p.Invoice, stamp,
		).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	})
}

// GetByID returns a live picklist
func (r *PicklistRepository) GetByID(ctx context.Context, q database.Querier, id int64) (*Picklist, error) {
	var p Picklist
	err := q.GetContext(ctx, &p, `SELECT `+picklistColumns+` FROM picklists WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return nil, notFound(err, "picklist")
	}
	return &p, nil
}

// GetByIDForUpdate returns a live picklist and locks its row
func (r *PicklistRepository) GetByIDForUpdate(ctx context.Context, q database.Querier, id int64) (*Picklist, error) {
	var p Picklist
	err := q.GetContext(ctx, &p,
		`SELECT `+picklistColumns+` FROM picklists WHERE id = $1 AND deleted_at IS NULL FOR NO KEY UPDATE`, id)
	if err != nil {
		return nil, notFound(err, "picklist")
	}
	return &p, nil
}

// SetStatus stores a recomputed status
func (r *PicklistRepository) SetStatus(ctx context.Context, q database.Querier, id int64, status string) error {
	_, err := q.ExecContext(ctx, `
		UPDATE picklists SET picklist_status = $2, updated_by = $3, updated_at = NOW()
		WHERE id = $1 AND picklist_status <> $2`,
		id, status, by(ctx))
	return err
}

// Save writes the mutable fields of a picklist back
func (r *PicklistRepository) Save(ctx context.Context, q database.Querier, p *Picklist) error {
	res, err := q.ExecContext(ctx, `
		UPDATE picklists
		SET user_id = $2, picklist_status = $3, started_by = $4, started_at = $5,
		    completed_by = $6, completed_at = $7, is_issued = $8, issue_date = $9, issue_by = $10,
		    is_partial = $11, invoice = $12, vehicle_no = $13, updated_by = $14, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`,
		p.ID, p.UserID, p.PicklistStatus, p.StartedBy, p.StartedAt,
		p.CompletedBy, p.CompletedAt, p.IsIssued, p.IssueDate, p.IssueBy,
		p.IsPartial, p.Invoice, p.VehicleNo, by(ctx))
	if err != nil {
		return err
	}
	return expectOne(res, "picklist")
}

// SoftDelete marks the picklist, its items and their unit links deleted.
func (r *PicklistRepository) SoftDelete(ctx context.Context, q database.Querier, id int64) error {
	stamp := by(ctx)
	if _, err := q.ExecContext(ctx, `
		UPDATE picklist_item_barcodes
		SET deleted_at = NOW(), deleted_by = $2
		WHERE deleted_at IS NULL
		  AND picklist_item_id IN (SELECT id FROM picklist_items WHERE picklist_id = $1)`,
		id, stamp); err != nil {
		return err
	}
	if _, err := q.ExecContext(ctx, `
		UPDATE picklist_items SET deleted_at = NOW(), deleted_by = $2
		WHERE picklist_id = $1 AND deleted_at IS NULL`,
		id, stamp); err != nil {
		return err
	}
	res, err := q.ExecContext(ctx, `
		UPDATE picklists SET deleted_at = NOW(), deleted_by = $2
		WHERE id = $1 AND deleted_at IS NULL`,
		id, stamp)
	if err != nil {
		return err
	}
	return expectOne(res, "picklist")
}

// CreateItem inserts a picklist item
func (r *PicklistRepository) CreateItem(ctx context.Context, q database.Querier, it *PicklistItem) error {
	stamp := by(ctx)
	return q.QueryRowxContext(ctx, `
		INSERT INTO picklist_items (picklist_id, material_id, material_name, material_description,
			material_quantity, picked_quantity, created_by, updated_by)
		VALUES ($1, $2, $3, $4, $5, 0, $6, $6)
		RETURNING id, created_at, updated_at`,
		it.PicklistID, it.MaterialID, it.MaterialName, it.MaterialDescription, it.MaterialQuantity, stamp,
	).Scan(&it.ID, &it.CreatedAt, &it.UpdatedAt)
}

// Items returns the live items of a picklist
func (r *PicklistRepository) Items(ctx context.Context, q database.Querier, picklistID int64) ([]PicklistItem, error) {
	var items []PicklistItem
	err := q.SelectContext(ctx, &items, `
		SELECT `+picklistItemColumns+` FROM picklist_items
		WHERE picklist_id = $1 AND deleted_at IS NULL
		ORDER BY id`, picklistID)
	return items, err
}

// ItemForUpdate locks a live item by id
func (r *PicklistRepository) ItemForUpdate(ctx context.Context, q database.Querier, id int64) (*PicklistItem, error) {
	var it PicklistItem
	err := q.GetContext(ctx, &it, `
		SELECT `+picklistItemColumns+` FROM picklist_items
		WHERE id = $1 AND deleted_at IS NULL FOR NO KEY UPDATE`, id)
	if err != nil {
		return nil, notFound(err, "picklist item")
	}
	return &it, nil
}

// ItemByMaterialForUpdate locks the item of the picklist for the material
func (r *PicklistRepository) ItemByMaterialForUpdate(ctx context.Context, q database.Querier, picklistID, materialID int64) (*PicklistItem, error) {
	var it PicklistItem
	err := q.GetContext(ctx, &it, `
		SELECT `+picklistItemColumns+` FROM picklist_items
		WHERE picklist_id = $1 AND material_id = $2 AND deleted_at IS NULL FOR NO KEY UPDATE`,
		picklistID, materialID)
	if err != nil {
		return nil, notFound(err, "picklist item")
	}
	return &it, nil
}

// AddPicked changes picked_quantity by delta, floored at zero. The
// picked_within_target constraint rejects overshooting the target.
func (r *PicklistRepository) AddPicked(ctx context.Context, q database.Querier, itemID int64, delta int) error {
	res, err := q.ExecContext(ctx, `
		UPDATE picklist_items
		SET picked_quantity = GREATEST(picked_quantity + $2, 0), updated_by = $3, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`,
		itemID, delta, by(ctx))
	if err != nil {
		return err
	}
	return expectOne(res, "picklist item")
}

// PickedCount returns how many units are currently linked to the picklist
func (r *PicklistRepository) PickedCount(ctx context.Context, q database.Querier, picklistID int64) (int64, error) {
	var n int64
	err := q.GetContext(ctx, &n, `
		SELECT COUNT(*) FROM picklist_item_barcodes pib
		JOIN picklist_items pi ON pi.id = pib.picklist_item_id
		WHERE pi.picklist_id = $1 AND pi.deleted_at IS NULL AND pib.deleted_at IS NULL`,
		picklistID)
	return n, err
}

// FindPick returns the link between item and unit, soft-deleted or not.
// It returns nil when the pair was never linked.
func (r *PicklistRepository) FindPick(ctx context.Context, q database.Querier, itemID, unitID int64) (*Pick, error) {
	var p Pick
	err := q.GetContext(ctx, &p, `
		SELECT `+pickColumns+` FROM picklist_item_barcodes
		WHERE picklist_item_id = $1 AND inward_id = $2`, itemID, unitID)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPick returns a live link by id
func (r *PicklistRepository) GetPick(ctx context.Context, q database.Querier, id int64) (*Pick, error) {
	var p Pick
	err := q.GetContext(ctx, &p, `SELECT `+pickColumns+` FROM picklist_item_barcodes WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return nil, notFound(err, "pick")
	}
	return &p, nil
}

// CreatePick links a unit to a picklist item
func (r *PicklistRepository) CreatePick(ctx context.Context, q database.Querier, p *Pick) error {
	stamp := by(ctx)
	return q.QueryRowxContext(ctx, `
		INSERT INTO picklist_item_barcodes (picklist_item_id, inward_id, barcode, quantity, shelf, created_by, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		RETURNING id, created_at, updated_at`,
		p.PicklistItemID, p.InwardID, p.Barcode, p.Quantity, p.Shelf, stamp,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

// RestorePick revives a soft-deleted link with fresh values
func (r *PicklistRepository) RestorePick(ctx context.Context, q database.Querier, p *Pick) error {
	stamp := by(ctx)
	err := q.QueryRowxContext(ctx, `
		UPDATE picklist_item_barcodes
		SET deleted_at = NULL, deleted_by = NULL, barcode = $2, quantity = $3, shelf = $4,
		    updated_by = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		p.ID, p.Barcode, p.Quantity, p.Shelf, stamp,
	).Scan(&p.UpdatedAt)
	if err != nil {
		return notFound(err, "pick")
	}
	p.DeletedAt = nil
	p.DeletedBy = nil
	return nil
}

// DeletePick soft-deletes a link
func (r *PicklistRepository) DeletePick(ctx context.Context, q database.Querier, id int64) error {
	res, err := q.ExecContext(ctx, `
		UPDATE picklist_item_barcodes SET deleted_at = $2, deleted_by = $3
		WHERE id = $1 AND deleted_at IS NULL`,
		id, time.Now(), by(ctx))
	if err != nil {
		return err
	}
	return expectOne(res, "pick")
}
