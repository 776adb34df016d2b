package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"github.com/lib/pq"
	"github.com/wareflow/wareflow-backend/pkg/database"
)

const unitColumns = `id, site_id, material_id, barcode, material_name, material_description, quantity,
	batch, invoice, mrp, manufacturing_date, qc_status, qc_remark, shelf_id, shelf_name,
	recommended_shelf, is_put_away, picker_id, picklist_id, picklist_name, picked_by, is_picked,
	is_dispatch, dispatch_at, dispatch_by, is_return, return_at, return_by, in_stock,
	audit_status, audit_remark, audit_at, audit_by,
	created_at, updated_at, created_by, updated_by, deleted_by, deleted_at`

// barcodeLockKey serialises barcode allocation across transactions.
const barcodeLockKey int64 = 0x7761726562617263

// UnitRepository persists inventory units
type UnitRepository struct{}

// NewUnitRepository creates a new unit repository
func NewUnitRepository() *UnitRepository {
	return &UnitRepository{}
}

// GetByID returns a live unit
func (r *UnitRepository) GetByID(ctx context.Context, q database.Querier, id int64) (*Unit, error) {
	var u Unit
	err := q.GetContext(ctx, &u, `SELECT `+unitColumns+` FROM inventory_units WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return nil, notFound(err, "inventory unit")
	}
	return &u, nil
}

// GetByIDForUpdate returns a live unit and locks its row
func (r *UnitRepository) GetByIDForUpdate(ctx context.Context, q database.Querier, id int64) (*Unit, error) {
	var u Unit
	err := q.GetContext(ctx, &u,
		`SELECT `+unitColumns+` FROM inventory_units WHERE id = $1 AND deleted_at IS NULL FOR NO KEY UPDATE`, id)
	if err != nil {
		return nil, notFound(err, "inventory unit")
	}
	return &u, nil
}

// GetByBarcodeForUpdate returns a live unit by barcode and locks its row
func (r *UnitRepository) GetByBarcodeForUpdate(ctx context.Context, q database.Querier, barcode string) (*Unit, error) {
	var u Unit
	err := q.GetContext(ctx, &u,
		`SELECT `+unitColumns+` FROM inventory_units WHERE barcode = $1 AND deleted_at IS NULL FOR NO KEY UPDATE`, barcode)
	if err != nil {
		return nil, notFound(err, "inventory unit")
	}
	return &u, nil
}

// ListByBarcodesForUpdate locks the live units carrying the given barcodes,
// in id order. Unknown barcodes are simply absent from the result.
func (r *UnitRepository) ListByBarcodesForUpdate(ctx context.Context, q database.Querier, barcodes []string) ([]Unit, error) {
	var units []Unit
	err := q.SelectContext(ctx, &units,
		`SELECT `+unitColumns+` FROM inventory_units
		 WHERE barcode = ANY($1) AND deleted_at IS NULL
		 ORDER BY id
		 FOR NO KEY UPDATE`, pq.Array(barcodes))
	return units, err
}

// LastBarcode takes the barcode allocation lock for the rest of the
// transaction and returns the highest numeric barcode ever issued,
// soft-deleted units included. ok is false when no barcode exists yet.
func (r *UnitRepository) LastBarcode(ctx context.Context, q database.Querier) (last string, ok bool, err error) {
	if _, err := q.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, barcodeLockKey); err != nil {
		return "", false, err
	}
	err = q.GetContext(ctx, &last, `
		SELECT barcode FROM inventory_units
		WHERE barcode ~ '^[0-9]+$'
		ORDER BY LENGTH(barcode) DESC, barcode DESC
		LIMIT 1`)
	if stderrors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return last, true, nil
}

// ExistingBarcodes returns which of barcodes are already taken, including
// by soft-deleted units.
func (r *UnitRepository) ExistingBarcodes(ctx context.Context, q database.Querier, barcodes []string) ([]string, error) {
	var taken []string
	err := q.SelectContext(ctx, &taken,
		`SELECT barcode FROM inventory_units WHERE barcode = ANY($1) ORDER BY barcode`, pq.Array(barcodes))
	return taken, err
}

// CreatedUnit is the identity of a freshly inserted unit
type CreatedUnit struct {
	ID      int64  `db:"id" json:"id"`
	Barcode string `db:"barcode" json:"barcode"`
}

// CreateBatch inserts one unit per barcode, all copied from tmpl.
func (r *UnitRepository) CreateBatch(ctx context.Context, q database.Querier, tmpl *Unit, barcodes []string) ([]CreatedUnit, error) {
	var created []CreatedUnit
	err := q.SelectContext(ctx, &created, `
		INSERT INTO inventory_units (
			site_id, material_id, barcode, material_name, material_description, quantity,
			batch, invoice, mrp, manufacturing_date, qc_status, in_stock, created_by, updated_by
		)
		SELECT $1, $2, b, $3, $4, $5, $6, $7, $8, $9, $10, true, $11, $11
		FROM unnest($12::text[]) WITH ORDINALITY AS t(b, n)
		ORDER BY n
		RETURNING id, barcode`,
		tmpl.SiteID, tmpl.MaterialID, tmpl.MaterialName, tmpl.MaterialDescription, tmpl.Quantity,
		tmpl.Batch, tmpl.Invoice, tmpl.MRP, tmpl.ManufacturingDate, tmpl.QCStatus, by(ctx),
		pq.Array(barcodes),
	)
	return created, err
}

// Insert creates a single unit with an explicit barcode
func (r *UnitRepository) Insert(ctx context.Context, q database.Querier, u *Unit) error {
	stamp := by(ctx)
	return q.QueryRowxContext(ctx, `
		INSERT INTO inventory_units (
			site_id, material_id, barcode, material_name, material_description, quantity,
			batch, invoice, mrp, manufacturing_date, qc_status, in_stock, created_by, updated_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, true, $12, $12)
		RETURNING id, in_stock, created_at, updated_at`,
		u.SiteID, u.MaterialID, u.Barcode, u.MaterialName, u.MaterialDescription, u.Quantity,
		u.Batch, u.Invoice, u.MRP, u.ManufacturingDate, u.QCStatus, stamp,
	).Scan(&u.ID, &u.InStock, &u.CreatedAt, &u.UpdatedAt)
}

// OldestEligible returns the oldest unit of the material on the site that
// is approved, unpicked, in stock and created before cutoff. It returns
// nil when there is none.
func (r *UnitRepository) OldestEligible(ctx context.Context, q database.Querier, materialID, siteID int64, cutoff time.Time, excludeID int64) (*Unit, error) {
	var u Unit
	err := q.GetContext(ctx, &u, `
		SELECT `+unitColumns+` FROM inventory_units
		WHERE material_id = $1 AND site_id = $2
		  AND qc_status = 'Approved' AND NOT is_picked AND in_stock
		  AND deleted_at IS NULL
		  AND created_at < $3 AND id <> $4
		ORDER BY created_at, id
		LIMIT 1`,
		materialID, siteID, cutoff, excludeID,
	)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// SetQC records a QC outcome on the unit
func (r *UnitRepository) SetQC(ctx context.Context, q database.Querier, id int64, status string, remark *string) error {
	res, err := q.ExecContext(ctx, `
		UPDATE inventory_units
		SET qc_status = $2, qc_remark = $3, updated_by = $4, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`,
		id, status, remark, by(ctx))
	if err != nil {
		return err
	}
	return expectOne(res, "inventory unit")
}

// SetShelf places the unit on a shelf
func (r *UnitRepository) SetShelf(ctx context.Context, q database.Querier, id, shelfID int64, shelfName string) error {
	res, err := q.ExecContext(ctx, `
		UPDATE inventory_units
		SET shelf_id = $2, shelf_name = $3, is_put_away = true, updated_by = $4, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`,
		id, shelfID, shelfName, by(ctx))
	if err != nil {
		return err
	}
	return expectOne(res, "inventory unit")
}

// MarkPicked allocates the unit to a picklist
func (r *UnitRepository) MarkPicked(ctx context.Context, q database.Querier, id int64, pickerID *int64, picklistID int64, picklistName string) error {
	stamp := by(ctx)
	res, err := q.ExecContext(ctx, `
		UPDATE inventory_units
		SET is_picked = true, picker_id = $2, picklist_id = $3, picklist_name = $4, picked_by = $5,
		    updated_by = $5, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`,
		id, pickerID, picklistID, picklistName, stamp)
	if err != nil {
		return err
	}
	return expectOne(res, "inventory unit")
}

// ClearPick releases the unit from its picklist
func (r *UnitRepository) ClearPick(ctx context.Context, q database.Querier, id int64) error {
	_, err := q.ExecContext(ctx, `
		UPDATE inventory_units
		SET is_picked = false, picker_id = NULL, picklist_id = NULL, picklist_name = NULL, picked_by = NULL,
		    updated_by = $2, updated_at = NOW()
		WHERE id = $1`,
		id, by(ctx))
	return err
}

// ClearPicksByPicklist releases every unit allocated to the picklist and
// returns how many were released.
func (r *UnitRepository) ClearPicksByPicklist(ctx context.Context, q database.Querier, picklistID int64) (int64, error) {
	res, err := q.ExecContext(ctx, `
		UPDATE inventory_units
		SET is_picked = false, picker_id = NULL, picklist_id = NULL, picklist_name = NULL, picked_by = NULL,
		    updated_by = $2, updated_at = NOW()
		WHERE picklist_id = $1 AND NOT is_dispatch`,
		picklistID, by(ctx))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DispatchedUnit is what the ledger needs to know about a dispatched unit
type DispatchedUnit struct {
	ID         int64  `db:"id"`
	MaterialID int64  `db:"material_id"`
	ShelfID    *int64 `db:"shelf_id"`
	Quantity   int    `db:"quantity"`
}

// DispatchByPicklist marks every in-stock unit linked to the picklist as
// dispatched and out of stock. Units already dispatched or scrapped are left
// untouched.
func (r *UnitRepository) DispatchByPicklist(ctx context.Context, q database.Querier, picklistID int64) ([]DispatchedUnit, error) {
	var units []DispatchedUnit
	err := q.SelectContext(ctx, &units, `
		UPDATE inventory_units
		SET is_dispatch = true, dispatch_at = NOW(), dispatch_by = $2, in_stock = false,
		    updated_by = $2, updated_at = NOW()
		WHERE id IN (
			SELECT pib.inward_id
			FROM picklist_item_barcodes pib
			JOIN picklist_items pi ON pi.id = pib.picklist_item_id
			WHERE pi.picklist_id = $1 AND pi.deleted_at IS NULL AND pib.deleted_at IS NULL
		)
		AND in_stock AND NOT is_dispatch AND deleted_at IS NULL
		RETURNING id, material_id, shelf_id, quantity`,
		picklistID, by(ctx))
	return units, err
}

// ResetForReturn puts a returned unit back into stock awaiting QC.
func (r *UnitRepository) ResetForReturn(ctx context.Context, q database.Querier, id int64) error {
	res, err := q.ExecContext(ctx, `
		UPDATE inventory_units
		SET qc_status = 'Pending', qc_remark = NULL,
		    recommended_shelf = shelf_name, shelf_id = NULL, shelf_name = NULL, is_put_away = false,
		    is_picked = false, picker_id = NULL, picklist_id = NULL, picklist_name = NULL, picked_by = NULL,
		    is_dispatch = false, dispatch_at = NULL, dispatch_by = NULL,
		    audit_status = NULL, audit_remark = NULL, audit_at = NULL, audit_by = NULL,
		    is_return = true, return_at = NOW(), return_by = $2, in_stock = true,
		    updated_by = $2, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`,
		id, by(ctx))
	if err != nil {
		return err
	}
	return expectOne(res, "inventory unit")
}

// SetAuditOutcome mirrors an audit scan onto the unit. Scrapped units leave
// stock.
func (r *UnitRepository) SetAuditOutcome(ctx context.Context, q database.Querier, id int64, status string, remark *string) error {
	res, err := q.ExecContext(ctx, `
		UPDATE inventory_units
		SET audit_status = $2, audit_remark = $3, audit_at = NOW(), audit_by = $4,
		    in_stock = CASE WHEN $2 = 'Scrapped' THEN false ELSE in_stock END,
		    updated_by = $4, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`,
		id, status, remark, by(ctx))
	if err != nil {
		return err
	}
	return expectOne(res, "inventory unit")
}

// ListInStockByMaterials returns the live in-stock units of the materials,
// grouped by material and ordered by barcode.
func (r *UnitRepository) ListInStockByMaterials(ctx context.Context, q database.Querier, siteID int64, materialIDs []int64) ([]Unit, error) {
	var units []Unit
	err := q.SelectContext(ctx, &units, `
		SELECT `+unitColumns+` FROM inventory_units
		WHERE site_id = $1 AND material_id = ANY($2) AND in_stock AND deleted_at IS NULL
		ORDER BY material_id, barcode`,
		siteID, pq.Array(materialIDs))
	return units, err
}
