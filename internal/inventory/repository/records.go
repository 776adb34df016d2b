package repository

import (
	"context"

	"github.com/wareflow/wareflow-backend/pkg/database"
)

// RecordRepository appends to the traceability logs: QC decisions, shelf
// moves, returns, FIFO violations and picker changes.
type RecordRepository struct{}

// NewRecordRepository creates a new record repository
func NewRecordRepository() *RecordRepository {
	return &RecordRepository{}
}

// CreateQC logs a QC decision
func (r *RecordRepository) CreateQC(ctx context.Context, q database.Querier, rec *QCRecord) error {
	stamp := by(ctx)
	return q.QueryRowxContext(ctx, `
		INSERT INTO qc_records (site_id, inward_id, barcode, qc_status, remark, created_by, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		RETURNING id, created_at, updated_at`,
		rec.SiteID, rec.InwardID, rec.Barcode, rec.QCStatus, rec.Remark, stamp,
	).Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)
}

// CreatePutaway logs a shelf move
func (r *RecordRepository) CreatePutaway(ctx context.Context, q database.Querier, rec *PutawayRecord) error {
	stamp := by(ctx)
	return q.QueryRowxContext(ctx, `
		INSERT INTO putaways (site_id, inward_id, barcode, previous_shelf_id, previous_shelf,
			current_shelf_id, current_shelf, quantity, created_by, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		RETURNING id, created_at, updated_at`,
		rec.SiteID, rec.InwardID, rec.Barcode, rec.PreviousShelfID, rec.PreviousShelf,
		rec.CurrentShelfID, rec.CurrentShelf, rec.Quantity, stamp,
	).Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)
}

// CreateReturn logs a returned unit together with its dispatch context
func (r *RecordRepository) CreateReturn(ctx context.Context, q database.Querier, rec *ReturnRecord) error {
	stamp := by(ctx)
	return q.QueryRowxContext(ctx, `
		INSERT INTO return_barcodes (site_id, inward_id, barcode, quantity, material_name, material_description,
			inward_date, dispatch_at, dispatch_by, picklist_id, picklist_name, picked_by,
			last_shelf_id, last_shelf, remark, created_by, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $16)
		RETURNING id, created_at, updated_at`,
		rec.SiteID, rec.InwardID, rec.Barcode, rec.Quantity, rec.MaterialName, rec.MaterialDescription,
		rec.InwardDate, rec.DispatchAt, rec.DispatchBy, rec.PicklistID, rec.PicklistName, rec.PickedBy,
		rec.LastShelfID, rec.LastShelf, rec.Remark, stamp,
	).Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)
}

// CreateFIFOEntry appends a FIFO violation or override. Violations are
// written on the pool, outside the failing request transaction.
func (r *RecordRepository) CreateFIFOEntry(ctx context.Context, q database.Querier, e *FIFOLogEntry) error {
	stamp := by(ctx)
	return q.QueryRowxContext(ctx, `
		INSERT INTO fifo_violations (site_id, picklist_id, inward_id, barcode, type, reason,
			blocked_by_barcode, blocked_by_date, created_by, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		RETURNING id, created_at, updated_at`,
		e.SiteID, e.PicklistID, e.InwardID, e.Barcode, e.Type, e.Reason,
		e.BlockedByBarcode, e.BlockedByDate, stamp,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
}

// CreatePickerChange records a picker reassignment
func (r *RecordRepository) CreatePickerChange(ctx context.Context, q database.Querier, c *PickerChange) error {
	stamp := by(ctx)
	c.CreatedBy = &stamp
	return q.QueryRowxContext(ctx, `
		INSERT INTO picklist_pickers (picklist_id, previous_picker_id, current_picker_id, created_by)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		c.PicklistID, c.PreviousPickerID, c.CurrentPickerID, stamp,
	).Scan(&c.ID, &c.CreatedAt)
}
