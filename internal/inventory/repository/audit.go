package repository

import (
	"context"
	"fmt"

	"github.com/lib/pq"
	"github.com/wareflow/wareflow-backend/pkg/database"
)

const auditColumns = `id, site_id, number, audit_status, start_at, start_by, end_at, end_by, remark,
	created_at, updated_at, created_by, updated_by, deleted_by, deleted_at`

const auditItemColumns = `id, audit_id, material_id, material_name, material_description,
	available_quantity, found_quantity, scrapped_quantity, manually_approved_quantity, not_found_quantity,
	created_at, updated_at, created_by, updated_by, deleted_by, deleted_at`

const auditBarcodeColumns = `id, audit_item_id, inward_id, barcode, quantity, shelf, remark, barcode_status,
	created_at, updated_at, created_by, updated_by, deleted_by, deleted_at`

// outcomeCounters maps an audit outcome to the audit item counter it feeds.
var outcomeCounters = map[string]string{
	AuditFound:            "found_quantity",
	AuditScrapped:         "scrapped_quantity",
	AuditManuallyApproved: "manually_approved_quantity",
}

// AuditRepository persists audits, their per-material items and the
// per-unit barcode lines.
type AuditRepository struct{}

// NewAuditRepository creates a new audit repository
func NewAuditRepository() *AuditRepository {
	return &AuditRepository{}
}

// Create inserts an audit
func (r *AuditRepository) Create(ctx context.Context, q database.Querier, a *Audit) error {
	stamp := by(ctx)
	return q.QueryRowxContext(ctx, `
		INSERT INTO audits (site_id, number, audit_status, remark, created_by, updated_by)
		VALUES ($1, $2, $3, $4, $5, $5)
		RETURNING id, created_at, updated_at`,
		a.SiteID, a.Number, a.AuditStatus, a.Remark, stamp,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
}

// GetByID returns a live audit
func (r *AuditRepository) GetByID(ctx context.Context, q database.Querier, id int64) (*Audit, error) {
	var a Audit
	err := q.GetContext(ctx, &a, `SELECT `+auditColumns+` FROM audits WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return nil, notFound(err, "audit")
	}
	return &a, nil
}

// GetByIDForUpdate returns a live audit and locks its row
func (r *AuditRepository) GetByIDForUpdate(ctx context.Context, q database.Querier, id int64) (*Audit, error) {
	var a Audit
	err := q.GetContext(ctx, &a,
		`SELECT `+auditColumns+` FROM audits WHERE id = $1 AND deleted_at IS NULL FOR NO KEY UPDATE`, id)
	if err != nil {
		return nil, notFound(err, "audit")
	}
	return &a, nil
}

// Save writes the status and stamps of an audit back
func (r *AuditRepository) Save(ctx context.Context, q database.Querier, a *Audit) error {
	res, err := q.ExecContext(ctx, `
		UPDATE audits
		SET audit_status = $2, start_at = $3, start_by = $4, end_at = $5, end_by = $6, remark = $7,
		    updated_by = $8, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`,
		a.ID, a.AuditStatus, a.StartAt, a.StartBy, a.EndAt, a.EndBy, a.Remark, by(ctx))
	if err != nil {
		return err
	}
	return expectOne(res, "audit")
}

// CreateItem inserts an audit item with every unit still not found
func (r *AuditRepository) CreateItem(ctx context.Context, q database.Querier, it *AuditItem) error {
	stamp := by(ctx)
	return q.QueryRowxContext(ctx, `
		INSERT INTO audit_items (audit_id, material_id, material_name, material_description,
			available_quantity, not_found_quantity, created_by, updated_by)
		VALUES ($1, $2, $3, $4, $5, $5, $6, $6)
		RETURNING id, not_found_quantity, created_at, updated_at`,
		it.AuditID, it.MaterialID, it.MaterialName, it.MaterialDescription, it.AvailableQuantity, stamp,
	).Scan(&it.ID, &it.NotFoundQuantity, &it.CreatedAt, &it.UpdatedAt)
}

// CreateBarcodes inserts one Not Found line per unit under the audit item
// and returns how many were written.
func (r *AuditRepository) CreateBarcodes(ctx context.Context, q database.Querier, itemID int64, units []Unit) (int64, error) {
	if len(units) == 0 {
		return 0, nil
	}
	ids := make([]int64, len(units))
	barcodes := make([]string, len(units))
	quantities := make([]int64, len(units))
	shelves := make([]string, len(units))
	for i, u := range units {
		ids[i] = u.ID
		barcodes[i] = u.Barcode
		quantities[i] = int64(u.Quantity)
		if u.ShelfName != nil {
			shelves[i] = *u.ShelfName
		}
	}

	res, err := q.ExecContext(ctx, `
		INSERT INTO audit_item_barcodes (audit_item_id, inward_id, barcode, quantity, shelf, barcode_status,
			created_by, updated_by)
		SELECT $1, t.inward_id, t.barcode, t.quantity, NULLIF(t.shelf, ''), 'Not Found', $6, $6
		FROM unnest($2::bigint[], $3::text[], $4::int[], $5::text[]) AS t(inward_id, barcode, quantity, shelf)`,
		itemID, pq.Array(ids), pq.Array(barcodes), pq.Array(quantities), pq.Array(shelves), by(ctx))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ScanLine is an audit barcode line joined with its unit, ready for a scan
type ScanLine struct {
	AuditItemBarcode
	MaterialID int64  `db:"material_id"`
	SiteID     int64  `db:"site_id"`
	ShelfID    *int64 `db:"shelf_id"`
	InStock    bool   `db:"in_stock"`
}

// LinesForScan locks the audit's barcode lines for the given barcodes, and
// their units, in id order.
func (r *AuditRepository) LinesForScan(ctx context.Context, q database.Querier, auditID int64, barcodes []string) ([]ScanLine, error) {
	var lines []ScanLine
	err := q.SelectContext(ctx, &lines, `
		SELECT aib.id, aib.audit_item_id, aib.inward_id, aib.barcode, aib.quantity, aib.shelf, aib.remark,
		       aib.barcode_status, aib.created_at, aib.updated_at, aib.created_by, aib.updated_by,
		       aib.deleted_by, aib.deleted_at,
		       u.material_id, u.site_id, u.shelf_id, u.in_stock
		FROM audit_item_barcodes aib
		JOIN audit_items ai ON ai.id = aib.audit_item_id
		JOIN inventory_units u ON u.id = aib.inward_id
		WHERE ai.audit_id = $1 AND aib.barcode = ANY($2)
		  AND aib.deleted_at IS NULL AND ai.deleted_at IS NULL
		ORDER BY aib.id
		FOR NO KEY UPDATE OF aib, u`,
		auditID, pq.Array(barcodes))
	return lines, err
}

// SetBarcodeStatus records the outcome of one scanned line
func (r *AuditRepository) SetBarcodeStatus(ctx context.Context, q database.Querier, id int64, status string, remark *string) error {
	res, err := q.ExecContext(ctx, `
		UPDATE audit_item_barcodes
		SET barcode_status = $2, remark = COALESCE($3, remark), updated_by = $4, updated_at = NOW()
		WHERE id = $1`,
		id, status, remark, by(ctx))
	if err != nil {
		return err
	}
	return expectOne(res, "audit barcode")
}

// ShiftCounters moves n units of an audit item from not found to the
// outcome counter. not_found_quantity is floored at zero.
func (r *AuditRepository) ShiftCounters(ctx context.Context, q database.Querier, itemID int64, outcome string, n int64) error {
	column, ok := outcomeCounters[outcome]
	if !ok {
		return fmt.Errorf("audit: no counter for outcome %q", outcome)
	}
	res, err := q.ExecContext(ctx, fmt.Sprintf(`
		UPDATE audit_items
		SET %[1]s = %[1]s + LEAST($2, not_found_quantity),
		    not_found_quantity = GREATEST(not_found_quantity - $2, 0),
		    updated_by = $3, updated_at = NOW()
		WHERE id = $1`, column),
		itemID, n, by(ctx))
	if err != nil {
		return err
	}
	return expectOne(res, "audit item")
}

// Items returns the live items of an audit
func (r *AuditRepository) Items(ctx context.Context, q database.Querier, auditID int64) ([]AuditItem, error) {
	var items []AuditItem
	err := q.SelectContext(ctx, &items, `
		SELECT `+auditItemColumns+` FROM audit_items
		WHERE audit_id = $1 AND deleted_at IS NULL
		ORDER BY id`, auditID)
	return items, err
}

// Barcodes returns the live barcode lines of an audit
func (r *AuditRepository) Barcodes(ctx context.Context, q database.Querier, auditID int64) ([]AuditItemBarcode, error) {
	var lines []AuditItemBarcode
	err := q.SelectContext(ctx, &lines, `
		SELECT `+auditBarcodeColumns+` FROM audit_item_barcodes
		WHERE deleted_at IS NULL
		  AND audit_item_id IN (SELECT id FROM audit_items WHERE audit_id = $1)
		ORDER BY audit_item_id, barcode`, auditID)
	return lines, err
}
