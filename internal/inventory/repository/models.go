package repository

import (
	"time"

	"github.com/shopspring/decimal"
)

// QC statuses
const (
	QCPending  = "Pending"
	QCApproved = "Approved"
	QCRejected = "Rejected"
)

// Audit outcomes recorded per unit
const (
	AuditFound            = "Found"
	AuditNotFound         = "Not Found"
	AuditScrapped         = "Scrapped"
	AuditManuallyApproved = "Manually Approved"
)

// Picklist statuses
const (
	PicklistPending    = "Pending"
	PicklistInProgress = "In Progress"
	PicklistCompleted  = "Completed"
)

// Audit statuses
const (
	AuditPending    = "Pending"
	AuditInProgress = "In Progress"
	AuditReconcile  = "Reconcile"
	AuditCompleted  = "Completed"
)

// FIFO log entry types
const (
	FIFOViolation = "Violation"
	FIFOOverride  = "Override"
)

// Stamps are the bookkeeping columns every table carries.
type Stamps struct {
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
	CreatedBy *string    `db:"created_by" json:"created_by,omitempty"`
	UpdatedBy *string    `db:"updated_by" json:"updated_by,omitempty"`
	DeletedBy *string    `db:"deleted_by" json:"deleted_by,omitempty"`
	DeletedAt *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
}

// Unit is one physical inventory unit, identified by its barcode.
type Unit struct {
	ID                  int64      `db:"id" json:"id"`
	SiteID              int64      `db:"site_id" json:"site_id"`
	MaterialID          int64      `db:"material_id" json:"material_id"`
	Barcode             string     `db:"barcode" json:"barcode"`
	MaterialName        string     `db:"material_name" json:"material_name"`
	MaterialDescription *string    `db:"material_description" json:"material_description,omitempty"`
	Quantity            int        `db:"quantity" json:"quantity"`
	Batch               *string    `db:"batch" json:"batch,omitempty"`
	Invoice             *string    `db:"invoice" json:"invoice,omitempty"`
	MRP                 *string    `db:"mrp" json:"mrp,omitempty"`
	ManufacturingDate   *time.Time `db:"manufacturing_date" json:"manufacturing_date,omitempty"`
	QCStatus            string     `db:"qc_status" json:"qc_status"`
	QCRemark            *string    `db:"qc_remark" json:"qc_remark,omitempty"`
	ShelfID             *int64     `db:"shelf_id" json:"shelf_id,omitempty"`
	ShelfName           *string    `db:"shelf_name" json:"shelf_name,omitempty"`
	RecommendedShelf    *string    `db:"recommended_shelf" json:"recommended_shelf,omitempty"`
	IsPutAway           bool       `db:"is_put_away" json:"is_put_away"`
	PickerID            *int64     `db:"picker_id" json:"picker_id,omitempty"`
	PicklistID          *int64     `db:"picklist_id" json:"picklist_id,omitempty"`
	PicklistName        *string    `db:"picklist_name" json:"picklist_name,omitempty"`
	PickedBy            *string    `db:"picked_by" json:"picked_by,omitempty"`
	IsPicked            bool       `db:"is_picked" json:"is_picked"`
	IsDispatch          bool       `db:"is_dispatch" json:"is_dispatch"`
	DispatchAt          *time.Time `db:"dispatch_at" json:"dispatch_at,omitempty"`
	DispatchBy          *string    `db:"dispatch_by" json:"dispatch_by,omitempty"`
	IsReturn            bool       `db:"is_return" json:"is_return"`
	ReturnAt            *time.Time `db:"return_at" json:"return_at,omitempty"`
	ReturnBy            *string    `db:"return_by" json:"return_by,omitempty"`
	InStock             bool       `db:"in_stock" json:"in_stock"`
	AuditStatus         *string    `db:"audit_status" json:"audit_status,omitempty"`
	AuditRemark         *string    `db:"audit_remark" json:"audit_remark,omitempty"`
	AuditAt             *time.Time `db:"audit_at" json:"audit_at,omitempty"`
	AuditBy             *string    `db:"audit_by" json:"audit_by,omitempty"`
	Stamps
}

// IsScrapped reports whether an audit scrapped the unit.
func (u *Unit) IsScrapped() bool {
	return u.AuditStatus != nil && *u.AuditStatus == AuditScrapped
}

// Material is a stock-keeping material. Quantity is derived from its units.
type Material struct {
	ID           int64            `db:"id" json:"id"`
	SiteID       int64            `db:"site_id" json:"site_id"`
	Name         string           `db:"name" json:"name"`
	Description  *string          `db:"description" json:"description,omitempty"`
	CustomerName *string          `db:"customer_name" json:"customer_name,omitempty"`
	UOM          *string          `db:"uom" json:"uom,omitempty"`
	NetWeight    *decimal.Decimal `db:"net_weight" json:"net_weight,omitempty"`
	NetVolume    *decimal.Decimal `db:"net_volume" json:"net_volume,omitempty"`
	Quantity     int64            `db:"quantity" json:"quantity"`
	Stamps
}

// Shelf is a storage location with a capacity in units.
type Shelf struct {
	ID             int64           `db:"id" json:"id"`
	SiteID         int64           `db:"site_id" json:"site_id"`
	RackID         *int64          `db:"rack_id" json:"rack_id,omitempty"`
	Name           string          `db:"name" json:"name"`
	Barcode        *string         `db:"barcode" json:"barcode,omitempty"`
	Capacity       decimal.Decimal `db:"capacity" json:"capacity"`
	LoadedCapacity decimal.Decimal `db:"loaded_capacity" json:"loaded_capacity"`
	Stamps
}

// Available returns the remaining capacity.
func (s *Shelf) Available() decimal.Decimal {
	return s.Capacity.Sub(s.LoadedCapacity)
}

// Customer is referenced by picklists.
type Customer struct {
	ID     int64  `db:"id" json:"id"`
	SiteID *int64 `db:"site_id" json:"site_id,omitempty"`
	Name   string `db:"name" json:"name"`
	Stamps
}

// QCRecord logs one QC decision.
type QCRecord struct {
	ID       int64   `db:"id" json:"id"`
	SiteID   int64   `db:"site_id" json:"site_id"`
	InwardID int64   `db:"inward_id" json:"inward_id"`
	Barcode  string  `db:"barcode" json:"barcode"`
	QCStatus string  `db:"qc_status" json:"qc_status"`
	Remark   *string `db:"remark" json:"remark,omitempty"`
	Stamps
}

// PutawayRecord logs one shelf move.
type PutawayRecord struct {
	ID              int64   `db:"id" json:"id"`
	SiteID          int64   `db:"site_id" json:"site_id"`
	InwardID        int64   `db:"inward_id" json:"inward_id"`
	Barcode         string  `db:"barcode" json:"barcode"`
	PreviousShelfID *int64  `db:"previous_shelf_id" json:"previous_shelf_id,omitempty"`
	PreviousShelf   *string `db:"previous_shelf" json:"previous_shelf,omitempty"`
	CurrentShelfID  int64   `db:"current_shelf_id" json:"current_shelf_id"`
	CurrentShelf    string  `db:"current_shelf" json:"current_shelf"`
	Quantity        int     `db:"quantity" json:"quantity"`
	Stamps
}

// Picklist is a per-customer fulfilment order.
type Picklist struct {
	ID             int64      `db:"id" json:"id"`
	SiteID         int64      `db:"site_id" json:"site_id"`
	CustomerID     int64      `db:"customer_id" json:"customer_id"`
	UserID         *int64     `db:"user_id" json:"user_id,omitempty"`
	Name           string     `db:"name" json:"name"`
	PicklistStatus string     `db:"picklist_status" json:"picklist_status"`
	StartedBy      *string    `db:"started_by" json:"started_by,omitempty"`
	StartedAt      *time.Time `db:"started_at" json:"started_at,omitempty"`
	CompletedBy    *string    `db:"completed_by" json:"completed_by,omitempty"`
	CompletedAt    *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	IsIssued       bool       `db:"is_issued" json:"is_issued"`
	IssueDate      *time.Time `db:"issue_date" json:"issue_date,omitempty"`
	IssueBy        *string    `db:"issue_by" json:"issue_by,omitempty"`
	IsPartial      bool       `db:"is_partial" json:"is_partial"`
	Invoice        *string    `db:"invoice" json:"invoice,omitempty"`
	VehicleNo      *string    `db:"vehicle_no" json:"vehicle_no,omitempty"`
	Stamps
}

// PicklistItem is one material line of a picklist.
type PicklistItem struct {
	ID                  int64   `db:"id" json:"id"`
	PicklistID          int64   `db:"picklist_id" json:"picklist_id"`
	MaterialID          int64   `db:"material_id" json:"material_id"`
	MaterialName        string  `db:"material_name" json:"material_name"`
	MaterialDescription *string `db:"material_description" json:"material_description,omitempty"`
	MaterialQuantity    int     `db:"material_quantity" json:"material_quantity"`
	PickedQuantity      int     `db:"picked_quantity" json:"picked_quantity"`
	Stamps
}

// Remaining returns how many units are still to be picked.
func (i *PicklistItem) Remaining() int {
	if r := i.MaterialQuantity - i.PickedQuantity; r > 0 {
		return r
	}
	return 0
}

// Pick links a unit to the picklist item it was picked for.
type Pick struct {
	ID             int64   `db:"id" json:"id"`
	PicklistItemID int64   `db:"picklist_item_id" json:"picklist_item_id"`
	InwardID       int64   `db:"inward_id" json:"inward_id"`
	Barcode        string  `db:"barcode" json:"barcode"`
	Quantity       int     `db:"quantity" json:"quantity"`
	Shelf          *string `db:"shelf" json:"shelf,omitempty"`
	Stamps
}

// PickerChange records a picker reassignment.
type PickerChange struct {
	ID               int64     `db:"id" json:"id"`
	PicklistID       int64     `db:"picklist_id" json:"picklist_id"`
	PreviousPickerID *int64    `db:"previous_picker_id" json:"previous_picker_id,omitempty"`
	CurrentPickerID  int64     `db:"current_picker_id" json:"current_picker_id"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	CreatedBy        *string   `db:"created_by" json:"created_by,omitempty"`
}

// FIFOLogEntry is an append-only record of a FIFO violation or override.
type FIFOLogEntry struct {
	ID               int64      `db:"id" json:"id"`
	SiteID           int64      `db:"site_id" json:"site_id"`
	PicklistID       *int64     `db:"picklist_id" json:"picklist_id,omitempty"`
	InwardID         int64      `db:"inward_id" json:"inward_id"`
	Barcode          string     `db:"barcode" json:"barcode"`
	Type             string     `db:"type" json:"type"`
	Reason           string     `db:"reason" json:"reason"`
	BlockedByBarcode *string    `db:"blocked_by_barcode" json:"blocked_by_barcode,omitempty"`
	BlockedByDate    *time.Time `db:"blocked_by_date" json:"blocked_by_date,omitempty"`
	Stamps
}

// Audit is a physical stock count.
type Audit struct {
	ID          int64      `db:"id" json:"id"`
	SiteID      int64      `db:"site_id" json:"site_id"`
	Number      string     `db:"number" json:"number"`
	AuditStatus string     `db:"audit_status" json:"audit_status"`
	StartAt     *time.Time `db:"start_at" json:"start_at,omitempty"`
	StartBy     *string    `db:"start_by" json:"start_by,omitempty"`
	EndAt       *time.Time `db:"end_at" json:"end_at,omitempty"`
	EndBy       *string    `db:"end_by" json:"end_by,omitempty"`
	Remark      *string    `db:"remark" json:"remark,omitempty"`
	Stamps
}

// AuditItem holds the per-material counters of an audit. The counters
// always satisfy found + scrapped + manually_approved + not_found = available.
type AuditItem struct {
	ID                       int64   `db:"id" json:"id"`
	AuditID                  int64   `db:"audit_id" json:"audit_id"`
	MaterialID               int64   `db:"material_id" json:"material_id"`
	MaterialName             string  `db:"material_name" json:"material_name"`
	MaterialDescription      *string `db:"material_description" json:"material_description,omitempty"`
	AvailableQuantity        int64   `db:"available_quantity" json:"available_quantity"`
	FoundQuantity            int64   `db:"found_quantity" json:"found_quantity"`
	ScrappedQuantity         int64   `db:"scrapped_quantity" json:"scrapped_quantity"`
	ManuallyApprovedQuantity int64   `db:"manually_approved_quantity" json:"manually_approved_quantity"`
	NotFoundQuantity         int64   `db:"not_found_quantity" json:"not_found_quantity"`
	Stamps
}

// AuditItemBarcode is the per-unit line of an audit item.
type AuditItemBarcode struct {
	ID            int64   `db:"id" json:"id"`
	AuditItemID   int64   `db:"audit_item_id" json:"audit_item_id"`
	InwardID      int64   `db:"inward_id" json:"inward_id"`
	Barcode       string  `db:"barcode" json:"barcode"`
	Quantity      int     `db:"quantity" json:"quantity"`
	Shelf         *string `db:"shelf" json:"shelf,omitempty"`
	Remark        *string `db:"remark" json:"remark,omitempty"`
	BarcodeStatus string  `db:"barcode_status" json:"barcode_status"`
	Stamps
}

// ReturnRecord keeps the dispatch context of a returned unit.
type ReturnRecord struct {
	ID                  int64      `db:"id" json:"id"`
	SiteID              int64      `db:"site_id" json:"site_id"`
	InwardID            int64      `db:"inward_id" json:"inward_id"`
	Barcode             string     `db:"barcode" json:"barcode"`
	Quantity            int        `db:"quantity" json:"quantity"`
	MaterialName        string     `db:"material_name" json:"material_name"`
	MaterialDescription *string    `db:"material_description" json:"material_description,omitempty"`
	InwardDate          time.Time  `db:"inward_date" json:"inward_date"`
	DispatchAt          *time.Time `db:"dispatch_at" json:"dispatch_at,omitempty"`
	DispatchBy          *string    `db:"dispatch_by" json:"dispatch_by,omitempty"`
	PicklistID          *int64     `db:"picklist_id" json:"picklist_id,omitempty"`
	PicklistName        *string    `db:"picklist_name" json:"picklist_name,omitempty"`
	PickedBy            *string    `db:"picked_by" json:"picked_by,omitempty"`
	LastShelfID         *int64     `db:"last_shelf_id" json:"last_shelf_id,omitempty"`
	LastShelf           *string    `db:"last_shelf" json:"last_shelf,omitempty"`
	Remark              *string    `db:"remark" json:"remark,omitempty"`
	Stamps
}
