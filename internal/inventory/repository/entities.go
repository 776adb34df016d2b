package repository

import "github.com/wareflow/wareflow-backend/pkg/query"

// Entity names registered with the query engine
const (
	EntityUnit         = "unit"
	EntityMaterial     = "material"
	EntityShelf        = "shelf"
	EntityCustomer     = "customer"
	EntityPicklist     = "picklist"
	EntityPicklistItem = "picklist_item"
	EntityPick         = "pick"
	EntityPutaway      = "putaway"
	EntityQCRecord     = "qc_record"
	EntityReturn       = "return"
	EntityFIFOEntry    = "fifo_violation"
	EntityAudit        = "audit"
	EntityAuditItem    = "audit_item"
	EntityAuditBarcode = "audit_item_barcode"
)

var stampColumns = []string{"created_at", "updated_at", "created_by", "updated_by", "deleted_by", "deleted_at"}

func columns(cols ...string) []string {
	return append(cols, stampColumns...)
}

func belongsTo(entity, fk string) query.Association {
	return query.Association{Entity: entity, ForeignKey: fk, Kind: query.BelongsTo}
}

var newestFirst = []query.Order{{Field: "created_at", Direction: query.Desc}, {Field: "id", Direction: query.Desc}}

// Schema returns the registry of every queryable warehouse table.
func Schema() *query.Schema {
	return query.NewSchema(
		&query.Entity{
			Name:  EntityUnit,
			Table: "inventory_units",
			Columns: columns("id", "site_id", "material_id", "barcode", "material_name", "material_description",
				"quantity", "batch", "invoice", "mrp", "manufacturing_date", "qc_status", "qc_remark",
				"shelf_id", "shelf_name", "recommended_shelf", "is_put_away", "picker_id", "picklist_id",
				"picklist_name", "picked_by", "is_picked", "is_dispatch", "dispatch_at", "dispatch_by",
				"is_return", "return_at", "return_by", "in_stock", "audit_status", "audit_remark",
				"audit_at", "audit_by"),
			TenantColumn:     "site_id",
			SoftDeleteColumn: "deleted_at",
			DefaultOrder:     newestFirst,
			Associations: map[string]query.Association{
				"material": belongsTo(EntityMaterial, "material_id"),
				"shelf":    belongsTo(EntityShelf, "shelf_id"),
				"picklist": belongsTo(EntityPicklist, "picklist_id"),
			},
			Scopes: map[string][]query.Predicate{
				"approved": {query.Equals{Field: "qc_status", Value: QCApproved}},
				"in_stock": {query.Equals{Field: "in_stock", Value: true}},
				"pickable": {
					query.Equals{Field: "qc_status", Value: QCApproved},
					query.Equals{Field: "in_stock", Value: true},
					query.Equals{Field: "is_picked", Value: false},
					query.Equals{Field: "is_put_away", Value: true},
				},
				"dispatched": {
					query.Equals{Field: "is_dispatch", Value: true},
					query.Equals{Field: "in_stock", Value: false},
				},
			},
		},
		&query.Entity{
			Name:  EntityMaterial,
			Table: "materials",
			Columns: columns("id", "site_id", "name", "description", "customer_name", "uom",
				"net_weight", "net_volume", "quantity"),
			TenantColumn:     "site_id",
			SoftDeleteColumn: "deleted_at",
			DefaultOrder:     []query.Order{{Field: "name", Direction: query.Asc}},
		},
		&query.Entity{
			Name:             EntityShelf,
			Table:            "shelves",
			Columns:          columns("id", "site_id", "rack_id", "name", "barcode", "capacity", "loaded_capacity"),
			TenantColumn:     "site_id",
			SoftDeleteColumn: "deleted_at",
			DefaultOrder:     []query.Order{{Field: "name", Direction: query.Asc}},
		},
		&query.Entity{
			Name:             EntityCustomer,
			Table:            "customers",
			Columns:          columns("id", "site_id", "name"),
			TenantColumn:     "site_id",
			SoftDeleteColumn: "deleted_at",
			DefaultOrder:     []query.Order{{Field: "name", Direction: query.Asc}},
		},
		&query.Entity{
			Name:  EntityPicklist,
			Table: "picklists",
			Columns: columns("id", "site_id", "customer_id", "user_id", "name", "picklist_status",
				"started_by", "started_at", "completed_by", "completed_at", "is_issued", "issue_date",
				"issue_by", "is_partial", "invoice", "vehicle_no"),
			TenantColumn:     "site_id",
			SoftDeleteColumn: "deleted_at",
			DefaultOrder:     newestFirst,
			Associations: map[string]query.Association{
				"customer": belongsTo(EntityCustomer, "customer_id"),
			},
			Scopes: map[string][]query.Predicate{
				"open":   {query.Equals{Field: "is_issued", Value: false}},
				"issued": {query.Equals{Field: "is_issued", Value: true}},
			},
		},
		&query.Entity{
			Name:  EntityPicklistItem,
			Table: "picklist_items",
			Columns: columns("id", "picklist_id", "material_id", "material_name", "material_description",
				"material_quantity", "picked_quantity"),
			SoftDeleteColumn: "deleted_at",
			DefaultOrder:     []query.Order{{Field: "id", Direction: query.Asc}},
			Associations: map[string]query.Association{
				"picklist": belongsTo(EntityPicklist, "picklist_id"),
				"material": belongsTo(EntityMaterial, "material_id"),
			},
		},
		&query.Entity{
			Name:             EntityPick,
			Table:            "picklist_item_barcodes",
			Columns:          columns("id", "picklist_item_id", "inward_id", "barcode", "quantity", "shelf"),
			SoftDeleteColumn: "deleted_at",
			DefaultOrder:     newestFirst,
			Associations: map[string]query.Association{
				"item": belongsTo(EntityPicklistItem, "picklist_item_id"),
				"unit": belongsTo(EntityUnit, "inward_id"),
			},
		},
		&query.Entity{
			Name:  EntityPutaway,
			Table: "putaways",
			Columns: columns("id", "site_id", "inward_id", "barcode", "previous_shelf_id", "previous_shelf",
				"current_shelf_id", "current_shelf", "quantity"),
			TenantColumn:     "site_id",
			SoftDeleteColumn: "deleted_at",
			DefaultOrder:     newestFirst,
			Associations: map[string]query.Association{
				"unit": belongsTo(EntityUnit, "inward_id"),
			},
		},
		&query.Entity{
			Name:             EntityQCRecord,
			Table:            "qc_records",
			Columns:          columns("id", "site_id", "inward_id", "barcode", "qc_status", "remark"),
			TenantColumn:     "site_id",
			SoftDeleteColumn: "deleted_at",
			DefaultOrder:     newestFirst,
			Associations: map[string]query.Association{
				"unit": belongsTo(EntityUnit, "inward_id"),
			},
		},
		&query.Entity{
			Name:  EntityReturn,
			Table: "return_barcodes",
			Columns: columns("id", "site_id", "inward_id", "barcode", "quantity", "material_name",
				"material_description", "inward_date", "dispatch_at", "dispatch_by", "picklist_id",
				"picklist_name", "picked_by", "last_shelf_id", "last_shelf", "remark"),
			TenantColumn:     "site_id",
			SoftDeleteColumn: "deleted_at",
			DefaultOrder:     newestFirst,
			Associations: map[string]query.Association{
				"unit":     belongsTo(EntityUnit, "inward_id"),
				"picklist": belongsTo(EntityPicklist, "picklist_id"),
			},
		},
		&query.Entity{
			Name:  EntityFIFOEntry,
			Table: "fifo_violations",
			Columns: columns("id", "site_id", "picklist_id", "inward_id", "barcode", "type", "reason",
				"blocked_by_barcode", "blocked_by_date"),
			TenantColumn:     "site_id",
			SoftDeleteColumn: "deleted_at",
			DefaultOrder:     newestFirst,
			Associations: map[string]query.Association{
				"picklist": belongsTo(EntityPicklist, "picklist_id"),
			},
		},
		&query.Entity{
			Name:  EntityAudit,
			Table: "audits",
			Columns: columns("id", "site_id", "number", "audit_status", "start_at", "start_by",
				"end_at", "end_by", "remark"),
			TenantColumn:     "site_id",
			SoftDeleteColumn: "deleted_at",
			DefaultOrder:     newestFirst,
		},
		&query.Entity{
			Name:  EntityAuditItem,
			Table: "audit_items",
			Columns: columns("id", "audit_id", "material_id", "material_name", "material_description",
				"available_quantity", "found_quantity", "scrapped_quantity", "manually_approved_quantity",
				"not_found_quantity"),
			SoftDeleteColumn: "deleted_at",
			DefaultOrder:     []query.Order{{Field: "id", Direction: query.Asc}},
			Associations: map[string]query.Association{
				"audit":    belongsTo(EntityAudit, "audit_id"),
				"material": belongsTo(EntityMaterial, "material_id"),
			},
		},
		&query.Entity{
			Name:  EntityAuditBarcode,
			Table: "audit_item_barcodes",
			Columns: columns("id", "audit_item_id", "inward_id", "barcode", "quantity", "shelf", "remark",
				"barcode_status"),
			SoftDeleteColumn: "deleted_at",
			DefaultOrder:     []query.Order{{Field: "barcode", Direction: query.Asc}},
			Associations: map[string]query.Association{
				"item": belongsTo(EntityAuditItem, "audit_item_id"),
			},
		},
	)
}

// MaterialRef is the projection of a material joined onto another row
type MaterialRef struct {
	ID   *int64  `db:"id" json:"id,omitempty"`
	Name *string `db:"name" json:"name,omitempty"`
	UOM  *string `db:"uom" json:"uom,omitempty"`
}

// ShelfRef is the projection of a shelf joined onto another row
type ShelfRef struct {
	ID      *int64  `db:"id" json:"id,omitempty"`
	Name    *string `db:"name" json:"name,omitempty"`
	Barcode *string `db:"barcode" json:"barcode,omitempty"`
}

// CustomerRef is the projection of a customer joined onto another row
type CustomerRef struct {
	ID   *int64  `db:"id" json:"id,omitempty"`
	Name *string `db:"name" json:"name,omitempty"`
}

// PicklistRef is the projection of a picklist joined onto another row
type PicklistRef struct {
	ID   *int64  `db:"id" json:"id,omitempty"`
	Name *string `db:"name" json:"name,omitempty"`
}

// Projections used with IncludeModel; they match the Ref structs above.
var (
	MaterialRefColumns = []string{"id", "name", "uom"}
	ShelfRefColumns    = []string{"id", "name", "barcode"}
	CustomerRefColumns = []string{"id", "name"}
	PicklistRefColumns = []string{"id", "name"}
)

// UnitRow is a unit as listed, with its material and shelf
type UnitRow struct {
	Unit
	Material *MaterialRef `db:"material" json:"material,omitempty"`
	Shelf    *ShelfRef    `db:"shelf" json:"shelf,omitempty"`
}

// PicklistRow is a picklist as listed, with its customer
type PicklistRow struct {
	Picklist
	Customer *CustomerRef `db:"customer" json:"customer,omitempty"`
}

// AuditItemRow is an audit item as listed, with its material
type AuditItemRow struct {
	AuditItem
	Material *MaterialRef `db:"material" json:"material,omitempty"`
}

// FIFOLogRow is a FIFO log entry as listed, with its picklist
type FIFOLogRow struct {
	FIFOLogEntry
	Picklist *PicklistRef `db:"picklist" json:"picklist,omitempty"`
}
