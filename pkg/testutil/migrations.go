package testutil

// stampColumns are appended to every warehouse table.
const stampColumns = `
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	created_by VARCHAR(255),
	updated_by VARCHAR(255),
	deleted_by VARCHAR(255),
	deleted_at TIMESTAMPTZ`

// WarehouseMigrations returns the warehouse schema, applied in order inside
// an isolated test schema.
func WarehouseMigrations() []string {
	return []string{
		`CREATE TABLE sites (
			id BIGSERIAL PRIMARY KEY,
			name VARCHAR(255) NOT NULL,` + stampColumns + `
		)`,

		`CREATE TABLE customers (
			id BIGSERIAL PRIMARY KEY,
			site_id BIGINT REFERENCES sites(id),
			name VARCHAR(255) NOT NULL,` + stampColumns + `
		)`,

		`CREATE TABLE materials (
			id BIGSERIAL PRIMARY KEY,
			site_id BIGINT NOT NULL REFERENCES sites(id),
			name VARCHAR(255) NOT NULL,
			description TEXT,
			customer_name VARCHAR(255),
			uom VARCHAR(50),
			net_weight NUMERIC(14,3),
			net_volume NUMERIC(14,3),
			quantity BIGINT NOT NULL DEFAULT 0,` + stampColumns + `,
			CONSTRAINT materials_quantity_non_negative CHECK (quantity >= 0)
		)`,
		`CREATE UNIQUE INDEX materials_name_key ON materials (name) WHERE deleted_at IS NULL`,

		`CREATE TABLE shelves (
			id BIGSERIAL PRIMARY KEY,
			site_id BIGINT NOT NULL REFERENCES sites(id),
			rack_id BIGINT,
			name VARCHAR(255) NOT NULL,
			barcode VARCHAR(64),
			capacity NUMERIC(14,3) NOT NULL DEFAULT 0,
			loaded_capacity NUMERIC(14,3) NOT NULL DEFAULT 0,` + stampColumns + `,
			CONSTRAINT shelves_load_within_capacity CHECK (loaded_capacity <= capacity),
			CONSTRAINT shelves_load_non_negative CHECK (loaded_capacity >= 0)
		)`,

		`CREATE TABLE picklists (
			id BIGSERIAL PRIMARY KEY,
			site_id BIGINT NOT NULL REFERENCES sites(id),
			customer_id BIGINT NOT NULL REFERENCES customers(id),
			user_id BIGINT,
			name VARCHAR(32) NOT NULL CONSTRAINT picklists_name_key UNIQUE,
			picklist_status VARCHAR(20) NOT NULL DEFAULT 'Pending'
				CONSTRAINT picklists_status_valid CHECK (picklist_status IN ('Pending', 'In Progress', 'Completed')),
			started_by VARCHAR(255),
			started_at TIMESTAMPTZ,
			completed_by VARCHAR(255),
			completed_at TIMESTAMPTZ,
			is_issued BOOLEAN NOT NULL DEFAULT false,
			issue_date TIMESTAMPTZ,
			issue_by VARCHAR(255),
			is_partial BOOLEAN NOT NULL DEFAULT false,
			invoice VARCHAR(255),
			vehicle_no VARCHAR(64),` + stampColumns + `
		)`,

		`CREATE TABLE inventory_units (
			id BIGSERIAL PRIMARY KEY,
			site_id BIGINT NOT NULL REFERENCES sites(id),
			material_id BIGINT NOT NULL REFERENCES materials(id),
			barcode VARCHAR(64) NOT NULL CONSTRAINT inventory_units_barcode_key UNIQUE,
			material_name VARCHAR(255) NOT NULL,
			material_description TEXT,
			quantity INT NOT NULL DEFAULT 1,
			batch VARCHAR(255),
			invoice VARCHAR(255),
			mrp VARCHAR(64),
			manufacturing_date DATE,
			qc_status VARCHAR(20) NOT NULL DEFAULT 'Pending'
				CONSTRAINT inventory_units_qc_status_valid CHECK (qc_status IN ('Pending', 'Approved', 'Rejected')),
			qc_remark TEXT,
			shelf_id BIGINT REFERENCES shelves(id),
			shelf_name VARCHAR(255),
			recommended_shelf VARCHAR(255),
			is_put_away BOOLEAN NOT NULL DEFAULT false,
			picker_id BIGINT,
			picklist_id BIGINT REFERENCES picklists(id),
			picklist_name VARCHAR(32),
			picked_by VARCHAR(255),
			is_picked BOOLEAN NOT NULL DEFAULT false,
			is_dispatch BOOLEAN NOT NULL DEFAULT false,
			dispatch_at TIMESTAMPTZ,
			dispatch_by VARCHAR(255),
			is_return BOOLEAN NOT NULL DEFAULT false,
			return_at TIMESTAMPTZ,
			return_by VARCHAR(255),
			in_stock BOOLEAN NOT NULL DEFAULT true,
			audit_status VARCHAR(30)
				CONSTRAINT inventory_units_audit_status_valid CHECK (audit_status IN ('Found', 'Not Found', 'Scrapped', 'Manually Approved')),
			audit_remark TEXT,
			audit_at TIMESTAMPTZ,
			audit_by VARCHAR(255),` + stampColumns + `,
			CONSTRAINT inventory_units_shelved_is_put_away CHECK (shelf_id IS NULL OR is_put_away)
		)`,
		`CREATE INDEX inventory_units_fifo_idx ON inventory_units (material_id, site_id, created_at)
			WHERE deleted_at IS NULL AND qc_status = 'Approved' AND NOT is_picked AND in_stock`,
		`CREATE INDEX inventory_units_picklist_idx ON inventory_units (picklist_id) WHERE picklist_id IS NOT NULL`,

		`CREATE TABLE qc_records (
			id BIGSERIAL PRIMARY KEY,
			site_id BIGINT NOT NULL,
			inward_id BIGINT NOT NULL REFERENCES inventory_units(id),
			barcode VARCHAR(64) NOT NULL,
			qc_status VARCHAR(20) NOT NULL,
			remark TEXT,` + stampColumns + `
		)`,

		`CREATE TABLE putaways (
			id BIGSERIAL PRIMARY KEY,
			site_id BIGINT NOT NULL,
			inward_id BIGINT NOT NULL REFERENCES inventory_units(id),
			barcode VARCHAR(64) NOT NULL,
			previous_shelf_id BIGINT,
			previous_shelf VARCHAR(255),
			current_shelf_id BIGINT NOT NULL REFERENCES shelves(id),
			current_shelf VARCHAR(255) NOT NULL,
			quantity INT NOT NULL,` + stampColumns + `
		)`,

		`CREATE TABLE picklist_items (
			id BIGSERIAL PRIMARY KEY,
			picklist_id BIGINT NOT NULL REFERENCES picklists(id),
			material_id BIGINT NOT NULL REFERENCES materials(id),
			material_name VARCHAR(255) NOT NULL,
			material_description TEXT,
			material_quantity INT NOT NULL CHECK (material_quantity > 0),
			picked_quantity INT NOT NULL DEFAULT 0,` + stampColumns + `,
			CONSTRAINT picklist_items_picklist_material_key UNIQUE (picklist_id, material_id),
			CONSTRAINT picklist_items_picked_within_target CHECK (picked_quantity <= material_quantity),
			CONSTRAINT picklist_items_picked_non_negative CHECK (picked_quantity >= 0)
		)`,

		`CREATE TABLE picklist_item_barcodes (
			id BIGSERIAL PRIMARY KEY,
			picklist_item_id BIGINT NOT NULL REFERENCES picklist_items(id),
			inward_id BIGINT NOT NULL REFERENCES inventory_units(id),
			barcode VARCHAR(64) NOT NULL,
			quantity INT NOT NULL DEFAULT 1,
			shelf VARCHAR(255),` + stampColumns + `,
			CONSTRAINT picklist_item_barcodes_item_unit_key UNIQUE (picklist_item_id, inward_id)
		)`,

		`CREATE TABLE picklist_pickers (
			id BIGSERIAL PRIMARY KEY,
			picklist_id BIGINT NOT NULL REFERENCES picklists(id),
			previous_picker_id BIGINT,
			current_picker_id BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			created_by VARCHAR(255)
		)`,

		// append-only log, written outside the request transaction
		`CREATE TABLE fifo_violations (
			id BIGSERIAL PRIMARY KEY,
			site_id BIGINT NOT NULL,
			picklist_id BIGINT,
			inward_id BIGINT NOT NULL,
			barcode VARCHAR(64) NOT NULL,
			type VARCHAR(20) NOT NULL CHECK (type IN ('Violation', 'Override')),
			reason TEXT NOT NULL,
			blocked_by_barcode VARCHAR(64),
			blocked_by_date TIMESTAMPTZ,` + stampColumns + `
		)`,

		`CREATE TABLE audits (
			id BIGSERIAL PRIMARY KEY,
			site_id BIGINT NOT NULL REFERENCES sites(id),
			number VARCHAR(32) NOT NULL CONSTRAINT audits_number_key UNIQUE,
			audit_status VARCHAR(20) NOT NULL DEFAULT 'Pending'
				CONSTRAINT audits_status_valid CHECK (audit_status IN ('Pending', 'In Progress', 'Reconcile', 'Completed')),
			start_at TIMESTAMPTZ,
			start_by VARCHAR(255),
			end_at TIMESTAMPTZ,
			end_by VARCHAR(255),
			remark TEXT,` + stampColumns + `
		)`,

		`CREATE TABLE audit_items (
			id BIGSERIAL PRIMARY KEY,
			audit_id BIGINT NOT NULL REFERENCES audits(id),
			material_id BIGINT NOT NULL REFERENCES materials(id),
			material_name VARCHAR(255) NOT NULL,
			material_description TEXT,
			available_quantity BIGINT NOT NULL DEFAULT 0,
			found_quantity BIGINT NOT NULL DEFAULT 0,
			scrapped_quantity BIGINT NOT NULL DEFAULT 0,
			manually_approved_quantity BIGINT NOT NULL DEFAULT 0,
			not_found_quantity BIGINT NOT NULL DEFAULT 0,` + stampColumns + `,
			CONSTRAINT audit_items_audit_material_key UNIQUE (audit_id, material_id),
			CONSTRAINT audit_items_quantity_non_negative CHECK (not_found_quantity >= 0)
		)`,

		`CREATE TABLE audit_item_barcodes (
			id BIGSERIAL PRIMARY KEY,
			audit_item_id BIGINT NOT NULL REFERENCES audit_items(id),
			inward_id BIGINT NOT NULL REFERENCES inventory_units(id),
			barcode VARCHAR(64) NOT NULL,
			quantity INT NOT NULL DEFAULT 1,
			shelf VARCHAR(255),
			remark TEXT,
			barcode_status VARCHAR(30) NOT NULL DEFAULT 'Not Found'
				CONSTRAINT audit_item_barcodes_audit_status_valid CHECK (barcode_status IN ('Found', 'Not Found', 'Scrapped', 'Manually Approved')),` + stampColumns + `,
			CONSTRAINT audit_item_barcodes_item_unit_key UNIQUE (audit_item_id, inward_id)
		)`,

		`CREATE TABLE return_barcodes (
			id BIGSERIAL PRIMARY KEY,
			site_id BIGINT NOT NULL,
			inward_id BIGINT NOT NULL REFERENCES inventory_units(id),
			barcode VARCHAR(64) NOT NULL,
			quantity INT NOT NULL DEFAULT 1,
			material_name VARCHAR(255) NOT NULL,
			material_description TEXT,
			inward_date TIMESTAMPTZ NOT NULL,
			dispatch_at TIMESTAMPTZ,
			dispatch_by VARCHAR(255),
			picklist_id BIGINT,
			picklist_name VARCHAR(32),
			picked_by VARCHAR(255),
			last_shelf_id BIGINT,
			last_shelf VARCHAR(255),
			remark TEXT,` + stampColumns + `
		)`,

		`CREATE TABLE sequences (
			name VARCHAR(64) PRIMARY KEY,
			value BIGINT NOT NULL
		)`,
	}
}
