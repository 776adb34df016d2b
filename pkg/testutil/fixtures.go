package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wareflow/wareflow-backend/pkg/database"
)

// FixtureFactory inserts warehouse rows with sensible defaults. Names are
// suffixed with a per-factory sequence so fixtures never collide on unique
// columns.
type FixtureFactory struct {
	sequence int
}

// NewFixtureFactory creates a new fixture factory
func NewFixtureFactory() *FixtureFactory {
	return &FixtureFactory{}
}

func (f *FixtureFactory) next() int {
	f.sequence++
	return f.sequence
}

// Site inserts a site and returns its id.
func (f *FixtureFactory) Site(t *testing.T, ctx context.Context, q database.Querier) int64 {
	t.Helper()
	var id int64
	err := q.QueryRowxContext(ctx,
		`INSERT INTO sites (name) VALUES ($1) RETURNING id`,
		fmt.Sprintf("Site %d", f.next()),
	).Scan(&id)
	require.NoError(t, err)
	return id
}

// Customer inserts a customer on the site and returns its id and name.
func (f *FixtureFactory) Customer(t *testing.T, ctx context.Context, q database.Querier, siteID int64) (int64, string) {
	t.Helper()
	name := fmt.Sprintf("Customer %d", f.next())
	var id int64
	err := q.QueryRowxContext(ctx,
		`INSERT INTO customers (site_id, name) VALUES ($1, $2) RETURNING id`,
		siteID, name,
	).Scan(&id)
	require.NoError(t, err)
	return id, name
}

// MaterialFixture describes a material to insert
type MaterialFixture struct {
	Name     string
	Quantity int64
}

// Material inserts a material and returns its id and name.
func (f *FixtureFactory) Material(t *testing.T, ctx context.Context, q database.Querier, siteID int64, m MaterialFixture) (int64, string) {
	t.Helper()
	if m.Name == "" {
		m.Name = fmt.Sprintf("Material %d", f.next())
	}
	var id int64
	err := q.QueryRowxContext(ctx,
		`INSERT INTO materials (site_id, name, description, uom, quantity)
		 VALUES ($1, $2, $3, 'EA', $4) RETURNING id`,
		siteID, m.Name, m.Name+" description", m.Quantity,
	).Scan(&id)
	require.NoError(t, err)
	return id, m.Name
}

// Shelf inserts a shelf with the given capacity and current load.
func (f *FixtureFactory) Shelf(t *testing.T, ctx context.Context, q database.Querier, siteID int64, capacity, loaded string) int64 {
	t.Helper()
	n := f.next()
	var id int64
	err := q.QueryRowxContext(ctx,
		`INSERT INTO shelves (site_id, name, barcode, capacity, loaded_capacity)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		siteID, fmt.Sprintf("S-%03d", n), fmt.Sprintf("SH%06d", n), capacity, loaded,
	).Scan(&id)
	require.NoError(t, err)
	return id
}

// UnitFixture describes an inventory unit to insert. Zero values give an
// approved, in-stock, unshelved unit of quantity 1 created now.
type UnitFixture struct {
	Barcode   string
	Quantity  int
	QCStatus  string
	ShelfID   *int64
	CreatedAt time.Time
	NotStock  bool
}

// Unit inserts a unit of the material and returns its id and barcode.
// Material quantities are not touched.
func (f *FixtureFactory) Unit(t *testing.T, ctx context.Context, q database.Querier, siteID, materialID int64, u UnitFixture) (int64, string) {
	t.Helper()
	if u.Barcode == "" {
		u.Barcode = fmt.Sprintf("%010d", 2000000000+f.next())
	}
	if u.Quantity == 0 {
		u.Quantity = 1
	}
	if u.QCStatus == "" {
		u.QCStatus = "Approved"
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	var id int64
	err := q.QueryRowxContext(ctx,
		`INSERT INTO inventory_units (site_id, material_id, barcode, material_name, qc_status,
			shelf_id, shelf_name, is_put_away, in_stock, created_at, updated_at, quantity)
		 SELECT $1, m.id, $3, m.name, $4, $5,
			(SELECT name FROM shelves WHERE id = $5), $5::BIGINT IS NOT NULL, $6, $7, $7, $8
		 FROM materials m WHERE m.id = $2
		 RETURNING id`,
		siteID, materialID, u.Barcode, u.QCStatus, u.ShelfID, !u.NotStock, u.CreatedAt, u.Quantity,
	).Scan(&id)
	require.NoError(t, err)
	return id, u.Barcode
}
