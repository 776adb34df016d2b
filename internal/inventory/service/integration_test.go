package service_test

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wareflow/wareflow-backend/internal/inventory/events"
	"github.com/wareflow/wareflow-backend/internal/inventory/repository"
	"github.com/wareflow/wareflow-backend/internal/inventory/service"
	"github.com/wareflow/wareflow-backend/pkg/actor"
	"github.com/wareflow/wareflow-backend/pkg/database"
	"github.com/wareflow/wareflow-backend/pkg/errors"
	"github.com/wareflow/wareflow-backend/pkg/logger"
	"github.com/wareflow/wareflow-backend/pkg/messaging"
	"github.com/wareflow/wareflow-backend/pkg/testutil"
)

var suite *testutil.IntegrationSuite

func TestMain(m *testing.M) {
	flag.Parse()
	ctx := context.Background()
	if !testing.Short() {
		var err error
		suite, err = testutil.NewIntegrationSuite(ctx)
		if err != nil {
			log.Fatal(err)
		}
	}
	code := m.Run()
	testutil.TerminateContainer(ctx)
	os.Exit(code)
}

var testSettings = service.Settings{
	BarcodeWidth:   10,
	BarcodeStart:   1111111110,
	AutoApprove:    true,
	FIFO:           service.FIFOPolicy{BucketWidth: 24 * time.Hour, Location: time.UTC},
	PicklistPrefix: "P",
	PicklistDigits: 6,
	BulkLimit:      500,
}

// warehouse is the service set wired over one isolated schema.
type warehouse struct {
	db        *database.DB
	repos     *service.Repositories
	events    *testutil.MockPublisher
	receive   *service.ReceiveService
	putaway   *service.PutawayService
	picklists *service.PicklistService
	picking   *service.PickingService
	returns   *service.ReturnService
	audits    *service.AuditService
}

func newWarehouse(t *testing.T, ctx context.Context) *warehouse {
	t.Helper()
	schema := suite.SetupWarehouse(t, ctx)

	log := logger.Nop()
	mock := testutil.NewMockPublisher()
	publisher := events.NewWarehousePublisherWith(mock, log)
	repos := service.NewRepositories()
	ledger := service.NewLedger(repos.Materials, repos.Shelves)
	fifo := service.NewFIFOGuard(repos, schema.DB, publisher, testSettings, log)

	return &warehouse{
		db:        schema.DB,
		repos:     repos,
		events:    mock,
		receive:   service.NewReceiveService(repos, ledger, publisher, testSettings, log),
		putaway:   service.NewPutawayService(repos, ledger, testSettings, log),
		picklists: service.NewPicklistService(repos, ledger, publisher, testSettings, log),
		picking:   service.NewPickingService(repos, fifo, publisher, testSettings, log),
		returns:   service.NewReturnService(repos, ledger, publisher, testSettings, log),
		audits:    service.NewAuditService(repos, ledger, publisher, testSettings, log),
	}
}

// tx runs fn in one transaction on behalf of caller.
func (w *warehouse) tx(ctx context.Context, caller *actor.Actor, fn func(ctx context.Context, tx *sqlx.Tx) error) error {
	return w.db.Transaction(testutil.ActorContext(ctx, caller), fn)
}

func (w *warehouse) materialQuantity(t *testing.T, ctx context.Context, id int64) int64 {
	t.Helper()
	m, err := w.repos.Materials.GetByID(ctx, w.db, id)
	require.NoError(t, err)
	return m.Quantity
}

func (w *warehouse) shelfLoad(t *testing.T, ctx context.Context, id int64) decimal.Decimal {
	t.Helper()
	s, err := w.repos.Shelves.GetByID(ctx, w.db, id)
	require.NoError(t, err)
	return s.LoadedCapacity
}

func TestReceive_SequentialBarcodes(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	w := newWarehouse(t, ctx)

	siteID := suite.Fixtures.Site(t, ctx, w.db)
	materialID, _ := suite.Fixtures.Material(t, ctx, w.db, siteID, testutil.MaterialFixture{})

	var result *service.ReceiveResult
	err := w.tx(ctx, testutil.Operator(siteID), func(ctx context.Context, tx *sqlx.Tx) error {
		var err error
		result, err = w.receive.Receive(ctx, tx, service.ReceiveRequest{MaterialID: materialID, Count: 3})
		return err
	})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Total)
	assert.Equal(t, "1111111111", result.FirstBarcode)
	assert.Equal(t, "1111111113", result.LastBarcode)
	assert.Equal(t, int64(3), w.materialQuantity(t, ctx, materialID))

	unit, err := w.repos.Units.GetByID(ctx, w.db, result.Units[0].ID)
	require.NoError(t, err)
	assert.Equal(t, repository.QCApproved, unit.QCStatus)
	assert.True(t, unit.InStock)

	// The next receive continues after the last issued barcode.
	err = w.tx(ctx, testutil.Operator(siteID), func(ctx context.Context, tx *sqlx.Tx) error {
		var err error
		result, err = w.receive.Receive(ctx, tx, service.ReceiveRequest{MaterialID: materialID, Count: 1})
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, "1111111114", result.FirstBarcode)
	assert.Equal(t, int64(4), w.materialQuantity(t, ctx, materialID))

	w.events.AssertEventPublished(t, messaging.EventUnitsReceived)
	assert.Len(t, w.events.Events(messaging.EventUnitsReceived), 2)
}

func TestReceive_OtherSiteIsHidden(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	w := newWarehouse(t, ctx)

	siteID := suite.Fixtures.Site(t, ctx, w.db)
	otherSite := suite.Fixtures.Site(t, ctx, w.db)
	materialID, _ := suite.Fixtures.Material(t, ctx, w.db, otherSite, testutil.MaterialFixture{})

	err := w.tx(ctx, testutil.Operator(siteID), func(ctx context.Context, tx *sqlx.Tx) error {
		_, err := w.receive.Receive(ctx, tx, service.ReceiveRequest{MaterialID: materialID, Count: 1})
		return err
	})
	require.Error(t, err)
	assert.Equal(t, 404, errors.StatusCode(err))
	assert.Equal(t, int64(0), w.materialQuantity(t, ctx, materialID))
	w.events.AssertNoEventsPublished(t)
}

func TestPutaway_ShelfCapacity(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	w := newWarehouse(t, ctx)

	siteID := suite.Fixtures.Site(t, ctx, w.db)
	materialID, _ := suite.Fixtures.Material(t, ctx, w.db, siteID, testutil.MaterialFixture{Quantity: 16})
	shelfID := suite.Fixtures.Shelf(t, ctx, w.db, siteID, "100", "95")

	putaway := func(unitID int64) error {
		return w.tx(ctx, testutil.Operator(siteID), func(ctx context.Context, tx *sqlx.Tx) error {
			_, err := w.putaway.Putaway(ctx, tx, service.PutawayRequest{InwardID: unitID, ShelfID: shelfID})
			return err
		})
	}

	t.Run("ten units into five free is refused", func(t *testing.T) {
		unitID, _ := suite.Fixtures.Unit(t, ctx, w.db, siteID, materialID, testutil.UnitFixture{Quantity: 10})
		err := putaway(unitID)
		require.Error(t, err)
		assert.Equal(t, 400, errors.StatusCode(err))
		assert.Contains(t, err.Error(), "capacity")
		assert.True(t, decimal.NewFromInt(95).Equal(w.shelfLoad(t, ctx, shelfID)))
	})

	t.Run("exactly the free capacity succeeds", func(t *testing.T) {
		unitID, _ := suite.Fixtures.Unit(t, ctx, w.db, siteID, materialID, testutil.UnitFixture{Quantity: 5})
		require.NoError(t, putaway(unitID))
		assert.True(t, decimal.NewFromInt(100).Equal(w.shelfLoad(t, ctx, shelfID)))

		unit, err := w.repos.Units.GetByID(ctx, w.db, unitID)
		require.NoError(t, err)
		assert.True(t, unit.IsPutAway)
		require.NotNil(t, unit.ShelfID)
		assert.Equal(t, shelfID, *unit.ShelfID)
	})

	t.Run("bulk into a full shelf reports every unit", func(t *testing.T) {
		_, a := suite.Fixtures.Unit(t, ctx, w.db, siteID, materialID, testutil.UnitFixture{})
		var result *service.BulkResult
		err := w.tx(ctx, testutil.Operator(siteID), func(ctx context.Context, tx *sqlx.Tx) error {
			var err error
			result, err = w.putaway.PutawayBulk(ctx, tx, service.BulkPutawayRequest{
				Barcodes: []string{a, "0000000000"},
				ShelfID:  shelfID,
			})
			return err
		})
		require.NoError(t, err)
		assert.Zero(t, result.Success)
		require.Len(t, result.Errors, 1)
		assert.Equal(t, a, result.Errors[0].Barcode)
		require.Len(t, result.Skipped, 1)
		assert.Equal(t, "0000000000", result.Skipped[0].Barcode)
	})
}

func TestPutaway_RequiresApprovedUnit(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	w := newWarehouse(t, ctx)

	siteID := suite.Fixtures.Site(t, ctx, w.db)
	materialID, _ := suite.Fixtures.Material(t, ctx, w.db, siteID, testutil.MaterialFixture{})
	shelfID := suite.Fixtures.Shelf(t, ctx, w.db, siteID, "10", "0")
	unitID, _ := suite.Fixtures.Unit(t, ctx, w.db, siteID, materialID, testutil.UnitFixture{QCStatus: repository.QCPending})

	err := w.tx(ctx, testutil.Operator(siteID), func(ctx context.Context, tx *sqlx.Tx) error {
		_, err := w.putaway.Putaway(ctx, tx, service.PutawayRequest{InwardID: unitID, ShelfID: shelfID})
		return err
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "QC")
}

// fifoFixture is a material with one old and one new unit on the same shelf
// and an open picklist asking for one unit.
type fifoFixture struct {
	siteID     int64
	picklistID int64
	oldBarcode string
	newBarcode string
}

func setupFIFO(t *testing.T, ctx context.Context, w *warehouse) fifoFixture {
	t.Helper()
	siteID := suite.Fixtures.Site(t, ctx, w.db)
	_, customer := suite.Fixtures.Customer(t, ctx, w.db, siteID)
	materialID, material := suite.Fixtures.Material(t, ctx, w.db, siteID, testutil.MaterialFixture{Quantity: 2})
	shelfID := suite.Fixtures.Shelf(t, ctx, w.db, siteID, "10", "2")

	now := time.Now().UTC()
	_, oldBarcode := suite.Fixtures.Unit(t, ctx, w.db, siteID, materialID, testutil.UnitFixture{
		ShelfID:   &shelfID,
		CreatedAt: now.AddDate(0, 0, -3),
	})
	_, newBarcode := suite.Fixtures.Unit(t, ctx, w.db, siteID, materialID, testutil.UnitFixture{
		ShelfID:   &shelfID,
		CreatedAt: now,
	})

	var picklists []service.PicklistDetail
	err := w.tx(ctx, testutil.Operator(siteID), func(ctx context.Context, tx *sqlx.Tx) error {
		var err error
		picklists, err = w.picklists.Create(ctx, tx, service.CreatePicklistRequest{
			Lines: []service.PicklistLine{{MaterialName: material, CustomerName: customer, Quantity: 1}},
		})
		return err
	})
	require.NoError(t, err)
	require.Len(t, picklists, 1)

	return fifoFixture{
		siteID:     siteID,
		picklistID: picklists[0].ID,
		oldBarcode: oldBarcode,
		newBarcode: newBarcode,
	}
}

func fifoEntries(t *testing.T, ctx context.Context, db *database.DB, entryType string) int {
	t.Helper()
	var n int
	require.NoError(t, db.GetContext(ctx, &n, `SELECT COUNT(*) FROM fifo_violations WHERE type = $1`, entryType))
	return n
}

func TestPick_FIFOViolationSurvivesRollback(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	w := newWarehouse(t, ctx)
	f := setupFIFO(t, ctx, w)

	err := w.tx(ctx, testutil.Operator(f.siteID), func(ctx context.Context, tx *sqlx.Tx) error {
		_, err := w.picking.Pick(ctx, tx, service.PickRequest{PicklistID: f.picklistID, Barcode: f.newBarcode})
		return err
	})
	require.Error(t, err)
	assert.Equal(t, 400, errors.StatusCode(err))
	assert.Contains(t, err.Error(), f.oldBarcode)

	assert.Equal(t, 1, fifoEntries(t, ctx, w.db, repository.FIFOViolation))
	w.events.AssertEventPublished(t, messaging.EventFIFOViolation)

	// The refused pick left nothing behind.
	var picked bool
	require.NoError(t, w.db.GetContext(ctx, &picked, `SELECT is_picked FROM inventory_units WHERE barcode = $1`, f.newBarcode))
	assert.False(t, picked)
}

func TestPick_FIFOOverride(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	w := newWarehouse(t, ctx)
	f := setupFIFO(t, ctx, w)

	var result *service.PickResult
	err := w.tx(ctx, testutil.Supervisor(f.siteID), func(ctx context.Context, tx *sqlx.Tx) error {
		var err error
		result, err = w.picking.Pick(ctx, tx, service.PickRequest{PicklistID: f.picklistID, Barcode: f.newBarcode})
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, repository.PicklistCompleted, result.PicklistStatus)

	assert.Equal(t, 1, fifoEntries(t, ctx, w.db, repository.FIFOOverride))
	assert.Zero(t, fifoEntries(t, ctx, w.db, repository.FIFOViolation))
	assert.Empty(t, w.events.Events(messaging.EventFIFOViolation))
}

func TestPick_OldestUnitNeedsNoOverride(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	w := newWarehouse(t, ctx)
	f := setupFIFO(t, ctx, w)

	err := w.tx(ctx, testutil.Operator(f.siteID), func(ctx context.Context, tx *sqlx.Tx) error {
		_, err := w.picking.Pick(ctx, tx, service.PickRequest{PicklistID: f.picklistID, Barcode: f.oldBarcode})
		return err
	})
	require.NoError(t, err)
	assert.Zero(t, fifoEntries(t, ctx, w.db, repository.FIFOViolation))
	assert.Zero(t, fifoEntries(t, ctx, w.db, repository.FIFOOverride))
}

func TestPicklist_PickIssueReturn(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	w := newWarehouse(t, ctx)

	siteID := suite.Fixtures.Site(t, ctx, w.db)
	_, customer := suite.Fixtures.Customer(t, ctx, w.db, siteID)
	materialID, material := suite.Fixtures.Material(t, ctx, w.db, siteID, testutil.MaterialFixture{Quantity: 2})
	shelfID := suite.Fixtures.Shelf(t, ctx, w.db, siteID, "10", "2")

	created := time.Now().UTC().Add(-time.Hour)
	var barcodes []string
	for i := 0; i < 2; i++ {
		_, barcode := suite.Fixtures.Unit(t, ctx, w.db, siteID, materialID, testutil.UnitFixture{ShelfID: &shelfID, CreatedAt: created})
		barcodes = append(barcodes, barcode)
	}
	operator := testutil.Operator(siteID)

	var picklistID int64
	err := w.tx(ctx, operator, func(ctx context.Context, tx *sqlx.Tx) error {
		picklists, err := w.picklists.Create(ctx, tx, service.CreatePicklistRequest{
			Lines: []service.PicklistLine{{MaterialName: material, CustomerName: customer, Quantity: 2}},
		})
		if err != nil {
			return err
		}
		picklistID = picklists[0].ID
		assert.Equal(t, "P000001", picklists[0].Name)
		return nil
	})
	require.NoError(t, err)

	t.Run("issuing before picking is refused", func(t *testing.T) {
		err := w.tx(ctx, operator, func(ctx context.Context, tx *sqlx.Tx) error {
			_, err := w.picklists.Issue(ctx, tx, picklistID, "KA-01-1234")
			return err
		})
		require.Error(t, err)
		assert.Equal(t, 404, errors.StatusCode(err))
	})

	t.Run("bulk pick completes the picklist", func(t *testing.T) {
		var result *service.BulkPickResult
		err := w.tx(ctx, operator, func(ctx context.Context, tx *sqlx.Tx) error {
			var err error
			result, err = w.picking.BulkPick(ctx, tx, service.BulkPickRequest{PicklistID: picklistID, Barcodes: barcodes})
			return err
		})
		require.NoError(t, err)
		assert.Equal(t, 2, result.Created)
		assert.Equal(t, repository.PicklistCompleted, result.PicklistStatus)
		w.events.AssertEventPublished(t, messaging.EventPicklistCompleted)
	})

	t.Run("issue dispatches the picked units", func(t *testing.T) {
		err := w.tx(ctx, operator, func(ctx context.Context, tx *sqlx.Tx) error {
			detail, err := w.picklists.Issue(ctx, tx, picklistID, "KA-01-1234")
			if err != nil {
				return err
			}
			assert.True(t, detail.IsIssued)
			return nil
		})
		require.NoError(t, err)

		assert.Equal(t, int64(0), w.materialQuantity(t, ctx, materialID))
		assert.True(t, decimal.Zero.Equal(w.shelfLoad(t, ctx, shelfID)))
		w.events.AssertEventPublished(t, messaging.EventPicklistIssued)
	})

	t.Run("an issued picklist is frozen", func(t *testing.T) {
		err := w.tx(ctx, operator, func(ctx context.Context, tx *sqlx.Tx) error {
			return w.picklists.Delete(ctx, tx, picklistID)
		})
		require.Error(t, err)
		assert.Equal(t, 400, errors.StatusCode(err))
	})

	t.Run("return brings the units back to QC", func(t *testing.T) {
		var result *service.BulkResult
		err := w.tx(ctx, operator, func(ctx context.Context, tx *sqlx.Tx) error {
			var err error
			result, err = w.returns.Return(ctx, tx, service.ReturnRequest{
				Barcodes: []string{barcodes[0], barcodes[1], "0000000000"},
			})
			return err
		})
		require.NoError(t, err)
		assert.Equal(t, 2, result.Success)
		require.Len(t, result.Skipped, 1)
		assert.Equal(t, "0000000000", result.Skipped[0].Barcode)

		assert.Equal(t, int64(2), w.materialQuantity(t, ctx, materialID))
		assert.Len(t, w.events.Events(messaging.EventUnitReturned), 2)

		units, err := w.repos.Units.ListByBarcodesForUpdate(ctx, w.db, barcodes)
		require.NoError(t, err)
		for _, u := range units {
			assert.Equal(t, repository.QCPending, u.QCStatus)
			assert.True(t, u.InStock)
			assert.True(t, u.IsReturn)
			assert.Nil(t, u.ShelfID)
			assert.False(t, u.IsPicked)
		}
	})

	t.Run("a second return skips everything", func(t *testing.T) {
		var result *service.BulkResult
		err := w.tx(ctx, operator, func(ctx context.Context, tx *sqlx.Tx) error {
			var err error
			result, err = w.returns.Return(ctx, tx, service.ReturnRequest{Barcodes: barcodes})
			return err
		})
		require.NoError(t, err)
		assert.Zero(t, result.Success)
		assert.Len(t, result.Skipped, 2)
	})
}

func TestPicklist_CreateChecksStock(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	w := newWarehouse(t, ctx)

	siteID := suite.Fixtures.Site(t, ctx, w.db)
	_, customer := suite.Fixtures.Customer(t, ctx, w.db, siteID)
	_, material := suite.Fixtures.Material(t, ctx, w.db, siteID, testutil.MaterialFixture{Quantity: 1})

	err := w.tx(ctx, testutil.Operator(siteID), func(ctx context.Context, tx *sqlx.Tx) error {
		_, err := w.picklists.Create(ctx, tx, service.CreatePicklistRequest{
			Lines: []service.PicklistLine{
				{MaterialName: material, CustomerName: customer, Quantity: 1},
				{MaterialName: material, CustomerName: customer, Quantity: 1},
			},
		})
		return err
	})
	require.Error(t, err)
	assert.Equal(t, 400, errors.StatusCode(err))

	var n int
	require.NoError(t, w.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM picklists`))
	assert.Zero(t, n)
}

func TestAudit_ScanResolvesLines(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	w := newWarehouse(t, ctx)

	siteID := suite.Fixtures.Site(t, ctx, w.db)
	materialID, _ := suite.Fixtures.Material(t, ctx, w.db, siteID, testutil.MaterialFixture{Quantity: 6})
	var barcodes []string
	for i := 0; i < 6; i++ {
		_, barcode := suite.Fixtures.Unit(t, ctx, w.db, siteID, materialID, testutil.UnitFixture{})
		barcodes = append(barcodes, barcode)
	}
	operator := testutil.Operator(siteID)

	var audit *service.AuditDetail
	err := w.tx(ctx, operator, func(ctx context.Context, tx *sqlx.Tx) error {
		var err error
		audit, err = w.audits.Open(ctx, tx, service.OpenAuditRequest{})
		return err
	})
	require.NoError(t, err)
	require.Len(t, audit.Items, 1)
	assert.Equal(t, repository.AuditPending, audit.AuditStatus)
	assert.Equal(t, int64(6), audit.Items[0].NotFoundQuantity)

	var scan *service.ScanResult
	err = w.tx(ctx, operator, func(ctx context.Context, tx *sqlx.Tx) error {
		var err error
		scan, err = w.audits.Scan(ctx, tx, audit.ID, service.ScanRequest{
			Barcodes:    []string{barcodes[0], barcodes[1], "9999999999"},
			AuditStatus: repository.AuditFound,
		})
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 2, scan.Updated)
	assert.Equal(t, 1, scan.NotFound)

	// Rescanning a resolved line does not count it twice.
	err = w.tx(ctx, operator, func(ctx context.Context, tx *sqlx.Tx) error {
		var err error
		scan, err = w.audits.Scan(ctx, tx, audit.ID, service.ScanRequest{
			Barcodes:    []string{barcodes[0]},
			AuditStatus: repository.AuditScrapped,
		})
		return err
	})
	require.NoError(t, err)
	assert.Zero(t, scan.Updated)
	require.Len(t, scan.Skipped, 1)

	detail, err := w.audits.Get(testutil.ActorContext(ctx, operator), w.db, audit.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.AuditInProgress, detail.AuditStatus)
	require.Len(t, detail.Items, 1)
	assert.Equal(t, int64(2), detail.Items[0].FoundQuantity)
	assert.Equal(t, int64(4), detail.Items[0].NotFoundQuantity)
	assert.Zero(t, detail.Items[0].ScrappedQuantity)
}

func TestAudit_ScrapLeavesStock(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	w := newWarehouse(t, ctx)

	siteID := suite.Fixtures.Site(t, ctx, w.db)
	materialID, _ := suite.Fixtures.Material(t, ctx, w.db, siteID, testutil.MaterialFixture{Quantity: 2})
	shelfID := suite.Fixtures.Shelf(t, ctx, w.db, siteID, "10", "2")
	_, scrapped := suite.Fixtures.Unit(t, ctx, w.db, siteID, materialID, testutil.UnitFixture{ShelfID: &shelfID})
	suite.Fixtures.Unit(t, ctx, w.db, siteID, materialID, testutil.UnitFixture{ShelfID: &shelfID})
	operator := testutil.Operator(siteID)

	err := w.tx(ctx, operator, func(ctx context.Context, tx *sqlx.Tx) error {
		audit, err := w.audits.Open(ctx, tx, service.OpenAuditRequest{MaterialID: &materialID})
		if err != nil {
			return err
		}
		_, err = w.audits.Scan(ctx, tx, audit.ID, service.ScanRequest{
			Barcodes:    []string{scrapped},
			AuditStatus: repository.AuditScrapped,
			Remark:      testutil.PtrString("crushed"),
		})
		return err
	})
	require.NoError(t, err)

	assert.Equal(t, int64(1), w.materialQuantity(t, ctx, materialID))
	assert.True(t, decimal.NewFromInt(1).Equal(w.shelfLoad(t, ctx, shelfID)))
}

func TestAudit_StatusFlow(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	w := newWarehouse(t, ctx)

	siteID := suite.Fixtures.Site(t, ctx, w.db)
	materialID, _ := suite.Fixtures.Material(t, ctx, w.db, siteID, testutil.MaterialFixture{Quantity: 1})
	suite.Fixtures.Unit(t, ctx, w.db, siteID, materialID, testutil.UnitFixture{})
	operator := testutil.Operator(siteID)

	var auditID int64
	require.NoError(t, w.tx(ctx, operator, func(ctx context.Context, tx *sqlx.Tx) error {
		audit, err := w.audits.Open(ctx, tx, service.OpenAuditRequest{SiteID: &siteID})
		if err != nil {
			return err
		}
		auditID = audit.ID
		return nil
	}))

	step := func(status string) error {
		return w.tx(ctx, operator, func(ctx context.Context, tx *sqlx.Tx) error {
			_, err := w.audits.UpdateStatus(ctx, tx, auditID, service.UpdateAuditRequest{AuditStatus: status})
			return err
		})
	}

	require.Error(t, step(repository.AuditReconcile), "cannot skip In Progress")
	require.NoError(t, step(repository.AuditInProgress))
	require.NoError(t, step(repository.AuditReconcile))
	require.NoError(t, step(repository.AuditCompleted))
	require.Error(t, step(repository.AuditInProgress), "completed audits are final")

	assert.Len(t, w.events.Events(messaging.EventAuditCompleted), 1)
}

// picklistFixture is a material whose units all sit on one shelf, with an
// open picklist asking for some of them.
type picklistFixture struct {
	siteID     int64
	materialID int64
	shelfID    int64
	picklistID int64
	unitIDs    []int64
	barcodes   []string
}

func setupPicklist(t *testing.T, ctx context.Context, w *warehouse, units, want int) picklistFixture {
	t.Helper()
	siteID := suite.Fixtures.Site(t, ctx, w.db)
	_, customer := suite.Fixtures.Customer(t, ctx, w.db, siteID)
	materialID, material := suite.Fixtures.Material(t, ctx, w.db, siteID, testutil.MaterialFixture{Quantity: int64(units)})
	shelfID := suite.Fixtures.Shelf(t, ctx, w.db, siteID, "10", fmt.Sprint(units))

	f := picklistFixture{siteID: siteID, materialID: materialID, shelfID: shelfID}
	created := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < units; i++ {
		id, barcode := suite.Fixtures.Unit(t, ctx, w.db, siteID, materialID, testutil.UnitFixture{ShelfID: &shelfID, CreatedAt: created})
		f.unitIDs = append(f.unitIDs, id)
		f.barcodes = append(f.barcodes, barcode)
	}

	err := w.tx(ctx, testutil.Operator(siteID), func(ctx context.Context, tx *sqlx.Tx) error {
		picklists, err := w.picklists.Create(ctx, tx, service.CreatePicklistRequest{
			Lines: []service.PicklistLine{{MaterialName: material, CustomerName: customer, Quantity: want}},
		})
		if err != nil {
			return err
		}
		f.picklistID = picklists[0].ID
		return nil
	})
	require.NoError(t, err)
	return f
}

func (w *warehouse) pick(ctx context.Context, f picklistFixture, barcode string) (*service.PickResult, error) {
	var result *service.PickResult
	err := w.tx(ctx, testutil.Operator(f.siteID), func(ctx context.Context, tx *sqlx.Tx) error {
		var err error
		result, err = w.picking.Pick(ctx, tx, service.PickRequest{PicklistID: f.picklistID, Barcode: barcode})
		return err
	})
	return result, err
}

func (w *warehouse) issue(ctx context.Context, f picklistFixture) error {
	return w.tx(ctx, testutil.Operator(f.siteID), func(ctx context.Context, tx *sqlx.Tx) error {
		_, err := w.picklists.Issue(ctx, tx, f.picklistID, "KA-01-1234")
		return err
	})
}

func (w *warehouse) openAudit(t *testing.T, ctx context.Context, f picklistFixture) int64 {
	t.Helper()
	var auditID int64
	require.NoError(t, w.tx(ctx, testutil.Operator(f.siteID), func(ctx context.Context, tx *sqlx.Tx) error {
		audit, err := w.audits.Open(ctx, tx, service.OpenAuditRequest{MaterialID: &f.materialID})
		if err != nil {
			return err
		}
		auditID = audit.ID
		return nil
	}))
	return auditID
}

func (w *warehouse) scan(t *testing.T, ctx context.Context, f picklistFixture, auditID int64, status string, barcodes ...string) *service.ScanResult {
	t.Helper()
	var result *service.ScanResult
	require.NoError(t, w.tx(ctx, testutil.Operator(f.siteID), func(ctx context.Context, tx *sqlx.Tx) error {
		var err error
		result, err = w.audits.Scan(ctx, tx, auditID, service.ScanRequest{Barcodes: barcodes, AuditStatus: status})
		return err
	}))
	return result
}

func (w *warehouse) picklist(t *testing.T, ctx context.Context, f picklistFixture) *service.PicklistDetail {
	t.Helper()
	detail, err := w.picklists.Get(testutil.ActorContext(ctx, testutil.Operator(f.siteID)), w.db, f.picklistID)
	require.NoError(t, err)
	return detail
}

func TestAudit_DispatchedUnitIsNotScrapped(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	w := newWarehouse(t, ctx)
	f := setupPicklist(t, ctx, w, 2, 1)

	auditID := w.openAudit(t, ctx, f)

	_, err := w.pick(ctx, f, f.barcodes[0])
	require.NoError(t, err)
	require.NoError(t, w.issue(ctx, f))
	assert.Equal(t, int64(1), w.materialQuantity(t, ctx, f.materialID))
	assert.True(t, decimal.NewFromInt(1).Equal(w.shelfLoad(t, ctx, f.shelfID)))

	scan := w.scan(t, ctx, f, auditID, repository.AuditScrapped, f.barcodes[0])
	assert.Zero(t, scan.Updated)
	require.Len(t, scan.Skipped, 1)
	assert.Equal(t, "unit is not in stock", scan.Skipped[0].Reason)

	assert.Equal(t, int64(1), w.materialQuantity(t, ctx, f.materialID))
	assert.True(t, decimal.NewFromInt(1).Equal(w.shelfLoad(t, ctx, f.shelfID)))

	detail, err := w.audits.Get(testutil.ActorContext(ctx, testutil.Operator(f.siteID)), w.db, auditID)
	require.NoError(t, err)
	require.Len(t, detail.Items, 1)
	assert.Equal(t, int64(2), detail.Items[0].NotFoundQuantity)
	assert.Zero(t, detail.Items[0].ScrappedQuantity)
}

func TestPicklist_IssueLeavesScrappedUnits(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	w := newWarehouse(t, ctx)
	f := setupPicklist(t, ctx, w, 3, 2)

	for _, barcode := range f.barcodes[:2] {
		_, err := w.pick(ctx, f, barcode)
		require.NoError(t, err)
	}

	auditID := w.openAudit(t, ctx, f)
	scan := w.scan(t, ctx, f, auditID, repository.AuditScrapped, f.barcodes[0])
	assert.Equal(t, 1, scan.Updated)
	assert.Equal(t, int64(2), w.materialQuantity(t, ctx, f.materialID))
	assert.True(t, decimal.NewFromInt(2).Equal(w.shelfLoad(t, ctx, f.shelfID)))

	require.NoError(t, w.issue(ctx, f))

	// Only the unit still in stock left with the picklist.
	assert.Equal(t, int64(1), w.materialQuantity(t, ctx, f.materialID))
	assert.True(t, decimal.NewFromInt(1).Equal(w.shelfLoad(t, ctx, f.shelfID)))

	scrapped, err := w.repos.Units.GetByID(ctx, w.db, f.unitIDs[0])
	require.NoError(t, err)
	assert.False(t, scrapped.IsDispatch)
	assert.False(t, scrapped.InStock)

	dispatched, err := w.repos.Units.GetByID(ctx, w.db, f.unitIDs[1])
	require.NoError(t, err)
	assert.True(t, dispatched.IsDispatch)
}

func TestPick_UnpickThenRepickRestoresLink(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	w := newWarehouse(t, ctx)
	f := setupPicklist(t, ctx, w, 1, 1)

	first, err := w.pick(ctx, f, f.barcodes[0])
	require.NoError(t, err)
	assert.False(t, first.Restored)

	err = w.tx(ctx, testutil.Operator(f.siteID), func(ctx context.Context, tx *sqlx.Tx) error {
		_, err := w.picking.Unpick(ctx, tx, first.Pick.ID)
		return err
	})
	require.NoError(t, err)

	detail := w.picklist(t, ctx, f)
	require.Len(t, detail.Items, 1)
	assert.Zero(t, detail.Items[0].PickedQuantity)

	unit, err := w.repos.Units.GetByID(ctx, w.db, f.unitIDs[0])
	require.NoError(t, err)
	assert.False(t, unit.IsPicked)

	again, err := w.pick(ctx, f, f.barcodes[0])
	require.NoError(t, err)
	assert.True(t, again.Restored)
	assert.Equal(t, first.Pick.ID, again.Pick.ID)

	var links int
	require.NoError(t, w.db.GetContext(ctx, &links, `SELECT COUNT(*) FROM picklist_item_barcodes WHERE inward_id = $1`, f.unitIDs[0]))
	assert.Equal(t, 1, links)
	assert.Equal(t, 1, w.picklist(t, ctx, f).Items[0].PickedQuantity)
}

func TestPick_RefusesOverTarget(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	w := newWarehouse(t, ctx)
	f := setupPicklist(t, ctx, w, 2, 1)

	_, err := w.pick(ctx, f, f.barcodes[0])
	require.NoError(t, err)

	_, err = w.pick(ctx, f, f.barcodes[1])
	require.Error(t, err)
	assert.Equal(t, 400, errors.StatusCode(err))

	unit, err := w.repos.Units.GetByID(ctx, w.db, f.unitIDs[1])
	require.NoError(t, err)
	assert.False(t, unit.IsPicked)
	assert.Equal(t, 1, w.picklist(t, ctx, f).Items[0].PickedQuantity)
}

func TestPicklist_DeleteReleasesPickedUnits(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	w := newWarehouse(t, ctx)
	f := setupPicklist(t, ctx, w, 2, 2)

	_, err := w.pick(ctx, f, f.barcodes[0])
	require.NoError(t, err)

	require.NoError(t, w.tx(ctx, testutil.Operator(f.siteID), func(ctx context.Context, tx *sqlx.Tx) error {
		return w.picklists.Delete(ctx, tx, f.picklistID)
	}))

	unit, err := w.repos.Units.GetByID(ctx, w.db, f.unitIDs[0])
	require.NoError(t, err)
	assert.False(t, unit.IsPicked)
	assert.Nil(t, unit.PicklistID)
	assert.True(t, unit.InStock)
	assert.Equal(t, int64(2), w.materialQuantity(t, ctx, f.materialID))

	_, err = w.picklists.Get(testutil.ActorContext(ctx, testutil.Operator(f.siteID)), w.db, f.picklistID)
	require.Error(t, err)
	assert.Equal(t, 404, errors.StatusCode(err))
}

func TestPicklist_CompleteNeedsPickedUnits(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	w := newWarehouse(t, ctx)
	f := setupPicklist(t, ctx, w, 2, 2)

	complete := func() (*service.PicklistDetail, error) {
		status := repository.PicklistCompleted
		var detail *service.PicklistDetail
		err := w.tx(ctx, testutil.Operator(f.siteID), func(ctx context.Context, tx *sqlx.Tx) error {
			var err error
			detail, err = w.picklists.Update(ctx, tx, f.picklistID, service.UpdatePicklistRequest{PicklistStatus: &status})
			return err
		})
		return detail, err
	}

	_, err := complete()
	require.Error(t, err)
	assert.Equal(t, 400, errors.StatusCode(err))
	assert.NotEqual(t, repository.PicklistCompleted, w.picklist(t, ctx, f).PicklistStatus)

	_, err = w.pick(ctx, f, f.barcodes[0])
	require.NoError(t, err)

	detail, err := complete()
	require.NoError(t, err)
	assert.Equal(t, repository.PicklistCompleted, detail.PicklistStatus)
	assert.True(t, detail.IsPartial)
	assert.NotNil(t, detail.CompletedAt)
}

func TestPicklist_IssueTwiceIsRefused(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	w := newWarehouse(t, ctx)
	f := setupPicklist(t, ctx, w, 1, 1)

	_, err := w.pick(ctx, f, f.barcodes[0])
	require.NoError(t, err)
	require.NoError(t, w.issue(ctx, f))

	err = w.issue(ctx, f)
	require.Error(t, err)
	assert.Equal(t, 400, errors.StatusCode(err))
	assert.Contains(t, err.Error(), "already issued")
	assert.Equal(t, int64(0), w.materialQuantity(t, ctx, f.materialID))
}
