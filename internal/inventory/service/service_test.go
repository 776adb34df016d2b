package service_test

import (
	"bytes"
	"context"
	"net/url"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wareflow/wareflow-backend/internal/inventory/repository"
	"github.com/wareflow/wareflow-backend/internal/inventory/service"
	"github.com/wareflow/wareflow-backend/pkg/errors"
	"github.com/wareflow/wareflow-backend/pkg/logger"
	"github.com/wareflow/wareflow-backend/pkg/testutil"
	"github.com/xuri/excelize/v2"
)

func TestFIFOPolicy_Cutoff(t *testing.T) {
	kolkata, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	created := time.Date(2024, 3, 10, 20, 30, 15, 0, time.UTC)

	tests := []struct {
		name   string
		policy service.FIFOPolicy
		want   time.Time
	}{
		{
			name:   "exact timestamps",
			policy: service.FIFOPolicy{},
			want:   created,
		},
		{
			name:   "calendar day in UTC",
			policy: service.FIFOPolicy{BucketWidth: 24 * time.Hour},
			want:   time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
		},
		{
			// 20:30 UTC is already 02:00 on the 11th in Kolkata
			name:   "calendar day in zone",
			policy: service.FIFOPolicy{BucketWidth: 24 * time.Hour, Location: kolkata},
			want:   time.Date(2024, 3, 11, 0, 0, 0, 0, kolkata),
		},
		{
			name:   "hourly buckets",
			policy: service.FIFOPolicy{BucketWidth: time.Hour},
			want:   time.Date(2024, 3, 10, 20, 0, 0, 0, time.UTC),
		},
		{
			// the half-hour offset moves hour boundaries off the UTC ones
			name:   "hourly buckets in zone",
			policy: service.FIFOPolicy{BucketWidth: time.Hour, Location: kolkata},
			want:   time.Date(2024, 3, 11, 2, 0, 0, 0, kolkata),
		},
		{
			name:   "six hour buckets in zone",
			policy: service.FIFOPolicy{BucketWidth: 6 * time.Hour, Location: kolkata},
			want:   time.Date(2024, 3, 11, 0, 0, 0, 0, kolkata),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.policy.Cutoff(created)
			assert.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
		})
	}
}

func TestFIFOPolicy_SameDayIsNotOlder(t *testing.T) {
	policy := service.FIFOPolicy{BucketWidth: 24 * time.Hour}
	morning := time.Date(2024, 3, 10, 6, 0, 0, 0, time.UTC)
	evening := time.Date(2024, 3, 10, 22, 0, 0, 0, time.UTC)
	yesterday := morning.Add(-24 * time.Hour)

	cutoff := policy.Cutoff(evening)
	assert.False(t, morning.Before(cutoff))
	assert.True(t, yesterday.Before(cutoff))
}

func TestFormatBarcodes(t *testing.T) {
	assert.Equal(t,
		[]string{"1111111111", "1111111112", "1111111113"},
		service.FormatBarcodes(1111111110, 3, 10))
	assert.Equal(t, []string{"000010"}, service.FormatBarcodes(9, 1, 6))
	assert.Empty(t, service.FormatBarcodes(5, 0, 10))
}

func TestFormatPicklistName(t *testing.T) {
	assert.Equal(t, "P000001", service.FormatPicklistName("P", 6, 1))
	assert.Equal(t, "PL-0420", service.FormatPicklistName("PL-", 4, 420))
	assert.Equal(t, "P1234567", service.FormatPicklistName("P", 6, 1234567))
}

func TestPicklistStatus(t *testing.T) {
	item := func(target, picked int) repository.PicklistItem {
		return repository.PicklistItem{MaterialQuantity: target, PickedQuantity: picked}
	}

	assert.Equal(t, repository.PicklistInProgress, service.PicklistStatus(nil))
	assert.Equal(t, repository.PicklistInProgress, service.PicklistStatus([]repository.PicklistItem{item(3, 3), item(2, 1)}))
	assert.Equal(t, repository.PicklistCompleted, service.PicklistStatus([]repository.PicklistItem{item(3, 3), item(2, 2)}))
}

func TestDispatchDeltas(t *testing.T) {
	shelfA, shelfB := int64(10), int64(11)
	units := []repository.DispatchedUnit{
		{ID: 1, MaterialID: 1, ShelfID: &shelfA, Quantity: 1},
		{ID: 2, MaterialID: 1, ShelfID: &shelfA, Quantity: 1},
		{ID: 3, MaterialID: 2, ShelfID: &shelfB, Quantity: 2},
		{ID: 4, MaterialID: 2, Quantity: 1},
	}

	stock, loads := service.DispatchDeltas(units)

	assert.Equal(t, map[int64]int64{1: -2, 2: -3}, stock)
	require.Len(t, loads, 2)
	assert.True(t, decimal.NewFromInt(2).Equal(loads[shelfA]))
	assert.True(t, decimal.NewFromInt(2).Equal(loads[shelfB]))
}

func TestSumAuditItems(t *testing.T) {
	totals := service.SumAuditItems([]repository.AuditItem{
		{AvailableQuantity: 6, FoundQuantity: 2, NotFoundQuantity: 4},
		{AvailableQuantity: 3, FoundQuantity: 1, ScrappedQuantity: 1, ManuallyApprovedQuantity: 1},
	})

	assert.Equal(t, int64(3), totals.Found)
	assert.Equal(t, int64(4), totals.NotFound)
	assert.Equal(t, int64(1), totals.Scrapped)
	assert.Equal(t, int64(1), totals.ManuallyApproved)
}

func TestBuildAuditWorkbook(t *testing.T) {
	items := []repository.AuditItem{
		{ID: 1, MaterialName: "Bolt", MaterialDescription: testutil.PtrString("M8 bolt"), AvailableQuantity: 2, FoundQuantity: 1, NotFoundQuantity: 1},
		{ID: 2, MaterialName: "Nut", AvailableQuantity: 1, ScrappedQuantity: 1},
	}
	lines := []repository.AuditItemBarcode{
		{AuditItemID: 1, Barcode: "1111111111", Quantity: 1, Shelf: testutil.PtrString("S-001"), BarcodeStatus: repository.AuditFound},
		{AuditItemID: 1, Barcode: "1111111112", Quantity: 1, BarcodeStatus: repository.AuditNotFound},
		{AuditItemID: 2, Barcode: "1111111113", Quantity: 1, BarcodeStatus: repository.AuditScrapped, Remark: testutil.PtrString("crushed")},
	}

	f, err := service.BuildAuditWorkbook(items, lines)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	reopened, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, []string{"Reconciliation", "Barcodes"}, reopened.GetSheetList())

	rows, err := reopened.GetRows("Reconciliation")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Material", rows[0][0])
	assert.Equal(t, []string{"Bolt", "M8 bolt", "2", "1", "0", "0", "1"}, rows[1])

	barcodes, err := reopened.GetRows("Barcodes")
	require.NoError(t, err)
	require.Len(t, barcodes, 4)
	assert.Equal(t, []string{"Bolt", "1111111111", "1", "S-001", "Found"}, barcodes[1])
	assert.Equal(t, []string{"Nut", "1111111113", "1", "", "Scrapped", "crushed"}, barcodes[3])
}

func TestCatalogList_PageSize(t *testing.T) {
	tests := []struct {
		name   string
		values url.Values
		limit  string
		page   service.Page
	}{
		{"default", url.Values{}, "LIMIT 100", service.Page{Limit: 100, Total: 5000}},
		{"offset keeps default limit", url.Values{"offset": {"100"}}, "LIMIT 100 OFFSET 100", service.Page{Offset: 100, Limit: 100, Total: 5000}},
		{"unusable limit", url.Values{"limit": {"abc"}}, "LIMIT 100", service.Page{Limit: 100, Total: 5000}},
		{"capped", url.Values{"limit": {"50000"}}, "LIMIT 1000", service.Page{Limit: service.MaxPageSize, Total: 5000}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockDB(t)
			defer mock.Close()

			mock.Mock.ExpectQuery(`SELECT COUNT`).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5000))
			mock.Mock.ExpectQuery(regexp.QuoteMeta(tt.limit) + `$`).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

			catalog := service.NewCatalog(mock.Wrapped(), logger.Nop())
			ctx := testutil.ActorContext(context.Background(), testutil.Operator(1))

			var rows []struct {
				ID int64 `db:"id"`
			}
			page, err := catalog.List(ctx, repository.EntityUnit, tt.values, &rows)
			require.NoError(t, err)
			assert.Equal(t, tt.page, *page)
			assert.Len(t, rows, 1)
			mock.ExpectationsWereMet(t)
		})
	}
}

func fifoGuard(t *testing.T, timeout time.Duration) (*service.FIFOGuard, *testutil.MockDB, *testutil.MockDB) {
	t.Helper()
	tx := testutil.NewMockDB(t)
	side := testutil.NewMockDB(t)
	t.Cleanup(func() {
		tx.Close()
		side.Close()
	})

	older := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	tx.Mock.ExpectQuery(`FROM inventory_units`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "barcode", "created_at"}).AddRow(1, "1111111111", older))

	settings := service.Settings{
		FIFO:           service.FIFOPolicy{BucketWidth: 24 * time.Hour, Location: time.UTC},
		FIFOLogTimeout: timeout,
	}
	return service.NewFIFOGuard(service.NewRepositories(), side.Wrapped(), nil, settings, logger.Nop()), tx, side
}

// fifoCandidate is a unit created three days after the older one fifoGuard
// reports.
func fifoCandidate() *repository.Unit {
	return &repository.Unit{
		ID:         2,
		SiteID:     1,
		MaterialID: 3,
		Barcode:    "1111111112",
		Stamps:     repository.Stamps{CreatedAt: time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)},
	}
}

func TestFIFOGuard_RecordsViolationOnSidePool(t *testing.T) {
	guard, tx, side := fifoGuard(t, time.Second)
	side.Mock.ExpectQuery(`INSERT INTO fifo_violations`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(9, time.Now(), time.Now()))

	ctx := testutil.ActorContext(context.Background(), testutil.Operator(1))
	unit := fifoCandidate()

	err := guard.Check(ctx, tx.Wrapped(), unit, 5)
	require.Error(t, err)
	assert.Equal(t, 400, errors.StatusCode(err))
	assert.Contains(t, err.Error(), "1111111111")

	tx.ExpectationsWereMet(t)
	side.ExpectationsWereMet(t)
}

func TestFIFOGuard_ViolationWriteIsBounded(t *testing.T) {
	guard, tx, side := fifoGuard(t, 50*time.Millisecond)
	side.Mock.ExpectQuery(`INSERT INTO fifo_violations`).
		WillDelayFor(5 * time.Second).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(9, time.Now(), time.Now()))

	ctx := testutil.ActorContext(context.Background(), testutil.Operator(1))
	unit := fifoCandidate()

	start := time.Now()
	err := guard.Check(ctx, tx.Wrapped(), unit, 5)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
	tx.ExpectationsWereMet(t)
}
