// Package service holds the warehouse business rules: receiving, QC,
// putaway, picking against picklists under the FIFO policy, dispatch,
// returns and physical audits.
//
// Every mutating method takes the Querier it runs on. Handlers pass the
// request transaction opened by httputil.Transactional, so a method either
// applies all of its writes or none of them.
package service

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/wareflow/wareflow-backend/internal/inventory/repository"
	"github.com/wareflow/wareflow-backend/pkg/actor"
	"github.com/wareflow/wareflow-backend/pkg/config"
	"github.com/wareflow/wareflow-backend/pkg/database"
	"github.com/wareflow/wareflow-backend/pkg/errors"
	"github.com/wareflow/wareflow-backend/pkg/tenant"
)

// Repositories bundles the stateless repositories shared by the services.
type Repositories struct {
	Units     *repository.UnitRepository
	Materials *repository.MaterialRepository
	Shelves   *repository.ShelfRepository
	Customers *repository.CustomerRepository
	Records   *repository.RecordRepository
	Picklists *repository.PicklistRepository
	Audits    *repository.AuditRepository
	Sequences *repository.SequenceRepository
}

// NewRepositories creates the full repository set
func NewRepositories() *Repositories {
	return &Repositories{
		Units:     repository.NewUnitRepository(),
		Materials: repository.NewMaterialRepository(),
		Shelves:   repository.NewShelfRepository(),
		Customers: repository.NewCustomerRepository(),
		Records:   repository.NewRecordRepository(),
		Picklists: repository.NewPicklistRepository(),
		Audits:    repository.NewAuditRepository(),
		Sequences: repository.NewSequenceRepository(),
	}
}

// Settings are the tunables the services read from configuration.
type Settings struct {
	BarcodeWidth   int
	BarcodeStart   int64
	AutoApprove    bool
	FIFO           FIFOPolicy
	FIFOLogTimeout time.Duration
	PicklistPrefix string
	PicklistDigits int
	BulkLimit      int
}

// SettingsFrom maps the inventory configuration section.
func SettingsFrom(cfg config.InventoryConfig) Settings {
	return Settings{
		BarcodeWidth:   cfg.BarcodeWidth,
		BarcodeStart:   cfg.BarcodeStart,
		AutoApprove:    cfg.AutoApprove,
		FIFO:           FIFOPolicy{BucketWidth: cfg.FIFOBucket, Location: cfg.Location()},
		FIFOLogTimeout: cfg.FIFOLogTimeout,
		PicklistPrefix: cfg.PicklistPrefix,
		PicklistDigits: cfg.PicklistDigits,
		BulkLimit:      cfg.BulkLimit,
	}
}

// BulkIssue explains why one barcode of a bulk request was not applied.
type BulkIssue struct {
	Barcode string `json:"barcode"`
	Reason  string `json:"reason"`
}

// BulkResult summarises a bulk request. Skipped barcodes did not qualify
// for the operation; Errors lists the ones that were rejected by a rule
// while being applied.
type BulkResult struct {
	Total   int         `json:"total"`
	Success int         `json:"success"`
	Skipped []BulkIssue `json:"skipped"`
	Errors  []BulkIssue `json:"errors"`
}

func newBulkResult(total int) *BulkResult {
	return &BulkResult{Total: total, Skipped: []BulkIssue{}, Errors: []BulkIssue{}}
}

func (r *BulkResult) skip(barcode, reason string) {
	r.Skipped = append(r.Skipped, BulkIssue{Barcode: barcode, Reason: reason})
}

func (r *BulkResult) fail(barcode, reason string) {
	r.Errors = append(r.Errors, BulkIssue{Barcode: barcode, Reason: reason})
}

// skippable reports whether err is a per-item rejection that a bulk request
// records and moves past. Anything else aborts the whole request.
func skippable(err error) (string, bool) {
	var appErr *errors.AppError
	if errors.As(database.Translate(err), &appErr) && appErr.StatusCode < 500 {
		return appErr.Message, true
	}
	return "", false
}

// ownedBy returns NotFound when the caller may not touch a record of siteID.
// Records of other sites are indistinguishable from missing ones.
func ownedBy(ctx context.Context, siteID int64, resource string) error {
	if !tenant.Allows(actor.FromContext(ctx), siteID) {
		return errors.NotFound(resource)
	}
	return nil
}

// dedupe returns the distinct non-empty values in first-seen order.
func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func checkBulkLimit(n, limit int) error {
	if limit > 0 && n > limit {
		return errors.Validation(map[string]string{
			"barcodes": "must contain at most " + strconv.Itoa(limit) + " items",
		})
	}
	return nil
}

func sortedIDs[V any](m map[int64]V) []int64 {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
