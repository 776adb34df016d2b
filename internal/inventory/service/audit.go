package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wareflow/wareflow-backend/internal/inventory/events"
	"github.com/wareflow/wareflow-backend/internal/inventory/repository"
	"github.com/wareflow/wareflow-backend/pkg/actor"
	"github.com/wareflow/wareflow-backend/pkg/database"
	"github.com/wareflow/wareflow-backend/pkg/errors"
	"github.com/wareflow/wareflow-backend/pkg/logger"
	"github.com/wareflow/wareflow-backend/pkg/messaging"
	"github.com/wareflow/wareflow-backend/pkg/tenant"
)

// OpenAuditRequest snapshots the stock of a site, or of one material.
type OpenAuditRequest struct {
	SiteID     *int64  `json:"site_id,omitempty" validate:"omitempty,gt=0"`
	MaterialID *int64  `json:"material_id,omitempty" validate:"omitempty,gt=0"`
	Remark     *string `json:"remark,omitempty" validate:"omitempty,max=500"`
}

// ScanRequest resolves scanned barcodes of an audit to one outcome.
type ScanRequest struct {
	Barcodes    []string `json:"barcodes" validate:"required,min=1,dive,required"`
	AuditStatus string   `json:"audit_status" validate:"required,oneof=Found Scrapped 'Manually Approved'"`
	Remark      *string  `json:"remark,omitempty" validate:"omitempty,max=500"`
}

// ScanResult summarises a scan.
type ScanResult struct {
	Total    int         `json:"total"`
	Updated  int         `json:"updated"`
	NotFound int         `json:"not_found"`
	Skipped  []BulkIssue `json:"skipped"`
}

// UpdateAuditRequest moves an audit to its next status.
type UpdateAuditRequest struct {
	AuditStatus string  `json:"audit_status" validate:"required,oneof='In Progress' Reconcile Completed"`
	Remark      *string `json:"remark,omitempty" validate:"omitempty,max=500"`
}

// AuditDetail is an audit with its per-material items.
type AuditDetail struct {
	*repository.Audit
	Items []repository.AuditItem `json:"items"`
}

// auditFlow lists the only allowed transitions.
var auditFlow = map[string]string{
	repository.AuditPending:    repository.AuditInProgress,
	repository.AuditInProgress: repository.AuditReconcile,
	repository.AuditReconcile:  repository.AuditCompleted,
}

// AuditService runs physical stock counts.
type AuditService struct {
	units     *repository.UnitRepository
	materials *repository.MaterialRepository
	audits    *repository.AuditRepository
	ledger    *Ledger
	publisher *events.WarehousePublisher
	settings  Settings
	logger    *logger.Logger
}

// NewAuditService creates a new audit service
func NewAuditService(
	repos *Repositories,
	ledger *Ledger,
	publisher *events.WarehousePublisher,
	settings Settings,
	log *logger.Logger,
) *AuditService {
	return &AuditService{
		units:     repos.Units,
		materials: repos.Materials,
		audits:    repos.Audits,
		ledger:    ledger,
		publisher: publisher,
		settings:  settings,
		logger:    log,
	}
}

// Open creates a Pending audit with one item per material in stock and one
// Not Found line per in-stock unit.
func (s *AuditService) Open(ctx context.Context, tx database.Querier, req OpenAuditRequest) (*AuditDetail, error) {
	requested := req.SiteID
	if requested == nil {
		requested = tenant.RequestedSite(ctx)
	}
	siteID, err := tenant.Require(actor.FromContext(ctx), requested)
	if stderrors.Is(err, tenant.ErrNoSite) {
		return nil, errors.Validation(map[string]string{"site_id": "is required"})
	}
	if err != nil {
		return nil, err
	}

	materials, err := s.materials.ListInStock(ctx, tx, siteID, req.MaterialID)
	if err != nil {
		return nil, err
	}
	if len(materials) == 0 {
		if req.MaterialID != nil {
			return nil, errors.NotFound("material")
		}
		return nil, errors.NotFound("materials in stock")
	}

	audit := &repository.Audit{
		SiteID:      siteID,
		Number:      fmt.Sprintf("AUD-%d", time.Now().UnixMilli()),
		AuditStatus: repository.AuditPending,
		Remark:      req.Remark,
	}
	if err := s.audits.Create(ctx, tx, audit); err != nil {
		return nil, err
	}

	ids := make([]int64, len(materials))
	for i, m := range materials {
		ids[i] = m.ID
	}
	units, err := s.units.ListInStockByMaterials(ctx, tx, siteID, ids)
	if err != nil {
		return nil, err
	}
	byMaterial := make(map[int64][]repository.Unit, len(materials))
	for _, u := range units {
		byMaterial[u.MaterialID] = append(byMaterial[u.MaterialID], u)
	}

	items := make([]repository.AuditItem, 0, len(materials))
	for _, m := range materials {
		item := repository.AuditItem{
			AuditID:             audit.ID,
			MaterialID:          m.ID,
			MaterialName:        m.Name,
			MaterialDescription: m.Description,
			AvailableQuantity:   m.Quantity,
		}
		if err := s.audits.CreateItem(ctx, tx, &item); err != nil {
			return nil, err
		}
		if _, err := s.audits.CreateBarcodes(ctx, tx, item.ID, byMaterial[m.ID]); err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	s.logger.Info().
		Int64("audit_id", audit.ID).
		Str("number", audit.Number).
		Int("materials", len(items)).
		Int("units", len(units)).
		Msg("audit opened")

	return &AuditDetail{Audit: audit, Items: items}, nil
}

// Get returns an audit with its items
func (s *AuditService) Get(ctx context.Context, q database.Querier, id int64) (*AuditDetail, error) {
	audit, err := s.audits.GetByID(ctx, q, id)
	if err != nil {
		return nil, err
	}
	if err := ownedBy(ctx, audit.SiteID, "audit"); err != nil {
		return nil, err
	}
	items, err := s.audits.Items(ctx, q, id)
	if err != nil {
		return nil, err
	}
	return &AuditDetail{Audit: audit, Items: items}, nil
}

// Scan resolves the audit lines of the scanned barcodes. Lines that were
// already resolved, or whose unit has since left stock, are skipped. Scrapped units leave stock and release
// their shelf load.
func (s *AuditService) Scan(ctx context.Context, tx database.Querier, auditID int64, req ScanRequest) (*ScanResult, error) {
	if _, ok := auditOutcomes[req.AuditStatus]; !ok {
		return nil, errors.Validation(map[string]string{
			"audit_status": "must be one of: Found, Scrapped, Manually Approved",
		})
	}
	barcodes := dedupe(req.Barcodes)
	if err := checkBulkLimit(len(barcodes), s.settings.BulkLimit); err != nil {
		return nil, err
	}

	audit, err := s.audits.GetByIDForUpdate(ctx, tx, auditID)
	if err != nil {
		return nil, err
	}
	if err := ownedBy(ctx, audit.SiteID, "audit"); err != nil {
		return nil, err
	}
	if audit.AuditStatus == repository.AuditCompleted {
		return nil, errors.BusinessRule("audit already completed")
	}
	if audit.AuditStatus == repository.AuditPending {
		s.start(ctx, audit)
		if err := s.audits.Save(ctx, tx, audit); err != nil {
			return nil, err
		}
	}

	lines, err := s.audits.LinesForScan(ctx, tx, audit.ID, barcodes)
	if err != nil {
		return nil, err
	}

	result := &ScanResult{Total: len(barcodes), Skipped: []BulkIssue{}}
	matched := make(map[string]struct{}, len(lines))
	shifts := make(map[int64]int64)
	stock := make(map[int64]int64)
	loads := make(map[int64]decimal.Decimal)

	for _, line := range lines {
		matched[line.Barcode] = struct{}{}
		if line.BarcodeStatus != repository.AuditNotFound {
			result.Skipped = append(result.Skipped, BulkIssue{
				Barcode: line.Barcode,
				Reason:  "already " + line.BarcodeStatus,
			})
			continue
		}
		if !line.InStock {
			result.Skipped = append(result.Skipped, BulkIssue{Barcode: line.Barcode, Reason: "unit is not in stock"})
			continue
		}

		if err := s.audits.SetBarcodeStatus(ctx, tx, line.ID, req.AuditStatus, req.Remark); err != nil {
			return nil, err
		}
		if err := s.units.SetAuditOutcome(ctx, tx, line.InwardID, req.AuditStatus, req.Remark); err != nil {
			return nil, err
		}

		shifts[line.AuditItemID]++
		if req.AuditStatus == repository.AuditScrapped {
			stock[line.MaterialID] -= int64(line.Quantity)
			if line.ShelfID != nil {
				loads[*line.ShelfID] = loads[*line.ShelfID].Add(decimal.NewFromInt(int64(line.Quantity)))
			}
		}
		result.Updated++
	}
	result.NotFound = len(barcodes) - len(matched)

	for _, itemID := range sortedIDs(shifts) {
		if err := s.audits.ShiftCounters(ctx, tx, itemID, req.AuditStatus, shifts[itemID]); err != nil {
			return nil, err
		}
	}
	if err := s.ledger.AdjustStock(ctx, tx, stock); err != nil {
		return nil, err
	}
	if err := s.ledger.ReleaseShelves(ctx, tx, loads); err != nil {
		return nil, err
	}

	return result, nil
}

// UpdateStatus moves the audit one step along Pending, In Progress,
// Reconcile, Completed.
func (s *AuditService) UpdateStatus(ctx context.Context, tx database.Querier, id int64, req UpdateAuditRequest) (*AuditDetail, error) {
	audit, err := s.audits.GetByIDForUpdate(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := ownedBy(ctx, audit.SiteID, "audit"); err != nil {
		return nil, err
	}
	if err := checkAuditTransition(audit.AuditStatus, req.AuditStatus); err != nil {
		return nil, err
	}

	switch req.AuditStatus {
	case repository.AuditInProgress:
		s.start(ctx, audit)
	case repository.AuditReconcile:
		now := time.Now()
		name := actor.FromContext(ctx).Name()
		audit.EndAt = &now
		audit.EndBy = &name
	}
	audit.AuditStatus = req.AuditStatus
	if req.Remark != nil {
		audit.Remark = req.Remark
	}
	if err := s.audits.Save(ctx, tx, audit); err != nil {
		return nil, err
	}

	items, err := s.audits.Items(ctx, tx, audit.ID)
	if err != nil {
		return nil, err
	}

	if audit.AuditStatus == repository.AuditCompleted {
		totals := SumAuditItems(items)
		totals.SiteID = audit.SiteID
		totals.AuditID = audit.ID
		totals.Number = audit.Number
		totals.CompletedBy = actor.FromContext(ctx).Name()
		s.publisher.AuditCompleted(ctx, totals)
	}

	return &AuditDetail{Audit: audit, Items: items}, nil
}

func (s *AuditService) start(ctx context.Context, audit *repository.Audit) {
	now := time.Now()
	name := actor.FromContext(ctx).Name()
	audit.AuditStatus = repository.AuditInProgress
	audit.StartAt = &now
	audit.StartBy = &name
}

var auditOutcomes = map[string]struct{}{
	repository.AuditFound:            {},
	repository.AuditScrapped:         {},
	repository.AuditManuallyApproved: {},
}

func checkAuditTransition(from, to string) error {
	if from == repository.AuditCompleted {
		return errors.BusinessRule("audit already completed")
	}
	if from == to {
		return errors.BusinessRule("audit is already " + to)
	}
	if auditFlow[from] != to {
		return errors.BusinessRule(fmt.Sprintf("audit cannot move from %s to %s", from, to))
	}
	return nil
}

// SumAuditItems totals the counters of every item.
func SumAuditItems(items []repository.AuditItem) messaging.AuditCompletedEvent {
	var e messaging.AuditCompletedEvent
	for _, it := range items {
		e.Found += it.FoundQuantity
		e.NotFound += it.NotFoundQuantity
		e.Scrapped += it.ScrappedQuantity
		e.ManuallyApproved += it.ManuallyApprovedQuantity
	}
	return e
}
