package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/wareflow/wareflow-backend/internal/inventory/events"
	"github.com/wareflow/wareflow-backend/internal/inventory/repository"
	"github.com/wareflow/wareflow-backend/pkg/actor"
	"github.com/wareflow/wareflow-backend/pkg/database"
	"github.com/wareflow/wareflow-backend/pkg/errors"
	"github.com/wareflow/wareflow-backend/pkg/logger"
	"github.com/wareflow/wareflow-backend/pkg/messaging"
)

// ReceiveRequest creates Count units of one material.
type ReceiveRequest struct {
	MaterialID        int64      `json:"material_id" validate:"required,gt=0"`
	Count             int        `json:"count" validate:"required,gt=0,max=10000"`
	Batch             *string    `json:"batch,omitempty"`
	Invoice           *string    `json:"invoice,omitempty"`
	MRP               *string    `json:"mrp,omitempty"`
	ManufacturingDate *time.Time `json:"manufacturing_date,omitempty"`
}

// ReceiveResult describes the units created by one receive.
type ReceiveResult struct {
	MaterialID   int64                    `json:"material_id"`
	Total        int                      `json:"total"`
	FirstBarcode string                   `json:"first_barcode"`
	LastBarcode  string                   `json:"last_barcode"`
	Units        []repository.CreatedUnit `json:"units"`
}

// GenerateBarcodesRequest receives several materials in one transaction.
type GenerateBarcodesRequest struct {
	Items []GenerateBarcodesItem `json:"items" validate:"required,min=1,dive"`
}

// GenerateBarcodesItem is one material of a barcode generation batch.
type GenerateBarcodesItem struct {
	MaterialID int64 `json:"material_id" validate:"required,gt=0"`
	Count      int   `json:"count" validate:"required,gt=0,max=10000"`
}

// ImportRequest loads units that already carry barcodes.
type ImportRequest struct {
	Units []ImportUnit `json:"units" validate:"required,min=1,dive"`
}

// ImportUnit is one unit of an import.
type ImportUnit struct {
	Barcode           string     `json:"barcode" validate:"required,max=64"`
	MaterialID        int64      `json:"material_id" validate:"required,gt=0"`
	// units are serialized, so only 1 is accepted
	Quantity          int        `json:"quantity,omitempty" validate:"omitempty,eq=1"`
	QCStatus          string     `json:"qc_status,omitempty" validate:"omitempty,oneof=Pending Approved Rejected"`
	Batch             *string    `json:"batch,omitempty"`
	Invoice           *string    `json:"invoice,omitempty"`
	MRP               *string    `json:"mrp,omitempty"`
	ManufacturingDate *time.Time `json:"manufacturing_date,omitempty"`
}

// ImportResult summarises an import.
type ImportResult struct {
	Total     int              `json:"total"`
	Created   int              `json:"created"`
	Materials map[string]int64 `json:"materials"`
}

// ReceiveService creates inventory units and their barcodes.
type ReceiveService struct {
	units     *repository.UnitRepository
	materials *repository.MaterialRepository
	ledger    *Ledger
	publisher *events.WarehousePublisher
	settings  Settings
	logger    *logger.Logger
}

// NewReceiveService creates a new receive service
func NewReceiveService(
	repos *Repositories,
	ledger *Ledger,
	publisher *events.WarehousePublisher,
	settings Settings,
	log *logger.Logger,
) *ReceiveService {
	return &ReceiveService{
		units:     repos.Units,
		materials: repos.Materials,
		ledger:    ledger,
		publisher: publisher,
		settings:  settings,
		logger:    log,
	}
}

// Receive creates req.Count units with sequential barcodes and adds them
// to the material's stock.
func (s *ReceiveService) Receive(ctx context.Context, tx database.Querier, req ReceiveRequest) (*ReceiveResult, error) {
	material, err := s.material(ctx, tx, req.MaterialID)
	if err != nil {
		return nil, err
	}

	tmpl := s.template(material)
	tmpl.Batch = req.Batch
	tmpl.Invoice = req.Invoice
	tmpl.MRP = req.MRP
	tmpl.ManufacturingDate = req.ManufacturingDate

	result, err := s.create(ctx, tx, tmpl, req.Count)
	if err != nil {
		return nil, err
	}

	if err := s.ledger.AdjustStock(ctx, tx, map[int64]int64{material.ID: int64(result.Total)}); err != nil {
		return nil, err
	}

	s.announce(ctx, material.SiteID, result)
	return result, nil
}

// GenerateBarcodes receives several materials at once. All materials must
// be visible to the caller.
func (s *ReceiveService) GenerateBarcodes(ctx context.Context, tx database.Querier, req GenerateBarcodesRequest) ([]ReceiveResult, error) {
	results := make([]ReceiveResult, 0, len(req.Items))
	deltas := make(map[int64]int64, len(req.Items))
	sites := make(map[int64]int64, len(req.Items))

	for _, item := range req.Items {
		material, err := s.material(ctx, tx, item.MaterialID)
		if err != nil {
			return nil, err
		}
		result, err := s.create(ctx, tx, s.template(material), item.Count)
		if err != nil {
			return nil, err
		}
		deltas[material.ID] += int64(result.Total)
		sites[material.ID] = material.SiteID
		results = append(results, *result)
	}

	if err := s.ledger.AdjustStock(ctx, tx, deltas); err != nil {
		return nil, err
	}

	for i := range results {
		s.announce(ctx, sites[results[i].MaterialID], &results[i])
	}
	return results, nil
}

// Import inserts units with caller-supplied barcodes. Barcodes that already
// exist, duplicates inside the request and materials of another site reject
// the whole import.
func (s *ReceiveService) Import(ctx context.Context, tx database.Querier, req ImportRequest) (*ImportResult, error) {
	if err := checkBulkLimit(len(req.Units), s.settings.BulkLimit); err != nil {
		return nil, err
	}

	barcodes := make([]string, 0, len(req.Units))
	seen := make(map[string]struct{}, len(req.Units))
	var duplicates []string
	materialIDs := make(map[int64]struct{})
	for _, u := range req.Units {
		if _, ok := seen[u.Barcode]; ok {
			duplicates = append(duplicates, u.Barcode)
			continue
		}
		seen[u.Barcode] = struct{}{}
		barcodes = append(barcodes, u.Barcode)
		materialIDs[u.MaterialID] = struct{}{}
	}
	if len(duplicates) > 0 {
		return nil, errors.Validation(map[string]string{
			"units": "duplicate barcodes in request: " + strings.Join(duplicates, ", "),
		})
	}

	taken, err := s.units.ExistingBarcodes(ctx, tx, barcodes)
	if err != nil {
		return nil, err
	}
	if len(taken) > 0 {
		return nil, errors.Conflict("barcodes already exist").
			WithDetail("barcodes", strings.Join(taken, ", "))
	}

	materials, err := s.materials.ListByIDs(ctx, tx, sortedIDs(materialIDs))
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]*repository.Material, len(materials))
	for i := range materials {
		m := &materials[i]
		if err := ownedBy(ctx, m.SiteID, "material"); err != nil {
			return nil, errors.BadRequest(fmt.Sprintf("material %s belongs to another site", m.Name))
		}
		byID[m.ID] = m
	}
	var missing []string
	for id := range materialIDs {
		if _, ok := byID[id]; !ok {
			missing = append(missing, strconv.FormatInt(id, 10))
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, errors.NotFound("material").WithDetail("material_ids", strings.Join(missing, ", "))
	}

	deltas := make(map[int64]int64, len(byID))
	perMaterial := make(map[string]int64, len(byID))
	for _, in := range req.Units {
		m := byID[in.MaterialID]
		u := s.template(m)
		u.Barcode = in.Barcode
		u.Batch = in.Batch
		u.Invoice = in.Invoice
		u.MRP = in.MRP
		u.ManufacturingDate = in.ManufacturingDate
		if in.QCStatus != "" {
			u.QCStatus = in.QCStatus
		}
		if err := s.units.Insert(ctx, tx, u); err != nil {
			return nil, err
		}
		deltas[m.ID] += int64(u.Quantity)
		perMaterial[m.Name]++
	}

	if err := s.ledger.AdjustStock(ctx, tx, deltas); err != nil {
		return nil, err
	}

	s.logger.Info().
		Int("units", len(req.Units)).
		Int("materials", len(byID)).
		Str("actor", actor.FromContext(ctx).String()).
		Msg("units imported")

	return &ImportResult{Total: len(req.Units), Created: len(req.Units), Materials: perMaterial}, nil
}

func (s *ReceiveService) material(ctx context.Context, tx database.Querier, id int64) (*repository.Material, error) {
	m, err := s.materials.GetByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := ownedBy(ctx, m.SiteID, "material"); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *ReceiveService) template(m *repository.Material) *repository.Unit {
	status := repository.QCPending
	if s.settings.AutoApprove {
		status = repository.QCApproved
	}
	return &repository.Unit{
		SiteID:              m.SiteID,
		MaterialID:          m.ID,
		MaterialName:        m.Name,
		MaterialDescription: m.Description,
		Quantity:            1,
		QCStatus:            status,
	}
}

// create allocates n barcodes and inserts the units.
func (s *ReceiveService) create(ctx context.Context, tx database.Querier, tmpl *repository.Unit, n int) (*ReceiveResult, error) {
	barcodes, err := s.allocate(ctx, tx, n)
	if err != nil {
		return nil, err
	}
	created, err := s.units.CreateBatch(ctx, tx, tmpl, barcodes)
	if err != nil {
		return nil, err
	}
	if len(created) == 0 {
		return nil, errors.Internal("no units were created")
	}
	return &ReceiveResult{
		MaterialID:   tmpl.MaterialID,
		Total:        len(created),
		FirstBarcode: created[0].Barcode,
		LastBarcode:  created[len(created)-1].Barcode,
		Units:        created,
	}, nil
}

// allocate reserves n barcodes following the last one ever issued. The
// repository holds a transaction-scoped lock until commit, so concurrent
// receives never hand out the same barcode.
func (s *ReceiveService) allocate(ctx context.Context, tx database.Querier, n int) ([]string, error) {
	last, ok, err := s.units.LastBarcode(ctx, tx)
	if err != nil {
		return nil, err
	}

	next := s.settings.BarcodeStart
	if ok {
		next, err = strconv.ParseInt(last, 10, 64)
		if err != nil {
			return nil, errors.Internal("last barcode is not numeric")
		}
	}
	return FormatBarcodes(next, n, s.settings.BarcodeWidth), nil
}

// FormatBarcodes returns the n barcodes following last, zero-padded to width.
func FormatBarcodes(last int64, n, width int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%0*d", width, last+int64(i)+1)
	}
	return out
}

func (s *ReceiveService) announce(ctx context.Context, siteID int64, r *ReceiveResult) {
	s.publisher.UnitsReceived(ctx, messaging.UnitsReceivedEvent{
		SiteID:       siteID,
		MaterialID:   r.MaterialID,
		Count:        r.Total,
		FirstBarcode: r.FirstBarcode,
		LastBarcode:  r.LastBarcode,
		ReceivedBy:   actor.FromContext(ctx).Name(),
	})
}
