package service

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/wareflow/wareflow-backend/internal/inventory/repository"
	"github.com/wareflow/wareflow-backend/pkg/database"
	"github.com/wareflow/wareflow-backend/pkg/errors"
	"github.com/wareflow/wareflow-backend/pkg/logger"
)

// PutawayRequest moves one unit onto a shelf.
type PutawayRequest struct {
	InwardID int64 `json:"inward_id" validate:"required,gt=0"`
	ShelfID  int64 `json:"shelf_id" validate:"required,gt=0"`
}

// BulkPutawayRequest moves many units onto the same shelf.
type BulkPutawayRequest struct {
	Barcodes []string `json:"barcodes" validate:"required,min=1,dive,required"`
	ShelfID  int64    `json:"shelf_id" validate:"required,gt=0"`
}

// PutawayService places approved units on shelves.
type PutawayService struct {
	units    *repository.UnitRepository
	shelves  *repository.ShelfRepository
	records  *repository.RecordRepository
	ledger   *Ledger
	settings Settings
	logger   *logger.Logger
}

// NewPutawayService creates a new putaway service
func NewPutawayService(repos *Repositories, ledger *Ledger, settings Settings, log *logger.Logger) *PutawayService {
	return &PutawayService{
		units:    repos.Units,
		shelves:  repos.Shelves,
		records:  repos.Records,
		ledger:   ledger,
		settings: settings,
		logger:   log,
	}
}

// Putaway shelves one unit, moving its load from the previous shelf.
func (s *PutawayService) Putaway(ctx context.Context, tx database.Querier, req PutawayRequest) (*repository.PutawayRecord, error) {
	unit, err := s.units.GetByIDForUpdate(ctx, tx, req.InwardID)
	if err != nil {
		return nil, err
	}
	shelf, err := s.shelf(ctx, tx, req.ShelfID)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, tx, unit, shelf)
}

// PutawayBulk shelves every barcode on the same shelf until it is full.
// Units that do not qualify or no longer fit are reported.
func (s *PutawayService) PutawayBulk(ctx context.Context, tx database.Querier, req BulkPutawayRequest) (*BulkResult, error) {
	barcodes := dedupe(req.Barcodes)
	if err := checkBulkLimit(len(barcodes), s.settings.BulkLimit); err != nil {
		return nil, err
	}

	shelf, err := s.shelf(ctx, tx, req.ShelfID)
	if err != nil {
		return nil, err
	}
	units, err := s.units.ListByBarcodesForUpdate(ctx, tx, barcodes)
	if err != nil {
		return nil, err
	}
	byBarcode := make(map[string]*repository.Unit, len(units))
	for i := range units {
		byBarcode[units[i].Barcode] = &units[i]
	}

	result := newBulkResult(len(barcodes))
	for _, barcode := range barcodes {
		unit, ok := byBarcode[barcode]
		if !ok || ownedBy(ctx, unit.SiteID, "inventory unit") != nil {
			result.skip(barcode, "unit not found")
			continue
		}

		err := database.Savepoint(ctx, tx, "putaway_item", func() error {
			_, err := s.apply(ctx, tx, unit, shelf)
			return err
		})
		if err != nil {
			reason, ok := skippable(err)
			if !ok {
				return nil, err
			}
			result.fail(barcode, reason)
			continue
		}
		result.Success++
	}
	return result, nil
}

func (s *PutawayService) shelf(ctx context.Context, tx database.Querier, id int64) (*repository.Shelf, error) {
	shelf, err := s.shelves.GetByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := ownedBy(ctx, shelf.SiteID, "shelf"); err != nil {
		return nil, err
	}
	return shelf, nil
}

func (s *PutawayService) apply(ctx context.Context, tx database.Querier, unit *repository.Unit, shelf *repository.Shelf) (*repository.PutawayRecord, error) {
	if err := ownedBy(ctx, unit.SiteID, "inventory unit"); err != nil {
		return nil, err
	}
	if err := checkPutaway(unit, shelf); err != nil {
		return nil, err
	}

	if err := s.ledger.MoveLoad(ctx, tx, unit.ShelfID, shelf.ID, decimal.NewFromInt(int64(unit.Quantity))); err != nil {
		return nil, err
	}

	rec := &repository.PutawayRecord{
		SiteID:          unit.SiteID,
		InwardID:        unit.ID,
		Barcode:         unit.Barcode,
		PreviousShelfID: unit.ShelfID,
		PreviousShelf:   unit.ShelfName,
		CurrentShelfID:  shelf.ID,
		CurrentShelf:    shelf.Name,
		Quantity:        unit.Quantity,
	}
	if err := s.records.CreatePutaway(ctx, tx, rec); err != nil {
		return nil, err
	}
	if err := s.units.SetShelf(ctx, tx, unit.ID, shelf.ID, shelf.Name); err != nil {
		return nil, err
	}

	unit.ShelfID = &shelf.ID
	unit.ShelfName = &shelf.Name
	unit.IsPutAway = true
	return rec, nil
}

// checkPutaway holds the rules a unit must pass before it may be shelved.
// Capacity is checked later under the shelf lock.
func checkPutaway(unit *repository.Unit, shelf *repository.Shelf) error {
	switch {
	case unit.SiteID != shelf.SiteID:
		return errors.BadRequest("shelf belongs to another site")
	case unit.QCStatus == repository.QCRejected:
		return errors.BusinessRule("rejected units cannot be put away")
	case unit.QCStatus != repository.QCApproved:
		return errors.BusinessRule("unit must pass QC before putaway")
	case !unit.InStock:
		return errors.BusinessRule("unit is not in stock")
	case unit.IsPicked:
		return errors.BusinessRule("picked units cannot be moved")
	case unit.ShelfID != nil && *unit.ShelfID == shelf.ID:
		return errors.BusinessRule("unit is already on this shelf")
	}
	return nil
}
