package service

import (
	"context"

	"github.com/wareflow/wareflow-backend/internal/inventory/events"
	"github.com/wareflow/wareflow-backend/internal/inventory/repository"
	"github.com/wareflow/wareflow-backend/pkg/actor"
	"github.com/wareflow/wareflow-backend/pkg/database"
	"github.com/wareflow/wareflow-backend/pkg/logger"
	"github.com/wareflow/wareflow-backend/pkg/messaging"
)

// ReturnRequest brings dispatched units back into stock.
type ReturnRequest struct {
	Barcodes []string `json:"barcodes" validate:"required,min=1,dive,required"`
	Remark   *string  `json:"remark,omitempty" validate:"omitempty,max=500"`
}

// ReturnService handles customer returns.
type ReturnService struct {
	units     *repository.UnitRepository
	records   *repository.RecordRepository
	ledger    *Ledger
	publisher *events.WarehousePublisher
	settings  Settings
	logger    *logger.Logger
}

// NewReturnService creates a new return service
func NewReturnService(
	repos *Repositories,
	ledger *Ledger,
	publisher *events.WarehousePublisher,
	settings Settings,
	log *logger.Logger,
) *ReturnService {
	return &ReturnService{
		units:     repos.Units,
		records:   repos.Records,
		ledger:    ledger,
		publisher: publisher,
		settings:  settings,
		logger:    log,
	}
}

// Return records each dispatched unit as returned and resets it to QC
// Pending, off any shelf. Units that were never dispatched are skipped.
func (s *ReturnService) Return(ctx context.Context, tx database.Querier, req ReturnRequest) (*BulkResult, error) {
	barcodes := dedupe(req.Barcodes)
	if err := checkBulkLimit(len(barcodes), s.settings.BulkLimit); err != nil {
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
	deltas := make(map[int64]int64)
	var returned []*repository.Unit

	for _, barcode := range barcodes {
		unit, ok := byBarcode[barcode]
		if !ok || ownedBy(ctx, unit.SiteID, "inventory unit") != nil {
			result.skip(barcode, "unit not found")
			continue
		}
		if !unit.IsDispatch || unit.InStock {
			result.skip(barcode, "unit has not been dispatched")
			continue
		}

		rec := &repository.ReturnRecord{
			SiteID:              unit.SiteID,
			InwardID:            unit.ID,
			Barcode:             unit.Barcode,
			Quantity:            unit.Quantity,
			MaterialName:        unit.MaterialName,
			MaterialDescription: unit.MaterialDescription,
			InwardDate:          unit.CreatedAt,
			DispatchAt:          unit.DispatchAt,
			DispatchBy:          unit.DispatchBy,
			PicklistID:          unit.PicklistID,
			PicklistName:        unit.PicklistName,
			PickedBy:            unit.PickedBy,
			LastShelfID:         unit.ShelfID,
			LastShelf:           unit.ShelfName,
			Remark:              req.Remark,
		}
		if err := s.records.CreateReturn(ctx, tx, rec); err != nil {
			return nil, err
		}
		if err := s.units.ResetForReturn(ctx, tx, unit.ID); err != nil {
			return nil, err
		}

		deltas[unit.MaterialID] += int64(unit.Quantity)
		returned = append(returned, unit)
		result.Success++
	}

	if err := s.ledger.AdjustStock(ctx, tx, deltas); err != nil {
		return nil, err
	}

	by := actor.FromContext(ctx).Name()
	for _, u := range returned {
		e := messaging.UnitReturnedEvent{
			SiteID:     u.SiteID,
			UnitID:     u.ID,
			Barcode:    u.Barcode,
			MaterialID: u.MaterialID,
			ReturnedBy: by,
		}
		if u.PicklistName != nil {
			e.PicklistName = *u.PicklistName
		}
		s.publisher.UnitReturned(ctx, e)
	}
	return result, nil
}
