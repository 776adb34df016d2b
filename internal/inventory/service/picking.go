package service

import (
	"context"

	"github.com/wareflow/wareflow-backend/internal/inventory/events"
	"github.com/wareflow/wareflow-backend/internal/inventory/repository"
	"github.com/wareflow/wareflow-backend/pkg/actor"
	"github.com/wareflow/wareflow-backend/pkg/database"
	"github.com/wareflow/wareflow-backend/pkg/errors"
	"github.com/wareflow/wareflow-backend/pkg/logger"
	"github.com/wareflow/wareflow-backend/pkg/messaging"
)

// PickRequest allocates one unit to a picklist. The item is resolved by
// PicklistItemID when given, otherwise by material.
type PickRequest struct {
	PicklistID     int64  `json:"picklist_id" validate:"required,gt=0"`
	PicklistItemID *int64 `json:"picklist_item_id,omitempty" validate:"omitempty,gt=0"`
	MaterialID     *int64 `json:"material_id,omitempty" validate:"omitempty,gt=0"`
	Barcode        string `json:"barcode" validate:"required"`
}

// PickResult is the outcome of one pick.
type PickResult struct {
	Pick           *repository.Pick `json:"pick"`
	Restored       bool             `json:"restored"`
	PicklistStatus string           `json:"picklist_status"`
}

// BulkPickRequest picks many barcodes for one picklist.
type BulkPickRequest struct {
	PicklistID int64    `json:"picklist_id" validate:"required,gt=0"`
	Barcodes   []string `json:"barcodes" validate:"required,min=1,dive,required"`
}

// BulkPickResult summarises a bulk pick.
type BulkPickResult struct {
	Total          int         `json:"total"`
	Created        int         `json:"created"`
	Restored       int         `json:"restored"`
	Skipped        []BulkIssue `json:"skipped"`
	PicklistStatus string      `json:"picklist_status"`
}

// UnpickResult is the picklist status after a pick was undone.
type UnpickResult struct {
	PicklistID     int64  `json:"picklist_id"`
	PicklistStatus string `json:"picklist_status"`
}

// PickingService allocates units to picklist items.
type PickingService struct {
	units     *repository.UnitRepository
	picklists *repository.PicklistRepository
	fifo      *FIFOGuard
	publisher *events.WarehousePublisher
	settings  Settings
	logger    *logger.Logger
}

// NewPickingService creates a new picking service
func NewPickingService(
	repos *Repositories,
	fifo *FIFOGuard,
	publisher *events.WarehousePublisher,
	settings Settings,
	log *logger.Logger,
) *PickingService {
	return &PickingService{
		units:     repos.Units,
		picklists: repos.Picklists,
		fifo:      fifo,
		publisher: publisher,
		settings:  settings,
		logger:    log,
	}
}

// Pick validates the unit, applies the FIFO policy and links the unit to
// the picklist item. Locks are taken unit, picklist, item.
func (s *PickingService) Pick(ctx context.Context, tx database.Querier, req PickRequest) (*PickResult, error) {
	unit, err := s.units.GetByBarcodeForUpdate(ctx, tx, req.Barcode)
	if err != nil {
		return nil, err
	}
	if err := ownedBy(ctx, unit.SiteID, "inventory unit"); err != nil {
		return nil, err
	}
	if err := checkPickable(unit); err != nil {
		return nil, err
	}

	picklist, err := s.openPicklist(ctx, tx, req.PicklistID)
	if err != nil {
		return nil, err
	}

	result, err := s.pick(ctx, tx, picklist, unit, req.PicklistItemID, req.MaterialID)
	if err != nil {
		return nil, err
	}

	status, err := s.recompute(ctx, tx, picklist)
	if err != nil {
		return nil, err
	}
	result.PicklistStatus = status
	return result, nil
}

// BulkPick picks every barcode for the picklist, resolving items by the
// unit's material. Barcodes refused by a rule are skipped with the reason.
func (s *PickingService) BulkPick(ctx context.Context, tx database.Querier, req BulkPickRequest) (*BulkPickResult, error) {
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

	picklist, err := s.openPicklist(ctx, tx, req.PicklistID)
	if err != nil {
		return nil, err
	}

	result := &BulkPickResult{Total: len(barcodes), Skipped: []BulkIssue{}}
	for _, barcode := range barcodes {
		unit, ok := byBarcode[barcode]
		if !ok || ownedBy(ctx, unit.SiteID, "inventory unit") != nil {
			result.Skipped = append(result.Skipped, BulkIssue{Barcode: barcode, Reason: "unit not found"})
			continue
		}

		var picked *PickResult
		err := database.Savepoint(ctx, tx, "pick_item", func() error {
			if err := checkPickable(unit); err != nil {
				return err
			}
			var err error
			picked, err = s.pick(ctx, tx, picklist, unit, nil, nil)
			return err
		})
		if err != nil {
			reason, ok := skippable(err)
			if !ok {
				return nil, err
			}
			result.Skipped = append(result.Skipped, BulkIssue{Barcode: barcode, Reason: reason})
			continue
		}
		if picked.Restored {
			result.Restored++
		} else {
			result.Created++
		}
	}

	status, err := s.recompute(ctx, tx, picklist)
	if err != nil {
		return nil, err
	}
	result.PicklistStatus = status
	return result, nil
}

// Unpick undoes a pick: the link is soft-deleted, the unit released and the
// item's picked quantity lowered.
func (s *PickingService) Unpick(ctx context.Context, tx database.Querier, pickID int64) (*UnpickResult, error) {
	link, err := s.picklists.GetPick(ctx, tx, pickID)
	if err != nil {
		return nil, err
	}
	unit, err := s.units.GetByIDForUpdate(ctx, tx, link.InwardID)
	if err != nil {
		return nil, err
	}
	if err := ownedBy(ctx, unit.SiteID, "pick"); err != nil {
		return nil, err
	}
	if unit.PicklistID == nil {
		return nil, errors.NotFound("pick")
	}

	picklist, err := s.openPicklist(ctx, tx, *unit.PicklistID)
	if err != nil {
		return nil, err
	}
	item, err := s.picklists.ItemForUpdate(ctx, tx, link.PicklistItemID)
	if err != nil {
		return nil, err
	}

	if err := s.picklists.DeletePick(ctx, tx, link.ID); err != nil {
		return nil, err
	}
	if err := s.units.ClearPick(ctx, tx, unit.ID); err != nil {
		return nil, err
	}
	if err := s.picklists.AddPicked(ctx, tx, item.ID, -link.Quantity); err != nil {
		return nil, err
	}

	status, err := s.recompute(ctx, tx, picklist)
	if err != nil {
		return nil, err
	}
	return &UnpickResult{PicklistID: picklist.ID, PicklistStatus: status}, nil
}

// checkPickable applies the unit checks in a fixed order so the caller
// always sees the most fundamental problem first.
func checkPickable(unit *repository.Unit) error {
	switch {
	case unit.IsScrapped():
		return errors.BusinessRule("unit has been scrapped")
	case !unit.InStock:
		return errors.BusinessRule("unit is not in stock")
	case unit.QCStatus != repository.QCApproved:
		return errors.BusinessRule("unit has not passed QC")
	case !unit.IsPutAway:
		return errors.BusinessRule("unit has not been put away")
	case unit.IsPicked:
		return errors.BusinessRule("unit is already picked")
	}
	return nil
}

func (s *PickingService) openPicklist(ctx context.Context, tx database.Querier, id int64) (*repository.Picklist, error) {
	picklist, err := s.picklists.GetByIDForUpdate(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := ownedBy(ctx, picklist.SiteID, "picklist"); err != nil {
		return nil, err
	}
	if picklist.IsIssued {
		return nil, errors.BusinessRule("picklist already issued")
	}
	return picklist, nil
}

func (s *PickingService) pick(
	ctx context.Context,
	tx database.Querier,
	picklist *repository.Picklist,
	unit *repository.Unit,
	itemID, materialID *int64,
) (*PickResult, error) {
	if unit.SiteID != picklist.SiteID {
		return nil, errors.BadRequest("unit belongs to another site")
	}

	item, err := s.item(ctx, tx, picklist.ID, unit, itemID, materialID)
	if err != nil {
		return nil, err
	}
	if item.MaterialID != unit.MaterialID {
		return nil, errors.BusinessRule("unit material does not match the picklist item")
	}
	if item.PickedQuantity+unit.Quantity > item.MaterialQuantity {
		return nil, errors.BusinessRule("picklist item is already fully picked")
	}

	if err := s.fifo.Check(ctx, tx, unit, picklist.ID); err != nil {
		return nil, err
	}

	link, restored, err := s.link(ctx, tx, item.ID, unit)
	if err != nil {
		return nil, err
	}

	caller := actor.FromContext(ctx)
	if err := s.units.MarkPicked(ctx, tx, unit.ID, caller.UserID(), picklist.ID, picklist.Name); err != nil {
		return nil, err
	}
	if err := s.picklists.AddPicked(ctx, tx, item.ID, unit.Quantity); err != nil {
		return nil, err
	}

	unit.IsPicked = true
	unit.PicklistID = &picklist.ID
	return &PickResult{Pick: link, Restored: restored}, nil
}

func (s *PickingService) item(
	ctx context.Context,
	tx database.Querier,
	picklistID int64,
	unit *repository.Unit,
	itemID, materialID *int64,
) (*repository.PicklistItem, error) {
	if itemID != nil {
		item, err := s.picklists.ItemForUpdate(ctx, tx, *itemID)
		if err != nil {
			return nil, err
		}
		if item.PicklistID != picklistID {
			return nil, errors.NotFound("picklist item")
		}
		return item, nil
	}

	mid := unit.MaterialID
	if materialID != nil {
		mid = *materialID
	}
	return s.picklists.ItemByMaterialForUpdate(ctx, tx, picklistID, mid)
}

// link creates the unit/item link, reviving a soft-deleted one for the same
// pair so a unit picked, unpicked and picked again keeps a single row.
func (s *PickingService) link(ctx context.Context, tx database.Querier, itemID int64, unit *repository.Unit) (*repository.Pick, bool, error) {
	existing, err := s.picklists.FindPick(ctx, tx, itemID, unit.ID)
	if err != nil {
		return nil, false, err
	}

	if existing == nil {
		p := &repository.Pick{
			PicklistItemID: itemID,
			InwardID:       unit.ID,
			Barcode:        unit.Barcode,
			Quantity:       unit.Quantity,
			Shelf:          unit.ShelfName,
		}
		if err := s.picklists.CreatePick(ctx, tx, p); err != nil {
			return nil, false, err
		}
		return p, false, nil
	}

	if existing.DeletedAt == nil {
		return nil, false, errors.Conflict("unit is already linked to this picklist item")
	}
	existing.Quantity = unit.Quantity
	existing.Shelf = unit.ShelfName
	if err := s.picklists.RestorePick(ctx, tx, existing); err != nil {
		return nil, false, err
	}
	return existing, true, nil
}

// recompute derives the picklist status from its items: Completed once
// every item reached its target, In Progress otherwise.
func (s *PickingService) recompute(ctx context.Context, tx database.Querier, picklist *repository.Picklist) (string, error) {
	items, err := s.picklists.Items(ctx, tx, picklist.ID)
	if err != nil {
		return "", err
	}

	status := PicklistStatus(items)
	if status == picklist.PicklistStatus {
		return status, nil
	}
	if err := s.picklists.SetStatus(ctx, tx, picklist.ID, status); err != nil {
		return "", err
	}

	if status == repository.PicklistCompleted {
		s.publisher.PicklistCompleted(ctx, messaging.PicklistCompletedEvent{
			SiteID:     picklist.SiteID,
			PicklistID: picklist.ID,
			Name:       picklist.Name,
		})
	}
	picklist.PicklistStatus = status
	return status, nil
}

// PicklistStatus returns Completed when every item is picked to target and
// In Progress otherwise.
func PicklistStatus(items []repository.PicklistItem) string {
	if len(items) == 0 {
		return repository.PicklistInProgress
	}
	for i := range items {
		if items[i].PickedQuantity < items[i].MaterialQuantity {
			return repository.PicklistInProgress
		}
	}
	return repository.PicklistCompleted
}
