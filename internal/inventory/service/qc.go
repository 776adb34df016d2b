package service

import (
	"context"

	"github.com/wareflow/wareflow-backend/internal/inventory/repository"
	"github.com/wareflow/wareflow-backend/pkg/database"
	"github.com/wareflow/wareflow-backend/pkg/errors"
	"github.com/wareflow/wareflow-backend/pkg/logger"
)

// QCRequest records the QC outcome of one unit.
type QCRequest struct {
	InwardID int64   `json:"inward_id" validate:"required,gt=0"`
	QCStatus string  `json:"qc_status" validate:"required,oneof=Pending Approved Rejected"`
	Remark   *string `json:"remark,omitempty" validate:"omitempty,max=500"`
}

// BulkQCRequest applies one QC outcome to many units by barcode.
type BulkQCRequest struct {
	Barcodes []string `json:"barcodes" validate:"required,min=1,dive,required"`
	QCStatus string   `json:"qc_status" validate:"required,oneof=Pending Approved Rejected"`
	Remark   *string  `json:"remark,omitempty" validate:"omitempty,max=500"`
}

// QCService records quality-control decisions.
type QCService struct {
	units    *repository.UnitRepository
	records  *repository.RecordRepository
	settings Settings
	logger   *logger.Logger
}

// NewQCService creates a new QC service
func NewQCService(repos *Repositories, settings Settings, log *logger.Logger) *QCService {
	return &QCService{
		units:    repos.Units,
		records:  repos.Records,
		settings: settings,
		logger:   log,
	}
}

// Record writes a QC record and mirrors the outcome on the unit.
func (s *QCService) Record(ctx context.Context, tx database.Querier, req QCRequest) (*repository.QCRecord, error) {
	unit, err := s.units.GetByIDForUpdate(ctx, tx, req.InwardID)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, tx, unit, req.QCStatus, req.Remark)
}

// RecordBulk applies the same outcome to every barcode. Unknown barcodes are
// skipped; units refused by a rule are reported and left untouched.
func (s *QCService) RecordBulk(ctx context.Context, tx database.Querier, req BulkQCRequest) (*BulkResult, error) {
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
	for _, barcode := range barcodes {
		unit, ok := byBarcode[barcode]
		if !ok || ownedBy(ctx, unit.SiteID, "inventory unit") != nil {
			result.skip(barcode, "unit not found")
			continue
		}

		err := database.Savepoint(ctx, tx, "qc_item", func() error {
			_, err := s.apply(ctx, tx, unit, req.QCStatus, req.Remark)
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

func (s *QCService) apply(ctx context.Context, tx database.Querier, unit *repository.Unit, status string, remark *string) (*repository.QCRecord, error) {
	if err := ownedBy(ctx, unit.SiteID, "inventory unit"); err != nil {
		return nil, err
	}
	if !unit.InStock {
		return nil, errors.BusinessRule("unit is not in stock")
	}
	if unit.IsPicked {
		return nil, errors.BusinessRule("picked units cannot change QC status")
	}

	rec := &repository.QCRecord{
		SiteID:   unit.SiteID,
		InwardID: unit.ID,
		Barcode:  unit.Barcode,
		QCStatus: status,
		Remark:   remark,
	}
	if err := s.records.CreateQC(ctx, tx, rec); err != nil {
		return nil, err
	}
	if err := s.units.SetQC(ctx, tx, unit.ID, status, remark); err != nil {
		return nil, err
	}
	return rec, nil
}
