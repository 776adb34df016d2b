package service

import (
	"context"
	"fmt"
	"net/http"

	"github.com/wareflow/wareflow-backend/internal/inventory/repository"
	"github.com/wareflow/wareflow-backend/pkg/database"
	"github.com/wareflow/wareflow-backend/pkg/errors"
	"github.com/wareflow/wareflow-backend/pkg/logger"
	"github.com/xuri/excelize/v2"
)

const (
	reconciliationSheet = "Reconciliation"
	barcodeSheet        = "Barcodes"
)

var reconciliationHeader = []any{
	"Material", "Description", "Available", "Found", "Scrapped", "Manually Approved", "Not Found",
}

var barcodeHeader = []any{"Material", "Barcode", "Quantity", "Shelf", "Status", "Remark"}

// ReportService renders audit reconciliation workbooks.
type ReportService struct {
	audits *repository.AuditRepository
	logger *logger.Logger
}

// NewReportService creates a new report service
func NewReportService(repos *Repositories, log *logger.Logger) *ReportService {
	return &ReportService{audits: repos.Audits, logger: log}
}

// ExportAudit builds the reconciliation workbook of an audit: one row per
// material with its counters, and one row per scanned unit. It returns the
// workbook and a file name.
func (s *ReportService) ExportAudit(ctx context.Context, q database.Querier, auditID int64) (*excelize.File, string, error) {
	audit, err := s.audits.GetByID(ctx, q, auditID)
	if err != nil {
		return nil, "", err
	}
	if err := ownedBy(ctx, audit.SiteID, "audit"); err != nil {
		return nil, "", err
	}
	items, err := s.audits.Items(ctx, q, audit.ID)
	if err != nil {
		return nil, "", err
	}
	lines, err := s.audits.Barcodes(ctx, q, audit.ID)
	if err != nil {
		return nil, "", err
	}

	f, err := BuildAuditWorkbook(items, lines)
	if err != nil {
		return nil, "", errors.Wrap(err, "EXPORT_FAILED", "failed to build audit workbook", http.StatusInternalServerError)
	}
	return f, fmt.Sprintf("%s.xlsx", audit.Number), nil
}

// BuildAuditWorkbook lays out the two reconciliation sheets.
func BuildAuditWorkbook(items []repository.AuditItem, lines []repository.AuditItemBarcode) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", reconciliationSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(barcodeSheet); err != nil {
		return nil, err
	}

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
	})
	if err != nil {
		return nil, err
	}

	if err := writeRow(f, reconciliationSheet, 1, reconciliationHeader); err != nil {
		return nil, err
	}
	materials := make(map[int64]string, len(items))
	for i, it := range items {
		materials[it.ID] = it.MaterialName
		description := ""
		if it.MaterialDescription != nil {
			description = *it.MaterialDescription
		}
		row := []any{
			it.MaterialName, description, it.AvailableQuantity, it.FoundQuantity,
			it.ScrappedQuantity, it.ManuallyApprovedQuantity, it.NotFoundQuantity,
		}
		if err := writeRow(f, reconciliationSheet, i+2, row); err != nil {
			return nil, err
		}
	}

	if err := writeRow(f, barcodeSheet, 1, barcodeHeader); err != nil {
		return nil, err
	}
	for i, l := range lines {
		row := []any{materials[l.AuditItemID], l.Barcode, l.Quantity, deref(l.Shelf), l.BarcodeStatus, deref(l.Remark)}
		if err := writeRow(f, barcodeSheet, i+2, row); err != nil {
			return nil, err
		}
	}

	for _, sheet := range []string{reconciliationSheet, barcodeSheet} {
		_ = f.SetCellStyle(sheet, "A1", "G1", header)
		_ = f.SetColWidth(sheet, "A", "B", 28)
		_ = f.SetColWidth(sheet, "C", "G", 16)
	}
	return f, nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
