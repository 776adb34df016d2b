package handler

import (
	"fmt"
	"net/http"

	"github.com/wareflow/wareflow-backend/internal/inventory/repository"
	"github.com/wareflow/wareflow-backend/internal/inventory/service"
	"github.com/wareflow/wareflow-backend/pkg/database"
	"github.com/wareflow/wareflow-backend/pkg/httputil"
	"github.com/wareflow/wareflow-backend/pkg/logger"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// AuditHandler handles physical audit endpoints
type AuditHandler struct {
	db      database.Querier
	audits  *service.AuditService
	reports *service.ReportService
	catalog *service.Catalog
	logger  *logger.Logger
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(db database.Querier, svc *Services, log *logger.Logger) *AuditHandler {
	return &AuditHandler{
		db:      db,
		audits:  svc.Audits,
		reports: svc.Reports,
		catalog: svc.Catalog,
		logger:  log,
	}
}

// List handles GET /audits
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	list[repository.Audit](w, r, h.catalog, repository.EntityAudit)
}

// ListItems handles GET /audit-items
func (h *AuditHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	list[repository.AuditItemRow](w, r, h.catalog, repository.EntityAuditItem,
		service.SiteThrough("audit.site_id"),
		service.Include("material", repository.EntityMaterial, repository.MaterialRefColumns))
}

// Open handles POST /audits
func (h *AuditHandler) Open(w http.ResponseWriter, r *http.Request) {
	var req service.OpenAuditRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	detail, err := h.audits.Open(r.Context(), querier(r, h.db), req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, detail)
}

// Get handles GET /audits/{id}
func (h *AuditHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.URLParamInt64(r, "id")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	detail, err := h.audits.Get(r.Context(), querier(r, h.db), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, detail)
}

// Update handles PUT /audits/{id}
func (h *AuditHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.URLParamInt64(r, "id")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var req service.UpdateAuditRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	detail, err := h.audits.UpdateStatus(r.Context(), querier(r, h.db), id, req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, detail)
}

// Scan handles PUT /audits/{id}/scan
func (h *AuditHandler) Scan(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.URLParamInt64(r, "id")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var req service.ScanRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	result, err := h.audits.Scan(r.Context(), querier(r, h.db), id, req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, result)
}

// Export handles GET /audits/{id}/export and serves the reconciliation
// workbook.
func (h *AuditHandler) Export(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.URLParamInt64(r, "id")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	f, filename, err := h.reports.ExportAudit(r.Context(), querier(r, h.db), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	defer f.Close()

	buf, err := f.WriteToBuffer()
	if err != nil {
		h.logger.Error().Err(err).Int64("audit_id", id).Msg("failed to render audit workbook")
		httputil.Error(w, err)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
