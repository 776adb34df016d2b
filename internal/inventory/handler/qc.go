package handler

import (
	"net/http"

	"github.com/wareflow/wareflow-backend/internal/inventory/repository"
	"github.com/wareflow/wareflow-backend/internal/inventory/service"
	"github.com/wareflow/wareflow-backend/pkg/database"
	"github.com/wareflow/wareflow-backend/pkg/httputil"
	"github.com/wareflow/wareflow-backend/pkg/logger"
)

// QCHandler handles quality check endpoints
type QCHandler struct {
	db      database.Querier
	qc      *service.QCService
	catalog *service.Catalog
	logger  *logger.Logger
}

// NewQCHandler creates a new QC handler
func NewQCHandler(db database.Querier, svc *Services, log *logger.Logger) *QCHandler {
	return &QCHandler{db: db, qc: svc.QC, catalog: svc.Catalog, logger: log}
}

// List handles GET /qc
func (h *QCHandler) List(w http.ResponseWriter, r *http.Request) {
	list[repository.QCRecord](w, r, h.catalog, repository.EntityQCRecord)
}

// Record handles POST /qc
func (h *QCHandler) Record(w http.ResponseWriter, r *http.Request) {
	var req service.QCRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	rec, err := h.qc.Record(r.Context(), querier(r, h.db), req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, rec)
}

// RecordBulk handles POST /qc/bulk
func (h *QCHandler) RecordBulk(w http.ResponseWriter, r *http.Request) {
	var req service.BulkQCRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	result, err := h.qc.RecordBulk(r.Context(), querier(r, h.db), req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, result)
}
