package handler

import (
	"net/http"

	"github.com/wareflow/wareflow-backend/internal/inventory/repository"
	"github.com/wareflow/wareflow-backend/internal/inventory/service"
	"github.com/wareflow/wareflow-backend/pkg/database"
	"github.com/wareflow/wareflow-backend/pkg/httputil"
	"github.com/wareflow/wareflow-backend/pkg/logger"
)

// PickHandler handles picking endpoints
type PickHandler struct {
	db      database.Querier
	picking *service.PickingService
	catalog *service.Catalog
	logger  *logger.Logger
}

// NewPickHandler creates a new pick handler
func NewPickHandler(db database.Querier, svc *Services, log *logger.Logger) *PickHandler {
	return &PickHandler{db: db, picking: svc.Picking, catalog: svc.Catalog, logger: log}
}

// List handles GET /picks. Filter by picklist with item.picklist_id.
func (h *PickHandler) List(w http.ResponseWriter, r *http.Request) {
	list[repository.Pick](w, r, h.catalog, repository.EntityPick, service.SiteThrough("unit.site_id"))
}

// Create handles POST /picks
func (h *PickHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.PickRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	result, err := h.picking.Pick(r.Context(), querier(r, h.db), req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, result)
}

// CreateBulk handles POST /picks/bulk
func (h *PickHandler) CreateBulk(w http.ResponseWriter, r *http.Request) {
	var req service.BulkPickRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	result, err := h.picking.BulkPick(r.Context(), querier(r, h.db), req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, result)
}

// Delete handles DELETE /picks/{id}
func (h *PickHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.URLParamInt64(r, "id")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	result, err := h.picking.Unpick(r.Context(), querier(r, h.db), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, result)
}
