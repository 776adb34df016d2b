package handler

import (
	"net/http"

	"github.com/wareflow/wareflow-backend/internal/inventory/repository"
	"github.com/wareflow/wareflow-backend/internal/inventory/service"
	"github.com/wareflow/wareflow-backend/pkg/database"
	"github.com/wareflow/wareflow-backend/pkg/httputil"
	"github.com/wareflow/wareflow-backend/pkg/logger"
)

// PicklistHandler handles picklist endpoints
type PicklistHandler struct {
	db        database.Querier
	picklists *service.PicklistService
	catalog   *service.Catalog
	logger    *logger.Logger
}

// NewPicklistHandler creates a new picklist handler
func NewPicklistHandler(db database.Querier, svc *Services, log *logger.Logger) *PicklistHandler {
	return &PicklistHandler{db: db, picklists: svc.Picklists, catalog: svc.Catalog, logger: log}
}

// List handles GET /picklists
func (h *PicklistHandler) List(w http.ResponseWriter, r *http.Request) {
	list[repository.PicklistRow](w, r, h.catalog, repository.EntityPicklist,
		service.Include("customer", repository.EntityCustomer, repository.CustomerRefColumns))
}

// Create handles POST /picklists. One picklist is created per customer.
func (h *PicklistHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.CreatePicklistRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	created, err := h.picklists.Create(r.Context(), querier(r, h.db), req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, created)
}

// Get handles GET /picklists/{id}
func (h *PicklistHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.URLParamInt64(r, "id")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	detail, err := h.picklists.Get(r.Context(), querier(r, h.db), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, detail)
}

// Update handles PUT /picklists/{id}. Setting is_issued dispatches every
// picked unit.
func (h *PicklistHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.URLParamInt64(r, "id")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var req service.UpdatePicklistRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	detail, err := h.picklists.Update(r.Context(), querier(r, h.db), id, req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, detail)
}

// Delete handles DELETE /picklists/{id}
func (h *PicklistHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.URLParamInt64(r, "id")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	if err := h.picklists.Delete(r.Context(), querier(r, h.db), id); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}

// ReassignPicker handles POST /picklists/{id}/pickers
func (h *PicklistHandler) ReassignPicker(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.URLParamInt64(r, "id")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var req service.ReassignPickerRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	change, err := h.picklists.ReassignPicker(r.Context(), querier(r, h.db), id, req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, change)
}
