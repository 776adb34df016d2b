package handler

import (
	"net/http"

	"github.com/wareflow/wareflow-backend/internal/inventory/repository"
	"github.com/wareflow/wareflow-backend/internal/inventory/service"
	"github.com/wareflow/wareflow-backend/pkg/database"
	"github.com/wareflow/wareflow-backend/pkg/httputil"
	"github.com/wareflow/wareflow-backend/pkg/logger"
)

// PutawayHandler handles putaway endpoints
type PutawayHandler struct {
	db      database.Querier
	putaway *service.PutawayService
	catalog *service.Catalog
	logger  *logger.Logger
}

// NewPutawayHandler creates a new putaway handler
func NewPutawayHandler(db database.Querier, svc *Services, log *logger.Logger) *PutawayHandler {
	return &PutawayHandler{db: db, putaway: svc.Putaway, catalog: svc.Catalog, logger: log}
}

// List handles GET /putaways
func (h *PutawayHandler) List(w http.ResponseWriter, r *http.Request) {
	list[repository.PutawayRecord](w, r, h.catalog, repository.EntityPutaway)
}

// Create handles POST /putaways
func (h *PutawayHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.PutawayRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	rec, err := h.putaway.Putaway(r.Context(), querier(r, h.db), req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, rec)
}

// CreateBulk handles POST /putaways/bulk
func (h *PutawayHandler) CreateBulk(w http.ResponseWriter, r *http.Request) {
	var req service.BulkPutawayRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	result, err := h.putaway.PutawayBulk(r.Context(), querier(r, h.db), req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, result)
}
