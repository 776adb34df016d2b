package handler

import (
	"net/http"

	"github.com/wareflow/wareflow-backend/internal/inventory/repository"
	"github.com/wareflow/wareflow-backend/internal/inventory/service"
	"github.com/wareflow/wareflow-backend/pkg/database"
	"github.com/wareflow/wareflow-backend/pkg/httputil"
	"github.com/wareflow/wareflow-backend/pkg/logger"
)

// ReturnHandler handles customer return endpoints
type ReturnHandler struct {
	db      database.Querier
	returns *service.ReturnService
	catalog *service.Catalog
	logger  *logger.Logger
}

// NewReturnHandler creates a new return handler
func NewReturnHandler(db database.Querier, svc *Services, log *logger.Logger) *ReturnHandler {
	return &ReturnHandler{db: db, returns: svc.Returns, catalog: svc.Catalog, logger: log}
}

// List handles GET /returns
func (h *ReturnHandler) List(w http.ResponseWriter, r *http.Request) {
	list[repository.ReturnRecord](w, r, h.catalog, repository.EntityReturn)
}

// Get handles GET /returns/{id}
func (h *ReturnHandler) Get(w http.ResponseWriter, r *http.Request) {
	get[repository.ReturnRecord](w, r, h.catalog, repository.EntityReturn)
}

// Create handles POST /returns
func (h *ReturnHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.ReturnRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	result, err := h.returns.Return(r.Context(), querier(r, h.db), req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, result)
}
