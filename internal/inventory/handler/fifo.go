package handler

import (
	"net/http"

	"github.com/wareflow/wareflow-backend/internal/inventory/repository"
	"github.com/wareflow/wareflow-backend/internal/inventory/service"
	"github.com/wareflow/wareflow-backend/pkg/logger"
)

// FIFOHandler lists FIFO violations and overrides
type FIFOHandler struct {
	catalog *service.Catalog
	logger  *logger.Logger
}

// NewFIFOHandler creates a new FIFO log handler
func NewFIFOHandler(svc *Services, log *logger.Logger) *FIFOHandler {
	return &FIFOHandler{catalog: svc.Catalog, logger: log}
}

// List handles GET /fifo-violations. Filter by type=Violation or
// type=Override.
func (h *FIFOHandler) List(w http.ResponseWriter, r *http.Request) {
	list[repository.FIFOLogRow](w, r, h.catalog, repository.EntityFIFOEntry,
		service.Include("picklist", repository.EntityPicklist, repository.PicklistRefColumns))
}
