package handler

import (
	"net/http"
	"strings"

	"github.com/wareflow/wareflow-backend/internal/inventory/repository"
	"github.com/wareflow/wareflow-backend/internal/inventory/service"
	"github.com/wareflow/wareflow-backend/pkg/database"
	"github.com/wareflow/wareflow-backend/pkg/errors"
	"github.com/wareflow/wareflow-backend/pkg/httputil"
	"github.com/wareflow/wareflow-backend/pkg/logger"
	"github.com/wareflow/wareflow-backend/pkg/query"
)

// searchColumns are matched by GET /units/search
var searchColumns = []string{"barcode", "material_name", "batch", "invoice"}

// UnitHandler handles inventory unit endpoints
type UnitHandler struct {
	db      database.Querier
	receive *service.ReceiveService
	catalog *service.Catalog
	logger  *logger.Logger
}

// NewUnitHandler creates a new unit handler
func NewUnitHandler(db database.Querier, svc *Services, log *logger.Logger) *UnitHandler {
	return &UnitHandler{
		db:      db,
		receive: svc.Receive,
		catalog: svc.Catalog,
		logger:  log,
	}
}

func unitIncludes() []service.ListOption {
	return []service.ListOption{
		service.Include("material", repository.EntityMaterial, repository.MaterialRefColumns),
		service.Include("shelf", repository.EntityShelf, repository.ShelfRefColumns),
	}
}

// List handles GET /units
func (h *UnitHandler) List(w http.ResponseWriter, r *http.Request) {
	list[repository.UnitRow](w, r, h.catalog, repository.EntityUnit, unitIncludes()...)
}

// Search handles GET /units/search?q=
func (h *UnitHandler) Search(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	term := strings.TrimSpace(values.Get("q"))
	if term == "" {
		httputil.Error(w, errors.BadRequest("q query parameter is required"))
		return
	}
	if len(term) > 200 {
		httputil.Error(w, errors.BadRequest("q too long"))
		return
	}
	values.Del("q")

	match := make(query.Or, 0, len(searchColumns))
	for _, col := range searchColumns {
		match = append(match, query.Like{Field: col, Pattern: "%" + term + "%", CaseInsensitive: true})
	}

	rows := []repository.UnitRow{}
	opts := append(unitIncludes(), service.Where(match))
	page, err := h.catalog.List(r.Context(), repository.EntityUnit, values, &rows, opts...)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSONWithMeta(w, http.StatusOK, rows, &httputil.Meta{Offset: page.Offset, Limit: page.Limit, Total: page.Total})
}

// Get handles GET /units/{id}
func (h *UnitHandler) Get(w http.ResponseWriter, r *http.Request) {
	get[repository.UnitRow](w, r, h.catalog, repository.EntityUnit, unitIncludes()...)
}

// Receive handles POST /units/receive
func (h *UnitHandler) Receive(w http.ResponseWriter, r *http.Request) {
	var req service.ReceiveRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	result, err := h.receive.Receive(r.Context(), querier(r, h.db), req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, result)
}

// GenerateBarcodes handles POST /units/generate-barcodes
func (h *UnitHandler) GenerateBarcodes(w http.ResponseWriter, r *http.Request) {
	var req service.GenerateBarcodesRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	results, err := h.receive.GenerateBarcodes(r.Context(), querier(r, h.db), req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, results)
}

// Import handles POST /units/import
func (h *UnitHandler) Import(w http.ResponseWriter, r *http.Request) {
	var req service.ImportRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	result, err := h.receive.Import(r.Context(), querier(r, h.db), req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	h.logger.Info().Int("created", result.Created).Msg("units imported")
	httputil.Created(w, result)
}
