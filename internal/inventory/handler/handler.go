// Package handler exposes the warehouse services over HTTP.
package handler

import (
	"net/http"

	"github.com/wareflow/wareflow-backend/internal/inventory/events"
	"github.com/wareflow/wareflow-backend/internal/inventory/service"
	"github.com/wareflow/wareflow-backend/pkg/database"
	"github.com/wareflow/wareflow-backend/pkg/httputil"
	"github.com/wareflow/wareflow-backend/pkg/logger"
)

// Services bundles everything the handlers call into.
type Services struct {
	Receive   *service.ReceiveService
	QC        *service.QCService
	Putaway   *service.PutawayService
	Picklists *service.PicklistService
	Picking   *service.PickingService
	Returns   *service.ReturnService
	Audits    *service.AuditService
	Reports   *service.ReportService
	Catalog   *service.Catalog
}

// NewServices wires the warehouse services over db. side is the small pool
// for writes that commit outside the request transaction. publisher may be
// nil when messaging is disabled.
func NewServices(db, side database.Querier, publisher *events.WarehousePublisher, settings service.Settings, log *logger.Logger) *Services {
	repos := service.NewRepositories()
	ledger := service.NewLedger(repos.Materials, repos.Shelves)
	fifo := service.NewFIFOGuard(repos, side, publisher, settings, log.WithComponent("fifo"))

	return &Services{
		Receive:   service.NewReceiveService(repos, ledger, publisher, settings, log),
		QC:        service.NewQCService(repos, settings, log),
		Putaway:   service.NewPutawayService(repos, ledger, settings, log),
		Picklists: service.NewPicklistService(repos, ledger, publisher, settings, log),
		Picking:   service.NewPickingService(repos, fifo, publisher, settings, log),
		Returns:   service.NewReturnService(repos, ledger, publisher, settings, log),
		Audits:    service.NewAuditService(repos, ledger, publisher, settings, log),
		Reports:   service.NewReportService(repos, log),
		Catalog:   service.NewCatalog(db, log),
	}
}

// list answers a list request with rows and pagination metadata.
func list[T any](w http.ResponseWriter, r *http.Request, catalog *service.Catalog, entity string, opts ...service.ListOption) {
	rows := []T{}
	page, err := catalog.List(r.Context(), entity, r.URL.Query(), &rows, opts...)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSONWithMeta(w, http.StatusOK, rows, &httputil.Meta{
		Offset: page.Offset,
		Limit:  page.Limit,
		Total:  page.Total,
	})
}

// get answers with the row of entity named by the {id} route parameter.
func get[T any](w http.ResponseWriter, r *http.Request, catalog *service.Catalog, entity string, opts ...service.ListOption) {
	id, err := httputil.URLParamInt64(r, "id")
	if err != nil {
		httputil.Error(w, err)
		return
	}
	var row T
	if err := catalog.Get(r.Context(), entity, id, &row, opts...); err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, row)
}

func querier(r *http.Request, db database.Querier) database.Querier {
	return database.QuerierFromContext(r.Context(), db)
}
