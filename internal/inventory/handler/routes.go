package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/wareflow/wareflow-backend/internal/auth/jwt"
	"github.com/wareflow/wareflow-backend/pkg/database"
	"github.com/wareflow/wareflow-backend/pkg/httputil"
	"github.com/wareflow/wareflow-backend/pkg/logger"
	"github.com/wareflow/wareflow-backend/pkg/permissions"
)

// Routes builds the warehouse API. The middlewares run first, in order, and
// must attach the caller to the request. Every mutating route runs in one
// request transaction.
func Routes(db *database.DB, svc *Services, log *logger.Logger, middlewares ...func(http.Handler) http.Handler) chi.Router {
	units := NewUnitHandler(db, svc, log)
	qc := NewQCHandler(db, svc, log)
	putaways := NewPutawayHandler(db, svc, log)
	picklists := NewPicklistHandler(db, svc, log)
	picks := NewPickHandler(db, svc, log)
	returns := NewReturnHandler(db, svc, log)
	audits := NewAuditHandler(db, svc, log)
	fifo := NewFIFOHandler(svc, log)

	tx := httputil.Transactional(db, log)
	read := jwt.RequirePermission(permissions.InventoryRead)
	can := jwt.RequirePermission

	r := chi.NewRouter()
	r.Use(middlewares...)
	r.Use(httputil.RequestedSite)

	r.Route("/units", func(r chi.Router) {
		r.With(read).Get("/", units.List)
		r.With(read).Get("/search", units.Search)
		r.With(read).Get("/{id}", units.Get)
		r.With(can(permissions.InventoryReceive), tx).Post("/receive", units.Receive)
		r.With(can(permissions.InventoryReceive), tx).Post("/generate-barcodes", units.GenerateBarcodes)
		r.With(can(permissions.InventoryReceive), tx).Post("/import", units.Import)
	})

	r.Route("/qc", func(r chi.Router) {
		r.With(read).Get("/", qc.List)
		r.With(can(permissions.InventoryQC), tx).Post("/", qc.Record)
		r.With(can(permissions.InventoryQC), tx).Post("/bulk", qc.RecordBulk)
	})

	r.Route("/putaways", func(r chi.Router) {
		r.With(read).Get("/", putaways.List)
		r.With(can(permissions.InventoryPutaway), tx).Post("/", putaways.Create)
		r.With(can(permissions.InventoryPutaway), tx).Post("/bulk", putaways.CreateBulk)
	})

	r.Route("/picklists", func(r chi.Router) {
		r.With(read).Get("/", picklists.List)
		r.With(can(permissions.PicklistManage), tx).Post("/", picklists.Create)
		r.With(read).Get("/{id}", picklists.Get)
		r.With(can(permissions.PicklistManage), tx).Put("/{id}", picklists.Update)
		r.With(can(permissions.PicklistManage), tx).Delete("/{id}", picklists.Delete)
		r.With(can(permissions.PicklistManage), tx).Post("/{id}/pickers", picklists.ReassignPicker)
	})

	r.Route("/picks", func(r chi.Router) {
		r.With(read).Get("/", picks.List)
		r.With(can(permissions.InventoryPick), tx).Post("/", picks.Create)
		r.With(can(permissions.InventoryPick), tx).Post("/bulk", picks.CreateBulk)
		r.With(can(permissions.InventoryPick), tx).Delete("/{id}", picks.Delete)
	})

	r.Route("/returns", func(r chi.Router) {
		r.With(read).Get("/", returns.List)
		r.With(can(permissions.InventoryReturn), tx).Post("/", returns.Create)
		r.With(read).Get("/{id}", returns.Get)
	})

	r.Route("/audits", func(r chi.Router) {
		r.With(read).Get("/", audits.List)
		r.With(can(permissions.AuditManage), tx).Post("/", audits.Open)
		r.With(read).Get("/{id}", audits.Get)
		r.With(can(permissions.AuditManage), tx).Put("/{id}", audits.Update)
		r.With(can(permissions.AuditScan), tx).Put("/{id}/scan", audits.Scan)
		r.With(read).Get("/{id}/export", audits.Export)
	})

	r.With(read).Get("/audit-items", audits.ListItems)
	r.With(read).Get("/fifo-violations", fifo.List)

	return r
}
