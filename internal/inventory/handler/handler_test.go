package handler_test

import (
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/wareflow/wareflow-backend/internal/inventory/handler"
	"github.com/wareflow/wareflow-backend/internal/inventory/service"
	"github.com/wareflow/wareflow-backend/pkg/actor"
	"github.com/wareflow/wareflow-backend/pkg/httputil"
	"github.com/wareflow/wareflow-backend/pkg/logger"
	"github.com/wareflow/wareflow-backend/pkg/permissions"
	"github.com/wareflow/wareflow-backend/pkg/testutil"
)

// as attaches a fixed caller, standing in for the token middleware.
func as(a *actor.Actor) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if a != nil {
				r = httputil.WithActor(r, a)
			}
			next.ServeHTTP(w, r)
		})
	}
}

func newMockRouter(t *testing.T, caller *actor.Actor) (chi.Router, *testutil.MockDB) {
	t.Helper()
	mock := testutil.NewMockDB(t)
	t.Cleanup(func() { mock.Close() })

	db := mock.Wrapped()
	log := logger.Nop()
	services := handler.NewServices(db, db, nil, service.Settings{BarcodeWidth: 10, BulkLimit: 10}, log)
	return handler.Routes(db, services, log, as(caller)), mock
}

func TestRoutes_RequireCaller(t *testing.T) {
	router, mock := newMockRouter(t, nil)

	for _, path := range []string{"/units", "/picklists", "/audits", "/fifo-violations"} {
		rr := testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodGet, path, nil))
		testutil.AssertStatus(t, rr, http.StatusUnauthorized)
	}
	mock.ExpectationsWereMet(t)
}

func TestRoutes_RequirePermission(t *testing.T) {
	siteID := int64(1)
	reader := &actor.Actor{ID: 7, Username: "reader", SiteID: &siteID, Permissions: []string{permissions.InventoryRead}}
	router, mock := newMockRouter(t, reader)

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/units/receive"},
		{http.MethodPost, "/qc"},
		{http.MethodPost, "/putaways/bulk"},
		{http.MethodPost, "/picklists"},
		{http.MethodDelete, "/picklists/3"},
		{http.MethodPost, "/picks"},
		{http.MethodPost, "/returns"},
		{http.MethodPut, "/audits/1/scan"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rr := testutil.ExecuteRequest(router, testutil.NewHTTPRequest(tt.method, tt.path, map[string]any{}))
			testutil.AssertStatus(t, rr, http.StatusForbidden)
		})
	}

	// Refused before any transaction was opened.
	mock.ExpectationsWereMet(t)
}

func TestUnitSearch_RequiresTerm(t *testing.T) {
	router, mock := newMockRouter(t, testutil.Operator(1))

	rr := testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodGet, "/units/search?q=%20", nil))
	testutil.AssertStatus(t, rr, http.StatusBadRequest)

	var body httputil.Response
	testutil.ParseJSONBody(t, rr, &body)
	assert.False(t, body.Success)
	assert.Contains(t, body.Error.Message, "q")
	mock.ExpectationsWereMet(t)
}

func TestReceive_InvalidBodyRollsBack(t *testing.T) {
	router, mock := newMockRouter(t, testutil.Operator(1))
	mock.ExpectBegin()
	mock.ExpectRollback()

	rr := testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodPost, "/units/receive", map[string]any{
		"material_id": 0,
		"count":       3,
	}))
	testutil.AssertStatus(t, rr, http.StatusBadRequest)

	var body httputil.Response
	testutil.ParseJSONBody(t, rr, &body)
	assert.Contains(t, body.Error.Details, "material_id")
	mock.ExpectationsWereMet(t)
}

func TestImport_RejectsMultiQuantityUnits(t *testing.T) {
	router, mock := newMockRouter(t, testutil.Operator(1))
	mock.ExpectBegin()
	mock.ExpectRollback()

	rr := testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodPost, "/units/import", map[string]any{
		"units": []map[string]any{
			{"barcode": "1111111111", "material_id": 4, "quantity": 5},
		},
	}))
	testutil.AssertStatus(t, rr, http.StatusBadRequest)

	var body httputil.Response
	testutil.ParseJSONBody(t, rr, &body)
	assert.Equal(t, "must equal 1", body.Error.Details["quantity"])
	mock.ExpectationsWereMet(t)
}

func TestGet_BadID(t *testing.T) {
	router, mock := newMockRouter(t, testutil.Operator(1))

	rr := testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodGet, "/picklists/abc", nil))
	testutil.AssertStatus(t, rr, http.StatusBadRequest)
	mock.ExpectationsWereMet(t)
}
