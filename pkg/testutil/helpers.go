package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wareflow/wareflow-backend/pkg/actor"
	"github.com/wareflow/wareflow-backend/pkg/permissions"
)

// NewHTTPRequest creates a new HTTP request for testing handlers
func NewHTTPRequest(method, path string, body any) *http.Request {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		bodyReader = bytes.NewBuffer(jsonBody)
	}

	req := httptest.NewRequest(method, path, bodyReader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

// Operator returns a site-bound caller holding the usual warehouse
// permissions, without the FIFO override.
func Operator(siteID int64) *actor.Actor {
	return &actor.Actor{
		ID:       100,
		Username: "operator",
		SiteID:   &siteID,
		Role:     "operator",
		Permissions: []string{
			permissions.InventoryRead,
			permissions.InventoryReceive,
			permissions.InventoryQC,
			permissions.InventoryPutaway,
			permissions.InventoryPick,
			permissions.InventoryReturn,
			permissions.PicklistManage,
			permissions.PicklistIssue,
			permissions.AuditManage,
			permissions.AuditScan,
		},
	}
}

// Supervisor is an Operator that may override FIFO.
func Supervisor(siteID int64) *actor.Actor {
	a := Operator(siteID)
	a.ID = 200
	a.Username = "supervisor"
	a.Role = "supervisor"
	a.Permissions = append(a.Permissions, permissions.FIFOOverride)
	return a
}

// ActorContext returns a context carrying the caller.
func ActorContext(ctx context.Context, a *actor.Actor) context.Context {
	return actor.WithActor(ctx, a)
}

// ExecuteRequest executes an HTTP request and returns the response recorder
func ExecuteRequest(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

// AssertStatus asserts the response status code
func AssertStatus(t *testing.T, rr *httptest.ResponseRecorder, expected int) {
	t.Helper()
	assert.Equal(t, expected, rr.Code, "unexpected status code. Body: %s", rr.Body.String())
}

// ParseJSONBody parses the response body into the target
func ParseJSONBody(t *testing.T, rr *httptest.ResponseRecorder, target any) {
	t.Helper()
	err := json.Unmarshal(rr.Body.Bytes(), target)
	require.NoError(t, err, "failed to parse response body: %s", rr.Body.String())
}

// SkipIfShort skips the test if running with -short flag
func SkipIfShort(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
}

// PtrString returns a pointer to the string
func PtrString(s string) *string {
	return &s
}
