package events_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wareflow/wareflow-backend/internal/inventory/events"
	"github.com/wareflow/wareflow-backend/pkg/httputil"
	"github.com/wareflow/wareflow-backend/pkg/logger"
	"github.com/wareflow/wareflow-backend/pkg/messaging"
	"github.com/wareflow/wareflow-backend/pkg/testutil"
)

func TestNilPublisherIsSilent(t *testing.T) {
	var p *events.WarehousePublisher
	assert.NotPanics(t, func() {
		p.UnitsReceived(context.Background(), messaging.UnitsReceivedEvent{})
		p.FIFOViolation(context.Background(), messaging.FIFOViolationEvent{})
	})
}

func TestEventsWaitForCommit(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()
	mock := testutil.NewMockPublisher()
	p := events.NewWarehousePublisherWith(mock, logger.Nop())

	mockDB.ExpectBegin()
	mockDB.ExpectCommit()

	err := mockDB.Wrapped().Transaction(context.Background(), func(ctx context.Context, _ *sqlx.Tx) error {
		p.PicklistIssued(ctx, messaging.PicklistIssuedEvent{PicklistID: 7, Name: "P000007"})
		mock.AssertNoEventsPublished(t)
		return nil
	})
	require.NoError(t, err)

	issued := mock.Events(messaging.EventPicklistIssued)
	require.Len(t, issued, 1)
	assert.Equal(t, int64(7), issued[0].Payload.(messaging.PicklistIssuedEvent).PicklistID)
	mockDB.ExpectationsWereMet(t)
}

func TestEventsDroppedOnRollback(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()
	mock := testutil.NewMockPublisher()
	p := events.NewWarehousePublisherWith(mock, logger.Nop())

	mockDB.ExpectBegin()
	mockDB.ExpectRollback()

	err := mockDB.Wrapped().Transaction(context.Background(), func(ctx context.Context, _ *sqlx.Tx) error {
		p.UnitReturned(ctx, messaging.UnitReturnedEvent{UnitID: 1})
		p.FIFOViolation(ctx, messaging.FIFOViolationEvent{UnitID: 2})
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	assert.Empty(t, mock.Events(messaging.EventUnitReturned))
	assert.Len(t, mock.Events(messaging.EventFIFOViolation), 1)
	mockDB.ExpectationsWereMet(t)
}

func TestCorrelate(t *testing.T) {
	var got string
	h := httputil.RequestID(events.Correlate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = messaging.CorrelationID(r.Context())
	})))

	req := testutil.NewHTTPRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-42")
	testutil.ExecuteRequest(h, req)

	assert.Equal(t, "req-42", got)
}
