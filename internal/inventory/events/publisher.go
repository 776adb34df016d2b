package events

import (
	"context"
	"net/http"

	"github.com/wareflow/wareflow-backend/pkg/database"
	"github.com/wareflow/wareflow-backend/pkg/httputil"
	"github.com/wareflow/wareflow-backend/pkg/logger"
	"github.com/wareflow/wareflow-backend/pkg/messaging"
)

// WarehousePublisher publishes warehouse domain events. Events describing a
// state change are held back until the request transaction commits; a nil
// publisher drops everything, which is how the service runs without a
// broker.
type WarehousePublisher struct {
	publisher messaging.EventPublisher
	logger    *logger.Logger
}

// NewWarehousePublisher creates a publisher bound to the warehouse exchange
func NewWarehousePublisher(broker *messaging.Broker, log *logger.Logger) (*WarehousePublisher, error) {
	publisher, err := messaging.NewPublisher(broker, messaging.ExchangeWarehouseEvents, "warehouse-service", log)
	if err != nil {
		return nil, err
	}
	return NewWarehousePublisherWith(publisher, log), nil
}

// NewWarehousePublisherWith wraps an existing event publisher
func NewWarehousePublisherWith(publisher messaging.EventPublisher, log *logger.Logger) *WarehousePublisher {
	return &WarehousePublisher{publisher: publisher, logger: log}
}

func (p *WarehousePublisher) afterCommit(ctx context.Context, eventType string, data any) {
	if p == nil {
		return
	}
	detached := context.WithoutCancel(ctx)
	database.OnCommit(ctx, func() {
		p.send(detached, eventType, data)
	})
}

func (p *WarehousePublisher) send(ctx context.Context, eventType string, data any) {
	if err := p.publisher.Publish(ctx, eventType, data); err != nil {
		p.logger.Error().Err(err).Str("event_type", eventType).Msg("failed to publish warehouse event")
	}
}

// UnitsReceived announces freshly received units
func (p *WarehousePublisher) UnitsReceived(ctx context.Context, e messaging.UnitsReceivedEvent) {
	p.afterCommit(ctx, messaging.EventUnitsReceived, e)
}

// PicklistIssued announces a dispatched picklist
func (p *WarehousePublisher) PicklistIssued(ctx context.Context, e messaging.PicklistIssuedEvent) {
	p.afterCommit(ctx, messaging.EventPicklistIssued, e)
}

// PicklistCompleted announces a picklist whose lines are all picked
func (p *WarehousePublisher) PicklistCompleted(ctx context.Context, e messaging.PicklistCompletedEvent) {
	p.afterCommit(ctx, messaging.EventPicklistCompleted, e)
}

// UnitReturned announces a unit back in stock
func (p *WarehousePublisher) UnitReturned(ctx context.Context, e messaging.UnitReturnedEvent) {
	p.afterCommit(ctx, messaging.EventUnitReturned, e)
}

// AuditCompleted announces a closed audit
func (p *WarehousePublisher) AuditCompleted(ctx context.Context, e messaging.AuditCompletedEvent) {
	p.afterCommit(ctx, messaging.EventAuditCompleted, e)
}

// FIFOViolation announces a refused pick. It is sent right away: the
// request that triggered it is about to roll back.
func (p *WarehousePublisher) FIFOViolation(ctx context.Context, e messaging.FIFOViolationEvent) {
	if p == nil {
		return
	}
	p.send(ctx, messaging.EventFIFOViolation, e)
}

// Correlate tags the request context with its request ID so events raised
// while serving it carry the same correlation ID.
func Correlate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := httputil.GetRequestID(r.Context()); id != "" {
			r = r.WithContext(messaging.WithCorrelationID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}
