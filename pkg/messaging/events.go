package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	EventUnitsReceived     = "warehouse.units.received"
	EventPicklistIssued    = "warehouse.picklist.issued"
	EventUnitReturned      = "warehouse.unit.returned"
	EventFIFOViolation     = "warehouse.fifo.violation"
	EventAuditCompleted    = "warehouse.audit.completed"
	EventPicklistCompleted = "warehouse.picklist.completed"
)

// ExchangeWarehouseEvents is the topic exchange all warehouse events go to.
const ExchangeWarehouseEvents = "warehouse.events"

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data any) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v any) error {
	return json.Unmarshal(e.Data, v)
}

// UnitsReceivedEvent is published after a receive or import commits
type UnitsReceivedEvent struct {
	SiteID       int64  `json:"site_id"`
	MaterialID   int64  `json:"material_id"`
	Count        int    `json:"count"`
	FirstBarcode string `json:"first_barcode"`
	LastBarcode  string `json:"last_barcode"`
	ReceivedBy   string `json:"received_by"`
}

// PicklistIssuedEvent is published when a picklist is dispatched
type PicklistIssuedEvent struct {
	SiteID     int64            `json:"site_id"`
	PicklistID int64            `json:"picklist_id"`
	Name       string           `json:"name"`
	VehicleNo  string           `json:"vehicle_no"`
	Invoice    string           `json:"invoice,omitempty"`
	Units      int              `json:"units"`
	Materials  map[string]int64 `json:"materials"`
	IssuedBy   string           `json:"issued_by"`
}

// PicklistCompletedEvent is published when every line reached its target
type PicklistCompletedEvent struct {
	SiteID     int64  `json:"site_id"`
	PicklistID int64  `json:"picklist_id"`
	Name       string `json:"name"`
	IsPartial  bool   `json:"is_partial"`
}

// UnitReturnedEvent is published for each returned unit
type UnitReturnedEvent struct {
	SiteID       int64  `json:"site_id"`
	UnitID       int64  `json:"unit_id"`
	Barcode      string `json:"barcode"`
	MaterialID   int64  `json:"material_id"`
	PicklistName string `json:"picklist_name,omitempty"`
	ReturnedBy   string `json:"returned_by"`
}

// FIFOViolationEvent is published when a pick is refused by the FIFO policy
type FIFOViolationEvent struct {
	SiteID           int64     `json:"site_id"`
	PicklistID       int64     `json:"picklist_id"`
	UnitID           int64     `json:"unit_id"`
	Barcode          string    `json:"barcode"`
	BlockedByBarcode string    `json:"blocked_by_barcode"`
	BlockedByDate    time.Time `json:"blocked_by_date"`
	AttemptedBy      string    `json:"attempted_by"`
}

// AuditCompletedEvent is published when an audit reaches Completed
type AuditCompletedEvent struct {
	SiteID           int64  `json:"site_id"`
	AuditID          int64  `json:"audit_id"`
	Number           string `json:"number"`
	Found            int64  `json:"found"`
	NotFound         int64  `json:"not_found"`
	Scrapped         int64  `json:"scrapped"`
	ManuallyApproved int64  `json:"manually_approved"`
	CompletedBy      string `json:"completed_by"`
}

func (e UnitsReceivedEvent) Site() int64     { return e.SiteID }
func (e PicklistIssuedEvent) Site() int64    { return e.SiteID }
func (e PicklistCompletedEvent) Site() int64 { return e.SiteID }
func (e UnitReturnedEvent) Site() int64      { return e.SiteID }
func (e FIFOViolationEvent) Site() int64     { return e.SiteID }
func (e AuditCompletedEvent) Site() int64    { return e.SiteID }
