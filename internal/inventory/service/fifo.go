package service

import (
	"context"
	"fmt"
	"time"

	"github.com/wareflow/wareflow-backend/internal/inventory/events"
	"github.com/wareflow/wareflow-backend/internal/inventory/repository"
	"github.com/wareflow/wareflow-backend/pkg/actor"
	"github.com/wareflow/wareflow-backend/pkg/database"
	"github.com/wareflow/wareflow-backend/pkg/errors"
	"github.com/wareflow/wareflow-backend/pkg/logger"
	"github.com/wareflow/wareflow-backend/pkg/messaging"
	"github.com/wareflow/wareflow-backend/pkg/permissions"
)

// FIFOPolicy decides which units count as older than a pick candidate.
// Units are compared by creation-time bucket. A zero width compares exact
// timestamps. A 24h width compares calendar days in Location. Any other
// width cuts the wall clock of Location into buckets of that width, counted
// from midnight when the width divides a day.
type FIFOPolicy struct {
	BucketWidth time.Duration
	Location    *time.Location
}

// Cutoff returns the start of the bucket created falls into. Units created
// strictly before the cutoff are older than the candidate.
func (p FIFOPolicy) Cutoff(created time.Time) time.Time {
	if p.BucketWidth <= 0 {
		return created
	}
	loc := p.Location
	if loc == nil {
		loc = time.UTC
	}
	t := created.In(loc)
	if p.BucketWidth == 24*time.Hour {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	}
	_, offset := t.Zone()
	shift := time.Duration(offset) * time.Second
	return t.Add(shift).Truncate(p.BucketWidth).Add(-shift)
}

const defaultFIFOLogTimeout = 3 * time.Second

// FIFOGuard applies the FIFO policy to a pick.
type FIFOGuard struct {
	units      *repository.UnitRepository
	records    *repository.RecordRepository
	side       database.Querier
	publisher  *events.WarehousePublisher
	policy     FIFOPolicy
	logTimeout time.Duration
	logger     *logger.Logger
}

// NewFIFOGuard creates a guard. Violations are written on side so they
// outlive the rollback of the refused pick; side is a pool separate from the
// one request transactions draw from.
func NewFIFOGuard(
	repos *Repositories,
	side database.Querier,
	publisher *events.WarehousePublisher,
	settings Settings,
	log *logger.Logger,
) *FIFOGuard {
	timeout := settings.FIFOLogTimeout
	if timeout <= 0 {
		timeout = defaultFIFOLogTimeout
	}
	return &FIFOGuard{
		units:      repos.Units,
		records:    repos.Records,
		side:       side,
		publisher:  publisher,
		policy:     settings.FIFO,
		logTimeout: timeout,
		logger:     log,
	}
}

// Check lets the pick of unit proceed, records an override for callers
// holding the privilege, or records a violation and refuses.
func (g *FIFOGuard) Check(ctx context.Context, tx database.Querier, unit *repository.Unit, picklistID int64) error {
	older, err := g.units.OldestEligible(ctx, tx, unit.MaterialID, unit.SiteID, g.policy.Cutoff(unit.CreatedAt), unit.ID)
	if err != nil {
		return err
	}
	if older == nil {
		return nil
	}

	caller := actor.FromContext(ctx)
	entry := &repository.FIFOLogEntry{
		SiteID:           unit.SiteID,
		PicklistID:       &picklistID,
		InwardID:         unit.ID,
		Barcode:          unit.Barcode,
		BlockedByBarcode: &older.Barcode,
		BlockedByDate:    &older.CreatedAt,
	}

	if caller.Can(permissions.FIFOOverride) {
		entry.Type = repository.FIFOOverride
		entry.Reason = fmt.Sprintf("picked ahead of older approved unit %s", older.Barcode)
		return g.records.CreateFIFOEntry(ctx, tx, entry)
	}

	entry.Type = repository.FIFOViolation
	entry.Reason = fmt.Sprintf("older approved unit %s must be picked first", older.Barcode)
	if err := g.logViolation(ctx, entry); err != nil {
		g.logger.Error().Err(err).
			Str("barcode", unit.Barcode).
			Str("blocked_by", older.Barcode).
			Msg("failed to record FIFO violation")
		return err
	}

	g.publisher.FIFOViolation(ctx, messaging.FIFOViolationEvent{
		SiteID:           unit.SiteID,
		PicklistID:       picklistID,
		UnitID:           unit.ID,
		Barcode:          unit.Barcode,
		BlockedByBarcode: older.Barcode,
		BlockedByDate:    older.CreatedAt,
		AttemptedBy:      caller.Name(),
	})

	return errors.BusinessRule(fmt.Sprintf("FIFO rule violated: older approved material (%s) must be picked first", older.Barcode)).
		WithDetail("blocked_by_barcode", older.Barcode).
		WithDetail("blocked_by_date", older.CreatedAt.Format(time.RFC3339))
}

func (g *FIFOGuard) logViolation(ctx context.Context, entry *repository.FIFOLogEntry) error {
	ctx, cancel := context.WithTimeout(ctx, g.logTimeout)
	defer cancel()
	return g.records.CreateFIFOEntry(ctx, g.side, entry)
}
