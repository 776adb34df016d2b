package service

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/wareflow/wareflow-backend/internal/inventory/repository"
	"github.com/wareflow/wareflow-backend/pkg/database"
	"github.com/wareflow/wareflow-backend/pkg/errors"
)

// Ledger is the only writer of the derived counters: material stock and
// shelf load. Rows are locked in ascending id order before they change so
// concurrent requests touching the same rows queue instead of deadlocking.
type Ledger struct {
	materials *repository.MaterialRepository
	shelves   *repository.ShelfRepository
}

// NewLedger creates a new ledger
func NewLedger(materials *repository.MaterialRepository, shelves *repository.ShelfRepository) *Ledger {
	return &Ledger{materials: materials, shelves: shelves}
}

// AdjustStock applies per-material quantity deltas. Zero deltas are
// ignored; results are floored at zero.
func (l *Ledger) AdjustStock(ctx context.Context, tx database.Querier, deltas map[int64]int64) error {
	changed := make(map[int64]int64, len(deltas))
	for id, d := range deltas {
		if d != 0 {
			changed[id] = d
		}
	}
	if len(changed) == 0 {
		return nil
	}

	ids := sortedIDs(changed)
	locked, err := l.materials.LockByIDs(ctx, tx, ids)
	if err != nil {
		return err
	}
	if len(locked) != len(ids) {
		return errors.NotFound("material")
	}

	for _, id := range ids {
		if err := l.materials.AdjustQuantity(ctx, tx, id, changed[id]); err != nil {
			return err
		}
	}
	return nil
}

// LoadShelf adds qty to the shelf load after re-checking the capacity under
// the row lock.
func (l *Ledger) LoadShelf(ctx context.Context, tx database.Querier, shelfID int64, qty decimal.Decimal) error {
	return l.MoveLoad(ctx, tx, nil, shelfID, qty)
}

// ReleaseShelf removes qty from the shelf load, floored at zero.
func (l *Ledger) ReleaseShelf(ctx context.Context, tx database.Querier, shelfID int64, qty decimal.Decimal) error {
	return l.ReleaseShelves(ctx, tx, map[int64]decimal.Decimal{shelfID: qty})
}

// ReleaseShelves removes per-shelf quantities from the loads.
func (l *Ledger) ReleaseShelves(ctx context.Context, tx database.Querier, loads map[int64]decimal.Decimal) error {
	if len(loads) == 0 {
		return nil
	}
	ids := sortedIDs(loads)
	if _, err := l.shelves.LockByIDs(ctx, tx, ids); err != nil {
		return err
	}
	for _, id := range ids {
		if err := l.shelves.AddLoad(ctx, tx, id, loads[id].Neg()); err != nil {
			return err
		}
	}
	return nil
}

// MoveLoad moves qty from one shelf to another. from may be nil for a
// unit that was not shelved yet. Both rows are locked in id order and the
// destination capacity is checked under the lock.
func (l *Ledger) MoveLoad(ctx context.Context, tx database.Querier, from *int64, to int64, qty decimal.Decimal) error {
	ids := map[int64]struct{}{to: {}}
	if from != nil {
		ids[*from] = struct{}{}
	}

	locked, err := l.shelves.LockByIDs(ctx, tx, sortedIDs(ids))
	if err != nil {
		return err
	}

	var dest *repository.Shelf
	for i := range locked {
		if locked[i].ID == to {
			dest = &locked[i]
		}
	}
	if dest == nil {
		return errors.NotFound("shelf")
	}
	if dest.Available().LessThan(qty) {
		return errors.BusinessRule("shelf capacity exceeded").
			WithDetail("available", dest.Available().String()).
			WithDetail("required", qty.String())
	}

	if err := l.shelves.AddLoad(ctx, tx, to, qty); err != nil {
		return err
	}
	if from != nil {
		return l.shelves.AddLoad(ctx, tx, *from, qty.Neg())
	}
	return nil
}
