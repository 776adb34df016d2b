package repository

import (
	"context"

	"github.com/wareflow/wareflow-backend/pkg/database"
)

// SequenceRepository hands out values of named atomic counters
type SequenceRepository struct{}

// NewSequenceRepository creates a new sequence repository
func NewSequenceRepository() *SequenceRepository {
	return &SequenceRepository{}
}

// Next increments the counter and returns its new value. The first call
// for a name returns 1. The row stays locked until the transaction ends,
// so concurrent callers are serialised.
func (r *SequenceRepository) Next(ctx context.Context, q database.Querier, name string) (int64, error) {
	var value int64
	err := q.GetContext(ctx, &value, `
		INSERT INTO sequences (name, value) VALUES ($1, 1)
		ON CONFLICT (name) DO UPDATE SET value = sequences.value + 1
		RETURNING value`, name)
	return value, err
}
