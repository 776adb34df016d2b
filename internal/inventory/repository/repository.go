// Package repository persists the warehouse ledger. Every method takes the
// Querier it runs on so callers decide between the pool and the request
// transaction. Audit columns (created_by, updated_by, deleted_by) are
// stamped from the actor carried by ctx.
package repository

import (
	"context"
	"database/sql"
	stderrors "errors"

	"github.com/wareflow/wareflow-backend/pkg/actor"
	"github.com/wareflow/wareflow-backend/pkg/errors"
)

// by returns the username stamped into audit columns.
func by(ctx context.Context) string {
	return actor.FromContext(ctx).Name()
}

// notFound maps sql.ErrNoRows to a NotFound AppError for resource.
func notFound(err error, resource string) error {
	if stderrors.Is(err, sql.ErrNoRows) {
		return errors.NotFound(resource)
	}
	return err
}

// expectOne turns a zero-row update into NotFound.
func expectOne(res sql.Result, resource string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.NotFound(resource)
	}
	return nil
}
