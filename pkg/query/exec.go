package query

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"

	"github.com/wareflow/wareflow-backend/pkg/database"
	"github.com/wareflow/wareflow-backend/pkg/errors"
)

// ToSQL compiles the select statement for entity, with ? placeholders.
func (b *Builder) ToSQL(entity string) (string, []any, error) {
	st, err := b.compile(entity)
	if err != nil {
		return "", nil, err
	}
	return st.selectSQL, st.args, nil
}

// CountSQL compiles the count statement for entity, with ? placeholders.
func (b *Builder) CountSQL(entity string) (string, []any, error) {
	st, err := b.compile(entity)
	if err != nil {
		return "", nil, err
	}
	return st.countSQL, st.countArgs, nil
}

// FindMany runs the query against q and scans all rows into dest, which
// must be a pointer to a slice.
func (b *Builder) FindMany(ctx context.Context, q database.Querier, entity string, dest any) error {
	st, err := b.compile(entity)
	if err != nil {
		return err
	}
	if err := q.SelectContext(ctx, dest, q.Rebind(st.selectSQL), st.args...); err != nil {
		return fmt.Errorf("find %s: %w", entity, err)
	}
	return nil
}

// FindManyWithCount runs FindMany and returns the total number of matching
// root rows, ignoring pagination.
func (b *Builder) FindManyWithCount(ctx context.Context, q database.Querier, entity string, dest any) (int64, error) {
	st, err := b.compile(entity)
	if err != nil {
		return 0, err
	}

	var total int64
	if err := q.GetContext(ctx, &total, q.Rebind(st.countSQL), st.countArgs...); err != nil {
		return 0, fmt.Errorf("count %s: %w", entity, err)
	}
	if err := q.SelectContext(ctx, dest, q.Rebind(st.selectSQL), st.args...); err != nil {
		return 0, fmt.Errorf("find %s: %w", entity, err)
	}
	return total, nil
}

// FindOne scans the first matching row into dest. No row is NotFound.
func (b *Builder) FindOne(ctx context.Context, q database.Querier, entity string, dest any) error {
	b.Paginate(0, 1)
	st, err := b.compile(entity)
	if err != nil {
		return err
	}
	if err := q.GetContext(ctx, dest, q.Rebind(st.selectSQL), st.args...); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return errors.NotFound(entity)
		}
		return fmt.Errorf("find %s: %w", entity, err)
	}
	return nil
}
