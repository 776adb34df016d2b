package query

import (
	"reflect"
	"strings"

	"github.com/wareflow/wareflow-backend/pkg/actor"
	"github.com/wareflow/wareflow-backend/pkg/logger"
	"github.com/wareflow/wareflow-backend/pkg/tenant"
)

// AggregateFunc is an SQL aggregate function.
type AggregateFunc string

const (
	Count AggregateFunc = "COUNT"
	Sum   AggregateFunc = "SUM"
	Min   AggregateFunc = "MIN"
	Max   AggregateFunc = "MAX"
	Avg   AggregateFunc = "AVG"
)

// Aggregate is a projected aggregate expression.
type Aggregate struct {
	Func  AggregateFunc
	Field string
	As    string
}

// IncludeOptions configures an optional association join.
type IncludeOptions struct {
	// Attributes are the target columns to project. Empty means the join is
	// used for filtering only.
	Attributes []string
	// Where conditions are placed in the join condition, so they never
	// drop root rows. Fields are relative to the included entity.
	Where []Predicate
}

type include struct {
	path   string
	entity string
	opts   IncludeOptions
}

// Builder accumulates the parts of a list query. Methods return the builder
// so calls can be chained. A Builder is not safe for concurrent use.
type Builder struct {
	schema *Schema
	log    *logger.Logger

	where      []Predicate
	having     []Predicate
	includes   []include
	orders     []Order
	groupBy    []string
	aggregates []Aggregate
	attributes []string
	exclude    []string
	scopes     []string

	siteID     int64
	siteScoped bool
	visibility tenant.Visibility

	offset int
	limit  int
}

// New creates an empty builder over schema.
func New(schema *Schema, log *logger.Logger) *Builder {
	if log == nil {
		log = logger.Nop()
	}
	return &Builder{schema: schema, log: log}
}

// Where adds raw predicates.
func (b *Builder) Where(preds ...Predicate) *Builder {
	for _, p := range preds {
		if p != nil {
			b.where = append(b.where, p)
		}
	}
	return b
}

// Equal adds field = value unless value is empty.
func (b *Builder) Equal(field string, value any) *Builder {
	if v, ok := present(value); ok {
		b.where = append(b.where, Equals{Field: field, Value: v})
	}
	return b
}

// NotEqual adds field <> value unless value is empty.
func (b *Builder) NotEqual(field string, value any) *Builder {
	if v, ok := present(value); ok {
		b.where = append(b.where, NotEquals{Field: field, Value: v})
	}
	return b
}

// Like adds a case-sensitive substring match unless value is empty.
func (b *Builder) Like(field, value string) *Builder {
	if value != "" {
		b.where = append(b.where, Like{Field: field, Pattern: "%" + value + "%"})
	}
	return b
}

// ILike adds a case-insensitive substring match unless value is empty.
func (b *Builder) ILike(field, value string) *Builder {
	if value != "" {
		b.where = append(b.where, Like{Field: field, Pattern: "%" + value + "%", CaseInsensitive: true})
	}
	return b
}

// In adds field IN (values...) unless values is nil. values must be a slice.
func (b *Builder) In(field string, values any) *Builder {
	if values != nil {
		b.where = append(b.where, In{Field: field, Values: values})
	}
	return b
}

// Between adds low <= field <= high. A missing bound becomes a one-sided
// comparison.
func (b *Builder) Between(field string, low, high any) *Builder {
	lo, hasLo := present(low)
	hi, hasHi := present(high)
	switch {
	case hasLo && hasHi:
		b.where = append(b.where, Between{Field: field, Low: lo, High: hi})
	case hasLo:
		b.where = append(b.where, Compare{Field: field, Op: Gte, Value: lo})
	case hasHi:
		b.where = append(b.where, Compare{Field: field, Op: Lte, Value: hi})
	}
	return b
}

// Compare adds field <op> value unless value is empty.
func (b *Builder) Compare(field string, op Op, value any) *Builder {
	if v, ok := present(value); ok {
		b.where = append(b.where, Compare{Field: field, Op: op, Value: v})
	}
	return b
}

// Null adds field IS NULL (isNull) or IS NOT NULL.
func (b *Builder) Null(field string, isNull bool) *Builder {
	b.where = append(b.where, IsNull{Field: field, Negate: !isNull})
	return b
}

// Site restricts the query to the caller's site. Callers bound to a site
// are always restricted to it; platform callers only when they request a
// site explicitly. Entities without a tenant column are not restricted.
func (b *Builder) Site(a *actor.Actor, requested *int64, entity string) *Builder {
	e, ok := b.schema.Entity(entity)
	if !ok || e.TenantColumn == "" {
		return b
	}
	b.siteID, b.siteScoped = tenant.Resolve(a, requested)
	return b
}

// Status selects active ("1", "true") or soft-deleted ("0", "false")
// records. Anything else selects active records.
func (b *Builder) Status(flag string) *Builder {
	b.visibility = tenant.ParseVisibility(flag)
	return b
}

// Visibility sets the soft-delete view directly.
func (b *Builder) Visibility(v tenant.Visibility) *Builder {
	b.visibility = v
	return b
}

// Paginate sets OFFSET and LIMIT. Negative offsets become 0; a limit below
// 1 means no limit.
func (b *Builder) Paginate(offset, limit int) *Builder {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 0
	}
	b.offset, b.limit = offset, limit
	return b
}

// Offset returns the effective offset.
func (b *Builder) Offset() int { return b.offset }

// Limit returns the effective limit, 0 meaning unlimited.
func (b *Builder) Limit() int { return b.limit }

// OrderBy adds an ordering term ahead of the entity's default order.
func (b *Builder) OrderBy(field string, direction Direction) *Builder {
	if field == "" {
		return b
	}
	if strings.EqualFold(string(direction), string(Asc)) {
		direction = Asc
	} else {
		direction = Desc
	}
	b.orders = append(b.orders, Order{Field: field, Direction: direction})
	return b
}

// GroupBy groups by the given fields. A grouped query projects only the
// group fields and the aggregates.
func (b *Builder) GroupBy(fields ...string) *Builder {
	b.groupBy = append(b.groupBy, fields...)
	return b
}

// Having adds conditions evaluated after grouping. Fields may name an
// aggregate alias.
func (b *Builder) Having(preds ...Predicate) *Builder {
	b.having = append(b.having, preds...)
	return b
}

// Aggregate projects an aggregate expression.
func (b *Builder) Aggregate(fn AggregateFunc, field, as string) *Builder {
	b.aggregates = append(b.aggregates, Aggregate{Func: fn, Field: field, As: as})
	return b
}

// Attributes restricts the root projection to the given columns.
func (b *Builder) Attributes(columns ...string) *Builder {
	b.attributes = append(b.attributes, columns...)
	return b
}

// Exclude removes columns from the root projection. The soft-delete column
// is always excluded.
func (b *Builder) Exclude(columns ...string) *Builder {
	b.exclude = append(b.exclude, columns...)
	return b
}

// Scope applies a predicate set registered on the root entity.
func (b *Builder) Scope(names ...string) *Builder {
	b.scopes = append(b.scopes, names...)
	return b
}

// IncludeModel joins an association. Including the same alias twice merges
// the attributes and conditions.
func (b *Builder) IncludeModel(alias, entity string, opts IncludeOptions) *Builder {
	for i := range b.includes {
		if b.includes[i].path != alias {
			continue
		}
		inc := &b.includes[i]
		if inc.entity == "" {
			inc.entity = entity
		}
		inc.opts.Attributes = appendUnique(inc.opts.Attributes, opts.Attributes...)
		inc.opts.Where = append(inc.opts.Where, opts.Where...)
		return b
	}
	b.includes = append(b.includes, include{path: alias, entity: entity, opts: opts})
	return b
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		found := false
		for _, d := range dst {
			if d == v {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, v)
		}
	}
	return dst
}

// present unwraps pointers and reports whether value carries something
// worth filtering on.
func present(value any) (any, bool) {
	if value == nil {
		return nil, false
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
		value = rv.Interface()
	}
	if rv.Kind() == reflect.String && rv.Len() == 0 {
		return nil, false
	}
	return value, true
}
