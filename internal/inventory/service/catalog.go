package service

import (
	"context"
	"net/url"

	"github.com/wareflow/wareflow-backend/internal/inventory/repository"
	"github.com/wareflow/wareflow-backend/pkg/actor"
	"github.com/wareflow/wareflow-backend/pkg/database"
	"github.com/wareflow/wareflow-backend/pkg/logger"
	"github.com/wareflow/wareflow-backend/pkg/query"
	"github.com/wareflow/wareflow-backend/pkg/tenant"
)

// DefaultPageSize applies when a list request sends no usable limit.
const DefaultPageSize = 100

// MaxPageSize caps the limit a list request may ask for.
const MaxPageSize = 1000

// Page describes the slice of a list that was returned.
type Page struct {
	Offset int   `json:"offset"`
	Limit  int   `json:"limit"`
	Total  int64 `json:"total"`
}

// ListOption adjusts the query of one list call.
type ListOption func(ctx context.Context, b *query.Builder)

// Include joins an association and projects attrs into the row.
func Include(alias, entity string, attrs []string) ListOption {
	return func(_ context.Context, b *query.Builder) {
		b.IncludeModel(alias, entity, query.IncludeOptions{Attributes: attrs})
	}
}

// Scoped applies named entity scopes.
func Scoped(names ...string) ListOption {
	return func(_ context.Context, b *query.Builder) {
		b.Scope(names...)
	}
}

// Where adds fixed predicates, typically taken from the URL path.
func Where(preds ...query.Predicate) ListOption {
	return func(_ context.Context, b *query.Builder) {
		b.Where(preds...)
	}
}

// SiteThrough restricts entities without a site column through an
// association path such as "audit.site_id".
func SiteThrough(path string) ListOption {
	return func(ctx context.Context, b *query.Builder) {
		if siteID, ok := tenant.FromContext(ctx); ok {
			b.Equal(path, siteID)
		}
	}
}

// Catalog serves the read side of the warehouse: filtered, paginated and
// site-scoped lists built with the query engine.
type Catalog struct {
	db     database.Querier
	schema *query.Schema
	logger *logger.Logger
}

// NewCatalog creates a catalog over db
func NewCatalog(db database.Querier, log *logger.Logger) *Catalog {
	return &Catalog{db: db, schema: repository.Schema(), logger: log}
}

// List runs a list request for entity and scans the rows into dest.
func (c *Catalog) List(ctx context.Context, entity string, values url.Values, dest any, opts ...ListOption) (*Page, error) {
	b := c.builder(ctx, entity, opts).Paginate(0, DefaultPageSize)
	b.ParseFromQuery(values)
	if b.Limit() > MaxPageSize {
		b.Paginate(b.Offset(), MaxPageSize)
	}

	total, err := b.FindManyWithCount(ctx, c.db, entity, dest)
	if err != nil {
		return nil, err
	}
	return &Page{Offset: b.Offset(), Limit: b.Limit(), Total: total}, nil
}

// Get loads one row of entity by id into dest. Rows of other sites are not
// found.
func (c *Catalog) Get(ctx context.Context, entity string, id int64, dest any, opts ...ListOption) error {
	return c.builder(ctx, entity, opts).Equal("id", id).FindOne(ctx, c.db, entity, dest)
}

func (c *Catalog) builder(ctx context.Context, entity string, opts []ListOption) *query.Builder {
	b := query.New(c.schema, c.logger).Site(actor.FromContext(ctx), tenant.RequestedSite(ctx), entity)
	for _, opt := range opts {
		opt(ctx, b)
	}
	return b
}
