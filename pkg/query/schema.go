// Package query composes filtered, tenant-scoped, soft-delete aware list
// reads over registered entities.
//
// Fields are either root columns ("barcode") or dotted association paths
// ("material.name", "picklist.customer.name"). A dotted path joins the
// association with a LEFT JOIN under the quoted path as alias, so it never
// drops root rows. Joined columns are projected as "alias.column" which
// sqlx scans into nested structs tagged with the alias.
package query

import "strings"

// AssociationKind tells which side of an association holds the foreign key.
type AssociationKind int

const (
	// BelongsTo: the source row holds ForeignKey pointing at target.id.
	BelongsTo AssociationKind = iota
	// HasOne: the target row holds ForeignKey pointing at source.id.
	HasOne
)

// Association links an entity to another registered entity.
type Association struct {
	Entity     string
	ForeignKey string
	Kind       AssociationKind
}

// Direction of an ORDER BY term.
type Direction string

const (
	Asc  Direction = "ASC"
	Desc Direction = "DESC"
)

// Order is one ORDER BY term.
type Order struct {
	Field     string
	Direction Direction
}

// Entity describes a table the engine can query.
type Entity struct {
	Name             string
	Table            string
	Columns          []string
	TenantColumn     string
	SoftDeleteColumn string
	DefaultOrder     []Order
	Associations     map[string]Association
	Scopes           map[string][]Predicate

	columnSet map[string]struct{}
}

// HasColumn reports whether column belongs to the entity.
func (e *Entity) HasColumn(column string) bool {
	if e.columnSet == nil {
		e.index()
	}
	_, ok := e.columnSet[column]
	return ok
}

func (e *Entity) index() {
	e.columnSet = make(map[string]struct{}, len(e.Columns))
	for _, c := range e.Columns {
		e.columnSet[c] = struct{}{}
	}
}

// Schema is the registry of queryable entities. It is built once at
// startup and read concurrently afterwards.
type Schema struct {
	entities map[string]*Entity
}

// NewSchema registers the given entities.
func NewSchema(entities ...*Entity) *Schema {
	s := &Schema{entities: make(map[string]*Entity, len(entities))}
	for _, e := range entities {
		s.Register(e)
	}
	return s
}

// Register adds or replaces an entity.
func (s *Schema) Register(e *Entity) {
	e.index()
	s.entities[e.Name] = e
}

// Entity looks up an entity by name.
func (s *Schema) Entity(name string) (*Entity, bool) {
	if s == nil {
		return nil, false
	}
	e, ok := s.entities[name]
	return e, ok
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
