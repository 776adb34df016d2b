package query

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/wareflow/wareflow-backend/pkg/errors"
	"github.com/wareflow/wareflow-backend/pkg/tenant"
)

type join struct {
	path       string
	parent     string // quoted alias of the parent
	entity     *Entity
	assoc      Association
	attributes []string
	on         []fragment
}

type fragment struct {
	sql  string
	args []any
}

type compiler struct {
	b      *Builder
	root   *Entity
	alias  string
	joins  []*join
	byPath map[string]*join
	aggs   map[string]string
}

// statement is a compiled query with ? placeholders.
type statement struct {
	selectSQL string
	countSQL  string
	args      []any
	countArgs []any
}

func (b *Builder) compile(entity string) (*statement, error) {
	if entity == "" {
		return nil, errors.Internal("query: no root entity given")
	}
	root, ok := b.schema.Entity(entity)
	if !ok {
		return nil, errors.Internal("query: unknown entity " + strconv.Quote(entity))
	}

	c := &compiler{
		b:      b,
		root:   root,
		alias:  quoteIdent(root.Table),
		byPath: make(map[string]*join),
		aggs:   make(map[string]string),
	}

	for _, inc := range b.includes {
		j, ok := c.resolveJoin(inc.path)
		if !ok {
			continue
		}
		if inc.entity != "" && inc.entity != j.entity.Name {
			b.log.Warn().Str("entity", root.Name).Str("include", inc.path).
				Str("expected", j.entity.Name).Str("given", inc.entity).
				Msg("include entity does not match association, skipped")
			continue
		}
		for _, col := range inc.opts.Attributes {
			if !j.entity.HasColumn(col) {
				c.unknown(inc.path + "." + col)
				continue
			}
			j.attributes = appendUnique(j.attributes, col)
		}
		for _, p := range inc.opts.Where {
			if f, ok := c.predicate(p, c.includeResolver(j)); ok {
				j.on = append(j.on, f)
			}
		}
	}

	grouped := len(b.groupBy) > 0 || len(b.aggregates) > 0

	var projection []string
	if grouped {
		projection = c.groupedProjection()
	} else {
		projection = c.projection()
	}

	where := c.where()

	var groupBy []string
	for _, g := range b.groupBy {
		if expr, ok := c.resolveField(g); ok {
			groupBy = append(groupBy, expr)
		}
	}

	var having []fragment
	for _, p := range b.having {
		if f, ok := c.predicate(p, c.havingResolver()); ok {
			having = append(having, f)
		}
	}

	orderBy := c.orderBy(grouped)

	// joins may have been added while resolving fields above, so render
	// them last
	from, fromArgs := c.from()
	whereSQL, whereArgs := joinFragments(where, " AND ")
	havingSQL, havingArgs := joinFragments(having, " AND ")

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(projection, ", "))
	sb.WriteString(from)
	if whereSQL != "" {
		sb.WriteString(" WHERE " + whereSQL)
	}
	if len(groupBy) > 0 {
		sb.WriteString(" GROUP BY " + strings.Join(groupBy, ", "))
	}
	if havingSQL != "" {
		sb.WriteString(" HAVING " + havingSQL)
	}
	body := sb.String()

	args := append(append(append([]any{}, fromArgs...), whereArgs...), havingArgs...)

	selectSQL := body
	if len(orderBy) > 0 {
		selectSQL += " ORDER BY " + strings.Join(orderBy, ", ")
	}
	if b.limit > 0 {
		selectSQL += " LIMIT " + strconv.Itoa(b.limit)
	}
	if b.offset > 0 {
		selectSQL += " OFFSET " + strconv.Itoa(b.offset)
	}

	var countSQL string
	if grouped {
		countSQL = "SELECT COUNT(*) FROM (" + body + ") AS grouped"
	} else {
		countSQL = "SELECT COUNT(DISTINCT " + c.alias + `."id")` + from
		if whereSQL != "" {
			countSQL += " WHERE " + whereSQL
		}
	}

	st := &statement{selectSQL: selectSQL, countSQL: countSQL}
	var err error
	if st.selectSQL, st.args, err = sqlx.In(selectSQL, args...); err != nil {
		return nil, fmt.Errorf("query: expand arguments: %w", err)
	}
	if st.countSQL, st.countArgs, err = sqlx.In(countSQL, args...); err != nil {
		return nil, fmt.Errorf("query: expand arguments: %w", err)
	}
	return st, nil
}

func (c *compiler) unknown(field string) {
	c.b.log.Warn().Str("entity", c.root.Name).Str("field", field).Msg("unknown field, skipped")
}

// resolveJoin returns the join for an association path, registering it and
// its parents on first use.
func (c *compiler) resolveJoin(path string) (*join, bool) {
	if j, ok := c.byPath[path]; ok {
		return j, true
	}

	parentEntity, parentAlias, name := c.root, c.alias, path
	if i := strings.LastIndex(path, "."); i >= 0 {
		parent, ok := c.resolveJoin(path[:i])
		if !ok {
			return nil, false
		}
		parentEntity, parentAlias, name = parent.entity, quoteIdent(parent.path), path[i+1:]
	}

	assoc, ok := parentEntity.Associations[name]
	if !ok {
		c.b.log.Warn().Str("entity", parentEntity.Name).Str("association", name).Msg("unknown association, skipped")
		return nil, false
	}
	target, ok := c.b.schema.Entity(assoc.Entity)
	if !ok {
		c.b.log.Warn().Str("entity", parentEntity.Name).Str("association", name).Msg("association target not registered, skipped")
		return nil, false
	}

	j := &join{path: path, parent: parentAlias, entity: target, assoc: assoc}
	c.joins = append(c.joins, j)
	c.byPath[path] = j
	return j, true
}

// resolveField turns a root column or dotted association path into a
// qualified column reference.
func (c *compiler) resolveField(field string) (string, bool) {
	i := strings.LastIndex(field, ".")
	if i < 0 {
		if !c.root.HasColumn(field) {
			c.unknown(field)
			return "", false
		}
		return c.alias + "." + quoteIdent(field), true
	}

	j, ok := c.resolveJoin(field[:i])
	if !ok {
		return "", false
	}
	col := field[i+1:]
	if !j.entity.HasColumn(col) {
		c.unknown(field)
		return "", false
	}
	return quoteIdent(j.path) + "." + quoteIdent(col), true
}

func (c *compiler) includeResolver(j *join) func(string) (string, bool) {
	return func(field string) (string, bool) {
		if !j.entity.HasColumn(field) {
			c.unknown(j.path + "." + field)
			return "", false
		}
		return quoteIdent(j.path) + "." + quoteIdent(field), true
	}
}

func (c *compiler) havingResolver() func(string) (string, bool) {
	return func(field string) (string, bool) {
		if expr, ok := c.aggs[field]; ok {
			return expr, true
		}
		return c.resolveField(field)
	}
}

func (c *compiler) projection() []string {
	exclude := map[string]bool{}
	for _, col := range c.b.exclude {
		exclude[col] = true
	}

	columns := c.b.attributes
	if len(columns) == 0 {
		columns = c.root.Columns
		if c.root.SoftDeleteColumn != "" {
			exclude[c.root.SoftDeleteColumn] = true
		}
	}

	var out []string
	for _, col := range columns {
		if exclude[col] {
			continue
		}
		if !c.root.HasColumn(col) {
			c.unknown(col)
			continue
		}
		out = append(out, c.alias+"."+quoteIdent(col))
	}
	if len(out) == 0 {
		out = append(out, c.alias+`."id"`)
	}

	for _, j := range c.joins {
		for _, col := range j.attributes {
			out = append(out, quoteIdent(j.path)+"."+quoteIdent(col)+" AS "+quoteIdent(j.path+"."+col))
		}
	}
	return out
}

func (c *compiler) groupedProjection() []string {
	var out []string
	for _, g := range c.b.groupBy {
		expr, ok := c.resolveField(g)
		if !ok {
			continue
		}
		out = append(out, expr+" AS "+quoteIdent(g))
	}

	for _, a := range c.b.aggregates {
		fn := AggregateFunc(strings.ToUpper(string(a.Func)))
		switch fn {
		case Count, Sum, Min, Max, Avg:
		default:
			c.b.log.Warn().Str("entity", c.root.Name).Str("func", string(a.Func)).Msg("unknown aggregate, skipped")
			continue
		}

		arg := "*"
		if a.Field != "" && a.Field != "*" {
			expr, ok := c.resolveField(a.Field)
			if !ok {
				continue
			}
			arg = expr
		}
		as := a.As
		if as == "" {
			as = strings.ToLower(string(fn)) + "_" + strings.ReplaceAll(strings.Trim(a.Field, "*"), ".", "_")
			as = strings.TrimSuffix(as, "_")
		}
		expr := string(fn) + "(" + arg + ")"
		c.aggs[as] = expr
		out = append(out, expr+" AS "+quoteIdent(as))
	}

	if len(out) == 0 {
		out = append(out, "COUNT(*) AS "+quoteIdent("count"))
	}
	return out
}

func (c *compiler) where() []fragment {
	var out []fragment

	if c.b.siteScoped && c.root.TenantColumn != "" {
		out = append(out, fragment{
			sql:  c.alias + "." + quoteIdent(c.root.TenantColumn) + " = ?",
			args: []any{c.b.siteID},
		})
	}

	if col := c.root.SoftDeleteColumn; col != "" {
		op := " IS NULL"
		if c.b.visibility == tenant.Deleted {
			op = " IS NOT NULL"
		}
		out = append(out, fragment{sql: c.alias + "." + quoteIdent(col) + op})
	}

	for _, p := range c.b.where {
		if f, ok := c.predicate(p, c.resolveField); ok {
			out = append(out, f)
		}
	}

	for _, name := range c.b.scopes {
		preds, ok := c.root.Scopes[name]
		if !ok {
			c.b.log.Warn().Str("entity", c.root.Name).Str("scope", name).Msg("unknown scope, skipped")
			continue
		}
		for _, p := range preds {
			if f, ok := c.predicate(p, c.resolveField); ok {
				out = append(out, f)
			}
		}
	}

	return out
}

func (c *compiler) orderBy(grouped bool) []string {
	orders := c.b.orders
	if !grouped {
		orders = append(append([]Order{}, orders...), c.root.DefaultOrder...)
	}

	var out []string
	seen := map[string]bool{}
	for _, o := range orders {
		var expr string
		if agg, ok := c.aggs[o.Field]; ok && grouped {
			expr = agg
		} else {
			var ok bool
			if expr, ok = c.resolveField(o.Field); !ok {
				continue
			}
		}
		if seen[expr] {
			continue
		}
		seen[expr] = true
		dir := Desc
		if o.Direction == Asc {
			dir = Asc
		}
		out = append(out, expr+" "+string(dir))
	}
	return out
}

func (c *compiler) from() (string, []any) {
	var sb strings.Builder
	var args []any

	sb.WriteString(" FROM " + quoteIdent(c.root.Table) + " AS " + c.alias)
	for _, j := range c.joins {
		alias := quoteIdent(j.path)
		sb.WriteString(" LEFT JOIN " + quoteIdent(j.entity.Table) + " AS " + alias + " ON ")

		if j.assoc.Kind == HasOne {
			sb.WriteString(alias + "." + quoteIdent(j.assoc.ForeignKey) + " = " + j.parent + `."id"`)
		} else {
			sb.WriteString(alias + `."id" = ` + j.parent + "." + quoteIdent(j.assoc.ForeignKey))
		}
		if col := j.entity.SoftDeleteColumn; col != "" {
			sb.WriteString(" AND " + alias + "." + quoteIdent(col) + " IS NULL")
		}
		for _, f := range j.on {
			sb.WriteString(" AND " + f.sql)
			args = append(args, f.args...)
		}
	}
	return sb.String(), args
}

func (c *compiler) predicate(p Predicate, resolve func(string) (string, bool)) (fragment, bool) {
	switch p := p.(type) {
	case Equals:
		expr, ok := resolve(p.Field)
		if !ok {
			return fragment{}, false
		}
		if p.Value == nil {
			return fragment{sql: expr + " IS NULL"}, true
		}
		return fragment{sql: expr + " = ?", args: []any{p.Value}}, true

	case NotEquals:
		expr, ok := resolve(p.Field)
		if !ok {
			return fragment{}, false
		}
		if p.Value == nil {
			return fragment{sql: expr + " IS NOT NULL"}, true
		}
		return fragment{sql: expr + " <> ?", args: []any{p.Value}}, true

	case Like:
		expr, ok := resolve(p.Field)
		if !ok {
			return fragment{}, false
		}
		op := "LIKE"
		if p.CaseInsensitive {
			op = "ILIKE"
		}
		if p.Negate {
			op = "NOT " + op
		}
		return fragment{sql: "CAST(" + expr + " AS TEXT) " + op + " ?", args: []any{p.Pattern}}, true

	case In:
		expr, ok := resolve(p.Field)
		if !ok {
			return fragment{}, false
		}
		rv := reflect.ValueOf(p.Values)
		if rv.Kind() != reflect.Slice {
			if p.Negate {
				return fragment{sql: expr + " <> ?", args: []any{p.Values}}, true
			}
			return fragment{sql: expr + " = ?", args: []any{p.Values}}, true
		}
		if rv.Len() == 0 {
			if p.Negate {
				return fragment{sql: "TRUE"}, true
			}
			return fragment{sql: "FALSE"}, true
		}
		op := " IN (?)"
		if p.Negate {
			op = " NOT IN (?)"
		}
		return fragment{sql: expr + op, args: []any{p.Values}}, true

	case Between:
		expr, ok := resolve(p.Field)
		if !ok {
			return fragment{}, false
		}
		return fragment{sql: expr + " BETWEEN ? AND ?", args: []any{p.Low, p.High}}, true

	case Compare:
		expr, ok := resolve(p.Field)
		if !ok {
			return fragment{}, false
		}
		switch p.Op {
		case Gt, Lt, Gte, Lte:
		default:
			c.b.log.Warn().Str("entity", c.root.Name).Str("op", string(p.Op)).Msg("unknown operator, skipped")
			return fragment{}, false
		}
		return fragment{sql: expr + " " + string(p.Op) + " ?", args: []any{p.Value}}, true

	case IsNull:
		expr, ok := resolve(p.Field)
		if !ok {
			return fragment{}, false
		}
		if p.Negate {
			return fragment{sql: expr + " IS NOT NULL"}, true
		}
		return fragment{sql: expr + " IS NULL"}, true

	case And:
		return c.group([]Predicate(p), " AND ", resolve)

	case Or:
		return c.group([]Predicate(p), " OR ", resolve)

	default:
		return fragment{}, false
	}
}

func (c *compiler) group(preds []Predicate, sep string, resolve func(string) (string, bool)) (fragment, bool) {
	var parts []fragment
	for _, p := range preds {
		if f, ok := c.predicate(p, resolve); ok {
			parts = append(parts, f)
		}
	}
	if len(parts) == 0 {
		return fragment{}, false
	}
	sql, args := joinFragments(parts, sep)
	return fragment{sql: "(" + sql + ")", args: args}, true
}

func joinFragments(parts []fragment, sep string) (string, []any) {
	sqls := make([]string, 0, len(parts))
	var args []any
	for _, f := range parts {
		sqls = append(sqls, f.sql)
		args = append(args, f.args...)
	}
	return strings.Join(sqls, sep), args
}
