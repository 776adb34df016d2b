package query

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Reserved query parameters that are not field filters.
var reserved = map[string]bool{
	"offset":  true,
	"limit":   true,
	"status":  true,
	"orderBy": true,
	"site_id": true,
}

// ParseFromQuery reads filters from URL query parameters:
//
//	field=value            equality
//	field__op=value        op is one of eq, ne, like, ilike, notLike, in,
//	                       notIn, between, gt, lt, gte, lte, null
//	offset, limit          pagination; missing or invalid values keep the
//	                       builder's current ones
//	status                 soft-delete view (see Status)
//	orderBy=field:dir      ordering, repeatable
//
// in, notIn and between take comma separated values. null takes true/false.
func (b *Builder) ParseFromQuery(values url.Values) *Builder {
	offset, limit := b.offset, b.limit
	if n, err := strconv.Atoi(values.Get("offset")); err == nil {
		offset = n
	}
	if n, err := strconv.Atoi(values.Get("limit")); err == nil && n > 0 {
		limit = n
	}
	b.Paginate(offset, limit)

	if values.Has("status") {
		b.Status(values.Get("status"))
	}

	for _, raw := range values["orderBy"] {
		field, dir, _ := strings.Cut(raw, ":")
		b.OrderBy(field, Direction(strings.ToUpper(dir)))
	}

	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		vals := values[key]
		if reserved[key] || len(vals) == 0 {
			continue
		}
		value := vals[0]
		if value == "" {
			continue
		}

		field, op, hasOp := strings.Cut(key, "__")
		if !hasOp {
			op = "eq"
		}

		switch op {
		case "eq":
			b.Where(Equals{Field: field, Value: value})
		case "ne":
			b.Where(NotEquals{Field: field, Value: value})
		case "like":
			b.Where(Like{Field: field, Pattern: "%" + value + "%"})
		case "ilike":
			b.Where(Like{Field: field, Pattern: "%" + value + "%", CaseInsensitive: true})
		case "notLike":
			b.Where(Like{Field: field, Pattern: "%" + value + "%", Negate: true})
		case "in":
			b.Where(In{Field: field, Values: splitList(value)})
		case "notIn":
			b.Where(In{Field: field, Values: splitList(value), Negate: true})
		case "between":
			parts := splitList(value)
			if len(parts) == 2 {
				b.Where(Between{Field: field, Low: parts[0], High: parts[1]})
			}
		case "gt":
			b.Where(Compare{Field: field, Op: Gt, Value: value})
		case "lt":
			b.Where(Compare{Field: field, Op: Lt, Value: value})
		case "gte":
			b.Where(Compare{Field: field, Op: Gte, Value: value})
		case "lte":
			b.Where(Compare{Field: field, Op: Lte, Value: value})
		case "null":
			isNull, err := strconv.ParseBool(value)
			if err == nil {
				b.Where(IsNull{Field: field, Negate: !isNull})
			}
		default:
			b.log.Warn().Str("param", key).Msg("unknown filter operator, skipped")
		}
	}
	return b
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
