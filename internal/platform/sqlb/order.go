package sqlb

import "strings"

// Direction is a sort direction.
type Direction string

const (
	Asc  Direction = "ASC"
	Desc Direction = "DESC"
)

// ParseDirection maps a case-insensitive "desc" to Desc and anything else to Asc.
func ParseDirection(raw string) Direction {
	if strings.EqualFold(strings.TrimSpace(raw), "desc") {
		return Desc
	}
	return Asc
}

// OrderBy resolves client sort keys against an allow-list of column expressions.
type OrderBy struct {
	columns  map[string]string
	fallback string
}

// NewOrderBy builds an OrderBy. fallback must be a key of columns.
func NewOrderBy(columns map[string]string, fallback string) OrderBy {
	return OrderBy{columns: columns, fallback: fallback}
}

// Resolve returns the allow-listed key for raw, falling back when raw is unknown.
func (o OrderBy) Resolve(raw string) string {
	if _, ok := o.columns[raw]; ok {
		return raw
	}
	return o.fallback
}

// Render returns "ORDER BY <expr> <dir>" followed by any tie-breaker expressions.
func (o OrderBy) Render(key string, dir Direction, tieBreakers ...string) string {
	expr := o.columns[o.Resolve(key)]
	var b strings.Builder
	b.WriteString("ORDER BY ")
	b.WriteString(expr)
	b.WriteString(" ")
	b.WriteString(string(dir))
	for _, tb := range tieBreakers {
		b.WriteString(", ")
		b.WriteString(tb)
	}
	return b.String()
}
