// Package sqlb assembles WHERE and ORDER BY clauses from typed predicates.
//
// Column expressions are always supplied by code; request input only ever
// reaches the database as a named argument.
package sqlb

import (
	"strings"

	"github.com/jackc/pgx/v5"
)

// Predicate is a single boolean SQL fragment together with the named
// arguments it binds.
type Predicate interface {
	SQL() string
	Args() pgx.NamedArgs
}

// Compare renders "<Column> <Op> @<Param>".
type Compare struct {
	Column string
	Op     string
	Param  string
	Value  any
}

func (c Compare) SQL() string { return c.Column + " " + c.Op + " @" + c.Param }

func (c Compare) Args() pgx.NamedArgs { return pgx.NamedArgs{c.Param: c.Value} }

// Eq is an equality comparison.
func Eq(column, param string, value any) Compare {
	return Compare{Column: column, Op: "=", Param: param, Value: value}
}

// Gte is an inclusive lower bound.
func Gte(column, param string, value any) Compare {
	return Compare{Column: column, Op: ">=", Param: param, Value: value}
}

// Lte is an inclusive upper bound.
func Lte(column, param string, value any) Compare {
	return Compare{Column: column, Op: "<=", Param: param, Value: value}
}

// Contains matches Term as a literal, case-insensitive substring of any of
// the columns.
type Contains struct {
	Columns []string
	Param   string
	Term    string
}

func (c Contains) SQL() string {
	parts := make([]string, 0, len(c.Columns))
	for _, col := range c.Columns {
		parts = append(parts, col+" ILIKE @"+c.Param)
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}

func (c Contains) Args() pgx.NamedArgs {
	return pgx.NamedArgs{c.Param: "%" + EscapeLike(c.Term) + "%"}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// EscapeLike escapes LIKE metacharacters using the default backslash escape.
func EscapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// Where collects predicates that are ANDed together.
type Where struct {
	preds []Predicate
}

// Add appends a predicate.
func (w *Where) Add(p Predicate) *Where {
	w.preds = append(w.preds, p)
	return w
}

// Len reports the number of predicates.
func (w *Where) Len() int { return len(w.preds) }

// Render returns "WHERE a AND b" and the merged arguments. An empty Where
// renders to an empty clause.
func (w *Where) Render() (string, pgx.NamedArgs) {
	args := pgx.NamedArgs{}
	if w == nil || len(w.preds) == 0 {
		return "", args
	}
	parts := make([]string, 0, len(w.preds))
	for _, p := range w.preds {
		parts = append(parts, p.SQL())
		for k, v := range p.Args() {
			args[k] = v
		}
	}
	return "WHERE " + strings.Join(parts, " AND "), args
}
