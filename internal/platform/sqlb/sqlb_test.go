package sqlb

import (
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
)

func TestWhereEmptyRendersNothing(t *testing.T) {
	var w Where
	clause, args := w.Render()
	assert.Equal(t, "", clause)
	assert.Empty(t, args)
}

func TestWhereJoinsWithAnd(t *testing.T) {
	var w Where
	w.Add(Eq("i.customer_id", "customer_id", int64(3))).
		Add(Gte("i.invoice_date", "date_from", "2024-01-01")).
		Add(Contains{Columns: []string{"i.invoice_no", "c.name"}, Param: "q", Term: "acme"})

	clause, args := w.Render()
	assert.Equal(t,
		"WHERE i.customer_id = @customer_id AND i.invoice_date >= @date_from AND (i.invoice_no ILIKE @q OR c.name ILIKE @q)",
		clause)
	assert.Equal(t, pgx.NamedArgs{
		"customer_id": int64(3),
		"date_from":   "2024-01-01",
		"q":           "%acme%",
	}, args)
	assert.Equal(t, 3, w.Len())
}

func TestContainsEscapesWildcards(t *testing.T) {
	c := Contains{Columns: []string{"name"}, Param: "q", Term: `50%_off\`}
	assert.Equal(t, `%50\%\_off\\%`, c.Args()["q"])
}

func TestParseDirection(t *testing.T) {
	cases := map[string]Direction{
		"desc":  Desc,
		"DESC":  Desc,
		"Desc":  Desc,
		"asc":   Asc,
		"":      Asc,
		"down":  Asc,
		"descx": Asc,
	}
	for raw, want := range cases {
		assert.Equal(t, want, ParseDirection(raw), raw)
	}
}

func TestOrderByFallsBack(t *testing.T) {
	o := NewOrderBy(map[string]string{
		"invoice_date": "i.invoice_date",
		"outstanding":  "outstanding",
	}, "invoice_date")

	assert.Equal(t, "invoice_date", o.Resolve("bogus"))
	assert.Equal(t, "ORDER BY i.invoice_date ASC, i.id", o.Render("bogus; DROP TABLE invoices", Asc, "i.id"))
	assert.Equal(t, "ORDER BY outstanding DESC", o.Render("outstanding", Desc))
}
