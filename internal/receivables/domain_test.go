package receivables

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	got := ParseDate(" 2024-03-09 ")
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC), *got)

	for _, raw := range []string{"", "2024-3-9", "09/03/2024", "2024-13-01", "yesterday"} {
		assert.Nil(t, ParseDate(raw), raw)
	}
}

func TestCoerceDriverValues(t *testing.T) {
	assert.True(t, decimal.RequireFromString("12.34").Equal(toDecimal(numeric(1234, -2))))
	assert.True(t, toDecimal(pgtype.Numeric{}).IsZero())
	assert.True(t, toDecimal(nil).IsZero())
	assert.True(t, decimal.NewFromInt(3).Equal(toDecimal("3")))

	assert.Equal(t, int64(5), toInt64(int32(5)))
	assert.Equal(t, int64(0), toInt64(nil))

	assert.Equal(t, "", toString(nil))
	assert.Equal(t, "abc", toString([]byte("abc")))

	d := toDate(pgtype.Date{Time: day("2024-01-31"), Valid: true})
	require.NotNil(t, d)
	assert.Equal(t, day("2024-01-31"), *d)
	assert.Nil(t, toDate(pgtype.Date{}))
	assert.Nil(t, toDate(nil))
}
