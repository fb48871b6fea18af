package receivables

import (
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// The executor hands back raw driver values; these helpers coerce them into
// domain types. Unknown or NULL values coerce to the zero value.

func toDecimal(v any) decimal.Decimal {
	switch val := v.(type) {
	case nil:
		return decimal.Zero
	case decimal.Decimal:
		return val
	case pgtype.Numeric:
		if !val.Valid || val.NaN || val.Int == nil {
			return decimal.Zero
		}
		return decimal.NewFromBigInt(new(big.Int).Set(val.Int), val.Exp)
	case *pgtype.Numeric:
		if val == nil {
			return decimal.Zero
		}
		return toDecimal(*val)
	case float64:
		return decimal.NewFromFloat(val)
	case float32:
		return decimal.NewFromFloat32(val)
	case int64:
		return decimal.NewFromInt(val)
	case int32:
		return decimal.NewFromInt32(val)
	case int:
		return decimal.NewFromInt(int64(val))
	case string:
		d, err := decimal.NewFromString(val)
		if err != nil {
			return decimal.Zero
		}
		return d
	default:
		return decimal.Zero
	}
}

func toInt64(v any) int64 {
	switch val := v.(type) {
	case int64:
		return val
	case int32:
		return int64(val)
	case int16:
		return int64(val)
	case int:
		return int64(val)
	case pgtype.Numeric:
		return toDecimal(val).IntPart()
	case string:
		n, _ := strconv.ParseInt(val, 10, 64)
		return n
	default:
		return 0
	}
}

func toString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

func toDate(v any) *time.Time {
	switch val := v.(type) {
	case time.Time:
		return &val
	case *time.Time:
		return val
	case pgtype.Date:
		if !val.Valid {
			return nil
		}
		t := val.Time
		return &t
	case string:
		return ParseDate(val)
	default:
		return nil
	}
}
