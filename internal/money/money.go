// Package money holds the numeric coercion and fixed-precision helpers shared by
// the box model, the charge ledger and the payload builder.
package money

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ToFloat coerces form and JSON values into a float. Anything that does not look
// like a finite number becomes 0.
func ToFloat(v any) float64 {
	var f float64
	switch val := v.(type) {
	case nil:
		return 0
	case float64:
		f = val
	case float32:
		f = float64(val)
	case int:
		f = float64(val)
	case int32:
		f = float64(val)
	case int64:
		f = float64(val)
	case uint:
		f = float64(val)
	case uint32:
		f = float64(val)
	case uint64:
		f = float64(val)
	case json.Number:
		parsed, err := val.Float64()
		if err != nil {
			return 0
		}
		f = parsed
	case decimal.Decimal:
		f = val.InexactFloat64()
	case string:
		return parseFloat(val)
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func parseFloat(raw string) float64 {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	cleaned = strings.ReplaceAll(cleaned, "_", "")
	if cleaned == "" {
		return 0
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// ToInt coerces like ToFloat and truncates toward zero.
func ToInt(v any) int64 {
	switch val := v.(type) {
	case int:
		return int64(val)
	case int64:
		return val
	case int32:
		return int64(val)
	}
	f := ToFloat(v)
	if f > math.MaxInt64 || f < math.MinInt64 {
		return 0
	}
	return int64(f)
}

// IsNumeric reports whether v carries a finite number, either natively or as a
// numeric string.
func IsNumeric(v any) bool {
	switch val := v.(type) {
	case nil, bool:
		return false
	case string:
		cleaned := strings.TrimSpace(val)
		if cleaned == "" {
			return false
		}
		f, err := strconv.ParseFloat(cleaned, 64)
		return err == nil && !math.IsNaN(f) && !math.IsInf(f, 0)
	case float64:
		return !math.IsNaN(val) && !math.IsInf(val, 0)
	case float32, int, int32, int64, uint, uint32, uint64, decimal.Decimal:
		return true
	case json.Number:
		_, err := val.Float64()
		return err == nil
	}
	return false
}

func NonNegative(f float64) float64 {
	if f < 0 || math.IsNaN(f) {
		return 0
	}
	return f
}

func NonNegativeInt(n int64) int64 {
	if n < 0 {
		return 0
	}
	return n
}

// Round rounds half away from zero on the decimal representation of value, so
// 1.005 rounds to 1.01 rather than the binary-float 1.00.
func Round(value float64, places int32) float64 {
	return decimal.NewFromFloat(value).Round(places).InexactFloat64()
}

func Round2(value float64) float64 {
	return Round(value, 2)
}

// Mul2 returns round2(q × r) computed in decimal arithmetic.
func Mul2(q, r float64) float64 {
	return decimal.NewFromFloat(q).Mul(decimal.NewFromFloat(r)).Round(2).InexactFloat64()
}

// Percent returns round2(base × pct / 100).
func Percent(base, pct float64) float64 {
	return decimal.NewFromFloat(base).Mul(decimal.NewFromFloat(pct)).Div(decimal.NewFromInt(100)).Round(2).InexactFloat64()
}

// Sum adds values in decimal arithmetic.
func Sum(values ...float64) float64 {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(decimal.NewFromFloat(v))
	}
	return total.InexactFloat64()
}

// Fixed renders value with exactly places decimals, e.g. Fixed(7, 3) == "7.000".
func Fixed(value float64, places int32) string {
	return decimal.NewFromFloat(value).StringFixed(places)
}
