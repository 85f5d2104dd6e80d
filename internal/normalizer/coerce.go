package normalizer

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var numericNoise = strings.NewReplacer(
	"$", "",
	"€", "",
	"£", "",
	",", "",
	" ", "",
	"\u00a0", "",
)

// Float coerces a loosely typed value into a float. It returns nil, never an error,
// when the value is absent or cannot be read as a number.
func Float(v any) *float64 {
	var f float64
	switch n := v.(type) {
	case nil:
		return nil
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case int32:
		f = float64(n)
	case uint:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return nil
		}
		f = parsed
	case string:
		cleaned := numericNoise.Replace(strings.TrimSpace(n))
		cleaned = strings.TrimPrefix(strings.ToUpper(cleaned), "USD")
		if cleaned == "" {
			return nil
		}
		parsed, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// Int coerces a value into an integer. Non-integral numbers are treated as a coercion failure.
func Int(v any) *int {
	f := Float(v)
	if f == nil {
		return nil
	}
	if *f != math.Trunc(*f) || *f > math.MaxInt32 || *f < math.MinInt32 {
		return nil
	}
	i := int(*f)
	return &i
}

// String renders scalar values as trimmed text; nil becomes the empty string.
func String(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case json.Number:
		return s.String()
	case bool:
		return strconv.FormatBool(s)
	case map[string]any, []any:
		data, err := json.Marshal(s)
		if err != nil {
			return ""
		}
		return string(data)
	default:
		return strings.TrimSpace(fmt.Sprint(s))
	}
}
