package table

import (
	"math"
	"strconv"
)

// NormalizeKey converts a join key value to a canonical string form, suitable
// for in-memory hash lookups (e.g. "Bengaluru" or "8429529").
//
// Integers and integral floats share one form, so an int64 key read from a
// database matches the same key parsed as 7.0 from a spreadsheet. Text keys
// are compared exactly: no trimming and no case folding. ok is false for
// missing values, which never match anything.
func NormalizeKey(v any) (key string, ok bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, true
	case int64:
		return strconv.FormatInt(t, 10), true
	case int:
		return strconv.Itoa(t), true
	case float64:
		if math.IsNaN(t) {
			return "", false
		}
		if t == math.Trunc(t) && math.Abs(t) < 1<<53 {
			return strconv.FormatInt(int64(t), 10), true
		}
		return strconv.FormatFloat(t, 'g', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	case []byte:
		return string(t), true
	default:
		return toText(t), true
	}
}
