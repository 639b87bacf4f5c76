package utils

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	intPattern   = regexp.MustCompile(`^[+-]?[0-9]+$`)
	floatPattern = regexp.MustCompile(`^[+-]?([0-9]+\.?[0-9]*|\.[0-9]+)([eE][+-]?[0-9]+)?$`)
)

// NormalizeScanValue converts a value scanned from database/sql into one of
// the scalar types carried by a row: nil, int64, float64 or string.
func NormalizeScanValue(val interface{}) interface{} {
	switch v := val.(type) {
	case nil:
		return nil
	case int64:
		return v
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case int16:
		return int64(v)
	case int8:
		return int64(v)
	case uint8:
		return int64(v)
	case uint16:
		return int64(v)
	case uint32:
		return int64(v)
	case uint64:
		if v > math.MaxInt64 {
			return strconv.FormatUint(v, 10)
		}
		return int64(v)
	case float64:
		return v
	case float32:
		return float64(v)
	case bool:
		return strconv.FormatBool(v)
	case string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		return v.Format(time.RFC3339Nano)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// FormatCell renders a row value as delimited-text. Missing values become
// the empty string.
func FormatCell(val interface{}) string {
	switch v := val.(type) {
	case nil:
		return ""
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return FormatFloat(v)
	case string:
		return v
	default:
		return FormatCell(NormalizeScanValue(v))
	}
}

// FormatFloat renders f with at least one fractional digit so that the text
// never reads back as an integer.
func FormatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return s
	}
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// ParseInt parses a base-10 integer cell.
func ParseInt(cell string) (int64, bool) {
	if !intPattern.MatchString(cell) {
		return 0, false
	}
	v, err := strconv.ParseInt(cell, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ParseFloat parses a finite decimal number cell. Hex floats, "NaN" and
// "Inf" are rejected so that words never turn into numbers.
func ParseFloat(cell string) (float64, bool) {
	if !floatPattern.MatchString(cell) {
		return 0, false
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// ConvertToFloat converts a numeric row value to float64.
func ConvertToFloat(val interface{}) (float64, error) {
	switch v := val.(type) {
	case int64:
		return float64(v), nil
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case string:
		if f, ok := ParseFloat(v); ok {
			return f, nil
		}
		return 0, fmt.Errorf("cannot convert %q to float", v)
	default:
		return 0, fmt.Errorf("cannot convert %T to float", val)
	}
}
