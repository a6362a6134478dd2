package convert

import (
	"strconv"
	"time"
)

// Value is a converted state value: a tagged variant holding exactly one
// of the supported Go types, or null. The zero Value is a null TypeNumeric.
type Value struct {
	dataType DataType
	valid    bool

	num float64
	i   int64
	b   bool
	s   string
	t   time.Time
}

// Null returns a null Value of the given type.
func Null(dt DataType) Value {
	return Value{dataType: dt}
}

// Numeric returns a numeric Value.
func Numeric(f float64) Value {
	return Value{dataType: TypeNumeric, valid: true, num: f}
}

// Str returns a string Value.
func Str(s string) Value {
	return Value{dataType: TypeString, valid: true, s: s}
}

// Bool returns a boolean Value.
func Bool(b bool) Value {
	return Value{dataType: TypeBoolean, valid: true, b: b}
}

// Int returns an integer Value.
func Int(i int64) Value {
	return Value{dataType: TypeInteger, valid: true, i: i}
}

// Time returns a datetime Value.
func Time(t time.Time) Value {
	return Value{dataType: TypeDateTime, valid: true, t: t}
}

// Type returns the declared type of the value.
func (v Value) Type() DataType {
	return v.dataType
}

// IsNull reports whether the value is null (sentinel state, absent state
// or failed conversion).
func (v Value) IsNull() bool {
	return !v.valid
}

// Float returns the numeric value. ok is false for null values and
// non-numeric types.
func (v Value) Float() (f float64, ok bool) {
	return v.num, v.valid && v.dataType == TypeNumeric
}

// Int returns the integer value.
func (v Value) Int() (i int64, ok bool) {
	return v.i, v.valid && v.dataType == TypeInteger
}

// Bool returns the boolean value.
func (v Value) Bool() (b bool, ok bool) {
	return v.b, v.valid && v.dataType == TypeBoolean
}

// Str returns the string value.
func (v Value) Str() (s string, ok bool) {
	return v.s, v.valid && v.dataType == TypeString
}

// Time returns the datetime value.
func (v Value) Time() (t time.Time, ok bool) {
	return v.t, v.valid && v.dataType == TypeDateTime
}

// String returns the canonical string form of the value: hub-style on/off
// for booleans, RFC 3339 for datetimes, and the sentinel "unknown" for
// null values. Converting the result again yields an equal Value.
func (v Value) String() string {
	if !v.valid {
		return SentinelUnknown
	}
	switch v.dataType {
	case TypeNumeric:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	case TypeString:
		return v.s
	case TypeBoolean:
		if v.b {
			return "on"
		}
		return "off"
	case TypeInteger:
		return strconv.FormatInt(v.i, 10)
	case TypeDateTime:
		return v.t.Format(time.RFC3339Nano)
	default:
		return SentinelUnknown
	}
}
