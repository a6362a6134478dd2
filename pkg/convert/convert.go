package convert

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Hub sentinel states that convert to null for every type.
const (
	SentinelUnknown     = "unknown"
	SentinelUnavailable = "unavailable"
)

// ConversionError reports a raw state string that could not be converted
// to its declared type.
type ConversionError struct {
	Raw  string
	Type DataType
	Err  error
}

// Error implements the error interface.
func (e *ConversionError) Error() string {
	return fmt.Sprintf("cannot convert %q to %s: %v", e.Raw, e.Type, e.Err)
}

// Unwrap returns the underlying parse error.
func (e *ConversionError) Unwrap() error {
	return e.Err
}

// IsSentinel reports whether raw is one of the hub's placeholder states
// for an entity without a usable value.
func IsSentinel(raw string) bool {
	return raw == SentinelUnknown || raw == SentinelUnavailable
}

// Convert maps a raw state string to a typed Value. An empty string and
// the hub sentinels yield a null Value without error. loc is only used
// for TypeDateTime; nil keeps the timestamp's original offset.
func Convert(raw string, dt DataType, loc *time.Location) (Value, error) {
	if raw == "" || IsSentinel(raw) {
		return Null(dt), nil
	}

	switch dt {
	case TypeNumeric:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Null(dt), &ConversionError{Raw: raw, Type: dt, Err: err}
		}
		return Numeric(f), nil

	case TypeString:
		return Str(raw), nil

	case TypeBoolean:
		switch strings.ToLower(raw) {
		case "on", "true", "1":
			return Bool(true), nil
		case "off", "false", "0":
			return Bool(false), nil
		}
		return Null(dt), &ConversionError{Raw: raw, Type: dt, Err: fmt.Errorf("not a boolean state")}

	case TypeInteger:
		// The hub reports integer sensors as "42.0"; parse as float
		// and truncate.
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Null(dt), &ConversionError{Raw: raw, Type: dt, Err: err}
		}
		return Int(int64(f)), nil

	case TypeDateTime:
		t, err := parseTimestamp(raw, loc)
		if err != nil {
			return Null(dt), &ConversionError{Raw: raw, Type: dt, Err: err}
		}
		return Time(t), nil

	default:
		return Null(dt), &ConversionError{Raw: raw, Type: dt, Err: fmt.Errorf("unsupported data type")}
	}
}

// Timestamp parses an ISO-8601 timestamp with offset and converts it to
// loc when loc is non-nil. Empty strings and sentinels yield a zero time
// without error; a timestamp lacking an offset is an error.
func Timestamp(raw string, loc *time.Location) (time.Time, error) {
	if raw == "" || IsSentinel(raw) {
		return time.Time{}, nil
	}
	t, err := parseTimestamp(raw, loc)
	if err != nil {
		return time.Time{}, &ConversionError{Raw: raw, Type: TypeDateTime, Err: err}
	}
	return t, nil
}

func parseTimestamp(raw string, loc *time.Location) (time.Time, error) {
	// RFC 3339 covers everything the hub emits: "Z", "+00:00" and
	// fractional seconds. Offset-less timestamps fail here on purpose.
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, err
	}
	if loc != nil {
		t = t.In(loc)
	}
	return t, nil
}
