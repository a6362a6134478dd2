package convert

import "fmt"

// DataType is the declared conversion target for an entity's state strings.
type DataType uint8

const (
	// TypeNumeric converts to float64.
	TypeNumeric DataType = iota

	// TypeString keeps the raw string.
	TypeString

	// TypeBoolean converts on/true/1 and off/false/0 to bool.
	TypeBoolean

	// TypeInteger converts to int64, truncating a fractional part.
	TypeInteger

	// TypeDateTime converts an ISO-8601 timestamp with offset to time.Time.
	TypeDateTime
)

// String returns the canonical type tag name.
func (d DataType) String() string {
	switch d {
	case TypeNumeric:
		return "numeric"
	case TypeString:
		return "string"
	case TypeBoolean:
		return "boolean"
	case TypeInteger:
		return "integer"
	case TypeDateTime:
		return "datetime"
	default:
		return "unknown"
	}
}

// ParseDataType parses a type tag string into a DataType.
// The short aliases str, bool and int are accepted alongside the
// canonical names.
func ParseDataType(s string) (DataType, error) {
	switch s {
	case "numeric":
		return TypeNumeric, nil
	case "str", "string":
		return TypeString, nil
	case "bool", "boolean":
		return TypeBoolean, nil
	case "int", "integer":
		return TypeInteger, nil
	case "datetime":
		return TypeDateTime, nil
	default:
		return 0, fmt.Errorf("unknown data type %q", s)
	}
}
