// Package convert maps raw Home Assistant state strings to typed values.
//
// Entities are declared with a DataType tag (numeric, string, boolean,
// integer, datetime) and every state string received for that entity is
// converted through Convert. The result is a Value, a tagged variant that
// carries exactly one of float64, int64, bool, string or time.Time.
//
// The hub reports entities it cannot read as "unknown" or "unavailable".
// These sentinels convert to a null Value for every type instead of
// failing, so callers can distinguish "the hub has no value" from "the
// hub sent garbage".
//
// Conversion failures are reported as *ConversionError and are always
// local to the field being converted. Nothing in this package panics.
package convert
