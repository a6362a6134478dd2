package convert

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestParseDataType(t *testing.T) {
	tests := []struct {
		in      string
		want    DataType
		wantErr bool
	}{
		{"numeric", TypeNumeric, false},
		{"string", TypeString, false},
		{"str", TypeString, false},
		{"boolean", TypeBoolean, false},
		{"bool", TypeBoolean, false},
		{"integer", TypeInteger, false},
		{"int", TypeInteger, false},
		{"datetime", TypeDateTime, false},
		{"float", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseDataType(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseDataType(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseDataType(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseDataType(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestConvertNumeric(t *testing.T) {
	v, err := Convert("23.5", TypeNumeric, nil)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	f, ok := v.Float()
	if !ok {
		t.Fatal("Float() not ok")
	}
	if math.Abs(f-23.5) > 1e-9 {
		t.Errorf("Float() = %v, want 23.5", f)
	}

	v, err = Convert("abc", TypeNumeric, nil)
	if err == nil {
		t.Fatal("expected error for non-numeric input")
	}
	var convErr *ConversionError
	if !errors.As(err, &convErr) {
		t.Fatalf("error type = %T, want *ConversionError", err)
	}
	if !v.IsNull() {
		t.Error("failed conversion should yield a null Value")
	}
}

func TestConvertBoolean(t *testing.T) {
	trueInputs := []string{"on", "ON", "true", "True", "1"}
	for _, in := range trueInputs {
		v, err := Convert(in, TypeBoolean, nil)
		if err != nil {
			t.Errorf("Convert(%q): %v", in, err)
			continue
		}
		if b, ok := v.Bool(); !ok || !b {
			t.Errorf("Convert(%q) = %v, want true", in, v)
		}
	}

	falseInputs := []string{"off", "OFF", "false", "False", "0"}
	for _, in := range falseInputs {
		v, err := Convert(in, TypeBoolean, nil)
		if err != nil {
			t.Errorf("Convert(%q): %v", in, err)
			continue
		}
		if b, ok := v.Bool(); !ok || b {
			t.Errorf("Convert(%q) = %v, want false", in, v)
		}
	}

	v, err := Convert("maybe", TypeBoolean, nil)
	if err == nil {
		t.Error("Convert(\"maybe\"): expected error")
	}
	if !v.IsNull() {
		t.Error("Convert(\"maybe\") should yield null")
	}
}

func TestConvertInteger(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"42", 42},
		{"42.0", 42},
		{"42.9", 42}, // truncated, not rounded
		{"-3.7", -3},
	}
	for _, tt := range tests {
		v, err := Convert(tt.in, TypeInteger, nil)
		if err != nil {
			t.Errorf("Convert(%q): %v", tt.in, err)
			continue
		}
		if i, ok := v.Int(); !ok || i != tt.want {
			t.Errorf("Convert(%q) = %v, want %d", tt.in, v, tt.want)
		}
	}

	if _, err := Convert("forty-two", TypeInteger, nil); err == nil {
		t.Error("expected error for non-numeric integer input")
	}
}

func TestConvertString(t *testing.T) {
	v, err := Convert("heat", TypeString, nil)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if s, ok := v.Str(); !ok || s != "heat" {
		t.Errorf("Str() = %q, want \"heat\"", s)
	}
}

func TestConvertDateTime(t *testing.T) {
	syd, err := time.LoadLocation("Australia/Sydney")
	if err != nil {
		t.Skipf("timezone database unavailable: %v", err)
	}

	v, err := Convert("2024-02-14T10:30:00+00:00", TypeDateTime, syd)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	got, ok := v.Time()
	if !ok {
		t.Fatal("Time() not ok")
	}
	if got.Location() != syd {
		t.Errorf("Location() = %v, want %v", got.Location(), syd)
	}
	want := time.Date(2024, 2, 14, 10, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Time() = %v, want instant %v", got, want)
	}

	// Zulu suffix and fractional seconds as the hub sends them.
	if _, err := Convert("2023-12-27T15:28:26.287133+00:00", TypeDateTime, nil); err != nil {
		t.Errorf("fractional offset timestamp: %v", err)
	}
	if _, err := Convert("2024-02-14T10:30:00Z", TypeDateTime, nil); err != nil {
		t.Errorf("zulu timestamp: %v", err)
	}

	// Offset-less timestamps are rejected.
	if _, err := Convert("2024-02-14T10:30:00", TypeDateTime, nil); err == nil {
		t.Error("expected error for timestamp without offset")
	}
}

func TestConvertSentinels(t *testing.T) {
	types := []DataType{TypeNumeric, TypeString, TypeBoolean, TypeInteger, TypeDateTime}
	for _, dt := range types {
		for _, raw := range []string{SentinelUnknown, SentinelUnavailable, ""} {
			v, err := Convert(raw, dt, nil)
			if err != nil {
				t.Errorf("Convert(%q, %v): %v", raw, dt, err)
			}
			if !v.IsNull() {
				t.Errorf("Convert(%q, %v) should be null", raw, dt)
			}
			if v.Type() != dt {
				t.Errorf("Convert(%q, %v).Type() = %v", raw, dt, v.Type())
			}
		}
	}
}

func TestValueRoundTrip(t *testing.T) {
	// Converting a value's canonical string form again yields an equal value.
	cases := []struct {
		raw string
		dt  DataType
	}{
		{"on", TypeBoolean},
		{"off", TypeBoolean},
		{"23.5", TypeNumeric},
		{"42", TypeInteger},
		{"heat", TypeString},
	}
	for _, tt := range cases {
		v1, err := Convert(tt.raw, tt.dt, nil)
		if err != nil {
			t.Fatalf("Convert(%q): %v", tt.raw, err)
		}
		v2, err := Convert(v1.String(), tt.dt, nil)
		if err != nil {
			t.Fatalf("Convert(%q round trip): %v", v1.String(), err)
		}
		if v1 != v2 {
			t.Errorf("round trip %q: %v != %v", tt.raw, v1, v2)
		}
	}
}

func TestTimestamp(t *testing.T) {
	got, err := Timestamp("", nil)
	if err != nil || !got.IsZero() {
		t.Errorf("Timestamp(\"\") = %v, %v; want zero, nil", got, err)
	}

	got, err = Timestamp("2024-02-14T10:30:00Z", nil)
	if err != nil {
		t.Fatalf("Timestamp: %v", err)
	}
	if got.IsZero() {
		t.Error("expected non-zero time")
	}

	if _, err := Timestamp("not a time", nil); err == nil {
		t.Error("expected error for malformed timestamp")
	}
}
