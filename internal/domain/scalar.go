package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var errScalarType = errors.New("domain: scalar must be a number, string or null")

// Scalar is an opaque number-or-string value as it appears in catalog payloads.
// It keeps whether it was decoded from a JSON number or string, so numeric 1
// and the string "1" are distinct values. Numbers are held in canonical form.
// The zero value encodes as null.
type Scalar struct {
	text    string
	numeric bool
}

// Number returns a numeric scalar.
func Number(v int64) Scalar {
	return Scalar{text: strconv.FormatInt(v, 10), numeric: true}
}

// Text returns a string scalar. An empty string yields the zero scalar.
func Text(v string) Scalar {
	if v == "" {
		return Scalar{}
	}
	return Scalar{text: v}
}

// ParseScalar interprets command-line style input: values that look like
// integers become numeric scalars, anything else stays a string.
func ParseScalar(v string) Scalar {
	v = strings.TrimSpace(v)
	if v == "" {
		return Scalar{}
	}
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return Number(n)
	}
	return Text(v)
}

// IsZero reports whether the scalar is absent or falsy: null, the empty string, or numeric zero.
func (s Scalar) IsZero() bool {
	if s.text == "" {
		return true
	}
	if !s.numeric {
		return false
	}
	f, err := strconv.ParseFloat(s.text, 64)
	return err == nil && f == 0
}

// IsNull reports whether the scalar carries no value at all.
func (s Scalar) IsNull() bool { return s.text == "" }

// IsNumeric reports whether the scalar was decoded from (or built as) a JSON number.
func (s Scalar) IsNumeric() bool { return s.numeric }

// String returns the textual form, empty for null.
func (s Scalar) String() string { return s.text }

// Or returns s unless it is falsy, in which case fallback is returned.
func (s Scalar) Or(fallback Scalar) Scalar {
	if s.IsZero() {
		return fallback
	}
	return s
}

// Normalize collapses falsy values to null.
func (s Scalar) Normalize() Scalar {
	if s.IsZero() {
		return Scalar{}
	}
	return s
}

// Decimal parses the scalar as a decimal number, yielding zero when it is not one.
func (s Scalar) Decimal() decimal.Decimal {
	if s.text == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(strings.TrimSpace(s.text))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// MarshalJSON implements json.Marshaler.
func (s Scalar) MarshalJSON() ([]byte, error) {
	switch {
	case s.text == "":
		return []byte("null"), nil
	case s.numeric:
		return []byte(s.text), nil
	default:
		return json.Marshal(s.text)
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Scalar) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = Scalar{}
		return nil
	}
	switch data[0] {
	case '"':
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		*s = Text(text)
		return nil
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var num json.Number
		if err := json.Unmarshal(data, &num); err != nil {
			return err
		}
		*s = Scalar{text: canonicalNumber(num.String()), numeric: true}
		return nil
	}
	return errScalarType
}

// canonicalNumber gives equal numbers one textual form, so 1, 1.0 and 1e0
// are the same identifier and 10.50 becomes 10.5.
func canonicalNumber(text string) string {
	d, err := decimal.NewFromString(text)
	if err != nil {
		return text
	}
	return d.String()
}

// MarshalYAML renders the scalar as a plain YAML value.
func (s Scalar) MarshalYAML() (any, error) {
	switch {
	case s.text == "":
		return nil, nil
	case s.numeric:
		if n, err := strconv.ParseInt(s.text, 10, 64); err == nil {
			return n, nil
		}
		if f, err := strconv.ParseFloat(s.text, 64); err == nil {
			return f, nil
		}
	}
	return s.text, nil
}
