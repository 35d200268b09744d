package gramedia

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// The catalog API is loose about primitive encodings: prices arrive as
// numbers or numeric strings, flags as booleans, 0/1 or "true", and absent
// values as null. The types below decode any of these into one canonical Go
// type so that records are typed at the fetch boundary. Null and missing
// fields leave the zero value.

var null = []byte("null")

// Int is an int64 that also accepts numeric strings, floats and booleans.
type Int int64

func (i *Int) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, null) {
		return nil
	}
	switch b[0] {
	case 't', 'f':
		var v bool
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*i = boolToInt(v)
		return nil
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
		n, err := parseInt(s)
		if err != nil {
			return fmt.Errorf("gramedia: cannot decode %q as integer", s)
		}
		*i = Int(n)
		return nil
	default:
		n, err := parseInt(string(b))
		if err != nil {
			return fmt.Errorf("gramedia: cannot decode %s as integer", b)
		}
		*i = Int(n)
		return nil
	}
}

func parseInt(s string) (int64, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	return int64(f), nil
}

func boolToInt(v bool) Int {
	if v {
		return 1
	}
	return 0
}

// Bool accepts JSON booleans, 0/1 numbers and "true"/"false"/"1"/"0" strings.
type Bool bool

func (v *Bool) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, null) {
		return nil
	}
	s := string(b)
	if b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "y":
		*v = true
	case "false", "0", "no", "n", "":
		*v = false
	default:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("gramedia: cannot decode %s as boolean", b)
		}
		*v = f != 0
	}
	return nil
}

// String accepts any JSON scalar and keeps its textual form. Objects and
// arrays are kept as compact JSON text.
type String string

func (v *String) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, null) {
		return nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = String(s)
	case '{', '[':
		var buf bytes.Buffer
		if err := json.Compact(&buf, b); err != nil {
			return err
		}
		*v = String(buf.String())
	default:
		*v = String(b)
	}
	return nil
}

// Float is a nullable float64. Valid is false when the origin sent null,
// an empty string or nothing at all.
type Float struct {
	Value float64
	Valid bool
}

func (v *Float) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, null) {
		*v = Float{}
		return nil
	}
	s := string(b)
	if b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*v = Float{}
			return nil
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("gramedia: cannot decode %s as float", b)
	}
	*v = Float{Value: f, Valid: true}
	return nil
}

// Ptr returns a pointer to the value, or nil when it is not valid.
func (v Float) Ptr() *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Value
	return &f
}
