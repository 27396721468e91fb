package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"
)

type ValueKind uint8

const (
	KindString ValueKind = iota + 1
	KindNumber
)

func (k ValueKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	default:
		return "invalid"
	}
}

// Value is a payload scalar: a string or a decimal number.
// The zero Value is invalid and never stored in a payload.
type Value struct {
	kind ValueKind
	str  string
	num  decimal.Decimal
}

func String(s string) Value {
	return Value{kind: KindString, str: s}
}

func Number(d decimal.Decimal) Value {
	return Value{kind: KindNumber, num: d}
}

func Int(n int64) Value {
	return Number(decimal.NewFromInt(n))
}

func Float(f float64) Value {
	return Number(decimal.NewFromFloat(f))
}

func (v Value) Kind() ValueKind {
	return v.kind
}

func (v Value) IsValid() bool {
	return v.kind == KindString || v.kind == KindNumber
}

// Str returns the string value and whether v holds a string.
func (v Value) Str() (string, bool) {
	return v.str, v.kind == KindString
}

// Decimal returns the numeric value and whether v holds a number.
func (v Value) Decimal() (decimal.Decimal, bool) {
	return v.num, v.kind == KindNumber
}

// Equal reports whether both values canonicalize identically.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == other.str
	case KindNumber:
		return v.num.Equal(other.num)
	default:
		return true
	}
}

// normalized returns v with a string value in NFC form.
func (v Value) normalized() Value {
	if v.kind != KindString {
		return v
	}
	return String(norm.NFC.String(v.str))
}

// CanonicalValue implements hash.Canonicaler.
func (v Value) CanonicalValue() any {
	if v.kind == KindNumber {
		return v.num
	}
	return v.str
}

// key is the form used by secondary indexes.
func (v Value) key() string {
	if v.kind == KindNumber {
		return "n:" + v.num.String()
	}
	return "s:" + v.str
}

func (v Value) String() string {
	if v.kind == KindNumber {
		return v.num.String()
	}
	return v.str
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		return []byte(v.num.String()), nil
	default:
		return nil, fmt.Errorf("cannot marshal invalid value")
	}
}

func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}

	parsed, err := valueFromJSON(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func valueFromJSON(raw any) (Value, error) {
	switch val := raw.(type) {
	case string:
		return stringValue(val)
	case json.Number:
		d, err := decimal.NewFromString(val.String())
		if err != nil {
			return Value{}, fmt.Errorf("invalid number %q: %w", val, err)
		}
		return Number(d), nil
	default:
		return Value{}, fmt.Errorf("payload values must be strings or numbers, got %T", raw)
	}
}

// ValueOf converts a Go scalar into a Value.
func ValueOf(x any) (Value, error) {
	switch val := x.(type) {
	case Value:
		if !val.IsValid() {
			return Value{}, fmt.Errorf("invalid value")
		}
		return val, nil
	case string:
		return stringValue(val)
	case int:
		return Int(int64(val)), nil
	case int64:
		return Int(val), nil
	case float64:
		return Float(val), nil
	case decimal.Decimal:
		return Number(val), nil
	case json.Number:
		return valueFromJSON(val)
	default:
		return Value{}, fmt.Errorf("payload values must be strings or numbers, got %T", x)
	}
}

func stringValue(s string) (Value, error) {
	if !utf8.ValidString(s) {
		return Value{}, ErrInvalidUTF8
	}
	return String(s), nil
}
