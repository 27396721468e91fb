package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

type Field struct {
	Key   string
	Value Value
}

// Payload is an immutable, insertion-ordered mapping of field names to scalars.
// Order is kept for display only; fingerprints use sorted keys.
type Payload struct {
	keys   []string
	values map[string]Value
}

// NewPayload builds a payload from fields. A repeated key keeps its first
// position and its last value. Keys and string values are stored byte for
// byte and must be valid UTF-8.
func NewPayload(fields ...Field) (Payload, error) {
	p := Payload{
		keys:   make([]string, 0, len(fields)),
		values: make(map[string]Value, len(fields)),
	}
	for _, f := range fields {
		if !f.Value.IsValid() {
			return Payload{}, fmt.Errorf("field %q has no value", f.Key)
		}
		if !utf8.ValidString(f.Key) {
			return Payload{}, NewValidationError(ErrInvalidUTF8.Message, f.Key)
		}
		if s, ok := f.Value.Str(); ok && !utf8.ValidString(s) {
			return Payload{}, NewValidationError(ErrInvalidUTF8.Message, f.Key)
		}
		if _, exists := p.values[f.Key]; !exists {
			p.keys = append(p.keys, f.Key)
		}
		p.values[f.Key] = f.Value
	}
	return p, nil
}

// PayloadFromMap converts a map of Go scalars; keys are ordered by UTF-8 bytes
// since a map carries no order of its own.
func PayloadFromMap(m map[string]any) (Payload, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	fields := make([]Field, 0, len(keys))
	for _, k := range keys {
		v, err := ValueOf(m[k])
		if err != nil {
			return Payload{}, fmt.Errorf("field %q: %w", k, err)
		}
		fields = append(fields, Field{Key: k, Value: v})
	}
	return NewPayload(fields...)
}

// normalized returns p with keys and string values in NFC form. Two keys
// that only differ in normalization are rejected.
func (p Payload) normalized() (Payload, error) {
	out := Payload{
		keys:   make([]string, 0, len(p.keys)),
		values: make(map[string]Value, len(p.values)),
	}
	for _, k := range p.keys {
		nk := norm.NFC.String(k)
		if _, exists := out.values[nk]; exists {
			return Payload{}, NewValidationError("field names must be distinct after NFC normalization", k)
		}
		out.keys = append(out.keys, nk)
		out.values[nk] = p.values[k].normalized()
	}
	return out, nil
}

func (p Payload) Len() int {
	return len(p.keys)
}

func (p Payload) IsEmpty() bool {
	return len(p.keys) == 0
}

func (p Payload) Get(key string) (Value, bool) {
	v, ok := p.values[key]
	return v, ok
}

func (p Payload) Keys() []string {
	return slices.Clone(p.keys)
}

func (p Payload) Fields() []Field {
	fields := make([]Field, len(p.keys))
	for i, k := range p.keys {
		fields[i] = Field{Key: k, Value: p.values[k]}
	}
	return fields
}

// Clone returns a payload that shares no storage with p.
func (p Payload) Clone() Payload {
	values := make(map[string]Value, len(p.values))
	for k, v := range p.values {
		values[k] = v
	}
	return Payload{keys: slices.Clone(p.keys), values: values}
}

// CanonicalValue implements hash.Canonicaler.
func (p Payload) CanonicalValue() any {
	out := make(map[string]any, len(p.values))
	for k, v := range p.values {
		out[k] = v
	}
	return out
}

func (p Payload) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range p.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := p.values[k].MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an object and keeps its key order.
func (p *Payload) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("payload must be a JSON object")
	}

	var fields []Field
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected token %v", tok)
		}

		var raw any
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("field %q: %w", key, err)
		}
		v, err := valueFromJSON(raw)
		if err != nil {
			return fmt.Errorf("field %q: %w", key, err)
		}
		fields = append(fields, Field{Key: key, Value: v})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	parsed, err := NewPayload(fields...)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
