package ledger

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestPayloadKeepsInsertionOrder(t *testing.T) {
	p, err := NewPayload(
		Field{Key: "Owner Name", Value: String("Alice")},
		Field{Key: "Land ID", Value: String("A1")},
		Field{Key: "Area (acres)", Value: Number(decimal.RequireFromString("12.50"))},
	)
	if err != nil {
		t.Fatal(err)
	}

	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	want := `{"Owner Name":"Alice","Land ID":"A1","Area (acres)":12.5}`
	if string(data) != want {
		t.Errorf("Marshal() = %s, want %s", data, want)
	}

	var decoded Payload
	if err := json.Unmarshal([]byte(`{"b":"x","a":3,"c":0.1}`), &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if got := strings.Join(decoded.Keys(), ","); got != "b,a,c" {
		t.Errorf("Expected key order b,a,c, got %s", got)
	}
	if v, _ := decoded.Get("a"); v.Kind() != KindNumber || !v.Equal(Int(3)) {
		t.Errorf("Expected numeric 3, got %v", v)
	}
}

func TestPayloadRepeatedKey(t *testing.T) {
	p, err := NewPayload(
		Field{Key: "a", Value: String("1")},
		Field{Key: "b", Value: String("2")},
		Field{Key: "a", Value: String("3")},
	)
	if err != nil {
		t.Fatal(err)
	}
	if p.Len() != 2 {
		t.Fatalf("Expected 2 fields, got %d", p.Len())
	}
	if p.Keys()[0] != "a" {
		t.Error("Repeated key should keep its first position")
	}
	if v, _ := p.Get("a"); v.String() != "3" {
		t.Errorf("Repeated key should keep its last value, got %s", v)
	}
}

func TestPayloadRejects(t *testing.T) {
	if _, err := NewPayload(Field{Key: "a"}); err == nil {
		t.Error("Expected error for a field without value")
	}

	var p Payload
	for _, input := range []string{`[]`, `{"a":null}`, `{"a":true}`, `{"a":{"b":1}}`} {
		if err := json.Unmarshal([]byte(input), &p); err == nil {
			t.Errorf("Expected error decoding %s", input)
		}
	}
}

func TestPayloadFromMap(t *testing.T) {
	p, err := PayloadFromMap(map[string]any{
		"Owner": "Alice",
		"Area":  2.5,
		"Plots": 3,
	})
	if err != nil {
		t.Fatalf("PayloadFromMap failed: %v", err)
	}
	if got := strings.Join(p.Keys(), ","); got != "Area,Owner,Plots" {
		t.Errorf("Expected sorted keys, got %s", got)
	}

	if _, err := PayloadFromMap(map[string]any{"bad": []string{"x"}}); err == nil {
		t.Error("Expected error for non-scalar value")
	}
}

func TestValueEquality(t *testing.T) {
	if !Float(2.5).Equal(Number(decimal.RequireFromString("2.50"))) {
		t.Error("Equal decimals should be equal")
	}
	if String("2").Equal(Int(2)) {
		t.Error("String and number should never be equal")
	}

	var v Value
	if err := json.Unmarshal([]byte(`"A1"`), &v); err != nil {
		t.Fatal(err)
	}
	if s, ok := v.Str(); !ok || s != "A1" {
		t.Errorf("Expected string A1, got %v", v)
	}
	if _, err := json.Marshal(Value{}); err == nil {
		t.Error("Expected error marshaling an invalid value")
	}
}
