package msg

import (
	"errors"
	"testing"
)

func TestRoundTripPreservesFieldValues(t *testing.T) {
	cases := []struct {
		name    string
		message Message
	}{
		{"string", String{Data: "cursor"}},
		{"float64", Float64{Data: 0.1}},
		{"float32", Float32{Data: 0.25}},
		{"point", Point{X: 0.1, Y: -0.5, Z: 1.0}},
		{"color_rgba", ColorRGBA{R: 0.25, G: 0.5, B: 0.75, A: 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			payload, err := tc.message.Encode()
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			decoded, err := tc.message.Schema().Decode(payload)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if decoded != tc.message {
				t.Fatalf("round trip changed the message: %+v != %+v", decoded, tc.message)
			}
		})
	}
}

func TestValueTreatsSingleFieldAsScalar(t *testing.T) {
	if got := Value(Float64{Data: 0.1}); got != 0.1 {
		t.Fatalf("expected raw scalar 0.1, got %v", got)
	}
	if got := Value(String{Data: "cursor"}); got != "cursor" {
		t.Fatalf("expected raw scalar %q, got %v", "cursor", got)
	}
}

func TestValueTreatsMultiFieldAsComposite(t *testing.T) {
	got := Value(Point{X: 1, Y: 2, Z: 3})
	fields, ok := got.(map[string]any)
	if !ok {
		t.Fatalf("expected a field map, got %T", got)
	}
	want := map[string]any{"x": 1.0, "y": 2.0, "z": 3.0}
	if len(fields) != len(want) {
		t.Fatalf("expected %d fields, got %d", len(want), len(fields))
	}
	for name, value := range want {
		if fields[name] != value {
			t.Fatalf("field %q: expected %v, got %v", name, value, fields[name])
		}
	}
}

// singleFieldComposite stands in for a composite schema that declares
// exactly one field. Value cannot distinguish it from a scalar; the field's
// raw value comes back bare. The misclassification is part of the wire
// contract and this test pins it.
type singleFieldComposite struct {
	Intensity float64 `json:"intensity"`
}

func (singleFieldComposite) Schema() Schema { return nil }
func (m singleFieldComposite) Fields() []Field {
	return []Field{{Name: "intensity", Value: m.Intensity}}
}
func (m singleFieldComposite) Encode() ([]byte, error) { return nil, nil }

func TestValueMisclassifiesSingleFieldComposite(t *testing.T) {
	got := Value(singleFieldComposite{Intensity: 0.5})
	if got != 0.5 {
		t.Fatalf("expected the bare field value, got %v (%T)", got, got)
	}
}

func TestFromValueScalars(t *testing.T) {
	m, err := Float64Schema.FromValue(0.1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.(Float64).Data != 0.1 {
		t.Fatalf("unexpected message %+v", m)
	}

	m, err = StringSchema.FromValue("cursor")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.(String).Data != "cursor" {
		t.Fatalf("unexpected message %+v", m)
	}

	if _, err := StringSchema.FromValue(1.0); !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("expected ErrInvalidValue, got %v", err)
	}
}

func TestFromValueSpreadsCompositeFields(t *testing.T) {
	m, err := PointSchema.FromValue(map[string]any{"x": 0.1, "y": -0.5, "z": 1.0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.(Point) != (Point{X: 0.1, Y: -0.5, Z: 1.0}) {
		t.Fatalf("unexpected message %+v", m)
	}

	m, err = ColorRGBASchema.FromValue(map[string]any{"r": float32(0.25), "g": float32(0.5), "b": float32(0.75), "a": float32(1)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.(ColorRGBA) != (ColorRGBA{R: 0.25, G: 0.5, B: 0.75, A: 1}) {
		t.Fatalf("unexpected message %+v", m)
	}
}

func TestFromValueRejectsFieldMismatches(t *testing.T) {
	cases := []struct {
		name   string
		schema Schema
		value  any
	}{
		{"extra field", PointSchema, map[string]any{"x": 1.0, "y": 2.0, "z": 3.0, "w": 4.0}},
		{"wrong name", PointSchema, map[string]any{"x": 1.0, "y": 2.0, "q": 3.0}},
		{"missing field", ColorRGBASchema, map[string]any{"r": 1.0, "g": 1.0, "b": 1.0}},
		{"non-numeric field", PointSchema, map[string]any{"x": "far", "y": 2.0, "z": 3.0}},
		{"scalar value", PointSchema, 1.0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := tc.schema.FromValue(tc.value); !errors.Is(err, ErrInvalidValue) {
				t.Fatalf("expected ErrInvalidValue, got %v", err)
			}
		})
	}
}

func TestSchemaByName(t *testing.T) {
	for _, name := range []string{"string", "float32", "float64", "point", "color_rgba"} {
		schema, ok := SchemaByName(name)
		if !ok {
			t.Fatalf("expected schema %q to be registered", name)
		}
		if schema.Name() != name {
			t.Fatalf("expected name %q, got %q", name, schema.Name())
		}
	}
	if _, ok := SchemaByName("quaternion"); ok {
		t.Fatalf("expected unknown schema to be absent")
	}
}
