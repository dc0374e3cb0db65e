package msg

import (
	"encoding/json"
	"fmt"
)

// String carries a single string field. Used for the object spawn and
// destroy notifications, whose payload is the object key.
type String struct {
	Data string `json:"data"`
}

func (String) Schema() Schema { return StringSchema }

func (m String) Fields() []Field {
	return []Field{{Name: "data", Value: m.Data}}
}

func (m String) Encode() ([]byte, error) { return json.Marshal(m) }

// Float64 carries a single double-precision field. Default schema for the
// radius property.
type Float64 struct {
	Data float64 `json:"data"`
}

func (Float64) Schema() Schema { return Float64Schema }

func (m Float64) Fields() []Field {
	return []Field{{Name: "data", Value: m.Data}}
}

func (m Float64) Encode() ([]byte, error) { return json.Marshal(m) }

// Float32 carries a single single-precision field. It is the fallback
// schema for topics with no declared message type.
type Float32 struct {
	Data float32 `json:"data"`
}

func (Float32) Schema() Schema { return Float32Schema }

func (m Float32) Fields() []Field {
	return []Field{{Name: "data", Value: m.Data}}
}

func (m Float32) Encode() ([]byte, error) { return json.Marshal(m) }

// Point carries a position in 3-D space. Default schema for the position
// property; field names match the property's sub-attributes.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (Point) Schema() Schema { return PointSchema }

func (m Point) Fields() []Field {
	return []Field{
		{Name: "x", Value: m.X},
		{Name: "y", Value: m.Y},
		{Name: "z", Value: m.Z},
	}
}

func (m Point) Encode() ([]byte, error) { return json.Marshal(m) }

// ColorRGBA carries an RGBA color with single-precision channels. Default
// schema for the color property.
type ColorRGBA struct {
	R float32 `json:"r"`
	G float32 `json:"g"`
	B float32 `json:"b"`
	A float32 `json:"a"`
}

func (ColorRGBA) Schema() Schema { return ColorRGBASchema }

func (m ColorRGBA) Fields() []Field {
	return []Field{
		{Name: "r", Value: m.R},
		{Name: "g", Value: m.G},
		{Name: "b", Value: m.B},
		{Name: "a", Value: m.A},
	}
}

func (m ColorRGBA) Encode() ([]byte, error) { return json.Marshal(m) }

// Singleton schemas for every message type in the catalog.
var (
	StringSchema    Schema = stringSchema{}
	Float64Schema   Schema = float64Schema{}
	Float32Schema   Schema = float32Schema{}
	PointSchema     Schema = pointSchema{}
	ColorRGBASchema Schema = colorSchema{}
)

type stringSchema struct{}

func (stringSchema) Name() string { return "string" }
func (stringSchema) New() Message { return String{} }

func (stringSchema) Decode(data []byte) (Message, error) {
	var m String
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode string: %w", err)
	}
	return m, nil
}

func (stringSchema) FromValue(v any) (Message, error) {
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not a string", ErrInvalidValue, v)
	}
	return String{Data: s}, nil
}

type float64Schema struct{}

func (float64Schema) Name() string { return "float64" }
func (float64Schema) New() Message { return Float64{} }

func (float64Schema) Decode(data []byte) (Message, error) {
	var m Float64
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode float64: %w", err)
	}
	return m, nil
}

func (float64Schema) FromValue(v any) (Message, error) {
	f, err := floatValue(v)
	if err != nil {
		return nil, fmt.Errorf("float64: %w", err)
	}
	return Float64{Data: f}, nil
}

type float32Schema struct{}

func (float32Schema) Name() string { return "float32" }
func (float32Schema) New() Message { return Float32{} }

func (float32Schema) Decode(data []byte) (Message, error) {
	var m Float32
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode float32: %w", err)
	}
	return m, nil
}

func (float32Schema) FromValue(v any) (Message, error) {
	f, err := floatValue(v)
	if err != nil {
		return nil, fmt.Errorf("float32: %w", err)
	}
	return Float32{Data: float32(f)}, nil
}

type pointSchema struct{}

func (pointSchema) Name() string { return "point" }
func (pointSchema) New() Message { return Point{} }

func (pointSchema) Decode(data []byte) (Message, error) {
	var m Point
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode point: %w", err)
	}
	return m, nil
}

func (pointSchema) FromValue(v any) (Message, error) {
	switch val := v.(type) {
	case Point:
		return val, nil
	case map[string]any:
		var m Point
		if err := spreadFields(val, map[string]*float64{
			"x": &m.X, "y": &m.Y, "z": &m.Z,
		}); err != nil {
			return nil, fmt.Errorf("point: %w", err)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("%w: %T is not a point", ErrInvalidValue, v)
	}
}

type colorSchema struct{}

func (colorSchema) Name() string { return "color_rgba" }
func (colorSchema) New() Message { return ColorRGBA{} }

func (colorSchema) Decode(data []byte) (Message, error) {
	var m ColorRGBA
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode color_rgba: %w", err)
	}
	return m, nil
}

func (colorSchema) FromValue(v any) (Message, error) {
	switch val := v.(type) {
	case ColorRGBA:
		return val, nil
	case map[string]any:
		var r, g, b, a float64
		if err := spreadFields(val, map[string]*float64{
			"r": &r, "g": &g, "b": &b, "a": &a,
		}); err != nil {
			return nil, fmt.Errorf("color_rgba: %w", err)
		}
		return ColorRGBA{R: float32(r), G: float32(g), B: float32(b), A: float32(a)}, nil
	default:
		return nil, fmt.Errorf("%w: %T is not a color", ErrInvalidValue, v)
	}
}

// spreadFields assigns a composite value's named sub-attributes into the
// matching message fields. Every declared field must be present and no
// extra fields are allowed.
func spreadFields(value map[string]any, fields map[string]*float64) error {
	if len(value) != len(fields) {
		return fmt.Errorf("%w: got %d fields, want %d", ErrInvalidValue, len(value), len(fields))
	}
	for name, raw := range value {
		dst, ok := fields[name]
		if !ok {
			return fmt.Errorf("%w: unexpected field %q", ErrInvalidValue, name)
		}
		f, err := floatValue(raw)
		if err != nil {
			return fmt.Errorf("field %q: %w", name, err)
		}
		*dst = f
	}
	return nil
}

func floatValue(v any) (float64, error) {
	switch f := v.(type) {
	case float64:
		return f, nil
	case float32:
		return float64(f), nil
	case int:
		return float64(f), nil
	default:
		return 0, fmt.Errorf("%w: %T is not a number", ErrInvalidValue, v)
	}
}
