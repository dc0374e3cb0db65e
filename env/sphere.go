package env

import "fmt"

// Property identifies one mutable attribute of an environment object.
// The set of valid properties is closed per object type; writes against
// undeclared keys fail with ErrInvalidProperty.
type Property string

const (
	PropertyColor    Property = "color"
	PropertyPosition Property = "position"
	PropertyRadius   Property = "radius"
)

// SphereProperties lists the properties declared by the sphere object type,
// in the order Properties enumerates them.
var SphereProperties = []Property{PropertyColor, PropertyPosition, PropertyRadius}

// Vector is a position in 3-D space.
type Vector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Color is an RGBA color with single-precision channels.
type Color struct {
	R float32 `json:"r"`
	G float32 `json:"g"`
	B float32 `json:"b"`
	A float32 `json:"a"`
}

// Object is one named entity in the environment. Implementations own their
// property storage; they are not safe for concurrent mutation.
type Object interface {
	Key() string
	Properties() []Property
	Set(p Property, value any) error
	Get(p Property) (any, bool)
}

// Sphere is a spherical object with a position, radius, and color.
type Sphere struct {
	key      string
	position *Vector
	radius   *float64
	color    *Color
}

// NewSphere returns a sphere with no properties set.
func NewSphere(key string) *Sphere {
	return &Sphere{key: key}
}

func (s *Sphere) Key() string { return s.key }

func (s *Sphere) Properties() []Property {
	return append([]Property(nil), SphereProperties...)
}

// Set assigns a property value. Scalar properties accept a bare number;
// composite properties accept either their typed value or a field map whose
// keys match the property's sub-attribute names (x/y/z for position,
// r/g/b/a for color).
func (s *Sphere) Set(p Property, value any) error {
	switch p {
	case PropertyPosition:
		v, err := vectorValue(value)
		if err != nil {
			return fmt.Errorf("set position: %w", err)
		}
		s.position = &v
	case PropertyRadius:
		r, err := scalarValue(value)
		if err != nil {
			return fmt.Errorf("set radius: %w", err)
		}
		s.radius = &r
	case PropertyColor:
		c, err := colorValue(value)
		if err != nil {
			return fmt.Errorf("set color: %w", err)
		}
		s.color = &c
	default:
		return fmt.Errorf("%w: %q", ErrInvalidProperty, p)
	}
	return nil
}

// Get returns the current value of a property and whether it has been set.
func (s *Sphere) Get(p Property) (any, bool) {
	switch p {
	case PropertyPosition:
		if s.position != nil {
			return *s.position, true
		}
	case PropertyRadius:
		if s.radius != nil {
			return *s.radius, true
		}
	case PropertyColor:
		if s.color != nil {
			return *s.color, true
		}
	}
	return nil, false
}

// State returns the set properties of the sphere keyed by property name.
func (s *Sphere) State() map[Property]any {
	state := make(map[Property]any)
	for _, p := range s.Properties() {
		if v, ok := s.Get(p); ok {
			state[p] = v
		}
	}
	return state
}

func vectorValue(value any) (Vector, error) {
	switch v := value.(type) {
	case Vector:
		return v, nil
	case *Vector:
		if v == nil {
			return Vector{}, fmt.Errorf("%w: nil vector", ErrInvalidValue)
		}
		return *v, nil
	case map[string]any:
		return vectorFromFields(v)
	default:
		return Vector{}, fmt.Errorf("%w: %T is not a vector", ErrInvalidValue, value)
	}
}

func vectorFromFields(fields map[string]any) (Vector, error) {
	if len(fields) != 3 {
		return Vector{}, fmt.Errorf("%w: vector wants fields x, y, z", ErrInvalidValue)
	}
	var v Vector
	for name, raw := range fields {
		f, err := floatField(name, raw)
		if err != nil {
			return Vector{}, err
		}
		switch name {
		case "x":
			v.X = f
		case "y":
			v.Y = f
		case "z":
			v.Z = f
		default:
			return Vector{}, fmt.Errorf("%w: unexpected vector field %q", ErrInvalidValue, name)
		}
	}
	return v, nil
}

func colorValue(value any) (Color, error) {
	switch v := value.(type) {
	case Color:
		return v, nil
	case *Color:
		if v == nil {
			return Color{}, fmt.Errorf("%w: nil color", ErrInvalidValue)
		}
		return *v, nil
	case map[string]any:
		return colorFromFields(v)
	default:
		return Color{}, fmt.Errorf("%w: %T is not a color", ErrInvalidValue, value)
	}
}

func colorFromFields(fields map[string]any) (Color, error) {
	if len(fields) != 4 {
		return Color{}, fmt.Errorf("%w: color wants fields r, g, b, a", ErrInvalidValue)
	}
	var c Color
	for name, raw := range fields {
		f, err := floatField(name, raw)
		if err != nil {
			return Color{}, err
		}
		switch name {
		case "r":
			c.R = float32(f)
		case "g":
			c.G = float32(f)
		case "b":
			c.B = float32(f)
		case "a":
			c.A = float32(f)
		default:
			return Color{}, fmt.Errorf("%w: unexpected color field %q", ErrInvalidValue, name)
		}
	}
	return c, nil
}

func scalarValue(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("%w: %T is not a scalar", ErrInvalidValue, value)
	}
}

func floatField(name string, raw any) (float64, error) {
	switch f := raw.(type) {
	case float64:
		return f, nil
	case float32:
		return float64(f), nil
	case int:
		return float64(f), nil
	default:
		return 0, fmt.Errorf("%w: field %q is %T, want a number", ErrInvalidValue, name, raw)
	}
}
