// Package msg defines the wire schemas carried on bridge topics and the
// policy for mapping message payloads to object property values. Messages
// are encoded as JSON, one message type per topic.
package msg

import "errors"

// ErrInvalidValue is returned when a value cannot be encoded into a schema.
var ErrInvalidValue = errors.New("msg: invalid value")

// Field is one named value of a message, in wire declaration order.
type Field struct {
	Name  string
	Value any
}

// Message is a single typed payload carried on a topic.
type Message interface {
	Schema() Schema
	Fields() []Field
	Encode() ([]byte, error)
}

// Schema identifies a message type, decodes its wire form, and builds
// messages from bare property values.
type Schema interface {
	Name() string
	New() Message
	Decode(data []byte) (Message, error)
	FromValue(v any) (Message, error)
}

// Value extracts the property value carried by a message. A message with
// exactly one field is treated as a scalar and the field's raw value is
// returned; anything else is treated as a composite and returned as a map
// from field name to value.
//
// A composite schema that happens to declare a single field is
// indistinguishable from a scalar under this rule and will be handed to the
// target property as a bare value. That ambiguity is inherited from the
// wire contract and is intentionally not papered over here.
func Value(m Message) any {
	fields := m.Fields()
	if len(fields) == 1 {
		return fields[0].Value
	}
	composite := make(map[string]any, len(fields))
	for _, f := range fields {
		composite[f.Name] = f.Value
	}
	return composite
}
