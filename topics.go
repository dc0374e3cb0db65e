package spheresenv

import (
	"github.com/ricmua/ros-spheres-environment/bus"
	"github.com/ricmua/ros-spheres-environment/env"
	"github.com/ricmua/ros-spheres-environment/msg"
)

// Environment lifecycle topics. Object keys travel as string messages.
const (
	// TopicInitialize carries spawn requests for new environment objects.
	TopicInitialize = "initialize"
	// TopicDestroy carries removal requests for existing objects.
	TopicDestroy = "destroy"
)

// PropertyTopic derives the topic carrying one property of one object.
// Topic names are case-sensitive and slash-delimited, with the object key
// as the first segment.
func PropertyTopic(objectKey string, property env.Property) string {
	return objectKey + "/" + string(property)
}

// TopicParams overrides the message schema and QoS profile used on one
// topic. A nil field keeps the default.
type TopicParams struct {
	Schema msg.Schema
	QoS    *bus.QoS
}

// TopicOverrides maps topic names to overriding parameters. Topics absent
// from the map use the per-property default schema (or the float32 fallback
// for undeclared properties) with the system-default QoS profile.
type TopicOverrides map[string]TopicParams

func (o TopicOverrides) paramsFor(topic string, fallback msg.Schema) (msg.Schema, bus.QoS) {
	schema := fallback
	qos := bus.SystemDefault()
	if params, ok := o[topic]; ok {
		if params.Schema != nil {
			schema = params.Schema
		}
		if params.QoS != nil {
			qos = *params.QoS
		}
	}
	return schema, qos
}

var defaultPropertySchemas = map[env.Property]msg.Schema{
	env.PropertyPosition: msg.PointSchema,
	env.PropertyRadius:   msg.Float64Schema,
	env.PropertyColor:    msg.ColorRGBASchema,
}

// schemaForProperty resolves the default wire schema for a property.
// Properties outside the catalog fall back to the float32 schema.
func schemaForProperty(p env.Property) msg.Schema {
	if schema, ok := defaultPropertySchemas[p]; ok {
		return schema
	}
	return msg.Float32Schema
}

// propertyValue lowers a typed environment value into the bare form the
// message schemas encode: composites become field maps, scalars pass
// through.
func propertyValue(value any) any {
	switch v := value.(type) {
	case env.Vector:
		return map[string]any{"x": v.X, "y": v.Y, "z": v.Z}
	case env.Color:
		return map[string]any{"r": v.R, "g": v.G, "b": v.B, "a": v.A}
	default:
		return value
	}
}
