package msg

// CatalogDocument enumerates every wire schema the bridge publishes or
// consumes. It exists for schema export so non-Go peers can validate
// payloads; see cmd/schema.
type CatalogDocument struct {
	String    String    `json:"string" jsonschema:"title=String,description=Single string field; carries object keys on the initialize and destroy topics."`
	Float32   Float32   `json:"float32" jsonschema:"title=Float32,description=Single single-precision field; fallback schema for undeclared topics."`
	Float64   Float64   `json:"float64" jsonschema:"title=Float64,description=Single double-precision field; default schema for the radius property."`
	Point     Point     `json:"point" jsonschema:"title=Point,description=3-D position; default schema for the position property."`
	ColorRGBA ColorRGBA `json:"color_rgba" jsonschema:"title=ColorRGBA,description=RGBA color with single-precision channels; default schema for the color property."`
}

var schemasByName = map[string]Schema{
	StringSchema.Name():    StringSchema,
	Float64Schema.Name():   Float64Schema,
	Float32Schema.Name():   Float32Schema,
	PointSchema.Name():     PointSchema,
	ColorRGBASchema.Name(): ColorRGBASchema,
}

// SchemaByName resolves a schema from its catalog name. Used when topic
// overrides are declared in configuration files.
func SchemaByName(name string) (Schema, bool) {
	s, ok := schemasByName[name]
	return s, ok
}

// SchemaNames returns the catalog schema names. Order is unspecified.
func SchemaNames() []string {
	names := make([]string, 0, len(schemasByName))
	for name := range schemasByName {
		names = append(names, name)
	}
	return names
}
