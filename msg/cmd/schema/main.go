// Command schema exports the bridge message catalog as a JSON Schema
// document, so non-Go peers can validate topic payloads.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/invopop/jsonschema"

	"github.com/ricmua/ros-spheres-environment/msg"
)

func main() {
	outPath := flag.String("out", "", "destination file; omit to print the schema on stdout")
	flag.Parse()

	if err := run(*outPath); err != nil {
		fmt.Fprintf(os.Stderr, "schema: %v\n", err)
		os.Exit(1)
	}
}

func run(outPath string) error {
	reflector := jsonschema.Reflector{}
	schema := reflector.Reflect(new(msg.CatalogDocument))
	schema.Title = "Spheres Environment Message Catalog"
	schema.Description = "Wire schemas carried on bridge topics: lifecycle notifications and per-property payloads."

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("render catalog: %w", err)
	}
	data = append(data, '\n')

	if outPath == "" {
		_, err := os.Stdout.Write(data)
		return err
	}
	return replaceFile(outPath, data)
}

// replaceFile writes through a temp file in the destination directory so a
// concurrent reader never observes a partial document.
func replaceFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("prepare %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".schema-*")
	if err != nil {
		return fmt.Errorf("stage %s: %w", path, err)
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return fmt.Errorf("stage %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return fmt.Errorf("stage %s: %w", path, err)
	}

	if err := os.Rename(name, path); err != nil {
		os.Remove(name)
		return fmt.Errorf("publish %s: %w", path, err)
	}
	return nil
}
