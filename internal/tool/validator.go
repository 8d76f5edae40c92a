package tool

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// defaultSchema is used when a tool declares no input schema.
const defaultSchema = `{"type":"object"}`

func compileSchema(raw []byte) (*gojsonschema.Schema, error) {
	if len(raw) == 0 {
		raw = []byte(defaultSchema)
	}
	return gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
}

// validateArgs checks args against a compiled input schema.
func validateArgs(schema *gojsonschema.Schema, args map[string]any) error {
	if args == nil {
		args = map[string]any{}
	}
	result, err := schema.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return fmt.Errorf("validate arguments: %w", err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, len(result.Errors()))
	for i, desc := range result.Errors() {
		msgs[i] = desc.String()
	}
	return fmt.Errorf("invalid arguments: %s", strings.Join(msgs, "; "))
}
