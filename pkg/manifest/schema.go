package manifest

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ExtensionSchemaError wraps a failed inline-payload validation so callers
// can tell a malformed manifest extension apart from a decode failure.
type ExtensionSchemaError struct {
	ExtensionID string
	Err         error
}

func (e *ExtensionSchemaError) Error() string {
	return fmt.Sprintf("manifest: extension %q inline payload failed schema validation: %v", e.ExtensionID, e.Err)
}

func (e *ExtensionSchemaError) Unwrap() error { return e.Err }

// validateInlineSchema compiles schema as a standalone JSON Schema
// resource and validates value against it, mirroring the same
// compile-then-validate shape used for config envelopes.
func validateInlineSchema(extensionID string, schema []byte, value interface{}) error {
	if len(schema) == 0 {
		return nil
	}
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	resourceURL := "https://packoperator.local/manifest/" + extensionID + ".schema.json"
	if err := c.AddResource(resourceURL, strings.NewReader(string(schema))); err != nil {
		return &ExtensionSchemaError{ExtensionID: extensionID, Err: fmt.Errorf("load schema: %w", err)}
	}
	compiled, err := c.Compile(resourceURL)
	if err != nil {
		return &ExtensionSchemaError{ExtensionID: extensionID, Err: fmt.Errorf("compile schema: %w", err)}
	}
	if err := compiled.Validate(value); err != nil {
		return &ExtensionSchemaError{ExtensionID: extensionID, Err: err}
	}
	return nil
}

// ValidateExtensionInline validates ext's inline payload against an
// optional JSON Schema a pack author embedded under the well-known
// "inline_schema" key, before any symbol-table decode fallback runs on
// it. An extension carrying no such key is left unvalidated: the schema
// is an author-opt-in guard, not a required manifest field.
func ValidateExtensionInline(ext Extension) error {
	rawSchema, ok := ext.Inline["inline_schema"]
	if !ok {
		return nil
	}
	schemaJSON, err := json.Marshal(rawSchema)
	if err != nil {
		return &ExtensionSchemaError{ExtensionID: ext.ID, Err: fmt.Errorf("marshal embedded schema: %w", err)}
	}
	return validateInlineSchema(ext.ID, schemaJSON, ext.Inline)
}
