package internal

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/lychee-technology/propval"
)

//go:embed persisted_document.schema.json
var persistedDocumentSchema []byte

var (
	documentSchemaOnce     sync.Once
	documentSchemaResolved *jsonschema.Resolved
	documentSchemaErr      error
)

func resolvedDocumentSchema() (*jsonschema.Resolved, error) {
	documentSchemaOnce.Do(func() {
		var schema jsonschema.Schema
		if err := json.Unmarshal(persistedDocumentSchema, &schema); err != nil {
			documentSchemaErr = fmt.Errorf("failed to unmarshal persisted document schema: %w", err)
			return
		}
		documentSchemaResolved, documentSchemaErr = schema.Resolve(&jsonschema.ResolveOptions{})
	})
	return documentSchemaResolved, documentSchemaErr
}

// ValidatePersistedDocument checks the envelope of a persist-mode document:
// every entry is an object with a typeId and optional value and alternates.
func ValidatePersistedDocument(doc map[string]any) error {
	resolved, err := resolvedDocumentSchema()
	if err != nil {
		return propval.NewPropValError(propval.ErrorTypeInternal, propval.ErrCodeInternalError, "persisted document schema unavailable").
			WithCause(err)
	}

	// Round-trip through JSON so the validator only sees JSON-native values.
	data, err := json.Marshal(doc)
	if err != nil {
		return propval.NewValidationError("persisted document is not JSON-encodable", err)
	}
	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return propval.NewValidationError("persisted document is not JSON-decodable", err)
	}

	if err := resolved.Validate(instance); err != nil {
		return propval.NewPropValError(propval.ErrorTypeValidation, propval.ErrCodeInvalidDocument, "persisted document failed validation").
			WithCause(err)
	}
	return nil
}
