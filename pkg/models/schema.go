package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ErrInvalidDocument indicates an uploaded document does not have the minimal
// workflow shape.
var ErrInvalidDocument = errors.New("invalid workflow document")

// documentSchema is the minimal shape required of an uploaded workflow
// document. Everything beyond this is tolerated: the browser interprets nodes
// and connections and passes the rest through untouched.
const documentSchema = `{
	"type": "object",
	"properties": {
		"name": {"type": "string"},
		"nodes": {
			"type": "array",
			"items": {"type": "object"}
		},
		"connections": {"type": "object"}
	}
}`

var documentSchemaLoader = gojsonschema.NewStringLoader(documentSchema)

// ValidateDocument checks an uploaded workflow document against the minimal
// document schema. The returned error wraps ErrInvalidDocument when the
// document parsed but failed validation.
func ValidateDocument(data []byte) error {
	result, err := gojsonschema.Validate(documentSchemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, resultError := range result.Errors() {
			details = append(details, resultError.String())
		}

		return fmt.Errorf("%w: %s", ErrInvalidDocument, strings.Join(details, "; "))
	}

	return nil
}

// IsInvalidDocument checks if an error indicates a malformed workflow document.
func IsInvalidDocument(err error) bool {
	return errors.Is(err, ErrInvalidDocument)
}
