package schemavalidate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateDraft07AcceptsEmptyObject(t *testing.T) {
	result := ValidateDraft07(map[string]any{})
	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
}

func TestValidateDraft07AcceptsWellFormedSchema(t *testing.T) {
	schema := map[string]any{
		"$schema": "http://json-schema.org/draft-07/schema#",
		"type":    "object",
		"properties": map[string]any{
			"name": map[string]any{"type": "string"},
			"age":  map[string]any{"type": "integer"},
		},
		"required": []any{"name"},
	}
	result := ValidateDraft07(schema)
	assert.True(t, result.Valid)
}

func TestValidateDraft07RejectsArrayRoot(t *testing.T) {
	result := ValidateDraft07([]any{1, 2, 3})
	assert.False(t, result.Valid)
	assert.NotEmpty(t, result.Errors)
}

func TestValidateDraft07RejectsPrimitiveRoot(t *testing.T) {
	assert.False(t, ValidateDraft07("a string").Valid)
	assert.False(t, ValidateDraft07(42).Valid)
	assert.False(t, ValidateDraft07(nil).Valid)
}

func TestValidateDraft07RejectsMalformedTypeKeyword(t *testing.T) {
	schema := map[string]any{
		"type": 12345,
	}
	result := ValidateDraft07(schema)
	assert.False(t, result.Valid)
	assert.NotEmpty(t, result.Errors)
}

func TestValidateDraft07RejectsInvalidRequiredShape(t *testing.T) {
	schema := map[string]any{
		"type":     "object",
		"required": "name",
	}
	result := ValidateDraft07(schema)
	assert.False(t, result.Valid)
}
