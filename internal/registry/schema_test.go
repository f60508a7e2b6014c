package registry

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaJSON(t *testing.T) {
	s := Schema{
		{Name: "message", Type: TypeString, Description: "text", Required: true},
		{Name: "priority", Type: TypeString, Enum: []string{"low", "high"}},
		{Name: "items", Type: TypeArray},
	}

	var out struct {
		Type       string         `json:"type"`
		Properties map[string]any `json:"properties"`
		Required   []string       `json:"required"`
	}
	require.NoError(t, json.Unmarshal(s.JSON(), &out))

	assert.Equal(t, "object", out.Type)
	assert.Equal(t, []string{"message"}, out.Required)
	assert.Contains(t, out.Properties, "priority")
	assert.Contains(t, out.Properties, "items")
}

func TestValidateAcceptsGoodArgs(t *testing.T) {
	s := Schema{
		{Name: "price", Type: TypeNumber, Required: true},
		{Name: "count", Type: TypeInteger},
		{Name: "active", Type: TypeBoolean},
		{Name: "tags", Type: TypeArray},
		{Name: "meta", Type: TypeObject},
	}

	err := s.Validate("t", json.RawMessage(
		`{"price": 9.5, "count": 3, "active": true, "tags": [], "meta": {}}`))
	assert.NoError(t, err)
}

func TestValidateRejectsBadTypes(t *testing.T) {
	s := Schema{
		{Name: "count", Type: TypeInteger, Required: true},
		{Name: "priority", Type: TypeString, Enum: []string{"low", "high"}},
	}

	err := s.Validate("t", json.RawMessage(`{"count": 1.5, "priority": "urgent"}`))
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Len(t, schemaErr.Problems, 2)
}

func TestValidateRejectsNonObjectArgs(t *testing.T) {
	s := Schema{{Name: "x", Type: TypeString}}

	err := s.Validate("t", json.RawMessage(`[1,2]`))
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
}

func TestValidateMissingOptionalIsFine(t *testing.T) {
	s := Schema{
		{Name: "required", Type: TypeString, Required: true},
		{Name: "optional", Type: TypeString},
	}

	assert.NoError(t, s.Validate("t", json.RawMessage(`{"required": "yes"}`)))
}
