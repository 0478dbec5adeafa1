package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const inputSchema = `{
  "type": "object",
  "required": ["snapshotId"],
  "properties": {
    "snapshotId": {"type": "string", "minLength": 1},
    "weekStart": {"type": ["string", "integer"]},
    "parallelism": {"type": "integer", "minimum": 1},
    "orderIds": {"type": "array", "items": {"type": "string"}}
  }
}`

func TestCompile_Invalid(t *testing.T) {
	_, err := Compile(`{"type": "nonsense"}`)
	assert.Error(t, err)
	assert.Panics(t, func() { MustCompile(`not json`) })
}

func TestValidate_Valid(t *testing.T) {
	s := MustCompile(inputSchema)
	res := s.Validate(map[string]interface{}{"snapshotId": "abc", "weekStart": "monday", "orderIds": []interface{}{"1"}})
	assert.True(t, res.Valid)
	assert.Empty(t, res.Errors)
	assert.Empty(t, res.Error())
}

func TestValidate_Errors(t *testing.T) {
	s := MustCompile(inputSchema)
	res := s.Validate(map[string]interface{}{"parallelism": 0, "orderIds": []interface{}{"1", 2}})

	require.False(t, res.Valid)
	assert.True(t, res.HasErrors("(root)"))
	assert.Len(t, res.GetErrorsForField("parallelism"), 1)
	assert.Equal(t, "MINIMUM_VIOLATION", res.GetErrorsForField("parallelism")[0].Code)
	assert.Len(t, res.GetErrorsForField("orderIds"), 1)
	assert.NotEmpty(t, res.GetErrorMessages())
}

func TestValidateJSON(t *testing.T) {
	s := MustCompile(`{"type": "array", "items": {"type": "object"}}`)

	assert.True(t, s.ValidateJSON([]byte(`[{"id": "1"}, {}]`)).Valid)
	assert.False(t, s.ValidateJSON([]byte(`{"id": "1"}`)).Valid)
	assert.False(t, s.ValidateJSON([]byte(`[1, 2]`)).Valid)

	res := s.ValidateJSON([]byte(`[{`))
	require.False(t, res.Valid)
	assert.Equal(t, "PARSE_ERROR", res.Errors[0].Code)
}

func TestValidateInput(t *testing.T) {
	res, err := ValidateInput(map[string]interface{}{}, inputSchema)
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, "REQUIRED_FIELD_MISSING", res.Errors[0].Code)

	_, err = ValidateInput(map[string]interface{}{}, `{`)
	assert.Error(t, err)
}
