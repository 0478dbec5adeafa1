package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldops-workers/pkg/registry"
)

func TestSchemaFields(t *testing.T) {
	fields := schemaFields(map[string]interface{}{
		"required": []interface{}{"orders"},
		"properties": map[string]interface{}{
			"snapshotId": map[string]interface{}{"type": "string"},
			"orders":     map[string]interface{}{"type": "array"},
			"weekStart":  map[string]interface{}{"type": []interface{}{"string", "integer"}},
		},
	})

	assert.Equal(t, []Field{
		{Name: "Orders", GoType: "json.RawMessage", JSONTag: "orders"},
		{Name: "SnapshotID", GoType: "string", JSONTag: "snapshotId,omitempty"},
		{Name: "WeekStart", GoType: "json.RawMessage", JSONTag: "weekStart,omitempty"},
	}, fields)
}

func TestGenerate(t *testing.T) {
	reg, err := registry.Default()
	require.NoError(t, err)
	act, ok := reg.Lookup("load-work-orders")
	require.True(t, ok)

	root := t.TempDir()
	written, err := generate(act, root, false)
	require.NoError(t, err)
	assert.Len(t, written, 4)

	models, err := os.ReadFile(filepath.Join(root, "internal", "workers", "data-access", "load-work-orders", "models.go"))
	require.NoError(t, err)
	assert.Contains(t, string(models), "package loadworkorders")
	assert.Contains(t, string(models), "SnapshotID string")

	_, err = generate(act, root, false)
	assert.Error(t, err, "existing files are not overwritten without force")

	_, err = generate(act, root, true)
	assert.NoError(t, err)
}
