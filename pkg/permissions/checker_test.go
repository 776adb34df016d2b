package permissions_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/wareflow/wareflow-backend/pkg/permissions"
)

func TestHasPermission(t *testing.T) {
	tests := []struct {
		name     string
		perms    []string
		required string
		want     bool
	}{
		{"empty requirement", nil, "", true},
		{"no permissions", nil, permissions.FIFOOverride, false},
		{"full access", []string{"*"}, permissions.FIFOOverride, true},
		{"exact", []string{permissions.FIFOOverride}, permissions.FIFOOverride, true},
		{"resource wildcard", []string{"inventory.*"}, permissions.FIFOOverride, true},
		{"nested wildcard", []string{"inventory.fifo.*"}, permissions.FIFOOverride, true},
		{"other resource wildcard", []string{"audit.*"}, permissions.FIFOOverride, false},
		{"prefix is not a wildcard", []string{"inventory"}, permissions.InventoryPick, false},
		{"sibling action", []string{permissions.InventoryPick}, permissions.FIFOOverride, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, permissions.HasPermission(tt.perms, tt.required))
		})
	}
}

func TestIsValidPermission(t *testing.T) {
	assert.True(t, permissions.IsValidPermission("*"))
	assert.True(t, permissions.IsValidPermission(permissions.FIFOOverride))
	assert.True(t, permissions.IsValidPermission("reports.export"))
	assert.False(t, permissions.IsValidPermission("inventory"))
}
