package masking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "", MaskSecret("  "))
	assert.Equal(t, "****", MaskSecret("1234"))
	assert.Equal(t, "****5678", MaskSecret("V12345678"))
}

func TestMaskFields(t *testing.T) {
	phone := "+584120001234"
	got := MaskFields(map[string]any{
		"name":   "Ana",
		"tax_id": "V12345678",
		"phone":  &phone,
		"nested": map[string]any{"Phone": "04141112222"},
		"count":  3,
	}, "tax_id", "phone")

	assert.Equal(t, "Ana", got["name"])
	assert.Equal(t, "****5678", got["tax_id"])
	assert.Equal(t, "****1234", got["phone"])
	assert.Equal(t, map[string]any{"Phone": "****2222"}, got["nested"])
	assert.Equal(t, 3, got["count"])

	assert.Nil(t, MaskFields(nil, "x"))
}
