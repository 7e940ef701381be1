package i18n

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslate(t *testing.T) {
	require.NoError(t, Initialize())

	assert.Equal(t, "Product not found", T("en", KeyProductNotFound))
	assert.Equal(t, "找不到商品", T("zh_TW", KeyProductNotFound))
	assert.Equal(t, "Invalid input", T("en", KeyValidationInvalid, "input"))
	// Unknown languages fall back to English, unknown keys to the key itself.
	assert.Equal(t, "Product deleted.", T("fr", KeyProductDeleted))
	assert.Equal(t, "missing.key", T("en", "missing.key"))
}
