package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogIndexesAreFixed(t *testing.T) {
	for i, tpl := range All() {
		assert.Equal(t, i, tpl.Index, "template %s", tpl.ID)
	}
}

func TestByID(t *testing.T) {
	tpl, err := ByID("modern")
	require.NoError(t, err)
	assert.Equal(t, 1, tpl.Index)

	_, err = ByID("brutalist")
	assert.ErrorIs(t, err, ErrUnknownTemplate)
}

func TestDefaultIsFirst(t *testing.T) {
	assert.Equal(t, 0, Default().Index)
}
