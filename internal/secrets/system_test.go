package secrets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func TestSystemStore(t *testing.T) {
	keyring.MockInit()
	store := NewSystemStore()

	_, err := store.Get("spotify", "token1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Set("spotify", "token1", "abc123"))

	value, err := store.Get("spotify", "token1")
	require.NoError(t, err)
	assert.Equal(t, "abc123", value)

	require.NoError(t, store.Delete("spotify", "token1"))
	assert.ErrorIs(t, store.Delete("spotify", "token1"), ErrNotFound)

	_, err = store.List("spotify")
	assert.ErrorIs(t, err, ErrListUnsupported)
}
