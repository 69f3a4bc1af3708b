package credentials

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStorageKeyEquality(t *testing.T) {
	tests := []struct {
		name  string
		a, b  StorageKey
		equal bool
	}{
		{name: "same fields", a: NewStorageKey("spotify", "token1"), b: NewStorageKey("spotify", "token1"), equal: true},
		{name: "different account", a: NewStorageKey("spotify", "token1"), b: NewStorageKey("spotify", "user1"), equal: false},
		{name: "different service", a: NewStorageKey("spotify", "token1"), b: NewStorageKey("lastfm", "token1"), equal: false},
		{name: "shifted boundary", a: NewStorageKey("ab", "c"), b: NewStorageKey("a", "bc"), equal: false},
		{name: "zero keys", a: StorageKey{}, b: NewStorageKey("", ""), equal: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.equal, tt.a == tt.b)
			if tt.equal {
				assert.Equal(t, tt.a.Hash(), tt.b.Hash())
			}
		})
	}
}

func TestStorageKeyHashSeparatesFields(t *testing.T) {
	assert.NotEqual(t, NewStorageKey("ab", "c").Hash(), NewStorageKey("a", "bc").Hash())
}

func TestStorageKeyAsMapKey(t *testing.T) {
	m := map[StorageKey]int{}
	m[NewStorageKey("spotify", "user1")] = 1
	m[NewStorageKey("spotify", "user1")] = 2

	assert.Len(t, m, 1)
	assert.Equal(t, 2, m[NewStorageKey("spotify", "user1")])
}

func TestStorageKeyAccessors(t *testing.T) {
	k := NewStorageKey("spotify", "user1")
	assert.Equal(t, "spotify", k.Service())
	assert.Equal(t, "user1", k.Account())
	assert.Equal(t, "spotify/user1", k.String())
}
