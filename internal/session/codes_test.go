package session

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_GenerateSessionCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code := generateSessionCode()
		require.Len(t, code, codeLength)
		for _, r := range code {
			require.True(t, strings.ContainsRune(codeAlphabet, r), "unexpected rune %q", r)
		}
		seen[code] = true
	}
	// Collisions over 100 draws from a 32^6 space would point at a broken source
	require.Greater(t, len(seen), 95)
}

func Test_NewHostKey(t *testing.T) {
	key, err := NewHostKey()
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(key, "hk_"))
	require.Len(t, key, 3+48)

	other, err := NewHostKey()
	require.NoError(t, err)
	require.NotEqual(t, key, other)
}
