package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPasswordWithSalt(t *testing.T) {
	// sha256("abc")
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", HashPasswordWithSalt("ab", "c"))
	assert.Len(t, HashPasswordWithSalt("secret", "pepper"), 64)
	assert.Equal(t, HashPasswordWithSalt("secret", "pepper"), HashPasswordWithSalt("secret", "pepper"))
	assert.NotEqual(t, HashPasswordWithSalt("secret", "pepper"), HashPasswordWithSalt("secret", "salt"))
}

func TestGenerateAndVerify(t *testing.T) {
	hash, salt, err := GenerateHashAndSalt("hunter2")
	require.NoError(t, err)
	assert.Len(t, salt, SaltBytes*2)

	assert.True(t, VerifyPassword("hunter2", salt, hash))
	assert.False(t, VerifyPassword("hunter3", salt, hash))
	assert.False(t, VerifyPassword("hunter2", salt, ""))
}

func TestRandomHex(t *testing.T) {
	a, err := RandomHex(8)
	require.NoError(t, err)
	b, err := RandomHex(8)
	require.NoError(t, err)
	assert.Len(t, a, 16)
	assert.NotEqual(t, a, b)
}
