package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratePairingCode(t *testing.T) {
	t.Run("generates 6 digit code", func(t *testing.T) {
		assert.Len(t, GeneratePairingCode(), 6)
	})

	t.Run("generates only digits", func(t *testing.T) {
		for _, c := range GeneratePairingCode() {
			assert.True(t, c >= '0' && c <= '9')
		}
	})

	t.Run("generates varying codes", func(t *testing.T) {
		seen := make(map[string]bool)
		for i := 0; i < 20; i++ {
			seen[GeneratePairingCode()] = true
		}
		// 20 draws from a million values should not all collide
		assert.Greater(t, len(seen), 1)
	})
}

func TestHashPassword(t *testing.T) {
	t.Run("hashes and verifies", func(t *testing.T) {
		hash, err := HashPassword("correct horse battery staple")
		require.NoError(t, err)
		assert.NotEqual(t, "correct horse battery staple", hash)
		assert.True(t, CheckPasswordHash("correct horse battery staple", hash))
	})

	t.Run("rejects wrong password", func(t *testing.T) {
		hash, err := HashPassword("password-one")
		require.NoError(t, err)
		assert.False(t, CheckPasswordHash("password-two", hash))
	})

	t.Run("same password produces different hashes", func(t *testing.T) {
		hash1, _ := HashPassword("secret")
		hash2, _ := HashPassword("secret")
		assert.NotEqual(t, hash1, hash2)
	})
}

func TestCheckPasswordHash(t *testing.T) {
	t.Run("returns false for malformed hash", func(t *testing.T) {
		assert.False(t, CheckPasswordHash("secret", "not-a-bcrypt-hash"))
	})
}

func TestMaskCode(t *testing.T) {
	t.Run("masks all but first two digits", func(t *testing.T) {
		assert.Equal(t, "48****", MaskCode("481730"))
	})

	t.Run("masks short codes entirely", func(t *testing.T) {
		assert.Equal(t, "******", MaskCode("12"))
		assert.Equal(t, "******", MaskCode(""))
	})
}
