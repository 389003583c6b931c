package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("s3cret-pass", bcrypt.MinCost)
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret-pass", hash)

	assert.True(t, VerifyPassword(hash, "s3cret-pass"))
	assert.False(t, VerifyPassword(hash, "wrong-pass"))
	assert.False(t, VerifyPassword("not-a-bcrypt-hash", "s3cret-pass"))
}

func TestHashPassword_OutOfRangeCostFallsBack(t *testing.T) {
	hash, err := HashPassword("s3cret-pass", 99)
	require.NoError(t, err)
	assert.True(t, VerifyPassword(hash, "s3cret-pass"))
}
