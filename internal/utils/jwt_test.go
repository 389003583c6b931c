package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAccessToken(t *testing.T) {
	access, err := NewAccessToken("topsecret", 42, 15)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), access.Exp, 5*time.Second)

	tok, err := jwt.Parse(access.Token, func(*jwt.Token) (interface{}, error) {
		return []byte("topsecret"), nil
	})
	require.NoError(t, err)
	require.True(t, tok.Valid)
	assert.Equal(t, jwt.SigningMethodHS256.Alg(), tok.Method.Alg())

	claims, ok := tok.Claims.(jwt.MapClaims)
	require.True(t, ok)
	assert.Equal(t, float64(42), claims["sub"])
}

func TestNewAccessToken_WrongSecretRejected(t *testing.T) {
	access, err := NewAccessToken("topsecret", 42, 15)
	require.NoError(t, err)

	_, err = jwt.Parse(access.Token, func(*jwt.Token) (interface{}, error) {
		return []byte("other-secret"), nil
	})
	assert.Error(t, err)
}
