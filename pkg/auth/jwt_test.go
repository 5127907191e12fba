package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidate(t *testing.T) {
	v := NewJWTValidator("secret")

	token, err := v.GenerateToken("obs-overlay", []int64{100, 200}, time.Minute)
	require.NoError(t, err)

	claims, err := v.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "obs-overlay", claims.ClientName)
	assert.Equal(t, []int64{100, 200}, claims.Rooms)
}

func TestValidateErrors(t *testing.T) {
	v := NewJWTValidator("secret")

	expired, err := v.GenerateToken("x", nil, -time.Minute)
	require.NoError(t, err)
	_, err = v.Validate(expired)
	assert.ErrorIs(t, err, ErrTokenExpired)

	other, err := NewJWTValidator("other").GenerateToken("x", nil, time.Minute)
	require.NoError(t, err)
	_, err = v.Validate(other)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = v.Validate("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = v.Validate(unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAllowsRoom(t *testing.T) {
	all := &Claims{}
	assert.True(t, all.AllowsRoom(0))
	assert.True(t, all.AllowsRoom(5))

	limited := &Claims{Rooms: []int64{5}}
	assert.True(t, limited.AllowsRoom(5))
	assert.False(t, limited.AllowsRoom(6))
	assert.False(t, limited.AllowsRoom(0))
}
