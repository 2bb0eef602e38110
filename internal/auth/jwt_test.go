package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParseToken(t *testing.T) {
	Init("test-secret", time.Hour)

	token, err := GenerateToken("user-42", "worker")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-42", claims.UserID())
	assert.Equal(t, "worker", claims.Role)
}

func TestParseToken_Garbage(t *testing.T) {
	Init("test-secret", time.Hour)

	for _, bad := range []string{"", "not-a-jwt", "a.b.c"} {
		_, err := ParseToken(bad)
		assert.ErrorIs(t, err, ErrInvalidToken, "input %q", bad)
	}
}

func TestParseToken_WrongSecret(t *testing.T) {
	Init("secret-one", time.Hour)
	token, err := GenerateToken("user-42", "client")
	require.NoError(t, err)

	Init("secret-two", time.Hour)
	_, err = ParseToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseToken_Expired(t *testing.T) {
	Init("test-secret", time.Hour)

	// Forge an already-expired token with the same secret; the parser must
	// reject it with the same uniform error as any other failure.
	now := time.Now().UTC()
	claims := &Claims{
		Role: "worker",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-42",
			IssuedAt:  jwt.NewNumericDate(now.Add(-2 * time.Hour)),
			ExpiresAt: jwt.NewNumericDate(now.Add(-time.Hour)),
		},
	}
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = ParseToken(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseToken_RejectsNonHMAC(t *testing.T) {
	Init("test-secret", time.Hour)

	// alg=none style tokens must not pass.
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject: "user-42",
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = ParseToken(unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
