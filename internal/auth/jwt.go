package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for any structural, cryptographic or expiry
// failure. Callers never learn which check failed.
var ErrInvalidToken = errors.New("invalid token")

var (
	jwtSecret []byte
	jwtTTL    = 7 * 24 * time.Hour
)

// Init sets the process-wide signing key and session lifetime. Must be
// called once at startup before any token is issued or parsed.
func Init(secret string, ttl time.Duration) {
	jwtSecret = []byte(secret)
	if ttl > 0 {
		jwtTTL = ttl
	}
}

// Claims is the session claim set: account id in the subject plus the role.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// UserID returns the account id the token was issued for.
func (c *Claims) UserID() string {
	return c.Subject
}

// GenerateToken signs an HS256 session token for the account.
func GenerateToken(userID, role string) (string, error) {
	if len(jwtSecret) == 0 {
		return "", errors.New("jwt secret is not configured")
	}

	now := time.Now().UTC()
	claims := &Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(jwtTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}

// ParseToken verifies signature and expiry and returns the claims.
func ParseToken(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
