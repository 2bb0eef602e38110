package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
)

// verificationTokenBytes gives 256 bits of entropy per token.
const verificationTokenBytes = 32

// NewVerificationToken returns a random opaque token and its digest.
// The raw value goes into the emailed link; only the digest is persisted,
// so a stolen database row cannot be replayed as a link.
func NewVerificationToken() (raw string, digest string, err error) {
	buf := make([]byte, verificationTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", err
	}
	raw = hex.EncodeToString(buf)
	return raw, HashToken(raw), nil
}

// HashToken returns the hex sha256 digest of a raw token. Deterministic so
// the same raw token always resolves to the same stored value. Tokens are
// high-entropy and single-generation, so a fast unsalted digest is enough;
// passwords never go through this path.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// NewOTP returns a uniformly random 6-digit code ("000000".."999999")
// from crypto/rand.
func NewOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
