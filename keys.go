package multitoken

import (
	"crypto/rand"
	"encoding/hex"

	goerrors "github.com/goliatone/go-errors"
)

// KeyBytes is the entropy of a generated key, 256 bits
const KeyBytes = 32

// KeyGenerator produces opaque token keys
type KeyGenerator func() (string, error)

// GenerateKey returns 32 random bytes hex encoded
func GenerateKey() (string, error) {
	b := make([]byte, KeyBytes)
	if _, err := rand.Read(b); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate key").
			WithTextCode(TextCodeStoreFault).
			WithCode(goerrors.CodeInternal)
	}
	return hex.EncodeToString(b), nil
}

// maxMintAttempts bounds the retries on a unique key violation
const maxMintAttempts = 3
