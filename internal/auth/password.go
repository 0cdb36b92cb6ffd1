package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// PBKDF2 work factor. High enough to make offline brute force expensive,
// fixed so request latency stays predictable. Changing it invalidates no
// stored digest: the parameters are implicit in this version of the code,
// and digests are only ever verified with the same constants.
const (
	hashIterations = 210_000
	hashKeyLen     = 32
	hashSaltLen    = 16
)

// HashPassword derives a salted digest for storage, encoded as
// hex(salt):hex(key) with a fresh random salt per call.
func HashPassword(password string) (string, error) {
	salt := make([]byte, hashSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("auth: generate salt: %w", err)
	}
	key := pbkdf2.Key([]byte(password), salt, hashIterations, hashKeyLen, sha256.New)
	return hex.EncodeToString(salt) + ":" + hex.EncodeToString(key), nil
}

// VerifyPassword recomputes the digest for password using the stored salt and
// compares in constant time. Returns false, never an error, on empty
// passwords or malformed stored digests.
func VerifyPassword(password, digest string) bool {
	if password == "" {
		return false
	}
	saltHex, keyHex, ok := strings.Cut(digest, ":")
	if !ok {
		return false
	}
	salt, err := hex.DecodeString(saltHex)
	if err != nil || len(salt) == 0 {
		return false
	}
	stored, err := hex.DecodeString(keyHex)
	if err != nil || len(stored) != hashKeyLen {
		return false
	}
	key := pbkdf2.Key([]byte(password), salt, hashIterations, hashKeyLen, sha256.New)
	return subtle.ConstantTimeCompare(key, stored) == 1
}
