package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// Stored password format: pbkdf2_sha256$<iterations>$<salt_b64url>$<hash_b64url>.
// The record is self-describing so the iteration count can be raised over time
// without invalidating existing hashes.
const (
	passwordAlg = "pbkdf2_sha256"

	// MinIterations is the floor below which a stored hash is rejected.
	MinIterations = 50_000
	// MaxIterations is the hard runtime ceiling. Hashing clamps to it;
	// verification of a hash claiming more fails closed.
	MaxIterations = 100_000

	// DefaultIterations is what new hashes are written with.
	DefaultIterations = 100_000

	saltSize = 16
	keySize  = 32
)

// HashPassword derives a salted PBKDF2-SHA256 hash of the plaintext. The
// iteration count is clamped into [MinIterations, MaxIterations].
func HashPassword(plaintext string, iterations int) (string, error) {
	if iterations < MinIterations {
		iterations = MinIterations
	}
	if iterations > MaxIterations {
		iterations = MaxIterations
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	derived := pbkdf2.Key([]byte(plaintext), salt, iterations, keySize, sha256.New)

	return fmt.Sprintf("%s$%d$%s$%s",
		passwordAlg,
		iterations,
		base64.RawURLEncoding.EncodeToString(salt),
		base64.RawURLEncoding.EncodeToString(derived),
	), nil
}

// VerifyPassword recomputes the stored hash from the plaintext and compares
// digests in constant time. Any malformed stored value yields false rather
// than an error: corrupt persisted state must never escalate into a service
// failure, and the caller treats it exactly like a wrong password.
func VerifyPassword(plaintext, stored string) bool {
	parts := strings.Split(stored, "$")
	if len(parts) != 4 {
		return false
	}
	if parts[0] != passwordAlg {
		return false
	}

	iterations, err := strconv.Atoi(parts[1])
	if err != nil || iterations < MinIterations || iterations > MaxIterations {
		return false
	}

	salt, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return false
	}
	expected, err := base64.RawURLEncoding.DecodeString(parts[3])
	if err != nil || len(expected) == 0 {
		return false
	}

	derived := pbkdf2.Key([]byte(plaintext), salt, iterations, len(expected), sha256.New)
	return subtle.ConstantTimeCompare(derived, expected) == 1
}

// HashToken renders the SHA-256 digest of a bearer token in URL-safe form.
// Sessions are stored keyed by this hash, never by the token itself.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func randomToken(size int) (string, error) {
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
