package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword hashes a plaintext password with bcrypt at the default cost.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	return string(hash), nil
}

// VerifyPassword checks a plaintext password against a stored bcrypt hash.
func VerifyPassword(password, hashed string) error {
	if password == "" {
		return fmt.Errorf("password cannot be empty")
	}
	if hashed == "" {
		return fmt.Errorf("hashed password cannot be empty")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hashed), []byte(password)); err != nil {
		return fmt.Errorf("invalid password")
	}

	return nil
}

// HashToken returns the hex-encoded SHA256 of an opaque token.
// Refresh tokens are stored hashed so a leaked database does not
// expose usable credentials.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
