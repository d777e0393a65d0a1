// Package auth hashes the credentials of embedded broker users.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

// SaltBytes is the length of generated salts before hex encoding.
const SaltBytes = 16

// HashPasswordWithSalt creates a SHA-256 hash of the password combined with the salt
func HashPasswordWithSalt(password, salt string) string {
	hasher := sha256.New()
	hasher.Write([]byte(password + salt))
	return hex.EncodeToString(hasher.Sum(nil))
}

// VerifyPassword reports whether password and salt produce hash.
func VerifyPassword(password, salt, hash string) bool {
	if hash == "" {
		return false
	}
	sum := HashPasswordWithSalt(password, salt)
	return subtle.ConstantTimeCompare([]byte(sum), []byte(hash)) == 1
}

// RandomHex generates a random hexadecimal string of n bytes
func RandomHex(n int) (string, error) {
	bytes := make([]byte, n)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// GenerateHashAndSalt creates a new random salt and hashes the password with it
func GenerateHashAndSalt(password string) (hash string, salt string, err error) {
	salt, err = RandomHex(SaltBytes)
	if err != nil {
		return "", "", fmt.Errorf("generating salt: %w", err)
	}
	hash = HashPasswordWithSalt(password, salt)
	return hash, salt, nil
}
