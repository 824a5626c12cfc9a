package command

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword derives the stored bcrypt hash for an operator password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("command: hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword reports whether a plaintext password matches a stored hash.
func VerifyPassword(hash string, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
