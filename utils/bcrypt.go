package utils

import "golang.org/x/crypto/bcrypt"

// HashPassword hashes a user password for storage on the users table.
func HashPassword(s string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(s), bcrypt.DefaultCost)
}

// ComparePassword checks a login attempt against the stored hash.
func ComparePassword(hashed string, attempt string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(attempt))
}
