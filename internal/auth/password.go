package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost matches the 10 rounds existing hashes were created with.
const DefaultCost = bcrypt.DefaultCost

func HashPassword(password string, cost int) (string, error) {
	if cost == 0 {
		cost = DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
