package util

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

var pairingCodeMax = big.NewInt(1000000)

// GeneratePairingCode returns a random 6-digit numeric code, zero-padded.
func GeneratePairingCode() string {
	n, _ := rand.Int(rand.Reader, pairingCodeMax)
	return fmt.Sprintf("%06d", n.Int64())
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

func MaskCode(code string) string {
	if len(code) <= 2 {
		return "******"
	}
	return code[:2] + "****"
}
