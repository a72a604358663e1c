package secret

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

const (
	// DefaultCost is the bcrypt cost used for one-time codes
	DefaultCost = bcrypt.DefaultCost
)

// HashCode hashes a one-time code using bcrypt
func HashCode(code string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(code), DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// VerifyCode compares a one-time code with its hash
func VerifyCode(code, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(code))
	return err == nil
}

// Fingerprint hashes a value using SHA256 (for log-safe identifiers)
func Fingerprint(value string) string {
	hash := sha256.Sum256([]byte(value))
	return hex.EncodeToString(hash[:8])
}

// GenerateDigits generates a cryptographically secure numeric code
func GenerateDigits(length int) (string, error) {
	result := make([]byte, 0, length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("generate digit: %w", err)
		}
		result = append(result, byte('0'+n.Int64()))
	}
	return string(result), nil
}
