package auth

import (
	"errors"
	"fmt"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

var ErrPINFormat = errors.New("pin must be 4 to 8 digits")

func ValidatePINFormat(pin string) error {
	if len(pin) < 4 || len(pin) > 8 {
		return ErrPINFormat
	}
	for _, r := range pin {
		if !unicode.IsDigit(r) {
			return ErrPINFormat
		}
	}
	return nil
}

// HashPIN returns a bcrypt hash; the plaintext is never stored.
func HashPIN(pin string) (string, error) {
	if err := ValidatePINFormat(pin); err != nil {
		return "", fmt.Errorf("HashPIN: %w", err)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("HashPIN: %w", err)
	}
	return string(hashed), nil
}

// VerifyPIN reports whether pin matches hash. A mismatch is (false, nil).
func VerifyPIN(hash, pin string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(pin))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, fmt.Errorf("VerifyPIN: %w", err)
}
