package users

import (
	"errors"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// PasswordSpecialChars is the set of special characters the complexity
// policy requires at least one of.
const PasswordSpecialChars = "!@#$%^&*()_+"

const (
	passwordMinLen = 6
	passwordMaxLen = 128
)

// ErrPasswordComplexity is returned when a password fails the policy:
// 6-128 characters, at least one digit, at least one special character from
// PasswordSpecialChars, and no characters outside word chars plus that set.
var ErrPasswordComplexity = errors.New(
	"password must contain at least one digit and one special character from the set " +
		PasswordSpecialChars + " and be between 6 and 128 characters long")

// ValidatePassword enforces the password complexity policy.
func ValidatePassword(password string) error {
	runes := []rune(password)
	if len(runes) < passwordMinLen || len(runes) > passwordMaxLen {
		return ErrPasswordComplexity
	}
	var hasDigit, hasSpecial bool
	for _, r := range runes {
		switch {
		case unicode.IsDigit(r):
			hasDigit = true
		case strings.ContainsRune(PasswordSpecialChars, r):
			hasSpecial = true
		case unicode.IsLetter(r) || r == '_':
			// word characters are allowed but satisfy no requirement
		default:
			return ErrPasswordComplexity
		}
	}
	if !hasDigit || !hasSpecial {
		return ErrPasswordComplexity
	}
	return nil
}

// HashPassword hashes a plaintext password with bcrypt.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// VerifyPassword reports whether password matches the stored hash.
func VerifyPassword(password, hashedPassword string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)) == nil
}
