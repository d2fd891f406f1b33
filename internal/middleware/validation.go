package middleware

import (
	"errors"
	"regexp"
	"strings"
	"unicode"
)

// Validation limits for registration input.
const (
	// MinUsernameLength is the minimum length for a username.
	MinUsernameLength = 3

	// MaxUsernameLength is the maximum length for a username.
	MaxUsernameLength = 32

	// MinPasswordLength is the minimum length for a password.
	MinPasswordLength = 6

	// MaxPasswordLength caps password length; argon2 input should be bounded.
	MaxPasswordLength = 128
)

// Validation errors.
var (
	ErrUsernameTooShort = errors.New("username must be at least 3 characters")
	ErrUsernameTooLong  = errors.New("username exceeds maximum length")
	ErrUsernameInvalid  = errors.New("username contains invalid characters")
	ErrUsernameReserved = errors.New("username is reserved")
	ErrPasswordTooShort = errors.New("password must be at least 6 characters")
	ErrPasswordTooLong  = errors.New("password exceeds maximum length")
)

// ReservedUsernames contains names that cannot be registered.
// These collide with system identities or invite confusion.
var ReservedUsernames = map[string]bool{
	"system":        true,
	"root":          true,
	"superuser":     true,
	"administrator": true,
	"api":           true,
	"support":       true,
	"security":      true,
	"noreply":       true,
	"postmaster":    true,
}

// validUsernamePattern matches valid username characters.
// Allowed: a-z, A-Z, 0-9, hyphen, underscore, dot
var validUsernamePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// ValidateUsername validates a username for registration.
func ValidateUsername(username string) error {
	if len(username) < MinUsernameLength {
		return ErrUsernameTooShort
	}

	if len(username) > MaxUsernameLength {
		return ErrUsernameTooLong
	}

	if !validUsernamePattern.MatchString(username) {
		return ErrUsernameInvalid
	}

	// Reject any non-ASCII input outright; homograph usernames are
	// indistinguishable from legitimate ones in logs.
	for _, r := range username {
		if r > unicode.MaxASCII {
			return ErrUsernameInvalid
		}
	}

	// Check reserved usernames (case-insensitive)
	if ReservedUsernames[strings.ToLower(username)] {
		return ErrUsernameReserved
	}

	return nil
}

// ValidatePassword validates a password for registration.
// Length checks only; composition rules push users toward weaker,
// predictable passwords.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}

	if len(password) > MaxPasswordLength {
		return ErrPasswordTooLong
	}

	return nil
}
