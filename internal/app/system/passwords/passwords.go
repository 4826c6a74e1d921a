// Package passwords hashes and checks user passwords with bcrypt.
package passwords

import (
	"errors"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// BcryptCost is the work factor for new hashes.
const BcryptCost = 12

// MinLength is the shortest password accepted on change.
const MinLength = 8

var (
	// ErrMismatch is returned when a password does not match its hash.
	ErrMismatch = errors.New("password does not match")
	// ErrTooShort is returned by Validate for passwords under MinLength.
	ErrTooShort = errors.New("password must be at least 8 characters")
	// ErrTooLong is returned for passwords bcrypt cannot hash (over 72 bytes).
	ErrTooLong = errors.New("password must be at most 72 bytes")
)

// Hash returns a salted bcrypt hash of password.
func Hash(password string) (string, error) {
	if len(password) > 72 {
		return "", ErrTooLong
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// Check compares password against hash in constant time.
// An empty or malformed hash never matches.
func Check(hash, password string) error {
	if hash == "" {
		return ErrMismatch
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrMismatch
	}
	return nil
}

// Validate applies the password rules for newly chosen passwords.
func Validate(password string) error {
	if len(password) < MinLength {
		return ErrTooShort
	}
	if len(password) > 72 {
		return ErrTooLong
	}
	return nil
}

var dummyHash = sync.OnceValue(func() []byte {
	h, _ := bcrypt.GenerateFromPassword([]byte("unknown-account"), BcryptCost)
	return h
})

// Burn runs one bcrypt comparison against a throwaway hash so that a login
// for an unknown account takes as long as one with a wrong password.
func Burn(password string) {
	_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(password))
}
