// Package validate holds the field validators shared by the account and
// inventory handlers.
package validate

import (
	"errors"
	"regexp"
	"strings"
	"unicode"
)

var (
	reEmail    = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)
	reUsername = regexp.MustCompile(`^[A-Za-z0-9_.-]{3,32}$`)
	rePhone    = regexp.MustCompile(`^\+?[0-9 ()-]{7,20}$`)

	ErrBadEmail     = errors.New("invalid email address")
	ErrBadUsername  = errors.New("username must be 3-32 chars of letters, digits, '_', '.', '-'")
	ErrBadPhone     = errors.New("invalid phone number")
	ErrBadName      = errors.New("name must be 1-64 characters")
	ErrWeakPassword = errors.New("password must be at least 8 characters with upper, lower, digit and special")
)

func Email(s string) error {
	if !reEmail.MatchString(strings.TrimSpace(s)) {
		return ErrBadEmail
	}
	return nil
}

func Username(s string) error {
	if !reUsername.MatchString(s) {
		return ErrBadUsername
	}
	return nil
}

func Phone(s string) error {
	if s == "" {
		return nil // optional field
	}
	if !rePhone.MatchString(s) {
		return ErrBadPhone
	}
	return nil
}

// Name accepts display names for devices, partitions and files.
func Name(s string) error {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > 64 {
		return ErrBadName
	}
	return nil
}

// Password enforces the account password policy: minimum 8 characters with
// at least one uppercase, one lowercase, one digit and one special character.
func Password(s string) error {
	if len(s) < 8 {
		return ErrWeakPassword
	}
	var upper, lower, digit, special bool
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		default:
			special = true
		}
	}
	if !upper || !lower || !digit || !special {
		return ErrWeakPassword
	}
	return nil
}
