// Copyright 2025 Greenbone AG
// Licensed under the AGPLv3, see LICENCE file for details.

// Package auth hashes and verifies user passwords.
package auth

import (
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"

	"github.com/juju/errors"
	"golang.org/x/crypto/pbkdf2"
)

const (
	saltLength = 32
	iterations = 8192
	keyLength  = 32
)

// NewSalt returns a fresh random salt for hashing one user's password.
func NewSalt() (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", errors.Annotate(err, "generating password salt")
	}
	return base64.StdEncoding.EncodeToString(salt), nil
}

// HashPassword returns the hash to persist for the given password and
// salt. The password itself is never stored.
func HashPassword(password, salt string) (string, error) {
	if password == "" {
		return "", errors.NotValidf("empty password")
	}
	if salt == "" {
		return "", errors.NotValidf("empty salt")
	}
	key := pbkdf2.Key([]byte(password), []byte(salt), iterations, keyLength, sha512.New)
	return base64.StdEncoding.EncodeToString(key), nil
}

// PasswordMatches reports whether the given password hashes to the stored
// hash under the stored salt. Comparison is constant time.
func PasswordMatches(password, salt, hash string) bool {
	computed, err := HashPassword(password, salt)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(computed), []byte(hash)) == 1
}
