// Package portal generates the credentials that give a client read access to
// their application tracker.
package portal

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

const (
	tokenBytes     = 32
	passwordLength = 10
	// No 0/O, 1/l/I: the password is typed by hand from an email.
	passwordAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZabcdefghjkmnpqrstuvwxyz23456789"
)

// Credentials is a freshly generated token/password pair. Password is the
// plaintext sent to the client; only PasswordHash is persisted.
type Credentials struct {
	Token        string
	Password     string
	PasswordHash string
}

// NewToken returns a hex-encoded 256-bit random token.
func NewToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// NewPassword returns a random password drawn from an unambiguous alphabet.
func NewPassword() (string, error) {
	out := make([]byte, passwordLength)
	max := big.NewInt(int64(len(passwordAlphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("read random password: %w", err)
		}
		out[i] = passwordAlphabet[n.Int64()]
	}
	return string(out), nil
}

// Generate creates a token, a password and the password's bcrypt hash.
func Generate() (*Credentials, error) {
	token, err := NewToken()
	if err != nil {
		return nil, err
	}
	password, err := NewPassword()
	if err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash portal password: %w", err)
	}
	return &Credentials{Token: token, Password: password, PasswordHash: string(hash)}, nil
}

// VerifyPassword reports whether password matches the stored hash.
func VerifyPassword(hash, password string) bool {
	if hash == "" || password == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// TrackerURL builds the client-facing tracker link for a token.
func TrackerURL(baseURL, token string) string {
	return baseURL + "/tracker/" + token
}
