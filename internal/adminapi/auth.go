// Package adminapi exposes an authenticated HTTP surface for inspecting
// and mutating a running Server's pass lists — the operational equivalent
// of calling before/after/remove in-process, for deployments where relaygate
// runs as a standalone binary instead of an embedded library.
package adminapi

import (
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/alexedwards/argon2id"
)

// ErrInvalidSecret is returned by Authenticator.Check on mismatch.
var ErrInvalidSecret = errors.New("adminapi: invalid shared secret")

var (
	errUnknownPassKind = errors.New("adminapi: insert spec names no known built-in pass kind")
	errMissingField    = errors.New("adminapi: name and anchor are required")
	errInvalidPosition = errors.New(`adminapi: position must be "before" or "after"`)
)

// argon2idParams are OWASP-minimum Argon2id parameters for API-key-shaped
// secrets.
var argon2idParams = &argon2id.Params{
	Memory:      47 * 1024,
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

// HashSecret returns an Argon2id PHC-format hash of the raw shared secret,
// for operators to put into configuration.
func HashSecret(raw string) (string, error) {
	return argon2id.CreateHash(raw, argon2idParams)
}

// Authenticator verifies a bearer token against a single pre-hashed
// shared secret (there is one admin identity, not a user directory).
type Authenticator struct {
	hash string
}

// NewAuthenticator builds an Authenticator from an Argon2id PHC hash, as
// produced by HashSecret.
func NewAuthenticator(hash string) *Authenticator {
	return &Authenticator{hash: hash}
}

// Check verifies raw against the configured hash, recovering from the
// underlying library's panic on malformed hash parameters.
func (a *Authenticator) Check(raw string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("adminapi: invalid secret hash parameters: %v", r)
		}
	}()
	match, compareErr := argon2id.ComparePasswordAndHash(raw, a.hash)
	if compareErr != nil {
		return fmt.Errorf("adminapi: comparing secret: %w", compareErr)
	}
	if !match {
		return ErrInvalidSecret
	}
	return nil
}

// constantTimeEqual compares equal-length strings in constant time; it
// returns false early, without comparing contents, when the lengths differ.
func constantTimeEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
