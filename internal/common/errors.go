// Package common defines shared sentinel errors used across the vault
// server layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Policy / workflow errors.
	ErrorPermissionDenied = errors.New("permission denied")
	ErrorSelfRequest      = errors.New("self request")

	// Referential integrity errors.
	ErrorTagInUse = errors.New("tag is referenced by secrets")

	// Cipher errors (malformed hex or truncated ciphertext).
	ErrorDecryption = errors.New("decryption error")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
)
