package sealzip

import (
	"fmt"
)

// Input validation helpers. Each returns a *ValidationError that wraps the
// matching sentinel, so callers can test with errors.Is.

// ValidateKey checks that key is an AES-128 or AES-256 key
func ValidateKey(key []byte) error {
	switch len(key) {
	case 16, 32:
		return nil
	}
	return &ValidationError{
		Field:   "key",
		Value:   len(key),
		Message: fmt.Sprintf("invalid key size: got %d bytes, expected 16 or 32 bytes", len(key)),
		Err:     ErrInvalidKeyLength,
	}
}

// ValidateNonce checks that nonce is a 96 bit GCM nonce
func ValidateNonce(nonce []byte) error {
	if len(nonce) != NonceSize {
		return &ValidationError{
			Field:   "nonce",
			Value:   len(nonce),
			Message: fmt.Sprintf("invalid nonce size: got %d bytes, expected %d bytes", len(nonce), NonceSize),
			Err:     ErrInvalidNonceLength,
		}
	}
	return nil
}

// ValidateSalt checks that salt fits in the envelope header
func ValidateSalt(salt []byte) error {
	if len(salt) > MaxSaltSize {
		return &ValidationError{
			Field:   "salt",
			Value:   len(salt),
			Message: fmt.Sprintf("salt too large: got %d bytes, maximum is %d", len(salt), MaxSaltSize),
			Err:     ErrInvalidParams,
		}
	}
	return nil
}

// ValidateSize checks if a size parameter is within [minSize, maxSize]. A
// non-positive maxSize means no upper bound.
func ValidateSize(size int, name string, minSize, maxSize int) error {
	if size < 0 {
		return &ValidationError{
			Field:   name,
			Value:   size,
			Message: "size cannot be negative",
		}
	}
	if minSize >= 0 && size < minSize {
		return &ValidationError{
			Field:   name,
			Value:   size,
			Message: fmt.Sprintf("size too small: got %d, minimum is %d", size, minSize),
		}
	}
	if maxSize > 0 && size > maxSize {
		return &ValidationError{
			Field:   name,
			Value:   size,
			Message: fmt.Sprintf("size too large: got %d, maximum is %d", size, maxSize),
		}
	}
	return nil
}
