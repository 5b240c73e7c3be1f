package sealzip

import (
	"errors"
	"fmt"
)

// Error types represent different categories of errors

// ValidationError represents a parameter validation error. Invalid key and
// nonce lengths are reported with this type before any engine call.
type ValidationError struct {
	Field   string // The field or parameter that failed validation
	Value   any    // The invalid value
	Message string // Human-readable error message
	Err     error  // Underlying error, if any
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// FormatError represents a record that does not match its layout: a magic
// mismatch, or data too short to hold the record.
type FormatError struct {
	Record  string // Layout name, e.g. "end of central directory"
	Offset  int64  // Byte offset of the record, -1 if unknown
	Message string // Human-readable error message
	Err     error  // Underlying sentinel
}

func (e *FormatError) Error() string {
	if e.Record != "" && e.Offset >= 0 {
		return fmt.Sprintf("format error: %s at offset %d: %s", e.Record, e.Offset, e.Message)
	} else if e.Record != "" {
		return fmt.Sprintf("format error: %s: %s", e.Record, e.Message)
	}
	return fmt.Sprintf("format error: %s", e.Message)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// EncryptionError represents a failure reported by the cipher engine
type EncryptionError struct {
	Operation string // "encrypt" or "decrypt"
	Stage     string // "init", "update" or "final"
	Message   string // Human-readable error message
	Err       error  // Underlying error
}

func (e *EncryptionError) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("%s error: %s: %s", e.Operation, e.Stage, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Operation, e.Message)
}

func (e *EncryptionError) Unwrap() error {
	return e.Err
}

// AuthenticationError represents a failed tag verification. The plaintext
// of the failed operation must not be used.
type AuthenticationError struct {
	Path    string // File path, if applicable
	Message string // Human-readable error message
	Err     error  // Underlying error
}

func (e *AuthenticationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("authentication error: %s: %s", e.Path, e.Message)
	}
	return fmt.Sprintf("authentication error: %s", e.Message)
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// Common sentinel errors
var (
	ErrInvalidKeyLength   = errors.New("invalid key length")
	ErrInvalidNonceLength = errors.New("invalid nonce length")
	ErrInvalidMagic       = errors.New("invalid magic")
	ErrTruncated          = errors.New("truncated data")
	ErrShortBuffer        = errors.New("buffer too short for record")
	ErrAuthFailed         = errors.New("authentication failed - data may be corrupted, tampered or the password is wrong")
	ErrNoExtraData        = errors.New("archive holds no extra data")
	ErrEngineFailure      = errors.New("cipher engine failure")
	ErrSessionClosed      = errors.New("cipher session closed")
	ErrInvalidParams      = errors.New("invalid key derivation parameters")
	ErrNilConfig          = errors.New("config cannot be nil")
)

// Helper functions for creating structured errors

// NewValidationError creates a new validation error
func NewValidationError(field string, value any, message string) error {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// NewFormatError creates a new format error wrapping err
func NewFormatError(record string, offset int64, err error, message string) error {
	return &FormatError{
		Record:  record,
		Offset:  offset,
		Message: message,
		Err:     err,
	}
}

// NewEncryptionError creates a new encryption error
func NewEncryptionError(operation, stage string, err error) error {
	return &EncryptionError{
		Operation: operation,
		Stage:     stage,
		Message:   err.Error(),
		Err:       err,
	}
}

// NewAuthenticationError creates a new authentication error
func NewAuthenticationError(path string, err error) error {
	return &AuthenticationError{
		Path:    path,
		Message: err.Error(),
		Err:     err,
	}
}

// Error checking helpers

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsFormatError checks if an error is a format error
func IsFormatError(err error) bool {
	var fe *FormatError
	return errors.As(err, &fe)
}

// IsEncryptionError checks if an error is an encryption error
func IsEncryptionError(err error) bool {
	var ee *EncryptionError
	return errors.As(err, &ee)
}

// IsAuthenticationError checks if an error is an authentication error
func IsAuthenticationError(err error) bool {
	var ae *AuthenticationError
	return errors.As(err, &ae)
}
