package sealzip

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// Argon2idKDF derives KeyMaterialSize bytes with Argon2id. The derivation
// runs on its own goroutine so a cancelled ctx stops the wait, though not
// the computation itself.
func Argon2idKDF(ctx context.Context, password, salt []byte, params KDFParams) ([]byte, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	done := make(chan []byte, 1)
	go func() {
		done <- argon2.IDKey(
			password,
			salt,
			uint32(params.Iterations),
			params.Memory,
			params.Parallelism,
			KeyMaterialSize,
		)
	}()

	select {
	case key := <-done:
		return key, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// KeyMaterial is the split output of the KDF. Bytes 28..31 of the derived
// material are reserved and not used.
type KeyMaterial struct {
	Key   []byte // bytes 0..15
	Nonce []byte // bytes 16..27

	raw []byte
}

// Zero wipes the derived material
func (k *KeyMaterial) Zero() {
	clear(k.raw)
}

// DeriveKeyMaterial runs kdf and splits its output into key and nonce
func DeriveKeyMaterial(ctx context.Context, kdf KDFFunc, password, salt []byte, params KDFParams) (*KeyMaterial, error) {
	if kdf == nil {
		kdf = Argon2idKDF
	}
	if len(password) == 0 {
		return nil, errors.New("password cannot be empty")
	}

	raw, err := kdf(ctx, password, salt, params)
	if err != nil {
		return nil, fmt.Errorf("key derivation failed: %w", err)
	}
	if len(raw) < KeySize+NonceSize {
		clear(raw)
		return nil, NewValidationError("key_material", len(raw),
			fmt.Sprintf("KDF returned %d bytes, need at least %d", len(raw), KeySize+NonceSize))
	}

	return &KeyMaterial{
		Key:   raw[:KeySize:KeySize],
		Nonce: raw[KeySize : KeySize+NonceSize : KeySize+NonceSize],
		raw:   raw,
	}, nil
}

// GenerateSalt generates a new random salt of size bytes
func GenerateSalt(size int) ([]byte, error) {
	if err := ValidateSize(size, "salt_size", 0, MaxSaltSize); err != nil {
		return nil, err
	}
	salt := make([]byte, size)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}
