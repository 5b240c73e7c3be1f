package sealzip

import (
	"context"
	"fmt"
	"math"
	"time"
)

const (
	// NonceSize is the GCM nonce size in bytes
	NonceSize = 12

	// TagSize is the GCM authentication tag size in bytes
	TagSize = 16

	// KeySize is the size of the envelope cipher key (AES-128)
	KeySize = 16

	// KeyMaterialSize is the KDF output size: key, nonce and 4 reserved bytes
	KeyMaterialSize = 32

	// DefaultSaltSize is the salt size used when none is supplied
	DefaultSaltSize = 16

	// MaxSaltSize is the largest salt the header can describe
	MaxSaltSize = 0xFF

	// DefaultChunkSize is the read size of the streaming paths
	DefaultChunkSize = 64 * 1024

	// MaxChunkSize bounds Config.ChunkSize
	MaxChunkSize = 16 * 1024 * 1024

	// DefaultEntryName is the name of the visible archive entry
	DefaultEntryName = "!encrypted.txt"
)

// DefaultEntryContent is the content of the visible archive entry
var DefaultEntryContent = []byte("This file is encrypted.")

// KDFParams are the Argon2id cost parameters stored in the envelope header
type KDFParams struct {
	Memory      uint32 // Memory in KiB
	Iterations  uint16 // Number of passes
	Parallelism uint8  // Lanes
}

// DefaultKDFParams are the parameters used by the command line tool:
// 512 MiB, 5 passes, 4 lanes.
var DefaultKDFParams = KDFParams{
	Memory:      512 * 1024,
	Iterations:  5,
	Parallelism: 4,
}

// DefaultMaxKDFParams bound the costs an archive header may ask for when it
// is opened: 2 GiB, 64 passes, 255 lanes.
var DefaultMaxKDFParams = KDFParams{
	Memory:      2 * 1024 * 1024,
	Iterations:  64,
	Parallelism: 255,
}

// String returns the parameters in m=,t=,p= notation
func (p KDFParams) String() string {
	return fmt.Sprintf("m=%d,t=%d,p=%d", p.Memory, p.Iterations, p.Parallelism)
}

// Validate rejects parameters Argon2id cannot run with
func (p KDFParams) Validate() error {
	if p.Iterations == 0 {
		return &ValidationError{Field: "iterations", Value: p.Iterations, Message: "must be at least 1", Err: ErrInvalidParams}
	}
	if p.Parallelism == 0 {
		return &ValidationError{Field: "parallelism", Value: p.Parallelism, Message: "must be at least 1", Err: ErrInvalidParams}
	}
	// Argon2 needs 8 KiB per lane
	if p.Memory < 8*uint32(p.Parallelism) {
		return &ValidationError{
			Field:   "memory",
			Value:   p.Memory,
			Message: fmt.Sprintf("must be at least %d KiB for %d lanes", 8*uint32(p.Parallelism), p.Parallelism),
			Err:     ErrInvalidParams,
		}
	}
	return nil
}

// CheckLimit rejects parameters with any field above limit. Zero fields of
// limit do not bound anything.
func (p KDFParams) CheckLimit(limit KDFParams) error {
	over := func(field string, v, max uint64) error {
		return &ValidationError{
			Field:   field,
			Value:   v,
			Message: fmt.Sprintf("exceeds the limit of %d", max),
			Err:     ErrInvalidParams,
		}
	}
	if limit.Memory != 0 && p.Memory > limit.Memory {
		return over("memory", uint64(p.Memory), uint64(limit.Memory))
	}
	if limit.Iterations != 0 && p.Iterations > limit.Iterations {
		return over("iterations", uint64(p.Iterations), uint64(limit.Iterations))
	}
	if limit.Parallelism != 0 && p.Parallelism > limit.Parallelism {
		return over("parallelism", uint64(p.Parallelism), uint64(limit.Parallelism))
	}
	return nil
}

// Merge returns p with its zero fields taken from base
func (p KDFParams) Merge(base KDFParams) KDFParams {
	if p.Memory == 0 {
		p.Memory = base.Memory
	}
	if p.Iterations == 0 {
		p.Iterations = base.Iterations
	}
	if p.Parallelism == 0 {
		p.Parallelism = base.Parallelism
	}
	return p
}

// KDFFunc derives KeyMaterialSize bytes from a password and salt. It is
// the point where an envelope operation waits for key derivation.
type KDFFunc func(ctx context.Context, password, salt []byte, params KDFParams) ([]byte, error)

// Config contains configuration for a Sealer
type Config struct {
	// KDF derives key material. Defaults to Argon2id.
	KDF KDFFunc

	// Engine loads the cipher engine. Defaults to DefaultEngine.
	Engine EngineLoader

	// Params are the KDF costs used when sealing files. Defaults to
	// DefaultKDFParams.
	Params KDFParams

	// MaxParams caps the costs accepted from an archive header before any
	// key derivation runs. Zero fields default to DefaultMaxKDFParams.
	MaxParams KDFParams

	// SaltSize is the salt length generated when sealing files
	SaltSize int

	// ChunkSize is the read size of the streaming paths
	ChunkSize int

	// EntryName and EntryContent make up the visible archive entry
	EntryName    string
	EntryContent []byte

	// Modified is the entry timestamp; zero means 1980-01-01
	Modified time.Time

	// Stream makes SealFile and OpenFile run the chunked pipeline instead
	// of one whole-buffer session
	Stream bool
}

// Validate checks if the configuration is valid. Zero values are valid and
// replaced by defaults.
func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}
	if c.ChunkSize != 0 {
		if err := ValidateSize(c.ChunkSize, "chunk_size", 1, MaxChunkSize); err != nil {
			return err
		}
	}
	if c.SaltSize != 0 {
		if err := ValidateSize(c.SaltSize, "salt_size", 1, MaxSaltSize); err != nil {
			return err
		}
	}
	if c.Params != (KDFParams{}) {
		if err := c.Params.Validate(); err != nil {
			return err
		}
	}
	if d := c.withDefaults(); d.Params.CheckLimit(d.MaxParams) != nil {
		return NewValidationError("params", d.Params.String(),
			fmt.Sprintf("above the configured maximum %s", d.MaxParams))
	}
	if len(c.EntryName) > 0xFFFF {
		return NewValidationError("entry_name", len(c.EntryName), "entry name longer than 65535 bytes")
	}
	if uint64(len(c.EntryContent)) > math.MaxUint32 {
		return NewValidationError("entry_content", len(c.EntryContent), "entry content does not fit a 32 bit size field")
	}
	return nil
}

// withDefaults returns a copy of c with zero fields replaced by defaults
func (c Config) withDefaults() Config {
	if c.KDF == nil {
		c.KDF = Argon2idKDF
	}
	if c.Engine == nil {
		c.Engine = DefaultEngine
	}
	if c.Params == (KDFParams{}) {
		c.Params = DefaultKDFParams
	}
	c.MaxParams = c.MaxParams.Merge(DefaultMaxKDFParams)
	if c.SaltSize == 0 {
		c.SaltSize = DefaultSaltSize
	}
	if c.ChunkSize == 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.EntryName == "" {
		c.EntryName = DefaultEntryName
	}
	if c.EntryContent == nil {
		c.EntryContent = DefaultEntryContent
	}
	return c
}
