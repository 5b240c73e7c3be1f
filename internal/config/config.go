// Package config holds the settings of the sealzip command, gathered from
// flags and SEALZIP_* environment variables.
package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/absfs/sealzip"
)

type Config struct {
	// Cost flags, memory in KiB. enc and rekey set them; dec and info read
	// them from the archive.
	Memory      uint32 `mapstructure:"memory"      validate:"omitempty,gte=8"`
	Iterations  uint16 `mapstructure:"iterations"  validate:"omitempty,gte=1"`
	Parallelism uint8  `mapstructure:"parallelism" validate:"omitempty,gte=1"`

	Stream    bool `mapstructure:"stream"`
	ChunkSize int  `mapstructure:"chunk-size" validate:"gte=1,lte=16777216"`

	Verbose bool `mapstructure:"verbose"`
	Debug   bool `mapstructure:"debug"`

	// Password from SEALZIP_PASSWORD or the positional argument
	Password string `mapstructure:"password"`

	// NewPassword is only used by rekey (SEALZIP_NEW_PASSWORD)
	NewPassword string `mapstructure:"new-password"`

	// Positional arguments
	File string `validate:"required"`
}

// Validate validates the configuration against the struct tags and the KDF
// limits.
func (c Config) Validate() error {
	validate := validator.New()

	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("validating configuration: %w", err)
	}

	// A partial set is only meaningful to rekey, which fills the gaps from
	// the archive
	if params := c.KDFParams(); params.Memory != 0 && params.Iterations != 0 && params.Parallelism != 0 {
		if err := params.Validate(); err != nil {
			return fmt.Errorf("validating configuration: %w", err)
		}
	}

	return nil
}

// KDFParams returns the cost flags as KDF parameters
func (c Config) KDFParams() sealzip.KDFParams {
	return sealzip.KDFParams{
		Memory:      c.Memory,
		Iterations:  c.Iterations,
		Parallelism: c.Parallelism,
	}
}

// Sealer returns the library configuration for c
func (c Config) Sealer(kdf sealzip.KDFFunc) *sealzip.Config {
	return &sealzip.Config{
		KDF:       kdf,
		Params:    c.KDFParams(),
		ChunkSize: c.ChunkSize,
		Stream:    c.Stream,
	}
}
