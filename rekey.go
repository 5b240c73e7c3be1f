package sealzip

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/absfs/absfs"
)

// RekeyOptions contains options for re-encrypting an archive
type RekeyOptions struct {
	// NewPassword is the password the archive is sealed with afterwards
	NewPassword []byte

	// Params are the KDF costs for the new envelope. Zero fields keep the
	// value recorded in the archive.
	Params KDFParams

	// DryRun verifies the old password without rewriting the archive
	DryRun bool
}

// Rekey decrypts the archive name with oldPassword and seals the same
// content again under opts.NewPassword with a fresh salt. The archive is
// replaced atomically; on any failure the original is left in place.
func (s *Sealer) Rekey(ctx context.Context, fsys absfs.FileSystem, name string, oldPassword []byte, opts RekeyOptions) (*Header, error) {
	if len(opts.NewPassword) == 0 && !opts.DryRun {
		return nil, NewValidationError("new_password", 0, "new password cannot be empty")
	}
	if err := opts.Params.CheckLimit(s.config.MaxParams); err != nil {
		return nil, err
	}

	f, err := fsys.Open(name)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	old, msg, err := s.ReadArchive(ctx, f, oldPassword)
	f.Close()
	if err != nil {
		var ae *AuthenticationError
		if errors.As(err, &ae) && ae.Path == "" {
			ae.Path = name
		}
		return nil, err
	}
	defer clear(msg)

	params := opts.Params.Merge(old.Params)
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if opts.DryRun {
		return old, nil
	}

	salt, err := GenerateSalt(s.config.SaltSize)
	if err != nil {
		return nil, err
	}
	err = writeAtomic(fsys, name, 0o644, func(w io.Writer) error {
		if s.config.Stream {
			return s.EncryptStream(ctx, w, bytes.NewReader(msg), opts.NewPassword, salt, params)
		}
		return s.WriteArchive(ctx, w, msg, opts.NewPassword, salt, params)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to rewrite archive: %w", err)
	}
	return &Header{Params: params, SaltLength: uint8(len(salt))}, nil
}

// RekeyAll rekeys every archive in names and keeps going past failures.
// It returns the number of archives rekeyed and the joined errors.
func (s *Sealer) RekeyAll(ctx context.Context, fsys absfs.FileSystem, names []string, oldPassword []byte, opts RekeyOptions) (int, error) {
	var errs []error
	rekeyed := 0
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if _, err := s.Rekey(ctx, fsys, name, oldPassword, opts); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		rekeyed++
	}
	return rekeyed, errors.Join(errs...)
}
