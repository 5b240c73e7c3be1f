package sealzip

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/absfs/absfs"
	"github.com/google/uuid"
)

// SealFile encrypts src into the archive dst on fsys with a fresh salt and
// the configured KDF parameters. dst is written through a temporary file
// and only appears once it is complete.
func (s *Sealer) SealFile(ctx context.Context, fsys absfs.FileSystem, src, dst string, password []byte) error {
	salt, err := GenerateSalt(s.config.SaltSize)
	if err != nil {
		return err
	}

	in, err := fsys.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	return writeAtomic(fsys, dst, 0o644, func(w io.Writer) error {
		if s.config.Stream {
			return s.EncryptStream(ctx, w, in, password, salt, s.config.Params)
		}
		msg, err := io.ReadAll(in)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", src, err)
		}
		defer clear(msg)
		return s.WriteArchive(ctx, w, msg, password, salt, s.config.Params)
	})
}

// OpenFile decrypts the archive src into dst on fsys. The plaintext is
// written through a temporary file that is removed when authentication
// fails, so dst never holds unverified data.
func (s *Sealer) OpenFile(ctx context.Context, fsys absfs.FileSystem, src, dst string, password []byte) (*Header, error) {
	in, err := fsys.Open(src)
	if err != nil {
		return nil, err
	}
	defer in.Close()

	var h *Header
	err = writeAtomic(fsys, dst, 0o600, func(w io.Writer) error {
		var err error
		if s.config.Stream {
			h, err = s.DecryptStream(ctx, w, in, password)
			return err
		}
		var msg []byte
		h, msg, err = s.ReadArchive(ctx, in, password)
		if err != nil {
			return err
		}
		defer clear(msg)
		_, err = w.Write(msg)
		return err
	})
	if err != nil {
		var ae *AuthenticationError
		if errors.As(err, &ae) && ae.Path == "" {
			ae.Path = src
		}
		return nil, err
	}
	return h, nil
}

// InspectFile reads the archive metadata and envelope header of src
// without a password.
func InspectFile(fsys absfs.FileSystem, src string) (*EntryInfo, *Header, error) {
	f, err := fsys.Open(src)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	info, err := Inspect(f)
	if err != nil {
		return nil, nil, err
	}
	if info.ExtraSize <= 0 {
		return info, nil, ErrNoExtraData
	}
	if _, err := f.Seek(info.ExtraOffset, io.SeekStart); err != nil {
		return nil, nil, err
	}
	h, _, err := readHeader(io.LimitReader(f, info.ExtraSize))
	if err != nil {
		return info, nil, err
	}
	return info, h, nil
}

// writeAtomic runs fn against a uuid-named temporary file next to dst and
// renames it over dst when fn succeeds. On failure the temporary file is
// removed and dst is left untouched.
func writeAtomic(fsys absfs.FileSystem, dst string, perm os.FileMode, fn func(w io.Writer) error) (err error) {
	tmp := path.Join(path.Dir(dst), fmt.Sprintf(".%s.%s.tmp", path.Base(dst), uuid.NewString()))

	f, err := fsys.OpenFile(tmp, os.O_RDWR|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	closed := false
	defer func() {
		if err == nil {
			return
		}
		if !closed {
			f.Close()
		}
		fsys.Remove(tmp)
	}()

	if err = fn(f); err != nil {
		return err
	}
	closed = true
	if err = f.Close(); err != nil {
		return err
	}

	if err = fsys.Rename(tmp, dst); err != nil {
		// Some filesystems refuse to rename over an existing file
		if _, serr := fsys.Stat(dst); serr != nil {
			return err
		}
		err = replace(fsys, tmp, dst)
	}
	return err
}

// replace moves dst aside, renames tmp into its place and puts dst back when
// that fails. dst is never removed before tmp has taken its name.
func replace(fsys absfs.FileSystem, tmp, dst string) error {
	aside := tmp + ".old"
	if err := fsys.Rename(dst, aside); err != nil {
		return err
	}
	if err := fsys.Rename(tmp, dst); err != nil {
		if rerr := fsys.Rename(aside, dst); rerr != nil {
			return fmt.Errorf("%w (previous %s kept at %s: %v)", err, dst, aside, rerr)
		}
		return err
	}
	fsys.Remove(aside)
	return nil
}
