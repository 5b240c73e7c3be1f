package sealzip

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
)

// Envelope Layout (the extra data of the archive):
// ┌─────────────────────────────────────┐
// │ Header (12 bytes)                   │
// │   magic        u32  "AGE "          │
// │   memory       u32  KiB             │
// │   iterations   u16                  │
// │   parallelism  u8                   │
// │   salt_len     u8                   │
// ├─────────────────────────────────────┤
// │ Salt (salt_len bytes)               │
// ├─────────────────────────────────────┤
// │ Ciphertext                          │
// │ Tag (16 bytes)                      │
// └─────────────────────────────────────┘

// EnvelopeMagic identifies an envelope header ("AGE " on disk)
const EnvelopeMagic = 0x20454741

// EnvelopeHeader is the layout of the envelope header
var EnvelopeHeader = MustDefineLayout("envelope header", []Field{
	{"magic", U32},
	{"memory", U32},
	{"iterations", U16},
	{"parallelism", U8},
	{"salt_len", U8},
}, Values{
	"magic": EnvelopeMagic,
})

// Header is the decoded envelope header
type Header struct {
	Params     KDFParams
	SaltLength uint8
}

// Size returns the header size including the salt
func (h *Header) Size() int {
	return EnvelopeHeader.Size() + int(h.SaltLength)
}

// Bytes packs the fixed part of the header
func (h *Header) Bytes() []byte {
	return EnvelopeHeader.Pack(Values{
		"memory":      uint64(h.Params.Memory),
		"iterations":  uint64(h.Params.Iterations),
		"parallelism": uint64(h.Params.Parallelism),
		"salt_len":    uint64(h.SaltLength),
	})
}

// ParseHeader decodes the header at the start of data and returns it with
// its salt. The salt aliases data.
func ParseHeader(data []byte) (*Header, []byte, error) {
	if len(data) < EnvelopeHeader.Size() {
		return nil, nil, NewFormatError(EnvelopeHeader.Name(), 0, ErrTruncated,
			fmt.Sprintf("need %d bytes, have %d", EnvelopeHeader.Size(), len(data)))
	}
	h, err := loadHeader(data)
	if err != nil {
		return nil, nil, err
	}
	if len(data) < h.Size() {
		return nil, nil, NewFormatError(EnvelopeHeader.Name(), 0, ErrTruncated,
			fmt.Sprintf("salt needs %d bytes, have %d", h.SaltLength, len(data)-EnvelopeHeader.Size()))
	}
	return h, data[EnvelopeHeader.Size():h.Size():h.Size()], nil
}

func loadHeader(data []byte) (*Header, error) {
	rec, err := EnvelopeHeader.Load(data, 0)
	if err != nil {
		return nil, err
	}
	return &Header{
		Params: KDFParams{
			Memory:      uint32(rec.Get("memory")),
			Iterations:  uint16(rec.Get("iterations")),
			Parallelism: uint8(rec.Get("parallelism")),
		},
		SaltLength: uint8(rec.Get("salt_len")),
	}, nil
}

// readHeader reads a header and its salt from r
func readHeader(r io.Reader) (*Header, []byte, error) {
	fixed := make([]byte, EnvelopeHeader.Size())
	if _, err := io.ReadFull(r, fixed); err != nil {
		return nil, nil, truncated(err, "short header")
	}
	h, err := loadHeader(fixed)
	if err != nil {
		return nil, nil, err
	}

	salt := make([]byte, h.SaltLength)
	if _, err := io.ReadFull(r, salt); err != nil {
		return nil, nil, truncated(err, "short salt")
	}
	return h, salt, nil
}

func truncated(err error, message string) error {
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return NewFormatError(EnvelopeHeader.Name(), -1, ErrTruncated, message)
	}
	return err
}

// Envelope is the header, salt and ciphertext produced by Encrypt
type Envelope struct {
	Header     Header
	Salt       []byte
	Ciphertext []byte // includes the tag
}

// Blocks returns the envelope as the ordered blocks written to an archive
func (e *Envelope) Blocks() [][]byte {
	return [][]byte{e.Header.Bytes(), e.Salt, e.Ciphertext}
}

// Bytes returns the serialised envelope
func (e *Envelope) Bytes() []byte {
	return bytes.Join(e.Blocks(), nil)
}

// Sealer encrypts and decrypts envelopes and archives with one Config
type Sealer struct {
	config Config
}

// New creates a Sealer. Zero fields of config are replaced by defaults.
func New(config *Config) (*Sealer, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Sealer{config: config.withDefaults()}, nil
}

var defaultSealer = &Sealer{config: Config{}.withDefaults()}

// Config returns the effective configuration
func (s *Sealer) Config() Config { return s.config }

// opening checks header parameters against the configured maximum before
// anything is derived with them
func (s *Sealer) opening(h *Header) error {
	return h.Params.CheckLimit(s.config.MaxParams)
}

func (s *Sealer) derive(ctx context.Context, password, salt []byte, params KDFParams) (*KeyMaterial, error) {
	if err := ValidateSalt(salt); err != nil {
		return nil, err
	}
	return DeriveKeyMaterial(ctx, s.config.KDF, password, salt, params)
}

// Encrypt derives key material from password and salt and seals msg in a
// single engine session.
func (s *Sealer) Encrypt(ctx context.Context, msg, password, salt []byte, params KDFParams) (*Envelope, error) {
	km, err := s.derive(ctx, password, salt, params)
	if err != nil {
		return nil, err
	}
	defer km.Zero()

	ct, err := Seal(ctx, km.Key, km.Nonce, nil, msg, WithEngine(s.config.Engine))
	if err != nil {
		return nil, err
	}
	return &Envelope{
		Header:     Header{Params: params, SaltLength: uint8(len(salt))},
		Salt:       append([]byte(nil), salt...),
		Ciphertext: ct,
	}, nil
}

// Decrypt parses the envelope in container, re-derives key material with
// the recorded parameters and opens the ciphertext. A wrong password or
// modified data is an *AuthenticationError. Parameters above
// Config.MaxParams are rejected before the KDF runs.
func (s *Sealer) Decrypt(ctx context.Context, container, password []byte) (*Header, []byte, error) {
	h, salt, err := ParseHeader(container)
	if err != nil {
		return nil, nil, err
	}
	if err := s.opening(h); err != nil {
		return nil, nil, err
	}
	km, err := s.derive(ctx, password, salt, h.Params)
	if err != nil {
		return nil, nil, err
	}
	defer km.Zero()

	msg, err := Unseal(ctx, km.Key, km.Nonce, nil, container[h.Size():], WithEngine(s.config.Engine))
	if err != nil {
		return nil, nil, err
	}
	return h, msg, nil
}

// WriteArchive encrypts msg and writes it as a single-entry archive
func (s *Sealer) WriteArchive(ctx context.Context, w io.Writer, msg, password, salt []byte, params KDFParams) error {
	env, err := s.Encrypt(ctx, msg, password, salt, params)
	if err != nil {
		return err
	}
	return WriteEntry(w, s.entry(env.Blocks()))
}

// ReadArchive reads the envelope from an archive and decrypts it
func (s *Sealer) ReadArchive(ctx context.Context, r io.ReadSeeker, password []byte) (*Header, []byte, error) {
	data, err := ReadEntry(r)
	if err != nil {
		return nil, nil, err
	}
	return s.Decrypt(ctx, data, password)
}

// EncryptStream writes an archive whose envelope ciphertext is produced
// from src chunk by chunk. The output is identical to WriteArchive.
func (s *Sealer) EncryptStream(ctx context.Context, dst io.Writer, src io.Reader, password, salt []byte, params KDFParams) error {
	km, err := s.derive(ctx, password, salt, params)
	if err != nil {
		return err
	}
	t, err := NewTransform(ModeEncrypt, km.Key, km.Nonce, nil, WithEngine(s.config.Engine))
	km.Zero()
	if err != nil {
		return err
	}

	e := s.entry(nil)
	aw, err := NewArchiveWriter(dst, e.Name, e.Content, e.Modified)
	if err != nil {
		t.Abort()
		return err
	}
	h := Header{Params: params, SaltLength: uint8(len(salt))}
	if _, err := aw.Write(h.Bytes()); err != nil {
		t.Abort()
		return err
	}
	if _, err := aw.Write(salt); err != nil {
		t.Abort()
		return err
	}
	if err := Pipe(ctx, aw, src, t, WithChunkSize(s.config.ChunkSize)); err != nil {
		return err
	}
	return aw.Close()
}

// DecryptStream locates the envelope in the archive src and writes the
// plaintext to dst as it is decrypted. Plaintext reaches dst before the tag
// is checked; dst must be discarded unless DecryptStream returns nil.
func (s *Sealer) DecryptStream(ctx context.Context, dst io.Writer, src io.ReadSeeker, password []byte) (*Header, error) {
	offset, size, err := LocateExtra(src)
	if err != nil {
		return nil, err
	}
	if _, err := src.Seek(offset, io.SeekStart); err != nil {
		return nil, err
	}
	payload := io.LimitReader(src, size)

	h, salt, err := readHeader(payload)
	if err != nil {
		return nil, err
	}
	if err := s.opening(h); err != nil {
		return nil, err
	}
	km, err := s.derive(ctx, password, salt, h.Params)
	if err != nil {
		return nil, err
	}
	t, err := NewTransform(ModeDecrypt, km.Key, km.Nonce, nil, WithEngine(s.config.Engine))
	km.Zero()
	if err != nil {
		return nil, err
	}
	if err := Pipe(ctx, dst, payload, t, WithChunkSize(s.config.ChunkSize)); err != nil {
		return nil, err
	}
	return h, nil
}

func (s *Sealer) entry(extra [][]byte) Entry {
	return Entry{
		Name:     []byte(s.config.EntryName),
		Content:  s.config.EntryContent,
		Modified: s.config.Modified,
		Extra:    extra,
	}
}

// Encrypt seals msg with the default Sealer
func Encrypt(ctx context.Context, msg, password, salt []byte, params KDFParams) (*Envelope, error) {
	return defaultSealer.Encrypt(ctx, msg, password, salt, params)
}

// Decrypt opens an envelope with the default Sealer
func Decrypt(ctx context.Context, container, password []byte) (*Header, []byte, error) {
	return defaultSealer.Decrypt(ctx, container, password)
}
