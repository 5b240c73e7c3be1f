package sealzip

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/argon2"
)

// cheapParams keep Argon2id fast in tests
var cheapParams = KDFParams{Memory: 64, Iterations: 1, Parallelism: 1}

func TestEnvelopeEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("64 MiB key derivation")
	}

	ctx := context.Background()
	msg := testData(1000)
	salt := make([]byte, 16)
	params := KDFParams{Memory: 65536, Iterations: 2, Parallelism: 1}

	env, err := Encrypt(ctx, msg, []byte("correct horse"), salt, params)
	if err != nil {
		t.Fatalf("Encrypt() failed: %v", err)
	}
	container := env.Bytes()
	if len(container) != 12+16+1000+TagSize {
		t.Errorf("container length = %d, want %d", len(container), 12+16+1000+TagSize)
	}

	h, got, err := Decrypt(ctx, container, []byte("correct horse"))
	if err != nil {
		t.Fatalf("Decrypt() failed: %v", err)
	}
	if !bytes.Equal(got, msg) {
		t.Error("decrypted payload differs")
	}
	if h.Params != params || h.SaltLength != 16 {
		t.Errorf("header = %+v", h)
	}

	_, got, err = Decrypt(ctx, container, []byte("battery staple"))
	if !IsAuthenticationError(err) {
		t.Errorf("Decrypt() with wrong password = %v, want AuthenticationError", err)
	}
	if got != nil {
		t.Error("plaintext released for wrong password")
	}
}

func TestEnvelopeMatchesArgon2idAndGCM(t *testing.T) {
	ctx := context.Background()
	password := []byte("pw")
	salt := []byte("0123456789abcdef")
	msg := []byte("attack at dawn")

	env, err := Encrypt(ctx, msg, password, salt, cheapParams)
	if err != nil {
		t.Fatal(err)
	}

	raw := argon2.IDKey(password, salt, 1, 64, 1, 32)
	want := stdlibSeal(t, raw[:16], raw[16:28], nil, msg)
	if !bytes.Equal(env.Ciphertext, want) {
		t.Error("ciphertext is not AES-128-GCM under the Argon2id key and nonce")
	}

	header := env.Bytes()[:12]
	wantHeader := []byte{
		'A', 'G', 'E', ' ',
		64, 0, 0, 0,
		1, 0,
		1,
		16,
	}
	if !bytes.Equal(header, wantHeader) {
		t.Errorf("header = % x, want % x", header, wantHeader)
	}
}

func TestDecryptRejectsForeignContainer(t *testing.T) {
	ctx := context.Background()
	env, err := Encrypt(ctx, []byte("data"), []byte("pw"), make([]byte, 8), cheapParams)
	if err != nil {
		t.Fatal(err)
	}
	container := env.Bytes()

	t.Run("bad magic", func(t *testing.T) {
		bad := append([]byte(nil), container...)
		bad[0] = 'X'
		_, _, err := Decrypt(ctx, bad, []byte("pw"))
		if !IsFormatError(err) || !errors.Is(err, ErrInvalidMagic) {
			t.Errorf("error = %v, want FormatError wrapping ErrInvalidMagic", err)
		}
	})

	t.Run("short header", func(t *testing.T) {
		_, _, err := Decrypt(ctx, container[:11], []byte("pw"))
		if !errors.Is(err, ErrTruncated) {
			t.Errorf("error = %v, want ErrTruncated", err)
		}
	})

	t.Run("short salt", func(t *testing.T) {
		_, _, err := Decrypt(ctx, container[:15], []byte("pw"))
		if !errors.Is(err, ErrTruncated) {
			t.Errorf("error = %v, want ErrTruncated", err)
		}
	})

	t.Run("missing tag", func(t *testing.T) {
		_, _, err := Decrypt(ctx, container[:12+8+3], []byte("pw"))
		if !IsAuthenticationError(err) {
			t.Errorf("error = %v, want AuthenticationError", err)
		}
	})

	t.Run("modified parameters", func(t *testing.T) {
		bad := append([]byte(nil), container...)
		bad[8] = 2 // iterations
		_, _, err := Decrypt(ctx, bad, []byte("pw"))
		if !IsAuthenticationError(err) {
			t.Errorf("error = %v, want AuthenticationError", err)
		}
	})
}

func TestEncryptValidatesInputs(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		password []byte
		salt     []byte
		params   KDFParams
	}{
		{"empty password", nil, []byte("salt"), cheapParams},
		{"salt too long", []byte("pw"), make([]byte, 256), cheapParams},
		{"zero iterations", []byte("pw"), []byte("salt"), KDFParams{Memory: 64, Parallelism: 1}},
		{"memory below lanes", []byte("pw"), []byte("salt"), KDFParams{Memory: 8, Iterations: 1, Parallelism: 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Encrypt(ctx, []byte("m"), tt.password, tt.salt, tt.params); err == nil {
				t.Error("Encrypt() expected error, got nil")
			}
		})
	}
}

func TestParseHeader(t *testing.T) {
	h := Header{Params: KDFParams{Memory: 1 << 20, Iterations: 300, Parallelism: 255}, SaltLength: 3}
	data := append(h.Bytes(), 'a', 'b', 'c', 'x')

	got, salt, err := ParseHeader(data)
	if err != nil {
		t.Fatal(err)
	}
	if *got != h {
		t.Errorf("ParseHeader() = %+v, want %+v", *got, h)
	}
	if string(salt) != "abc" {
		t.Errorf("salt = %q, want abc", salt)
	}
	if got.Size() != 15 {
		t.Errorf("Size() = %d, want 15", got.Size())
	}
}

// staticKDF returns fixed material so archive tests skip Argon2id
func staticKDF(_ context.Context, password, salt []byte, _ KDFParams) ([]byte, error) {
	out := make([]byte, KeyMaterialSize)
	copy(out, password)
	copy(out[16:], salt)
	return out, nil
}

func TestArchiveStreamMatchesWholeBuffer(t *testing.T) {
	ctx := context.Background()
	msg := testData(150000)
	salt := []byte("saltsaltsaltsalt")

	for _, chunk := range []int{1000, 4096, 65536} {
		s, err := New(&Config{KDF: staticKDF, ChunkSize: chunk})
		if err != nil {
			t.Fatal(err)
		}

		var whole, streamed bytes.Buffer
		if err := s.WriteArchive(ctx, &whole, msg, []byte("pw"), salt, cheapParams); err != nil {
			t.Fatalf("WriteArchive() failed: %v", err)
		}
		if err := s.EncryptStream(ctx, &streamed, bytes.NewReader(msg), []byte("pw"), salt, cheapParams); err != nil {
			t.Fatalf("EncryptStream() failed: %v", err)
		}
		if !bytes.Equal(whole.Bytes(), streamed.Bytes()) {
			t.Fatalf("chunk %d: streamed archive differs from whole-buffer archive", chunk)
		}

		h, got, err := s.ReadArchive(ctx, bytes.NewReader(whole.Bytes()), []byte("pw"))
		if err != nil {
			t.Fatalf("ReadArchive() failed: %v", err)
		}
		if !bytes.Equal(got, msg) || h.Params != cheapParams {
			t.Error("ReadArchive() round trip mismatch")
		}

		var plain bytes.Buffer
		h, err = s.DecryptStream(ctx, &plain, bytes.NewReader(streamed.Bytes()), []byte("pw"))
		if err != nil {
			t.Fatalf("DecryptStream() failed: %v", err)
		}
		if !bytes.Equal(plain.Bytes(), msg) || int(h.SaltLength) != len(salt) {
			t.Error("DecryptStream() round trip mismatch")
		}
	}
}

func TestArchiveWrongPassword(t *testing.T) {
	ctx := context.Background()
	s, err := New(&Config{KDF: staticKDF})
	if err != nil {
		t.Fatal(err)
	}

	var archive bytes.Buffer
	if err := s.WriteArchive(ctx, &archive, testData(100), []byte("right"), []byte("salt"), cheapParams); err != nil {
		t.Fatal(err)
	}

	if _, _, err := s.ReadArchive(ctx, bytes.NewReader(archive.Bytes()), []byte("wrong")); !IsAuthenticationError(err) {
		t.Errorf("ReadArchive() = %v, want AuthenticationError", err)
	}
	if _, err := s.DecryptStream(ctx, &bytes.Buffer{}, bytes.NewReader(archive.Bytes()), []byte("wrong")); !IsAuthenticationError(err) {
		t.Errorf("DecryptStream() = %v, want AuthenticationError", err)
	}
}

func TestArchiveEntryConfig(t *testing.T) {
	ctx := context.Background()
	s, err := New(&Config{KDF: staticKDF, EntryName: "README", EntryContent: []byte("locked")})
	if err != nil {
		t.Fatal(err)
	}

	var archive bytes.Buffer
	if err := s.WriteArchive(ctx, &archive, []byte("m"), []byte("pw"), nil, cheapParams); err != nil {
		t.Fatal(err)
	}
	info, err := Inspect(bytes.NewReader(archive.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	if string(info.Name) != "README" || info.Size != 6 {
		t.Errorf("entry = %q (%d bytes)", info.Name, info.Size)
	}
	if info.ExtraSize != 12+1+TagSize {
		t.Errorf("ExtraSize = %d, want %d", info.ExtraSize, 12+1+TagSize)
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	if _, err := New(nil); !errors.Is(err, ErrNilConfig) {
		t.Errorf("New(nil) = %v, want ErrNilConfig", err)
	}
	if _, err := New(&Config{ChunkSize: -1}); !IsValidationError(err) {
		t.Errorf("New() with negative chunk size = %v, want ValidationError", err)
	}

	s, err := New(&Config{})
	if err != nil {
		t.Fatal(err)
	}
	c := s.Config()
	if c.Params != DefaultKDFParams || c.SaltSize != DefaultSaltSize || c.EntryName != DefaultEntryName {
		t.Errorf("defaults not applied: %+v", c)
	}
}

// TestOpenRejectsExcessiveCost hands every opening path a header asking for
// far more memory than the limit and checks the KDF never runs
func TestOpenRejectsExcessiveCost(t *testing.T) {
	ctx := context.Background()
	hostile := KDFParams{Memory: 0xFFFFFFFF, Iterations: 1, Parallelism: 1}
	h := Header{Params: hostile, SaltLength: 16}
	salt := make([]byte, 16)
	body := make([]byte, 48)
	container := bytes.Join([][]byte{h.Bytes(), salt, body}, nil)

	var archive bytes.Buffer
	if err := WriteEntry(&archive, Entry{Name: []byte(DefaultEntryName), Content: DefaultEntryContent, Extra: [][]byte{h.Bytes(), salt, body}}); err != nil {
		t.Fatal(err)
	}

	calls := 0
	counting := func(ctx context.Context, password, salt []byte, params KDFParams) ([]byte, error) {
		calls++
		return staticKDF(ctx, password, salt, params)
	}
	s, err := New(&Config{KDF: counting})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		open func() error
	}{
		{"package Decrypt", func() error {
			_, _, err := Decrypt(ctx, container, []byte("pw"))
			return err
		}},
		{"Decrypt", func() error {
			_, _, err := s.Decrypt(ctx, container, []byte("pw"))
			return err
		}},
		{"ReadArchive", func() error {
			_, _, err := s.ReadArchive(ctx, bytes.NewReader(archive.Bytes()), []byte("pw"))
			return err
		}},
		{"DecryptStream", func() error {
			var out bytes.Buffer
			_, err := s.DecryptStream(ctx, &out, bytes.NewReader(archive.Bytes()), []byte("pw"))
			if out.Len() != 0 {
				t.Errorf("DecryptStream wrote %d bytes", out.Len())
			}
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.open()
			if !IsValidationError(err) || !errors.Is(err, ErrInvalidParams) {
				t.Errorf("error = %v, want ValidationError wrapping ErrInvalidParams", err)
			}
		})
	}
	if calls != 0 {
		t.Errorf("KDF ran %d times on a rejected header", calls)
	}

	// a raised limit lets the same sealer reach the KDF
	generous, err := New(&Config{KDF: counting, MaxParams: KDFParams{Memory: 0xFFFFFFFF}})
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := generous.Decrypt(ctx, container, []byte("pw")); !IsAuthenticationError(err) {
		t.Errorf("Decrypt() under raised limit = %v, want AuthenticationError", err)
	}
	if calls != 1 {
		t.Errorf("KDF calls = %d, want 1", calls)
	}
}
