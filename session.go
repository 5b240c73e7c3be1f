package sealzip

import (
	"context"
	"fmt"
)

// slots holds the bytes exchanged with the engine during one call. It is
// the only Host a session hands to its engine.
type slots struct {
	key, nonce, aad []byte
	input, output   []byte
}

func (s *slots) slot(channel int) *[]byte {
	switch channel {
	case ChannelKey:
		return &s.key
	case ChannelNonce:
		return &s.nonce
	case ChannelAAD:
		return &s.aad
	case ChannelInput:
		return &s.input
	case ChannelOutput:
		return &s.output
	default:
		return nil
	}
}

// Read implements Host. Drained bytes are zeroed; every slot holds a copy
// made by Write.
func (s *slots) Read(channel int, p []byte) int {
	slot := s.slot(channel)
	if slot == nil || *slot == nil {
		return 0
	}
	data := *slot
	if len(data) > len(p) {
		copy(p, data[:len(p)])
		clear(data[:len(p)])
		*slot = data[len(p):]
		return len(p)
	}
	n := copy(p, data)
	clear(data)
	*slot = nil
	return n
}

// Write implements Host
func (s *slots) Write(channel int, p []byte) int {
	slot := s.slot(channel)
	if slot == nil {
		return 0
	}
	*slot = append(make([]byte, 0, len(p)), p...)
	return len(p)
}

// reset zeroes and drops every slot
func (s *slots) reset() {
	for _, b := range [][]byte{s.key, s.nonce, s.aad, s.input, s.output} {
		clear(b)
	}
	*s = slots{}
}

// SessionOption configures a Session
type SessionOption func(*sessionOptions)

type sessionOptions struct {
	loader EngineLoader
}

// WithEngine selects the engine loader. The default is DefaultEngine.
func WithEngine(loader EngineLoader) SessionOption {
	return func(o *sessionOptions) {
		if loader != nil {
			o.loader = loader
		}
	}
}

// Session is one encrypt or decrypt operation against an engine. Feed
// calls must be sequential; a Session is not safe for concurrent use.
type Session struct {
	mode   Mode
	engine Engine
	slots  slots
	closed bool
}

// NewSession validates key and nonce, loads an engine and initialises it
// with mode. Key and nonce errors are reported before any engine call.
func NewSession(ctx context.Context, mode Mode, key, nonce, aad []byte, opts ...SessionOption) (*Session, error) {
	if mode != ModeEncrypt && mode != ModeDecrypt {
		return nil, NewValidationError("mode", mode, "must be encrypt or decrypt")
	}
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	if err := ValidateNonce(nonce); err != nil {
		return nil, err
	}

	o := sessionOptions{loader: DefaultEngine}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Session{mode: mode}
	engine, err := o.loader(ctx, &s.slots)
	if err != nil {
		return nil, fmt.Errorf("failed to load cipher engine: %w", err)
	}
	s.engine = engine

	s.slots.Write(ChannelKey, key)
	s.slots.Write(ChannelNonce, nonce)
	if aad != nil {
		s.slots.Write(ChannelAAD, aad)
	}
	var status int32
	err = s.call("init", func() { status = engine.Init(uint8(mode)) })
	s.slots.reset()
	if err != nil {
		return nil, err
	}

	if status != 0 {
		s.Close()
		return nil, NewEncryptionError(mode.String(), "init",
			fmt.Errorf("%w: status %d", ErrEngineFailure, status))
	}
	return s, nil
}

// call runs fn against the engine. A panic inside the engine is turned into
// an *EncryptionError and the session is closed.
func (s *Session) call(stage string, fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.closed = true
			s.slots.reset()
			s.release()
			err = NewEncryptionError(s.mode.String(), stage,
				fmt.Errorf("%w: panic in engine: %v", ErrEngineFailure, r))
		}
	}()
	fn()
	return nil
}

// release closes the engine after it panicked. A second panic from Close is
// dropped; the first one is what gets reported.
func (s *Session) release() {
	if s.engine == nil {
		return
	}
	defer func() { _ = recover() }()
	s.engine.Close()
}

// Mode returns the session mode
func (s *Session) Mode() Mode { return s.mode }

// Feed passes chunk through the engine and returns everything it produced,
// which may be empty. Output is only whole blocks; the rest is released by
// Finish.
func (s *Session) Feed(chunk []byte) ([]byte, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}
	defer s.slots.reset()

	s.slots.Write(ChannelInput, chunk)
	var out []byte
	err := s.call("update", func() {
		for {
			s.engine.Update()
			if s.slots.output != nil {
				out = append(out, s.slots.output...)
				clear(s.slots.output)
				s.slots.output = nil
			}
			if s.slots.input == nil {
				break
			}
		}
	})
	if err != nil {
		clear(out)
		return nil, err
	}
	return out, nil
}

// Finish runs the engine finaliser and closes the session. In decrypt mode
// a failed tag check is an *AuthenticationError and no bytes are returned.
func (s *Session) Finish() ([]byte, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}
	defer s.Close()
	defer s.slots.reset()

	var status int32
	if err := s.call("final", func() { status = s.engine.Final() }); err != nil {
		return nil, err
	}
	if status != 0 {
		if s.mode == ModeDecrypt {
			return nil, NewAuthenticationError("", ErrAuthFailed)
		}
		return nil, NewEncryptionError(s.mode.String(), "final",
			fmt.Errorf("%w: status %d", ErrEngineFailure, status))
	}

	var out []byte
	if s.slots.output != nil {
		out = append([]byte{}, s.slots.output...)
	}
	return out, nil
}

// Close releases the engine without finishing. Nothing fed to an unfinished
// session has been verified. Close is idempotent.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.slots.reset()
	s.engine.Close()
	return nil
}

// Seal encrypts plaintext in a single session and returns ciphertext with
// the tag appended.
func Seal(ctx context.Context, key, nonce, aad, plaintext []byte, opts ...SessionOption) ([]byte, error) {
	s, err := NewSession(ctx, ModeEncrypt, key, nonce, aad, opts...)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	body, err := s.Feed(plaintext)
	if err != nil {
		return nil, err
	}
	tail, err := s.Finish()
	if err != nil {
		return nil, err
	}
	return append(body, tail...), nil
}

// Unseal decrypts and verifies ciphertext in a single session. No plaintext
// is returned when verification fails.
func Unseal(ctx context.Context, key, nonce, aad, ciphertext []byte, opts ...SessionOption) ([]byte, error) {
	s, err := NewSession(ctx, ModeDecrypt, key, nonce, aad, opts...)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	body, err := s.Feed(ciphertext)
	if err != nil {
		return nil, err
	}
	tail, err := s.Finish()
	if err != nil {
		clear(body)
		return nil, err
	}
	return append(body, tail...), nil
}
