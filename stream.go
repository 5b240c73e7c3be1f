package sealzip

import (
	"context"
	"io"
)

// Transform is a chunk oriented AEAD stage: Start opens a session, Chunk
// feeds it, End finishes it. Chunks must be delivered sequentially. Output
// already emitted is never retracted, so in decrypt mode nothing emitted is
// trustworthy until End returns nil.
type Transform struct {
	mode  Mode
	key   []byte
	nonce []byte
	aad   []byte
	opts  []SessionOption

	session *Session
	done    bool
}

// NewTransform validates key and nonce and returns an unstarted transform
func NewTransform(mode Mode, key, nonce, aad []byte, opts ...SessionOption) (*Transform, error) {
	if mode != ModeEncrypt && mode != ModeDecrypt {
		return nil, NewValidationError("mode", mode, "must be encrypt or decrypt")
	}
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	if err := ValidateNonce(nonce); err != nil {
		return nil, err
	}
	return &Transform{
		mode:  mode,
		key:   append([]byte(nil), key...),
		nonce: append([]byte(nil), nonce...),
		aad:   append([]byte(nil), aad...),
		opts:  opts,
	}, nil
}

// Mode returns the transform direction
func (t *Transform) Mode() Mode { return t.mode }

// Start opens the cipher session. The key copy is wiped once the engine has
// been initialised.
func (t *Transform) Start(ctx context.Context) error {
	if t.done || t.session != nil {
		return ErrSessionClosed
	}
	s, err := NewSession(ctx, t.mode, t.key, t.nonce, t.aad, t.opts...)
	t.wipe()
	if err != nil {
		t.done = true
		return err
	}
	t.session = s
	return nil
}

// Chunk feeds chunk and emits what the engine produced, if anything
func (t *Transform) Chunk(chunk []byte, emit func([]byte) error) error {
	if t.done || t.session == nil {
		return ErrSessionClosed
	}
	out, err := t.session.Feed(chunk)
	if err != nil {
		t.Abort()
		return err
	}
	if len(out) == 0 {
		return nil
	}
	if err := emit(out); err != nil {
		t.Abort()
		return err
	}
	return nil
}

// End finishes the session and emits the trailing output. A failed
// verification is returned as an *AuthenticationError.
func (t *Transform) End(emit func([]byte) error) error {
	if t.done || t.session == nil {
		return ErrSessionClosed
	}
	t.done = true
	out, err := t.session.Finish()
	t.session = nil
	if err != nil {
		return err
	}
	if len(out) == 0 {
		return nil
	}
	return emit(out)
}

// Abort releases the session without finishing it. It is safe to call at
// any time and more than once.
func (t *Transform) Abort() {
	t.done = true
	t.wipe()
	if t.session != nil {
		t.session.Close()
		t.session = nil
	}
}

func (t *Transform) wipe() {
	clear(t.key)
	clear(t.nonce)
}

// transformWriter adapts a Transform to io.WriteCloser
type transformWriter struct {
	t    *Transform
	w    io.Writer
	emit func([]byte) error
	err  error
}

// NewWriter returns a writer that passes everything written through t into
// w. The transform must already be started. Close runs End, which writes
// the tag when encrypting and verifies it when decrypting. Close does not
// close w.
func NewWriter(w io.Writer, t *Transform) io.WriteCloser {
	tw := &transformWriter{t: t, w: w}
	tw.emit = func(p []byte) error {
		_, err := w.Write(p)
		return err
	}
	return tw
}

func (tw *transformWriter) Write(p []byte) (int, error) {
	if tw.err != nil {
		return 0, tw.err
	}
	if err := tw.t.Chunk(p, tw.emit); err != nil {
		tw.err = err
		return 0, err
	}
	return len(p), nil
}

func (tw *transformWriter) Close() error {
	if tw.err != nil {
		tw.t.Abort()
		return tw.err
	}
	tw.err = tw.t.End(tw.emit)
	if tw.err == nil {
		tw.err = ErrSessionClosed
		return nil
	}
	return tw.err
}
