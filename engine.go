package sealzip

import (
	"context"

	"github.com/absfs/sealzip/internal/gcm"
)

// Channel numbers of the byte exchange between a session and its engine
const (
	ChannelKey    = 1
	ChannelNonce  = 2
	ChannelAAD    = 3
	ChannelInput  = 5
	ChannelOutput = 6
)

// Host is the side of the byte exchange a session exposes to its engine.
//
// Read copies up to len(p) buffered bytes of channel into p and returns the
// count. When more is buffered than requested the remainder stays buffered,
// otherwise the channel becomes empty. An empty channel reads as 0.
//
// Write replaces the contents of channel with a copy of p.
type Host interface {
	Read(channel int, p []byte) int
	Write(channel int, p []byte) int
}

// Engine is an opaque AEAD engine driven through a Host.
type Engine interface {
	// Init pulls the key, nonce and associated data and prepares the engine
	// for the given mode code. A non-zero status is a failure.
	Init(code uint8) int32

	// Update consumes some of the input channel and may write one output
	// chunk. It is called until the input channel is empty.
	Update()

	// Final flushes buffered state and writes any trailing output. In
	// decrypt mode a non-zero status means the tag did not verify.
	Final() int32

	// Close releases the engine
	Close()
}

// EngineLoader creates an engine bound to host. It is the point where a
// session waits for engine initialisation.
type EngineLoader func(ctx context.Context, host Host) (Engine, error)

// Mode selects the direction of a session
type Mode uint8

const (
	// ModeDecrypt is the decrypt mode code (bit1 set)
	ModeDecrypt Mode = 0b10
	// ModeEncrypt is the encrypt mode code (bit1 and bit0 set)
	ModeEncrypt Mode = 0b11
)

// String returns the operation name of the mode
func (m Mode) String() string {
	switch m {
	case ModeEncrypt:
		return "encrypt"
	case ModeDecrypt:
		return "decrypt"
	default:
		return "unknown"
	}
}

// DefaultEngine loads the native AES-GCM engine
func DefaultEngine(ctx context.Context, host Host) (Engine, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return gcm.New(host), nil
}
