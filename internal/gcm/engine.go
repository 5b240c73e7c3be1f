// Package gcm is a streaming AES-GCM engine driven through a byte exchange
// host. Input is pulled from the host in bounded reads and output is pushed
// back one chunk per Update, so arbitrarily long messages can be processed
// without holding them in memory.
package gcm

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/subtle"
	"encoding/binary"
)

// Channel numbers used by the engine
const (
	channelKey    = 1
	channelNonce  = 2
	channelAAD    = 3
	channelInput  = 5
	channelOutput = 6
)

const (
	BlockSize = 16
	TagSize   = 16
	NonceSize = 12

	// readSize bounds a single pull from the input channel
	readSize = 4096

	// MaxBlocks is the most blocks one message may hold before the 32 bit
	// counter would wrap back onto J0.
	MaxBlocks = 1<<32 - 2
)

// Status codes returned by Init and Final
const (
	StatusOK          int32 = 0
	StatusAuthFailed  int32 = 1
	StatusBadMode     int32 = 2
	StatusBadKey      int32 = 3
	StatusBadNonce    int32 = 4
	StatusNotReady    int32 = 5
	StatusShortCipher int32 = 6
	StatusTooLong     int32 = 7
)

// Host supplies and receives bytes on numbered channels
type Host interface {
	Read(channel int, p []byte) int
	Write(channel int, p []byte) int
}

// Engine is a single-use AES-GCM engine. It is not safe for concurrent use.
type Engine struct {
	host    Host
	block   cipher.Block
	hash    ghash
	j0      [BlockSize]byte
	counter [BlockSize]byte
	encrypt bool
	ready   bool
	tooLong bool

	pending []byte // input not yet processed, includes the held back tag when decrypting
	scratch []byte
	aadLen  uint64
	dataLen uint64
}

// New returns an engine bound to host. Init must be called before use.
func New(host Host) *Engine {
	return &Engine{
		host:    host,
		scratch: make([]byte, readSize),
	}
}

// Init reads key, nonce and associated data from the host. Bit1 of code must
// be set; bit0 selects encryption.
func (e *Engine) Init(code uint8) int32 {
	if code&0b10 == 0 {
		return StatusBadMode
	}
	e.encrypt = code&0b01 != 0

	var key [32 + 1]byte
	defer clear(key[:])
	n := e.host.Read(channelKey, key[:])
	if n != 16 && n != 32 {
		return StatusBadKey
	}
	block, err := aes.NewCipher(key[:n])
	if err != nil {
		return StatusBadKey
	}

	var nonce [NonceSize + 1]byte
	if e.host.Read(channelNonce, nonce[:]) != NonceSize {
		return StatusBadNonce
	}

	e.block = block
	var h [BlockSize]byte
	block.Encrypt(h[:], h[:])
	e.hash = ghash{h: loadElement(h[:])}

	copy(e.j0[:], nonce[:NonceSize])
	e.j0[BlockSize-1] = 1
	e.counter = e.j0
	inc32(&e.counter)

	var aad []byte
	for {
		n := e.host.Read(channelAAD, e.scratch)
		if n == 0 {
			break
		}
		aad = append(aad, e.scratch[:n]...)
	}
	e.hash.updatePadded(aad)
	e.aadLen = uint64(len(aad))

	e.ready = true
	return StatusOK
}

// Update pulls one read of input and pushes the processed whole blocks. A
// partial trailing block is kept until more input arrives or Final runs.
func (e *Engine) Update() {
	if !e.ready {
		return
	}
	n := e.host.Read(channelInput, e.scratch)
	if n == 0 {
		return
	}
	e.pending = append(e.pending, e.scratch[:n]...)

	avail := len(e.pending)
	if !e.encrypt {
		avail -= TagSize
	}
	full := max(avail, 0) &^ (BlockSize - 1)
	if full == 0 {
		return
	}

	if !e.reserve(full) {
		clear(e.pending)
		e.pending = e.pending[:0]
		return
	}
	out := make([]byte, full)
	e.process(out, e.pending[:full])
	e.pending = append(e.pending[:0], e.pending[full:]...)
	e.host.Write(channelOutput, out)
}

// Final processes the buffered tail. Encryption pushes the last ciphertext
// bytes followed by the tag. Decryption verifies the tag and pushes the last
// plaintext bytes only when it matches.
func (e *Engine) Final() int32 {
	if !e.ready {
		return StatusNotReady
	}
	e.ready = false

	if e.tooLong {
		clear(e.pending)
		return StatusTooLong
	}

	if e.encrypt {
		if !e.reserve(len(e.pending)) {
			clear(e.pending)
			return StatusTooLong
		}
		out := make([]byte, len(e.pending), len(e.pending)+TagSize)
		e.process(out, e.pending)
		tag := e.tag()
		out = append(out, tag[:]...)
		clear(e.pending)
		e.host.Write(channelOutput, out)
		return StatusOK
	}

	if len(e.pending) < TagSize {
		return StatusShortCipher
	}
	body := e.pending[:len(e.pending)-TagSize]
	got := e.pending[len(e.pending)-TagSize:]
	if !e.reserve(len(body)) {
		return StatusTooLong
	}

	out := make([]byte, len(body))
	e.process(out, body)
	want := e.tag()
	if subtle.ConstantTimeCompare(got, want[:]) != 1 {
		clear(out)
		return StatusAuthFailed
	}
	if len(out) > 0 {
		e.host.Write(channelOutput, out)
	}
	return StatusOK
}

// Close drops the cipher state
func (e *Engine) Close() {
	clear(e.pending)
	e.pending = nil
	e.block = nil
	e.hash = ghash{}
	e.j0 = [BlockSize]byte{}
	e.counter = [BlockSize]byte{}
	e.ready = false
	e.tooLong = false
}

// reserve reports whether n more bytes fit before the counter wraps. Once a
// message has run over, every later call fails.
func (e *Engine) reserve(n int) bool {
	if e.tooLong {
		return false
	}
	// a low word of zero means the counter has already wrapped
	var left uint64
	if c := binary.BigEndian.Uint32(e.counter[12:]); c != 0 {
		left = 1<<32 - uint64(c)
	}
	if blocks := (uint64(n) + BlockSize - 1) / BlockSize; blocks > left {
		e.tooLong = true
	}
	return !e.tooLong
}

// process runs CTR over src into dst and hashes the ciphertext side
func (e *Engine) process(dst, src []byte) {
	if !e.encrypt {
		e.hash.updatePadded(src)
	}

	var ks [BlockSize]byte
	for i := 0; i < len(src); i += BlockSize {
		e.block.Encrypt(ks[:], e.counter[:])
		inc32(&e.counter)
		end := min(i+BlockSize, len(src))
		subtle.XORBytes(dst[i:end], src[i:end], ks[:end-i])
	}

	if e.encrypt {
		e.hash.updatePadded(dst)
	}
	e.dataLen += uint64(len(src))
}

func (e *Engine) tag() [TagSize]byte {
	var tag, mask [TagSize]byte
	s := e.hash.finish(e.aadLen, e.dataLen)
	s.put(tag[:])
	e.block.Encrypt(mask[:], e.j0[:])
	subtle.XORBytes(tag[:], tag[:], mask[:])
	return tag
}

// inc32 increments the low 32 bits of the counter block
func inc32(counter *[BlockSize]byte) {
	c := binary.BigEndian.Uint32(counter[12:])
	binary.BigEndian.PutUint32(counter[12:], c+1)
}
