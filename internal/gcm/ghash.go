package gcm

import "encoding/binary"

// fieldElement is an element of GF(2^128) in the GCM bit order: hi holds
// bytes 0..7 of the block, lo bytes 8..15, both big-endian.
type fieldElement struct {
	hi, lo uint64
}

func loadElement(b []byte) fieldElement {
	return fieldElement{
		hi: binary.BigEndian.Uint64(b[:8]),
		lo: binary.BigEndian.Uint64(b[8:16]),
	}
}

func (x fieldElement) put(b []byte) {
	binary.BigEndian.PutUint64(b[:8], x.hi)
	binary.BigEndian.PutUint64(b[8:16], x.lo)
}

// mul returns x*y using the right-shift algorithm of SP 800-38D section 6.3.
// It runs in constant time: key and state bits only ever select through
// masks.
func (x fieldElement) mul(y fieldElement) fieldElement {
	var z fieldElement
	v := y
	for i := 0; i < 128; i++ {
		var bit uint64
		if i < 64 {
			bit = x.hi >> (63 - i) & 1
		} else {
			bit = x.lo >> (127 - i) & 1
		}
		m := -bit
		z.hi ^= v.hi & m
		z.lo ^= v.lo & m

		carry := v.lo & 1
		v.lo = v.lo>>1 | v.hi<<63
		v.hi >>= 1
		v.hi ^= 0xe1 << 56 & -carry
	}
	return z
}

// ghash accumulates the authentication hash over associated data and
// ciphertext.
type ghash struct {
	h fieldElement
	s fieldElement
}

// update absorbs whole 16 byte blocks. len(blocks) must be a multiple of 16.
func (g *ghash) update(blocks []byte) {
	for len(blocks) >= BlockSize {
		x := loadElement(blocks)
		g.s.hi ^= x.hi
		g.s.lo ^= x.lo
		g.s = g.s.mul(g.h)
		blocks = blocks[BlockSize:]
	}
}

// updatePadded absorbs data, zero padding the final partial block
func (g *ghash) updatePadded(data []byte) {
	full := len(data) &^ (BlockSize - 1)
	g.update(data[:full])
	if rest := data[full:]; len(rest) > 0 {
		var last [BlockSize]byte
		copy(last[:], rest)
		g.update(last[:])
	}
}

// finish absorbs the length block. Lengths are in bytes.
func (g *ghash) finish(aadLen, dataLen uint64) fieldElement {
	var lengths [BlockSize]byte
	binary.BigEndian.PutUint64(lengths[:8], aadLen*8)
	binary.BigEndian.PutUint64(lengths[8:], dataLen*8)
	g.update(lengths[:])
	return g.s
}
