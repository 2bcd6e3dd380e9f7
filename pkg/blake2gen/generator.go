// Package blake2gen implements the seeded Blake2b byte stream that drives
// superscalar program generation.
package blake2gen

import (
	"encoding/binary"

	"mythra/pkg/constants"
	"mythra/pkg/errors"

	"golang.org/x/crypto/blake2b"
)

// Hasher replaces the 64-byte state with its successor. Producer and
// verifier must agree on it; the network uses Blake2b-512.
type Hasher func(data []byte) [64]byte

// Generator is a deterministic byte stream keyed by (seed, nonce). Each time
// the buffered bytes run out, the buffer is replaced by the hash of itself.
// Not safe for concurrent use.
type Generator struct {
	data   [constants.GeneratorDataSize]byte
	index  int
	hasher Hasher
}

// New creates a generator for seed and nonce. The seed is zero-filled to 60
// bytes and followed by the little-endian nonce.
func New(seed []byte, nonce uint32) (*Generator, error) {
	return NewWithHasher(seed, nonce, blake2b.Sum512)
}

// NewWithHasher is New with a caller supplied refill hash.
func NewWithHasher(seed []byte, nonce uint32, hasher Hasher) (*Generator, error) {
	if len(seed) > constants.GeneratorMaxSeedSize {
		return nil, errors.PreconditionErrorf("seed is %d bytes, at most %d allowed", len(seed), constants.GeneratorMaxSeedSize)
	}
	if hasher == nil {
		hasher = blake2b.Sum512
	}

	g := &Generator{
		index:  constants.GeneratorDataSize, // first read refills
		hasher: hasher,
	}
	copy(g.data[:], seed)
	binary.LittleEndian.PutUint32(g.data[constants.GeneratorMaxSeedSize:], nonce)
	return g, nil
}

// GetByte returns the next byte of the stream.
func (g *Generator) GetByte() byte {
	g.checkData(1)
	v := g.data[g.index]
	g.index++
	return v
}

// GetUint32 returns the next 4 bytes of the stream as a little-endian word.
// Fewer than 4 remaining bytes are discarded, not combined with the refill.
func (g *Generator) GetUint32() uint32 {
	g.checkData(4)
	v := binary.LittleEndian.Uint32(g.data[g.index:])
	g.index += 4
	return v
}

// State returns a copy of the current 64-byte buffer.
func (g *Generator) State() [constants.GeneratorDataSize]byte {
	return g.data
}

// Remaining returns the number of unread bytes in the buffer.
func (g *Generator) Remaining() int {
	return constants.GeneratorDataSize - g.index
}

func (g *Generator) checkData(needed int) {
	if g.index+needed > constants.GeneratorDataSize {
		g.data = g.hasher(g.data[:])
		g.index = 0
	}
}
