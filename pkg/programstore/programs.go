package programstore

import (
	"errors"
	"fmt"

	"mythra/pkg/blake2gen"
	"mythra/pkg/serializer"
	"mythra/pkg/superscalar"

	"github.com/cockroachdb/pebble"
	"golang.org/x/crypto/blake2b"
)

// ProgramTableTag prefixes every program key.
const ProgramTableTag byte = 0x01

var ErrNotFound = errors.New("program not found")

// MakeProgramKey derives the key of the program generated from seed and
// nonce: tag ‖ Blake2b-256(seed ‖ E4(nonce)).
func MakeProgramKey(seed []byte, nonce uint32) [33]byte {
	var key [33]byte
	data := make([]byte, 0, len(seed)+4)
	data = append(data, seed...)
	data = append(data, serializer.EncodeLittleEndian(4, uint64(nonce))...)
	h := blake2b.Sum256(data)
	key[0] = ProgramTableTag
	copy(key[1:], h[:])
	return key
}

// Get returns the cached program for seed and nonce, or ErrNotFound.
// Cached programs carry their instructions and latency metrics only.
func (s *Store) Get(seed []byte, nonce uint32) (*superscalar.Program, error) {
	key := MakeProgramKey(seed, nonce)
	value, closer, err := s.get(key[:])
	if err == pebble.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read program %d: %w", nonce, err)
	}
	defer closer.Close()

	// value is only valid until closer.Close(); DecodeProgram copies out
	p, err := serializer.DecodeProgram(value)
	if err != nil {
		return nil, fmt.Errorf("corrupt cached program %d: %w", nonce, err)
	}
	return p, nil
}

// Put stores the program generated from seed and nonce.
func (s *Store) Put(seed []byte, nonce uint32, p *superscalar.Program) error {
	key := MakeProgramKey(seed, nonce)
	if err := s.set(key[:], serializer.EncodeProgram(p)); err != nil {
		return fmt.Errorf("failed to write program %d: %w", nonce, err)
	}
	return nil
}

// Delete removes a cached program. Deleting a missing program is not an error.
func (s *Store) Delete(seed []byte, nonce uint32) error {
	key := MakeProgramKey(seed, nonce)
	return s.delete(key[:])
}

// GetOrGenerate returns the cached program, generating and storing it on a
// miss. cached reports whether it came from the store.
func (s *Store) GetOrGenerate(seed []byte, nonce uint32) (p *superscalar.Program, cached bool, err error) {
	p, err = s.Get(seed, nonce)
	if err == nil {
		return p, true, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	gen, err := blake2gen.New(seed, nonce)
	if err != nil {
		return nil, false, err
	}
	p = superscalar.Generate(gen)
	if err := s.Put(seed, nonce, p); err != nil {
		return nil, false, err
	}
	return p, false, nil
}

// Count returns the number of cached programs.
func (s *Store) Count() (int, error) {
	iter, err := s.newIter(&pebble.IterOptions{
		LowerBound: []byte{ProgramTableTag},
		UpperBound: []byte{ProgramTableTag + 1},
	})
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	n := 0
	for iter.First(); iter.Valid(); iter.Next() {
		n++
	}
	return n, iter.Error()
}
