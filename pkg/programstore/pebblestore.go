package programstore

import (
	"fmt"
	"io"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

// Store is a PebbleDB-backed cache of encoded programs. Reads and writes go
// through the open transaction when there is one. A Store must not be used
// from several goroutines while a transaction is open.
type Store struct {
	db    *pebble.DB
	batch *pebble.Batch
}

// Open opens (or creates) the store at dbPath.
func Open(dbPath string) (*Store, error) {
	return open(dbPath, &pebble.Options{})
}

// OpenInMemory opens a store backed by an in-memory filesystem.
func OpenInMemory() (*Store, error) {
	return open("", &pebble.Options{FS: vfs.NewMem()})
}

func open(dbPath string, opts *pebble.Options) (*Store, error) {
	db, err := pebble.Open(dbPath, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open program store: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) get(key []byte) ([]byte, io.Closer, error) {
	// an active batch shows its own writes and deletions
	if s.batch != nil {
		return s.batch.Get(key)
	}
	return s.db.Get(key)
}

func (s *Store) set(key, value []byte) error {
	if s.batch != nil {
		return s.batch.Set(key, value, nil)
	}
	b := s.db.NewBatch()
	defer b.Close()
	if err := b.Set(key, value, nil); err != nil {
		return err
	}
	return b.Commit(nil)
}

func (s *Store) delete(key []byte) error {
	if s.batch != nil {
		return s.batch.Delete(key, nil)
	}
	b := s.db.NewBatch()
	defer b.Close()
	if err := b.Delete(key, nil); err != nil {
		return err
	}
	return b.Commit(nil)
}

func (s *Store) newIter(opts *pebble.IterOptions) (*pebble.Iterator, error) {
	if s.batch != nil {
		return s.batch.NewIter(opts)
	}
	return s.db.NewIter(opts)
}

// BeginTransaction starts a new transaction
func (s *Store) BeginTransaction() error {
	if s.batch != nil {
		return fmt.Errorf("transaction already in progress")
	}
	s.batch = s.db.NewIndexedBatch()
	return nil
}

// CommitTransaction commits the current transaction
func (s *Store) CommitTransaction() error {
	if s.batch == nil {
		return fmt.Errorf("no transaction in progress")
	}
	err := s.batch.Commit(pebble.Sync)
	s.batch = nil
	return err
}

// RollbackTransaction aborts the current transaction
func (s *Store) RollbackTransaction() error {
	if s.batch == nil {
		return fmt.Errorf("no transaction in progress")
	}
	s.batch.Close()
	s.batch = nil
	return nil
}

// Close closes the database, discarding any open transaction.
func (s *Store) Close() error {
	if s.batch != nil {
		s.batch.Close()
		s.batch = nil
	}
	return s.db.Close()
}
