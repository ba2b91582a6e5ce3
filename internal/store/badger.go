package store

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"scriptcatalog/internal/logging"
)

var stateKey = []byte("catalog_state")

// BadgerStore keeps the catalog state as one JSON value in a Badger
// database directory. Each Save is a single transaction.
type BadgerStore struct {
	db   *badger.DB
	path string
	log  logging.Logger
}

// NewBadgerStore opens (or creates) the database directory at path.
func NewBadgerStore(path string, opts ...Option) (*BadgerStore, error) {
	o := buildOptions(opts)

	bopts := badger.DefaultOptions(path).WithLogger(logging.NewBadgerLogger(o.logger))
	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	return &BadgerStore{
		db:   db,
		path: path,
		log:  o.logger,
	}, nil
}

// NewInMemoryBadgerStore opens a Badger store that lives only in memory.
func NewInMemoryBadgerStore(opts ...Option) (*BadgerStore, error) {
	o := buildOptions(opts)

	bopts := badger.DefaultOptions("").WithInMemory(true).WithLogger(logging.NewBadgerLogger(o.logger))
	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &BadgerStore{db: db, path: ":memory:", log: o.logger}, nil
}

func (s *BadgerStore) Load() (CatalogState, error) {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(stateKey)
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return EmptyState(), nil
	}
	if err != nil {
		return CatalogState{}, &CorruptStateError{Location: s.path, Err: err}
	}

	state, err := decodeState(data)
	if err != nil {
		return CatalogState{}, &CorruptStateError{Location: s.path, Err: err}
	}
	return state, nil
}

func (s *BadgerStore) Save(state CatalogState) error {
	data, err := encodeState(state)
	if err != nil {
		return &IOWriteError{Location: s.path, Op: "encode", Err: err}
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(stateKey, data)
	})
	if err != nil {
		return &IOWriteError{Location: s.path, Op: "commit", Err: err}
	}

	s.log.Debug().Str("path", s.path).Int("bytes", len(data)).Msg("State saved")
	return nil
}

func (s *BadgerStore) Location() string {
	return s.path
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}
