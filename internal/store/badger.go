package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
)

// BadgerRecords keeps records in a local BadgerDB, for deployments without a
// Redis instance.
type BadgerRecords struct {
	db *badger.DB
}

// BadgerOptions configures the local store.
type BadgerOptions struct {
	// Dir is the directory for data files. Required unless InMemory is set.
	Dir string
	// InMemory runs badger without disk persistence. Useful for tests.
	InMemory bool
}

// NewBadgerRecords opens the local database.
func NewBadgerRecords(opts BadgerOptions) (*BadgerRecords, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("badger dir is required for on-disk mode")
	}
	dbOpts := badger.DefaultOptions(opts.Dir).WithLogger(nil)
	if opts.InMemory {
		dbOpts = dbOpts.WithInMemory(true)
	}
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &BadgerRecords{db: db}, nil
}

func (b *BadgerRecords) set(rec *Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(keyRecord(rec.ID)), data); err != nil {
			return err
		}
		if rec.AudioID != "" {
			return txn.Set([]byte(keyAudioIndex(rec.AudioID)), []byte(rec.ID))
		}
		return nil
	})
}

func (b *BadgerRecords) Create(ctx context.Context, rec *Record) error {
	now := time.Now()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	return b.set(rec)
}

func (b *BadgerRecords) Update(ctx context.Context, rec *Record) error {
	old, err := b.Get(ctx, rec.ID)
	if err != nil {
		return err
	}
	rec.CreatedAt = old.CreatedAt
	rec.UpdatedAt = time.Now()
	return b.set(rec)
}

func (b *BadgerRecords) get(key string) ([]byte, error) {
	var val []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	return val, err
}

func (b *BadgerRecords) Get(ctx context.Context, id string) (*Record, error) {
	val, err := b.get(keyRecord(id))
	if err != nil {
		return nil, fmt.Errorf("record '%s': %w", id, err)
	}
	var rec Record
	if err := json.Unmarshal(val, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (b *BadgerRecords) GetByAudioID(ctx context.Context, audioID string) (*Record, error) {
	val, err := b.get(keyAudioIndex(audioID))
	if err != nil {
		return nil, fmt.Errorf("audio '%s': %w", audioID, err)
	}
	return b.Get(ctx, string(val))
}

func (b *BadgerRecords) Delete(ctx context.Context, id string) error {
	rec, err := b.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		if rec.AudioID != "" {
			if err := txn.Delete([]byte(keyAudioIndex(rec.AudioID))); err != nil {
				return err
			}
		}
		return txn.Delete([]byte(keyRecord(id)))
	})
}

func (b *BadgerRecords) Close() error {
	return b.db.Close()
}
