// Package ledger persists in-flight follow-up chains so they survive process
// restarts. The whole structure is read at startup and written back after
// every mutation; a reader never observes a partially updated ledger because
// each write replaces the single stored value atomically.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/dgraph-io/badger"

	"github.com/medimind/medimind/internal/models"
)

// Store reads and writes the full set of follow-up records, keyed by log ID.
type Store interface {
	Read(ctx context.Context) (map[string][]models.FollowupRecord, error)
	Write(ctx context.Context, followups map[string][]models.FollowupRecord) error
}

// ledgerKey is the single key holding the serialized ledger.
var ledgerKey = []byte("scheduled_followups")

// BadgerStore keeps the ledger in an embedded badger database on disk.
type BadgerStore struct {
	db *badger.DB
}

func OpenBadger(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger at %s: %w", path, err)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Read(ctx context.Context) (map[string][]models.FollowupRecord, error) {
	followups := make(map[string][]models.FollowupRecord)
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(ledgerKey)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(raw, &followups); err != nil {
			// A corrupt document must not take the process down: the
			// chains it described are unrecoverable either way, and the
			// next write replaces it wholesale.
			log.Printf("Ledger document is corrupt, starting empty: %v", err)
			followups = make(map[string][]models.FollowupRecord)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}
	return followups, nil
}

func (s *BadgerStore) Write(ctx context.Context, followups map[string][]models.FollowupRecord) error {
	raw, err := json.Marshal(followups)
	if err != nil {
		return fmt.Errorf("failed to serialize ledger: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(ledgerKey, raw)
	})
	if err != nil {
		return fmt.Errorf("failed to write ledger: %w", err)
	}
	return nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}
