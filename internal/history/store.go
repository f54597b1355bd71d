// Package history journals resolved and deleted alerts to a local
// Badger store, preserving the audit trail the live collection drops.
package history

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/forgewatch/machwatch/internal/models"
)

const keyPrefix = "alert/"

type Store struct {
	db     *badger.DB
	logger zerolog.Logger
}

func Open(dir string, logger zerolog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(filepath.Clean(dir))
	opts.Logger = nil
	opts = opts.WithValueLogFileSize(1 << 20)
	return open(opts, logger)
}

// OpenInMemory backs the journal with memory only; used in tests.
func OpenInMemory(logger zerolog.Logger) (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	return open(opts, logger)
}

func open(opts badger.Options, logger zerolog.Logger) (*Store, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "open history store")
	}
	return &Store{
		db:     db,
		logger: logger.With().Str("component", "history").Logger(),
	}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Append journals one alert. Keys sort by append time so iteration in
// reverse yields most recent first.
func (s *Store) Append(alert models.Alert) error {
	key := fmt.Sprintf("%s%020d/%s", keyPrefix, time.Now().UnixNano(), alert.ID)
	return s.db.Update(func(txn *badger.Txn) error {
		data, err := json.Marshal(alert)
		if err != nil {
			return err
		}
		return txn.Set([]byte(key), data)
	})
}

// Recent returns up to limit journaled alerts, most recent first.
func (s *Store) Recent(limit int) ([]models.Alert, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []models.Alert
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		// Seek past the end of the prefix range; 0xff never appears in
		// the digit/id keys.
		seek := append([]byte(keyPrefix), 0xff)
		for it.Seek(seek); it.ValidForPrefix([]byte(keyPrefix)) && len(out) < limit; it.Next() {
			var alert models.Alert
			err := it.Item().Value(func(v []byte) error {
				return json.Unmarshal(v, &alert)
			})
			if err != nil {
				return err
			}
			out = append(out, alert)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "read history")
	}
	return out, nil
}
