package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Key format: history:<unix_nano_padded>:<uuid>. The padded timestamp
// keeps iteration order chronological.
const keyPrefix = "history:"

// PebbleStore implements Store on a local Pebble database.
type PebbleStore struct {
	db  *pebble.DB
	log *zap.Logger
}

// OpenPebble opens (or creates) the history database at path.
func OpenPebble(path string, log *zap.Logger) (*PebbleStore, error) {
	if log == nil {
		log = zap.NewNop()
	}
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open history db at %s: %w", path, err)
	}
	log.Info("history db open", zap.String("path", path))
	return &PebbleStore{db: db, log: log}, nil
}

func (s *PebbleStore) Insert(_ context.Context, entry Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.JoinedAt.IsZero() {
		entry.JoinedAt = time.Now().UTC()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal history entry: %w", err)
	}

	key := fmt.Sprintf("%s%020d:%s", keyPrefix, entry.JoinedAt.UnixNano(), entry.ID)
	if err := s.db.Set([]byte(key), data, pebble.Sync); err != nil {
		s.log.Error("history insert failed", zap.String("key", key), zap.Error(err))
		return err
	}
	s.log.Debug("history entry saved", zap.String("code", entry.Code), zap.String("key", key))
	return nil
}

// List returns entries most recent first.
func (s *PebbleStore) List(_ context.Context) ([]Entry, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: []byte(keyPrefix + "\xff"),
	})
	if err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	defer iter.Close()

	var entries []Entry
	for iter.Last(); iter.Valid(); iter.Prev() {
		var entry Entry
		if err := json.Unmarshal(iter.Value(), &entry); err != nil {
			s.log.Warn("skipping corrupt history entry", zap.ByteString("key", iter.Key()), zap.Error(err))
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *PebbleStore) Close() error {
	return s.db.Close()
}
