// Package history records the rooms the viewer has joined, so the UI
// can offer re-entry. Writes are fire-and-forget from the session.
package history

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nsong/lingotalk/internal/model/chat"
)

// Entry is one room visit.
type Entry struct {
	ID       string    `json:"id"`
	RoomID   int64     `json:"roomId"`
	Code     string    `json:"code"`
	Title    string    `json:"title"`
	User     chat.User `json:"user"`
	JoinedAt time.Time `json:"joinedAt"`
}

// Store persists room visits.
type Store interface {
	Insert(ctx context.Context, entry Entry) error
	List(ctx context.Context) ([]Entry, error)
	Close() error
}

// MemoryStore implements Store in memory, for tests and setups without
// a local database path.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Insert(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.JoinedAt.IsZero() {
		entry.JoinedAt = time.Now().UTC()
	}
	s.entries = append(s.entries, entry)
	return nil
}

// List returns entries most recent first.
func (s *MemoryStore) List(_ context.Context) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, 0, len(s.entries))
	for i := len(s.entries) - 1; i >= 0; i-- {
		out = append(out, s.entries[i])
	}
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }
