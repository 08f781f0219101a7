// Package room holds the server-side room state: message logs with
// server-assigned ids and timestamps, plus the broadcast hub.
package room

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/nsong/lingotalk/internal/clock"
	"github.com/nsong/lingotalk/internal/model/chat"
	"github.com/nsong/lingotalk/internal/transport"
)

var ErrRoomNotFound = errors.New("room not found")

// Code alphabet avoids easily confused characters.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// Store manages rooms in memory, suitable for a single-instance server.
type Store struct {
	mu     sync.RWMutex
	rooms  map[string]*Room
	nextID int64
}

func NewStore() *Store {
	return &Store{rooms: make(map[string]*Room)}
}

// Create provisions a room with a fresh shareable code.
func (s *Store) Create() *Room {
	s.mu.Lock()
	defer s.mu.Unlock()

	code := generateCode()
	for _, taken := s.rooms[code]; taken; _, taken = s.rooms[code] {
		code = generateCode()
	}

	s.nextID++
	room := &Room{ID: s.nextID, Code: code}
	s.rooms[code] = room
	return room
}

// Find looks a room up by its code.
func (s *Store) Find(code string) (*Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[code]
	return room, ok
}

func generateCode() string {
	u := uuid.New()
	code := make([]byte, chat.RoomCodeLength)
	for i := range code {
		code[i] = codeAlphabet[int(u[i])%len(codeAlphabet)]
	}
	return string(code)
}

// Room is one chat channel's message log. Ids and timestamps are
// assigned here, under the room lock, so delivery order, id order and
// timestamp order all agree.
type Room struct {
	ID   int64
	Code string

	mu       sync.RWMutex
	nextMsg  int64
	messages []transport.Payload
}

// Append records a message, stamping the server id and timestamp.
func (r *Room) Append(text string, sender transport.Sender, system bool) transport.Payload {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextMsg++
	payload := transport.Payload{
		ID:        r.nextMsg,
		Text:      text,
		Sender:    sender,
		Language:  sender.Language,
		Timestamp: clock.Now(),
		System:    system,
	}
	r.messages = append(r.messages, payload)
	return payload
}

// Since returns every message at or after the cursor, in order. The
// boundary is inclusive because the timestamp only has second
// precision; clients drop redelivered entries by id. The encoding
// sorts lexicographically, so string comparison suffices.
func (r *Room) Since(timestamp string) []transport.Payload {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []transport.Payload
	for _, payload := range r.messages {
		if payload.Timestamp >= timestamp {
			out = append(out, payload)
		}
	}
	return out
}

// Len reports the number of logged messages.
func (r *Room) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.messages)
}
