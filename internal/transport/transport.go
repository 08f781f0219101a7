// Package transport defines the duplex boundary between the session
// engine and the room server: a live event stream for inbound messages
// plus request/response calls for backfill, send and presence.
package transport

import (
	"context"
	"errors"
)

var (
	// ErrConnectionLost reports loss of the live channel. It is never
	// fatal: the session recovers it with a backfill and a fresh dial.
	ErrConnectionLost = errors.New("transport: live channel lost")
	// ErrNotOpen reports a call that needs an established room binding.
	ErrNotOpen = errors.New("transport: no open room")
)

// PresenceKind tags best-effort presence notices.
type PresenceKind string

const (
	PresenceJoined PresenceKind = "joined"
	PresenceLeft   PresenceKind = "left"
)

// Sender is the wire form of a participant.
type Sender struct {
	ID        int64  `json:"id"`
	Nickname  string `json:"nickname"`
	AvatarURL string `json:"avatarUrl"`
	Language  string `json:"language"`
}

// Payload is the wire form of one room message.
type Payload struct {
	ID        int64  `json:"id"`
	Text      string `json:"text"`
	Sender    Sender `json:"sender"`
	Language  string `json:"language"`
	Timestamp string `json:"timestamp"`
	System    bool   `json:"system,omitempty"`
}

// Event is one item on the live stream. Err is set exactly once, as the
// final event before the channel closes, when the channel is lost.
type Event struct {
	Payload Payload
	Err     error
}

// Transport is the session's port to the room server.
//
// Open and Reconnect return a fresh event channel; the implementation
// closes it when the live channel is lost or Close is called. Send
// reports delivery as a boolean so callers can surface failure without
// retry logic in the core.
type Transport interface {
	Open(ctx context.Context, roomCode string) (<-chan Event, error)
	Reconnect(ctx context.Context) (<-chan Event, error)
	FetchSince(ctx context.Context, timestamp string) ([]Payload, error)
	Send(ctx context.Context, text string) (bool, error)
	NotifyPresence(ctx context.Context, kind PresenceKind) error
	Close() error
}
