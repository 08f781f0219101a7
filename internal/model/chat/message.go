package chat

import (
	"time"

	"github.com/nsong/lingotalk/internal/clock"
)

// Kind classifies how a message renders for the current viewer.
type Kind int

const (
	KindSentOriginal Kind = iota
	KindSentTranslated
	KindReceivedOriginal
	KindReceivedTranslated
	KindSystem
)

func (k Kind) String() string {
	switch k {
	case KindSentOriginal:
		return "sentOriginal"
	case KindSentTranslated:
		return "sentTranslated"
	case KindReceivedOriginal:
		return "receivedOriginal"
	case KindReceivedTranslated:
		return "receivedTranslated"
	case KindSystem:
		return "system"
	default:
		return "unknown"
	}
}

// ResolveKind derives the four-way display kind from the sender/viewer
// relation and the variant flag. Kind is never assigned any other way.
func ResolveKind(senderID, viewerID int64, translated bool) Kind {
	if senderID == viewerID {
		if translated {
			return KindSentTranslated
		}
		return KindSentOriginal
	}
	if translated {
		return KindReceivedTranslated
	}
	return KindReceivedOriginal
}

// Message is one chat timeline entry. Everything except the three
// display flags is immutable after construction; the timeline owns the
// flags and may rewrite them on the previous entry when a newer one
// arrives.
type Message struct {
	ID           *int64 `json:"id,omitempty"`
	Text         string `json:"text"`
	Sender       User   `json:"sender"`
	Language     string `json:"language"`
	Timestamp    string `json:"timestamp"`
	Kind         Kind   `json:"kind"`
	IsTranslated bool   `json:"isTranslated"`

	IsFirstOfDay  bool `json:"isFirstOfDay"`
	ShowTimestamp bool `json:"showTimestamp"`
	ShowAvatar    bool `json:"showAvatar"`
}

// NewOutgoing builds a locally originated message. It carries no server
// ID until the broadcast comes back through the live channel.
func NewOutgoing(text string, sender User) Message {
	return Message{
		Text:          text,
		Sender:        sender,
		Language:      sender.Language.Code(),
		Timestamp:     clock.Now(),
		Kind:          KindSentOriginal,
		IsFirstOfDay:  true,
		ShowTimestamp: true,
	}
}

// NewIncoming builds a message from a server payload and a chosen text
// variant. The same payload yields two records, one per variant.
func NewIncoming(id int64, text string, sender User, sourceLang, timestamp string, translated bool, viewerID int64) Message {
	return Message{
		ID:            &id,
		Text:          text,
		Sender:        sender,
		Language:      sourceLang,
		Timestamp:     timestamp,
		Kind:          ResolveKind(sender.ID, viewerID, translated),
		IsTranslated:  translated,
		IsFirstOfDay:  true,
		ShowTimestamp: true,
	}
}

// NewSystem builds a room notice such as a join announcement, keeping
// the server-assigned id like any other record.
func NewSystem(id int64, text, timestamp string) Message {
	return Message{
		ID:            &id,
		Text:          text,
		Timestamp:     timestamp,
		Kind:          KindSystem,
		IsFirstOfDay:  true,
		ShowTimestamp: true,
	}
}

// Rekind recomputes Kind for a new viewer identity, keeping it
// consistent with the sender relation and the variant flag.
func (m *Message) Rekind(viewerID int64) {
	if m.Kind == KindSystem {
		return
	}
	m.Kind = ResolveKind(m.Sender.ID, viewerID, m.IsTranslated)
}

// Time decodes the wire timestamp for ordering comparisons.
func (m Message) Time() time.Time {
	return clock.Parse(m.Timestamp)
}
