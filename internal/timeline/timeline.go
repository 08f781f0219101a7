// Package timeline keeps the per-room message sequence: ordered by
// timestamp, append-only, with display metadata derived from each
// entry's neighbors as it arrives.
package timeline

import (
	"sync"

	"go.uber.org/zap"

	"github.com/nsong/lingotalk/internal/clock"
	"github.com/nsong/lingotalk/internal/model/chat"
)

// Timeline owns the ordered message sequence for one room session. It
// is written by a single consumer; reads may happen from other
// goroutines, so access is guarded.
type Timeline struct {
	mu       sync.RWMutex
	messages []chat.Message
	log      *zap.Logger
}

// New returns an empty timeline. A nil logger disables logging.
func New(log *zap.Logger) *Timeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Timeline{log: log}
}

// Append integrates one message into the sequence.
//
// Candidates strictly older than the current last entry are dropped:
// the transport delivers per-room messages in order, so an out-of-order
// candidate indicates an upstream bug, not something to reorder around.
// Ties on the timestamp are accepted.
func (t *Timeline) Append(msg chat.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.messages) == 0 {
		msg.IsFirstOfDay = true
		msg.ShowAvatar = msg.Kind == chat.KindReceivedOriginal
		t.messages = append(t.messages, msg)
		return
	}

	last := t.messages[len(t.messages)-1]
	if msg.Time().Before(last.Time()) {
		t.log.Warn("dropping out-of-order message",
			zap.String("candidate", msg.Timestamp),
			zap.String("last", last.Timestamp),
			zap.Int64("sender", msg.Sender.ID),
		)
		return
	}

	msg.IsFirstOfDay = !clock.SameDay(msg.Timestamp, last.Timestamp)
	msg.ShowAvatar = t.shouldShowAvatar(msg, last)

	// Timestamps render once per burst, on the newest entry: a new
	// message from the same sender inside the same minute hides the
	// previous entry's timestamp. This is the only retroactive
	// mutation the timeline performs.
	if msg.Sender.ID == last.Sender.ID && clock.SameMinute(msg.Timestamp, last.Timestamp) {
		t.messages[len(t.messages)-1].ShowTimestamp = false
	}

	t.messages = append(t.messages, msg)
}

// shouldShowAvatar marks the sender's original-language bubble. Rapid
// consecutive bubbles from the same sender collapse to a single avatar.
func (t *Timeline) shouldShowAvatar(msg, last chat.Message) bool {
	if msg.Kind != chat.KindReceivedOriginal {
		return false
	}
	if last.Kind != chat.KindReceivedOriginal {
		return true
	}
	return !clock.SameMinute(msg.Timestamp, last.Timestamp)
}

// AppendAll applies Append to each message in order.
func (t *Timeline) AppendAll(msgs []chat.Message) {
	for _, msg := range msgs {
		t.Append(msg)
	}
}

// Messages returns a copy of the ordered sequence.
func (t *Timeline) Messages() []chat.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	copied := make([]chat.Message, len(t.messages))
	copy(copied, t.messages)
	return copied
}

// Len reports the number of entries.
func (t *Timeline) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}

// Last returns the newest entry, if any.
func (t *Timeline) Last() (chat.Message, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.messages) == 0 {
		return chat.Message{}, false
	}
	return t.messages[len(t.messages)-1], true
}

// LastTimestamp is the backfill cursor: the newest entry's timestamp,
// or the present moment when the timeline is empty.
func (t *Timeline) LastTimestamp() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.messages) == 0 {
		return clock.Now()
	}
	return t.messages[len(t.messages)-1].Timestamp
}
