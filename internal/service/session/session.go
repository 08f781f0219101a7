// Package session owns the live subscription to a room: it consumes
// the transport's inbound stream one event at a time, recovers gaps
// with timestamp-cursor backfill, and feeds everything through the
// timeline's single append path.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nsong/lingotalk/internal/history"
	"github.com/nsong/lingotalk/internal/model/chat"
	"github.com/nsong/lingotalk/internal/service/translate"
	"github.com/nsong/lingotalk/internal/timeline"
	"github.com/nsong/lingotalk/internal/transport"
)

var (
	ErrAlreadyJoined = errors.New("session already joined")
	ErrNotJoined     = errors.New("session not joined")
	ErrClosed        = errors.New("session closed")
)

const presenceTimeout = 3 * time.Second

// Config wires a session's collaborators.
type Config struct {
	Transport  transport.Transport
	Translator translate.Translator
	History    history.Store
	Viewer     chat.User
	Room       chat.Room
	Logger     *zap.Logger

	// OnUpdate, when set, fires after each timeline change, from the
	// consuming goroutine.
	OnUpdate func()
}

// Session is the protocol state machine for one room. A session is
// single-use: New, Join, then eventually Leave.
type Session struct {
	transport  transport.Transport
	translator translate.Translator
	historian  history.Store
	viewer     chat.User
	room       chat.Room
	tl         *timeline.Timeline
	log        *zap.Logger
	onUpdate   func()

	// lifetime bounds everything the session spawns; Leave cancels it
	// so in-flight backfill results are discarded.
	lifetime context.Context
	cancel   context.CancelFunc

	mu    sync.Mutex
	state State
	gen   int
	seen  map[int64]struct{}
}

// New builds an idle session. Nothing touches the network until Join.
func New(cfg Config) *Session {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("room", cfg.Room.Code))

	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		transport:  cfg.Transport,
		translator: cfg.Translator,
		historian:  cfg.History,
		viewer:     cfg.Viewer,
		room:       cfg.Room,
		tl:         timeline.New(log),
		log:        log,
		onUpdate:   cfg.OnUpdate,
		lifetime:   ctx,
		cancel:     cancel,
		state:      StateIdle,
		seen:       make(map[int64]struct{}),
	}
}

// Timeline exposes the ordered message sequence for rendering.
func (s *Session) Timeline() *timeline.Timeline {
	return s.tl
}

// State reports the current protocol position.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Join opens the live channel and starts consuming it. The join notice
// and the history record are best effort and never fail the join.
func (s *Session) Join(ctx context.Context) error {
	s.mu.Lock()
	next, ok := transition(s.state, eventJoin)
	if !ok {
		st := s.state
		s.mu.Unlock()
		if st == StateClosed {
			return ErrClosed
		}
		return ErrAlreadyJoined
	}
	s.state = next
	s.mu.Unlock()

	events, err := s.transport.Open(ctx, s.room.Code)
	if err != nil {
		s.apply(eventChannelLost)
		return fmt.Errorf("open live channel: %w", err)
	}

	go s.announceJoin()

	s.mu.Lock()
	s.state, _ = transition(s.state, eventChannelOpen)
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	go s.consume(events, gen)
	s.log.Info("subscribed", zap.Int64("viewer", s.viewer.ID))
	return nil
}

// announceJoin emits the presence notice and records the visit. Both
// are transient conveniences: failures are logged, never retried.
func (s *Session) announceJoin() {
	ctx, cancel := context.WithTimeout(s.lifetime, presenceTimeout)
	defer cancel()

	if err := s.transport.NotifyPresence(ctx, transport.PresenceJoined); err != nil {
		s.log.Warn("join notice failed", zap.Error(err))
	}

	if s.historian == nil {
		return
	}
	entry := history.Entry{
		RoomID: s.room.ID,
		Code:   s.room.Code,
		Title:  s.room.Title(),
		User:   s.viewer,
	}
	if err := s.historian.Insert(ctx, entry); err != nil {
		s.log.Warn("history insert failed", zap.Error(err))
	}
}

// Resume recovers a session whose screen re-entered the foreground, or
// kicks a stalled reconnect. It behaves exactly like a channel loss:
// backfill first, then a fresh live channel.
func (s *Session) Resume(ctx context.Context) error {
	s.mu.Lock()
	next, ok := transition(s.state, eventResume)
	if !ok {
		st := s.state
		s.mu.Unlock()
		if st == StateClosed {
			return ErrClosed
		}
		return ErrNotJoined
	}
	s.state = next
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	go s.recover(gen)
	return nil
}

// Send submits text synchronously and reports acceptance. The session
// never inserts the unacknowledged message locally: the broadcast copy
// comes back through the live channel like everyone else's.
func (s *Session) Send(ctx context.Context, text string) (bool, error) {
	switch s.State() {
	case StateClosed:
		return false, ErrClosed
	case StateIdle:
		return false, ErrNotJoined
	}

	ok, err := s.transport.Send(ctx, text)
	if err != nil {
		s.log.Warn("send failed", zap.Error(err))
		return false, err
	}
	return ok, nil
}

// Leave closes the session and releases the transport. A leave notice
// goes out best effort before teardown.
func (s *Session) Leave(ctx context.Context) error {
	s.mu.Lock()
	_, ok := transition(s.state, eventLeave)
	if !ok {
		s.mu.Unlock()
		return nil
	}
	s.state = StateClosed
	s.gen++
	s.mu.Unlock()

	notifyCtx, cancel := context.WithTimeout(ctx, presenceTimeout)
	if err := s.transport.NotifyPresence(notifyCtx, transport.PresenceLeft); err != nil {
		s.log.Warn("leave notice failed", zap.Error(err))
	}
	cancel()

	s.cancel()
	err := s.transport.Close()
	s.log.Info("session closed")
	return err
}

// consume is the single inbound consumer for one channel generation.
// Events apply to the timeline strictly in arrival order. Once the
// generation is superseded (Resume, Leave) remaining events are
// drained and dropped: the recovery path's backfill re-fetches them,
// and only one goroutine may feed the timeline at a time.
func (s *Session) consume(events <-chan transport.Event, gen int) {
	for ev := range events {
		if ev.Err != nil {
			s.log.Warn("live channel lost", zap.Error(ev.Err))
			break
		}
		if s.stale(gen) {
			continue
		}
		s.handlePayload(ev.Payload)
	}
	s.channelLost(gen)
}

// channelLost moves a subscribed session into recovery. Stale channel
// generations are ignored: a superseded consumer reports loss of a
// channel nobody cares about anymore.
func (s *Session) channelLost(gen int) {
	s.mu.Lock()
	if gen != s.gen || s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	next, ok := transition(s.state, eventChannelLost)
	if !ok {
		s.mu.Unlock()
		return
	}
	s.state = next
	s.mu.Unlock()

	if next == StateReconnecting {
		s.recover(gen)
	}
}

// recover backfills everything after the timeline's cursor, then opens
// a fresh live channel. Backfilled messages travel the identical append
// path as live ones, so the merge is inherently idempotent. A failed
// recovery leaves the session stalled in Reconnecting until Resume.
func (s *Session) recover(gen int) {
	cursor := s.tl.LastTimestamp()
	payloads, err := s.transport.FetchSince(s.lifetime, cursor)
	if err != nil {
		// Resubscribing without the gap reconciled would lose the
		// missed messages for good once live traffic advances the
		// cursor. Stay in Reconnecting; Resume re-kicks the recovery.
		s.log.Warn("backfill failed, session stalled", zap.String("cursor", cursor), zap.Error(err))
		return
	}
	if s.stale(gen) {
		return
	}
	s.log.Info("backfill applied", zap.String("cursor", cursor), zap.Int("count", len(payloads)))
	for _, payload := range payloads {
		s.handlePayload(payload)
	}

	if s.stale(gen) {
		return
	}
	events, err := s.transport.Reconnect(s.lifetime)
	if err != nil {
		s.log.Warn("reconnect failed, session stalled", zap.Error(err))
		return
	}

	s.mu.Lock()
	if gen != s.gen || s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state, _ = transition(s.state, eventChannelOpen)
	s.gen++
	newGen := s.gen
	s.mu.Unlock()

	go s.consume(events, newGen)
	s.log.Info("resubscribed")
}

func (s *Session) stale(gen int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return gen != s.gen || s.state == StateClosed
}

func (s *Session) handlePayload(payload transport.Payload) {
	msgs := s.decode(payload)
	if len(msgs) == 0 {
		return
	}
	s.tl.AppendAll(msgs)
	if s.onUpdate != nil {
		s.onUpdate()
	}
}

func (s *Session) apply(e event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if next, ok := transition(s.state, e); ok {
		s.state = next
	}
}
