package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nsong/lingotalk/internal/history"
	"github.com/nsong/lingotalk/internal/model/chat"
	"github.com/nsong/lingotalk/internal/service/session"
	"github.com/nsong/lingotalk/internal/service/translate"
	"github.com/nsong/lingotalk/internal/transport"
)

var (
	viewer = chat.User{ID: 9, Nickname: "june", Language: chat.English}
	mina   = transport.Sender{ID: 1, Nickname: "mina", Language: "ko"}
	room   = chat.Room{ID: 42, Code: "ABC123"}
)

// fakeTransport scripts the port for scenario tests.
type fakeTransport struct {
	mu         sync.Mutex
	events     chan transport.Event
	backfill   []transport.Payload
	fetchErr   error
	fetchGate  chan struct{}
	fetchCalls []string
	sendOK     bool
	sendErr    error
	presence   []transport.PresenceKind
	reconnects int
	closed     bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{sendOK: true}
}

func (f *fakeTransport) Open(_ context.Context, _ string) (<-chan transport.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = make(chan transport.Event, 16)
	return f.events, nil
}

func (f *fakeTransport) Reconnect(_ context.Context) (<-chan transport.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reconnects++
	f.events = make(chan transport.Event, 16)
	return f.events, nil
}

func (f *fakeTransport) FetchSince(ctx context.Context, timestamp string) ([]transport.Payload, error) {
	f.mu.Lock()
	f.fetchCalls = append(f.fetchCalls, timestamp)
	gate := f.fetchGate
	batch := append([]transport.Payload(nil), f.backfill...)
	fetchErr := f.fetchErr
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fetchErr != nil {
		return nil, fetchErr
	}
	return batch, nil
}

func (f *fakeTransport) Send(_ context.Context, _ string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sendOK, f.sendErr
}

func (f *fakeTransport) NotifyPresence(_ context.Context, kind transport.PresenceKind) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.presence = append(f.presence, kind)
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) emit(p transport.Payload) {
	f.mu.Lock()
	ch := f.events
	f.mu.Unlock()
	ch <- transport.Event{Payload: p}
}

// lose simulates transport failure: a final error event, then closure.
func (f *fakeTransport) lose() {
	f.mu.Lock()
	ch := f.events
	f.mu.Unlock()
	ch <- transport.Event{Err: transport.ErrConnectionLost}
	close(ch)
}

func (f *fakeTransport) fetchCursors() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.fetchCalls...)
}

func payload(id int64, text, ts string) transport.Payload {
	return transport.Payload{ID: id, Text: text, Sender: mina, Language: "ko", Timestamp: ts}
}

func koToEn(translatedText string) translate.Translator {
	return translate.Func(func(context.Context, string, string, string) (string, error) {
		return translatedText, nil
	})
}

func newSession(f *fakeTransport, tr translate.Translator, store history.Store) *session.Session {
	return session.New(session.Config{
		Transport:  f,
		Translator: tr,
		History:    store,
		Viewer:     viewer,
		Room:       room,
	})
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestJoinSubscribesAndAppendsBothVariants(t *testing.T) {
	ft := newFakeTransport()
	store := history.NewMemoryStore()
	s := newSession(ft, koToEn("hello"), store)

	if err := s.Join(context.Background()); err != nil {
		t.Fatalf("Join err: %v", err)
	}
	if s.State() != session.StateSubscribed {
		t.Fatalf("state = %s, want subscribed", s.State())
	}

	ft.emit(payload(1, "안녕하세요", "2021-02-18 10:00:00"))
	waitFor(t, "message append", func() bool { return s.Timeline().Len() == 2 })

	msgs := s.Timeline().Messages()
	if msgs[0].Text != "안녕하세요" || msgs[0].Kind != chat.KindReceivedOriginal {
		t.Fatalf("unexpected original record: %q %v", msgs[0].Text, msgs[0].Kind)
	}
	if msgs[1].Text != "hello" || msgs[1].Kind != chat.KindReceivedTranslated {
		t.Fatalf("unexpected translated record: %q %v", msgs[1].Text, msgs[1].Kind)
	}

	waitFor(t, "join notice", func() bool {
		ft.mu.Lock()
		defer ft.mu.Unlock()
		return len(ft.presence) == 1 && ft.presence[0] == transport.PresenceJoined
	})
	waitFor(t, "history entry", func() bool {
		entries, _ := store.List(context.Background())
		return len(entries) == 1
	})

	entries, _ := store.List(context.Background())
	if entries[0].Title != "ABC-123" {
		t.Fatalf("history title = %q, want ABC-123", entries[0].Title)
	}
}

func TestTranslationFailureDegradesToPlaceholder(t *testing.T) {
	ft := newFakeTransport()
	failing := translate.Func(func(context.Context, string, string, string) (string, error) {
		return "", errors.New("provider down")
	})
	s := newSession(ft, failing, nil)

	if err := s.Join(context.Background()); err != nil {
		t.Fatalf("Join err: %v", err)
	}
	ft.emit(payload(1, "안녕", "2021-02-18 10:00:00"))
	waitFor(t, "message append", func() bool { return s.Timeline().Len() == 2 })

	msgs := s.Timeline().Messages()
	if msgs[1].Text != translate.Placeholder {
		t.Fatalf("translated text = %q, want placeholder", msgs[1].Text)
	}
}

func TestSystemPayloadYieldsSingleRecord(t *testing.T) {
	ft := newFakeTransport()
	s := newSession(ft, translate.Noop{}, nil)

	if err := s.Join(context.Background()); err != nil {
		t.Fatalf("Join err: %v", err)
	}
	ft.emit(transport.Payload{ID: 5, Text: "mina joined", Timestamp: "2021-02-18 10:00:00", System: true})
	waitFor(t, "system append", func() bool { return s.Timeline().Len() == 1 })

	last, _ := s.Timeline().Last()
	if last.Kind != chat.KindSystem {
		t.Fatalf("kind = %v, want system", last.Kind)
	}
}

func TestReconnectBackfillsThroughSameAppendPath(t *testing.T) {
	ft := newFakeTransport()
	s := newSession(ft, koToEn("hi"), nil)

	if err := s.Join(context.Background()); err != nil {
		t.Fatalf("Join err: %v", err)
	}
	ft.emit(payload(1, "before the gap", "2021-02-18 10:00:00"))
	waitFor(t, "live append", func() bool { return s.Timeline().Len() == 2 })

	ft.mu.Lock()
	ft.backfill = []transport.Payload{
		payload(2, "missed a", "2021-02-18 10:00:01"),
		payload(3, "missed b", "2021-02-18 10:00:02"),
		payload(4, "missed c", "2021-02-18 10:00:03"),
	}
	ft.mu.Unlock()

	ft.lose()
	waitFor(t, "resubscribe", func() bool {
		return s.State() == session.StateSubscribed && s.Timeline().Len() == 8
	})

	cursors := ft.fetchCursors()
	if len(cursors) != 1 || cursors[0] != "2021-02-18 10:00:00" {
		t.Fatalf("backfill cursor = %v, want the last appended timestamp", cursors)
	}

	msgs := s.Timeline().Messages()
	wantIDs := []int64{1, 1, 2, 2, 3, 3, 4, 4}
	for i, want := range wantIDs {
		if msgs[i].ID == nil || *msgs[i].ID != want {
			t.Fatalf("position %d: unexpected id %v, want %d", i, msgs[i].ID, want)
		}
	}

	ft.mu.Lock()
	reconnects := ft.reconnects
	ft.mu.Unlock()
	if reconnects != 1 {
		t.Fatalf("reconnects = %d, want 1", reconnects)
	}
}

func TestBoundaryRedeliveryIsDroppedByID(t *testing.T) {
	ft := newFakeTransport()
	s := newSession(ft, translate.Noop{}, nil)

	if err := s.Join(context.Background()); err != nil {
		t.Fatalf("Join err: %v", err)
	}
	ft.emit(payload(7, "once", "2021-02-18 10:00:00"))
	waitFor(t, "first append", func() bool { return s.Timeline().Len() == 2 })

	// The backfill window is inclusive at the boundary; redelivery of
	// an already processed id must not duplicate timeline entries.
	ft.emit(payload(7, "once", "2021-02-18 10:00:00"))
	ft.emit(payload(8, "twice", "2021-02-18 10:00:01"))
	waitFor(t, "second append", func() bool { return s.Timeline().Len() == 4 })

	msgs := s.Timeline().Messages()
	if *msgs[2].ID != 8 {
		t.Fatalf("redelivered payload leaked into the timeline: id %d", *msgs[2].ID)
	}
}

func TestFailedBackfillStallsInsteadOfLosingTheGap(t *testing.T) {
	ft := newFakeTransport()
	s := newSession(ft, translate.Noop{}, nil)

	if err := s.Join(context.Background()); err != nil {
		t.Fatalf("Join err: %v", err)
	}
	ft.emit(payload(1, "before the gap", "2021-02-18 10:00:00"))
	waitFor(t, "live append", func() bool { return s.Timeline().Len() == 2 })

	// Message id=2 sits in the gap; while it cannot be fetched the
	// session must not pretend to be healthy again.
	ft.mu.Lock()
	ft.backfill = []transport.Payload{payload(2, "in the gap", "2021-02-18 10:00:01")}
	ft.fetchErr = errors.New("backfill endpoint down")
	ft.mu.Unlock()

	ft.lose()
	waitFor(t, "stalled recovery", func() bool { return len(ft.fetchCursors()) == 1 })
	time.Sleep(50 * time.Millisecond)

	if s.State() != session.StateReconnecting {
		t.Fatalf("state = %s, want reconnecting while the gap is unreconciled", s.State())
	}
	ft.mu.Lock()
	reconnects := ft.reconnects
	ft.mu.Unlock()
	if reconnects != 0 {
		t.Fatalf("reconnects = %d, want none before a successful backfill", reconnects)
	}

	// Resume re-kicks the recovery; with the endpoint back the gap is
	// reconciled before resubscribing.
	ft.mu.Lock()
	ft.fetchErr = nil
	ft.mu.Unlock()
	if err := s.Resume(context.Background()); err != nil {
		t.Fatalf("Resume err: %v", err)
	}
	waitFor(t, "reconciled resubscribe", func() bool {
		return s.State() == session.StateSubscribed && s.Timeline().Len() == 4
	})

	msgs := s.Timeline().Messages()
	if msgs[2].ID == nil || *msgs[2].ID != 2 {
		t.Fatalf("gap message missing, got %+v", msgs[2])
	}
}

func TestResumeRecoversLikeALoss(t *testing.T) {
	ft := newFakeTransport()
	s := newSession(ft, translate.Noop{}, nil)

	if err := s.Join(context.Background()); err != nil {
		t.Fatalf("Join err: %v", err)
	}
	if err := s.Resume(context.Background()); err != nil {
		t.Fatalf("Resume err: %v", err)
	}
	waitFor(t, "resubscribe", func() bool {
		ft.mu.Lock()
		defer ft.mu.Unlock()
		return ft.reconnects == 1 && len(ft.fetchCalls) == 1
	})
	waitFor(t, "subscribed", func() bool { return s.State() == session.StateSubscribed })
}

func TestSendDoesNotInsertLocally(t *testing.T) {
	ft := newFakeTransport()
	s := newSession(ft, translate.Noop{}, nil)

	if err := s.Join(context.Background()); err != nil {
		t.Fatalf("Join err: %v", err)
	}
	ok, err := s.Send(context.Background(), "hello room")
	if err != nil || !ok {
		t.Fatalf("Send = (%v, %v), want success", ok, err)
	}
	if got := s.Timeline().Len(); got != 0 {
		t.Fatalf("send must not insert locally, timeline has %d entries", got)
	}
}

func TestSendFailureSurfacedNotRetried(t *testing.T) {
	ft := newFakeTransport()
	ft.sendOK = false
	s := newSession(ft, translate.Noop{}, nil)

	if err := s.Join(context.Background()); err != nil {
		t.Fatalf("Join err: %v", err)
	}
	ok, err := s.Send(context.Background(), "nope")
	if err != nil {
		t.Fatalf("rejection is a result, not an error: %v", err)
	}
	if ok {
		t.Fatal("expected rejected send")
	}

	ft.mu.Lock()
	ft.sendErr = errors.New("wire broke")
	ft.mu.Unlock()
	if _, err := s.Send(context.Background(), "again"); err == nil {
		t.Fatal("expected transport error to surface")
	}
}

func TestSendBeforeJoin(t *testing.T) {
	s := newSession(newFakeTransport(), translate.Noop{}, nil)
	if _, err := s.Send(context.Background(), "early"); !errors.Is(err, session.ErrNotJoined) {
		t.Fatalf("err = %v, want ErrNotJoined", err)
	}
}

func TestJoinTwice(t *testing.T) {
	ft := newFakeTransport()
	s := newSession(ft, translate.Noop{}, nil)
	if err := s.Join(context.Background()); err != nil {
		t.Fatalf("Join err: %v", err)
	}
	if err := s.Join(context.Background()); !errors.Is(err, session.ErrAlreadyJoined) {
		t.Fatalf("second join err = %v, want ErrAlreadyJoined", err)
	}
}

func TestLeaveClosesAndAnnounces(t *testing.T) {
	ft := newFakeTransport()
	s := newSession(ft, translate.Noop{}, nil)

	if err := s.Join(context.Background()); err != nil {
		t.Fatalf("Join err: %v", err)
	}
	waitFor(t, "join notice", func() bool {
		ft.mu.Lock()
		defer ft.mu.Unlock()
		return len(ft.presence) == 1
	})
	if err := s.Leave(context.Background()); err != nil {
		t.Fatalf("Leave err: %v", err)
	}
	if s.State() != session.StateClosed {
		t.Fatalf("state = %s, want closed", s.State())
	}

	ft.mu.Lock()
	defer ft.mu.Unlock()
	if !ft.closed {
		t.Fatal("transport must be released")
	}
	if len(ft.presence) != 2 || ft.presence[1] != transport.PresenceLeft {
		t.Fatalf("presence = %v, want joined then left", ft.presence)
	}

	if err := s.Join(context.Background()); !errors.Is(err, session.ErrClosed) {
		t.Fatalf("join after leave err = %v, want ErrClosed", err)
	}
}

func TestLeaveDiscardsInFlightBackfill(t *testing.T) {
	ft := newFakeTransport()
	gate := make(chan struct{})
	ft.fetchGate = gate
	ft.backfill = []transport.Payload{payload(1, "late", "2021-02-18 10:00:00")}
	s := newSession(ft, translate.Noop{}, nil)

	if err := s.Join(context.Background()); err != nil {
		t.Fatalf("Join err: %v", err)
	}
	ft.lose()
	waitFor(t, "backfill request", func() bool { return len(ft.fetchCursors()) == 1 })

	if err := s.Leave(context.Background()); err != nil {
		t.Fatalf("Leave err: %v", err)
	}
	close(gate)

	// Give the discarded recovery a moment to misbehave if it would.
	time.Sleep(50 * time.Millisecond)
	if got := s.Timeline().Len(); got != 0 {
		t.Fatalf("in-flight backfill leaked %d entries into a closed session", got)
	}
	if s.State() != session.StateClosed {
		t.Fatalf("state = %s, want closed", s.State())
	}
}
