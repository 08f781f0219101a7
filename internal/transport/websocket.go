package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/nsong/lingotalk/internal/model/chat"
)

const eventBuffer = 32

// Client is the production Transport: a websocket for the live stream
// and plain HTTP for backfill, send and presence.
type Client struct {
	baseURL string
	viewer  chat.User
	dialer  *websocket.Dialer
	httpc   *http.Client
	log     *zap.Logger

	mu       sync.Mutex
	conn     *websocket.Conn
	roomCode string
}

// NewClient binds a transport client to a room server base URL, e.g.
// "http://localhost:8080". A nil logger disables logging.
func NewClient(baseURL string, viewer chat.User, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		viewer:  viewer,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 15 * time.Second,
		},
		httpc: &http.Client{Timeout: 15 * time.Second},
		log:   log,
	}
}

// CreateRoom provisions a fresh room and returns its id and code. This
// sits outside the Transport port: it happens before a session exists.
func (c *Client) CreateRoom(ctx context.Context) (chat.Room, error) {
	var room chat.Room
	if err := c.postJSON(ctx, "/api/rooms", nil, &room); err != nil {
		return chat.Room{}, fmt.Errorf("create room: %w", err)
	}
	return room, nil
}

// Open dials the room's live channel and starts streaming events.
func (c *Client) Open(ctx context.Context, roomCode string) (<-chan Event, error) {
	c.mu.Lock()
	c.roomCode = roomCode
	c.mu.Unlock()
	return c.dial(ctx)
}

// Reconnect re-dials the previously opened room on a fresh channel.
func (c *Client) Reconnect(ctx context.Context) (<-chan Event, error) {
	c.mu.Lock()
	code := c.roomCode
	c.mu.Unlock()
	if code == "" {
		return nil, ErrNotOpen
	}
	return c.dial(ctx)
}

func (c *Client) dial(ctx context.Context) (<-chan Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}

	wsURL, err := c.streamURL()
	if err != nil {
		return nil, err
	}

	conn, resp, err := c.dialer.DialContext(ctx, wsURL, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", wsURL, err)
	}
	c.conn = conn

	events := make(chan Event, eventBuffer)
	go c.readLoop(conn, events)
	c.log.Info("live channel open", zap.String("room", c.roomCode))
	return events, nil
}

// readLoop pushes inbound payloads onto the event channel until the
// connection dies, then emits a final loss event and closes the channel.
func (c *Client) readLoop(conn *websocket.Conn, events chan<- Event) {
	defer close(events)
	for {
		var payload Payload
		if err := conn.ReadJSON(&payload); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return
			}
			events <- Event{Err: fmt.Errorf("%w: %v", ErrConnectionLost, err)}
			return
		}
		events <- Event{Payload: payload}
	}
}

// FetchSince requests every room message newer than the cursor.
func (c *Client) FetchSince(ctx context.Context, timestamp string) ([]Payload, error) {
	code, err := c.openedRoom()
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/api/rooms/%s/messages?after=%s", c.baseURL, code, url.QueryEscape(timestamp))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch since %s: %w", timestamp, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch since %s: unexpected status %d", timestamp, resp.StatusCode)
	}

	var body struct {
		Messages []Payload `json:"messages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode backfill: %w", err)
	}
	return body.Messages, nil
}

// Send submits one message and reports acceptance. The broadcast copy
// arrives back through the live channel; nothing is inserted locally.
func (c *Client) Send(ctx context.Context, text string) (bool, error) {
	code, err := c.openedRoom()
	if err != nil {
		return false, err
	}

	payload := map[string]any{
		"text":   text,
		"sender": c.wireSender(),
	}
	var result struct {
		Created bool `json:"created"`
	}
	if err := c.postJSON(ctx, "/api/rooms/"+code+"/messages", payload, &result); err != nil {
		return false, fmt.Errorf("send: %w", err)
	}
	return result.Created, nil
}

// NotifyPresence announces the viewer joining or leaving. Best effort:
// the caller fires and forgets.
func (c *Client) NotifyPresence(ctx context.Context, kind PresenceKind) error {
	code, err := c.openedRoom()
	if err != nil {
		return err
	}

	payload := map[string]any{
		"kind":   string(kind),
		"sender": c.wireSender(),
	}
	return c.postJSON(ctx, "/api/rooms/"+code+"/presence", payload, nil)
}

// Close tears down the live channel.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Client) openedRoom() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.roomCode == "" {
		return "", ErrNotOpen
	}
	return c.roomCode, nil
}

func (c *Client) wireSender() Sender {
	return Sender{
		ID:        c.viewer.ID,
		Nickname:  c.viewer.Nickname,
		AvatarURL: c.viewer.AvatarURL,
		Language:  c.viewer.Language.Code(),
	}
}

// streamURL converts the HTTP base into the websocket endpoint for the
// bound room, carrying the viewer identity as query parameters.
func (c *Client) streamURL() (string, error) {
	parsed, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch parsed.Scheme {
	case "http":
		parsed.Scheme = "ws"
	case "https":
		parsed.Scheme = "wss"
	}
	parsed.Path = strings.TrimRight(parsed.Path, "/") + "/api/rooms/" + c.roomCode + "/ws"

	query := parsed.Query()
	query.Set("uid", fmt.Sprintf("%d", c.viewer.ID))
	query.Set("nickname", c.viewer.Nickname)
	query.Set("language", c.viewer.Language.Code())
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload, out any) error {
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("%s: unexpected status %d", path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
