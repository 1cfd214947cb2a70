package rtm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// EventKind tags a StreamEvent.
type EventKind int

const (
	EventOpened EventKind = iota
	EventFrame
	EventError
	EventClosed
)

func (k EventKind) String() string {
	switch k {
	case EventOpened:
		return "opened"
	case EventFrame:
		return "frame"
	case EventError:
		return "error"
	case EventClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// StreamEvent is one lifecycle notification or inbound frame. A stream posts
// them on a single ordered channel: Opened first, Closed last, after which
// the channel is closed.
type StreamEvent struct {
	Kind EventKind
	Data []byte
	Err  error
}

// Stream is one physical duplex connection.
type Stream interface {
	Events() <-chan StreamEvent
	Send(frame []byte) error
	Close() error
	IsOpen() bool
}

// Dialer opens a Stream against a handshake URL.
type Dialer interface {
	Dial(ctx context.Context, url string) (Stream, error)
}

// WebsocketDialer dials streams with gorilla/websocket.
type WebsocketDialer struct {
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
}

func (d WebsocketDialer) Dial(ctx context.Context, url string) (Stream, error) {
	handshake := d.HandshakeTimeout
	if handshake == 0 {
		handshake = 10 * time.Second
	}
	dialer := websocket.Dialer{HandshakeTimeout: handshake}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("ws dial failed: %w", err)
	}
	return newWSStream(conn, d.WriteTimeout), nil
}

type wsStream struct {
	conn         *websocket.Conn
	events       chan StreamEvent
	writeTimeout time.Duration

	writeMu   sync.Mutex
	open      atomic.Bool
	closing   atomic.Bool
	closeOnce sync.Once
}

func newWSStream(conn *websocket.Conn, writeTimeout time.Duration) *wsStream {
	if writeTimeout == 0 {
		writeTimeout = 10 * time.Second
	}
	s := &wsStream{
		conn:         conn,
		events:       make(chan StreamEvent, 64),
		writeTimeout: writeTimeout,
	}
	s.open.Store(true)
	go s.readPump()
	return s
}

func (s *wsStream) Events() <-chan StreamEvent { return s.events }

func (s *wsStream) IsOpen() bool { return s.open.Load() }

func (s *wsStream) Send(frame []byte) error {
	if !s.open.Load() {
		return ErrNotConnected
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("ws write: %w", err)
	}
	return nil
}

// Close sends a close frame and tears the connection down. The read pump
// then posts Closed and closes the event channel.
func (s *wsStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.closing.Store(true)
		s.open.Store(false)
		s.writeMu.Lock()
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		if werr := s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)); werr != nil && !errors.Is(werr, websocket.ErrCloseSent) {
			slog.Debug("rtm: close frame not sent", "error", werr)
		}
		s.writeMu.Unlock()
		err = s.conn.Close()
	})
	return err
}

func (s *wsStream) readPump() {
	defer close(s.events)
	s.events <- StreamEvent{Kind: EventOpened}
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.open.Store(false)
			if !s.closing.Load() && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.events <- StreamEvent{Kind: EventError, Err: err}
			}
			s.conn.Close()
			s.events <- StreamEvent{Kind: EventClosed, Err: err}
			return
		}
		s.events <- StreamEvent{Kind: EventFrame, Data: data}
	}
}
