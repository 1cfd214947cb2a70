package rtm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/slack-go/slack"
)

// fakeBackend is a scripted Backend.
type fakeBackend struct {
	mu         sync.Mutex
	handshakes []func() (Snapshot, error) // consumed in order; last one repeats
	calls      int
	openCalls  []string
	joinCalls  []string
	openIM     func(userID string) (IM, error)
	join       func(channelID string) (Channel, error)
}

func (b *fakeBackend) Handshake(ctx context.Context) (Snapshot, error) {
	b.mu.Lock()
	b.calls++
	var fn func() (Snapshot, error)
	if len(b.handshakes) > 0 {
		fn = b.handshakes[0]
		if len(b.handshakes) > 1 {
			b.handshakes = b.handshakes[1:]
		}
	}
	b.mu.Unlock()
	if fn == nil {
		return Snapshot{}, errors.New("no handshake scripted")
	}
	return fn()
}

func (b *fakeBackend) OpenIM(ctx context.Context, userID string) (IM, error) {
	b.mu.Lock()
	b.openCalls = append(b.openCalls, userID)
	fn := b.openIM
	b.mu.Unlock()
	if fn == nil {
		return IM{ID: "D-" + userID, User: userID, IsOpen: true}, nil
	}
	im, err := fn(userID)
	if err == nil && ctx.Err() != nil {
		return IM{}, ctx.Err()
	}
	return im, err
}

func (b *fakeBackend) JoinChannel(ctx context.Context, channelID string) (Channel, error) {
	b.mu.Lock()
	b.joinCalls = append(b.joinCalls, channelID)
	fn := b.join
	b.mu.Unlock()
	if fn == nil {
		return Channel{ID: channelID, IsMember: true}, nil
	}
	return fn(channelID)
}

func (b *fakeBackend) handshakeCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

func (b *fakeBackend) opens() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.openCalls...)
}

func ok(s Snapshot) func() (Snapshot, error) {
	return func() (Snapshot, error) { return s, nil }
}

func fail(err error) func() (Snapshot, error) {
	return func() (Snapshot, error) { return Snapshot{}, err }
}

// errBadToken is what a backend returns for a rejected token.
var errBadToken = classify(slack.SlackErrorResponse{Err: "invalid_auth"})

// fakeStream is an in-memory Stream.
type fakeStream struct {
	url    string
	events chan StreamEvent

	mu     sync.Mutex
	sent   [][]byte
	open   bool
	closed bool
}

func newFakeStream(url string) *fakeStream {
	s := &fakeStream{url: url, events: make(chan StreamEvent, 64), open: true}
	s.events <- StreamEvent{Kind: EventOpened}
	return s
}

func (s *fakeStream) Events() <-chan StreamEvent { return s.events }

func (s *fakeStream) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

func (s *fakeStream) Send(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return ErrNotConnected
	}
	s.sent = append(s.sent, frame)
	return nil
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = false
	if !s.closed {
		s.closed = true
		s.events <- StreamEvent{Kind: EventClosed}
		close(s.events)
	}
	return nil
}

// push delivers an inbound frame unless the stream is already closed.
func (s *fakeStream) push(frame string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.events <- StreamEvent{Kind: EventFrame, Data: []byte(frame)}
	}
}

func (s *fakeStream) frames() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.sent...)
}

type fakeDialer struct {
	mu      sync.Mutex
	streams []*fakeStream
	err     error
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	s := newFakeStream(url)
	d.streams = append(d.streams, s)
	return s, nil
}

func (d *fakeDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.streams)
}

func (d *fakeDialer) last() *fakeStream {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.streams) == 0 {
		return nil
	}
	return d.streams[len(d.streams)-1]
}

func testSnapshot() Snapshot {
	return Snapshot{
		URL:  "wss://example.test/rtm",
		Self: Self{ID: "UBOT", Name: "bot"},
		Users: []User{
			{ID: "U1", Name: "alice"},
			{ID: "U2", Name: "bob"},
			{ID: "U3", Name: "carol"},
		},
		Channels: []Channel{
			{ID: "C1", Name: "general", IsMember: true},
			{ID: "C2", Name: "random", IsMember: false},
		},
		IMs: []IM{
			{ID: "D1", User: "U1", IsOpen: true},
			{ID: "D3", User: "U3", IsOpen: false},
		},
	}
}

func fastOptions() Options {
	return Options{
		HandshakeAttempts: 10,
		HandshakeDelay:    time.Millisecond,
		ReconnectDelay:    10 * time.Millisecond,
	}
}

// eventually polls cond until it holds or a second passes.
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
