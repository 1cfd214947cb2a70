package rtm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coopco/slackbridge/internal/bus"
)

// State is the session lifecycle state.
type State int

const (
	StateStopped State = iota
	StateConnecting
	StateConnected
	StateClosing
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosing:
		return "closing"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// Options tunes the reconnect policy and keepalive.
type Options struct {
	// HandshakeAttempts bounds the fast retries within one connect sequence.
	HandshakeAttempts int
	// HandshakeDelay is the pause between fast retries.
	HandshakeDelay time.Duration
	// ReconnectDelay is the pause between failed connect sequences.
	ReconnectDelay time.Duration
	// KeepaliveInterval is the ping period; zero disables pings.
	KeepaliveInterval time.Duration
	// AutoJoin makes the resolver join channels the bot is not in.
	AutoJoin bool
}

// DefaultOptions returns 10 attempts 1s apart, a one minute reconnect delay
// and 30s pings.
func DefaultOptions() Options {
	return Options{
		HandshakeAttempts: 10,
		HandshakeDelay:    time.Second,
		ReconnectDelay:    time.Minute,
		KeepaliveInterval: 30 * time.Second,
	}
}

// Session keeps one logical attachment to the backend alive across any
// number of physical reconnects.
type Session struct {
	backend    Backend
	dialer     Dialer
	opts       Options
	dir        *Directory
	messages   *bus.Broadcaster
	resolver   *Resolver
	dispatcher *Dispatcher
	pinger     *Pinger
	frameID    atomic.Int64
	fatal      chan error

	mu        sync.Mutex
	state     State
	stream    Stream
	gen       uint64
	selfID    string
	reconnect bool
	cancel    context.CancelFunc
	lifeCtx   context.Context
	wg        sync.WaitGroup
}

// NewSession wires a session around backend and dialer.
func NewSession(backend Backend, dialer Dialer, opts Options) (*Session, error) {
	def := DefaultOptions()
	if opts.HandshakeAttempts <= 0 {
		opts.HandshakeAttempts = def.HandshakeAttempts
	}
	if opts.HandshakeDelay < 0 || opts.ReconnectDelay < 0 {
		return nil, errors.New("rtm: retry delays must not be negative")
	}

	s := &Session{
		backend:  backend,
		dialer:   dialer,
		opts:     opts,
		dir:      NewDirectory(),
		messages: bus.NewBroadcaster(),
		fatal:    make(chan error, 1),
	}
	s.resolver = NewResolver(s.dir, backend, opts.AutoJoin)
	s.dispatcher = NewDispatcher(s.dir, s.messages, s.SelfID)
	if opts.KeepaliveInterval > 0 {
		p, err := NewPinger(opts.KeepaliveInterval, s.ping)
		if err != nil {
			return nil, err
		}
		s.pinger = p
	}
	return s, nil
}

// Directory exposes the session's directory cache.
func (s *Session) Directory() *Directory { return s.dir }

// Subscribe returns a new subscription to inbound chat messages.
func (s *Session) Subscribe() *bus.Subscription { return s.messages.Subscribe() }

// Fatal delivers an error when a background reconnect hits invalid
// credentials and the session stops itself.
func (s *Session) Fatal() <-chan error { return s.fatal }

// SelfID returns the bot's own user id from the latest handshake.
func (s *Session) SelfID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selfID
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start enables reconnection and runs the connect sequence. It returns nil
// once connected, or once a transient failure has been handed to the
// background reconnect loop. Invalid credentials are returned as an error
// wrapping ErrInvalidAuth and leave the session stopped. Calling Start on a
// running session is a no-op.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateStopped {
		s.mu.Unlock()
		return nil
	}
	s.lifeCtx, s.cancel = context.WithCancel(context.Background())
	s.reconnect = true
	s.state = StateConnecting
	life := s.lifeCtx
	// Started under mu so a concurrent Stop always sees it running.
	if s.pinger != nil {
		s.pinger.Start()
	}
	s.mu.Unlock()

	connectCtx, cancel := context.WithCancel(ctx)
	stopAfter := context.AfterFunc(life, cancel)
	err := s.connect(connectCtx)
	stopAfter()
	cancel()

	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrInvalidAuth):
		s.halt()
		return err
	case life.Err() != nil:
		return ErrStopped
	case ctx.Err() != nil:
		s.halt()
		return ctx.Err()
	}

	slog.Error("rtm: unable to connect, will keep retrying", "delay", s.opts.ReconnectDelay, "error", err)
	s.mu.Lock()
	if !s.reconnect {
		s.mu.Unlock()
		return ErrStopped
	}
	s.state = StateReconnecting
	s.wg.Add(1)
	s.mu.Unlock()
	go func() {
		defer s.wg.Done()
		if sleep(life, s.opts.ReconnectDelay) == nil {
			s.reconnectLoop(life)
		}
	}()
	return nil
}

// Stop disables reconnection and closes the current connection, if any.
// It is safe to call at any time, including mid-connect, and more than once.
func (s *Session) Stop() error {
	s.mu.Lock()
	s.reconnect = false
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	stream := s.stream
	s.stream = nil
	if stream != nil {
		s.state = StateClosing
	}
	s.mu.Unlock()

	if stream != nil {
		if err := stream.Close(); err != nil {
			slog.Debug("rtm: error closing socket", "error", err)
		}
	}
	if s.pinger != nil {
		s.pinger.Stop()
	}
	s.wg.Wait()

	s.mu.Lock()
	s.state = StateStopped
	s.mu.Unlock()
	return nil
}

// Close stops the session and ends every subscription.
func (s *Session) Close() error {
	err := s.Stop()
	s.messages.Close()
	return err
}

// Send delivers text to destination. Delivery is best-effort: when the
// stream is not open, or the destination cannot be reached, the message is
// logged and dropped.
func (s *Session) Send(ctx context.Context, destination, text string) {
	s.mu.Lock()
	stream := s.stream
	s.mu.Unlock()

	if stream == nil || !stream.IsOpen() {
		slog.Error("rtm: socket not open, dropping message", "destination", destination, "message", text)
		return
	}
	if destination == "" {
		return
	}

	room, ok := s.resolver.Resolve(ctx, destination)
	if !ok {
		return
	}

	frame, err := encodeMessage(s.frameID.Add(1), room, text)
	if err != nil {
		slog.Error("rtm: failed to encode message", "error", err)
		return
	}
	slog.Debug("rtm: sending message", "destination", destination, "room", room)
	if err := stream.Send(frame); err != nil {
		slog.Error("rtm: failed to send message", "destination", destination, "error", err)
	}
}

// connect runs one connect sequence: handshake with fast retries, replace
// the directory, open the stream and wait for its open acknowledgment.
func (s *Session) connect(ctx context.Context) error {
	if !s.setState(StateConnecting) {
		return ErrStopped
	}

	snap, err := s.handshake(ctx)
	if err != nil {
		return err
	}
	s.dir.Replace(snap)

	// The URL is only valid for a short window, so dial right away.
	stream, err := s.dialer.Dial(ctx, snap.URL)
	if err != nil {
		return fmt.Errorf("rtm: open stream: %w", err)
	}

	select {
	case ev, ok := <-stream.Events():
		if !ok || ev.Kind != EventOpened {
			stream.Close()
			return fmt.Errorf("rtm: stream closed before open (%s)", ev.Kind)
		}
	case <-ctx.Done():
		stream.Close()
		return ctx.Err()
	}

	s.mu.Lock()
	if !s.reconnect {
		s.mu.Unlock()
		stream.Close()
		return ErrStopped
	}
	if s.stream != nil {
		s.stream.Close()
	}
	s.stream = stream
	s.selfID = snap.Self.ID
	s.gen++
	gen := s.gen
	s.state = StateConnected
	s.wg.Add(1)
	s.mu.Unlock()

	go s.run(stream, gen)

	slog.Info("rtm: socket connected", "self", snap.Self.ID,
		"users", len(snap.Users), "channels", len(snap.Channels), "ims", len(snap.IMs))
	return nil
}

func (s *Session) handshake(ctx context.Context) (Snapshot, error) {
	var lastErr error
	for attempt := 1; attempt <= s.opts.HandshakeAttempts; attempt++ {
		snap, err := s.backend.Handshake(ctx)
		if err == nil {
			return snap, nil
		}
		if errors.Is(err, ErrInvalidAuth) {
			slog.Error("rtm: invalid bot token", "error", err)
			return Snapshot{}, err
		}
		if ctx.Err() != nil {
			return Snapshot{}, ctx.Err()
		}
		lastErr = err
		slog.Warn("rtm: unable to start connection, retrying", "attempt", attempt, "error", err)
		if attempt < s.opts.HandshakeAttempts {
			if err := sleep(ctx, s.opts.HandshakeDelay); err != nil {
				return Snapshot{}, err
			}
		}
	}
	return Snapshot{}, fmt.Errorf("%w (%d): %v", ErrHandshakeExhausted, s.opts.HandshakeAttempts, lastErr)
}

// run is the inbound path for one connection: events are handled one at a
// time in arrival order until the stream closes.
func (s *Session) run(stream Stream, gen uint64) {
	defer s.wg.Done()
	for ev := range stream.Events() {
		switch ev.Kind {
		case EventFrame:
			s.dispatcher.Dispatch(ev.Data)
		case EventError:
			slog.Error("rtm: socket error", "error", ev.Err)
		case EventClosed:
			slog.Info("rtm: socket closed")
		}
	}
	s.onClosed(stream, gen)
}

func (s *Session) onClosed(stream Stream, gen uint64) {
	s.mu.Lock()
	if s.gen != gen || s.stream != stream {
		s.mu.Unlock()
		return
	}
	s.stream = nil
	stream.Close()
	if !s.reconnect {
		s.state = StateStopped
		s.mu.Unlock()
		return
	}
	s.state = StateReconnecting
	life := s.lifeCtx
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		s.reconnectLoop(life)
	}()
}

// reconnectLoop retries connect sequences every ReconnectDelay until one
// succeeds, the session stops, or the credentials turn out invalid.
func (s *Session) reconnectLoop(ctx context.Context) {
	for {
		err := s.connect(ctx)
		if err == nil {
			return
		}
		if errors.Is(err, ErrInvalidAuth) {
			s.halt()
			select {
			case s.fatal <- err:
			default:
			}
			return
		}
		if ctx.Err() != nil || errors.Is(err, ErrStopped) {
			return
		}
		slog.Error("rtm: reconnect failed, retrying later", "delay", s.opts.ReconnectDelay, "error", err)
		s.setState(StateReconnecting)
		if sleep(ctx, s.opts.ReconnectDelay) != nil {
			return
		}
	}
}

// halt moves to Stopped without waiting on background work; used from
// inside that work.
func (s *Session) halt() {
	s.mu.Lock()
	s.reconnect = false
	s.state = StateStopped
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()
	if s.pinger != nil {
		s.pinger.Stop()
	}
}

// setState records st unless reconnection has been disabled.
func (s *Session) setState(st State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.reconnect {
		return false
	}
	s.state = st
	return true
}

func (s *Session) ping() {
	s.mu.Lock()
	stream := s.stream
	s.mu.Unlock()
	if stream == nil || !stream.IsOpen() {
		return
	}
	frame, err := encodePing(s.frameID.Add(1))
	if err != nil {
		slog.Error("rtm: failed to encode ping", "error", err)
		return
	}
	if err := stream.Send(frame); err != nil {
		slog.Warn("rtm: ping failed", "error", err)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
