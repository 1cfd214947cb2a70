package bus

import "sync"

// Broadcaster fans out every published Message to all current subscribers.
// Each subscriber has its own unbounded queue, so a slow consumer never
// blocks Publish or other consumers.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	closed bool
}

// NewBroadcaster creates an empty Broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[*Subscription]struct{})}
}

// Subscribe registers a new consumer. It only sees messages published after
// this call returns. Subscribing to a closed Broadcaster yields a
// subscription whose channel is already closed.
func (b *Broadcaster) Subscribe() *Subscription {
	s := &Subscription{
		b:      b,
		out:    make(chan Message),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	b.mu.Lock()
	if b.closed {
		s.finished = true
	} else {
		b.subs[s] = struct{}{}
	}
	b.mu.Unlock()

	go s.pump()
	return s
}

// Publish enqueues msg for every subscriber. It never blocks on consumers.
func (b *Broadcaster) Publish(msg Message) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for s := range b.subs {
		s.push(msg)
	}
}

// Len returns the number of active subscribers.
func (b *Broadcaster) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close ends the stream. Subscribers receive what was already queued, then
// their channels are closed.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for s := range b.subs {
		s.finish()
	}
	b.subs = nil
}

func (b *Broadcaster) remove(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, s)
}

// Subscription is one consumer's view of a Broadcaster.
type Subscription struct {
	b      *Broadcaster
	out    chan Message
	notify chan struct{}
	done   chan struct{}

	mu       sync.Mutex
	pending  []Message
	finished bool

	closeOnce sync.Once
}

// C returns the channel messages are delivered on, in publish order.
func (s *Subscription) C() <-chan Message {
	return s.out
}

// Close unsubscribes. Queued messages are discarded.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		s.b.remove(s)
		close(s.done)
	})
}

func (s *Subscription) push(msg Message) {
	s.mu.Lock()
	s.pending = append(s.pending, msg)
	s.mu.Unlock()
	s.signal()
}

func (s *Subscription) finish() {
	s.mu.Lock()
	s.finished = true
	s.mu.Unlock()
	s.signal()
}

func (s *Subscription) signal() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Subscription) pump() {
	defer close(s.out)
	for {
		s.mu.Lock()
		if len(s.pending) == 0 {
			finished := s.finished
			s.mu.Unlock()
			if finished {
				return
			}
			select {
			case <-s.notify:
			case <-s.done:
				return
			}
			continue
		}
		msg := s.pending[0]
		s.pending[0] = Message{}
		s.pending = s.pending[1:]
		s.mu.Unlock()

		select {
		case s.out <- msg:
		case <-s.done:
			return
		}
	}
}
