// Package presence tracks how many real-time clients are connected and
// pushes the count to all of them whenever it changes.
package presence

import (
	"sync"

	"github.com/google/uuid"

	"image-drop/internal/logging"
)

// Session is one admitted client connection.
type Session struct {
	ID string

	// updates holds at most one pending count. Only the broadcaster sends,
	// always while holding its mutex.
	updates chan int
	done    chan struct{}
}

// Updates delivers counts pushed to this session. A reader that falls
// behind skips intermediate values but always receives the latest one.
func (s *Session) Updates() <-chan int {
	return s.updates
}

// Done is closed when the session is disconnected.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// offer replaces any unread value with n.
func (s *Session) offer(n int) {
	select {
	case s.updates <- n:
		return
	default:
	}
	select {
	case <-s.updates:
	default:
	}
	s.updates <- n
}

// Broadcaster owns the process-wide presence count.
type Broadcaster struct {
	mu       sync.Mutex
	count    int
	sessions map[string]*Session
	observe  func(count int)
}

// Option configures a Broadcaster.
type Option func(*Broadcaster)

// WithObserver calls fn with every new count, inside the critical section.
// fn must not call back into the Broadcaster.
func WithObserver(fn func(count int)) Option {
	return func(b *Broadcaster) { b.observe = fn }
}

// NewBroadcaster returns a Broadcaster with a count of zero.
func NewBroadcaster(opts ...Option) *Broadcaster {
	b := &Broadcaster{sessions: make(map[string]*Session)}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Connect admits a new session and broadcasts the incremented count to
// every session, the new one included.
func (b *Broadcaster) Connect() *Session {
	s := &Session{
		ID:      uuid.New().String(),
		updates: make(chan int, 1),
		done:    make(chan struct{}),
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.sessions[s.ID] = s
	b.count++
	b.publishLocked()

	logging.Debug("presence_connected", logging.Fields{"session": s.ID, "count": b.count})
	return s
}

// Disconnect removes the session and broadcasts the decremented count to
// the remaining sessions. It returns the count after the call. Unknown or
// already removed ids leave the count unchanged.
func (b *Broadcaster) Disconnect(id string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.sessions[id]
	if !ok {
		logging.Debug("presence_unknown_disconnect", logging.Fields{"session": id, "count": b.count})
		return b.count
	}
	delete(b.sessions, id)
	close(s.done)

	b.count--
	if b.count < 0 {
		b.count = 0
	}
	b.publishLocked()

	logging.Debug("presence_disconnected", logging.Fields{"session": id, "count": b.count})
	return b.count
}

// Snapshot returns the current count without changing state.
func (b *Broadcaster) Snapshot() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

func (b *Broadcaster) publishLocked() {
	for _, s := range b.sessions {
		s.offer(b.count)
	}
	if b.observe != nil {
		b.observe(b.count)
	}
}
