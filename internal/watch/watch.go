// Package watch provides in-process change notification.
//
// A Hub fans every published value out to the subscribers whose match
// function accepts it. Subscribe returns a *Subscription; the owner must
// Close it when the view that needed it goes away or its query parameters
// change. After Close returns, the callback is never started again.
package watch

import "sync"

// Hub delivers published values of type T to matching subscribers.
// The zero value is not usable; use NewHub.
type Hub[T any] struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]*Subscription
	fns    map[uint64]func(T)
	match  map[uint64]func(T) bool
}

// NewHub creates an empty Hub.
func NewHub[T any]() *Hub[T] {
	return &Hub[T]{
		subs:  make(map[uint64]*Subscription),
		fns:   make(map[uint64]func(T)),
		match: make(map[uint64]func(T) bool),
	}
}

// Subscribe registers fn for every published value accepted by match.
// A nil match accepts everything.
func (h *Hub[T]) Subscribe(match func(T) bool, fn func(T)) *Subscription {
	if match == nil {
		match = func(T) bool { return true }
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	sub := &Subscription{}
	sub.release = func() {
		h.mu.Lock()
		delete(h.subs, id)
		delete(h.fns, id)
		delete(h.match, id)
		h.mu.Unlock()
	}
	h.subs[id] = sub
	h.fns[id] = fn
	h.match[id] = match
	return sub
}

// Publish delivers v to every matching subscriber, synchronously and in the
// caller's goroutine. Callbacks run without the hub lock held, so they may
// subscribe or close subscriptions themselves.
func (h *Hub[T]) Publish(v T) {
	type target struct {
		sub *Subscription
		fn  func(T)
	}

	h.mu.RLock()
	targets := make([]target, 0, len(h.subs))
	for id, sub := range h.subs {
		if h.match[id](v) {
			targets = append(targets, target{sub: sub, fn: h.fns[id]})
		}
	}
	h.mu.RUnlock()

	for _, t := range targets {
		t.sub.deliver(func() { t.fn(v) })
	}
}

// Len reports the number of open subscriptions.
func (h *Hub[T]) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Subscription is a disposable handle on a registered callback.
type Subscription struct {
	mu      sync.Mutex
	closed  bool
	release func()
	onClose []func()
}

// deliver runs fn unless the subscription has been closed. Holding mu for the
// duration serialises callbacks and makes Close wait for one in progress.
func (s *Subscription) deliver(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	fn()
}

// OnClose registers fn to run once when the subscription closes. Used to
// chain dependent subscriptions to one handle.
func (s *Subscription) OnClose(fn func()) {
	s.mu.Lock()
	closed := s.closed
	if !closed {
		s.onClose = append(s.onClose, fn)
	}
	s.mu.Unlock()
	if closed {
		fn()
	}
}

// Close releases the subscription. It is safe to call more than once but
// must not be called from inside the subscription's own callback.
func (s *Subscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	hooks := s.onClose
	s.onClose = nil
	s.mu.Unlock()

	if s.release != nil {
		s.release()
	}
	for _, fn := range hooks {
		fn()
	}
}

// Closed reports whether Close has been called.
func (s *Subscription) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Func wraps a plain release function as a Subscription, for sources that
// are not backed by a Hub.
func Func(release func()) *Subscription {
	return &Subscription{release: release}
}

// Sequence orders deliveries that come from reads which may overlap, such as
// the first read of a watch racing a refresh triggered by a publish. Take a
// ticket with Next before reading and hand the result to Deliver; a result
// whose read started before one already delivered is dropped, so the last
// value a subscriber sees is never older than one it saw before.
//
// The zero value is ready to use.
type Sequence struct {
	mu        sync.Mutex
	issued    uint64
	delivered uint64
}

// Next returns the ticket for a read about to start.
func (q *Sequence) Next() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.issued++
	return q.issued
}

// Deliver runs fn unless a later ticket has already been delivered, and
// reports whether it ran. Deliveries are serialised.
func (q *Sequence) Deliver(ticket uint64, fn func()) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if ticket <= q.delivered {
		return false
	}
	q.delivered = ticket
	fn()
	return true
}
