package input

import (
	"sync"
	"sync/atomic"
)

type subscription[T any] struct {
	fn     func(T)
	active atomic.Bool
}

// Notifier is a list of subscribers for events of type T.
//
// Notify walks a snapshot of the subscribers taken under the lock, so handlers
// may subscribe or unsubscribe from inside a notification. A handler whose
// unsubscribe func has returned is never called again.
type Notifier[T any] struct {
	mu   sync.Mutex
	subs []*subscription[T]
}

// Subscribe registers fn and returns its unsubscribe func. The returned func
// is idempotent.
func (n *Notifier[T]) Subscribe(fn func(T)) func() {
	sub := &subscription[T]{fn: fn}
	sub.active.Store(true)

	n.mu.Lock()
	n.subs = append(n.subs, sub)
	n.mu.Unlock()

	return func() {
		if !sub.active.Swap(false) {
			return
		}
		n.mu.Lock()
		defer n.mu.Unlock()
		for i, s := range n.subs {
			if s == sub {
				n.subs = append(n.subs[:i:i], n.subs[i+1:]...)
				break
			}
		}
	}
}

func (n *Notifier[T]) Notify(v T) {
	n.mu.Lock()
	snapshot := n.subs
	n.mu.Unlock()

	for _, s := range snapshot {
		if s.active.Load() {
			s.fn(v)
		}
	}
}

// Len returns the number of active subscribers.
func (n *Notifier[T]) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs)
}
