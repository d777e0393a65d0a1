package nodes

import "sync"

// Notifier fans out "something changed" signals to subscribers without
// ever blocking the caller.
type Notifier struct {
	subscribers map[chan struct{}]struct{}
	mu          sync.RWMutex
}

// NewNotifier creates a new Notifier
func NewNotifier() *Notifier {
	return &Notifier{
		subscribers: make(map[chan struct{}]struct{}),
	}
}

// Subscribe adds a new subscriber that will be notified on registry changes
func (n *Notifier) Subscribe() chan struct{} {
	n.mu.Lock()
	defer n.mu.Unlock()
	ch := make(chan struct{}, 1)
	n.subscribers[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a subscriber
func (n *Notifier) Unsubscribe(ch chan struct{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.subscribers[ch]; !ok {
		return
	}
	delete(n.subscribers, ch)
	close(ch)
}

// Notify triggers all subscribers about a change
func (n *Notifier) Notify() {
	n.mu.RLock()
	defer n.mu.RUnlock()
	for ch := range n.subscribers {
		select {
		case ch <- struct{}{}:
		default:
			// Channel already has a pending notification, skip
		}
	}
}
