package module

// Notifier is a concurrency primitive for informing worker routines about the
// arrival of new work unit(s). Notifying an already notified Notifier is a
// no-op, so a single notification may stand for many units of work.
type Notifier struct {
	notifier chan struct{} // buffered channel with capacity 1
}

// NewNotifier instantiates a Notifier. Notifiers behave like channels in that
// they can be passed by value.
func NewNotifier() Notifier {
	return Notifier{make(chan struct{}, 1)}
}

// Notify sends a notification without blocking.
func (n Notifier) Notify() {
	select {
	case n.notifier <- struct{}{}:
	default:
	}
}

// Channel returns a channel for receiving notifications.
func (n Notifier) Channel() <-chan struct{} {
	return n.notifier
}
