package util

import (
	"context"
	"sync"

	"github.com/finalitylabs/blocksync/module"
)

// AllReady returns a channel closed once every component is ready.
func AllReady(components ...module.ReadyDoneAware) <-chan struct{} {
	chans := make([]<-chan struct{}, 0, len(components))
	for _, c := range components {
		chans = append(chans, c.Ready())
	}
	return AllClosed(chans...)
}

// AllDone returns a channel closed once every component is done.
func AllDone(components ...module.ReadyDoneAware) <-chan struct{} {
	chans := make([]<-chan struct{}, 0, len(components))
	for _, c := range components {
		chans = append(chans, c.Done())
	}
	return AllClosed(chans...)
}

// AllClosed returns a channel closed once all given channels are closed.
func AllClosed(channels ...<-chan struct{}) <-chan struct{} {
	closed := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(len(channels))
	for _, ch := range channels {
		go func(ch <-chan struct{}) {
			defer wg.Done()
			<-ch
		}(ch)
	}
	go func() {
		wg.Wait()
		close(closed)
	}()
	return closed
}

// WaitClosed blocks until ch is closed or ctx is cancelled. A channel that
// is closed by the time of cancellation still counts as closed.
func WaitClosed(ctx context.Context, ch <-chan struct{}) error {
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		if CheckClosed(ch) {
			return nil
		}
		return ctx.Err()
	}
}

// CheckClosed reports whether ch is closed, without blocking.
func CheckClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// WaitError returns the first error from errChan, or nil once done is
// closed. An error racing with done is still returned.
func WaitError(errChan <-chan error, done <-chan struct{}) error {
	select {
	case err := <-errChan:
		return err
	case <-done:
	}
	select {
	case err := <-errChan:
		return err
	default:
		return nil
	}
}
