package irrecoverable

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"runtime"
)

// Signaler delivers the first irrecoverable error of a component tree.
type Signaler struct {
	errChan chan error
}

func NewSignaler() (*Signaler, <-chan error) {
	errChan := make(chan error, 1)
	return &Signaler{errChan: errChan}, errChan
}

// Throw hands the error to whoever started the component and ends the
// calling goroutine. Only the first thrown error is delivered.
func (s *Signaler) Throw(err error) {
	defer runtime.Goexit()
	select {
	case s.errChan <- err:
	default:
	}
}

// SignalerContext is a context that can carry irrecoverable errors back to
// the owner of the component. It can only be created with WithSignaler.
type SignalerContext interface {
	context.Context
	Throw(err error)
	sealed()
}

type signalerKey struct{}

type signalerCtx struct {
	context.Context
	*Signaler
}

func (sc signalerCtx) sealed() {}

// WithSignaler derives a SignalerContext from parent. Errors thrown on it, or
// on any context derived from it, arrive on the returned channel.
func WithSignaler(parent context.Context) (SignalerContext, <-chan error) {
	sig, errChan := NewSignaler()
	return &signalerCtx{context.WithValue(parent, signalerKey{}, sig), sig}, errChan
}

// Throw throws err on the signaler ctx was derived from. Without one there
// is nobody to hand the error to and the process exits.
func Throw(ctx context.Context, err error) {
	if sc, ok := ctx.(SignalerContext); ok {
		sc.Throw(err)
	}
	if sig, ok := ctx.Value(signalerKey{}).(*Signaler); ok {
		sig.Throw(err)
	}
	log.Printf("unhandled irrecoverable error, no signaler in context: %v", err)
	os.Exit(1)
}

// Exception wraps an error that must never be handled as a benign
// condition. Components receiving an exception must crash.
type Exception struct {
	err error
}

func (e Exception) Error() string {
	return e.err.Error()
}

func (e Exception) Unwrap() error {
	return e.err
}

func NewException(err error) Exception {
	return Exception{err: err}
}

// NewExceptionf is NewException with fmt.Errorf formatting.
func NewExceptionf(msg string, args ...interface{}) Exception {
	return NewException(fmt.Errorf(msg, args...))
}

// IsException returns whether the error chain contains an exception.
func IsException(err error) bool {
	var e Exception
	return errors.As(err, &e)
}
