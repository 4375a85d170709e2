package component

import (
	"context"
	"sync"

	"go.uber.org/atomic"

	"github.com/finalitylabs/blocksync/module"
	"github.com/finalitylabs/blocksync/module/irrecoverable"
	"github.com/finalitylabs/blocksync/module/util"
)

// Component is started once with a signaler context and stops when that
// context is cancelled or an irrecoverable error is thrown.
type Component interface {
	module.ReadyDoneAware
	Start(irrecoverable.SignalerContext)
}

// ReadyFunc marks the calling worker as ready.
type ReadyFunc func()

// ComponentWorker is a long running routine of a component. It must call
// ready once it accepts work and return once ctx is done.
type ComponentWorker func(ctx irrecoverable.SignalerContext, ready ReadyFunc)

type ComponentManagerBuilder interface {
	AddWorker(ComponentWorker) ComponentManagerBuilder
	Build() *ComponentManager
}

type componentManagerBuilder struct {
	workers []ComponentWorker
}

func NewComponentManagerBuilder() ComponentManagerBuilder {
	return &componentManagerBuilder{}
}

// AddWorker is not safe for concurrent use.
func (b *componentManagerBuilder) AddWorker(worker ComponentWorker) ComponentManagerBuilder {
	b.workers = append(b.workers, worker)
	return b
}

func (b *componentManagerBuilder) Build() *ComponentManager {
	return &ComponentManager{
		started:        atomic.NewBool(false),
		ready:          make(chan struct{}),
		done:           make(chan struct{}),
		workersDone:    make(chan struct{}),
		shutdownSignal: make(chan struct{}),
		workers:        b.workers,
	}
}

var _ Component = (*ComponentManager)(nil)

// ComponentManager runs the workers of a component in parallel.
//
// Ready closes once every worker called its ReadyFunc, Done once every
// worker returned. An error thrown by any worker cancels the others and is
// passed on to the context given to Start.
type ComponentManager struct {
	started        *atomic.Bool
	ready          chan struct{}
	done           chan struct{}
	workersDone    chan struct{}
	shutdownSignal chan struct{}

	workers []ComponentWorker
}

// Start launches the workers. It panics when called twice.
func (c *ComponentManager) Start(parent irrecoverable.SignalerContext) {
	if !c.started.CompareAndSwap(false, true) {
		panic(module.ErrMultipleStartup)
	}

	ctx, cancel := context.WithCancel(parent)
	signalerCtx, errChan := irrecoverable.WithSignaler(ctx)

	go func() {
		<-ctx.Done()
		close(c.shutdownSignal)
	}()

	go func() {
		// the parent sees a thrown error before done closes
		defer func() {
			<-c.workersDone
			close(c.done)
		}()
		if err := util.WaitError(errChan, c.workersDone); err != nil {
			cancel()
			parent.Throw(err)
		}
	}()

	var ready, finished sync.WaitGroup
	ready.Add(len(c.workers))
	finished.Add(len(c.workers))
	for _, worker := range c.workers {
		go func(worker ComponentWorker) {
			defer finished.Done()
			var once sync.Once
			worker(signalerCtx, func() {
				once.Do(ready.Done)
			})
		}(worker)
	}

	go func() {
		ready.Wait()
		close(c.ready)
	}()
	go func() {
		finished.Wait()
		close(c.workersDone)
	}()
}

func (c *ComponentManager) Ready() <-chan struct{} {
	return c.ready
}

func (c *ComponentManager) Done() <-chan struct{} {
	return c.done
}

// ShutdownSignal closes as soon as shutdown begins, before the workers return.
func (c *ComponentManager) ShutdownSignal() <-chan struct{} {
	return c.shutdownSignal
}
