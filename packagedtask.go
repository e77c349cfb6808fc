package eventloop

import (
	"sync/atomic"
)

// PackagedTask is the writer end of a [Future]: it owns an operation state
// and fulfils it with a value or a failure. The reader end is obtained
// exactly once via [PackagedTask.Future].
//
// A PackagedTask must be finished explicitly: either settle it (SetValue,
// SetError, or Do) or Close it. Closing an unsettled task records a broken
// promise, which the linked future observes as [BrokenPromiseError]; Go has
// no deterministic destructors, so the producer-destroyed signal cannot be
// implicit.
//
// Thread Safety: all methods are safe for concurrent use.
type PackagedTask[T any] struct {
	state     *OperationState[T]
	retrieved atomic.Bool
	closed    atomic.Bool
}

// NewPackagedTask creates an unsettled task. The associated state is
// continuable, so futures derived from it can carry continuations.
func NewPackagedTask[T any]() *PackagedTask[T] {
	return &PackagedTask[T]{
		state: newOperationState(opStateConfig[T]{continuable: true}),
	}
}

// newPackagedTaskWith creates a task over a pre-configured state. Used by
// the launch layer to attach executors and stop sources.
func newPackagedTaskWith[T any](cfg opStateConfig[T]) *PackagedTask[T] {
	return &PackagedTask[T]{state: newOperationState(cfg)}
}

// Future returns the reader end. The second and later calls fail with
// [AlreadyRetrievedError]: a packaged task has exactly one unique consumer
// (use [Future.Share] for more).
func (p *PackagedTask[T]) Future() (*Future[T], error) {
	if !p.retrieved.CompareAndSwap(false, true) {
		return nil, &AlreadyRetrievedError{}
	}
	return newFutureFromState(p.state, futureOptions{
		continuable: true,
		join:        true,
		stoppable:   p.state.StopSource() != nil,
		executor:    p.state.Executor(),
	}), nil
}

// SetValue fulfils the task with v. Fails with [AlreadySatisfiedError] if
// the task already settled.
func (p *PackagedTask[T]) SetValue(v T) error {
	return p.state.SetValue(v)
}

// SetError fails the task with err. Fails with [AlreadySatisfiedError] if
// the task already settled.
func (p *PackagedTask[T]) SetError(err error) error {
	return p.state.SetError(err)
}

// Do invokes fn and routes its result or failure (including a panic) into
// the task, then runs any registered continuations. It is the packaged-task
// analogue of calling the wrapped callable.
func (p *PackagedTask[T]) Do(fn func() (T, error)) {
	p.state.Apply(func(StopToken) (T, error) { return fn() })
}

// Close drops the producer. If the task never settled, the linked future
// observes [BrokenPromiseError]. Idempotent.
func (p *PackagedTask[T]) Close() {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}
	p.state.SignalProducerDestroyed()
}
