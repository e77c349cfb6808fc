package eventloop

import (
	"reflect"
	"time"
)

// futureOptions is the option set a future was created with. It determines
// which sub-objects the underlying state carries and which operations the
// handle exposes. The set is resolved once at construction; it is part of
// the handle's contract, not runtime configuration.
type futureOptions struct {
	executor       Executor
	shared         bool
	continuable    bool
	stoppable      bool
	deferred       bool
	alwaysDeferred bool
	join           bool
}

// AnyFuture is the type-erased view of a future handle, implemented by every
// [Future] and by the [WhenAll]/[WhenAny] proxy futures. It is what the
// continuation dispatcher and the combinators consume when the element types
// are heterogeneous.
//
// Only this package implements AnyFuture.
type AnyFuture interface {
	// Valid reports whether the handle refers to a state.
	Valid() bool
	// IsReady reports whether the state has settled.
	IsReady() bool
	// Wait blocks until ready. Fails on an invalid handle.
	Wait() error
	// WaitFor blocks until ready or the duration elapses.
	WaitFor(d time.Duration) (WaitStatus, error)
	// WaitUntil blocks until ready or the deadline passes.
	WaitUntil(deadline time.Time) (WaitStatus, error)
	// RequestStop requests cooperative cancellation if the future carries a
	// stop source; otherwise it reports false. Fails on an invalid handle.
	RequestStop() (bool, error)

	// getAny blocks until ready and returns the value without consuming it.
	getAny() (any, error)
	// valueType returns the static value type. Must be callable on a zero
	// (nil-pointer) receiver: the dispatcher walks types, not values.
	valueType() reflect.Type
	// attachContinuation arranges for fn to run (posted on ex) once the
	// state is ready, through the continuation source when one exists and
	// through a deferred poll otherwise.
	attachContinuation(ex Executor, fn func())
	// continuationExecutor is the executor continuations default to.
	continuationExecutor() Executor
	// uniqueStopSource returns the stop source a derived continuation
	// inherits: non-nil only for stoppable, non-shared handles.
	uniqueStopSource() *StopSource
	// isAlwaysDeferred reports whether the handle is an always-deferred
	// future, whose continuations are pulled rather than pushed.
	isAlwaysDeferred() bool
}

// readyNotifier is the readiness-notification hook the disjunction proxies
// wait on. Concrete futures implement it over their operation state's
// waiter list; the combinator proxies deliberately do not (a proxy is never
// a combinator child — the constructors take concrete futures), and a
// non-notifying child degrades to paced re-checking.
type readyNotifier interface {
	// onReadyChan registers a one-shot readiness send on ch. Already-ready
	// states send immediately and report registered=false.
	onReadyChan(ch chan<- struct{}) (cancel func(), registered bool)
}

// Future is a handle to a value that is, or will be, produced by a task.
//
// A Future wraps one of five representations (see variantState): ready
// futures created from a value carry no synchronisation at all, deferred
// futures awaited exactly once keep their state in place, and only sharing
// or timed waiting forces a heap-shared state.
//
// Handles are single-owner unless created shared (via [Future.Share]):
// methods on one Future must not race with methods on the same Future from
// another goroutine, though distinct handles to a shared state may be used
// concurrently.
//
// Dropping a handle is explicit in Go: call [Future.Close]. For a unique
// stoppable future Close requests stop and then joins; for shared futures
// the join happens when the last handle closes.
type Future[T any] struct {
	variant variantState[T]
	opts    futureOptions
}

// MakeReadyFuture returns a future that is already ready with v.
// The handle carries a bare value slot; no shared state is allocated.
func MakeReadyFuture[T any](v T) *Future[T] {
	f := &Future[T]{}
	f.opts.join = true
	f.variant.initDirect(v, nil)
	return f
}

// MakeFailedFuture returns a future that is already ready with err.
func MakeFailedFuture[T any](err error) *Future[T] {
	f := &Future[T]{}
	f.opts.join = true
	var zero T
	f.variant.initDirect(zero, err)
	return f
}

// newFutureFromState wraps a heap operation state in a handle.
func newFutureFromState[T any](st *OperationState[T], opts futureOptions) *Future[T] {
	f := &Future[T]{opts: opts}
	f.variant.initSharedOp(st)
	return f
}

// newDeferredFuture builds an always-deferred future whose state lives
// inline in the handle. The bound task runs on first wait.
func newDeferredFuture[T any](cfg opStateConfig[T], opts futureOptions) *Future[T] {
	f := &Future[T]{opts: opts}
	f.variant.initInline(cfg)
	return f
}

// Valid reports whether this handle refers to a state. It becomes false
// after Get on a non-shared future, after Share, and after Close.
func (f *Future[T]) Valid() bool {
	return f != nil && f.variant.valid()
}

// IsReady reports whether the state has settled. Invalid handles report
// false.
func (f *Future[T]) IsReady() bool {
	return f != nil && f.variant.isReady()
}

// Wait blocks until the state is ready. On a deferred future this submits
// the bound task first. Returns [FutureUninitialisedError] on an invalid
// handle.
func (f *Future[T]) Wait() error {
	if !f.Valid() {
		return &FutureUninitialisedError{}
	}
	return f.variant.wait()
}

// WaitFor blocks until ready or d elapses. See [Future.WaitUntil].
func (f *Future[T]) WaitFor(d time.Duration) (WaitStatus, error) {
	return f.WaitUntil(time.Now().Add(d))
}

// WaitUntil blocks until ready or the deadline passes. A timed wait on an
// inline (always-deferred) state first promotes it to a shared state: the
// wait may time out with work still outstanding, and the handle must remain
// movable afterwards.
func (f *Future[T]) WaitUntil(deadline time.Time) (WaitStatus, error) {
	if !f.Valid() {
		return WaitTimeout, &FutureUninitialisedError{}
	}
	return f.variant.waitUntil(deadline)
}

// Get blocks until ready, then returns the value or the failure the
// producer stored. On a non-shared future the value is moved out and the
// handle becomes invalid; on a shared future the stored value is returned
// (by shallow copy) and the handle stays valid.
func (f *Future[T]) Get() (T, error) {
	if !f.Valid() {
		var zero T
		return zero, &FutureUninitialisedError{}
	}
	if f.opts.shared {
		return f.variant.get(false)
	}
	v, err := f.variant.get(true)
	f.variant.clear()
	return v, err
}

// Err returns the stored failure without blocking: nil unless the state is
// ready and failed. Invalid handles return [FutureUninitialisedError].
func (f *Future[T]) Err() error {
	if !f.Valid() {
		return &FutureUninitialisedError{}
	}
	if st := f.variant.state(); st != nil {
		return st.Err()
	}
	if !f.variant.isReady() {
		return nil
	}
	_, err := f.variant.get(false)
	return err
}

// Share consumes this handle and returns a shared one guaranteeing
// multi-consumer semantics: the new handle may be Cloned, and Get no longer
// consumes. The original handle becomes invalid.
func (f *Future[T]) Share() (*Future[T], error) {
	if !f.Valid() {
		return nil, &FutureUninitialisedError{}
	}
	f.variant.promoteDirectToShared()
	if err := f.variant.promoteInlineToShared(); err != nil {
		return nil, err
	}
	nf := &Future[T]{opts: f.opts}
	nf.opts.shared = true
	if err := nf.variant.moveFrom(&f.variant); err != nil {
		return nil, err
	}
	return nf, nil
}

// Clone returns an additional handle observing the same state. Only shared
// futures may be cloned; cloning a single-owner handle fails with
// [InvalidStateForOperationError].
func (f *Future[T]) Clone() (*Future[T], error) {
	nf := &Future[T]{opts: f.opts}
	if err := nf.variant.copyFrom(&f.variant); err != nil {
		return nil, err
	}
	return nf, nil
}

// RequestStop requests cooperative cancellation. Returns true exactly once
// across every handle and source sharing the flag. Futures without a stop
// source report false. Fails on an invalid handle.
func (f *Future[T]) RequestStop() (bool, error) {
	if !f.Valid() {
		return false, &FutureUninitialisedError{}
	}
	st := f.variant.state()
	if st == nil || st.StopSource() == nil {
		return false, nil
	}
	return st.StopSource().RequestStop(), nil
}

// StopSource returns the stop source attached to this future's state.
// Fails with [InvalidStateForOperationError] when the future is not
// stoppable (including ready-value futures, which carry no state at all).
func (f *Future[T]) StopSource() (*StopSource, error) {
	if !f.Valid() {
		return nil, &FutureUninitialisedError{}
	}
	st := f.variant.state()
	if st == nil || st.StopSource() == nil {
		return nil, &InvalidStateForOperationError{
			Message: "future: no stop source for this state",
		}
	}
	return st.StopSource(), nil
}

// StopToken returns a token observing this future's stop source. See
// [Future.StopSource] for the failure cases.
func (f *Future[T]) StopToken() (StopToken, error) {
	src, err := f.StopSource()
	if err != nil {
		return StopToken{}, err
	}
	return src.Token(), nil
}

// Detach clears the join-on-close flag: Close will drop the handle without
// waiting for outstanding work.
func (f *Future[T]) Detach() {
	f.opts.join = false
}

// Close drops this handle. For a joining handle whose work is in progress,
// Close blocks until the state is ready; a unique stoppable future requests
// stop first. A deferred state whose task was never submitted is discarded
// without running it. Shared handles join only when the last one closes.
// Close on an invalid handle is a no-op.
func (f *Future[T]) Close() error {
	if !f.Valid() {
		return nil
	}
	if f.variant.refs != nil && f.variant.refs.Add(-1) > 0 {
		f.variant.clear()
		return nil
	}
	st := f.variant.state()
	if st != nil && !st.IsReady() {
		if st.task != nil && !st.deferredPosted.Load() {
			// Deferred work that never started is abandoned, not run.
			if cs := st.ContinuationSource(); cs != nil {
				cs.requestSkip()
			}
		} else if f.opts.join {
			if f.opts.stoppable && !f.opts.shared {
				if src := st.StopSource(); src != nil {
					src.RequestStop()
				}
			}
			st.Wait()
		}
	}
	f.variant.clear()
	return nil
}

// --- AnyFuture plumbing ---

func (f *Future[T]) getAny() (any, error) {
	if !f.Valid() {
		return nil, &FutureUninitialisedError{}
	}
	v, err := f.variant.get(false)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// valueType is callable on a nil receiver: the dispatcher traverses nested
// future types statically via zero values.
func (f *Future[T]) valueType() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

func (f *Future[T]) attachContinuation(ex Executor, fn func()) {
	st := f.variant.state()
	if st == nil {
		// Ready-value variants have no continuation source; the work can
		// run immediately.
		postOrRun(ex, fn)
		return
	}
	if cs := st.ContinuationSource(); cs != nil {
		cs.emplace(ex, fn)
		return
	}
	deferPoll(ex, st.IsReady, fn)
}

func (f *Future[T]) continuationExecutor() Executor {
	if st := f.variant.state(); st != nil && st.Executor() != nil {
		return st.Executor()
	}
	return f.opts.executor
}

func (f *Future[T]) uniqueStopSource() *StopSource {
	if !f.opts.stoppable || f.opts.shared {
		return nil
	}
	if st := f.variant.state(); st != nil {
		return st.StopSource()
	}
	return nil
}

func (f *Future[T]) onReadyChan(ch chan<- struct{}) (func(), bool) {
	st := f.variant.state()
	if st == nil {
		if f.variant.valid() {
			select {
			case ch <- struct{}{}:
			default:
			}
		}
		return func() {}, false
	}
	id, registered := st.NotifyWhenReady(ch)
	if !registered {
		return func() {}, false
	}
	return func() { st.UnregisterNotify(id) }, true
}

func (f *Future[T]) isAlwaysDeferred() bool {
	return f.opts.alwaysDeferred
}

// kickDeferred submits a deferred state's bound task without blocking.
// Proxy futures use it so their observers can make progress on deferred
// children they never individually wait on.
func (f *Future[T]) kickDeferred() {
	st := f.variant.state()
	if st == nil || st.task == nil {
		return
	}
	if st.Executor() != nil {
		st.postDeferred()
		return
	}
	// No executor: the task would run inline, and kicking must not block.
	go st.postDeferred()
}

var (
	_ AnyFuture     = (*Future[any])(nil)
	_ readyNotifier = (*Future[any])(nil)
)
