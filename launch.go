package eventloop

import (
	"reflect"
	"time"
)

// Executor is the scheduling collaborator the futures core consumes. Post
// runs the callable as soon as the executor can; Defer runs it when the
// executor next has spare capacity, and is what readiness polling rides on.
//
// Implementations must be cheap to copy and comparable; two Executor values
// compare equal iff they dispatch to the same underlying scheduler. [Loop]
// and [GoExecutor] implement Executor.
type Executor interface {
	// Post schedules fn to run. Returns an error only when the executor
	// can no longer accept work (e.g. a terminated loop).
	Post(fn func()) error
	// Defer schedules fn to run when the executor is free.
	Defer(fn func()) error
}

// deferPollInterval paces readiness polling for parents that carry no
// continuation source, and GoExecutor's Defer.
const deferPollInterval = time.Millisecond

// GoExecutor schedules every callable on its own goroutine. It is the
// default executor for launches that do not name one: the goroutine-per-task
// policy Promisify already uses, without an event loop in the path.
type GoExecutor struct{}

// Post implements [Executor].
func (GoExecutor) Post(fn func()) error {
	go fn()
	return nil
}

// Defer implements [Executor]. The callable runs on its own goroutine after
// a short pause, so re-deferring poll loops do not spin.
func (GoExecutor) Defer(fn func()) error {
	go func() {
		time.Sleep(deferPollInterval)
		fn()
	}()
	return nil
}

// DefaultExecutor returns the executor used when a launch names none.
func DefaultExecutor() Executor {
	return GoExecutor{}
}

// Post implements [Executor] on the event loop: the callable is submitted
// to the external task queue.
func (l *Loop) Post(fn func()) error {
	return l.Submit(fn)
}

// Defer implements [Executor] on the event loop: the callable runs on the
// next poll interval, keeping readiness polls off the hot tick path.
func (l *Loop) Defer(fn func()) error {
	_, err := l.ScheduleTimer(deferPollInterval, fn)
	return err
}

// deferPoll arranges for fn to run once ready() reports true, re-deferring
// on ex between checks. If the executor refuses the work, a goroutine
// falls back to sleeping between checks so the continuation still fires.
func deferPoll(ex Executor, ready func() bool, fn func()) {
	fallback := func() {
		go func() {
			for !ready() {
				time.Sleep(deferPollInterval)
			}
			fn()
		}()
	}
	var poll func()
	poll = func() {
		if ready() {
			fn()
			return
		}
		if ex == nil || ex.Defer(poll) != nil {
			fallback()
		}
	}
	// The registration itself must not run the continuation inline; an
	// already-ready parent still posts.
	if ready() {
		postOrRun(ex, fn)
		return
	}
	if ex == nil || ex.Defer(poll) != nil {
		fallback()
	}
}

// Async launches fn on ex and returns an eager future observing its result.
// The returned future is continuable and joins on Close. A nil ex launches
// on [DefaultExecutor].
func Async[T any](ex Executor, fn func() (T, error)) *Future[T] {
	return launchAsync(ex, nil, func(StopToken) (T, error) { return fn() })
}

// AsyncStoppable launches fn with a fresh stop source; fn receives the
// source's token and is expected to consult it. Closing the returned future
// before readiness requests stop and then joins.
//
// Go cannot inspect a callable for a token parameter the way an
// overload-resolving language can, so stoppability is chosen by
// constructor rather than by signature sniffing.
func AsyncStoppable[T any](ex Executor, fn func(StopToken) (T, error)) *Future[T] {
	return launchAsync(ex, NewStopSource(), fn)
}

func launchAsync[T any](ex Executor, stop *StopSource, fn func(StopToken) (T, error)) *Future[T] {
	if ex == nil {
		ex = DefaultExecutor()
	}
	st := newOperationState(opStateConfig[T]{
		executor:    ex,
		continuable: true,
		stop:        stop,
	})
	postOrRun(ex, func() {
		start := time.Now()
		st.Apply(fn)
		recordFutureLatency(start)
	})
	return newFutureFromState(st, futureOptions{
		executor:    ex,
		continuable: true,
		stoppable:   stop != nil,
		join:        true,
	})
}

// AsyncDeferred returns an always-deferred future bound to fn: nothing is
// posted until the future is first awaited. With a nil ex the task runs
// inline on the waiting goroutine; with an executor it is posted there on
// first wait. The state lives inline in the handle until sharing or a
// timed wait forces promotion.
//
// Do not await a deferred future from the goroutine of the single-threaded
// executor it would post to; the wait would block the task behind itself.
func AsyncDeferred[T any](ex Executor, fn func() (T, error)) *Future[T] {
	return newDeferredFuture(opStateConfig[T]{
		executor:    ex,
		continuable: true,
		task: func(StopToken) (T, error) {
			start := time.Now()
			defer recordFutureLatency(start)
			return fn()
		},
	}, futureOptions{
		executor:       ex,
		continuable:    true,
		deferred:       true,
		alwaysDeferred: true,
		join:           true,
	})
}

// Then attaches a continuation to parent and returns the derived future.
//
// The continuation may take any of the unwrap shapes the dispatcher
// recognises (the parent whole, no input, the value, nested-future values,
// tuple/sequence explosions, disjunction splits), optionally prefixed with
// a [StopToken] parameter; a token-prefixed continuation makes the derived
// future stoppable. The result type parameter R must match the
// continuation's declared result (use any to accept whatever it returns).
//
// The continuation runs exactly once, on the parent's executor (see
// [ThenOn] to name a different one), after the parent settles. A parent
// failure propagates to the derived future without invoking value-unwrapping
// continuations. Then consumes the parent handle's ownership: treat the
// parent as moved-from.
//
// If the parent is always-deferred, the derived future is deferred too: the
// continuation is pulled by the first wait on it, after awaiting the parent.
func Then[R any](parent AnyFuture, continuation any) (*Future[R], error) {
	return thenOn[R](nil, parent, continuation)
}

// ThenOn is [Then] with an explicit executor for the continuation.
func ThenOn[R any](ex Executor, parent AnyFuture, continuation any) (*Future[R], error) {
	if ex == nil {
		return nil, &TypeError{Message: "future: ThenOn requires an executor"}
	}
	return thenOn[R](ex, parent, continuation)
}

func thenOn[R any](ex Executor, parent AnyFuture, continuation any) (*Future[R], error) {
	if parent == nil || !parent.Valid() {
		return nil, &NoStateError{}
	}
	fnVal := reflect.ValueOf(continuation)
	if !fnVal.IsValid() || fnVal.Kind() != reflect.Func {
		return nil, &TypeError{Message: "future: continuation must be a function"}
	}
	plan, err := selectUnwrap(reflect.TypeOf(parent), parent.valueType(), fnVal.Type())
	if err != nil {
		return nil, err
	}
	want := typeOf[R]()
	if plan.resultType != nil && want.Kind() != reflect.Interface && !plan.resultType.AssignableTo(want) {
		return nil, &TypeError{
			Message: "future: continuation result type does not match the requested future type",
		}
	}

	if ex == nil {
		ex = parent.continuationExecutor()
	}
	if ex == nil {
		ex = DefaultExecutor()
	}

	// A stoppable unique parent hands its stop source down; a token-prefixed
	// continuation gets a fresh one.
	stop := parent.uniqueStopSource()
	if stop == nil && plan.withToken {
		stop = NewStopSource()
	}

	invoke := func(tok StopToken) (R, error) {
		out, err := runUnwrap(plan, parent, fnVal, tok)
		if err != nil {
			var zero R
			return zero, err
		}
		return convertResult[R](out)
	}

	opts := futureOptions{
		executor:    ex,
		continuable: true,
		stoppable:   stop != nil,
		join:        true,
	}

	if parent.isAlwaysDeferred() {
		opts.deferred = true
		opts.alwaysDeferred = true
		return newDeferredFuture(opStateConfig[R]{
			executor:    ex,
			continuable: true,
			stop:        stop,
			task: func(tok StopToken) (R, error) {
				start := time.Now()
				defer recordFutureLatency(start)
				return invoke(tok)
			},
			parentWait: func() { _ = parent.Wait() },
		}, opts), nil
	}

	st := newOperationState(opStateConfig[R]{
		executor:    ex,
		continuable: true,
		stop:        stop,
	})
	parent.attachContinuation(ex, func() {
		start := time.Now()
		st.Apply(invoke)
		recordFutureLatency(start)
	})
	return newFutureFromState(st, opts), nil
}

// convertResult adapts the dispatcher's dynamic result to the requested
// future value type.
func convertResult[R any](out any) (R, error) {
	if out == nil {
		var zero R
		return zero, nil
	}
	if r, ok := out.(R); ok {
		return r, nil
	}
	rv := reflect.ValueOf(out)
	want := typeOf[R]()
	if rv.IsValid() && rv.Type().ConvertibleTo(want) {
		return rv.Convert(want).Interface().(R), nil
	}
	var zero R
	return zero, &TypeError{Message: "future: continuation result is not convertible to the future's value type"}
}
