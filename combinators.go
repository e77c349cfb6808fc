package eventloop

import (
	"reflect"
	"sync/atomic"
	"time"
)

// WhenAnyIndexNone is the index reported by an empty disjunction: a
// well-defined "no children" sentinel, not an error.
const WhenAnyIndexNone = -1

// --- Tuples ---
//
// Fixed-arity heterogeneous values for conjunction results and tuple
// explosion. Go generics cannot express arbitrary-arity tuples, so the
// family is capped at four elements; wider conjunctions use the
// homogeneous sequence forms.

// Tuple2 is a pair.
type Tuple2[A, B any] struct {
	First  A
	Second B
}

func (t Tuple2[A, B]) tupleLen() int { return 2 }

func (t Tuple2[A, B]) tupleAt(i int) any {
	if i == 0 {
		return t.First
	}
	return t.Second
}

func (Tuple2[A, B]) tupleTypes() []reflect.Type {
	return []reflect.Type{typeOf[A](), typeOf[B]()}
}

// Tuple3 is a triple.
type Tuple3[A, B, C any] struct {
	First  A
	Second B
	Third  C
}

func (t Tuple3[A, B, C]) tupleLen() int { return 3 }

func (t Tuple3[A, B, C]) tupleAt(i int) any {
	switch i {
	case 0:
		return t.First
	case 1:
		return t.Second
	default:
		return t.Third
	}
}

func (Tuple3[A, B, C]) tupleTypes() []reflect.Type {
	return []reflect.Type{typeOf[A](), typeOf[B](), typeOf[C]()}
}

// Tuple4 is a quadruple.
type Tuple4[A, B, C, D any] struct {
	First  A
	Second B
	Third  C
	Fourth D
}

func (t Tuple4[A, B, C, D]) tupleLen() int { return 4 }

func (t Tuple4[A, B, C, D]) tupleAt(i int) any {
	switch i {
	case 0:
		return t.First
	case 1:
		return t.Second
	case 2:
		return t.Third
	default:
		return t.Fourth
	}
}

func (Tuple4[A, B, C, D]) tupleTypes() []reflect.Type {
	return []reflect.Type{typeOf[A](), typeOf[B](), typeOf[C](), typeOf[D]()}
}

// --- Conjunction (when_all) ---

// WhenAllFuture is the lazy conjunction proxy over a homogeneous sequence
// of futures. Its value is the sequence of children itself; readiness means
// every child is ready. No operation state is allocated: the proxy observes
// the children directly.
type WhenAllFuture[T any] struct {
	children []*Future[T]
	released bool
}

// WhenAll returns a conjunction over the given futures. An empty
// conjunction is valid and immediately ready with an empty sequence.
func WhenAll[T any](futures ...*Future[T]) *WhenAllFuture[T] {
	return &WhenAllFuture[T]{children: futures}
}

// WhenAllFuncs launches each callable via [Async] on ex and returns the
// conjunction of the resulting futures.
func WhenAllFuncs[T any](ex Executor, fns ...func() (T, error)) *WhenAllFuture[T] {
	futures := make([]*Future[T], len(fns))
	for i, fn := range fns {
		futures[i] = Async(ex, fn)
	}
	return WhenAll(futures...)
}

// And concatenates two conjunctions into one, flattening rather than
// nesting: the result observes both child sequences as a single sequence.
// Both operands are consumed.
func (w *WhenAllFuture[T]) And(other *WhenAllFuture[T]) *WhenAllFuture[T] {
	combined := &WhenAllFuture[T]{children: append(w.Release(), other.Release()...)}
	return combined
}

// AndFuture appends a single future to the conjunction, consuming both.
func (w *WhenAllFuture[T]) AndFuture(f *Future[T]) *WhenAllFuture[T] {
	return &WhenAllFuture[T]{children: append(w.Release(), f)}
}

// Valid reports whether every child is valid. An empty conjunction is valid.
func (w *WhenAllFuture[T]) Valid() bool {
	if w == nil || w.released {
		return false
	}
	for _, c := range w.children {
		if !c.Valid() {
			return false
		}
	}
	return true
}

// IsReady reports whether every child is ready.
func (w *WhenAllFuture[T]) IsReady() bool {
	if w == nil || w.released {
		return false
	}
	for _, c := range w.children {
		if !c.IsReady() {
			return false
		}
	}
	return true
}

// Wait blocks until every child is ready.
func (w *WhenAllFuture[T]) Wait() error {
	if w.released {
		return &FutureUninitialisedError{}
	}
	for _, c := range w.children {
		if err := c.Wait(); err != nil {
			return err
		}
	}
	return nil
}

// WaitFor blocks until every child is ready or d elapses.
func (w *WhenAllFuture[T]) WaitFor(d time.Duration) (WaitStatus, error) {
	return w.WaitUntil(time.Now().Add(d))
}

// WaitUntil waits on each child in turn with the remaining budget. It
// returns WaitReady iff every child became ready before the deadline.
func (w *WhenAllFuture[T]) WaitUntil(deadline time.Time) (WaitStatus, error) {
	if w.released {
		return WaitTimeout, &FutureUninitialisedError{}
	}
	for _, c := range w.children {
		status, err := c.WaitUntil(deadline)
		if err != nil {
			return status, err
		}
		if status != WaitReady {
			return WaitTimeout, nil
		}
	}
	return WaitReady, nil
}

// Get waits for every child and moves the sequence out, invalidating the
// proxy.
func (w *WhenAllFuture[T]) Get() ([]*Future[T], error) {
	if w.released {
		return nil, &FutureUninitialisedError{}
	}
	if err := w.Wait(); err != nil {
		return nil, err
	}
	return w.Release(), nil
}

// Release moves the underlying sequence out without waiting.
func (w *WhenAllFuture[T]) Release() []*Future[T] {
	children := w.children
	w.children = nil
	w.released = true
	return children
}

// RequestStop forwards to every child and reports the OR of their results.
func (w *WhenAllFuture[T]) RequestStop() (bool, error) {
	if w.released {
		return false, &FutureUninitialisedError{}
	}
	requested := false
	for _, c := range w.children {
		ok, err := c.RequestStop()
		if err != nil {
			return requested, err
		}
		requested = requested || ok
	}
	return requested, nil
}

func (w *WhenAllFuture[T]) getAny() (any, error) {
	if err := w.Wait(); err != nil {
		return nil, err
	}
	return w.children, nil
}

func (w *WhenAllFuture[T]) valueType() reflect.Type {
	return typeOf[[]*Future[T]]()
}

func (w *WhenAllFuture[T]) attachContinuation(ex Executor, fn func()) {
	kickDeferred(w.children)
	deferPoll(ex, w.IsReady, fn)
}

func (w *WhenAllFuture[T]) continuationExecutor() Executor {
	return firstExecutor(w.children)
}

func (w *WhenAllFuture[T]) uniqueStopSource() *StopSource { return nil }

func (w *WhenAllFuture[T]) isAlwaysDeferred() bool { return anyAlwaysDeferred(w.children) }

var _ AnyFuture = (*WhenAllFuture[int])(nil)

// WhenAllTupleFuture is the conjunction proxy over a heterogeneous tuple of
// futures, produced by [WhenAll2], [WhenAll3], and [WhenAll4]. Its value
// type V is the tuple of the child handles.
type WhenAllTupleFuture[V any] struct {
	children []AnyFuture
	pack     func([]AnyFuture) V
	released bool
}

// WhenAll2 returns the conjunction of two differently-typed futures.
func WhenAll2[A, B any](a *Future[A], b *Future[B]) *WhenAllTupleFuture[Tuple2[*Future[A], *Future[B]]] {
	return &WhenAllTupleFuture[Tuple2[*Future[A], *Future[B]]]{
		children: []AnyFuture{a, b},
		pack: func(cs []AnyFuture) Tuple2[*Future[A], *Future[B]] {
			return Tuple2[*Future[A], *Future[B]]{cs[0].(*Future[A]), cs[1].(*Future[B])}
		},
	}
}

// WhenAll3 returns the conjunction of three differently-typed futures.
func WhenAll3[A, B, C any](a *Future[A], b *Future[B], c *Future[C]) *WhenAllTupleFuture[Tuple3[*Future[A], *Future[B], *Future[C]]] {
	return &WhenAllTupleFuture[Tuple3[*Future[A], *Future[B], *Future[C]]]{
		children: []AnyFuture{a, b, c},
		pack: func(cs []AnyFuture) Tuple3[*Future[A], *Future[B], *Future[C]] {
			return Tuple3[*Future[A], *Future[B], *Future[C]]{cs[0].(*Future[A]), cs[1].(*Future[B]), cs[2].(*Future[C])}
		},
	}
}

// WhenAll4 returns the conjunction of four differently-typed futures.
func WhenAll4[A, B, C, D any](a *Future[A], b *Future[B], c *Future[C], d *Future[D]) *WhenAllTupleFuture[Tuple4[*Future[A], *Future[B], *Future[C], *Future[D]]] {
	return &WhenAllTupleFuture[Tuple4[*Future[A], *Future[B], *Future[C], *Future[D]]]{
		children: []AnyFuture{a, b, c, d},
		pack: func(cs []AnyFuture) Tuple4[*Future[A], *Future[B], *Future[C], *Future[D]] {
			return Tuple4[*Future[A], *Future[B], *Future[C], *Future[D]]{
				cs[0].(*Future[A]), cs[1].(*Future[B]), cs[2].(*Future[C]), cs[3].(*Future[D]),
			}
		},
	}
}

// Valid reports whether every child is valid.
func (w *WhenAllTupleFuture[V]) Valid() bool {
	if w == nil || w.released {
		return false
	}
	for _, c := range w.children {
		if !c.Valid() {
			return false
		}
	}
	return true
}

// IsReady reports whether every child is ready.
func (w *WhenAllTupleFuture[V]) IsReady() bool {
	if w == nil || w.released {
		return false
	}
	for _, c := range w.children {
		if !c.IsReady() {
			return false
		}
	}
	return true
}

// Wait blocks until every child is ready.
func (w *WhenAllTupleFuture[V]) Wait() error {
	if w.released {
		return &FutureUninitialisedError{}
	}
	for _, c := range w.children {
		if err := c.Wait(); err != nil {
			return err
		}
	}
	return nil
}

// WaitFor blocks until every child is ready or d elapses.
func (w *WhenAllTupleFuture[V]) WaitFor(d time.Duration) (WaitStatus, error) {
	return w.WaitUntil(time.Now().Add(d))
}

// WaitUntil waits on each child in turn with the remaining budget.
func (w *WhenAllTupleFuture[V]) WaitUntil(deadline time.Time) (WaitStatus, error) {
	if w.released {
		return WaitTimeout, &FutureUninitialisedError{}
	}
	for _, c := range w.children {
		status, err := c.WaitUntil(deadline)
		if err != nil {
			return status, err
		}
		if status != WaitReady {
			return WaitTimeout, nil
		}
	}
	return WaitReady, nil
}

// Get waits for every child and moves the tuple out, invalidating the proxy.
func (w *WhenAllTupleFuture[V]) Get() (V, error) {
	var zero V
	if w.released {
		return zero, &FutureUninitialisedError{}
	}
	if err := w.Wait(); err != nil {
		return zero, err
	}
	children := w.children
	w.children = nil
	w.released = true
	return w.pack(children), nil
}

// RequestStop forwards to every child and reports the OR of their results.
func (w *WhenAllTupleFuture[V]) RequestStop() (bool, error) {
	if w.released {
		return false, &FutureUninitialisedError{}
	}
	requested := false
	for _, c := range w.children {
		ok, err := c.RequestStop()
		if err != nil {
			return requested, err
		}
		requested = requested || ok
	}
	return requested, nil
}

func (w *WhenAllTupleFuture[V]) getAny() (any, error) {
	if err := w.Wait(); err != nil {
		return nil, err
	}
	return w.pack(w.children), nil
}

func (w *WhenAllTupleFuture[V]) valueType() reflect.Type {
	return typeOf[V]()
}

func (w *WhenAllTupleFuture[V]) attachContinuation(ex Executor, fn func()) {
	kickDeferred(w.children)
	deferPoll(ex, w.IsReady, fn)
}

func (w *WhenAllTupleFuture[V]) continuationExecutor() Executor {
	return firstExecutor(w.children)
}

func (w *WhenAllTupleFuture[V]) uniqueStopSource() *StopSource { return nil }

func (w *WhenAllTupleFuture[V]) isAlwaysDeferred() bool { return anyAlwaysDeferred(w.children) }

var _ AnyFuture = (*WhenAllTupleFuture[Tuple2[*Future[int], *Future[int]]])(nil)

// --- Disjunction (when_any) ---

// WhenAnyResult is the value of a homogeneous disjunction: the index of the
// first child observed ready (or [WhenAnyIndexNone] for an empty
// disjunction) and the child sequence itself.
type WhenAnyResult[T any] struct {
	Index int
	Tasks []*Future[T]
}

func (r WhenAnyResult[T]) anyIndex() int { return r.Index }
func (r WhenAnyResult[T]) anyTasks() any { return r.Tasks }
func (WhenAnyResult[T]) anyTasksType() reflect.Type {
	return typeOf[[]*Future[T]]()
}

// WhenAnyTupleResult is the value of a heterogeneous disjunction: the
// winning index and the tuple of child handles.
type WhenAnyTupleResult[V any] struct {
	Index int
	Tasks V
}

func (r WhenAnyTupleResult[V]) anyIndex() int { return r.Index }
func (r WhenAnyTupleResult[V]) anyTasks() any { return r.Tasks }
func (WhenAnyTupleResult[V]) anyTasksType() reflect.Type {
	return typeOf[V]()
}

// WhenAnyFuture is the lazy disjunction proxy over a homogeneous sequence:
// ready as soon as any child is ready, recording the index of the first
// child observed ready.
type WhenAnyFuture[T any] struct {
	children []*Future[T]
	winner   atomic.Int64 // 0 = unobserved; otherwise index+1
	released bool
}

// WhenAny returns a disjunction over the given futures. An empty
// disjunction is immediately ready with [WhenAnyIndexNone].
func WhenAny[T any](futures ...*Future[T]) *WhenAnyFuture[T] {
	return &WhenAnyFuture[T]{children: futures}
}

// WhenAnyFuncs launches each callable via [Async] on ex and returns the
// disjunction of the resulting futures.
func WhenAnyFuncs[T any](ex Executor, fns ...func() (T, error)) *WhenAnyFuture[T] {
	futures := make([]*Future[T], len(fns))
	for i, fn := range fns {
		futures[i] = Async(ex, fn)
	}
	return WhenAny(futures...)
}

// Or concatenates two disjunctions into one, flattening rather than
// nesting. Both operands are consumed.
func (w *WhenAnyFuture[T]) Or(other *WhenAnyFuture[T]) *WhenAnyFuture[T] {
	children := append(w.release(), other.release()...)
	return &WhenAnyFuture[T]{children: children}
}

// OrFuture appends a single future to the disjunction, consuming both.
func (w *WhenAnyFuture[T]) OrFuture(f *Future[T]) *WhenAnyFuture[T] {
	return &WhenAnyFuture[T]{children: append(w.release(), f)}
}

func (w *WhenAnyFuture[T]) release() []*Future[T] {
	children := w.children
	w.children = nil
	w.released = true
	return children
}

// readyIndex returns the recorded winner, scanning for one if none was
// recorded yet. Returns WhenAnyIndexNone when no child is ready (or the
// disjunction is empty).
func (w *WhenAnyFuture[T]) readyIndex() int {
	if v := w.winner.Load(); v > 0 {
		return int(v - 1)
	}
	for i, c := range w.children {
		if c.IsReady() {
			if w.winner.CompareAndSwap(0, int64(i+1)) {
				recordWhenAnyWinner(i)
			}
			return int(w.winner.Load() - 1)
		}
	}
	return WhenAnyIndexNone
}

// Valid reports whether every child is valid. An empty disjunction is valid.
func (w *WhenAnyFuture[T]) Valid() bool {
	if w == nil || w.released {
		return false
	}
	for _, c := range w.children {
		if !c.Valid() {
			return false
		}
	}
	return true
}

// IsReady reports whether any child is ready. An empty disjunction is ready.
func (w *WhenAnyFuture[T]) IsReady() bool {
	if w == nil || w.released {
		return false
	}
	return len(w.children) == 0 || w.readyIndex() >= 0
}

// Wait blocks until some child is ready.
func (w *WhenAnyFuture[T]) Wait() error {
	if w.released {
		return &FutureUninitialisedError{}
	}
	if len(w.children) == 0 {
		return nil
	}
	kickDeferred(w.children)
	for w.readyIndex() < 0 {
		ch := make(chan struct{}, len(w.children))
		cancels := make([]func(), 0, len(w.children))
		registered := true
		for _, c := range w.children {
			cancel, ok := c.onReadyChan(ch)
			if !ok {
				registered = false
				break
			}
			cancels = append(cancels, cancel)
		}
		if registered {
			<-ch
		}
		for _, cancel := range cancels {
			cancel()
		}
	}
	return nil
}

// WaitFor blocks until some child is ready or d elapses.
func (w *WhenAnyFuture[T]) WaitFor(d time.Duration) (WaitStatus, error) {
	return w.WaitUntil(time.Now().Add(d))
}

// WaitUntil blocks until some child is ready or the deadline passes,
// waiting on readiness notification rather than spinning.
func (w *WhenAnyFuture[T]) WaitUntil(deadline time.Time) (WaitStatus, error) {
	if w.released {
		return WaitTimeout, &FutureUninitialisedError{}
	}
	if len(w.children) == 0 {
		return WaitReady, nil
	}
	kickDeferred(w.children)
	for {
		if w.readyIndex() >= 0 {
			return WaitReady, nil
		}
		d := time.Until(deadline)
		if d <= 0 {
			return WaitTimeout, nil
		}
		ch := make(chan struct{}, len(w.children))
		cancels := make([]func(), 0, len(w.children))
		registered := true
		for _, c := range w.children {
			cancel, ok := c.onReadyChan(ch)
			if !ok {
				registered = false
				break
			}
			cancels = append(cancels, cancel)
		}
		if registered {
			timer := time.NewTimer(d)
			select {
			case <-ch:
			case <-timer.C:
			}
			timer.Stop()
		}
		for _, cancel := range cancels {
			cancel()
		}
		if w.readyIndex() >= 0 {
			return WaitReady, nil
		}
		if !time.Now().Before(deadline) {
			return WaitTimeout, nil
		}
	}
}

// Get waits for readiness and moves the result out: the winning index and
// the child sequence. The proxy becomes invalid.
func (w *WhenAnyFuture[T]) Get() (WhenAnyResult[T], error) {
	if w.released {
		return WhenAnyResult[T]{Index: WhenAnyIndexNone}, &FutureUninitialisedError{}
	}
	if err := w.Wait(); err != nil {
		return WhenAnyResult[T]{Index: WhenAnyIndexNone}, err
	}
	idx := WhenAnyIndexNone
	if len(w.children) > 0 {
		idx = w.readyIndex()
	}
	return WhenAnyResult[T]{Index: idx, Tasks: w.release()}, nil
}

// RequestStop forwards to every child and reports the OR of their results.
func (w *WhenAnyFuture[T]) RequestStop() (bool, error) {
	if w.released {
		return false, &FutureUninitialisedError{}
	}
	requested := false
	for _, c := range w.children {
		ok, err := c.RequestStop()
		if err != nil {
			return requested, err
		}
		requested = requested || ok
	}
	return requested, nil
}

func (w *WhenAnyFuture[T]) getAny() (any, error) {
	if err := w.Wait(); err != nil {
		return nil, err
	}
	idx := WhenAnyIndexNone
	if len(w.children) > 0 {
		idx = w.readyIndex()
	}
	return WhenAnyResult[T]{Index: idx, Tasks: w.children}, nil
}

func (w *WhenAnyFuture[T]) valueType() reflect.Type {
	return typeOf[WhenAnyResult[T]]()
}

func (w *WhenAnyFuture[T]) attachContinuation(ex Executor, fn func()) {
	kickDeferred(w.children)
	deferPoll(ex, w.IsReady, fn)
}

func (w *WhenAnyFuture[T]) continuationExecutor() Executor {
	return firstExecutor(w.children)
}

func (w *WhenAnyFuture[T]) uniqueStopSource() *StopSource { return nil }

func (w *WhenAnyFuture[T]) isAlwaysDeferred() bool { return anyAlwaysDeferred(w.children) }

var _ AnyFuture = (*WhenAnyFuture[int])(nil)

// WhenAnyTupleFuture is the disjunction proxy over a heterogeneous tuple of
// futures, produced by [WhenAny2] and [WhenAny3]. Its value is a
// [WhenAnyTupleResult] carrying the winning index and the tuple of child
// handles.
type WhenAnyTupleFuture[V any] struct {
	children []AnyFuture
	pack     func([]AnyFuture) V
	winner   atomic.Int64 // 0 = unobserved; otherwise index+1
	released bool
}

// WhenAny2 returns the disjunction of two differently-typed futures.
func WhenAny2[A, B any](a *Future[A], b *Future[B]) *WhenAnyTupleFuture[Tuple2[*Future[A], *Future[B]]] {
	return &WhenAnyTupleFuture[Tuple2[*Future[A], *Future[B]]]{
		children: []AnyFuture{a, b},
		pack: func(cs []AnyFuture) Tuple2[*Future[A], *Future[B]] {
			return Tuple2[*Future[A], *Future[B]]{cs[0].(*Future[A]), cs[1].(*Future[B])}
		},
	}
}

// WhenAny3 returns the disjunction of three differently-typed futures.
func WhenAny3[A, B, C any](a *Future[A], b *Future[B], c *Future[C]) *WhenAnyTupleFuture[Tuple3[*Future[A], *Future[B], *Future[C]]] {
	return &WhenAnyTupleFuture[Tuple3[*Future[A], *Future[B], *Future[C]]]{
		children: []AnyFuture{a, b, c},
		pack: func(cs []AnyFuture) Tuple3[*Future[A], *Future[B], *Future[C]] {
			return Tuple3[*Future[A], *Future[B], *Future[C]]{cs[0].(*Future[A]), cs[1].(*Future[B]), cs[2].(*Future[C])}
		},
	}
}

func (w *WhenAnyTupleFuture[V]) readyIndex() int {
	if v := w.winner.Load(); v > 0 {
		return int(v - 1)
	}
	for i, c := range w.children {
		if c.IsReady() {
			if w.winner.CompareAndSwap(0, int64(i+1)) {
				recordWhenAnyWinner(i)
			}
			return int(w.winner.Load() - 1)
		}
	}
	return WhenAnyIndexNone
}

// Valid reports whether every child is valid.
func (w *WhenAnyTupleFuture[V]) Valid() bool {
	if w == nil || w.released {
		return false
	}
	for _, c := range w.children {
		if !c.Valid() {
			return false
		}
	}
	return true
}

// IsReady reports whether any child is ready.
func (w *WhenAnyTupleFuture[V]) IsReady() bool {
	if w == nil || w.released {
		return false
	}
	return len(w.children) == 0 || w.readyIndex() >= 0
}

// Wait blocks until some child is ready.
func (w *WhenAnyTupleFuture[V]) Wait() error {
	if w.released {
		return &FutureUninitialisedError{}
	}
	if len(w.children) == 0 {
		return nil
	}
	kickDeferred(w.children)
	for w.readyIndex() < 0 {
		ch := make(chan struct{}, len(w.children))
		cancels := make([]func(), 0, len(w.children))
		ready := false
		polling := false
		for _, c := range w.children {
			rn, ok := c.(readyNotifier)
			if !ok {
				// No notification hook: re-check on the poll interval.
				polling = true
				continue
			}
			cancel, reg := rn.onReadyChan(ch)
			if !reg {
				ready = true
				break
			}
			cancels = append(cancels, cancel)
		}
		switch {
		case ready:
		case polling:
			timer := time.NewTimer(deferPollInterval)
			select {
			case <-ch:
			case <-timer.C:
			}
			timer.Stop()
		default:
			<-ch
		}
		for _, cancel := range cancels {
			cancel()
		}
	}
	return nil
}

// WaitFor blocks until some child is ready or d elapses.
func (w *WhenAnyTupleFuture[V]) WaitFor(d time.Duration) (WaitStatus, error) {
	return w.WaitUntil(time.Now().Add(d))
}

// WaitUntil blocks until some child is ready or the deadline passes.
func (w *WhenAnyTupleFuture[V]) WaitUntil(deadline time.Time) (WaitStatus, error) {
	if w.released {
		return WaitTimeout, &FutureUninitialisedError{}
	}
	if len(w.children) == 0 {
		return WaitReady, nil
	}
	kickDeferred(w.children)
	for {
		if w.readyIndex() >= 0 {
			return WaitReady, nil
		}
		d := time.Until(deadline)
		if d <= 0 {
			return WaitTimeout, nil
		}
		ch := make(chan struct{}, len(w.children))
		cancels := make([]func(), 0, len(w.children))
		ready := false
		polling := false
		for _, c := range w.children {
			rn, ok := c.(readyNotifier)
			if !ok {
				polling = true
				continue
			}
			cancel, reg := rn.onReadyChan(ch)
			if !reg {
				ready = true
				break
			}
			cancels = append(cancels, cancel)
		}
		if !ready {
			if polling && d > deferPollInterval {
				d = deferPollInterval
			}
			timer := time.NewTimer(d)
			select {
			case <-ch:
			case <-timer.C:
			}
			timer.Stop()
		}
		for _, cancel := range cancels {
			cancel()
		}
		if w.readyIndex() >= 0 {
			return WaitReady, nil
		}
		if !time.Now().Before(deadline) {
			return WaitTimeout, nil
		}
	}
}

// Get waits for readiness and moves the result out.
func (w *WhenAnyTupleFuture[V]) Get() (WhenAnyTupleResult[V], error) {
	if w.released {
		return WhenAnyTupleResult[V]{Index: WhenAnyIndexNone}, &FutureUninitialisedError{}
	}
	if err := w.Wait(); err != nil {
		return WhenAnyTupleResult[V]{Index: WhenAnyIndexNone}, err
	}
	idx := WhenAnyIndexNone
	if len(w.children) > 0 {
		idx = w.readyIndex()
	}
	children := w.children
	w.children = nil
	w.released = true
	return WhenAnyTupleResult[V]{Index: idx, Tasks: w.pack(children)}, nil
}

// RequestStop forwards to every child and reports the OR of their results.
func (w *WhenAnyTupleFuture[V]) RequestStop() (bool, error) {
	if w.released {
		return false, &FutureUninitialisedError{}
	}
	requested := false
	for _, c := range w.children {
		ok, err := c.RequestStop()
		if err != nil {
			return requested, err
		}
		requested = requested || ok
	}
	return requested, nil
}

func (w *WhenAnyTupleFuture[V]) getAny() (any, error) {
	if err := w.Wait(); err != nil {
		return nil, err
	}
	idx := WhenAnyIndexNone
	if len(w.children) > 0 {
		idx = w.readyIndex()
	}
	return WhenAnyTupleResult[V]{Index: idx, Tasks: w.pack(w.children)}, nil
}

func (w *WhenAnyTupleFuture[V]) valueType() reflect.Type {
	return typeOf[WhenAnyTupleResult[V]]()
}

func (w *WhenAnyTupleFuture[V]) attachContinuation(ex Executor, fn func()) {
	kickDeferred(w.children)
	deferPoll(ex, w.IsReady, fn)
}

func (w *WhenAnyTupleFuture[V]) continuationExecutor() Executor {
	return firstExecutor(w.children)
}

func (w *WhenAnyTupleFuture[V]) uniqueStopSource() *StopSource { return nil }

func (w *WhenAnyTupleFuture[V]) isAlwaysDeferred() bool { return anyAlwaysDeferred(w.children) }

var _ AnyFuture = (*WhenAnyTupleFuture[Tuple2[*Future[int], *Future[int]]])(nil)

// --- shared proxy helpers ---

// kickDeferred submits the bound task of any deferred child so a proxy
// observer can make progress without calling the child's own Wait.
func kickDeferred[F AnyFuture](children []F) {
	for _, c := range children {
		kickDeferredOne(c)
	}
}

func kickDeferredOne(c AnyFuture) {
	type deferredKicker interface{ kickDeferred() }
	if k, ok := c.(deferredKicker); ok {
		k.kickDeferred()
	}
}

// firstExecutor returns the first child executor hint, or nil.
func firstExecutor[F AnyFuture](children []F) Executor {
	for _, c := range children {
		if ex := c.continuationExecutor(); ex != nil {
			return ex
		}
	}
	return nil
}

// anyAlwaysDeferred reports whether any child is always-deferred.
func anyAlwaysDeferred[F AnyFuture](children []F) bool {
	for _, c := range children {
		if c.isAlwaysDeferred() {
			return true
		}
	}
	return false
}

