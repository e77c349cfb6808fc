package eventloop

import (
	"errors"
	"testing"
	"time"
)

// TestWhenAll_ReadyWhenAllChildrenReady verifies the conjunction readiness
// invariant: ready iff every child is ready.
func TestWhenAll_ReadyWhenAllChildrenReady(t *testing.T) {
	pt := NewPackagedTask[int]()
	pending, err := pt.Future()
	if err != nil {
		t.Fatal(err)
	}
	w := WhenAll(MakeReadyFuture(1), pending)

	if w.IsReady() {
		t.Fatal("conjunction must not be ready with a pending child")
	}
	if status, err := w.WaitFor(10 * time.Millisecond); err != nil || status != WaitTimeout {
		t.Fatalf("WaitFor = (%v, %v), want (WaitTimeout, nil)", status, err)
	}

	if err := pt.SetValue(2); err != nil {
		t.Fatal(err)
	}
	if err := w.Wait(); err != nil {
		t.Fatal(err)
	}
	if !w.IsReady() {
		t.Fatal("conjunction must be ready once every child is")
	}

	children, err := w.Get()
	if err != nil {
		t.Fatal(err)
	}
	if len(children) != 2 {
		t.Fatalf("expected 2 children, got %d", len(children))
	}
	if v, _ := children[0].Get(); v != 1 {
		t.Fatalf("child 0 = %v, want 1", v)
	}
	if v, _ := children[1].Get(); v != 2 {
		t.Fatalf("child 1 = %v, want 2", v)
	}
	if w.Valid() {
		t.Fatal("Get must invalidate the proxy")
	}
}

// TestWhenAll_Empty verifies the empty conjunction is immediately ready
// with an empty sequence.
func TestWhenAll_Empty(t *testing.T) {
	w := WhenAll[int]()
	if !w.Valid() || !w.IsReady() {
		t.Fatal("empty conjunction must be valid and ready")
	}
	children, err := w.Get()
	if err != nil || len(children) != 0 {
		t.Fatalf("Get = (%v, %v), want empty sequence", children, err)
	}
}

// TestWhenAll_SingletonRoundTrip verifies when_all(x) yields a one-element
// sequence whose element equals x.
func TestWhenAll_SingletonRoundTrip(t *testing.T) {
	x := MakeReadyFuture(99)
	children, err := WhenAll(x).Get()
	if err != nil {
		t.Fatal(err)
	}
	if len(children) != 1 || children[0] != x {
		t.Fatalf("expected the 1-tuple to hold x itself, got %v", children)
	}
	if v, _ := children[0].Get(); v != 99 {
		t.Fatalf("element value = %v, want 99", v)
	}
}

// TestWhenAll_AndFlattens verifies conjunction concatenation flattens
// rather than nesting: three children, not two.
func TestWhenAll_AndFlattens(t *testing.T) {
	a := MakeReadyFuture(1)
	b := MakeReadyFuture(2)
	c := MakeReadyFuture(3)

	combined := WhenAll(a).And(WhenAll(b, c))
	children, err := combined.Get()
	if err != nil {
		t.Fatal(err)
	}
	if len(children) != 3 {
		t.Fatalf("expected a flattened 3-child sequence, got %d", len(children))
	}
	sum := 0
	for _, child := range children {
		v, err := child.Get()
		if err != nil {
			t.Fatal(err)
		}
		sum += v
	}
	if sum != 6 {
		t.Fatalf("sum = %d, want 6", sum)
	}
}

// TestWhenAll_ValidRequiresAllChildren verifies validity forwarding.
func TestWhenAll_ValidRequiresAllChildren(t *testing.T) {
	consumed := MakeReadyFuture(1)
	if _, err := consumed.Get(); err != nil {
		t.Fatal(err)
	}
	w := WhenAll(MakeReadyFuture(2), consumed)
	if w.Valid() {
		t.Fatal("conjunction over an invalid child must be invalid")
	}
}

// TestWhenAll_RequestStopForwards verifies stop forwarding ORs the results.
func TestWhenAll_RequestStopForwards(t *testing.T) {
	release := make(chan struct{})
	stoppable := AsyncStoppable(nil, func(tok StopToken) (int, error) {
		<-release
		return 1, nil
	})
	defer close(release)
	plain := MakeReadyFuture(2)

	w := WhenAll(stoppable, plain)
	ok, err := w.RequestStop()
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected OR of child request results to be true")
	}
	// Second request: flag already set everywhere.
	ok, err = w.RequestStop()
	if err != nil || ok {
		t.Fatalf("second RequestStop = (%v, %v), want (false, nil)", ok, err)
	}
}

// TestWhenAllTuple_GetPacksChildren verifies the heterogeneous form.
func TestWhenAllTuple_GetPacksChildren(t *testing.T) {
	w := WhenAll2(MakeReadyFuture(4), MakeReadyFuture("four"))
	tup, err := w.Get()
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := tup.First.Get(); v != 4 {
		t.Fatalf("First = %v, want 4", v)
	}
	if v, _ := tup.Second.Get(); v != "four" {
		t.Fatalf("Second = %v, want four", v)
	}
}

// TestWhenAny_IndexIdentifiesReadyChild verifies the disjunction readiness
// invariant: the reported index identifies a ready child.
func TestWhenAny_IndexIdentifiesReadyChild(t *testing.T) {
	pt := NewPackagedTask[int]()
	pending, err := pt.Future()
	if err != nil {
		t.Fatal(err)
	}
	defer pt.Close()

	w := WhenAny(pending, MakeReadyFuture(5))
	if err := w.Wait(); err != nil {
		t.Fatal(err)
	}
	res, err := w.Get()
	if err != nil {
		t.Fatal(err)
	}
	if res.Index != 1 {
		t.Fatalf("Index = %d, want 1 (the ready child)", res.Index)
	}
	if !res.Tasks[res.Index].IsReady() {
		t.Fatal("the reported index must identify a ready child")
	}
	if v, _ := res.Tasks[1].Get(); v != 5 {
		t.Fatalf("winner value = %v, want 5", v)
	}
}

// TestWhenAny_Empty verifies the empty disjunction: ready, sentinel index,
// empty sequence.
func TestWhenAny_Empty(t *testing.T) {
	w := WhenAny[int]()
	if !w.IsReady() {
		t.Fatal("empty disjunction must be ready")
	}
	res, err := w.Get()
	if err != nil {
		t.Fatal(err)
	}
	if res.Index != WhenAnyIndexNone {
		t.Fatalf("Index = %d, want WhenAnyIndexNone", res.Index)
	}
	if len(res.Tasks) != 0 {
		t.Fatalf("expected no tasks, got %d", len(res.Tasks))
	}
}

// TestWhenAny_WaitBlocksUntilFirstReady verifies the disjunction wakes on
// the first child to settle, without consuming the others.
func TestWhenAny_WaitBlocksUntilFirstReady(t *testing.T) {
	slow := NewPackagedTask[int]()
	slowF, err := slow.Future()
	if err != nil {
		t.Fatal(err)
	}
	defer slow.Close()
	fast := NewPackagedTask[int]()
	fastF, err := fast.Future()
	if err != nil {
		t.Fatal(err)
	}

	w := WhenAny(slowF, fastF)
	if w.IsReady() {
		t.Fatal("disjunction must not be ready with all children pending")
	}
	if status, err := w.WaitFor(10 * time.Millisecond); err != nil || status != WaitTimeout {
		t.Fatalf("WaitFor = (%v, %v), want (WaitTimeout, nil)", status, err)
	}

	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = fast.SetValue(8)
	}()
	if status, err := w.WaitFor(2 * time.Second); err != nil || status != WaitReady {
		t.Fatalf("WaitFor = (%v, %v), want (WaitReady, nil)", status, err)
	}
	res, err := w.Get()
	if err != nil {
		t.Fatal(err)
	}
	if res.Index != 1 {
		t.Fatalf("Index = %d, want 1", res.Index)
	}
}

// TestWhenAny_OrFlattens verifies disjunction concatenation flattens.
func TestWhenAny_OrFlattens(t *testing.T) {
	a := WhenAny(MakeReadyFuture(1))
	b := WhenAny(MakeReadyFuture(2), MakeReadyFuture(3))
	combined := a.Or(b)
	res, err := combined.Get()
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Tasks) != 3 {
		t.Fatalf("expected a flattened 3-child disjunction, got %d", len(res.Tasks))
	}
	if res.Index < 0 || res.Index > 2 {
		t.Fatalf("Index = %d, want a valid child index", res.Index)
	}
}

// TestWhenAnyTuple_WinnerUnwrap verifies the heterogeneous disjunction
// result carries the winning index and the packed tuple.
func TestWhenAnyTuple_WinnerUnwrap(t *testing.T) {
	pt := NewPackagedTask[string]()
	pending, err := pt.Future()
	if err != nil {
		t.Fatal(err)
	}
	defer pt.Close()

	w := WhenAny2(MakeReadyFuture(3), pending)
	res, err := w.Get()
	if err != nil {
		t.Fatal(err)
	}
	if res.Index != 0 {
		t.Fatalf("Index = %d, want 0", res.Index)
	}
	if v, _ := res.Tasks.First.Get(); v != 3 {
		t.Fatalf("winner value = %v, want 3", v)
	}
}

// TestWhenAllFuncs_LaunchesCallables verifies the lambda form launches each
// callable as a future.
func TestWhenAllFuncs_LaunchesCallables(t *testing.T) {
	w := WhenAllFuncs(nil,
		func() (int, error) { return 1, nil },
		func() (int, error) { return 2, nil },
		func() (int, error) { return 3, nil },
	)
	children, err := w.Get()
	if err != nil {
		t.Fatal(err)
	}
	sum := 0
	for _, c := range children {
		v, err := c.Get()
		if err != nil {
			t.Fatal(err)
		}
		sum += v
	}
	if sum != 6 {
		t.Fatalf("sum = %d, want 6", sum)
	}
}

// TestWhenAll_ThenSums is the conjunction round trip:
// then(when_all(a, b), λ(ra, rb) ra+rb).get() equals a.get()+b.get().
func TestWhenAll_ThenSums(t *testing.T) {
	a := Async(nil, func() (int, error) { return 19, nil })
	b := Async(nil, func() (int, error) { return 23, nil })

	w := WhenAll(a, b)
	sum, err := Then[int](w, func(vs []int) int {
		total := 0
		for _, v := range vs {
			total += v
		}
		return total
	})
	if err != nil {
		t.Fatal(err)
	}
	v, err := sum.Get()
	if err != nil || v != 42 {
		t.Fatalf("Get = (%v, %v), want (42, nil)", v, err)
	}
}

// TestWhenAll_ErrorChildSurfacesOnUnwrap verifies a failed child fails the
// unwrapping continuation's future rather than invoking it.
func TestWhenAll_ErrorChildSurfacesOnUnwrap(t *testing.T) {
	boom := errors.New("boom")
	w := WhenAll(MakeReadyFuture(1), MakeFailedFuture[int](boom))
	res, err := Then[int](w, func(vs []int) int {
		t.Error("continuation must not run when a child failed")
		return 0
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := res.Get(); !errors.Is(err, boom) {
		t.Fatalf("Get error = %v, want %v", err, boom)
	}
}
