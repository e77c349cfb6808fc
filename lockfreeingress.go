package eventloop

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// lfNode is a node in the lock-free MPSC queue.
type lfNode struct {
	task Task
	next atomic.Pointer[lfNode]
}

// lfNodePool recycles queue nodes to avoid allocation on the hot path.
var lfNodePool = sync.Pool{
	New: func() any {
		return &lfNode{}
	},
}

func getLFNode() *lfNode {
	return lfNodePool.Get().(*lfNode)
}

func putLFNode(n *lfNode) {
	n.task = Task{}
	n.next.Store(nil)
	lfNodePool.Put(n)
}

// LockFreeIngress is a lock-free multi-producer single-consumer queue.
//
// PERFORMANCE: Uses atomic swap for producers with no mutex on hot paths.
// Single-threaded consumer pops in batches to amortize cache misses.
//
// Design: Intrusive linked list with stub node.
// Producers: Atomic swap of tail pointer, then link previous.
// Consumer: Walk from head, reclaiming nodes to the pool.
//
// A producer that has swapped the tail but not yet linked the previous node
// leaves a transient gap; Pop and PopBatch spin briefly across that gap so a
// consumer never misses a task another pop variant would have found.
type LockFreeIngress struct { // betteralign:ignore
	_    [64]byte               // Cache line padding //nolint:unused
	head atomic.Pointer[lfNode] // Consumer reads from head
	_    [56]byte               // Pad to cache line //nolint:unused
	tail atomic.Pointer[lfNode] // Producers swap tail
	_    [56]byte               // Pad to cache line //nolint:unused
	stub lfNode                 // Sentinel node
	len  atomic.Int64           // Queue length (approximate)
	_    [56]byte               // Pad to cache line //nolint:unused
}

// NewLockFreeIngress creates a new lock-free MPSC queue.
func NewLockFreeIngress() *LockFreeIngress {
	q := &LockFreeIngress{}
	q.head.Store(&q.stub)
	q.tail.Store(&q.stub)
	return q
}

// Push adds a task to the queue (thread-safe for multiple producers).
// PERFORMANCE: Lock-free using atomic swap.
func (q *LockFreeIngress) Push(fn func()) {
	n := getLFNode()
	n.task = Task{Runnable: fn}
	n.next.Store(nil)

	// Atomically swap tail, linking previous tail to new node
	prev := q.tail.Swap(n)
	prev.next.Store(n) // Linearization point

	q.len.Add(1)
}

// awaitNext bridges the swap/link gap: if head is not the tail, a producer
// has claimed a successor and will link it momentarily.
func (q *LockFreeIngress) awaitNext(head *lfNode) *lfNode {
	next := head.next.Load()
	if next != nil {
		return next
	}
	if head == q.tail.Load() {
		return nil
	}
	for next == nil {
		runtime.Gosched()
		next = head.next.Load()
	}
	return next
}

// Pop removes and returns a task from the queue (single consumer only).
// Returns false if the queue is empty.
// PERFORMANCE: No locking, single-threaded consumer.
func (q *LockFreeIngress) Pop() (Task, bool) {
	head := q.head.Load()
	next := q.awaitNext(head)
	if next == nil {
		return Task{}, false
	}

	task := next.task
	next.task = Task{} // Clear for GC
	q.head.Store(next)

	// Recycle old head (unless it's the stub)
	if head != &q.stub {
		putLFNode(head)
	}

	q.len.Add(-1)
	return task, true
}

// PopBatch removes up to max tasks from the queue into buf.
// Returns the number of tasks popped.
// PERFORMANCE: Batched pop amortizes cache misses. Applies the same
// producer-gap spin as Pop so the two never disagree about emptiness.
func (q *LockFreeIngress) PopBatch(buf []Task, max int) int {
	count := 0
	head := q.head.Load()

	// Limit to buffer size
	if max > len(buf) {
		max = len(buf)
	}

	for count < max {
		next := q.awaitNext(head)
		if next == nil {
			break
		}

		buf[count] = next.task
		next.task = Task{} // Clear for GC
		q.head.Store(next)

		// Recycle old head (unless it's the stub)
		if head != &q.stub {
			putLFNode(head)
		}

		head = next
		count++
	}

	if count > 0 {
		q.len.Add(int64(-count))
	}
	return count
}

// Length returns the approximate queue length.
// PERFORMANCE: May be slightly stale due to concurrent operations.
func (q *LockFreeIngress) Length() int64 {
	return q.len.Load()
}

// IsEmpty returns true if the queue appears empty.
// PERFORMANCE: May have false negatives under concurrent modification.
func (q *LockFreeIngress) IsEmpty() bool {
	head := q.head.Load()
	return head.next.Load() == nil && head == q.tail.Load()
}
