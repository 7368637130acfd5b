/*
Package hazard provides a lock-free LIFO stack whose nodes are reclaimed
through hazard pointers. The stack is usable standalone, or as the
free-list backbone for higher-level allocators such as a block pool.

Nodes removed by Pop are not made reusable immediately. They are placed on
a retirement list and recycled only once a scan of all published hazard
pointers shows that no reader still references them. Recycling before such
a scan would allow a node to reappear at the head of a list while another
reader holds a stale reference to it, which is exactly the ABA failure the
protocol exists to prevent: the scan must come before the free, never the
other way around.

The package depends only on hardware atomics. Readers and writers never
block; a failed compare-and-swap triggers a local retry and is never
surfaced to the caller.
*/
package hazard

import "sync/atomic"

// retireThreshold is the retirement list length at which a holder scans
// the published hazard pointers and recycles what it can. Batching the
// scans amortizes their linear cost over many retirements.
const retireThreshold = 128

type node[T any] struct {
	value T
	next  atomic.Pointer[node[T]]
}

// A record is one participant's view of the stack: a published hazard
// pointer plus a private retirement list. Records are acquired for the
// duration of one operation, released afterwards, and never removed from
// the record list; an inactive record keeps its retired nodes until the
// next holder scans them.
type record[T any] struct {
	next    *record[T] // immutable once linked
	active  atomic.Bool
	hazard  atomic.Pointer[node[T]]
	retired []*node[T] // owned by the active holder
}

// acquireRecord finds an inactive record, or links a fresh one onto the
// record list.
func (s *Stack[T]) acquireRecord() *record[T] {
	for r := s.records.Load(); r != nil; r = r.next {
		if !r.active.Load() && r.active.CompareAndSwap(false, true) {
			return r
		}
	}
	r := &record[T]{}
	r.active.Store(true)
	for {
		head := s.records.Load()
		r.next = head
		if s.records.CompareAndSwap(head, r) {
			return r
		}
	}
}

func (s *Stack[T]) releaseRecord(r *record[T]) {
	r.hazard.Store(nil)
	r.active.Store(false)
}

// retire queues n for recycling and scans once the batch is large enough.
func (s *Stack[T]) retire(r *record[T], n *node[T]) {
	r.retired = append(r.retired, n)
	if len(r.retired) >= retireThreshold {
		s.scan(r)
	}
}

// scan recycles every node on r's retirement list that no published
// hazard pointer references. Nodes still covered by a hazard stay
// retired; they will be reconsidered by a later scan.
func (s *Stack[T]) scan(r *record[T]) {
	hazards := make(map[*node[T]]struct{}, retireThreshold)
	for rec := s.records.Load(); rec != nil; rec = rec.next {
		if h := rec.hazard.Load(); h != nil {
			hazards[h] = struct{}{}
		}
	}
	kept := r.retired[:0]
	for _, n := range r.retired {
		if _, held := hazards[n]; held {
			kept = append(kept, n)
			continue
		}
		s.recycle(n)
	}
	r.retired = kept
}

// recycle clears a reclaimed node and pushes it onto the free list. This
// is the only path by which a node enters the free list, which is what
// lets popFree rely on the hazard scan for its ABA protection.
func (s *Stack[T]) recycle(n *node[T]) {
	var zero T
	n.value = zero
	for {
		head := s.free.Load()
		n.next.Store(head)
		if s.free.CompareAndSwap(head, n) {
			return
		}
	}
}

// popFree takes a recycled node off the free list, or reports that the
// caller should allocate. The pop publishes a hazard on the candidate
// head: a node can only re-enter the free list through a scan, and a scan
// never recycles a node covered by a published hazard, so a successful
// compare-and-swap here implies the node's next link was not stale.
func (s *Stack[T]) popFree(r *record[T]) *node[T] {
	for {
		head := s.free.Load()
		if head == nil {
			return nil
		}
		r.hazard.Store(head)
		if s.free.Load() != head {
			continue
		}
		next := head.next.Load()
		if s.free.CompareAndSwap(head, next) {
			r.hazard.Store(nil)
			return head
		}
	}
}
