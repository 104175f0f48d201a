package meld

import (
	"sort"
	"sync"

	"github.com/TheBitDrifter/bark"
)

// PartitioningScheme carves the entity space into Len()+1 contiguous
// ranges: range 0 holds entities below Partition(0), range i+1 holds
// [Partition(i), Partition(i+1)), and the last range is unbounded above.
// NopPartitioningScheme
// and VecPartitioningScheme are the two implementations; user code should
// rarely need a third.
type PartitioningScheme[E Entity[E]] interface {
	// IsEmpty reports whether the scheme has no dividers, i.e. produces
	// exactly one partition covering the whole entity space.
	IsEmpty() bool
	// Len is the number of interior dividers; the scheme produces Len()+1
	// partitions.
	Len() int
	// Partition returns the i-th divider: every entity in partition i is
	// strictly less than this value, and every entity in partition i+1 is
	// greater than or equal to it. It panics if i is out of range.
	Partition(i int) E
	// LowerBound returns the index of the first partition that could hold
	// entity: the count of dividers not greater than entity. Every entity
	// in partitions [0, LowerBound(entity)) is strictly less than entity.
	LowerBound(entity E) int
}

// NopPartitioningScheme is the trivial scheme with zero dividers: every
// Partitioned built from it holds exactly one partition covering the whole
// entity space. It's the scheme a single-threaded caller reaches for when
// Partitioned's shared-ownership bookkeeping is still wanted but fan-out
// isn't.
type NopPartitioningScheme[E Entity[E]] struct{}

// IsEmpty implements PartitioningScheme. It is always true: Nop has no
// dividers.
func (NopPartitioningScheme[E]) IsEmpty() bool { return true }

// Len implements PartitioningScheme.
func (NopPartitioningScheme[E]) Len() int { return 0 }

// Partition implements PartitioningScheme. It always panics: a zero-divider
// scheme has no valid index.
func (NopPartitioningScheme[E]) Partition(i int) E {
	panic(ErrEmptyScheme)
}

// LowerBound implements PartitioningScheme. With no dividers there is only
// ever partition 0.
func (NopPartitioningScheme[E]) LowerBound(entity E) int { return 0 }

// VecPartitioningScheme holds an explicit, ascending list of dividers.
type VecPartitioningScheme[E Entity[E]] struct {
	dividers []E
}

// NewVecPartitioningScheme builds a scheme from dividers already in
// strictly ascending order.
func NewVecPartitioningScheme[E Entity[E]](dividers []E) *VecPartitioningScheme[E] {
	return &VecPartitioningScheme[E]{dividers: append([]E(nil), dividers...)}
}

// IsEmpty implements PartitioningScheme.
func (s *VecPartitioningScheme[E]) IsEmpty() bool { return len(s.dividers) == 0 }

// Len implements PartitioningScheme.
func (s *VecPartitioningScheme[E]) Len() int { return len(s.dividers) }

// Partition implements PartitioningScheme.
func (s *VecPartitioningScheme[E]) Partition(i int) E { return s.dividers[i] }

// LowerBound implements PartitioningScheme via a binary search for the
// first divider strictly greater than entity: every divider at or before
// that index bounds a partition that cannot hold entity.
func (s *VecPartitioningScheme[E]) LowerBound(entity E) int {
	return sort.Search(len(s.dividers), func(i int) bool {
		return entity.Less(s.dividers[i])
	})
}

// Collection is the constraint Partitioned's collection type parameter
// carries: it must be a ComponentCollection, and it must be comparable so
// Partitioned can tell an absent partition (the zero value, typically a nil
// pointer) from a present one without dereferencing it.
type Collection[E Entity[E], T any] interface {
	ComponentCollection[E, T]
	comparable
}

// partitionHandle tracks whether one partition slot is currently checked
// out, giving Partitioned its exclusivity guarantee: two callers must never
// hold the same partition's collection at once.
type partitionHandle[C any] struct {
	mu    sync.Mutex
	held  bool
	value C
}

// Partitioned wraps k+1 independently-owned collections sharing one
// PartitioningScheme. It is the concurrency seam between the system engine
// and the component collections: serial Apply walks partitions one at a
// time, while ApplyParallel hands each partition to the thread pool and
// waits for all of them, enforcing that no two callers touch the same
// partition concurrently. It also exposes its own ComponentCollection-style
// surface (IsEmpty, Len, LowerBound, GetRef, Consume), routing each call
// through the partitioning scheme to the partition(s) that can answer it.
type Partitioned[E Entity[E], T any, C Collection[E, T]] struct {
	scheme  PartitioningScheme[E]
	handles []*partitionHandle[C]
}

// NewPartitioned builds a Partitioned from a scheme and one collection per
// partition; len(parts) must equal scheme.Len()+1. A zero-value entry in
// parts (typically a nil collection pointer) marks that partition absent:
// every aggregate method treats it as empty without dereferencing it.
func NewPartitioned[E Entity[E], T any, C Collection[E, T]](scheme PartitioningScheme[E], parts []C) *Partitioned[E, T, C] {
	handles := make([]*partitionHandle[C], len(parts))
	for i, p := range parts {
		handles[i] = &partitionHandle[C]{value: p}
	}
	return &Partitioned[E, T, C]{scheme: scheme, handles: handles}
}

// Scheme returns the partitioning scheme shared across this Partitioned's
// slots. System joins use it to confirm two Partitioned arguments carve the
// entity space identically before zipping across partitions.
func (p *Partitioned[E, T, C]) Scheme() PartitioningScheme[E] { return p.scheme }

// PartitionCount is the number of partition slots (scheme.Len() + 1). This
// is distinct from Len, which aggregates entity counts across partitions.
func (p *Partitioned[E, T, C]) PartitionCount() int { return len(p.handles) }

// isAbsent reports whether c is the zero value of C — the marker for a
// partition with no backing collection.
func (p *Partitioned[E, T, C]) isAbsent(c C) bool {
	var zero C
	return c == zero
}

// Acquire checks out partition i exclusively, returning ErrPartitionHeld if
// it is already checked out. The caller must call Release when done.
func (p *Partitioned[E, T, C]) Acquire(i int) (C, error) {
	h := p.handles[i]
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.held {
		var zero C
		return zero, ErrPartitionHeld
	}
	h.held = true
	return h.value, nil
}

// mustAcquire is Acquire for the aggregate read-only methods below: calling
// IsEmpty/Len/LowerBound/GetRef while another caller holds a partition
// exclusively is a precondition violation, not a recoverable condition, so
// it panics rather than threading an error through every read path.
func (p *Partitioned[E, T, C]) mustAcquire(i int) C {
	c, err := p.Acquire(i)
	if err != nil {
		panic(bark.AddTrace(err))
	}
	return c
}

// Release checks partition i back in, optionally replacing its collection
// (e.g. after Apply rebuilt it).
func (p *Partitioned[E, T, C]) Release(i int, value C) {
	h := p.handles[i]
	h.mu.Lock()
	defer h.mu.Unlock()
	h.value = value
	h.held = false
}

// IsEmpty aggregates IsEmpty across every partition, treating an absent
// partition as empty.
func (p *Partitioned[E, T, C]) IsEmpty() bool {
	for i := range p.handles {
		c := p.mustAcquire(i)
		empty := p.isAbsent(c) || c.IsEmpty()
		p.Release(i, c)
		if !empty {
			return false
		}
	}
	return true
}

// Len aggregates Len across every partition, treating an absent partition
// as contributing zero.
func (p *Partitioned[E, T, C]) Len() int {
	total := 0
	for i := range p.handles {
		c := p.mustAcquire(i)
		if !p.isAbsent(c) {
			total += c.Len()
		}
		p.Release(i, c)
	}
	return total
}

// LowerBound returns the least entity >= the query across every partition.
// It starts at scheme.LowerBound(entity) — the one partition whose range
// could contain entity itself — and, if that partition has nothing >=
// entity, walks forward: every entity in a later partition is already
// greater than entity by the partitioning invariant, so that partition's
// own smallest entity (if any) is the answer.
func (p *Partitioned[E, T, C]) LowerBound(entity E) (E, bool) {
	start := p.scheme.LowerBound(entity)
	for i := start; i < len(p.handles); i++ {
		c := p.mustAcquire(i)
		if p.isAbsent(c) {
			p.Release(i, c)
			continue
		}
		got, ok := c.LowerBound(entity)
		p.Release(i, c)
		if ok {
			return got, true
		}
	}
	var zero E
	return zero, false
}

// GetRef routes to the single partition scheme.LowerBound(entity) says
// could hold entity, and returns whatever that partition reports.
func (p *Partitioned[E, T, C]) GetRef(entity E) (ComponentRef[T], bool) {
	idx := p.scheme.LowerBound(entity)
	c := p.mustAcquire(idx)
	if p.isAbsent(c) {
		p.Release(idx, c)
		return nil, false
	}
	ref, ok := c.GetRef(entity)
	p.Release(idx, c)
	return ref, ok
}

// Consume acquires every partition exclusively and returns an iterator
// concatenating their individual Consume sequences in partition order. It
// fails with ErrPartitionHeld, without yielding anything, if any partition
// is already checked out; the caller's iteration releases every partition
// once it finishes (including an early break).
func (p *Partitioned[E, T, C]) Consume() (func(yield func(E, T) bool), error) {
	acquired := make([]C, len(p.handles))
	for i := range p.handles {
		c, err := p.Acquire(i)
		if err != nil {
			for j := 0; j < i; j++ {
				p.Release(j, acquired[j])
			}
			return nil, err
		}
		acquired[i] = c
	}
	return func(yield func(E, T) bool) {
		defer func() {
			for i, c := range acquired {
				p.Release(i, c)
			}
		}()
		for _, c := range acquired {
			if p.isAbsent(c) {
				continue
			}
			for e, v := range c.Consume() {
				if !yield(e, v) {
					return
				}
			}
		}
	}, nil
}

// ApplySerial walks every partition in order, applying its corresponding
// change slice. changesByPartition must have the same length as
// p.PartitionCount().
func ApplySerial[E Entity[E], T any, C Collection[E, T]](p *Partitioned[E, T, C], changesByPartition [][]EntityChange[E, T]) error {
	for i := range p.handles {
		c, err := p.Acquire(i)
		if err != nil {
			return err
		}
		c.Apply(changesByPartition[i])
		p.Release(i, c)
	}
	return nil
}

// ApplyParallel hands every partition's Apply to the given ThreadPool and
// waits for all of them to finish, aggregating the first error (if any)
// observed across partitions. It does not return early on error: every
// partition's Apply is given the chance to run, matching the "reinstall
// always runs" open-question resolution recorded in the design notes.
func ApplyParallel[E Entity[E], T any, C Collection[E, T]](pool *ThreadPool, p *Partitioned[E, T, C], changesByPartition [][]EntityChange[E, T]) error {
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error
	wg.Add(len(p.handles))
	for i := range p.handles {
		i := i
		submitTracked(pool, &wg, &mu, &firstErr, func() {
			defer wg.Done()
			c, err := p.Acquire(i)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}
			c.Apply(changesByPartition[i])
			p.Release(i, c)
		})
	}
	wg.Wait()
	return firstErr
}
