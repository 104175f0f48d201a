package meld

import "sync"

// mutableRef is the ComponentRef for MutableComponentCollection. It holds
// the collection's mutex for its entire lifetime: Update mutates the
// backing value directly, so Change never reports a Value edit — the
// mutation already happened. Change must be called when the system step
// using this ref is done: it releases the lock (only once); this stands in
// for the Rust original's MutexGuard, whose Drop releases the lock when
// the ref goes out of scope.
type mutableRef[T any] struct {
	mu      *sync.Mutex
	values  []T
	idx     int
	unbound bool
	closed  bool
}

// Get implements ComponentRef.
func (r *mutableRef[T]) Get() T { return r.values[r.idx] }

// Unbind implements ComponentRef.
func (r *mutableRef[T]) Unbind() { r.unbound = true }

// Update implements ComponentRef.
func (r *mutableRef[T]) Update(f func(*T)) { f(&r.values[r.idx]) }

// Change implements ComponentRef. It never returns a value change: mut
// collections apply updates in place, so by the time Change runs the
// mutation has already taken effect. Only Unbind flows through Apply.
func (r *mutableRef[T]) Change() ComponentChange[T] {
	r.release()
	if r.unbound {
		return Unbind[T]()
	}
	return NoChange[T]()
}

func (r *mutableRef[T]) release() {
	if !r.closed {
		r.closed = true
		r.mu.Unlock()
	}
}

// MutableComponentCollection allows entities to be mutated in place. It
// suits systems that touch most of their entities each step; the lock is
// at collection granularity, so callers that need fine-grained parallelism
// should partition the collection rather than fight over one mutex. When
// contention is the bottleneck and the component type can be sent across
// threads, prefer CopyOnWriteComponentCollection instead.
type MutableComponentCollection[E Entity[E], T any] struct {
	mu       sync.Mutex
	entities []E
	values   []T
}

// NewMutableComponentCollection builds a collection from entities already
// sorted and paired 1:1 with values.
func NewMutableComponentCollection[E Entity[E], T any](entities []E, values []T) *MutableComponentCollection[E, T] {
	return &MutableComponentCollection[E, T]{
		entities: append([]E(nil), entities...),
		values:   append([]T(nil), values...),
	}
}

// NewMutableComponentCollectionFromChanges builds a collection from a
// sorted change stream, keeping only Value entries.
func NewMutableComponentCollectionFromChanges[E Entity[E], T any](changes []EntityChange[E, T]) *MutableComponentCollection[E, T] {
	var entities []E
	var values []T
	for _, c := range changes {
		if v, ok := c.Change.ValueOK(); ok {
			entities = append(entities, c.Entity)
			values = append(values, v)
		}
	}
	return &MutableComponentCollection[E, T]{entities: entities, values: values}
}

// IsEmpty implements ComponentCollection.
func (c *MutableComponentCollection[E, T]) IsEmpty() bool { return len(c.entities) == 0 }

// Len implements ComponentCollection.
func (c *MutableComponentCollection[E, T]) Len() int { return len(c.entities) }

// LowerBound implements ComponentCollection.
func (c *MutableComponentCollection[E, T]) LowerBound(entity E) (E, bool) {
	return lowerBoundSlice(c.entities, entity)
}

// GetRef implements ComponentCollection. The returned ref holds the
// collection's mutex until its Change method releases it.
func (c *MutableComponentCollection[E, T]) GetRef(entity E) (ComponentRef[T], bool) {
	offset, ok := exactOffsetOfSlice(c.entities, entity)
	if !ok {
		return nil, false
	}
	c.mu.Lock()
	return &mutableRef[T]{mu: &c.mu, values: c.values, idx: offset}, true
}

// Consume implements ComponentCollection.
func (c *MutableComponentCollection[E, T]) Consume() func(yield func(E, T) bool) {
	return func(yield func(E, T) bool) {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i := range c.entities {
			if !yield(c.entities[i], c.values[i]) {
				return
			}
		}
	}
}

// Apply implements ComponentCollection. Value changes never flow through
// Apply for a mut collection — they're already applied in place by
// Update — so only inserts (Value on an absent entity) and Unbind are
// meaningful here.
func (c *MutableComponentCollection[E, T]) Apply(changes []EntityChange[E, T]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entities, c.values = applyComponentChanges(c.entities, c.values, changes)
}

// Partition splits the collection into scheme.Len()+1 buckets along the
// scheme's dividers; an empty bucket is nil.
func (c *MutableComponentCollection[E, T]) Partition(scheme PartitioningScheme[E]) []*MutableComponentCollection[E, T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	es, vs := partitionValuePairs(c.entities, c.values, scheme)
	out := make([]*MutableComponentCollection[E, T], len(es))
	for i := range es {
		if len(es[i]) == 0 {
			continue
		}
		out[i] = &MutableComponentCollection[E, T]{entities: es[i], values: vs[i]}
	}
	return out
}
