package meld

// copyOnWriteRef is the ComponentRef for CopyOnWriteComponentCollection.
// Update lazily clones the current value into a staging slot the first
// time it's called, so the collection's backing value is never mutated
// until Apply runs.
type copyOnWriteRef[T any] struct {
	unbound bool
	current T
	staged  *T
}

// Get implements ComponentRef.
func (r *copyOnWriteRef[T]) Get() T {
	if r.staged != nil {
		return *r.staged
	}
	return r.current
}

// Unbind implements ComponentRef.
func (r *copyOnWriteRef[T]) Unbind() { r.unbound = true }

// Update implements ComponentRef.
func (r *copyOnWriteRef[T]) Update(f func(*T)) {
	if r.staged == nil {
		v := r.current
		r.staged = &v
	}
	f(r.staged)
}

// Change implements ComponentRef.
func (r *copyOnWriteRef[T]) Change() ComponentChange[T] {
	if r.unbound {
		return Unbind[T]()
	}
	if r.staged != nil {
		return Value(*r.staged)
	}
	return NoChange[T]()
}

// CopyOnWriteComponentCollection keeps components in order sorted by
// entity. Calls to Update or Unbind via a ComponentRef don't take effect
// until the resulting ComponentChange is passed back through Apply — this
// lets user callbacks run without holding any write lock across the step.
type CopyOnWriteComponentCollection[E Entity[E], T any] struct {
	entities []E
	values   []T
}

// NewCopyOnWriteComponentCollection builds a collection from entities
// already sorted and paired 1:1 with values.
func NewCopyOnWriteComponentCollection[E Entity[E], T any](entities []E, values []T) *CopyOnWriteComponentCollection[E, T] {
	return &CopyOnWriteComponentCollection[E, T]{
		entities: append([]E(nil), entities...),
		values:   append([]T(nil), values...),
	}
}

// NewCopyOnWriteComponentCollectionFromChanges builds a collection from a
// sorted change stream, keeping only Value entries (unbind/no-change on a
// previously-absent entity are both no-ops).
func NewCopyOnWriteComponentCollectionFromChanges[E Entity[E], T any](changes []EntityChange[E, T]) *CopyOnWriteComponentCollection[E, T] {
	var entities []E
	var values []T
	for _, c := range changes {
		if v, ok := c.Change.ValueOK(); ok {
			entities = append(entities, c.Entity)
			values = append(values, v)
		}
	}
	return &CopyOnWriteComponentCollection[E, T]{entities: entities, values: values}
}

// IsEmpty implements ComponentCollection.
func (c *CopyOnWriteComponentCollection[E, T]) IsEmpty() bool { return len(c.entities) == 0 }

// Len implements ComponentCollection.
func (c *CopyOnWriteComponentCollection[E, T]) Len() int { return len(c.entities) }

// LowerBound implements ComponentCollection.
func (c *CopyOnWriteComponentCollection[E, T]) LowerBound(entity E) (E, bool) {
	return lowerBoundSlice(c.entities, entity)
}

// GetRef implements ComponentCollection.
func (c *CopyOnWriteComponentCollection[E, T]) GetRef(entity E) (ComponentRef[T], bool) {
	offset, ok := exactOffsetOfSlice(c.entities, entity)
	if !ok {
		return nil, false
	}
	return &copyOnWriteRef[T]{current: c.values[offset]}, true
}

// Consume implements ComponentCollection.
func (c *CopyOnWriteComponentCollection[E, T]) Consume() func(yield func(E, T) bool) {
	return func(yield func(E, T) bool) {
		for i := range c.entities {
			if !yield(c.entities[i], c.values[i]) {
				return
			}
		}
	}
}

// Apply implements ComponentCollection via the streaming merge of §4.3.
func (c *CopyOnWriteComponentCollection[E, T]) Apply(changes []EntityChange[E, T]) {
	c.entities, c.values = applyComponentChanges(c.entities, c.values, changes)
}

// Partition splits the collection into scheme.Len()+1 buckets along the
// scheme's dividers; an empty bucket is returned as nil, distinct from an
// empty-but-present collection.
func (c *CopyOnWriteComponentCollection[E, T]) Partition(scheme PartitioningScheme[E]) []*CopyOnWriteComponentCollection[E, T] {
	es, vs := partitionValuePairs(c.entities, c.values, scheme)
	out := make([]*CopyOnWriteComponentCollection[E, T], len(es))
	for i := range es {
		if len(es[i]) == 0 {
			continue
		}
		out[i] = &CopyOnWriteComponentCollection[E, T]{entities: es[i], values: vs[i]}
	}
	return out
}
