package meld

import (
	"sync"

	"github.com/google/btree"
)

// slotEntry pairs an entity with the index of its value in the backing
// values slice. The btree orders entries by entity; slot indirection lets
// a removed entity's slot be reused without shifting every other entity's
// index, which is the whole point of reaching for an ordered map here
// instead of the contiguous cow/mut layout.
type slotEntry[E Entity[E]] struct {
	entity E
	slot   int
}

func slotLess[E Entity[E]](a, b slotEntry[E]) bool { return a.entity.Less(b.entity) }

// insertRef is the ComponentRef for InsertOptimizedComponentCollection. It
// holds the collection's mutex for its lifetime, the same way mutableRef
// does, since Update mutates the backing slot in place.
type insertRef[T any] struct {
	mu      *sync.Mutex
	values  []T
	slot    int
	unbound bool
	closed  bool
}

func (r *insertRef[T]) Get() T { return r.values[r.slot] }

func (r *insertRef[T]) Unbind() { r.unbound = true }

func (r *insertRef[T]) Update(f func(*T)) { f(&r.values[r.slot]) }

func (r *insertRef[T]) Change() ComponentChange[T] {
	if !r.closed {
		r.closed = true
		r.mu.Unlock()
	}
	if r.unbound {
		return Unbind[T]()
	}
	return NoChange[T]()
}

// InsertOptimizedComponentCollection favors scattered, frequent inserts and
// deletes over the contiguous variants' O(n) shift cost. Entities are
// indexed by a google/btree ordered map onto slots in a values slice;
// removed slots are pushed onto a free list and reused by the next insert,
// so the values slice never needs to be compacted.
type InsertOptimizedComponentCollection[E Entity[E], T any] struct {
	mu     sync.Mutex
	tree   *btree.BTreeG[slotEntry[E]]
	values []T
	free   []int
	count  int
}

// NewInsertOptimizedComponentCollection builds a collection from entities
// already sorted and paired 1:1 with values.
func NewInsertOptimizedComponentCollection[E Entity[E], T any](entities []E, values []T) *InsertOptimizedComponentCollection[E, T] {
	c := &InsertOptimizedComponentCollection[E, T]{
		tree:   btree.NewG(32, slotLess[E]),
		values: append([]T(nil), values...),
	}
	for i, e := range entities {
		c.tree.ReplaceOrInsert(slotEntry[E]{entity: e, slot: i})
	}
	c.count = len(entities)
	return c
}

// NewInsertOptimizedComponentCollectionFromChanges builds a collection from
// a sorted change stream, keeping only Value entries.
func NewInsertOptimizedComponentCollectionFromChanges[E Entity[E], T any](changes []EntityChange[E, T]) *InsertOptimizedComponentCollection[E, T] {
	c := &InsertOptimizedComponentCollection[E, T]{tree: btree.NewG(32, slotLess[E])}
	for _, ch := range changes {
		if v, ok := ch.Change.ValueOK(); ok {
			c.insertLocked(ch.Entity, v)
		}
	}
	return c
}

// IsEmpty implements ComponentCollection.
func (c *InsertOptimizedComponentCollection[E, T]) IsEmpty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count == 0
}

// Len implements ComponentCollection.
func (c *InsertOptimizedComponentCollection[E, T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// LowerBound implements ComponentCollection.
func (c *InsertOptimizedComponentCollection[E, T]) LowerBound(entity E) (E, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var result E
	found := false
	c.tree.AscendGreaterOrEqual(slotEntry[E]{entity: entity}, func(item slotEntry[E]) bool {
		result, found = item.entity, true
		return false
	})
	return result, found
}

// GetRef implements ComponentCollection. The returned ref holds the
// collection's mutex until its Change method releases it.
func (c *InsertOptimizedComponentCollection[E, T]) GetRef(entity E) (ComponentRef[T], bool) {
	c.mu.Lock()
	item, ok := c.tree.Get(slotEntry[E]{entity: entity})
	if !ok {
		c.mu.Unlock()
		return nil, false
	}
	return &insertRef[T]{mu: &c.mu, values: c.values, slot: item.slot}, true
}

// Consume implements ComponentCollection.
func (c *InsertOptimizedComponentCollection[E, T]) Consume() func(yield func(E, T) bool) {
	return func(yield func(E, T) bool) {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.tree.Ascend(func(item slotEntry[E]) bool {
			return yield(item.entity, c.values[item.slot])
		})
	}
}

// insertLocked adds entity/value as a new entry, reusing a free slot if one
// exists, without checking whether the entity already has a slot. Callers
// must already hold c.mu and must have confirmed entity is absent.
func (c *InsertOptimizedComponentCollection[E, T]) insertLocked(entity E, value T) {
	var slot int
	if n := len(c.free); n > 0 {
		slot = c.free[n-1]
		c.free = c.free[:n-1]
		c.values[slot] = value
	} else {
		slot = len(c.values)
		c.values = append(c.values, value)
	}
	c.tree.ReplaceOrInsert(slotEntry[E]{entity: entity, slot: slot})
	c.count++
}

// Insert binds value to entity directly, bypassing Apply's sorted-stream
// merge. It's the scattered-write fast path this collection variant exists
// for: a single insert costs a btree lookup and maybe a free-list pop,
// never an O(n) shift. If entity already has a value, Insert replaces it in
// place.
func (c *InsertOptimizedComponentCollection[E, T]) Insert(entity E, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if item, ok := c.tree.Get(slotEntry[E]{entity: entity}); ok {
		c.values[item.slot] = value
		return
	}
	c.insertLocked(entity, value)
}

// Remove unbinds entity's component immediately, pushing its slot onto the
// free list for reuse. It reports whether entity held a value.
func (c *InsertOptimizedComponentCollection[E, T]) Remove(entity E) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	item, ok := c.tree.Delete(slotEntry[E]{entity: entity})
	if !ok {
		return false
	}
	c.free = append(c.free, item.slot)
	c.count--
	return true
}

// Apply implements ComponentCollection: it walks the sorted change stream,
// applying unbind and value edits via the same free-list/slot machinery as
// Insert/Remove, entity by entity. Unlike the contiguous variants there is
// no need to rebuild the whole backing slice.
func (c *InsertOptimizedComponentCollection[E, T]) Apply(changes []EntityChange[E, T]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range changes {
		if ch.Change.IsUnbind() {
			if item, ok := c.tree.Delete(slotEntry[E]{entity: ch.Entity}); ok {
				c.free = append(c.free, item.slot)
				c.count--
			}
			continue
		}
		if v, ok := ch.Change.ValueOK(); ok {
			if item, exists := c.tree.Get(slotEntry[E]{entity: ch.Entity}); exists {
				c.values[item.slot] = v
			} else {
				c.insertLocked(ch.Entity, v)
			}
		}
	}
}

// Partition splits the collection into scheme.Len()+1 buckets along the
// scheme's dividers. Unlike the contiguous variants this walks the btree in
// order rather than a slice, but produces the same bucket shape: an empty
// bucket is nil.
func (c *InsertOptimizedComponentCollection[E, T]) Partition(scheme PartitioningScheme[E]) []*InsertOptimizedComponentCollection[E, T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	entities := make([]E, 0, c.count)
	values := make([]T, 0, c.count)
	c.tree.Ascend(func(item slotEntry[E]) bool {
		entities = append(entities, item.entity)
		values = append(values, c.values[item.slot])
		return true
	})
	es, vs := partitionValuePairs(entities, values, scheme)
	out := make([]*InsertOptimizedComponentCollection[E, T], len(es))
	for i := range es {
		if len(es[i]) == 0 {
			continue
		}
		out[i] = NewInsertOptimizedComponentCollection[E, T](es[i], vs[i])
	}
	return out
}
