package meld

import "sync"

// schemesEqual reports whether two partitioning schemes carve the entity
// space identically. Two Partitioned collections passed to the same
// parallel join must agree, or a worker would apply partition i's changes
// under a different partition's boundary than another worker assumed.
func schemesEqual[E Entity[E]](a, b PartitioningScheme[E]) bool {
	if a.Len() != b.Len() {
		return false
	}
	for i := 0; i < a.Len(); i++ {
		if a.Partition(i) != b.Partition(i) {
			return false
		}
	}
	return true
}

// submitTracked submits work to the pool, and if the pool has already been
// shut down, immediately counts the work as done (recording the submit
// error) instead of letting wg.Wait block forever on a unit that will
// never run.
func submitTracked(pool *ThreadPool, wg *sync.WaitGroup, mu *sync.Mutex, firstErr *error, work func()) {
	if err := pool.Submit(work); err != nil {
		wg.Done()
		mu.Lock()
		if *firstErr == nil {
			*firstErr = err
		}
		mu.Unlock()
	}
}

// JoinParallel2 is Join2 fanned out across a Partitioned pair's partitions,
// one ThreadPool work unit per partition. Every partition's entities are
// disjoint from every other's by construction, so each worker runs Join2
// against its own pair of partition collections with no coordination beyond
// the pool itself. Each worker's Join2 call produces an Intermediate result
// — one change vector per collection, scoped to that partition — which this
// function stores at the worker's own partition index; no other
// synchronization is needed because distinct workers never write the same
// index.
//
// JoinParallel2 returns immediately after submitting every partition's
// work, without waiting for any of it to finish. It returns a gather
// closure instead: calling it blocks until every partition has run (the
// done-count/condvar barrier lives inside ThreadPool and sync.WaitGroup
// here), then returns the per-collection results transposed from
// partition-major (one Intermediate per partition) to collection-major (one
// vector-of-vectors per collection, outer index by partition). Concatenating
// a collection's inner vectors in partition order reproduces exactly what
// the equivalent serial Join2 would have produced. If a and b were built
// from schemes with different dividers, it submits no work and the returned
// closure only reports ErrSchemeMismatch.
func JoinParallel2[E Entity[E], T1, T2 any, C1 Collection[E, T1], C2 Collection[E, T2]](
	pool *ThreadPool,
	a *Partitioned[E, T1, C1],
	b *Partitioned[E, T2, C2],
	fn func(entity E, r1 ComponentRef[T1], r2 ComponentRef[T2]),
) func() ([][]EntityChange[E, T1], [][]EntityChange[E, T2], error) {
	if !schemesEqual(a.Scheme(), b.Scheme()) {
		return func() ([][]EntityChange[E, T1], [][]EntityChange[E, T2], error) {
			return nil, nil, ErrSchemeMismatch
		}
	}
	n := a.PartitionCount()
	changes1 := make([][]EntityChange[E, T1], n)
	changes2 := make([][]EntityChange[E, T2], n)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error
	wg.Add(n)
	for i := 0; i < n; i++ {
		i := i
		submitTracked(pool, &wg, &mu, &firstErr, func() {
			defer wg.Done()
			ca, err := a.Acquire(i)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}
			cb, err := b.Acquire(i)
			if err != nil {
				a.Release(i, ca)
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}
			c1, c2 := Join2[E, T1, T2](ca, cb, fn)
			changes1[i] = c1
			changes2[i] = c2
			a.Release(i, ca)
			b.Release(i, cb)
		})
	}
	return func() ([][]EntityChange[E, T1], [][]EntityChange[E, T2], error) {
		wg.Wait()
		return changes1, changes2, firstErr
	}
}

// JoinParallel3 is JoinParallel2 generalized to three Partitioned arguments.
func JoinParallel3[E Entity[E], T1, T2, T3 any, C1 Collection[E, T1], C2 Collection[E, T2], C3 Collection[E, T3]](
	pool *ThreadPool,
	a *Partitioned[E, T1, C1],
	b *Partitioned[E, T2, C2],
	c *Partitioned[E, T3, C3],
	fn func(entity E, r1 ComponentRef[T1], r2 ComponentRef[T2], r3 ComponentRef[T3]),
) func() ([][]EntityChange[E, T1], [][]EntityChange[E, T2], [][]EntityChange[E, T3], error) {
	if !schemesEqual(a.Scheme(), b.Scheme()) || !schemesEqual(a.Scheme(), c.Scheme()) {
		return func() ([][]EntityChange[E, T1], [][]EntityChange[E, T2], [][]EntityChange[E, T3], error) {
			return nil, nil, nil, ErrSchemeMismatch
		}
	}
	n := a.PartitionCount()
	changes1 := make([][]EntityChange[E, T1], n)
	changes2 := make([][]EntityChange[E, T2], n)
	changes3 := make([][]EntityChange[E, T3], n)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error
	wg.Add(n)
	for i := 0; i < n; i++ {
		i := i
		submitTracked(pool, &wg, &mu, &firstErr, func() {
			defer wg.Done()
			ca, err := a.Acquire(i)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}
			cb, err := b.Acquire(i)
			if err != nil {
				a.Release(i, ca)
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}
			cc, err := c.Acquire(i)
			if err != nil {
				a.Release(i, ca)
				b.Release(i, cb)
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}
			c1, c2, c3 := Join3[E, T1, T2, T3](ca, cb, cc, fn)
			changes1[i] = c1
			changes2[i] = c2
			changes3[i] = c3
			a.Release(i, ca)
			b.Release(i, cb)
			c.Release(i, cc)
		})
	}
	return func() ([][]EntityChange[E, T1], [][]EntityChange[E, T2], [][]EntityChange[E, T3], error) {
		wg.Wait()
		return changes1, changes2, changes3, firstErr
	}
}

// JoinParallel4 is JoinParallel2 generalized to four Partitioned arguments.
func JoinParallel4[E Entity[E], T1, T2, T3, T4 any, C1 Collection[E, T1], C2 Collection[E, T2], C3 Collection[E, T3], C4 Collection[E, T4]](
	pool *ThreadPool,
	a *Partitioned[E, T1, C1],
	b *Partitioned[E, T2, C2],
	c *Partitioned[E, T3, C3],
	d *Partitioned[E, T4, C4],
	fn func(entity E, r1 ComponentRef[T1], r2 ComponentRef[T2], r3 ComponentRef[T3], r4 ComponentRef[T4]),
) func() ([][]EntityChange[E, T1], [][]EntityChange[E, T2], [][]EntityChange[E, T3], [][]EntityChange[E, T4], error) {
	if !schemesEqual(a.Scheme(), b.Scheme()) || !schemesEqual(a.Scheme(), c.Scheme()) || !schemesEqual(a.Scheme(), d.Scheme()) {
		return func() ([][]EntityChange[E, T1], [][]EntityChange[E, T2], [][]EntityChange[E, T3], [][]EntityChange[E, T4], error) {
			return nil, nil, nil, nil, ErrSchemeMismatch
		}
	}
	n := a.PartitionCount()
	changes1 := make([][]EntityChange[E, T1], n)
	changes2 := make([][]EntityChange[E, T2], n)
	changes3 := make([][]EntityChange[E, T3], n)
	changes4 := make([][]EntityChange[E, T4], n)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error
	wg.Add(n)
	for i := 0; i < n; i++ {
		i := i
		submitTracked(pool, &wg, &mu, &firstErr, func() {
			defer wg.Done()
			ca, err := a.Acquire(i)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}
			cb, err := b.Acquire(i)
			if err != nil {
				a.Release(i, ca)
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}
			cc, err := c.Acquire(i)
			if err != nil {
				a.Release(i, ca)
				b.Release(i, cb)
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}
			cd, err := d.Acquire(i)
			if err != nil {
				a.Release(i, ca)
				b.Release(i, cb)
				c.Release(i, cc)
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}
			c1, c2, c3, c4 := Join4[E, T1, T2, T3, T4](ca, cb, cc, cd, fn)
			changes1[i] = c1
			changes2[i] = c2
			changes3[i] = c3
			changes4[i] = c4
			a.Release(i, ca)
			b.Release(i, cb)
			c.Release(i, cc)
			d.Release(i, cd)
		})
	}
	return func() ([][]EntityChange[E, T1], [][]EntityChange[E, T2], [][]EntityChange[E, T3], [][]EntityChange[E, T4], error) {
		wg.Wait()
		return changes1, changes2, changes3, changes4, firstErr
	}
}
