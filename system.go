package meld

import "github.com/TheBitDrifter/bark"

// zipMustGetRef fetches a ref for an entity zipperJoin has already
// confirmed present in this collection. A miss here means the collection
// mutated out from under the join — a programming error, not a runtime
// condition to recover from — so it panics the same way the teacher panics
// on an invariant violation rather than threading an error return through
// every join arity.
func zipMustGetRef[E Entity[E], T any](c ComponentCollection[E, T], e E) ComponentRef[T] {
	ref, ok := c.GetRef(e)
	if !ok {
		panic(bark.AddTrace(errZipMissingRef))
	}
	return ref
}

// zipperJoin implements the multi-way merge-join at the heart of every
// system step: given one LowerBound probe per collection, it yields every
// entity present in all of them, in ascending order. On a mismatch — some
// collection's probe lands past the current candidate — it does not try to
// advance the mismatched cursor alone; it restarts the whole probe set from
// the first collection at the furthest entity any cursor reported. This is
// the "zipper" restart-from-first strategy: simpler than tracking per-
// collection cursor state, and because LowerBound is itself a search, a
// restart costs one more probe per collection rather than a linear rescan.
func zipperJoin[E Entity[E]](lowerBounds []func(E) (E, bool)) func(yield func(E) bool) {
	return func(yield func(E) bool) {
		var zero E
		candidate, ok := lowerBounds[0](zero)
		if !ok {
			return
		}
		for {
			matched := true
			furthest := candidate
			for _, lb := range lowerBounds {
				e, ok := lb(candidate)
				if !ok {
					return
				}
				if e != candidate {
					matched = false
				}
				if furthest.Less(e) {
					furthest = e
				}
			}
			if matched {
				if !yield(candidate) {
					return
				}
				if candidate == candidate.Max() {
					return
				}
				candidate, ok = lowerBounds[0](candidate.Increment())
				if !ok {
					return
				}
				continue
			}
			candidate, ok = lowerBounds[0](furthest)
			if !ok {
				return
			}
		}
	}
}

// Join2 runs fn against every entity holding a component in both a and b.
// fn may read, mutate, or unbind either component through the refs it
// receives. Join2 itself never mutates a or b: it only stages the resulting
// edits into the two returned change vectors, one per collection, in
// ascending-entity order. The caller decides when to commit them, typically
// by passing each vector to the matching collection's Apply once every
// system of the step has run — the "read, process, stage, deferred apply"
// sequence.
func Join2[E Entity[E], T1, T2 any](
	a ComponentCollection[E, T1],
	b ComponentCollection[E, T2],
	fn func(entity E, r1 ComponentRef[T1], r2 ComponentRef[T2]),
) (changes1 []EntityChange[E, T1], changes2 []EntityChange[E, T2]) {
	for e := range zipperJoin([]func(E) (E, bool){a.LowerBound, b.LowerBound}) {
		r1 := zipMustGetRef[E, T1](a, e)
		r2 := zipMustGetRef[E, T2](b, e)
		fn(e, r1, r2)
		changes1 = append(changes1, EntityChange[E, T1]{Entity: e, Change: r1.Change()})
		changes2 = append(changes2, EntityChange[E, T2]{Entity: e, Change: r2.Change()})
	}
	return changes1, changes2
}

// Join3 is Join2 generalized to three collections.
func Join3[E Entity[E], T1, T2, T3 any](
	a ComponentCollection[E, T1],
	b ComponentCollection[E, T2],
	c ComponentCollection[E, T3],
	fn func(entity E, r1 ComponentRef[T1], r2 ComponentRef[T2], r3 ComponentRef[T3]),
) (changes1 []EntityChange[E, T1], changes2 []EntityChange[E, T2], changes3 []EntityChange[E, T3]) {
	for e := range zipperJoin([]func(E) (E, bool){a.LowerBound, b.LowerBound, c.LowerBound}) {
		r1 := zipMustGetRef[E, T1](a, e)
		r2 := zipMustGetRef[E, T2](b, e)
		r3 := zipMustGetRef[E, T3](c, e)
		fn(e, r1, r2, r3)
		changes1 = append(changes1, EntityChange[E, T1]{Entity: e, Change: r1.Change()})
		changes2 = append(changes2, EntityChange[E, T2]{Entity: e, Change: r2.Change()})
		changes3 = append(changes3, EntityChange[E, T3]{Entity: e, Change: r3.Change()})
	}
	return changes1, changes2, changes3
}

// Join4 is Join2 generalized to four collections.
func Join4[E Entity[E], T1, T2, T3, T4 any](
	a ComponentCollection[E, T1],
	b ComponentCollection[E, T2],
	c ComponentCollection[E, T3],
	d ComponentCollection[E, T4],
	fn func(entity E, r1 ComponentRef[T1], r2 ComponentRef[T2], r3 ComponentRef[T3], r4 ComponentRef[T4]),
) (changes1 []EntityChange[E, T1], changes2 []EntityChange[E, T2], changes3 []EntityChange[E, T3], changes4 []EntityChange[E, T4]) {
	for e := range zipperJoin([]func(E) (E, bool){a.LowerBound, b.LowerBound, c.LowerBound, d.LowerBound}) {
		r1 := zipMustGetRef[E, T1](a, e)
		r2 := zipMustGetRef[E, T2](b, e)
		r3 := zipMustGetRef[E, T3](c, e)
		r4 := zipMustGetRef[E, T4](d, e)
		fn(e, r1, r2, r3, r4)
		changes1 = append(changes1, EntityChange[E, T1]{Entity: e, Change: r1.Change()})
		changes2 = append(changes2, EntityChange[E, T2]{Entity: e, Change: r2.Change()})
		changes3 = append(changes3, EntityChange[E, T3]{Entity: e, Change: r3.Change()})
		changes4 = append(changes4, EntityChange[E, T4]{Entity: e, Change: r4.Change()})
	}
	return changes1, changes2, changes3, changes4
}

// RunSubset2 runs fn only against the entities in subset that hold a
// component in both a and b, skipping the rest. subset need not be sorted;
// RunSubset2 sorts a working copy before walking it, since the returned
// change vectors must be sorted by entity for Apply. Like Join2, it stages
// edits into the returned vectors rather than applying them.
func RunSubset2[E Entity[E], T1, T2 any](
	a ComponentCollection[E, T1],
	b ComponentCollection[E, T2],
	subset []E,
	fn func(entity E, r1 ComponentRef[T1], r2 ComponentRef[T2]),
) (changes1 []EntityChange[E, T1], changes2 []EntityChange[E, T2]) {
	sorted := sortedCopy(subset)
	for _, e := range sorted {
		r1, ok1 := a.GetRef(e)
		if !ok1 {
			continue
		}
		r2, ok2 := b.GetRef(e)
		if !ok2 {
			changes1 = append(changes1, EntityChange[E, T1]{Entity: e, Change: r1.Change()})
			continue
		}
		fn(e, r1, r2)
		changes1 = append(changes1, EntityChange[E, T1]{Entity: e, Change: r1.Change()})
		changes2 = append(changes2, EntityChange[E, T2]{Entity: e, Change: r2.Change()})
	}
	return changes1, changes2
}

// RunSubset3 is RunSubset2 generalized to three collections.
func RunSubset3[E Entity[E], T1, T2, T3 any](
	a ComponentCollection[E, T1],
	b ComponentCollection[E, T2],
	c ComponentCollection[E, T3],
	subset []E,
	fn func(entity E, r1 ComponentRef[T1], r2 ComponentRef[T2], r3 ComponentRef[T3]),
) (changes1 []EntityChange[E, T1], changes2 []EntityChange[E, T2], changes3 []EntityChange[E, T3]) {
	sorted := sortedCopy(subset)
	for _, e := range sorted {
		r1, ok1 := a.GetRef(e)
		if !ok1 {
			continue
		}
		r2, ok2 := b.GetRef(e)
		if !ok2 {
			changes1 = append(changes1, EntityChange[E, T1]{Entity: e, Change: r1.Change()})
			continue
		}
		r3, ok3 := c.GetRef(e)
		if !ok3 {
			changes1 = append(changes1, EntityChange[E, T1]{Entity: e, Change: r1.Change()})
			changes2 = append(changes2, EntityChange[E, T2]{Entity: e, Change: r2.Change()})
			continue
		}
		fn(e, r1, r2, r3)
		changes1 = append(changes1, EntityChange[E, T1]{Entity: e, Change: r1.Change()})
		changes2 = append(changes2, EntityChange[E, T2]{Entity: e, Change: r2.Change()})
		changes3 = append(changes3, EntityChange[E, T3]{Entity: e, Change: r3.Change()})
	}
	return changes1, changes2, changes3
}

// RunSubset4 is RunSubset2 generalized to four collections.
func RunSubset4[E Entity[E], T1, T2, T3, T4 any](
	a ComponentCollection[E, T1],
	b ComponentCollection[E, T2],
	c ComponentCollection[E, T3],
	d ComponentCollection[E, T4],
	subset []E,
	fn func(entity E, r1 ComponentRef[T1], r2 ComponentRef[T2], r3 ComponentRef[T3], r4 ComponentRef[T4]),
) (changes1 []EntityChange[E, T1], changes2 []EntityChange[E, T2], changes3 []EntityChange[E, T3], changes4 []EntityChange[E, T4]) {
	sorted := sortedCopy(subset)
	for _, e := range sorted {
		r1, ok1 := a.GetRef(e)
		if !ok1 {
			continue
		}
		r2, ok2 := b.GetRef(e)
		if !ok2 {
			changes1 = append(changes1, EntityChange[E, T1]{Entity: e, Change: r1.Change()})
			continue
		}
		r3, ok3 := c.GetRef(e)
		if !ok3 {
			changes1 = append(changes1, EntityChange[E, T1]{Entity: e, Change: r1.Change()})
			changes2 = append(changes2, EntityChange[E, T2]{Entity: e, Change: r2.Change()})
			continue
		}
		r4, ok4 := d.GetRef(e)
		if !ok4 {
			changes1 = append(changes1, EntityChange[E, T1]{Entity: e, Change: r1.Change()})
			changes2 = append(changes2, EntityChange[E, T2]{Entity: e, Change: r2.Change()})
			changes3 = append(changes3, EntityChange[E, T3]{Entity: e, Change: r3.Change()})
			continue
		}
		fn(e, r1, r2, r3, r4)
		changes1 = append(changes1, EntityChange[E, T1]{Entity: e, Change: r1.Change()})
		changes2 = append(changes2, EntityChange[E, T2]{Entity: e, Change: r2.Change()})
		changes3 = append(changes3, EntityChange[E, T3]{Entity: e, Change: r3.Change()})
		changes4 = append(changes4, EntityChange[E, T4]{Entity: e, Change: r4.Change()})
	}
	return changes1, changes2, changes3, changes4
}

// sortedCopy returns a sorted copy of entities, used by the RunSubset
// family so the returned change vectors are always in entity order.
func sortedCopy[E Entity[E]](entities []E) []E {
	out := append([]E(nil), entities...)
	insertionSort(out)
	return out
}

// insertionSort sorts small entity slices in place. RunSubset callers pass
// hand-picked subsets that are typically small (a frame's worth of
// collision pairs, a debug selection), so an O(n^2) sort avoids pulling in
// sort.Slice's reflection-based comparator for what's usually a handful of
// elements; larger subsets still sort correctly, just not asymptotically
// optimally.
func insertionSort[E Entity[E]](entities []E) {
	for i := 1; i < len(entities); i++ {
		for j := i; j > 0 && entities[j].Less(entities[j-1]); j-- {
			entities[j], entities[j-1] = entities[j-1], entities[j]
		}
	}
}
