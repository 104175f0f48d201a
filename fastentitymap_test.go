package meld

import "testing"

func buildFastEntityMap(t *testing.T, n int) *FastEntityMap[Uint32] {
	t.Helper()
	entities := make([]Uint32, n)
	for i := range entities {
		entities[i] = Uint32((i + 1) * 2)
	}
	return NewFastEntityMap(entities)
}

func TestFastEntityMapMatchesVecEntityMap(t *testing.T) {
	sizes := []int{0, 1, fanOut - 1, fanOut, fanOut + 1, fanOut*fanOut + 5}
	for _, n := range sizes {
		entities := make([]Uint32, n)
		for i := range entities {
			entities[i] = Uint32((i + 1) * 2)
		}
		fast := NewFastEntityMap(entities)
		vec := NewVecEntityMap(entities)

		if fast.Len() != vec.Len() {
			t.Fatalf("n=%d: Len() = %d, want %d", n, fast.Len(), vec.Len())
		}
		if fast.IsEmpty() != vec.IsEmpty() {
			t.Fatalf("n=%d: IsEmpty() mismatch", n)
		}
		for i := 0; i < n; i++ {
			if fast.Get(i) != vec.Get(i) {
				t.Fatalf("n=%d: Get(%d) = %d, want %d", n, i, fast.Get(i), vec.Get(i))
			}
		}
		for q := Uint32(0); q < Uint32(n*2+4); q++ {
			fastGot, fastOK := fast.LowerBound(q)
			vecGot, vecOK := vec.LowerBound(q)
			if fastOK != vecOK || fastGot != vecGot {
				t.Fatalf("n=%d q=%d: LowerBound = (%d,%v), want (%d,%v)", n, q, fastGot, fastOK, vecGot, vecOK)
			}
			if off := fast.OffsetOf(q); off != vec.OffsetOf(q) {
				t.Fatalf("n=%d q=%d: OffsetOf = %d, want %d", n, q, off, vec.OffsetOf(q))
			}
		}
	}
}

func TestFastEntityMapExactOffsetOf(t *testing.T) {
	m := buildFastEntityMap(t, fanOut*2+3)
	if off, ok := m.ExactOffsetOf(4); !ok || off != 1 {
		t.Fatalf("ExactOffsetOf(4) = (%d, %v), want (1, true)", off, ok)
	}
	if _, ok := m.ExactOffsetOf(5); ok {
		t.Fatalf("ExactOffsetOf(5) should not match (entities are all even)")
	}
}

func TestFastEntityMapAllIsSortedAndComplete(t *testing.T) {
	m := buildFastEntityMap(t, fanOut*3+7)
	var seen []Uint32
	for e := range m.All() {
		seen = append(seen, e)
	}
	if len(seen) != m.Len() {
		t.Fatalf("All() yielded %d entities, want %d", len(seen), m.Len())
	}
	for i := 1; i < len(seen); i++ {
		if !seen[i-1].Less(seen[i]) {
			t.Fatalf("All() not strictly ascending at index %d: %d, %d", i, seen[i-1], seen[i])
		}
	}
}

func TestFastEntityMapRejectsZeroSentinel(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic binding the zero-value entity")
		}
	}()
	NewFastEntityMap([]Uint32{0, 1, 2})
}

func TestFastEntityMapRejectsUnsortedInput(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on out-of-order entities")
		}
	}()
	NewFastEntityMap([]Uint32{2, 1, 3})
}
