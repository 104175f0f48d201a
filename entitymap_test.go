package meld

import "testing"

func TestVecEntityMapLookup(t *testing.T) {
	m := NewVecEntityMap([]Uint32{2, 4, 6, 8})

	if m.IsEmpty() {
		t.Fatalf("IsEmpty() = true, want false")
	}
	if m.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", m.Len())
	}
	if got := m.Get(2); got != 6 {
		t.Fatalf("Get(2) = %d, want 6", got)
	}

	if off := m.OffsetOf(5); off != 2 {
		t.Fatalf("OffsetOf(5) = %d, want 2", off)
	}
	if off, ok := m.ExactOffsetOf(6); !ok || off != 2 {
		t.Fatalf("ExactOffsetOf(6) = (%d, %v), want (2, true)", off, ok)
	}
	if _, ok := m.ExactOffsetOf(5); ok {
		t.Fatalf("ExactOffsetOf(5) should not find an exact match")
	}

	if got, ok := m.LowerBound(5); !ok || got != 6 {
		t.Fatalf("LowerBound(5) = (%d, %v), want (6, true)", got, ok)
	}
	if _, ok := m.LowerBound(9); ok {
		t.Fatalf("LowerBound(9) should report no match past the end")
	}

	var seen []Uint32
	for e := range m.All() {
		seen = append(seen, e)
	}
	if len(seen) != 4 || seen[0] != 2 || seen[3] != 8 {
		t.Fatalf("All() = %v, want [2 4 6 8]", seen)
	}
}

func TestVecEntityMapEmpty(t *testing.T) {
	m := NewVecEntityMap[Uint32](nil)
	if !m.IsEmpty() {
		t.Fatalf("IsEmpty() = false, want true")
	}
	if _, ok := m.LowerBound(1); ok {
		t.Fatalf("LowerBound on empty map should report no match")
	}
}

func TestVecEntityMapSliceIsDefensiveCopy(t *testing.T) {
	src := []Uint32{1, 2, 3}
	m := NewVecEntityMap(src)
	src[0] = 99
	if m.Get(0) != 1 {
		t.Fatalf("mutating caller's slice mutated the map")
	}

	cp := m.Slice()
	cp[0] = 42
	if m.Get(0) != 1 {
		t.Fatalf("mutating Slice()'s result mutated the map")
	}
}
