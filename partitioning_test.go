package meld

import "testing"

func TestNopPartitioningScheme(t *testing.T) {
	var s NopPartitioningScheme[Uint32]
	if s.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", s.Len())
	}
	defer func() {
		if recover() == nil {
			t.Fatalf("Partition(0) on an empty scheme should panic")
		}
	}()
	s.Partition(0)
}

func TestVecPartitioningScheme(t *testing.T) {
	s := NewVecPartitioningScheme([]Uint32{10, 20})
	if s.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", s.Len())
	}
	if s.Partition(0) != 10 || s.Partition(1) != 20 {
		t.Fatalf("unexpected dividers: %d, %d", s.Partition(0), s.Partition(1))
	}
}

func TestPartitionedAcquireReleaseExclusivity(t *testing.T) {
	scheme := NewVecPartitioningScheme([]Uint32{10})
	a := NewCopyOnWriteComponentCollection([]Uint32{1, 2}, []int{1, 2})
	b := NewCopyOnWriteComponentCollection([]Uint32{11, 12}, []int{11, 12})
	p := NewPartitioned[Uint32, int](scheme, []*CopyOnWriteComponentCollection[Uint32, int]{a, b})

	if p.PartitionCount() != 2 {
		t.Fatalf("PartitionCount() = %d, want 2", p.PartitionCount())
	}
	if p.Len() != 4 {
		t.Fatalf("Len() = %d, want 4 (aggregate entity count, not partition count)", p.Len())
	}

	got, err := p.Acquire(0)
	if err != nil {
		t.Fatalf("first Acquire(0) returned error: %v", err)
	}
	if _, err := p.Acquire(0); err != ErrPartitionHeld {
		t.Fatalf("second Acquire(0) = %v, want ErrPartitionHeld", err)
	}
	p.Release(0, got)
	if _, err := p.Acquire(0); err != nil {
		t.Fatalf("Acquire(0) after Release returned error: %v", err)
	}
}

func TestApplySerialAppliesEveryPartition(t *testing.T) {
	scheme := NewVecPartitioningScheme([]Uint32{10})
	a := NewCopyOnWriteComponentCollection([]Uint32{1, 2}, []int{1, 2})
	b := NewCopyOnWriteComponentCollection([]Uint32{11, 12}, []int{11, 12})
	p := NewPartitioned[Uint32, int](scheme, []*CopyOnWriteComponentCollection[Uint32, int]{a, b})

	err := ApplySerial[Uint32, int](p, [][]EntityChange[Uint32, int]{
		{{Entity: 1, Change: Unbind[int]()}},
		{{Entity: 13, Change: Value(13)}},
	})
	if err != nil {
		t.Fatalf("ApplySerial returned error: %v", err)
	}

	c0, _ := p.Acquire(0)
	if c0.Len() != 1 {
		t.Fatalf("partition 0 len = %d, want 1", c0.Len())
	}
	p.Release(0, c0)

	c1, _ := p.Acquire(1)
	if c1.Len() != 3 {
		t.Fatalf("partition 1 len = %d, want 3", c1.Len())
	}
	p.Release(1, c1)
}

func TestApplyParallelAppliesEveryPartition(t *testing.T) {
	scheme := NewVecPartitioningScheme([]Uint32{10, 20})
	a := NewCopyOnWriteComponentCollection([]Uint32{1}, []int{1})
	b := NewCopyOnWriteComponentCollection([]Uint32{11}, []int{11})
	c := NewCopyOnWriteComponentCollection([]Uint32{21}, []int{21})
	p := NewPartitioned[Uint32, int](scheme, []*CopyOnWriteComponentCollection[Uint32, int]{a, b, c})

	pool := NewThreadPool(3)
	defer pool.Shutdown()

	err := ApplyParallel[Uint32, int](pool, p, [][]EntityChange[Uint32, int]{
		{{Entity: 2, Change: Value(2)}},
		{{Entity: 12, Change: Value(12)}},
		{{Entity: 22, Change: Value(22)}},
	})
	if err != nil {
		t.Fatalf("ApplyParallel returned error: %v", err)
	}

	for i, want := range []int{2, 2, 2} {
		pc, _ := p.Acquire(i)
		if pc.Len() != want {
			t.Fatalf("partition %d len = %d, want %d", i, pc.Len(), want)
		}
		p.Release(i, pc)
	}
}

// TestPartitionedLowerBoundRoutesThroughScheme is scenario 6: dividers
// [100, 200] carve entities [50, 150, 250] into three partitions.
// LowerBound(120) must land on 150 (partition 1, the one
// scheme.LowerBound(120) names); LowerBound(300) must report absent, since
// nothing in partition 2 or later is >= 300.
func TestPartitionedLowerBoundRoutesThroughScheme(t *testing.T) {
	scheme := NewVecPartitioningScheme([]Uint32{100, 200})
	low := NewCopyOnWriteComponentCollection([]Uint32{50}, []int{50})
	mid := NewCopyOnWriteComponentCollection([]Uint32{150}, []int{150})
	high := NewCopyOnWriteComponentCollection([]Uint32{250}, []int{250})
	p := NewPartitioned[Uint32, int](scheme, []*CopyOnWriteComponentCollection[Uint32, int]{low, mid, high})

	if got, ok := p.LowerBound(120); !ok || got != 150 {
		t.Fatalf("LowerBound(120) = (%v, %v), want (150, true)", got, ok)
	}
	if got, ok := p.LowerBound(300); ok {
		t.Fatalf("LowerBound(300) = (%v, true), want absent", got)
	}
}

// TestPartitionedGetRefRoutesToSinglePartition confirms GetRef resolves an
// exact entity by routing to the one partition scheme.LowerBound names,
// rather than scanning every partition.
func TestPartitionedGetRefRoutesToSinglePartition(t *testing.T) {
	scheme := NewVecPartitioningScheme([]Uint32{100, 200})
	low := NewCopyOnWriteComponentCollection([]Uint32{50}, []int{5})
	mid := NewCopyOnWriteComponentCollection([]Uint32{150}, []int{15})
	high := NewCopyOnWriteComponentCollection([]Uint32{250}, []int{25})
	p := NewPartitioned[Uint32, int](scheme, []*CopyOnWriteComponentCollection[Uint32, int]{low, mid, high})

	ref, ok := p.GetRef(150)
	if !ok {
		t.Fatalf("GetRef(150) missing")
	}
	if got := ref.Get(); got != 15 {
		t.Fatalf("GetRef(150).Get() = %d, want 15", got)
	}
	if _, ok := p.GetRef(120); ok {
		t.Fatalf("GetRef(120) should miss: no entity 120 exists")
	}
}

// TestPartitionedIsEmptyTreatsAbsentPartitionsAsEmpty confirms IsEmpty
// aggregates across partitions, including a nil (absent) partition
// produced by Partition's empty-bucket convention.
func TestPartitionedIsEmptyTreatsAbsentPartitionsAsEmpty(t *testing.T) {
	scheme := NewVecPartitioningScheme([]Uint32{100})
	whole := NewCopyOnWriteComponentCollection([]Uint32{5}, []int{5})
	parts := whole.Partition(scheme)
	p := NewPartitioned[Uint32, int](scheme, parts)

	if parts[1] != nil {
		t.Fatalf("expected second bucket to be absent (nil)")
	}
	if p.IsEmpty() {
		t.Fatalf("IsEmpty() = true, want false: partition 0 holds an entity")
	}

	emptyWhole := NewCopyOnWriteComponentCollection([]Uint32{}, []int{})
	emptyParts := emptyWhole.Partition(scheme)
	emptyP := NewPartitioned[Uint32, int](scheme, emptyParts)
	if !emptyP.IsEmpty() {
		t.Fatalf("IsEmpty() = false, want true: every partition is absent")
	}
}

// TestPartitionedConsumeConcatenatesPartitionsInOrder confirms Consume
// walks every non-absent partition in order, and fails fast with
// ErrPartitionHeld instead of yielding a partial sequence if a partition is
// already checked out.
func TestPartitionedConsumeConcatenatesPartitionsInOrder(t *testing.T) {
	scheme := NewVecPartitioningScheme([]Uint32{100})
	low := NewCopyOnWriteComponentCollection([]Uint32{1, 2}, []int{10, 20})
	high := NewCopyOnWriteComponentCollection([]Uint32{101}, []int{101})
	p := NewPartitioned[Uint32, int](scheme, []*CopyOnWriteComponentCollection[Uint32, int]{low, high})

	it, err := p.Consume()
	if err != nil {
		t.Fatalf("Consume returned error: %v", err)
	}
	var entities []Uint32
	for e := range it {
		entities = append(entities, e)
	}
	if len(entities) != 3 || entities[0] != 1 || entities[1] != 2 || entities[2] != 101 {
		t.Fatalf("Consume yielded %v, want [1 2 101]", entities)
	}

	held, err := p.Acquire(0)
	if err != nil {
		t.Fatalf("Acquire(0): %v", err)
	}
	defer p.Release(0, held)
	if _, err := p.Consume(); err != ErrPartitionHeld {
		t.Fatalf("Consume while partition 0 is held = %v, want ErrPartitionHeld", err)
	}
}

// TestPartitionedConsumeEarlyBreakStillReleases confirms the iterator
// releases every acquired partition even when the caller stops early.
func TestPartitionedConsumeEarlyBreakStillReleases(t *testing.T) {
	scheme := NewVecPartitioningScheme([]Uint32{100})
	low := NewCopyOnWriteComponentCollection([]Uint32{1, 2}, []int{10, 20})
	high := NewCopyOnWriteComponentCollection([]Uint32{101}, []int{101})
	p := NewPartitioned[Uint32, int](scheme, []*CopyOnWriteComponentCollection[Uint32, int]{low, high})

	it, err := p.Consume()
	if err != nil {
		t.Fatalf("Consume returned error: %v", err)
	}
	for e := range it {
		if e == 1 {
			break
		}
	}

	if _, err := p.Acquire(0); err != nil {
		t.Fatalf("Acquire(0) after early break = %v, want nil (should have been released)", err)
	}
	if _, err := p.Acquire(1); err != nil {
		t.Fatalf("Acquire(1) after early break = %v, want nil (should have been released)", err)
	}
}

// TestVecPartitioningSchemeLowerBound exercises the scheme's own LowerBound
// directly, independent of Partitioned's routing.
func TestVecPartitioningSchemeLowerBound(t *testing.T) {
	s := NewVecPartitioningScheme([]Uint32{100, 200})
	if got := s.LowerBound(120); got != 1 {
		t.Fatalf("LowerBound(120) = %d, want 1", got)
	}
	if got := s.LowerBound(300); got != 2 {
		t.Fatalf("LowerBound(300) = %d, want 2", got)
	}
	if got := s.LowerBound(50); got != 0 {
		t.Fatalf("LowerBound(50) = %d, want 0", got)
	}
}

func TestNopPartitioningSchemeLowerBoundAndIsEmpty(t *testing.T) {
	var s NopPartitioningScheme[Uint32]
	if !s.IsEmpty() {
		t.Fatalf("IsEmpty() = false, want true")
	}
	if got := s.LowerBound(42); got != 0 {
		t.Fatalf("LowerBound(42) = %d, want 0", got)
	}
}
