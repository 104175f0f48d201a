package meld

import "errors"

// Sentinel errors for programming-error conditions: violated preconditions
// that indicate a bug in the caller rather than a runtime condition to
// recover from. Callers that hit these in production should treat them the
// way the teacher treats LockedStorageError and friends — as a signal to
// fix the call site, not to retry.
var (
	// errEntityMapSentinel is raised when an entity equal to the type's
	// zero value is inserted into a FastEntityMap, since that value is
	// reserved internally to mark an unused node slot.
	errEntityMapSentinel = errors.New("meld: entity equals the reserved zero-value sentinel")

	// errEntityMapUnsorted is raised when FastEntityMap is built from a
	// sequence that is not strictly increasing.
	errEntityMapUnsorted = errors.New("meld: entities passed to NewFastEntityMap are not strictly sorted")

	// ErrUnsortedChanges names the condition of a change stream that is not
	// sorted by entity. Apply assumes its precondition is met and does not
	// check it, and no function in this package returns this error.
	ErrUnsortedChanges = errors.New("meld: change stream is not sorted by entity")

	// ErrIndexOutOfRange names an offset that is not within [0, Len()).
	// EntityMap.Get has no checked variant: it panics on such an offset,
	// and no function in this package returns this error.
	ErrIndexOutOfRange = errors.New("meld: index out of range")

	// ErrEmptyScheme is the panic value when Partition(i) is called against
	// NopPartitioningScheme, which has no dividers.
	ErrEmptyScheme = errors.New("meld: partitioning scheme has no dividers")

	// ErrSchemeMismatch is returned when a parallel system join is given
	// Partitioned collections built from different partitioning schemes;
	// the zipper algorithm assumes every partition argument carves the
	// entity space identically.
	ErrSchemeMismatch = errors.New("meld: partitioned collections do not share a partitioning scheme")

	// ErrPartitionHeld is returned when a caller attempts to acquire a
	// partition handle that is already checked out, whether through a
	// concurrent serial Apply or an overlapping parallel worker. It
	// signals an exclusivity violation: the same partition must not be
	// mutated from two places at once.
	ErrPartitionHeld = errors.New("meld: partition is already held")

	// ErrPoolShutdown is returned by ThreadPool.Submit once Shutdown has
	// been called; the pool accepts no further work after that point.
	ErrPoolShutdown = errors.New("meld: thread pool is shut down")

	// errZipMissingRef is raised when a system join's merge step confirms
	// an entity present in a collection, but a subsequent GetRef against
	// that same collection misses — meaning the collection was mutated
	// concurrently with the join, which every collection variant's
	// contract forbids.
	errZipMissingRef = errors.New("meld: entity matched by the join is missing from its collection")
)
