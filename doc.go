/*
Package meld provides a sorted-storage Entity-Component-System (ECS) library
for simulations that need predictable iteration order and explicit control
over concurrency.

Unlike an archetype-based ECS, meld keeps each component type in its own
collection ordered by entity, and joins collections together at query time
rather than grouping entities by which components they carry. This trades
some iteration locality for flexibility: components can be added, removed,
or migrated between collection strategies without restructuring the rest of
the world.

Core Concepts:

  - Entity: an ordered identifier (Uint32, Uint64, Uint128, or a user type
    implementing Entity[T]) with no associated data of its own.
  - ComponentCollection: an ordered mapping from entity to component value.
    CopyOnWriteComponentCollection, MutableComponentCollection, and
    InsertOptimizedComponentCollection trade off mutation cost differently.
  - System: a join across collections, expressed as Join2/Join3/Join4 (or
    their parallel, Partitioned-aware counterparts), that visits every
    entity holding all the required components.
  - Partitioned: a collection split into independently-lockable ranges, so a
    system can run across a ThreadPool without partitions stepping on each
    other's entities.

Basic Usage:

	positions := meld.NewCopyOnWriteComponentCollection[meld.Uint32](
		[]meld.Uint32{1, 2, 3},
		[]Position{{X: 0}, {X: 1}, {X: 2}},
	)
	velocities := meld.NewCopyOnWriteComponentCollection[meld.Uint32](
		[]meld.Uint32{1, 2, 3},
		[]Velocity{{DX: 1}, {DX: 1}, {DX: 1}},
	)

	posChanges, _ := meld.Join2(positions, velocities, func(e meld.Uint32, pos meld.ComponentRef[Position], vel meld.ComponentRef[Velocity]) {
		v := vel.Get()
		pos.Update(func(p *Position) { p.X += v.DX })
	})
	positions.Apply(posChanges)

Join2 never mutates positions or velocities directly — it only stages the
edits fn makes into the returned change vectors. Applying them is a
separate, explicit step, so a caller can run several systems' worth of
reads before committing any of their writes.

meld has no rendering, physics, or networking opinions of its own; it only
manages the data and the join.
*/
package meld
