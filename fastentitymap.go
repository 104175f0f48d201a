package meld

import "github.com/TheBitDrifter/bark"

// fanOut is the number of entities (or child pointers) held per node. A
// node is one flags word, one offset word and fanOut entities: 144 bytes
// for Uint32 (140 bytes of fields plus struct padding), more for wider
// entities, with no alignment to a cache-line boundary. It is kept fixed across entity widths so
// FastEntityMap's shape doesn't vary by instantiation. Changing it is a
// performance-observable change.
const fanOut = 31

const (
	flagIsLeaf = uint64(1) << 6
	flagCountMask = uint64(0x1f)
)

// fastNode is one node of the fan-out tree: either a leaf holding up to
// fanOut entities, or an internal node holding up to fanOut separator keys
// (the first entity of each subsequent sibling block) plus the base offset
// of its first child.
type fastNode[E Entity[E]] struct {
	flags    uint64
	offset   int
	entities [fanOut]E
}

func (n *fastNode[E]) len() int { return int(n.flags & flagCountMask) }

func (n *fastNode[E]) isLeaf() bool { return n.flags&flagIsLeaf != 0 }

// lowerBound scans this node's live slots for the least slot whose entity
// is >= query, returning n.len() if none qualifies. The scan is linear by
// design: it walks one contiguous node and lets the hardware
// prefetch/pipeline the comparisons, bounding the whole descent to
// O(log_fanOut(n)) node visits instead of O(log_2(n)).
func (n *fastNode[E]) lowerBound(entity E) int {
	sz := n.len()
	for i := 0; i < sz; i++ {
		if !n.entities[i].Less(entity) {
			return i
		}
	}
	return sz
}

// FastEntityMap is a cache-aware EntityMap backed by a static, array
// flattened search tree with fan-out 31. It is slower to construct than
// VecEntityMap but probes in fewer cache misses for large maps.
type FastEntityMap[E Entity[E]] struct {
	nodes []fastNode[E]
	size  int
}

// NewFastEntityMap builds a FastEntityMap from an already
// strictly-increasing sequence of entities. It panics if any entity equals
// the zero-value sentinel, since that value is reserved to mark an empty
// slot within a node.
func NewFastEntityMap[E Entity[E]](entities []E) *FastEntityMap[E] {
	var zero E
	nodes := []fastNode[E]{{flags: flagIsLeaf}}
	index := 0
	var prev E
	count := 0
	for _, e := range entities {
		if e == zero {
			panic(bark.AddTrace(errEntityMapSentinel))
		}
		if index >= fanOut {
			nodes = append(nodes, fastNode[E]{flags: flagIsLeaf})
			index = 0
		}
		if count > 0 && !prev.Less(e) {
			panic(bark.AddTrace(errEntityMapUnsorted))
		}
		last := len(nodes) - 1
		nodes[last].entities[index] = e
		nodes[last].flags++
		index++
		count++
		prev = e
	}
	return seal[E](count, nodes, 0, len(nodes))
}

// seal repeatedly builds a layer of internal nodes over [start, limit),
// each internal slot holding the first entity of the subsequent sibling
// block as a separator key, until a single root node remains.
func seal[E Entity[E]](size int, nodes []fastNode[E], start, limit int) *FastEntityMap[E] {
	var zero E
	if start+1 >= limit {
		return &FastEntityMap[E]{nodes: nodes, size: size}
	}
	newStart := len(nodes)
	internalIndex := 0
	nodes = append(nodes, fastNode[E]{offset: start})
	for child := start; child < limit; child++ {
		if child+1 < limit {
			if internalIndex >= fanOut {
				nodes = append(nodes, fastNode[E]{offset: child})
				internalIndex = 0
			}
			last := len(nodes) - 1
			sep := nodes[child+1].entities[0]
			if sep == zero {
				panic(bark.AddTrace(errEntityMapSentinel))
			}
			nodes[last].entities[internalIndex] = sep
			nodes[last].flags++
			internalIndex++
		}
	}
	newLimit := len(nodes)
	return seal[E](size, nodes, newStart, newLimit)
}

// IsEmpty implements EntityMap.
func (m *FastEntityMap[E]) IsEmpty() bool {
	return len(m.nodes) == 0 || m.nodes[len(m.nodes)-1].len() == 0
}

// Len implements EntityMap.
func (m *FastEntityMap[E]) Len() int { return m.size }

// Get implements EntityMap.
func (m *FastEntityMap[E]) Get(offset int) E {
	return m.nodes[offset/fanOut].entities[offset%fanOut]
}

func (m *FastEntityMap[E]) offsetOfRecursive(entity E, index int) int {
	node := &m.nodes[index]
	offset := node.lowerBound(entity)
	if node.isLeaf() {
		return index*fanOut + offset
	}
	return m.offsetOfRecursive(entity, node.offset+offset)
}

// OffsetOf implements EntityMap.
func (m *FastEntityMap[E]) OffsetOf(entity E) int {
	if len(m.nodes) == 0 {
		return 0
	}
	return m.offsetOfRecursive(entity, len(m.nodes)-1)
}

// ExactOffsetOf implements EntityMap.
func (m *FastEntityMap[E]) ExactOffsetOf(entity E) (int, bool) {
	if len(m.nodes) == 0 {
		return 0, false
	}
	offset := m.offsetOfRecursive(entity, len(m.nodes)-1)
	if offset < m.size && m.Get(offset) == entity {
		return offset, true
	}
	return 0, false
}

func (m *FastEntityMap[E]) lowerBoundRecursive(entity E, divider E, haveDivider bool, index int) (E, bool) {
	node := &m.nodes[index]
	offset := node.lowerBound(entity)
	if node.isLeaf() {
		if offset < node.len() {
			return node.entities[offset], true
		}
		return divider, haveDivider
	}
	if offset < node.len() {
		divider, haveDivider = node.entities[offset], true
	}
	return m.lowerBoundRecursive(entity, divider, haveDivider, node.offset+offset)
}

// LowerBound implements EntityMap.
func (m *FastEntityMap[E]) LowerBound(entity E) (E, bool) {
	if len(m.nodes) == 0 {
		var zero E
		return zero, false
	}
	var zero E
	return m.lowerBoundRecursive(entity, zero, false, len(m.nodes)-1)
}

// All implements EntityMap.
func (m *FastEntityMap[E]) All() func(yield func(E) bool) {
	return func(yield func(E) bool) {
		for i := range m.nodes {
			node := &m.nodes[i]
			if !node.isLeaf() {
				return
			}
			for j := 0; j < node.len(); j++ {
				if !yield(node.entities[j]) {
					return
				}
			}
		}
	}
}
