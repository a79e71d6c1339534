package decoder

import (
	"encoding/binary"
	"hash/fnv"

	akitacache "github.com/sarchlab/akita/v4/mem/cache"
)

// decision is the outcome of the mask search for one sub-problem.
type decision struct {
	mask uint32
	cost int
}

// memo remembers decisions keyed by the checked mask and the instructions of
// a node. It is a set-associative LRU on top of an akita cache directory; the
// directory tracks tags and recency while the keys and decisions live in side
// arrays indexed by (setID * ways + wayID).
type memo struct {
	ways      int
	directory *akitacache.DirectoryImpl
	keys      []string
	decisions []decision

	hits, misses, evictions uint64
}

func newMemo(sets, ways int) *memo {
	return &memo{
		ways: ways,
		directory: akitacache.NewDirectory(
			sets,
			ways,
			1,
			akitacache.NewLRUVictimFinder(),
		),
		keys:      make([]string, sets*ways),
		decisions: make([]decision, sets*ways),
	}
}

// memoKey encodes a sub-problem. ids are the positions of the node's
// instructions in the synthesiser input.
func memoKey(checkedMask uint32, depth int, ids []int) string {
	buf := make([]byte, 8, 8+4*len(ids))
	binary.LittleEndian.PutUint32(buf, checkedMask)
	binary.LittleEndian.PutUint32(buf[4:], uint32(depth))
	for _, id := range ids {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(id))
	}
	return string(buf)
}

func memoTag(key string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return h.Sum64()
}

func (m *memo) blockIndex(block *akitacache.Block) int {
	return block.SetID*m.ways + block.WayID
}

func (m *memo) get(key string) (decision, bool) {
	block := m.directory.Lookup(0, memoTag(key))
	if block == nil || !block.IsValid || m.keys[m.blockIndex(block)] != key {
		m.misses++
		return decision{}, false
	}
	m.hits++
	m.directory.Visit(block)
	return m.decisions[m.blockIndex(block)], true
}

func (m *memo) put(key string, d decision) {
	tag := memoTag(key)
	block := m.directory.Lookup(0, tag)
	if block == nil || !block.IsValid {
		block = m.directory.FindVictim(tag)
		if block == nil {
			return
		}
		if block.IsValid {
			m.evictions++
		}
	}

	block.Tag = tag
	block.IsValid = true
	m.keys[m.blockIndex(block)] = key
	m.decisions[m.blockIndex(block)] = d
	m.directory.Visit(block)
}

func (m *memo) reset() {
	m.directory.Reset()
	clear(m.keys)
	m.hits, m.misses, m.evictions = 0, 0, 0
}
