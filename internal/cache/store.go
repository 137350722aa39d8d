package cache

const (
	blockShift = 16
	blockSize  = 1 << blockShift
	blockMask  = blockSize - 1
)

// blockStore is a sparse sample array indexed by elapsed time. Storage is
// allocated one fixed-size block at a time, so any note length fits without
// reallocating what is already there.
type blockStore struct {
	blocks [][]float32
	count  int
}

func (b *blockStore) set(t int, v float32) {
	bi := t >> blockShift
	if bi >= len(b.blocks) {
		grown := make([][]float32, bi+1, max(bi+1, 2*len(b.blocks)))
		copy(grown, b.blocks)
		b.blocks = grown
	}
	if b.blocks[bi] == nil {
		b.blocks[bi] = make([]float32, blockSize)
		b.count++
	}
	b.blocks[bi][t&blockMask] = v
}

// at must only be called for indices previously set.
func (b *blockStore) at(t int) float32 {
	return b.blocks[t>>blockShift][t&blockMask]
}

func (b *blockStore) reset() {
	b.blocks = nil
	b.count = 0
}
