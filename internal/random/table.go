package random

// Size is the number of words in a table (64³).
const Size = 64 * 64 * 64

// DefaultSeed is the seed the instrument's sound set was designed against.
var DefaultSeed = [4]uint32{0x6F15AAF2, 0x4E89D208, 0x9548B49A, 0x9C4FD335}

// Table is an immutable sequence of pseudo-random words shared by every
// oscillator generator of an engine.
type Table struct {
	words []uint32
}

// New builds the table for the default seed.
func New() *Table {
	return NewWithSeed(DefaultSeed)
}

// NewWithSeed builds a table from a four-word seed. Each output word is the
// XOR of three sub-state words, each rotated right by its own value and
// advanced by its neighbour.
func NewWithSeed(seed [4]uint32) *Table {
	state := seed
	words := make([]uint32, Size)
	for i := range words {
		var r uint32
		for s := 0; s < 3; s++ {
			rs := state[s]
			rs = rotateRight(rs, rs) + state[s+1]
			state[s] = rs
			r ^= rs
		}
		words[i] = r
	}
	return &Table{words: words}
}

func rotateRight(x, n uint32) uint32 {
	n &= 31
	return x>>n | x<<(32-n)
}

// Word returns the raw word at index i. i must be in [0, Size).
func (t *Table) Word(i int) uint32 {
	return t.words[i]
}

// Signed maps the word at index i onto [-1, 1).
func (t *Table) Signed(i int) float64 {
	return float64(int32(t.words[i])) / 0x80000000
}

func (t *Table) Len() int {
	return len(t.words)
}
