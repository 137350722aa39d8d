// Package cache memoizes the output of one tone's oscillator bank.
//
// Several voices may play the same tone at different elapsed times. Each
// contiguous run of requested times is covered by a segment that owns a
// forward-only generator; a request at a segment's end advances that
// generator, a request inside it is served from the store, and any other
// request opens a new segment seeded in closed form at that time.
package cache

import (
	"sort"

	"github.com/cbegin/oidos-go/internal/oscillator"
	"github.com/cbegin/oidos-go/internal/params"
	"github.com/cbegin/oidos-go/internal/random"
)

// segment covers elapsed times [start, end); gen is positioned at end.
type segment struct {
	start int
	end   int
	gen   *oscillator.Generator
}

// Tone is the sample cache for a single tone.
type Tone struct {
	tone     uint8
	segments []segment
	store    blockStore
	created  int
}

func New(tone uint8) *Tone {
	return &Tone{tone: tone}
}

// Tone returns the pitch this cache renders.
func (c *Tone) Tone() uint8 { return c.tone }

// Sample returns the tone's output at elapsed time t under snapshot s.
// s must be the snapshot in force since the last Invalidate.
func (c *Tone) Sample(t int, s *params.Snapshot, table *random.Table) float32 {
	i := sort.Search(len(c.segments), func(i int) bool { return c.segments[i].end >= t })
	if i < len(c.segments) {
		seg := &c.segments[i]
		if seg.end == t {
			return c.advance(i)
		}
		if seg.start <= t {
			return c.store.at(t)
		}
	}
	c.segments = append(c.segments, segment{})
	copy(c.segments[i+1:], c.segments[i:])
	c.segments[i] = segment{start: t, end: t, gen: oscillator.New(*s, c.tone, t, table)}
	c.created++
	return c.advance(i)
}

func (c *Tone) advance(i int) float32 {
	seg := &c.segments[i]
	v := seg.gen.Next()
	c.store.set(seg.end, v)
	seg.end++
	if i+1 < len(c.segments) && c.segments[i+1].start == seg.end {
		// The later generator is the one positioned at the merged end.
		next := c.segments[i+1]
		seg.end = next.end
		seg.gen = next.gen
		c.segments = append(c.segments[:i+1], c.segments[i+2:]...)
	}
	return v
}

// Invalidate drops every segment and stored sample.
func (c *Tone) Invalidate() {
	for i := range c.segments {
		c.segments[i].gen = nil
	}
	c.segments = c.segments[:0]
	c.store.reset()
}

// Segments returns the number of live segments.
func (c *Tone) Segments() int { return len(c.segments) }

// Ranges returns the covered [start, end) pairs in order.
func (c *Tone) Ranges() [][2]int {
	out := make([][2]int, len(c.segments))
	for i, seg := range c.segments {
		out[i] = [2]int{seg.start, seg.end}
	}
	return out
}

// Generators returns how many generators have been built since New.
func (c *Tone) Generators() int { return c.created }

// Blocks returns the number of allocated store blocks.
func (c *Tone) Blocks() int { return c.store.count }
