// Package voice models one sounding note on top of a shared tone cache.
package voice

// Silence is the per-channel magnitude below which a sample counts as dead.
const Silence = 0.001

// Source yields a tone's sample at an elapsed time.
type Source interface {
	Sample(t int) float32
}

// Note is one sounding voice. The envelope is a linear attack from zero and,
// once released, a linear fall to zero, both scaled by velocity.
type Note struct {
	tone     uint8
	velocity uint8
	attack   float32
	release  float32

	time        int
	released    bool
	releaseTime int

	deadTime  int
	deadLimit int
}

// New starts a note at elapsed time zero. deadLimit is the number of
// consecutive near-silent samples after which the note is dropped.
func New(tone, velocity uint8, attack, release float32, deadLimit int) Note {
	if velocity > 127 {
		velocity = 127
	}
	return Note{
		tone:      tone,
		velocity:  velocity,
		attack:    attack,
		release:   release,
		deadLimit: deadLimit,
	}
}

func (n *Note) Tone() uint8     { return n.tone }
func (n *Note) Velocity() uint8 { return n.velocity }

// Elapsed returns the number of samples produced so far.
func (n *Note) Elapsed() int { return n.time }

func (n *Note) Released() bool { return n.released }

// Release starts the release ramp at the current elapsed time. Releasing
// twice keeps the first onset.
func (n *Note) Release() {
	if n.released {
		return
	}
	n.released = true
	n.releaseTime = n.time
}

// Produce renders the next sample from src and advances elapsed time.
func (n *Note) Produce(src Source) (float32, float32) {
	s := src.Sample(n.time)
	n.time++
	v := float32(s * n.Amplitude())
	n.observe(v, v)
	return v, v
}

// Amplitude is the envelope gain at the current elapsed time, in [0,1].
func (n *Note) Amplitude() float32 {
	return min(n.attackAmp(), n.releaseAmp()) * (float32(n.velocity) / 127)
}

func (n *Note) attackAmp() float32 {
	return clamp01(float32(n.time) * n.attack)
}

func (n *Note) releaseAmp() float32 {
	if !n.released {
		return 1
	}
	return clamp01(1 - float32(float32(n.time-n.releaseTime)*n.release))
}

func (n *Note) observe(l, r float32) {
	if abs(l) < Silence && abs(r) < Silence {
		n.deadTime++
	} else {
		n.deadTime = 0
	}
}

// Alive reports whether the note should keep sounding: its release has not
// reached zero and it has not been near-silent for longer than the limit.
func (n *Note) Alive() bool {
	return n.deadTime <= n.deadLimit && n.releaseAmp() > 0
}

func clamp01(x float32) float32 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

func abs(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}
