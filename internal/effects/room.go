package effects

// Room adds a short Schroeder-style ambience tuned for hand percussion:
// three comb filters into one allpass, kept tight so strokes stay dry and
// only the tail picks up the space.
type Room struct {
	combs   [3]delayLine
	allpass delayLine
	wet     float32
}

type delayLine struct {
	buf []float32
	pos int
	fb  float32
}

// NewRoom builds an ambience. size 0..1 scales the delay lengths, decay 0..1
// the tail, wet 0..1 the mix.
func NewRoom(sampleRate int, size, decay, wet float32) *Room {
	base := int(float32(sampleRate) * clamp(size, 0, 1) * 0.03)
	if base < 8 {
		base = 8
	}
	fb := clamp(decay, 0, 0.9)
	r := &Room{wet: clamp(wet, 0, 1)}
	// Mutually prime-ish lengths so the combs do not stack resonances.
	lens := [3]int{base, base * 1193 / 1000, base * 1399 / 1000}
	for i := range r.combs {
		r.combs[i] = delayLine{buf: make([]float32, lens[i]), fb: fb}
	}
	apLen := base * 311 / 1000
	if apLen < 1 {
		apLen = 1
	}
	r.allpass = delayLine{buf: make([]float32, apLen), fb: 0.5}
	return r
}

func (r *Room) Process(l, right float32) (float32, float32) {
	mono := (l + right) * 0.5
	var tail float32
	for i := range r.combs {
		c := &r.combs[i]
		out := c.buf[c.pos]
		c.buf[c.pos] = mono + out*c.fb
		c.pos++
		if c.pos >= len(c.buf) {
			c.pos = 0
		}
		tail += out
	}
	tail /= 3
	a := &r.allpass
	bufOut := a.buf[a.pos]
	wetOut := -tail + bufOut
	a.buf[a.pos] = tail + bufOut*a.fb
	a.pos++
	if a.pos >= len(a.buf) {
		a.pos = 0
	}
	return l*(1-r.wet) + wetOut*r.wet, right*(1-r.wet) + wetOut*r.wet
}

func (r *Room) Reset() {
	for i := range r.combs {
		r.combs[i].reset()
	}
	r.allpass.reset()
}

func (d *delayLine) reset() {
	for i := range d.buf {
		d.buf[i] = 0
	}
	d.pos = 0
}
