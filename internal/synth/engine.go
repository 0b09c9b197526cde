// Package synth renders darbuka strokes as audio. Each stroke is a short
// percussive voice: a sine body with a downward pitch sweep layered with
// filtered LFSR noise, shaped per sound so Dum booms, Tak rings, Ka whispers
// and Slap cracks.
package synth

import (
	"math"
	"sync/atomic"

	"github.com/tiffz/darbuka/internal/notation"
)

const twoPi = math.Pi * 2

type Params struct {
	Voices     int
	MasterGain float64
	LPFCutoff  float64 // lowpass filter cutoff in Hz (0 = disabled)
}

func DefaultParams() Params {
	return Params{
		Voices:     8,
		MasterGain: 0.55,
		LPFCutoff:  14000,
	}
}

// patch describes how one stroke sounds.
type patch struct {
	bodyFreq   float64 // sine fundamental in Hz
	sweepRatio float64 // fraction of bodyFreq the pitch falls by over the decay
	bodyLevel  float64
	noiseLevel float64
	noiseRate  float64 // LFSR clock in Hz; higher is brighter
	decaySec   float64
	pan        float64 // -1 left .. +1 right
}

var patches = map[notation.Sound]patch{
	notation.Dum:  {bodyFreq: 82, sweepRatio: 0.45, bodyLevel: 1.0, noiseLevel: 0.06, noiseRate: 3500, decaySec: 0.34},
	notation.Tak:  {bodyFreq: 330, sweepRatio: 0.25, bodyLevel: 0.45, noiseLevel: 0.50, noiseRate: 9500, decaySec: 0.12, pan: 0.25},
	notation.Ka:   {bodyFreq: 310, sweepRatio: 0.25, bodyLevel: 0.30, noiseLevel: 0.42, noiseRate: 8500, decaySec: 0.09, pan: -0.25},
	notation.Slap: {bodyFreq: 190, sweepRatio: 0.60, bodyLevel: 0.55, noiseLevel: 0.85, noiseRate: 7000, decaySec: 0.16},
}

type voice struct {
	active    bool
	id        int
	age       int
	patch     patch
	phase     float64
	freq      float64
	env       float64
	envStep   float64
	velocity  float64
	noiseLFSR uint16
	noiseAcc  float64
	noiseOut  float64
}

type Engine struct {
	sampleRate float64
	params     Params
	voices     []voice
	nextID     int
	masterGain uint64
	dcPrevIn   float64
	dcPrevOut  float64
	lpf        float64
	lpfAlpha   float64
}

func New(sampleRate int, params Params) *Engine {
	if params.Voices <= 0 {
		params.Voices = 8
	}
	e := &Engine{
		sampleRate: float64(sampleRate),
		params:     params,
		voices:     make([]voice, params.Voices),
		masterGain: math.Float64bits(params.MasterGain),
	}
	for i := range e.voices {
		e.voices[i].noiseLFSR = uint16(0xACE1 + i*97)
	}
	if params.LPFCutoff > 0 && params.LPFCutoff < float64(sampleRate)/2 {
		rc := 1.0 / (twoPi * params.LPFCutoff)
		dt := 1.0 / float64(sampleRate)
		e.lpfAlpha = dt / (rc + dt)
	}
	return e
}

// Strike starts a new stroke voice and returns its id. Rest is a no-op.
func (e *Engine) Strike(sound notation.Sound, velocity float64) int {
	p, ok := patches[sound]
	if !ok {
		return -1
	}
	slot := e.stealVoice()
	id := e.nextID
	e.nextID++
	v := &e.voices[slot]
	v.active = true
	v.id = id
	v.age = 0
	v.patch = p
	v.phase = 0
	v.freq = p.bodyFreq
	v.env = 1
	v.envStep = 1.0 / (p.decaySec * e.sampleRate)
	v.velocity = clamp(velocity, 0, 1)
	v.noiseAcc = 0
	if v.noiseLFSR == 0 {
		v.noiseLFSR = 0xACE1
	}
	return id
}

// Damp forces an early release, used when a new stroke lands on the same hand.
func (e *Engine) Damp(id int) {
	for i := range e.voices {
		v := &e.voices[i]
		if v.active && v.id == id {
			// Shorten the remaining tail rather than cutting hard.
			v.envStep *= 4
		}
	}
}

func (e *Engine) RenderFrame() (float32, float32) {
	var l, r float64
	for i := range e.voices {
		v := &e.voices[i]
		if !v.active {
			continue
		}
		v.age++
		v.env -= v.envStep
		if v.env <= 0 {
			v.env = 0
			v.active = false
			continue
		}

		// Pitch falls toward the sweep floor as the envelope decays.
		floor := v.patch.bodyFreq * (1 - v.patch.sweepRatio)
		v.freq = floor + (v.patch.bodyFreq-floor)*v.env

		v.phase += v.freq / e.sampleRate
		if v.phase >= 1 {
			v.phase -= 1
		}
		body := math.Sin(twoPi*v.phase) * v.patch.bodyLevel

		noise := e.renderNoise(v) * v.patch.noiseLevel

		// The noise burst dies faster than the body so the attack snaps.
		sig := (body*v.env + noise*v.env*v.env) * v.velocity * e.masterGainValue()
		angle := ((v.patch.pan + 1) / 2) * (math.Pi / 2)
		l += sig * math.Cos(angle)
		r += sig * math.Sin(angle)
	}
	mono := (l + r) / 2
	blocked := e.dcBlock(mono)
	diffL, diffR := l-mono, r-mono
	l, r = blocked+diffL, blocked+diffR
	if e.lpfAlpha > 0 {
		mid := (l + r) / 2
		e.lpf += e.lpfAlpha * (mid - e.lpf)
		tilt := e.lpf - mid
		l += tilt
		r += tilt
	}
	return float32(clamp(l, -1, 1)), float32(clamp(r, -1, 1))
}

// renderNoise clocks the voice's LFSR at the patch rate and holds the last
// bit between clocks, giving the metallic hiss of the drum head.
func (e *Engine) renderNoise(v *voice) float64 {
	v.noiseAcc += v.patch.noiseRate / e.sampleRate
	for v.noiseAcc >= 1 {
		v.noiseAcc -= 1
		bit := (v.noiseLFSR ^ (v.noiseLFSR >> 1)) & 1
		v.noiseLFSR = (v.noiseLFSR >> 1) | (bit << 15)
		if v.noiseLFSR&1 == 1 {
			v.noiseOut = 1
		} else {
			v.noiseOut = -1
		}
	}
	return v.noiseOut
}

func (e *Engine) dcBlock(x float64) float64 {
	const r = 0.995
	y := x - e.dcPrevIn + r*e.dcPrevOut
	e.dcPrevIn = x
	e.dcPrevOut = y
	return y
}

func (e *Engine) stealVoice() int {
	for i := range e.voices {
		if !e.voices[i].active {
			return i
		}
	}
	oldest := 0
	oldestAge := -1
	for i := range e.voices {
		if e.voices[i].age > oldestAge {
			oldest = i
			oldestAge = e.voices[i].age
		}
	}
	return oldest
}

func (e *Engine) SetMasterGain(gain float64) {
	if gain < 0 {
		gain = 0
	}
	atomic.StoreUint64(&e.masterGain, math.Float64bits(gain))
}

func (e *Engine) masterGainValue() float64 {
	return math.Float64frombits(atomic.LoadUint64(&e.masterGain))
}

func (e *Engine) ActiveVoiceCount() int {
	n := 0
	for i := range e.voices {
		if e.voices[i].active {
			n++
		}
	}
	return n
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
