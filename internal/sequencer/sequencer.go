// Package sequencer schedules the strokes of an expanded rhythm against a
// voice engine, one sixteenth tick at a time.
package sequencer

import (
	"github.com/tiffz/darbuka/internal/grid"
	"github.com/tiffz/darbuka/internal/notation"
)

// Engine is the voice engine the sequencer drives.
type Engine interface {
	Strike(sound notation.Sound, velocity float64) int
	RenderFrame() (float32, float32)
	SetMasterGain(gain float64)
	// ActiveVoiceCount reports voices still sounding, used to detect when
	// playback has fully ended including decay tails.
	ActiveVoiceCount() int
}

// EventKind identifies sequencer lifecycle events.
type EventKind int

const (
	EventLoopCompleted EventKind = iota
	EventPlaybackEnded
)

type Options struct {
	Loop    bool
	OnEvent func(EventKind)
	// OnTick fires as the playhead enters each sixteenth, for UI cursors.
	OnTick func(notation.Tick)
	// ReleaseTailFrames is extra frames rendered after the last voice ends
	// before EventPlaybackEnded fires (0 = 0.1s default).
	ReleaseTailFrames int
	// Accent scales the velocity of beat-one strokes. 0 means the default.
	Accent float64
}

const defaultVelocity = 0.8

type stroke struct {
	sound    notation.Sound
	velocity float64
}

type Sequencer struct {
	engine       Engine
	sampleRate   int
	ticksPerSamp float64
	tickFrac     float64
	tickInt      int

	strokes   []stroke // one slot per tick; Rest means no stroke
	totalTick int

	loop               bool
	onEvent            func(EventKind)
	onTick             func(notation.Tick)
	exhausted          bool
	playbackEndedFired bool
	releaseTail        int
}

// New builds a sequencer for one rhythm at the given tempo. The rhythm must be
// valid; onsets come from its grid layout so tied continuations do not
// restrike.
func New(r *notation.Rhythm, bpm float64, engine Engine, sampleRate int, opts Options) *Sequencer {
	g := grid.FromRhythm(r)
	spm := r.TimeSig.SixteenthsPerMeasure()
	accent := opts.Accent
	if accent <= 0 {
		accent = 1.15
	}
	strokes := make([]stroke, len(g.Cells))
	for i, cell := range g.Cells {
		if !cell.Onset || cell.Sound == notation.Rest {
			strokes[i] = stroke{sound: notation.Rest}
			continue
		}
		vel := defaultVelocity
		if spm > 0 && i%spm == 0 {
			vel *= accent
		}
		if vel > 1 {
			vel = 1
		}
		strokes[i] = stroke{sound: cell.Sound, velocity: vel}
	}
	if bpm <= 0 {
		bpm = 120
	}
	tail := opts.ReleaseTailFrames
	if tail <= 0 {
		tail = sampleRate / 10
	}
	return &Sequencer{
		engine:     engine,
		sampleRate: sampleRate,
		// Four sixteenths per quarter-note beat.
		ticksPerSamp: bpm * 4.0 / (60.0 * float64(sampleRate)),
		strokes:      strokes,
		totalTick:    len(strokes),
		loop:         opts.Loop,
		onEvent:      opts.OnEvent,
		onTick:       opts.OnTick,
		releaseTail:  tail,
	}
}

// Process renders interleaved stereo frames into dst, dispatching strokes as
// the playhead crosses each tick boundary.
func (s *Sequencer) Process(dst []float32) {
	frames := len(dst) / 2
	for f := 0; f < frames; f++ {
		s.tickFrac += s.ticksPerSamp
		nextTick := int(s.tickFrac)
		for s.tickInt <= nextTick && !s.exhausted {
			s.dispatchTick(s.tickInt)
			s.tickInt++
		}
		l, r := s.engine.RenderFrame()
		dst[f*2] = l
		dst[f*2+1] = r
		if s.exhausted && !s.playbackEndedFired && s.engine.ActiveVoiceCount() == 0 {
			if s.releaseTail <= 0 {
				s.playbackEndedFired = true
				if s.onEvent != nil {
					s.onEvent(EventPlaybackEnded)
				}
			} else {
				s.releaseTail--
			}
		}
	}
}

// dispatchTick plays the stroke for one (monotonic) tick. When looping, ticks
// past the end wrap around the timeline instead of resetting the accumulator.
func (s *Sequencer) dispatchTick(tick int) {
	if s.totalTick == 0 {
		s.exhausted = true
		return
	}
	if tick >= s.totalTick {
		if !s.loop {
			s.exhausted = true
			return
		}
		if tick%s.totalTick == 0 && s.onEvent != nil {
			s.onEvent(EventLoopCompleted)
		}
		tick %= s.totalTick
	}
	if s.onTick != nil {
		s.onTick(notation.Tick(tick))
	}
	st := s.strokes[tick]
	if st.sound != notation.Rest {
		s.engine.Strike(st.sound, st.velocity)
	}
}

// Done reports whether playback has fully ended, decay tails included.
func (s *Sequencer) Done() bool {
	return s.playbackEndedFired
}

// Position returns the current playhead tick in timeline coordinates.
func (s *Sequencer) Position() notation.Tick {
	t := s.tickInt
	if s.totalTick > 0 {
		if s.loop {
			t %= s.totalTick
		} else if t >= s.totalTick {
			t = s.totalTick - 1
		}
	}
	if t < 0 {
		t = 0
	}
	return notation.Tick(t)
}

// TotalTicks returns the length of the expanded timeline in sixteenths.
func (s *Sequencer) TotalTicks() int {
	return s.totalTick
}
