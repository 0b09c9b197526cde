package sequencer

import (
	"testing"

	"github.com/tiffz/darbuka/internal/notation"
	"github.com/tiffz/darbuka/internal/synth"
)

type countingEngine struct {
	strikes    []notation.Sound
	velocities []float64
	nextID     int
}

func (e *countingEngine) Strike(sound notation.Sound, velocity float64) int {
	e.strikes = append(e.strikes, sound)
	e.velocities = append(e.velocities, velocity)
	id := e.nextID
	e.nextID++
	return id
}
func (e *countingEngine) RenderFrame() (float32, float32) { return 0, 0 }
func (e *countingEngine) SetMasterGain(gain float64)      {}
func (e *countingEngine) ActiveVoiceCount() int           { return 0 }

func mustRhythm(t testing.TB, text string, ts notation.TimeSignature) notation.Rhythm {
	t.Helper()
	r := notation.ParseRhythm(text, ts)
	if !r.Valid {
		t.Fatalf("parse %q failed: %s", text, r.Err)
	}
	return r
}

func TestSequencerProcessesFrames(t *testing.T) {
	r := mustRhythm(t, "D-T-__T-D---T---", notation.CommonTime())
	engine := synth.New(48000, synth.DefaultParams())
	seq := New(&r, 120, engine, 48000, Options{})

	buf := make([]float32, 48000/4*2)
	seq.Process(buf)

	var energy float64
	for _, s := range buf {
		if s < 0 {
			energy -= float64(s)
		} else {
			energy += float64(s)
		}
	}
	if energy == 0 {
		t.Fatalf("expected non-zero audio energy")
	}
}

func TestSequencerStrikesOnsetsOnly(t *testing.T) {
	// One measure at 120 BPM lasts one second; render a bit extra.
	r := mustRhythm(t, "D-T-__T-D---T---", notation.CommonTime())
	engine := &countingEngine{}
	seq := New(&r, 120, engine, 48000, Options{})
	buf := make([]float32, 48000*2*2)
	seq.Process(buf)

	want := []notation.Sound{notation.Dum, notation.Tak, notation.Tak, notation.Dum, notation.Tak}
	if len(engine.strikes) != len(want) {
		t.Fatalf("expected %d strikes, got %d: %v", len(want), len(engine.strikes), engine.strikes)
	}
	for i, s := range want {
		if engine.strikes[i] != s {
			t.Fatalf("strike %d: expected %v, got %v", i, s, engine.strikes[i])
		}
	}
}

func TestSequencerTiedNoteDoesNotRestrike(t *testing.T) {
	// The Dum splits at the barline; its continuation must not restrike.
	r := mustRhythm(t, "______________D-----", notation.CommonTime())
	engine := &countingEngine{}
	seq := New(&r, 240, engine, 48000, Options{})
	buf := make([]float32, 48000*2*2)
	seq.Process(buf)
	if len(engine.strikes) != 1 {
		t.Fatalf("expected a single strike across the barline, got %d", len(engine.strikes))
	}
}

func TestSequencerPlaysUnrolledRepeats(t *testing.T) {
	ts := notation.TimeSignature{Numerator: 1, Denominator: 4}
	r := mustRhythm(t, "|: D-T- :|x3", ts)
	engine := &countingEngine{}
	seq := New(&r, 240, engine, 48000, Options{})
	buf := make([]float32, 48000*4*2)
	seq.Process(buf)
	if len(engine.strikes) != 6 {
		t.Fatalf("x3 should play the two strokes three times, got %d strikes", len(engine.strikes))
	}
}

func TestSequencerDownbeatAccent(t *testing.T) {
	r := mustRhythm(t, "D-T-__T-D---T---", notation.CommonTime())
	engine := &countingEngine{}
	seq := New(&r, 120, engine, 48000, Options{})
	buf := make([]float32, 48000*2*2)
	seq.Process(buf)
	if len(engine.velocities) < 2 {
		t.Fatalf("expected strikes")
	}
	if engine.velocities[0] <= engine.velocities[1] {
		t.Fatalf("beat one should be accented: %v vs %v", engine.velocities[0], engine.velocities[1])
	}
}

func TestSequencerLoopsWhenEnabled(t *testing.T) {
	ts := notation.TimeSignature{Numerator: 1, Denominator: 4}
	r := mustRhythm(t, "D-T-", ts)
	engine := &countingEngine{}
	loops := 0
	seq := New(&r, 240, engine, 48000, Options{
		Loop: true,
		OnEvent: func(k EventKind) {
			if k == EventLoopCompleted {
				loops++
			}
		},
	})
	// Four seconds at 240 BPM covers the one-beat measure many times.
	buf := make([]float32, 48000*4*2)
	seq.Process(buf)
	if loops < 2 {
		t.Fatalf("expected repeated loops, got %d", loops)
	}
	if len(engine.strikes) < 6 {
		t.Fatalf("expected loop retriggers, got %d strikes", len(engine.strikes))
	}
}

func TestSequencerSignalsPlaybackEnded(t *testing.T) {
	ts := notation.TimeSignature{Numerator: 1, Denominator: 4}
	r := mustRhythm(t, "D-T-", ts)
	engine := &countingEngine{}
	ended := false
	seq := New(&r, 240, engine, 48000, Options{
		OnEvent: func(k EventKind) {
			if k == EventPlaybackEnded {
				ended = true
			}
		},
	})
	buf := make([]float32, 48000*2*2)
	seq.Process(buf)
	if !ended || !seq.Done() {
		t.Fatalf("expected playback to end")
	}
}

func TestSequencerEmptyRhythm(t *testing.T) {
	r := mustRhythm(t, "", notation.CommonTime())
	engine := &countingEngine{}
	seq := New(&r, 120, engine, 48000, Options{})
	buf := make([]float32, 4800*2)
	seq.Process(buf)
	if len(engine.strikes) != 0 {
		t.Fatalf("empty rhythm must not strike")
	}
}
