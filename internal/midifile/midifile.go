// Package midifile exports an expanded rhythm as a standard MIDI file on the
// percussion channel, so it can be dropped into any DAW.
package midifile

import (
	"bytes"
	"errors"
	"fmt"
	"math/bits"
	"os"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/tiffz/darbuka/internal/grid"
	"github.com/tiffz/darbuka/internal/notation"
)

// Channel 10 (0-based 9) is the General MIDI percussion channel.
const drumChannel = uint8(9)

// GM hand-drum keys: Low Conga for the bass stroke, bongos for the edge
// strokes, Mute Hi Conga for the slap.
var drumKey = map[notation.Sound]uint8{
	notation.Dum:  64,
	notation.Tak:  60,
	notation.Ka:   61,
	notation.Slap: 62,
}

type Options struct {
	BPM             float64
	TicksPerQuarter uint16
	Velocity        uint8 // base stroke velocity (0 = 100)
	AccentVelocity  uint8 // beat-one velocity (0 = 120)
}

func DefaultOptions() Options {
	return Options{
		BPM:             120,
		TicksPerQuarter: 480,
		Velocity:        100,
		AccentVelocity:  120,
	}
}

// Encode renders the rhythm's expanded timeline as a one-track SMF. Sustained
// strokes hold their note through the sustain cells; everything else gets a
// short percussive gate.
func Encode(r *notation.Rhythm, opts Options) ([]byte, error) {
	if r == nil || !r.Valid {
		return nil, errors.New("cannot export an invalid rhythm")
	}
	if opts.BPM <= 0 {
		opts.BPM = 120
	}
	if opts.TicksPerQuarter == 0 {
		opts.TicksPerQuarter = 480
	}
	if opts.Velocity == 0 {
		opts.Velocity = 100
	}
	if opts.AccentVelocity == 0 {
		opts.AccentVelocity = 120
	}

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(opts.TicksPerQuarter)

	var track smf.Track

	microsecondsPerBeat := uint32(60000000.0 / opts.BPM)
	track.Add(0, smf.Message([]byte{
		0xFF, 0x51, 0x03,
		byte(microsecondsPerBeat >> 16),
		byte(microsecondsPerBeat >> 8),
		byte(microsecondsPerBeat),
	}))
	track.Add(0, timeSignatureMessage(r.TimeSig))

	g := grid.FromRhythm(r)
	spm := r.TimeSig.SixteenthsPerMeasure()
	ticksPerStep := uint32(opts.TicksPerQuarter) / 4
	gate := (ticksPerStep * 3) / 4

	var currentTick uint32
	for i := 0; i < len(g.Cells); i++ {
		cell := g.Cells[i]
		if !cell.Onset || cell.Sound == notation.Rest {
			continue
		}
		key, ok := drumKey[cell.Sound]
		if !ok {
			continue
		}
		velocity := opts.Velocity
		if spm > 0 && i%spm == 0 {
			velocity = opts.AccentVelocity
		}

		stepTick := uint32(i) * ticksPerStep
		track.Add(stepTick-currentTick, midi.NoteOn(drumChannel, key, velocity))
		currentTick = stepTick

		// Hold through sustain cells, with a slight gap before the next stroke.
		duration := gate
		sustain := 0
		for j := i + 1; j < len(g.Cells) && !g.Cells[j].Onset; j++ {
			sustain++
		}
		if sustain > 0 {
			duration = ticksPerStep*uint32(sustain+1) - ticksPerStep/8
		}
		track.Add(duration, midi.NoteOff(drumChannel, key))
		currentTick += duration
	}

	// Pad out to the full timeline so looping in a DAW stays aligned.
	totalTicks := uint32(len(g.Cells)) * ticksPerStep
	if currentTick < totalTicks {
		track.Add(totalTicks-currentTick, smf.Message([]byte{0xFF, 0x06, 0x00}))
	}

	track.Close(0)
	if err := s.Add(track); err != nil {
		return nil, fmt.Errorf("add track: %w", err)
	}

	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write midi: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteFile encodes the rhythm and writes it to path.
func WriteFile(r *notation.Rhythm, path string, opts Options) error {
	data, err := Encode(r, opts)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// timeSignatureMessage builds the FF 58 meta event. The denominator is stored
// as a power of two; 24 MIDI clocks per metronome tick, 8 thirty-seconds per
// quarter are the conventional values.
func timeSignatureMessage(ts notation.TimeSignature) smf.Message {
	denomPow := uint8(bits.TrailingZeros(uint(ts.Denominator)))
	return smf.Message([]byte{
		0xFF, 0x58, 0x04,
		uint8(ts.Numerator), denomPow, 0x18, 0x08,
	})
}
