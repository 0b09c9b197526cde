// Package darbuka parses compressed percussion notation into tick-addressable
// rhythms and converts them to and from step-sequencer grids, MIDI files and
// audio.
//
// The notation packs one sound per sixteenth: D (dum), T (tak), K (ka),
// S (slap), with '-' sustaining the previous stroke and '_' resting. Barlines
// are cosmetic, "|: ... :|xN" repeats a section and '%' repeats the previous
// measure:
//
//	D-T-__T-D---T---        a measure of maqsum in 4/4
//	|: D-T- :|x3            one beat played three times
package darbuka

import (
	"github.com/tiffz/darbuka/internal/grid"
	"github.com/tiffz/darbuka/internal/notation"
)

// Core notation types, re-exported for callers outside this module.
type (
	Sound         = notation.Sound
	Note          = notation.Note
	TimeSignature = notation.TimeSignature
	Measure       = notation.Measure
	Rhythm        = notation.Rhythm
	Tick          = notation.Tick
	MeasureIndex  = notation.MeasureIndex
	RepeatMarker  = notation.RepeatMarker
	SectionRepeat = notation.SectionRepeat
	MeasureSimile = notation.MeasureSimile
	Grid          = grid.Grid
	Cell          = grid.Cell
)

const (
	Rest = notation.Rest
	Dum  = notation.Dum
	Tak  = notation.Tak
	Ka   = notation.Ka
	Slap = notation.Slap
)

// CommonTime returns 4/4.
func CommonTime() TimeSignature { return notation.CommonTime() }

// Parse runs the full pipeline on one notation string. The result is never an
// error value: invalid input comes back as Valid=false with a message, so
// interactive callers can keep their previous state while the user types.
func Parse(text string, ts TimeSignature) Rhythm {
	return notation.ParseRhythm(text, ts)
}

// ToGrid parses text and lays the expanded timeline out one cell per
// sixteenth.
func ToGrid(text string, ts TimeSignature) (Grid, Rhythm) {
	return grid.FromNotation(text, ts)
}

// GridOf converts an already parsed rhythm.
func GridOf(r *Rhythm) Grid {
	return grid.FromRhythm(r)
}

// ToNotation serializes a grid back to compressed text. Repeats whose
// unrolled copies still match their source are re-emitted as repeat syntax;
// diverged ones are un-rolled so edits survive.
func ToNotation(g Grid, repeats []RepeatMarker, ts TimeSignature) string {
	return grid.ToNotation(g, repeats, ts)
}

// LinkedPositions returns every tick that edits in lock-step with t. For a
// tick in a source measure that includes all mirrored ghost positions; for a
// tick in a ghost measure it is just {t}.
func LinkedPositions(t Tick, r *Rhythm) []Tick {
	return grid.LinkedPositions(t, r.SourceMap, r.TimeSig.SixteenthsPerMeasure())
}
