// Package grid maps between compressed notation text and the flat,
// tick-indexed cell array the step-sequencer edits.
package grid

import (
	"strconv"
	"strings"

	"github.com/tiffz/darbuka/internal/notation"
)

// Cell is one sixteenth tick of the expanded timeline. A non-empty cell is an
// onset; an empty cell sustains whatever started before it (or silence when
// nothing has).
type Cell struct {
	Sound notation.Sound
	Onset bool
}

// Grid is the step-sequencer's working surface. ActualLength marks where
// genuine user content ends; cells past it are trailing ghost-measure space
// appended for editing convenience and are never serialized back to notation.
type Grid struct {
	Cells        []Cell
	ActualLength notation.Tick
}

// FromRhythm lays the expanded measures out one cell per sixteenth. The
// tied-from half of a split note is a continuation, not a new onset, so it
// renders as sustain space.
func FromRhythm(r *notation.Rhythm) Grid {
	var cells []Cell
	for _, m := range r.Measures {
		for _, n := range m.Notes {
			start := 0
			if !n.TiedFrom {
				cells = append(cells, Cell{Sound: n.Sound, Onset: true})
				start = 1
			}
			for i := start; i < n.Sixteenths; i++ {
				cells = append(cells, Cell{})
			}
		}
	}
	return Grid{
		Cells:        cells,
		ActualLength: notation.Tick(len(cells) - r.Padding),
	}
}

// FromNotation parses the text and converts it; the rhythm comes back with the
// grid so callers can consult repeats and the source map. An invalid parse
// yields an empty grid.
func FromNotation(text string, ts notation.TimeSignature) (Grid, notation.Rhythm) {
	r := notation.ParseRhythm(text, ts)
	if !r.Valid {
		return Grid{}, r
	}
	return FromRhythm(&r), r
}

// AppendGhostMeasures adds empty editing space after the genuine content.
// ActualLength is unchanged.
func (g *Grid) AppendGhostMeasures(count int, ts notation.TimeSignature) {
	for i := 0; i < count*ts.SixteenthsPerMeasure(); i++ {
		g.Cells = append(g.Cells, Cell{})
	}
}

// SoundAt resolves the sound heard at a tick, walking back to the onset that
// covers it. Empty leading cells are silence (rest).
func (g *Grid) SoundAt(t notation.Tick) notation.Sound {
	for i := int(t); i >= 0; i-- {
		if i < len(g.Cells) && g.Cells[i].Onset {
			return g.Cells[i].Sound
		}
	}
	return notation.Rest
}

// Set paints an onset at a tick. Painting past ActualLength extends the
// genuine content boundary to the end of that measure so the new material
// serializes.
func (g *Grid) Set(t notation.Tick, sound notation.Sound, ts notation.TimeSignature) {
	if int(t) >= len(g.Cells) {
		return
	}
	g.Cells[t] = Cell{Sound: sound, Onset: true}
	if t >= g.ActualLength {
		spm := notation.Tick(ts.SixteenthsPerMeasure())
		g.ActualLength = (t/spm + 1) * spm
		if int(g.ActualLength) > len(g.Cells) {
			g.ActualLength = notation.Tick(len(g.Cells))
		}
	}
}

// Clear turns a tick back into sustain space.
func (g *Grid) Clear(t notation.Tick) {
	if int(t) >= len(g.Cells) {
		return
	}
	g.Cells[t] = Cell{}
}

type section struct {
	start, end, count int
}

// ToNotation serializes the grid back to compressed text, stopping at
// ActualLength. When markers are supplied, any block whose unrolled copies
// still mirror their source is re-emitted as repeat syntax; a block that has
// diverged (a ghost cell edited away from its source) is un-rolled into
// literal measures so the divergence survives the round trip. The result is
// semantically, not byte-for-byte, equivalent to the original text.
func ToNotation(g Grid, repeats []notation.RepeatMarker, ts notation.TimeSignature) string {
	spm := ts.SixteenthsPerMeasure()
	if spm <= 0 || g.ActualLength <= 0 {
		return ""
	}
	limit := int(g.ActualLength)
	if limit > len(g.Cells) {
		limit = len(g.Cells)
	}
	measureCount := (limit + spm - 1) / spm

	simileOf := map[int]int{}
	var sections []section
	for _, marker := range repeats {
		switch m := marker.(type) {
		case notation.SectionRepeat:
			sec := section{start: int(m.Start), end: int(m.End), count: m.Count}
			// A '-' cannot follow '|:' or ':|', so a block whose first
			// measure (or whose successor in the text) opens on a carried
			// sustain must be written out literally.
			blockLen := sec.end - sec.start + 1
			after := sec.end + 1 + blockLen*sec.count
			if sectionIntact(g, sec, spm, limit) &&
				!opensWithCarriedSustain(g, sec.start, spm, limit) &&
				!opensWithCarriedSustain(g, after, spm, limit) {
				sections = append(sections, sec)
			}
		case notation.MeasureSimile:
			for _, rep := range m.Repeats {
				// Same constraint after '%': the next measure must not open
				// on a carried sustain.
				if measuresEqual(g, int(m.Source), int(rep), spm, limit) &&
					!opensWithCarriedSustain(g, int(rep)+1, spm, limit) {
					simileOf[int(rep)] = int(m.Source)
				}
			}
		}
	}

	var b strings.Builder
	emitted := false
	for mi := 0; mi < measureCount; {
		if sec := sectionStartingAt(sections, mi); sec != nil {
			if emitted {
				b.WriteByte(' ')
			}
			b.WriteString("|: ")
			for j := sec.start; j <= sec.end; j++ {
				if j > sec.start {
					b.WriteByte(' ')
				}
				writeMeasure(&b, g, j, spm, limit, simileOf)
			}
			b.WriteString(" :|")
			if sec.count != 1 {
				b.WriteString("x")
				b.WriteString(strconv.Itoa(sec.count + 1))
			}
			blockLen := sec.end - sec.start + 1
			mi = sec.end + 1 + blockLen*sec.count
			emitted = true
			continue
		}
		if emitted {
			b.WriteString(" | ")
		}
		writeMeasure(&b, g, mi, spm, limit, simileOf)
		emitted = true
		mi++
	}
	return b.String()
}

func sectionStartingAt(sections []section, mi int) *section {
	for i := range sections {
		if sections[i].start == mi {
			return &sections[i]
		}
	}
	return nil
}

// sectionIntact reports whether every unrolled copy of the block still
// matches its source cell for cell, so the compressed form is still truthful.
func sectionIntact(g Grid, sec section, spm, limit int) bool {
	blockLen := sec.end - sec.start + 1
	for k := 0; k < sec.count; k++ {
		for j := 0; j < blockLen; j++ {
			src := sec.start + j
			ghost := sec.end + 1 + k*blockLen + j
			if !measuresEqual(g, src, ghost, spm, limit) {
				return false
			}
		}
	}
	return true
}

// opensWithCarriedSustain reports whether the measure's first cell sustains a
// sound struck in an earlier measure. Repeat tokens reset the parser's sustain
// state, so such a measure cannot directly follow one in serialized text.
func opensWithCarriedSustain(g Grid, mi, spm, limit int) bool {
	i := mi * spm
	if i >= limit {
		return false
	}
	return !g.Cells[i].Onset && g.SoundAt(notation.Tick(i)) != notation.Rest
}

func measuresEqual(g Grid, a, b, spm, limit int) bool {
	for off := 0; off < spm; off++ {
		ai, bi := a*spm+off, b*spm+off
		if ai >= limit || bi >= limit {
			return ai >= limit && bi >= limit
		}
		ca, cb := g.Cells[ai], g.Cells[bi]
		if ca.Onset != cb.Onset || (ca.Onset && ca.Sound != cb.Sound) {
			return false
		}
	}
	// When both measures open on a sustain, the sound carried into them must
	// match as well.
	if a*spm < limit && b*spm < limit && !g.Cells[a*spm].Onset && !g.Cells[b*spm].Onset {
		return g.SoundAt(notation.Tick(a*spm)) == g.SoundAt(notation.Tick(b*spm))
	}
	return true
}

func writeMeasure(b *strings.Builder, g Grid, mi, spm, limit int, simileOf map[int]int) {
	if _, ok := simileOf[mi]; ok {
		b.WriteByte('%')
		return
	}
	start := mi * spm
	for off := 0; off < spm; off++ {
		i := start + off
		if i >= limit {
			return
		}
		cell := g.Cells[i]
		if cell.Onset {
			b.WriteByte(cell.Sound.Token())
			continue
		}
		if g.SoundAt(notation.Tick(i)) == notation.Rest {
			b.WriteByte('_')
		} else {
			b.WriteByte('-')
		}
	}
}
