package grid

import (
	"sort"

	"github.com/tiffz/darbuka/internal/notation"
)

// LinkedPositions returns every tick that must be edited in lock-step with t,
// t itself included. Editing a source measure writes through to every ghost
// that mirrors it, at the same offset within the measure. Editing a ghost is
// deliberately local: the result is only {t}, so a single occurrence can
// diverge without rewriting the compressed repeat. Callers decide which
// behavior they want by checking ghost-ness first.
func LinkedPositions(t notation.Tick, sourceMap map[notation.MeasureIndex]notation.MeasureIndex, spm int) []notation.Tick {
	if spm <= 0 {
		return []notation.Tick{t}
	}
	measure := notation.MeasureIndex(int(t) / spm)
	offset := int(t) % spm
	if _, isGhost := sourceMap[measure]; isGhost {
		return []notation.Tick{t}
	}
	out := []notation.Tick{t}
	for ghost, src := range sourceMap {
		if src == measure {
			out = append(out, notation.Tick(int(ghost)*spm+offset))
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a] < out[b] })
	return out
}

// SourceMapFromRepeats re-derives the ghost-to-source mapping from repeat
// markers alone, for callers that hold markers but not a full Rhythm. Marker
// indices must already be in expanded coordinates.
func SourceMapFromRepeats(repeats []notation.RepeatMarker, measureCount int) map[notation.MeasureIndex]notation.MeasureIndex {
	out := map[notation.MeasureIndex]notation.MeasureIndex{}
	for _, marker := range repeats {
		switch m := marker.(type) {
		case notation.SectionRepeat:
			blockLen := int(m.End-m.Start) + 1
			for k := 0; k < m.Count; k++ {
				for j := 0; j < blockLen; j++ {
					ghost := int(m.End) + 1 + k*blockLen + j
					if ghost < measureCount {
						out[notation.MeasureIndex(ghost)] = m.Start + notation.MeasureIndex(j)
					}
				}
			}
		case notation.MeasureSimile:
			for _, rep := range m.Repeats {
				if int(rep) < measureCount {
					out[rep] = m.Source
				}
			}
		}
	}
	// Flatten chains (a section copy of a simile slot points at the slot).
	for ghost := range out {
		src := out[ghost]
		for {
			next, ok := out[src]
			if !ok {
				break
			}
			src = next
		}
		out[ghost] = src
	}
	return out
}
