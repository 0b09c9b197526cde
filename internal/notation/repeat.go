package notation

import (
	"fmt"
	"sort"
)

// ParseRhythm runs the full pipeline: scan, segment, resolve repeats. It never
// returns an error; failures come back as Valid=false with a message so that
// callers can keep rendering their previous state while the user types.
func ParseRhythm(text string, ts TimeSignature) Rhythm {
	if !ts.valid() {
		return invalidRhythm(ts, fmt.Sprintf("invalid time signature %d/%d", ts.Numerator, ts.Denominator))
	}
	sc, err := scan(text, ts.SixteenthsPerMeasure(), true)
	if err != nil {
		return invalidRhythm(ts, err.Error())
	}
	measures, padding := Segment(sc.notes, ts)
	expanded, markers, srcMap, warnings, err := resolveRepeats(measures, sc.tokens)
	if err != nil {
		return invalidRhythm(ts, err.Error())
	}
	return Rhythm{
		Valid:     true,
		Warnings:  warnings,
		Measures:  expanded,
		TimeSig:   ts,
		Repeats:   markers,
		SourceMap: srcMap,
		Padding:   padding,
	}
}

type preSection struct {
	start MeasureIndex
	end   MeasureIndex
	count int // additional plays beyond the first
}

// resolveRepeats turns raw repeat tokens into markers and unrolls them.
// Similes resolve first (each placeholder slot is filled with its source
// measure's notes, chasing chains of consecutive '%' back to literal content),
// then sections expand left to right. All marker indices and the source map
// come back in expanded coordinates.
func resolveRepeats(measures []Measure, tokens []repeatToken) ([]Measure, []RepeatMarker, map[MeasureIndex]MeasureIndex, []string, error) {
	sections, similes, err := collectTokens(measures, tokens)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	// Chase each simile back to the literal measure it mirrors.
	simileSource := map[MeasureIndex]MeasureIndex{}
	for _, m := range similes {
		src := m - 1
		if resolved, ok := simileSource[src]; ok {
			src = resolved
		}
		simileSource[m] = src
	}

	// Precedence: a simile whose placeholder sits inside a repeat section while
	// its source lies outside would make the unrolled copies disagree with the
	// compressed text, so the section wins and the simile is dropped.
	var warnings []string
	kept := similes[:0]
	for _, m := range similes {
		src := simileSource[m]
		dropped := false
		for _, sec := range sections {
			if m >= sec.start && m <= sec.end && (src < sec.start || src > sec.end) {
				warnings = append(warnings, fmt.Sprintf("simile in measure %d crosses a repeat barline; ignored", m))
				delete(simileSource, m)
				dropped = true
				break
			}
		}
		if !dropped {
			kept = append(kept, m)
		}
	}
	similes = kept

	// Fill simile slots so expansion can copy measures verbatim.
	for _, m := range similes {
		measures[m] = measures[simileSource[m]].clone()
	}

	// Unroll sections. expandedOf maps every pre-expansion index to the
	// expanded index of its (source) copy.
	endingAt := map[MeasureIndex]preSection{}
	for _, sec := range sections {
		endingAt[sec.end] = sec
	}
	expandedOf := make([]MeasureIndex, len(measures))
	var out []Measure
	srcMap := map[MeasureIndex]MeasureIndex{}
	for i := range measures {
		expandedOf[i] = MeasureIndex(len(out))
		out = append(out, measures[i])
		sec, ok := endingAt[MeasureIndex(i)]
		if !ok {
			continue
		}
		for k := 0; k < sec.count; k++ {
			for j := sec.start; j <= sec.end; j++ {
				ghost := MeasureIndex(len(out))
				srcMap[ghost] = expandedOf[j]
				out = append(out, measures[j].clone())
			}
		}
	}

	// Simile slots are ghosts too.
	for _, m := range similes {
		srcMap[expandedOf[m]] = expandedOf[simileSource[m]]
	}
	// Normalize chains (a copied simile slot points at the slot, which points
	// at the literal source) so every ghost maps straight to literal content.
	for ghost := range srcMap {
		src := srcMap[ghost]
		for {
			next, ok := srcMap[src]
			if !ok {
				break
			}
			src = next
		}
		srcMap[ghost] = src
	}

	markers := rewriteMarkers(sections, similes, simileSource, expandedOf)
	return out, markers, srcMap, warnings, nil
}

func collectTokens(measures []Measure, tokens []repeatToken) ([]preSection, []MeasureIndex, error) {
	var sections []preSection
	var similes []MeasureIndex
	var openStart MeasureIndex
	open := false
	limit := MeasureIndex(len(measures))
	for _, tok := range tokens {
		switch tok.kind {
		case tokSectionStart:
			openStart = tok.measure
			open = true
		case tokSectionEnd:
			if !open {
				return nil, nil, fmt.Errorf("repeat end without matching start at measure %d", tok.measure)
			}
			sec := preSection{start: openStart, end: tok.measure, count: tok.plays - 1}
			if sec.start >= limit || sec.end >= limit {
				return nil, nil, fmt.Errorf("repeat section [%d, %d] is outside the parsed range of %d measures", sec.start, sec.end, limit)
			}
			sections = append(sections, sec)
			open = false
		case tokSimile:
			if tok.measure == 0 {
				return nil, nil, fmt.Errorf("simile in measure 0 has no previous measure to repeat")
			}
			if tok.measure >= limit {
				return nil, nil, fmt.Errorf("simile at measure %d is outside the parsed range of %d measures", tok.measure, limit)
			}
			similes = append(similes, tok.measure)
		}
	}
	return sections, similes, nil
}

func rewriteMarkers(sections []preSection, similes []MeasureIndex, simileSource map[MeasureIndex]MeasureIndex, expandedOf []MeasureIndex) []RepeatMarker {
	var markers []RepeatMarker
	for _, sec := range sections {
		markers = append(markers, SectionRepeat{
			Start: expandedOf[sec.start],
			End:   expandedOf[sec.end],
			Count: sec.count,
		})
	}
	// Group simile slots by their shared source, in source order.
	bySource := map[MeasureIndex][]MeasureIndex{}
	for _, m := range similes {
		src := expandedOf[simileSource[m]]
		bySource[src] = append(bySource[src], expandedOf[m])
	}
	sources := make([]MeasureIndex, 0, len(bySource))
	for src := range bySource {
		sources = append(sources, src)
	}
	sort.Slice(sources, func(a, b int) bool { return sources[a] < sources[b] })
	for _, src := range sources {
		repeats := bySource[src]
		sort.Slice(repeats, func(a, b int) bool { return repeats[a] < repeats[b] })
		markers = append(markers, MeasureSimile{Source: src, Repeats: repeats})
	}
	return markers
}
