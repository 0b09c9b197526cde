package notation

import "testing"

func quarterTime() TimeSignature { return TimeSignature{Numerator: 1, Denominator: 4} }

func TestParseRhythmSingleMeasure(t *testing.T) {
	r := ParseRhythm("D-T-__T-D---T---", CommonTime())
	if !r.Valid {
		t.Fatalf("parse failed: %s", r.Err)
	}
	if len(r.Measures) != 1 {
		t.Fatalf("expected 1 measure, got %d", len(r.Measures))
	}
	if r.TotalTicks() != 16 {
		t.Fatalf("expected 16 ticks, got %d", r.TotalTicks())
	}
	if len(r.SourceMap) != 0 {
		t.Fatalf("plain rhythm must have no ghost measures: %v", r.SourceMap)
	}
}

func TestParseRhythmSectionRepeatExpansion(t *testing.T) {
	r := ParseRhythm("D-D-|: T-T- :|x3", quarterTime())
	if !r.Valid {
		t.Fatalf("parse failed: %s", r.Err)
	}
	if len(r.Measures) != 4 {
		t.Fatalf("x3 on one measure should expand to 4 total, got %d", len(r.Measures))
	}
	if len(r.Repeats) != 1 {
		t.Fatalf("expected one marker, got %d", len(r.Repeats))
	}
	sec, ok := r.Repeats[0].(SectionRepeat)
	if !ok {
		t.Fatalf("expected SectionRepeat, got %T", r.Repeats[0])
	}
	if sec.Start != 1 || sec.End != 1 || sec.Count != 2 {
		t.Fatalf("unexpected marker %+v", sec)
	}
	for _, ghost := range []MeasureIndex{2, 3} {
		if src := r.SourceOf(ghost); src != 1 {
			t.Fatalf("ghost %d should map to 1, got %d", ghost, src)
		}
		if !r.IsGhost(ghost) {
			t.Fatalf("measure %d should be a ghost", ghost)
		}
	}
	if r.IsGhost(0) || r.IsGhost(1) {
		t.Fatalf("source measures flagged as ghosts: %v", r.SourceMap)
	}
}

func TestParseRhythmUnrolledCopiesEqualSource(t *testing.T) {
	r := ParseRhythm("|: D-D-T-T- :|x2", quarterTime())
	if !r.Valid {
		t.Fatalf("parse failed: %s", r.Err)
	}
	if len(r.Measures) != 4 {
		t.Fatalf("expected 4 measures, got %d", len(r.Measures))
	}
	for ghost, src := range r.SourceMap {
		g, s := r.Measures[ghost], r.Measures[src]
		if len(g.Notes) != len(s.Notes) {
			t.Fatalf("ghost %d note count differs from source %d", ghost, src)
		}
		for i := range g.Notes {
			if g.Notes[i] != s.Notes[i] {
				t.Fatalf("ghost %d note %d differs from source: %+v vs %+v", ghost, i, g.Notes[i], s.Notes[i])
			}
		}
	}
	if r.SourceMap[2] != 0 || r.SourceMap[3] != 1 {
		t.Fatalf("unexpected source map %v", r.SourceMap)
	}
}

func TestParseRhythmBareRepeatPlaysTwice(t *testing.T) {
	r := ParseRhythm("|: D-T- :|", quarterTime())
	if !r.Valid {
		t.Fatalf("parse failed: %s", r.Err)
	}
	if len(r.Measures) != 2 {
		t.Fatalf("bare :| means two plays, got %d measures", len(r.Measures))
	}
	sec := r.Repeats[0].(SectionRepeat)
	if sec.Count != 1 {
		t.Fatalf("expected 1 additional play, got %d", sec.Count)
	}
}

func TestParseRhythmSimile(t *testing.T) {
	r := ParseRhythm("D-T-__T-D---T---|%", CommonTime())
	if !r.Valid {
		t.Fatalf("parse failed: %s", r.Err)
	}
	if len(r.Measures) != 2 {
		t.Fatalf("expected 2 measures, got %d", len(r.Measures))
	}
	for i := range r.Measures[0].Notes {
		if r.Measures[1].Notes[i] != r.Measures[0].Notes[i] {
			t.Fatalf("simile measure differs at note %d", i)
		}
	}
	sim, ok := r.Repeats[0].(MeasureSimile)
	if !ok {
		t.Fatalf("expected MeasureSimile, got %T", r.Repeats[0])
	}
	if sim.Source != 0 || len(sim.Repeats) != 1 || sim.Repeats[0] != 1 {
		t.Fatalf("unexpected marker %+v", sim)
	}
	if r.SourceOf(1) != 0 {
		t.Fatalf("simile slot should map to measure 0")
	}
}

func TestParseRhythmSimileChainReachesLiteralSource(t *testing.T) {
	r := ParseRhythm("D---T---D---T---|%|%", CommonTime())
	if !r.Valid {
		t.Fatalf("parse failed: %s", r.Err)
	}
	if len(r.Measures) != 3 {
		t.Fatalf("expected 3 measures, got %d", len(r.Measures))
	}
	if r.SourceOf(1) != 0 || r.SourceOf(2) != 0 {
		t.Fatalf("chained similes must resolve to the literal measure: %v", r.SourceMap)
	}
	sim := r.Repeats[0].(MeasureSimile)
	if sim.Source != 0 || len(sim.Repeats) != 2 {
		t.Fatalf("unexpected marker %+v", sim)
	}
}

func TestParseRhythmSimileInsideSection(t *testing.T) {
	r := ParseRhythm("|: D-D- % :|x2", quarterTime())
	if !r.Valid {
		t.Fatalf("parse failed: %s", r.Err)
	}
	if len(r.Measures) != 4 {
		t.Fatalf("expected 4 measures, got %d", len(r.Measures))
	}
	// The simile slot and both unrolled copies all trace to the literal measure.
	for _, ghost := range []MeasureIndex{1, 2, 3} {
		if src := r.SourceOf(ghost); src != 0 {
			t.Fatalf("measure %d should trace to 0, got %d", ghost, src)
		}
	}
}

func TestParseRhythmSimileCrossingSectionDropped(t *testing.T) {
	r := ParseRhythm("D-D- |: % T-T- :|", quarterTime())
	if !r.Valid {
		t.Fatalf("parse failed: %s", r.Err)
	}
	if len(r.Warnings) != 1 {
		t.Fatalf("expected one warning, got %v", r.Warnings)
	}
	// The dropped simile leaves its slot as a rest measure.
	slot := r.Measures[1]
	if len(slot.Notes) != 1 || slot.Notes[0].Sound != Rest {
		t.Fatalf("dropped simile slot should stay a rest measure: %+v", slot)
	}
	for _, mk := range r.Repeats {
		if _, ok := mk.(MeasureSimile); ok {
			t.Fatalf("dropped simile must not produce a marker")
		}
	}
}

func TestParseRhythmErrorsNeverPanic(t *testing.T) {
	for _, tc := range []struct {
		name string
		text string
	}{
		{"simile first measure", "%"},
		{"unterminated repeat", "|: D-D-"},
		{"end without start", "D-D- :|"},
		{"mid-measure repeat start", "D- |: D-D- :|"},
		{"mid-measure repeat end", "|: D- :|"},
		{"mid-measure simile", "D- %"},
		{"zero repeat count", "|: D-D- :|x0"},
		{"unknown character", "D-D-!"},
		{"leading sustain", "-D-D"},
	} {
		r := ParseRhythm(tc.text, quarterTime())
		if r.Valid {
			t.Fatalf("%s: expected invalid rhythm for %q", tc.name, tc.text)
		}
		if r.Err == "" {
			t.Fatalf("%s: invalid rhythm must carry a message", tc.name)
		}
	}
}

func TestParseRhythmRejectsBadTimeSignature(t *testing.T) {
	r := ParseRhythm("D-D-", TimeSignature{Numerator: 4, Denominator: 3})
	if r.Valid {
		t.Fatalf("expected invalid rhythm for denominator 3")
	}
}

func TestParseRhythmEmptyText(t *testing.T) {
	r := ParseRhythm("", CommonTime())
	if !r.Valid {
		t.Fatalf("empty text should parse: %s", r.Err)
	}
	if len(r.Measures) != 0 || r.TotalTicks() != 0 {
		t.Fatalf("empty text should yield no measures")
	}
}

func TestParseRhythmBeatGroupingMustSum(t *testing.T) {
	ts := TimeSignature{Numerator: 10, Denominator: 8, BeatGrouping: []int{6, 6, 4, 4}}
	if r := ParseRhythm("", ts); !r.Valid {
		t.Fatalf("6+6+4+4 sums to 20 sixteenths and should be accepted: %s", r.Err)
	}
	ts.BeatGrouping = []int{6, 6, 4}
	if r := ParseRhythm("", ts); r.Valid {
		t.Fatalf("short grouping should be rejected")
	}
}
