package notation

// Tick is one sixteenth-note unit on the expanded timeline.
type Tick int

// MeasureIndex addresses a measure in the expanded measure list. Compressed
// text offsets, ticks and measure indices are three different coordinate
// spaces; keeping them as distinct types keeps them from being mixed up.
type MeasureIndex int

type Sound int

const (
	Rest Sound = iota
	Dum
	Tak
	Ka
	Slap
)

var soundTokens = map[Sound]byte{
	Rest: '_',
	Dum:  'D',
	Tak:  'T',
	Ka:   'K',
	Slap: 'S',
}

// Token returns the notation character for the sound.
func (s Sound) Token() byte { return soundTokens[s] }

func (s Sound) String() string {
	switch s {
	case Dum:
		return "dum"
	case Tak:
		return "tak"
	case Ka:
		return "ka"
	case Slap:
		return "slap"
	default:
		return "rest"
	}
}

// SoundForToken maps an onset character to its sound, case-insensitively.
func SoundForToken(b byte) (Sound, bool) {
	switch b {
	case 'D', 'd':
		return Dum, true
	case 'T', 't':
		return Tak, true
	case 'K', 'k':
		return Ka, true
	case 'S', 's':
		return Slap, true
	case '_':
		return Rest, true
	default:
		return Rest, false
	}
}

// DurationClass is the display category of a note, derived from its length in
// sixteenths. Lengths produced only by tie-splitting (5, 7, ...) have no exact
// class; Nearest picks the closest and a strict renderer decomposes further.
type DurationClass int

const (
	Sixteenth DurationClass = iota
	Eighth
	Quarter
	Half
	Whole
)

var standardLengths = []struct {
	sixteenths int
	class      DurationClass
	dotted     bool
}{
	{1, Sixteenth, false},
	{2, Eighth, false},
	{3, Eighth, true},
	{4, Quarter, false},
	{6, Quarter, true},
	{8, Half, false},
	{12, Half, true},
	{16, Whole, false},
}

// NearestDuration returns the closest standard display category for a length
// in sixteenths, and whether that standard value is a dotted one.
func NearestDuration(sixteenths int) (DurationClass, bool) {
	best := standardLengths[0]
	bestDist := sixteenths - best.sixteenths
	if bestDist < 0 {
		bestDist = -bestDist
	}
	for _, cand := range standardLengths[1:] {
		d := sixteenths - cand.sixteenths
		if d < 0 {
			d = -d
		}
		if d < bestDist {
			best = cand
			bestDist = d
		}
	}
	return best.class, best.dotted
}

// Note is one onset (or rest) with its length in sixteenths. Dotted is set
// exactly when the length is a standard dotted value (3, 6, 12). TiedTo/TiedFrom
// mark the halves of a note split at a measure boundary.
type Note struct {
	Sound      Sound
	Sixteenths int
	Dotted     bool
	TiedFrom   bool
	TiedTo     bool
}

func newNote(sound Sound, sixteenths int) Note {
	return Note{
		Sound:      sound,
		Sixteenths: sixteenths,
		Dotted:     isDotted(sixteenths),
	}
}

func isDotted(sixteenths int) bool {
	return sixteenths == 3 || sixteenths == 6 || sixteenths == 12
}

// Duration returns the display category of the note.
func (n Note) Duration() DurationClass {
	class, _ := NearestDuration(n.Sixteenths)
	return class
}

type TimeSignature struct {
	Numerator   int
	Denominator int
	// BeatGrouping, when non-nil, lists beat-group sizes in sixteenths for
	// renderers (e.g. 3+3+2+2 for a 10/8 maqsum feel). Must sum to
	// SixteenthsPerMeasure.
	BeatGrouping []int
}

func CommonTime() TimeSignature { return TimeSignature{Numerator: 4, Denominator: 4} }

// SixteenthsPerMeasure derives the measure length in ticks.
func (ts TimeSignature) SixteenthsPerMeasure() int {
	if ts.Denominator == 0 {
		return 0
	}
	return ts.Numerator * 16 / ts.Denominator
}

func (ts TimeSignature) valid() bool {
	switch ts.Denominator {
	case 1, 2, 4, 8, 16:
	default:
		return false
	}
	if ts.Numerator <= 0 {
		return false
	}
	if ts.BeatGrouping != nil {
		sum := 0
		for _, g := range ts.BeatGrouping {
			if g <= 0 {
				return false
			}
			sum += g
		}
		if sum != ts.SixteenthsPerMeasure() {
			return false
		}
	}
	return true
}

// Measure is a run of notes filling exactly one time-signature measure
// (TotalSixteenths == SixteenthsPerMeasure for every measure of a valid Rhythm).
type Measure struct {
	Notes           []Note
	TotalSixteenths int
}

func (m Measure) clone() Measure {
	notes := make([]Note, len(m.Notes))
	copy(notes, m.Notes)
	return Measure{Notes: notes, TotalSixteenths: m.TotalSixteenths}
}

// RepeatMarker is a closed sum: SectionRepeat or MeasureSimile. All indices are
// in expanded coordinates once a Rhythm has been built.
type RepeatMarker interface {
	repeatMarker()
}

// SectionRepeat plays the inclusive measure range [Start, End] Count+1 times
// in total; the unrolled copies sit immediately after End.
type SectionRepeat struct {
	Start MeasureIndex
	End   MeasureIndex
	Count int
}

// MeasureSimile marks placeholder measures that play identically to Source.
type MeasureSimile struct {
	Source  MeasureIndex
	Repeats []MeasureIndex
}

func (SectionRepeat) repeatMarker() {}
func (MeasureSimile) repeatMarker() {}

// Rhythm is the fully expanded, tick-addressable result of parsing one
// notation string. It is a value snapshot: every reparse builds a fresh one
// and nothing mutates it afterwards, so concurrent readers need no locking.
type Rhythm struct {
	Valid    bool
	Err      string
	Warnings []string

	Measures []Measure
	TimeSig  TimeSignature
	Repeats  []RepeatMarker

	// SourceMap maps each ghost measure (present only because a repeat was
	// unrolled, or a simile slot) to the source measure it mirrors. Measures
	// absent from the map are sources.
	SourceMap map[MeasureIndex]MeasureIndex

	// Padding is the length in ticks of the synthetic rest appended to fill
	// the final measure. Grid conversions exclude it from genuine content.
	Padding int
}

func invalidRhythm(ts TimeSignature, msg string) Rhythm {
	return Rhythm{Valid: false, Err: msg, TimeSig: ts}
}

// IsGhost reports whether the expanded measure exists only as an unrolled copy.
func (r *Rhythm) IsGhost(m MeasureIndex) bool {
	src, ok := r.SourceMap[m]
	return ok && src != m
}

// SourceOf returns the source measure a ghost mirrors, or m itself for sources.
func (r *Rhythm) SourceOf(m MeasureIndex) MeasureIndex {
	if src, ok := r.SourceMap[m]; ok {
		return src
	}
	return m
}

// TotalTicks is the length of the expanded timeline.
func (r *Rhythm) TotalTicks() Tick {
	total := 0
	for _, m := range r.Measures {
		total += m.TotalSixteenths
	}
	return Tick(total)
}

// MeasureAt returns the expanded measure index containing the tick.
func (r *Rhythm) MeasureAt(t Tick) MeasureIndex {
	spm := r.TimeSig.SixteenthsPerMeasure()
	if spm <= 0 {
		return 0
	}
	return MeasureIndex(int(t) / spm)
}
