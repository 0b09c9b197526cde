package notation

import (
	"fmt"
)

// Parsing is a pure text-to-value transformation: sound onsets D/T/K/S, rest
// onsets `_`, one `-` per sustained sixteenth, optional `|` barlines, section
// repeats `|: ... :|xN` and measure similes `%`. Whitespace is insignificant.
// An onset character always starts a new note even when adjacent to another
// onset; only `-` ever extends a duration.

type tokenKind int

const (
	tokSectionStart tokenKind = iota
	tokSectionEnd
	tokSimile
)

type repeatToken struct {
	kind    tokenKind
	measure MeasureIndex // pre-expansion measure index
	plays   int          // section end: total number of plays (N of xN)
}

type scanResult struct {
	notes  []Note
	tokens []repeatToken
	offset int // total sixteenths of pre-expansion content
}

// ParseNotes parses bare note text (no barlines or repeat syntax) into a flat
// note sequence. Pure; any structural or unknown character is an error.
func ParseNotes(text string) ([]Note, error) {
	res, err := scan(text, 0, false)
	if err != nil {
		return nil, err
	}
	return res.notes, nil
}

func scan(text string, spm int, structure bool) (scanResult, error) {
	var res scanResult
	sustainOK := false    // a '-' may extend the last note
	sectionStart := -1    // pre-expansion measure index of an open '|:'
	i := 0
	for i < len(text) {
		ch := text[i]
		if isSpace(ch) {
			i++
			continue
		}
		if sound, ok := SoundForToken(ch); ok && ch != '_' {
			res.notes = append(res.notes, newNote(sound, 1))
			res.offset++
			sustainOK = true
			i++
			continue
		}
		switch ch {
		case '_':
			// Consecutive rests consolidate into a single note.
			if last := lastNote(res.notes); sustainOK && last != nil && last.Sound == Rest {
				extend(last)
			} else {
				res.notes = append(res.notes, newNote(Rest, 1))
			}
			res.offset++
			sustainOK = true
			i++
		case '-':
			last := lastNote(res.notes)
			if !sustainOK || last == nil {
				return res, fmt.Errorf("sustain '-' at position %d has no note to extend", i)
			}
			extend(last)
			res.offset++
			i++
		case '|':
			if structure && i+1 < len(text) && text[i+1] == ':' {
				if sectionStart >= 0 {
					return res, fmt.Errorf("nested repeat '|:' at position %d", i)
				}
				if res.offset%spm != 0 {
					return res, fmt.Errorf("repeat start '|:' at position %d is not on a measure boundary", i)
				}
				sectionStart = res.offset / spm
				res.tokens = append(res.tokens, repeatToken{kind: tokSectionStart, measure: MeasureIndex(sectionStart)})
				sustainOK = false
				i += 2
				continue
			}
			if !structure {
				return res, fmt.Errorf("unexpected barline '|' at position %d", i)
			}
			// Plain barlines are optional and carry no timing of their own.
			i++
		case ':':
			if !structure || i+1 >= len(text) || text[i+1] != '|' {
				return res, fmt.Errorf("unexpected ':' at position %d", i)
			}
			if sectionStart < 0 {
				return res, fmt.Errorf("repeat end ':|' at position %d without matching '|:'", i)
			}
			if res.offset%spm != 0 {
				return res, fmt.Errorf("repeat end ':|' at position %d is not on a measure boundary", i)
			}
			end := res.offset/spm - 1
			if end < sectionStart {
				return res, fmt.Errorf("empty repeat section ending at position %d", i)
			}
			plays, next, err := parseRepeatCount(text, i+2)
			if err != nil {
				return res, err
			}
			res.tokens = append(res.tokens, repeatToken{kind: tokSectionEnd, measure: MeasureIndex(end), plays: plays})
			sectionStart = -1
			sustainOK = false
			i = next
		case '%':
			if !structure {
				return res, fmt.Errorf("unexpected simile '%%' at position %d", i)
			}
			if res.offset%spm != 0 {
				return res, fmt.Errorf("simile '%%' at position %d must occupy a whole measure", i)
			}
			// The slot keeps the timeline contiguous; the repeat resolver
			// fills it from its source measure.
			res.notes = append(res.notes, newNote(Rest, spm))
			res.tokens = append(res.tokens, repeatToken{kind: tokSimile, measure: MeasureIndex(res.offset / spm)})
			res.offset += spm
			sustainOK = false
			i++
		default:
			return res, fmt.Errorf("unrecognized character %q at position %d", ch, i)
		}
	}
	if sectionStart >= 0 {
		return res, fmt.Errorf("unterminated repeat '|:'")
	}
	return res, nil
}

// parseRepeatCount reads an optional xN suffix after ':|'. A bare ':|' plays
// twice; ':|xN' plays N times.
func parseRepeatCount(text string, at int) (int, int, error) {
	i := at
	for i < len(text) && isSpace(text[i]) {
		i++
	}
	if i >= len(text) || (text[i] != 'x' && text[i] != 'X') {
		return 2, at, nil
	}
	i++
	start := i
	n := 0
	for i < len(text) && text[i] >= '0' && text[i] <= '9' {
		n = n*10 + int(text[i]-'0')
		i++
	}
	if i == start {
		return 0, at, fmt.Errorf("repeat count 'x' at position %d has no number", start-1)
	}
	if n < 1 {
		return 0, at, fmt.Errorf("repeat count x%d at position %d must be at least 1", n, start-1)
	}
	return n, i, nil
}

func lastNote(notes []Note) *Note {
	if len(notes) == 0 {
		return nil
	}
	return &notes[len(notes)-1]
}

func extend(n *Note) {
	n.Sixteenths++
	n.Dotted = isDotted(n.Sixteenths)
}

func isSpace(b byte) bool { return b == ' ' || b == '\n' || b == '\r' || b == '\t' }
