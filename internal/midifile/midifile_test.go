package midifile

import (
	"bytes"
	"testing"

	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/tiffz/darbuka/internal/notation"
)

func mustRhythm(t *testing.T, text string, ts notation.TimeSignature) notation.Rhythm {
	t.Helper()
	r := notation.ParseRhythm(text, ts)
	if !r.Valid {
		t.Fatalf("parse %q failed: %s", text, r.Err)
	}
	return r
}

type noteEvent struct {
	channel  uint8
	key      uint8
	velocity uint8
	on       bool
}

func decodeNotes(t *testing.T, data []byte) []noteEvent {
	t.Helper()
	s, err := smf.ReadFrom(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("generated file failed to parse: %v", err)
	}
	var notes []noteEvent
	for _, track := range s.Tracks {
		for _, ev := range track {
			msg := []byte(ev.Message)
			if len(msg) < 3 {
				continue
			}
			status := msg[0]
			switch {
			case status >= 0x90 && status <= 0x9F && msg[2] > 0:
				notes = append(notes, noteEvent{channel: status & 0x0F, key: msg[1], velocity: msg[2], on: true})
			case status >= 0x80 && status <= 0x8F:
				notes = append(notes, noteEvent{channel: status & 0x0F, key: msg[1], on: false})
			}
		}
	}
	return notes
}

func TestEncodeStrokesOnDrumChannel(t *testing.T) {
	r := mustRhythm(t, "D-T-__T-D---T---", notation.CommonTime())
	data, err := Encode(&r, DefaultOptions())
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	notes := decodeNotes(t, data)
	var ons []noteEvent
	for _, n := range notes {
		if n.on {
			ons = append(ons, n)
		}
	}
	if len(ons) != 5 {
		t.Fatalf("expected 5 note-ons, got %d", len(ons))
	}
	wantKeys := []uint8{64, 60, 60, 64, 60}
	for i, n := range ons {
		if n.channel != 9 {
			t.Fatalf("note %d on channel %d, expected the percussion channel", i, n.channel)
		}
		if n.key != wantKeys[i] {
			t.Fatalf("note %d: expected key %d, got %d", i, wantKeys[i], n.key)
		}
	}
}

func TestEncodeAccentsDownbeat(t *testing.T) {
	r := mustRhythm(t, "D-T-__T-D---T---", notation.CommonTime())
	opts := DefaultOptions()
	data, err := Encode(&r, opts)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	notes := decodeNotes(t, data)
	var ons []noteEvent
	for _, n := range notes {
		if n.on {
			ons = append(ons, n)
		}
	}
	if ons[0].velocity != opts.AccentVelocity {
		t.Fatalf("downbeat velocity %d, expected %d", ons[0].velocity, opts.AccentVelocity)
	}
	if ons[1].velocity != opts.Velocity {
		t.Fatalf("off-beat velocity %d, expected %d", ons[1].velocity, opts.Velocity)
	}
}

func TestEncodeExpandsRepeats(t *testing.T) {
	ts := notation.TimeSignature{Numerator: 1, Denominator: 4}
	r := mustRhythm(t, "|: D-T- :|x3", ts)
	data, err := Encode(&r, DefaultOptions())
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	count := 0
	for _, n := range decodeNotes(t, data) {
		if n.on {
			count++
		}
	}
	if count != 6 {
		t.Fatalf("x3 should export all unrolled strokes, got %d note-ons", count)
	}
}

func TestEncodeCarriesTempo(t *testing.T) {
	r := mustRhythm(t, "D-T-", notation.CommonTime())
	opts := DefaultOptions()
	opts.BPM = 96
	data, err := Encode(&r, opts)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	s, err := smf.ReadFrom(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("parse back failed: %v", err)
	}
	found := false
	for _, ev := range s.Tracks[0] {
		msg := []byte(ev.Message)
		if len(msg) >= 6 && msg[0] == 0xFF && msg[1] == 0x51 {
			usPerBeat := uint32(msg[3])<<16 | uint32(msg[4])<<8 | uint32(msg[5])
			bpm := 60000000.0 / float64(usPerBeat)
			if bpm < 95.9 || bpm > 96.1 {
				t.Fatalf("tempo round-tripped to %v BPM", bpm)
			}
			found = true
		}
	}
	if !found {
		t.Fatalf("no tempo event in generated file")
	}
}

func TestEncodeRejectsInvalidRhythm(t *testing.T) {
	r := notation.ParseRhythm("Q", notation.CommonTime())
	if _, err := Encode(&r, DefaultOptions()); err == nil {
		t.Fatalf("expected error for invalid rhythm")
	}
}
