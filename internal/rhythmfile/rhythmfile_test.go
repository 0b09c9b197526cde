package rhythmfile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDecodeRhythmFile(t *testing.T) {
	doc := `
name: maqsum
notation: "D-T-__T-D---T---"
time: 4/4
bpm: 110
`
	f, err := Decode([]byte(doc))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if f.Name != "maqsum" || f.BPM != 110 {
		t.Fatalf("unexpected fields: %+v", f)
	}
	ts := f.TimeSignature()
	if ts.Numerator != 4 || ts.Denominator != 4 {
		t.Fatalf("unexpected time signature %+v", ts)
	}
	r := f.Rhythm()
	if !r.Valid {
		t.Fatalf("notation failed to parse: %s", r.Err)
	}
	if len(r.Measures) != 1 {
		t.Fatalf("expected 1 measure, got %d", len(r.Measures))
	}
}

func TestDecodeDefaultsToCommonTime(t *testing.T) {
	f, err := Decode([]byte(`notation: "D-T-"`))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	ts := f.TimeSignature()
	if ts.Numerator != 4 || ts.Denominator != 4 {
		t.Fatalf("expected common time default, got %+v", ts)
	}
}

func TestDecodeRejectsMissingNotation(t *testing.T) {
	if _, err := Decode([]byte(`name: empty`)); err == nil {
		t.Fatalf("expected error for missing notation")
	}
}

func TestDecodeRejectsMalformedTime(t *testing.T) {
	if _, err := Decode([]byte("notation: D-\ntime: fast")); err == nil {
		t.Fatalf("expected error for malformed time signature")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saidi.yaml")
	in := &File{
		Name:     "saidi",
		Notation: "D-T-__D-D---T---",
		Time:     TimeValue{Numerator: 4, Denominator: 4},
		BPM:      96,
	}
	if err := Save(path, in); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	out, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if out.Name != in.Name || out.Notation != in.Notation || out.BPM != in.BPM {
		t.Fatalf("round trip changed fields: %+v", out)
	}
	if out.Time != in.Time {
		t.Fatalf("round trip changed time: %+v", out.Time)
	}
}

func TestEncodeWritesReadableTime(t *testing.T) {
	data, err := Encode(&File{
		Notation: "D-D-",
		Time:     TimeValue{Numerator: 10, Denominator: 8},
		Grouping: []int{6, 6, 4, 4},
	})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if !strings.Contains(string(data), "10/8") {
		t.Fatalf("expected human-readable time signature, got:\n%s", data)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(os.TempDir(), "does-not-exist-darbuka.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
