// Package rhythmfile loads and saves rhythms as YAML documents, keeping the
// notation in its compressed textual form so files stay hand-editable.
package rhythmfile

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tiffz/darbuka/internal/notation"
)

// File is the on-disk document. Notation stays compressed; grouping is the
// optional beat grouping in sixteenths (3+3+2+2 style).
type File struct {
	Name     string    `yaml:",omitempty"`
	Notation string    `yaml:"notation"`
	Time     TimeValue `yaml:"time,omitempty"`
	BPM      float64   `yaml:"bpm,omitempty"`
	Grouping []int     `yaml:",flow,omitempty"`
	Comment  string    `yaml:",omitempty"`
}

// TimeValue serializes a time signature as the familiar "4/4" string.
type TimeValue struct {
	Numerator   int
	Denominator int
}

func (t TimeValue) IsZero() bool { return t.Numerator == 0 && t.Denominator == 0 }

func (t TimeValue) MarshalYAML() (interface{}, error) {
	return fmt.Sprintf("%d/%d", t.Numerator, t.Denominator), nil
}

func (t *TimeValue) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	var num, den int
	if _, err := fmt.Sscanf(s, "%d/%d", &num, &den); err != nil {
		return fmt.Errorf("time signature %q: want NUM/DEN", s)
	}
	t.Numerator, t.Denominator = num, den
	return nil
}

// TimeSignature converts the file value, defaulting to common time.
func (f *File) TimeSignature() notation.TimeSignature {
	if f.Time.IsZero() {
		ts := notation.CommonTime()
		ts.BeatGrouping = f.Grouping
		return ts
	}
	return notation.TimeSignature{
		Numerator:    f.Time.Numerator,
		Denominator:  f.Time.Denominator,
		BeatGrouping: f.Grouping,
	}
}

// Rhythm parses the file's notation against its time signature.
func (f *File) Rhythm() notation.Rhythm {
	return notation.ParseRhythm(f.Notation, f.TimeSignature())
}

// Load reads and decodes one rhythm file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return Decode(data)
}

// Decode parses YAML bytes into a File. The notation is not validated here;
// call Rhythm to parse it.
func Decode(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode rhythm file: %w", err)
	}
	if f.Notation == "" {
		return nil, fmt.Errorf("rhythm file has no notation")
	}
	return &f, nil
}

// Save encodes and writes the file.
func Save(path string, f *File) error {
	data, err := Encode(f)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func Encode(f *File) ([]byte, error) {
	data, err := yaml.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("encode rhythm file: %w", err)
	}
	return data, nil
}
