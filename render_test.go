package darbuka

import (
	"encoding/binary"
	"testing"
)

func TestRenderSamplesProducesAudio(t *testing.T) {
	r := Parse("D-T-__T-D---T---", CommonTime())
	samples, err := RenderSamples(&r, 48000, DefaultRenderOptions())
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if len(samples) == 0 || len(samples)%2 != 0 {
		t.Fatalf("expected interleaved stereo output, got %d samples", len(samples))
	}
	var energy float64
	for _, s := range samples {
		if s < 0 {
			energy -= float64(s)
		} else {
			energy += float64(s)
		}
	}
	if energy == 0 {
		t.Fatalf("expected non-zero audio energy")
	}
}

func TestRenderSamplesLoopsExtendDuration(t *testing.T) {
	r := Parse("D-T-", TimeSignature{Numerator: 1, Denominator: 4})
	once, err := RenderSamples(&r, 48000, RenderOptions{BPM: 120, Loops: 1})
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	thrice, err := RenderSamples(&r, 48000, RenderOptions{BPM: 120, Loops: 3})
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if len(thrice) <= len(once)*2 {
		t.Fatalf("three loops should render far more frames: %d vs %d", len(thrice), len(once))
	}
}

func TestRenderSamplesRejectsInvalidRhythm(t *testing.T) {
	r := Parse("bogus", CommonTime())
	if _, err := RenderSamples(&r, 48000, DefaultRenderOptions()); err != nil {
		return
	}
	t.Fatalf("expected error for invalid rhythm")
}

func TestEncodeWAVFloat32LEHeader(t *testing.T) {
	samples := []float32{0, 0.5, -0.5, 1}
	wav := EncodeWAVFloat32LE(samples, 48000, 2)
	if len(wav) != 44+len(samples)*4 {
		t.Fatalf("unexpected container size %d", len(wav))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		t.Fatalf("bad container magic")
	}
	if format := binary.LittleEndian.Uint16(wav[20:]); format != 3 {
		t.Fatalf("expected IEEE float format 3, got %d", format)
	}
	if rate := binary.LittleEndian.Uint32(wav[24:]); rate != 48000 {
		t.Fatalf("sample rate %d", rate)
	}
	if bitDepth := binary.LittleEndian.Uint16(wav[34:]); bitDepth != 32 {
		t.Fatalf("bit depth %d", bitDepth)
	}
	if dataSize := binary.LittleEndian.Uint32(wav[40:]); dataSize != uint32(len(samples)*4) {
		t.Fatalf("data size %d", dataSize)
	}
}
