package darbuka

import (
	"encoding/binary"
	"errors"
	"math"

	intfx "github.com/tiffz/darbuka/internal/effects"
	intseq "github.com/tiffz/darbuka/internal/sequencer"
	intsynth "github.com/tiffz/darbuka/internal/synth"
)

// RenderOptions controls offline rendering.
type RenderOptions struct {
	BPM float64
	// Loops plays the whole timeline this many times (0 or 1 = once).
	Loops int
	// TailSeconds of extra silence rendered after the last stroke so decay
	// tails are not cut off. Defaults to 0.5.
	TailSeconds  float64
	RoomAmbience bool
}

func DefaultRenderOptions() RenderOptions {
	return RenderOptions{BPM: 120, TailSeconds: 0.5, RoomAmbience: true}
}

// RenderSamples renders a rhythm offline to interleaved stereo float32.
func RenderSamples(r *Rhythm, sampleRate int, opts RenderOptions) ([]float32, error) {
	if r == nil || !r.Valid {
		return nil, errors.New("cannot render an invalid rhythm")
	}
	if sampleRate <= 0 {
		return nil, errors.New("sampleRate must be positive")
	}
	if opts.BPM <= 0 {
		opts.BPM = 120
	}
	if opts.TailSeconds < 0 {
		opts.TailSeconds = 0
	}
	loops := opts.Loops
	if loops < 1 {
		loops = 1
	}

	engine := intsynth.New(sampleRate, intsynth.DefaultParams())

	// One sixteenth is a quarter of a beat.
	secondsPerTick := 60.0 / opts.BPM / 4.0
	seq := intseq.New(r, opts.BPM, engine, sampleRate, intseq.Options{})
	loopFrames := int(float64(sampleRate) * float64(seq.TotalTicks()) * secondsPerTick)
	tailFrames := int(float64(sampleRate) * opts.TailSeconds)
	out := make([]float32, (loopFrames*loops+tailFrames)*2)

	// Each pass gets a fresh sequencer but shares the engine, so decay tails
	// ring across the loop seam.
	for i := 0; i < loops; i++ {
		if i > 0 {
			seq = intseq.New(r, opts.BPM, engine, sampleRate, intseq.Options{})
		}
		seq.Process(out[i*loopFrames*2 : (i+1)*loopFrames*2])
	}
	for f := 0; f < tailFrames; f++ {
		l, right := engine.RenderFrame()
		out[(loops*loopFrames+f)*2] = l
		out[(loops*loopFrames+f)*2+1] = right
	}

	if opts.RoomAmbience {
		chain := intfx.NewChain(intfx.NewLimiter(1.1), intfx.NewRoom(sampleRate, 0.35, 0.5, 0.12))
		for i := 0; i+1 < len(out); i += 2 {
			out[i], out[i+1] = chain.Process(out[i], out[i+1])
		}
	}
	return out, nil
}

// EncodeWAVFloat32LE wraps samples in a RIFF/WAVE container using IEEE float
// format (type 3), 32 bits per sample, little endian.
func EncodeWAVFloat32LE(samples []float32, sampleRate int, channels int) []byte {
	dataSize := len(samples) * 4
	byteRate := sampleRate * channels * 4
	blockAlign := channels * 4
	chunkSize := 36 + dataSize
	out := make([]byte, 44+dataSize)
	copy(out[0:], []byte("RIFF"))
	binary.LittleEndian.PutUint32(out[4:], uint32(chunkSize))
	copy(out[8:], []byte("WAVE"))
	copy(out[12:], []byte("fmt "))
	binary.LittleEndian.PutUint32(out[16:], 16)
	binary.LittleEndian.PutUint16(out[20:], 3)
	binary.LittleEndian.PutUint16(out[22:], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:], 32)
	copy(out[36:], []byte("data"))
	binary.LittleEndian.PutUint32(out[40:], uint32(dataSize))
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[44+i*4:], math.Float32bits(s))
	}
	return out
}
