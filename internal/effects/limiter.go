package effects

import "math"

// Limiter soft-clips the mix so stacked strokes cannot overdrive the output.
type Limiter struct {
	drive float32
}

// NewLimiter builds a tanh limiter. drive 1 is transparent for quiet
// material; higher values saturate earlier.
func NewLimiter(drive float32) *Limiter {
	if drive <= 0 {
		drive = 1
	}
	return &Limiter{drive: drive}
}

func (l *Limiter) Process(left, right float32) (float32, float32) {
	return soft(left * l.drive), soft(right * l.drive)
}

func (l *Limiter) Reset() {}

func soft(x float32) float32 {
	return float32(math.Tanh(float64(x)))
}
