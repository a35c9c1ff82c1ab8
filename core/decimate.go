package core

import (
	"errors"
	"math"
	"math/bits"
)

var ErrStereoPDM = errors.New("pdm: stereo capture not supported")

// PDMDecimator turns a 1-bit PDM stream into 16-bit PCM. Each output
// sample is the density of ones over DecimationRate bits, scaled by the
// channel gain and passed through a one-pole DC blocker.
type PDMDecimator struct {
	words  int   // 32-bit PDM words per sample
	rate   int32 // bits per sample
	gainQ8 int32
	prevX  int32
	prevY  int32
}

// NewPDMDecimator builds a decimator for cfg's mono channel.
func NewPDMDecimator(cfg AudioConfig) (*PDMDecimator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	gain := cfg.LeftGainDB
	switch cfg.Mode {
	case AudioModeRight:
		gain = cfg.RightGainDB
	case AudioModeStereo:
		return nil, ErrStereoPDM
	}
	return &PDMDecimator{
		words:  cfg.DecimationRate / 32,
		rate:   int32(cfg.DecimationRate),
		gainQ8: int32(math.Round(256 * math.Pow(10, float64(gain)/20))),
	}, nil
}

// WordsPerSample is the number of raw words consumed per PCM sample.
func (d *PDMDecimator) WordsPerSample() int {
	return d.words
}

// Reset clears the filter state.
func (d *PDMDecimator) Reset() {
	d.prevX, d.prevY = 0, 0
}

// Decimate fills dst from raw, which must hold len(dst)*WordsPerSample
// words.
func (d *PDMDecimator) Decimate(dst []int16, raw []uint32) {
	for i := range dst {
		ones := 0
		for _, w := range raw[i*d.words : (i+1)*d.words] {
			ones += bits.OnesCount32(w)
		}
		// Density in [-32768, 32768].
		x := (2*int32(ones) - d.rate) * (65536 / d.rate) / 2
		x = x * d.gainQ8 >> 8
		// y[n] = x[n] - x[n-1] + 0.996*y[n-1]
		y := x - d.prevX + (d.prevY*255)>>8
		d.prevX, d.prevY = x, y
		dst[i] = clamp16(y)
	}
}

func clamp16(v int32) int16 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}
