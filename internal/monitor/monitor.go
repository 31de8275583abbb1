// Package monitor derives a level readout from the chunks passing through
// the feedback loop: RMS, dB and the dominant frequency of a short
// analysis window. It runs outside the loop goroutine and only ever reads
// the chunks it is fed.
package monitor

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"

	"github.com/snovvcrash/dafgen/internal/device"
	"github.com/snovvcrash/dafgen/internal/ring"
)

// DefaultWindowSize is the analysis window in mono samples. At 44100 Hz a
// 2048-sample window refreshes the readout ~21 times a second with ~21 Hz
// frequency resolution.
const DefaultWindowSize = 2048

// silenceFloor keeps log10 away from zero input.
const silenceFloor = 1e-7

// Reading is one snapshot of the input signal.
type Reading struct {
	RMS float32
	DB  float32
	// Dominant is the strongest spectral peak in Hz, or 0 when the
	// window is silent.
	Dominant float64
}

// Analyzer accumulates downmixed chunks until a full window is available.
// Not safe for concurrent use; feed it from a single goroutine.
type Analyzer struct {
	sampleRate int
	channels   int
	size       int
	window     []float64
}

// New creates an analyzer for chunks of the given format. windowSize <= 0
// selects DefaultWindowSize.
func New(f device.Format, windowSize int) *Analyzer {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	return &Analyzer{
		sampleRate: f.SampleRate,
		channels:   f.Channels,
		size:       windowSize,
		window:     make([]float64, 0, windowSize),
	}
}

// Feed adds one chunk to the window. When the window fills it returns a
// reading over it and starts the next window.
func (a *Analyzer) Feed(c ring.Chunk) (Reading, bool) {
	for i := 0; i+a.channels <= len(c); i += a.channels {
		sum := 0.0
		for ch := 0; ch < a.channels; ch++ {
			sum += float64(c[i+ch])
		}
		a.window = append(a.window, sum/float64(a.channels))
	}
	if len(a.window) < a.size {
		return Reading{}, false
	}

	r := a.analyze(a.window)
	a.window = a.window[:0]
	return r, true
}

func (a *Analyzer) analyze(samples []float64) Reading {
	sumSquares := 0.0
	for _, s := range samples {
		sumSquares += s * s
	}
	rms := math.Sqrt(sumSquares / float64(len(samples)))

	db := -100.0
	if rms > silenceFloor {
		db = 20 * math.Log10(rms)
	}

	r := Reading{RMS: float32(rms), DB: float32(db)}
	if rms <= silenceFloor {
		return r
	}
	r.Dominant = dominantFrequency(samples, a.sampleRate)
	return r
}

// dominantFrequency returns the frequency of the strongest bin of the
// Hann-windowed spectrum, skipping the DC component.
func dominantFrequency(samples []float64, sampleRate int) float64 {
	windowed := make([]float64, len(samples))
	n := float64(len(samples) - 1)
	for i, s := range samples {
		hann := 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/n))
		windowed[i] = s * hann
	}

	spectrum := fft.FFTReal(windowed)

	peakBin := 0
	peakMag := 0.0
	for i := 1; i < len(spectrum)/2; i++ {
		if mag := cmplx.Abs(spectrum[i]); mag > peakMag {
			peakMag = mag
			peakBin = i
		}
	}
	return float64(peakBin) * float64(sampleRate) / float64(len(spectrum))
}
