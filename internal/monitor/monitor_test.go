package monitor

import (
	"math"
	"testing"

	"github.com/snovvcrash/dafgen/internal/device"
	"github.com/snovvcrash/dafgen/internal/ring"
)

var monoFormat = device.Format{SampleRate: 44100, Channels: 1, FramesPerChunk: 100}

// sineChunks slices a sine wave of the given frequency and amplitude into
// frame-sized chunks.
func sineChunks(f device.Format, freq, amp float64, n int) []ring.Chunk {
	chunks := make([]ring.Chunk, n)
	idx := 0
	for i := range chunks {
		c := make(ring.Chunk, f.SamplesPerChunk())
		for fr := 0; fr < f.FramesPerChunk; fr++ {
			s := amp * math.Sin(2*math.Pi*freq*float64(idx)/float64(f.SampleRate))
			for ch := 0; ch < f.Channels; ch++ {
				c[fr*f.Channels+ch] = float32(s)
			}
			idx++
		}
		chunks[i] = c
	}
	return chunks
}

func feedUntilReady(t *testing.T, a *Analyzer, chunks []ring.Chunk) Reading {
	t.Helper()
	for _, c := range chunks {
		if r, ok := a.Feed(c); ok {
			return r
		}
	}
	t.Fatal("analyzer never produced a reading")
	return Reading{}
}

func TestFeed_PartialWindowNotReady(t *testing.T) {
	a := New(monoFormat, 2048)

	// 20 chunks of 100 frames leave the window short of 2048 samples.
	for i, c := range sineChunks(monoFormat, 440, 0.5, 20) {
		if _, ok := a.Feed(c); ok {
			t.Fatalf("reading ready after chunk %d, window should need 2048 samples", i)
		}
	}
}

func TestReading_SineLevel(t *testing.T) {
	a := New(monoFormat, 2048)
	r := feedUntilReady(t, a, sineChunks(monoFormat, 440, 0.5, 30))

	// RMS of a 0.5 amplitude sine is 0.5/sqrt(2).
	wantRMS := 0.5 / math.Sqrt2
	if math.Abs(float64(r.RMS)-wantRMS) > 0.01 {
		t.Errorf("RMS = %v, want ~%.4f", r.RMS, wantRMS)
	}
	wantDB := 20 * math.Log10(wantRMS)
	if math.Abs(float64(r.DB)-wantDB) > 0.5 {
		t.Errorf("DB = %v, want ~%.2f", r.DB, wantDB)
	}
}

func TestReading_DominantFrequency(t *testing.T) {
	a := New(monoFormat, 2048)
	r := feedUntilReady(t, a, sineChunks(monoFormat, 440, 0.5, 30))

	// Bin resolution at 44100/2048 is ~21.5 Hz.
	if math.Abs(r.Dominant-440) > 22 {
		t.Errorf("Dominant = %v Hz, want 440 +/- one bin", r.Dominant)
	}
}

func TestReading_Silence(t *testing.T) {
	a := New(monoFormat, 1024)
	silent := make([]ring.Chunk, 11)
	for i := range silent {
		silent[i] = make(ring.Chunk, monoFormat.SamplesPerChunk())
	}
	r := feedUntilReady(t, a, silent)

	if r.RMS != 0 {
		t.Errorf("RMS = %v, want 0", r.RMS)
	}
	if r.DB != -100 {
		t.Errorf("DB = %v, want -100 floor", r.DB)
	}
	if r.Dominant != 0 {
		t.Errorf("Dominant = %v, want 0 for silence", r.Dominant)
	}
}

func TestFeed_StereoDownmix(t *testing.T) {
	stereo := device.Format{SampleRate: 44100, Channels: 2, FramesPerChunk: 100}
	a := New(stereo, 1024)

	// Left at 0.8, right at 0: the mono mix is a constant 0.4.
	chunks := make([]ring.Chunk, 11)
	for i := range chunks {
		c := make(ring.Chunk, stereo.SamplesPerChunk())
		for fr := 0; fr < stereo.FramesPerChunk; fr++ {
			c[fr*2] = 0.8
		}
		chunks[i] = c
	}
	r := feedUntilReady(t, a, chunks)

	if math.Abs(float64(r.RMS)-0.4) > 0.001 {
		t.Errorf("RMS = %v, want 0.4 after downmix", r.RMS)
	}
}

func TestReading_ConsecutiveWindows(t *testing.T) {
	a := New(monoFormat, 1024)
	chunks := sineChunks(monoFormat, 880, 0.25, 40)

	ready := 0
	for _, c := range chunks {
		if _, ok := a.Feed(c); ok {
			ready++
		}
	}
	// 4000 samples fill the 1024-sample window three times.
	if ready != 3 {
		t.Errorf("got %d readings from 40 chunks, want 3", ready)
	}
}
