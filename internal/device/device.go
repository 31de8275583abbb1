// Package device abstracts the capture and playback streams the feedback
// loop moves chunks between. The PortAudio implementation lives here; the
// engine only sees the Source and Sink interfaces so tests can substitute
// in-memory streams.
package device

import (
	"errors"

	"github.com/snovvcrash/dafgen/internal/ring"
)

// ErrDeviceUnavailable wraps any failure to open a capture or playback
// stream. It is surfaced to the caller before the loop starts; nothing is
// left half-open.
var ErrDeviceUnavailable = errors.New("device: no input/output device available")

// ErrStreamClosed is returned by a blocking read or write once the stream
// has been closed. The engine treats it as the normal stop path.
var ErrStreamClosed = errors.New("device: stream closed")

// Format fixes the shape of every chunk moving through a session.
type Format struct {
	SampleRate     int
	Channels       int
	FramesPerChunk int
}

// SamplesPerChunk is the interleaved sample count of one chunk.
func (f Format) SamplesPerChunk() int {
	return f.FramesPerChunk * f.Channels
}

// ChunksPerSecond is the natural loop rate the hardware imposes.
func (f Format) ChunksPerSecond() float64 {
	return float64(f.SampleRate) / float64(f.FramesPerChunk)
}

// Source produces captured chunks. ReadChunk blocks until a full chunk is
// available or the stream closes; Active reports whether more reads can
// succeed. Close unblocks a pending ReadChunk.
type Source interface {
	Active() bool
	ReadChunk() (ring.Chunk, error)
	Close() error
}

// Sink accepts chunks for playback. WriteChunk blocks until the hardware
// buffer accepts the chunk; that blocking is the loop's backpressure.
type Sink interface {
	WriteChunk(ring.Chunk) error
	Close() error
}

// Streams bundles an open capture/playback pair for one session.
type Streams struct {
	Source Source
	Sink   Sink

	// Shutdown releases backend resources after both streams are closed.
	// Optional.
	Shutdown func() error
}

// Close closes both streams and runs the backend shutdown hook. Safe to
// call more than once as long as Source and Sink tolerate repeated closes.
func (s *Streams) Close() error {
	err := s.Source.Close()
	if cerr := s.Sink.Close(); err == nil {
		err = cerr
	}
	if s.Shutdown != nil {
		if serr := s.Shutdown(); err == nil {
			err = serr
		}
	}
	return err
}

// Factory opens a capture/playback pair for the given format. On error no
// stream is left open.
type Factory func(Format) (*Streams, error)
