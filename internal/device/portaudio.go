package device

import (
	"fmt"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"

	"github.com/snovvcrash/dafgen/internal/ring"
)

// Open opens the default capture and playback devices as blocking PortAudio
// streams bound to one chunk's worth of samples each. Either both streams
// come up or neither does.
func Open(f Format) (*Streams, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("%w: initialize: %v", ErrDeviceUnavailable, err)
	}

	inBuf := make([]float32, f.SamplesPerChunk())
	inStream, err := portaudio.OpenDefaultStream(
		f.Channels, 0, float64(f.SampleRate), f.FramesPerChunk, inBuf)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("%w: open capture: %v", ErrDeviceUnavailable, err)
	}

	outBuf := make([]float32, f.SamplesPerChunk())
	outStream, err := portaudio.OpenDefaultStream(
		0, f.Channels, float64(f.SampleRate), f.FramesPerChunk, outBuf)
	if err != nil {
		inStream.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("%w: open playback: %v", ErrDeviceUnavailable, err)
	}

	if err := inStream.Start(); err != nil {
		inStream.Close()
		outStream.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("%w: start capture: %v", ErrDeviceUnavailable, err)
	}
	if err := outStream.Start(); err != nil {
		inStream.Stop()
		inStream.Close()
		outStream.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("%w: start playback: %v", ErrDeviceUnavailable, err)
	}

	return &Streams{
		Source:   &paSource{stream: inStream, buf: inBuf},
		Sink:     &paSink{stream: outStream, buf: outBuf},
		Shutdown: portaudio.Terminate,
	}, nil
}

// paSource reads chunks from a capture stream through its bound buffer.
type paSource struct {
	stream *portaudio.Stream
	buf    []float32
	closed atomic.Bool
}

func (s *paSource) Active() bool {
	return !s.closed.Load()
}

func (s *paSource) ReadChunk() (ring.Chunk, error) {
	if s.closed.Load() {
		return nil, ErrStreamClosed
	}
	if err := s.stream.Read(); err != nil {
		// A close from the stop path aborts the pending read.
		if s.closed.Load() {
			return nil, ErrStreamClosed
		}
		return nil, fmt.Errorf("read chunk: %w", err)
	}
	c := make(ring.Chunk, len(s.buf))
	copy(c, s.buf)
	return c, nil
}

func (s *paSource) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.stream.Abort()
	return s.stream.Close()
}

// paSink writes chunks to a playback stream through its bound buffer.
type paSink struct {
	stream *portaudio.Stream
	buf    []float32
	closed atomic.Bool
}

func (s *paSink) WriteChunk(c ring.Chunk) error {
	if s.closed.Load() {
		return ErrStreamClosed
	}
	copy(s.buf, c)
	if err := s.stream.Write(); err != nil {
		if s.closed.Load() {
			return ErrStreamClosed
		}
		// The first writes of a session routinely underflow while the
		// hardware buffer fills; the samples still play.
		if err == portaudio.OutputUnderflowed {
			return nil
		}
		return fmt.Errorf("write chunk: %w", err)
	}
	return nil
}

func (s *paSink) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.stream.Abort()
	return s.stream.Close()
}
