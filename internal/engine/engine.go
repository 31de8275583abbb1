// Package engine runs the delayed-feedback loop: captured chunks go into
// the ring, sit there for one full traversal, and come back out to the
// playback stream. One background goroutine owns the loop for the lifetime
// of a session; delay changes arrive from the control surface and are
// applied as throttled ring resizes.
package engine

import (
	"errors"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/snovvcrash/dafgen/internal/device"
	"github.com/snovvcrash/dafgen/internal/ring"
)

var (
	ErrAlreadyRunning = errors.New("engine: session already running")
	ErrNotRunning     = errors.New("engine: no session running")
)

// Config fixes the audio format and the delay-control policy for all
// sessions of one engine.
type Config struct {
	Format device.Format

	// MinDelay and MaxDelay bound SetDelay; values outside the range are
	// ignored, matching the control's slider range.
	MinDelay time.Duration
	MaxDelay time.Duration

	// ResizeInterval throttles applied resizes; requests arriving sooner
	// after the last applied resize are dropped, not queued. A dragged
	// slider emits far faster than the loop consumes.
	ResizeInterval time.Duration
}

// ringSize converts a requested delay into a slot count at the configured
// chunk rate, never below one slot.
func (c Config) ringSize(d time.Duration) int {
	n := int(math.Floor(d.Seconds() * c.Format.ChunksPerSecond()))
	if n < 1 {
		n = 1
	}
	return n
}

// Callbacks are invoked from the loop goroutine; keep them short.
type Callbacks struct {
	// DelayMeasured fires once per full ring traversal with the realized
	// wall-clock delay.
	DelayMeasured func(time.Duration)

	// ChunkCaptured fires for every captured chunk. The chunk is shared
	// with the ring and must be treated as read-only.
	ChunkCaptured func(ring.Chunk)

	// Stopped fires when the loop exits. err is nil for the normal stop
	// paths (source drained, Stop requested) and non-nil when a device
	// error aborted the session.
	Stopped func(err error)
}

// Engine owns the session state machine. Idle → Running → Idle; a stopped
// engine can be started again with a fresh ring.
type Engine struct {
	cfg  Config
	open device.Factory
	cb   Callbacks
	log  *zap.Logger
	now  func() time.Time

	mu         sync.Mutex
	running    bool
	stopping   bool
	ring       *ring.Buffer
	streams    *device.Streams
	done       chan struct{}
	lastResize time.Time
}

// New creates an idle engine. Zero policy values fall back to the
// original control's defaults: 50–200 ms delay range, 10 ms throttle.
func New(cfg Config, open device.Factory, cb Callbacks, log *zap.Logger) *Engine {
	if cfg.MinDelay == 0 {
		cfg.MinDelay = 50 * time.Millisecond
	}
	if cfg.MaxDelay == 0 {
		cfg.MaxDelay = 200 * time.Millisecond
	}
	if cfg.ResizeInterval == 0 {
		cfg.ResizeInterval = 10 * time.Millisecond
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{cfg: cfg, open: open, cb: cb, log: log, now: time.Now}
}

// Running reports whether a session loop is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Start opens the devices, sizes a fresh ring from the requested delay and
// launches the loop. If either stream fails to open, nothing is left
// running and the error is returned synchronously.
func (e *Engine) Start(delay time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return ErrAlreadyRunning
	}

	size := e.cfg.ringSize(delay)
	rb, err := ring.New(size)
	if err != nil {
		return err
	}
	streams, err := e.open(e.cfg.Format)
	if err != nil {
		return err
	}

	e.ring = rb
	e.streams = streams
	e.done = make(chan struct{})
	e.running = true
	e.stopping = false
	e.lastResize = time.Time{}

	e.log.Info("session started",
		zap.Duration("delay", delay),
		zap.Int("ring_size", size))

	go e.run(rb, streams, e.done)
	return nil
}

// Stop requests cooperative shutdown and waits for the loop to exit.
// Closing the capture stream unblocks a read in flight; after Stop
// returns the loop makes no further device calls.
func (e *Engine) Stop() error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return ErrNotRunning
	}
	e.stopping = true
	streams := e.streams
	done := e.done
	e.mu.Unlock()

	e.log.Info("stop requested")
	if streams != nil {
		streams.Source.Close()
	}
	<-done
	return nil
}

// SetDelay requests a live resize of the delay window. Out-of-range delays
// are ignored, and applied resizes are rate-limited per ResizeInterval.
func (e *Engine) SetDelay(d time.Duration) {
	if d < e.cfg.MinDelay || d > e.cfg.MaxDelay {
		e.log.Debug("delay out of range, ignored", zap.Duration("delay", d))
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return
	}
	now := e.now()
	if !e.lastResize.IsZero() && now.Sub(e.lastResize) < e.cfg.ResizeInterval {
		e.log.Debug("resize throttled", zap.Duration("delay", d))
		return
	}

	size := e.cfg.ringSize(d)
	if err := e.ring.Resize(size); err != nil {
		e.log.Warn("resize rejected", zap.Int("size", size), zap.Error(err))
		return
	}
	e.lastResize = now
	e.log.Debug("ring resized",
		zap.Duration("delay", d),
		zap.Int("size", size))
}

// run is the session loop. Each iteration plays the chunk waiting at the
// cursor, captures a fresh chunk into the same slot and advances; the
// blocking device calls pace the loop to real time.
func (e *Engine) run(rb *ring.Buffer, streams *device.Streams, done chan struct{}) {
	var runErr error
	var start time.Time

	for streams.Source.Active() {
		if start.IsZero() && rb.Cursor() == 0 {
			start = e.now()
		}

		var iterErr error
		var captured ring.Chunk
		wrapped := rb.Exchange(func(prev ring.Chunk) ring.Chunk {
			if prev != nil {
				if err := streams.Sink.WriteChunk(prev); err != nil {
					iterErr = err
					return prev
				}
			}
			c, err := streams.Source.ReadChunk()
			if err != nil {
				iterErr = err
				return prev
			}
			captured = c
			return c
		})
		if iterErr != nil {
			if !errors.Is(iterErr, device.ErrStreamClosed) && !e.isStopping() {
				runErr = iterErr
			}
			break
		}

		if e.cb.ChunkCaptured != nil {
			e.cb.ChunkCaptured(captured)
		}
		if wrapped && !start.IsZero() {
			elapsed := e.now().Sub(start)
			if e.cb.DelayMeasured != nil {
				e.cb.DelayMeasured(elapsed)
			}
			start = time.Time{}
		}
	}

	streams.Close()

	e.mu.Lock()
	e.running = false
	e.stopping = false
	e.ring = nil
	e.streams = nil
	e.mu.Unlock()

	if runErr != nil {
		e.log.Error("session aborted", zap.Error(runErr))
	} else {
		e.log.Info("session stopped")
	}
	close(done)
	if e.cb.Stopped != nil {
		e.cb.Stopped(runErr)
	}
}

func (e *Engine) isStopping() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopping
}
