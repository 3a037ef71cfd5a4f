// Package audio pushes decoded PCM samples to the sound card.
package audio

import (
	"errors"
	"fmt"
	"time"
	"unsafe"

	"github.com/glvplay/glvplay/pkg/logger"
	"github.com/glvplay/glvplay/pkg/monitoring"
)

// Spec is the sample format of a sink. Samples are always signed 16-bit.
type Spec struct {
	Frequency int
	Channels  int
	// Samples is the device buffer size in sample frames.
	Samples int
}

func (s Spec) String() string {
	return fmt.Sprintf("s16 %vHz %vch buf:%v", s.Frequency, s.Channels, s.Samples)
}

// bufferBytes is the size of one device buffer.
func (s Spec) bufferBytes() uint32 { return uint32(s.Samples * s.Channels * 2) }

var (
	ErrAudioWrite = errors.New("audio write failed")
	ErrStalled    = errors.New("device doesn't consume samples")
	ErrClosed     = errors.New("sink is closed")
)

// WriteError is a failed device write.
// It matches ErrAudioWrite with errors.Is.
type WriteError struct {
	Samples int
	Err     error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("%v (%v samples): %v", ErrAudioWrite, e.Samples, e.Err)
}

func (e *WriteError) Unwrap() error        { return e.Err }
func (e *WriteError) Is(target error) bool { return target == ErrAudioWrite }

// device is an opened output, see sdl.go.
type device interface {
	Queue(data []byte) error
	// Queued returns the bytes waiting to be played.
	Queued() uint32
	Close()
}

// Sink plays samples with a blocking write.
type Sink struct {
	dev     device
	spec    Spec
	limit   uint32
	poll    time.Duration
	stall   time.Duration
	closed  bool
	metrics *monitoring.Metrics
	log     *logger.Logger
}

// New opens the default playback device with a fixed spec.
func New(spec Spec, metrics *monitoring.Metrics, log *logger.Logger) (*Sink, error) {
	if spec.Frequency <= 0 || spec.Channels <= 0 || spec.Samples <= 0 {
		return nil, fmt.Errorf("audio: bad spec %v", spec)
	}
	dev, err := openSDL(spec)
	if err != nil {
		return nil, fmt.Errorf("audio: %w", err)
	}
	s := newSink(dev, spec, metrics, log)
	s.log.Info().Str("spec", spec.String()).Msg("device opened")
	return s, nil
}

func newSink(dev device, spec Spec, metrics *monitoring.Metrics, log *logger.Logger) *Sink {
	if metrics == nil {
		metrics = monitoring.NewMetrics(nil)
	}
	buffer := time.Duration(spec.Samples) * time.Second / time.Duration(spec.Frequency)
	return &Sink{
		dev:     dev,
		spec:    spec,
		limit:   spec.bufferBytes(),
		poll:    max(buffer/4, time.Millisecond),
		stall:   max(10*buffer, time.Second),
		metrics: metrics,
		log:     log.Module("audio"),
	}
}

func (s *Sink) Spec() Spec { return s.spec }

// Play writes interleaved samples and blocks until the device
// is ready to take more.
func (s *Sink) Play(samples []int16) error {
	if len(samples) == 0 {
		return nil
	}
	if s.closed {
		return &WriteError{Samples: len(samples), Err: ErrClosed}
	}
	data := unsafe.Slice((*byte)(unsafe.Pointer(&samples[0])), len(samples)*2)
	if err := s.dev.Queue(data); err != nil {
		return s.fail(len(samples), err)
	}
	s.metrics.AudioSamples.Add(float64(len(samples)))

	queued, since := s.dev.Queued(), time.Now()
	for queued > s.limit {
		time.Sleep(s.poll)
		q := s.dev.Queued()
		if q < queued {
			queued, since = q, time.Now()
			continue
		}
		if time.Since(since) > s.stall {
			return s.fail(len(samples), ErrStalled)
		}
	}
	return nil
}

func (s *Sink) fail(n int, err error) error {
	s.metrics.AudioWriteErrors.Inc()
	s.log.Error().Err(err).Int("samples", n).Msg("write")
	return &WriteError{Samples: n, Err: err}
}

// Close lets the queued samples play out and closes the device.
func (s *Sink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	deadline := time.Now().Add(s.stall)
	for s.dev.Queued() > 0 && time.Now().Before(deadline) {
		time.Sleep(s.poll)
	}
	s.dev.Close()
	s.log.Debug().Msg("device closed")
	return nil
}
