package decoder

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/glvplay/glvplay/pkg/config"
	"github.com/glvplay/glvplay/pkg/logger"
)

// Raw plays headerless RGB24 video with optional s16le audio,
// both paced by the wall clock.
type Raw struct {
	video io.ReadSeeker
	audio io.ReadSeeker

	w, h   int
	fps    float64
	frames int64
	buf    []byte

	rate, channels int

	mu    sync.Mutex
	next  int64 // index of the next frame to read
	start time.Time
	done  atomic.Bool

	closers []io.Closer
	now     func() time.Time
	log     *logger.Logger
}

var ErrNoVideo = errors.New("video stream is empty")

// NewRaw reads frames of w×h from video at fps.
func NewRaw(video io.ReadSeeker, w, h int, fps float64, log *logger.Logger) (*Raw, error) {
	size := int64(FrameSize(w, h))
	if size <= 0 || fps <= 0 {
		return nil, fmt.Errorf("bad stream params %vx%v@%v", w, h, fps)
	}
	end, err := video.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, err
	}
	if _, err = video.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	if end < size {
		return nil, ErrNoVideo
	}
	return &Raw{
		video:  video,
		w:      w,
		h:      h,
		fps:    fps,
		frames: end / size,
		buf:    make([]byte, size),
		now:    time.Now,
		log:    log,
	}, nil
}

// WithAudio attaches an s16le stream of the given rate and channels.
func (r *Raw) WithAudio(audio io.ReadSeeker, rate, channels int) *Raw {
	r.audio, r.rate, r.channels = audio, rate, channels
	return r
}

// Open opens the files of the player config.
func Open(conf config.Player, log *logger.Logger) (*Raw, error) {
	v, err := os.Open(conf.Video.Path)
	if err != nil {
		return nil, fmt.Errorf("video: %w", err)
	}
	r, err := NewRaw(v, conf.Video.Width, conf.Video.Height, conf.Video.Fps, log)
	if err != nil {
		_ = v.Close()
		return nil, fmt.Errorf("video: %w", err)
	}
	r.closers = append(r.closers, v)

	if conf.Audio.Enabled && conf.Audio.Path != "" {
		a, err := os.Open(conf.Audio.Path)
		if err != nil {
			_ = r.Close()
			return nil, fmt.Errorf("audio: %w", err)
		}
		r.closers = append(r.closers, a)
		r.WithAudio(a, conf.Audio.Frequency, conf.Audio.Channels)
	}
	log.Info().
		Str("video", conf.Video.Path).
		Int64("frames", r.frames).
		Dur("duration", r.Duration()).
		Bool("audio", r.audio != nil).
		Msg("opened")
	return r, nil
}

func (r *Raw) Width() int  { return r.w }
func (r *Raw) Height() int { return r.h }
func (r *Raw) Done() bool  { return r.done.Load() }

// Duration is the length of the video stream.
func (r *Raw) Duration() time.Duration { return r.frameTime(r.frames) }

// Position is the time of the last read frame.
func (r *Raw) Position() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frameTime(max(0, r.next-1))
}

func (r *Raw) frameTime(i int64) time.Duration {
	return time.Duration(float64(i) / r.fps * float64(time.Second))
}

func (r *Raw) VideoFrame() []byte {
	if r.Done() {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.start.IsZero() {
		r.start = r.now()
	}
	due := int64(r.now().Sub(r.start).Seconds()*r.fps + 1e-6)
	if due < r.next {
		return nil
	}
	if due >= r.frames {
		r.done.Store(true)
		return nil
	}
	if due > r.next {
		// late, drop what we can't show
		r.log.Debug().Int64("dropped", due-r.next).Msg("late frames")
		if _, err := r.video.Seek(due*int64(len(r.buf)), io.SeekStart); err != nil {
			r.fail(err)
			return nil
		}
		r.next = due
	}
	if _, err := io.ReadFull(r.video, r.buf); err != nil {
		r.fail(err)
		return nil
	}
	r.next++
	return r.buf
}

func (r *Raw) fail(err error) {
	if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		r.log.Error().Err(err).Msg("video read")
	}
	r.done.Store(true)
}

// Seek moves both streams by offset, clamped to the stream bounds.
func (r *Raw) Seek(offset time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	pos := r.next + int64(offset.Seconds()*r.fps)
	pos = max(0, min(pos, r.frames-1))
	if _, err := r.video.Seek(pos*int64(len(r.buf)), io.SeekStart); err != nil {
		return fmt.Errorf("video seek: %w", err)
	}
	if r.audio != nil {
		if _, err := r.audio.Seek(r.audioOffset(pos), io.SeekStart); err != nil {
			return fmt.Errorf("audio seek: %w", err)
		}
	}
	r.next = pos
	r.start = r.now().Add(-r.frameTime(pos))
	r.log.Debug().Dur("offset", offset).Dur("position", r.frameTime(pos)).Msg("seek")
	return nil
}

// audioOffset is the byte offset of the audio matching frame i.
func (r *Raw) audioOffset(i int64) int64 {
	frame := int64(r.channels * 2)
	samples := int64(float64(i) / r.fps * float64(r.rate))
	return samples * frame
}

// AudioSamples reads up to n sample frames of interleaved audio.
// Returns io.EOF at the end or when there is no audio.
func (r *Raw) AudioSamples(n int) ([]int16, error) {
	if r.audio == nil || r.Done() {
		return nil, io.EOF
	}
	raw := make([]byte, n*r.channels*2)

	r.mu.Lock()
	read, err := io.ReadFull(r.audio, raw)
	r.mu.Unlock()

	read -= read % 2
	if read == 0 {
		if err == nil || errors.Is(err, io.ErrUnexpectedEOF) {
			err = io.EOF
		}
		return nil, err
	}
	out := make([]int16, read/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
	}
	return out, nil
}

func (r *Raw) Stop() {
	r.done.Store(true)
	r.log.Debug().Msg("stopped")
}

// Close stops playback and closes the opened files.
func (r *Raw) Close() error {
	r.Stop()
	var errs []error
	for _, c := range r.closers {
		errs = append(errs, c.Close())
	}
	r.closers = nil
	return errors.Join(errs...)
}
