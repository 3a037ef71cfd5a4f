// Package display shows video frames in one or more windows,
// each window keeping the aspect ratio of its part of the frame.
package display

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glvplay/glvplay/pkg/config"
	"github.com/glvplay/glvplay/pkg/decoder"
	"github.com/glvplay/glvplay/pkg/layout"
	"github.com/glvplay/glvplay/pkg/logger"
	"github.com/glvplay/glvplay/pkg/monitoring"
	"github.com/glvplay/glvplay/pkg/snapshot"
	"github.com/veandco/go-sdl2/sdl"
)

var ErrFrameSize = errors.New("frame size doesn't match the video")

// canvas is a window the renderer draws into, see Surface.
type canvas interface {
	Name() string
	ID() uint32
	Section() layout.Section
	Draw(frame []byte) error
	Sync() (bool, error)
	SetFullscreen(on bool) error
	Resize(w, h int)
	NativeSize() (int, int)
	Close() error
}

type Options struct {
	// Window is the size restored by LeaveFullscreen,
	// zero means the native size of each region.
	Window   config.Window
	SeekStep time.Duration
	Metrics  *monitoring.Metrics
	// Snapshots saves pictures on the p key, nil disables it.
	Snapshots *snapshot.Saver
	Log       *logger.Logger
}

// positioner is a decoder that knows the time of its last frame.
type positioner interface {
	Position() time.Duration
}

// Renderer draws the frames of one decoder into a set of surfaces.
// Must be used from the main thread.
type Renderer struct {
	dec      decoder.Decoder
	surfaces []canvas
	opts     Options
	quit     bool
	last     []byte // copy of the last drawn frame
	lastPos  time.Duration
	sdl      bool
	log      *logger.Logger
}

// New opens a window per region.
// Fails with *InitError when the graphics can't be set up.
func New(dec decoder.Decoder, regions []config.Region, opts Options) (*Renderer, error) {
	if err := sdl.InitSubSystem(sdl.INIT_VIDEO); err != nil {
		return nil, &InitError{Stage: "sdl", Err: err}
	}
	if err := setGLAttrs(); err != nil {
		sdl.QuitSubSystem(sdl.INIT_VIDEO)
		return nil, &InitError{Stage: "gl attributes", Err: err}
	}

	r := newRenderer(dec, nil, opts)
	r.sdl = true
	for _, region := range regions {
		s, err := NewSurface(dec.Width(), dec.Height(), region, r.log)
		if err != nil {
			_ = r.Close()
			return nil, err
		}
		r.add(s)
	}
	r.log.Info().
		Int("surfaces", len(r.surfaces)).
		Str("video", fmt.Sprintf("%vx%v", dec.Width(), dec.Height())).
		Msg("renderer is ready")
	return r, nil
}

func newRenderer(dec decoder.Decoder, surfaces []canvas, opts Options) *Renderer {
	if opts.Metrics == nil {
		opts.Metrics = monitoring.NewMetrics(nil)
	}
	if opts.Log == nil {
		opts.Log = logger.Default()
	}
	r := &Renderer{dec: dec, opts: opts, log: opts.Log.Module("display")}
	for _, s := range surfaces {
		r.add(s)
	}
	return r
}

func (r *Renderer) add(s canvas) {
	r.surfaces = append(r.surfaces, s)
	r.opts.Metrics.SurfacesActive.Inc()
}

func setGLAttrs() error {
	for _, a := range [][2]int{
		{sdl.GL_CONTEXT_PROFILE_MASK, sdl.GL_CONTEXT_PROFILE_CORE},
		{sdl.GL_CONTEXT_MAJOR_VERSION, 3},
		{sdl.GL_CONTEXT_MINOR_VERSION, 3},
		{sdl.GL_DOUBLEBUFFER, 1},
	} {
		if err := sdl.GLSetAttribute(sdl.GLattr(a[0]), a[1]); err != nil {
			return err
		}
	}
	return nil
}

func (r *Renderer) NumSurfaces() int { return len(r.surfaces) }

// WindowID returns the SDL window id of the i-th surface.
func (r *Renderer) WindowID(i int) uint32 { return r.surfaces[i].ID() }

// Draw shows a frame in every surface and follows their resizes.
// Empty frames and frames after the end of the stream are ignored.
func (r *Renderer) Draw(frame []byte) error {
	if r.dec.Done() {
		return nil
	}
	if len(frame) == 0 {
		r.opts.Metrics.FramesSkipped.Inc()
		return nil
	}
	if want := decoder.FrameSize(r.dec.Width(), r.dec.Height()); len(frame) != want {
		return fmt.Errorf("%w: %v bytes, want %v", ErrFrameSize, len(frame), want)
	}
	for _, s := range r.surfaces {
		if err := s.Draw(frame); err != nil {
			return fmt.Errorf("draw %v: %w", s.Name(), err)
		}
		resized, err := s.Sync()
		if err != nil {
			return fmt.Errorf("resize %v: %w", s.Name(), err)
		}
		if resized {
			r.opts.Metrics.SurfaceResizes.WithLabelValues(s.Name()).Inc()
		}
	}
	r.last = append(r.last[:0], frame...)
	if p, ok := r.dec.(positioner); ok {
		r.lastPos = p.Position()
	}
	r.opts.Metrics.FramesDrawn.Inc()
	return nil
}

// Run is the blocking event loop. It pulls frames from the decoder
// until the stream ends, the user quits or ctx is canceled.
func (r *Renderer) Run(ctx context.Context) error {
	r.log.Debug().Msg("event loop")
	defer r.log.Debug().Msg("event loop is over")
	for !r.quit {
		if err := ctx.Err(); err != nil {
			return err
		}
		if r.dec.Done() {
			return nil
		}
		for ev := sdl.PollEvent(); ev != nil; ev = sdl.PollEvent() {
			r.handle(ev)
		}
		if r.quit {
			break
		}
		if err := r.Draw(r.dec.VideoFrame()); err != nil {
			return err
		}
		sdl.Delay(1)
	}
	return nil
}

func (r *Renderer) handle(ev sdl.Event) {
	switch e := ev.(type) {
	case *sdl.QuitEvent:
		r.exec(actQuit)
	case *sdl.WindowEvent:
		if e.Event == sdl.WINDOWEVENT_CLOSE {
			r.exec(actQuit)
		}
	case *sdl.KeyboardEvent:
		if e.Type != sdl.KEYDOWN || e.Repeat != 0 {
			return
		}
		shift := e.Keysym.Mod&uint16(sdl.KMOD_SHIFT) != 0
		r.exec(keyAction(e.Keysym.Sym, shift))
	}
}

type action int

const (
	actNone action = iota
	actQuit
	actFullscreen
	actRestore
	actSeekForward
	actSeekBackward
	actSnapshot
)

func keyAction(key sdl.Keycode, shift bool) action {
	switch {
	case key == sdl.K_q || key == sdl.K_ESCAPE:
		return actQuit
	case key == sdl.K_f && shift:
		return actFullscreen
	case key == sdl.K_f:
		return actRestore
	case key == sdl.K_s && shift:
		return actSeekBackward
	case key == sdl.K_s:
		return actSeekForward
	case key == sdl.K_p:
		return actSnapshot
	}
	return actNone
}

func (r *Renderer) exec(a action) {
	var err error
	switch a {
	case actQuit:
		r.dec.Stop()
		r.quit = true
	case actFullscreen:
		err = r.SetFullscreen()
	case actRestore:
		err = r.LeaveFullscreen()
	case actSeekForward:
		err = r.dec.Seek(r.opts.SeekStep)
	case actSeekBackward:
		err = r.dec.Seek(-r.opts.SeekStep)
	case actSnapshot:
		err = r.Snapshot()
	}
	if err != nil {
		r.log.Warn().Err(err).Int("action", int(a)).Msg("key")
	}
}

// Snapshot saves the sections of the last drawn frame.
func (r *Renderer) Snapshot() error {
	if r.opts.Snapshots == nil || len(r.last) == 0 {
		return nil
	}
	var errs []error
	for _, s := range r.surfaces {
		_, err := r.opts.Snapshots.Take(s.Name(), r.last, r.dec.Width(), r.dec.Height(), s.Section(), r.lastPos)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Stopped tells whether the user asked to quit.
func (r *Renderer) Stopped() bool { return r.quit }

func (r *Renderer) SetFullscreen() error {
	var errs []error
	for _, s := range r.surfaces {
		errs = append(errs, s.SetFullscreen(true))
	}
	return errors.Join(errs...)
}

// LeaveFullscreen restores the windowed size of all surfaces.
func (r *Renderer) LeaveFullscreen() error {
	var errs []error
	for _, s := range r.surfaces {
		errs = append(errs, s.SetFullscreen(false))
		w, h := r.opts.Window.Width, r.opts.Window.Height
		if w <= 0 || h <= 0 {
			w, h = s.NativeSize()
		}
		s.Resize(w, h)
	}
	return errors.Join(errs...)
}

// Close releases all the surfaces.
func (r *Renderer) Close() error {
	var errs []error
	for _, s := range r.surfaces {
		errs = append(errs, s.Close())
		r.opts.Metrics.SurfacesActive.Dec()
	}
	r.surfaces = nil
	if r.sdl {
		sdl.QuitSubSystem(sdl.INIT_VIDEO)
		r.sdl = false
	}
	return errors.Join(errs...)
}
