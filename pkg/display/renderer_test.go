package display

import (
	"bytes"
	"errors"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/glvplay/glvplay/pkg/config"
	"github.com/glvplay/glvplay/pkg/decoder"
	"github.com/glvplay/glvplay/pkg/layout"
	"github.com/glvplay/glvplay/pkg/logger"
	"github.com/glvplay/glvplay/pkg/monitoring"
	"github.com/glvplay/glvplay/pkg/snapshot"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/veandco/go-sdl2/sdl"
)

type fakeDecoder struct {
	w, h    int
	done    bool
	stopped bool
	seeks   []time.Duration
}

func (d *fakeDecoder) Width() int         { return d.w }
func (d *fakeDecoder) Height() int        { return d.h }
func (d *fakeDecoder) VideoFrame() []byte { return nil }
func (d *fakeDecoder) Done() bool         { return d.done }
func (d *fakeDecoder) Stop()              { d.stopped, d.done = true, true }
func (d *fakeDecoder) Seek(offset time.Duration) error {
	d.seeks = append(d.seeks, offset)
	return nil
}

// fakeCanvas is a window backed by a layout with a size set by the test.
type fakeCanvas struct {
	name       string
	layout     *layout.Layout
	w, h       int
	draws      int
	uploads    int
	fullscreen bool
	closed     bool
	drawErr    error
}

func newFakeCanvas(t *testing.T, vw, vh int, r config.Region) *fakeCanvas {
	t.Helper()
	l, err := layout.New(vw, vh, r.Section())
	if err != nil {
		t.Fatal(err)
	}
	w, h := l.NativeSize()
	return &fakeCanvas{name: r.Name, layout: l, w: w, h: h}
}

func (c *fakeCanvas) Name() string { return c.name }
func (c *fakeCanvas) ID() uint32   { return uint32(len(c.name)) }
func (c *fakeCanvas) Section() layout.Section {
	return c.layout.Section()
}
func (c *fakeCanvas) Draw([]byte) error {
	if c.drawErr != nil {
		return c.drawErr
	}
	c.draws++
	return nil
}
func (c *fakeCanvas) Sync() (bool, error) {
	if !c.layout.Changed(c.w, c.h) || !c.layout.Update(c.w, c.h) {
		return false, nil
	}
	c.uploads++
	return true, nil
}
func (c *fakeCanvas) SetFullscreen(on bool) error { c.fullscreen = on; return nil }
func (c *fakeCanvas) Resize(w, h int)             { c.w, c.h = w, h }
func (c *fakeCanvas) NativeSize() (int, int)      { return c.layout.NativeSize() }
func (c *fakeCanvas) Close() error                { c.closed = true; return nil }

var halves = []config.Region{
	{Name: "left", XBegin: 0, XEnd: .5, YBegin: 0, YEnd: 1},
	{Name: "right", XBegin: .5, XEnd: 1, YBegin: 0, YEnd: 1},
}

func newTestRenderer(t *testing.T, opts Options) (*Renderer, *fakeDecoder, []*fakeCanvas) {
	t.Helper()
	dec := &fakeDecoder{w: 64, h: 32}
	var canvases []*fakeCanvas
	var cs []canvas
	for _, r := range halves {
		c := newFakeCanvas(t, dec.w, dec.h, r)
		canvases = append(canvases, c)
		cs = append(cs, c)
	}
	if opts.Log == nil {
		opts.Log = logger.Nop()
	}
	return newRenderer(dec, cs, opts), dec, canvases
}

func TestDrawEmptyFrame(t *testing.T) {
	m := monitoring.NewMetrics(nil)
	r, _, cs := newTestRenderer(t, Options{Metrics: m})

	for _, frame := range [][]byte{nil, {}} {
		if err := r.Draw(frame); err != nil {
			t.Fatal(err)
		}
	}
	for _, c := range cs {
		if c.draws != 0 || c.uploads != 0 {
			t.Errorf("%v touched: %v draws, %v uploads", c.name, c.draws, c.uploads)
		}
		if w, h := c.layout.Size(); w != 0 || h != 0 {
			t.Errorf("%v layout changed to %vx%v", c.name, w, h)
		}
	}
	if v := testutil.ToFloat64(m.FramesDrawn); v != 0 {
		t.Errorf("drawn %v", v)
	}
	if v := testutil.ToFloat64(m.FramesSkipped); v != 2 {
		t.Errorf("skipped %v", v)
	}
}

func TestDrawAfterDone(t *testing.T) {
	r, dec, cs := newTestRenderer(t, Options{})
	dec.done = true
	if err := r.Draw(make([]byte, decoder.FrameSize(dec.w, dec.h))); err != nil {
		t.Fatal(err)
	}
	if cs[0].draws != 0 {
		t.Error("drawn after the end")
	}
}

func TestDrawWrongSize(t *testing.T) {
	r, _, cs := newTestRenderer(t, Options{})
	if err := r.Draw(make([]byte, 10)); !errors.Is(err, ErrFrameSize) {
		t.Errorf("got %v", err)
	}
	if cs[0].draws != 0 {
		t.Error("bad frame drawn")
	}
}

func TestDrawFollowsResize(t *testing.T) {
	m := monitoring.NewMetrics(nil)
	r, dec, cs := newTestRenderer(t, Options{Metrics: m})
	frame := make([]byte, decoder.FrameSize(dec.w, dec.h))

	if err := r.Draw(frame); err != nil {
		t.Fatal(err)
	}
	for _, c := range cs {
		if c.draws != 1 || c.uploads != 1 {
			t.Errorf("%v: %v draws, %v uploads", c.name, c.draws, c.uploads)
		}
	}

	// same size, no new quad
	if err := r.Draw(frame); err != nil {
		t.Fatal(err)
	}
	if cs[0].uploads != 1 {
		t.Errorf("quad uploaded again")
	}

	// the left half is pinned to the right edge
	cs[0].Resize(400, 100)
	if err := r.Draw(frame); err != nil {
		t.Fatal(err)
	}
	if cs[0].uploads != 2 || cs[1].uploads != 1 {
		t.Errorf("uploads %v %v", cs[0].uploads, cs[1].uploads)
	}
	if v := cs[0].layout.Vertices(); v.X(1) != 1 || v.X(0) <= -1 {
		t.Errorf("quad [%v, %v] is not pinned right", v.X(0), v.X(1))
	}

	if v := testutil.ToFloat64(m.FramesDrawn); v != 3 {
		t.Errorf("drawn %v", v)
	}
	if v := testutil.ToFloat64(m.SurfaceResizes.WithLabelValues("left")); v != 2 {
		t.Errorf("left resizes %v", v)
	}
}

func TestDrawError(t *testing.T) {
	r, dec, cs := newTestRenderer(t, Options{})
	cs[0].drawErr = errors.New("lost context")
	if err := r.Draw(make([]byte, decoder.FrameSize(dec.w, dec.h))); !errors.Is(err, cs[0].drawErr) {
		t.Errorf("got %v", err)
	}
}

func TestKeyAction(t *testing.T) {
	tests := []struct {
		key   sdl.Keycode
		shift bool
		want  action
	}{
		{key: sdl.K_q, want: actQuit},
		{key: sdl.K_ESCAPE, want: actQuit},
		{key: sdl.K_f, shift: true, want: actFullscreen},
		{key: sdl.K_f, want: actRestore},
		{key: sdl.K_s, want: actSeekForward},
		{key: sdl.K_s, shift: true, want: actSeekBackward},
		{key: sdl.K_p, want: actSnapshot},
		{key: sdl.K_a, want: actNone},
	}
	for _, test := range tests {
		if got := keyAction(test.key, test.shift); got != test.want {
			t.Errorf("key %v shift %v: got %v, want %v", test.key, test.shift, got, test.want)
		}
	}
}

func TestExec(t *testing.T) {
	r, dec, cs := newTestRenderer(t, Options{
		SeekStep: 20 * time.Second,
		Window:   config.Window{Width: 480, Height: 270},
	})

	r.exec(actSeekForward)
	r.exec(actSeekBackward)
	if len(dec.seeks) != 2 || dec.seeks[0] != 20*time.Second || dec.seeks[1] != -20*time.Second {
		t.Errorf("seeks %v", dec.seeks)
	}

	r.exec(actFullscreen)
	for _, c := range cs {
		if !c.fullscreen {
			t.Errorf("%v is windowed", c.name)
		}
	}
	r.exec(actRestore)
	for _, c := range cs {
		if c.fullscreen || c.w != 480 || c.h != 270 {
			t.Errorf("%v: fullscreen %v, %vx%v", c.name, c.fullscreen, c.w, c.h)
		}
	}

	r.exec(actQuit)
	if !dec.stopped || !r.Stopped() {
		t.Error("not stopped")
	}
}

func TestLeaveFullscreenNativeSize(t *testing.T) {
	r, _, cs := newTestRenderer(t, Options{})
	cs[1].Resize(1, 1)
	if err := r.LeaveFullscreen(); err != nil {
		t.Fatal(err)
	}
	if cs[1].w != 32 || cs[1].h != 32 {
		t.Errorf("size %vx%v", cs[1].w, cs[1].h)
	}
}

func TestAccessorsAndClose(t *testing.T) {
	m := monitoring.NewMetrics(nil)
	r, _, cs := newTestRenderer(t, Options{Metrics: m})
	if r.NumSurfaces() != 2 {
		t.Errorf("surfaces %v", r.NumSurfaces())
	}
	if r.WindowID(1) != cs[1].ID() {
		t.Errorf("window id %v", r.WindowID(1))
	}
	if v := testutil.ToFloat64(m.SurfacesActive); v != 2 {
		t.Errorf("active %v", v)
	}
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	for _, c := range cs {
		if !c.closed {
			t.Errorf("%v is open", c.name)
		}
	}
	if r.NumSurfaces() != 0 || testutil.ToFloat64(m.SurfacesActive) != 0 {
		t.Error("surfaces left")
	}
}

func TestInitError(t *testing.T) {
	cause := errors.New("no display")
	err := error(&InitError{Surface: "left", Stage: "window", Err: cause})
	if !errors.Is(err, cause) {
		t.Errorf("cause lost: %v", err)
	}
	var ie *InitError
	if !errors.As(err, &ie) || ie.Stage != "window" {
		t.Errorf("got %v", err)
	}
}

func TestNewSurfaceRejectsDegenerateRegion(t *testing.T) {
	_, err := NewSurface(64, 32, config.Region{Name: "thin", XBegin: .5, XEnd: .5, YBegin: 0, YEnd: 1}, logger.Nop())
	var se *layout.SectionError
	if !errors.As(err, &se) || se.Name != "thin" || !errors.Is(err, layout.ErrDegenerateSection) {
		t.Errorf("got %v", err)
	}
}

func TestSnapshot(t *testing.T) {
	dir := t.TempDir()
	saver, err := snapshot.New(config.Snapshot{Dir: dir, Scale: 1}, logger.Nop())
	if err != nil {
		t.Fatal(err)
	}
	r, dec, _ := newTestRenderer(t, Options{Snapshots: saver})

	// nothing drawn yet
	if err := r.Snapshot(); err != nil {
		t.Fatal(err)
	}
	if err := r.Draw(make([]byte, decoder.FrameSize(dec.w, dec.h))); err != nil {
		t.Fatal(err)
	}
	r.exec(actSnapshot)

	files, err := filepath.Glob(filepath.Join(dir, "*.png"))
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Fatalf("files %v", files)
	}
	for _, f := range files {
		if fi, err := os.Stat(f); err != nil || fi.Size() == 0 {
			t.Errorf("%v: %v", f, err)
		}
	}
}

type positionDecoder struct {
	fakeDecoder
	pos time.Duration
}

func (d *positionDecoder) Position() time.Duration { return d.pos }

func (d *positionDecoder) Seek(offset time.Duration) error {
	d.pos += offset
	return d.fakeDecoder.Seek(offset)
}

func TestSnapshotKeepsDrawnFrame(t *testing.T) {
	dir := t.TempDir()
	saver, err := snapshot.New(config.Snapshot{Dir: dir, Scale: 1}, logger.Nop())
	if err != nil {
		t.Fatal(err)
	}
	dec := &positionDecoder{fakeDecoder: fakeDecoder{w: 4, h: 2}, pos: 3 * time.Second}
	c := newFakeCanvas(t, dec.w, dec.h, config.DefaultRegion)
	r := newRenderer(dec, []canvas{c}, Options{Snapshots: saver, SeekStep: time.Second, Log: logger.Nop()})

	// the decoder reuses its buffer
	frame := bytes.Repeat([]byte{200}, decoder.FrameSize(dec.w, dec.h))
	if err := r.Draw(frame); err != nil {
		t.Fatal(err)
	}
	clear(frame)
	r.exec(actSeekForward)

	if r.lastPos != 3*time.Second {
		t.Errorf("position %v, want the time of the drawn frame", r.lastPos)
	}
	if err := r.Snapshot(); err != nil {
		t.Fatal(err)
	}
	files, err := filepath.Glob(filepath.Join(dir, "*.png"))
	if err != nil || len(files) != 1 {
		t.Fatalf("files %v %v", files, err)
	}
	f, err := os.Open(files[0])
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = f.Close() }()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	if r, g, b, _ := img.At(1, 1).RGBA(); r>>8 != 200 || g>>8 != 200 || b>>8 != 200 {
		t.Errorf("pixel %v %v %v, want the drawn frame", r>>8, g>>8, b>>8)
	}
}
