package display

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/glvplay/glvplay/pkg/config"
	"github.com/glvplay/glvplay/pkg/layout"
	"github.com/glvplay/glvplay/pkg/logger"
	"github.com/go-gl/gl/v3.3-core/gl"
	"github.com/veandco/go-sdl2/sdl"
)

const vertexShader = `#version 150 core
in vec2 position;
in vec3 color;
in vec2 texcoord;
out vec3 Color;
out vec2 Texcoord;
void main()
{
    Color = color;
    Texcoord = texcoord;
    gl_Position = vec4(position, 0.0, 1.0);
}
` + "\x00"

const fragmentShader = `#version 150 core
in vec3 Color;
in vec2 Texcoord;
out vec4 outColor;
uniform sampler2D tex;
void main()
{
    outColor = texture(tex, Texcoord);
}
` + "\x00"

// InitError is a failed graphics setup.
type InitError struct {
	Surface string
	Stage   string
	Err     error
}

func (e *InitError) Error() string {
	if e.Surface == "" {
		return fmt.Sprintf("display init [%v]: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("display init %q [%v]: %v", e.Surface, e.Stage, e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }

var (
	glOnce sync.Once
	glErr  error
)

// glObjects are the GL names owned by a surface, zero means not created.
type glObjects struct {
	vao, vbo, ebo uint32
	vs, fs, prog  uint32
	tex           uint32
}

// Surface is a window showing a section of the video.
// All methods must be called from the main thread.
type Surface struct {
	name   string
	layout *layout.Layout
	videoW int32
	videoH int32

	win *sdl.Window
	ctx sdl.GLContext
	id  uint32
	gl  glObjects

	log *logger.Logger
}

// NewSurface opens a window for the region of a w×h video.
// The window starts at the native size of the region.
// Everything created before a failure is released.
func NewSurface(w, h int, region config.Region, log *logger.Logger) (_ *Surface, err error) {
	l, err := layout.New(w, h, region.Section())
	if err != nil {
		var se *layout.SectionError
		if errors.As(err, &se) {
			se.Name = region.Name
		}
		return nil, err
	}

	s := &Surface{
		name:   region.Name,
		layout: l,
		videoW: int32(w),
		videoH: int32(h),
		log:    log.Extend(log.With().Str("surface", region.Name)),
	}
	defer func() {
		if err != nil {
			_ = s.Close()
		}
	}()

	fail := func(stage string, err error) error { return &InitError{Surface: s.name, Stage: stage, Err: err} }

	ww, wh := l.NativeSize()
	if s.win, err = sdl.CreateWindow(region.Name,
		sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED,
		int32(ww), int32(wh),
		sdl.WINDOW_OPENGL|sdl.WINDOW_RESIZABLE|sdl.WINDOW_SHOWN,
	); err != nil {
		return nil, fail("window", err)
	}
	if s.id, err = s.win.GetID(); err != nil {
		return nil, fail("window", err)
	}
	if s.ctx, err = s.win.GLCreateContext(); err != nil {
		return nil, fail("context", err)
	}
	if err = s.bind(); err != nil {
		return nil, fail("context", err)
	}
	if glOnce.Do(func() { glErr = gl.Init() }); glErr != nil {
		return nil, fail("gl", glErr)
	}
	if err = s.initProgram(); err != nil {
		return nil, fail("shader", err)
	}
	s.initBuffers()
	s.initTexture()

	gl.ClearColor(0, 0, 0, 0)
	if _, err = s.Sync(); err != nil {
		return nil, fail("layout", err)
	}
	s.log.Debug().
		Uint32("window", s.id).
		Str("section", region.Section().String()).
		Float64("aspect", l.AspectRatio()).
		Msgf("surface %vx%v", ww, wh)
	return s, nil
}

func (s *Surface) bind() error { return s.win.GLMakeCurrent(s.ctx) }

func (s *Surface) initProgram() (err error) {
	if s.gl.vs, err = compileShader(vertexShader, gl.VERTEX_SHADER); err != nil {
		return fmt.Errorf("vertex: %w", err)
	}
	if s.gl.fs, err = compileShader(fragmentShader, gl.FRAGMENT_SHADER); err != nil {
		return fmt.Errorf("fragment: %w", err)
	}
	s.gl.prog = gl.CreateProgram()
	gl.AttachShader(s.gl.prog, s.gl.vs)
	gl.AttachShader(s.gl.prog, s.gl.fs)
	gl.BindFragDataLocation(s.gl.prog, 0, gl.Str("outColor\x00"))
	gl.LinkProgram(s.gl.prog)

	var status int32
	if gl.GetProgramiv(s.gl.prog, gl.LINK_STATUS, &status); status == gl.FALSE {
		var n int32
		gl.GetProgramiv(s.gl.prog, gl.INFO_LOG_LENGTH, &n)
		msg := strings.Repeat("\x00", int(n+1))
		gl.GetProgramInfoLog(s.gl.prog, n, nil, gl.Str(msg))
		return fmt.Errorf("link: %v", strings.TrimRight(msg, "\x00"))
	}
	gl.UseProgram(s.gl.prog)
	return nil
}

func compileShader(source string, kind uint32) (uint32, error) {
	shader := gl.CreateShader(kind)
	src, free := gl.Strs(source)
	gl.ShaderSource(shader, 1, src, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	if gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status); status == gl.FALSE {
		var n int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &n)
		msg := strings.Repeat("\x00", int(n+1))
		gl.GetShaderInfoLog(shader, n, nil, gl.Str(msg))
		gl.DeleteShader(shader)
		return 0, fmt.Errorf("compile: %v", strings.TrimRight(msg, "\x00"))
	}
	return shader, nil
}

const floatSize = 4

func (s *Surface) initBuffers() {
	gl.GenVertexArrays(1, &s.gl.vao)
	gl.BindVertexArray(s.gl.vao)

	v := s.layout.Vertices()
	gl.GenBuffers(1, &s.gl.vbo)
	gl.BindBuffer(gl.ARRAY_BUFFER, s.gl.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, len(v)*floatSize, gl.Ptr(&v[0]), gl.STATIC_DRAW)

	e := layout.Elements
	gl.GenBuffers(1, &s.gl.ebo)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, s.gl.ebo)
	gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(e)*4, gl.Ptr(&e[0]), gl.STATIC_DRAW)

	stride := int32(layout.VertexSize * floatSize)
	for _, a := range []struct {
		name   string
		size   int32
		offset int
	}{
		{"position\x00", 2, 0},
		{"color\x00", 3, 2},
		{"texcoord\x00", 2, 5},
	} {
		loc := uint32(gl.GetAttribLocation(s.gl.prog, gl.Str(a.name)))
		gl.EnableVertexAttribArray(loc)
		gl.VertexAttribPointer(loc, a.size, gl.FLOAT, false, stride, gl.PtrOffset(a.offset*floatSize))
	}
}

func (s *Surface) initTexture() {
	gl.GenTextures(1, &s.gl.tex)
	gl.BindTexture(gl.TEXTURE_2D, s.gl.tex)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGB, s.videoW, s.videoH, 0, gl.RGB, gl.UNSIGNED_BYTE, nil)

	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.REPEAT)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.REPEAT)
	// no interpolation, keep the pixels sharp
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.NEAREST)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.NEAREST)
}

func (s *Surface) Name() string { return s.name }
func (s *Surface) ID() uint32   { return s.id }

func (s *Surface) Section() layout.Section { return s.layout.Section() }

// Layout is the quad state of the surface.
func (s *Surface) Layout() *layout.Layout { return s.layout }

// Draw uploads a full RGB24 frame into the texture and shows it.
func (s *Surface) Draw(frame []byte) error {
	if err := s.bind(); err != nil {
		return err
	}
	gl.Clear(gl.COLOR_BUFFER_BIT)
	gl.UseProgram(s.gl.prog)
	gl.BindVertexArray(s.gl.vao)
	gl.BindTexture(gl.TEXTURE_2D, s.gl.tex)
	// rows are tightly packed
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	gl.TexSubImage2D(gl.TEXTURE_2D, 0, 0, 0, s.videoW, s.videoH, gl.RGB, gl.UNSIGNED_BYTE, gl.Ptr(&frame[0]))
	gl.DrawElements(gl.TRIANGLES, int32(len(layout.Elements)), gl.UNSIGNED_INT, nil)
	s.win.GLSwap()
	return nil
}

// Sync recomputes the quad when the window size has changed.
func (s *Surface) Sync() (bool, error) {
	w, h := s.win.GLGetDrawableSize()
	if !s.layout.Changed(int(w), int(h)) {
		return false, nil
	}
	if !s.layout.Update(int(w), int(h)) {
		// minimized
		return false, nil
	}
	if err := s.bind(); err != nil {
		return false, err
	}
	v := s.layout.Vertices()
	gl.BindBuffer(gl.ARRAY_BUFFER, s.gl.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, len(v)*floatSize, gl.Ptr(&v[0]), gl.STATIC_DRAW)

	gl.Viewport(0, 0, w, h)
	gl.ColorMask(true, true, true, true)
	gl.DepthMask(true)
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)

	s.log.Debug().Int32("w", w).Int32("h", h).
		Float32("left", v.X(0)).Float32("right", v.X(1)).
		Float32("top", v.Y(0)).Float32("bottom", v.Y(3)).
		Msg("resize")
	return true, nil
}

func (s *Surface) SetFullscreen(on bool) error {
	var flags uint32
	if on {
		flags = sdl.WINDOW_FULLSCREEN_DESKTOP
	}
	return s.win.SetFullscreen(flags)
}

func (s *Surface) Resize(w, h int) { s.win.SetSize(int32(w), int32(h)) }

// NativeSize is the window size showing the section pixel to pixel.
func (s *Surface) NativeSize() (int, int) { return s.layout.NativeSize() }

// Close releases the GL objects and the window.
// It is safe to call on a partially created surface and more than once.
func (s *Surface) Close() error {
	if s.win == nil {
		return nil
	}
	if s.ctx != nil && s.bind() == nil {
		o := &s.gl
		if o.tex != 0 {
			gl.DeleteTextures(1, &o.tex)
		}
		if o.prog != 0 {
			gl.DeleteProgram(o.prog)
		}
		for _, sh := range []uint32{o.fs, o.vs} {
			if sh != 0 {
				gl.DeleteShader(sh)
			}
		}
		if o.ebo != 0 {
			gl.DeleteBuffers(1, &o.ebo)
		}
		if o.vbo != 0 {
			gl.DeleteBuffers(1, &o.vbo)
		}
		if o.vao != 0 {
			gl.DeleteVertexArrays(1, &o.vao)
		}
		*o = glObjects{}
		sdl.GLDeleteContext(s.ctx)
		s.ctx = nil
	}
	err := s.win.Destroy()
	s.win = nil
	s.log.Debug().Msg("surface closed")
	return err
}
