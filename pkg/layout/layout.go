// Package layout computes the on-screen quad of a video section inside
// a window while keeping the section's aspect ratio.
package layout

import (
	"errors"
	"fmt"
)

var (
	ErrDegenerateSection = errors.New("section has zero width or height")
	ErrOutOfRange        = errors.New("section bound is out of [0, 1]")
	ErrVideoSize         = errors.New("video size must be positive")
)

// SectionError reports an unusable section of a named region.
type SectionError struct {
	Name    string
	Section Section
	Err     error
}

func (e *SectionError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("section %v: %v", e.Section, e.Err)
	}
	return fmt.Sprintf("region %q %v: %v", e.Name, e.Section, e.Err)
}

func (e *SectionError) Unwrap() error { return e.Err }

// Section is a normalized [0, 1] part of the video frame.
// Top is the first row of the frame.
type Section struct {
	Left, Right float32
	Top, Bottom float32
}

// Full covers the whole frame.
var Full = Section{Left: 0, Right: 1, Top: 0, Bottom: 1}

func (s Section) Width() float32  { return s.Right - s.Left }
func (s Section) Height() float32 { return s.Bottom - s.Top }

func (s Section) String() string {
	return fmt.Sprintf("[x: %v-%v, y: %v-%v]", s.Left, s.Right, s.Top, s.Bottom)
}

// Validate checks that the section has a positive area inside [0, 1]².
func (s Section) Validate() error {
	for _, v := range []float32{s.Left, s.Right, s.Top, s.Bottom} {
		if v < 0 || v > 1 {
			return ErrOutOfRange
		}
	}
	if s.Width() <= 0 || s.Height() <= 0 {
		return ErrDegenerateSection
	}
	return nil
}

// Bounds marks section edges that don't touch the frame edge.
// A bound edge stays pinned, it is never stretched into free space.
type Bounds struct {
	Left, Right bool
	Top, Bottom bool
}

func BoundsOf(s Section) Bounds {
	return Bounds{
		Left:   s.Left != 0,
		Right:  s.Right != 1,
		Top:    s.Top != 0,
		Bottom: s.Bottom != 1,
	}
}

const (
	// VertexSize is the number of floats per vertex: x, y, r, g, b, u, v.
	VertexSize  = 7
	VertexCount = 4
)

// Vertices is a quad in the order top-left, top-right, bottom-right, bottom-left.
type Vertices [VertexCount * VertexSize]float32

// Elements are the two triangles of a quad.
var Elements = [6]uint32{0, 1, 2, 2, 3, 0}

// X returns the horizontal position of the i-th vertex.
func (v *Vertices) X(i int) float32 { return v[i*VertexSize] }

// Y returns the vertical position of the i-th vertex.
func (v *Vertices) Y(i int) float32 { return v[i*VertexSize+1] }

func (v *Vertices) setX(left, right float32) {
	v[0], v[7], v[14], v[21] = left, right, right, left
}

func (v *Vertices) setY(top, bottom float32) {
	v[1], v[8], v[15], v[22] = top, top, bottom, bottom
}

// Layout keeps the quad of one window.
type Layout struct {
	videoW, videoH int
	section        Section
	bounds         Bounds
	aspect         float64

	width, height int
	vertices      Vertices
}

// New creates the layout of a section of a w×h video.
// The quad covers the whole window until the first Update.
func New(w, h int, s Section) (*Layout, error) {
	if w <= 0 || h <= 0 {
		return nil, ErrVideoSize
	}
	if err := s.Validate(); err != nil {
		return nil, &SectionError{Section: s, Err: err}
	}
	l := Layout{
		videoW:  w,
		videoH:  h,
		section: s,
		bounds:  BoundsOf(s),
		aspect:  float64(float32(w)*s.Width()) / float64(float32(h)*s.Height()),
	}
	for i := 0; i < VertexCount; i++ {
		c := l.vertices[i*VertexSize:]
		c[2], c[3], c[4] = 1, 1, 1
	}
	// texture coordinates never change
	v := &l.vertices
	v[5], v[26] = s.Left, s.Left
	v[12], v[19] = s.Right, s.Right
	v[6], v[13] = s.Top, s.Top
	v[20], v[27] = s.Bottom, s.Bottom

	v.setX(-1, 1)
	v.setY(1, -1)
	return &l, nil
}

// AspectRatio is the width to height ratio of the displayed section.
func (l *Layout) AspectRatio() float64 { return l.aspect }

func (l *Layout) Bounds() Bounds     { return l.bounds }
func (l *Layout) Section() Section   { return l.section }
func (l *Layout) Vertices() Vertices { return l.vertices }

// Size returns the window size of the last Update.
func (l *Layout) Size() (w, h int) { return l.width, l.height }

// NativeSize is the pixel size of the section in the source video.
func (l *Layout) NativeSize() (w, h int) {
	w = int(float32(l.videoW)*l.section.Width() + 0.5)
	h = int(float32(l.videoH)*l.section.Height() + 0.5)
	return max(w, 1), max(h, 1)
}

// Changed tells whether a window of w×h needs a new quad.
func (l *Layout) Changed(w, h int) bool { return w != l.width || h != l.height }

// Update fits the quad into a w×h window.
// A window with no area keeps the previous quad, Update returns false then.
func (l *Layout) Update(w, h int) bool {
	if w <= 0 || h <= 0 {
		return false
	}

	v := &l.vertices
	if current := float64(w) / float64(h); current > l.aspect {
		// pillarbox: the height is full
		ratio := float32(2 * float64(h) * l.aspect / float64(w))
		switch {
		case l.bounds.Left && !l.bounds.Right:
			v.setX(-1, ratio-1)
		case l.bounds.Right && !l.bounds.Left:
			v.setX(1-ratio, 1)
		default:
			shift := (2 - ratio) / 2
			v.setX((1-shift)-ratio, ratio-1+shift)
		}
		v.setY(1, -1)
	} else {
		// letterbox: the width is full
		ratio := float32(2 * float64(w) / l.aspect / float64(h))
		switch {
		case l.bounds.Top && !l.bounds.Bottom:
			v.setY(1, 1-ratio)
		case l.bounds.Bottom && !l.bounds.Top:
			v.setY(ratio-1, -1)
		default:
			shift := (2 - ratio) / 2
			v.setY(ratio-1+shift, (1-shift)-ratio)
		}
		v.setX(-1, 1)
	}

	l.width, l.height = w, h
	return true
}

// Coverage is the share of the window area covered by the quad.
func (l *Layout) Coverage() float64 {
	v := &l.vertices
	return float64(v.X(1)-v.X(0)) * float64(v.Y(0)-v.Y(3)) / 4
}
