package snapshot

import (
	"fmt"
	"image"
	"image/color"
	"time"

	"github.com/glvplay/glvplay/pkg/layout"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Crop copies the section of a w×h RGB24 frame into a new image.
func Crop(frame []byte, w, h int, s layout.Section) *image.RGBA {
	x0, x1 := int(s.Left*float32(w)+.5), int(s.Right*float32(w)+.5)
	y0, y1 := int(s.Top*float32(h)+.5), int(s.Bottom*float32(h)+.5)
	// at least one pixel, inside the frame
	x0, y0 = min(max(x0, 0), w-1), min(max(y0, 0), h-1)
	x1, y1 = min(max(x1, x0+1), w), min(max(y1, y0+1), h)

	img := image.NewRGBA(image.Rect(0, 0, x1-x0, y1-y0))
	for y := y0; y < y1; y++ {
		row := frame[(y*w+x0)*3 : (y*w+x1)*3]
		dst := img.Pix[(y-y0)*img.Stride:]
		for i := 0; i < x1-x0; i++ {
			dst[i*4], dst[i*4+1], dst[i*4+2], dst[i*4+3] = row[i*3], row[i*3+1], row[i*3+2], 0xff
		}
	}
	return img
}

// Scale resizes src by factor k, pixels stay sharp.
func Scale(src *image.RGBA, k float64) *image.RGBA {
	if k == 1 || k <= 0 {
		return src
	}
	b := src.Bounds()
	w, h := max(1, int(float64(b.Dx())*k+.5)), max(1, int(float64(b.Dy())*k+.5))
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}

// AddLabel prints white text on a black box at x, y.
func AddLabel(img *image.RGBA, x, y int, label string) {
	draw.Draw(img, image.Rect(x, y, x+len(label)*7+3, y+12), &image.Uniform{C: color.RGBA{A: 255}}, image.Point{}, draw.Src)
	(&font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.RGBA{R: 255, G: 255, B: 255, A: 255}),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.Int26_6((x + 2) * 64), Y: fixed.Int26_6((y + 10) * 64)},
	}).DrawString(label)
}

func TimeFormat(d time.Duration) string {
	mms := int(d.Milliseconds())
	ms := mms % 1000
	s := (mms / 1000) % 60
	m := (mms / (1000 * 60)) % 60
	h := mms / (1000 * 60 * 60)
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}
