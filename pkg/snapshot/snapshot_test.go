package snapshot

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/glvplay/glvplay/pkg/config"
	"github.com/glvplay/glvplay/pkg/layout"
	"github.com/glvplay/glvplay/pkg/logger"
)

// gradient is a w×h frame where R is x and G is y.
func gradient(w, h int) []byte {
	frame := make([]byte, w*h*3)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			frame[(y*w+x)*3], frame[(y*w+x)*3+1] = byte(x), byte(y)
		}
	}
	return frame
}

func TestCrop(t *testing.T) {
	tests := []struct {
		name string
		sec  layout.Section
		rect image.Rectangle
		at   image.Point // source pixel of the image origin
	}{
		{name: "full", sec: layout.Full, rect: image.Rect(0, 0, 8, 4)},
		{name: "right", sec: layout.Section{Left: .5, Right: 1, Top: 0, Bottom: 1}, rect: image.Rect(0, 0, 4, 4), at: image.Pt(4, 0)},
		{name: "bottom left", sec: layout.Section{Left: 0, Right: .25, Top: .5, Bottom: 1}, rect: image.Rect(0, 0, 2, 2), at: image.Pt(0, 2)},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			img := Crop(gradient(8, 4), 8, 4, test.sec)
			if img.Bounds() != test.rect {
				t.Fatalf("bounds %v, want %v", img.Bounds(), test.rect)
			}
			c := img.RGBAAt(1, 1)
			if int(c.R) != test.at.X+1 || int(c.G) != test.at.Y+1 || c.A != 0xff {
				t.Errorf("pixel %+v", c)
			}
		})
	}
}

func TestCropFrameEdge(t *testing.T) {
	tests := []struct {
		name string
		sec  layout.Section
		rect image.Rectangle
		at   image.Point
	}{
		{name: "bottom row", sec: layout.Section{Left: 0, Right: 1, Top: .99, Bottom: 1}, rect: image.Rect(0, 0, 64, 1), at: image.Pt(0, 31)},
		{name: "right column", sec: layout.Section{Left: .995, Right: 1, Top: 0, Bottom: 1}, rect: image.Rect(0, 0, 1, 32), at: image.Pt(63, 0)},
		{name: "corner", sec: layout.Section{Left: .999, Right: 1, Top: .999, Bottom: 1}, rect: image.Rect(0, 0, 1, 1), at: image.Pt(63, 31)},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if err := test.sec.Validate(); err != nil {
				t.Fatal(err)
			}
			img := Crop(gradient(64, 32), 64, 32, test.sec)
			if img.Bounds() != test.rect {
				t.Fatalf("bounds %v, want %v", img.Bounds(), test.rect)
			}
			if c := img.RGBAAt(0, 0); int(c.R) != test.at.X || int(c.G) != test.at.Y {
				t.Errorf("pixel %+v, want %v", c, test.at)
			}
		})
	}
}

func TestScale(t *testing.T) {
	src := Crop(gradient(8, 4), 8, 4, layout.Full)
	if Scale(src, 1) != src || Scale(src, 0) != src {
		t.Error("copied without scaling")
	}
	if b := Scale(src, 2).Bounds(); b.Dx() != 16 || b.Dy() != 8 {
		t.Errorf("bounds %v", b)
	}
	if b := Scale(src, .1).Bounds(); b.Dx() != 1 || b.Dy() != 1 {
		t.Errorf("bounds %v", b)
	}
}

func TestTimeFormat(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "00:00:00.000"},
		{1500 * time.Millisecond, "00:00:01.500"},
		{time.Hour + 2*time.Minute + 3*time.Second, "01:02:03.000"},
		{26 * time.Hour, "26:00:00.000"},
	}
	for _, test := range tests {
		if got := TimeFormat(test.d); got != test.want {
			t.Errorf("%v: got %v, want %v", test.d, got, test.want)
		}
	}
}

func TestTake(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "shots")
	s, err := New(config.Snapshot{Dir: dir, Scale: 2, Label: true}, logger.Nop())
	if err != nil {
		t.Fatal(err)
	}

	var paths []string
	for i := 0; i < 2; i++ {
		path, err := s.Take("left", gradient(8, 4), 8, 4, layout.Section{Left: 0, Right: .5, Top: 0, Bottom: 1}, time.Second)
		if err != nil {
			t.Fatal(err)
		}
		paths = append(paths, path)
	}
	if paths[0] == paths[1] {
		t.Errorf("same file %v", paths[0])
	}

	f, err := os.Open(paths[0])
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = f.Close() }()
	if !strings.HasPrefix(filepath.Base(paths[0]), "left-") {
		t.Errorf("name %v", paths[0])
	}
	img, err := png.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 8 || b.Dy() != 8 {
		t.Errorf("bounds %v", b)
	}
}

func TestNewNoDir(t *testing.T) {
	if _, err := New(config.Snapshot{}, logger.Nop()); err == nil {
		t.Error("empty dir accepted")
	}
}
