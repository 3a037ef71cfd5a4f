// Package decoder provides the video source of the player.
package decoder

import "time"

// Decoder is a source of RGB24 video frames.
type Decoder interface {
	// Width and Height are the frame size, fixed for the stream.
	Width() int
	Height() int
	// VideoFrame returns a frame of Width*Height*3 bytes
	// or nil when there is no new frame yet.
	// The slice is valid until the next call.
	VideoFrame() []byte
	// Done reports the end of the stream.
	Done() bool
	// Seek moves the stream relative to the current position.
	Seek(offset time.Duration) error
	Stop()
}

// FrameSize is the number of bytes in a w×h RGB24 frame.
func FrameSize(w, h int) int { return w * h * 3 }
