package timecode

import (
	"fmt"

	"github.com/zsiec/timecode/pkg/framerate"
)

// Frames is a frame-granular sub-second value bound to a frame rate.
//
// NumberOfFrames is expected to stay below the nominal rate, but values
// decoded from the wire are carried as-is.
type Frames struct {
	frameRate      framerate.FrameRate
	numberOfFrames uint8
	dropFrame      bool
	colorFrame     bool
}

// NewFrames creates a Frames value.
func NewFrames(rate framerate.FrameRate, numberOfFrames uint8, dropFrame, colorFrame bool) Frames {
	return Frames{
		frameRate:      rate,
		numberOfFrames: numberOfFrames,
		dropFrame:      dropFrame,
		colorFrame:     colorFrame,
	}
}

// FrameRate is the rate the frame count is expressed in.
func (f Frames) FrameRate() framerate.FrameRate { return f.frameRate }

// NumberOfFrames is the frame count within the second.
func (f Frames) NumberOfFrames() uint8 { return f.numberOfFrames }

// DropFrame reports the SMPTE drop-frame flag.
func (f Frames) DropFrame() bool { return f.dropFrame }

// ColorFrame reports the SMPTE color-frame flag.
func (f Frames) ColorFrame() bool { return f.colorFrame }

// Digits is the zero-padded width of the frame field.
func (f Frames) Digits() int {
	return 2
}

// Separator is ';' for drop-frame timecode and ':' otherwise.
func (f Frames) Separator() byte {
	if f.dropFrame {
		return ';'
	}
	return ':'
}

// String formats the separator and frame field, e.g. ";07".
func (f Frames) String() string {
	return fmt.Sprintf("%c%0*d", f.Separator(), f.Digits(), f.numberOfFrames)
}
