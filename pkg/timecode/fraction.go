package timecode

import "fmt"

type fractionKind uint8

const (
	kindFrames fractionKind = iota
	kindMilliSeconds
)

// Fraction is the sub-second part of a Timecode: either a frame count or a
// millisecond count. Exactly one of the two is set. The zero value holds
// zero frames at an unknown rate.
type Fraction struct {
	kind   fractionKind
	frames Frames
	millis uint16
}

// FramesFraction wraps a frame-granular sub-second value.
func FramesFraction(f Frames) Fraction {
	return Fraction{kind: kindFrames, frames: f}
}

// MilliSecondsFraction wraps a millisecond sub-second value.
func MilliSecondsFraction(ms uint16) Fraction {
	return Fraction{kind: kindMilliSeconds, millis: ms}
}

// Frames returns the frame payload and true when the fraction is
// frame-granular.
func (f Fraction) Frames() (Frames, bool) {
	if f.kind != kindFrames {
		return Frames{}, false
	}
	return f.frames, true
}

// MilliSeconds returns the millisecond payload and true when the fraction is
// millisecond-granular.
func (f Fraction) MilliSeconds() (uint16, bool) {
	if f.kind != kindMilliSeconds {
		return 0, false
	}
	return f.millis, true
}

// IsFrames reports whether the fraction is frame-granular.
func (f Fraction) IsFrames() bool {
	return f.kind == kindFrames
}

// Digits is the zero-padded width of the fractional field.
func (f Fraction) Digits() int {
	if f.kind == kindMilliSeconds {
		return 3
	}
	return f.frames.Digits()
}

// Separator precedes the fractional field.
func (f Fraction) Separator() byte {
	if f.kind == kindMilliSeconds {
		return '.'
	}
	return f.frames.Separator()
}

func (f Fraction) String() string {
	if f.kind == kindMilliSeconds {
		return fmt.Sprintf(".%0*d", f.Digits(), f.millis)
	}
	return f.frames.String()
}
