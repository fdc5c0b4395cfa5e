package timecode

import (
	"time"

	"github.com/zsiec/timecode/pkg/framerate"
	"github.com/zsiec/timecode/pkg/rational"
)

// FromFrames converts a frame count at the given rate into a timecode.
//
// Frame counts are split with the rate's integer per-second modulus (24 for
// 23.976), each unit derived from the original count. Results wider than
// 8 bits wrap. An unknown rate yields a zero timecode carrying the count in
// its frame field.
func FromFrames(count uint32, rate framerate.FrameRate) Timecode {
	fps := rate.FramesPerSecond()
	if fps == 0 {
		return New(0, 0, 0, NewFrames(rate, uint8(count), false, false))
	}

	hours := count / (3600 * fps)
	minutes := count/(60*fps) - hours*60
	seconds := count/fps - minutes*60 - hours*3600
	frames := count - seconds*fps - minutes*60*fps - hours*3600*fps

	return New(uint8(hours), uint8(minutes), uint8(seconds), NewFrames(rate, uint8(frames), false, false))
}

// FromDuration converts a wall-clock duration into a millisecond timecode.
// Sub-millisecond precision is truncated and negative durations become
// zero.
func FromDuration(d time.Duration) Timecode {
	total := d.Milliseconds()
	if total < 0 {
		total = 0
	}

	wholeSeconds := total / 1000
	ms := total - wholeSeconds*1000

	hours := wholeSeconds / 3600
	rem := wholeSeconds % 3600

	return NewMilliSeconds(uint8(hours), uint8(rem/60), uint8(rem%60), uint16(ms))
}

// Rational returns the exact number of seconds represented by the
// timecode. Frame fractions use the true frame duration of their rate, so
// 23.976 frames last 1001/24000 s each.
func (tc Timecode) Rational() rational.Rational {
	whole := rational.FromInt(int64(tc.Hours)*3600 + int64(tc.Minutes)*60 + int64(tc.Seconds))

	if ms, ok := tc.Fraction.MilliSeconds(); ok {
		return whole.Add(rational.New(int64(ms), 1000))
	}

	f, _ := tc.Fraction.Frames()
	return whole.Add(f.FrameRate().FrameDuration().MulInt(int64(f.NumberOfFrames())))
}

// Duration approximates Rational as a time.Duration, rounded to the nearest
// nanosecond.
func (tc Timecode) Duration() time.Duration {
	r := tc.Rational()
	whole := r.Num / r.Den
	rem := r.Num % r.Den
	ns := (rem*int64(time.Second) + r.Den/2) / r.Den
	return time.Duration(whole)*time.Second + time.Duration(ns)
}
