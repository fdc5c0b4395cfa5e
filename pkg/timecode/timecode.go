package timecode

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zsiec/timecode/pkg/framerate"
)

// ErrOutOfRange is returned by Validate when a field exceeds its nominal
// range.
var ErrOutOfRange = errors.New("timecode field out of range")

// Timecode is an hours:minutes:seconds value plus a sub-second Fraction.
// Fields are 8 bits wide; conversions that produce larger values wrap.
type Timecode struct {
	Hours    uint8
	Minutes  uint8
	Seconds  uint8
	Fraction Fraction
}

// New creates a frame-granular timecode.
func New(hours, minutes, seconds uint8, frames Frames) Timecode {
	return Timecode{
		Hours:    hours,
		Minutes:  minutes,
		Seconds:  seconds,
		Fraction: FramesFraction(frames),
	}
}

// NewMilliSeconds creates a millisecond-granular timecode.
func NewMilliSeconds(hours, minutes, seconds uint8, ms uint16) Timecode {
	return Timecode{
		Hours:    hours,
		Minutes:  minutes,
		Seconds:  seconds,
		Fraction: MilliSecondsFraction(ms),
	}
}

// FrameRate returns the frame rate of a frame-granular timecode.
func (tc Timecode) FrameRate() (framerate.FrameRate, bool) {
	f, ok := tc.Fraction.Frames()
	if !ok {
		return framerate.Unknown, false
	}
	return f.FrameRate(), true
}

// String formats the timecode as HH:MM:SS:FF, HH:MM:SS;FF (drop frame) or
// HH:MM:SS.mmm.
func (tc Timecode) String() string {
	return fmt.Sprintf("%02d:%02d:%02d%s", tc.Hours, tc.Minutes, tc.Seconds, tc.Fraction.String())
}

// Validate checks every field against its nominal range: hours below 24,
// minutes and seconds below 60, frames below the rounded frame rate and
// milliseconds below 1000. A frame count with an unknown rate is not
// checked.
func (tc Timecode) Validate() error {
	if tc.Hours > 23 {
		return fmt.Errorf("%w: hours %d", ErrOutOfRange, tc.Hours)
	}
	if tc.Minutes > 59 {
		return fmt.Errorf("%w: minutes %d", ErrOutOfRange, tc.Minutes)
	}
	if tc.Seconds > 59 {
		return fmt.Errorf("%w: seconds %d", ErrOutOfRange, tc.Seconds)
	}

	if ms, ok := tc.Fraction.MilliSeconds(); ok {
		if ms > 999 {
			return fmt.Errorf("%w: milliseconds %d", ErrOutOfRange, ms)
		}
		return nil
	}

	f, _ := tc.Fraction.Frames()
	if nominal := f.FrameRate().Nominal(); nominal > 0 && uint32(f.NumberOfFrames()) >= nominal {
		return fmt.Errorf("%w: frame %d at %s fps", ErrOutOfRange, f.NumberOfFrames(), f.FrameRate())
	}
	return nil
}

type timecodeJSON struct {
	Hours        uint8                `json:"hours"`
	Minutes      uint8                `json:"minutes"`
	Seconds      uint8                `json:"seconds"`
	Frames       *uint8               `json:"frames,omitempty"`
	FrameRate    *framerate.FrameRate `json:"frame_rate,omitempty"`
	DropFrame    bool                 `json:"drop_frame,omitempty"`
	ColorFrame   bool                 `json:"color_frame,omitempty"`
	MilliSeconds *uint16              `json:"milliseconds,omitempty"`
	Timecode     string               `json:"timecode,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (tc Timecode) MarshalJSON() ([]byte, error) {
	out := timecodeJSON{
		Hours:    tc.Hours,
		Minutes:  tc.Minutes,
		Seconds:  tc.Seconds,
		Timecode: tc.String(),
	}

	if ms, ok := tc.Fraction.MilliSeconds(); ok {
		out.MilliSeconds = &ms
	} else {
		f, _ := tc.Fraction.Frames()
		n := f.NumberOfFrames()
		out.Frames = &n
		out.DropFrame = f.DropFrame()
		out.ColorFrame = f.ColorFrame()
		if rate := f.FrameRate(); rate.Valid() {
			out.FrameRate = &rate
		}
	}

	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler. The "timecode" string is
// informational and ignored.
func (tc *Timecode) UnmarshalJSON(data []byte) error {
	var in timecodeJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	if in.MilliSeconds != nil && in.Frames != nil {
		return errors.New("timecode cannot carry both frames and milliseconds")
	}

	if in.MilliSeconds != nil {
		*tc = NewMilliSeconds(in.Hours, in.Minutes, in.Seconds, *in.MilliSeconds)
		return nil
	}

	var n uint8
	if in.Frames != nil {
		n = *in.Frames
	}
	rate := framerate.Unknown
	if in.FrameRate != nil {
		rate = *in.FrameRate
	}
	*tc = New(in.Hours, in.Minutes, in.Seconds, NewFrames(rate, n, in.DropFrame, in.ColorFrame))
	return nil
}
