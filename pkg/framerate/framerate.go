// Package framerate defines the closed set of nominal video frame rates and
// their exact frames-per-second ratios.
package framerate

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/zsiec/timecode/pkg/rational"
)

// FrameRate is a nominal frame rate. The zero value is Unknown.
type FrameRate uint8

const (
	Unknown FrameRate = iota
	FPS23976
	FPS24
	FPS25
	FPS2997
	FPS30
	FPS47952
	FPS48
	FPS50
	FPS5994
	FPS60
)

type entry struct {
	name   string
	ratio  rational.Rational
	parent FrameRate
}

// table is the source of truth. Floats are always derived from ratio.
var table = [...]entry{
	Unknown:  {name: "unknown", ratio: rational.Zero},
	FPS23976: {name: "23.976", ratio: rational.New(24000, 1001), parent: FPS24},
	FPS24:    {name: "24", ratio: rational.FromInt(24)},
	FPS25:    {name: "25", ratio: rational.FromInt(25)},
	FPS2997:  {name: "29.97", ratio: rational.New(30000, 1001), parent: FPS30},
	FPS30:    {name: "30", ratio: rational.FromInt(30)},
	FPS47952: {name: "47.952", ratio: rational.New(48000, 1001), parent: FPS48},
	FPS48:    {name: "48", ratio: rational.FromInt(48)},
	FPS50:    {name: "50", ratio: rational.FromInt(50)},
	FPS5994:  {name: "59.94", ratio: rational.New(60000, 1001), parent: FPS60},
	FPS60:    {name: "60", ratio: rational.FromInt(60)},
}

// All returns every known frame rate in ascending order.
func All() []FrameRate {
	rates := make([]FrameRate, 0, len(table)-1)
	for r := FPS23976; int(r) < len(table); r++ {
		rates = append(rates, r)
	}
	return rates
}

// Valid reports whether r is a known frame rate.
func (r FrameRate) Valid() bool {
	return r != Unknown && int(r) < len(table)
}

// Rational returns the exact frames-per-second ratio.
func (r FrameRate) Rational() rational.Rational {
	if !r.Valid() {
		return rational.Zero
	}
	return table[r].ratio
}

// Float32 approximates the frames-per-second value. It must not be used for
// duration math.
func (r FrameRate) Float32() float32 {
	return r.Rational().Float32()
}

// FrameDuration returns the exact duration of one frame in seconds.
func (r FrameRate) FrameDuration() rational.Rational {
	return r.Rational().Invert()
}

// Drop reports whether r is an NTSC-derived (x/1001) rate.
func (r FrameRate) Drop() bool {
	return r.Valid() && table[r].parent != Unknown
}

// Computational returns the integer rate used to split frame counts into
// hours, minutes and seconds. NTSC-derived rates use their parent integer
// rate, so 23.976 counts 24 frames per timecode second.
func (r FrameRate) Computational() FrameRate {
	if r.Drop() {
		return table[r].parent
	}
	return r
}

// FramesPerSecond is floor(Computational().Float32()), the per-second
// frame modulus for timecode decomposition.
func (r FrameRate) FramesPerSecond() uint32 {
	return uint32(r.Computational().Float32())
}

// Nominal returns the rounded frames-per-second value.
func (r FrameRate) Nominal() uint32 {
	ratio := r.Rational()
	if ratio.IsZero() {
		return 0
	}
	return uint32(ratio.Add(rational.New(1, 2)).Floor())
}

func (r FrameRate) String() string {
	if int(r) >= len(table) {
		return table[Unknown].name
	}
	return table[r].name
}

// Parse accepts a table name ("29.97"), a ratio ("30000/1001") or a common
// alias ("23.98", "29.97df", "pal", "ntsc").
func Parse(s string) (FrameRate, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.TrimSuffix(strings.TrimSuffix(v, "fps"), "df")
	v = strings.TrimSpace(v)

	switch v {
	case "pal":
		return FPS25, nil
	case "ntsc":
		return FPS2997, nil
	case "film":
		return FPS24, nil
	case "23.98":
		return FPS23976, nil
	case "47.95":
		return FPS47952, nil
	}

	for _, r := range All() {
		if table[r].name == v {
			return r, nil
		}
	}

	if num, den, ok := strings.Cut(v, "/"); ok {
		n, err := strconv.ParseInt(num, 10, 64)
		if err != nil {
			return Unknown, fmt.Errorf("invalid frame rate numerator %q: %w", num, err)
		}
		d, err := strconv.ParseInt(den, 10, 64)
		if err != nil || d == 0 {
			return Unknown, fmt.Errorf("invalid frame rate denominator %q", den)
		}
		if r, ok := FromRational(rational.New(n, d)); ok {
			return r, nil
		}
	}

	return Unknown, fmt.Errorf("unknown frame rate: %q", s)
}

// FromRational looks up the frame rate with exactly the given ratio.
func FromRational(q rational.Rational) (FrameRate, bool) {
	for _, r := range All() {
		if table[r].ratio.Equal(q) {
			return r, true
		}
	}
	return Unknown, false
}

// MarshalText implements encoding.TextMarshaler.
func (r FrameRate) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("cannot marshal unknown frame rate %d", uint8(r))
	}
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *FrameRate) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
