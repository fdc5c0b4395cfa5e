package timecode

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zsiec/timecode/pkg/framerate"
)

const (
	// SMPTE12MSize is the length of a SMPTE 12M time code word.
	SMPTE12MSize = 4
	// SMPTE331MSize is the length of a SMPTE 331M time code element.
	SMPTE331MSize = 17
	// SMPTE331MMarker flags a SMPTE 331M element carrying a SMPTE 12M word.
	SMPTE331MMarker = 0x81
	// EBUSTLSize is the length of an EBU Tech 3264 time code field.
	EBUSTLSize = 4

	maskTens2 = 0b0011_0000
	maskTens3 = 0b0111_0000
	maskUnits = 0b0000_1111
	maskColor = 0b1000_0000
	maskDrop  = 0b0100_0000
)

var (
	ErrShortInput    = errors.New("timecode input too short")
	ErrBadLength     = errors.New("timecode input has wrong length")
	ErrBadMarker     = errors.New("timecode element marker not recognised")
	ErrUnknownFormat = errors.New("unknown timecode format")
)

// Format names a binary timecode encoding.
type Format string

const (
	FormatSMPTE12M  Format = "smpte12m"
	FormatSMPTE331M Format = "smpte331m"
	FormatEBUSTL    Format = "ebustl"
)

// Formats lists every supported Format.
func Formats() []Format {
	return []Format{FormatSMPTE12M, FormatSMPTE331M, FormatEBUSTL}
}

// ParseFormat resolves a format name, ignoring case and separators
// ("SMPTE-12M", "ebu_stl").
func ParseFormat(s string) (Format, error) {
	v := strings.NewReplacer("-", "", "_", "", " ", "").Replace(strings.ToLower(s))
	for _, f := range Formats() {
		if string(f) == v {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// ParseSMPTE12M decodes a SMPTE 12M time code word from the first four
// bytes of data. Bytes past the fourth are ignored. Decoded digits are not
// range checked.
func ParseSMPTE12M(data []byte, rate framerate.FrameRate) (Timecode, bool) {
	if len(data) < SMPTE12MSize {
		return Timecode{}, false
	}

	frames := bcd(data[0], maskTens2)
	seconds := bcd(data[1], maskTens3)
	minutes := bcd(data[2], maskTens3)
	hours := bcd(data[3], maskTens2)

	colorFrame := data[0]&maskColor != 0
	dropFrame := data[0]&maskDrop != 0

	return New(hours, minutes, seconds, NewFrames(rate, frames, dropFrame, colorFrame)), true
}

// ParseSMPTE331M decodes a 17 byte SMPTE 331M time code element. Only
// elements whose first byte is SMPTE331MMarker are accepted; the embedded
// SMPTE 12M word follows the marker.
func ParseSMPTE331M(data []byte, rate framerate.FrameRate) (Timecode, bool) {
	if len(data) != SMPTE331MSize {
		return Timecode{}, false
	}
	if data[0] != SMPTE331MMarker {
		return Timecode{}, false
	}
	return ParseSMPTE12M(data[1:], rate)
}

// ParseEBUSTL decodes the four byte time code field of an EBU Tech 3264
// subtitle file. Each byte is a plain binary value: hours, minutes, seconds,
// frames. No flags are carried.
func ParseEBUSTL(data []byte, rate framerate.FrameRate) (Timecode, bool) {
	if len(data) != EBUSTLSize {
		return Timecode{}, false
	}
	return New(data[0], data[1], data[2], NewFrames(rate, data[3], false, false)), true
}

// Parse dispatches to the decoder for format. Unknown formats are absent.
func Parse(format Format, data []byte, rate framerate.FrameRate) (Timecode, bool) {
	switch format {
	case FormatSMPTE12M:
		return ParseSMPTE12M(data, rate)
	case FormatSMPTE331M:
		return ParseSMPTE331M(data, rate)
	case FormatEBUSTL:
		return ParseEBUSTL(data, rate)
	default:
		return Timecode{}, false
	}
}

// ParseStrict decodes like Parse but reports why decoding failed and
// rejects timecodes that do not pass Validate.
func ParseStrict(format Format, data []byte, rate framerate.FrameRate) (Timecode, error) {
	switch format {
	case FormatSMPTE12M:
		if len(data) < SMPTE12MSize {
			return Timecode{}, fmt.Errorf("%w: %s needs %d bytes, got %d", ErrShortInput, format, SMPTE12MSize, len(data))
		}
	case FormatSMPTE331M:
		if len(data) != SMPTE331MSize {
			return Timecode{}, fmt.Errorf("%w: %s needs %d bytes, got %d", ErrBadLength, format, SMPTE331MSize, len(data))
		}
		if data[0] != SMPTE331MMarker {
			return Timecode{}, fmt.Errorf("%w: 0x%02x", ErrBadMarker, data[0])
		}
	case FormatEBUSTL:
		if len(data) != EBUSTLSize {
			return Timecode{}, fmt.Errorf("%w: %s needs %d bytes, got %d", ErrBadLength, format, EBUSTLSize, len(data))
		}
	default:
		return Timecode{}, fmt.Errorf("%w: %q", ErrUnknownFormat, string(format))
	}

	tc, _ := Parse(format, data, rate)
	if err := tc.Validate(); err != nil {
		return Timecode{}, err
	}
	return tc, nil
}

// bcd reads a tens digit under mask and a units digit from the low nibble.
func bcd(b, maskTens byte) uint8 {
	tens := (b & maskTens) >> 4
	units := b & maskUnits
	return 10*tens + units
}
