package health

import (
	"context"
	"fmt"

	"github.com/pion/rtp"

	"github.com/zsiec/timecode/internal/rtpext"
	"github.com/zsiec/timecode/pkg/framerate"
	"github.com/zsiec/timecode/pkg/timecode"
)

// Reference values for the decoder self test: the last frame of a day at
// 25 fps, as a SMPTE 12M word and as a frame count.
var (
	selfTestWord   = []byte{0x24, 0x59, 0x59, 0x23}
	selfTestFrames = uint32(24*60*60*25 - 1)
	selfTestText   = "23:59:59:24"

	selfTestExtensionID = rtpext.DefaultExtensionID
)

// DecoderChecker verifies that the timecode decoder, the RTP header
// extension path and the frame count conversion agree on a known reference
// value.
type DecoderChecker struct{}

// NewDecoderChecker creates a new decoder self test.
func NewDecoderChecker() *DecoderChecker {
	return &DecoderChecker{}
}

// Name returns the name of the checker.
func (d *DecoderChecker) Name() string {
	return "decoder"
}

// Check decodes the reference word and compares it with the converted
// reference frame count.
func (d *DecoderChecker) Check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	decoded, ok := timecode.ParseSMPTE12M(selfTestWord, framerate.FPS25)
	if !ok {
		return fmt.Errorf("reference word did not decode")
	}
	if got := decoded.String(); got != selfTestText {
		return fmt.Errorf("decoded %s, want %s", got, selfTestText)
	}

	converted := timecode.FromFrames(selfTestFrames, framerate.FPS25)
	if converted != decoded {
		return fmt.Errorf("converted %s, decoded %s", converted, decoded)
	}

	want := framerate.FPS25.FrameDuration().MulInt(int64(selfTestFrames))
	if !converted.Rational().Equal(want) {
		return fmt.Errorf("duration %s, want %s", converted.Rational(), want)
	}

	carried, err := carryOverRTP(selfTestWord, selfTestExtensionID)
	if err != nil {
		return err
	}
	if carried != decoded {
		return fmt.Errorf("rtp carried %s, decoded %s", carried, decoded)
	}
	return nil
}

// carryOverRTP attaches word to a packet, marshals it and reads it back.
func carryOverRTP(word []byte, id uint8) (timecode.Timecode, error) {
	pkt := &rtp.Packet{Header: rtp.Header{Version: 2, PayloadType: 96}}
	if err := rtpext.Attach(pkt, id, word); err != nil {
		return timecode.Timecode{}, fmt.Errorf("attach reference word: %w", err)
	}
	buf, err := pkt.Marshal()
	if err != nil {
		return timecode.Timecode{}, fmt.Errorf("marshal reference packet: %w", err)
	}

	extractor, err := rtpext.NewExtractor(id, framerate.FPS25)
	if err != nil {
		return timecode.Timecode{}, err
	}
	tc, err := extractor.FromBytes(buf)
	if err != nil {
		return timecode.Timecode{}, fmt.Errorf("read reference packet: %w", err)
	}
	return tc, nil
}
