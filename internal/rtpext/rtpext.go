// Package rtpext reads SMPTE 12M time codes carried in RTP header
// extensions as described by RFC 5484.
package rtpext

import (
	"errors"
	"fmt"

	"github.com/pion/rtp"

	"github.com/zsiec/timecode/pkg/framerate"
	"github.com/zsiec/timecode/pkg/timecode"
)

// DefaultExtensionID is used when no extmap negotiation result is known.
const DefaultExtensionID uint8 = 1

var (
	ErrInvalidExtensionID = errors.New("invalid header extension id")
	ErrNoExtension        = errors.New("packet carries no time code extension")
	ErrMalformedPacket    = errors.New("malformed RTP packet")
)

// Extractor pulls time codes out of RTP packets.
type Extractor struct {
	id   uint8
	rate framerate.FrameRate
}

// NewExtractor creates an extractor for the given extension id. Ids must
// fit the one-byte or two-byte header forms (1-255).
func NewExtractor(id uint8, rate framerate.FrameRate) (*Extractor, error) {
	if id == 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidExtensionID, id)
	}
	return &Extractor{id: id, rate: rate}, nil
}

// ExtensionID returns the header extension id being read.
func (e *Extractor) ExtensionID() uint8 {
	return e.id
}

// FromPacket decodes the time code extension of pkt. The extension
// payload is a SMPTE 12M word; trailing user bits are ignored.
func (e *Extractor) FromPacket(pkt *rtp.Packet) (timecode.Timecode, error) {
	if pkt == nil || !pkt.Header.Extension {
		return timecode.Timecode{}, ErrNoExtension
	}

	payload := pkt.Header.GetExtension(e.id)
	if payload == nil {
		return timecode.Timecode{}, fmt.Errorf("%w: id %d", ErrNoExtension, e.id)
	}

	tc, ok := timecode.ParseSMPTE12M(payload, e.rate)
	if !ok {
		return timecode.Timecode{}, fmt.Errorf("%w: extension payload is %d bytes", timecode.ErrShortInput, len(payload))
	}
	return tc, nil
}

// FromBytes unmarshals a raw RTP packet and decodes its time code
// extension.
func (e *Extractor) FromBytes(buf []byte) (timecode.Timecode, error) {
	var pkt rtp.Packet
	if err := pkt.Unmarshal(buf); err != nil {
		return timecode.Timecode{}, fmt.Errorf("%w: %v", ErrMalformedPacket, err)
	}
	return e.FromPacket(&pkt)
}

// Attach stores a SMPTE 12M word as the time code extension of pkt.
func Attach(pkt *rtp.Packet, id uint8, word []byte) error {
	if id == 0 {
		return fmt.Errorf("%w: %d", ErrInvalidExtensionID, id)
	}
	if len(word) < timecode.SMPTE12MSize {
		return fmt.Errorf("%w: word is %d bytes", timecode.ErrShortInput, len(word))
	}
	if err := pkt.Header.SetExtension(id, word); err != nil {
		return fmt.Errorf("failed to set time code extension: %w", err)
	}
	return nil
}
