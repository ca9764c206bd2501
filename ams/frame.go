package ams

import (
	"encoding/binary"
	"fmt"
)

// TcpHeaderLen is the size of the AMS/TCP envelope: command (2) + length (4).
const TcpHeaderLen = 6

// FrameMaxPayload caps the declared payload length of a single frame to
// prevent unbounded allocations from a corrupt or hostile length field.
const FrameMaxPayload = 65535 - TcpHeaderLen

// TcpHeader is the 6-byte AMS/TCP envelope that prefixes every frame.
// Length is the number of payload bytes that follow the envelope.
type TcpHeader struct {
	Command RouterCommand
	Length  uint32
}

// AppendTo appends the 6-byte wire form of the header to buf.
func (h TcpHeader) AppendTo(buf []byte) []byte {
	buf = binary.LittleEndian.AppendUint16(buf, uint16(h.Command))
	return binary.LittleEndian.AppendUint32(buf, h.Length)
}

// TcpHeaderFromBytes decodes the envelope from exactly 6 bytes.
func TcpHeaderFromBytes(b []byte) (TcpHeader, error) {
	if len(b) < TcpHeaderLen {
		return TcpHeader{}, fmt.Errorf("%w: AMS/TCP header needs %d bytes, got %d",
			ErrMalformedFrame, TcpHeaderLen, len(b))
	}
	return TcpHeader{
		Command: RouterCommand(binary.LittleEndian.Uint16(b[0:2])),
		Length:  binary.LittleEndian.Uint32(b[2:6]),
	}, nil
}

// Frame is one AMS transport unit: a router command and its payload.
// For CmdAdsCommand frames the payload is a 32-byte ADS header followed by
// the command data; for router commands it is the command's own payload.
//
// A Frame returned by a reader owns its payload buffer. Views produced by
// the ads package codecs borrow from it and must not outlive the frame.
type Frame struct {
	Command RouterCommand
	Payload []byte
}

// NewFrame creates a frame for the given command and payload.
// Returns an error if the payload exceeds FrameMaxPayload.
func NewFrame(command RouterCommand, payload []byte) (Frame, error) {
	if len(payload) > FrameMaxPayload {
		return Frame{}, fmt.Errorf("payload too large: %d bytes (max %d)", len(payload), FrameMaxPayload)
	}
	return Frame{Command: command, Payload: payload}, nil
}

// Header returns the envelope describing this frame.
func (f Frame) Header() TcpHeader {
	return TcpHeader{Command: f.Command, Length: uint32(len(f.Payload))}
}

// Bytes serializes the frame (envelope + payload) into a new buffer.
func (f Frame) Bytes() []byte {
	buf := make([]byte, 0, TcpHeaderLen+len(f.Payload))
	buf = f.Header().AppendTo(buf)
	return append(buf, f.Payload...)
}

// ParseFrame decodes a complete frame from a contiguous buffer, validating
// that the declared length matches the bytes that actually follow.
func ParseFrame(b []byte) (Frame, error) {
	hdr, err := TcpHeaderFromBytes(b)
	if err != nil {
		return Frame{}, err
	}
	body := b[TcpHeaderLen:]
	if uint64(len(body)) != uint64(hdr.Length) {
		return Frame{}, fmt.Errorf("%w: envelope declares %d payload bytes, %d follow",
			ErrMalformedFrame, hdr.Length, len(body))
	}
	return Frame{Command: hdr.Command, Payload: body}, nil
}
