package ads

import (
	"fmt"

	"adslink/ams"
)

// Packet is one decoded ADS exchange: the 32-byte header and the command
// data that follows it. Data borrows from the frame's payload buffer.
//
// A Packet is produced for every well-formed AdsCommand frame, including
// commands this package has no payload codec for; unrecognized command ids
// are therefore non-fatal and the raw data is passed through to the caller.
type Packet struct {
	Header Header
	Data   []byte
}

// ParsePacket splits an AdsCommand frame into header and data, verifying
// the header's own length field against the bytes actually present.
func ParsePacket(f ams.Frame) (Packet, error) {
	if f.Command != ams.CmdAdsCommand {
		return Packet{}, fmt.Errorf("%w: expected %s frame, got %s",
			ErrTypeMismatch, ams.CmdAdsCommand, f.Command)
	}

	header, err := HeaderFromBytes(f.Payload)
	if err != nil {
		return Packet{}, err
	}

	data := f.Payload[HeaderLen:]
	if uint64(header.Length) != uint64(len(data)) {
		return Packet{}, fmt.Errorf("%w: ADS header declares %d data bytes, %d follow",
			ErrMalformedFrame, header.Length, len(data))
	}

	return Packet{Header: header, Data: data}, nil
}

// Frame wraps the packet back into an AdsCommand frame. The header's
// length field is rewritten from the actual data size.
func (p Packet) Frame() ams.Frame {
	h := p.Header
	h.Length = uint32(len(p.Data))
	buf := make([]byte, 0, HeaderLen+len(p.Data))
	buf = h.AppendTo(buf)
	return ams.Frame{Command: ams.CmdAdsCommand, Payload: append(buf, p.Data...)}
}

// newFrame assembles a complete AdsCommand frame from routing metadata and
// serialized command data. Shared by every request/response builder.
func newFrame(target, source ams.Addr, cmd Command, flags StateFlags, errorCode ReturnCode, invokeId uint32, data []byte) ams.Frame {
	p := Packet{
		Header: Header{
			Target:     target,
			Source:     source,
			Command:    cmd,
			StateFlags: flags,
			ErrorCode:  errorCode,
			InvokeId:   invokeId,
		},
		Data: data,
	}
	return p.Frame()
}

// requireCommand checks that a packet carries the expected command id and
// direction before its data is interpreted.
func (p Packet) requireCommand(cmd Command, response bool) error {
	if p.Header.Command != cmd {
		return fmt.Errorf("%w: expected %s, got %s", ErrTypeMismatch, cmd, p.Header.Command)
	}
	if p.Header.StateFlags.IsResponse() != response {
		dir := "request"
		if response {
			dir = "response"
		}
		return fmt.Errorf("%w: %s packet is not a %s (%s)",
			ErrTypeMismatch, cmd, dir, p.Header.StateFlags)
	}
	return nil
}
