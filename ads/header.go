package ads

import (
	"encoding/binary"
	"fmt"

	"adslink/ams"
)

// HeaderLen is the size of the ADS header that follows the AMS/TCP envelope
// on every ADS command frame.
const HeaderLen = 32

// Beckhoff documentation calls this structure the "AMS Header"; it is named
// Header here to emphasise its role in the ADS command layer and keep it
// distinct from the TCP-level envelope.

// Header is the 32-byte routing header of one ADS exchange.
type Header struct {
	Target     ams.Addr
	Source     ams.Addr
	Command    Command
	StateFlags StateFlags
	Length     uint32 // size of the command data that follows, in bytes
	ErrorCode  ReturnCode
	InvokeId   uint32
}

// AppendTo appends the 32-byte wire form of the header to buf.
func (h Header) AppendTo(buf []byte) []byte {
	buf = h.Target.AppendTo(buf)
	buf = h.Source.AppendTo(buf)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(h.Command))
	buf = binary.LittleEndian.AppendUint16(buf, uint16(h.StateFlags))
	buf = binary.LittleEndian.AppendUint32(buf, h.Length)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(h.ErrorCode))
	return binary.LittleEndian.AppendUint32(buf, h.InvokeId)
}

// HeaderFromBytes decodes a header from the first 32 bytes of b.
func HeaderFromBytes(b []byte) (Header, error) {
	if len(b) < HeaderLen {
		return Header{}, fmt.Errorf("%w: ADS header needs %d bytes, got %d",
			ams.ErrMalformedFrame, HeaderLen, len(b))
	}

	target, _ := ams.AddrFromBytes(b[0:8])
	source, _ := ams.AddrFromBytes(b[8:16])

	return Header{
		Target:     target,
		Source:     source,
		Command:    Command(binary.LittleEndian.Uint16(b[16:18])),
		StateFlags: StateFlags(binary.LittleEndian.Uint16(b[18:20])),
		Length:     binary.LittleEndian.Uint32(b[20:24]),
		ErrorCode:  ReturnCode(binary.LittleEndian.Uint32(b[24:28])),
		InvokeId:   binary.LittleEndian.Uint32(b[28:32]),
	}, nil
}
