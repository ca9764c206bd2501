package ams

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// AddrLen is the wire size of an Addr: NetId (6) + port (2).
const AddrLen = NetIdLen + 2

// Addr combines an AMS Net ID and an AMS port number into a routable endpoint.
type Addr struct {
	NetId NetId
	Port  uint16
}

// NewAddr creates an Addr from a Net ID and port.
func NewAddr(netId NetId, port uint16) Addr {
	return Addr{NetId: netId, Port: port}
}

// ParseAddr parses a "netid:port" string (e.g., "5.1.2.3.1.1:851").
func ParseAddr(s string) (Addr, error) {
	idx := strings.LastIndex(s, ":")
	if idx < 0 {
		return Addr{}, fmt.Errorf("invalid AMS address %q (expected netid:port)", s)
	}

	netId, err := ParseNetId(s[:idx])
	if err != nil {
		return Addr{}, err
	}

	var port uint16
	if _, err := fmt.Sscanf(s[idx+1:], "%d", &port); err != nil {
		return Addr{}, fmt.Errorf("invalid AMS port %q: %w", s[idx+1:], err)
	}

	return Addr{NetId: netId, Port: port}, nil
}

// AppendTo appends the 8-byte wire form (NetId + little-endian port) to buf.
func (a Addr) AppendTo(buf []byte) []byte {
	buf = append(buf, a.NetId[:]...)
	return binary.LittleEndian.AppendUint16(buf, a.Port)
}

// AddrFromBytes decodes an Addr from exactly 8 bytes.
func AddrFromBytes(b []byte) (Addr, error) {
	if len(b) < AddrLen {
		return Addr{}, fmt.Errorf("AMS address too short: need %d bytes, got %d", AddrLen, len(b))
	}
	var a Addr
	copy(a.NetId[:], b[:NetIdLen])
	a.Port = binary.LittleEndian.Uint16(b[NetIdLen:AddrLen])
	return a, nil
}

// String returns the "netid:port" form.
func (a Addr) String() string {
	return fmt.Sprintf("%s:%d", a.NetId, a.Port)
}
