package ads

import (
	"fmt"
	"strings"
)

// StateFlags is the 16-bit flag field of the ADS header.
type StateFlags uint16

const (
	// FlagResponse marks the packet as a response (0 = request).
	FlagResponse StateFlags = 0x0001
	// FlagAdsCommand is set on every ADS command packet.
	FlagAdsCommand StateFlags = 0x0004
	// FlagUDP marks UDP transport (0 = TCP).
	FlagUDP StateFlags = 0x0040
)

// RequestFlags returns the standard flags for a client request over TCP.
func RequestFlags() StateFlags {
	return FlagAdsCommand
}

// ResponseFlags returns the standard flags for a server response over TCP.
func ResponseFlags() StateFlags {
	return FlagAdsCommand | FlagResponse
}

// IsResponse reports whether the response bit is set.
func (f StateFlags) IsResponse() bool {
	return f&FlagResponse != 0
}

// IsRequest reports whether the response bit is clear.
func (f StateFlags) IsRequest() bool {
	return !f.IsResponse()
}

// IsUDP reports whether the UDP bit is set.
func (f StateFlags) IsUDP() bool {
	return f&FlagUDP != 0
}

func (f StateFlags) String() string {
	var parts []string
	if f.IsResponse() {
		parts = append(parts, "RESPONSE")
	}
	if f&FlagAdsCommand != 0 {
		parts = append(parts, "COMMAND")
	}
	if f.IsUDP() {
		parts = append(parts, "UDP")
	}
	if f&^(FlagResponse|FlagAdsCommand|FlagUDP) != 0 {
		parts = append(parts, "UNKNOWN_BITS")
	}
	return fmt.Sprintf("StateFlags(0x%04X: %s)", uint16(f), strings.Join(parts, "|"))
}
