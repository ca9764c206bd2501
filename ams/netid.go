// Package ams implements the AMS routing layer used by Beckhoff TwinCAT
// devices: network identifiers, the AMS/TCP frame envelope, and the
// router-level control commands exchanged with an AMS router.
package ams

import (
	"fmt"
	"strconv"
	"strings"
)

// NetId represents a 6-byte AMS Net ID.
// Format: "x.x.x.x.x.x" where each x is 0-255.
type NetId [6]byte

// NetIdLen is the wire size of a NetId.
const NetIdLen = 6

// ParseNetId parses an AMS Net ID string (e.g., "192.168.1.100.1.1").
func ParseNetId(s string) (NetId, error) {
	var netId NetId

	if s == "" {
		return netId, fmt.Errorf("empty AMS Net ID")
	}

	parts := strings.Split(s, ".")
	if len(parts) != 6 {
		return netId, fmt.Errorf("invalid AMS Net ID format: %q (expected x.x.x.x.x.x)", s)
	}

	for i, part := range parts {
		val, err := strconv.ParseUint(part, 10, 8)
		if err != nil {
			return netId, fmt.Errorf("invalid AMS Net ID component %q: %w", part, err)
		}
		netId[i] = byte(val)
	}

	return netId, nil
}

// NetIdFromIP creates an AMS Net ID from an IP address.
// This is the common convention where the Net ID is IP.1.1 (e.g., 192.168.1.100.1.1).
func NetIdFromIP(ip string) (NetId, error) {
	var netId NetId

	// Remove port if present
	if idx := strings.Index(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}

	parts := strings.Split(ip, ".")
	if len(parts) != 4 {
		return netId, fmt.Errorf("invalid IP address: %q", ip)
	}

	for i, part := range parts {
		val, err := strconv.ParseUint(part, 10, 8)
		if err != nil {
			return netId, fmt.Errorf("invalid IP address component: %w", err)
		}
		netId[i] = byte(val)
	}

	// Default suffix .1.1 for standard TwinCAT systems
	netId[4] = 1
	netId[5] = 1

	return netId, nil
}

// String returns the string representation of the AMS Net ID.
func (n NetId) String() string {
	return fmt.Sprintf("%d.%d.%d.%d.%d.%d", n[0], n[1], n[2], n[3], n[4], n[5])
}

// IsZero returns true if the Net ID is all zeros.
func (n NetId) IsZero() bool {
	return n == NetId{}
}
