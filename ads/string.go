package ads

import (
	"bytes"
	"fmt"

	"golang.org/x/text/encoding/charmap"
)

// DeviceNameLen is the capacity of the fixed device-name field in a
// ReadDeviceInfo response.
const DeviceNameLen = 16

// FixedString is a fixed-capacity, null-terminated Windows-1252 string as
// used for PLC STRING(K) values and the device name field. The buffer size
// is fixed at construction; a STRING(K) on the PLC maps to capacity K+1.
//
// Decoding raw bytes never fails (every byte value maps to a character in
// the single-byte code page); only encoding arbitrary Go text can fail, for
// runes with no Windows-1252 representation.
type FixedString struct {
	buf []byte
}

// NewFixedString encodes s into a buffer of exactly capacity bytes,
// truncating the encoded text to capacity-1 bytes and null-terminating it.
// It returns an error if capacity is zero or s contains a rune that cannot
// be represented in Windows-1252.
func NewFixedString(capacity int, s string) (FixedString, error) {
	if capacity < 1 {
		return FixedString{}, fmt.Errorf("fixed string capacity must be at least 1, got %d", capacity)
	}
	encoded, err := charmap.Windows1252.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return FixedString{}, fmt.Errorf("text not representable in Windows-1252: %w", err)
	}
	if len(encoded) > capacity-1 {
		encoded = encoded[:capacity-1]
	}
	buf := make([]byte, capacity)
	copy(buf, encoded)
	return FixedString{buf: buf}, nil
}

// FixedStringFromBytes copies raw wire bytes into a FixedString of the same
// capacity. This direction is total: any byte content is valid.
func FixedStringFromBytes(b []byte) FixedString {
	return FixedString{buf: append([]byte(nil), b...)}
}

// Bytes returns the full fixed-size buffer, including the terminator and
// any trailing padding.
func (s FixedString) Bytes() []byte {
	return s.buf
}

// Cap returns the total buffer capacity in bytes.
func (s FixedString) Cap() int {
	return len(s.buf)
}

// Len returns the length of the text in encoded bytes, excluding the
// terminator.
func (s FixedString) Len() int {
	if i := bytes.IndexByte(s.buf, 0); i >= 0 {
		return i
	}
	return len(s.buf)
}

// String decodes the content up to the first null byte (or the full buffer
// if none) into Go text. Decoding cannot fail.
func (s FixedString) String() string {
	raw := s.buf[:s.Len()]
	decoded, _ := charmap.Windows1252.NewDecoder().Bytes(raw)
	return string(decoded)
}

// Equal reports whether two fixed strings have identical buffers.
func (s FixedString) Equal(other FixedString) bool {
	return bytes.Equal(s.buf, other.buf)
}
