package ads

import (
	"bytes"
	"testing"
)

func TestFixedStringEncode(t *testing.T) {
	s, err := NewFixedString(12, "MAIN.nCount")
	if err != nil {
		t.Fatalf("NewFixedString: %v", err)
	}
	want := []byte("MAIN.nCount\x00")
	if !bytes.Equal(s.Bytes(), want) {
		t.Errorf("Bytes() = % x, want % x", s.Bytes(), want)
	}
	if s.Cap() != 12 || s.Len() != 11 {
		t.Errorf("Cap() = %d, Len() = %d", s.Cap(), s.Len())
	}
	if s.String() != "MAIN.nCount" {
		t.Errorf("String() = %q", s.String())
	}
}

func TestFixedStringDecode(t *testing.T) {
	s := FixedStringFromBytes([]byte("MAIN.nCount\x00"))
	if s.String() != "MAIN.nCount" {
		t.Errorf("String() = %q", s.String())
	}
	if s.Cap() != 12 {
		t.Errorf("Cap() = %d", s.Cap())
	}
}

func TestFixedStringTruncates(t *testing.T) {
	s, err := NewFixedString(4, "abcdef")
	if err != nil {
		t.Fatalf("NewFixedString: %v", err)
	}
	if !bytes.Equal(s.Bytes(), []byte("abc\x00")) {
		t.Errorf("Bytes() = % x", s.Bytes())
	}
}

func TestFixedStringUnrepresentable(t *testing.T) {
	if _, err := NewFixedString(16, "温度"); err == nil {
		t.Error("NewFixedString accepted text outside Windows-1252")
	}
}

func TestFixedStringHighBytes(t *testing.T) {
	// Every byte value decodes; 0xE9 is é in Windows-1252.
	s := FixedStringFromBytes([]byte{0xE9, 0x00, 0x00, 0x00})
	if s.String() != "é" {
		t.Errorf("String() = %q, want %q", s.String(), "é")
	}

	// And é encodes back to the single byte 0xE9.
	enc, err := NewFixedString(4, "é")
	if err != nil {
		t.Fatalf("NewFixedString: %v", err)
	}
	if !s.Equal(enc) {
		t.Errorf("encode(é) = % x, want % x", enc.Bytes(), s.Bytes())
	}
}

func TestFixedStringNoTerminator(t *testing.T) {
	s := FixedStringFromBytes([]byte("full"))
	if s.Len() != 4 || s.String() != "full" {
		t.Errorf("Len() = %d, String() = %q", s.Len(), s.String())
	}
}
