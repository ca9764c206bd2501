package ads

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func TestNotificationSingleSample(t *testing.T) {
	// One stamp, one sample: handle 42, data 01 00 00 00.
	ts := FileTime(133_503_504_000_000_000)
	n := Notification{Stamps: []Stamp{{
		Timestamp: ts,
		Samples:   []Sample{{Handle: 42, Data: []byte{0x01, 0x00, 0x00, 0x00}}},
	}}}

	view, err := ParseNotificationView(n.Bytes())
	if err != nil {
		t.Fatalf("ParseNotificationView: %v", err)
	}
	samples := view.Samples()
	if len(samples) != 1 {
		t.Fatalf("Samples() = %d entries, want 1", len(samples))
	}
	s := samples[0]
	if s.Timestamp != ts || s.Handle != 42 {
		t.Errorf("sample = %+v", s)
	}
	if got := binary.LittleEndian.Uint32(s.Data); got != 1 {
		t.Errorf("value = %d, want 1", got)
	}
}

func TestNotificationFrameRoundTrip(t *testing.T) {
	target, source := testAddrs()
	n := Notification{Stamps: []Stamp{{
		Timestamp: FileTimeNow(),
		Samples: []Sample{
			{Handle: 1, Data: []byte{0x64, 0x00, 0x00, 0x00}},
			{Handle: 2, Data: []byte{0x01}},
		},
	}}}

	p, err := ParsePacket(n.Frame(target, source, 0))
	if err != nil {
		t.Fatalf("ParsePacket: %v", err)
	}
	if !p.Header.StateFlags.IsResponse() {
		t.Errorf("StateFlags = %v, want response", p.Header.StateFlags)
	}
	view, err := ParseNotificationPacket(p)
	if err != nil {
		t.Fatalf("ParseNotificationPacket: %v", err)
	}
	if len(view.Stamps) != 1 || len(view.Stamps[0].Samples) != 2 {
		t.Fatalf("shape = %+v", view)
	}
	back := view.Owned()
	if back.Stamps[0].Samples[1].Handle != 2 || !bytes.Equal(back.Stamps[0].Samples[1].Data, []byte{0x01}) {
		t.Errorf("round trip = %+v", back)
	}
}

func TestNotificationMultipleStamps(t *testing.T) {
	ts1 := FileTime(133_503_504_000_000_000)
	ts2 := ts1 + 10*10_000_000 // 10s later
	n := Notification{Stamps: []Stamp{
		{Timestamp: ts1, Samples: []Sample{
			{Handle: 1, Data: []byte{1, 0, 0, 0}},
			{Handle: 2, Data: []byte{0x01}},
		}},
		{Timestamp: ts2, Samples: []Sample{
			{Handle: 3, Data: []byte{2, 0, 0, 0}},
		}},
	}}

	view, err := ParseNotificationView(n.Bytes())
	if err != nil {
		t.Fatalf("ParseNotificationView: %v", err)
	}
	samples := view.Samples()
	if len(samples) != 3 {
		t.Fatalf("Samples() = %d entries, want 3", len(samples))
	}
	// Flattening preserves stamp order and per-stamp sample order.
	if samples[0].Handle != 1 || samples[0].Timestamp != ts1 {
		t.Errorf("samples[0] = %+v", samples[0])
	}
	if samples[1].Handle != 2 || samples[1].Timestamp != ts1 {
		t.Errorf("samples[1] = %+v", samples[1])
	}
	if samples[2].Handle != 3 || samples[2].Timestamp != ts2 {
		t.Errorf("samples[2] = %+v", samples[2])
	}
}

func TestNotificationEmpty(t *testing.T) {
	view, err := ParseNotificationView(Notification{}.Bytes())
	if err != nil {
		t.Fatalf("ParseNotificationView: %v", err)
	}
	if len(view.Stamps) != 0 || len(view.Samples()) != 0 {
		t.Errorf("parsed = %+v", view)
	}
}

func TestNotificationViewBorrows(t *testing.T) {
	n := Notification{Stamps: []Stamp{{
		Timestamp: FileTime(1),
		Samples:   []Sample{{Handle: 5, Data: []byte{0xAA, 0xBB}}},
	}}}
	wire := n.Bytes()

	view, err := ParseNotificationView(wire)
	if err != nil {
		t.Fatalf("ParseNotificationView: %v", err)
	}
	owned := view.Owned()
	wire[len(wire)-2] = 0x11
	if view.Stamps[0].Samples[0].Data[0] != 0x11 {
		t.Error("view did not alias the input buffer")
	}
	if owned.Stamps[0].Samples[0].Data[0] != 0xAA {
		t.Error("owned copy aliases the input buffer")
	}
}

func TestNotificationTruncated(t *testing.T) {
	good := Notification{Stamps: []Stamp{{
		Timestamp: FileTime(1),
		Samples:   []Sample{{Handle: 9, Data: []byte{1, 2, 3, 4}}},
	}}}.Bytes()

	cases := [][]byte{
		good[:4],           // stream header cut short
		good[:len(good)-1], // last data byte missing
		good[:8+12],        // stamp header only, sample missing
	}
	for i, wire := range cases {
		if _, err := ParseNotificationView(wire); !errors.Is(err, ErrMalformedFrame) {
			t.Errorf("case %d: error = %v, want ErrMalformedFrame", i, err)
		}
	}
}

func TestNotificationBadStreamLength(t *testing.T) {
	wire := Notification{Stamps: []Stamp{{
		Timestamp: FileTime(1),
		Samples:   []Sample{{Handle: 9, Data: []byte{1}}},
	}}}.Bytes()
	// Corrupt the outer length field.
	binary.LittleEndian.PutUint32(wire[0:4], 999)

	if _, err := ParseNotificationView(wire); !errors.Is(err, ErrMalformedFrame) {
		t.Errorf("error = %v, want ErrMalformedFrame", err)
	}
}

func TestNotificationOverdeclaredCounts(t *testing.T) {
	// Claims 2 stamps but carries bytes for one.
	wire := Notification{Stamps: []Stamp{{
		Timestamp: FileTime(1),
		Samples:   []Sample{{Handle: 9, Data: []byte{1}}},
	}}}.Bytes()
	binary.LittleEndian.PutUint32(wire[4:8], 2)

	if _, err := ParseNotificationView(wire); !errors.Is(err, ErrMalformedFrame) {
		t.Errorf("error = %v, want ErrMalformedFrame", err)
	}
}
