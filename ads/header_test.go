package ads

import (
	"errors"
	"testing"

	"adslink/ams"
)

func testAddrs() (ams.Addr, ams.Addr) {
	target := ams.NewAddr(ams.NetId{192, 168, 0, 1, 1, 1}, 851)
	source := ams.NewAddr(ams.NetId{172, 16, 0, 1, 1, 1}, 30000)
	return target, source
}

func TestHeaderRoundTrip(t *testing.T) {
	target, source := testAddrs()
	h := Header{
		Target:     target,
		Source:     source,
		Command:    CmdRead,
		StateFlags: RequestFlags(),
		Length:     12,
		ErrorCode:  RetOk,
		InvokeId:   7,
	}
	buf := h.AppendTo(nil)
	if len(buf) != HeaderLen {
		t.Fatalf("wire size = %d, want %d", len(buf), HeaderLen)
	}
	back, err := HeaderFromBytes(buf)
	if err != nil {
		t.Fatalf("HeaderFromBytes: %v", err)
	}
	if back != h {
		t.Errorf("round trip = %+v, want %+v", back, h)
	}
}

func TestHeaderFromBytesShort(t *testing.T) {
	_, err := HeaderFromBytes(make([]byte, HeaderLen-1))
	if !errors.Is(err, ErrMalformedFrame) {
		t.Errorf("error = %v, want ErrMalformedFrame", err)
	}
}

func TestHeaderPassesUnknownCommand(t *testing.T) {
	target, source := testAddrs()
	h := Header{
		Target:     target,
		Source:     source,
		Command:    Command(0x00FF),
		StateFlags: ResponseFlags(),
	}
	back, err := HeaderFromBytes(h.AppendTo(nil))
	if err != nil {
		t.Fatalf("HeaderFromBytes: %v", err)
	}
	if back.Command != Command(0x00FF) {
		t.Errorf("Command = %v, want 0x00FF preserved", back.Command)
	}
	if back.Command.Known() {
		t.Error("0x00FF reported as a known command")
	}
}

func TestParsePacket(t *testing.T) {
	target, source := testAddrs()
	req := ReadRequest{IndexGroup: 0xF020, IndexOffset: 4, Length: 2}
	frame := req.Frame(target, source, 99)

	p, err := ParsePacket(frame)
	if err != nil {
		t.Fatalf("ParsePacket: %v", err)
	}
	if p.Header.Command != CmdRead || p.Header.InvokeId != 99 {
		t.Errorf("header = %+v", p.Header)
	}
	if p.Header.Target != target || p.Header.Source != source {
		t.Errorf("addresses = %v -> %v", p.Header.Source, p.Header.Target)
	}
	if int(p.Header.Length) != len(p.Data) {
		t.Errorf("Length = %d, data = %d", p.Header.Length, len(p.Data))
	}
}

func TestParsePacketLengthMismatch(t *testing.T) {
	target, source := testAddrs()
	h := Header{
		Target:     target,
		Source:     source,
		Command:    CmdRead,
		StateFlags: RequestFlags(),
		Length:     10,
	}
	payload := h.AppendTo(nil)
	payload = append(payload, make([]byte, 8)...)
	frame := ams.Frame{Command: ams.CmdAdsCommand, Payload: payload}

	_, err := ParsePacket(frame)
	if !errors.Is(err, ErrMalformedFrame) {
		t.Errorf("error = %v, want ErrMalformedFrame", err)
	}
}

func TestParsePacketWrongRouterCommand(t *testing.T) {
	frame := ams.PortCloseRequest{Port: 30000}.Frame()
	if _, err := ParsePacket(frame); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("error = %v, want ErrTypeMismatch", err)
	}
}

func TestPacketFrameRoundTrip(t *testing.T) {
	target, source := testAddrs()
	resp := ReadStateResponse{Result: RetOk, AdsState: StateRun, DeviceState: 3}
	frame := resp.Frame(target, source, 5)

	p, err := ParsePacket(frame)
	if err != nil {
		t.Fatalf("ParsePacket: %v", err)
	}
	rebuilt := p.Frame()
	if string(rebuilt.Bytes()) != string(frame.Bytes()) {
		t.Error("rebuilt frame differs from original")
	}
}
