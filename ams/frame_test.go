package ams

import (
	"bytes"
	"errors"
	"testing"
)

func TestTcpHeaderRoundTrip(t *testing.T) {
	h := TcpHeader{Command: CmdAdsCommand, Length: 44}
	buf := h.AppendTo(nil)
	if len(buf) != TcpHeaderLen {
		t.Fatalf("wire size = %d, want %d", len(buf), TcpHeaderLen)
	}
	back, err := TcpHeaderFromBytes(buf)
	if err != nil {
		t.Fatalf("TcpHeaderFromBytes: %v", err)
	}
	if back != h {
		t.Errorf("round trip = %+v, want %+v", back, h)
	}
}

func TestFrameRoundTrip(t *testing.T) {
	payload := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	f, err := NewFrame(CmdAdsCommand, payload)
	if err != nil {
		t.Fatalf("NewFrame: %v", err)
	}
	wire := f.Bytes()
	if len(wire) != TcpHeaderLen+len(payload) {
		t.Fatalf("wire size = %d", len(wire))
	}

	back, err := ParseFrame(wire)
	if err != nil {
		t.Fatalf("ParseFrame: %v", err)
	}
	if back.Command != CmdAdsCommand || !bytes.Equal(back.Payload, payload) {
		t.Errorf("round trip = %+v", back)
	}
}

func TestParseFrameLengthMismatch(t *testing.T) {
	// Header declares 10 payload bytes but only 8 follow.
	wire := TcpHeader{Command: CmdAdsCommand, Length: 10}.AppendTo(nil)
	wire = append(wire, make([]byte, 8)...)

	_, err := ParseFrame(wire)
	if !errors.Is(err, ErrMalformedFrame) {
		t.Errorf("ParseFrame error = %v, want ErrMalformedFrame", err)
	}
}

func TestParseFrameTooShort(t *testing.T) {
	_, err := ParseFrame([]byte{0x00, 0x00, 0x04})
	if !errors.Is(err, ErrMalformedFrame) {
		t.Errorf("ParseFrame error = %v, want ErrMalformedFrame", err)
	}
}

func TestNewFrameOversize(t *testing.T) {
	if _, err := NewFrame(CmdAdsCommand, make([]byte, FrameMaxPayload+1)); err == nil {
		t.Error("NewFrame accepted an oversized payload")
	}
	if _, err := NewFrame(CmdAdsCommand, make([]byte, FrameMaxPayload)); err != nil {
		t.Errorf("NewFrame rejected a max-size payload: %v", err)
	}
}

func TestRouterCommandKnown(t *testing.T) {
	for _, c := range []RouterCommand{CmdAdsCommand, CmdPortClose, CmdPortConnect, CmdRouterNotification, CmdGetLocalNetId} {
		if !c.Known() {
			t.Errorf("%v not recognized", c)
		}
	}
	if RouterCommand(0x7777).Known() {
		t.Error("0x7777 recognized as a router command")
	}
}

func TestPortConnectRoundTrip(t *testing.T) {
	req := PortConnectRequest{DesiredPort: 0}
	back, err := ParsePortConnectRequest(req.Frame())
	if err != nil {
		t.Fatalf("ParsePortConnectRequest: %v", err)
	}
	if back != req {
		t.Errorf("request round trip = %+v", back)
	}

	resp := PortConnectResponse{Addr: NewAddr(NetId{192, 168, 0, 1, 1, 1}, 30000)}
	backResp, err := ParsePortConnectResponse(resp.Frame())
	if err != nil {
		t.Fatalf("ParsePortConnectResponse: %v", err)
	}
	if backResp != resp {
		t.Errorf("response round trip = %+v", backResp)
	}
}

func TestParsePortConnectWrongCommand(t *testing.T) {
	f := GetLocalNetIdRequest{}.Frame()
	if _, err := ParsePortConnectRequest(f); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("error = %v, want ErrTypeMismatch", err)
	}
}

func TestPortCloseRoundTrip(t *testing.T) {
	req := PortCloseRequest{Port: 30000}
	back, err := ParsePortCloseRequest(req.Frame())
	if err != nil {
		t.Fatalf("ParsePortCloseRequest: %v", err)
	}
	if back != req {
		t.Errorf("round trip = %+v", back)
	}
}

func TestGetLocalNetIdRoundTrip(t *testing.T) {
	f := GetLocalNetIdRequest{}.Frame()
	if f.Command != CmdGetLocalNetId || len(f.Payload) != 4 {
		t.Fatalf("request frame = %+v", f)
	}

	resp := GetLocalNetIdResponse{NetId: NetId{10, 0, 0, 5, 1, 1}}
	back, err := ParseGetLocalNetIdResponse(resp.Frame())
	if err != nil {
		t.Fatalf("ParseGetLocalNetIdResponse: %v", err)
	}
	if back != resp {
		t.Errorf("round trip = %+v", back)
	}
}

func TestRouterNotificationRoundTrip(t *testing.T) {
	for _, state := range []RouterState{RouterStop, RouterStart, RouterRemoved, RouterState(99)} {
		n := RouterNotification{State: state}
		back, err := ParseRouterNotification(n.Frame())
		if err != nil {
			t.Fatalf("ParseRouterNotification(%v): %v", state, err)
		}
		if back != n {
			t.Errorf("round trip = %+v, want %+v", back, n)
		}
	}
}
