package ads

import (
	"bytes"
	"errors"
	"testing"
)

func TestReadResponseRoundTrip(t *testing.T) {
	target, source := testAddrs()
	resp := ReadResponse{Result: RetOk, Data: []byte{0x2A, 0x00, 0x00, 0x00}}

	p, err := ParsePacket(resp.Frame(target, source, 1))
	if err != nil {
		t.Fatalf("ParsePacket: %v", err)
	}
	if !p.Header.StateFlags.IsResponse() {
		t.Errorf("StateFlags = %v, want response", p.Header.StateFlags)
	}
	view, err := ParseReadResponsePacket(p)
	if err != nil {
		t.Fatalf("ParseReadResponsePacket: %v", err)
	}
	if view.Result != RetOk || !bytes.Equal(view.Data, resp.Data) {
		t.Errorf("round trip = %+v", view)
	}
}

func TestReadResponseDeviceFailureIsData(t *testing.T) {
	// A non-zero result is data for the caller, not a parse error.
	wire := ReadResponse{Result: RetDeviceSymbolNotFound}.View().Bytes()
	view, err := ParseReadResponseView(wire)
	if err != nil {
		t.Fatalf("ParseReadResponseView: %v", err)
	}
	if view.Result.IsOk() {
		t.Error("Result reported ok")
	}
	if len(view.Data) != 0 {
		t.Errorf("Data = % x", view.Data)
	}
}

func TestReadResponseDeclaredLengthMismatch(t *testing.T) {
	// Declares 10 data bytes, only 8 follow.
	wire := []byte{
		0x00, 0x00, 0x00, 0x00,
		0x0A, 0x00, 0x00, 0x00,
		1, 2, 3, 4, 5, 6, 7, 8,
	}
	if _, err := ParseReadResponseView(wire); !errors.Is(err, ErrMalformedFrame) {
		t.Errorf("error = %v, want ErrMalformedFrame", err)
	}
}

func TestWriteResponseRoundTrip(t *testing.T) {
	target, source := testAddrs()
	resp := WriteResponse{Result: RetDeviceInvalidSize}

	p, err := ParsePacket(resp.Frame(target, source, 2))
	if err != nil {
		t.Fatalf("ParsePacket: %v", err)
	}
	back, err := ParseWriteResponsePacket(p)
	if err != nil {
		t.Fatalf("ParseWriteResponsePacket: %v", err)
	}
	if back != resp {
		t.Errorf("round trip = %+v, want %+v", back, resp)
	}
}

func TestReadWriteResponseRoundTrip(t *testing.T) {
	target, source := testAddrs()
	resp := ReadWriteResponse{Result: RetOk, Data: []byte{0xCA, 0xFE}}

	p, err := ParsePacket(resp.Frame(target, source, 3))
	if err != nil {
		t.Fatalf("ParsePacket: %v", err)
	}
	view, err := ParseReadWriteResponsePacket(p)
	if err != nil {
		t.Fatalf("ParseReadWriteResponsePacket: %v", err)
	}
	if !bytes.Equal(view.Owned().Data, resp.Data) {
		t.Errorf("round trip = %+v", view)
	}
}

func TestReadStateResponseRoundTrip(t *testing.T) {
	target, source := testAddrs()
	resp := ReadStateResponse{Result: RetOk, AdsState: StateConfig, DeviceState: 7}

	p, err := ParsePacket(resp.Frame(target, source, 4))
	if err != nil {
		t.Fatalf("ParsePacket: %v", err)
	}
	back, err := ParseReadStateResponsePacket(p)
	if err != nil {
		t.Fatalf("ParseReadStateResponsePacket: %v", err)
	}
	if back != resp {
		t.Errorf("round trip = %+v, want %+v", back, resp)
	}
}

func TestReadStateResponseUnknownState(t *testing.T) {
	// Unknown state codes pass through untouched.
	resp := ReadStateResponse{AdsState: State(0x1234)}
	back, err := ParseReadStateResponse(resp.Bytes())
	if err != nil {
		t.Fatalf("ParseReadStateResponse: %v", err)
	}
	if back.AdsState != State(0x1234) {
		t.Errorf("AdsState = %v, want 0x1234 preserved", back.AdsState)
	}
	if back.AdsState.Known() {
		t.Error("0x1234 reported as a known state")
	}
}

func TestWriteControlResponseRoundTrip(t *testing.T) {
	target, source := testAddrs()
	resp := WriteControlResponse{Result: RetOk}

	p, err := ParsePacket(resp.Frame(target, source, 5))
	if err != nil {
		t.Fatalf("ParsePacket: %v", err)
	}
	back, err := ParseWriteControlResponsePacket(p)
	if err != nil {
		t.Fatalf("ParseWriteControlResponsePacket: %v", err)
	}
	if back != resp {
		t.Errorf("round trip = %+v, want %+v", back, resp)
	}
}

func TestDeviceInfoResponseRoundTrip(t *testing.T) {
	target, source := testAddrs()
	name, err := NewFixedString(DeviceNameLen, "TCatPlcCtrl")
	if err != nil {
		t.Fatalf("NewFixedString: %v", err)
	}
	resp := DeviceInfoResponse{
		Result:       RetOk,
		MajorVersion: 3,
		MinorVersion: 1,
		BuildVersion: 4024,
		DeviceName:   name,
	}

	wire := resp.Bytes()
	if len(wire) != DeviceInfoResponseLen {
		t.Fatalf("wire size = %d, want %d", len(wire), DeviceInfoResponseLen)
	}

	p, err := ParsePacket(resp.Frame(target, source, 6))
	if err != nil {
		t.Fatalf("ParsePacket: %v", err)
	}
	back, err := ParseDeviceInfoResponsePacket(p)
	if err != nil {
		t.Fatalf("ParseDeviceInfoResponsePacket: %v", err)
	}
	if back.MajorVersion != 3 || back.MinorVersion != 1 || back.BuildVersion != 4024 {
		t.Errorf("version = %d.%d.%d", back.MajorVersion, back.MinorVersion, back.BuildVersion)
	}
	if back.DeviceName.String() != "TCatPlcCtrl" {
		t.Errorf("DeviceName = %q", back.DeviceName.String())
	}
}

func TestAddNotificationResponseRoundTrip(t *testing.T) {
	target, source := testAddrs()
	resp := AddNotificationResponse{Result: RetOk, Handle: 42}

	p, err := ParsePacket(resp.Frame(target, source, 7))
	if err != nil {
		t.Fatalf("ParsePacket: %v", err)
	}
	back, err := ParseAddNotificationResponsePacket(p)
	if err != nil {
		t.Fatalf("ParseAddNotificationResponsePacket: %v", err)
	}
	if back != resp {
		t.Errorf("round trip = %+v, want %+v", back, resp)
	}
}

func TestDeleteNotificationResponseRoundTrip(t *testing.T) {
	target, source := testAddrs()
	resp := DeleteNotificationResponse{Result: RetDeviceNotifyHandleInvalid}

	p, err := ParsePacket(resp.Frame(target, source, 8))
	if err != nil {
		t.Fatalf("ParsePacket: %v", err)
	}
	back, err := ParseDeleteNotificationResponsePacket(p)
	if err != nil {
		t.Fatalf("ParseDeleteNotificationResponsePacket: %v", err)
	}
	if back != resp {
		t.Errorf("round trip = %+v, want %+v", back, resp)
	}
}

func TestResponseParseRejectsRequestFlags(t *testing.T) {
	target, source := testAddrs()
	p, err := ParsePacket(ReadRequest{Length: 4}.Frame(target, source, 9))
	if err != nil {
		t.Fatalf("ParsePacket: %v", err)
	}
	if _, err := ParseReadResponsePacket(p); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("error = %v, want ErrTypeMismatch", err)
	}
}
