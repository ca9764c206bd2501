package ads

import (
	"encoding/binary"
	"fmt"

	"adslink/ams"
)

// Device notification stream codec (command 0x0008). The server pushes a
// notification whenever a watched variable meets the criteria of an active
// subscription. The payload nests stamp groups and samples:
//
//	length (4) + stamps (4)
//	per stamp:  timestamp (8) + samples (4)
//	per sample: handle (4) + size (4) + data (size)
//
// The outer length counts every byte after the stamps field's end, so a
// well-formed payload satisfies len(payload) == 8+length. Counts and sizes
// are validated against the remaining bytes before any slice is taken.

// SampleView is a single observed value, borrowing its data from the
// frame buffer. The data is interpreted according to the type of the
// watched variable; dispatch is by Handle.
type SampleView struct {
	Handle NotificationHandle
	Data   []byte
}

// Owned copies the view into a self-contained Sample.
func (s SampleView) Owned() Sample {
	return Sample{
		Handle: s.Handle,
		Data:   append([]byte(nil), s.Data...),
	}
}

// Sample is the owned form of a notification sample.
type Sample struct {
	Handle NotificationHandle
	Data   []byte
}

// View re-borrows the owned sample without copying.
func (s Sample) View() SampleView {
	return SampleView(s)
}

func (s Sample) wireSize() int {
	return 8 + len(s.Data)
}

// StampView groups samples that share one server-side timestamp.
type StampView struct {
	Timestamp FileTime
	Samples   []SampleView
}

// Owned copies the view into a self-contained Stamp.
func (s StampView) Owned() Stamp {
	samples := make([]Sample, len(s.Samples))
	for i, v := range s.Samples {
		samples[i] = v.Owned()
	}
	return Stamp{Timestamp: s.Timestamp, Samples: samples}
}

// Stamp is the owned form of a stamp group.
type Stamp struct {
	Timestamp FileTime
	Samples   []Sample
}

// View re-borrows the owned stamp without copying sample data.
func (s Stamp) View() StampView {
	samples := make([]SampleView, len(s.Samples))
	for i, o := range s.Samples {
		samples[i] = o.View()
	}
	return StampView{Timestamp: s.Timestamp, Samples: samples}
}

func (s Stamp) wireSize() int {
	n := 12
	for _, sm := range s.Samples {
		n += sm.wireSize()
	}
	return n
}

// TimestampedSample pairs a sample with the timestamp of its stamp group.
type TimestampedSample struct {
	Timestamp FileTime
	Handle    NotificationHandle
	Data      []byte
}

// NotificationView is a parsed device notification. The stamp and sample
// slices are allocated during parsing, but all sample data stays in the
// frame buffer.
type NotificationView struct {
	Stamps []StampView
}

// Samples flattens the stamp groups into a single ordered slice of
// (timestamp, handle, data) entries. This is the convenient form for
// dispatching samples by handle regardless of stamp grouping.
func (n NotificationView) Samples() []TimestampedSample {
	var out []TimestampedSample
	for _, stamp := range n.Stamps {
		for _, s := range stamp.Samples {
			out = append(out, TimestampedSample{
				Timestamp: stamp.Timestamp,
				Handle:    s.Handle,
				Data:      s.Data,
			})
		}
	}
	return out
}

// Owned copies the view into a self-contained Notification.
func (n NotificationView) Owned() Notification {
	stamps := make([]Stamp, len(n.Stamps))
	for i, v := range n.Stamps {
		stamps[i] = v.Owned()
	}
	return Notification{Stamps: stamps}
}

// Notification is the owned form of a device notification. A server
// builds one to push samples to a subscribed client.
type Notification struct {
	Stamps []Stamp
}

// View re-borrows the owned notification without copying sample data.
func (n Notification) View() NotificationView {
	stamps := make([]StampView, len(n.Stamps))
	for i, o := range n.Stamps {
		stamps[i] = o.View()
	}
	return NotificationView{Stamps: stamps}
}

// Samples flattens the stamp groups, as NotificationView.Samples does.
func (n Notification) Samples() []TimestampedSample {
	return n.View().Samples()
}

// AppendTo appends the full stream wire form to buf.
func (n Notification) AppendTo(buf []byte) []byte {
	var stampsSize int
	for _, s := range n.Stamps {
		stampsSize += s.wireSize()
	}
	buf = binary.LittleEndian.AppendUint32(buf, uint32(stampsSize))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(n.Stamps)))
	for _, s := range n.Stamps {
		buf = s.Timestamp.AppendTo(buf)
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(s.Samples)))
		for _, sm := range s.Samples {
			buf = binary.LittleEndian.AppendUint32(buf, uint32(sm.Handle))
			buf = binary.LittleEndian.AppendUint32(buf, uint32(len(sm.Data)))
			buf = append(buf, sm.Data...)
		}
	}
	return buf
}

// Bytes serializes the stream into a new buffer.
func (n Notification) Bytes() []byte {
	return n.AppendTo(nil)
}

// Frame wraps the notification into a complete AdsCommand frame.
// Notifications travel with response state flags and no invoke id
// correlation is expected; callers normally pass 0.
func (n Notification) Frame(target, source ams.Addr, invokeId uint32) ams.Frame {
	return newFrame(target, source, CmdNotification, ResponseFlags(), RetOk, invokeId, n.Bytes())
}

// ParseNotificationView decodes a notification stream, borrowing all
// sample data from the input. Declared counts and sizes must account for
// exactly the available bytes.
func ParseNotificationView(data []byte) (NotificationView, error) {
	if len(data) < 8 {
		return NotificationView{}, fmt.Errorf("%w: notification stream header needs 8 bytes, got %d",
			ErrMalformedFrame, len(data))
	}
	length := binary.LittleEndian.Uint32(data[0:4])
	stampCount := binary.LittleEndian.Uint32(data[4:8])
	rest := data[8:]
	if uint64(len(rest)) != uint64(length) {
		return NotificationView{}, fmt.Errorf("%w: notification stream declares %d stamp bytes, %d follow",
			ErrMalformedFrame, length, len(rest))
	}

	stamps := make([]StampView, 0, stampCount)
	for i := uint32(0); i < stampCount; i++ {
		if len(rest) < 12 {
			return NotificationView{}, fmt.Errorf("%w: notification stamp %d truncated at %d bytes",
				ErrMalformedFrame, i, len(rest))
		}
		ts := FileTime(binary.LittleEndian.Uint64(rest[0:8]))
		sampleCount := binary.LittleEndian.Uint32(rest[8:12])
		rest = rest[12:]

		samples := make([]SampleView, 0, sampleCount)
		for j := uint32(0); j < sampleCount; j++ {
			if len(rest) < 8 {
				return NotificationView{}, fmt.Errorf("%w: notification sample %d/%d truncated at %d bytes",
					ErrMalformedFrame, i, j, len(rest))
			}
			handle := binary.LittleEndian.Uint32(rest[0:4])
			size := binary.LittleEndian.Uint32(rest[4:8])
			rest = rest[8:]
			if uint64(len(rest)) < uint64(size) {
				return NotificationView{}, fmt.Errorf("%w: notification sample %d/%d declares %d data bytes, %d remain",
					ErrMalformedFrame, i, j, size, len(rest))
			}
			samples = append(samples, SampleView{
				Handle: NotificationHandle(handle),
				Data:   rest[:size],
			})
			rest = rest[size:]
		}
		stamps = append(stamps, StampView{Timestamp: ts, Samples: samples})
	}
	if len(rest) != 0 {
		return NotificationView{}, fmt.Errorf("%w: %d trailing bytes after notification stamps",
			ErrMalformedFrame, len(rest))
	}
	return NotificationView{Stamps: stamps}, nil
}

// ParseNotificationPacket interprets a packet as a device notification.
func ParseNotificationPacket(p Packet) (NotificationView, error) {
	if err := p.requireCommand(CmdNotification, true); err != nil {
		return NotificationView{}, err
	}
	return ParseNotificationView(p.Data)
}
