package ads

import (
	"encoding/binary"
	"fmt"
	"time"
)

// FileTime is a timestamp in the Windows FILETIME format used by ADS
// notification stamps: the number of 100-nanosecond intervals since
// 1601-01-01 00:00:00 UTC. Wire format is 8 bytes, little-endian.
type FileTime uint64

// FileTimeLen is the wire size of a FileTime.
const FileTimeLen = 8

// EpochOffsetTicks is the number of 100ns ticks between 1601-01-01 and the
// Unix epoch 1970-01-01 (exactly 11,644,473,600 seconds).
const EpochOffsetTicks = 116_444_736_000_000_000

const ticksPerSecond = 10_000_000

// FileTimeNow returns the current UTC time as a FileTime.
func FileTimeNow() FileTime {
	ft, _ := FileTimeFromTime(time.Now())
	return ft
}

// FileTimeFromTime converts a time.Time to a FileTime, truncating to 100ns
// granularity. It returns an error instead of wrapping when the instant
// precedes the 1601 reference epoch or does not fit in 64 bits of ticks.
func FileTimeFromTime(t time.Time) (FileTime, error) {
	secs := t.Unix()
	if secs < -EpochOffsetTicks/ticksPerSecond {
		return 0, fmt.Errorf("time %v precedes the 1601-01-01 FILETIME epoch", t)
	}
	secTicks := uint64(secs + EpochOffsetTicks/ticksPerSecond)
	if secTicks > (1<<64-1)/ticksPerSecond {
		return 0, fmt.Errorf("time %v exceeds the FILETIME range", t)
	}
	ticks := secTicks*ticksPerSecond + uint64(t.Nanosecond())/100
	return FileTime(ticks), nil
}

// Time converts the tick count to a time.Time in UTC. Every 64-bit tick
// count is representable, so the conversion is total.
func (ft FileTime) Time() time.Time {
	secs := int64(ft/ticksPerSecond) - EpochOffsetTicks/ticksPerSecond
	nanos := int64(ft%ticksPerSecond) * 100
	return time.Unix(secs, nanos).UTC()
}

// AppendTo appends the 8-byte little-endian wire form to buf.
func (ft FileTime) AppendTo(buf []byte) []byte {
	return binary.LittleEndian.AppendUint64(buf, uint64(ft))
}

// FileTimeFromBytes decodes a FileTime from exactly 8 bytes.
func FileTimeFromBytes(b []byte) (FileTime, error) {
	if len(b) < FileTimeLen {
		return 0, fmt.Errorf("FILETIME needs %d bytes, got %d", FileTimeLen, len(b))
	}
	return FileTime(binary.LittleEndian.Uint64(b)), nil
}

func (ft FileTime) String() string {
	return ft.Time().Format(time.RFC3339Nano)
}
