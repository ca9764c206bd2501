// Package amsio moves AMS frames over byte streams. The codec packages are
// pure; this is the only layer that blocks. FrameReader and FrameWriter are
// the plain blocking primitives over any io.Reader/io.Writer; Stream adds
// context-aware reads and writes on a net.Conn for callers that need
// cancellation.
package amsio

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"adslink/ams"
)

// FrameReader reads discrete frames from a byte stream, reassembling them
// across arbitrary TCP fragment boundaries. Not safe for concurrent use;
// run one reader per stream direction.
type FrameReader struct {
	r   *bufio.Reader
	hdr [ams.TcpHeaderLen]byte
}

// NewFrameReader wraps r in a buffered frame reader.
func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{r: bufio.NewReader(r)}
}

// ReadFrame blocks until one complete frame is available and returns it.
// The frame owns its payload buffer. A clean EOF before the first header
// byte is returned as io.EOF; EOF inside a frame is io.ErrUnexpectedEOF.
func (fr *FrameReader) ReadFrame() (ams.Frame, error) {
	if _, err := io.ReadFull(fr.r, fr.hdr[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return ams.Frame{}, fmt.Errorf("%w: stream ended inside an envelope", ams.ErrMalformedFrame)
		}
		return ams.Frame{}, err
	}

	command := ams.RouterCommand(binary.LittleEndian.Uint16(fr.hdr[0:2]))
	length := binary.LittleEndian.Uint32(fr.hdr[2:6])
	if length > ams.FrameMaxPayload {
		return ams.Frame{}, fmt.Errorf("%w: envelope declares %d payload bytes (max %d)",
			ams.ErrMalformedFrame, length, ams.FrameMaxPayload)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(fr.r, payload); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return ams.Frame{}, fmt.Errorf("%w: stream ended inside a %d-byte payload",
				ams.ErrMalformedFrame, length)
		}
		return ams.Frame{}, err
	}

	return ams.Frame{Command: command, Payload: payload}, nil
}

// FrameWriter writes frames to a byte stream. Each WriteFrame flushes, so a
// frame is handed to the transport as one contiguous unit. Not safe for
// concurrent use.
type FrameWriter struct {
	w *bufio.Writer
}

// NewFrameWriter wraps w in a buffered frame writer.
func NewFrameWriter(w io.Writer) *FrameWriter {
	return &FrameWriter{w: bufio.NewWriter(w)}
}

// WriteFrame serializes f (envelope + payload) and flushes it.
func (fw *FrameWriter) WriteFrame(f ams.Frame) error {
	if len(f.Payload) > ams.FrameMaxPayload {
		return fmt.Errorf("payload too large: %d bytes (max %d)", len(f.Payload), ams.FrameMaxPayload)
	}
	if _, err := fw.w.Write(f.Bytes()); err != nil {
		return err
	}
	return fw.w.Flush()
}
