package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Writer accumulates one response frame in a scratch buffer and flushes it
// as a single length-prefixed write.
//
// A partially constructed response is never observable on the wire: Flush
// either writes the whole frame in one call to the underlying stream or
// fails, in which case the connection is treated as fatally broken. The
// scratch buffer is reset after every flush, so one Writer serves a whole
// connection; the strictly sequential request loop means no locking is
// needed.
type Writer struct {
	w       io.Writer
	scratch bytes.Buffer
}

// NewWriter creates a Writer flushing frames to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (w *Writer) WriteUint8(v uint8) {
	w.scratch.WriteByte(v)
}

func (w *Writer) WriteUint32(v uint32) {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	w.scratch.Write(buf[:])
}

func (w *Writer) WriteUint64(v uint64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	w.scratch.Write(buf[:])
}

// WriteBytes writes a length-prefixed opaque blob.
func (w *Writer) WriteBytes(data []byte) {
	w.WriteUint32(uint32(len(data)))
	w.scratch.Write(data)
}

// WriteString writes a length-prefixed UTF-8 string.
func (w *Writer) WriteString(s string) {
	w.WriteUint32(uint32(len(s)))
	w.scratch.WriteString(s)
}

// Write appends raw bytes to the pending frame. Implements io.Writer so the
// EXTENDED escape hatch can hand the pending response to a backend.
func (w *Writer) Write(p []byte) (int, error) {
	return w.scratch.Write(p)
}

// Len returns the size of the pending payload.
func (w *Writer) Len() int {
	return w.scratch.Len()
}

// Reset discards the pending payload without writing it. Used when a handler
// fails after partially building a response; the replacement STATUS frame
// starts from an empty scratch buffer.
func (w *Writer) Reset() {
	w.scratch.Reset()
}

// Flush emits the pending payload as one frame: a 4-byte big-endian length
// followed by the payload bytes, in a single write to the underlying stream.
func (w *Writer) Flush() error {
	payload := w.scratch.Bytes()

	frame := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(frame[:4], uint32(len(payload)))
	copy(frame[4:], payload)

	if _, err := w.w.Write(frame); err != nil {
		return fmt.Errorf("flush frame: %w", err)
	}

	w.scratch.Reset()
	return nil
}
