// Package wire implements the SFTP binary framing codec.
//
// Every frame on the stream is a 4-byte big-endian length followed by that
// many payload bytes; the length excludes itself. Within a payload, integers
// are fixed-width big-endian and strings are a u32 length followed by raw
// bytes (draft-ietf-secsh-filexfer-02, section 3).
//
// The server reads one whole frame into memory before decoding it, so the
// framing boundary is authoritative by construction: decoding can never
// consume bytes belonging to the next frame, and leftover bytes of a frame
// are simply discarded when the response is flushed.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ErrTruncated is returned when a frame ends before a required field.
// It indicates a malformed frame; the connection must be torn down.
var ErrTruncated = errors.New("wire: truncated frame")

// Reader decodes primitive wire types from a single buffered frame payload.
type Reader struct {
	buf *bytes.Reader
}

// NewReader wraps one frame payload.
func NewReader(payload []byte) *Reader {
	return &Reader{buf: bytes.NewReader(payload)}
}

// ReadFrame reads the next frame from the stream.
//
// Returns:
//   - (payload, nil): a complete frame; a zero-length frame yields an empty
//     payload, which callers treat as a clean peer-initiated close
//   - (nil, io.EOF): the stream ended exactly on a frame boundary
//   - (nil, err): an I/O error or a frame truncated mid-payload (fatal)
//
// maxSize bounds the accepted frame length; larger lengths are rejected
// before any payload is read so a hostile length prefix cannot force a huge
// allocation.
func ReadFrame(r io.Reader, maxSize uint32) ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("read frame length: %w", err)
	}

	length := binary.BigEndian.Uint32(header[:])
	if length == 0 {
		return nil, nil
	}
	if maxSize > 0 && length > maxSize {
		return nil, fmt.Errorf("frame length %d exceeds limit %d", length, maxSize)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		// EOF mid-frame is a malformed frame, not a clean close.
		return nil, fmt.Errorf("read frame payload (%d bytes): %w", length, err)
	}

	return payload, nil
}

// Remaining returns the number of unread payload bytes.
func (r *Reader) Remaining() int {
	return r.buf.Len()
}

// Raw exposes the unread remainder of the frame as an io.Reader. Used by the
// EXTENDED escape hatch, where the backend consumes its own payload.
func (r *Reader) Raw() io.Reader {
	return r.buf
}

func (r *Reader) ReadUint8() (uint8, error) {
	b, err := r.buf.ReadByte()
	if err != nil {
		return 0, ErrTruncated
	}
	return b, nil
}

func (r *Reader) ReadUint32() (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r.buf, buf[:]); err != nil {
		return 0, ErrTruncated
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}

func (r *Reader) ReadUint64() (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r.buf, buf[:]); err != nil {
		return 0, ErrTruncated
	}
	return binary.BigEndian.Uint64(buf[:]), nil
}

// ReadBytes reads a length-prefixed opaque blob.
func (r *Reader) ReadBytes() ([]byte, error) {
	length, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	if int(length) > r.buf.Len() {
		// The declared length cannot be satisfied by this frame.
		return nil, ErrTruncated
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r.buf, data); err != nil {
		return nil, ErrTruncated
	}
	return data, nil
}

// ReadString reads a length-prefixed UTF-8 string.
func (r *Reader) ReadString() (string, error) {
	data, err := r.ReadBytes()
	if err != nil {
		return "", err
	}
	return string(data), nil
}
