package wire

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Test Helper Functions
// ============================================================================

// frame prepends the length prefix to a payload, producing stream bytes as
// a client would send them.
func frame(payload []byte) []byte {
	out := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(out, uint32(len(payload)))
	copy(out[4:], payload)
	return out
}

// ============================================================================
// ReadFrame Tests
// ============================================================================

func TestReadFrame(t *testing.T) {
	t.Run("ReadsCompletePayload", func(t *testing.T) {
		payload := []byte{0x01, 0x02, 0x03, 0x04, 0x05}
		r := bytes.NewReader(frame(payload))

		got, err := ReadFrame(r, 1024)
		require.NoError(t, err)
		assert.Equal(t, payload, got)
	})

	t.Run("ReturnsNilForZeroLengthFrame", func(t *testing.T) {
		r := bytes.NewReader(frame(nil))

		got, err := ReadFrame(r, 1024)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("ReturnsEOFAtFrameBoundary", func(t *testing.T) {
		r := bytes.NewReader(nil)

		_, err := ReadFrame(r, 1024)
		assert.Equal(t, io.EOF, err)
	})

	t.Run("RejectsOversizedFrame", func(t *testing.T) {
		var prefix [4]byte
		binary.BigEndian.PutUint32(prefix[:], 2048)
		r := bytes.NewReader(prefix[:])

		_, err := ReadFrame(r, 1024)
		require.Error(t, err)
		assert.NotEqual(t, io.EOF, err)
	})

	t.Run("MidFrameEOFIsFatal", func(t *testing.T) {
		full := frame([]byte{0x01, 0x02, 0x03, 0x04})
		r := bytes.NewReader(full[:6]) // length prefix + 2 of 4 payload bytes

		_, err := ReadFrame(r, 1024)
		require.Error(t, err)
		assert.NotEqual(t, io.EOF, err)
	})

	t.Run("TruncatedLengthPrefixIsFatal", func(t *testing.T) {
		r := bytes.NewReader([]byte{0x00, 0x00})

		_, err := ReadFrame(r, 1024)
		require.Error(t, err)
		assert.NotEqual(t, io.EOF, err)
	})

	t.Run("ReadsConsecutiveFrames", func(t *testing.T) {
		var stream bytes.Buffer
		stream.Write(frame([]byte{0xAA}))
		stream.Write(frame([]byte{0xBB, 0xCC}))

		first, err := ReadFrame(&stream, 1024)
		require.NoError(t, err)
		assert.Equal(t, []byte{0xAA}, first)

		second, err := ReadFrame(&stream, 1024)
		require.NoError(t, err)
		assert.Equal(t, []byte{0xBB, 0xCC}, second)

		_, err = ReadFrame(&stream, 1024)
		assert.Equal(t, io.EOF, err)
	})
}

// ============================================================================
// Reader Tests
// ============================================================================

func TestReader(t *testing.T) {
	t.Run("ReadsPrimitives", func(t *testing.T) {
		var buf bytes.Buffer
		buf.WriteByte(0x07)
		binary.Write(&buf, binary.BigEndian, uint32(0xDEADBEEF))
		binary.Write(&buf, binary.BigEndian, uint64(0x0123456789ABCDEF))

		r := NewReader(buf.Bytes())

		b, err := r.ReadUint8()
		require.NoError(t, err)
		assert.Equal(t, uint8(0x07), b)

		u32, err := r.ReadUint32()
		require.NoError(t, err)
		assert.Equal(t, uint32(0xDEADBEEF), u32)

		u64, err := r.ReadUint64()
		require.NoError(t, err)
		assert.Equal(t, uint64(0x0123456789ABCDEF), u64)

		assert.Equal(t, 0, r.Remaining())
	})

	t.Run("ReadsLengthPrefixedString", func(t *testing.T) {
		var buf bytes.Buffer
		binary.Write(&buf, binary.BigEndian, uint32(5))
		buf.WriteString("hello")

		r := NewReader(buf.Bytes())
		s, err := r.ReadString()
		require.NoError(t, err)
		assert.Equal(t, "hello", s)
	})

	t.Run("ReadsEmptyString", func(t *testing.T) {
		var buf bytes.Buffer
		binary.Write(&buf, binary.BigEndian, uint32(0))

		r := NewReader(buf.Bytes())
		s, err := r.ReadString()
		require.NoError(t, err)
		assert.Equal(t, "", s)
	})

	t.Run("TruncatedStringReportsErrTruncated", func(t *testing.T) {
		// Declared length exceeds remaining bytes.
		var buf bytes.Buffer
		binary.Write(&buf, binary.BigEndian, uint32(100))
		buf.WriteString("short")

		r := NewReader(buf.Bytes())
		_, err := r.ReadString()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrTruncated)
	})

	t.Run("TruncatedPrimitiveReportsErrTruncated", func(t *testing.T) {
		r := NewReader([]byte{0x01, 0x02})

		_, err := r.ReadUint32()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrTruncated)
	})

	t.Run("RawExposesRemainder", func(t *testing.T) {
		r := NewReader([]byte{0x01, 0xAA, 0xBB})

		_, err := r.ReadUint8()
		require.NoError(t, err)

		rest, err := io.ReadAll(r.Raw())
		require.NoError(t, err)
		assert.Equal(t, []byte{0xAA, 0xBB}, rest)
	})
}

// ============================================================================
// Writer Tests
// ============================================================================

func TestWriter(t *testing.T) {
	t.Run("FlushEmitsLengthPrefixedFrame", func(t *testing.T) {
		var out bytes.Buffer
		w := NewWriter(&out)

		w.WriteUint8(101)
		w.WriteUint32(7)
		require.NoError(t, w.Flush())

		expected := []byte{
			0, 0, 0, 5, // payload length
			101,        // type byte
			0, 0, 0, 7, // id
		}
		assert.Equal(t, expected, out.Bytes())
	})

	t.Run("FlushResetsForNextFrame", func(t *testing.T) {
		var out bytes.Buffer
		w := NewWriter(&out)

		w.WriteUint8(1)
		require.NoError(t, w.Flush())
		w.WriteUint8(2)
		require.NoError(t, w.Flush())

		expected := []byte{
			0, 0, 0, 1, 1,
			0, 0, 0, 1, 2,
		}
		assert.Equal(t, expected, out.Bytes())
	})

	t.Run("ResetDiscardsPendingPayload", func(t *testing.T) {
		var out bytes.Buffer
		w := NewWriter(&out)

		w.WriteUint8(102)
		w.WriteUint32(1)
		w.Reset()
		w.WriteUint8(101)
		require.NoError(t, w.Flush())

		assert.Equal(t, []byte{0, 0, 0, 1, 101}, out.Bytes())
	})

	t.Run("WriteStringAndBytes", func(t *testing.T) {
		var out bytes.Buffer
		w := NewWriter(&out)

		w.WriteString("ab")
		w.WriteBytes([]byte{0xFF})
		require.NoError(t, w.Flush())

		expected := []byte{
			0, 0, 0, 11,
			0, 0, 0, 2, 'a', 'b',
			0, 0, 0, 1, 0xFF,
		}
		assert.Equal(t, expected, out.Bytes())
	})

	t.Run("LargePayloadRoundTrip", func(t *testing.T) {
		data := make([]byte, 64*1024)
		for i := range data {
			data[i] = byte(i)
		}

		var out bytes.Buffer
		w := NewWriter(&out)
		w.WriteUint8(103)
		w.WriteUint32(42)
		w.WriteBytes(data)
		require.NoError(t, w.Flush())

		payload, err := ReadFrame(&out, 256*1024)
		require.NoError(t, err)

		r := NewReader(payload)
		typ, err := r.ReadUint8()
		require.NoError(t, err)
		assert.Equal(t, uint8(103), typ)

		id, err := r.ReadUint32()
		require.NoError(t, err)
		assert.Equal(t, uint32(42), id)

		got, err := r.ReadBytes()
		require.NoError(t, err)
		assert.Equal(t, data, got)
	})
}
