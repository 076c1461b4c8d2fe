package sftp

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LazuliKao/SFTPServer/internal/protocol/sftp/wire"
	"github.com/LazuliKao/SFTPServer/pkg/backend"
)

// ============================================================================
// Test Helper Functions
// ============================================================================

// encodeToBytes runs encodeAttrs and returns the raw record bytes.
func encodeToBytes(t *testing.T, attrs *backend.FileAttributes) []byte {
	t.Helper()

	var out bytes.Buffer
	w := wire.NewWriter(&out)
	encodeAttrs(w, attrs)
	require.NoError(t, w.Flush())

	payload, err := wire.ReadFrame(&out, 0)
	require.NoError(t, err)
	return payload
}

// roundTrip encodes attrs and decodes the result.
func roundTrip(t *testing.T, attrs *backend.FileAttributes) *backend.FileAttributes {
	t.Helper()

	decoded, err := decodeAttrs(wire.NewReader(encodeToBytes(t, attrs)))
	require.NoError(t, err)
	return decoded
}

// ============================================================================
// Attribute Encoding Tests
// ============================================================================

func TestEncodeAttrs(t *testing.T) {
	t.Run("NilRecordEncodesZeroFlags", func(t *testing.T) {
		assert.Equal(t, []byte{0, 0, 0, 0}, encodeToBytes(t, nil))
	})

	t.Run("EmptyRecordEncodesZeroFlags", func(t *testing.T) {
		assert.Equal(t, []byte{0, 0, 0, 0}, encodeToBytes(t, &backend.FileAttributes{}))
	})

	t.Run("SizeOnly", func(t *testing.T) {
		raw := encodeToBytes(t, &backend.FileAttributes{Size: backend.U64(0x0102030405060708)})

		expected := []byte{
			0, 0, 0, 1, // ATTR_SIZE
			0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08,
		}
		assert.Equal(t, expected, raw)
	})

	t.Run("UIDWithoutGIDIsOmitted", func(t *testing.T) {
		// UID and GID travel as a pair; a lone UID must not set the flag.
		raw := encodeToBytes(t, &backend.FileAttributes{UID: backend.U32(1000)})
		assert.Equal(t, []byte{0, 0, 0, 0}, raw)
	})

	t.Run("AccessTimeWithoutModifyTimeIsOmitted", func(t *testing.T) {
		raw := encodeToBytes(t, &backend.FileAttributes{AccessTime: backend.U32(12345)})
		assert.Equal(t, []byte{0, 0, 0, 0}, raw)
	})

	t.Run("FullRecordFieldOrder", func(t *testing.T) {
		raw := encodeToBytes(t, &backend.FileAttributes{
			Size:        backend.U64(16),
			UID:         backend.U32(1000),
			GID:         backend.U32(1001),
			Permissions: backend.U32(0o100644),
			AccessTime:  backend.U32(100),
			ModifyTime:  backend.U32(200),
		})

		expected := []byte{
			0, 0, 0, 0x0F, // SIZE | UIDGID | PERMISSIONS | ACMODTIME
			0, 0, 0, 0, 0, 0, 0, 16, // size
			0, 0, 0x03, 0xE8, // uid 1000
			0, 0, 0x03, 0xE9, // gid 1001
			0, 1, 0x81, 0xA4, // permissions 0o100644
			0, 0, 0, 100, // atime
			0, 0, 0, 200, // mtime
		}
		assert.Equal(t, expected, raw)
	})
}

// ============================================================================
// Attribute Decoding Tests
// ============================================================================

func TestDecodeAttrs(t *testing.T) {
	t.Run("RoundTripPreservesPopulatedSubset", func(t *testing.T) {
		original := &backend.FileAttributes{
			Size:        backend.U64(42),
			Permissions: backend.U32(0o100600),
		}

		decoded := roundTrip(t, original)
		require.NotNil(t, decoded.Size)
		assert.Equal(t, uint64(42), *decoded.Size)
		require.NotNil(t, decoded.Permissions)
		assert.Equal(t, uint32(0o100600), *decoded.Permissions)
		assert.Nil(t, decoded.UID)
		assert.Nil(t, decoded.GID)
		assert.Nil(t, decoded.AccessTime)
		assert.Nil(t, decoded.ModifyTime)
	})

	t.Run("RoundTripFullRecord", func(t *testing.T) {
		original := &backend.FileAttributes{
			Size:        backend.U64(1 << 40),
			UID:         backend.U32(500),
			GID:         backend.U32(501),
			Permissions: backend.U32(backend.ModeDir | 0o755),
			AccessTime:  backend.U32(1700000000),
			ModifyTime:  backend.U32(1700000001),
		}

		decoded := roundTrip(t, original)
		assert.Equal(t, *original.Size, *decoded.Size)
		assert.Equal(t, *original.UID, *decoded.UID)
		assert.Equal(t, *original.GID, *decoded.GID)
		assert.Equal(t, *original.Permissions, *decoded.Permissions)
		assert.Equal(t, *original.AccessTime, *decoded.AccessTime)
		assert.Equal(t, *original.ModifyTime, *decoded.ModifyTime)
	})

	t.Run("ExtendedPairsAreConsumed", func(t *testing.T) {
		// Build a record carrying only extended pairs, followed by a trailing
		// field. Decoding must leave the reader aligned on the trailing field.
		var buf bytes.Buffer
		w := wire.NewWriter(&buf)
		w.WriteUint32(attrFlagExtended)
		w.WriteUint32(2) // extended count
		w.WriteString("vendor@example")
		w.WriteString("payload-1")
		w.WriteString("other@example")
		w.WriteString("payload-2")
		w.WriteUint32(0xCAFEBABE) // trailing field after the record
		require.NoError(t, w.Flush())

		payload, err := wire.ReadFrame(&buf, 0)
		require.NoError(t, err)
		r := wire.NewReader(payload)

		decoded, err := decodeAttrs(r)
		require.NoError(t, err)
		assert.Nil(t, decoded.Size)

		trailing, err := r.ReadUint32()
		require.NoError(t, err)
		assert.Equal(t, uint32(0xCAFEBABE), trailing)
	})

	t.Run("TruncatedRecordReportsError", func(t *testing.T) {
		// Flags promise a size field the payload does not carry.
		r := wire.NewReader([]byte{0, 0, 0, 1, 0, 0})
		_, err := decodeAttrs(r)
		require.Error(t, err)
		assert.ErrorIs(t, err, wire.ErrTruncated)
	})
}
