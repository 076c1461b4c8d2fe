package sftp

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/LazuliKao/SFTPServer/pkg/backend"
)

func TestStatusFromError(t *testing.T) {
	tests := []struct {
		name string
		code backend.ErrorCode
		want Status
	}{
		{"EOF", backend.ErrEOF, StatusEOF},
		{"NotFound", backend.ErrNotFound, StatusNoSuchFile},
		{"PermissionDenied", backend.ErrPermissionDenied, StatusPermissionDenied},
		{"InvalidHandle", backend.ErrInvalidHandle, StatusFailure},
		{"BadMessage", backend.ErrBadMessage, StatusBadMessage},
		{"NotSupported", backend.ErrNotSupported, StatusOpUnsupported},
		{"Failure", backend.ErrFailure, StatusFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFromError(tt.code))
		})
	}
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "Success", StatusOK.String())
	assert.Equal(t, "End of file", StatusEOF.String())
	assert.Equal(t, "No such file", StatusNoSuchFile.String())
	assert.Equal(t, "Operation unsupported", StatusOpUnsupported.String())
	assert.Equal(t, "Unknown status", Status(999).String())
}

func TestRequestTypeName(t *testing.T) {
	assert.Equal(t, "INIT", RequestTypeName(FxpInit))
	assert.Equal(t, "OPEN", RequestTypeName(FxpOpen))
	assert.Equal(t, "EXTENDED", RequestTypeName(FxpExtended))
	assert.Equal(t, "UNKNOWN", RequestTypeName(99))
}
