package sftp

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAccessFlagsToOpenMode(t *testing.T) {
	tests := []struct {
		name   string
		pflags uint32
		want   int
	}{
		{"ReadOnly", pflagRead, os.O_RDONLY},
		{"WriteOnly", pflagWrite, os.O_WRONLY},
		{"ReadWrite", pflagRead | pflagWrite, os.O_RDWR},
		{"NeitherReadNorWriteFallsBackToReadOnly", 0, os.O_RDONLY},
		{"WriteCreate", pflagWrite | pflagCreate, os.O_WRONLY | os.O_CREATE},
		{"WriteCreateTruncate", pflagWrite | pflagCreate | pflagTruncate, os.O_WRONLY | os.O_CREATE | os.O_TRUNC},
		{"WriteCreateExclusive", pflagWrite | pflagCreate | pflagExclusive, os.O_WRONLY | os.O_CREATE | os.O_EXCL},
		{"WriteAppend", pflagWrite | pflagAppend, os.O_WRONLY | os.O_APPEND},
		{"ReadWriteAllModifiers", pflagRead | pflagWrite | pflagAppend | pflagCreate | pflagTruncate | pflagExclusive,
			os.O_RDWR | os.O_APPEND | os.O_CREATE | os.O_TRUNC | os.O_EXCL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, accessFlagsToOpenMode(tt.pflags))
		})
	}
}
