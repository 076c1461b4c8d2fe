package sftp

import "os"

// accessFlagsToOpenMode translates wire pflags into an os.O_* mask for the
// backend Open call.
//
// The read/write bits combine into the access mode; the remaining bits map
// one-to-one. A pflags value with neither READ nor WRITE is still passed
// through as read-only; backends reject it if they care.
func accessFlagsToOpenMode(pflags uint32) int {
	var mode int

	switch {
	case pflags&pflagRead != 0 && pflags&pflagWrite != 0:
		mode = os.O_RDWR
	case pflags&pflagWrite != 0:
		mode = os.O_WRONLY
	default:
		mode = os.O_RDONLY
	}

	if pflags&pflagAppend != 0 {
		mode |= os.O_APPEND
	}
	if pflags&pflagCreate != 0 {
		mode |= os.O_CREATE
	}
	if pflags&pflagTruncate != 0 {
		mode |= os.O_TRUNC
	}
	if pflags&pflagExclusive != 0 {
		mode |= os.O_EXCL
	}

	return mode
}
