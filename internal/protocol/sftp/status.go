package sftp

import "github.com/LazuliKao/SFTPServer/pkg/backend"

// Status is a wire status code (draft-ietf-secsh-filexfer-02, section 7).
// The vocabulary is closed; open-ended backend failures are folded onto it.
type Status uint32

const (
	StatusOK               Status = 0
	StatusEOF              Status = 1
	StatusNoSuchFile       Status = 2
	StatusPermissionDenied Status = 3
	StatusFailure          Status = 4
	StatusBadMessage       Status = 5
	StatusNoConnection     Status = 6
	StatusConnectionLost   Status = 7
	StatusOpUnsupported    Status = 8
)

// defaultMessages holds the fixed human-readable text sent when a handler
// did not supply its own message. Only included on the wire for negotiated
// versions above 2.
var defaultMessages = map[Status]string{
	StatusOK:               "Success",
	StatusEOF:              "End of file",
	StatusNoSuchFile:       "No such file",
	StatusPermissionDenied: "Permission denied",
	StatusFailure:          "Failure",
	StatusBadMessage:       "Bad message",
	StatusNoConnection:     "No connection",
	StatusConnectionLost:   "Connection lost",
	StatusOpUnsupported:    "Operation unsupported",
}

// String returns the default message for the status.
func (s Status) String() string {
	if msg, ok := defaultMessages[s]; ok {
		return msg
	}
	return "Unknown status"
}

// statusFromError maps a backend error category to its wire status.
func statusFromError(code backend.ErrorCode) Status {
	switch code {
	case backend.ErrEOF:
		return StatusEOF
	case backend.ErrNotFound:
		return StatusNoSuchFile
	case backend.ErrPermissionDenied:
		return StatusPermissionDenied
	case backend.ErrInvalidHandle:
		return StatusFailure
	case backend.ErrBadMessage:
		return StatusBadMessage
	case backend.ErrNotSupported:
		return StatusOpUnsupported
	default:
		return StatusFailure
	}
}
