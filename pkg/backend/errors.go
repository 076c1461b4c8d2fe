package backend

import "github.com/LazuliKao/SFTPServer/internal/logger"

// Error represents a domain error from backend operations.
//
// These are business outcomes (file not found, permission denied, end of
// file) as opposed to infrastructure failures (broken socket, corrupted
// database). The protocol engine matches *Error explicitly: the code maps to
// a wire status code and the severity picks the log level, then the
// connection continues. Any other error becomes a generic FAILURE status.
type Error struct {
	// Code is the error category, translated to a wire status by the engine
	Code ErrorCode

	// Severity is the log level the engine reports this error at.
	// EOF during reads is Debug; a missing file is Info; an internal
	// inconsistency is Error.
	Severity logger.Level

	// Message is a human-readable error description
	Message string

	// Path is the filesystem path related to the error (if applicable)
	Path string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Path != "" {
		return e.Message + ": " + e.Path
	}
	return e.Message
}

// ErrorCode represents the category of a backend error.
//
// These are generic categories; the engine translates them to SFTP status
// codes. Keeping the enum protocol-agnostic mirrors the split between
// storage and protocol concerns.
type ErrorCode int

const (
	// ErrEOF signals end of file on Read or an exhausted directory cursor
	// on Readdir. Not a failure; the engine replies STATUS(EOF).
	ErrEOF ErrorCode = iota

	// ErrNotFound indicates the requested file or directory doesn't exist
	ErrNotFound

	// ErrPermissionDenied indicates the operation was not permitted
	ErrPermissionDenied

	// ErrInvalidHandle indicates the handle token is unknown or was closed
	ErrInvalidHandle

	// ErrBadMessage indicates the request carried invalid parameters
	ErrBadMessage

	// ErrNotSupported indicates the backend does not implement the operation
	ErrNotSupported

	// ErrFailure is the catch-all category for everything else
	ErrFailure
)

// Convenience constructors with the severities the categories normally
// carry. Callers needing a different severity build the struct directly.

func ErrorEOF() *Error {
	return &Error{Code: ErrEOF, Severity: logger.LevelDebug, Message: "end of file"}
}

func ErrorNotFound(path string) *Error {
	return &Error{Code: ErrNotFound, Severity: logger.LevelInfo, Message: "no such file", Path: path}
}

func ErrorPermissionDenied(path string) *Error {
	return &Error{Code: ErrPermissionDenied, Severity: logger.LevelInfo, Message: "permission denied", Path: path}
}

func ErrorInvalidHandle(handle Handle) *Error {
	return &Error{Code: ErrInvalidHandle, Severity: logger.LevelWarn, Message: "invalid handle", Path: string(handle)}
}

func ErrorBadMessage(msg string) *Error {
	return &Error{Code: ErrBadMessage, Severity: logger.LevelWarn, Message: msg}
}

func ErrorNotSupported(op string) *Error {
	return &Error{Code: ErrNotSupported, Severity: logger.LevelInfo, Message: "operation not supported: " + op}
}

func ErrorFailure(msg string) *Error {
	return &Error{Code: ErrFailure, Severity: logger.LevelError, Message: msg}
}
