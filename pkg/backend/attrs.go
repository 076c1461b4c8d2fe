package backend

import (
	"io/fs"
	"time"
)

// FileAttributes is the protocol-agnostic attribute record carried between
// the engine and the backend.
//
// Fields are optional: a nil pointer means "not present". On the wire the
// engine derives presence flags from which fields are populated, so a
// backend controls exactly what the client sees by choosing which fields to
// fill in. UID/GID and AccessTime/ModifyTime travel as pairs on the wire;
// populate both or neither.
type FileAttributes struct {
	// Size is the file size in bytes.
	Size *uint64

	// UID and GID are the Unix owner and group.
	UID *uint32
	GID *uint32

	// Permissions holds the Unix mode bits, including the file type bits
	// (S_IFREG, S_IFDIR, S_IFLNK).
	Permissions *uint32

	// AccessTime and ModifyTime are seconds since the Unix epoch.
	AccessTime *uint32
	ModifyTime *uint32
}

// File type bits used in Permissions. Values match the Unix S_IF* constants
// clients expect in SFTP v3 permission fields.
const (
	ModeRegular uint32 = 0o100000
	ModeDir     uint32 = 0o040000
	ModeSymlink uint32 = 0o120000
	ModePerm    uint32 = 0o7777
)

// NewFileAttributes builds a fully populated record from fs.FileInfo.
func NewFileAttributes(info fs.FileInfo) *FileAttributes {
	size := uint64(info.Size())
	perm := uint32(info.Mode().Perm())
	switch {
	case info.IsDir():
		perm |= ModeDir
	case info.Mode()&fs.ModeSymlink != 0:
		perm |= ModeSymlink
	default:
		perm |= ModeRegular
	}
	mtime := uint32(info.ModTime().Unix())

	return &FileAttributes{
		Size:        &size,
		Permissions: &perm,
		AccessTime:  &mtime,
		ModifyTime:  &mtime,
	}
}

// IsDir reports whether Permissions is present and marks a directory.
func (a *FileAttributes) IsDir() bool {
	return a.Permissions != nil && *a.Permissions&ModeDir != 0
}

// ModTime returns ModifyTime as time.Time, or the zero time when absent.
func (a *FileAttributes) ModTime() time.Time {
	if a.ModifyTime == nil {
		return time.Time{}
	}
	return time.Unix(int64(*a.ModifyTime), 0)
}

// U64 returns a pointer to v. Helper for building attribute records.
func U64(v uint64) *uint64 { return &v }

// U32 returns a pointer to v. Helper for building attribute records.
func U32(v uint32) *uint32 { return &v }
