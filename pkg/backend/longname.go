package backend

import (
	"fmt"
	"strings"
	"time"
)

// FormatLongName renders the ls -l style line that directory listings carry
// next to each name. Clients display it verbatim, so the layout follows what
// sftp-server produces closely enough for column-aligned output.
func FormatLongName(name string, attrs *FileAttributes) string {
	var perm, owner, group string
	var size uint64
	mtime := time.Unix(0, 0)

	if attrs != nil {
		if attrs.Permissions != nil {
			perm = formatMode(*attrs.Permissions)
		}
		if attrs.UID != nil {
			owner = fmt.Sprintf("%d", *attrs.UID)
		}
		if attrs.GID != nil {
			group = fmt.Sprintf("%d", *attrs.GID)
		}
		if attrs.Size != nil {
			size = *attrs.Size
		}
		if attrs.ModifyTime != nil {
			mtime = time.Unix(int64(*attrs.ModifyTime), 0)
		}
	}
	if perm == "" {
		perm = "----------"
	}
	if owner == "" {
		owner = "0"
	}
	if group == "" {
		group = "0"
	}

	// ls prints the year instead of the time for entries older than six
	// months.
	var when string
	if time.Since(mtime) > 180*24*time.Hour {
		when = mtime.Format("Jan _2  2006")
	} else {
		when = mtime.Format("Jan _2 15:04")
	}

	return fmt.Sprintf("%s %3d %-8s %-8s %8d %s %s", perm, 1, owner, group, size, when, name)
}

func formatMode(mode uint32) string {
	var b strings.Builder

	switch mode & 0o170000 {
	case ModeDir:
		b.WriteByte('d')
	case ModeSymlink:
		b.WriteByte('l')
	default:
		b.WriteByte('-')
	}

	rwx := []byte("rwxrwxrwx")
	for i := 0; i < 9; i++ {
		if mode&(1<<uint(8-i)) != 0 {
			b.WriteByte(rwx[i])
		} else {
			b.WriteByte('-')
		}
	}
	return b.String()
}
