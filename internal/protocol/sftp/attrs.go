package sftp

import (
	"github.com/LazuliKao/SFTPServer/internal/protocol/sftp/wire"
	"github.com/LazuliKao/SFTPServer/pkg/backend"
)

// Attribute record codec (draft-ietf-secsh-filexfer-02, section 5).
//
// Wire layout: a u32 presence bitmask followed by the present field groups
// in a fixed order:
//
//	size        u64   (ATTR_SIZE)
//	uid, gid    u32   (ATTR_UIDGID, always both)
//	permissions u32   (ATTR_PERMISSIONS)
//	atime,mtime u32   (ATTR_ACMODTIME, always both)
//
// Presence bits are derived from which fields the backend populated; they
// are never taken from an attribute struct, so an encode/decode round trip
// reproduces exactly the populated subset.

// encodeAttrs appends an attribute record to the pending response frame.
func encodeAttrs(w *wire.Writer, attrs *backend.FileAttributes) {
	if attrs == nil {
		w.WriteUint32(0)
		return
	}

	var flags uint32
	if attrs.Size != nil {
		flags |= attrFlagSize
	}
	if attrs.UID != nil && attrs.GID != nil {
		flags |= attrFlagUIDGID
	}
	if attrs.Permissions != nil {
		flags |= attrFlagPermissions
	}
	if attrs.AccessTime != nil && attrs.ModifyTime != nil {
		flags |= attrFlagAcModTime
	}

	w.WriteUint32(flags)
	if flags&attrFlagSize != 0 {
		w.WriteUint64(*attrs.Size)
	}
	if flags&attrFlagUIDGID != 0 {
		w.WriteUint32(*attrs.UID)
		w.WriteUint32(*attrs.GID)
	}
	if flags&attrFlagPermissions != 0 {
		w.WriteUint32(*attrs.Permissions)
	}
	if flags&attrFlagAcModTime != 0 {
		w.WriteUint32(*attrs.AccessTime)
		w.WriteUint32(*attrs.ModifyTime)
	}
}

// decodeAttrs reads an attribute record from a request frame.
func decodeAttrs(r *wire.Reader) (*backend.FileAttributes, error) {
	flags, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}

	attrs := &backend.FileAttributes{}

	if flags&attrFlagSize != 0 {
		size, err := r.ReadUint64()
		if err != nil {
			return nil, err
		}
		attrs.Size = &size
	}
	if flags&attrFlagUIDGID != 0 {
		uid, err := r.ReadUint32()
		if err != nil {
			return nil, err
		}
		gid, err := r.ReadUint32()
		if err != nil {
			return nil, err
		}
		attrs.UID = &uid
		attrs.GID = &gid
	}
	if flags&attrFlagPermissions != 0 {
		perm, err := r.ReadUint32()
		if err != nil {
			return nil, err
		}
		attrs.Permissions = &perm
	}
	if flags&attrFlagAcModTime != 0 {
		atime, err := r.ReadUint32()
		if err != nil {
			return nil, err
		}
		mtime, err := r.ReadUint32()
		if err != nil {
			return nil, err
		}
		attrs.AccessTime = &atime
		attrs.ModifyTime = &mtime
	}

	// Extended attribute pairs are recognized but not interpreted; they are
	// consumed so the frame stays aligned for any trailing fields.
	if flags&attrFlagExtended != 0 {
		count, err := r.ReadUint32()
		if err != nil {
			return nil, err
		}
		for range count {
			if _, err := r.ReadString(); err != nil {
				return nil, err
			}
			if _, err := r.ReadString(); err != nil {
				return nil, err
			}
		}
	}

	return attrs, nil
}
