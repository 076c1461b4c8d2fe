// Package sftp implements the server side of the SFTP version 3 protocol
// (draft-ietf-secsh-filexfer-02) over an arbitrary ordered, reliable byte
// stream.
//
// The package owns the protocol engine only: framing, version negotiation,
// request dispatch, and status encoding. Storage is delegated to a
// pkg/backend implementation; the transport (normally an SSH channel or a
// secured tunnel) is provided by the embedding host.
package sftp

// ProtocolVersion is the highest protocol version this engine speaks. The
// negotiated version for a connection is min(clientVersion, ProtocolVersion)
// and never changes afterwards.
const ProtocolVersion = 3

// Request types (client to server).
// Values per draft-ietf-secsh-filexfer-02, section 3.
const (
	FxpInit     = 1
	FxpVersion  = 2
	FxpOpen     = 3
	FxpClose    = 4
	FxpRead     = 5
	FxpWrite    = 6
	FxpLstat    = 7
	FxpFstat    = 8
	FxpSetstat  = 9
	FxpFsetstat = 10
	FxpOpendir  = 11
	FxpReaddir  = 12
	FxpRemove   = 13
	FxpMkdir    = 14
	FxpRmdir    = 15
	FxpRealpath = 16
	FxpStat     = 17
	FxpRename   = 18
	FxpReadlink = 19
	FxpSymlink  = 20
)

// Response types (server to client).
const (
	FxpStatus = 101
	FxpHandle = 102
	FxpData   = 103
	FxpName   = 104
	FxpAttrs  = 105
)

// Extension mechanism.
const (
	FxpExtended      = 200
	FxpExtendedReply = 201
)

// Attribute presence flags (section 5). A bit is set on the wire only when
// the corresponding field group is present in the encoded record.
const (
	attrFlagSize        = 0x00000001
	attrFlagUIDGID      = 0x00000002
	attrFlagPermissions = 0x00000004
	attrFlagAcModTime   = 0x00000008
	attrFlagExtended    = 0x80000000
)

// Open pflags (section 6.3).
const (
	pflagRead      = 0x00000001
	pflagWrite     = 0x00000002
	pflagAppend    = 0x00000004
	pflagCreate    = 0x00000008
	pflagTruncate  = 0x00000010
	pflagExclusive = 0x00000020
)

// requestTypeNames maps request tags to names for logging.
var requestTypeNames = map[uint8]string{
	FxpInit:     "INIT",
	FxpOpen:     "OPEN",
	FxpClose:    "CLOSE",
	FxpRead:     "READ",
	FxpWrite:    "WRITE",
	FxpLstat:    "LSTAT",
	FxpFstat:    "FSTAT",
	FxpSetstat:  "SETSTAT",
	FxpFsetstat: "FSETSTAT",
	FxpOpendir:  "OPENDIR",
	FxpReaddir:  "READDIR",
	FxpRemove:   "REMOVE",
	FxpMkdir:    "MKDIR",
	FxpRmdir:    "RMDIR",
	FxpRealpath: "REALPATH",
	FxpStat:     "STAT",
	FxpRename:   "RENAME",
	FxpReadlink: "READLINK",
	FxpSymlink:  "SYMLINK",
	FxpExtended: "EXTENDED",
}

// RequestTypeName returns a printable name for a request tag.
func RequestTypeName(t uint8) string {
	if name, ok := requestTypeNames[t]; ok {
		return name
	}
	return "UNKNOWN"
}
