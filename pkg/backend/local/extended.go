package local

import (
	"context"
	"encoding/binary"
	"io"

	"github.com/LazuliKao/SFTPServer/pkg/backend"
)

// InitSession advertises the extensions this backend understands. The
// version string follows the convention used by sftp-server.
func (b *Backend) InitSession(ctx context.Context, clientVersion uint32, identity backend.Identity, clientExts []backend.Extension) ([]backend.Extension, error) {
	return []backend.Extension{
		{Name: "home-directory", Data: "1"},
	}, nil
}

// Extended dispatches vendor extension requests. The reply written to resp
// becomes the payload of an EXTENDED_REPLY frame.
func (b *Backend) Extended(ctx context.Context, name string, req io.Reader, resp io.Writer) error {
	switch name {
	case "home-directory":
		return b.extHomeDirectory(req, resp)
	default:
		return backend.ErrorNotSupported(name)
	}
}

// extHomeDirectory answers the home-directory extension from
// draft-ietf-secsh-filexfer-extensions. The request carries a username; the
// reply carries that user's home path. Sessions are jailed, so every user's
// home is the virtual root.
func (b *Backend) extHomeDirectory(req io.Reader, resp io.Writer) error {
	if _, err := readString(req); err != nil {
		return backend.ErrorBadMessage("home-directory: " + err.Error())
	}
	return writeString(resp, "/")
}

func readString(r io.Reader) (string, error) {
	var length uint32
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return "", err
	}
	// The declared length is attacker-controlled. Cap it well below the
	// packet limit before allocating.
	if length > 1<<16 {
		return "", io.ErrUnexpectedEOF
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func writeString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.BigEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}
