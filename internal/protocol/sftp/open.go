package sftp

import (
	"context"

	"github.com/LazuliKao/SFTPServer/internal/protocol/sftp/wire"
)

// handleOpen processes SSH_FXP_OPEN.
//
// Wire: string path, u32 pflags, attrs. The pflags are translated to an
// os.O_* mask before the backend sees them; the attribute record carries the
// client's requested initial attributes (usually just permissions).
//
// Success response: HANDLE with the backend-minted token.
func (s *Session) handleOpen(ctx context.Context, id uint32, r *wire.Reader) error {
	path, err := r.ReadString()
	if err != nil {
		return err
	}
	pflags, err := r.ReadUint32()
	if err != nil {
		return err
	}
	attrs, err := decodeAttrs(r)
	if err != nil {
		return err
	}

	resolved, err := s.resolve(path)
	if err != nil {
		return err
	}

	handle, err := s.backend.Open(ctx, resolved, accessFlagsToOpenMode(pflags), attrs)
	if err != nil {
		return err
	}

	s.writeHandle(id, handle)
	return nil
}
