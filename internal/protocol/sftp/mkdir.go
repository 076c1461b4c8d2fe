package sftp

import (
	"context"

	"github.com/LazuliKao/SFTPServer/internal/protocol/sftp/wire"
)

// handleMkdir processes SSH_FXP_MKDIR: creates a directory with the
// requested attributes (typically just permissions).
func (s *Session) handleMkdir(ctx context.Context, id uint32, r *wire.Reader) error {
	path, err := r.ReadString()
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

	if err := s.backend.Mkdir(ctx, resolved, attrs); err != nil {
		return err
	}

	s.writeStatus(id, StatusOK, "")
	return nil
}
