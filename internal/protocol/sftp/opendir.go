package sftp

import (
	"context"

	"github.com/LazuliKao/SFTPServer/internal/protocol/sftp/wire"
)

// handleOpendir processes SSH_FXP_OPENDIR: opens a directory cursor and
// returns its handle.
func (s *Session) handleOpendir(ctx context.Context, id uint32, r *wire.Reader) error {
	path, err := r.ReadString()
	if err != nil {
		return err
	}
	resolved, err := s.resolve(path)
	if err != nil {
		return err
	}

	handle, err := s.backend.Opendir(ctx, resolved)
	if err != nil {
		return err
	}

	s.writeHandle(id, handle)
	return nil
}
