package sftp

import (
	"context"

	"github.com/LazuliKao/SFTPServer/internal/protocol/sftp/wire"
)

// handleRmdir processes SSH_FXP_RMDIR: removes an empty directory.
func (s *Session) handleRmdir(ctx context.Context, id uint32, r *wire.Reader) error {
	path, err := r.ReadString()
	if err != nil {
		return err
	}
	resolved, err := s.resolve(path)
	if err != nil {
		return err
	}

	if err := s.backend.Rmdir(ctx, resolved); err != nil {
		return err
	}

	s.writeStatus(id, StatusOK, "")
	return nil
}
