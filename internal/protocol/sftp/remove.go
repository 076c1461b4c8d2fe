package sftp

import (
	"context"

	"github.com/LazuliKao/SFTPServer/internal/protocol/sftp/wire"
)

// handleRemove processes SSH_FXP_REMOVE: deletes a file (not a directory).
func (s *Session) handleRemove(ctx context.Context, id uint32, r *wire.Reader) error {
	path, err := r.ReadString()
	if err != nil {
		return err
	}
	resolved, err := s.resolve(path)
	if err != nil {
		return err
	}

	if err := s.backend.Remove(ctx, resolved); err != nil {
		return err
	}

	s.writeStatus(id, StatusOK, "")
	return nil
}
