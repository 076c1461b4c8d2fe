package sftp

import (
	"context"

	"github.com/LazuliKao/SFTPServer/internal/protocol/sftp/wire"
)

// handleRename processes SSH_FXP_RENAME: string oldpath, string newpath.
func (s *Session) handleRename(ctx context.Context, id uint32, r *wire.Reader) error {
	oldpath, err := r.ReadString()
	if err != nil {
		return err
	}
	newpath, err := r.ReadString()
	if err != nil {
		return err
	}

	oldResolved, err := s.resolve(oldpath)
	if err != nil {
		return err
	}
	newResolved, err := s.resolve(newpath)
	if err != nil {
		return err
	}

	if err := s.backend.Rename(ctx, oldResolved, newResolved); err != nil {
		return err
	}

	s.writeStatus(id, StatusOK, "")
	return nil
}
