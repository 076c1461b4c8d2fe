package sftp

import (
	"context"

	"github.com/LazuliKao/SFTPServer/internal/protocol/sftp/wire"
	"github.com/LazuliKao/SFTPServer/pkg/backend"
)

// handleClose processes SSH_FXP_CLOSE: releases a file or directory handle.
func (s *Session) handleClose(ctx context.Context, id uint32, r *wire.Reader) error {
	handle, err := r.ReadString()
	if err != nil {
		return err
	}

	if err := s.backend.Close(ctx, backend.Handle(handle)); err != nil {
		return err
	}

	s.writeStatus(id, StatusOK, "")
	return nil
}
