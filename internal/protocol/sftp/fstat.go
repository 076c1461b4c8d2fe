package sftp

import (
	"context"

	"github.com/LazuliKao/SFTPServer/internal/protocol/sftp/wire"
	"github.com/LazuliKao/SFTPServer/pkg/backend"
)

// handleFstat processes SSH_FXP_FSTAT: attributes of an open handle.
func (s *Session) handleFstat(ctx context.Context, id uint32, r *wire.Reader) error {
	handle, err := r.ReadString()
	if err != nil {
		return err
	}

	attrs, err := s.backend.Fstat(ctx, backend.Handle(handle))
	if err != nil {
		return err
	}

	s.writeAttrs(id, attrs)
	return nil
}
