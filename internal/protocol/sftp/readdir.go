package sftp

import (
	"context"

	"github.com/LazuliKao/SFTPServer/internal/protocol/sftp/wire"
	"github.com/LazuliKao/SFTPServer/pkg/backend"
)

// handleReaddir processes SSH_FXP_READDIR.
//
// Clients call READDIR repeatedly on the same handle; the backend returns a
// batch of entries per call and a domain error with code ErrEOF once the
// cursor is exhausted, which becomes STATUS(EOF) rather than a NAME frame.
func (s *Session) handleReaddir(ctx context.Context, id uint32, r *wire.Reader) error {
	handle, err := r.ReadString()
	if err != nil {
		return err
	}

	entries, err := s.backend.Readdir(ctx, backend.Handle(handle))
	if err != nil {
		return err
	}

	s.writeName(id, entries)
	return nil
}
