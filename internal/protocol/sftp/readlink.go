package sftp

import (
	"context"

	"github.com/LazuliKao/SFTPServer/internal/protocol/sftp/wire"
	"github.com/LazuliKao/SFTPServer/pkg/backend"
)

// handleReadlink processes SSH_FXP_READLINK. Only registered when the
// backend implements backend.ReadlinkCapable, so the type assertion here
// cannot fail.
func (s *Session) handleReadlink(ctx context.Context, id uint32, r *wire.Reader) error {
	path, err := r.ReadString()
	if err != nil {
		return err
	}
	resolved, err := s.resolve(path)
	if err != nil {
		return err
	}

	target, err := s.backend.(backend.ReadlinkCapable).Readlink(ctx, resolved)
	if err != nil {
		return err
	}

	s.writeName(id, []backend.DirEntry{{
		Name:     target,
		LongName: target,
		Attrs:    &backend.FileAttributes{},
	}})
	return nil
}
