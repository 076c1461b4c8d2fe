package sftp

import (
	"context"

	"github.com/LazuliKao/SFTPServer/internal/protocol/sftp/wire"
	"github.com/LazuliKao/SFTPServer/pkg/backend"
)

// handleSymlink processes SSH_FXP_SYMLINK.
//
// The wire carries the link target first and the link path second, the
// reverse of what a naive reading of "symlink(link, target)" suggests.
// Deployed clients depend on this order (it matches OpenSSH's sftp-server),
// so it must not be "fixed". The backend call receives (linkpath,
// targetpath). Only registered when the backend implements
// backend.SymlinkCapable.
func (s *Session) handleSymlink(ctx context.Context, id uint32, r *wire.Reader) error {
	targetpath, err := r.ReadString()
	if err != nil {
		return err
	}
	linkpath, err := r.ReadString()
	if err != nil {
		return err
	}

	linkResolved, err := s.resolve(linkpath)
	if err != nil {
		return err
	}

	// The target is stored verbatim, not resolved: relative targets must
	// stay relative inside the link.
	if err := s.backend.(backend.SymlinkCapable).Symlink(ctx, linkResolved, targetpath); err != nil {
		return err
	}

	s.writeStatus(id, StatusOK, "")
	return nil
}
