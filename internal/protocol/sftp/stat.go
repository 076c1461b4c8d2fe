package sftp

import (
	"context"

	"github.com/LazuliKao/SFTPServer/internal/protocol/sftp/wire"
)

// handleStat processes SSH_FXP_STAT: attributes of a path, following
// symlinks. Success response: ATTRS.
func (s *Session) handleStat(ctx context.Context, id uint32, r *wire.Reader) error {
	path, err := r.ReadString()
	if err != nil {
		return err
	}
	resolved, err := s.resolve(path)
	if err != nil {
		return err
	}

	attrs, err := s.backend.Stat(ctx, resolved)
	if err != nil {
		return err
	}

	s.writeAttrs(id, attrs)
	return nil
}

// handleLstat processes SSH_FXP_LSTAT: like STAT but does not follow a
// trailing symlink.
func (s *Session) handleLstat(ctx context.Context, id uint32, r *wire.Reader) error {
	path, err := r.ReadString()
	if err != nil {
		return err
	}
	resolved, err := s.resolve(path)
	if err != nil {
		return err
	}

	attrs, err := s.backend.Lstat(ctx, resolved)
	if err != nil {
		return err
	}

	s.writeAttrs(id, attrs)
	return nil
}
