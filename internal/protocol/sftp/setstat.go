package sftp

import (
	"context"

	"github.com/LazuliKao/SFTPServer/internal/protocol/sftp/wire"
	"github.com/LazuliKao/SFTPServer/pkg/backend"
)

// handleSetstat processes SSH_FXP_SETSTAT: applies the attribute fields
// present in the request to a path. Absent fields are left untouched.
func (s *Session) handleSetstat(ctx context.Context, id uint32, r *wire.Reader) error {
	path, err := r.ReadString()
	if err != nil {
		return err
	}
	attrs, err := decodeAttrs(r)
	if err != nil {
		return err
	}
	resolved, err := s.resolve(path)
	if err != nil {
		return err
	}

	if err := s.backend.Setstat(ctx, resolved, attrs); err != nil {
		return err
	}

	s.writeStatus(id, StatusOK, "")
	return nil
}

// handleFsetstat processes SSH_FXP_FSETSTAT: SETSTAT on an open handle.
func (s *Session) handleFsetstat(ctx context.Context, id uint32, r *wire.Reader) error {
	handle, err := r.ReadString()
	if err != nil {
		return err
	}
	attrs, err := decodeAttrs(r)
	if err != nil {
		return err
	}

	if err := s.backend.Fsetstat(ctx, backend.Handle(handle), attrs); err != nil {
		return err
	}

	s.writeStatus(id, StatusOK, "")
	return nil
}
