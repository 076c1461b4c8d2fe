package sftp

import (
	"context"

	"github.com/LazuliKao/SFTPServer/internal/protocol/sftp/wire"
	"github.com/LazuliKao/SFTPServer/pkg/backend"
)

// handleRealpath processes SSH_FXP_REALPATH.
//
// Clients probe their starting directory with an empty path or "."; both are
// normalized to "/" before resolution. The response is a single-entry NAME
// whose attributes are left empty, which is what version 3 clients expect.
func (s *Session) handleRealpath(ctx context.Context, id uint32, r *wire.Reader) error {
	path, err := r.ReadString()
	if err != nil {
		return err
	}
	if path == "" || path == "." {
		path = "/"
	}

	canonical, err := s.backend.Realpath(ctx, path)
	if err != nil {
		return err
	}

	s.writeName(id, []backend.DirEntry{{
		Name:     canonical,
		LongName: canonical,
		Attrs:    &backend.FileAttributes{},
	}})
	return nil
}
