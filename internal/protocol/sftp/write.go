package sftp

import (
	"context"

	"github.com/LazuliKao/SFTPServer/internal/protocol/sftp/wire"
	"github.com/LazuliKao/SFTPServer/pkg/backend"
)

// handleWrite processes SSH_FXP_WRITE.
//
// Wire: string handle, u64 offset, blob data. Replies STATUS(OK) only when
// the backend stored every byte; short writes and backend failures surface
// as non-OK statuses through the error path.
func (s *Session) handleWrite(ctx context.Context, id uint32, r *wire.Reader) error {
	handle, err := r.ReadString()
	if err != nil {
		return err
	}
	offset, err := r.ReadUint64()
	if err != nil {
		return err
	}
	data, err := r.ReadBytes()
	if err != nil {
		return err
	}

	if err := s.backend.Write(ctx, backend.Handle(handle), offset, data); err != nil {
		return err
	}

	s.metrics.RecordBytesTransferred("write", int64(len(data)))
	s.writeStatus(id, StatusOK, "")
	return nil
}
