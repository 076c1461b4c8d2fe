package sftp

import (
	"context"

	"github.com/LazuliKao/SFTPServer/internal/protocol/sftp/wire"
	"github.com/LazuliKao/SFTPServer/pkg/backend"
)

// handleRead processes SSH_FXP_READ.
//
// Wire: string handle, u64 offset, u32 length.
//
// End of file is a backend-reported outcome, not an exception: the backend
// returns a domain error with code ErrEOF, which the dispatcher turns into
// STATUS(EOF) at debug severity. A DATA response is sent only when the
// backend produced bytes.
func (s *Session) handleRead(ctx context.Context, id uint32, r *wire.Reader) error {
	handle, err := r.ReadString()
	if err != nil {
		return err
	}
	offset, err := r.ReadUint64()
	if err != nil {
		return err
	}
	length, err := r.ReadUint32()
	if err != nil {
		return err
	}

	data, err := s.backend.Read(ctx, backend.Handle(handle), offset, length)
	if err != nil {
		return err
	}

	s.metrics.RecordBytesTransferred("read", int64(len(data)))
	s.writeData(id, data)
	return nil
}
