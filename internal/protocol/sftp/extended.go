package sftp

import (
	"context"

	"github.com/LazuliKao/SFTPServer/internal/protocol/sftp/wire"
	"github.com/LazuliKao/SFTPServer/pkg/backend"
)

// handleExtended processes SSH_FXP_EXTENDED.
//
// This is the one deliberate break from the uniform decode-call-encode
// pattern. The engine reads only the extension name, contributes the
// EXTENDED_REPLY tag and the echoed request id to the pending response, and
// then hands the raw remainder of the request frame plus the pending
// response writer to the backend. The backend reads its own payload and
// appends its own reply payload; the dispatcher's single flush turns the
// result into exactly one well-formed frame.
//
// If the backend returns an error, the pending EXTENDED_REPLY is discarded
// and the client receives a STATUS response instead, like any other request.
func (s *Session) handleExtended(ctx context.Context, id uint32, r *wire.Reader) error {
	name, err := r.ReadString()
	if err != nil {
		return err
	}

	s.writer.WriteUint8(FxpExtendedReply)
	s.writer.WriteUint32(id)

	return s.backend.(backend.ExtendedCapable).Extended(ctx, name, r.Raw(), s.writer)
}
