package sftp

import (
	"context"
	"errors"
	"time"

	"github.com/LazuliKao/SFTPServer/internal/logger"
	"github.com/LazuliKao/SFTPServer/internal/protocol/sftp/wire"
	"github.com/LazuliKao/SFTPServer/pkg/backend"
)

// registerHandlers builds the dispatch table.
//
// The table is a fixed mapping from the closed request-type enumeration to
// handler functions. READLINK and SYMLINK are registered only when the
// backend implements the corresponding capability interface, and EXTENDED
// only for backend.ExtendedCapable; without the capability those tags fall
// through to the unsupported path exactly like unknown tags.
func (s *Session) registerHandlers() {
	s.handlers = map[uint8]handlerFunc{
		FxpOpen:     s.handleOpen,
		FxpClose:    s.handleClose,
		FxpRead:     s.handleRead,
		FxpWrite:    s.handleWrite,
		FxpLstat:    s.handleLstat,
		FxpFstat:    s.handleFstat,
		FxpSetstat:  s.handleSetstat,
		FxpFsetstat: s.handleFsetstat,
		FxpOpendir:  s.handleOpendir,
		FxpReaddir:  s.handleReaddir,
		FxpRemove:   s.handleRemove,
		FxpMkdir:    s.handleMkdir,
		FxpRmdir:    s.handleRmdir,
		FxpRealpath: s.handleRealpath,
		FxpStat:     s.handleStat,
		FxpRename:   s.handleRename,
	}

	if _, ok := s.backend.(backend.ReadlinkCapable); ok {
		s.handlers[FxpReadlink] = s.handleReadlink
	}
	if _, ok := s.backend.(backend.SymlinkCapable); ok {
		s.handlers[FxpSymlink] = s.handleSymlink
	}
	if _, ok := s.backend.(backend.ExtendedCapable); ok {
		s.handlers[FxpExtended] = s.handleExtended
	}
}

// dispatch routes one accepted request to its handler and guarantees exactly
// one response frame for it.
//
// Error contract:
//   - *backend.Error: logged at the severity the backend attached, answered
//     with the mapped status code; the connection continues
//   - wire.ErrTruncated: the request payload was shorter than its type
//     requires; the framing boundary is still intact (the frame was fully
//     buffered), so the reply is BAD_MESSAGE and the connection continues
//   - any other error: logged as unexpected, answered FAILURE
//
// The single flush per request happens here; a flush failure is a transport
// error and propagates out, terminating the connection.
func (s *Session) dispatch(ctx context.Context, reqType uint8, id uint32, r *wire.Reader) error {
	handler, ok := s.handlers[reqType]
	if !ok {
		logger.Debug("Unsupported request type %d (%s), id=%d", reqType, RequestTypeName(reqType), id)
		s.writeStatus(id, StatusOpUnsupported, "")
		return s.writer.Flush()
	}

	start := time.Now()
	err := handler(ctx, id, r)
	s.metrics.RecordRequest(RequestTypeName(reqType), time.Since(start), err)

	if err != nil {
		// Whatever the handler built so far is abandoned; the peer sees only
		// the STATUS frame.
		s.writer.Reset()

		var domainErr *backend.Error
		switch {
		case errors.As(err, &domainErr):
			logger.Log(domainErr.Severity, "%s id=%d: %v", RequestTypeName(reqType), id, domainErr)
			s.writeStatus(id, statusFromError(domainErr.Code), domainErr.Message)
		case errors.Is(err, wire.ErrTruncated):
			logger.Warn("%s id=%d: malformed request payload", RequestTypeName(reqType), id)
			s.writeStatus(id, StatusBadMessage, "")
		default:
			logger.Error("%s id=%d: unexpected error: %v", RequestTypeName(reqType), id, err)
			s.writeStatus(id, StatusFailure, "")
		}
	}

	return s.writer.Flush()
}
