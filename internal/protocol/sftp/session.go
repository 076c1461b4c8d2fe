package sftp

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/LazuliKao/SFTPServer/internal/logger"
	"github.com/LazuliKao/SFTPServer/internal/protocol/sftp/wire"
	"github.com/LazuliKao/SFTPServer/pkg/backend"
	"github.com/LazuliKao/SFTPServer/pkg/metrics"
)

// DefaultMaxPacketSize bounds accepted frame lengths. Generous enough for a
// WRITE carrying a 256 KiB block plus its header.
const DefaultMaxPacketSize = 256*1024 + 1024

// ErrProtocolViolation is returned by Serve when the client sends a
// non-negotiation request before version negotiation completes. The
// connection is terminated rather than left desynchronized or hanging.
var ErrProtocolViolation = errors.New("sftp: request before version negotiation")

// Options configures a Session.
type Options struct {
	// Identity is the user the session runs as, forwarded to the backend's
	// InitSession hook. Supplied explicitly by the host; the engine performs
	// no ambient identity lookups.
	Identity backend.Identity

	// Root is the configured root passed to the backend's ResolvePath
	// together with every client-supplied path.
	Root string

	// MaxPacketSize bounds accepted frame lengths (0 = DefaultMaxPacketSize).
	MaxPacketSize uint32

	// Metrics receives per-request observations. Nil means no metrics.
	Metrics metrics.SFTPMetrics
}

// handlerFunc processes one request: it decodes the type-specific fields
// from the frame, makes exactly one backend call, and builds exactly one
// response in the session writer. Returning an error replaces whatever was
// built with a STATUS response.
type handlerFunc func(ctx context.Context, id uint32, r *wire.Reader) error

// Session is the protocol state machine for one connection.
//
// A connection owns exactly one Session and one negotiated version, created
// at connection start and discarded when the stream closes. The message loop
// is strictly sequential: read, decode, call the backend, encode, flush.
// Request N+1 is never touched before request N's response has been flushed,
// so there is no request-level pipelining and no shared mutable state to
// protect inside the engine.
type Session struct {
	stream  io.Reader
	writer  *wire.Writer
	backend backend.Backend

	identity      backend.Identity
	root          string
	maxPacketSize uint32
	metrics       metrics.SFTPMetrics

	// Negotiation state: version is valid only after initialized is true,
	// and immutable from then on.
	initialized bool
	version     uint32

	handlers map[uint8]handlerFunc
}

// NewSession creates the engine for one connection over the given stream.
// The stream is usually a net.Conn or an SSH channel; the engine itself is
// transport-agnostic.
func NewSession(stream io.ReadWriter, b backend.Backend, opts Options) *Session {
	maxSize := opts.MaxPacketSize
	if maxSize == 0 {
		maxSize = DefaultMaxPacketSize
	}
	sessionMetrics := opts.Metrics
	if sessionMetrics == nil {
		sessionMetrics = metrics.NoopSFTPMetrics{}
	}

	s := &Session{
		stream:        stream,
		writer:        wire.NewWriter(stream),
		backend:       b,
		identity:      opts.Identity,
		root:          opts.Root,
		maxPacketSize: maxSize,
		metrics:       sessionMetrics,
	}
	s.registerHandlers()

	return s
}

// Version returns the negotiated protocol version, or 0 before negotiation.
func (s *Session) Version() uint32 {
	if !s.initialized {
		return 0
	}
	return s.version
}

// Serve runs the message loop until the peer closes the stream, the context
// is cancelled, or a fatal error occurs.
//
// Returns nil on a clean close (EOF on a frame boundary or a zero-length
// frame). Any non-nil return means the connection must be torn down, not
// reused: the peer may have seen a short or missing reply.
func (s *Session) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		payload, err := wire.ReadFrame(s.stream, s.maxPacketSize)
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		if payload == nil {
			// Zero-length frame: clean peer-initiated close.
			return nil
		}

		if err := s.handleFrame(ctx, payload); err != nil {
			return err
		}
	}
}

// handleFrame processes one complete frame: negotiation while uninitialized,
// dispatch afterwards. Exactly one flush happens per accepted frame.
func (s *Session) handleFrame(ctx context.Context, payload []byte) error {
	r := wire.NewReader(payload)

	reqType, err := r.ReadUint8()
	if err != nil {
		return fmt.Errorf("read request type: %w", err)
	}

	if !s.initialized {
		if reqType != FxpInit {
			// The frame was fully consumed from the stream, so no
			// desynchronization is possible; terminating is a policy choice.
			// Replies cannot be version-gated before negotiation, so the
			// violation is fatal rather than answered.
			logger.Warn("Protocol violation: %s request before INIT", RequestTypeName(reqType))
			return fmt.Errorf("%w (got %s)", ErrProtocolViolation, RequestTypeName(reqType))
		}
		return s.handleInit(ctx, r)
	}

	requestID, err := r.ReadUint32()
	if err != nil {
		return fmt.Errorf("read request id: %w", err)
	}

	return s.dispatch(ctx, reqType, requestID, r)
}

// handleInit performs version negotiation.
//
// Wire format: u32 client version, then (string name, string data) extension
// pairs filling the rest of the frame. The negotiated version is
// min(clientVersion, ProtocolVersion); the backend's session-initialization
// hook observes the raw client version and returns the server extensions
// advertised in the VERSION response.
func (s *Session) handleInit(ctx context.Context, r *wire.Reader) error {
	clientVersion, err := r.ReadUint32()
	if err != nil {
		return fmt.Errorf("read client version: %w", err)
	}

	var clientExts []backend.Extension
	for r.Remaining() > 0 {
		name, err := r.ReadString()
		if err != nil {
			return fmt.Errorf("read extension name: %w", err)
		}
		data, err := r.ReadString()
		if err != nil {
			return fmt.Errorf("read extension data: %w", err)
		}
		clientExts = append(clientExts, backend.Extension{Name: name, Data: data})
	}

	version := min(clientVersion, ProtocolVersion)

	serverExts, err := s.backend.InitSession(ctx, clientVersion, s.identity, clientExts)
	if err != nil {
		return fmt.Errorf("session init: %w", err)
	}

	s.version = version
	s.initialized = true
	s.metrics.RecordSessionNegotiated(version)
	logger.Debug("Negotiated protocol version %d (client announced %d)", version, clientVersion)

	s.writer.WriteUint8(FxpVersion)
	s.writer.WriteUint32(version)
	for _, ext := range serverExts {
		s.writer.WriteString(ext.Name)
		s.writer.WriteString(ext.Data)
	}

	return s.writer.Flush()
}

// resolve passes the configured root and a client path to the backend's
// path resolution. The engine never mutates paths itself.
func (s *Session) resolve(path string) (string, error) {
	return s.backend.ResolvePath(s.root, path)
}

// ============================================================================
// Response encoding
// ============================================================================

// writeStatus builds a STATUS response. Message and language tag are present
// on the wire only when the negotiated version is above 2; the message falls
// back to the fixed per-status default when the handler supplied none.
func (s *Session) writeStatus(id uint32, status Status, message string) {
	s.writer.WriteUint8(FxpStatus)
	s.writer.WriteUint32(id)
	s.writer.WriteUint32(uint32(status))

	if s.version > 2 {
		if message == "" {
			message = status.String()
		}
		s.writer.WriteString(message)
		s.writer.WriteString("") // language tag
	}
}

func (s *Session) writeHandle(id uint32, handle backend.Handle) {
	s.writer.WriteUint8(FxpHandle)
	s.writer.WriteUint32(id)
	s.writer.WriteString(string(handle))
}

func (s *Session) writeData(id uint32, data []byte) {
	s.writer.WriteUint8(FxpData)
	s.writer.WriteUint32(id)
	s.writer.WriteBytes(data)
}

func (s *Session) writeAttrs(id uint32, attrs *backend.FileAttributes) {
	s.writer.WriteUint8(FxpAttrs)
	s.writer.WriteUint32(id)
	encodeAttrs(s.writer, attrs)
}

func (s *Session) writeName(id uint32, entries []backend.DirEntry) {
	s.writer.WriteUint8(FxpName)
	s.writer.WriteUint32(id)
	s.writer.WriteUint32(uint32(len(entries)))
	for _, entry := range entries {
		s.writer.WriteString(entry.Name)
		s.writer.WriteString(entry.LongName)
		encodeAttrs(s.writer, entry.Attrs)
	}
}
