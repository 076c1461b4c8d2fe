package sftp

import (
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/LazuliKao/SFTPServer/internal/logger"
	protocol "github.com/LazuliKao/SFTPServer/internal/protocol/sftp"
	"github.com/LazuliKao/SFTPServer/pkg/backend"
)

// SFTPConnection runs one protocol session over one TCP connection.
type SFTPConnection struct {
	server *SFTPAdapter
	conn   net.Conn
}

func newConnection(server *SFTPAdapter, conn net.Conn) *SFTPConnection {
	return &SFTPConnection{server: server, conn: conn}
}

// idleConn refreshes the read deadline before every read, so the idle
// timeout measures gaps between requests rather than total connection age.
type idleConn struct {
	net.Conn
	idle time.Duration
}

func (c *idleConn) Read(p []byte) (int, error) {
	if c.idle > 0 {
		if err := c.Conn.SetReadDeadline(time.Now().Add(c.idle)); err != nil {
			return 0, err
		}
	}
	return c.Conn.Read(p)
}

// Serve builds the session and runs its message loop. Panic recovery keeps
// one misbehaving connection from taking down the server.
func (c *SFTPConnection) Serve(ctx context.Context) {
	clientAddr := c.conn.RemoteAddr().String()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Panic in connection handler from %s: %v", clientAddr, r)
		}
		_ = c.conn.Close()
	}()

	stream := &idleConn{Conn: c.conn, idle: c.server.config.IdleTimeout}

	session := protocol.NewSession(stream, c.server.backend, protocol.Options{
		Identity: backend.Identity{
			Username: c.server.config.Identity.Username,
			UID:      c.server.config.Identity.UID,
			GID:      c.server.config.Identity.GID,
		},
		Root:          c.server.config.Root,
		MaxPacketSize: c.server.config.MaxPacketSize,
		Metrics:       c.server.metrics,
	})

	err := session.Serve(ctx)
	switch {
	case err == nil:
		logger.Debug("Session from %s ended cleanly", clientAddr)
	case errors.Is(err, context.Canceled):
		logger.Debug("Session from %s cancelled by shutdown", clientAddr)
	case isTimeout(err):
		logger.Debug("Session from %s idle timeout", clientAddr)
	case errors.Is(err, io.ErrUnexpectedEOF):
		logger.Debug("Session from %s dropped mid-frame", clientAddr)
	default:
		logger.Warn("Session from %s terminated: %v", clientAddr, err)
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
