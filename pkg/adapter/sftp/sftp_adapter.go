// Package sftp implements the adapter.Adapter interface for the SFTP
// protocol engine. It owns the TCP listener and connection lifecycle; the
// per-connection protocol state machine lives in
// internal/protocol/sftp.
package sftp

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/LazuliKao/SFTPServer/internal/logger"
	"github.com/LazuliKao/SFTPServer/internal/ratelimiter"
	"github.com/LazuliKao/SFTPServer/pkg/backend"
	"github.com/LazuliKao/SFTPServer/pkg/metrics"
)

// SFTPConfig holds the adapter configuration. Zero timeout values are
// replaced with defaults by New.
type SFTPConfig struct {
	// Enabled controls whether the adapter is started.
	Enabled bool `mapstructure:"enabled"`

	// Port is the TCP port to listen on. Defaults to 2022.
	Port int `mapstructure:"port" validate:"min=0,max=65535"`

	// Root is the backend-namespace path sessions start under. Backends
	// resolve it inside their own storage scope, so for the local backend
	// it selects a subtree of the configured base directory.
	Root string `mapstructure:"root"`

	// Identity is the user every session runs as. The transport is plain
	// TCP, so there is no per-connection authentication to derive it from.
	Identity IdentityConfig `mapstructure:"identity"`

	// MaxConnections limits concurrent client connections. 0 = unlimited.
	MaxConnections int `mapstructure:"max_connections" validate:"min=0"`

	// AcceptRate limits how many new connections per second are accepted.
	// 0 = unlimited. Excess connection attempts wait in the accept queue.
	AcceptRate uint `mapstructure:"accept_rate"`

	// AcceptBurst is the accept rate burst capacity. Defaults to twice
	// the rate.
	AcceptBurst uint `mapstructure:"accept_burst"`

	// MaxPacketSize bounds accepted frame lengths. 0 uses the engine
	// default.
	MaxPacketSize uint32 `mapstructure:"max_packet_size"`

	// IdleTimeout closes connections with no request activity. 0 = none.
	IdleTimeout time.Duration `mapstructure:"idle_timeout" validate:"min=0"`

	// ShutdownTimeout bounds the graceful shutdown drain.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0"`
}

// IdentityConfig names the user sessions run as.
type IdentityConfig struct {
	Username string `mapstructure:"username"`
	UID      uint32 `mapstructure:"uid"`
	GID      uint32 `mapstructure:"gid"`
}

func (c *SFTPConfig) applyDefaults() {
	// Port 0 is kept as-is: the OS assigns an ephemeral port and Port()
	// reports it after Serve binds. The daemon-facing default of 2022
	// lives in pkg/config.
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 5 * time.Minute
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
	if c.AcceptBurst == 0 && c.AcceptRate > 0 {
		c.AcceptBurst = c.AcceptRate * 2
	}
	if c.Identity.Username == "" {
		c.Identity.Username = "nobody"
		c.Identity.UID = 65534
		c.Identity.GID = 65534
	}
}

func (c *SFTPConfig) validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d: must be 0-65535", c.Port)
	}
	if c.MaxConnections < 0 {
		return fmt.Errorf("invalid MaxConnections %d: must be >= 0", c.MaxConnections)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid ShutdownTimeout %v: must be > 0", c.ShutdownTimeout)
	}
	return nil
}

// SFTPAdapter accepts TCP connections and runs one protocol session per
// connection against the shared backend.
//
// Shutdown flow: context cancelled or Stop called, listener closed,
// in-flight request contexts cancelled, active connections drained up to
// ShutdownTimeout, stragglers force-closed.
type SFTPAdapter struct {
	config  SFTPConfig
	backend backend.Backend
	metrics metrics.SFTPMetrics

	listener      net.Listener
	acceptLimiter *ratelimiter.RateLimiter
	connSemaphore chan struct{}

	activeConns       sync.WaitGroup
	activeConnections sync.Map
	connCount         atomic.Int32

	shutdown       chan struct{}
	shutdownOnce   sync.Once
	shutdownCtx    context.Context
	cancelRequests context.CancelFunc
}

// New creates a stopped adapter. Call SetBackend, then Serve.
// Panics on an invalid configuration; that is a programming error, not a
// runtime condition.
func New(config SFTPConfig, sftpMetrics metrics.SFTPMetrics) *SFTPAdapter {
	config.applyDefaults()
	if err := config.validate(); err != nil {
		panic(fmt.Sprintf("invalid SFTP config: %v", err))
	}

	var connSemaphore chan struct{}
	if config.MaxConnections > 0 {
		connSemaphore = make(chan struct{}, config.MaxConnections)
		logger.Debug("SFTP connection limit: %d", config.MaxConnections)
	}

	var acceptLimiter *ratelimiter.RateLimiter
	if config.AcceptRate > 0 {
		acceptLimiter = ratelimiter.New(config.AcceptRate, config.AcceptBurst)
		logger.Debug("SFTP accept rate limit: %d/s burst %d", config.AcceptRate, config.AcceptBurst)
	}

	if sftpMetrics == nil {
		sftpMetrics = metrics.NoopSFTPMetrics{}
	}

	shutdownCtx, cancelRequests := context.WithCancel(context.Background())

	return &SFTPAdapter{
		config:         config,
		metrics:        sftpMetrics,
		acceptLimiter:  acceptLimiter,
		connSemaphore:  connSemaphore,
		shutdown:       make(chan struct{}),
		shutdownCtx:    shutdownCtx,
		cancelRequests: cancelRequests,
	}
}

// SetBackend injects the shared storage backend. Called once before Serve.
func (s *SFTPAdapter) SetBackend(b backend.Backend) {
	s.backend = b
}

// Serve accepts connections until the context is cancelled or the listener
// fails.
func (s *SFTPAdapter) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", s.config.Port))
	if err != nil {
		return fmt.Errorf("failed to create SFTP listener on port %d: %w", s.config.Port, err)
	}
	s.listener = listener
	if s.config.Port == 0 {
		s.config.Port = listener.Addr().(*net.TCPAddr).Port
	}
	logger.Info("SFTP server listening on port %d (root %q)", s.config.Port, s.config.Root)

	go func() {
		<-ctx.Done()
		logger.Info("SFTP shutdown signal received: %v", ctx.Err())
		s.initiateShutdown()
	}()

	for {
		if s.acceptLimiter != nil {
			if err := s.acceptLimiter.Wait(s.shutdownCtx); err != nil {
				return s.gracefulShutdown()
			}
		}

		if s.connSemaphore != nil {
			select {
			case s.connSemaphore <- struct{}{}:
			case <-s.shutdown:
				return s.gracefulShutdown()
			}
		}

		tcpConn, err := s.listener.Accept()
		if err != nil {
			if s.connSemaphore != nil {
				<-s.connSemaphore
			}
			select {
			case <-s.shutdown:
				return s.gracefulShutdown()
			default:
				logger.Debug("Error accepting SFTP connection: %v", err)
				continue
			}
		}

		s.activeConns.Add(1)
		s.connCount.Add(1)

		connAddr := tcpConn.RemoteAddr().String()
		s.activeConnections.Store(connAddr, tcpConn)

		s.metrics.RecordConnectionAccepted()
		s.metrics.SetActiveConnections(s.connCount.Load())
		logger.Debug("SFTP connection accepted from %s (active: %d)", connAddr, s.connCount.Load())

		conn := newConnection(s, tcpConn)
		go func(addr string, tcp net.Conn) {
			defer func() {
				s.activeConnections.Delete(addr)
				s.activeConns.Done()
				s.connCount.Add(-1)
				if s.connSemaphore != nil {
					<-s.connSemaphore
				}
				s.metrics.RecordConnectionClosed()
				s.metrics.SetActiveConnections(s.connCount.Load())
				logger.Debug("SFTP connection closed from %s (active: %d)", addr, s.connCount.Load())
			}()

			conn.Serve(s.shutdownCtx)
		}(connAddr, tcpConn)
	}
}

// initiateShutdown is idempotent: closes the listener and cancels all
// in-flight request contexts.
func (s *SFTPAdapter) initiateShutdown() {
	s.shutdownOnce.Do(func() {
		close(s.shutdown)
		if s.listener != nil {
			if err := s.listener.Close(); err != nil {
				logger.Debug("Error closing SFTP listener: %v", err)
			}
		}
		s.cancelRequests()
	})
}

// gracefulShutdown drains active connections up to ShutdownTimeout, then
// force-closes the remainder.
func (s *SFTPAdapter) gracefulShutdown() error {
	active := s.connCount.Load()
	logger.Info("SFTP graceful shutdown: waiting for %d active connection(s) (timeout: %v)",
		active, s.config.ShutdownTimeout)

	done := make(chan struct{})
	go func() {
		s.activeConns.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("SFTP graceful shutdown complete")
		return nil
	case <-time.After(s.config.ShutdownTimeout):
		remaining := s.connCount.Load()
		logger.Warn("SFTP shutdown timeout exceeded: %d connection(s) still active, forcing closure", remaining)
		s.forceCloseConnections()
		return fmt.Errorf("SFTP shutdown timeout: %d connections force-closed", remaining)
	}
}

func (s *SFTPAdapter) forceCloseConnections() {
	s.activeConnections.Range(func(key, value any) bool {
		conn := value.(net.Conn)
		if err := conn.Close(); err != nil {
			logger.Debug("Error force-closing connection to %s: %v", key, err)
		}
		return true
	})
}

// Stop initiates shutdown and waits for active connections within the
// context deadline. Safe to call multiple times and concurrently with
// Serve.
func (s *SFTPAdapter) Stop(ctx context.Context) error {
	s.initiateShutdown()

	if ctx == nil {
		return s.gracefulShutdown()
	}

	done := make(chan struct{})
	go func() {
		s.activeConns.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		logger.Warn("SFTP shutdown context cancelled with %d connection(s) still active", s.connCount.Load())
		return ctx.Err()
	}
}

// ActiveConnections reports the current connection count. Used by tests
// and monitoring.
func (s *SFTPAdapter) ActiveConnections() int32 {
	return s.connCount.Load()
}

// Port implements adapter.Adapter.
func (s *SFTPAdapter) Port() int {
	return s.config.Port
}

// Protocol implements adapter.Adapter.
func (s *SFTPAdapter) Protocol() string {
	return "SFTP"
}
