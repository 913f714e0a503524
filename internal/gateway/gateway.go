// Package gateway owns the client-facing listener and the supervisor
// lifecycle around it: accept loop, per-connection session workers, and an
// ordered graceful shutdown, grounded on the teacher's proxy accept-loop
// shape but collapsed to the single Mongo-wire listener spec §4.9 and §6
// describe (one endpoint, one backend, no db-type dispatch).
package gateway

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"docgate/internal/backend"
	"docgate/internal/config"
	"docgate/internal/metrics"
	"docgate/internal/session"
	"docgate/internal/sqltranslate"
)

// Server is the client-facing TCP listener and its session workers.
type Server struct {
	pool                *backend.Pool
	translator          sqltranslate.Translator
	metrics             *metrics.Collector
	tlsConfig           *tls.Config
	pingRequiresBackend bool

	listener net.Listener

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a gateway server. TLS is enabled only if both a cert and key
// are configured and load successfully; a failure to load disables TLS
// rather than aborting startup, matching the teacher's tolerant behavior.
func New(pool *backend.Pool, translator sqltranslate.Translator, m *metrics.Collector, lc config.ListenConfig, pingRequiresBackend bool) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		pool:                pool,
		translator:          translator,
		metrics:             m,
		pingRequiresBackend: pingRequiresBackend,
		ctx:                 ctx,
		cancel:              cancel,
	}

	if lc.TLSEnabled() {
		cert, err := tls.LoadX509KeyPair(lc.TLSCert, lc.TLSKey)
		if err != nil {
			slog.Warn("failed to load TLS cert/key, continuing without TLS", "err", err)
		} else {
			s.tlsConfig = &tls.Config{
				Certificates: []tls.Certificate{cert},
				MinVersion:   tls.VersionTLS12,
			}
			slog.Info("TLS enabled", "cert", lc.TLSCert)
		}
	}

	return s
}

// Listen starts accepting client connections on bind:port.
func (s *Server) Listen(bind string, port int) error {
	addr := fmt.Sprintf("%s:%d", bind, port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("gateway: listening on %s: %w", addr, err)
	}
	if s.tlsConfig != nil {
		ln = tls.NewListener(ln, s.tlsConfig)
	}
	s.listener = ln
	slog.Info("gateway listening", "addr", addr)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.acceptLoop(ln)
	}()

	return nil
}

func (s *Server) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
				slog.Warn("accept error", "err", err)
				continue
			}
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			w := session.New(conn, s.pool, s.translator, s.metrics, s.pingRequiresBackend)
			w.Run()
		}()
	}
}

// Stop closes the listener immediately (no new connections accepted), then
// waits up to deadline for in-flight sessions to drain on their own before
// returning. This is shutdown phase one of spec §4.9's ordering: listener
// closes, then workers drain, then the caller proceeds to stop the pool.
func (s *Server) Stop(deadline time.Duration) {
	s.cancel()
	if s.listener != nil {
		s.listener.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("gateway: all sessions drained")
	case <-time.After(deadline):
		slog.Warn("gateway: shutdown deadline reached with sessions still active")
	}
}
