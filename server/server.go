// Copyright 2019 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/pingcap-incubator/tinycursor/pkg/logutil"
	"github.com/pingcap-incubator/tinycursor/server/audit"
	"github.com/pingcap-incubator/tinycursor/server/auth"
	"github.com/pingcap-incubator/tinycursor/server/config"
	"github.com/pingcap-incubator/tinycursor/server/cursor"
	"github.com/pingcap-incubator/tinycursor/server/session"
	"github.com/pingcap/log"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

const (
	serverMetricsInterval = 10 * time.Second
	httpShutdownTimeout   = 5 * time.Second
	cursorDrainTimeout    = 5 * time.Second
	cursorDrainInterval   = 10 * time.Millisecond
)

// HandlerBuilder builds the HTTP handler of a server.
type HandlerBuilder func(*Server) http.Handler

// Server is the cursor server.
type Server struct {
	// Server state.
	isServing atomic.Bool

	cfg *config.Config

	serverLoopCtx    context.Context
	serverLoopCancel func()
	serverLoopWg     sync.WaitGroup

	directory  *cursor.Directory
	sessions   *session.Cache
	recorder   *audit.Recorder
	authorizer *auth.Checker

	handlerBuilder HandlerBuilder
	httpServer     *http.Server
	addr           string

	// Zap logger
	lg       *zap.Logger
	logProps *log.ZapProperties
}

// CreateServer creates the UNINITIALIZED server with given configuration.
// Sessions and the HTTP API start with Run.
func CreateServer(cfg *config.Config, handlerBuilder HandlerBuilder) (*Server, error) {
	log.Info("cursor server config", zap.Reflect("config", cfg))
	s := &Server{
		cfg:            cfg,
		handlerBuilder: handlerBuilder,
		authorizer:     auth.NewChecker(cfg.Security.AuthEnabled),
		lg:             cfg.GetZapLogger(),
		logProps:       cfg.GetZapLogProperties(),
	}
	var next audit.Sink
	if cfg.Audit.Log {
		next = audit.NewLogger()
	}
	s.recorder = audit.NewRecorder(cfg.Audit.RecentEvents, next)
	return s, nil
}

// Run starts the server. It returns once the server is serving.
func (s *Server) Run(ctx context.Context) error {
	s.serverLoopCtx, s.serverLoopCancel = context.WithCancel(ctx)
	s.sessions = session.NewCache(s.serverLoopCtx, s.cfg.Session.TTL.Duration, s.cfg.Session.GCInterval.Duration)
	s.directory = cursor.NewDirectory(
		cursor.WithPartitions(s.cfg.Cursor.Partitions),
		cursor.WithIDAllocAttempts(s.cfg.Cursor.IDAllocMaxAttempts),
		cursor.WithCursorTimeout(s.cfg.Cursor.Timeout.Duration),
		cursor.WithSessionCache(s.sessions),
		cursor.WithAuditor(s.recorder),
		cursor.WithAuthorizer(s.authorizer),
	)

	if s.handlerBuilder != nil {
		if err := s.startHTTPServer(); err != nil {
			s.serverLoopCancel()
			return err
		}
	}
	s.startServerLoop()
	s.isServing.Store(true)
	log.Info("cursor server started", zap.String("name", s.cfg.Name), zap.String("status-addr", s.GetAddr()))
	return nil
}

func (s *Server) startHTTPServer() error {
	s.httpServer = &http.Server{
		Addr:    s.cfg.StatusAddr,
		Handler: s.handlerBuilder(s),
	}
	ln, err := net.Listen("tcp", s.cfg.StatusAddr)
	if err != nil {
		return errors.WithStack(err)
	}
	s.addr = ln.Addr().String()
	s.serverLoopWg.Add(1)
	go func() {
		defer logutil.LogPanic()
		defer s.serverLoopWg.Done()
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Error("http server stopped", zap.Error(err))
		}
	}()
	return nil
}

func (s *Server) startServerLoop() {
	s.serverLoopWg.Add(2)
	go s.cursorMonitorLoop()
	go s.serverMetricsLoop()
}

func (s *Server) stopServerLoop() {
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Warn("http server shutdown", zap.Error(err))
		}
		cancel()
	}
	s.serverLoopCancel()
	s.serverLoopWg.Wait()
}

// Close closes the server. Every cursor left is killed. A pinned cursor
// goes away when its holder releases the pin, so Close waits up to
// cursorDrainTimeout for handlers still running after the HTTP shutdown.
func (s *Server) Close() {
	if !s.isServing.CAS(true, false) {
		// server is already closed
		return
	}

	log.Info("closing server")
	s.stopServerLoop()

	op := cursor.NewOperation(context.Background(), nil)
	defer op.Finish()
	killed := s.killAllCursors(op)
	if left := s.drainCursors(op, cursorDrainTimeout); left != 0 {
		log.Error("cursors still pinned at close", zap.Int("cursors", left))
		return
	}
	s.directory.Close()
	log.Info("close server", zap.Int("killed-cursors", killed))
}

func (s *Server) killAllCursors(op *cursor.Operation) int {
	killed := 0
	for _, info := range s.directory.ActiveCursors() {
		if s.directory.KillCursor(op, info.ID, false) {
			killed++
		}
	}
	return killed
}

// drainCursors waits until every cursor is gone and returns how many are
// left after timeout. Cursors registered meanwhile are killed too.
func (s *Server) drainCursors(op *cursor.Operation, timeout time.Duration) int {
	deadline := time.Now().Add(timeout)
	for {
		left := s.directory.NumCursors()
		if left == 0 || time.Now().After(deadline) {
			return left
		}
		time.Sleep(cursorDrainInterval)
		s.killAllCursors(op)
	}
}

// IsClosed checks whether server is closed or not.
func (s *Server) IsClosed() bool {
	return !s.isServing.Load()
}

// Context returns the loop context of server.
func (s *Server) Context() context.Context {
	return s.serverLoopCtx
}

// cursorMonitorLoop destroys idle cursors and cursors of expired sessions.
func (s *Server) cursorMonitorLoop() {
	defer logutil.LogPanic()
	defer s.serverLoopWg.Done()

	ticker := time.NewTicker(s.cfg.Cursor.MonitorInterval.Duration)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.sweepCursors(time.Now())
		case <-s.serverLoopCtx.Done():
			log.Info("server is closed, exit cursor monitor")
			return
		}
	}
}

func (s *Server) sweepCursors(now time.Time) (timedOut, expired int) {
	start := time.Now()
	op := cursor.NewOperation(s.serverLoopCtx, nil)
	defer op.Finish()

	timedOut = s.directory.TimeoutCursors(op, now)
	expired = s.directory.KillCursorsWithMatchingSessions(op, func(id session.ID) bool {
		return !s.sessions.IsActive(id)
	})
	monitorCounter.WithLabelValues("timeout").Add(float64(timedOut))
	monitorCounter.WithLabelValues("session-expired").Add(float64(expired))
	monitorDuration.Observe(time.Since(start).Seconds())
	if timedOut > 0 || expired > 0 {
		log.Info("cursor monitor swept cursors",
			zap.Int("timed-out", timedOut),
			zap.Int("session-expired", expired))
	}
	return timedOut, expired
}

func (s *Server) serverMetricsLoop() {
	defer logutil.LogPanic()
	defer s.serverLoopWg.Done()

	ctx, cancel := context.WithCancel(s.serverLoopCtx)
	defer cancel()
	for {
		select {
		case <-time.After(serverMetricsInterval):
			s.collectMetrics()
		case <-ctx.Done():
			log.Info("server is closed, exit metrics loop")
			return
		}
	}
}

func (s *Server) collectMetrics() {
	cursorOpenGauge.WithLabelValues("global").Set(float64(s.directory.Global().NumCursors()))
	cursorOpenGauge.WithLabelValues("namespaced").Set(float64(s.directory.NumCursors() - s.directory.Global().NumCursors()))
	sessionGauge.Set(float64(s.sessions.Len()))
}

// GetAddr returns the address of the HTTP API.
func (s *Server) GetAddr() string {
	if s.addr != "" {
		return s.addr
	}
	return s.cfg.StatusAddr
}

// Name returns the name of the server.
func (s *Server) Name() string {
	return s.cfg.Name
}

// GetConfig gets the config information.
func (s *Server) GetConfig() *config.Config {
	return s.cfg.Clone()
}

// GetDirectory returns the cursor directory.
func (s *Server) GetDirectory() *cursor.Directory {
	return s.directory
}

// GetSessions returns the session liveness cache.
func (s *Server) GetSessions() *session.Cache {
	return s.sessions
}

// GetAuditRecorder returns the recent kill audit events.
func (s *Server) GetAuditRecorder() *audit.Recorder {
	return s.recorder
}

// NewOperation starts an operation on behalf of principal. The caller's
// session, if any, counts as used.
func (s *Server) NewOperation(ctx context.Context, principal *auth.Principal) *cursor.Operation {
	if principal != nil && principal.SessionID != nil {
		s.sessions.Vivify(*principal.SessionID)
	}
	return cursor.NewOperation(ctx, principal)
}

// SetLogLevel sets log level.
func (s *Server) SetLogLevel(level string) {
	s.cfg.Log.Level = level
	log.SetLevel(logutil.StringToZapLogLevel(level))
	log.Warn("log level changed", zap.String("level", log.GetLevel().String()))
}
