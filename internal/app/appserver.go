package app

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"pingtrap/internal/core/accesslog"
	"pingtrap/internal/core/gateway"
	"pingtrap/internal/core/probe"
	"pingtrap/internal/core/response"
	"pingtrap/internal/service/web"
	"pingtrap/internal/shared/globalstate"
	"pingtrap/internal/shared/logger"
	"pingtrap/internal/shared/types"
)

const statsInterval = 2 * time.Second

// AppServer is the application's main struct.
type AppServer struct {
	cfg     *types.Config
	iniPath string

	accessLog *accesslog.Writer
	hub       *web.Hub
	gateway   *gateway.Gateway
	webServer *http.Server

	waitGroup sync.WaitGroup
	stopOnce  sync.Once
	stopCh    chan struct{}
	stopped   chan struct{}
}

// New wires every component from cfg. Nothing is bound until Start.
func New(cfg *types.Config, iniPath string) (*AppServer, error) {
	accessLog, err := accesslog.NewWriter(cfg.AccessLogConf.Dir)
	if err != nil {
		return nil, err
	}

	hub := web.NewHub()
	generator := response.NewGenerator(probe.New(cfg.ProbeConf))

	s := &AppServer{
		cfg:       cfg,
		iniPath:   iniPath,
		accessLog: accessLog,
		hub:       hub,
		gateway:   gateway.New(cfg, accessLog, generator, hub),
		stopCh:    make(chan struct{}),
		stopped:   make(chan struct{}),
	}
	return s, nil
}

// Start binds the gateway and the monitor and starts serving in the background.
// It returns the port the gateway listens on.
func (s *AppServer) Start() (int, error) {
	logger.Info().Str("config", s.iniPath).Str("access_log_dir", s.accessLog.Dir()).Msg("Starting server...")

	port, err := s.gateway.InitializeListener()
	if err != nil {
		return 0, err
	}

	s.waitGroup.Add(1)
	go func() {
		defer s.waitGroup.Done()
		s.gateway.Serve()
	}()

	go s.hub.Run()

	webServer, err := web.StartServer(&s.waitGroup, s.cfg, s.gateway, s.hub)
	if err != nil {
		// The monitor is optional; the gateway keeps running without it.
		logger.Error().Err(err).Msg("Failed to start monitor")
	}
	s.webServer = webServer

	s.waitGroup.Add(1)
	go s.statsLoop()

	globalstate.GlobalStatus.Set(globalstate.StatusListening)
	return port, nil
}

// Run is the server's blocking entry point.
func (s *AppServer) Run() error {
	if _, err := s.Start(); err != nil {
		return fmt.Errorf("server bootstrap failed: %w", err)
	}
	s.Wait()
	return nil
}

// Wait blocks until Stop has finished: background loops have exited, in-flight
// connections are drained and the access log is closed.
func (s *AppServer) Wait() {
	s.waitGroup.Wait()
	<-s.stopped
}

// Stop shuts down the monitor and the gateway, waits up to shutdown_timeout
// for in-flight connections and closes the access log.
func (s *AppServer) Stop() {
	s.stopOnce.Do(func() {
		defer close(s.stopped)
		logger.Info().Msg("Stopping server...")
		globalstate.GlobalStatus.Set(globalstate.StatusStopping)
		close(s.stopCh)

		if s.webServer != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := s.webServer.Shutdown(ctx); err != nil {
				logger.Warn().Err(err).Msg("Monitor did not shut down cleanly")
			}
			cancel()
		}
		s.hub.Close()
		s.gateway.Shutdown(time.Duration(s.cfg.CommonConf.ShutdownTimeout) * time.Second)

		if err := s.accessLog.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close access log")
		}
		globalstate.GlobalStatus.Set(globalstate.StatusStopped)
	})
}

// Gateway exposes the running gateway, mainly for its metrics.
func (s *AppServer) Gateway() *gateway.Gateway {
	return s.gateway
}

// statsLoop 定期汇总网关计数并广播给监控客户端
func (s *AppServer) statsLoop() {
	defer s.waitGroup.Done()
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	var last types.Metrics
	var lastTimestamp time.Time

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			current := s.gateway.GetMetrics()

			var readRate, writeRate uint64
			if !lastTimestamp.IsZero() {
				if elapsed := now.Sub(lastTimestamp).Seconds(); elapsed > 0 {
					readRate = uint64(float64(current.BytesRead-last.BytesRead) / elapsed)
					writeRate = uint64(float64(current.BytesWritten-last.BytesWritten) / elapsed)
				}
			}
			last = current
			lastTimestamp = now
			logger.Debug().
				Int64("active_connections", current.ActiveConnections).
				Int("websocket_clients", s.hub.ClientCount()).
				Msg("Dashboard stats published.")

			s.hub.BroadcastDashboardUpdate(&web.DashboardStats{
				Timestamp:         now,
				ActiveConnections: current.ActiveConnections,
				TotalRequests:     current.TotalRequests,
				ParseFailures:     current.ParseFailures,
				Probes:            current.Probes,
				ReadRate:          readRate,
				WriteRate:         writeRate,
			})
		case <-s.stopCh:
			return
		}
	}
}
