package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/netutil"

	"pingtrap/internal/core/accesslog"
	"pingtrap/internal/core/request"
	"pingtrap/internal/core/response"
	"pingtrap/internal/service/web"
	"pingtrap/internal/shared"
	"pingtrap/internal/shared/logger"
	"pingtrap/internal/shared/types"
)

const (
	maxAcceptDelay = time.Second
	// DefaultDrainTimeout bounds how long Close waits for in-flight connections.
	DefaultDrainTimeout = 5 * time.Second
)

// AccessLogger persists one record per well-formed request.
type AccessLogger interface {
	Write(peerAddr string, headers map[string]string, body string) (*accesslog.LogEntry, error)
}

// Gateway accepts connections and answers exactly one request on each.
type Gateway struct {
	listener     net.Listener
	listenerInfo *types.ListenerInfo
	cfg          *types.Config
	accessLog    AccessLogger
	generator    *response.Generator
	hub          *web.Hub
	closeOnce    sync.Once
	waitGroup    sync.WaitGroup

	// 所有连接处理共享的上下文，强制关闭时取消，用于终止仍在运行的探测进程
	baseCtx    context.Context
	cancelBase context.CancelFunc
	connsMu    sync.Mutex
	conns      map[net.Conn]struct{}

	activeConnections atomic.Int64
	totalRequests     atomic.Uint64
	parseFailures     atomic.Uint64
	probes            atomic.Uint64
	bytesRead         atomic.Uint64
	bytesWritten      atomic.Uint64
}

var _ types.MetricsProvider = (*Gateway)(nil)

func New(cfg *types.Config, accessLog AccessLogger, generator *response.Generator, hub *web.Hub) *Gateway {
	ctx, cancel := context.WithCancel(context.Background())
	return &Gateway{
		cfg:        cfg,
		accessLog:  accessLog,
		generator:  generator,
		hub:        hub,
		baseCtx:    ctx,
		cancelBase: cancel,
		conns:      make(map[net.Conn]struct{}),
	}
}

// InitializeListener 负责监听端口并准备服务，但不阻塞。
// 它返回实际监听的端口号。
func (g *Gateway) InitializeListener() (int, error) {
	listenAddr := g.cfg.LocalConf.ListenAddr
	lc := net.ListenConfig{Control: listenControl(g.cfg.LocalConf.ReusePort)}
	listener, err := lc.Listen(context.Background(), "tcp", listenAddr)
	if err != nil {
		return 0, fmt.Errorf("gateway failed to listen on %s: %w", listenAddr, err)
	}

	tcpAddr := listener.Addr().(*net.TCPAddr)
	g.listenerInfo = &types.ListenerInfo{
		Address: tcpAddr.IP.String(),
		Port:    tcpAddr.Port,
	}

	if limit := g.cfg.CommonConf.MaxConnections; limit > 0 {
		listener = netutil.LimitListener(listener, limit)
		logger.Info().Int("max_connections", limit).Msg("Gateway admission limit enabled.")
	}
	g.listener = listener

	logger.Info().Str("listen_addr", tcpAddr.String()).Bool("reuse_port", g.cfg.LocalConf.ReusePort).Msg(">>> Gateway is listening.")
	return g.listenerInfo.Port, nil
}

// Serve 启动阻塞的 accept 循环。必须在 InitializeListener 之后调用。
func (g *Gateway) Serve() {
	if g.listener == nil {
		logger.Error().Msg("Gateway.Serve() called before InitializeListener()")
		return
	}
	g.waitGroup.Add(1)
	g.acceptLoop()
}

// GetListenerInfo 返回网关的监听信息。
func (g *Gateway) GetListenerInfo() *types.ListenerInfo {
	return g.listenerInfo
}

// GetMetrics returns a snapshot of the gateway counters.
func (g *Gateway) GetMetrics() types.Metrics {
	return types.Metrics{
		ActiveConnections: g.activeConnections.Load(),
		TotalRequests:     g.totalRequests.Load(),
		ParseFailures:     g.parseFailures.Load(),
		Probes:            g.probes.Load(),
		BytesRead:         g.bytesRead.Load(),
		BytesWritten:      g.bytesWritten.Load(),
	}
}

func (g *Gateway) acceptLoop() {
	defer g.waitGroup.Done()
	var delay time.Duration
	for {
		conn, err := g.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				logger.Info().Msg("Gateway listener is closing.")
				return
			}
			// Back off a little so a persistent error (e.g. EMFILE) does not spin.
			if delay == 0 {
				delay = 5 * time.Millisecond
			} else if delay *= 2; delay > maxAcceptDelay {
				delay = maxAcceptDelay
			}
			logger.Warn().Err(err).Dur("retry_in", delay).Msg("Gateway failed to accept connection")
			time.Sleep(delay)
			continue
		}
		delay = 0
		g.waitGroup.Add(1)
		go g.handleConnection(conn)
	}
}

func (g *Gateway) handleConnection(conn net.Conn) {
	defer g.waitGroup.Done()
	g.activeConnections.Add(1)
	defer g.activeConnections.Add(-1)

	inboundConn := shared.NewCountedConn(conn, &g.bytesRead, &g.bytesWritten)
	defer inboundConn.Close()
	g.trackConn(conn, true)
	defer g.trackConn(conn, false)

	peerAddr := conn.RemoteAddr().String()
	l := log.With().Str("trace_id", uuid.NewString()).Str("peer_addr", peerAddr).Logger()
	ctx := l.WithContext(g.baseCtx)
	l.Debug().Msg("New connection.")

	if timeout := g.cfg.LocalConf.ReadTimeout; timeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(time.Duration(timeout) * time.Second)); err != nil {
			l.Warn().Err(err).Msg("Failed to set read deadline")
		}
	}

	// Exactly one read; nothing is accumulated across reads.
	buf := make([]byte, g.cfg.CommonConf.BufferSize)
	n, err := inboundConn.Read(buf)
	if n == 0 {
		if err == nil || errors.Is(err, io.EOF) {
			l.Info().Msg("Connection closed by peer.")
		} else {
			l.Warn().Err(err).Msg("Failed to read request")
		}
		return
	}
	g.totalRequests.Add(1)

	req, err := request.Parse(shared.DecodeLossy(buf[:n]))
	if err != nil {
		g.parseFailures.Add(1)
		l.Info().Err(err).Msg("Rejecting malformed request.")
		g.writeResponse(l, inboundConn, response.BadRequest(err))
		return
	}
	l.Info().Str("method", req.Method).Str("target", req.Target).Msg("Request received.")

	if entry, err := g.accessLog.Write(peerAddr, req.Headers, req.Body); err != nil {
		l.Warn().Err(err).Msg("Failed to write access log entry.")
	} else {
		g.hub.BroadcastConnectionLog(entry)
	}

	intent := response.Decide(req.Query, g.cfg.ProbeConf.QueryKey)
	if intent.Kind == response.KindProbe {
		g.probes.Add(1)
		l.Info().Str("probe_target", intent.Target).Msg("Running diagnostic probe.")
	}
	g.writeResponse(l, inboundConn, g.generator.Respond(ctx, intent))
}

func (g *Gateway) writeResponse(l zerolog.Logger, conn net.Conn, resp *response.Response) {
	if _, err := conn.Write(resp.Bytes()); err != nil {
		l.Warn().Err(err).Int("status", resp.Status).Msg("Failed to write response.")
		return
	}
	l.Debug().Int("status", resp.Status).Int("body_bytes", len(resp.Body)).Msg("Response sent.")
}

func (g *Gateway) trackConn(conn net.Conn, add bool) {
	g.connsMu.Lock()
	defer g.connsMu.Unlock()
	if add {
		g.conns[conn] = struct{}{}
	} else {
		delete(g.conns, conn)
	}
}

// Close stops accepting and waits up to DefaultDrainTimeout for in-flight
// connections to finish.
func (g *Gateway) Close() {
	g.Shutdown(DefaultDrainTimeout)
}

// Shutdown stops accepting and waits up to timeout for in-flight connections.
// Connections still open after that are closed and their probes cancelled,
// then Shutdown waits for the handlers to return. Only the first call has
// any effect.
func (g *Gateway) Shutdown(timeout time.Duration) {
	g.closeOnce.Do(func() {
		if g.listener != nil {
			g.listener.Close()
		}

		drained := make(chan struct{})
		go func() {
			g.waitGroup.Wait()
			close(drained)
		}()

		timer := time.NewTimer(timeout)
		defer timer.Stop()
		select {
		case <-drained:
		case <-timer.C:
			g.connsMu.Lock()
			remaining := len(g.conns)
			for conn := range g.conns {
				conn.Close()
			}
			g.connsMu.Unlock()
			logger.Warn().Int("connections", remaining).Dur("drain_timeout", timeout).Msg("Drain timed out, closing remaining connections.")
			g.cancelBase()
			<-drained
		}
		g.cancelBase()
		logger.Info().Msg("Gateway has been shut down")
	})
}
