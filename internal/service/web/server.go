package web

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"pingtrap/internal/shared/logger"
	"pingtrap/internal/shared/types"
)

// basicAuthMiddleware 检查 web_user 和 web_password 是否已配置。
// 如果配置了，它将强制执行 HTTP Basic Authentication。
func basicAuthMiddleware(next http.Handler, user, pass string) http.Handler {
	if user == "" || pass == "" {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || u != user || p != pass {
			w.Header().Set("WWW-Authenticate", `Basic realm="Restricted"`)
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte("Unauthorized.\n"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// NewMux builds the monitor routes.
func NewMux(cfg *types.Config, provider types.MetricsProvider, hub *Hub) *http.ServeMux {
	handler := NewHandler(provider, hub)
	mux := http.NewServeMux()

	webUser := cfg.LocalConf.WebUser
	webPassword := cfg.LocalConf.WebPassword

	mux.Handle("/api/status", basicAuthMiddleware(http.HandlerFunc(handler.HandleStatus), webUser, webPassword))
	mux.Handle("/metrics", basicAuthMiddleware(NewMetricsHandler(provider), webUser, webPassword))
	mux.Handle("/ws", basicAuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWs(hub, w, r)
	}), webUser, webPassword))
	return mux
}

// StartServer starts the monitor on web_port in the background. It returns nil
// when the monitor is disabled.
func StartServer(wg *sync.WaitGroup, cfg *types.Config, provider types.MetricsProvider, hub *Hub) (*http.Server, error) {
	if cfg.LocalConf.WebPort <= 0 {
		logger.Info().Msg("[WebServer] Monitor is disabled (web_port is 0 or not set).")
		return nil, nil
	}

	addr := fmt.Sprintf("0.0.0.0:%d", cfg.LocalConf.WebPort)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("monitor failed to listen on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           NewMux(cfg, provider, hub),
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger.Info().Str("listen_addr", listener.Addr().String()).Msg("Monitor is listening.")

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Monitor server error")
		}
		logger.Info().Msg("Monitor server stopped.")
	}()
	return srv, nil
}
