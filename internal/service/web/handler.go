package web

import (
	"encoding/json"
	"net/http"

	"pingtrap/internal/shared/globalstate"
	"pingtrap/internal/shared/types"
)

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	GlobalStatus     string `json:"global_status"`
	ListenAddr       string `json:"listen_addr"`
	WebsocketClients int    `json:"websocket_clients"`
	types.Metrics
}

// Handler serves the monitor's JSON API.
type Handler struct {
	provider types.MetricsProvider
	hub      *Hub
}

func NewHandler(provider types.MetricsProvider, hub *Hub) *Handler {
	return &Handler{
		provider: provider,
		hub:      hub,
	}
}

// HandleStatus 处理 GET /api/status 请求，返回网关的实时计数。
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := StatusResponse{
		GlobalStatus: globalstate.GlobalStatus.Get(),
		ListenAddr:   h.provider.GetListenerInfo().String(),
		Metrics:      h.provider.GetMetrics(),
	}
	if h.hub != nil {
		resp.WebsocketClients = h.hub.ClientCount()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
