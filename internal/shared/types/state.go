package types

// ListenerInfo holds the runtime listening info of the gateway.
type ListenerInfo struct {
	Address string `json:"address"`
	Port    int    `json:"port"`
}

func (l *ListenerInfo) String() string {
	if l == nil {
		return ""
	}
	return JoinHostPort(l.Address, l.Port)
}

// Metrics is a point-in-time snapshot of the gateway counters.
type Metrics struct {
	ActiveConnections int64  `json:"active_connections"`
	TotalRequests     uint64 `json:"total_requests"`
	ParseFailures     uint64 `json:"parse_failures"`
	Probes            uint64 `json:"probes"`
	BytesRead         uint64 `json:"bytes_read"`
	BytesWritten      uint64 `json:"bytes_written"`
}
