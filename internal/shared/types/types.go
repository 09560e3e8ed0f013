package types

import (
	"net"
	"strconv"
)

// MetricsProvider 由 Gateway 实现，供监控服务查询实时计数。
type MetricsProvider interface {
	GetMetrics() Metrics
	GetListenerInfo() *ListenerInfo
}

func JoinHostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
