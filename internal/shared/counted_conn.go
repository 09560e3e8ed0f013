package shared

import (
	"net"
	"sync/atomic"
)

// CountedConn 是一个 net.Conn 的包装器，用于原子地统计读写字节数。
type CountedConn struct {
	net.Conn
	read    *atomic.Uint64
	written *atomic.Uint64
}

// NewCountedConn wraps conn so that every Read and Write adds to the given counters.
func NewCountedConn(conn net.Conn, read, written *atomic.Uint64) *CountedConn {
	return &CountedConn{
		Conn:    conn,
		read:    read,
		written: written,
	}
}

func (c *CountedConn) Read(b []byte) (int, error) {
	n, err := c.Conn.Read(b)
	if n > 0 {
		c.read.Add(uint64(n))
	}
	return n, err
}

func (c *CountedConn) Write(b []byte) (int, error) {
	n, err := c.Conn.Write(b)
	if n > 0 {
		c.written.Add(uint64(n))
	}
	return n, err
}
