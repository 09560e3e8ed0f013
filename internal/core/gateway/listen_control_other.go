//go:build !linux

package gateway

import (
	"syscall"

	"pingtrap/internal/shared/logger"
)

func listenControl(reusePort bool) func(network, address string, c syscall.RawConn) error {
	if reusePort {
		logger.Warn().Msg("reuse_port is only supported on linux, ignoring.")
	}
	return nil
}
