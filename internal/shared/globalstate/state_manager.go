package globalstate

import (
	"sync"
)

// Lifecycle phases reported through GlobalStatus.
const (
	StatusInitializing = "Initializing..."
	StatusListening    = "Listening"
	StatusStopping     = "Stopping"
	StatusStopped      = "Stopped"
)

// StatusManager 结构体用于管理进程的生命周期状态。
type StatusManager struct {
	mu     sync.RWMutex
	status string
}

// GlobalStatus is the process-wide lifecycle phase shown by the monitor.
var GlobalStatus = &StatusManager{status: StatusInitializing}

func (sm *StatusManager) Set(newStatus string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.status = newStatus
}

func (sm *StatusManager) Get() string {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.status
}
