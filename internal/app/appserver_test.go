package app

import (
	"bufio"
	"io"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"pingtrap/internal/core/accesslog"
	"pingtrap/internal/shared/globalstate"
	"pingtrap/internal/shared/types"
)

func TestAppServer_StartServeStop(t *testing.T) {
	if _, err := exec.LookPath("echo"); err != nil {
		t.Skipf("echo not available: %v", err)
	}

	cfg := types.DefaultConfig()
	cfg.ListenAddr = "127.0.0.1:0"
	cfg.AccessLogConf.Dir = filepath.Join(t.TempDir(), "logs")
	cfg.ProbeConf.Command = "echo"
	cfg.ProbeConf.Args = []string{"reply from"}

	s, err := New(cfg, "test.ini")
	if err != nil {
		t.Fatalf("New() returned an error: %v", err)
	}
	port, err := s.Start()
	if err != nil {
		t.Fatalf("Start() returned an error: %v", err)
	}
	if globalstate.GlobalStatus.Get() != globalstate.StatusListening {
		t.Errorf("Expected status %q, got %q", globalstate.StatusListening, globalstate.GlobalStatus.Get())
	}

	conn, err := net.Dial("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}
	conn.SetDeadline(time.Now().Add(10 * time.Second))
	conn.Write([]byte("GET /?ping=127.0.0.1 HTTP/1.1\r\nHost: pingtrap\r\n\r\n"))
	reply, err := io.ReadAll(conn)
	conn.Close()
	if err != nil {
		t.Fatalf("failed to read reply: %v", err)
	}
	if !strings.HasSuffix(string(reply), "\r\n\r\nreply from 127.0.0.1\n") {
		t.Errorf("Expected the probe output, got %q", reply)
	}

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		s.Wait()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(10 * time.Second):
		t.Fatal("Stop() did not return")
	}
	if globalstate.GlobalStatus.Get() != globalstate.StatusStopped {
		t.Errorf("Expected status %q, got %q", globalstate.StatusStopped, globalstate.GlobalStatus.Get())
	}

	file, err := os.Open(filepath.Join(cfg.AccessLogConf.Dir, accesslog.FileName(time.Now())))
	if err != nil {
		t.Fatalf("access log missing: %v", err)
	}
	defer file.Close()
	lines := 0
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines++
		if !strings.Contains(scanner.Text(), `"Host":"pingtrap"`) {
			t.Errorf("Unexpected log line: %s", scanner.Text())
		}
	}
	if lines != 1 {
		t.Errorf("Expected 1 log line, got %d", lines)
	}
}

func TestAppServer_StartBindFailure(t *testing.T) {
	occupied, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	defer occupied.Close()

	cfg := types.DefaultConfig()
	cfg.ListenAddr = occupied.Addr().String()
	cfg.AccessLogConf.Dir = t.TempDir()

	s, err := New(cfg, "test.ini")
	if err != nil {
		t.Fatalf("New() returned an error: %v", err)
	}
	if err := s.Run(); err == nil {
		t.Error("Expected Run() to fail on an occupied address")
	}
}

func startTestServer(t *testing.T, mutate func(cfg *types.Config)) (*AppServer, net.Conn) {
	t.Helper()
	cfg := types.DefaultConfig()
	cfg.ListenAddr = "127.0.0.1:0"
	cfg.AccessLogConf.Dir = t.TempDir()
	mutate(cfg)

	s, err := New(cfg, "test.ini")
	if err != nil {
		t.Fatalf("New() returned an error: %v", err)
	}
	port, err := s.Start()
	if err != nil {
		t.Fatalf("Start() returned an error: %v", err)
	}
	conn, err := net.Dial("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return s, conn
}

// stopAndWait calls Stop and Wait the way main does and fails if Wait does
// not return within limit.
func stopAndWait(t *testing.T, s *AppServer, limit time.Duration) {
	t.Helper()
	go s.Stop()
	waited := make(chan struct{})
	go func() {
		s.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-time.After(limit):
		t.Fatal("Wait() did not return")
	}
}

func TestAppServer_StopDrainsInFlightRequest(t *testing.T) {
	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skipf("sleep not available: %v", err)
	}
	s, conn := startTestServer(t, func(cfg *types.Config) {
		cfg.ProbeConf.Command = "sleep"
		cfg.ProbeConf.Args = nil
		cfg.CommonConf.ShutdownTimeout = 10
	})

	conn.SetDeadline(time.Now().Add(15 * time.Second))
	if _, err := conn.Write([]byte("GET /?ping=1 HTTP/1.1\r\n\r\n")); err != nil {
		t.Fatalf("failed to write request: %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for s.Gateway().GetMetrics().Probes == 0 {
		if time.Now().After(deadline) {
			t.Fatal("diagnostic never started")
		}
		time.Sleep(10 * time.Millisecond)
	}

	stopAndWait(t, s, 15*time.Second)

	if n := s.Gateway().GetMetrics().ActiveConnections; n != 0 {
		t.Errorf("Wait() returned with %d active connections", n)
	}
	if globalstate.GlobalStatus.Get() != globalstate.StatusStopped {
		t.Errorf("Expected status %q after Wait(), got %q", globalstate.StatusStopped, globalstate.GlobalStatus.Get())
	}
	reply, _ := io.ReadAll(conn)
	if !strings.HasPrefix(string(reply), "HTTP/1.1 200 OK\r\n") {
		t.Errorf("Expected the in-flight request to be answered, got %q", reply)
	}
}

func TestAppServer_StopBoundsStalledPeer(t *testing.T) {
	s, conn := startTestServer(t, func(cfg *types.Config) {
		cfg.CommonConf.ShutdownTimeout = 1
	})

	deadline := time.Now().Add(5 * time.Second)
	for s.Gateway().GetMetrics().ActiveConnections == 0 {
		if time.Now().After(deadline) {
			t.Fatal("connection was never accepted")
		}
		time.Sleep(10 * time.Millisecond)
	}

	stopAndWait(t, s, 10*time.Second)

	if globalstate.GlobalStatus.Get() != globalstate.StatusStopped {
		t.Errorf("Expected status %q, got %q", globalstate.StatusStopped, globalstate.GlobalStatus.Get())
	}
	conn.SetDeadline(time.Now().Add(5 * time.Second))
	if reply, _ := io.ReadAll(conn); len(reply) != 0 {
		t.Errorf("Expected no reply to the stalled client, got %q", reply)
	}
}
