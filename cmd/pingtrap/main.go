package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"pingtrap/internal/app"
	"pingtrap/internal/shared/config"
	"pingtrap/internal/shared/logger"
	"pingtrap/internal/shared/types"
)

func main() {
	configDir := flag.String("configdir", "configs", "Path to config directory")
	flag.Parse()

	iniPath := filepath.Join(*configDir, "pingtrap.ini")

	// 1. 加载 .ini 配置
	cfg := types.DefaultConfig()
	if err := config.LoadIni(cfg, iniPath); err != nil {
		// Use standard fmt before logger is initialized.
		fmt.Fprintf(os.Stderr, "Fatal: Failed to load config file '%s': %v\n", iniPath, err)
		os.Exit(1)
	}

	// 2. 初始化日志系统
	if err := logger.Init(cfg.LogConf); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal: Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	// 3. 创建并运行服务器
	appServer, err := app.New(cfg, iniPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create server")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("Received signal, shutting down.")
		appServer.Stop()
	}()

	if err := appServer.Run(); err != nil {
		logger.Fatal().Err(err).Msg("Server exited")
	}
	m := appServer.Gateway().GetMetrics()
	logger.Info().Msgf("Server stopped after %d requests (%d malformed, %d probes).", m.TotalRequests, m.ParseFailures, m.Probes)
}
