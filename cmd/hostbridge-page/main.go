// Command hostbridge-page runs a frameless page session against a native host
// reached over stdio or a websocket, and reports what the host supports.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/machinefabric/hostbridge-go/config"
	"github.com/machinefabric/hostbridge-go/session"
)

func main() {
	cfg, err := config.Load(os.Getenv("HOSTBRIDGE_CONFIG"))
	if err != nil {
		slog.Error("load config failed", "error", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if cfg.DiagnosticLogging {
		level = slog.LevelDebug
	}
	// stdout may carry bridge frames, so logs go to stderr.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Bridge.Mode == "" {
		cfg.Bridge.Mode = config.BridgeModeStdio
	}
	bridge, err := cfg.DialBridge(ctx, logger)
	if err != nil {
		logger.Error("open bridge failed", "mode", cfg.Bridge.Mode, "error", err)
		os.Exit(1)
	}

	s := session.New(append(cfg.SessionOptions(logger), session.WithNativeBridge(bridge))...)
	_ = s.RegisterHandler("themeChange", func(args []json.RawMessage) {
		if len(args) > 0 {
			logger.Info("host theme changed", "theme", string(args[0]))
		}
	})

	runErr := make(chan error, 1)
	go func() { runErr <- bridge.Run(ctx) }()

	if err := s.Initialize(ctx); err != nil {
		logger.Error("initialize failed", "error", err)
		os.Exit(1)
	}
	rt := s.Runtime()
	logger.Info("session initialized",
		"frame_context", s.FrameContext(),
		"host_client_type", s.HostClientType(),
		"sdk_version", s.ClientSupportedSDKVersion(),
		"api_version", rt.APIVersion,
		"legacy", rt.IsLegacyTeams,
		"capabilities", rt.Supports.Paths())

	err = <-runErr
	s.Uninitialize()
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("bridge stopped", "error", err)
		os.Exit(1)
	}
}
