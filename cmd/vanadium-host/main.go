// Command vanadium-host runs the host side of a Vanadium outsourced-memory
// execution: it serves page-fault and message-channel requests from a
// connected device over TCP or WebSocket, backed by the full Code and Data
// segment contents described by a V-App manifest.
//
// Usage:
//
//	vanadium-host -manifest app.manifest -code app.code -data app.data
//
// Flags:
//
//	-transport    device transport: tcp or ws (default: tcp)
//	-listen       listen address (default: 127.0.0.1:7700)
//	-manifest     path to the V-App manifest
//	-code         path to the raw Code segment contents
//	-data         path to the raw Data segment contents
//	-device-key   hex-encoded device registration key
//	-chunk-bytes  max proof/buffer chunk bytes per exchange (0 = default)
//	-stack-size   V-App stack segment size in bytes
//	-loglevel     log level: debug, info, warn, error
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/vanadium-project/vanadium-go/host"
	"github.com/vanadium-project/vanadium-go/log"
	"github.com/vanadium-project/vanadium-go/transport"
	"github.com/vanadium-project/vanadium-go/wire"
)

var version = "v0.1.0-dev"

func main() {
	os.Exit(run(os.Args[1:]))
}

// run is the actual entry point, returning an exit code. Accepts CLI
// arguments (without the program name) so it can be tested in isolation.
func run(args []string) int {
	cfg, exit, code := parseFlags(args)
	if exit {
		return code
	}

	level, err := parseLogLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	log.SetDefault(log.New(level))
	logger := log.Default().Module("main")

	logger.Info("vanadium-host starting",
		"version", version,
		"transport", cfg.Transport,
		"listen", cfg.ListenAddr,
		"manifest", cfg.ManifestPath,
		"chunk_bytes", cfg.ChunkBytes,
		"stack_size", cfg.StackSize,
		"loglevel", cfg.LogLevel,
	)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "err", err)
		return 1
	}

	// The device-key flag documents the registration key a real secure
	// element would pin internally during its own manifest registration
	// (§6); a network Server never sees a device's private key or drives
	// that exchange itself, so it is only validated here, not used.
	if _, err := hex.DecodeString(cfg.DeviceKeyHex); cfg.DeviceKeyHex != "" && err != nil {
		logger.Error("invalid device key", "err", err)
		return 1
	}

	manifest, err := loadManifest(cfg.ManifestPath)
	if err != nil {
		logger.Error("loading manifest", "err", err)
		return 1
	}

	codePages, err := loadPages(cfg.CodePath, manifest.Code.Start, manifest.Code.End)
	if err != nil {
		logger.Error("loading code segment", "err", err)
		return 1
	}
	dataPages, err := loadPages(cfg.DataPath, manifest.Data.Start, manifest.Data.End)
	if err != nil {
		logger.Error("loading data segment", "err", err)
		return 1
	}

	server := host.NewServer(cfg, manifest, codePages, dataPages, func(_ transport.Transport, typ wire.BufferType, data []byte) error {
		logger.Info("vapp message received", "type", typ, "bytes", len(data))
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig.String())
		cancel()
	}()

	if err := server.ListenAndServe(ctx); err != nil {
		logger.Error("server stopped", "err", err)
		return 1
	}
	logger.Info("shutdown complete")
	return 0
}

func parseLogLevel(s string) (slog.Level, error) {
	switch s {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}

// parseFlags parses CLI arguments into a Config. Returns the config, whether
// the caller should exit immediately, and the exit code.
func parseFlags(args []string) (host.Config, bool, int) {
	cfg := host.DefaultConfig()
	fs := newFlagSet(&cfg)

	showVersion := fs.Bool("version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return cfg, true, 2
	}

	if *showVersion {
		fmt.Printf("vanadium-host %s\n", version)
		return cfg, true, 0
	}

	return cfg, false, 0
}
