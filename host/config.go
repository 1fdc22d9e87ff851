// Package host is the top-level lifecycle and service wiring around one or
// more hostengine instances: configuration, manifest/registration loading,
// and both an in-process Session (device interpreter and host engine over
// a loopback pair, for local execution and testing) and a network Server
// (accepting real device connections over TCP or WebSocket).
package host

import (
	"errors"
	"fmt"
)

// Config holds all configuration for a vanadium-host process.
type Config struct {
	// Transport selects the carrier a Server listens on: "tcp" or "ws".
	Transport string

	// ListenAddr is the address Server binds to (host:port).
	ListenAddr string

	// ManifestPath is the file the vanadium-host command loads its V-App
	// manifest from, RLP-encoded per vapp.Manifest.Encode.
	ManifestPath string

	// CodePath and DataPath are raw, page-aligned (zero-padded by the
	// loader) dumps of the Code and Data segment contents described by
	// the manifest. The host holds these in full; the device never sees
	// more than their accumulator roots.
	CodePath string
	DataPath string

	// DeviceKeyHex is the device-local registration key, hex-encoded.
	// In a real deployment this never leaves the secure element; the
	// vanadium-host command only checks that it is valid hex. A Session
	// takes its key as a separate NewSession argument.
	DeviceKeyHex string

	// ChunkBytes bounds proof and buffer fragment sizes per exchange. 0
	// selects wire.DefaultMaxChunkBytes.
	ChunkBytes int

	// StackSize is the byte size reserved for a V-App's Stack segment.
	StackSize uint64

	// LogLevel controls log verbosity (debug, info, warn, error).
	LogLevel string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Transport:  "tcp",
		ListenAddr: "127.0.0.1:7700",
		ChunkBytes: 0,
		StackSize:  64 * 1024,
		LogLevel:   "info",
	}
}

// Validate checks configuration values for correctness.
func (c *Config) Validate() error {
	switch c.Transport {
	case "tcp", "ws":
	default:
		return fmt.Errorf("host: unknown transport %q, want tcp or ws", c.Transport)
	}
	if c.ListenAddr == "" {
		return errors.New("host: listen address must not be empty")
	}
	if c.ManifestPath == "" {
		return errors.New("host: manifest path must not be empty")
	}
	if c.CodePath == "" {
		return errors.New("host: code segment path must not be empty")
	}
	if c.DataPath == "" {
		return errors.New("host: data segment path must not be empty")
	}
	if c.StackSize == 0 {
		return errors.New("host: stack size must be nonzero")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("host: unknown log level %q", c.LogLevel)
	}
	return nil
}
