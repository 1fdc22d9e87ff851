package main

import (
	"flag"
	"fmt"
	"strconv"

	"github.com/vanadium-project/vanadium-go/host"
)

// flagSet wraps flag.FlagSet so CLI parsing errors can be handled by the
// caller instead of flag's default os.Exit behavior.
type flagSet struct {
	*flag.FlagSet
}

func newCustomFlagSet(name string) *flagSet {
	return &flagSet{FlagSet: flag.NewFlagSet(name, flag.ContinueOnError)}
}

// newFlagSet binds every CLI flag to cfg.
func newFlagSet(cfg *host.Config) *flagSet {
	fs := newCustomFlagSet("vanadium-host")
	fs.StringVar(&cfg.Transport, "transport", cfg.Transport, "device transport: tcp or ws")
	fs.StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "listen address (host:port)")
	fs.StringVar(&cfg.ManifestPath, "manifest", cfg.ManifestPath, "path to the V-App manifest")
	fs.StringVar(&cfg.CodePath, "code", cfg.CodePath, "path to the raw Code segment contents")
	fs.StringVar(&cfg.DataPath, "data", cfg.DataPath, "path to the raw Data segment contents")
	fs.StringVar(&cfg.DeviceKeyHex, "device-key", cfg.DeviceKeyHex, "hex-encoded device registration key")
	fs.IntVar(&cfg.ChunkBytes, "chunk-bytes", cfg.ChunkBytes, "max proof/buffer chunk bytes per exchange (0 = default)")
	fs.Uint64Var(&cfg.StackSize, "stack-size", cfg.StackSize, "V-App stack segment size in bytes")
	fs.StringVar(&cfg.LogLevel, "loglevel", cfg.LogLevel, "log level: debug, info, warn, error")
	return fs
}

// Uint64Var defines a uint64 flag. Go's standard flag package lacks direct
// uint64 support, so this uses a custom flag.Value implementation.
func (fs *flagSet) Uint64Var(p *uint64, name string, value uint64, usage string) {
	fs.FlagSet.Var(&uint64Value{p: p}, name, usage)
	*p = value
}

type uint64Value struct{ p *uint64 }

func (v *uint64Value) String() string {
	if v.p == nil {
		return "0"
	}
	return strconv.FormatUint(*v.p, 10)
}

func (v *uint64Value) Set(s string) error {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid uint64 value %q", s)
	}
	*v.p = n
	return nil
}
