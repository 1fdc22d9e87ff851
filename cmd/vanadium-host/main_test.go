package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/vanadium-project/vanadium-go/host"
)

func TestParseFlagsDefaults(t *testing.T) {
	cfg, exit, code := parseFlags(nil)
	if exit {
		t.Fatalf("exit = true, code = %d", code)
	}
	defaults := host.DefaultConfig()
	if cfg.Transport != defaults.Transport {
		t.Errorf("Transport = %q, want %q", cfg.Transport, defaults.Transport)
	}
	if cfg.ListenAddr != defaults.ListenAddr {
		t.Errorf("ListenAddr = %q, want %q", cfg.ListenAddr, defaults.ListenAddr)
	}
	if cfg.StackSize != defaults.StackSize {
		t.Errorf("StackSize = %d, want %d", cfg.StackSize, defaults.StackSize)
	}
}

func TestParseFlagsOverrides(t *testing.T) {
	cfg, exit, code := parseFlags([]string{
		"-transport", "ws",
		"-listen", "0.0.0.0:9999",
		"-manifest", "/tmp/app.manifest",
		"-code", "/tmp/app.code",
		"-data", "/tmp/app.data",
		"-stack-size", "131072",
		"-loglevel", "debug",
	})
	if exit {
		t.Fatalf("exit = true, code = %d", code)
	}
	if cfg.Transport != "ws" {
		t.Errorf("Transport = %q, want ws", cfg.Transport)
	}
	if cfg.ListenAddr != "0.0.0.0:9999" {
		t.Errorf("ListenAddr = %q, want 0.0.0.0:9999", cfg.ListenAddr)
	}
	if cfg.ManifestPath != "/tmp/app.manifest" {
		t.Errorf("ManifestPath = %q, want /tmp/app.manifest", cfg.ManifestPath)
	}
	if cfg.StackSize != 131072 {
		t.Errorf("StackSize = %d, want 131072", cfg.StackSize)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
}

func TestParseFlagsVersion(t *testing.T) {
	_, exit, code := parseFlags([]string{"-version"})
	if !exit || code != 0 {
		t.Fatalf("exit = %v, code = %d, want true, 0", exit, code)
	}
}

func TestParseFlagsInvalidFlag(t *testing.T) {
	_, exit, code := parseFlags([]string{"-not-a-real-flag"})
	if !exit || code != 2 {
		t.Fatalf("exit = %v, code = %d, want true, 2", exit, code)
	}
}

func TestParseLogLevel(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		if _, err := parseLogLevel(level); err != nil {
			t.Errorf("parseLogLevel(%q): %v", level, err)
		}
	}
	if _, err := parseLogLevel("trace"); err == nil {
		t.Error("parseLogLevel(trace) should fail")
	}
}

func TestRunFailsOnMissingManifest(t *testing.T) {
	code := run([]string{
		"-manifest", "/nonexistent/app.manifest",
		"-code", "/nonexistent/app.code",
		"-data", "/nonexistent/app.data",
	})
	if code != 1 {
		t.Errorf("run() = %d, want 1 for missing manifest", code)
	}
}

func TestRunFailsOnInvalidConfig(t *testing.T) {
	code := run([]string{"-transport", "carrier-pigeon"})
	if code != 1 {
		t.Errorf("run() = %d, want 1 for invalid transport", code)
	}
}

func TestLoadPagesZeroPadsFinalPage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seg.bin")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	pages, err := loadPages(path, 0, 4096)
	if err != nil {
		t.Fatalf("loadPages: %v", err)
	}
	if len(pages) != 1 {
		t.Fatalf("len(pages) = %d, want 1", len(pages))
	}
	if string(pages[0][:5]) != "hello" {
		t.Errorf("page prefix = %q, want hello", pages[0][:5])
	}
	for _, b := range pages[0][5:] {
		if b != 0 {
			t.Fatal("page tail not zero-padded")
		}
	}
}
