package host

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/vanadium-project/vanadium-go/hostengine"
	"github.com/vanadium-project/vanadium-go/log"
	"github.com/vanadium-project/vanadium-go/pagefault"
	"github.com/vanadium-project/vanadium-go/pagestore"
	"github.com/vanadium-project/vanadium-go/transport"
	"github.com/vanadium-project/vanadium-go/vapp"
	"github.com/vanadium-project/vanadium-go/wire"
)

var serverLogger = log.Default().Module("host.server")

// Server accepts connections from real devices (over TCP or WebSocket,
// per Config.Transport) and runs one hostengine.Engine per connection
// against a fixed set of page stores. Unlike Session, Server never runs
// the riscv interpreter itself — the device is a separate process, or
// real secure-element hardware.
type Server struct {
	cfg    Config
	stores map[wire.SectionKind]*pagestore.Store

	onVAppMessage func(conn transport.Transport, typ wire.BufferType, data []byte) error
}

// NewServer builds a Server over the page stores backing m's segments.
func NewServer(cfg Config, m *vapp.Manifest, codePages, dataPages [][]byte, onVAppMessage func(conn transport.Transport, typ wire.BufferType, data []byte) error) *Server {
	return &Server{
		cfg: cfg,
		stores: map[wire.SectionKind]*pagestore.Store{
			wire.Code:  pagestore.New(wire.Code, m.Code.Start, m.Code.End, codePages),
			wire.Data:  pagestore.New(wire.Data, m.Data.Start, m.Data.End, dataPages),
			wire.Stack: pagestore.NewZeroFilled(wire.Stack, m.Stack.Start, m.Stack.End),
		},
		onVAppMessage: onVAppMessage,
	}
}

// ListenAndServe blocks, accepting device connections on cfg.ListenAddr
// and running one Engine per connection until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	switch s.cfg.Transport {
	case "tcp":
		return s.serveTCP(ctx)
	case "ws":
		return s.serveWS(ctx)
	default:
		return fmt.Errorf("host: unknown transport %q", s.cfg.Transport)
	}
}

func (s *Server) serveTCP(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("host: listening on %s: %w", s.cfg.ListenAddr, err)
	}
	go func() {
		<-ctx.Done()
		ln.Close()
	}()
	serverLogger.Info("listening", "addr", s.cfg.ListenAddr, "transport", "tcp")

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("host: accept: %w", err)
		}
		go s.handle(ctx, transport.NewTCPTransport(conn))
	}
}

func (s *Server) serveWS(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/vanadium", func(w http.ResponseWriter, r *http.Request) {
		conn, err := transport.UpgradeWS(w, r)
		if err != nil {
			serverLogger.Error("websocket upgrade failed", "err", err)
			return
		}
		s.handle(ctx, conn)
	})
	srv := &http.Server{Addr: s.cfg.ListenAddr, Handler: mux}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()
	serverLogger.Info("listening", "addr", s.cfg.ListenAddr, "transport", "ws")
	if err := srv.ListenAndServe(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("host: websocket server: %w", err)
	}
	return nil
}

func (s *Server) handle(ctx context.Context, conn transport.Transport) {
	defer conn.Close()
	server := pagefault.NewServer(s.stores, s.cfg.ChunkBytes)
	engine := hostengine.New(conn, server, func(typ wire.BufferType, data []byte) error {
		if s.onVAppMessage == nil {
			return nil
		}
		return s.onVAppMessage(conn, typ, data)
	}, s.cfg.ChunkBytes)

	if err := engine.Run(ctx); err != nil {
		serverLogger.Error("connection engine stopped", "err", err)
	}
}
