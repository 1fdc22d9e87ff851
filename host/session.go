package host

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/vanadium-project/vanadium-go/hostengine"
	"github.com/vanadium-project/vanadium-go/log"
	"github.com/vanadium-project/vanadium-go/metrics"
	"github.com/vanadium-project/vanadium-go/msgchannel"
	"github.com/vanadium-project/vanadium-go/pagefault"
	"github.com/vanadium-project/vanadium-go/pagestore"
	"github.com/vanadium-project/vanadium-go/riscv"
	"github.com/vanadium-project/vanadium-go/transport"
	"github.com/vanadium-project/vanadium-go/vapp"
	"github.com/vanadium-project/vanadium-go/wire"
	"github.com/vanadium-project/vanadium-go/witness"
)

var sessionLogger = log.Default().Module("host.session")

// ExitKind classifies how a Session's vapp run ended, matching the Engine
// API's three result variants (§6): VAppExited, VAppPanicked, GenericError.
type ExitKind int

const (
	// ExitedCleanly means the V-App called exit(status).
	ExitedCleanly ExitKind = iota
	// Panicked means the V-App called fatal(message).
	Panicked
	// Failed means a transport, protocol, or proof-verification failure
	// aborted the run before the V-App itself terminated.
	Failed
)

func (k ExitKind) String() string {
	switch k {
	case ExitedCleanly:
		return "ExitedCleanly"
	case Panicked:
		return "Panicked"
	case Failed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Outcome is the terminal result of a Session.Run call.
type Outcome struct {
	Kind    ExitKind
	Status  int32  // valid when Kind == ExitedCleanly
	Message string // valid when Kind == Panicked
	Err     error  // valid when Kind == Failed
}

// Session runs one V-App to completion in-process: the riscv interpreter
// (the device side) and a hostengine.Engine (the host side) drive each
// other over a loopback Transport, exercising the full page-fault and
// message-channel protocols exactly as a real secure element and host
// process would, without any real I/O.
type Session struct {
	manifest     *vapp.Manifest
	codeStore    *pagestore.Store
	dataStore    *pagestore.Store
	stackStore   *pagestore.Store
	registration *vapp.Registration
	hostRegistry *vapp.HostRegistry
	engine       *hostengine.Engine

	onVAppMessage func(typ wire.BufferType, data []byte) error
	chunkBytes    int
}

// NewSession builds a Session from a manifest and the initial contents of
// its Code and Data segments (page-aligned and zero-padded by the caller,
// matching pagestore.New's contract). Stack is always zero-initialized.
// deviceKey is the registration MAC key; onVAppMessage receives every
// buffer the V-App pushes via xsend (and its Panic/Print buffers).
func NewSession(m *vapp.Manifest, codePages, dataPages [][]byte, deviceKey []byte, onVAppMessage func(typ wire.BufferType, data []byte) error) (*Session, error) {
	codeStore := pagestore.New(wire.Code, m.Code.Start, m.Code.End, codePages)
	dataStore := pagestore.New(wire.Data, m.Data.Start, m.Data.End, dataPages)
	stackStore := pagestore.NewZeroFilled(wire.Stack, m.Stack.Start, m.Stack.End)

	if codeStore.Root() != m.Code.Root {
		return nil, fmt.Errorf("host: code pages do not match manifest root")
	}
	if dataStore.Root() != m.Data.Root {
		return nil, fmt.Errorf("host: data pages do not match manifest root")
	}

	registration := vapp.NewRegistration(deviceKey)
	mac, err := registration.Register(m)
	if err != nil {
		return nil, fmt.Errorf("host: registering manifest: %w", err)
	}
	hostRegistry := &vapp.HostRegistry{}
	hostRegistry.Cache(mac)

	return &Session{
		manifest:      m,
		codeStore:     codeStore,
		dataStore:     dataStore,
		stackStore:    stackStore,
		registration:  registration,
		hostRegistry:  hostRegistry,
		onVAppMessage: onVAppMessage,
	}, nil
}

// Engine exposes the host-side engine once Run has started it, so a caller
// can Send() to_app buffers while the V-App is executing. It is nil before
// Run is called.
func (s *Session) Engine() *hostengine.Engine { return s.engine }

// Run wires the device (riscv.CPU) and the host (hostengine.Engine) over a
// fresh loopback pair and drives the V-App to completion, returning the
// terminal Outcome. The call blocks until the V-App exits, panics, or the
// protocol aborts.
func (s *Session) Run(ctx context.Context, stackTop uint32) (*Outcome, error) {
	if mac, ok := s.hostRegistry.MAC(); !ok {
		return nil, errors.New("host: session has no cached registration MAC")
	} else if err := s.registration.Verify(s.manifest, mac); err != nil {
		return nil, fmt.Errorf("host: registration check failed: %w", err)
	}

	deviceConn, hostConn := transport.LoopbackPair()

	stores := map[wire.SectionKind]*pagestore.Store{
		wire.Code: s.codeStore, wire.Data: s.dataStore, wire.Stack: s.stackStore,
	}
	server := pagefault.NewServer(stores, s.chunkBytes)
	s.engine = hostengine.New(hostConn, server, s.onVAppMessage, s.chunkBytes)

	witnesses := map[wire.SectionKind]*witness.Witness{
		wire.Code:  witness.New(wire.Code, s.manifest.Code.Start, s.manifest.Code.End, s.codeStore.Size(), s.codeStore.Root()),
		wire.Data:  witness.New(wire.Data, s.manifest.Data.Start, s.manifest.Data.End, s.dataStore.Size(), s.dataStore.Root()),
		wire.Stack: witness.New(wire.Stack, s.manifest.Stack.Start, s.manifest.Stack.End, s.stackStore.Size(), s.stackStore.Root()),
	}
	resolver := pagefault.NewResolver(deviceConn, witnesses, s.chunkBytes)
	segments := manifestSegments(s.manifest)
	mem := riscv.NewPagedMemory(resolver, segments)
	sender := msgchannel.NewSender(deviceConn, s.chunkBytes)
	receiver := msgchannel.NewReceiver(deviceConn)
	cpu := riscv.NewCPU(mem, sender, receiver, s.manifest.Entrypoint, stackTop)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.engine.Run(gctx) })

	var runErr error
	g.Go(func() error {
		runErr = cpu.Run()
		deviceConn.Close()
		return nil
	})

	if err := g.Wait(); err != nil {
		hostConn.Close()
		return nil, err
	}
	return classify(runErr), nil
}

func manifestSegments(m *vapp.Manifest) []riscv.Segment {
	bounds := m.SegmentBounds()
	segments := make([]riscv.Segment, len(bounds))
	for i, b := range bounds {
		segments[i] = riscv.Segment{Kind: b.Kind, Start: b.Start, End: b.End}
	}
	return segments
}

func classify(err error) *Outcome {
	var exitErr *riscv.ExitError
	var panicErr *riscv.PanicError
	switch {
	case errors.As(err, &exitErr):
		metrics.EngineExits.Inc()
		sessionLogger.Info("vapp exited", "status", exitErr.Status)
		return &Outcome{Kind: ExitedCleanly, Status: exitErr.Status}
	case errors.As(err, &panicErr):
		metrics.EnginePanics.Inc()
		sessionLogger.Warn("vapp panicked", "message", panicErr.Message)
		return &Outcome{Kind: Panicked, Message: panicErr.Message}
	default:
		metrics.EngineFatalErrors.Inc()
		sessionLogger.Error("vapp run failed", "err", err)
		return &Outcome{Kind: Failed, Err: err}
	}
}
